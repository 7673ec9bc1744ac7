// Package convert turns captured dashboard screenshots into packed
// black/red/white frames for tri-color e-paper panels.
package convert

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

// Frame is a 1bpp image split into a black plane and a red plane.
// Rows are MSB-first and a cleared bit means ink:
//
//	byteIndex = y*Stride + x>>3
//	mask      = 0x80 >> (x & 7)
type Frame struct {
	Width  int
	Height int
	Stride int
	Black  []byte
	Red    []byte
}

// Palette is the panel's three inks in preview order.
var Palette = color.Palette{
	color.White,
	color.Black,
	color.NRGBA{R: 0xCC, A: 0xFF},
}

type ink uint8

const (
	inkWhite ink = iota
	inkBlack
	inkRed
)

// Pack classifies every pixel of img into a width x height frame. Larger
// images are center-cropped; smaller ones are rejected.
func Pack(img image.Image, width, height int) (Frame, error) {
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("convert: invalid frame size %dx%d", width, height)
	}
	b := img.Bounds()
	if b.Dx() < width || b.Dy() < height {
		return Frame{}, fmt.Errorf("convert: image %dx%d smaller than frame %dx%d", b.Dx(), b.Dy(), width, height)
	}

	src := toNRGBA(img)
	// 가운데 영역만 사용 (센터 크롭).
	offX := (b.Dx() - width) / 2
	offY := (b.Dy() - height) / 2

	stride := (width + 7) / 8
	f := Frame{
		Width:  width,
		Height: height,
		Stride: stride,
		Black:  bytes.Repeat([]byte{0xFF}, stride*height),
		Red:    bytes.Repeat([]byte{0xFF}, stride*height),
	}

	for y := 0; y < height; y++ {
		row := (offY + y) * src.Stride
		for x := 0; x < width; x++ {
			i := row + (offX+x)*4
			c := color.NRGBA{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2], A: src.Pix[i+3]}
			if c.A < 128 {
				continue
			}
			idx := y*stride + x>>3
			mask := byte(0x80 >> (x & 7))
			switch classify(c) {
			case inkBlack:
				f.Black[idx] &^= mask
			case inkRed:
				f.Red[idx] &^= mask
			}
		}
	}
	return f, nil
}

// PackPNG decodes a PNG screenshot and packs it.
func PackPNG(data []byte, width, height int) (Frame, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("convert: decode PNG: %w", err)
	}
	return Pack(img, width, height)
}

// Bytes returns the black plane followed by the red plane, the layout the
// panel driver expects.
func (f Frame) Bytes() []byte {
	out := make([]byte, 0, len(f.Black)+len(f.Red))
	out = append(out, f.Black...)
	return append(out, f.Red...)
}

// Image renders the frame with Palette so it can be previewed.
func (f Frame) Image() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, f.Width, f.Height), Palette)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			idx := y*f.Stride + x>>3
			mask := byte(0x80 >> (x & 7))
			switch {
			case f.Black[idx]&mask == 0:
				img.SetColorIndex(x, y, uint8(inkBlack))
			case f.Red[idx]&mask == 0:
				img.SetColorIndex(x, y, uint8(inkRed))
			}
		}
	}
	return img
}

// EncodePNG writes the preview image as PNG.
func (f Frame) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(n, n.Bounds(), img, b.Min, draw.Src)
	return n
}

// classify uses luma for black and red dominance for red:
//
//	Y       = 0.299R + 0.587G + 0.114B
//	redness = R - max(G, B)
func classify(c color.NRGBA) ink {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	y := 0.299*r + 0.587*g + 0.114*b
	redness := r - max(g, b)

	if y < 64 {
		return inkBlack
	}
	if r > 128 && redness > 32 {
		return inkRed
	}
	return inkWhite
}
