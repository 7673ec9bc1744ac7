// Package capture takes PNG screenshots of the dashboard with headless
// Chromium, for e-paper frames and link previews.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/codeGROOVE-dev/retry"

	"timeprogress/internal/convert"
	appLog "timeprogress/internal/log"
)

const (
	DefaultWidth   = 800
	DefaultHeight  = 480
	DefaultTimeout = 30 * time.Second

	// ReadySelector is set by the dashboard once it has rendered.
	ReadySelector = `[data-ready="true"]`
)

type Options struct {
	// URL of the dashboard, e.g. "http://127.0.0.1:8080/".
	URL string
	// OutputPath receives the PNG. Empty keeps shots in memory only.
	OutputPath string
	// FramePath, when set, receives the packed black/red planes for an
	// e-paper panel of Width x Height.
	FramePath string

	Width   int
	Height  int
	Timeout time.Duration

	Attempts   uint
	RetryDelay time.Duration
}

// Shot is one captured frame.
type Shot struct {
	PNG     []byte
	TakenAt time.Time
}

type Capturer struct {
	opts  Options
	shoot func(ctx context.Context, opts Options) ([]byte, error)
	last  atomic.Pointer[Shot]
}

func New(opts Options) (*Capturer, error) {
	if opts.URL == "" {
		return nil, errors.New("capture: URL is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &Capturer{opts: opts, shoot: screenshot}, nil
}

// Latest returns the most recent successful shot.
func (c *Capturer) Latest() (Shot, bool) {
	s := c.last.Load()
	if s == nil {
		return Shot{}, false
	}
	return *s, true
}

// Run captures one frame. On failure the previous PNG stays in place.
func (c *Capturer) Run(ctx context.Context) error {
	var png []byte
	err := retry.Do(
		func() error {
			var err error
			png, err = c.shoot(ctx, c.opts)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.opts.Attempts),
		retry.Delay(c.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			appLog.Debug("retrying capture", "attempt", n+1, "url", c.opts.URL, "err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("capture %s: %w", c.opts.URL, err)
	}

	if c.opts.OutputPath != "" {
		if err := writeFileAtomic(c.opts.OutputPath, png); err != nil {
			return fmt.Errorf("capture: write PNG: %w", err)
		}
	}
	if c.opts.FramePath != "" {
		if err := c.writeFrame(png); err != nil {
			appLog.Error("capture: e-paper frame not written", err, "path", c.opts.FramePath)
		}
	}
	c.last.Store(&Shot{PNG: png, TakenAt: time.Now()})
	appLog.Info("dashboard captured", "bytes", len(png), "output", c.opts.OutputPath)
	return nil
}

func (c *Capturer) writeFrame(png []byte) error {
	frame, err := convert.PackPNG(png, c.opts.Width, c.opts.Height)
	if err != nil {
		return err
	}
	return writeFileAtomic(c.opts.FramePath, frame.Bytes())
}

// screenshot drives Chromium: set the viewport, load the page, wait for
// the ready marker and grab the full page.
func screenshot(parent context.Context, opts Options) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	err := chromedp.Run(ctx, chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// 마지막 페인트가 끝날 때까지 잠깐 대기.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	})
	if err != nil {
		return nil, err
	}
	return png, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".capture-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
