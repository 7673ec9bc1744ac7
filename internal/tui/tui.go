// Package tui shows the live dashboard in the terminal.
package tui

import (
	"context"
	"fmt"
	"sync"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"

	"timeprogress/internal/i18n"
	"timeprogress/internal/render"
	"timeprogress/internal/snapshot"
)

const (
	viewHeader = "header"
	viewMain   = "main"
	viewFooter = "footer"
)

// Source publishes snapshots; scheduler.Scheduler satisfies it.
type Source interface {
	Subscribe(fn func(snapshot.Snapshot)) (cancel func())
}

type UI struct {
	gui *gocui.Gui
	tr  *i18n.Translator

	mu   sync.Mutex
	snap *snapshot.Snapshot
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, src Source, tr *i18n.Translator) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := &UI{gui: gui, tr: tr}
	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}

	cancel := src.Subscribe(ui.onSnapshot)
	defer cancel()

	go func() {
		<-ctx.Done()
		gui.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
	}()

	if err := gui.MainLoop(); err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	if err := gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'q', gocui.ModNone, u.quit); err != nil {
		return err
	}
	return nil
}

func (u *UI) quit(*gocui.Gui, *gocui.View) error {
	return gocui.ErrQuit
}

// onSnapshot runs on the subscriber goroutine; drawing happens on the
// gui loop.
func (u *UI) onSnapshot(s snapshot.Snapshot) {
	u.mu.Lock()
	u.snap = &s
	u.mu.Unlock()
	u.gui.Update(func(*gocui.Gui) error { return nil })
}

func (u *UI) current() *snapshot.Snapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snap
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 2 || maxY <= 4 {
		return nil
	}

	header, err := gui.SetView(viewHeader, 0, 0, maxX-1, 2, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	header.Frame = true
	header.Title = " " + u.tr.T("label.title") + " "

	mainView, err := gui.SetView(viewMain, 0, 3, maxX-1, maxY-3, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	mainView.Frame = true
	mainView.Wrap = false

	footer, err := gui.SetView(viewFooter, 0, maxY-2, maxX-1, maxY, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footer.Frame = false
	footer.Clear()
	fmt.Fprint(footer, " q: quit")

	snap := u.current()
	header.Clear()
	mainView.Clear()
	if snap == nil {
		fmt.Fprint(header, " "+u.tr.T("label.waiting"))
		return nil
	}
	fmt.Fprintf(header, " %s  %s  (%s)", snap.Time, snap.Date, snap.Timezone)
	fmt.Fprint(mainView, Body(*snap, u.tr, maxX-2))
	return nil
}

// Body is the main panel text for a view width cells wide.
func Body(s snapshot.Snapshot, tr *i18n.Translator, width int) string {
	bar := max(10, min(60, width-50))
	out := s.TodayElapsedSummary + "\n\n"
	labelWidth := 0
	for _, p := range s.Progress.All() {
		labelWidth = max(labelWidth, len([]rune(tr.Period(p.Kind))))
	}
	for _, p := range s.Progress.All() {
		out += render.Line(p, tr.Period(p.Kind), labelWidth, bar, tr) + "\n"
	}
	return out
}
