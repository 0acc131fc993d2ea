// Package termview renders a mapview.Scene in the terminal with Bubble Tea.
//
// The presenter mutates the scene from its own goroutine. Every mutation wakes
// the UI with a single coalesced message, so a burst of updates costs one redraw
// and the presenter never waits on the terminal.
package termview

import (
	"context"
	"log/slog"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/unklstewy/ads-bmap/pkg/mapview"
)

// sceneChangedMsg tells the model to take a fresh snapshot.
type sceneChangedMsg struct{}

// Widget is a mapview.Widget drawn in the terminal.
type Widget struct {
	*mapview.Scene

	logger  *slog.Logger
	program atomic.Pointer[tea.Program]

	// pending is set while a sceneChangedMsg is in flight
	pending atomic.Bool
}

var _ mapview.Widget = (*Widget)(nil)

// New wraps scene in a terminal widget.
func New(scene *mapview.Scene, logger *slog.Logger) *Widget {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Widget{
		Scene:  scene,
		logger: logger.With("component", "termview"),
	}
	scene.Observe(w.changed)
	return w
}

func (w *Widget) changed(mapview.Change) {
	p := w.program.Load()
	if p == nil {
		return
	}
	if w.pending.CompareAndSwap(false, true) {
		go p.Send(sceneChangedMsg{})
	}
}

// Run shows the map until the user quits or ctx is cancelled.
func (w *Widget) Run(ctx context.Context) error {
	p := tea.NewProgram(newModel(w),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	w.program.Store(p)
	defer w.program.Store(nil)

	w.logger.Debug("terminal map started")
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
