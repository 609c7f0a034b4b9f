package window

import (
	"context"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// WailsSurface drives the Wails main window. ctx must be the context
// passed to the application's OnStartup hook.
type WailsSurface struct {
	ctx context.Context
}

// NewWailsSurface binds the surface to the Wails runtime context.
func NewWailsSurface(ctx context.Context) *WailsSurface {
	return &WailsSurface{ctx: ctx}
}

func (s *WailsSurface) Minimise() { wailsruntime.WindowMinimise(s.ctx) }

// Close quits the application; Wails v2 runs a single window.
func (s *WailsSurface) Close() { wailsruntime.Quit(s.ctx) }

func (s *WailsSurface) IsFullscreen() bool { return wailsruntime.WindowIsFullscreen(s.ctx) }

func (s *WailsSurface) SetFullscreen(on bool) {
	if on {
		wailsruntime.WindowFullscreen(s.ctx)
		return
	}
	wailsruntime.WindowUnfullscreen(s.ctx)
}

func (s *WailsSurface) Size() (int, int) { return wailsruntime.WindowGetSize(s.ctx) }

func (s *WailsSurface) SetSize(width, height int) { wailsruntime.WindowSetSize(s.ctx, width, height) }

func (s *WailsSurface) SetAlwaysOnTop(on bool) { wailsruntime.WindowSetAlwaysOnTop(s.ctx, on) }
