// Package window implements the frameless window controls exposed to the
// frontend: minimize, close, fullscreen, compact size, and always-on-top.
package window

import (
	"log/slog"
	"sync"

	"appshell/internal/config"
	"appshell/internal/logging"
)

// Surface is the native window the controller drives.
type Surface interface {
	Minimise()
	Close()
	IsFullscreen() bool
	SetFullscreen(on bool)
	Size() (width, height int)
	SetSize(width, height int)
	SetAlwaysOnTop(on bool)
}

// Layout holds the two window sizes the compact toggle switches between.
type Layout struct {
	Width         int
	Height        int
	CompactWidth  int
	CompactHeight int
}

// LayoutFromConfig maps the [window] config section.
func LayoutFromConfig(w config.Window) Layout {
	return Layout{
		Width:         w.Width,
		Height:        w.Height,
		CompactWidth:  w.CompactWidth,
		CompactHeight: w.CompactHeight,
	}
}

// Size is a window size in device-independent pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Controller applies window actions and tracks always-on-top, which the
// native layer cannot report.
type Controller struct {
	mu      sync.Mutex
	surface Surface
	layout  Layout
	onTop   bool
	logger  *slog.Logger
}

// NewController wraps surface. onTop is the state the window was created with.
func NewController(surface Surface, layout Layout, onTop bool, logger *slog.Logger) *Controller {
	return &Controller{
		surface: surface,
		layout:  layout,
		onTop:   onTop,
		logger:  logging.NewComponentLogger(logger, "window"),
	}
}

// Minimize minimizes the window.
func (c *Controller) Minimize() {
	c.surface.Minimise()
}

// Close closes the window.
func (c *Controller) Close() {
	c.logger.Info("window close requested")
	c.surface.Close()
}

// ToggleFullscreen flips fullscreen and returns the new state.
func (c *Controller) ToggleFullscreen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := !c.surface.IsFullscreen()
	c.surface.SetFullscreen(next)
	return next
}

// ToggleCompact switches between the compact and the regular size. A window
// at or below the compact size in both dimensions counts as compact.
func (c *Controller) ToggleCompact() Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	width, height := c.surface.Size()
	next := Size{Width: c.layout.CompactWidth, Height: c.layout.CompactHeight}
	if width <= c.layout.CompactWidth && height <= c.layout.CompactHeight {
		next = Size{Width: c.layout.Width, Height: c.layout.Height}
	}
	c.surface.SetSize(next.Width, next.Height)
	c.logger.Debug("window resized",
		logging.Int("from_width", width),
		logging.Int("from_height", height),
		logging.Int("width", next.Width),
		logging.Int("height", next.Height),
	)
	return next
}

// IsAlwaysOnTop reports the tracked always-on-top state.
func (c *Controller) IsAlwaysOnTop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onTop
}

// SetAlwaysOnTop applies and returns the new always-on-top state.
func (c *Controller) SetAlwaysOnTop(on bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface.SetAlwaysOnTop(on)
	c.onTop = on
	return c.onTop
}
