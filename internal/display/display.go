// Package display defines how a host device drives an App, and implements
// the terminal host. The window host lives in display/window.
package display

import (
	"context"
	"image/color"
	"time"

	"github.com/charmbracelet/log"
	"github.com/taigrr/podium/pkg/render"
)

// Event is input delivered to an App on its frame goroutine.
type Event interface {
	isEvent()
}

// KeyEvent is a key press. Key uses terminal keystroke names: printable
// keys are their text ("a", "+", "?"), others are names like "up", "esc"
// or "ctrl+c".
type KeyEvent struct {
	Key string
}

// PointerKind distinguishes pointer events.
type PointerKind int

const (
	PointerMove PointerKind = iota
	PointerDown
	PointerUp
	PointerWheel
)

// Button is a pointer button.
type Button int

const (
	ButtonNone Button = iota
	ButtonLeft
	ButtonMiddle
	ButtonRight
)

// PointerEvent is pointer input in framebuffer pixels.
type PointerEvent struct {
	Kind   PointerKind
	X, Y   int
	Button Button
	// Delta is the wheel movement; positive scrolls up.
	Delta float64
}

// ResizeEvent carries the new framebuffer size in pixels.
type ResizeEvent struct {
	Width, Height int
}

func (KeyEvent) isEvent()     {}
func (PointerEvent) isEvent() {}
func (ResizeEvent) isEvent()  {}

// Label is text the host draws over the framebuffer. X and Y are the
// framebuffer pixel of the first glyph's top-left corner.
type Label struct {
	X, Y  int
	Text  string
	Color color.RGBA
}

// App is what a Host drives. Every method is called from one goroutine.
type App interface {
	HandleEvent(ev Event)
	// Frame advances one frame and reports whether to keep running.
	Frame(now time.Time) bool
	Framebuffer() *render.Framebuffer
	Labels() []Label
}

// Metrics describe how text maps onto the framebuffer of a host.
type Metrics struct {
	// Glyph cell size in framebuffer pixels.
	CellWidth, CellHeight int
	// HostText is set when the host draws Labels itself.
	HostText bool
}

// Host runs an App until ctx is cancelled or the App stops.
type Host interface {
	Run(ctx context.Context, app App) error
	Metrics() Metrics
}

// Options configure a host.
type Options struct {
	FPS           int
	Width, Height int // window size; the terminal uses its own
	Title         string
	Logger        *log.Logger
}

// frameInterval is the pacing for fps frames per second.
func frameInterval(fps int) time.Duration {
	return time.Second / time.Duration(max(fps, 1))
}
