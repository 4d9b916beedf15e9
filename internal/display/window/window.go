// Package window hosts the viewer in a desktop window with ebiten.
package window

import (
	"context"
	"time"
	"unicode"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/taigrr/podium/internal/display"
	"github.com/taigrr/podium/pkg/render"
)

// Window shows the framebuffer one pixel per screen pixel in a resizable
// desktop window.
type Window struct {
	opts display.Options
}

// New returns a window host.
func New(opts display.Options) *Window {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 960, 640
	}
	if opts.Title == "" {
		opts.Title = "podium"
	}
	return &Window{opts: opts}
}

// Metrics implements Host. Text is drawn into the framebuffer with the
// 7x13 bitmap font.
func (w *Window) Metrics() display.Metrics {
	return display.Metrics{CellWidth: render.TextWidth("M"), CellHeight: render.TextHeight()}
}

// Run implements Host. It blocks on the main thread until the window closes.
func (w *Window) Run(ctx context.Context, app display.App) error {
	ebiten.SetWindowTitle(w.opts.Title)
	ebiten.SetWindowSize(w.opts.Width, w.opts.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(max(w.opts.FPS, 1))

	g := &game{ctx: ctx, app: app}
	err := ebiten.RunGameWithOptions(g, &ebiten.RunGameOptions{})
	if err == ebiten.Termination {
		return nil
	}
	return err
}

// game adapts an App to ebiten. ebiten calls Layout, Update and Draw from a
// single goroutine.
type game struct {
	ctx context.Context
	app display.App

	width, height int
	cursorX       int
	cursorY       int
	keys          []ebiten.Key
	chars         []rune
	pix           []byte
	canvas        *ebiten.Image
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.width || outsideHeight != g.height {
		g.width, g.height = outsideWidth, outsideHeight
		g.app.HandleEvent(display.ResizeEvent{Width: outsideWidth, Height: outsideHeight})
	}
	return outsideWidth, outsideHeight
}

func (g *game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	g.input()
	if !g.app.Frame(time.Now()) {
		return ebiten.Termination
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	fb := g.app.Framebuffer()
	if fb.Width <= 0 || fb.Height <= 0 {
		return
	}
	if g.canvas == nil || g.canvas.Bounds().Dx() != fb.Width || g.canvas.Bounds().Dy() != fb.Height {
		if g.canvas != nil {
			g.canvas.Deallocate()
		}
		g.canvas = ebiten.NewImage(fb.Width, fb.Height)
	}
	g.pix = framebufferBytes(g.pix, fb)
	g.canvas.WritePixels(g.pix)
	screen.DrawImage(g.canvas, nil)
}

// input turns this tick's ebiten input state into App events.
func (g *game) input() {
	x, y := ebiten.CursorPosition()
	if x != g.cursorX || y != g.cursorY {
		g.cursorX, g.cursorY = x, y
		g.app.HandleEvent(display.PointerEvent{Kind: display.PointerMove, X: x, Y: y, Button: heldButton()})
	}
	for _, b := range []ebiten.MouseButton{ebiten.MouseButtonLeft, ebiten.MouseButtonMiddle, ebiten.MouseButtonRight} {
		if inpututil.IsMouseButtonJustPressed(b) {
			g.app.HandleEvent(display.PointerEvent{Kind: display.PointerDown, X: x, Y: y, Button: ebitenButton(b)})
		}
		if inpututil.IsMouseButtonJustReleased(b) {
			g.app.HandleEvent(display.PointerEvent{Kind: display.PointerUp, X: x, Y: y, Button: ebitenButton(b)})
		}
	}
	if _, dy := ebiten.Wheel(); dy != 0 {
		g.app.HandleEvent(display.PointerEvent{Kind: display.PointerWheel, X: x, Y: y, Delta: dy})
	}

	// Printable keys arrive as text so layouts and shift are honored.
	g.chars = ebiten.AppendInputChars(g.chars[:0])
	for _, r := range g.chars {
		if unicode.IsPrint(r) {
			g.app.HandleEvent(display.KeyEvent{Key: string(r)})
		}
	}
	g.keys = inpututil.AppendJustPressedKeys(g.keys[:0])
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControl)
	for _, k := range g.keys {
		if name, ok := keyName(k, ctrl); ok {
			g.app.HandleEvent(display.KeyEvent{Key: name})
		}
	}
}

// keyName names the keys that produce no text.
func keyName(k ebiten.Key, ctrl bool) (string, bool) {
	switch k {
	case ebiten.KeyArrowUp:
		return "up", true
	case ebiten.KeyArrowDown:
		return "down", true
	case ebiten.KeyArrowLeft:
		return "left", true
	case ebiten.KeyArrowRight:
		return "right", true
	case ebiten.KeyEscape:
		return "esc", true
	case ebiten.KeyC:
		if ctrl {
			return "ctrl+c", true
		}
	}
	return "", false
}

func heldButton() display.Button {
	switch {
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		return display.ButtonLeft
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight):
		return display.ButtonRight
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle):
		return display.ButtonMiddle
	default:
		return display.ButtonNone
	}
}

func ebitenButton(b ebiten.MouseButton) display.Button {
	switch b {
	case ebiten.MouseButtonLeft:
		return display.ButtonLeft
	case ebiten.MouseButtonMiddle:
		return display.ButtonMiddle
	case ebiten.MouseButtonRight:
		return display.ButtonRight
	default:
		return display.ButtonNone
	}
}

// framebufferBytes packs fb as RGBA bytes into buf, growing it as needed.
func framebufferBytes(buf []byte, fb *render.Framebuffer) []byte {
	n := len(fb.Pixels) * 4
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	for i, p := range fb.Pixels {
		buf[i*4] = p.R
		buf[i*4+1] = p.G
		buf[i*4+2] = p.B
		buf[i*4+3] = p.A
	}
	return buf
}
