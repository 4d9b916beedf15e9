package display

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/taigrr/podium/pkg/render"
)

const (
	mouseOn  = "\x1b[?1003h\x1b[?1006h" // any-event tracking, SGR encoding
	mouseOff = "\x1b[?1003l\x1b[?1006l"
)

// Terminal draws the framebuffer with half blocks, two pixels per cell.
type Terminal struct {
	opts Options
}

// NewTerminal returns a terminal host.
func NewTerminal(opts Options) *Terminal {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Terminal{opts: opts}
}

// Metrics implements Host. A cell is one pixel wide and two tall, and the
// terminal draws text itself.
func (t *Terminal) Metrics() Metrics {
	return Metrics{CellWidth: 1, CellHeight: 2, HostText: true}
}

// Run implements Host.
func (t *Terminal) Run(ctx context.Context, app App) error {
	term := uv.DefaultTerminal()

	cols, rows, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(cols, rows)
	fmt.Fprint(os.Stdout, mouseOn)

	defer func() {
		fmt.Fprint(os.Stdout, mouseOff)
		term.ExitAltScreen()
		term.ShowCursor()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := term.Shutdown(shutdownCtx); err != nil {
			t.opts.Logger.Debug("terminal shutdown", "err", err)
		}
	}()

	// Input arrives on uv's goroutine and is handed to the frame loop so the
	// app only ever sees one goroutine.
	done := make(chan struct{})
	defer close(done)
	raw := make(chan uv.Event, 64)
	go func() {
		for ev := range term.Events() {
			select {
			case raw <- ev:
			case <-done:
				return
			}
		}
	}()

	app.HandleEvent(ResizeEvent{Width: cols, Height: rows * 2})

	ticker := time.NewTicker(frameInterval(t.opts.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-raw:
			if size, ok := ev.(uv.WindowSizeEvent); ok {
				cols, rows = size.Width, size.Height
				term.Erase()
				term.Resize(cols, rows)
			}
			if e, ok := translate(ev); ok {
				app.HandleEvent(e)
			}
		case now := <-ticker.C:
			if !app.Frame(now) {
				return nil
			}
			fb := app.Framebuffer()
			fb.Draw(term, uv.Rect(0, 0, cols, rows))
			drawLabels(term, fb, app.Labels())
			if err := term.Display(); err != nil {
				return fmt.Errorf("display: %w", err)
			}
		}
	}
}

// translate maps a terminal event to an App event. Mouse rows become
// framebuffer rows, two per cell.
func translate(ev uv.Event) (Event, bool) {
	switch ev := ev.(type) {
	case uv.WindowSizeEvent:
		return ResizeEvent{Width: ev.Width, Height: ev.Height * 2}, true
	case uv.KeyPressEvent:
		return KeyEvent{Key: ev.String()}, true
	case uv.MouseClickEvent:
		return PointerEvent{Kind: PointerDown, X: ev.X, Y: ev.Y * 2, Button: mouseButton(ev.Button)}, true
	case uv.MouseReleaseEvent:
		return PointerEvent{Kind: PointerUp, X: ev.X, Y: ev.Y * 2, Button: mouseButton(ev.Button)}, true
	case uv.MouseMotionEvent:
		return PointerEvent{Kind: PointerMove, X: ev.X, Y: ev.Y * 2, Button: mouseButton(ev.Button)}, true
	case uv.MouseWheelEvent:
		p := PointerEvent{Kind: PointerWheel, X: ev.X, Y: ev.Y * 2}
		switch ev.Button {
		case uv.MouseWheelUp:
			p.Delta = 1
		case uv.MouseWheelDown:
			p.Delta = -1
		default:
			return nil, false
		}
		return p, true
	}
	return nil, false
}

func mouseButton(b uv.MouseButton) Button {
	switch b {
	case uv.MouseLeft:
		return ButtonLeft
	case uv.MouseMiddle:
		return ButtonMiddle
	case uv.MouseRight:
		return ButtonRight
	default:
		return ButtonNone
	}
}

// drawLabels writes label text over the half blocks. Each glyph takes the
// framebuffer color of its cell's top pixel as background.
func drawLabels(scr uv.Screen, fb *render.Framebuffer, labels []Label) {
	bounds := scr.Bounds()
	for _, l := range labels {
		row := l.Y / 2
		if row < bounds.Min.Y || row >= bounds.Max.Y {
			continue
		}
		col := l.X
		for _, r := range l.Text {
			if col >= bounds.Max.X {
				break
			}
			if col >= bounds.Min.X {
				scr.SetCell(col, row, &uv.Cell{
					Content: string(r),
					Width:   1,
					Style: uv.Style{
						Fg: l.Color,
						Bg: fb.GetPixel(col, row*2),
					},
				})
			}
			col++
		}
	}
}
