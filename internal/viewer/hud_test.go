package viewer

import (
	"image"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/taigrr/podium/internal/display"
	"github.com/taigrr/podium/pkg/render"
)

func newTerminalHUD() *HUD {
	return NewHUD(HUDOptions{CellWidth: 1, CellHeight: 2, HostText: true, FPS: 60})
}

func labelTexts(labels []display.Label) []string {
	var out []string
	for _, l := range labels {
		out = append(out, l.Text)
	}
	return out
}

func TestHUDButtonAt(t *testing.T) {
	h := newTerminalHUD()
	h.Layout(100, 60)

	// Rotate, Move, +, -, Reset padded by one cell and one cell apart,
	// centered on the second row from the bottom.
	tests := []struct {
		name string
		x, y int
		want Element
		ok   bool
	}{
		{"rotate left edge", 34, 56, ElementToggleRotation, true},
		{"rotate bottom pixel", 41, 57, ElementToggleRotation, true},
		{"gap", 42, 56, 0, false},
		{"move", 45, 56, ElementToggleMovement, true},
		{"zoom in", 51, 57, ElementZoomIn, true},
		{"zoom out", 55, 56, ElementZoomOut, true},
		{"reset", 64, 56, ElementResetView, true},
		{"past reset", 65, 56, 0, false},
		{"row above", 40, 55, 0, false},
		{"bottom row", 40, 58, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := h.ButtonAt(tt.x, tt.y)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("ButtonAt(%d, %d) = %s, %t; want %s, %t", tt.x, tt.y, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestHUDButtonsStayInsideFramebuffer(t *testing.T) {
	for _, size := range []image.Point{{10, 10}, {40, 24}, {320, 200}} {
		h := NewHUD(HUDOptions{CellWidth: 7, CellHeight: 13})
		h.Layout(size.X, size.Y)
		for _, b := range h.buttons {
			if b.rect.Min.X < 0 || b.rect.Min.Y < 0 || b.rect.Min.Y%13 != 0 {
				t.Errorf("%v: button %s at %v", size, b.el, b.rect)
			}
		}
		for i := 1; i < len(h.buttons); i++ {
			if h.buttons[i].rect.Overlaps(h.buttons[i-1].rect) {
				t.Errorf("%v: buttons %d and %d overlap", size, i-1, i)
			}
		}
	}
}

func TestHUDProgress(t *testing.T) {
	h := newTerminalHUD()
	if h.Progress() >= 0 {
		t.Fatalf("initial progress = %v, want indeterminate", h.Progress())
	}

	tests := []struct {
		set, want float64
	}{
		{40, 40},
		{150, 100},
		{-5, 0},
	}
	for _, tt := range tests {
		h.SetWidthPercent(ElementLoadingProgress, tt.set)
		if got := h.Progress(); got != tt.want {
			t.Errorf("SetWidthPercent(%v): Progress = %v, want %v", tt.set, got, tt.want)
		}
	}

	h.SetWidthPercent(ElementModelInfo, 70)
	if h.Progress() != 0 {
		t.Error("width on another element moved the bar")
	}
}

func TestHUDProgressEases(t *testing.T) {
	h := newTerminalHUD()
	h.SetWidthPercent(ElementLoadingProgress, 60)

	h.Update(epoch)
	if h.shown <= 0 || h.shown >= 60 {
		t.Fatalf("first frame shows %v, want partway to 60", h.shown)
	}
	for i := range 240 {
		h.Update(epoch.Add(time.Duration(i+1) * time.Second / 60))
	}
	if math.Abs(h.shown-60) > 0.5 {
		t.Errorf("bar settled at %v, want 60", h.shown)
	}
}

func TestHUDLabels(t *testing.T) {
	h := newTerminalHUD()
	fb := render.NewFramebuffer(100, 60)
	h.Update(epoch)

	buttons := []string{"Rotate", "Move", "+", "-", "Reset"}
	if got := labelTexts(h.Draw(fb)); !slices.Equal(got, buttons) {
		t.Errorf("idle labels = %q, want only buttons", got)
	}

	h.SetVisible(ElementLoadingContainer, true)
	got := labelTexts(h.Draw(fb))
	if !slices.Contains(got, loadingDefault) {
		t.Errorf("loading labels %q lack %q", got, loadingDefault)
	}
	if slices.Contains(got, "0%") {
		t.Error("percentage shown while the total is unknown")
	}

	h.SetWidthPercent(ElementLoadingProgress, 40)
	h.SetText(ElementLoadingPercentage, "40%")
	if got := labelTexts(h.Draw(fb)); !slices.Contains(got, "40%") {
		t.Errorf("labels %q lack the percentage", got)
	}

	h.SetVisible(ElementLoadingContainer, false)
	h.SetVisible(ElementModelInfo, true)
	h.SetText(ElementModelName, "duck.glb")
	h.ShowStats = true
	got = labelTexts(h.Draw(fb))
	if !slices.Contains(got, "duck.glb") {
		t.Errorf("labels %q lack the model name", got)
	}
	if slices.Contains(got, loadingDefault) {
		t.Error("loading text drawn after the container was hidden")
	}
	if len(got) != len(buttons)+2 {
		t.Errorf("labels = %q, want name, stats and buttons", got)
	}
}

func TestHUDFailedColor(t *testing.T) {
	h := newTerminalHUD()
	fb := render.NewFramebuffer(100, 60)
	h.SetVisible(ElementLoadingContainer, true)
	h.SetText(ElementLoadingInfo, FailedText)
	h.SetColor(ElementLoadingInfo, colorful.Color{R: 1})

	for _, l := range h.Draw(fb) {
		if l.Text == FailedText {
			if l.Color != render.RGB(255, 0, 0) {
				t.Errorf("failure text color = %v, want red", l.Color)
			}
			return
		}
	}
	t.Error("failure text not drawn")
}

func TestHUDDrawsTextIntoFramebuffer(t *testing.T) {
	h := NewHUD(HUDOptions{CellWidth: render.TextWidth("M"), CellHeight: render.TextHeight()})
	fb := render.NewFramebuffer(320, 200)
	if labels := h.Draw(fb); labels != nil {
		t.Errorf("Draw returned %d labels without HostText", len(labels))
	}
	b := h.buttons[0].rect
	found := false
	for y := b.Min.Y; y < b.Max.Y && !found; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if fb.GetPixel(x, y) == hudText {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("button text not rasterized")
	}
}

func TestHUDParticles(t *testing.T) {
	h := NewHUD(HUDOptions{CellWidth: 1, CellHeight: 2, HostText: true, Fall: time.Second})
	fb := render.NewFramebuffer(120, 80)
	h.Update(epoch)

	red := colorful.Color{R: 1}
	h.AppendParticles(ElementConfetti, []Particle{
		{Burst: 1, X: 50, Hue: 0.1, Color: red},
		{Burst: 2, X: 25, Hue: 0.1, Color: red},
	})
	h.AppendParticles(ElementModelInfo, []Particle{{Burst: 3}})
	if h.ParticleCount() != 2 {
		t.Fatalf("ParticleCount = %d, want 2", h.ParticleCount())
	}

	h.SetVisible(ElementConfetti, true)
	h.Update(epoch.Add(500 * time.Millisecond))
	fb.Clear(render.RGB(0, 0, 0))
	h.Draw(fb)
	if fb.GetPixel(60, 40).R == 0 {
		t.Error("particle not drawn halfway down at its column")
	}

	h.RemoveParticles(ElementConfetti, 1)
	if h.ParticleCount() != 1 {
		t.Errorf("ParticleCount = %d after removing one burst", h.ParticleCount())
	}
}

func TestHUDFPS(t *testing.T) {
	h := newTerminalHUD()
	for i := range 61 {
		h.Update(epoch.Add(time.Duration(i) * time.Second / 60))
	}
	if fps := h.FPS(); fps < 55 || fps > 65 {
		t.Errorf("FPS = %v, want about 60", fps)
	}
}
