package viewer

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/taigrr/podium/internal/config"
	"github.com/taigrr/podium/internal/display"
	"github.com/taigrr/podium/pkg/math3d"
)

const frameStep = time.Second / 60

func newTestController(t *testing.T, mutate func(*config.Config)) *Controller {
	t.Helper()
	cfg := config.Default()
	cfg.Display.Width, cfg.Display.Height = 80, 60
	cfg.Controls.AutoRotate = false
	cfg.Controls.MinDistance = 0.5
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg,
		WithLogger(quietLogger()),
		WithStartTime(epoch),
		WithRand(rand.New(rand.NewPCG(5, 6))),
		WithMetrics(display.Metrics{CellWidth: 1, CellHeight: 2, HostText: true}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// load starts source and runs frames until the lifecycle leaves Loading.
// It returns the time of the last frame.
func load(t *testing.T, c *Controller, source string) time.Time {
	t.Helper()
	if err := c.Start(context.Background(), source); err != nil {
		t.Fatalf("Start: %v", err)
	}
	now := epoch
	deadline := time.Now().Add(5 * time.Second)
	for c.Lifecycle().State() == StateLoading {
		if time.Now().After(deadline) {
			t.Fatalf("%s did not finish loading", source)
		}
		now = now.Add(frameStep)
		c.Frame(now)
		time.Sleep(time.Millisecond)
	}
	return now
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Camera.FOV = 0
	if _, err := New(cfg); err == nil {
		t.Error("New accepted a zero field of view")
	}
}

func TestControllerLoadsModel(t *testing.T) {
	c := newTestController(t, nil)
	now := load(t, c, "testdata/box.gltf")

	if got := c.Lifecycle().State(); got != StateLoaded {
		t.Fatalf("state = %s, want loaded", got)
	}
	hud := c.HUD()
	if hud.Visible(ElementLoadingContainer) {
		t.Error("loading container still visible")
	}
	if !hud.Visible(ElementModelInfo) || hud.Text(ElementModelName) != "box.gltf" {
		t.Errorf("model info visible %t name %q", hud.Visible(ElementModelInfo), hud.Text(ElementModelName))
	}
	if !hud.Visible(ElementConfetti) || hud.ParticleCount() != 100 {
		t.Errorf("confetti visible %t with %d particles", hud.Visible(ElementConfetti), hud.ParticleCount())
	}

	// A 2 unit cube at 60 degrees and 0.6 fill.
	if d := c.View().Controls.Distance(); math.Abs(d-2.4) > 1e-6 {
		t.Errorf("distance = %v, want 2.4", d)
	}
	if c.View().Mixer == nil {
		t.Error("clip not playing")
	}

	c.Frame(now.Add(5 * time.Second))
	if hud.ParticleCount() != 0 || hud.Visible(ElementConfetti) {
		t.Error("confetti not cleaned up after its duration")
	}
}

func TestControllerStartTwice(t *testing.T) {
	c := newTestController(t, nil)
	load(t, c, "testdata/box.gltf")
	if err := c.Start(context.Background(), "testdata/box.gltf"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Start err = %v, want ErrInvalidTransition", err)
	}
}

func TestControllerLoadFailure(t *testing.T) {
	c := newTestController(t, nil)
	now := load(t, c, "testdata/missing.glb")

	if got := c.Lifecycle().State(); got != StateFailed {
		t.Fatalf("state = %s, want failed", got)
	}
	if got := c.HUD().Text(ElementLoadingInfo); got != FailedText {
		t.Errorf("status = %q, want %q", got, FailedText)
	}
	var le *LoadError
	if err := c.Lifecycle().Err(); !errors.As(err, &le) || le.Source != "testdata/missing.glb" {
		t.Errorf("Err() = %v, want *LoadError for testdata/missing.glb", err)
	}
	if !errors.Is(c.Lifecycle().Err(), fs.ErrNotExist) {
		t.Errorf("Err() = %v, want to wrap fs.ErrNotExist", c.Lifecycle().Err())
	}
	// The loop keeps running on an empty stage.
	if !c.Frame(now.Add(frameStep)) {
		t.Error("Frame stopped after a failed load")
	}
	if c.View().Subject != nil {
		t.Error("subject attached after failure")
	}
}

func TestControllerResize(t *testing.T) {
	c := newTestController(t, nil)
	load(t, c, "testdata/box.gltf")
	view := c.View()
	camPos := view.Camera.Position
	pos, rot, scale := view.Subject.Position, view.Subject.Rotation, view.Subject.Scale

	tests := []struct {
		w, h int
	}{
		{120, 40},
		{33, 77},
		{1, 1},
	}
	for _, tt := range tests {
		c.Resize(tt.w, tt.h)
		fb := c.Framebuffer()
		if fb.Width != tt.w || fb.Height != tt.h || len(fb.Pixels) != tt.w*tt.h {
			t.Errorf("Resize(%d, %d): framebuffer %dx%d", tt.w, tt.h, fb.Width, fb.Height)
		}
		if want := float64(tt.w) / float64(tt.h); view.Camera.AspectRatio != want {
			t.Errorf("Resize(%d, %d): aspect %v, want %v", tt.w, tt.h, view.Camera.AspectRatio, want)
		}
		if view.Camera.Position != camPos {
			t.Errorf("Resize moved the camera to %v", view.Camera.Position)
		}
		s := view.Subject
		if s.Position != pos || s.Rotation != rot || s.Scale != scale {
			t.Error("Resize changed the subject transform")
		}
	}

	c.Resize(0, 10)
	c.Resize(10, -1)
	if fb := c.Framebuffer(); fb.Width != 1 || fb.Height != 1 {
		t.Errorf("non-positive Resize changed the framebuffer to %dx%d", fb.Width, fb.Height)
	}

	c.HandleEvent(display.ResizeEvent{Width: 64, Height: 48})
	if fb := c.Framebuffer(); fb.Width != 64 || fb.Height != 48 {
		t.Errorf("ResizeEvent gave %dx%d", fb.Width, fb.Height)
	}
}

func TestControllerResetView(t *testing.T) {
	c := newTestController(t, nil)
	now := load(t, c, "testdata/box.gltf")
	cam := c.View().Camera

	// Wander off first.
	c.View().Controls.Rotate(0.2, 0.1)
	c.View().Controls.Pan(0.3, 0.2)
	c.Do(ZoomOut)
	for range 30 {
		now = now.Add(frameStep)
		c.Frame(now)
	}

	c.Do(ResetView)
	first := cam.Position
	if !first.ApproxEqual(math3d.V3(0, 0, 2.4), 1e-6) {
		t.Errorf("camera at %v after reset, want (0,0,2.4)", first)
	}
	if f := cam.Forward(); !f.ApproxEqual(math3d.V3(0, 0, -1), 1e-6) {
		t.Errorf("camera looks along %v, want the origin", f)
	}

	c.Do(ResetView)
	if !cam.Position.ApproxEqual(first, 1e-12) {
		t.Errorf("second reset moved the camera from %v to %v", first, cam.Position)
	}
	c.Frame(now.Add(frameStep))
	if !cam.Position.ApproxEqual(first, 1e-9) {
		t.Errorf("camera drifted to %v after reset", cam.Position)
	}
}

func TestControllerResetViewWithoutModel(t *testing.T) {
	c := newTestController(t, nil)
	c.Do(ZoomOut)
	c.Frame(epoch)
	c.Do(ResetView)
	if got := c.View().Camera.Position; !got.ApproxEqual(math3d.V3(0, 0, 5), 1e-9) {
		t.Errorf("camera at %v, want the configured start", got)
	}
}

func TestControllerKeys(t *testing.T) {
	c := newTestController(t, nil)
	controls := c.View().Controls
	key := func(k string) { c.HandleEvent(display.KeyEvent{Key: k}) }

	key("a")
	if !controls.AutoRotate || !c.HUD().active[ElementToggleRotation] {
		t.Error("a did not turn auto-rotate on")
	}
	key("m")
	if controls.Enabled || c.HUD().active[ElementToggleMovement] {
		t.Error("m did not disable movement")
	}

	d := controls.Distance()
	key("+")
	if got := controls.Distance(); math.Abs(got-d*0.9) > 1e-9 {
		t.Errorf("+ set distance %v, want %v", got, d*0.9)
	}
	key("_")
	if got := controls.Distance(); math.Abs(got-d*0.9*1.1) > 1e-9 {
		t.Errorf("_ set distance %v, want %v", got, d*0.9*1.1)
	}

	key("?")
	if !c.HUD().ShowStats {
		t.Error("? did not show stats")
	}
	key("x")

	if !c.Frame(epoch) {
		t.Fatal("Frame stopped before quit")
	}
	key("esc")
	if c.Frame(epoch.Add(frameStep)) {
		t.Error("Frame kept running after esc")
	}
}

func TestControllerHUDButtons(t *testing.T) {
	c := newTestController(t, nil)
	c.Frame(epoch)

	click := func(el Element) {
		for _, b := range c.HUD().buttons {
			if b.el == el {
				x, y := b.rect.Min.X, b.rect.Min.Y
				c.HandleEvent(display.PointerEvent{Kind: display.PointerDown, X: x, Y: y, Button: display.ButtonLeft})
				c.HandleEvent(display.PointerEvent{Kind: display.PointerUp, X: x, Y: y, Button: display.ButtonLeft})
				return
			}
		}
		t.Fatalf("no %s button", el)
	}

	click(ElementToggleRotation)
	if !c.View().Controls.AutoRotate {
		t.Error("rotate button did not toggle auto-rotate")
	}
	d := c.View().Controls.Distance()
	click(ElementZoomOut)
	if got := c.View().Controls.Distance(); math.Abs(got-d*1.1) > 1e-9 {
		t.Errorf("zoom out button set distance %v, want %v", got, d*1.1)
	}

	// Releasing off the button cancels the click.
	rect := c.HUD().buttons[1].rect
	c.HandleEvent(display.PointerEvent{Kind: display.PointerDown, X: rect.Min.X, Y: rect.Min.Y, Button: display.ButtonLeft})
	c.HandleEvent(display.PointerEvent{Kind: display.PointerUp, X: 0, Y: 0, Button: display.ButtonLeft})
	if !c.View().Controls.Enabled {
		t.Error("click released off the button still ran")
	}
}

func TestControllerDragAndWheel(t *testing.T) {
	c := newTestController(t, func(cfg *config.Config) { cfg.Controls.Damping = false })
	cam := c.View().Camera
	c.Frame(epoch)
	start := cam.Position

	c.HandleEvent(display.PointerEvent{Kind: display.PointerDown, X: 10, Y: 10, Button: display.ButtonLeft})
	c.HandleEvent(display.PointerEvent{Kind: display.PointerMove, X: 25, Y: 10, Button: display.ButtonLeft})
	c.HandleEvent(display.PointerEvent{Kind: display.PointerUp, X: 25, Y: 10, Button: display.ButtonLeft})
	c.Frame(epoch.Add(frameStep))
	if cam.Position.ApproxEqual(start, 1e-9) {
		t.Error("left drag did not orbit")
	}
	if math.Abs(cam.Position.Len()-5) > 1e-9 {
		t.Errorf("orbit changed the distance to %v", cam.Position.Len())
	}

	// Moving without a button held does nothing.
	moved := cam.Position
	c.HandleEvent(display.PointerEvent{Kind: display.PointerMove, X: 70, Y: 50})
	c.Frame(epoch.Add(2 * frameStep))
	if !cam.Position.ApproxEqual(moved, 1e-9) {
		t.Error("hover moved the camera")
	}

	c.HandleEvent(display.PointerEvent{Kind: display.PointerWheel, X: 40, Y: 30, Delta: 1})
	if got := c.View().Controls.Distance(); math.Abs(got-5*wheelScale) > 1e-9 {
		t.Errorf("wheel up set distance %v, want %v", got, 5*wheelScale)
	}
}

func TestControllerPointerFallback(t *testing.T) {
	c := newTestController(t, nil)
	now := load(t, c, "testdata/box.gltf")
	s := c.View().Subject

	// Orbiting on: pointer leaves the model alone.
	c.HandleEvent(display.PointerEvent{Kind: display.PointerMove, X: 40, Y: 30})
	c.Frame(now.Add(frameStep))
	if s.Rotation != (math3d.Vec3{}) {
		t.Fatalf("rotation = %v with orbit controls on", s.Rotation)
	}

	c.Do(ToggleMovement)
	c.HandleEvent(display.PointerEvent{Kind: display.PointerMove, X: 40, Y: 30})
	c.Frame(now.Add(2 * frameStep))
	want := math3d.V3(-1.2+30*2.5/60, -3+40.0/80*3, 0)
	if !s.Rotation.ApproxEqual(want, 1e-12) {
		t.Errorf("rotation = %v, want %v", s.Rotation, want)
	}
}

func TestControllerPointerFallbackCentred(t *testing.T) {
	c := newTestController(t, nil)
	now := load(t, c, "testdata/box.gltf")
	c.Resize(100, 40)
	c.Do(ToggleMovement)
	c.Frame(now.Add(frameStep))

	// No pointer input yet: the model faces the viewport centre.
	want := math3d.V3(-1.2+20*2.5/40, -3+50.0/100*3, 0)
	if s := c.View().Subject; !s.Rotation.ApproxEqual(want, 1e-12) {
		t.Errorf("rotation = %v, want %v", s.Rotation, want)
	}

	// Once the pointer has moved, resizing keeps its position.
	c.HandleEvent(display.PointerEvent{Kind: display.PointerMove, X: 0, Y: 0})
	c.Resize(200, 80)
	c.Frame(now.Add(2 * frameStep))
	want = math3d.V3(-1.2, -3, 0)
	if s := c.View().Subject; !s.Rotation.ApproxEqual(want, 1e-12) {
		t.Errorf("rotation = %v, want %v", s.Rotation, want)
	}
}

func TestControllerPointerFallbackWithoutModel(t *testing.T) {
	c := newTestController(t, nil)
	c.Do(ToggleMovement)
	c.HandleEvent(display.PointerEvent{Kind: display.PointerMove, X: 10, Y: 10})
	if !c.Frame(epoch) {
		t.Error("Frame stopped")
	}
}

// scriptHost resizes, runs a few frames, then presses q.
type scriptHost struct {
	frames int
}

func (h *scriptHost) Metrics() display.Metrics {
	return display.Metrics{CellWidth: 1, CellHeight: 2, HostText: true}
}

func (h *scriptHost) Run(ctx context.Context, app display.App) error {
	app.HandleEvent(display.ResizeEvent{Width: 40, Height: 30})
	now := epoch
	for {
		if ctx.Err() != nil {
			return nil
		}
		now = now.Add(frameStep)
		if !app.Frame(now) {
			return nil
		}
		h.frames++
		if h.frames == 3 {
			app.HandleEvent(display.KeyEvent{Key: "q"})
		}
	}
}

func TestControllerRun(t *testing.T) {
	c := newTestController(t, nil)
	if err := c.Start(context.Background(), "testdata/box.gltf"); err != nil {
		t.Fatal(err)
	}
	host := &scriptHost{}
	if err := c.Run(context.Background(), host); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if host.frames != 3 {
		t.Errorf("host ran %d frames, want 3", host.frames)
	}
	if fb := c.Framebuffer(); fb.Width != 40 || fb.Height != 30 {
		t.Errorf("framebuffer %dx%d, want the host size", fb.Width, fb.Height)
	}
	select {
	case <-c.Lifecycle().Task().Done():
	case <-time.After(5 * time.Second):
		t.Error("load task still running after Run returned")
	}
	if c.timers.Len() != 0 {
		t.Errorf("%d timers pending after shutdown", c.timers.Len())
	}
}

func TestCommandString(t *testing.T) {
	for cmd, want := range map[Command]string{ToggleRotation: "toggle-rotation", ResetView: "reset-view", Quit: "quit", Command(42): "Command(42)"} {
		if got := cmd.String(); got != want {
			t.Errorf("Command(%d).String() = %q, want %q", int(cmd), got, want)
		}
	}
}

func BenchmarkControllerFrame(b *testing.B) {
	cfg := config.Default()
	cfg.Display.Width, cfg.Display.Height = 160, 96
	c, err := New(cfg, WithLogger(quietLogger()), WithStartTime(epoch))
	if err != nil {
		b.Fatal(err)
	}
	now := epoch
	for b.Loop() {
		now = now.Add(frameStep)
		c.Frame(now)
	}
}
