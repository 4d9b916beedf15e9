package viewer

import (
	"math"
	"testing"

	"github.com/taigrr/podium/internal/config"
	"github.com/taigrr/podium/pkg/math3d"
	"github.com/taigrr/podium/pkg/render"
)

func newTestControls(mutate func(*config.Controls)) (*OrbitControls, *render.Camera) {
	cfg := config.Default().Controls
	cfg.AutoRotate = false
	if mutate != nil {
		mutate(&cfg)
	}
	cam := render.NewCamera()
	cam.SetFOV(math.Pi / 3)
	cam.SetPosition(math3d.V3(0, 0, 5))
	cam.LookAt(math3d.Zero3())
	return NewOrbitControls(cam, cfg, 60), cam
}

func TestOrbitDistanceClamp(t *testing.T) {
	tests := []struct {
		name string
		set  float64
		want float64
	}{
		{"inside", 12, 12},
		{"below min", 0.5, 3},
		{"above max", 500, 100},
		{"at min", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, cam := newTestControls(nil)
			o.SetDistance(tt.set)
			if got := o.Distance(); got != tt.want {
				t.Errorf("Distance = %v, want %v", got, tt.want)
			}
			if got := cam.Position.Distance(o.Target()); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("camera distance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrbitZoomClamps(t *testing.T) {
	o, _ := newTestControls(nil)
	for range 100 {
		o.Zoom(0.5)
	}
	if o.Distance() != 3 {
		t.Errorf("Distance after zooming in = %v, want min 3", o.Distance())
	}
	for range 100 {
		o.Zoom(2)
	}
	if o.Distance() != 100 {
		t.Errorf("Distance after zooming out = %v, want max 100", o.Distance())
	}
	o.Zoom(0)
	o.Zoom(-1)
	if o.Distance() != 100 {
		t.Error("non-positive zoom changed the distance")
	}
}

func TestOrbitDampingDecays(t *testing.T) {
	o, cam := newTestControls(nil)
	o.Zoom(2) // goal 10 from 5

	prevGap := 5.0
	for i := range 240 {
		o.Update(1.0 / 60)
		gap := math.Abs(10 - cam.Position.Len())
		if gap > prevGap+1e-9 {
			t.Fatalf("frame %d: gap grew from %v to %v", i, prevGap, gap)
		}
		prevGap = gap
	}
	if prevGap > 1e-3 {
		t.Errorf("camera still %v from its goal after 4s", prevGap)
	}

	// One step moves only part of the way.
	o.Zoom(0.5)
	o.Update(1.0 / 60)
	if d := cam.Position.Len(); d <= 5 || d >= 10 {
		t.Errorf("first damped step landed at %v, want strictly between 5 and 10", d)
	}
}

func TestOrbitWithoutDampingSnaps(t *testing.T) {
	o, cam := newTestControls(func(c *config.Controls) { c.Damping = false })
	o.Zoom(2)
	o.Update(1.0 / 60)
	if d := cam.Position.Len(); math.Abs(d-10) > 1e-9 {
		t.Errorf("undamped distance = %v, want 10", d)
	}
}

func TestOrbitAutoRotateWhileDisabled(t *testing.T) {
	o, cam := newTestControls(func(c *config.Controls) {
		c.Damping = false
		c.AutoRotate = true
		c.AutoRotateSpeed = 1
	})
	o.Enabled = false

	// One turn per minute: 15 seconds is a quarter turn.
	for range 15 * 60 {
		o.Update(1.0 / 60)
	}
	want := math3d.V3(-5, 0, 0)
	if !cam.Position.ApproxEqual(want, 1e-6) {
		t.Errorf("camera at %v after a quarter turn, want %v", cam.Position, want)
	}
}

func TestOrbitInputGatedByEnabled(t *testing.T) {
	o, cam := newTestControls(func(c *config.Controls) { c.Damping = false })
	o.Enabled = false
	start := cam.Position

	o.Rotate(0.25, 0.1)
	o.Pan(0.5, 0.5)
	o.Dolly(0.5)
	o.Update(0)
	if !cam.Position.ApproxEqual(start, 1e-9) {
		t.Errorf("disabled controls moved the camera to %v", cam.Position)
	}

	// Zoom commands are not pointer input.
	o.Zoom(2)
	o.Update(0)
	if math.Abs(cam.Position.Len()-10) > 1e-9 {
		t.Errorf("Zoom ignored while disabled")
	}
}

func TestOrbitRotate(t *testing.T) {
	o, cam := newTestControls(func(c *config.Controls) { c.Damping = false })
	o.Rotate(-0.25, 0)
	o.Update(0)
	if !cam.Position.ApproxEqual(math3d.V3(5, 0, 0), 1e-9) {
		t.Errorf("camera at %v after a quarter drag, want (5,0,0)", cam.Position)
	}
	if f := cam.Forward(); !f.ApproxEqual(math3d.V3(-1, 0, 0), 1e-9) {
		t.Errorf("camera looks along %v, want the target", f)
	}

	// Dragging down raises the camera, stopping short of the pole.
	o.Rotate(0, 10)
	o.Update(0)
	if y := cam.Position.Y; y <= 0 || y >= 5 {
		t.Errorf("camera y = %v past the pole", y)
	}
}

func TestOrbitPanMovesTarget(t *testing.T) {
	o, cam := newTestControls(func(c *config.Controls) { c.Damping = false })
	o.Pan(0.1, 0)
	o.Update(0)
	if tgt := o.Target(); tgt.X >= 0 || math.Abs(tgt.Y) > 1e-9 {
		t.Errorf("dragging right moved the target to %v, want -X", tgt)
	}
	if got := cam.Position.Sub(o.Target()); !got.ApproxEqual(math3d.V3(0, 0, 5), 1e-9) {
		t.Errorf("pan changed the camera offset to %v", got)
	}

	noPan, _ := newTestControls(func(c *config.Controls) {
		c.Damping = false
		c.Pan = false
	})
	noPan.Pan(0.1, 0.1)
	noPan.Update(0)
	if !noPan.Target().ApproxEqual(math3d.Zero3(), 1e-12) {
		t.Error("Pan moved the target with panning off")
	}
}

func TestOrbitSaveAndReset(t *testing.T) {
	o, cam := newTestControls(nil)
	o.Rotate(0.2, 0.1)
	o.Pan(0.3, 0)
	o.Zoom(3)
	for range 60 {
		o.Update(1.0 / 60)
	}

	o.Reset()
	if !cam.Position.ApproxEqual(math3d.V3(0, 0, 5), 1e-9) || !o.Target().ApproxEqual(math3d.Zero3(), 1e-9) {
		t.Errorf("Reset left camera at %v target %v", cam.Position, o.Target())
	}
	// Reset settles immediately; the springs have nothing left to do.
	o.Update(1.0 / 60)
	if !cam.Position.ApproxEqual(math3d.V3(0, 0, 5), 1e-9) {
		t.Errorf("camera drifted to %v after Reset", cam.Position)
	}

	o.SetPosition(math3d.V3(0, 0, 8))
	o.SaveState()
	o.SetDistance(20)
	o.Reset()
	if math.Abs(cam.Position.Len()-8) > 1e-9 {
		t.Errorf("Reset restored distance %v, want the saved 8", cam.Position.Len())
	}
}

func BenchmarkOrbitUpdate(b *testing.B) {
	o, _ := newTestControls(func(c *config.Controls) { c.AutoRotate = true })
	for b.Loop() {
		o.Update(1.0 / 60)
	}
}
