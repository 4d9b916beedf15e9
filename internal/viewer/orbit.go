package viewer

import (
	"math"

	"github.com/charmbracelet/harmonica"
	"github.com/taigrr/podium/internal/config"
	"github.com/taigrr/podium/pkg/math3d"
	"github.com/taigrr/podium/pkg/render"
)

// Polar angle limits keep the camera off the poles, where LookAt degenerates.
const (
	minPolar = 1e-3
	maxPolar = math.Pi - 1e-3
)

// damped is one spherical coordinate eased toward its goal by a spring.
type damped struct {
	pos, vel, goal float64
}

func (d *damped) update(s harmonica.Spring, enabled bool) {
	if !enabled {
		d.pos, d.vel = d.goal, 0
		return
	}
	d.pos, d.vel = s.Update(d.pos, d.vel, d.goal)
}

func (d *damped) set(v float64) {
	d.pos, d.vel, d.goal = v, 0, v
}

// OrbitControls moves a camera on a sphere around Target. Input sets goals;
// Update eases the camera toward them.
type OrbitControls struct {
	camera *render.Camera

	// Enabled gates user input. Auto-rotate and damping run regardless.
	Enabled         bool
	EnableDamping   bool
	EnablePan       bool
	AutoRotate      bool
	AutoRotateSpeed float64 // 1 is one turn per minute
	RotateSpeed     float64
	MinDistance     float64
	MaxDistance     float64

	spring harmonica.Spring

	// Spherical offset from the target: theta around +Y from +Z, phi from +Y.
	theta, phi, radius damped
	tx, ty, tz         damped

	savedTarget   math3d.Vec3
	savedPosition math3d.Vec3
}

// NewOrbitControls attaches controls to camera, orbiting the origin from the
// camera's current position. fps sets the spring's time step.
func NewOrbitControls(camera *render.Camera, cfg config.Controls, fps int) *OrbitControls {
	o := &OrbitControls{
		camera:          camera,
		Enabled:         true,
		EnableDamping:   cfg.Damping,
		EnablePan:       cfg.Pan,
		AutoRotate:      cfg.AutoRotate,
		AutoRotateSpeed: cfg.AutoRotateSpeed,
		RotateSpeed:     cfg.RotateSpeed,
		MinDistance:     cfg.MinDistance,
		MaxDistance:     cfg.MaxDistance,
		// Critically damped, no overshoot
		spring: harmonica.NewSpring(harmonica.FPS(max(fps, 1)), cfg.DampingFrequency, 1.0),
	}
	o.SetPosition(camera.Position)
	o.SaveState()
	o.apply()
	return o
}

// Target returns the point the camera looks at.
func (o *OrbitControls) Target() math3d.Vec3 {
	return math3d.V3(o.tx.pos, o.ty.pos, o.tz.pos)
}

// Distance returns the distance the camera is settling toward.
func (o *OrbitControls) Distance() float64 {
	return o.radius.goal
}

// SetTarget moves the orbit center immediately, keeping the camera's offset.
func (o *OrbitControls) SetTarget(t math3d.Vec3) {
	o.tx.set(t.X)
	o.ty.set(t.Y)
	o.tz.set(t.Z)
}

// SetPosition places the camera immediately. The distance is clamped.
func (o *OrbitControls) SetPosition(p math3d.Vec3) {
	offset := p.Sub(o.Target())
	r := offset.Len()
	theta, phi := 0.0, math.Pi/2
	if r > 0 {
		theta = math.Atan2(offset.X, offset.Z)
		phi = math.Acos(math.Max(-1, math.Min(1, offset.Y/r)))
	}
	o.theta.set(theta)
	o.phi.set(o.clampPolar(phi))
	o.radius.set(o.clampDistance(r))
}

// SetDistance moves the camera along its current view axis to d, clamped to
// [MinDistance, MaxDistance]. It ignores Enabled.
func (o *OrbitControls) SetDistance(d float64) {
	o.radius.set(o.clampDistance(d))
	o.apply()
}

// Zoom scales the goal distance. It ignores Enabled.
func (o *OrbitControls) Zoom(scale float64) {
	if scale <= 0 {
		return
	}
	o.radius.goal = o.clampDistance(o.radius.goal * scale)
}

// Rotate orbits by a pointer drag, given as fractions of the viewport
// height. A full-height drag turns a full circle.
func (o *OrbitControls) Rotate(dx, dy float64) {
	if !o.Enabled {
		return
	}
	o.theta.goal -= 2 * math.Pi * dx * o.RotateSpeed
	o.phi.goal = o.clampPolar(o.phi.goal - 2*math.Pi*dy*o.RotateSpeed)
}

// Pan slides the target in the view plane, given as fractions of the
// viewport height, so a point under the pointer stays under it.
func (o *OrbitControls) Pan(dx, dy float64) {
	if !o.Enabled || !o.EnablePan {
		return
	}
	visible := 2 * o.radius.goal * math.Tan(o.camera.FOV/2)
	move := o.camera.Right().Scale(-dx * visible).Add(o.camera.Up().Scale(dy * visible))
	o.tx.goal += move.X
	o.ty.goal += move.Y
	o.tz.goal += move.Z
}

// Dolly scales the distance from wheel input. Scale below 1 moves closer.
func (o *OrbitControls) Dolly(scale float64) {
	if !o.Enabled {
		return
	}
	o.Zoom(scale)
}

// SaveState records the current target and camera position for Reset.
func (o *OrbitControls) SaveState() {
	o.savedTarget = o.Target()
	o.savedPosition = o.position()
}

// Reset restores the state from the last SaveState immediately.
func (o *OrbitControls) Reset() {
	o.SetTarget(o.savedTarget)
	o.SetPosition(o.savedPosition)
	o.apply()
}

// Update advances auto-rotation by dt seconds, steps the springs and places
// the camera.
func (o *OrbitControls) Update(dt float64) {
	if o.AutoRotate {
		o.theta.goal -= 2 * math.Pi / 60 * o.AutoRotateSpeed * dt
	}
	o.radius.goal = o.clampDistance(o.radius.goal)

	for _, d := range []*damped{&o.theta, &o.phi, &o.radius, &o.tx, &o.ty, &o.tz} {
		d.update(o.spring, o.EnableDamping)
	}
	o.apply()
}

func (o *OrbitControls) position() math3d.Vec3 {
	r, phi, theta := o.radius.pos, o.phi.pos, o.theta.pos
	offset := math3d.V3(
		r*math.Sin(phi)*math.Sin(theta),
		r*math.Cos(phi),
		r*math.Sin(phi)*math.Cos(theta),
	)
	return o.Target().Add(offset)
}

// apply writes the current state to the camera.
func (o *OrbitControls) apply() {
	o.camera.SetPosition(o.position())
	o.camera.LookAt(o.Target())
}

func (o *OrbitControls) clampDistance(d float64) float64 {
	if o.MinDistance > 0 {
		d = math.Max(d, o.MinDistance)
	}
	if o.MaxDistance > 0 {
		d = math.Min(d, o.MaxDistance)
	}
	return d
}

func (o *OrbitControls) clampPolar(phi float64) float64 {
	return math.Max(minPolar, math.Min(maxPolar, phi))
}
