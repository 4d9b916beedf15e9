// Package viewer shows one glTF model: it loads it in the background,
// frames the camera on it, fires confetti when it arrives and lets the user
// orbit around it. A display.Host drives the Controller once per refresh.
package viewer

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/taigrr/podium/internal/config"
	"github.com/taigrr/podium/internal/display"
	"github.com/taigrr/podium/pkg/math3d"
	"github.com/taigrr/podium/pkg/render"
)

// Command is a viewer action bound to a key or a HUD button.
type Command int

const (
	ToggleRotation Command = iota
	ToggleMovement
	ZoomIn
	ZoomOut
	ResetView
	ToggleHUD
	Quit
)

func (c Command) String() string {
	switch c {
	case ToggleRotation:
		return "toggle-rotation"
	case ToggleMovement:
		return "toggle-movement"
	case ZoomIn:
		return "zoom-in"
	case ZoomOut:
		return "zoom-out"
	case ResetView:
		return "reset-view"
	case ToggleHUD:
		return "toggle-hud"
	case Quit:
		return "quit"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// Zoom steps for the zoom commands.
const (
	zoomInScale  = 0.9
	zoomOutScale = 1.1
	wheelScale   = 0.95 // per wheel notch
	keyOrbit     = 1.0 / 36
	maxFrameStep = 0.1 // seconds
)

// keyCommands binds keys to commands.
var keyCommands = map[string]Command{
	"a":      ToggleRotation,
	"m":      ToggleMovement,
	"+":      ZoomIn,
	"=":      ZoomIn,
	"-":      ZoomOut,
	"_":      ZoomOut,
	"r":      ResetView,
	"?":      ToggleHUD,
	"q":      Quit,
	"esc":    Quit,
	"ctrl+c": Quit,
}

// buttonCommands binds HUD buttons to commands.
var buttonCommands = map[Element]Command{
	ElementToggleRotation: ToggleRotation,
	ElementToggleMovement: ToggleMovement,
	ElementZoomIn:         ZoomIn,
	ElementZoomOut:        ZoomOut,
	ElementResetView:      ResetView,
}

type options struct {
	logger  *log.Logger
	metrics display.Metrics
	rng     *rand.Rand
	start   time.Time
	client  *http.Client
}

// Option configures a Controller.
type Option func(*options)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the host's text metrics.
func WithMetrics(m display.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRand sets the confetti random source.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithStartTime sets the timer clock origin. The default is time.Now().
func WithStartTime(t time.Time) Option {
	return func(o *options) { o.start = t }
}

// WithHTTPClient sets the client used for http(s) models.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// pointer tracks the last pointer position and any drag or button press in
// progress. Until the first event it sits at the viewport centre.
type pointer struct {
	seen    bool
	x, y    int
	drag    display.Button
	pressed Element
	onHUD   bool
}

// Controller owns the viewport and runs the per-frame step. All methods
// must be called from one goroutine.
type Controller struct {
	cfg config.Config
	log *log.Logger

	view      *Viewport
	fb        *render.Framebuffer
	raster    *render.Rasterizer
	stage     *Stage
	hud       *HUD
	timers    *Timers
	confetti  *Confetti
	loader    *Loader
	lifecycle *Lifecycle

	pointer pointer
	labels  []display.Label
	last    time.Time
	quit    bool
}

// New builds a controller for cfg with an empty viewport.
func New(cfg config.Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := options{
		logger:  log.Default(),
		metrics: display.Metrics{CellWidth: render.TextWidth("M"), CellHeight: render.TextHeight()},
		start:   time.Now(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	w, h := cfg.Display.Width, cfg.Display.Height
	camera := render.NewCamera()
	camera.SetFOV(cfg.Camera.FOV * math.Pi / 180)
	camera.SetClipPlanes(cfg.Camera.Near, cfg.Camera.Far)
	camera.SetAspectRatio(float64(w) / float64(h))
	camera.SetPosition(math3d.V3(0, 0, cfg.Camera.Distance))
	camera.LookAt(math3d.Zero3())

	c := &Controller{
		cfg: cfg,
		log: o.logger,
		view: &Viewport{
			Camera:    camera,
			Controls:  NewOrbitControls(camera, cfg.Controls, cfg.Display.FPS),
			FOV:       cfg.Camera.FOV,
			FillRatio: cfg.Framing.FillRatio,
		},
		fb:     render.NewFramebuffer(w, h),
		stage:  NewStage(cfg.Stage),
		timers: NewTimers(o.start),
		loader: &Loader{Client: o.client, Log: o.logger},
	}
	c.raster = render.NewRasterizer(camera, c.fb)
	c.hud = NewHUD(HUDOptions{
		CellWidth:  o.metrics.CellWidth,
		CellHeight: o.metrics.CellHeight,
		HostText:   o.metrics.HostText,
		FPS:        cfg.Display.FPS,
		Fall:       cfg.Confetti.Fall,
	})
	c.hud.Layout(w, h)
	c.centrePointer()
	c.confetti = NewConfetti(c.hud, c.timers, o.rng)
	c.confetti.MaxDelay = cfg.Confetti.MaxDelay
	c.lifecycle = NewLifecycle(c.view, c.hud, c.confetti, LifecycleOptions{
		EnvBoost:         cfg.Stage.EnvBoost,
		ConfettiCount:    cfg.Confetti.Count,
		ConfettiDuration: cfg.Confetti.Duration,
	}, o.logger)
	c.syncButtons()
	return c, nil
}

// View returns the shared viewport state.
func (c *Controller) View() *Viewport { return c.view }

// HUD returns the on-screen UI.
func (c *Controller) HUD() *HUD { return c.hud }

// Lifecycle returns the load lifecycle.
func (c *Controller) Lifecycle() *Lifecycle { return c.lifecycle }

// Stage returns the scene dressing.
func (c *Controller) Stage() *Stage { return c.stage }

// Framebuffer implements display.App.
func (c *Controller) Framebuffer() *render.Framebuffer { return c.fb }

// Labels implements display.App.
func (c *Controller) Labels() []display.Label { return c.labels }

// Start begins loading source, a path or an http(s) URL. Only one model is
// ever loaded.
func (c *Controller) Start(ctx context.Context, source string) error {
	if s := c.lifecycle.State(); s != StateIdle {
		return fmt.Errorf("start from %s: %w", s, ErrInvalidTransition)
	}
	return c.lifecycle.Start(c.loader.Load(ctx, source))
}

// Resize sets the framebuffer to w by h pixels and matches the camera
// aspect. The camera position and the model are left alone.
func (c *Controller) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	c.fb.Resize(w, h)
	c.raster.Resize()
	c.view.Camera.SetAspectRatio(float64(w) / float64(h))
	c.hud.Layout(w, h)
	c.centrePointer()
}

func (c *Controller) centrePointer() {
	if !c.pointer.seen {
		c.pointer.x, c.pointer.y = c.fb.Width/2, c.fb.Height/2
	}
}

// Frame advances everything to now and renders. It returns false once Quit
// has run.
func (c *Controller) Frame(now time.Time) bool {
	if c.quit {
		return false
	}
	dt := 0.0
	if !c.last.IsZero() {
		dt = math.Max(0, math.Min(maxFrameStep, now.Sub(c.last).Seconds()))
	}
	c.last = now

	c.hud.Update(now)
	c.timers.Advance(now)
	c.drainLoader()

	c.view.Controls.Update(dt)
	if c.view.Mixer != nil {
		c.view.Mixer.Update(dt)
	}
	c.followPointer()
	if s := c.view.Subject; s != nil {
		s.UpdateWorld()
		c.hud.Stats = fmt.Sprintf("%d tris  %.1fu", s.TriangleCount(), c.view.Controls.Distance())
	}

	c.stage.Draw(c.raster, c.view.Subject)
	c.labels = c.hud.Draw(c.fb)
	return !c.quit
}

// drainLoader feeds every pending load event to the lifecycle.
func (c *Controller) drainLoader() {
	task := c.lifecycle.Task()
	if task == nil {
		return
	}
	for {
		select {
		case ev, ok := <-task.Events():
			if !ok {
				return
			}
			if err := c.lifecycle.Handle(ev); err != nil {
				c.log.Warn("load event dropped", "event", fmt.Sprintf("%T", ev), "err", err)
			}
		default:
			return
		}
	}
}

// followPointer turns the model toward the pointer while orbiting is off.
func (c *Controller) followPointer() {
	s := c.view.Subject
	if s == nil || c.view.Controls.Enabled {
		return
	}
	s.Rotation.Y = -3 + float64(c.pointer.x)/float64(c.fb.Width)*3
	s.Rotation.X = -1.2 + float64(c.pointer.y)*2.5/float64(c.fb.Height)
}

// HandleEvent implements display.App.
func (c *Controller) HandleEvent(ev display.Event) {
	switch ev := ev.(type) {
	case display.ResizeEvent:
		c.Resize(ev.Width, ev.Height)
	case display.KeyEvent:
		c.key(ev.Key)
	case display.PointerEvent:
		c.pointerEvent(ev)
	}
}

func (c *Controller) key(k string) {
	if cmd, ok := keyCommands[k]; ok {
		c.Do(cmd)
		return
	}
	switch k {
	case "left":
		c.view.Controls.Rotate(-keyOrbit, 0)
	case "right":
		c.view.Controls.Rotate(keyOrbit, 0)
	case "up":
		c.view.Controls.Rotate(0, -keyOrbit)
	case "down":
		c.view.Controls.Rotate(0, keyOrbit)
	}
}

func (c *Controller) pointerEvent(ev display.PointerEvent) {
	p := &c.pointer
	switch ev.Kind {
	case display.PointerDown:
		if el, ok := c.hud.ButtonAt(ev.X, ev.Y); ok && ev.Button == display.ButtonLeft {
			p.pressed, p.onHUD = el, true
		} else {
			p.drag = ev.Button
		}
	case display.PointerUp:
		if p.onHUD {
			if el, ok := c.hud.ButtonAt(ev.X, ev.Y); ok && el == p.pressed {
				c.Do(buttonCommands[el])
			}
		}
		p.onHUD = false
		p.drag = display.ButtonNone
	case display.PointerMove:
		if p.seen && p.drag != display.ButtonNone {
			h := float64(max(c.fb.Height, 1))
			dx := float64(ev.X-p.x) / h
			dy := float64(ev.Y-p.y) / h
			switch p.drag {
			case display.ButtonLeft:
				c.view.Controls.Rotate(dx, dy)
			case display.ButtonRight, display.ButtonMiddle:
				c.view.Controls.Pan(dx, dy)
			}
		}
	case display.PointerWheel:
		c.view.Controls.Dolly(math.Pow(wheelScale, ev.Delta))
	}
	p.x, p.y, p.seen = ev.X, ev.Y, true
}

// Do runs a command.
func (c *Controller) Do(cmd Command) {
	controls := c.view.Controls
	switch cmd {
	case ToggleRotation:
		controls.AutoRotate = !controls.AutoRotate
	case ToggleMovement:
		controls.Enabled = !controls.Enabled
	case ZoomIn:
		controls.Zoom(zoomInScale)
	case ZoomOut:
		controls.Zoom(zoomOutScale)
	case ResetView:
		c.resetView()
	case ToggleHUD:
		c.hud.ShowStats = !c.hud.ShowStats
	case Quit:
		c.quit = true
	}
	c.syncButtons()
	c.log.Debug("command", "cmd", cmd)
}

// resetView restores the saved orbit and, with a model attached, frames it
// again from the front.
func (c *Controller) resetView() {
	controls := c.view.Controls
	controls.Reset()
	if c.view.Subject == nil {
		return
	}
	d, err := c.view.FitDistance()
	if err != nil {
		c.log.Warn("cannot frame model", "err", err)
		return
	}
	controls.SetTarget(math3d.Zero3())
	controls.SetPosition(math3d.V3(0, 0, d))
	controls.apply()
}

func (c *Controller) syncButtons() {
	c.hud.SetActive(ElementToggleRotation, c.view.Controls.AutoRotate)
	c.hud.SetActive(ElementToggleMovement, c.view.Controls.Enabled)
}

// Run hands the controller to host until ctx is done or Quit runs, then
// shuts down.
func (c *Controller) Run(ctx context.Context, host display.Host) error {
	defer c.Shutdown()
	return host.Run(ctx, c)
}

// Shutdown cancels the load and every pending timer.
func (c *Controller) Shutdown() {
	if task := c.lifecycle.Task(); task != nil {
		task.Cancel()
	}
	c.confetti.StopAll()
	c.timers.StopAll()
}
