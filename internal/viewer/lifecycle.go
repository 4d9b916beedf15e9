package viewer

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/taigrr/podium/pkg/models"
	"github.com/taigrr/podium/pkg/render"
)

// State is a load lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrInvalidTransition is returned for an event the current state does
	// not accept.
	ErrInvalidTransition = errors.New("invalid load state transition")
	// ErrSubjectAttached is returned when a second model is attached.
	ErrSubjectAttached = errors.New("a model is already attached")
)

// errorColor is the status color after a failed load.
var errorColor = colorful.Color{R: 1, G: 0, B: 0}

// FailedText is shown in place of the progress when a load fails.
const FailedText = "Error loading model"

// Viewport is the state the lifecycle and the controller share: one camera,
// its controls, and at most one subject.
type Viewport struct {
	Camera   *render.Camera
	Controls *OrbitControls
	Subject  *models.Scene
	Mixer    *models.Mixer

	FOV       float64 // vertical, degrees
	FillRatio float64
}

// Attach makes s the subject. There is no detach.
func (v *Viewport) Attach(s *models.Scene) error {
	if v.Subject != nil {
		return ErrSubjectAttached
	}
	v.Subject = s
	return nil
}

// FitDistance frames the subject's current bounds. It returns the fitted
// distance; errors leave the camera where it is.
func (v *Viewport) FitDistance() (float64, error) {
	if v.Subject == nil {
		return 0, ErrDegenerateGeometry
	}
	box, ok := v.Subject.Bounds()
	if !ok {
		return 0, ErrDegenerateGeometry
	}
	return Fit(box.Size(), v.FOV, v.FillRatio)
}

// LifecycleOptions are the side effects a successful load triggers.
type LifecycleOptions struct {
	EnvBoost         float64
	ConfettiCount    int
	ConfettiDuration time.Duration
}

// Lifecycle sequences one model load: Idle, Loading, then Loaded or Failed
// for good.
type Lifecycle struct {
	state    State
	view     *Viewport
	ui       UI
	confetti *Confetti
	opts     LifecycleOptions
	log      *log.Logger
	task     *LoadTask
	err      error
}

// NewLifecycle returns an idle lifecycle.
func NewLifecycle(view *Viewport, ui UI, confetti *Confetti, opts LifecycleOptions, logger *log.Logger) *Lifecycle {
	if logger == nil {
		logger = log.Default()
	}
	return &Lifecycle{view: view, ui: ui, confetti: confetti, opts: opts, log: logger}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.state
}

// Err returns the reason the load failed, nil unless the state is
// StateFailed.
func (l *Lifecycle) Err() error {
	return l.err
}

// Task returns the running load task, nil before Start.
func (l *Lifecycle) Task() *LoadTask {
	return l.task
}

// Start moves Idle to Loading. The lifecycle does not read task events
// itself; the owner feeds them to Handle.
func (l *Lifecycle) Start(task *LoadTask) error {
	if l.state != StateIdle {
		return fmt.Errorf("start from %s: %w", l.state, ErrInvalidTransition)
	}
	l.state = StateLoading
	l.task = task
	l.ui.SetVisible(ElementLoadingContainer, true)
	l.log.Info("loading model", "source", task.Source)
	return nil
}

// Handle applies one load event.
func (l *Lifecycle) Handle(ev LoadEvent) error {
	switch ev := ev.(type) {
	case Progress:
		l.progress(ev)
		return nil
	case Loaded:
		return l.loaded(ev.Scene)
	case Failed:
		return l.failed(ev.Err)
	default:
		return fmt.Errorf("unknown load event %T", ev)
	}
}

func (l *Lifecycle) progress(p Progress) {
	if l.state != StateLoading {
		return
	}
	pct, ok := p.Percent()
	if !ok {
		return
	}
	l.ui.SetWidthPercent(ElementLoadingProgress, float64(pct))
	l.ui.SetText(ElementLoadingPercentage, fmt.Sprintf("%d%%", pct))
}

func (l *Lifecycle) loaded(scene *models.Scene) error {
	if l.state != StateLoading {
		return fmt.Errorf("loaded from %s: %w", l.state, ErrInvalidTransition)
	}
	if err := l.view.Attach(scene); err != nil {
		return err
	}
	l.state = StateLoaded
	l.ui.SetVisible(ElementLoadingContainer, false)

	// Shadows on, environment boosted once per material in use.
	boosted := make(map[int]bool)
	for _, n := range scene.MeshNodes() {
		n.CastShadow = true
		n.ReceiveShadow = true
		for _, mi := range n.Mesh.MaterialIndices() {
			if m := scene.Material(mi); m != nil && !boosted[mi] {
				m.EnvMapIntensity *= l.opts.EnvBoost
				boosted[mi] = true
			}
		}
	}

	if box, ok := scene.Bounds(); ok {
		scene.Position = scene.Position.Sub(box.Center())
		scene.UpdateWorld()
	}

	if d, err := l.view.FitDistance(); err != nil {
		l.log.Warn("cannot frame model", "source", scene.Source, "err", err)
	} else {
		l.view.Controls.SetDistance(d)
	}

	if len(scene.Animations) > 0 {
		l.view.Mixer = models.NewMixer(scene)
		l.view.Mixer.ClipAction(scene.Animations[0]).Play()
	}

	name := models.DisplayName(scene.Source)
	l.ui.SetVisible(ElementModelInfo, true)
	l.ui.SetText(ElementModelName, name)

	l.confetti.Fire(l.opts.ConfettiCount, l.opts.ConfettiDuration)

	l.log.Info("model loaded",
		"name", name,
		"triangles", scene.TriangleCount(),
		"materials", len(scene.Materials),
		"clips", len(scene.Animations),
		"distance", l.view.Controls.Distance(),
	)
	return nil
}

func (l *Lifecycle) failed(err error) error {
	if l.state != StateLoading {
		return fmt.Errorf("failed from %s: %w", l.state, ErrInvalidTransition)
	}
	l.state = StateFailed
	l.err = err
	l.log.Error("error loading model", "err", err)
	l.ui.SetText(ElementLoadingInfo, FailedText)
	l.ui.SetColor(ElementLoadingInfo, errorColor)
	return nil
}
