package models

import "math"

// LoopMode controls what an action does when it reaches the clip end.
type LoopMode int

const (
	LoopRepeat LoopMode = iota // wrap to the start
	LoopOnce                   // hold the last frame and stop
)

// ClipAction is the playback state of one clip on a mixer.
type ClipAction struct {
	Clip      *Clip
	Loop      LoopMode
	TimeScale float64

	time    float64
	running bool
}

// Play starts or resumes the action.
func (a *ClipAction) Play() *ClipAction {
	a.running = true
	return a
}

// Stop halts the action and rewinds it.
func (a *ClipAction) Stop() {
	a.running = false
	a.time = 0
}

// IsRunning reports whether the action advances on Update.
func (a *ClipAction) IsRunning() bool {
	return a.running
}

// Time returns the local clip time in seconds.
func (a *ClipAction) Time() float64 {
	return a.time
}

func (a *ClipAction) advance(dt float64) {
	a.time += dt * a.TimeScale
	d := a.Clip.Duration
	if d <= 0 {
		a.time = 0
		return
	}
	switch a.Loop {
	case LoopOnce:
		if a.time >= d {
			a.time = d
			a.running = false
		}
	default:
		a.time = math.Mod(a.time, d)
		if a.time < 0 {
			a.time += d
		}
	}
}

// Mixer advances clip actions bound to one scene.
type Mixer struct {
	scene   *Scene
	actions []*ClipAction
	time    float64
}

// NewMixer binds a mixer to s.
func NewMixer(s *Scene) *Mixer {
	return &Mixer{scene: s}
}

// ClipAction returns the action for c, creating it on first use.
func (m *Mixer) ClipAction(c *Clip) *ClipAction {
	for _, a := range m.actions {
		if a.Clip == c {
			return a
		}
	}
	a := &ClipAction{Clip: c, Loop: LoopRepeat, TimeScale: 1}
	m.actions = append(m.actions, a)
	return a
}

// Time returns the total time the mixer has advanced.
func (m *Mixer) Time() float64 {
	return m.time
}

// Update advances every running action by dt seconds, writes the sampled
// values into the nodes and refreshes world matrices.
func (m *Mixer) Update(dt float64) {
	m.time += dt
	touched := false
	for _, a := range m.actions {
		if !a.running {
			continue
		}
		a.advance(dt)
		for i := range a.Clip.Tracks {
			a.Clip.Tracks[i].Apply(a.time)
		}
		touched = true
	}
	if touched && m.scene != nil {
		m.scene.UpdateWorld()
	}
}
