package viewer

import (
	"math/rand/v2"
	"slices"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Particle is one piece of confetti.
type Particle struct {
	Burst int
	X     float64       // percent of viewport width, [0, 100)
	Hue   float64       // degrees, [0, 360)
	Delay time.Duration // before the piece starts falling
	Color colorful.Color
}

// Confetti fires particle bursts into a UI element and removes each burst
// after its duration.
type Confetti struct {
	ui       UI
	timers   *Timers
	rng      *rand.Rand
	bursts   []*Burst
	nextID   int
	MaxDelay time.Duration
}

// Burst is one Fire call.
type Burst struct {
	ID        int
	Particles []Particle

	confetti *Confetti
	cleanup  *Timer
}

// NewConfetti returns a Confetti drawing into ui. A nil rng uses a randomly
// seeded source.
func NewConfetti(ui UI, timers *Timers, rng *rand.Rand) *Confetti {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Confetti{
		ui:       ui,
		timers:   timers,
		rng:      rng,
		MaxDelay: 3 * time.Second,
	}
}

// Fire shows count new particles and schedules their removal after duration.
// Bursts are independent: a later burst neither extends nor cancels an
// earlier one.
func (c *Confetti) Fire(count int, duration time.Duration) *Burst {
	c.nextID++
	b := &Burst{ID: c.nextID, confetti: c}

	b.Particles = make([]Particle, max(count, 0))
	for i := range b.Particles {
		hue := c.rng.Float64() * 360
		var delay time.Duration
		if c.MaxDelay > 0 {
			delay = time.Duration(c.rng.Int64N(int64(c.MaxDelay)))
		}
		b.Particles[i] = Particle{
			Burst: b.ID,
			X:     c.rng.Float64() * 100,
			Hue:   hue,
			Delay: delay,
			Color: colorful.Hsl(hue, 1, 0.5),
		}
	}

	c.ui.SetVisible(ElementConfetti, true)
	c.ui.AppendParticles(ElementConfetti, b.Particles)
	c.bursts = append(c.bursts, b)
	b.cleanup = c.timers.AfterFunc(duration, b.remove)
	return b
}

// Active returns the number of bursts still on screen.
func (c *Confetti) Active() int {
	return len(c.bursts)
}

// StopAll cancels every pending cleanup and removes all particles now.
func (c *Confetti) StopAll() {
	for _, b := range slices.Clone(c.bursts) {
		b.cleanup.Stop()
		b.remove()
	}
}

// Cancel stops the pending cleanup and removes the burst's particles now.
// It does nothing once the burst is gone.
func (b *Burst) Cancel() {
	if b.cleanup.Stop() {
		b.remove()
	}
}

func (b *Burst) remove() {
	c := b.confetti
	c.bursts = slices.DeleteFunc(c.bursts, func(o *Burst) bool { return o == b })
	c.ui.RemoveParticles(ElementConfetti, b.ID)
	if len(c.bursts) == 0 {
		c.ui.SetVisible(ElementConfetti, false)
	}
}
