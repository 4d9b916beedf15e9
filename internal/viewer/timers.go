package viewer

import (
	"slices"
	"time"
)

// Timers is a frame-driven timer wheel. Callbacks run inside Advance, on the
// goroutine that owns the viewport, so they may touch viewer state freely.
type Timers struct {
	now     time.Time
	pending []*Timer
}

// Timer is a handle to one scheduled callback.
type Timer struct {
	due    time.Time
	fn     func()
	timers *Timers // nil once fired or stopped
}

// NewTimers returns a wheel whose clock starts at now.
func NewTimers(now time.Time) *Timers {
	return &Timers{now: now}
}

// Now returns the time of the last Advance.
func (t *Timers) Now() time.Time {
	return t.now
}

// AfterFunc schedules fn to run on the first Advance at or after Now()+d.
func (t *Timers) AfterFunc(d time.Duration, fn func()) *Timer {
	tm := &Timer{due: t.now.Add(d), fn: fn, timers: t}
	t.pending = append(t.pending, tm)
	return tm
}

// Advance moves the clock to now and runs every due callback in due order.
// The clock never moves backwards. It returns the number of callbacks run.
func (t *Timers) Advance(now time.Time) int {
	if now.After(t.now) {
		t.now = now
	}

	var due []*Timer
	t.pending = slices.DeleteFunc(t.pending, func(tm *Timer) bool {
		if tm.due.After(t.now) {
			return false
		}
		due = append(due, tm)
		return true
	})
	slices.SortStableFunc(due, func(a, b *Timer) int { return a.due.Compare(b.due) })

	fired := 0
	for _, tm := range due {
		// An earlier callback may have stopped it.
		if tm.timers == nil {
			continue
		}
		tm.timers = nil
		tm.fn()
		fired++
	}
	return fired
}

// Len returns the number of pending timers.
func (t *Timers) Len() int {
	return len(t.pending)
}

// StopAll cancels every pending timer without running it.
func (t *Timers) StopAll() {
	for _, tm := range t.pending {
		tm.timers = nil
	}
	t.pending = nil
}

// Stop prevents the timer from firing. It reports whether the call stopped
// the timer, false if it already fired or was stopped.
func (tm *Timer) Stop() bool {
	t := tm.timers
	if t == nil {
		return false
	}
	tm.timers = nil
	t.pending = slices.DeleteFunc(t.pending, func(p *Timer) bool { return p == tm })
	return true
}
