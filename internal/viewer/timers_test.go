package viewer

import (
	"slices"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTimersFireInDueOrder(t *testing.T) {
	timers := NewTimers(epoch)
	var got []int
	timers.AfterFunc(3*time.Second, func() { got = append(got, 3) })
	timers.AfterFunc(time.Second, func() { got = append(got, 1) })
	timers.AfterFunc(2*time.Second, func() { got = append(got, 2) })

	if n := timers.Advance(epoch.Add(500 * time.Millisecond)); n != 0 {
		t.Fatalf("Advance before any due time fired %d", n)
	}
	if n := timers.Advance(epoch.Add(5 * time.Second)); n != 3 {
		t.Fatalf("Advance fired %d, want 3", n)
	}
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("fire order = %v, want [1 2 3]", got)
	}
	if timers.Len() != 0 {
		t.Errorf("Len = %d after firing everything", timers.Len())
	}
}

func TestTimersFireAtDueTime(t *testing.T) {
	timers := NewTimers(epoch)
	fired := 0
	timers.AfterFunc(time.Second, func() { fired++ })

	timers.Advance(epoch.Add(time.Second - time.Nanosecond))
	if fired != 0 {
		t.Fatal("timer fired early")
	}
	timers.Advance(epoch.Add(time.Second))
	if fired != 1 {
		t.Fatalf("fired = %d at the due time, want 1", fired)
	}
	timers.Advance(epoch.Add(time.Hour))
	if fired != 1 {
		t.Errorf("fired = %d, want exactly once", fired)
	}
}

func TestTimersClockIsMonotonic(t *testing.T) {
	timers := NewTimers(epoch)
	timers.Advance(epoch.Add(2 * time.Second))
	timers.Advance(epoch.Add(time.Second))
	if got := timers.Now(); !got.Equal(epoch.Add(2 * time.Second)) {
		t.Errorf("Now = %v after a backwards Advance", got)
	}

	// New timers are relative to the latest clock.
	fired := false
	timers.AfterFunc(time.Second, func() { fired = true })
	timers.Advance(epoch.Add(2500 * time.Millisecond))
	if fired {
		t.Error("timer scheduled at 2s fired at 2.5s")
	}
	timers.Advance(epoch.Add(3 * time.Second))
	if !fired {
		t.Error("timer scheduled at 2s did not fire at 3s")
	}
}

func TestTimerStop(t *testing.T) {
	timers := NewTimers(epoch)
	fired := false
	tm := timers.AfterFunc(time.Second, func() { fired = true })

	if !tm.Stop() {
		t.Fatal("first Stop returned false")
	}
	if tm.Stop() {
		t.Error("second Stop returned true")
	}
	timers.Advance(epoch.Add(time.Minute))
	if fired {
		t.Error("stopped timer fired")
	}
	if timers.Len() != 0 {
		t.Errorf("Len = %d after Stop", timers.Len())
	}
}

func TestTimerStopAfterFire(t *testing.T) {
	timers := NewTimers(epoch)
	tm := timers.AfterFunc(0, func() {})
	timers.Advance(epoch)
	if tm.Stop() {
		t.Error("Stop after firing returned true")
	}
}

func TestTimerStoppedByEarlierCallback(t *testing.T) {
	timers := NewTimers(epoch)
	var second *Timer
	secondFired := false
	timers.AfterFunc(time.Second, func() { second.Stop() })
	second = timers.AfterFunc(2*time.Second, func() { secondFired = true })

	if n := timers.Advance(epoch.Add(3 * time.Second)); n != 1 {
		t.Errorf("Advance fired %d, want 1", n)
	}
	if secondFired {
		t.Error("timer stopped by an earlier callback still fired")
	}
}

func TestTimerScheduledFromCallback(t *testing.T) {
	timers := NewTimers(epoch)
	chained := false
	timers.AfterFunc(time.Second, func() {
		timers.AfterFunc(0, func() { chained = true })
	})

	timers.Advance(epoch.Add(time.Second))
	if chained {
		t.Fatal("timer added during Advance ran in the same Advance")
	}
	timers.Advance(epoch.Add(time.Second))
	if !chained {
		t.Error("timer added during Advance never ran")
	}
}

func TestTimersStopAll(t *testing.T) {
	timers := NewTimers(epoch)
	fired := 0
	a := timers.AfterFunc(time.Second, func() { fired++ })
	timers.AfterFunc(2*time.Second, func() { fired++ })

	timers.StopAll()
	timers.Advance(epoch.Add(time.Minute))
	if fired != 0 {
		t.Errorf("fired = %d after StopAll", fired)
	}
	if a.Stop() {
		t.Error("Stop after StopAll returned true")
	}
}
