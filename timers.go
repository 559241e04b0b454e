package evnet

import "time"

// Timer is the single-shot timer contract Socket consumes for
// inactivity timeouts. DefaultTimerFactory below is the concrete
// time.Timer-backed implementation.
type Timer interface {
	// Stop cancels the timer; returns false if it already fired or was
	// never armed.
	Stop() bool
}

// TimerFactory arms a new single-shot timer that calls fn after d.
type TimerFactory func(d time.Duration, fn func()) Timer

// DefaultTimerFactory wraps time.AfterFunc, the idiomatic Go
// equivalent of a setTimeout/clearTimeout pair.
func DefaultTimerFactory(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// inactivityTimer rearms on every read, write submission, write
// completion, or connect, and fires a "timeout" event without itself
// mutating socket state.
type inactivityTimer struct {
	factory TimerFactory
	dur     time.Duration
	timer   Timer
	fire    func()
}

func newInactivityTimer(factory TimerFactory, fire func()) *inactivityTimer {
	if factory == nil {
		factory = DefaultTimerFactory
	}
	return &inactivityTimer{factory: factory, fire: fire}
}

// Set arms (or disarms, if d == 0) the timer. Matches Socket.SetTimeout:
// ms == 0 cancels.
func (t *inactivityTimer) Set(d time.Duration) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.dur = d
	if d == 0 {
		return
	}
	t.timer = t.factory(d, t.fire)
}

// Bump restarts the timer at its last configured duration — activity
// resets the clock. A no-op if the timer isn't armed.
func (t *inactivityTimer) Bump() {
	if t.dur == 0 {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.factory(t.dur, t.fire)
}

func (t *inactivityTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.dur = 0
}
