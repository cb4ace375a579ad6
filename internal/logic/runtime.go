package logic

import "time"

// RuntimeAccountant integrates observed pump-on intervals into a per-day
// total. Time is credited only when an on interval ends, or when a local
// day boundary is crossed while the pump is on.
type RuntimeAccountant struct {
	today     time.Duration
	yesterday time.Duration
	lastOn    time.Time
	on        bool
	day       time.Time
}

// NewRuntimeAccountant primes the accountant with the pump state observed
// at startup. A pump already running is assumed to have started at now.
func NewRuntimeAccountant(on bool, now time.Time) *RuntimeAccountant {
	a := &RuntimeAccountant{
		on:  on,
		day: startOfDay(now),
	}
	if on {
		a.lastOn = now
	}
	return a
}

// Observe records a pump state observation. It reports whether the state
// changed.
func (a *RuntimeAccountant) Observe(on bool, now time.Time) bool {
	a.rollover(now)
	switch {
	case on && !a.on:
		a.lastOn = now
	case !on && a.on:
		a.today += now.Sub(a.lastOn)
	default:
		return false
	}
	a.on = on
	return true
}

func (a *RuntimeAccountant) rollover(now time.Time) {
	day := startOfDay(now)
	if !day.After(a.day) {
		return
	}
	if a.on {
		a.today += day.Sub(a.lastOn)
		a.lastOn = day
	}
	a.yesterday = a.today
	a.today = 0
	a.day = day
}

// Today returns the completed runtime for the current local day.
// Time in a still-open on interval is not included.
func (a *RuntimeAccountant) Today() time.Duration { return a.today }

// Yesterday returns the total for the previous local day.
func (a *RuntimeAccountant) Yesterday() time.Duration { return a.yesterday }

// Running returns the last observed pump state.
func (a *RuntimeAccountant) Running() bool { return a.on }

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
