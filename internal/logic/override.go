package logic

import "time"

// Override is the time-boxed manual priority window opened by a toggle.
type Override struct {
	window    time.Duration
	active    bool
	startedAt time.Time
}

// NewOverride returns an inactive override with the given window length.
func NewOverride(window time.Duration) *Override {
	return &Override{window: window}
}

// Start opens (or restarts) the window at now.
func (o *Override) Start(now time.Time) {
	o.active = true
	o.startedAt = now
}

// Expire reports true exactly once, on the first call at or after the end
// of the window, and clears the override.
func (o *Override) Expire(now time.Time) bool {
	if !o.active || now.Sub(o.startedAt) < o.window {
		return false
	}
	o.active = false
	return true
}

// Active reports whether the window is open.
func (o *Override) Active() bool { return o.active }

// StartedAt returns when the current (or last) window was opened.
func (o *Override) StartedAt() time.Time { return o.startedAt }

// Remaining returns the time left in the window, or zero when inactive.
func (o *Override) Remaining(now time.Time) time.Duration {
	if !o.active {
		return 0
	}
	d := o.window - now.Sub(o.startedAt)
	if d < 0 {
		return 0
	}
	return d
}
