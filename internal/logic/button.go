package logic

import "time"

// ButtonDetector debounces a sampled push button and reports presses.
// A press fires once on the released-to-pressed transition of the debounced
// level, never while the button is held. The level seen at startup is taken
// as the baseline and does not fire.
type ButtonDetector struct {
	debounce     time.Duration
	stable       bool
	pending      bool
	hasPending   bool
	pendingSince time.Time
	baselined    bool
	presses      int
}

// NewButtonDetector returns a detector that requires a level to hold for
// debounce before it is believed. Zero debounce accepts a level as soon as
// it is seen on two consecutive samples.
func NewButtonDetector(debounce time.Duration) *ButtonDetector {
	return &ButtonDetector{debounce: debounce}
}

// Sample processes one reading of the (logical, pressed = true) level and
// reports whether it completes a press.
func (b *ButtonDetector) Sample(pressed bool, now time.Time) bool {
	if !b.baselined {
		if !b.hasPending || b.pending != pressed {
			// Start observing, or the level changed during baseline.
			b.pending = pressed
			b.hasPending = true
			b.pendingSince = now
			return false
		}
		if now.Sub(b.pendingSince) >= b.debounce {
			b.stable = pressed
			b.baselined = true
			b.hasPending = false
		}
		return false
	}

	if pressed == b.stable {
		b.hasPending = false
		return false
	}
	if !b.hasPending || b.pending != pressed {
		b.pending = pressed
		b.hasPending = true
		b.pendingSince = now
		if b.debounce > 0 {
			return false
		}
	}
	if now.Sub(b.pendingSince) < b.debounce {
		return false
	}
	b.stable = pressed
	b.hasPending = false
	if pressed {
		b.presses++
		return true
	}
	return false
}

// Pressed returns the debounced level.
func (b *ButtonDetector) Pressed() bool { return b.stable }

// IsBaselined reports whether the startup level has been established.
func (b *ButtonDetector) IsBaselined() bool { return b.baselined }

// Presses returns the number of presses seen since startup.
func (b *ButtonDetector) Presses() int { return b.presses }
