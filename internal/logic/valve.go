package logic

import (
	"fmt"
	"time"
)

// Actuator drives the two valve gate outputs. Implementations must never
// leave both outputs asserted: when switching, the output being released is
// written before the one being asserted.
type Actuator interface {
	Set(open, close bool) error
}

// Valve times open/close pulses on an Actuator. There is no limit switch:
// the valve is assumed to complete its travel within one pulse.
type Valve struct {
	act      Actuator
	pulse    time.Duration
	motion   Motion
	start    time.Time
	target   Position
	position Position
}

// NewValve returns a Valve believed to be closed and idle.
// It does not touch the outputs; call Stop to put them in a known state.
func NewValve(act Actuator, pulse time.Duration) *Valve {
	return &Valve{
		act:      act,
		pulse:    pulse,
		motion:   MotionIdle,
		target:   PositionClosed,
		position: PositionClosed,
	}
}

// BeginOpen asserts the open output and starts a pulse. Calling it while
// already opening restarts the pulse timer.
func (v *Valve) BeginOpen(now time.Time) error {
	if err := v.act.Set(true, false); err != nil {
		return fmt.Errorf("begin open: %w", err)
	}
	v.motion = MotionOpening
	v.start = now
	v.target = PositionOpen
	return nil
}

// BeginClose asserts the close output and starts a pulse.
func (v *Valve) BeginClose(now time.Time) error {
	if err := v.act.Set(false, true); err != nil {
		return fmt.Errorf("begin close: %w", err)
	}
	v.motion = MotionClosing
	v.start = now
	v.target = PositionClosed
	return nil
}

// Tick completes the current pulse once it has run for the pulse duration.
// It reports whether a motion finished on this call.
func (v *Valve) Tick(now time.Time) (bool, error) {
	if v.motion == MotionIdle || now.Sub(v.start) < v.pulse {
		return false, nil
	}
	return true, v.Stop(now)
}

// Stop releases both outputs immediately. The target position is committed
// only if the pulse had run its full duration.
func (v *Valve) Stop(now time.Time) error {
	if v.motion != MotionIdle && now.Sub(v.start) >= v.pulse {
		v.position = v.target
	}
	v.motion = MotionIdle
	if err := v.act.Set(false, false); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// Motion returns the current motion.
func (v *Valve) Motion() Motion { return v.motion }

// Moving reports whether a pulse is in progress.
func (v *Valve) Moving() bool { return v.motion != MotionIdle }

// Position returns the last committed position.
func (v *Valve) Position() Position { return v.position }

// Target returns the position the last command aimed for.
func (v *Valve) Target() Position { return v.target }

// Pulse returns the configured pulse duration.
func (v *Valve) Pulse() time.Duration { return v.pulse }
