package controller

import (
	"time"

	"github.com/sweeney/pool-controller/internal/logic"
)

// State is a point-in-time view of the controller.
// It is a value type and safe to hand to other goroutines.
type State struct {
	Reading     logic.Reading
	SensorFault string

	PumpOn    bool
	PumpKnown bool

	Valve       logic.Position // committed position
	ValveTarget logic.Position
	Motion      logic.Motion
	CollectorOn bool

	OverrideActive    bool
	OverrideRemaining time.Duration

	TestPhase   logic.Phase
	TestStarted time.Time // zero unless running
	LastTestEnd time.Time
	LastResult  *logic.TestResult

	PumpRuntimeToday     time.Duration
	PumpRuntimeYesterday time.Duration

	ButtonPresses int
}

// State returns a snapshot of the controller at now.
func (c *Controller) State(now time.Time) State {
	st := State{
		Reading:              c.reading,
		PumpOn:               c.pumpOn,
		PumpKnown:            c.pumpKnown,
		Valve:                c.valve.Position(),
		ValveTarget:          c.valve.Target(),
		Motion:               c.valve.Motion(),
		CollectorOn:          c.collectorOn,
		OverrideActive:       c.override.Active(),
		OverrideRemaining:    c.override.Remaining(now),
		TestPhase:            c.test.Phase(),
		LastTestEnd:          c.test.LastEnd(),
		PumpRuntimeToday:     c.runtime.Today(),
		PumpRuntimeYesterday: c.runtime.Yesterday(),
		ButtonPresses:        c.button.Presses(),
	}
	if c.sensorFault != nil {
		st.SensorFault = c.sensorFault.Error()
	}
	if c.test.Phase() == logic.PhaseRunning {
		st.TestStarted = c.test.StartedAt()
	}
	if r := c.test.Result(); r != nil {
		res := *r
		st.LastResult = &res
	}
	return st
}
