// Package logic contains the decision state machines for the solar loop:
// valve motion timing, manual override, heater test scheduling and pump
// runtime accounting.
// This package has NO hardware or network dependencies. Actuators and the
// plant are reached through small interfaces, and time is always injected
// via time.Time parameters.
package logic

import "time"

// Position is the controller's belief about where the diverter valve is.
// It is modeled, not sensed.
type Position string

const (
	PositionClosed Position = "closed"
	PositionOpen   Position = "open"
)

// Motion is the state of the valve actuator outputs.
type Motion string

const (
	MotionIdle    Motion = "IDLE"
	MotionOpening Motion = "OPENING"
	MotionClosing Motion = "CLOSING"
)

// Source identifies who requested a manual toggle.
type Source string

const (
	SourceButton Source = "BUTTON"
	SourceHTTP   Source = "HTTP"
)

// EventType names something the controller did that is worth publishing.
type EventType string

const (
	EventValveToggled    EventType = "VALVE_TOGGLED"
	EventValveOpened     EventType = "VALVE_OPENED"
	EventValveClosed     EventType = "VALVE_CLOSED"
	EventOverrideExpired EventType = "OVERRIDE_EXPIRED"
	EventTestStarted     EventType = "HEATER_TEST_STARTED"
	EventTestEffective   EventType = "HEATER_TEST_EFFECTIVE"
	EventTestIneffective EventType = "HEATER_TEST_INEFFECTIVE"
	EventTestAborted     EventType = "HEATER_TEST_ABORTED"
	EventPumpOn          EventType = "PUMP_ON"
	EventPumpOff         EventType = "PUMP_OFF"
	EventSensorFault     EventType = "SENSOR_FAULT"
)

// Event is a controller decision or observation, in the order it happened.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Source    Source   // toggles only
	Valve     Position // target position after the event
	Reading   *Reading // heater test results only
	Detail    string
}

// Reading is a pair of probe temperatures in degrees Celsius.
type Reading struct {
	Pool      float32
	Collector float32
	At        time.Time
}
