// Package mqtt publishes controller events and lifecycle messages, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pool-controller/internal/logic"
)

// Topic is the MQTT topic for controller events.
const Topic = "pool/solar/controller/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "pool/solar/controller/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a controller event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle message: STARTUP, SHUTDOWN, HEARTBEAT,
// RECONNECTED or the broker-held OFFLINE will.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // signal name for SHUTDOWN
	RawPayload []byte // pre-formatted status snapshot; returned as-is by FormatSystemPayload
	Retained   bool
}

// Payload is the event message body.
type Payload struct {
	Pool PoolPayload `json:"pool"`
}

// PoolPayload contains the event details.
type PoolPayload struct {
	Timestamp string   `json:"timestamp"`
	Event     string   `json:"event"`
	Source    string   `json:"source,omitempty"`
	Valve     string   `json:"valve,omitempty"`
	TempPool  *float32 `json:"temp_pool,omitempty"`
	TempSolar *float32 `json:"temp_solar,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := PoolPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Source:    string(event.Source),
		Valve:     string(event.Valve),
		Detail:    event.Detail,
	}
	if r := event.Reading; r != nil {
		pool, solar := r.Pool, r.Collector
		p.TempPool, p.TempSolar = &pool, &solar
	}
	return json.Marshal(Payload{Pool: p})
}

// SystemPayload is the body of lifecycle events that carry no status
// snapshot (the will and RECONNECTED).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// Discard is the Publisher used when no broker is configured.
type Discard struct{}

func (Discard) Publish(logic.Event) error       { return nil }
func (Discard) PublishSystem(SystemEvent) error { return nil }
func (Discard) Close() error                    { return nil }
func (Discard) IsConnected() bool               { return false }
