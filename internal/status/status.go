// Package status provides a thread-safe view of the pool controller for
// HTTP handlers, metrics and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pool-controller/internal/controller"
)

// Config contains daemon configuration for display.
type Config struct {
	Broker      string
	HTTPAddr    string
	HeartbeatMs int64
	TickMs      int64
	PulseMs     int64
	OverrideMs  int64
	TestEveryMs int64
	TestForMs   int64
	WindowStart int
	WindowEnd   int
	Threshold   float32
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Controller    controller.State
	Ready         bool // at least one control tick has completed
	StartTime     time.Time
	Now           time.Time
	ClockSynced   bool
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
// now supplies the wall clock for snapshots; nil means time.Now.
func NewTracker(startTime time.Time, cfg Config, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: now,
	}
}

// Update stores the controller state. Called from runLoop on every tick.
func (t *Tracker) Update(st controller.State) {
	t.mu.Lock()
	t.snap.Controller = st
	t.snap.Ready = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetClockSynced records whether wall-clock time came from a time server.
func (t *Tracker) SetClockSynced(synced bool) {
	t.mu.Lock()
	t.snap.ClockSynced = synced
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set from the tracker clock at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
