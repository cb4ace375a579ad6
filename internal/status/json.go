package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pool-controller/internal/display"
)

// TimestampLayout is the local time format of the /status timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// StatusJSON is the compact /status document.
type StatusJSON struct {
	TempPool  float32 `json:"temp_pool"`
	TempSolar float32 `json:"temp_solar"`
	Pump      string  `json:"pump"`
	Valve     string  `json:"valve"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// FormatStatus returns the /status body. The timestamp is omitted until the
// clock has been synchronised.
func FormatStatus(snap Snapshot) []byte {
	st := snap.Controller
	sj := StatusJSON{
		TempPool:  st.Reading.Pool,
		TempSolar: st.Reading.Collector,
		Pump:      display.OnOff(st.PumpOn),
		Valve:     string(st.Valve),
	}
	if snap.ClockSynced {
		sj.Timestamp = snap.Now.Format(TimestampLayout)
	}
	data, _ := json.Marshal(sj)
	return data
}

// DetailJSON is the top-level envelope of the detailed status document.
type DetailJSON struct {
	Status DetailInner `json:"status"`
}

// DetailInner contains the status details.
type DetailInner struct {
	Event  string `json:"event,omitempty"`
	Reason string `json:"reason,omitempty"`

	TempPool    float32 `json:"temp_pool"`
	TempSolar   float32 `json:"temp_solar"`
	ReadingAt   string  `json:"reading_at,omitempty"`
	SensorFault string  `json:"sensor_fault,omitempty"`

	Pump        string `json:"pump"`
	Valve       string `json:"valve"`
	ValveTarget string `json:"valve_target"`
	Motion      string `json:"motion"`
	Collector   bool   `json:"collector"`

	Override      OverrideJSON   `json:"override"`
	HeaterTest    HeaterTestJSON `json:"heater_test"`
	PumpRuntime   RuntimeJSON    `json:"pump_runtime"`
	ButtonPresses int            `json:"button_presses"`

	Ready         bool       `json:"ready"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	ClockSynced   bool       `json:"clock_synced"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// OverrideJSON reports the manual override window.
type OverrideJSON struct {
	Active      bool  `json:"active"`
	RemainingMs int64 `json:"remaining_ms"`
}

// HeaterTestJSON reports the heater test schedule and last outcome.
type HeaterTestJSON struct {
	Phase      string          `json:"phase"`
	StartedAt  string          `json:"started_at,omitempty"`
	LastEnd    string          `json:"last_end"`
	LastResult *TestResultJSON `json:"last_result,omitempty"`
}

// TestResultJSON is the outcome of a completed heater test.
type TestResultJSON struct {
	TempPool  float32 `json:"temp_pool"`
	TempSolar float32 `json:"temp_solar"`
	Effective bool    `json:"effective"`
	Error     string  `json:"error,omitempty"`
}

// RuntimeJSON reports accumulated pump run time.
type RuntimeJSON struct {
	TodaySeconds     int64 `json:"today_seconds"`
	YesterdaySeconds int64 `json:"yesterday_seconds"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64   `json:"tick_ms"`
	PulseMs     int64   `json:"valve_pulse_ms"`
	OverrideMs  int64   `json:"override_ms"`
	TestEveryMs int64   `json:"test_interval_ms"`
	TestForMs   int64   `json:"test_duration_ms"`
	WindowStart int     `json:"window_start_hour"`
	WindowEnd   int     `json:"window_end_hour"`
	Threshold   float32 `json:"threshold_c"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	Broker      string  `json:"broker"`
	HTTPAddr    string  `json:"http_addr"`
}

func buildDetail(snap Snapshot) DetailInner {
	st := snap.Controller

	pump := "UNKNOWN"
	if st.PumpKnown {
		pump = display.OnOff(st.PumpOn)
	}

	inner := DetailInner{
		TempPool:    st.Reading.Pool,
		TempSolar:   st.Reading.Collector,
		SensorFault: st.SensorFault,
		Pump:        pump,
		Valve:       string(st.Valve),
		ValveTarget: string(st.ValveTarget),
		Motion:      string(st.Motion),
		Collector:   st.CollectorOn,
		Override: OverrideJSON{
			Active:      st.OverrideActive,
			RemainingMs: st.OverrideRemaining.Milliseconds(),
		},
		HeaterTest: HeaterTestJSON{
			Phase:   string(st.TestPhase),
			LastEnd: rfc3339(st.LastTestEnd),
		},
		PumpRuntime: RuntimeJSON{
			TodaySeconds:     int64(st.PumpRuntimeToday.Seconds()),
			YesterdaySeconds: int64(st.PumpRuntimeYesterday.Seconds()),
		},
		ButtonPresses: st.ButtonPresses,
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     rfc3339(snap.StartTime),
		Timestamp:     rfc3339(snap.Now),
		ClockSynced:   snap.ClockSynced,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			PulseMs:     snap.Config.PulseMs,
			OverrideMs:  snap.Config.OverrideMs,
			TestEveryMs: snap.Config.TestEveryMs,
			TestForMs:   snap.Config.TestForMs,
			WindowStart: snap.Config.WindowStart,
			WindowEnd:   snap.Config.WindowEnd,
			Threshold:   snap.Config.Threshold,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if !st.Reading.At.IsZero() {
		inner.ReadingAt = rfc3339(st.Reading.At)
	}
	if !st.TestStarted.IsZero() {
		inner.HeaterTest.StartedAt = rfc3339(st.TestStarted)
	}
	if r := st.LastResult; r != nil {
		res := &TestResultJSON{
			TempPool:  r.Reading.Pool,
			TempSolar: r.Reading.Collector,
			Effective: r.Effective,
		}
		if r.Err != nil {
			res.Error = r.Err.Error()
		}
		inner.HeaterTest.LastResult = res
	}
	return inner
}

func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatJSON returns the detailed status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(DetailJSON{Status: buildDetail(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the detailed status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildDetail(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(DetailJSON{Status: inner})
	return data
}
