package controller

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sweeney/pool-controller/internal/display"
	"github.com/sweeney/pool-controller/internal/gpio"
	"github.com/sweeney/pool-controller/internal/logic"
	"github.com/sweeney/pool-controller/internal/relay"
	"github.com/sweeney/pool-controller/internal/sensor"
)

type rig struct {
	ctrl    *Controller
	valve   *gpio.FakeValve
	pump    *relay.Fake
	temps   *sensor.Fake
	button  *gpio.FakeButton
	display *display.Fake
}

func testConfig() Config {
	return Config{
		ValvePulse:     15 * time.Second,
		OverrideWindow: 20 * time.Second,
		TempInterval:   time.Second,
		PumpPoll:       10 * time.Second,
		NetworkTimeout: time.Second,
		HeaterTest: logic.HeaterTestConfig{
			Interval:    time.Hour,
			Duration:    5 * time.Minute,
			PumpSettle:  time.Second,
			WindowStart: 9,
			WindowEnd:   16,
			Threshold:   0.5,
		},
	}
}

func newRig(t *testing.T, start time.Time) *rig {
	t.Helper()
	r := &rig{
		valve:   gpio.NewFakeValve(),
		pump:    relay.NewFake(false),
		temps:   sensor.NewFake(sensor.Sample{Pool: 24, Collector: 24}),
		button:  gpio.NewFakeButton(false),
		display: display.NewFake(),
	}
	r.ctrl = New(testConfig(), Deps{
		Valve:   r.valve,
		Pump:    r.pump,
		Temps:   r.temps,
		Button:  r.button,
		Display: r.display,
	}, start)
	if err := r.ctrl.Start(start); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return r
}

// run ticks every step from start (exclusive) to end (inclusive).
func (r *rig) run(start, end time.Time, step time.Duration) []logic.Event {
	var events []logic.Event
	for now := start.Add(step); !now.After(end); now = now.Add(step) {
		events = append(events, r.ctrl.Tick(now)...)
	}
	return events
}

func eventTypes(evs []logic.Event) []logic.EventType {
	var out []logic.EventType
	for _, e := range evs {
		out = append(out, e.Type)
	}
	return out
}

func hasEvent(evs []logic.Event, typ logic.EventType) bool {
	for _, e := range evs {
		if e.Type == typ {
			return true
		}
	}
	return false
}

// Evening: outside the heater test window.
var evening = time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)

func TestStartReleasesOutputsAndPrimesPump(t *testing.T) {
	r := &rig{
		valve: gpio.NewFakeValve(),
		pump:  relay.NewFake(true),
		temps: sensor.NewFake(sensor.Sample{Pool: 27.3, Collector: 41}),
	}
	c := New(testConfig(), Deps{Valve: r.valve, Pump: r.pump, Temps: r.temps}, evening)
	if err := c.Start(evening); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(r.valve.Writes) != 1 || r.valve.Current() != (gpio.Outputs{}) {
		t.Errorf("expected a single release write, got %+v", r.valve.Writes)
	}
	st := c.State(evening)
	if !st.PumpOn || !st.PumpKnown {
		t.Errorf("pump: on=%v known=%v", st.PumpOn, st.PumpKnown)
	}
	if st.Reading.Pool != 27.3 || st.Reading.Collector != 41 {
		t.Errorf("reading: %+v", st.Reading)
	}

	// Pump was on at startup: its runtime counts from Start.
	r.pump.On = false
	c.Tick(evening.Add(10 * time.Second))
	if got := c.State(evening).PumpRuntimeToday; got != 10*time.Second {
		t.Errorf("runtime: expected 10s, got %v", got)
	}
}

func TestStartValveError(t *testing.T) {
	v := gpio.NewFakeValve()
	v.SetError = errors.New("line busy")
	c := New(testConfig(), Deps{Valve: v, Pump: relay.NewFake(false), Temps: sensor.NewFake()}, evening)
	if err := c.Start(evening); err == nil {
		t.Error("expected error")
	}
}

func TestToggleScenario(t *testing.T) {
	r := newRig(t, evening)
	c := r.ctrl

	evs := c.Toggle(evening, logic.SourceHTTP)
	if len(evs) != 1 || evs[0].Type != logic.EventValveToggled || evs[0].Source != logic.SourceHTTP {
		t.Fatalf("toggle events: %+v", evs)
	}
	st := c.State(evening)
	if st.Motion != logic.MotionOpening {
		t.Errorf("motion: expected OPENING, got %s", st.Motion)
	}
	if !st.OverrideActive || st.OverrideRemaining != 20*time.Second {
		t.Errorf("override: active=%v remaining=%v", st.OverrideActive, st.OverrideRemaining)
	}
	if st.Valve != logic.PositionClosed || st.ValveTarget != logic.PositionOpen {
		t.Errorf("valve: position=%s target=%s", st.Valve, st.ValveTarget)
	}
	if r.valve.Current() != (gpio.Outputs{Open: true}) {
		t.Errorf("outputs: %+v", r.valve.Current())
	}

	evs = r.run(evening, evening.Add(15*time.Second), 10*time.Millisecond)
	if !hasEvent(evs, logic.EventValveOpened) {
		t.Errorf("expected VALVE_OPENED, got %v", eventTypes(evs))
	}
	st = c.State(evening.Add(15 * time.Second))
	if st.Motion != logic.MotionIdle || st.Valve != logic.PositionOpen {
		t.Errorf("after 15s: motion=%s valve=%s", st.Motion, st.Valve)
	}
	if !st.OverrideActive {
		t.Error("override ended before 20s")
	}

	writes := len(r.valve.Writes)
	evs = r.run(evening.Add(15*time.Second), evening.Add(20*time.Second), 10*time.Millisecond)
	if !hasEvent(evs, logic.EventOverrideExpired) {
		t.Errorf("expected OVERRIDE_EXPIRED, got %v", eventTypes(evs))
	}
	if c.State(evening.Add(20 * time.Second)).OverrideActive {
		t.Error("override still active at 20s")
	}
	// Stop is issued at expiry even though motion already finished.
	if len(r.valve.Writes) != writes+1 || r.valve.Current() != (gpio.Outputs{}) {
		t.Errorf("expected one release write at expiry, got %+v", r.valve.Writes[writes:])
	}
	if r.valve.BothAsserted {
		t.Error("both outputs asserted")
	}
}

func TestToggleTwiceReverses(t *testing.T) {
	r := newRig(t, evening)
	r.ctrl.Toggle(evening, logic.SourceHTTP)
	r.ctrl.Toggle(evening.Add(3*time.Second), logic.SourceHTTP)

	st := r.ctrl.State(evening.Add(3 * time.Second))
	if st.Motion != logic.MotionClosing || st.ValveTarget != logic.PositionClosed {
		t.Errorf("second toggle: motion=%s target=%s", st.Motion, st.ValveTarget)
	}
	if st.CollectorOn {
		t.Error("collector still marked on")
	}
	// The window restarts with the second toggle.
	r.run(evening.Add(3*time.Second), evening.Add(22*time.Second), 100*time.Millisecond)
	if !r.ctrl.State(evening.Add(22 * time.Second)).OverrideActive {
		t.Error("override expired on the first toggle's schedule")
	}
	if r.valve.BothAsserted {
		t.Error("both outputs asserted")
	}
}

func TestButtonToggles(t *testing.T) {
	r := newRig(t, evening)
	r.button.Samples = []bool{false, false, true, true, false, true, false}

	evs := r.run(evening, evening.Add(70*time.Millisecond), 10*time.Millisecond)
	toggles := 0
	for _, e := range evs {
		if e.Type == logic.EventValveToggled {
			toggles++
			if e.Source != logic.SourceButton {
				t.Errorf("source: %s", e.Source)
			}
		}
	}
	// The second press lands inside the override window and is ignored.
	if toggles != 1 {
		t.Errorf("expected 1 toggle, got %d (%v)", toggles, eventTypes(evs))
	}
	if got := r.ctrl.State(evening).ButtonPresses; got != 2 {
		t.Errorf("ButtonPresses: expected 2, got %d", got)
	}
}

func TestButtonErrorIsNotFatal(t *testing.T) {
	r := newRig(t, evening)
	r.button.ReadError = errors.New("gpio fault")
	evs := r.run(evening, evening.Add(time.Second), 10*time.Millisecond)
	if hasEvent(evs, logic.EventValveToggled) {
		t.Error("toggle from a failing button")
	}
}

func TestPumpRuntimeAccounting(t *testing.T) {
	r := newRig(t, evening)
	c := r.ctrl

	r.run(evening, evening.Add(10*time.Second), time.Second)
	r.pump.On = true
	evs := r.run(evening.Add(10*time.Second), evening.Add(20*time.Second), time.Second)
	if !hasEvent(evs, logic.EventPumpOn) {
		t.Errorf("expected PUMP_ON, got %v", eventTypes(evs))
	}
	// Still on: nothing credited yet.
	r.run(evening.Add(20*time.Second), evening.Add(60*time.Second), time.Second)
	if got := c.State(evening).PumpRuntimeToday; got != 0 {
		t.Errorf("runtime while on: %v", got)
	}
	r.pump.On = false
	evs = r.run(evening.Add(60*time.Second), evening.Add(70*time.Second), time.Second)
	if !hasEvent(evs, logic.EventPumpOff) {
		t.Errorf("expected PUMP_OFF, got %v", eventTypes(evs))
	}
	if got := c.State(evening).PumpRuntimeToday; got != 50*time.Second {
		t.Errorf("runtime: expected 50s, got %v", got)
	}
	if r.pump.Polls != 8 { // Start + 7 polls at 10s..70s
		t.Errorf("polls: expected 8, got %d", r.pump.Polls)
	}
}

func TestPumpPollErrorKeepsLastState(t *testing.T) {
	r := newRig(t, evening)
	r.pump.On = true
	r.run(evening, evening.Add(10*time.Second), time.Second)

	r.pump.StateError = errors.New("no route to host")
	evs := r.run(evening.Add(10*time.Second), evening.Add(40*time.Second), time.Second)
	if hasEvent(evs, logic.EventPumpOff) {
		t.Error("poll failure reported as pump off")
	}
	st := r.ctrl.State(evening)
	if !st.PumpOn {
		t.Error("last known pump state lost")
	}
	if st.PumpRuntimeToday != 0 {
		t.Errorf("poll failure credited runtime: %v", st.PumpRuntimeToday)
	}
}

func TestSensorFaultKeepsLastReading(t *testing.T) {
	r := newRig(t, evening)
	r.temps.Samples = []sensor.Sample{
		{Pool: 25, Collector: 30},
		{Pool: -127, Collector: 30, Err: sensor.ErrDisconnected},
	}
	evs := r.run(evening, evening.Add(5*time.Second), time.Second)

	faults := 0
	for _, e := range evs {
		if e.Type == logic.EventSensorFault {
			faults++
		}
	}
	if faults != 1 {
		t.Errorf("expected one SENSOR_FAULT event, got %d", faults)
	}
	st := r.ctrl.State(evening)
	if st.Reading.Pool != 25 || st.Reading.Collector != 30 {
		t.Errorf("reading: expected last good 25/30, got %+v", st.Reading)
	}
	if st.SensorFault == "" {
		t.Error("SensorFault not reported")
	}

	r.temps.Set(26, 31)
	r.run(evening.Add(5*time.Second), evening.Add(6*time.Second), time.Second)
	if st := r.ctrl.State(evening); st.SensorFault != "" || st.Reading.Pool != 26 {
		t.Errorf("after recovery: %+v", st)
	}
}

func TestDriftingFaultReportedOnce(t *testing.T) {
	r := newRig(t, evening)
	r.temps.Samples = []sensor.Sample{{Pool: 25, Collector: 30}}
	for i := 0; i < 5; i++ {
		c := float32(130 + i)
		r.temps.Samples = append(r.temps.Samples, sensor.Sample{
			Pool:      25,
			Collector: c,
			Err:       fmt.Errorf("collector: %w: %.3f C", sensor.ErrDisconnected, c),
		})
	}
	r.temps.Samples = append(r.temps.Samples, sensor.Sample{Pool: 25, Collector: 30, Err: sensor.ErrCRC})

	evs := r.run(evening, evening.Add(8*time.Second), time.Second)
	var details []string
	for _, e := range evs {
		if e.Type == logic.EventSensorFault {
			details = append(details, e.Detail)
		}
	}
	want := []string{"collector: sensor: probe disconnected: 130.000 C", "sensor: crc mismatch"}
	if len(details) != len(want) {
		t.Fatalf("SENSOR_FAULT details: got %q, want %q", details, want)
	}
	for i := range want {
		if details[i] != want[i] {
			t.Errorf("fault %d: got %q, want %q", i, details[i], want[i])
		}
	}
}

func TestTemperatureInterval(t *testing.T) {
	r := newRig(t, evening)
	before := r.temps.Reads
	r.run(evening, evening.Add(time.Second), 10*time.Millisecond)
	if got := r.temps.Reads - before; got != 1 {
		t.Errorf("expected 1 read per second, got %d", got)
	}
}

func TestDisplayRefreshedOnChange(t *testing.T) {
	r := newRig(t, evening)
	if got := r.display.Last(); got != [2]string{"P:24.0 Pump:OFF ", "H:24.0 Heat:OFF "} {
		t.Errorf("initial frame: %q", got)
	}
	frames := len(r.display.Frames)
	r.run(evening, evening.Add(time.Second), 10*time.Millisecond)
	if len(r.display.Frames) != frames {
		t.Errorf("unchanged state redrawn %d times", len(r.display.Frames)-frames)
	}
	r.ctrl.Toggle(evening.Add(time.Second), logic.SourceHTTP)
	if got := r.display.Last()[1]; got != "H:24.0 Heat:ON  " {
		t.Errorf("after toggle: %q", got)
	}
}

func TestHeaterTestThroughController(t *testing.T) {
	tests := []struct {
		name          string
		collector     float32
		wantResult    logic.EventType
		wantPump      []bool
		wantValve     logic.Position
		wantCollector bool
	}{
		{"effective", 35, logic.EventTestEffective, []bool{true, true}, logic.PositionOpen, true},
		{"ineffective", 24.5, logic.EventTestIneffective, []bool{true, false}, logic.PositionClosed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boot := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
			r := newRig(t, boot)
			r.temps.Set(24, tt.collector)

			start := boot.Add(time.Hour)
			evs := r.run(boot, start.Add(6*time.Minute), 100*time.Millisecond)

			if !hasEvent(evs, logic.EventTestStarted) || !hasEvent(evs, tt.wantResult) {
				t.Fatalf("events: %v", eventTypes(evs))
			}
			st := r.ctrl.State(start.Add(6 * time.Minute))
			if st.TestPhase != logic.PhaseIdle {
				t.Errorf("phase: %s", st.TestPhase)
			}
			if st.Valve != tt.wantValve || st.Motion != logic.MotionIdle {
				t.Errorf("valve: %s/%s", st.Valve, st.Motion)
			}
			if st.CollectorOn != tt.wantCollector {
				t.Errorf("collector: %v", st.CollectorOn)
			}
			if len(r.pump.Commands) != len(tt.wantPump) {
				t.Fatalf("pump commands: %v", r.pump.Commands)
			}
			for i := range tt.wantPump {
				if r.pump.Commands[i] != tt.wantPump[i] {
					t.Errorf("pump commands: expected %v, got %v", tt.wantPump, r.pump.Commands)
				}
			}
			if st.LastResult == nil || st.LastResult.Reading.Collector != tt.collector {
				t.Errorf("LastResult: %+v", st.LastResult)
			}
			if r.valve.BothAsserted {
				t.Error("both outputs asserted")
			}
		})
	}
}

func TestOverrideSuppressesHeaterTest(t *testing.T) {
	boot := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	r := newRig(t, boot)
	due := boot.Add(time.Hour)

	r.run(boot, due.Add(-time.Second), time.Second)
	r.ctrl.Toggle(due.Add(-time.Second), logic.SourceHTTP)

	evs := r.run(due.Add(-time.Second), due.Add(19*time.Second-10*time.Millisecond), 10*time.Millisecond)
	if hasEvent(evs, logic.EventTestStarted) {
		t.Fatal("heater test started inside the override window")
	}
	if len(r.pump.Commands) != 0 {
		t.Errorf("pump commanded during override: %v", r.pump.Commands)
	}
	evs = r.run(due.Add(19*time.Second-10*time.Millisecond), due.Add(20*time.Second), 10*time.Millisecond)
	if !hasEvent(evs, logic.EventOverrideExpired) || !hasEvent(evs, logic.EventTestStarted) {
		t.Errorf("expected expiry then test start, got %v", eventTypes(evs))
	}
}

func TestToggleAbortsHeaterTest(t *testing.T) {
	boot := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	r := newRig(t, boot)
	r.temps.Set(24, 40)
	start := boot.Add(time.Hour)

	r.run(boot, start.Add(time.Minute), time.Second)
	if got := r.ctrl.State(start).TestPhase; got != logic.PhaseRunning {
		t.Fatalf("expected RUNNING, got %s", got)
	}

	evs := r.ctrl.Toggle(start.Add(time.Minute), logic.SourceButton)
	if got := eventTypes(evs); len(got) != 2 || got[0] != logic.EventTestAborted || got[1] != logic.EventValveToggled {
		t.Fatalf("toggle events: %v", got)
	}
	st := r.ctrl.State(start.Add(time.Minute))
	if st.TestPhase != logic.PhaseIdle || st.ValveTarget != logic.PositionClosed {
		t.Errorf("after abort: phase=%s target=%s", st.TestPhase, st.ValveTarget)
	}

	// The pump the test switched on is switched off again.
	if got := r.pump.Commands; len(got) != 2 || !got[0] || got[1] {
		t.Errorf("pump commands: expected [true false], got %v", got)
	}

	// No result is produced for the aborted test.
	evs = r.run(start.Add(time.Minute), start.Add(10*time.Minute), time.Second)
	if hasEvent(evs, logic.EventTestEffective) || hasEvent(evs, logic.EventTestIneffective) {
		t.Errorf("aborted test produced a result: %v", eventTypes(evs))
	}
	if !hasEvent(evs, logic.EventPumpOff) {
		t.Errorf("expected PUMP_OFF after abort, got %v", eventTypes(evs))
	}
	if st := r.ctrl.State(start.Add(10 * time.Minute)); st.PumpOn {
		t.Error("pump still on after the aborted test")
	}
}

func TestToggleAbortLeavesRunningPumpOn(t *testing.T) {
	boot := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	r := newRig(t, boot)
	r.temps.Set(24, 40)
	r.pump.On = true
	start := boot.Add(time.Hour)

	r.run(boot, start.Add(time.Minute), time.Second)
	if got := r.ctrl.State(start).TestPhase; got != logic.PhaseRunning {
		t.Fatalf("expected RUNNING, got %s", got)
	}
	r.ctrl.Toggle(start.Add(time.Minute), logic.SourceHTTP)
	if got := r.pump.Commands; len(got) != 1 || !got[0] {
		t.Errorf("pump commands: expected [true], got %v", got)
	}
	if !r.pump.On {
		t.Error("pump that was running before the test was switched off")
	}
}

func TestOutputsExclusiveUnderMixedCommands(t *testing.T) {
	boot := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	r := newRig(t, boot)
	r.temps.Set(24, 24)
	now := boot
	for i := 0; i < 4000; i++ {
		now = now.Add(time.Second)
		if i%97 == 0 {
			r.ctrl.Toggle(now, logic.SourceHTTP)
		}
		r.ctrl.Tick(now)
	}
	if r.valve.BothAsserted {
		t.Error("both outputs asserted")
	}
}
