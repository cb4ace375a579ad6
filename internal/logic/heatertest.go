package logic

import (
	"fmt"
	"time"
)

// Phase is the step a heater test is in.
type Phase string

const (
	PhaseIdle    Phase = "IDLE"
	PhasePriming Phase = "PRIMING" // pump commanded on, waiting for the relay to settle
	PhaseOpening Phase = "OPENING" // valve opening pulse
	PhaseRunning Phase = "RUNNING" // water circulating through the collector
	PhaseClosing Phase = "CLOSING" // ineffective: valve closing pulse, pump off after
)

// HeaterTestConfig holds the heater test schedule and decision constants.
type HeaterTestConfig struct {
	Interval    time.Duration // minimum time between the end of one test and the start of the next
	Duration    time.Duration // circulation time before temperatures are compared
	PumpSettle  time.Duration // wait between pump on and valve open
	WindowStart int           // first local hour a test may start (inclusive)
	WindowEnd   int           // local hour after which no test starts (exclusive)
	Threshold   float32       // collector must exceed pool by more than this, in C
}

// Plant is what a heater test needs besides the valve.
type Plant interface {
	// SetPump commands the circulation pump. Failures are the plant's
	// to log; the test proceeds regardless.
	SetPump(on bool)
	// SetCollector records whether water is routed through the collector.
	SetCollector(on bool)
	// Measure takes a fresh reading of both probes.
	Measure() (Reading, error)
}

// TestResult is the outcome of the last completed heater test.
type TestResult struct {
	Reading   Reading
	Effective bool
	Err       error // non-nil when no valid reading could be taken
}

// HeaterTest runs the scheduled effectiveness trial:
// pump on, open valve, circulate, compare temperatures, then either leave
// the loop running or close the valve and stop the pump.
type HeaterTest struct {
	cfg        HeaterTestConfig
	phase      Phase
	phaseStart time.Time
	startedAt  time.Time
	lastEnd    time.Time
	result     *TestResult
}

// NewHeaterTest returns an idle test whose interval counts from now.
func NewHeaterTest(cfg HeaterTestConfig, now time.Time) *HeaterTest {
	return &HeaterTest{
		cfg:     cfg,
		phase:   PhaseIdle,
		lastEnd: now,
	}
}

// Effective reports whether a reading shows the collector is worth using.
func Effective(r Reading, threshold float32) bool {
	return r.Collector > r.Pool+threshold
}

// Due reports whether a new test should start at now.
func (h *HeaterTest) Due(now time.Time, overrideActive bool) bool {
	if h.phase != PhaseIdle || overrideActive {
		return false
	}
	if now.Sub(h.lastEnd) < h.cfg.Interval {
		return false
	}
	hour := now.Hour()
	return hour >= h.cfg.WindowStart && hour < h.cfg.WindowEnd
}

// Step advances the test. While the override window is open nothing
// happens: no test starts and no phase issues motion.
func (h *HeaterTest) Step(now time.Time, overrideActive bool, v *Valve, p Plant) ([]Event, error) {
	if overrideActive {
		return nil, nil
	}
	elapsed := now.Sub(h.phaseStart)
	switch h.phase {
	case PhaseIdle:
		if !h.Due(now, false) {
			return nil, nil
		}
		p.SetPump(true)
		h.enter(PhasePriming, now)
		return []Event{{Timestamp: now, Type: EventTestStarted, Valve: v.Target()}}, nil

	case PhasePriming:
		if elapsed < h.cfg.PumpSettle {
			return nil, nil
		}
		if err := v.BeginOpen(now); err != nil {
			return nil, fmt.Errorf("heater test: %w", err)
		}
		p.SetCollector(true)
		h.enter(PhaseOpening, now)

	case PhaseOpening:
		if elapsed < v.Pulse() {
			return nil, nil
		}
		h.enter(PhaseRunning, now)
		h.startedAt = now
		if err := v.Stop(now); err != nil {
			return nil, fmt.Errorf("heater test: %w", err)
		}

	case PhaseRunning:
		if now.Sub(h.startedAt) < h.cfg.Duration {
			return nil, nil
		}
		return h.finish(now, v, p)

	case PhaseClosing:
		if elapsed < v.Pulse() {
			return nil, nil
		}
		h.enter(PhaseIdle, now)
		p.SetPump(false)
		if err := v.Stop(now); err != nil {
			return nil, fmt.Errorf("heater test: %w", err)
		}
	}
	return nil, nil
}

func (h *HeaterTest) finish(now time.Time, v *Valve, p Plant) ([]Event, error) {
	r, err := p.Measure()
	res := &TestResult{Reading: r, Err: err}
	res.Effective = err == nil && Effective(r, h.cfg.Threshold)
	h.result = res

	ev := Event{Timestamp: now, Reading: &res.Reading}
	if res.Effective {
		ev.Type = EventTestEffective
		ev.Valve = PositionOpen
		p.SetCollector(true)
		p.SetPump(true)
		h.enter(PhaseIdle, now)
		h.lastEnd = now
		if v.Position() != PositionOpen && !v.Moving() {
			if err := v.BeginOpen(now); err != nil {
				return []Event{ev}, fmt.Errorf("heater test: %w", err)
			}
		}
		return []Event{ev}, nil
	}

	ev.Type = EventTestIneffective
	ev.Valve = PositionClosed
	if err != nil {
		ev.Detail = err.Error()
	}
	p.SetCollector(false)
	h.enter(PhaseClosing, now)
	h.lastEnd = now
	if err := v.BeginClose(now); err != nil {
		return []Event{ev}, fmt.Errorf("heater test: %w", err)
	}
	return []Event{ev}, nil
}

// Abort cancels a test in progress without touching pump or valve; the
// caller has taken over and must settle the pump. It returns the phase that
// was cancelled, PhaseIdle with no events if no test was active.
func (h *HeaterTest) Abort(now time.Time, reason string) (Phase, []Event) {
	from := h.phase
	if from == PhaseIdle {
		return PhaseIdle, nil
	}
	h.enter(PhaseIdle, now)
	if from != PhaseClosing {
		h.lastEnd = now
	}
	return from, []Event{{
		Timestamp: now,
		Type:      EventTestAborted,
		Detail:    fmt.Sprintf("%s during %s", reason, from),
	}}
}

func (h *HeaterTest) enter(p Phase, now time.Time) {
	h.phase = p
	h.phaseStart = now
}

// Phase returns the current phase.
func (h *HeaterTest) Phase() Phase { return h.phase }

// Active reports whether a test is in any phase other than idle.
func (h *HeaterTest) Active() bool { return h.phase != PhaseIdle }

// StartedAt returns when the current test entered the running phase.
func (h *HeaterTest) StartedAt() time.Time { return h.startedAt }

// LastEnd returns when the last test finished or was aborted.
func (h *HeaterTest) LastEnd() time.Time { return h.lastEnd }

// Result returns the outcome of the last completed test, or nil.
func (h *HeaterTest) Result() *TestResult { return h.result }
