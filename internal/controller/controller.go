// Package controller owns the solar loop state and runs one control tick
// at a time: button and override handling, temperature refresh, heater
// test scheduling, pump polling with runtime accounting, and display
// refresh, in that order.
//
// A Controller is not safe for concurrent use. It is owned by the control
// loop; other goroutines read its State snapshots.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/pool-controller/internal/display"
	"github.com/sweeney/pool-controller/internal/logic"
	"github.com/sweeney/pool-controller/internal/sensor"
)

// Pump reads and commands the remote pump relay.
type Pump interface {
	PumpState(ctx context.Context) (bool, error)
	SetPump(ctx context.Context, on bool) error
}

// Thermometer reads the pool and collector probes.
type Thermometer interface {
	Read() (pool, collector float32, err error)
}

// Button samples the manual toggle button (true = pressed).
type Button interface {
	Pressed() (bool, error)
}

// Config holds the control loop timing.
type Config struct {
	ValvePulse     time.Duration
	OverrideWindow time.Duration
	ButtonDebounce time.Duration
	TempInterval   time.Duration
	PumpPoll       time.Duration
	// NetworkTimeout bounds each pump relay call.
	NetworkTimeout time.Duration
	HeaterTest     logic.HeaterTestConfig
}

// Deps are the hardware and network collaborators.
type Deps struct {
	Valve   logic.Actuator
	Pump    Pump
	Temps   Thermometer
	Button  Button          // may be nil
	Display display.Display // may be nil
}

// Controller is the solar loop controller.
type Controller struct {
	cfg  Config
	deps Deps

	valve    *logic.Valve
	override *logic.Override
	test     *logic.HeaterTest
	runtime  *logic.RuntimeAccountant
	button   *logic.ButtonDetector

	reading      logic.Reading
	sensorFault  error
	pumpOn       bool
	pumpKnown    bool
	collectorOn  bool
	lastTempRead time.Time
	lastPumpPoll time.Time
	lastFrame    [2]string

	// testStartedPump records that the running heater test switched the
	// pump on rather than finding it running.
	testStartedPump bool

	// events collects what happened during the current call.
	events []logic.Event
}

// New returns a controller. It performs no I/O; call Start before the
// first Tick.
func New(cfg Config, deps Deps, now time.Time) *Controller {
	if deps.Display == nil {
		deps.Display = display.Nop{}
	}
	return &Controller{
		cfg:      cfg,
		deps:     deps,
		valve:    logic.NewValve(deps.Valve, cfg.ValvePulse),
		override: logic.NewOverride(cfg.OverrideWindow),
		test:     logic.NewHeaterTest(cfg.HeaterTest, now),
		runtime:  logic.NewRuntimeAccountant(false, now),
		button:   logic.NewButtonDetector(cfg.ButtonDebounce),
	}
}

// Start releases the valve outputs, takes a first temperature reading and
// primes runtime accounting with the current pump state. A pump that is
// already on is assumed to have just started. Events produced here are
// returned by the first Tick.
func (c *Controller) Start(now time.Time) error {
	if err := c.valve.Stop(now); err != nil {
		return fmt.Errorf("release valve outputs: %w", err)
	}
	c.refreshTemperatures(now)

	on, err := c.pollPump()
	if err != nil {
		log.Printf("relay: initial pump state unknown: %v", err)
	} else {
		c.pumpOn, c.pumpKnown = on, true
	}
	c.runtime = logic.NewRuntimeAccountant(c.pumpOn, now)
	c.lastPumpPoll = now
	c.refreshDisplay()
	return nil
}

// Toggle flips the valve on behalf of a manual source and opens the
// override window. A heater test in progress is aborted.
func (c *Controller) Toggle(now time.Time, src logic.Source) []logic.Event {
	c.toggle(now, src)
	c.refreshDisplay()
	return c.takeEvents()
}

func (c *Controller) toggle(now time.Time, src logic.Source) {
	from, evs := c.test.Abort(now, fmt.Sprintf("%s toggle", src))
	c.emit(evs...)
	// A cancelled test hands the pump back in the state it found it, and
	// one already closing had decided to stop it.
	if from == logic.PhaseClosing || (from != logic.PhaseIdle && c.testStartedPump) {
		c.setPump(false)
	}

	var err error
	if c.valve.Target() == logic.PositionOpen {
		err = c.valve.BeginClose(now)
		c.collectorOn = false
	} else {
		err = c.valve.BeginOpen(now)
		c.collectorOn = true
	}
	if err != nil {
		log.Printf("valve: %v", err)
	}
	c.override.Start(now)
	log.Printf("valve: %s toggle, target %s, override until %s",
		src, c.valve.Target(), now.Add(c.cfg.OverrideWindow).Format("15:04:05"))
	c.emit(logic.Event{Timestamp: now, Type: logic.EventValveToggled, Source: src, Valve: c.valve.Target()})
}

// Tick runs one control pass and returns the events it produced.
func (c *Controller) Tick(now time.Time) []logic.Event {
	c.tickValve(now)
	c.checkButton(now)
	c.checkOverride(now)
	if now.Sub(c.lastTempRead) >= c.cfg.TempInterval {
		c.refreshTemperatures(now)
	}
	c.stepHeaterTest(now)
	if now.Sub(c.lastPumpPoll) >= c.cfg.PumpPoll {
		c.lastPumpPoll = now
		c.observePump(now)
	}
	c.refreshDisplay()
	return c.takeEvents()
}

func (c *Controller) tickValve(now time.Time) {
	done, err := c.valve.Tick(now)
	if err != nil {
		log.Printf("valve: %v", err)
	}
	if !done {
		return
	}
	typ := logic.EventValveClosed
	if c.valve.Position() == logic.PositionOpen {
		typ = logic.EventValveOpened
	}
	c.emit(logic.Event{Timestamp: now, Type: typ, Valve: c.valve.Position()})
}

func (c *Controller) checkButton(now time.Time) {
	if c.deps.Button == nil {
		return
	}
	pressed, err := c.deps.Button.Pressed()
	if err != nil {
		log.Printf("button: %v", err)
		return
	}
	// The edge is always tracked so a press held through the end of the
	// window does not fire when it expires.
	if c.button.Sample(pressed, now) && !c.override.Active() {
		c.toggle(now, logic.SourceButton)
	}
}

func (c *Controller) checkOverride(now time.Time) {
	if !c.override.Expire(now) {
		return
	}
	if err := c.valve.Stop(now); err != nil {
		log.Printf("valve: %v", err)
	}
	log.Printf("override: expired, automatic control resumed")
	c.emit(logic.Event{Timestamp: now, Type: logic.EventOverrideExpired, Valve: c.valve.Position()})
}

func (c *Controller) refreshTemperatures(now time.Time) {
	c.lastTempRead = now
	r, err := c.measure(now)
	if err != nil {
		if c.sensorFault == nil || faultClass(c.sensorFault) != faultClass(err) {
			log.Printf("sensor: %v (keeping last good reading)", err)
			c.emit(logic.Event{Timestamp: now, Type: logic.EventSensorFault, Detail: err.Error()})
		}
		c.sensorFault = err
		return
	}
	if c.sensorFault != nil {
		log.Printf("sensor: readings valid again")
	}
	c.sensorFault = nil
	c.reading = r
}

var errSensorRead = errors.New("sensor read failed")

// faultClass maps a read error to the fault it reports, so a faulty probe
// whose readings drift is reported once.
func faultClass(err error) error {
	for _, known := range []error{sensor.ErrDisconnected, sensor.ErrCRC} {
		if errors.Is(err, known) {
			return known
		}
	}
	return errSensorRead
}

func (c *Controller) measure(now time.Time) (logic.Reading, error) {
	pool, collector, err := c.deps.Temps.Read()
	r := logic.Reading{Pool: pool, Collector: collector, At: now}
	return r, err
}

func (c *Controller) stepHeaterTest(now time.Time) {
	before := c.test.Phase()
	evs, err := c.test.Step(now, c.override.Active(), c.valve, plant{c: c, now: now})
	if err != nil {
		log.Printf("%v", err)
	}
	for _, ev := range evs {
		switch ev.Type {
		case logic.EventTestStarted:
			c.testStartedPump = !c.pumpOn
			log.Printf("heater test: starting")
		case logic.EventTestEffective, logic.EventTestIneffective:
			log.Printf("heater test: pool %.2f C, collector %.2f C: %s",
				ev.Reading.Pool, ev.Reading.Collector, ev.Type)
		}
	}
	c.emit(evs...)
	if after := c.test.Phase(); after != before {
		log.Printf("heater test: %s -> %s", before, after)
	}
}

func (c *Controller) observePump(now time.Time) {
	on, err := c.pollPump()
	if err != nil {
		log.Printf("relay: cannot get pump state: %v", err)
		return
	}
	c.pumpOn, c.pumpKnown = on, true
	if c.runtime.Observe(on, now) {
		typ := logic.EventPumpOff
		if on {
			typ = logic.EventPumpOn
		}
		c.emit(logic.Event{Timestamp: now, Type: typ, Valve: c.valve.Position()})
	}
	log.Printf("pool %.2f C | collector %.2f C | pump %s | pump run today %d min",
		c.reading.Pool, c.reading.Collector, display.OnOff(on), int(c.runtime.Today().Minutes()))
}

func (c *Controller) pollPump() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.NetworkTimeout)
	defer cancel()
	return c.deps.Pump.PumpState(ctx)
}

func (c *Controller) setPump(on bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.NetworkTimeout)
	defer cancel()
	if err := c.deps.Pump.SetPump(ctx, on); err != nil {
		log.Printf("relay: cannot turn pump %s: %v", display.OnOff(on), err)
		return
	}
	log.Printf("relay: pump turned %s", display.OnOff(on))
}

func (c *Controller) refreshDisplay() {
	l1, l2 := display.Lines(c.reading.Pool, c.reading.Collector, c.pumpOn, c.collectorOn)
	frame := [2]string{l1, l2}
	if frame == c.lastFrame {
		return
	}
	if err := c.deps.Display.Show(l1, l2); err != nil {
		log.Printf("display: %v", err)
		return
	}
	c.lastFrame = frame
}

func (c *Controller) emit(evs ...logic.Event) {
	c.events = append(c.events, evs...)
}

func (c *Controller) takeEvents() []logic.Event {
	evs := c.events
	c.events = nil
	return evs
}

// disconnectedC is the probe sentinel for "no answer". Thermometers should
// report it as an error; values at or below it are never trusted.
const disconnectedC = -127

// plant adapts the controller to what the heater test drives.
type plant struct {
	c   *Controller
	now time.Time
}

func (p plant) SetPump(on bool)      { p.c.setPump(on) }
func (p plant) SetCollector(on bool) { p.c.collectorOn = on }

// Measure takes a fresh reading and refreshes the cache with it.
func (p plant) Measure() (logic.Reading, error) {
	r, err := p.c.measure(p.now)
	if err != nil {
		return r, err
	}
	if r.Pool <= disconnectedC || r.Collector <= disconnectedC {
		return r, sensor.ErrDisconnected
	}
	p.c.reading = r
	p.c.lastTempRead = p.now
	return r, nil
}
