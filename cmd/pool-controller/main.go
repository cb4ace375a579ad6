// Command pool-controller runs the solar pool heating loop: diverter valve,
// pump relay, scheduled heater tests and manual override.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/pool-controller/internal/config"
	"github.com/sweeney/pool-controller/internal/controller"
	"github.com/sweeney/pool-controller/internal/display"
	"github.com/sweeney/pool-controller/internal/gpio"
	"github.com/sweeney/pool-controller/internal/logic"
	"github.com/sweeney/pool-controller/internal/metrics"
	"github.com/sweeney/pool-controller/internal/mqtt"
	"github.com/sweeney/pool-controller/internal/ntpclock"
	"github.com/sweeney/pool-controller/internal/relay"
	"github.com/sweeney/pool-controller/internal/sensor"
	"github.com/sweeney/pool-controller/internal/status"
	"github.com/sweeney/pool-controller/internal/web"
)

// Startup relay check: the controller cannot run the loop without the pump.
const (
	relayAttempts = 30
	relayInterval = 500 * time.Millisecond
	restartDelay  = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (empty for built-in defaults)")
	printState := flag.Bool("print-state", false, "Print temperatures and pump state and exit")
	httpAddr := flag.String("http", "", `HTTP address, overrides the config file ("off" disables)`)
	broker := flag.String("broker", "", `MQTT broker, overrides the config file ("off" disables)`)

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyFlags(&cfg, *httpAddr, *broker)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func applyFlags(cfg *config.Config, httpAddr, broker string) {
	switch httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = httpAddr
	}
	switch broker {
	case "":
	case "off":
		cfg.MQTT.Broker = ""
	default:
		cfg.MQTT.Broker = broker
	}
}

func run(cfg config.Config, printOnly bool) error {
	pump := relay.NewClient(cfg.Relay.URL, cfg.Relay.Channel, cfg.Relay.Timeout.Duration())
	temps := sensor.NewW1(cfg.Sensors.Pool, cfg.Sensors.Collector)

	if printOnly {
		return printState(os.Stdout, temps, pump, cfg.Relay.Timeout.Duration())
	}

	if err := waitForRelay(pump, relayAttempts, relayInterval, cfg.Relay.Timeout.Duration(), time.Sleep); err != nil {
		log.Printf("startup failed, exiting in %v: %v", restartDelay, err)
		time.Sleep(restartDelay)
		return fmt.Errorf("startup: %w", err)
	}

	now, synced, closeClock := setupClock(cfg.Clock)
	defer closeClock()

	valve, err := gpio.NewRealValve(cfg.GPIO.Chip, cfg.GPIO.Open, cfg.GPIO.Close)
	if err != nil {
		return fmt.Errorf("init valve: %w", err)
	}
	defer valve.Close()

	deps := controller.Deps{Valve: valve, Pump: pump, Temps: temps}
	if cfg.GPIO.Button != 0 {
		button, err := gpio.NewRealButton(cfg.GPIO.Chip, cfg.GPIO.Button)
		if err != nil {
			return fmt.Errorf("init button: %w", err)
		}
		defer button.Close()
		deps.Button = button
	}
	if lcd := cfg.GPIO.LCD; lcd.Enabled {
		d, err := display.NewHD44780(cfg.GPIO.Chip, display.Pins{
			RS: lcd.RS, EN: lcd.EN, D4: lcd.D4, D5: lcd.D5, D6: lcd.D6, D7: lcd.D7,
		})
		if err != nil {
			log.Printf("display: %v (continuing without it)", err)
		} else {
			defer d.Close()
			deps.Display = d
		}
	}

	ctrl := controller.New(controllerConfig(cfg), deps, now())
	if err := ctrl.Start(now()); err != nil {
		return fmt.Errorf("start controller: %w", err)
	}

	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.Discard{}
	if cfg.MQTT.Broker != "" {
		publisher = mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
	}
	defer publisher.Close()

	tracker := status.NewTracker(now(), statusConfig(cfg), now)
	tracker.SetClockSynced(synced)
	tracker.Update(ctrl.State(now()))

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	toggles := make(toggleQueue)
	if cfg.HTTP.Addr != "" {
		m := metrics.New(prometheus.NewRegistry())
		srv := web.New(cfg.HTTP.Addr, tracker, toggles, m.Handler(tracker))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http server listening on %s", cfg.HTTP.Addr)
	}

	heartbeat := cfg.MQTT.Heartbeat.Duration()
	log.Printf("started: tick=%v pulse=%v override=%v broker=%q heartbeat=%v",
		cfg.Timing.Tick.Duration(), cfg.Timing.ValvePulse.Duration(),
		cfg.Timing.OverrideWindow.Duration(), cfg.MQTT.Broker, heartbeat)

	ticker := time.NewTicker(cfg.Timing.Tick.Duration())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, publisher, publisher, tracker, heartbeat, now, ticker.C, toggles, sigCh)
}

// toggleRequest is an HTTP toggle waiting for the control loop.
type toggleRequest struct {
	done chan struct{}
}

// toggleQueue hands HTTP toggles to runLoop, which owns the controller.
type toggleQueue chan toggleRequest

// RequestToggle blocks until the loop has applied the toggle or ctx ends.
func (q toggleQueue) RequestToggle(ctx context.Context) error {
	req := toggleRequest{done: make(chan struct{})}
	select {
	case q <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runLoop(ctrl *controller.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, toggles <-chan toggleRequest, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	update := func(t time.Time) {
		if tracker == nil {
			return
		}
		tracker.Update(ctrl.State(t))
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			t := now()
			event := mqtt.SystemEvent{
				Timestamp: t,
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				update(t)
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case req := <-toggles:
			t := now()
			publishEvents(publisher, ctrl.Toggle(t, logic.SourceHTTP))
			update(t)
			close(req.done)

		case <-tick:
			t := now()
			publishEvents(publisher, ctrl.Tick(t))
			update(t)

			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				st := ctrl.State(t)
				log.Printf("heartbeat: valve=%s pump=%s override=%v test=%s pump_today=%dmin",
					st.Valve, display.OnOff(st.PumpOn), st.OverrideActive, st.TestPhase,
					int(st.PumpRuntimeToday.Minutes()))
				hb := mqtt.SystemEvent{Timestamp: t, Event: "HEARTBEAT"}
				if tracker != nil {
					hb.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hb); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

func publishEvents(publisher mqtt.Publisher, events []logic.Event) {
	for _, event := range events {
		log.Printf("event: %s (valve=%s source=%s)", event.Type, event.Valve, event.Source)
		if err := publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
		}
	}
}

// waitForRelay polls the pump relay until it answers.
func waitForRelay(pump controller.Pump, attempts int, interval, timeout time.Duration, sleep func(time.Duration)) error {
	var err error
	for i := 1; i <= attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		_, err = pump.PumpState(ctx)
		cancel()
		if err == nil {
			if i > 1 {
				log.Printf("relay: reachable after %d attempts", i)
			}
			return nil
		}
		if i < attempts {
			sleep(interval)
		}
	}
	return fmt.Errorf("relay unreachable after %d attempts: %w", attempts, err)
}

// setupClock returns the wall clock the controller runs on and whether it
// is known to be correct. With no NTP host configured the system clock is
// trusted; if the NTP host cannot be reached it is used but not trusted.
func setupClock(cc config.ClockConfig) (now func() time.Time, synced bool, closeFn func()) {
	loc, err := ntpclock.LoadLocation(cc.Timezone)
	if err != nil {
		log.Printf("clock: %v, using local zone", err)
		loc = time.Local
	}
	if cc.NTPHost == "" {
		return ntpclock.System(loc), true, func() {}
	}
	c, err := ntpclock.New(ntpclock.Params{Host: cc.NTPHost, Location: loc.String()})
	if err != nil {
		log.Printf("clock: %v, falling back to the system clock", err)
		return ntpclock.System(loc), false, func() {}
	}
	log.Printf("clock: NTP offset %v from %s", c.Offset(), cc.NTPHost)
	return c.Now, true, c.Close
}

func printState(w io.Writer, temps controller.Thermometer, pump controller.Pump, timeout time.Duration) error {
	pool, collector, err := temps.Read()
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	on, err := pump.PumpState(ctx)
	if err != nil {
		return fmt.Errorf("read relay: %w", err)
	}
	fmt.Fprintf(w, "Pool: %.2f Collector: %.2f Pump: %s\n", pool, collector, display.OnOff(on))
	return nil
}

func controllerConfig(cfg config.Config) controller.Config {
	t := cfg.Timing
	return controller.Config{
		ValvePulse:     t.ValvePulse.Duration(),
		OverrideWindow: t.OverrideWindow.Duration(),
		ButtonDebounce: t.ButtonDebounce.Duration(),
		TempInterval:   t.TempInterval.Duration(),
		PumpPoll:       t.PumpPoll.Duration(),
		NetworkTimeout: cfg.Relay.Timeout.Duration(),
		HeaterTest: logic.HeaterTestConfig{
			Interval:    t.TestInterval.Duration(),
			Duration:    t.TestDuration.Duration(),
			PumpSettle:  t.PumpSettle.Duration(),
			WindowStart: cfg.HeaterTest.WindowStart,
			WindowEnd:   cfg.HeaterTest.WindowEnd,
			Threshold:   cfg.HeaterTest.Threshold,
		},
	}
}

func statusConfig(cfg config.Config) status.Config {
	t := cfg.Timing
	return status.Config{
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		HeartbeatMs: cfg.MQTT.Heartbeat.Duration().Milliseconds(),
		TickMs:      t.Tick.Duration().Milliseconds(),
		PulseMs:     t.ValvePulse.Duration().Milliseconds(),
		OverrideMs:  t.OverrideWindow.Duration().Milliseconds(),
		TestEveryMs: t.TestInterval.Duration().Milliseconds(),
		TestForMs:   t.TestDuration.Duration().Milliseconds(),
		WindowStart: cfg.HeaterTest.WindowStart,
		WindowEnd:   cfg.HeaterTest.WindowEnd,
		Threshold:   cfg.HeaterTest.Threshold,
	}
}
