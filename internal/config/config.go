// Package config loads the controller configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the controller configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Relay      RelayConfig      `yaml:"relay"`
	GPIO       GPIOConfig       `yaml:"gpio"`
	Sensors    SensorConfig     `yaml:"sensors"`
	Clock      ClockConfig      `yaml:"clock"`
	Timing     TimingConfig     `yaml:"timing"`
	HeaterTest HeaterTestConfig `yaml:"heater_test"`
}

// HTTPConfig contains status server settings
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// MQTTConfig contains event publishing settings
type MQTTConfig struct {
	Broker    string   `yaml:"broker"` // empty disables MQTT
	ClientID  string   `yaml:"client_id"`
	Heartbeat Duration `yaml:"heartbeat"` // 0 disables heartbeat events
}

// RelayConfig addresses the network relay that powers the pump
type RelayConfig struct {
	URL     string   `yaml:"url"`
	Channel int      `yaml:"channel"`
	Timeout Duration `yaml:"timeout"`
}

// GPIOConfig contains BCM pin numbers
type GPIOConfig struct {
	Chip   string    `yaml:"chip"`
	Open   int       `yaml:"open_pin"`
	Close  int       `yaml:"close_pin"`
	Button int       `yaml:"button_pin"`
	LCD    LCDConfig `yaml:"lcd"`
}

// LCDConfig contains the HD44780 wiring
type LCDConfig struct {
	Enabled bool `yaml:"enabled"`

	RS int `yaml:"rs"`
	EN int `yaml:"en"`
	D4 int `yaml:"d4"`
	D5 int `yaml:"d5"`
	D6 int `yaml:"d6"`
	D7 int `yaml:"d7"`
}

func (c LCDConfig) pins() []int {
	return []int{c.RS, c.EN, c.D4, c.D5, c.D6, c.D7}
}

// SensorConfig holds the one-wire device files of the two probes
type SensorConfig struct {
	Pool      string `yaml:"pool"`
	Collector string `yaml:"collector"`
}

// ClockConfig selects the wall clock source
type ClockConfig struct {
	NTPHost  string `yaml:"ntp_host"` // empty uses the system clock
	Timezone string `yaml:"timezone"` // empty uses the system zone
}

// TimingConfig holds every timing constant of the control loop
type TimingConfig struct {
	Tick           Duration `yaml:"tick"`
	ValvePulse     Duration `yaml:"valve_pulse"`
	OverrideWindow Duration `yaml:"override_window"`
	ButtonDebounce Duration `yaml:"button_debounce"`
	TempInterval   Duration `yaml:"temp_interval"`
	PumpPoll       Duration `yaml:"pump_poll"`
	PumpSettle     Duration `yaml:"pump_settle"`
	TestInterval   Duration `yaml:"test_interval"`
	TestDuration   Duration `yaml:"test_duration"`
}

// HeaterTestConfig holds the effectiveness test window and threshold
type HeaterTestConfig struct {
	WindowStart int     `yaml:"window_start"` // first hour, inclusive
	WindowEnd   int     `yaml:"window_end"`   // last hour, exclusive
	Threshold   float32 `yaml:"threshold"`    // degrees C
}

// Default returns the configuration used when no file is given.
// The valve pulse matches the travel time of the installed actuator; there
// is no position feedback, so it must be recalibrated if the valve changes.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":80"},
		MQTT: MQTTConfig{
			ClientID:  "pool-controller",
			Heartbeat: Duration(15 * time.Minute),
		},
		Relay: RelayConfig{
			URL:     "http://192.168.178.33",
			Timeout: Duration(3 * time.Second),
		},
		GPIO: GPIOConfig{
			Chip:   "gpiochip0",
			Open:   20,
			Close:  21,
			Button: 26,
		},
		Sensors: SensorConfig{
			Pool:      "/sys/bus/w1/devices/28-000000000001/w1_slave",
			Collector: "/sys/bus/w1/devices/28-000000000002/w1_slave",
		},
		Clock: ClockConfig{
			NTPHost:  "pool.ntp.org",
			Timezone: "Europe/Berlin",
		},
		Timing: TimingConfig{
			Tick:           Duration(10 * time.Millisecond),
			ValvePulse:     Duration(15 * time.Second),
			OverrideWindow: Duration(20 * time.Second),
			ButtonDebounce: Duration(0),
			TempInterval:   Duration(time.Second),
			PumpPoll:       Duration(10 * time.Second),
			PumpSettle:     Duration(time.Second),
			TestInterval:   Duration(time.Hour),
			TestDuration:   Duration(5 * time.Minute),
		},
		HeaterTest: HeaterTestConfig{
			WindowStart: 9,
			WindowEnd:   16,
			Threshold:   0.5,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks for settings the controller cannot run with.
func (c *Config) Validate() error {
	var errs []error
	positive := map[string]Duration{
		"timing.tick":            c.Timing.Tick,
		"timing.valve_pulse":     c.Timing.ValvePulse,
		"timing.override_window": c.Timing.OverrideWindow,
		"timing.temp_interval":   c.Timing.TempInterval,
		"timing.pump_poll":       c.Timing.PumpPoll,
		"timing.test_interval":   c.Timing.TestInterval,
		"timing.test_duration":   c.Timing.TestDuration,
		"relay.timeout":          c.Relay.Timeout,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Timing.PumpSettle < 0 || c.Timing.ButtonDebounce < 0 {
		errs = append(errs, errors.New("timing.pump_settle and timing.button_debounce must not be negative"))
	}
	if c.GPIO.Open == c.GPIO.Close {
		errs = append(errs, fmt.Errorf("gpio.open_pin and gpio.close_pin are both %d", c.GPIO.Open))
	}
	if lcd := c.GPIO.LCD; lcd.Enabled {
		seen := map[int]bool{c.GPIO.Open: true, c.GPIO.Close: true}
		for _, pin := range lcd.pins() {
			if seen[pin] {
				errs = append(errs, fmt.Errorf("gpio.lcd pin %d is used twice", pin))
			}
			seen[pin] = true
		}
	}
	h := c.HeaterTest
	if h.WindowStart < 0 || h.WindowEnd > 24 || h.WindowEnd <= h.WindowStart {
		errs = append(errs, fmt.Errorf("heater_test window [%d, %d) is invalid", h.WindowStart, h.WindowEnd))
	}
	if c.Relay.URL == "" {
		errs = append(errs, errors.New("relay.url is required"))
	}
	return errors.Join(errs...)
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
