// Package ntpclock provides an NTP-backed source of local wall-clock time
// for deciding the hour of day, for use when the system clock of a small
// board without a battery-backed RTC can't be relied upon after boot.
package ntpclock

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/beevik/ntp"
)

const DefaultHost = "pool.ntp.org"
const DefaultTimeout = 30 * time.Second
const DefaultResync = 30 * time.Minute

// ntpQuery is used to query the current NTP time.
// It's overridden for tests.
var ntpQuery = ntp.QueryWithOptions

// Params holds parameters for New.
type Params struct {
	// Host holds the NTP host to use. If empty, DefaultHost is used.
	Host string
	// Timeout holds the timeout on the initial query.
	// If zero, DefaultTimeout is used.
	Timeout time.Duration
	// Resync holds how often the offset is refreshed.
	// If zero, DefaultResync is used.
	Resync time.Duration
	// Location holds the time zone name used for returned times.
	// If empty, the system local zone is used.
	Location string
}

// Clock returns NTP-corrected time in a fixed location.
type Clock struct {
	closed   chan struct{}
	location *time.Location
	host     string
	resync   time.Duration

	// mu guards the fields below it.
	mu sync.Mutex
	// offset holds the difference between NTP time and the system clock.
	offset time.Duration
	// prevTime holds the previous time reading returned from Now.
	prevTime time.Time
}

// New returns a Clock that queries the given NTP host for time.
// New might block for up to the configured timeout while it tries to
// find out the time. The Clock should be closed after use.
func New(p Params) (*Clock, error) {
	if p.Host == "" {
		p.Host = DefaultHost
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	if p.Resync == 0 {
		p.Resync = DefaultResync
	}
	loc, err := LoadLocation(p.Location)
	if err != nil {
		return nil, err
	}
	c := &Clock{
		host:     p.Host,
		resync:   p.Resync,
		location: loc,
		closed:   make(chan struct{}),
	}
	if err := c.update(p.Timeout); err != nil {
		return nil, fmt.Errorf("query %s: %w", p.Host, err)
	}
	go c.updater()
	return c, nil
}

// LoadLocation resolves a time zone name; empty means the system local zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("cannot load timezone %q: %v", name, err)
	}
	return loc, nil
}

// Now returns the corrected time. Results never go backwards. The offset
// is applied to the monotonic reading as well as the wall reading, so
// durations measured across a resync change by the difference between the
// old and new offsets; system clock steps do not affect them.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Now().Add(c.offset).In(c.location)
	if t.Before(c.prevTime) {
		return c.prevTime
	}
	c.prevTime = t
	return t
}

// Offset returns the most recent NTP offset from the system clock.
func (c *Clock) Offset() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

func (c *Clock) updater() {
	for {
		select {
		case <-c.closed:
			return
		case <-time.After(c.resync):
		}
		if err := c.update(20 * time.Second); err != nil {
			log.Printf("ntpclock: cannot update time from NTP: %v", err)
		}
	}
}

func (c *Clock) update(timeout time.Duration) error {
	resp, err := ntpQuery(c.host, ntp.QueryOptions{
		Timeout: timeout,
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = resp.ClockOffset
	return nil
}

// Close stops the background resync.
func (c *Clock) Close() {
	close(c.closed)
}

// System returns a now function that reads the system clock in loc.
// It is used when NTP is disabled or unreachable at startup.
func System(loc *time.Location) func() time.Time {
	return func() time.Time {
		return time.Now().In(loc)
	}
}
