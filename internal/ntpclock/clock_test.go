package ntpclock

import (
	"errors"
	"testing"
	"time"

	"github.com/beevik/ntp"
)

func fakeQuery(t *testing.T, offset time.Duration, err error) *int {
	t.Helper()
	calls := 0
	old := ntpQuery
	ntpQuery = func(host string, opt ntp.QueryOptions) (*ntp.Response, error) {
		calls++
		if err != nil {
			return nil, err
		}
		return &ntp.Response{ClockOffset: offset}, nil
	}
	t.Cleanup(func() { ntpQuery = old })
	return &calls
}

func TestNowAppliesOffsetAndLocation(t *testing.T) {
	calls := fakeQuery(t, time.Hour, nil)
	c, err := New(Params{Location: "UTC", Resync: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if *calls != 1 {
		t.Errorf("expected one initial query, got %d", *calls)
	}
	got := c.Now()
	want := time.Now().Add(time.Hour)
	if d := got.Sub(want); d < -time.Second || d > time.Second {
		t.Errorf("Now off by %v", d)
	}
	if got.Location().String() != "UTC" {
		t.Errorf("location: got %v", got.Location())
	}
	if c.Offset() != time.Hour {
		t.Errorf("Offset: got %v", c.Offset())
	}
}

func TestNowIsMonotonic(t *testing.T) {
	fakeQuery(t, 0, nil)
	c, err := New(Params{Location: "UTC", Resync: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	prev := c.Now()
	// Step the offset backwards, as a resync might.
	c.mu.Lock()
	c.offset = -time.Minute
	c.mu.Unlock()
	for i := 0; i < 10; i++ {
		now := c.Now()
		if now.Before(prev) {
			t.Fatalf("time went backwards: %v before %v", now, prev)
		}
		prev = now
	}
}

func TestResyncShiftsDurations(t *testing.T) {
	fakeQuery(t, 0, nil)
	c, err := New(Params{Location: "UTC", Resync: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	prev := c.Now()
	c.mu.Lock()
	c.offset = time.Minute
	c.mu.Unlock()
	if d := c.Now().Sub(prev); d < time.Minute || d > time.Minute+time.Second {
		t.Errorf("duration across a one minute resync: got %v", d)
	}
}

func TestNewQueryError(t *testing.T) {
	fakeQuery(t, 0, errors.New("no route to host"))
	if _, err := New(Params{Host: "ntp.invalid"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewBadLocation(t *testing.T) {
	fakeQuery(t, 0, nil)
	if _, err := New(Params{Location: "Not/AZone"}); err == nil {
		t.Fatal("expected error for bad timezone")
	}
}

func TestSystem(t *testing.T) {
	loc := time.FixedZone("X", 2*3600)
	now := System(loc)()
	if now.Location() != loc {
		t.Errorf("location: got %v", now.Location())
	}
}
