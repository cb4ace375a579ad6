package logic

import (
	"testing"
	"time"
)

func TestButtonBaseline(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewButtonDetector(50 * time.Millisecond)

	// Held at startup: establishes the baseline, never fires.
	if b.Sample(true, now) {
		t.Error("first sample fired")
	}
	if b.IsBaselined() {
		t.Error("baselined after one sample")
	}
	if b.Sample(true, now.Add(50*time.Millisecond)) {
		t.Error("baseline sample fired")
	}
	if !b.IsBaselined() || !b.Pressed() {
		t.Errorf("baselined=%v pressed=%v, want true true", b.IsBaselined(), b.Pressed())
	}
	if b.Presses() != 0 {
		t.Errorf("expected 0 presses, got %d", b.Presses())
	}
}

func TestButtonBaselineResetOnChange(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewButtonDetector(50 * time.Millisecond)

	b.Sample(true, now)
	b.Sample(false, now.Add(20*time.Millisecond))
	b.Sample(false, now.Add(50*time.Millisecond))
	if b.IsBaselined() {
		t.Error("baselined before the new level held for the debounce period")
	}
	b.Sample(false, now.Add(70*time.Millisecond))
	if !b.IsBaselined() || b.Pressed() {
		t.Errorf("baselined=%v pressed=%v, want true false", b.IsBaselined(), b.Pressed())
	}
}

func TestButtonPressFiresOnceOnEdge(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewButtonDetector(50 * time.Millisecond)
	at := func(ms int) time.Time { return now.Add(time.Duration(ms) * time.Millisecond) }

	b.Sample(false, at(0))
	b.Sample(false, at(50))

	steps := []struct {
		ms      int
		pressed bool
		want    bool
	}{
		{100, true, false},  // edge seen, debouncing
		{120, true, false},  // still debouncing
		{150, true, true},   // held for the debounce period
		{160, true, false},  // held: no repeat
		{1000, true, false}, // still held
		{1010, false, false},
		{1060, false, false}, // released
		{1100, true, false},
		{1110, false, false}, // bounce cancels the pending press
		{1160, true, false},
		{1210, true, true},
	}
	for _, s := range steps {
		if got := b.Sample(s.pressed, at(s.ms)); got != s.want {
			t.Errorf("t=%dms pressed=%v: got %v, want %v", s.ms, s.pressed, got, s.want)
		}
	}
	if b.Presses() != 2 {
		t.Errorf("expected 2 presses, got %d", b.Presses())
	}
}

func TestButtonZeroDebounce(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewButtonDetector(0)

	b.Sample(false, now)
	b.Sample(false, now.Add(10*time.Millisecond))
	if !b.Sample(true, now.Add(20*time.Millisecond)) {
		t.Error("press not reported with zero debounce")
	}
	if b.Sample(true, now.Add(30*time.Millisecond)) {
		t.Error("held button reported twice")
	}
}
