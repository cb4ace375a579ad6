// Package display renders the controller state on a 16x2 character LCD.
package display

import (
	"fmt"
	"strings"
)

// Size of the character display.
const (
	Cols = 16
	Rows = 2
)

// Display shows two lines of text.
type Display interface {
	Show(line1, line2 string) error
	Close() error
}

// Lines formats the two status lines:
//
//	P:27.3 Pump:ON
//	H:41.0 Heat:OFF
func Lines(pool, collector float32, pumpOn, heatOn bool) (string, string) {
	l1 := fmt.Sprintf("P:%.1f Pump:%s", pool, OnOff(pumpOn))
	l2 := fmt.Sprintf("H:%.1f Heat:%s", collector, OnOff(heatOn))
	return fit(l1), fit(l2)
}

// fit pads or truncates s to exactly Cols characters so a shorter line
// overwrites whatever was there before.
func fit(s string) string {
	if len(s) > Cols {
		return s[:Cols]
	}
	return s + strings.Repeat(" ", Cols-len(s))
}

// OnOff returns "ON" or "OFF".
func OnOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// Nop discards everything. It is used when no LCD is wired.
type Nop struct{}

func (Nop) Show(string, string) error { return nil }
func (Nop) Close() error              { return nil }
