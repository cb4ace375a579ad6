//go:build !linux

package display

import "errors"

// Pins are the BCM offsets of an HD44780 wired in 4-bit mode.
type Pins struct {
	RS, EN         int
	D4, D5, D6, D7 int
}

// HD44780 is not available on non-Linux platforms.
type HD44780 struct{}

// NewHD44780 returns an error on non-Linux platforms.
func NewHD44780(chipName string, p Pins) (*HD44780, error) {
	return nil, errors.New("display: not supported on this platform (requires Linux)")
}

func (d *HD44780) Show(line1, line2 string) error { return nil }
func (d *HD44780) Close() error                   { return nil }
