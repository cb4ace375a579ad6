//go:build linux

package display

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Pins are the BCM offsets of an HD44780 wired in 4-bit mode with RW tied
// to ground.
type Pins struct {
	RS, EN         int
	D4, D5, D6, D7 int
}

// HD44780 drives a character LCD over six GPIO output lines.
type HD44780 struct {
	lines *gpiocdev.Lines
	pins  Pins
	// vals is reused for every write; order matches the requested offsets:
	// RS, EN, D4, D5, D6, D7.
	vals []int
}

const (
	cmdClear       = 0x01
	cmdEntryMode   = 0x06 // increment, no shift
	cmdDisplayOn   = 0x0c // display on, cursor off, blink off
	cmdFunction4x2 = 0x28 // 4-bit, 2 lines, 5x8 font
	cmdSetDDRAM    = 0x80
)

var rowOffsets = [Rows]byte{0x00, 0x40}

// NewHD44780 requests the LCD lines on chipName and initialises the
// controller into 4-bit, two-line mode.
func NewHD44780(chipName string, p Pins) (*HD44780, error) {
	offsets := []int{p.RS, p.EN, p.D4, p.D5, p.D6, p.D7}
	l, err := gpiocdev.RequestLines(chipName, offsets, gpiocdev.AsOutput(0, 0, 0, 0, 0, 0))
	if err != nil {
		return nil, fmt.Errorf("request lcd lines %v: %w", offsets, err)
	}
	d := &HD44780{lines: l, pins: p, vals: make([]int, len(offsets))}
	if err := d.init(); err != nil {
		l.Close()
		return nil, fmt.Errorf("init lcd: %w", err)
	}
	return d, nil
}

// init runs the 4-bit initialisation-by-instruction sequence from the
// HD44780 datasheet (figure 24).
func (d *HD44780) init() error {
	time.Sleep(50 * time.Millisecond)
	for _, delay := range []time.Duration{5 * time.Millisecond, 200 * time.Microsecond, 200 * time.Microsecond} {
		if err := d.nibble(false, 0x03); err != nil {
			return err
		}
		time.Sleep(delay)
	}
	if err := d.nibble(false, 0x02); err != nil {
		return err
	}
	for _, c := range []byte{cmdFunction4x2, cmdDisplayOn, cmdClear, cmdEntryMode} {
		if err := d.command(c); err != nil {
			return err
		}
	}
	time.Sleep(2 * time.Millisecond)
	return nil
}

// Show writes both rows. Lines are expected to be Cols wide already;
// longer text is cut off.
func (d *HD44780) Show(line1, line2 string) error {
	for row, text := range [Rows]string{line1, line2} {
		if err := d.command(cmdSetDDRAM | rowOffsets[row]); err != nil {
			return fmt.Errorf("lcd row %d: %w", row, err)
		}
		if len(text) > Cols {
			text = text[:Cols]
		}
		for i := 0; i < len(text); i++ {
			if err := d.write(true, text[i]); err != nil {
				return fmt.Errorf("lcd row %d: %w", row, err)
			}
		}
	}
	return nil
}

func (d *HD44780) command(c byte) error {
	if err := d.write(false, c); err != nil {
		return err
	}
	if c == cmdClear {
		time.Sleep(2 * time.Millisecond)
	}
	return nil
}

func (d *HD44780) write(data bool, b byte) error {
	if err := d.nibble(data, b>>4); err != nil {
		return err
	}
	return d.nibble(data, b&0x0f)
}

// nibble puts four bits on D4-D7 and pulses EN.
func (d *HD44780) nibble(data bool, n byte) error {
	rs := 0
	if data {
		rs = 1
	}
	d.vals[0] = rs
	d.vals[1] = 0
	for i := 0; i < 4; i++ {
		d.vals[2+i] = int(n>>i) & 1
	}
	if err := d.lines.SetValues(d.vals); err != nil {
		return err
	}
	d.vals[1] = 1
	if err := d.lines.SetValues(d.vals); err != nil {
		return err
	}
	time.Sleep(time.Microsecond)
	d.vals[1] = 0
	if err := d.lines.SetValues(d.vals); err != nil {
		return err
	}
	time.Sleep(50 * time.Microsecond)
	return nil
}

// Close clears the display and releases the lines.
func (d *HD44780) Close() error {
	cerr := d.command(cmdClear)
	if err := d.lines.Close(); err != nil {
		return fmt.Errorf("close lcd lines: %w", err)
	}
	return cerr
}
