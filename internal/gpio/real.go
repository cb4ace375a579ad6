//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealValve drives the gate outputs through the Linux GPIO character device.
type RealValve struct {
	chip      *gpiocdev.Chip
	openLine  *gpiocdev.Line
	closeLine *gpiocdev.Line
	open      bool
	close     bool
}

// NewRealValve requests both gate lines as outputs, initially low.
func NewRealValve(chipName string, pinOpen, pinClose int) (*RealValve, error) {
	if pinOpen == pinClose {
		return nil, fmt.Errorf("open and close gates share pin %d", pinOpen)
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	openLine, err := chip.RequestLine(pinOpen, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request open pin %d: %w", pinOpen, err)
	}

	closeLine, err := chip.RequestLine(pinClose, gpiocdev.AsOutput(0))
	if err != nil {
		openLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request close pin %d: %w", pinClose, err)
	}

	return &RealValve{
		chip:      chip,
		openLine:  openLine,
		closeLine: closeLine,
	}, nil
}

// Set writes both gate outputs, releasing before asserting.
func (v *RealValve) Set(open, close bool) error {
	if !open && v.open {
		if err := v.openLine.SetValue(0); err != nil {
			return fmt.Errorf("release open pin: %w", err)
		}
		v.open = false
	}
	if !close && v.close {
		if err := v.closeLine.SetValue(0); err != nil {
			return fmt.Errorf("release close pin: %w", err)
		}
		v.close = false
	}
	if open {
		if err := v.openLine.SetValue(1); err != nil {
			return fmt.Errorf("assert open pin: %w", err)
		}
		v.open = true
	}
	if close {
		if err := v.closeLine.SetValue(1); err != nil {
			return fmt.Errorf("assert close pin: %w", err)
		}
		v.close = true
	}
	return nil
}

// Close drives both outputs low, then returns the lines to inputs with
// pull-down (matching Pi boot defaults) so the valve motor cannot be left
// energised across a restart.
func (v *RealValve) Close() error {
	var errs []error

	for name, l := range map[string]*gpiocdev.Line{"open": v.openLine, "close": v.closeLine} {
		if l == nil {
			continue
		}
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release %s pin: %w", name, err))
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}

	if v.chip != nil {
		if err := v.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealButton samples the toggle button wired between the pin and ground.
type RealButton struct {
	line *gpiocdev.Line
}

// NewRealButton requests the button line as an input with pull-up.
func NewRealButton(chipName string, pin int) (*RealButton, error) {
	line, err := gpiocdev.RequestLine(chipName, pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	return &RealButton{line: line}, nil
}

// Pressed returns true while the button pulls the line low.
func (b *RealButton) Pressed() (bool, error) {
	raw, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return raw == 0, nil
}

// Close releases the button line.
func (b *RealButton) Close() error {
	if b.line == nil {
		return nil
	}
	return b.line.Close()
}
