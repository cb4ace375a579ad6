//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealValve is not available on non-Linux platforms.
type RealValve struct{}

// NewRealValve returns an error on non-Linux platforms.
func NewRealValve(chipName string, pinOpen, pinClose int) (*RealValve, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (v *RealValve) Set(open, close bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (v *RealValve) Close() error {
	return nil
}

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(chipName string, pin int) (*RealButton, error) {
	return nil, errUnsupported
}

// Pressed is not implemented on non-Linux platforms.
func (b *RealButton) Pressed() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (b *RealButton) Close() error {
	return nil
}
