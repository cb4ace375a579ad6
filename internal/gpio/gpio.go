// Package gpio drives the valve gate outputs and samples the manual toggle
// button, with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// ValveDriver drives the open and close gate outputs of the diverter valve.
type ValveDriver interface {
	// Set writes both outputs. The output being released is always
	// written before the one being asserted, so both are never high at
	// the same time.
	Set(open, close bool) error

	// Close releases both outputs and the GPIO resources.
	Close() error
}

// Button samples the manual toggle push button.
type Button interface {
	// Pressed returns the logical button state.
	// The button is active-low: raw 0 = pressed.
	Pressed() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinOpen   = 20 // Valve open gate
	DefaultPinClose  = 21 // Valve close gate
	DefaultPinButton = 26 // Manual toggle, to ground, internal pull-up
)

// DefaultChip is the GPIO character device used on a Raspberry Pi.
const DefaultChip = "gpiochip0"
