package gpio

import "errors"

// FakeValve is a test double that records output writes.
type FakeValve struct {
	// Writes contains every (open, close) pair written, in order.
	Writes []Outputs

	// BothAsserted is set if any write asserted both outputs.
	BothAsserted bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// Outputs is one write of the two gate outputs.
type Outputs struct {
	Open  bool
	Close bool
}

// NewFakeValve creates a FakeValve with both outputs released.
func NewFakeValve() *FakeValve {
	return &FakeValve{}
}

// Set records the write.
func (f *FakeValve) Set(open, close bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	if open && close {
		f.BothAsserted = true
	}
	f.Writes = append(f.Writes, Outputs{Open: open, Close: close})
	return nil
}

// Current returns the last written outputs.
func (f *FakeValve) Current() Outputs {
	if len(f.Writes) == 0 {
		return Outputs{}
	}
	return f.Writes[len(f.Writes)-1]
}

// Close releases the outputs and marks the valve as closed.
func (f *FakeValve) Close() error {
	f.Writes = append(f.Writes, Outputs{})
	f.Closed = true
	return nil
}

// FakeButton is a test double that returns scripted button levels.
type FakeButton struct {
	// Samples contains scripted logical levels (true = pressed).
	// Each call to Pressed() consumes the next sample.
	Samples []bool
	// index tracks current position in Samples
	index int
	// Closed tracks if Close was called
	Closed bool
	// ReadError, if set, will be returned by Pressed()
	ReadError error
}

// NewFakeButton creates a FakeButton with the given samples.
func NewFakeButton(samples ...bool) *FakeButton {
	return &FakeButton{Samples: samples}
}

// Pressed returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButton) Pressed() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}
	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the button to the beginning of samples.
func (f *FakeButton) Reset() {
	f.index = 0
	f.Closed = false
}
