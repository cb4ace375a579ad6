package display

// Fake records what was shown.
type Fake struct {
	// Frames holds every (line1, line2) pair shown, in order.
	Frames [][2]string

	// ShowError, if set, will be returned by Show.
	ShowError error

	Closed bool
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// Show records the frame.
func (f *Fake) Show(line1, line2 string) error {
	if f.ShowError != nil {
		return f.ShowError
	}
	f.Frames = append(f.Frames, [2]string{line1, line2})
	return nil
}

// Last returns the most recent frame.
func (f *Fake) Last() [2]string {
	if len(f.Frames) == 0 {
		return [2]string{}
	}
	return f.Frames[len(f.Frames)-1]
}

// Close marks the display as closed.
func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
