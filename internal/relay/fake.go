package relay

import "context"

// Fake is an in-memory relay for tests.
type Fake struct {
	// On is the current output state.
	On bool

	// Commands records every SetPump call.
	Commands []bool

	// StateError, if set, will be returned by PumpState.
	StateError error

	// SetError, if set, will be returned by SetPump. The state is not
	// changed when it is set.
	SetError error

	// Polls counts PumpState calls.
	Polls int
}

// NewFake returns a Fake with the output in the given state.
func NewFake(on bool) *Fake {
	return &Fake{On: on}
}

// PumpState returns the current output state.
func (f *Fake) PumpState(ctx context.Context) (bool, error) {
	f.Polls++
	if f.StateError != nil {
		return false, f.StateError
	}
	return f.On, nil
}

// SetPump records the command and switches the output.
func (f *Fake) SetPump(ctx context.Context, on bool) error {
	f.Commands = append(f.Commands, on)
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	return nil
}
