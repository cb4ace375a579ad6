package sensor

// Sample is one scripted pair of readings.
type Sample struct {
	Pool      float32
	Collector float32
	Err       error
}

// Fake is a test double that returns scripted readings.
type Fake struct {
	// Samples contains scripted readings. Each call to Read() consumes
	// the next sample; the last one repeats.
	Samples []Sample
	index   int

	// Reads counts Read calls.
	Reads int
}

// NewFake creates a Fake that returns the given samples.
func NewFake(samples ...Sample) *Fake {
	return &Fake{Samples: samples}
}

// Read returns the next scripted sample.
func (f *Fake) Read() (float32, float32, error) {
	f.Reads++
	if len(f.Samples) == 0 {
		return DisconnectedC, DisconnectedC, ErrDisconnected
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.Pool, s.Collector, s.Err
}

// Set replaces the script with a single repeating sample.
func (f *Fake) Set(pool, collector float32) {
	f.Samples = []Sample{{Pool: pool, Collector: collector}}
	f.index = 0
}
