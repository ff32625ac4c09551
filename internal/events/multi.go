package events

// MultiTracer duplicates every event across a set of backends. The CLI uses
// it to stream formatted events to the terminal while a ring buffer keeps the
// tail for post-run inspection.
type MultiTracer struct {
	backends []Tracer
	level    Level
}

// NewMultiTracer combines backends under a single level gate. Each backend
// may still filter further on its own level.
func NewMultiTracer(level Level, backends ...Tracer) *MultiTracer {
	return &MultiTracer{backends: backends, level: level}
}

// Emit hands the event to every backend.
func (t *MultiTracer) Emit(ev Event) {
	for _, b := range t.backends {
		b.Emit(ev)
	}
}

// Flush flushes every backend and reports the first failure.
func (t *MultiTracer) Flush() error {
	var first error
	for _, b := range t.backends {
		if err := b.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every backend and reports the first failure.
func (t *MultiTracer) Close() error {
	var first error
	for _, b := range t.backends {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *MultiTracer) Level() Level { return t.level }

func (t *MultiTracer) Enabled() bool { return t.level > LevelOff }
