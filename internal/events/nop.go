package events

// Nop discards everything. The engine falls back to it when no event stream
// is configured, so emitting against it must cost nothing on the hot path.
var Nop Tracer = nopTracer{}

type nopTracer struct{}

func (nopTracer) Emit(Event)    {}
func (nopTracer) Flush() error  { return nil }
func (nopTracer) Close() error  { return nil }
func (nopTracer) Level() Level  { return LevelOff }
func (nopTracer) Enabled() bool { return false }
