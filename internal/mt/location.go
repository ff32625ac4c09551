package mt

import (
	"sync"

	"hotpath/internal/compile"
	"hotpath/internal/tracer"
)

// State is a location's position in the tracing lifecycle.
type State uint8

const (
	// StateCounting counts arrivals until the location becomes hot.
	StateCounting State = iota + 1
	// StateTracing means a recording of this location's loop is in progress.
	StateTracing
	// StateCompiling means a closed trace is with the compiler.
	StateCompiling
	// StateCompiled means arrivals dispatch into the compiled trace.
	StateCompiled
	// StateDontTrace means the location failed too often and is left alone.
	StateDontTrace
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCounting:
		return "counting"
	case StateTracing:
		return "tracing"
	case StateCompiling:
		return "compiling"
	case StateCompiled:
		return "compiled"
	case StateDontTrace:
		return "dont-trace"
	default:
		return "unknown"
	}
}

// Location identifies one control-point site, typically a loop header. It is
// a pointer-identity handle: never copy a Location.
type Location struct {
	mu sync.Mutex

	id       uint64
	state    State
	count    uint32 // arrivals while counting
	failures uint16 // failed recordings and compilations

	// owner is the driver whose recording this location's trace belongs to
	// while tracing; only the owner may close the trace.
	owner    *Driver
	rec      *tracer.Recorder
	compiled *compile.CompiledTrace

	released bool
}

// ID returns the location's engine-unique id.
func (l *Location) ID() uint64 { return l.id }

// State returns the current lifecycle state.
func (l *Location) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Count returns the current hotness count.
func (l *Location) Count() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
