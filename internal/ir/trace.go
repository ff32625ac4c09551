package ir

import "errors"

// ErrSealed is returned when appending to a trace that has been handed to the
// compiler.
var ErrSealed = errors.New("ir: trace is sealed")

// Trace is an ordered sequence of operations recorded between start- and
// stop-tracing events on one location. Once sealed it is immutable: the
// compiler and every later reader see exactly what the recorder captured.
type Trace struct {
	Ops    []Op
	sealed bool
}

// NewTrace returns an empty trace with room for a typical loop body.
func NewTrace() *Trace {
	return &Trace{Ops: make([]Op, 0, 32)}
}

// Append adds an operation and returns the ValueID of its result, or NoValue
// for void operations.
func (t *Trace) Append(op Op) (ValueID, error) {
	if t.sealed {
		return NoValue, ErrSealed
	}
	t.Ops = append(t.Ops, op)
	if op.Type == TypeVoid {
		return NoValue, nil
	}
	return ValueID(len(t.Ops) - 1), nil
}

// Seal freezes the trace. Further appends fail with ErrSealed.
func (t *Trace) Seal() { t.sealed = true }

// Sealed reports whether the trace has been frozen.
func (t *Trace) Sealed() bool { return t.sealed }

// Len returns the number of recorded operations.
func (t *Trace) Len() int { return len(t.Ops) }
