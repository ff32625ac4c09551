// Package events is the diagnostic event stream of the meta-tracer: an
// instrumentation-only feed of state-machine transitions (start-tracing,
// stop-tracing, enter-compiled-code, deoptimise, ...) plus optional trace IR
// dumps at defined pipeline stages. It is consumed by tests and operators and
// is not part of the core's functional contract.
package events

import "time"

// Kind represents the type of JIT event.
type Kind uint8

const (
	// KindStartTracing marks a location transitioning to the tracing state.
	KindStartTracing Kind = iota + 1
	// KindStopTracing marks a closed loop: recording finished.
	KindStopTracing
	// KindStartCompiling marks a trace being handed to the compiler.
	KindStartCompiling
	// KindCompiled marks a compilation finishing successfully.
	KindCompiled
	// KindEnterCompiled marks dispatch into a compiled trace.
	KindEnterCompiled
	// KindDeoptimise marks a guard failure and fallback to unspecialized
	// execution. Deoptimisation is a normal, recoverable event.
	KindDeoptimise
	// KindTracingAborted marks a recording that was abandoned.
	KindTracingAborted
	// KindCompileFailed marks a compilation that was rejected.
	KindCompileFailed
	// KindIRDump carries a trace IR listing for one pipeline stage.
	KindIRDump
	// KindShutdown marks engine shutdown.
	KindShutdown
)

// String returns the event name as it appears in the text stream.
func (k Kind) String() string {
	switch k {
	case KindStartTracing:
		return "start-tracing"
	case KindStopTracing:
		return "stop-tracing"
	case KindStartCompiling:
		return "start-compiling"
	case KindCompiled:
		return "compiled"
	case KindEnterCompiled:
		return "enter-compiled-code"
	case KindDeoptimise:
		return "deoptimise"
	case KindTracingAborted:
		return "tracing-aborted"
	case KindCompileFailed:
		return "compile-failed"
	case KindIRDump:
		return "ir-dump"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Class indicates how interesting an event kind is; level gating compares
// against it. Lower values are more important.
type Class uint8

const (
	// ClassError covers aborted recordings and failed compilations.
	ClassError Class = iota + 1
	// ClassLifecycle covers ordinary state-machine transitions.
	ClassLifecycle
	// ClassDebug covers IR dumps and other high-volume detail.
	ClassDebug
)

// Class returns the gating class of the event kind.
func (k Kind) Class() Class {
	switch k {
	case KindTracingAborted, KindCompileFailed:
		return ClassError
	case KindIRDump:
		return ClassDebug
	default:
		return ClassLifecycle
	}
}

// Event is a single diagnostic event.
type Event struct {
	Time     time.Time // wall-clock timestamp
	Seq      uint64    // global sequence number (monotonic)
	Kind     Kind      // event kind
	Location uint64    // originating location id (0 if none)
	Detail   string    // optional detail message
	Stage    string    // pipeline stage for IR dumps ("trace", "compiled")
}
