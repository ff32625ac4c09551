// Package mt is the meta-tracer engine: it owns locations and their
// lifecycle, decides at each control-point arrival whether to count, record,
// compile or execute, and hands compiled traces back to the host loop driver.
// Execution semantics stay in the host; this package only orchestrates.
package mt

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"hotpath/internal/compile"
	"hotpath/internal/config"
	"hotpath/internal/events"
	"hotpath/internal/guard"
	"hotpath/internal/host"
	"hotpath/internal/ir"
	"hotpath/internal/tracer"
)

// ActionKind tells a loop driver what this control-point arrival decided.
type ActionKind uint8

const (
	// ActionNone means run the iteration unspecialized.
	ActionNone ActionKind = iota
	// ActionStartTracing means record this iteration into Action.Rec.
	ActionStartTracing
	// ActionStopTracing means the recording just closed; run unspecialized.
	ActionStopTracing
	// ActionExecute means dispatch into Action.Trace.
	ActionExecute
)

// String returns the action name.
func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionStartTracing:
		return "start-tracing"
	case ActionStopTracing:
		return "stop-tracing"
	case ActionExecute:
		return "execute"
	default:
		return "unknown"
	}
}

// Action is a control-point decision plus its payload.
type Action struct {
	Kind  ActionKind
	Rec   *tracer.Recorder       // set for ActionStartTracing
	Trace *compile.CompiledTrace // set for ActionExecute
}

// Driver is the per-goroutine identity of one instrumented loop. Trace
// ownership is checked against it: only the driver that started a recording
// may close it, whatever other goroutines reach the location. A Driver must
// not be shared across goroutines.
type Driver struct {
	rec *tracer.Recorder
}

// NewDriver returns a fresh loop-driver identity for manual ControlPoint use.
func NewDriver() *Driver { return &Driver{} }

// MT is the engine. One instance serves any number of locations and
// goroutines; at most one recording is in flight at a time.
type MT struct {
	ev events.Tracer

	hotThreshold     atomic.Uint32
	failureThreshold uint16
	maxTraceOps      int
	serialise        bool

	grp *errgroup.Group

	// dumpPath, when set, receives every successfully closed recording in
	// msgpack form. Set before the first control point.
	dumpPath string

	// recording holds the location currently being traced, engine-wide.
	recording atomic.Pointer[Location]

	mu      sync.Mutex
	locs    map[*Location]struct{}
	nextLoc uint64

	down atomic.Bool
}

// New creates an engine from a validated configuration.
func New(cfg config.Config, ev events.Tracer) (*MT, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ev == nil {
		ev = events.Nop
	}
	m := &MT{
		ev:               ev,
		failureThreshold: cfg.Engine.TraceFailureThreshold,
		maxTraceOps:      cfg.Engine.MaxTraceOps,
		serialise:        cfg.Engine.SerialiseCompilation,
		grp:              &errgroup.Group{},
		locs:             make(map[*Location]struct{}),
	}
	m.hotThreshold.Store(cfg.Engine.HotThreshold)
	m.grp.SetLimit(cfg.Engine.CompileWorkers)
	return m, nil
}

// SetTraceDump directs every successfully closed recording to path, encoded
// for the dump subcommand to read back. Later recordings overwrite earlier
// ones. Must be called before the first control point.
func (m *MT) SetTraceDump(path string) { m.dumpPath = path }

// HotThreshold returns the current hot threshold.
func (m *MT) HotThreshold() uint32 { return m.hotThreshold.Load() }

// SetHotThreshold changes the hot threshold for future counting decisions.
func (m *MT) SetHotThreshold(n uint32) { m.hotThreshold.Store(n) }

// NewLocation registers a fresh location in the counting state.
func (m *MT) NewLocation() *Location {
	if m.down.Load() {
		panic("mt: NewLocation after shutdown")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLoc++
	loc := &Location{id: m.nextLoc, state: StateCounting}
	m.locs[loc] = struct{}{}
	return loc
}

// ReleaseLocation invalidates loc: its compiled trace is dropped and every
// future arrival is a no-op.
func (m *MT) ReleaseLocation(loc *Location) {
	loc.mu.Lock()
	loc.state = StateDontTrace
	loc.compiled = nil
	loc.rec = nil
	loc.owner = nil
	loc.released = true
	loc.mu.Unlock()
	m.recording.CompareAndSwap(loc, nil)

	m.mu.Lock()
	delete(m.locs, loc)
	m.mu.Unlock()
}

// Shutdown waits for in-flight compilation, invalidates all locations and
// rejects further control-point calls. Safe to call once.
func (m *MT) Shutdown(ctx context.Context) error {
	if !m.down.CompareAndSwap(false, true) {
		return nil
	}

	done := make(chan struct{})
	go func() {
		_ = m.grp.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	for loc := range m.locs {
		loc.mu.Lock()
		loc.state = StateDontTrace
		loc.compiled = nil
		loc.rec = nil
		loc.owner = nil
		loc.mu.Unlock()
	}
	clear(m.locs)
	m.mu.Unlock()

	m.ev.Emit(events.Point(events.KindShutdown, 0, ""))
	return m.ev.Flush()
}

// ControlPoint advances loc's state machine for one arrival and returns what
// the caller should do. The driver is the caller's identity across arrivals:
// a recording opens and closes only for the driver that owns it, so every
// iteration of one loop must present the same Driver. A nil driver observes
// the location (counting, compiled dispatch) but never records. RunLoop does
// this bookkeeping automatically.
func (m *MT) ControlPoint(loc *Location, d *Driver) Action {
	return m.controlPoint(loc, d)
}

func (m *MT) controlPoint(loc *Location, d *Driver) Action {
	if m.down.Load() {
		return Action{}
	}

	act, job := m.transition(loc, d)
	if job != nil {
		if m.serialise {
			m.compileJob(loc, job)
		} else {
			m.grp.Go(func() error {
				m.compileJob(loc, job)
				return nil
			})
		}
	}
	return act
}

// transition performs the state-machine step under the location lock. When a
// trace closes it returns the sealed trace as a compilation job for the
// caller to schedule outside the lock.
func (m *MT) transition(loc *Location, d *Driver) (Action, *ir.Trace) {
	loc.mu.Lock()
	defer loc.mu.Unlock()

	switch loc.state {
	case StateDontTrace, StateCompiling:
		return Action{}, nil

	case StateCompiled:
		return Action{Kind: ActionExecute, Trace: loc.compiled}, nil

	case StateTracing:
		if d == nil || loc.owner != d {
			// Someone else's recording. Fall through to unspecialized
			// execution; closing the loop is the owner's job.
			return Action{}, nil
		}
		return m.stopTracingLocked(loc)

	case StateCounting:
		if loc.count >= m.hotThreshold.Load() {
			if d == nil {
				// An anonymous arrival cannot own a recording.
				return Action{}, nil
			}
			if !m.recording.CompareAndSwap(nil, loc) {
				m.ev.Emit(events.Point(events.KindTracingAborted, loc.id, "recording already in flight"))
				return Action{}, nil
			}
			loc.state = StateTracing
			loc.owner = d
			loc.rec = tracer.New(m.maxTraceOps)
			m.ev.Emit(events.Point(events.KindStartTracing, loc.id, ""))
			return Action{Kind: ActionStartTracing, Rec: loc.rec}, nil
		}
		loc.count++
		return Action{}, nil

	default:
		panic(fmt.Sprintf("mt: location %d in invalid state %d", loc.id, loc.state))
	}
}

// stopTracingLocked closes the in-flight recording of loc.
func (m *MT) stopTracingLocked(loc *Location) (Action, *ir.Trace) {
	rec := loc.rec
	loc.rec = nil
	loc.owner = nil
	m.recording.CompareAndSwap(loc, nil)

	t, err := rec.Finish()
	if err != nil {
		m.failedLocked(loc, events.KindTracingAborted, err)
		return Action{Kind: ActionStopTracing}, nil
	}

	m.ev.Emit(events.Point(events.KindStopTracing, loc.id, ""))
	if m.ev.Level() >= events.LevelDebug {
		m.ev.Emit(events.IRDump(loc.id, "trace", t.String()))
	}
	if m.dumpPath != "" {
		m.dumpTrace(t)
	}
	loc.state = StateCompiling
	m.ev.Emit(events.Point(events.KindStartCompiling, loc.id, ""))
	return Action{Kind: ActionStopTracing}, t
}

// dumpTrace writes a closed recording to the configured dump file.
// Best-effort: dumping must never disturb the tracing lifecycle.
func (m *MT) dumpTrace(t *ir.Trace) {
	f, err := os.Create(m.dumpPath)
	if err != nil {
		return
	}
	defer f.Close()
	_ = ir.Encode(f, t)
}

// compileJob lowers a closed trace and installs the result.
func (m *MT) compileJob(loc *Location, t *ir.Trace) {
	ct, err := compile.Compile(t)

	loc.mu.Lock()
	defer loc.mu.Unlock()
	if loc.released || loc.state != StateCompiling {
		return
	}
	if err != nil {
		m.failedLocked(loc, events.KindCompileFailed, err)
		return
	}
	loc.compiled = ct
	loc.state = StateCompiled
	m.ev.Emit(events.Point(events.KindCompiled, loc.id, ""))
	if m.ev.Level() >= events.LevelDebug {
		m.ev.Emit(events.IRDump(loc.id, "compiled", ct.Listing()))
	}
}

// failedLocked records one trace or compile failure and sends the location
// back to counting, or parks it once the failure threshold is reached.
func (m *MT) failedLocked(loc *Location, kind events.Kind, err error) {
	loc.failures++
	m.ev.Emit(events.Point(kind, loc.id, err.Error()))
	loc.count = 0
	if loc.failures >= m.failureThreshold {
		loc.state = StateDontTrace
		return
	}
	loc.state = StateCounting
}

// deoptimise sends loc back to counting after a guard failure. The compiled
// trace is dropped and the hotness counter restarts from zero, so the
// location must re-earn compilation with a fresh recording.
func (m *MT) deoptimise(loc *Location, out guard.Outcome) {
	loc.mu.Lock()
	defer loc.mu.Unlock()
	if loc.state == StateCompiled {
		loc.state = StateCounting
		loc.count = 0
		loc.compiled = nil
	}
	m.ev.Emit(events.Point(events.KindDeoptimise, loc.id,
		fmt.Sprintf("guard %d at %%%d after %d iterations", out.GuardIdx, out.OpIdx, out.Iterations)))
}

// RunLoop drives an instrumented loop through the engine: one control-point
// arrival per iteration, dispatching on the returned action, including
// resuming unspecialized execution after deoptimization.
func (m *MT) RunLoop(env *host.Env, loc *Location, body host.Body) {
	d := NewDriver()
	f := &host.Frame{Env: env}

	for {
		act := m.controlPoint(loc, d)
		switch act.Kind {
		case ActionStartTracing:
			d.rec = act.Rec
			f.Rec = act.Rec

		case ActionStopTracing:
			d.rec = nil
			f.Rec = nil

		case ActionExecute:
			m.ev.Emit(events.Point(events.KindEnterCompiled, loc.id, ""))
			out := act.Trace.Run(env)
			if out.Kind == guard.OutcomeLoopExit {
				return
			}
			m.deoptimise(loc, out)
			if !out.LoopContinue {
				return
			}
			continue
		}

		if !body(f) {
			if d.rec != nil {
				// The loop ended during recording: the trace never closed,
				// so it cannot describe a repeatable iteration.
				m.abortRecording(loc, d)
				f.Rec = nil
				d.rec = nil
			}
			return
		}
	}
}

// abortRecording abandons a recording whose loop exited before closing.
func (m *MT) abortRecording(loc *Location, d *Driver) {
	loc.mu.Lock()
	defer loc.mu.Unlock()
	if loc.state != StateTracing || loc.owner != d {
		return
	}
	loc.rec = nil
	loc.owner = nil
	m.recording.CompareAndSwap(loc, nil)
	m.failedLocked(loc, events.KindTracingAborted, errLoopExitWhileTracing)
}

var errLoopExitWhileTracing = fmt.Errorf("mt: loop exited before the recording closed")
