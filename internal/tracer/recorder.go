// Package tracer records the sequence of semantic operations a program
// executes while tracing is active, producing the trace IR the compiler
// consumes. It also owns the outlining decisions: calls marked do-not-trace,
// anything reached from them, and detected recursion are recorded as single
// opaque call operations instead of being inlined.
package tracer

import (
	"errors"
	"fmt"
	"slices"

	"hotpath/internal/ir"
)

// ErrTraceTooLong is reported when a recording exceeds the configured
// operation cap. The slower the compiler, the lower the cap has to be for
// tracing to pay for itself.
var ErrTraceTooLong = errors.New("tracer: trace exceeded maximum length")

// Recorder captures one trace. It is driven by the host's instrumentation
// boundary and is not goroutine-safe: exactly one goroutine records a trace.
type Recorder struct {
	trace  *ir.Trace
	maxOps int

	// varVals maps every interpreter variable the trace has touched to the
	// operand currently holding its value. It feeds guard snapshots, so it
	// must cover reads as well as writes.
	varVals map[ir.VarID]ir.Operand

	// calls is the explicit call-identity stack used for outlining and
	// recursion detection; tracked here rather than relying on the host
	// call stack so decisions are reproducible in isolation.
	calls     []string
	suspended int

	err error
}

// New returns a recorder bounded to maxOps operations.
func New(maxOps int) *Recorder {
	return &Recorder{
		trace:   ir.NewTrace(),
		maxOps:  maxOps,
		varVals: make(map[ir.VarID]ir.Operand),
	}
}

// Recording reports whether operations should currently be recorded: tracing
// has not failed and we are not inside an outlined extent.
func (r *Recorder) Recording() bool { return r.err == nil && r.suspended == 0 }

// Err returns the first recording error, if any.
func (r *Recorder) Err() error { return r.err }

// Finish seals and returns the recorded trace, or the recording error.
func (r *Recorder) Finish() (*ir.Trace, error) {
	if r.err != nil {
		return nil, r.err
	}
	if len(r.calls) != 0 {
		// The host failed to balance EnterCall/LeaveCall. This is a defect
		// in the instrumentation, not a runtime condition.
		panic(fmt.Sprintf("tracer: %d unbalanced call frames at stop-tracing", len(r.calls)))
	}
	r.trace.Seal()
	return r.trace, nil
}

// Len returns the number of operations recorded so far.
func (r *Recorder) Len() int { return r.trace.Len() }

func (r *Recorder) append(op ir.Op) ir.ValueID {
	if !r.Recording() {
		return ir.NoValue
	}
	if r.trace.Len() >= r.maxOps {
		r.err = ErrTraceTooLong
		return ir.NoValue
	}
	id, err := r.trace.Append(op)
	if err != nil {
		r.err = err
		return ir.NoValue
	}
	return id
}

// LoadVar returns the operand holding variable v, recording its first read.
// Later reads and reads after writes reuse the tracked operand.
func (r *Recorder) LoadVar(v ir.VarID, t ir.Type) ir.Operand {
	if op, ok := r.varVals[v]; ok {
		return op
	}
	id := r.append(ir.Op{Kind: ir.OpLoadVar, Type: t, LoadVar: ir.LoadVarOp{Var: v}})
	op := ir.ValueOperand(id)
	r.varVals[v] = op
	return op
}

// StoreVar records a write to variable v.
func (r *Recorder) StoreVar(v ir.VarID, val ir.Operand) {
	r.append(ir.Op{Kind: ir.OpStoreVar, Type: ir.TypeVoid, StoreVar: ir.StoreVarOp{Var: v, Val: val}})
	r.varVals[v] = val
}

// Binary records an arithmetic, bitwise or comparison operation.
func (r *Recorder) Binary(op ir.BinOp, t ir.Type, left, right ir.Operand) ir.Operand {
	id := r.append(ir.Op{Kind: ir.OpBinary, Type: t, Binary: ir.BinaryOp{Op: op, Left: left, Right: right}})
	return ir.ValueOperand(id)
}

// Load records a memory load of type t through addr.
func (r *Recorder) Load(t ir.Type, addr ir.Operand) ir.Operand {
	id := r.append(ir.Op{Kind: ir.OpLoad, Type: t, Load: ir.LoadOp{Addr: addr}})
	return ir.ValueOperand(id)
}

// Store records a memory store through addr.
func (r *Recorder) Store(addr, val ir.Operand, valType ir.Type) {
	r.append(ir.Op{Kind: ir.OpStore, Type: ir.TypeVoid, Store: ir.StoreOp{Addr: addr, Val: val, ValType: valType}})
}

// GlobalAddr records a lookup of a global's address. The lookup stays an
// explicit operation because the global's contents may change between
// compiled-trace invocations.
func (r *Recorder) GlobalAddr(g ir.GlobalID, name string) ir.Operand {
	id := r.append(ir.Op{Kind: ir.OpGlobalAddr, Type: ir.TypePtr, Global: ir.GlobalAddrOp{Global: g, Name: name}})
	return ir.ValueOperand(id)
}

// PtrAdd records a pointer add whose byte offset folded at record time.
func (r *Recorder) PtrAdd(ptr ir.Operand, off int64) ir.Operand {
	id := r.append(ir.Op{Kind: ir.OpPtrAdd, Type: ir.TypePtr, PtrAdd: ir.PtrAddOp{Ptr: ptr, Off: off}})
	return ir.ValueOperand(id)
}

// DynPtrAdd records a pointer add whose index is only known at run time. It
// is a distinct kind: the compiler must preserve it as a true runtime
// computation.
func (r *Recorder) DynPtrAdd(ptr, index ir.Operand, elemSize int64) ir.Operand {
	id := r.append(ir.Op{Kind: ir.OpDynPtrAdd, Type: ir.TypePtr, DynPtrAdd: ir.DynPtrAddOp{Ptr: ptr, Index: index, ElemSize: elemSize}})
	return ir.ValueOperand(id)
}

// Cast records an explicit typed conversion to type t.
func (r *Recorder) Cast(kind ir.CastKind, t ir.Type, val ir.Operand) ir.Operand {
	id := r.append(ir.Op{Kind: ir.OpCast, Type: t, Cast: ir.CastOp{Cast: kind, Val: val}})
	return ir.ValueOperand(id)
}

// Select records a data-dependent selection as a single operation, not a
// branch, so no guard is inserted for it.
func (r *Recorder) Select(t ir.Type, cond, then, els ir.Operand) ir.Operand {
	id := r.append(ir.Op{Kind: ir.OpSelect, Type: t, Select: ir.SelectOp{Cond: cond, Then: then, Else: els}})
	return ir.ValueOperand(id)
}

// MemCopy records an opaque block copy. Statically sized copies should be
// inlined by the host boundary instead of reaching this.
func (r *Recorder) MemCopy(dst, src, size ir.Operand) {
	r.append(ir.Op{Kind: ir.OpMemCopy, Type: ir.TypeVoid, MemCopy: ir.MemCopyOp{Dst: dst, Src: src, Size: size}})
}

// Promote records that val should be treated as a trace-time constant equal
// to captured, the value observed right now. The compiler guards the
// equality and substitutes the constant downstream.
func (r *Recorder) Promote(val ir.Operand, captured ir.Const) ir.Operand {
	id := r.append(ir.Op{
		Kind: ir.OpPromote,
		Type: captured.Type,
		Promote: ir.PromoteOp{
			Val:      val,
			Captured: captured,
			Snapshot: r.snapshot(),
		},
	})
	return ir.ValueOperand(id)
}

// Guard records the direction a branch took while tracing.
func (r *Recorder) Guard(cond ir.Operand, expect bool) {
	r.append(ir.Op{
		Kind: ir.OpGuard,
		Type: ir.TypeVoid,
		Guard: ir.GuardOp{
			Cond:     cond,
			Expect:   expect,
			Snapshot: r.snapshot(),
		},
	})
}

// Call records an opaque outlined call. No-op inside an outlined extent: the
// enclosing opaque call already covers it.
func (r *Recorder) Call(name string, args []ir.Operand, result ir.Type) ir.Operand {
	id := r.append(ir.Op{Kind: ir.OpCall, Type: result, Call: ir.CallOp{
		Name:      name,
		Args:      args,
		HasResult: result != ir.TypeVoid,
	}})
	return ir.ValueOperand(id)
}

// IndirectCall records an opaque call through a runtime function value.
func (r *Recorder) IndirectCall(fn ir.Operand, args []ir.Operand, result ir.Type) ir.Operand {
	id := r.append(ir.Op{Kind: ir.OpIndirectCall, Type: result, IndirectCall: ir.IndirectCallOp{
		Fn:        fn,
		Args:      args,
		HasResult: result != ir.TypeVoid,
	}})
	return ir.ValueOperand(id)
}

// OnStack reports whether a call to name is already being recorded. A second
// entry means recursion, which is outlined to bound trace size.
func (r *Recorder) OnStack(name string) bool {
	return slices.Contains(r.calls, name)
}

// EnterCall pushes an inlined call onto the identity stack.
func (r *Recorder) EnterCall(name string) { r.calls = append(r.calls, name) }

// LeaveCall pops the innermost inlined call.
func (r *Recorder) LeaveCall() {
	if len(r.calls) == 0 {
		panic("tracer: LeaveCall with empty call stack")
	}
	r.calls = r.calls[:len(r.calls)-1]
}

// Suspend stops recording for the dynamic extent of an outlined call.
// Suspension nests, which is what makes outlining transitive.
func (r *Recorder) Suspend() { r.suspended++ }

// Resume undoes one Suspend.
func (r *Recorder) Resume() {
	if r.suspended == 0 {
		panic("tracer: Resume without Suspend")
	}
	r.suspended--
}

// snapshot captures the deoptimization metadata for a guard: every variable
// the trace has touched, mapped to the operand holding its value here. A
// variable the trace never touched needs no reconstruction.
func (r *Recorder) snapshot() []ir.VarWrite {
	snap := make([]ir.VarWrite, 0, len(r.varVals))
	for v, op := range r.varVals {
		snap = append(snap, ir.VarWrite{Var: v, Val: op})
	}
	slices.SortFunc(snap, func(a, b ir.VarWrite) int { return int(a.Var) - int(b.Var) })
	return snap
}
