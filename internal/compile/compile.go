// Package compile turns a recorded trace into an executable compiled trace:
// it lowers every operation, inserts equality guards for promotions and
// direction guards for traced branches, substitutes promoted constants into
// downstream uses and folds what becomes constant. The static/dynamic
// pointer-add distinction survives lowering untouched.
package compile

import (
	"fmt"
	"strings"

	"hotpath/internal/guard"
	"hotpath/internal/host"
	"hotpath/internal/ir"
)

// UnsupportedOpError reports an operation the compiler has no lowering for.
// The trace is rejected whole; the owning location falls back to
// unspecialized execution instead of being half-compiled.
type UnsupportedOpError struct {
	Kind   ir.OpKind
	OpIdx  int
	Reason string
}

func (e *UnsupportedOpError) Error() string {
	return fmt.Sprintf("unsupported operation %s at %%%d: %s", e.Kind, e.OpIdx, e.Reason)
}

type stepKind uint8

const (
	stepOp    stepKind = iota // execute the lowered operation
	stepGuard                 // evaluate a guard
	stepSkip                  // folded away; result preset as a constant
)

type step struct {
	kind     stepKind
	op       ir.Op // operand-substituted copy (stepOp)
	guardIdx int   // index into guards (stepGuard)
}

type preset struct {
	id  ir.ValueID
	val host.Value
}

// CompiledTrace is ready to execute in place of the original code path. The
// structure is read-only after compilation: concurrent entry is safe, all
// execution state lives in the caller.
type CompiledTrace struct {
	steps   []step
	guards  []guard.Guard
	orig    []ir.Op // sealed recording, kept for deopt replay
	presets []preset
}

// Guards returns the compiled guard list.
func (ct *CompiledTrace) Guards() []guard.Guard { return ct.guards }

// Compile lowers a sealed trace. On error the trace remains untouched and no
// compiled artifact exists.
func Compile(t *ir.Trace) (*CompiledTrace, error) {
	if !t.Sealed() {
		panic("compile: trace must be sealed before compilation")
	}
	// Without a final loop-closing guard the compiled loop has no exit path.
	if last := len(t.Ops) - 1; last < 0 || t.Ops[last].Kind != ir.OpGuard {
		e := &UnsupportedOpError{Reason: "trace does not end in a loop-closing guard"}
		if last >= 0 {
			e.Kind = t.Ops[last].Kind
			e.OpIdx = last
		}
		return nil, e
	}

	ct := &CompiledTrace{
		steps: make([]step, len(t.Ops)),
		orig:  t.Ops,
	}
	subst := make(map[ir.ValueID]ir.Const)
	touched := make(map[ir.VarID]bool)

	for i := range t.Ops {
		id := ir.ValueID(i)
		op := substituteOp(&t.Ops[i], subst)

		switch op.Kind {
		case ir.OpLoadVar:
			touched[op.LoadVar.Var] = true
			ct.steps[i] = step{kind: stepOp, op: op}

		case ir.OpStoreVar:
			touched[op.StoreVar.Var] = true
			ct.steps[i] = step{kind: stepOp, op: op}

		case ir.OpBinary:
			if op.Binary.Left.IsConst() && op.Binary.Right.IsConst() {
				ct.fold(id, subst, ir.EvalBinary(op.Binary.Op, op.Type, op.Binary.Left.Const, op.Binary.Right.Const))
				ct.steps[i] = step{kind: stepSkip}
				continue
			}
			ct.steps[i] = step{kind: stepOp, op: op}

		case ir.OpCast:
			if op.Cast.Val.IsConst() {
				ct.fold(id, subst, ir.EvalCast(op.Cast.Cast, op.Type, op.Cast.Val.Const))
				ct.steps[i] = step{kind: stepSkip}
				continue
			}
			ct.steps[i] = step{kind: stepOp, op: op}

		case ir.OpSelect:
			if op.Select.Cond.IsConst() && op.Select.Then.IsConst() && op.Select.Else.IsConst() {
				v := op.Select.Then.Const
				if !op.Select.Cond.Const.Bool() {
					v = op.Select.Else.Const
				}
				ct.fold(id, subst, v)
				ct.steps[i] = step{kind: stepSkip}
				continue
			}
			ct.steps[i] = step{kind: stepOp, op: op}

		case ir.OpPtrAdd:
			if op.PtrAdd.Ptr.IsConst() {
				ct.fold(id, subst, ir.ConstInt(ir.TypePtr, op.PtrAdd.Ptr.Const.Int+op.PtrAdd.Off))
				ct.steps[i] = step{kind: stepSkip}
				continue
			}
			ct.steps[i] = step{kind: stepOp, op: op}

		case ir.OpDynPtrAdd:
			// Never speculatively converted to a static form, even when the
			// index operand happens to be constant here.
			ct.steps[i] = step{kind: stepOp, op: op}

		case ir.OpLoad, ir.OpStore, ir.OpGlobalAddr, ir.OpCall, ir.OpIndirectCall, ir.OpMemCopy:
			ct.steps[i] = step{kind: stepOp, op: op}

		case ir.OpPromote:
			checkMetadata(touched, op.Promote.Snapshot, id)
			if op.Promote.Val.IsConst() && op.Promote.Val.Const.Eq(op.Promote.Captured) {
				// Promoting something that is already the captured constant:
				// the guard could never fail.
				ct.fold(id, subst, op.Promote.Captured)
				ct.steps[i] = step{kind: stepSkip}
				continue
			}
			ct.guards = append(ct.guards, guard.Guard{
				Kind:  guard.KindPromote,
				OpIdx: id,
				Cond:  op.Promote.Val,
				Want:  op.Promote.Captured,
				Meta:  op.Promote.Snapshot,
			})
			subst[id] = op.Promote.Captured
			ct.steps[i] = step{kind: stepGuard, guardIdx: len(ct.guards) - 1}

		case ir.OpGuard:
			checkMetadata(touched, op.Guard.Snapshot, id)
			if i != len(t.Ops)-1 {
				// Side-exits mid-trace would need side-traces to resume
				// from; without them there is no lowering.
				return nil, &UnsupportedOpError{Kind: op.Kind, OpIdx: i, Reason: "branch guard before end of trace"}
			}
			ct.guards = append(ct.guards, guard.Guard{
				Kind:   guard.KindBranch,
				OpIdx:  id,
				Cond:   op.Guard.Cond,
				Expect: op.Guard.Expect,
				Meta:   op.Guard.Snapshot,
			})
			ct.steps[i] = step{kind: stepGuard, guardIdx: len(ct.guards) - 1}

		default:
			return nil, &UnsupportedOpError{Kind: op.Kind, OpIdx: i, Reason: "unknown operation kind"}
		}
	}

	return ct, nil
}

func (ct *CompiledTrace) fold(id ir.ValueID, subst map[ir.ValueID]ir.Const, v ir.Const) {
	subst[id] = v
	ct.presets = append(ct.presets, preset{id: id, val: v})
}

// checkMetadata verifies a guard snapshot covers every variable the trace
// has touched so far. Partial deoptimization metadata is a recorder defect:
// executing such a guard could corrupt interpreter state, so abort instead.
func checkMetadata(touched map[ir.VarID]bool, snapshot []ir.VarWrite, at ir.ValueID) {
	covered := make(map[ir.VarID]bool, len(snapshot))
	for _, w := range snapshot {
		covered[w.Var] = true
	}
	for v := range touched {
		if !covered[v] {
			panic(fmt.Sprintf("compile: guard at %%%d is missing deopt metadata for live variable $%d", at, v))
		}
	}
}

func substituteOperand(o ir.Operand, subst map[ir.ValueID]ir.Const) ir.Operand {
	if o.Kind == ir.OperandValue {
		if c, ok := subst[o.Value]; ok {
			return ir.ConstOperand(c)
		}
	}
	return o
}

// substituteOp copies op with promoted/folded constants substituted into its
// operands. The original recording is never mutated.
func substituteOp(src *ir.Op, subst map[ir.ValueID]ir.Const) ir.Op {
	op := *src
	sub := func(o ir.Operand) ir.Operand { return substituteOperand(o, subst) }
	switch op.Kind {
	case ir.OpBinary:
		op.Binary.Left = sub(op.Binary.Left)
		op.Binary.Right = sub(op.Binary.Right)
	case ir.OpLoad:
		op.Load.Addr = sub(op.Load.Addr)
	case ir.OpStore:
		op.Store.Addr = sub(op.Store.Addr)
		op.Store.Val = sub(op.Store.Val)
	case ir.OpPtrAdd:
		op.PtrAdd.Ptr = sub(op.PtrAdd.Ptr)
	case ir.OpDynPtrAdd:
		op.DynPtrAdd.Ptr = sub(op.DynPtrAdd.Ptr)
		op.DynPtrAdd.Index = sub(op.DynPtrAdd.Index)
	case ir.OpCall:
		op.Call.Args = substituteArgs(op.Call.Args, subst)
	case ir.OpIndirectCall:
		op.IndirectCall.Fn = sub(op.IndirectCall.Fn)
		op.IndirectCall.Args = substituteArgs(op.IndirectCall.Args, subst)
	case ir.OpMemCopy:
		op.MemCopy.Dst = sub(op.MemCopy.Dst)
		op.MemCopy.Src = sub(op.MemCopy.Src)
		op.MemCopy.Size = sub(op.MemCopy.Size)
	case ir.OpCast:
		op.Cast.Val = sub(op.Cast.Val)
	case ir.OpSelect:
		op.Select.Cond = sub(op.Select.Cond)
		op.Select.Then = sub(op.Select.Then)
		op.Select.Else = sub(op.Select.Else)
	case ir.OpPromote:
		op.Promote.Val = sub(op.Promote.Val)
		op.Promote.Snapshot = substituteSnapshot(op.Promote.Snapshot, subst)
	case ir.OpGuard:
		op.Guard.Cond = sub(op.Guard.Cond)
		op.Guard.Snapshot = substituteSnapshot(op.Guard.Snapshot, subst)
	case ir.OpStoreVar:
		op.StoreVar.Val = sub(op.StoreVar.Val)
	}
	return op
}

func substituteArgs(args []ir.Operand, subst map[ir.ValueID]ir.Const) []ir.Operand {
	out := make([]ir.Operand, len(args))
	for i, a := range args {
		out[i] = substituteOperand(a, subst)
	}
	return out
}

func substituteSnapshot(snap []ir.VarWrite, subst map[ir.ValueID]ir.Const) []ir.VarWrite {
	out := make([]ir.VarWrite, len(snap))
	for i, w := range snap {
		out[i] = ir.VarWrite{Var: w.Var, Val: substituteOperand(w.Val, subst)}
	}
	return out
}

// Listing renders the lowered trace for IR dump events: folded operations
// are omitted, guards are shown in their compiled form.
func (ct *CompiledTrace) Listing() string {
	var sb strings.Builder
	for i := range ct.steps {
		st := &ct.steps[i]
		switch st.kind {
		case stepSkip:
			continue
		case stepGuard:
			g := &ct.guards[st.guardIdx]
			switch g.Kind {
			case guard.KindPromote:
				fmt.Fprintf(&sb, "guard eq %s, %s\n", g.Cond, g.Want)
			case guard.KindBranch:
				fmt.Fprintf(&sb, "guard %v, %s\n", g.Expect, g.Cond)
			}
		case stepOp:
			fmt.Fprintf(&sb, "%s\n", ir.FormatOp(ir.ValueID(i), &st.op))
		}
	}
	return sb.String()
}
