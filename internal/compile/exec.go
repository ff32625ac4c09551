package compile

import (
	"fmt"

	"hotpath/internal/guard"
	"hotpath/internal/host"
	"hotpath/internal/ir"
)

// Run executes the compiled trace against env until a guard fails, then
// returns an explicit outcome. Variable writes are staged in a shadow map and
// committed only at loop edges, so env always holds a consistent
// iteration-start state; guard metadata covers the delta in between.
func (ct *CompiledTrace) Run(env *host.Env) guard.Outcome {
	regs := make([]host.Value, len(ct.orig))
	shadow := make(map[ir.VarID]host.Value)
	resolve := func(o ir.Operand) host.Value {
		if o.Kind == ir.OperandConst {
			return o.Const
		}
		return regs[o.Value]
	}

	for _, p := range ct.presets {
		regs[p.id] = p.val
	}

	var iterations uint64
	for {
		for i := range ct.steps {
			st := &ct.steps[i]
			switch st.kind {
			case stepSkip:
				continue

			case stepOp:
				execOp(env, regs, shadow, ir.ValueID(i), &st.op, resolve)

			case stepGuard:
				g := &ct.guards[st.guardIdx]
				if g.Eval(resolve) {
					if g.Kind == guard.KindPromote {
						regs[g.OpIdx] = g.Want
					}
					continue
				}

				g.Reconstruct(env, resolve)
				if g.Kind == guard.KindBranch {
					// The loop-closing branch went the other way: a clean
					// exit, not a deoptimization.
					return guard.Outcome{
						Kind:       guard.OutcomeLoopExit,
						GuardIdx:   st.guardIdx,
						OpIdx:      g.OpIdx,
						Iterations: iterations,
					}
				}

				regs[g.OpIdx] = resolve(g.Cond)
				cont := ct.replay(env, regs, int(g.OpIdx))
				return guard.Outcome{
					Kind:         guard.OutcomeDeopt,
					GuardIdx:     st.guardIdx,
					OpIdx:        g.OpIdx,
					Iterations:   iterations,
					LoopContinue: cont,
				}
			}
		}

		for v, val := range shadow {
			env.Vars[v] = val
		}
		clear(shadow)
		iterations++
	}
}

// replay finishes the interrupted iteration by executing the original,
// unsubstituted recording from just after the failed promotion to the end of
// the trace. Side effects before the guard already happened in the compiled
// run and are not repeated. Returns whether the loop-closing branch still
// holds.
func (ct *CompiledTrace) replay(env *host.Env, regs []host.Value, from int) bool {
	shadow := make(map[ir.VarID]host.Value)
	resolve := func(o ir.Operand) host.Value {
		if o.Kind == ir.OperandConst {
			return o.Const
		}
		return regs[o.Value]
	}

	cont := true
	for i := from + 1; i < len(ct.orig); i++ {
		op := &ct.orig[i]
		switch op.Kind {
		case ir.OpPromote:
			// No speculation during replay: the promotion is an identity.
			regs[i] = resolve(op.Promote.Val)
		case ir.OpGuard:
			cont = resolve(op.Guard.Cond).Bool() == op.Guard.Expect
		default:
			execOp(env, regs, shadow, ir.ValueID(i), op, resolve)
		}
	}

	for v, val := range shadow {
		env.Vars[v] = val
	}
	return cont
}

func execOp(env *host.Env, regs []host.Value, shadow map[ir.VarID]host.Value, id ir.ValueID, op *ir.Op, resolve guard.Resolver) {
	switch op.Kind {
	case ir.OpBinary:
		regs[id] = ir.EvalBinary(op.Binary.Op, op.Type, resolve(op.Binary.Left), resolve(op.Binary.Right))

	case ir.OpLoad:
		regs[id] = env.Mem.Load(resolve(op.Load.Addr).Int, op.Type)

	case ir.OpStore:
		env.Mem.Store(resolve(op.Store.Addr).Int, op.Store.ValType, resolve(op.Store.Val))

	case ir.OpGlobalAddr:
		// Resolved by identity on every execution; the address is not baked
		// into the compiled trace.
		regs[id] = ir.ConstInt(ir.TypePtr, env.Globals[op.Global.Global].Addr)

	case ir.OpPtrAdd:
		regs[id] = ir.ConstInt(ir.TypePtr, resolve(op.PtrAdd.Ptr).Int+op.PtrAdd.Off)

	case ir.OpDynPtrAdd:
		ptr := resolve(op.DynPtrAdd.Ptr).Int
		idx := resolve(op.DynPtrAdd.Index).Int
		regs[id] = ir.ConstInt(ir.TypePtr, ptr+idx*op.DynPtrAdd.ElemSize)

	case ir.OpCast:
		regs[id] = ir.EvalCast(op.Cast.Cast, op.Type, resolve(op.Cast.Val))

	case ir.OpSelect:
		if resolve(op.Select.Cond).Bool() {
			regs[id] = resolve(op.Select.Then)
		} else {
			regs[id] = resolve(op.Select.Else)
		}

	case ir.OpCall:
		res := env.Invoke(op.Call.Name, resolveArgs(op.Call.Args, resolve))
		if op.Call.HasResult {
			regs[id] = res
		}

	case ir.OpIndirectCall:
		res := env.InvokeValue(resolve(op.IndirectCall.Fn), resolveArgs(op.IndirectCall.Args, resolve))
		if op.IndirectCall.HasResult {
			regs[id] = res
		}

	case ir.OpMemCopy:
		env.Mem.Copy(resolve(op.MemCopy.Dst).Int, resolve(op.MemCopy.Src).Int, resolve(op.MemCopy.Size).Int)

	case ir.OpLoadVar:
		if v, ok := shadow[op.LoadVar.Var]; ok {
			regs[id] = v
		} else {
			regs[id] = env.Vars[op.LoadVar.Var]
		}

	case ir.OpStoreVar:
		shadow[op.StoreVar.Var] = resolve(op.StoreVar.Val)

	default:
		panic(fmt.Sprintf("compile: no execution for operation %s", op.Kind))
	}
}

func resolveArgs(args []ir.Operand, resolve guard.Resolver) []host.Value {
	vals := make([]host.Value, len(args))
	for i, a := range args {
		vals[i] = resolve(a)
	}
	return vals
}
