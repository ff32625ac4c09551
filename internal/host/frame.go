package host

import (
	"fmt"

	"hotpath/internal/ir"
	"hotpath/internal/tracer"
)

// Cell is a runtime value paired with its trace provenance. While a trace is
// being recorded every operation method returns a cell whose operand points
// at the recorded operation; outside tracing only the value is meaningful.
type Cell struct {
	Val    Value
	op     ir.Operand
	traced bool
}

// Bool interprets the cell's value as a boolean.
func (c Cell) Bool() bool { return c.Val.Bool() }

// Frame is the instrumentation boundary: each operation method computes the
// concrete unspecialized result and, when a recorder is attached and active,
// mirrors the operation into the trace. This is how "trace IR exists per
// executed operation" without the core knowing host semantics.
type Frame struct {
	Env *Env
	Rec *tracer.Recorder
}

// rec returns the recorder if operations should be recorded right now.
func (f *Frame) rec() *tracer.Recorder {
	if f.Rec != nil && f.Rec.Recording() {
		return f.Rec
	}
	return nil
}

// operand returns the trace operand for c, materializing constants. A
// non-constant value that never passed through a frame operation has no
// provenance; recording it would silently speculate, so it is a defect.
func (f *Frame) operand(c Cell) ir.Operand {
	if c.traced {
		return c.op
	}
	panic(fmt.Sprintf("host: value %v has no trace provenance", c.Val))
}

// Const builds a constant cell.
func (f *Frame) Const(v Value) Cell {
	return Cell{Val: v, op: ir.ConstOperand(v), traced: true}
}

// ConstInt builds an integer constant cell of type t.
func (f *Frame) ConstInt(t ir.Type, v int64) Cell { return f.Const(ir.ConstInt(t, v)) }

// ReadVar reads interpreter variable v.
func (f *Frame) ReadVar(v ir.VarID) Cell {
	val := f.Env.Vars[v]
	c := Cell{Val: val}
	if r := f.rec(); r != nil {
		c.op = r.LoadVar(v, val.Type)
		c.traced = true
	}
	return c
}

// WriteVar writes interpreter variable v.
func (f *Frame) WriteVar(v ir.VarID, c Cell) {
	f.Env.Vars[v] = c.Val
	if r := f.rec(); r != nil {
		r.StoreVar(v, f.operand(c))
	}
}

// Binary applies a binary operator producing type t.
func (f *Frame) Binary(op ir.BinOp, t ir.Type, l, r Cell) Cell {
	out := Cell{Val: ir.EvalBinary(op, t, l.Val, r.Val)}
	if rec := f.rec(); rec != nil {
		out.op = rec.Binary(op, out.Val.Type, f.operand(l), f.operand(r))
		out.traced = true
	}
	return out
}

// Load reads a value of type t through the pointer cell.
func (f *Frame) Load(t ir.Type, addr Cell) Cell {
	out := Cell{Val: f.Env.Mem.Load(addr.Val.Int, t)}
	if r := f.rec(); r != nil {
		out.op = r.Load(t, f.operand(addr))
		out.traced = true
	}
	return out
}

// Store writes a value of type t through the pointer cell.
func (f *Frame) Store(t ir.Type, addr, val Cell) {
	f.Env.Mem.Store(addr.Val.Int, t, val.Val)
	if r := f.rec(); r != nil {
		r.Store(f.operand(addr), f.operand(val), t)
	}
}

// GlobalAddr looks up the address of a global by identity.
func (f *Frame) GlobalAddr(g ir.GlobalID) Cell {
	gl := f.Env.Globals[g]
	out := Cell{Val: ir.ConstInt(ir.TypePtr, gl.Addr)}
	if r := f.rec(); r != nil {
		out.op = r.GlobalAddr(g, gl.Name)
		out.traced = true
	}
	return out
}

// PtrAdd advances a pointer by a byte offset that was statically known at
// this callsite.
func (f *Frame) PtrAdd(ptr Cell, off int64) Cell {
	out := Cell{Val: ir.ConstInt(ir.TypePtr, ptr.Val.Int+off)}
	if r := f.rec(); r != nil {
		out.op = r.PtrAdd(f.operand(ptr), off)
		out.traced = true
	}
	return out
}

// DynPtrAdd advances a pointer by index*elemSize where the index is a
// runtime value. Recorded as a distinct dynamic operation, never folded.
func (f *Frame) DynPtrAdd(ptr, index Cell, elemSize int64) Cell {
	out := Cell{Val: ir.ConstInt(ir.TypePtr, ptr.Val.Int+index.Val.Int*elemSize)}
	if r := f.rec(); r != nil {
		out.op = r.DynPtrAdd(f.operand(ptr), f.operand(index), elemSize)
		out.traced = true
	}
	return out
}

// Cast applies an explicit typed conversion.
func (f *Frame) Cast(kind ir.CastKind, t ir.Type, val Cell) Cell {
	out := Cell{Val: ir.EvalCast(kind, t, val.Val)}
	if r := f.rec(); r != nil {
		out.op = r.Cast(kind, t, f.operand(val))
		out.traced = true
	}
	return out
}

// Select picks between two values on a boolean. A single data operation: no
// guard is inserted for data-dependent selection.
func (f *Frame) Select(t ir.Type, cond, then, els Cell) Cell {
	out := Cell{Val: then.Val}
	if !cond.Bool() {
		out.Val = els.Val
	}
	if r := f.rec(); r != nil {
		out.op = r.Select(t, f.operand(cond), f.operand(then), f.operand(els))
		out.traced = true
	}
	return out
}

// Promote declares that the cell's current value should be treated as a
// trace-time constant. Identity outside tracing. Promoting a derived
// expression promotes its result only; other uses of the inputs stay
// runtime values.
func (f *Frame) Promote(c Cell) Cell {
	r := f.rec()
	if r == nil {
		return c
	}
	op := r.Promote(f.operand(c), c.Val)
	return Cell{Val: c.Val, op: op, traced: true}
}

// Guard records the direction the branch on cond actually took and returns
// it, so the host can write `for f.Guard(cond) { ... }`-style loops.
func (f *Frame) Guard(cond Cell) bool {
	taken := cond.Bool()
	if r := f.rec(); r != nil {
		r.Guard(f.operand(cond), taken)
	}
	return taken
}

// MemCopyStatic copies n bytes with a size known at this callsite: the copy
// is inlined into byte loads and stores rather than recorded opaquely.
func (f *Frame) MemCopyStatic(dst, src Cell, n int64) {
	for i := int64(0); i < n; i++ {
		d := f.PtrAdd(dst, i)
		s := f.PtrAdd(src, i)
		f.Store(ir.TypeI8, d, f.Load(ir.TypeI8, s))
	}
}

// MemCopy copies size bytes where the size is a runtime value; recorded as
// one opaque intrinsic operation.
func (f *Frame) MemCopy(dst, src, size Cell) {
	f.Env.Mem.Copy(dst.Val.Int, src.Val.Int, size.Val.Int)
	if r := f.rec(); r != nil {
		r.MemCopy(f.operand(dst), f.operand(src), f.operand(size))
	}
}

// Call invokes a named host function. Inlined calls record their body
// operation-by-operation; functions marked do-not-trace, native primitives
// and detected recursion are recorded as one opaque call covering the whole
// dynamic extent, including anything they call in turn.
func (f *Frame) Call(name string, args ...Cell) Cell {
	def, ok := f.Env.Funcs[name]
	if !ok {
		panic(fmt.Sprintf("host: unknown function %q", name))
	}

	r := f.rec()
	if r == nil {
		vals := cellValues(args)
		return Cell{Val: f.Env.invoke(def, vals)}
	}

	if def.Native != nil || def.Outlined || r.OnStack(name) {
		argOps := make([]ir.Operand, len(args))
		for i, a := range args {
			argOps[i] = f.operand(a)
		}
		r.Suspend()
		res := f.Env.invokeInFrame(f, def, args)
		r.Resume()
		op := r.Call(name, argOps, def.Result)
		return Cell{Val: res, op: op, traced: def.Result != ir.TypeVoid}
	}

	r.EnterCall(name)
	res := def.Body(f, args)
	r.LeaveCall()
	return res
}

// CallValue invokes a function through a function value. The callee's
// operations are never recorded: the trace stays valid whatever the value
// resolves to later, guarded only by the value itself.
func (f *Frame) CallValue(fn Cell, args ...Cell) Cell {
	var resType ir.Type
	if fn.Val.Type == ir.TypePtr && fn.Val.Int >= 0 && fn.Val.Int < int64(len(f.Env.FuncVals)) {
		resType = f.Env.Funcs[f.Env.FuncVals[fn.Val.Int]].Result
	}

	r := f.rec()
	if r == nil {
		return Cell{Val: f.Env.InvokeValue(fn.Val, cellValues(args))}
	}

	argOps := make([]ir.Operand, len(args))
	for i, a := range args {
		argOps[i] = f.operand(a)
	}
	fnOp := f.operand(fn)
	r.Suspend()
	res := f.Env.InvokeValue(fn.Val, cellValues(args))
	r.Resume()
	op := r.IndirectCall(fnOp, argOps, resType)
	return Cell{Val: res, op: op, traced: resType != ir.TypeVoid}
}

// invokeInFrame runs a function during an outlined extent. Bodies still
// execute through the caller's frame so transitive calls behave identically,
// but the suspended recorder sees none of it.
func (e *Env) invokeInFrame(f *Frame, def *FuncDef, args []Cell) Value {
	if def.Native != nil {
		return def.Native(e, cellValues(args))
	}
	return def.Body(f, args).Val
}

func cellValues(cells []Cell) []Value {
	vals := make([]Value, len(cells))
	for i, c := range cells {
		vals[i] = c.Val
	}
	return vals
}
