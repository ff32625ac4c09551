package host

import (
	"strings"
	"testing"

	"hotpath/internal/ir"
	"hotpath/internal/tracer"
)

func recordingFrame(env *Env) *Frame {
	return &Frame{Env: env, Rec: tracer.New(10000)}
}

func finish(t *testing.T, f *Frame) *ir.Trace {
	t.Helper()
	tr, err := f.Rec.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return tr
}

func kinds(tr *ir.Trace) []ir.OpKind {
	ks := make([]ir.OpKind, len(tr.Ops))
	for i := range tr.Ops {
		ks[i] = tr.Ops[i].Kind
	}
	return ks
}

func countKind(tr *ir.Trace, k ir.OpKind) int {
	n := 0
	for i := range tr.Ops {
		if tr.Ops[i].Kind == k {
			n++
		}
	}
	return n
}

func TestFrameComputesAndRecords(t *testing.T) {
	env := NewEnv(2, 256)
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 10)
	f := recordingFrame(env)

	v := f.ReadVar(0)
	sum := f.Binary(ir.BinAdd, ir.TypeI64, v, f.ConstInt(ir.TypeI64, 5))
	f.WriteVar(1, sum)

	if env.Vars[1].Int != 15 {
		t.Errorf("concrete result = %d, want 15", env.Vars[1].Int)
	}
	tr := finish(t, f)
	want := []ir.OpKind{ir.OpLoadVar, ir.OpBinary, ir.OpStoreVar}
	got := kinds(tr)
	if len(got) != len(want) {
		t.Fatalf("trace kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace kinds = %v, want %v", got, want)
		}
	}
}

func TestFrameWithoutRecorderOnlyComputes(t *testing.T) {
	env := NewEnv(2, 256)
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 10)
	f := &Frame{Env: env}

	f.WriteVar(1, f.Binary(ir.BinMul, ir.TypeI64, f.ReadVar(0), f.ConstInt(ir.TypeI64, 3)))
	if env.Vars[1].Int != 30 {
		t.Errorf("result = %d, want 30", env.Vars[1].Int)
	}
}

func TestUntracedValuePanicsWhileRecording(t *testing.T) {
	env := NewEnv(1, 256)
	f := recordingFrame(env)

	defer func() {
		if recover() == nil {
			t.Fatal("recording a value without provenance should panic")
		}
	}()
	f.WriteVar(0, Cell{Val: ir.ConstInt(ir.TypeI64, 1)})
}

func TestGuardRecordsTakenDirection(t *testing.T) {
	env := NewEnv(1, 256)
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
	f := recordingFrame(env)

	cond := f.Binary(ir.BinGt, ir.TypeBool, f.ReadVar(0), f.ConstInt(ir.TypeI64, 0))
	if f.Guard(cond) {
		t.Error("guard should return the concrete direction (false)")
	}

	tr := finish(t, f)
	last := tr.Ops[len(tr.Ops)-1]
	if last.Kind != ir.OpGuard || last.Guard.Expect != false {
		t.Errorf("last op = %+v, want guard false", last)
	}
}

func TestPromoteIsIdentityOutsideTracing(t *testing.T) {
	env := NewEnv(1, 256)
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 9)
	f := &Frame{Env: env}

	got := f.Promote(f.ReadVar(0))
	if got.Val.Int != 9 {
		t.Errorf("promoted value = %d, want 9", got.Val.Int)
	}
}

func TestPromoteRecordsCapturedValue(t *testing.T) {
	env := NewEnv(1, 256)
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 9)
	f := recordingFrame(env)

	f.Promote(f.ReadVar(0))
	tr := finish(t, f)
	p := tr.Ops[1]
	if p.Kind != ir.OpPromote {
		t.Fatalf("op 1 kind = %s, want promote", p.Kind)
	}
	if p.Promote.Captured.Int != 9 {
		t.Errorf("captured = %v, want 9", p.Promote.Captured)
	}
}

func TestNativeCallIsOutlined(t *testing.T) {
	var calls int
	env := NewEnv(1, 256)
	env.Define(&FuncDef{
		Name:   "tick",
		Result: ir.TypeI64,
		Native: func(e *Env, args []Value) Value {
			calls++
			return ir.ConstInt(ir.TypeI64, int64(calls))
		},
	})
	f := recordingFrame(env)

	res := f.Call("tick")
	if res.Val.Int != 1 || calls != 1 {
		t.Errorf("native executed %d times, result %d", calls, res.Val.Int)
	}

	tr := finish(t, f)
	if len(tr.Ops) != 1 || tr.Ops[0].Kind != ir.OpCall {
		t.Fatalf("trace = %v, want a single opaque call", kinds(tr))
	}
	if tr.Ops[0].Call.Name != "tick" || !tr.Ops[0].Call.HasResult {
		t.Errorf("call op = %+v", tr.Ops[0].Call)
	}
}

func TestPlainBodyIsInlined(t *testing.T) {
	env := NewEnv(1, 256)
	env.Define(&FuncDef{
		Name:   "double",
		Result: ir.TypeI64,
		Body: func(f *Frame, args []Cell) Cell {
			return f.Binary(ir.BinAdd, ir.TypeI64, args[0], args[0])
		},
	})
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 21)
	f := recordingFrame(env)

	res := f.Call("double", f.ReadVar(0))
	if res.Val.Int != 42 {
		t.Errorf("result = %d, want 42", res.Val.Int)
	}

	tr := finish(t, f)
	if countKind(tr, ir.OpCall) != 0 {
		t.Errorf("inlined call left an opaque call op: %v", kinds(tr))
	}
	if countKind(tr, ir.OpBinary) != 1 {
		t.Errorf("inlined body ops missing: %v", kinds(tr))
	}
}

func TestDoNotTraceBodyIsOutlined(t *testing.T) {
	env := NewEnv(1, 256)
	env.Define(&FuncDef{
		Name:     "opaque",
		Result:   ir.TypeI64,
		Outlined: true,
		Body: func(f *Frame, args []Cell) Cell {
			return f.Binary(ir.BinAdd, ir.TypeI64, args[0], args[0])
		},
	})
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 21)
	f := recordingFrame(env)

	res := f.Call("opaque", f.ReadVar(0))
	if res.Val.Int != 42 {
		t.Errorf("result = %d, want 42", res.Val.Int)
	}

	tr := finish(t, f)
	if countKind(tr, ir.OpCall) != 1 || countKind(tr, ir.OpBinary) != 0 {
		t.Errorf("do-not-trace body leaked into the trace: %v", kinds(tr))
	}
}

func TestOutliningIsTransitive(t *testing.T) {
	env := NewEnv(1, 256)
	env.Define(&FuncDef{
		Name:   "inner",
		Result: ir.TypeI64,
		Body: func(f *Frame, args []Cell) Cell {
			return f.Binary(ir.BinMul, ir.TypeI64, args[0], f.Const(ir.ConstInt(ir.TypeI64, 3)))
		},
	})
	env.Define(&FuncDef{
		Name:     "outer",
		Result:   ir.TypeI64,
		Outlined: true,
		Body: func(f *Frame, args []Cell) Cell {
			// inner would normally be inlined; inside an outlined extent it
			// must record nothing either.
			return f.Call("inner", args[0])
		},
	})
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 7)
	f := recordingFrame(env)

	res := f.Call("outer", f.ReadVar(0))
	if res.Val.Int != 21 {
		t.Errorf("result = %d, want 21", res.Val.Int)
	}

	tr := finish(t, f)
	if countKind(tr, ir.OpCall) != 1 {
		t.Errorf("want exactly the outer opaque call, got %v", kinds(tr))
	}
	if countKind(tr, ir.OpBinary) != 0 {
		t.Errorf("transitively reached ops leaked: %v", kinds(tr))
	}
}

func TestRecursionIsOutlined(t *testing.T) {
	env := NewEnv(1, 256)
	env.Define(&FuncDef{
		Name:   "fact",
		Result: ir.TypeI64,
		Body: func(f *Frame, args []Cell) Cell {
			if args[0].Val.Int <= 1 {
				return f.Const(ir.ConstInt(ir.TypeI64, 1))
			}
			n1 := f.Binary(ir.BinSub, ir.TypeI64, args[0], f.Const(ir.ConstInt(ir.TypeI64, 1)))
			rec := f.Call("fact", n1)
			return f.Binary(ir.BinMul, ir.TypeI64, args[0], rec)
		},
	})
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 4)
	f := recordingFrame(env)

	res := f.Call("fact", f.ReadVar(0))
	if res.Val.Int != 24 {
		t.Errorf("fact(4) = %d, want 24", res.Val.Int)
	}

	tr := finish(t, f)
	// The outermost entry inlines; the first recursive call is opaque.
	if countKind(tr, ir.OpCall) != 1 {
		t.Errorf("want one opaque recursive call, got %v", kinds(tr))
	}
}

func TestIndirectCallIsAlwaysOpaque(t *testing.T) {
	env := NewEnv(1, 256)
	env.Define(&FuncDef{
		Name:   "triple",
		Result: ir.TypeI64,
		Body: func(f *Frame, args []Cell) Cell {
			return f.Binary(ir.BinMul, ir.TypeI64, args[0], f.Const(ir.ConstInt(ir.TypeI64, 3)))
		},
	})
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 5)
	f := recordingFrame(env)

	fn := f.Const(env.FuncValue("triple"))
	res := f.CallValue(fn, f.ReadVar(0))
	if res.Val.Int != 15 {
		t.Errorf("result = %d, want 15", res.Val.Int)
	}

	tr := finish(t, f)
	if countKind(tr, ir.OpIndirectCall) != 1 || countKind(tr, ir.OpBinary) != 0 {
		t.Errorf("indirect call must stay opaque: %v", kinds(tr))
	}
}

func TestMemCopyStaticInlines(t *testing.T) {
	env := NewEnv(0, 256)
	src := env.Mem.Alloc(4)
	dst := env.Mem.Alloc(4)
	for i := int64(0); i < 4; i++ {
		env.Mem.Store(src+i, ir.TypeI8, ir.ConstInt(ir.TypeI8, i+1))
	}
	f := recordingFrame(env)

	f.MemCopyStatic(f.ConstInt(ir.TypePtr, dst), f.ConstInt(ir.TypePtr, src), 4)

	for i := int64(0); i < 4; i++ {
		if got := env.Mem.Load(dst+i, ir.TypeI8).Int; got != i+1 {
			t.Errorf("byte %d = %d, want %d", i, got, i+1)
		}
	}
	tr := finish(t, f)
	if countKind(tr, ir.OpMemCopy) != 0 {
		t.Errorf("static copy recorded opaquely: %v", kinds(tr))
	}
	if countKind(tr, ir.OpLoad) != 4 || countKind(tr, ir.OpStore) != 4 {
		t.Errorf("static copy should inline into 4 load/store pairs: %v", kinds(tr))
	}
}

func TestMemCopyDynamicStaysOpaque(t *testing.T) {
	env := NewEnv(1, 256)
	src := env.Mem.Alloc(4)
	dst := env.Mem.Alloc(4)
	env.Mem.Store(src, ir.TypeI32, ir.ConstInt(ir.TypeI32, 77))
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 4)
	f := recordingFrame(env)

	f.MemCopy(f.ConstInt(ir.TypePtr, dst), f.ConstInt(ir.TypePtr, src), f.ReadVar(0))

	if got := env.Mem.Load(dst, ir.TypeI32).Int; got != 77 {
		t.Errorf("copied value = %d, want 77", got)
	}
	tr := finish(t, f)
	if countKind(tr, ir.OpMemCopy) != 1 {
		t.Errorf("dynamic copy should stay one opaque op: %v", kinds(tr))
	}
}

func TestRunMatchesRecordedExecution(t *testing.T) {
	build := func() *Env {
		env := NewEnv(2, 256)
		env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
		env.Vars[1] = ir.ConstInt(ir.TypeI64, 0)
		return env
	}
	body := func(f *Frame) bool {
		i := f.ReadVar(0)
		f.WriteVar(1, f.Binary(ir.BinAdd, ir.TypeI64, f.ReadVar(1), i))
		ni := f.Binary(ir.BinAdd, ir.TypeI64, i, f.ConstInt(ir.TypeI64, 1))
		f.WriteVar(0, ni)
		return f.Guard(f.Binary(ir.BinLt, ir.TypeI64, ni, f.ConstInt(ir.TypeI64, 10)))
	}

	plain := build()
	Run(plain, body)

	recorded := build()
	f := &Frame{Env: recorded, Rec: tracer.New(10000)}
	for body(f) {
	}

	if plain.Vars[1].Int != recorded.Vars[1].Int {
		t.Errorf("recording changed the result: %d vs %d", recorded.Vars[1].Int, plain.Vars[1].Int)
	}
	if plain.Vars[1].Int != 45 {
		t.Errorf("sum 0..9 = %d, want 45", plain.Vars[1].Int)
	}
}

func TestNativePrintWritesToEnvOut(t *testing.T) {
	var sb strings.Builder
	env := NewEnv(0, 64)
	env.Out = &sb
	env.Define(&FuncDef{
		Name:   "putc",
		Result: ir.TypeVoid,
		Native: func(e *Env, args []Value) Value {
			e.Out.Write([]byte{byte(args[0].Int)})
			return Value{}
		},
	})

	env.Invoke("putc", []Value{ir.ConstInt(ir.TypeI8, 'h')})
	env.Invoke("putc", []Value{ir.ConstInt(ir.TypeI8, 'i')})
	if sb.String() != "hi" {
		t.Errorf("output = %q, want hi", sb.String())
	}
}
