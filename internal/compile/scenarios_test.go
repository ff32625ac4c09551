package compile

// End-to-end checks that compiled traces reproduce unspecialized execution
// for the trickier operation kinds: globals resolved by identity, float
// arithmetic, data-dependent selection and pointer/integer casts.

import (
	"testing"

	"hotpath/internal/guard"
	"hotpath/internal/host"
	"hotpath/internal/ir"
)

func TestMutableGlobalResolvedPerExecution(t *testing.T) {
	const n = 6
	env := host.NewEnv(2, 256)
	g := env.AddGlobal("step", ir.TypeI64, 8)
	env.Mem.Store(env.Globals[g].Addr, ir.TypeI64, ir.ConstInt(ir.TypeI64, 3))

	body := func(f *host.Frame) bool {
		addr := f.GlobalAddr(g)
		v := f.Load(ir.TypeI64, addr)
		f.WriteVar(1, f.Binary(ir.BinAdd, ir.TypeI64, f.ReadVar(1), v))
		ni := f.Binary(ir.BinAdd, ir.TypeI64, f.ReadVar(0), f.ConstInt(ir.TypeI64, 1))
		f.WriteVar(0, ni)
		return f.Guard(f.Binary(ir.BinLt, ir.TypeI64, ni, f.ConstInt(ir.TypeI64, n)))
	}

	env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
	env.Vars[1] = ir.ConstInt(ir.TypeI64, 0)
	tr := recordOnce(t, env, body)
	ct, err := Compile(tr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
	env.Vars[1] = ir.ConstInt(ir.TypeI64, 0)
	if out := ct.Run(env); out.Kind != guard.OutcomeLoopExit {
		t.Fatalf("outcome = %+v, want loop exit", out)
	}
	if env.Vars[1].Int != 3*n {
		t.Fatalf("acc = %d, want %d", env.Vars[1].Int, 3*n)
	}

	// The global's contents change between invocations: the compiled trace
	// must load the fresh value, not one captured at record time.
	env.Mem.Store(env.Globals[g].Addr, ir.TypeI64, ir.ConstInt(ir.TypeI64, 5))
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
	env.Vars[1] = ir.ConstInt(ir.TypeI64, 0)
	if out := ct.Run(env); out.Kind != guard.OutcomeLoopExit {
		t.Fatalf("outcome = %+v, want loop exit", out)
	}
	if env.Vars[1].Int != 5*n {
		t.Errorf("acc after update = %d, want %d", env.Vars[1].Int, 5*n)
	}
}

func TestFloatArithmeticMatchesGroundTruth(t *testing.T) {
	const n = 12
	build := func() *host.Env {
		env := host.NewEnv(2, 256)
		env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
		env.Vars[1] = ir.ConstFloat(ir.TypeF64, 1.0)
		return env
	}
	body := func(f *host.Frame) bool {
		x := f.ReadVar(1)
		scaled := f.Binary(ir.BinMul, ir.TypeF64, x, f.Const(ir.ConstFloat(ir.TypeF64, 1.5)))
		f.WriteVar(1, f.Binary(ir.BinAdd, ir.TypeF64, scaled, f.Const(ir.ConstFloat(ir.TypeF64, 0.25))))
		ni := f.Binary(ir.BinAdd, ir.TypeI64, f.ReadVar(0), f.ConstInt(ir.TypeI64, 1))
		f.WriteVar(0, ni)
		return f.Guard(f.Binary(ir.BinLt, ir.TypeI64, ni, f.ConstInt(ir.TypeI64, n)))
	}

	truth := build()
	host.Run(truth, body)

	env := build()
	tr := recordOnce(t, env, body)
	ct, err := Compile(tr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	env = build()
	if out := ct.Run(env); out.Kind != guard.OutcomeLoopExit {
		t.Fatalf("outcome = %+v, want loop exit", out)
	}
	// Identical operation sequence, so the result is bit-identical.
	if env.Vars[1].Float != truth.Vars[1].Float {
		t.Errorf("x = %g, want %g", env.Vars[1].Float, truth.Vars[1].Float)
	}
}

func TestSelectStaysDataDependent(t *testing.T) {
	const n = 9
	build := func() *host.Env {
		env := host.NewEnv(2, 256)
		env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
		env.Vars[1] = ir.ConstInt(ir.TypeI64, 0)
		return env
	}
	// Alternating parity: a branch here would fail its guard every other
	// iteration, but selection is a data operation and must not guard.
	body := func(f *host.Frame) bool {
		i := f.ReadVar(0)
		par := f.Binary(ir.BinRem, ir.TypeI64, i, f.ConstInt(ir.TypeI64, 2))
		even := f.Binary(ir.BinEq, ir.TypeBool, par, f.ConstInt(ir.TypeI64, 0))
		neg := f.Binary(ir.BinSub, ir.TypeI64, f.ConstInt(ir.TypeI64, 0), i)
		v := f.Select(ir.TypeI64, even, i, neg)
		f.WriteVar(1, f.Binary(ir.BinAdd, ir.TypeI64, f.ReadVar(1), v))
		ni := f.Binary(ir.BinAdd, ir.TypeI64, i, f.ConstInt(ir.TypeI64, 1))
		f.WriteVar(0, ni)
		return f.Guard(f.Binary(ir.BinLt, ir.TypeI64, ni, f.ConstInt(ir.TypeI64, n)))
	}

	truth := build()
	host.Run(truth, body)

	env := build()
	tr := recordOnce(t, env, body)
	ct, err := Compile(tr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(ct.Guards()) != 1 {
		t.Fatalf("guards = %d, want only the loop-closing guard", len(ct.Guards()))
	}
	env = build()
	if out := ct.Run(env); out.Kind != guard.OutcomeLoopExit {
		t.Fatalf("outcome = %+v, want loop exit", out)
	}
	if env.Vars[1].Int != truth.Vars[1].Int {
		t.Errorf("acc = %d, want %d", env.Vars[1].Int, truth.Vars[1].Int)
	}
}

func TestIndirectCallResultFlowsThroughCompiledTrace(t *testing.T) {
	const n = 7
	build := func() *host.Env {
		env := host.NewEnv(3, 256)
		env.Define(&host.FuncDef{
			Name:   "triple",
			Result: ir.TypeI64,
			Body: func(f *host.Frame, args []host.Cell) host.Cell {
				return f.Binary(ir.BinMul, ir.TypeI64, args[0], f.ConstInt(ir.TypeI64, 3))
			},
		})
		env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
		env.Vars[1] = ir.ConstInt(ir.TypeI64, 0)
		env.Vars[2] = env.FuncValue("triple")
		return env
	}
	body := func(f *host.Frame) bool {
		i := f.ReadVar(0)
		v := f.CallValue(f.ReadVar(2), i)
		f.WriteVar(1, f.Binary(ir.BinAdd, ir.TypeI64, f.ReadVar(1), v))
		ni := f.Binary(ir.BinAdd, ir.TypeI64, i, f.ConstInt(ir.TypeI64, 1))
		f.WriteVar(0, ni)
		return f.Guard(f.Binary(ir.BinLt, ir.TypeI64, ni, f.ConstInt(ir.TypeI64, n)))
	}

	truth := build()
	host.Run(truth, body)

	env := build()
	tr := recordOnce(t, env, body)
	ct, err := Compile(tr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	env = build()
	if out := ct.Run(env); out.Kind != guard.OutcomeLoopExit {
		t.Fatalf("outcome = %+v, want loop exit", out)
	}
	if env.Vars[1].Int != truth.Vars[1].Int {
		t.Errorf("acc = %d, want %d", env.Vars[1].Int, truth.Vars[1].Int)
	}
}

func TestDynamicMemCopyThroughCompiledTrace(t *testing.T) {
	const n = 4
	build := func() *host.Env {
		env := host.NewEnv(4, 1024)
		src := env.Mem.Alloc(8 * n)
		dst := env.Mem.Alloc(8 * n)
		for i := int64(0); i < n; i++ {
			env.Mem.Store(src+8*i, ir.TypeI64, ir.ConstInt(ir.TypeI64, (i+1)*11))
		}
		env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
		env.Vars[1] = ir.ConstInt(ir.TypeI64, 8) // copy size, a runtime value
		env.Vars[2] = ir.ConstInt(ir.TypePtr, src)
		env.Vars[3] = ir.ConstInt(ir.TypePtr, dst)
		return env
	}
	body := func(f *host.Frame) bool {
		i := f.ReadVar(0)
		s := f.DynPtrAdd(f.ReadVar(2), i, 8)
		d := f.DynPtrAdd(f.ReadVar(3), i, 8)
		f.MemCopy(d, s, f.ReadVar(1))
		ni := f.Binary(ir.BinAdd, ir.TypeI64, i, f.ConstInt(ir.TypeI64, 1))
		f.WriteVar(0, ni)
		return f.Guard(f.Binary(ir.BinLt, ir.TypeI64, ni, f.ConstInt(ir.TypeI64, n)))
	}

	truth := build()
	host.Run(truth, body)

	env := build()
	tr := recordOnce(t, env, body)
	ct, err := Compile(tr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	env = build()
	if out := ct.Run(env); out.Kind != guard.OutcomeLoopExit {
		t.Fatalf("outcome = %+v, want loop exit", out)
	}
	truthDst := truth.Vars[3].Int
	envDst := env.Vars[3].Int
	for i := int64(0); i < n; i++ {
		want := truth.Mem.Load(truthDst+8*i, ir.TypeI64).Int
		got := env.Mem.Load(envDst+8*i, ir.TypeI64).Int
		if got != want {
			t.Errorf("element %d = %d, want %d", i, got, want)
		}
	}
}

func TestPtrToIntCastMatchesGroundTruth(t *testing.T) {
	const n = 5
	build := func() *host.Env {
		env := host.NewEnv(2, 512)
		base := env.Mem.Alloc(8 * n)
		env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
		env.Vars[1] = ir.ConstInt(ir.TypePtr, base)
		return env
	}
	// Sum the element addresses as integers. The dynamic pointer add keeps
	// the cast input a runtime value, so the cast cannot fold.
	body := func(f *host.Frame) bool {
		i := f.ReadVar(0)
		addr := f.DynPtrAdd(f.ReadVar(1), i, 8)
		asInt := f.Cast(ir.CastPtrToInt, ir.TypeI64, addr)
		f.Store(ir.TypeI64, addr, asInt)
		ni := f.Binary(ir.BinAdd, ir.TypeI64, i, f.ConstInt(ir.TypeI64, 1))
		f.WriteVar(0, ni)
		return f.Guard(f.Binary(ir.BinLt, ir.TypeI64, ni, f.ConstInt(ir.TypeI64, n)))
	}

	truth := build()
	host.Run(truth, body)

	env := build()
	tr := recordOnce(t, env, body)
	ct, err := Compile(tr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if out := ct.Run(env); out.Kind != guard.OutcomeLoopExit {
		t.Fatalf("outcome = %+v, want loop exit", out)
	}
	truthBase := truth.Vars[1].Int
	envBase := env.Vars[1].Int
	for i := int64(0); i < n; i++ {
		want := truth.Mem.Load(truthBase+8*i, ir.TypeI64).Int
		got := env.Mem.Load(envBase+8*i, ir.TypeI64).Int
		if got != want {
			t.Errorf("element %d = %d, want %d", i, got, want)
		}
	}
}
