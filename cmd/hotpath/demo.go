package main

import (
	"fmt"
	"io"

	"hotpath/internal/host"
	"hotpath/internal/ir"
	"hotpath/internal/mt"
)

// scenario is one runnable demo program.
type scenario struct {
	name    string
	summary string
	// threshold is the hot threshold applied unless overridden by flag.
	threshold uint32
	run       func(out io.Writer, m *mt.MT) error
}

var scenarios = []scenario{
	{
		name:      "countdown",
		summary:   "four-iteration countdown loop, traced on first arrival",
		threshold: 0,
		run:       scenarioCountdown,
	},
	{
		name:      "sum",
		summary:   "repeated array summation through dynamic pointer arithmetic",
		threshold: 3,
		run:       scenarioSum,
	},
	{
		name:      "promote",
		summary:   "stride promotion that deoptimizes when the stride changes",
		threshold: 2,
		run:       scenarioPromote,
	},
}

func findScenario(name string) (scenario, bool) {
	for _, sc := range scenarios {
		if sc.name == name {
			return sc, true
		}
	}
	return scenario{}, false
}

func definePrint(env *host.Env) {
	env.Define(&host.FuncDef{
		Name:   "print_i64",
		Result: ir.TypeVoid,
		Native: func(e *host.Env, args []host.Value) host.Value {
			fmt.Fprintf(e.Out, "%d\n", args[0].Int)
			return host.Value{}
		},
	})
}

// scenarioCountdown counts 4..1, printing each value. With a zero hot
// threshold the first iteration is recorded and the remaining ones run
// through the compiled trace until the loop-exit guard fires.
func scenarioCountdown(out io.Writer, m *mt.MT) error {
	env := host.NewEnv(1, 1024)
	env.Out = out
	definePrint(env)
	env.Vars[0] = ir.ConstInt(ir.TypeI64, 4)

	loc := m.NewLocation()
	m.RunLoop(env, loc, func(f *host.Frame) bool {
		v := f.ReadVar(0)
		f.Call("print_i64", v)
		next := f.Binary(ir.BinSub, ir.TypeI64, v, f.ConstInt(ir.TypeI64, 1))
		f.WriteVar(0, next)
		return f.Guard(f.Binary(ir.BinGt, ir.TypeI64, next, f.ConstInt(ir.TypeI64, 0)))
	})
	return nil
}

// scenarioSum sums a 64-element array in an inner loop run for many passes,
// so the loop header gets hot, compiles and subsequent passes execute the
// compiled trace.
func scenarioSum(out io.Writer, m *mt.MT) error {
	const n = 64
	env := host.NewEnv(2, 4096)
	env.Out = out
	base := env.Mem.Alloc(8 * n)
	for i := int64(0); i < n; i++ {
		env.Mem.Store(base+8*i, ir.TypeI64, ir.ConstInt(ir.TypeI64, i))
	}

	loc := m.NewLocation()
	body := func(f *host.Frame) bool {
		i := f.ReadVar(0)
		addr := f.DynPtrAdd(f.ConstInt(ir.TypePtr, base), i, 8)
		v := f.Load(ir.TypeI64, addr)
		f.WriteVar(1, f.Binary(ir.BinAdd, ir.TypeI64, f.ReadVar(1), v))
		ni := f.Binary(ir.BinAdd, ir.TypeI64, i, f.ConstInt(ir.TypeI64, 1))
		f.WriteVar(0, ni)
		return f.Guard(f.Binary(ir.BinLt, ir.TypeI64, ni, f.ConstInt(ir.TypeI64, n)))
	}

	for pass := 0; pass < 10; pass++ {
		env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
		env.Vars[1] = ir.ConstInt(ir.TypeI64, 0)
		m.RunLoop(env, loc, body)
		fmt.Fprintf(out, "pass %d sum=%d\n", pass, env.Vars[1].Int)
	}
	return nil
}

// scenarioPromote promotes a stride variable to a trace-time constant, then
// changes the stride between passes so the promotion guard fails and the
// location deoptimizes back to counting.
func scenarioPromote(out io.Writer, m *mt.MT) error {
	const n = 32
	env := host.NewEnv(3, 1024)
	env.Out = out

	loc := m.NewLocation()
	body := func(f *host.Frame) bool {
		stride := f.Promote(f.ReadVar(2))
		f.WriteVar(1, f.Binary(ir.BinAdd, ir.TypeI64, f.ReadVar(1), stride))
		ni := f.Binary(ir.BinAdd, ir.TypeI64, f.ReadVar(0), f.ConstInt(ir.TypeI64, 1))
		f.WriteVar(0, ni)
		return f.Guard(f.Binary(ir.BinLt, ir.TypeI64, ni, f.ConstInt(ir.TypeI64, n)))
	}

	for pass := 0; pass < 8; pass++ {
		stride := int64(2)
		if pass >= 5 {
			stride = 7
		}
		env.Vars[0] = ir.ConstInt(ir.TypeI64, 0)
		env.Vars[1] = ir.ConstInt(ir.TypeI64, 0)
		env.Vars[2] = ir.ConstInt(ir.TypeI64, stride)
		m.RunLoop(env, loc, body)
		fmt.Fprintf(out, "pass %d stride=%d total=%d\n", pass, stride, env.Vars[1].Int)
	}
	return nil
}
