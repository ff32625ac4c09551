// Package host models the unspecialized side of the system: interpreter
// variables, byte-addressed memory, globals and host functions, plus the
// instrumentation boundary (Frame) through which every executed operation is
// mirrored into a trace recorder. The meta-tracer core only ever sees this
// package's surface; the host program's own semantics stay outside the core.
package host

import (
	"fmt"
	"io"

	"hotpath/internal/ir"
)

// Value is a runtime value. It shares the representation of an IR constant:
// typed, with integers/pointers/booleans in Int and floats in Float.
type Value = ir.Const

// Global is one entry in the global-variable table. Compiled traces look
// globals up by identity (table index), never by captured address, because
// the contents behind Addr may change between invocations.
type Global struct {
	Name string
	Type ir.Type
	Addr int64
}

// FuncDef describes a callable host function.
//
// Exactly one of Body and Native is set. A Body executes through a Frame and
// can be inlined into a trace operation-by-operation. A Native is an opaque
// host primitive (I/O and the like); it is always outlined.
type FuncDef struct {
	Name   string
	Result ir.Type

	// Outlined marks the function do-not-trace: even a Body is recorded as
	// a single opaque call operation.
	Outlined bool

	Body   func(f *Frame, args []Cell) Cell
	Native func(env *Env, args []Value) Value
}

// Env is the interpreter state a trace specializes against and deoptimizes
// back into.
type Env struct {
	Vars    []Value
	Mem     *Memory
	Globals []Global
	Funcs   map[string]*FuncDef

	// FuncVals is the function-value table for indirect calls: a function
	// value is a TypePtr Value whose payload indexes this table.
	FuncVals []string

	// Out receives anything host print primitives write.
	Out io.Writer
}

// NewEnv creates an environment with nvars variable slots and a memory of
// memSize bytes.
func NewEnv(nvars int, memSize int64) *Env {
	return &Env{
		Vars:  make([]Value, nvars),
		Mem:   NewMemory(memSize),
		Funcs: make(map[string]*FuncDef),
	}
}

// Define registers a host function.
func (e *Env) Define(def *FuncDef) {
	if def.Name == "" || (def.Body == nil) == (def.Native == nil) {
		panic(fmt.Sprintf("host: malformed function definition %q", def.Name))
	}
	e.Funcs[def.Name] = def
}

// AddGlobal registers a global backed by freshly allocated memory and
// returns its id.
func (e *Env) AddGlobal(name string, t ir.Type, size int64) ir.GlobalID {
	addr := e.Mem.Alloc(size)
	e.Globals = append(e.Globals, Global{Name: name, Type: t, Addr: addr})
	return ir.GlobalID(len(e.Globals) - 1)
}

// FuncValue returns a function value for name, registering it in the
// function-value table on first use.
func (e *Env) FuncValue(name string) Value {
	if _, ok := e.Funcs[name]; !ok {
		panic(fmt.Sprintf("host: unknown function %q", name))
	}
	for i, n := range e.FuncVals {
		if n == name {
			return ir.ConstInt(ir.TypePtr, int64(i))
		}
	}
	e.FuncVals = append(e.FuncVals, name)
	return ir.ConstInt(ir.TypePtr, int64(len(e.FuncVals)-1))
}

// Invoke executes a host function unspecialized: a Native directly, a Body
// through a fresh non-recording frame. Compiled traces use this to execute
// opaque call operations.
func (e *Env) Invoke(name string, args []Value) Value {
	def, ok := e.Funcs[name]
	if !ok {
		panic(fmt.Sprintf("host: unknown function %q", name))
	}
	return e.invoke(def, args)
}

// InvokeValue executes an indirect call through a function value.
func (e *Env) InvokeValue(fn Value, args []Value) Value {
	if fn.Type != ir.TypePtr || fn.Int < 0 || fn.Int >= int64(len(e.FuncVals)) {
		panic(fmt.Sprintf("host: invalid function value %v", fn))
	}
	return e.Invoke(e.FuncVals[fn.Int], args)
}

func (e *Env) invoke(def *FuncDef, args []Value) Value {
	if def.Native != nil {
		return def.Native(e, args)
	}
	f := &Frame{Env: e}
	cells := make([]Cell, len(args))
	for i, a := range args {
		cells[i] = Cell{Val: a}
	}
	return def.Body(f, cells).Val
}
