// Package guard evaluates the speculative assumptions embedded in compiled
// traces and reconstructs unspecialized state when one fails. Guard failure
// is a normal, recoverable event: the only fatal condition here is
// deoptimization metadata that fails to cover a live value, which is a
// compiler defect.
package guard

import (
	"fmt"

	"hotpath/internal/host"
	"hotpath/internal/ir"
)

// Kind distinguishes how a guard came to exist.
type Kind uint8

const (
	// KindBranch guards a control-flow decision implicit in the trace's
	// linear path: the branch must take the recorded direction.
	KindBranch Kind = iota + 1
	// KindPromote guards a value promotion: the live value must equal the
	// constant captured at record time.
	KindPromote
)

// String returns the guard kind name.
func (k Kind) String() string {
	switch k {
	case KindBranch:
		return "branch"
	case KindPromote:
		return "promote"
	default:
		return "unknown"
	}
}

// Resolver maps an operand to its current runtime value during one
// compiled-trace execution.
type Resolver func(ir.Operand) host.Value

// Guard is one runtime-checked assumption plus the metadata needed to hand
// state back to unspecialized execution if it does not hold.
type Guard struct {
	Kind   Kind
	OpIdx  ir.ValueID // position of the originating operation in the trace
	Cond   ir.Operand // branch: boolean condition; promote: the live value
	Expect bool       // branch: recorded direction
	Want   ir.Const   // promote: captured constant

	// Meta maps every interpreter variable live at the guard point back to
	// the operand holding its value. Partial coverage is a defect, not a
	// recoverable condition.
	Meta []ir.VarWrite
}

// Eval tests the guard against current runtime state.
func (g *Guard) Eval(resolve Resolver) bool {
	switch g.Kind {
	case KindBranch:
		return resolve(g.Cond).Bool() == g.Expect
	case KindPromote:
		return resolve(g.Cond).Eq(g.Want)
	default:
		panic(fmt.Sprintf("guard: unknown kind %d", g.Kind))
	}
}

// Reconstruct writes every variable covered by the guard's metadata back to
// its interpreter slot, leaving env exactly as unspecialized execution would
// have produced it at the guard's program point. Serializes nothing shared:
// each execution reconstructs only through its own resolver into its own env.
func (g *Guard) Reconstruct(env *host.Env, resolve Resolver) {
	for _, w := range g.Meta {
		if int(w.Var) < 0 || int(w.Var) >= len(env.Vars) {
			panic(fmt.Sprintf("guard: deopt metadata names unknown variable $%d", w.Var))
		}
		env.Vars[w.Var] = resolve(w.Val)
	}
}

// OutcomeKind classifies how a compiled-trace execution ended.
type OutcomeKind uint8

const (
	// OutcomeLoopExit means the loop-closing branch guard failed: the loop
	// condition no longer holds and execution leaves the loop.
	OutcomeLoopExit OutcomeKind = iota + 1
	// OutcomeDeopt means a value speculation failed mid-iteration; the
	// iteration was completed unspecialized and the loop may continue.
	OutcomeDeopt
)

// Outcome is the explicit result of running a compiled trace. Callers must
// handle both completion paths; there is no non-local control transfer.
type Outcome struct {
	Kind       OutcomeKind
	GuardIdx   int        // index of the failing guard
	OpIdx      ir.ValueID // trace position of the failing guard
	Iterations uint64     // completed compiled iterations
	// LoopContinue reports whether the loop should keep iterating
	// unspecialized after deoptimization.
	LoopContinue bool
}
