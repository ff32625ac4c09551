package ir

// OpKind enumerates operation kinds in trace IR.
type OpKind uint8

const (
	// OpBinary represents an arithmetic, bitwise or comparison operation.
	OpBinary OpKind = iota
	// OpLoad represents a memory load through a pointer.
	OpLoad
	// OpStore represents a memory store through a pointer.
	OpStore
	// OpGlobalAddr represents a lookup of a global's address by identity.
	OpGlobalAddr
	// OpPtrAdd represents a pointer add with a statically known byte offset.
	OpPtrAdd
	// OpDynPtrAdd represents a pointer add whose index is a runtime value.
	OpDynPtrAdd
	// OpCall represents an opaque outlined call to a named host function.
	OpCall
	// OpIndirectCall represents an opaque call through a function value.
	OpIndirectCall
	// OpMemCopy represents an opaque block copy with a runtime size.
	OpMemCopy
	// OpCast represents an explicit typed conversion.
	OpCast
	// OpSelect represents a data-dependent selection between two values.
	OpSelect
	// OpPromote represents a request to treat a runtime value as a
	// trace-time constant, guarded on re-entry.
	OpPromote
	// OpGuard represents a branch-direction guard.
	OpGuard
	// OpLoadVar represents the first read of an interpreter variable.
	OpLoadVar
	// OpStoreVar represents a write to an interpreter variable.
	OpStoreVar
)

// String returns the IR mnemonic of the operation kind.
func (k OpKind) String() string {
	switch k {
	case OpBinary:
		return "binop"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpGlobalAddr:
		return "global_addr"
	case OpPtrAdd:
		return "ptr_add"
	case OpDynPtrAdd:
		return "dyn_ptr_add"
	case OpCall:
		return "call"
	case OpIndirectCall:
		return "icall"
	case OpMemCopy:
		return "memcopy"
	case OpCast:
		return "cast"
	case OpSelect:
		return "select"
	case OpPromote:
		return "promote"
	case OpGuard:
		return "guard"
	case OpLoadVar:
		return "load_var"
	case OpStoreVar:
		return "store_var"
	default:
		return "unknown"
	}
}

// Op is a recorded trace operation. Kind selects which variant field is
// meaningful; Type is the type of the produced value (TypeVoid when the
// operation produces none).
type Op struct {
	Kind OpKind
	Type Type

	Binary       BinaryOp
	Load         LoadOp
	Store        StoreOp
	Global       GlobalAddrOp
	PtrAdd       PtrAddOp
	DynPtrAdd    DynPtrAddOp
	Call         CallOp
	IndirectCall IndirectCallOp
	MemCopy      MemCopyOp
	Cast         CastOp
	Select       SelectOp
	Promote      PromoteOp
	Guard        GuardOp
	LoadVar      LoadVarOp
	StoreVar     StoreVarOp
}

// BinOp enumerates binary operators.
type BinOp uint8

const (
	// BinAdd is addition.
	BinAdd BinOp = iota
	// BinSub is subtraction.
	BinSub
	// BinMul is multiplication.
	BinMul
	// BinDiv is division.
	BinDiv
	// BinRem is remainder.
	BinRem
	// BinAnd is bitwise and.
	BinAnd
	// BinOr is bitwise or.
	BinOr
	// BinXor is bitwise xor.
	BinXor
	// BinShl is a left shift.
	BinShl
	// BinShr is a right shift.
	BinShr
	// BinEq is an equality comparison.
	BinEq
	// BinNe is an inequality comparison.
	BinNe
	// BinLt is a less-than comparison.
	BinLt
	// BinLe is a less-or-equal comparison.
	BinLe
	// BinGt is a greater-than comparison.
	BinGt
	// BinGe is a greater-or-equal comparison.
	BinGe
)

// String returns the mnemonic of the binary operator.
func (op BinOp) String() string {
	switch op {
	case BinAdd:
		return "add"
	case BinSub:
		return "sub"
	case BinMul:
		return "mul"
	case BinDiv:
		return "div"
	case BinRem:
		return "rem"
	case BinAnd:
		return "and"
	case BinOr:
		return "or"
	case BinXor:
		return "xor"
	case BinShl:
		return "shl"
	case BinShr:
		return "shr"
	case BinEq:
		return "eq"
	case BinNe:
		return "ne"
	case BinLt:
		return "lt"
	case BinLe:
		return "le"
	case BinGt:
		return "gt"
	case BinGe:
		return "ge"
	default:
		return "unknown"
	}
}

// Comparison reports whether the operator produces a boolean.
func (op BinOp) Comparison() bool { return op >= BinEq }

// BinaryOp is the payload of OpBinary.
type BinaryOp struct {
	Op    BinOp
	Left  Operand
	Right Operand
}

// LoadOp is the payload of OpLoad. The loaded width is the op's Type.
type LoadOp struct {
	Addr Operand
}

// StoreOp is the payload of OpStore.
type StoreOp struct {
	Addr    Operand
	Val     Operand
	ValType Type
}

// GlobalAddrOp is the payload of OpGlobalAddr. The lookup is by identity so
// the global's contents may change between compiled-trace invocations.
type GlobalAddrOp struct {
	Global GlobalID
	Name   string
}

// PtrAddOp is the payload of OpPtrAdd: the whole offset was foldable when the
// trace was recorded.
type PtrAddOp struct {
	Ptr Operand
	Off int64
}

// DynPtrAddOp is the payload of OpDynPtrAdd: the index is a true runtime
// computation and must never be folded into a static offset.
type DynPtrAddOp struct {
	Ptr      Operand
	Index    Operand
	ElemSize int64
}

// CallOp is the payload of OpCall. The callee's internals were deliberately
// not recorded; executing the op re-invokes the host function.
type CallOp struct {
	Name      string
	Args      []Operand
	HasResult bool
}

// IndirectCallOp is the payload of OpIndirectCall. Fn is the runtime function
// value, not a particular resolved target.
type IndirectCallOp struct {
	Fn        Operand
	Args      []Operand
	HasResult bool
}

// MemCopyOp is the payload of OpMemCopy.
type MemCopyOp struct {
	Dst  Operand
	Src  Operand
	Size Operand
}

// CastKind enumerates explicit conversions.
type CastKind uint8

const (
	// CastIntToPtr reinterprets an integer as an address.
	CastIntToPtr CastKind = iota
	// CastPtrToInt reinterprets an address as an integer.
	CastPtrToInt
	// CastSIToFP converts a signed integer to floating point.
	CastSIToFP
	// CastFPExt widens a float to a wider float type.
	CastFPExt
	// CastTrunc truncates an integer to a narrower type.
	CastTrunc
	// CastZExt zero-extends an integer.
	CastZExt
	// CastSExt sign-extends an integer.
	CastSExt
)

// String returns the mnemonic of the cast kind.
func (k CastKind) String() string {
	switch k {
	case CastIntToPtr:
		return "int_to_ptr"
	case CastPtrToInt:
		return "ptr_to_int"
	case CastSIToFP:
		return "si_to_fp"
	case CastFPExt:
		return "fp_ext"
	case CastTrunc:
		return "trunc"
	case CastZExt:
		return "zext"
	case CastSExt:
		return "sext"
	default:
		return "unknown"
	}
}

// CastOp is the payload of OpCast. The destination type is the op's Type.
type CastOp struct {
	Cast CastKind
	Val  Operand
}

// SelectOp is the payload of OpSelect. Selection is a single data operation,
// not a branch, so it inserts no guard.
type SelectOp struct {
	Cond Operand
	Then Operand
	Else Operand
}

// VarWrite maps one interpreter variable to the operand holding its value at
// a guard point. The slice of these attached to a guard is the guard's
// deoptimization metadata.
type VarWrite struct {
	Var VarID
	Val Operand
}

// PromoteOp is the payload of OpPromote. Captured is the value observed at
// record time; the compiler turns it into an equality guard and substitutes
// the constant into later uses.
type PromoteOp struct {
	Val      Operand
	Captured Const
	Snapshot []VarWrite
}

// GuardOp is the payload of OpGuard: the branch must take the recorded
// direction on every re-execution.
type GuardOp struct {
	Cond     Operand
	Expect   bool
	Snapshot []VarWrite
}

// LoadVarOp is the payload of OpLoadVar.
type LoadVarOp struct {
	Var VarID
}

// StoreVarOp is the payload of OpStoreVar.
type StoreVarOp struct {
	Var VarID
	Val Operand
}
