package ir

import "fmt"

// Type identifies the machine-level type of a trace value.
type Type uint8

const (
	// TypeVoid marks operations that produce no value.
	TypeVoid Type = iota
	// TypeI8 is an 8-bit integer.
	TypeI8
	// TypeI16 is a 16-bit integer.
	TypeI16
	// TypeI32 is a 32-bit integer.
	TypeI32
	// TypeI64 is a 64-bit integer.
	TypeI64
	// TypePtr is a pointer-sized address into host memory.
	TypePtr
	// TypeF32 is a single-precision float.
	TypeF32
	// TypeF64 is a double-precision float.
	TypeF64
	// TypeBool is a one-byte boolean.
	TypeBool
)

// Size returns the byte width of the type as stored in host memory.
func (t Type) Size() int64 {
	switch t {
	case TypeVoid:
		return 0
	case TypeI8, TypeBool:
		return 1
	case TypeI16:
		return 2
	case TypeI32, TypeF32:
		return 4
	case TypeI64, TypePtr, TypeF64:
		return 8
	default:
		return 0
	}
}

// Float reports whether the type is a floating-point type.
func (t Type) Float() bool { return t == TypeF32 || t == TypeF64 }

// String returns the IR spelling of the type.
func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeI8:
		return "i8"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypePtr:
		return "ptr"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeBool:
		return "i1"
	default:
		return "unknown"
	}
}

// ValueID names the value produced by an operation: it is the index of the
// producing operation within its trace. NoValue marks an absent value.
type ValueID int32

// NoValue is the ValueID of an operation that produces nothing.
const NoValue ValueID = -1

// VarID identifies an externally-live interpreter variable slot.
type VarID int32

// GlobalID identifies a global variable by table index, not by address.
type GlobalID int32

// FuncID indexes the host function-value table for indirect calls.
type FuncID int32

// Const is a typed constant. Integers, pointers and booleans live in Int;
// floats live in Float.
type Const struct {
	Type  Type
	Int   int64
	Float float64
}

// ConstInt builds an integer or pointer constant of the given type.
func ConstInt(t Type, v int64) Const { return Const{Type: t, Int: v} }

// ConstBool builds a boolean constant.
func ConstBool(v bool) Const {
	c := Const{Type: TypeBool}
	if v {
		c.Int = 1
	}
	return c
}

// ConstFloat builds a floating-point constant of the given type.
func ConstFloat(t Type, v float64) Const { return Const{Type: t, Float: v} }

// Bool interprets the constant as a boolean.
func (c Const) Bool() bool { return c.Int != 0 }

// Eq reports whether two constants have the same type and payload.
func (c Const) Eq(o Const) bool {
	return c.Type == o.Type && c.Int == o.Int && c.Float == o.Float
}

// String returns the IR spelling of the constant, e.g. "100i64".
func (c Const) String() string {
	if c.Type.Float() {
		return fmt.Sprintf("%g%s", c.Float, c.Type)
	}
	if c.Type == TypeBool {
		if c.Int != 0 {
			return "1i1"
		}
		return "0i1"
	}
	return fmt.Sprintf("%d%s", c.Int, c.Type)
}

// OperandKind distinguishes operand provenance.
type OperandKind uint8

const (
	// OperandConst is a compile-time constant operand.
	OperandConst OperandKind = iota
	// OperandValue references the result of an earlier operation in the
	// same trace.
	OperandValue
)

// Operand is an input to an operation: either a constant or a reference to a
// trace-local value. Externally-live state enters a trace only through
// OpLoadVar and OpGlobalAddr operations, so every operand's provenance is
// explicit in the trace itself.
type Operand struct {
	Kind  OperandKind
	Const Const
	Value ValueID
}

// ConstOperand wraps a constant as an operand.
func ConstOperand(c Const) Operand { return Operand{Kind: OperandConst, Const: c} }

// ValueOperand wraps a trace value reference as an operand.
func ValueOperand(id ValueID) Operand { return Operand{Kind: OperandValue, Value: id} }

// IsConst reports whether the operand is a constant.
func (o Operand) IsConst() bool { return o.Kind == OperandConst }

// String returns the IR spelling of the operand.
func (o Operand) String() string {
	if o.Kind == OperandConst {
		return o.Const.String()
	}
	return fmt.Sprintf("%%%d", o.Value)
}
