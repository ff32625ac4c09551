package ir

import (
	"fmt"
	"math"
)

// Normalize wraps an integer payload to the width of t, sign-extending so the
// stored representation is canonical. Floats pass through F32 rounding.
func Normalize(t Type, c Const) Const {
	c.Type = t
	switch t {
	case TypeI8:
		c.Int = int64(int8(c.Int))
	case TypeI16:
		c.Int = int64(int16(c.Int))
	case TypeI32:
		c.Int = int64(int32(c.Int))
	case TypeBool:
		if c.Int != 0 {
			c.Int = 1
		}
	case TypeF32:
		c.Float = float64(float32(c.Float))
	}
	return c
}

// EvalBinary applies a binary operator to two values. Comparison operators
// produce TypeBool; everything else produces t. Division or remainder by
// zero panics: it is a host program defect, not a recoverable condition.
func EvalBinary(op BinOp, t Type, l, r Const) Const {
	if l.Type.Float() || r.Type.Float() {
		return evalBinaryFloat(op, t, l, r)
	}
	if op.Comparison() {
		var b bool
		switch op {
		case BinEq:
			b = l.Int == r.Int
		case BinNe:
			b = l.Int != r.Int
		case BinLt:
			b = l.Int < r.Int
		case BinLe:
			b = l.Int <= r.Int
		case BinGt:
			b = l.Int > r.Int
		case BinGe:
			b = l.Int >= r.Int
		}
		return ConstBool(b)
	}
	var v int64
	switch op {
	case BinAdd:
		v = l.Int + r.Int
	case BinSub:
		v = l.Int - r.Int
	case BinMul:
		v = l.Int * r.Int
	case BinDiv:
		if r.Int == 0 {
			panic("ir: integer division by zero")
		}
		v = l.Int / r.Int
	case BinRem:
		if r.Int == 0 {
			panic("ir: integer remainder by zero")
		}
		v = l.Int % r.Int
	case BinAnd:
		v = l.Int & r.Int
	case BinOr:
		v = l.Int | r.Int
	case BinXor:
		v = l.Int ^ r.Int
	case BinShl:
		v = l.Int << uint64(r.Int)
	case BinShr:
		v = l.Int >> uint64(r.Int)
	default:
		panic(fmt.Sprintf("ir: unknown binary operator %d", op))
	}
	return Normalize(t, Const{Int: v})
}

func evalBinaryFloat(op BinOp, t Type, l, r Const) Const {
	if op.Comparison() {
		var b bool
		switch op {
		case BinEq:
			b = l.Float == r.Float
		case BinNe:
			b = l.Float != r.Float
		case BinLt:
			b = l.Float < r.Float
		case BinLe:
			b = l.Float <= r.Float
		case BinGt:
			b = l.Float > r.Float
		case BinGe:
			b = l.Float >= r.Float
		}
		return ConstBool(b)
	}
	var v float64
	switch op {
	case BinAdd:
		v = l.Float + r.Float
	case BinSub:
		v = l.Float - r.Float
	case BinMul:
		v = l.Float * r.Float
	case BinDiv:
		v = l.Float / r.Float
	default:
		panic(fmt.Sprintf("ir: operator %s not defined on floats", op))
	}
	return Normalize(t, Const{Float: v})
}

// EvalCast applies an explicit conversion producing type t.
func EvalCast(kind CastKind, t Type, v Const) Const {
	switch kind {
	case CastIntToPtr, CastPtrToInt, CastTrunc, CastSExt:
		return Normalize(t, Const{Int: v.Int})
	case CastZExt:
		// Zero-extend from the source width before renormalizing.
		var u uint64
		switch v.Type {
		case TypeI8, TypeBool:
			u = uint64(uint8(v.Int))
		case TypeI16:
			u = uint64(uint16(v.Int))
		case TypeI32:
			u = uint64(uint32(v.Int))
		default:
			u = uint64(v.Int)
		}
		return Normalize(t, Const{Int: int64(u)})
	case CastSIToFP:
		return Normalize(t, Const{Float: float64(v.Int)})
	case CastFPExt:
		return Normalize(t, Const{Float: v.Float})
	default:
		panic(fmt.Sprintf("ir: unknown cast kind %d", kind))
	}
}

// Float32Bits and Float32FromBits convert between the stored float payload
// and its 4-byte memory image.
func Float32Bits(f float64) uint32 { return math.Float32bits(float32(f)) }

// Float32FromBits is the inverse of Float32Bits.
func Float32FromBits(b uint32) float64 { return float64(math.Float32frombits(b)) }
