package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a human-readable listing of the trace, one operation per line,
// in value-numbered form:
//
//	%3: i64 = binop add %1, 4i64
//	%4: ptr = dyn_ptr_add %2, %3, 8
func Dump(w io.Writer, t *Trace) error {
	for i := range t.Ops {
		if _, err := fmt.Fprintf(w, "%s\n", FormatOp(ValueID(i), &t.Ops[i])); err != nil {
			return err
		}
	}
	return nil
}

// String returns the trace listing as a single string.
func (t *Trace) String() string {
	var sb strings.Builder
	_ = Dump(&sb, t)
	return sb.String()
}

// FormatOp renders one operation with its value number.
func FormatOp(id ValueID, op *Op) string {
	var sb strings.Builder
	if op.Type != TypeVoid {
		fmt.Fprintf(&sb, "%%%d: %s = ", id, op.Type)
	}
	switch op.Kind {
	case OpBinary:
		fmt.Fprintf(&sb, "binop %s %s, %s", op.Binary.Op, op.Binary.Left, op.Binary.Right)
	case OpLoad:
		fmt.Fprintf(&sb, "load %s", op.Load.Addr)
	case OpStore:
		fmt.Fprintf(&sb, "store %s, %s", op.Store.Addr, op.Store.Val)
	case OpGlobalAddr:
		fmt.Fprintf(&sb, "global_addr @%s", op.Global.Name)
	case OpPtrAdd:
		fmt.Fprintf(&sb, "ptr_add %s, %d", op.PtrAdd.Ptr, op.PtrAdd.Off)
	case OpDynPtrAdd:
		fmt.Fprintf(&sb, "dyn_ptr_add %s, %s, %d", op.DynPtrAdd.Ptr, op.DynPtrAdd.Index, op.DynPtrAdd.ElemSize)
	case OpCall:
		fmt.Fprintf(&sb, "call @%s(%s)", op.Call.Name, formatArgs(op.Call.Args))
	case OpIndirectCall:
		fmt.Fprintf(&sb, "icall %s(%s)", op.IndirectCall.Fn, formatArgs(op.IndirectCall.Args))
	case OpMemCopy:
		fmt.Fprintf(&sb, "memcopy %s, %s, %s", op.MemCopy.Dst, op.MemCopy.Src, op.MemCopy.Size)
	case OpCast:
		fmt.Fprintf(&sb, "%s %s", op.Cast.Cast, op.Cast.Val)
	case OpSelect:
		fmt.Fprintf(&sb, "select %s, %s, %s", op.Select.Cond, op.Select.Then, op.Select.Else)
	case OpPromote:
		fmt.Fprintf(&sb, "promote %s [%s]", op.Promote.Val, op.Promote.Captured)
	case OpGuard:
		fmt.Fprintf(&sb, "guard %v, %s", op.Guard.Expect, op.Guard.Cond)
	case OpLoadVar:
		fmt.Fprintf(&sb, "load_var $%d", op.LoadVar.Var)
	case OpStoreVar:
		fmt.Fprintf(&sb, "store_var $%d, %s", op.StoreVar.Var, op.StoreVar.Val)
	default:
		fmt.Fprintf(&sb, "unknown(kind=%d)", op.Kind)
	}
	return sb.String()
}

func formatArgs(args []Operand) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}
