package ir

import (
	"strings"
	"testing"
)

func TestFormatOp(t *testing.T) {
	tests := []struct {
		name string
		id   ValueID
		op   Op
		want string
	}{
		{
			"binop",
			3,
			Op{Kind: OpBinary, Type: TypeI64, Binary: BinaryOp{Op: BinAdd, Left: ValueOperand(1), Right: ConstOperand(ConstInt(TypeI64, 4))}},
			"%3: i64 = binop add %1, 4i64",
		},
		{
			"dyn_ptr_add",
			4,
			Op{Kind: OpDynPtrAdd, Type: TypePtr, DynPtrAdd: DynPtrAddOp{Ptr: ValueOperand(2), Index: ValueOperand(3), ElemSize: 8}},
			"%4: ptr = dyn_ptr_add %2, %3, 8",
		},
		{
			"store is void",
			5,
			Op{Kind: OpStore, Type: TypeVoid, Store: StoreOp{Addr: ValueOperand(0), Val: ValueOperand(1), ValType: TypeI32}},
			"store %0, %1",
		},
		{
			"promote shows captured",
			6,
			Op{Kind: OpPromote, Type: TypeI64, Promote: PromoteOp{Val: ValueOperand(2), Captured: ConstInt(TypeI64, 100)}},
			"%6: i64 = promote %2 [100i64]",
		},
		{
			"guard shows direction",
			7,
			Op{Kind: OpGuard, Type: TypeVoid, Guard: GuardOp{Cond: ValueOperand(5), Expect: true}},
			"guard true, %5",
		},
		{
			"load_var",
			0,
			Op{Kind: OpLoadVar, Type: TypeI64, LoadVar: LoadVarOp{Var: 2}},
			"%0: i64 = load_var $2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatOp(tt.id, &tt.op)
			if got != tt.want {
				t.Errorf("FormatOp = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTraceString(t *testing.T) {
	tr := NewTrace()
	mustAppend(t, tr, Op{Kind: OpLoadVar, Type: TypeI64, LoadVar: LoadVarOp{Var: 0}})
	mustAppend(t, tr, Op{Kind: OpBinary, Type: TypeI64, Binary: BinaryOp{Op: BinAdd, Left: ValueOperand(0), Right: ConstOperand(ConstInt(TypeI64, 1))}})

	got := tr.String()
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("trace listing has %d lines, want 2:\n%s", len(lines), got)
	}
	if lines[0] != "%0: i64 = load_var $0" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "%1: i64 = binop add %0, 1i64" {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func mustAppend(t *testing.T, tr *Trace, op Op) ValueID {
	t.Helper()
	id, err := tr.Append(op)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	return id
}
