package host

import (
	"encoding/binary"
	"fmt"
	"math"

	"fortio.org/safecast"

	"hotpath/internal/ir"
)

// Memory is a flat byte-addressed store. Address 0 is kept unmapped so a
// zero value can serve as a null pointer.
type Memory struct {
	data []byte
	next int64
}

// NewMemory creates a memory of the given size in bytes.
func NewMemory(size int64) *Memory {
	n, err := safecast.Conv[int](size)
	if err != nil {
		panic(fmt.Sprintf("host: memory size overflow: %v", err))
	}
	return &Memory{data: make([]byte, n), next: 8}
}

// Alloc reserves size bytes, 8-byte aligned, and returns the base address.
func (m *Memory) Alloc(size int64) int64 {
	addr := (m.next + 7) &^ 7
	if addr+size > int64(len(m.data)) {
		panic(fmt.Sprintf("host: out of memory allocating %d bytes", size))
	}
	m.next = addr + size
	return addr
}

func (m *Memory) check(addr, size int64) int {
	if addr < 8 || addr+size > int64(len(m.data)) {
		panic(fmt.Sprintf("host: memory access [%d,%d) out of bounds", addr, addr+size))
	}
	return int(addr)
}

// Load reads a value of type t at addr.
func (m *Memory) Load(addr int64, t ir.Type) Value {
	i := m.check(addr, t.Size())
	switch t {
	case ir.TypeI8, ir.TypeBool:
		return ir.Normalize(t, ir.Const{Int: int64(int8(m.data[i]))})
	case ir.TypeI16:
		return ir.Normalize(t, ir.Const{Int: int64(int16(binary.LittleEndian.Uint16(m.data[i:])))})
	case ir.TypeI32:
		return ir.Normalize(t, ir.Const{Int: int64(int32(binary.LittleEndian.Uint32(m.data[i:])))})
	case ir.TypeI64, ir.TypePtr:
		return ir.Normalize(t, ir.Const{Int: int64(binary.LittleEndian.Uint64(m.data[i:]))})
	case ir.TypeF32:
		return ir.ConstFloat(t, ir.Float32FromBits(binary.LittleEndian.Uint32(m.data[i:])))
	case ir.TypeF64:
		bits := binary.LittleEndian.Uint64(m.data[i:])
		return ir.ConstFloat(t, math.Float64frombits(bits))
	default:
		panic(fmt.Sprintf("host: load of unsupported type %s", t))
	}
}

// Store writes v at addr as type t.
func (m *Memory) Store(addr int64, t ir.Type, v Value) {
	i := m.check(addr, t.Size())
	switch t {
	case ir.TypeI8, ir.TypeBool:
		m.data[i] = byte(v.Int)
	case ir.TypeI16:
		binary.LittleEndian.PutUint16(m.data[i:], uint16(v.Int))
	case ir.TypeI32:
		binary.LittleEndian.PutUint32(m.data[i:], uint32(v.Int))
	case ir.TypeI64, ir.TypePtr:
		binary.LittleEndian.PutUint64(m.data[i:], uint64(v.Int))
	case ir.TypeF32:
		binary.LittleEndian.PutUint32(m.data[i:], ir.Float32Bits(v.Float))
	case ir.TypeF64:
		binary.LittleEndian.PutUint64(m.data[i:], math.Float64bits(v.Float))
	default:
		panic(fmt.Sprintf("host: store of unsupported type %s", t))
	}
}

// Copy moves size bytes from src to dst, handling overlap like memmove.
func (m *Memory) Copy(dst, src, size int64) {
	if size == 0 {
		return
	}
	d := m.check(dst, size)
	s := m.check(src, size)
	copy(m.data[d:d+int(size)], m.data[s:s+int(size)])
}
