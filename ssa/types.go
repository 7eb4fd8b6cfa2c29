// Package ssa implements CLIF: the typed SSA intermediate representation
// consumed by the machine-instruction lowering stage. It plays the role that
// wazero's internal/engine/wazevo/ssa package plays for wazero, generalized to
// the full Cranelift-style type system (lane-coded scalars and vectors) and
// to an explicit DataFlowGraph/Layout split instead of one combined builder.
package ssa

import "fmt"

// Type is a CLIF value type, encoded as a single byte. Scalars occupy the
// lane-code range 0x70-0x7C; a vector type is lane_code + (log2(lanes) << 4)
// starting at 0x80, so the same lane code is reused for every vector width.
type Type byte

const (
	typeInvalid Type = 0

	TypeI8  Type = 0x70
	TypeI16 Type = 0x71
	TypeI32 Type = 0x72
	TypeI64 Type = 0x73
	TypeI128 Type = 0x74

	TypeF32  Type = 0x7A
	TypeF64  Type = 0x7B
	TypeF128 Type = 0x7C
)

const vectorBase Type = 0x80

// VecOf returns the vector type with the given lane type and lane count.
// lanes must be a power of two and the resulting bit width must not exceed
// 256, per spec 3.1.
func VecOf(lane Type, lanes uint8) Type {
	if lanes == 0 || (lanes&(lanes-1)) != 0 {
		panic(fmt.Sprintf("lane count %d is not a power of two", lanes))
	}
	log2 := 0
	for n := lanes; n > 1; n >>= 1 {
		log2++
	}
	if int(lane.Bits())*int(lanes) > 256 {
		panic(fmt.Sprintf("vector bit-width %d exceeds the 256-bit core subset", int(lane.Bits())*int(lanes)))
	}
	return vectorBase + Type(log2<<4) + Type(lane&0x0f)
}

// IsVector reports whether t is a vector type produced by VecOf.
func (t Type) IsVector() bool {
	return t >= vectorBase
}

// LaneType returns the scalar lane type of a vector type, or t itself for scalars.
func (t Type) LaneType() Type {
	if !t.IsVector() {
		return t
	}
	return 0x70 | (t & 0x0f)
}

// Lanes returns the number of lanes; 1 for scalar types.
func (t Type) Lanes() int {
	if !t.IsVector() {
		return 1
	}
	return 1 << (uint(t-vectorBase) >> 4)
}

func (t Type) invalid() bool { return t == typeInvalid }

// IsInt reports whether t is an integer scalar type.
func (t Type) IsInt() bool {
	switch t {
	case TypeI8, TypeI16, TypeI32, TypeI64, TypeI128:
		return true
	default:
		return false
	}
}

// IsFloat reports whether t is a floating point scalar type.
func (t Type) IsFloat() bool {
	switch t {
	case TypeF32, TypeF64, TypeF128:
		return true
	default:
		return false
	}
}

// Bits returns the lane bit width.
func (t Type) Bits() byte {
	switch t.LaneType() {
	case TypeI8:
		return 8
	case TypeI16:
		return 16
	case TypeI32, TypeF32:
		return 32
	case TypeI64, TypeF64:
		return 64
	case TypeI128, TypeF128:
		return 128
	default:
		panic(fmt.Sprintf("invalid type %#x", byte(t)))
	}
}

// Size returns the number of bytes a scalar occupies; for vectors this is
// the total vector width in bytes.
func (t Type) Size() byte {
	if t.IsVector() {
		return byte(int(t.LaneType().Bits()) * t.Lanes() / 8)
	}
	return t.Bits() / 8
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if t.invalid() {
		return "invalid"
	}
	if t.IsVector() {
		return fmt.Sprintf("%sx%d", t.LaneType(), t.Lanes())
	}
	switch t {
	case TypeI8:
		return "i8"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeI128:
		return "i128"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeF128:
		return "f128"
	default:
		panic(fmt.Sprintf("invalid type %#x", byte(t)))
	}
}
