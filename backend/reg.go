// Package backend lowers CLIF (package ssa) into ISA-specific virtual-
// register machine code (VCode), then into allocated, encoded bytes via an
// ISA backend (package backend/isa/amd64 or backend/isa/arm64) and the
// register allocator (package backend/regalloc). It plays the role wazero's
// internal/engine/wazevo/backend package plays, generalized from wazero's
// 64-bit packed VReg/RealReg encoding to the spec's compact 8-bit PReg /
// 32-bit VReg layout with the first 192 VRegs pinned to physical registers.
package backend

import (
	"fmt"
	"math/bits"
)

// RegClass partitions the physical register file.
type RegClass byte

const (
	RegClassInt RegClass = iota
	RegClassFloat
	RegClassVector
	NumRegClass
)

func (c RegClass) String() string {
	switch c {
	case RegClassInt:
		return "int"
	case RegClassFloat:
		return "float"
	case RegClassVector:
		return "vector"
	default:
		return "invalid"
	}
}

// PReg is a physical register: 2-bit class in the high bits, 6-bit hardware
// number in the low bits.
type PReg byte

// MakePReg packs class and hwNum (0-63) into a PReg.
func MakePReg(class RegClass, hwNum byte) PReg {
	if hwNum >= 64 {
		panic(fmt.Sprintf("hardware register number %d out of 6-bit range", hwNum))
	}
	return PReg(byte(class)<<6 | hwNum)
}

func (p PReg) Class() RegClass { return RegClass(p >> 6) }
func (p PReg) HWNum() byte     { return byte(p & 0x3f) }

func (p PReg) String() string { return fmt.Sprintf("p%d(%s)", p.HWNum(), p.Class()) }

// NumPinnedVRegs is the count of VReg indices reserved to mirror a physical
// register 1:1, giving lowering and regalloc a single uniform Reg type both
// before and after allocation (spec.md §3.2, §9 "Virtual -> physical by
// pinning").
const NumPinnedVRegs = 192

// VReg is a virtual register: 2-bit class in bits 31:30, 30-bit index below.
type VReg uint32

const vregClassShift = 30
const vregIndexMask = (1 << vregClassShift) - 1

// MakeVReg packs class and a dense index into a VReg.
func MakeVReg(class RegClass, index uint32) VReg {
	if index > vregIndexMask {
		panic("vreg index overflows 30 bits")
	}
	return VReg(uint32(class)<<vregClassShift | index)
}

func (v VReg) Class() RegClass { return RegClass(v >> vregClassShift) }
func (v VReg) Index() uint32   { return uint32(v) & vregIndexMask }

// IsPinned reports whether v's index falls in the pinned-physical-register
// range, i.e. v.Index() directly names a PReg's hardware number.
func (v VReg) IsPinned() bool { return v.Index() < NumPinnedVRegs }

// PinnedPReg returns the PReg a pinned VReg stands for. Only valid if
// IsPinned() is true.
func (v VReg) PinnedPReg() PReg { return MakePReg(v.Class(), byte(v.Index())) }

// FromPReg returns the pinned VReg that mirrors p.
func FromPReg(p PReg) VReg { return MakeVReg(p.Class(), uint32(p.HWNum())) }

func (v VReg) String() string {
	if v.IsPinned() {
		return fmt.Sprintf("%%%s", v.PinnedPReg())
	}
	return fmt.Sprintf("v%d(%s)", v.Index(), v.Class())
}

// Reg is a discriminated union of PReg / VReg / spill slot, used post-
// allocation once every operand has a concrete location. A spill slot is
// flagged by the top bit (spec.md §3.2).
type Reg uint32

const spillSlotFlag uint32 = 0x8000_0000

// RegFromVReg wraps a post-pinning VReg (i.e. one the allocator assigned no
// further, because it was already pinned) as a Reg.
func RegFromVReg(v VReg) Reg { return Reg(v) }

// RegFromPReg wraps an allocator-assigned PReg as a Reg, re-using the VReg
// encoding (PReg's 2-bit class + hw number fits the low bits of a VReg).
func RegFromPReg(p PReg) Reg { return Reg(FromPReg(p)) }

// RegFromSpillSlot wraps a spill-slot index (an offset into the frame's
// spill area, in slot units) as a Reg.
func RegFromSpillSlot(slot uint32) Reg {
	if slot&spillSlotFlag != 0 {
		panic("spill slot index overflows 31 bits")
	}
	return Reg(spillSlotFlag | slot)
}

func (r Reg) IsSpillSlot() bool { return uint32(r)&spillSlotFlag != 0 }
func (r Reg) SpillSlot() uint32 { return uint32(r) &^ spillSlotFlag }
func (r Reg) AsVReg() VReg      { return VReg(r) }

func (r Reg) String() string {
	if r.IsSpillSlot() {
		return fmt.Sprintf("stack%d", r.SpillSlot())
	}
	return r.AsVReg().String()
}

// Writable is a type-level tag marking that a Reg/VReg is written by the
// instruction holding it, distinguishing def operands from use operands at
// the Go type level (spec.md §3.2).
type Writable[T any] struct {
	Reg T
}

// W wraps r as a Writable[T].
func W[T any](r T) Writable[T] { return Writable[T]{Reg: r} }

// PRegSet is a bitset over every PReg: three 64-bit words, one per RegClass,
// covering up to 64 hardware registers per class (spec.md §3.2).
type PRegSet [NumRegClass]uint64

func (s *PRegSet) Add(p PReg)    { s[p.Class()] |= 1 << p.HWNum() }
func (s *PRegSet) Remove(p PReg) { s[p.Class()] &^= 1 << p.HWNum() }
func (s PRegSet) Has(p PReg) bool {
	return s[p.Class()]&(1<<p.HWNum()) != 0
}

// Union returns the set union of s and o.
func (s PRegSet) Union(o PRegSet) PRegSet {
	var r PRegSet
	for c := range s {
		r[c] = s[c] | o[c]
	}
	return r
}

// Range calls f for every PReg present in the set, in hardware-number order
// within each class, class Int first.
func (s PRegSet) Range(f func(PReg)) {
	for c := RegClass(0); c < NumRegClass; c++ {
		word := s[c]
		for word != 0 {
			n := bits.TrailingZeros64(word)
			f(MakePReg(c, byte(n)))
			word &^= 1 << n
		}
	}
}
