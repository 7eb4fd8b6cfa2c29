// Package amd64 lowers CLIF into x86-64 MachInsts and encodes them to bytes
// (spec.md §4.2, §6.2). It plays the role wazero's
// internal/engine/wazevo/backend/isa/amd64 package plays, rebuilt against
// this repository's backend.PReg/backend.VReg layout instead of wazero's
// packed regalloc.VReg.
package amd64

import "github.com/clifgen/wazevo-clif/backend"

// Hardware GPR numbers, in the encoding order x86-64 assigns them (register
// field 0-7 plus the REX.B/R/X extension bit for 8-15).
const (
	rax byte = iota
	rcx
	rdx
	rbx
	rsp
	rbp
	rsi
	rdi
	r8
	r9
	r10
	r11
	r12
	r13
	r14
	r15
)

// xmm0-xmm15 share the same 4-bit encoding space as the GPRs, in the
// RegClassFloat partition.
const (
	xmm0 byte = iota
	xmm1
	xmm2
	xmm3
	xmm4
	xmm5
	xmm6
	xmm7
	xmm8
	xmm9
	xmm10
	xmm11
	xmm12
	xmm13
	xmm14
	xmm15
)

func intReg(n byte) backend.PReg   { return backend.MakePReg(backend.RegClassInt, n) }
func floatReg(n byte) backend.PReg { return backend.MakePReg(backend.RegClassFloat, n) }

var (
	rax_ = intReg(rax)
	rcx_ = intReg(rcx)
	rdx_ = intReg(rdx)
	rsp_ = intReg(rsp)
	rbp_ = intReg(rbp)

	// raxVReg etc. name the pinned VRegs that mirror fixed-register ABI and
	// ISA idiom requirements (shift count in CL, dividend/remainder in
	// RAX:RDX), so lowering can hand them straight to OperandCollector
	// without a PReg<->VReg conversion at every call site.
	raxVReg = backend.FromPReg(rax_)
	rcxVReg = backend.FromPReg(rcx_)
	rdxVReg = backend.FromPReg(rdx_)
	rspVReg = backend.FromPReg(rsp_)
	rbpVReg = backend.FromPReg(rbp_)
)

// scratchInt is a register lowering may clobber freely between the
// instructions of a single CLIF op's expansion (e.g. holding an
// intermediate during a rotate-by-variable sequence); it is never handed out
// by regalloc because it is excluded from every ABI's param/result/callee-
// saved lists and the frontend never produces a VReg that maps onto it, but
// callers outside this package must still avoid it. r11 is the System V and
// Windows x64 "available as scratch" GPR used the same way by Cranelift.
const scratchIntHW = r11

func scratchInt() backend.PReg { return intReg(scratchIntHW) }

// spillScratchIntA/B and spillScratchFloatA/B are reserved for
// backend/isa/amd64.Rewrite to hold a spilled VReg's value while the
// instruction that reads or writes it executes (spec.md §4.3's spill/reload
// rewriting). Two per class is enough: no Op this package emits has more
// than two same-class operands that could be spilled simultaneously (amode
// addressing never uses Index, so at most Base and one Src/Dst collide).
// Like scratchIntHW, these are excluded from cmd/clifc's allocatable set and
// must stay caller-saved (r9/r10 and all of xmm0-15 are System V/Windows x64
// volatile registers), since clobbersFrom only saves/restores what regalloc
// actually handed out.
const (
	spillScratchIntAHW = r9
	spillScratchIntBHW = r10
)

var (
	spillScratchIntA = backend.FromPReg(intReg(spillScratchIntAHW))
	spillScratchIntB = backend.FromPReg(intReg(spillScratchIntBHW))

	spillScratchFloatA = backend.FromPReg(floatReg(xmm14))
	spillScratchFloatB = backend.FromPReg(floatReg(xmm15))
)

// regNum8 returns the raw 4-bit register-field encoding for p, independent of
// class (float/vector registers reuse GPR-numbered encodings 0-15).
func regNum8(p backend.PReg) byte { return p.HWNum() & 0xf }

func regNum8V(v backend.VReg) byte {
	if !v.IsPinned() {
		panic("regNum8V: VReg is not assigned a physical register")
	}
	return regNum8(v.PinnedPReg())
}

func isExtended(p backend.PReg) bool { return p.HWNum() >= 8 }
