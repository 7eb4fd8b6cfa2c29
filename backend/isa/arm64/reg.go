package arm64

import "github.com/clifgen/wazevo-clif/backend"

// Hardware register numbers, shared by the two register files (general
// purpose x0-x30/sp, and float/vector v0-v31). AArch64 encodes sp and the
// zero register xzr both as register number 31, distinguished only by
// instruction class. The sp constant below is that number: it stands for xzr
// in the register-form encodings (ORR/ORN, shifted SUB/SUBS, MADD, CSINC) and
// for sp in the add/sub-immediate and load/store base-register forms.
const (
	fp = 29 // x29, the frame pointer AAPCS64 dedicates to the frame record
	lr = 30 // x30, the link register
	sp = 31
)

// scratchGPR is reserved out of register allocation and serves as Rewrite's
// first GPR spill scratch, spillScratchIntA (mirroring IP0 in AAPCS64's own
// register usage convention, which reserves x16/x17 as intra-procedure-call
// scratch). Lowering does not use it.
const scratchGPR = 16

func intReg(hw byte) backend.PReg   { return backend.MakePReg(backend.RegClassInt, hw) }
func floatReg(hw byte) backend.PReg { return backend.MakePReg(backend.RegClassFloat, hw) }

var (
	fpVReg = backend.FromPReg(intReg(fp))
	lrVReg = backend.FromPReg(intReg(lr))
	spVReg = backend.FromPReg(intReg(sp))
)

func scratchInt() backend.PReg { return intReg(scratchGPR) }

// scratchGPR2 and the spillScratchFloatA/B v-registers are reserved for
// backend/isa/arm64.Rewrite to hold a spilled VReg's value while the
// instruction that reads or writes it executes (spec.md §4.3's spill/reload
// rewriting). Two per class is enough: no Op this package emits has more
// than two same-class operands that could be spilled simultaneously. x17
// pairs with x16/scratchGPR as AAPCS64's own IP0/IP1 intra-procedure-call
// scratch convention; v30/v31 are chosen out of AAPCS64's caller-saved
// range (v8-v15 are callee-saved, so using one of those would need
// clobbersFrom to know about it, which it can't since these registers never
// appear in the allocator's assignment map).
const scratchGPR2 = 17

func scratchInt2() backend.PReg { return intReg(scratchGPR2) }

var (
	spillScratchIntA   = backend.FromPReg(intReg(scratchGPR))
	spillScratchIntB   = backend.FromPReg(intReg(scratchGPR2))
	spillScratchFloatA = backend.FromPReg(floatReg(30))
	spillScratchFloatB = backend.FromPReg(floatReg(31))
)

// regNum returns v's assigned hardware register number; v must already be
// pinned (post backend/isa/arm64.Rewrite).
func regNum(v backend.VReg) byte {
	if !v.IsPinned() {
		panic("arm64: operand not yet assigned a physical register")
	}
	return v.PinnedPReg().HWNum()
}
