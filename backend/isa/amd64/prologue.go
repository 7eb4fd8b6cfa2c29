package amd64

import "github.com/clifgen/wazevo-clif/backend"

// Prologue returns the instructions a function body must be prefixed with:
// push the frame pointer, establish the new one, reserve frameSize bytes of
// local stack, and save every callee-saved register clobbers names (spec.md
// §4.2's ABI-integration prologue, matching System V/Windows x64's standard
// push-rbp/mov-rbp,rsp frame shape).
func Prologue(spec backend.ABIMachineSpec, frameSize int64, clobbers backend.PRegSet) []*Inst {
	var out []*Inst
	out = append(out, &Inst{Op: OpPush, Src1: rbpVReg})
	out = append(out, &Inst{Op: OpMovRR, Dst: rbpVReg, Src1: rspVReg, Width: 8})
	if aligned := alignUp(frameSize, spec.StackAlignBytes()); aligned > 0 {
		out = append(out, &Inst{Op: OpAluRI, Dst: rspVReg, Alu: AluSub, Imm: aligned, Width: 8})
	}
	clobbers.Range(func(p backend.PReg) {
		if !calleeSaved(spec, p) {
			return
		}
		out = append(out, &Inst{Op: OpPush, Src1: backend.FromPReg(p)})
	})
	return out
}

// Epilogue returns the instructions that undo Prologue's frame and clobbers
// set, in the exact reverse order, followed by leave-equivalent teardown; it
// emits no Ret (the CLIF-level OpReturn's own Ret is emitted separately by
// LowerBranch; Epilogue supplies everything that must run before it).
func Epilogue(spec backend.ABIMachineSpec, frameSize int64, clobbers backend.PRegSet) []*Inst {
	var saved []backend.PReg
	clobbers.Range(func(p backend.PReg) {
		if calleeSaved(spec, p) {
			saved = append(saved, p)
		}
	})
	var out []*Inst
	for i := len(saved) - 1; i >= 0; i-- {
		out = append(out, &Inst{Op: OpPop, Dst: backend.FromPReg(saved[i])})
	}
	out = append(out, &Inst{Op: OpMovRR, Dst: rspVReg, Src1: rbpVReg, Width: 8})
	out = append(out, &Inst{Op: OpPop, Dst: rbpVReg})
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
