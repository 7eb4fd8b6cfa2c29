package arm64

import (
	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/mach"
)

// InsertDivZeroTraps synthesizes the zero-divisor check Machine.Lower's
// Sdiv/Udiv/Srem/Urem cases could not: AArch64's SDIV/UDIV silently return 0 on a zero
// divisor instead of faulting (contrast amd64's IDIV, which raises #DE on
// its own), so every OpDivRRR those cases marked NeedsTrapCheck gets a CMP
// plus a conditional branch to one BRK block shared by the whole function,
// appended after every existing block (spec.md §6.2's MachTrap). Appending
// rather than splicing a block in the middle keeps every already-resolved
// OpB/OpBCond Target index valid, matching Prologue/Epilogue's own
// must-not-change-block-count invariant (see cmd/clifc/pipeline.go).
//
// Must run after Rewrite: the inserted CMP reads the divisor's
// already-allocated physical register directly, and after Rewrite that's
// the only form Src2 can be in.
func InsertDivZeroTraps(insts [][]*Inst) [][]*Inst {
	trapBlock := backend.Label(len(insts))
	var anyTrap bool

	out := make([][]*Inst, len(insts), len(insts)+1)
	for b, block := range insts {
		res := make([]*Inst, 0, len(block))
		for _, inst := range block {
			if inst.NeedsTrapCheck == TrapDivByZero {
				anyTrap = true
				res = append(res,
					&Inst{Op: OpCmpRI, Src1: inst.Src2, Imm: 0, Width: inst.Width},
					&Inst{Op: OpBCond, Cc: CcEQ, Target: trapBlock},
				)
			}
			res = append(res, inst)
		}
		out[b] = res
	}
	if anyTrap {
		out = append(out, []*Inst{{Op: OpBrk, HasTrap: true, Trap: mach.TrapIntegerDivisionByZero}})
	}
	return out
}
