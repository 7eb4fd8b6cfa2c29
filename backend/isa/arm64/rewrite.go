package arm64

import "github.com/clifgen/wazevo-clif/backend"

// spillAmode addresses spill slot slot relative to fp, matching
// prologue.go's frame layout (stp fp,lr,[sp,-16]!; mov fp,sp leaves the
// first 8-byte slot at fp-8).
func spillAmode(slot uint32) Amode {
	return Amode{Base: fpVReg, Disp: -(int32(slot) + 1) * 8}
}

// spillScratch hands out this instruction's reserved same-class scratch
// registers (reg.go's spillScratchIntA/B, spillScratchFloatA/B), one per
// distinct spilled field. No Op this package emits has more than two
// same-class operands live at once, so two per class is always enough; a
// third simultaneous same-class spill panics rather than silently reusing a
// scratch register two live values need at once.
type spillScratch struct {
	usedInt, usedFloat int
}

func (s *spillScratch) take(class backend.RegClass) backend.VReg {
	switch class {
	case backend.RegClassInt:
		defer func() { s.usedInt++ }()
		switch s.usedInt {
		case 0:
			return spillScratchIntA
		case 1:
			return spillScratchIntB
		}
	case backend.RegClassFloat:
		defer func() { s.usedFloat++ }()
		switch s.usedFloat {
		case 0:
			return spillScratchFloatA
		case 1:
			return spillScratchFloatB
		}
	}
	panic("arm64: instruction needs more same-class spill scratch registers than reserved")
}

func loadSpill(dst backend.VReg, slot uint32) *Inst {
	return &Inst{Op: OpLdr, Dst: dst, Amode: spillAmode(slot), Width: 8}
}

func storeSpill(src backend.VReg, slot uint32) *Inst {
	return &Inst{Op: OpStr, Src1: src, Amode: spillAmode(slot), Width: 8}
}

// Rewrite replaces every VReg-valued field of each *Inst in insts with the
// pinned VReg the register allocator assigned it (regalloc.ResolveAssignment's
// output), so the encoder's regNum() calls succeed. A field the allocator
// spilled to the stack is rewritten to a scratch register instead: Dst (and
// Dst2, OpLdrPair's second def, used only by Prologue/Epilogue which run
// after Rewrite and so never reach it spilled) get a reload before the
// instruction and a spill-store after, so a destructive op's implicit "old
// value already at Dst" reads the right bits; every use-only field (Src1,
// Src2, Src3, Amode.Base) gets only a reload before. Spill slots are sized
// and addressed by frameSizeFor/spillAmode in lockstep (one 8-byte slot
// each, fp-relative).
func Rewrite(insts [][]*Inst, assignment map[backend.VReg]backend.Reg) [][]*Inst {
	out := make([][]*Inst, len(insts))
	for b, block := range insts {
		res := make([]*Inst, 0, len(block))
		for _, inst := range block {
			var sp spillScratch
			var reloads, stores []*Inst

			resolveUse := func(v backend.VReg) backend.VReg {
				r, ok := assignment[v]
				if !ok {
					return v
				}
				if !r.IsSpillSlot() {
					return r.AsVReg()
				}
				scratch := sp.take(v.Class())
				reloads = append(reloads, loadSpill(scratch, r.SpillSlot()))
				return scratch
			}
			resolveDef := func(v backend.VReg) backend.VReg {
				r, ok := assignment[v]
				if !ok {
					return v
				}
				if !r.IsSpillSlot() {
					return r.AsVReg()
				}
				scratch := sp.take(v.Class())
				reloads = append(reloads, loadSpill(scratch, r.SpillSlot()))
				stores = append(stores, storeSpill(scratch, r.SpillSlot()))
				return scratch
			}

			inst.Dst = resolveDef(inst.Dst)
			inst.Dst2 = resolveDef(inst.Dst2)
			inst.Src1 = resolveUse(inst.Src1)
			inst.Src2 = resolveUse(inst.Src2)
			inst.Src3 = resolveUse(inst.Src3)
			if inst.Amode.Base != 0 {
				inst.Amode.Base = resolveUse(inst.Amode.Base)
			}

			res = append(res, reloads...)
			res = append(res, inst)
			res = append(res, stores...)
		}
		out[b] = res
	}
	return out
}
