package amd64

import "github.com/clifgen/wazevo-clif/backend"

// spillAmode addresses spill slot slot relative to rbp, matching
// prologue.go's frame layout (push rbp; mov rbp,rsp leaves the first 8-byte
// slot at rbp-8).
func spillAmode(slot uint32) Amode {
	return Amode{Base: rbpVReg, Disp: -(int32(slot) + 1) * 8}
}

// spillScratch hands out this instruction's reserved same-class scratch
// registers (reg.go's spillScratchIntA/B, spillScratchFloatA/B), one per
// distinct spilled field. No Op this package emits has more than two
// same-class operands live at once (Amode.Index is never produced by
// lowering, so at most Amode.Base and one Src/Dst field can both be
// spilled), so two per class is always enough; a third simultaneous
// same-class spill panics rather than silently reusing a scratch register
// two live values need at once.
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
	panic("amd64: instruction needs more same-class spill scratch registers than reserved")
}

func loadSpill(dst backend.VReg, slot uint32) *Inst {
	if dst.Class() == backend.RegClassFloat {
		return &Inst{Op: OpMovsdLoad, Dst: dst, Amode: spillAmode(slot)}
	}
	return &Inst{Op: OpMovLoad, Dst: dst, Amode: spillAmode(slot), Width: 8}
}

func storeSpill(src backend.VReg, slot uint32) *Inst {
	if src.Class() == backend.RegClassFloat {
		return &Inst{Op: OpMovsdStore, Src1: src, Amode: spillAmode(slot)}
	}
	return &Inst{Op: OpMovStore, Src1: src, Amode: spillAmode(slot), Width: 8}
}

// Rewrite replaces every VReg-valued field of each *Inst in insts with the
// pinned VReg the register allocator assigned it (regalloc.ResolveAssignment's
// output), so the encoder's PinnedPReg() calls succeed. A field the
// allocator spilled to the stack is rewritten to a scratch register instead:
// Dst (this package's only def field -- every other field is a use, see
// instr.go's doc comment) gets a reload before the instruction and a
// spill-store after, so a destructive op's implicit "old value already at
// Dst" reads the right bits; every other field gets only a reload before,
// since use-only fields are never written back. Spill slots are sized and
// addressed by frameSizeFor/spillAmode in lockstep (one 8-byte slot each,
// rbp-relative), and float spills round-trip through the 8-byte movsd form
// regardless of whether the live value was f32 or f64 -- the store and its
// matching reload both go through the same instruction, so the bits that
// matter are always preserved intact.
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
			inst.Src1 = resolveUse(inst.Src1)
			inst.Src2 = resolveUse(inst.Src2)
			if inst.Amode.Base != 0 {
				inst.Amode.Base = resolveUse(inst.Amode.Base)
			}
			if inst.Amode.HasIdx {
				inst.Amode.Index = resolveUse(inst.Amode.Index)
			}

			res = append(res, reloads...)
			res = append(res, inst)
			res = append(res, stores...)
		}
		out[b] = res
	}
	return out
}
