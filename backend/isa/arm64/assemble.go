package arm64

import (
	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/mach"
)

// RelocKind names one of spec.md §6.2's AArch64 relocation kinds. CallPCRel26
// is the only site this package produces today (a direct Wasm-to-Wasm call
// through OpBL), matching the ELF R_AARCH64_CALL26 relocation the linking
// collaborator resolves against another module or a PLT stub.
type RelocKind byte

const (
	RelocCallPCRel26 RelocKind = iota
)

// Reloc is one unresolved reference left in the encoded byte stream,
// matching spec.md §6.2's MachReloc{offset, kind, symbol_index, addend}
// shape (symbol_index is carried here as the callee's name).
type Reloc struct {
	Offset int
	Kind   RelocKind
	Symbol string
	Addend int64
}

// EncodeFunction encodes insts (already register-allocated: every VReg
// operand is pinned) into a contiguous byte stream, resolving every
// B/B.cond backend.Label fixup against blockWordOffset and returning any
// remaining unresolved call-symbol relocations for the linker (spec.md
// §4.4, §6.2). Every AArch64 instruction is exactly one 32-bit word except
// OpMovImm64's MOVZ/MOVK expansion and a signed sub-word OpLdr's trailing
// SBFM, so word offsets -- not a fixed
// instruction count -- drive both block layout and the PC-relative
// immediate fields, which AArch64 counts in words rather than bytes.
//
// The same linear pass also collects traps and source locations: funcName
// names the file a returned mach.SourceLoc carries, since this pipeline
// compiles Wasm bytecode with no textual source file of its own -- Line is
// the CLIF instruction index the Inst lowers from (InstsFromVCode's
// HasSrcLoc/SrcLoc, threaded from backend.VCode.SrcLocs), Col is always 0.
func EncodeFunction(blocks [][]*Inst, funcName string) ([]byte, []Reloc, []mach.Trap, []mach.SourceLoc) {
	e := newEncoder()
	blockWordOffset := make([]int, len(blocks))
	var traps []mach.Trap
	var srcLocs []mach.SourceLoc
	for b, insts := range blocks {
		blockWordOffset[b] = len(e.words)
		for _, inst := range insts {
			offset := len(e.words) * 4
			e.Encode(inst)
			if inst.HasTrap {
				traps = append(traps, mach.Trap{Offset: offset, Code: inst.Trap})
			}
			if inst.HasSrcLoc {
				srcLocs = append(srcLocs, mach.SourceLoc{Offset: offset, File: funcName, Line: int(inst.SrcLoc), Col: 0})
			}
		}
	}

	var relocs []Reloc
	for _, fx := range e.Fixups {
		if fx.FuncSym != "" {
			relocs = append(relocs, Reloc{Offset: fx.WordOffset * 4, Kind: RelocCallPCRel26, Symbol: fx.FuncSym, Addend: 0})
			continue
		}
		target := blockWordOffset[fx.Label]
		rel := int32(target - fx.WordOffset)
		switch fx.Kind {
		case FixupB:
			e.words[fx.WordOffset] |= uint32(rel) & 0x03FFFFFF
		case FixupBCond:
			e.words[fx.WordOffset] |= (uint32(rel) & 0x7FFFF) << 5
		}
	}

	buf := make([]byte, 4*len(e.words))
	for i, w := range e.words {
		buf[4*i+0] = byte(w)
		buf[4*i+1] = byte(w >> 8)
		buf[4*i+2] = byte(w >> 16)
		buf[4*i+3] = byte(w >> 24)
	}
	return buf, relocs, traps, srcLocs
}

// InstsFromVCode extracts this ISA's concrete *Inst slice from a lowered,
// allocated backend.VCode, grouped by block (per EncodeFunction's input
// shape), panicking if vcode was lowered by a different ISA backend.
func InstsFromVCode(vcode *backend.VCode, numBlocks int) [][]*Inst {
	out := make([][]*Inst, numBlocks)
	for b := 0; b < numBlocks; b++ {
		start, end := vcode.BlockRange(b)
		insts := make([]*Inst, 0, end-start)
		for k := start; k < end; k++ {
			inst := vcode.Insts[k].(*Inst)
			if loc := vcode.SrcLocs[k]; loc.Valid() {
				inst.SrcLoc = loc
				inst.HasSrcLoc = true
			}
			insts = append(insts, inst)
		}
		out[b] = insts
	}
	return out
}
