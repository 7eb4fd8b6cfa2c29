package amd64

import (
	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/mach"
)

// RelocKind names one of spec.md §6.2's x86-64 relocation kinds the core
// emits; CallDirect is the only site this package produces today (a direct
// Wasm-to-Wasm call), which needs PLT32 so the linking collaborator can
// resolve it against another module or a PLT stub.
type RelocKind byte

const (
	RelocPLT32 RelocKind = iota
)

// Reloc is one unresolved reference left in the encoded byte stream,
// matching spec.md §6.2's MachReloc{offset, kind, symbol_index, addend}
// shape (symbol_index is carried here as the callee's name; the linking
// collaborator owns turning names into indices into its own symbol table).
type Reloc struct {
	Offset int
	Kind   RelocKind
	Symbol string
	Addend int64
}

// EncodeFunction encodes insts (already register-allocated: every VReg
// operand is pinned) into a contiguous byte stream, resolving every Jmp/Jcc
// backend.Label fixup against blockByteOffset and returning any remaining
// unresolved call-symbol relocations for the linker (spec.md §4.4, §6.2).
// Every encoded Inst's size is independent of how far any jump it contains
// travels (rel32 only, no short-jump form), so one linear pass both encodes
// and records each block's final byte offset -- no second sizing pass is
// needed before fixups can be patched.
//
// The same linear pass also collects traps and source locations: funcName
// names the file a returned mach.SourceLoc carries, since this pipeline
// compiles Wasm bytecode with no textual source file of its own -- Line is
// the CLIF instruction index the Inst lowers from (InstsFromVCode's
// HasSrcLoc/SrcLoc, threaded from backend.VCode.SrcLocs), Col is always 0.
func EncodeFunction(blocks [][]*Inst, funcName string) ([]byte, []Reloc, []mach.Trap, []mach.SourceLoc) {
	e := newEncoder()
	blockByteOffset := make([]int, len(blocks))
	var traps []mach.Trap
	var srcLocs []mach.SourceLoc
	for b, insts := range blocks {
		blockByteOffset[b] = len(e.buf)
		for _, inst := range insts {
			offset := len(e.buf)
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
			relocs = append(relocs, Reloc{Offset: fx.Offset, Kind: RelocPLT32, Symbol: fx.FuncSym, Addend: -4})
			continue
		}
		target := blockByteOffset[fx.Label]
		rel := int32(target - (fx.Offset + 4))
		e.buf[fx.Offset] = byte(rel)
		e.buf[fx.Offset+1] = byte(rel >> 8)
		e.buf[fx.Offset+2] = byte(rel >> 16)
		e.buf[fx.Offset+3] = byte(rel >> 24)
	}
	return e.buf, relocs, traps, srcLocs
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
