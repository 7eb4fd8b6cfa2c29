package mach

import (
	"fmt"
	"sort"
)

// arm64TrampolineSize is four instructions (ADR, LDRSW, ADD, BR) plus the
// embedded 32-bit displacement word each trampoline carries -- mirrors the
// teacher's trampolineCallSize (backend/isa/arm64/machine_relocation.go).
const arm64TrampolineSize = 4*4 + 4

// arm64MaxBranch26Range is the ±128 MiB reach of a B/BL imm26 (word-
// granular, so 2^25 words either side of zero).
const arm64MaxBranch26Range = (1 << 25) * 4

// Link concatenates funcs' code (and relocs/traps/call-sites/source-locs,
// each offset rebased to its position in the combined Object) into one
// Object. isaName selects how local RelocARM64Branch26 references are
// resolved: "amd64" relocations always pass through untouched (a direct
// amd64 call is encoded as a 32-bit rel32, which is already large enough to
// reach anywhere in the object and is instead left for the external linker
// per spec.md §6.2); "arm64" relocations targeting a function defined in
// funcs are resolved here, inserting a trampoline island (spec.md §4.4,
// generalizing the teacher's CallTrampolineIslandInfo/ResolveRelocations
// pair) whenever the direct branch26 would fall outside ±128 MiB, and are
// otherwise patched in place. Relocations whose Symbol names a function not
// present in funcs are left in Object.Relocs for the external linker in
// both cases.
func Link(isaName string, funcs []Function) (*Object, error) {
	obj := &Object{FuncOffsets: map[string]int{}, FuncFrames: map[string]FrameLayout{}}
	for _, fn := range funcs {
		obj.FuncOffsets[fn.Name] = len(obj.Code)
		obj.FuncFrames[fn.Name] = fn.Frame
		base := len(obj.Code)
		obj.Code = append(obj.Code, fn.Code...)
		for _, t := range fn.Traps {
			obj.Traps = append(obj.Traps, Trap{Offset: base + t.Offset, Code: t.Code})
		}
		for _, cs := range fn.CallSites {
			obj.CallSites = append(obj.CallSites, CallSite{Offset: base + cs.Offset, Callee: cs.Callee, ReturnAddrOffset: base + cs.ReturnAddrOffset})
		}
		for _, sl := range fn.SourceLocs {
			obj.SourceLocs = append(obj.SourceLocs, SourceLoc{Offset: base + sl.Offset, File: sl.File, Line: sl.Line, Col: sl.Col})
		}
		for _, r := range fn.Relocs {
			obj.Relocs = append(obj.Relocs, Reloc{Offset: base + r.Offset, Kind: r.Kind, Symbol: r.Symbol, Addend: r.Addend})
		}
	}

	if isaName == "arm64" {
		if err := resolveARM64LocalBranches(obj); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// resolveARM64LocalBranches patches every RelocARM64Branch26 whose Symbol
// names a function present in obj.FuncOffsets. Whenever at least one such
// relocation exists it appends one trampoline island holding an entry per
// distinct local callee; only calls whose direct displacement is out of
// branch26 range are routed through it. Relocations to unknown symbols are
// left untouched in obj.Relocs for the external linker.
func resolveARM64LocalBranches(obj *Object) error {
	var local []int   // indices into obj.Relocs needing local resolution
	var external []Reloc
	for i, r := range obj.Relocs {
		if r.Kind != RelocARM64Branch26 {
			external = append(external, r)
			continue
		}
		if _, ok := obj.FuncOffsets[r.Symbol]; !ok {
			external = append(external, r)
			continue
		}
		local = append(local, i)
	}
	if len(local) == 0 {
		return nil
	}

	// One trampoline entry per distinct callee is sufficient: every caller
	// of the same callee reuses it, same as the teacher's per-FuncRef
	// island layout.
	callees := distinctCallees(obj.Relocs, local)
	islandOffset := len(obj.Code)
	obj.Code = append(obj.Code, make([]byte, arm64TrampolineSize*len(callees))...)
	trampolineOffset := map[string]int{}
	for i, name := range callees {
		trampolineOffset[name] = islandOffset + arm64TrampolineSize*i
		if err := encodeARM64Trampoline(obj.Code, trampolineOffset[name], obj.FuncOffsets[name]); err != nil {
			return err
		}
	}

	for _, idx := range local {
		r := obj.Relocs[idx]
		calleeOffset := int64(obj.FuncOffsets[r.Symbol])
		diff := calleeOffset - int64(r.Offset)
		if diff < -arm64MaxBranch26Range || diff > arm64MaxBranch26Range {
			diff = int64(trampolineOffset[r.Symbol]) - int64(r.Offset)
			if diff < -arm64MaxBranch26Range || diff > arm64MaxBranch26Range {
				return fmt.Errorf("mach: BranchOutOfRange: call to %q has no reachable trampoline (object too large)", r.Symbol)
			}
		}
		patchBranch26(obj.Code, r.Offset, diff)
	}
	obj.Relocs = external
	return nil
}

func distinctCallees(relocs []Reloc, idx []int) []string {
	seen := map[string]bool{}
	var out []string
	for _, i := range idx {
		name := relocs[i].Symbol
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// patchBranch26 ORs diff/4 into the low 26 bits of the 32-bit instruction
// word at code[offset:offset+4], leaving the opcode bits
// backend/isa/arm64.Inst.Encode already wrote untouched -- mirrors
// backend/isa/arm64.EncodeFunction's own intra-function fixup patch.
func patchBranch26(code []byte, offset int, diff int64) {
	w := le32(code, offset)
	imm26 := uint32(diff/4) & 0x03FFFFFF
	putLE32(code, offset, w|imm26)
}

// encodeARM64Trampoline writes one four-instruction-plus-displacement
// trampoline at trampolineOffset that branches to the function recorded at
// calleeOffset, reproducing the teacher's encodeCallTrampolineIsland
// sequence: ADR+LDRSW+ADD+BR through x9/x11 (both caller-saved, so safe to
// clobber: a trampoline is only reached from a BL call site, across which
// callers never keep values in them),
// followed by the raw 32-bit PC-relative displacement the ADR+LDRSW pair
// loads.
func encodeARM64Trampoline(code []byte, trampolineOffset, calleeOffset int) error {
	const tmpReg, tmpReg2 = 9, 11 // x9, x11: both caller-saved, safe to clobber in a call trampoline
	diff := int64(calleeOffset) - int64(trampolineOffset+16)
	if diff > 1<<31-1 || diff < -(1<<31) {
		return fmt.Errorf("mach: trampoline displacement %d does not fit in 32 bits", diff)
	}
	// adr tmpReg, pc+16: immlo = 0, immhi = 16/4 = 4.
	putLE32(code, trampolineOffset, 0b10000<<24|4<<5|tmpReg)
	// ldrsw tmpReg2, [tmpReg]: 64-bit signed load of #diff into tmpReg2.
	putLE32(code, trampolineOffset+4, 0b10<<30|0b111<<27|0b01<<24|0b10<<22|tmpReg<<5|tmpReg2)
	// add tmpReg, tmpReg2, tmpReg (64-bit shifted-register form): tmpReg now
	// holds the absolute address of the callee.
	putLE32(code, trampolineOffset+8, 1<<31|0b01011<<24|tmpReg<<16|tmpReg2<<5|tmpReg)
	// br tmpReg: branch without touching the link register.
	putLE32(code, trampolineOffset+12, 0b1101011<<25|0b11111<<16|tmpReg<<5)
	putLE32(code, trampolineOffset+16, uint32(diff))
	return nil
}

func le32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func putLE32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}
