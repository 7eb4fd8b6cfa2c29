package mach

import (
	"fmt"
	"sort"
	"strings"
)

// Disassemble renders an Object as a human-readable listing: one line per
// 4-byte word (arm64) or per byte (amd64) of raw bytes, annotated
// with any relocation, trap, or call-site recorded at that offset. This is
// deliberately not a full instruction decoder -- spec.md names no such
// requirement, and the teacher's own backend.Machine.Format() is itself
// just a byte-oriented listing annotated with the same kind of metadata,
// not a disassembler reconstructing mnemonics from raw encodings it didn't
// emit. `clifc disasm` uses this to let a user eyeball relocations and trap
// sites against the bytes that will carry them.
func Disassemble(isaName string, obj *Object) string {
	width := 1
	if isaName == "arm64" {
		width = 4
	}

	relocAt := map[int][]Reloc{}
	for _, r := range obj.Relocs {
		relocAt[r.Offset] = append(relocAt[r.Offset], r)
	}
	trapAt := map[int]Trap{}
	for _, t := range obj.Traps {
		trapAt[t.Offset] = t
	}
	callAt := map[int]CallSite{}
	for _, c := range obj.CallSites {
		callAt[c.Offset] = c
	}
	srcAt := map[int]SourceLoc{}
	for _, s := range obj.SourceLocs {
		srcAt[s.Offset] = s
	}

	funcStart := map[int]string{}
	var starts []int
	for name, off := range obj.FuncOffsets {
		funcStart[off] = name
		starts = append(starts, off)
	}
	sort.Ints(starts)

	var b strings.Builder
	for off := 0; off < len(obj.Code); off += width {
		if name, ok := funcStart[off]; ok {
			fmt.Fprintf(&b, "%s:\n", name)
		}
		end := off + width
		if end > len(obj.Code) {
			end = len(obj.Code)
		}
		fmt.Fprintf(&b, "  %08x: % x", off, obj.Code[off:end])
		if sl, ok := srcAt[off]; ok {
			fmt.Fprintf(&b, "  ; %s:%d:%d", sl.File, sl.Line, sl.Col)
		}
		if t, ok := trapAt[off]; ok {
			fmt.Fprintf(&b, "  ; trap=%s", t.Code)
		}
		if c, ok := callAt[off]; ok {
			fmt.Fprintf(&b, "  ; call %s", c.Callee)
		}
		for _, r := range relocAt[off] {
			fmt.Fprintf(&b, "  ; reloc %s %s+%d", r.Kind, r.Symbol, r.Addend)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
