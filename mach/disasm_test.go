package mach

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisassemble_AnnotatesTrapRelocAndCallSite(t *testing.T) {
	obj := &Object{
		Code:        []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
		FuncOffsets: map[string]int{"f": 0},
		Traps:       []Trap{{Offset: 0, Code: TrapIntegerDivisionByZero}},
		CallSites:   []CallSite{{Offset: 4, Callee: "g"}},
		Relocs:      []Reloc{{Offset: 4, Kind: RelocARM64Branch26, Symbol: "g"}},
	}

	out := Disassemble("arm64", obj)
	require.Contains(t, out, "f:")
	require.Contains(t, out, "trap=integer_division_by_zero")
	require.Contains(t, out, "call g")
	require.Contains(t, out, "reloc ARM64_RELOC_BRANCH26 g")
	require.Equal(t, 3, strings.Count(out, "\n"), "one header line plus two 4-byte-aligned lines for an 8-byte arm64 function")
}

func TestDisassemble_Amd64UsesByteGranularLines(t *testing.T) {
	obj := &Object{Code: []byte{0xC3, 0x90}}
	out := Disassemble("amd64", obj)
	require.Equal(t, 2, strings.Count(out, "\n"), "one line per byte; no function header since FuncOffsets is empty")
}
