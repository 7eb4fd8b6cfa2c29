package mach

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLink_ConcatenatesFunctionsAndRebasesOffsets(t *testing.T) {
	funcs := []Function{
		{
			Name:  "a",
			Code:  []byte{1, 2, 3, 4},
			Traps: []Trap{{Offset: 0, Code: TrapUnreachable}},
		},
		{
			Name:   "b",
			Code:   []byte{5, 6, 7, 8},
			Relocs: []Reloc{{Offset: 0, Kind: RelocX86PLT32, Symbol: "ext", Addend: -4}},
		},
	}

	obj, err := Link("amd64", funcs)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, obj.Code)
	require.Equal(t, 0, obj.FuncOffsets["a"])
	require.Equal(t, 4, obj.FuncOffsets["b"])
	require.Equal(t, 0, obj.Traps[0].Offset)
	require.Len(t, obj.Relocs, 1)
	require.Equal(t, 4, obj.Relocs[0].Offset)
	require.Equal(t, "ext", obj.Relocs[0].Symbol)
}

// arm64BL builds the pre-fixup encoding backend/isa/arm64.Inst{Op: OpBL}
// emits: opcode bits set, imm26 left zero for this package to patch.
func arm64BL() []byte {
	buf := make([]byte, 4)
	putLE32(buf, 0, 0b100101<<26)
	return buf
}

func TestResolveARM64LocalBranches_PatchesInRangeCallDirectly(t *testing.T) {
	funcs := []Function{
		{Name: "caller", Code: arm64BL(), Relocs: []Reloc{{Offset: 0, Kind: RelocARM64Branch26, Symbol: "callee"}}},
		{Name: "callee", Code: []byte{0, 0, 0, 0}},
	}
	obj, err := Link("arm64", funcs)
	require.NoError(t, err)
	require.Empty(t, obj.Relocs, "local call should be resolved, not left for the external linker")

	w := le32(obj.Code, 0)
	require.Equal(t, uint32(0b100101<<26), w&0xFC000000, "opcode bits must survive the patch")
	require.Equal(t, uint32(1), w&0x03FFFFFF, "callee sits one word after the call site")
}

func TestResolveARM64LocalBranches_LeavesExternalSymbolUnresolved(t *testing.T) {
	funcs := []Function{
		{Name: "caller", Code: arm64BL(), Relocs: []Reloc{{Offset: 0, Kind: RelocARM64Branch26, Symbol: "env.memory_grow"}}},
	}
	obj, err := Link("arm64", funcs)
	require.NoError(t, err)
	require.Len(t, obj.Relocs, 1)
	require.Equal(t, "env.memory_grow", obj.Relocs[0].Symbol)
}

func TestEncodeARM64Trampoline_EmbedsCorrectDisplacement(t *testing.T) {
	code := make([]byte, arm64TrampolineSize)
	require.NoError(t, encodeARM64Trampoline(code, 0, 1024))

	diff := int32(le32(code, 16))
	require.Equal(t, int32(1024-16), diff)

	adr := le32(code, 0)
	require.Equal(t, uint32(0b10000<<24), adr&0x1F000000)
}

func TestEncodeARM64Trampoline_ErrorsWhenDisplacementExceeds32Bits(t *testing.T) {
	code := make([]byte, arm64TrampolineSize)
	err := encodeARM64Trampoline(code, 0, 1<<33)
	require.Error(t, err)
}
