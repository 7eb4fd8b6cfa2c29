package arm64

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/mach"
)

func wordAt(t *testing.T, words []uint32, i int) uint32 {
	t.Helper()
	require.Greater(t, len(words), i)
	return words[i]
}

func TestEncode_MovImm64SingleChunkIsOneMovz(t *testing.T) {
	e := newEncoder()
	e.Encode(&Inst{Op: OpMovImm64, Dst: backend.FromPReg(intReg(0)), Imm: 42, Width: 8})
	require.Len(t, e.words, 1)
	w := wordAt(t, e.words, 0)
	require.Equal(t, uint32(1), w>>31) // sf=1 (64-bit)
	require.Equal(t, uint32(0b10), (w>>29)&0b11) // MOVZ opc
	require.Equal(t, uint32(42), (w>>5)&0xFFFF)
}

func TestEncode_MovImm64MultipleChunksEmitsMovkAfterMovz(t *testing.T) {
	e := newEncoder()
	imm := int64(0x1) | int64(0x2)<<16
	e.Encode(&Inst{Op: OpMovImm64, Dst: backend.FromPReg(intReg(0)), Imm: imm, Width: 8})
	require.Len(t, e.words, 2)
	require.Equal(t, uint32(0b10), (e.words[0]>>29)&0b11) // MOVZ
	require.Equal(t, uint32(0b11), (e.words[1]>>29)&0b11) // MOVK
	require.Equal(t, uint32(1), (e.words[1]>>21)&0b11)    // hw=1 (bits 16-31)
}

func TestEncode_AluRRRAddUsesAddSubShiftedForm(t *testing.T) {
	e := newEncoder()
	e.Encode(&Inst{Op: OpAluRRR, Dst: backend.FromPReg(intReg(0)), Src1: backend.FromPReg(intReg(1)), Src2: backend.FromPReg(intReg(2)), Alu: AluAdd, Width: 8})
	w := wordAt(t, e.words, 0)
	require.Equal(t, uint32(0b01011), (w>>24)&0b11111)
	require.Equal(t, uint32(0), (w>>30)&1) // op=0 selects ADD
	require.Equal(t, uint32(2), (w>>16)&0x1F)
	require.Equal(t, uint32(1), (w>>5)&0x1F)
	require.Equal(t, uint32(0), w&0x1F)
}

func TestEncode_AluRIWSubSetsOpBit(t *testing.T) {
	e := newEncoder()
	e.Encode(&Inst{Op: OpAluRI, Dst: backend.FromPReg(intReg(31)), Src1: backend.FromPReg(intReg(31)), Alu: AluSub, Imm: 16, Width: 8})
	w := wordAt(t, e.words, 0)
	require.Equal(t, uint32(1), (w>>30)&1) // op=1 selects SUB
	require.Equal(t, uint32(16), (w>>10)&0xFFF)
}

func TestEncode_MulIsMaddWithXzrAccumulator(t *testing.T) {
	e := newEncoder()
	e.Encode(&Inst{Op: OpMul, Dst: backend.FromPReg(intReg(0)), Src1: backend.FromPReg(intReg(1)), Src2: backend.FromPReg(intReg(2)), Width: 8})
	w := wordAt(t, e.words, 0)
	require.Equal(t, uint32(0b11011), (w>>24)&0b11111)
	require.Equal(t, uint32(0), (w>>15)&1) // o0=0 selects MADD, not MSUB
	require.Equal(t, uint32(31), (w>>10)&0x1F) // Ra = xzr
}

func TestEncode_CsetNegatesConditionForCsincAlias(t *testing.T) {
	e := newEncoder()
	e.Encode(&Inst{Op: OpCset, Dst: backend.FromPReg(intReg(0)), Cc: CcEQ})
	w := wordAt(t, e.words, 0)
	require.Equal(t, uint32(CcNE), (w>>12)&0xF)
}

func TestEncode_BLeavesWordFixupForItsLabel(t *testing.T) {
	e := newEncoder()
	e.Encode(&Inst{Op: OpB, Target: 3})
	require.Len(t, e.Fixups, 1)
	require.Equal(t, backend.Label(3), e.Fixups[0].Label)
	require.Equal(t, FixupB, e.Fixups[0].Kind)
	require.Equal(t, 0, e.Fixups[0].WordOffset)
}

func TestEncode_BLRecordsFuncSymFixup(t *testing.T) {
	e := newEncoder()
	e.Encode(&Inst{Op: OpBL, FuncSym: "env.memory_grow"})
	require.Equal(t, "env.memory_grow", e.Fixups[0].FuncSym)
}

func TestEncode_LdrSignedSubWordEmitsTrailingSbfm(t *testing.T) {
	e := newEncoder()
	e.Encode(&Inst{Op: OpLdr, Dst: backend.FromPReg(intReg(0)), Width: 1, Signed: true,
		Amode: Amode{Base: backend.FromPReg(intReg(1)), Disp: 0}})
	require.Len(t, e.words, 2)
}

func TestEncodeFunction_ResolvesBranchAgainstBlockWordOffset(t *testing.T) {
	blocks := [][]*Inst{
		{{Op: OpB, Target: 1}},
		{{Op: OpRet}},
	}
	buf, relocs, _, _ := EncodeFunction(blocks, "branch")
	require.Empty(t, relocs)
	require.Len(t, buf, 8)
	w := binary.LittleEndian.Uint32(buf[0:4])
	require.Equal(t, uint32(1), w&0x03FFFFFF) // target block is one word ahead
}

func TestEncodeFunction_RecordsTrapAtItsWordOffset(t *testing.T) {
	blocks := [][]*Inst{{
		{Op: OpMovImm64, Dst: backend.FromPReg(intReg(0)), Imm: 1, Width: 8}, // pad: trap isn't at word 0
		{Op: OpBrk, HasTrap: true, Trap: mach.TrapIntegerDivisionByZero},
	}}
	_, _, traps, _ := EncodeFunction(blocks, "divrem")
	require.Len(t, traps, 1)
	require.Equal(t, mach.TrapIntegerDivisionByZero, traps[0].Code)
	require.Equal(t, 4, traps[0].Offset, "one MOVZ word (4 bytes) precedes the BRK")
}

func TestEncodeFunction_RecordsSourceLocAtItsWordOffset(t *testing.T) {
	blocks := [][]*Inst{{
		{Op: OpMovImm64, Dst: backend.FromPReg(intReg(0)), Imm: 1, Width: 8, HasSrcLoc: true, SrcLoc: 3},
	}}
	_, _, _, srcLocs := EncodeFunction(blocks, "f9")
	require.Len(t, srcLocs, 1)
	require.Equal(t, 0, srcLocs[0].Offset)
	require.Equal(t, "f9", srcLocs[0].File)
	require.Equal(t, 3, srcLocs[0].Line)
}
