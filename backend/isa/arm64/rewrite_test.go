package arm64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
)

func TestRewrite_SpilledUseGetsReloadIntoScratch(t *testing.T) {
	spilled := backend.MakeVReg(backend.RegClassInt, backend.NumPinnedVRegs)
	assignment := map[backend.VReg]backend.Reg{spilled: backend.RegFromSpillSlot(0)}

	dst := backend.FromPReg(intReg(0))
	insts := [][]*Inst{{
		{Op: OpAluRRR, Dst: dst, Src1: dst, Src2: spilled, Alu: AluAdd, Width: 8},
	}}

	out := Rewrite(insts, assignment)
	require.Len(t, out[0], 2, "reload before the add, no store after (Src2 is a use, not a def)")

	reload := out[0][0]
	require.Equal(t, OpLdr, reload.Op)
	require.Equal(t, spillScratchIntA, reload.Dst)
	require.Equal(t, fpVReg, reload.Amode.Base)
	require.Equal(t, int32(-8), reload.Amode.Disp)

	add := out[0][1]
	require.Equal(t, spillScratchIntA, add.Src2)
}

func TestRewrite_SpilledDstGetsReloadAndStoreAround(t *testing.T) {
	spilled := backend.MakeVReg(backend.RegClassInt, backend.NumPinnedVRegs)
	assignment := map[backend.VReg]backend.Reg{spilled: backend.RegFromSpillSlot(2)}

	a := backend.FromPReg(intReg(1))
	b := backend.FromPReg(intReg(2))
	insts := [][]*Inst{{
		{Op: OpAluRRR, Dst: spilled, Src1: a, Src2: b, Alu: AluAdd, Width: 8},
	}}

	out := Rewrite(insts, assignment)
	require.Len(t, out[0], 3, "reload, the add itself, then a spill-store back")

	reload, add, store := out[0][0], out[0][1], out[0][2]
	require.Equal(t, OpLdr, reload.Op)
	require.Equal(t, spillScratchIntA, reload.Dst)

	require.Equal(t, spillScratchIntA, add.Dst)
	require.Equal(t, a, add.Src1)
	require.Equal(t, b, add.Src2)

	require.Equal(t, OpStr, store.Op)
	require.Equal(t, spillScratchIntA, store.Src1)
	require.Equal(t, int32(-24), store.Amode.Disp)
}

func TestRewrite_MsubThirdOperandIsAUseNotADef(t *testing.T) {
	spilled := backend.MakeVReg(backend.RegClassInt, backend.NumPinnedVRegs)
	assignment := map[backend.VReg]backend.Reg{spilled: backend.RegFromSpillSlot(0)}

	dst := backend.FromPReg(intReg(0))
	a := backend.FromPReg(intReg(1))
	b := backend.FromPReg(intReg(2))
	insts := [][]*Inst{{
		{Op: OpMsub, Dst: dst, Src1: a, Src2: b, Src3: spilled, Width: 8},
	}}

	out := Rewrite(insts, assignment)
	require.Len(t, out[0], 2, "reload before the msub, no store after -- Src3 is only ever read")

	msub := out[0][1]
	require.Equal(t, spillScratchIntA, msub.Src3)
}

func TestRewrite_LdpSecondDestIsStoredBackLikeDst(t *testing.T) {
	spilled := backend.MakeVReg(backend.RegClassInt, backend.NumPinnedVRegs)
	assignment := map[backend.VReg]backend.Reg{spilled: backend.RegFromSpillSlot(0)}

	insts := [][]*Inst{{
		{Op: OpLdrPair, Dst: backend.FromPReg(intReg(0)), Dst2: spilled, Amode: Amode{Base: spVReg}},
	}}

	out := Rewrite(insts, assignment)
	require.Len(t, out[0], 3, "reload ahead of the ldp, then the ldp itself, then a store back for Dst2")
	require.Equal(t, OpLdr, out[0][0].Op)
	require.Equal(t, spillScratchIntA, out[0][0].Dst)

	ldp := out[0][1]
	require.Equal(t, OpLdrPair, ldp.Op)
	require.Equal(t, spillScratchIntA, ldp.Dst2)

	store := out[0][2]
	require.Equal(t, OpStr, store.Op)
	require.Equal(t, spillScratchIntA, store.Src1)
}

func TestRewrite_UnassignedVRegIsLeftAlone(t *testing.T) {
	insts := [][]*Inst{{{Op: OpMovImm64, Dst: fpVReg, Imm: 1, Width: 8}}}

	out := Rewrite(insts, map[backend.VReg]backend.Reg{})
	require.Len(t, out[0], 1)
	require.Equal(t, fpVReg, out[0][0].Dst)
}
