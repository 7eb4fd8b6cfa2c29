package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
)

func TestRewrite_SpilledSrcGetsReloadIntoScratch(t *testing.T) {
	spilled := backend.MakeVReg(backend.RegClassInt, backend.NumPinnedVRegs)
	assignment := map[backend.VReg]backend.Reg{spilled: backend.RegFromSpillSlot(0)}

	insts := [][]*Inst{{
		{Op: OpAluRR, Dst: raxVReg, Src2: spilled, Alu: AluAdd, Width: 8},
	}}

	out := Rewrite(insts, assignment)
	require.Len(t, out, 1)
	require.Len(t, out[0], 2, "reload before the add, no store after (Src2 is a use, not a def)")

	reload := out[0][0]
	require.Equal(t, OpMovLoad, reload.Op)
	require.Equal(t, spillScratchIntA, reload.Dst)
	require.Equal(t, rbpVReg, reload.Amode.Base)
	require.Equal(t, int32(-8), reload.Amode.Disp)

	add := out[0][1]
	require.Equal(t, spillScratchIntA, add.Src2, "the add must read the reloaded scratch register, not the spilled VReg")
}

func TestRewrite_SpilledDstGetsReloadAndStoreAround(t *testing.T) {
	spilled := backend.MakeVReg(backend.RegClassInt, backend.NumPinnedVRegs)
	assignment := map[backend.VReg]backend.Reg{spilled: backend.RegFromSpillSlot(2)}

	// Mirrors machine.go's destructive 2-operand ALU form: Src1 is left
	// unset, since regalloc's reuseDef constraint (not this Inst's fields)
	// is what ties Dst's location to the first operand's.
	insts := [][]*Inst{{
		{Op: OpAluRR, Dst: spilled, Src2: rcxVReg, Alu: AluAdd, Width: 8},
	}}

	out := Rewrite(insts, assignment)
	require.Len(t, out[0], 3, "reload, the add itself, then a spill-store back")

	reload, add, store := out[0][0], out[0][1], out[0][2]
	require.Equal(t, OpMovLoad, reload.Op)
	require.Equal(t, spillScratchIntA, reload.Dst)

	require.Equal(t, spillScratchIntA, add.Dst)
	require.Equal(t, rcxVReg, add.Src2, "the real second operand must survive untouched")

	require.Equal(t, OpMovStore, store.Op)
	require.Equal(t, spillScratchIntA, store.Src1)
	require.Equal(t, int32(-24), store.Amode.Disp)
}

// This exercises Rewrite's general per-field mechanism against an Amode
// shape lowering itself never produces (Amode.Index is always unused today
// -- see spillScratch's doc comment), to confirm the two-scratch-registers
// bound holds for any Inst shape the encoder's Amode can represent, not only
// the ones lowering happens to emit.
func TestRewrite_TwoSimultaneousSpilledOperandsUseDistinctScratchRegisters(t *testing.T) {
	spilledBase := backend.MakeVReg(backend.RegClassInt, backend.NumPinnedVRegs)
	spilledIdx := backend.MakeVReg(backend.RegClassInt, backend.NumPinnedVRegs+1)
	assignment := map[backend.VReg]backend.Reg{
		spilledBase: backend.RegFromSpillSlot(0),
		spilledIdx:  backend.RegFromSpillSlot(1),
	}

	insts := [][]*Inst{{
		{Op: OpMovLoad, Dst: raxVReg, Width: 8,
			Amode: Amode{Base: spilledBase, Index: spilledIdx, HasIdx: true, Scale: 1}},
	}}

	out := Rewrite(insts, assignment)
	require.Len(t, out[0], 3, "two reloads ahead of the load, no store after (a load's Amode fields are uses)")

	require.Equal(t, spillScratchIntA, out[0][0].Dst)
	require.Equal(t, spillScratchIntB, out[0][1].Dst)

	load := out[0][2]
	require.Equal(t, spillScratchIntA, load.Amode.Base)
	require.Equal(t, spillScratchIntB, load.Amode.Index)
}

func TestRewrite_SpilledFloatValueRoundTripsThroughMovsd(t *testing.T) {
	spilled := backend.MakeVReg(backend.RegClassFloat, backend.NumPinnedVRegs)
	assignment := map[backend.VReg]backend.Reg{spilled: backend.RegFromSpillSlot(0)}

	insts := [][]*Inst{{
		{Op: OpSseAluRR, Dst: spilled, Src2: backend.FromPReg(floatReg(xmm1)), Alu: AluAdd},
	}}

	out := Rewrite(insts, assignment)
	require.Len(t, out[0], 3)
	require.Equal(t, OpMovsdLoad, out[0][0].Op)
	require.Equal(t, spillScratchFloatA, out[0][0].Dst)
	require.Equal(t, OpMovsdStore, out[0][2].Op)
	require.Equal(t, spillScratchFloatA, out[0][2].Src1)
}

func TestRewrite_UnassignedVRegIsLeftAlone(t *testing.T) {
	pinned := raxVReg
	insts := [][]*Inst{{{Op: OpMovRI, Dst: pinned, Imm: 1, Width: 8}}}

	out := Rewrite(insts, map[backend.VReg]backend.Reg{})
	require.Len(t, out[0], 1)
	require.Equal(t, pinned, out[0][0].Dst)
}
