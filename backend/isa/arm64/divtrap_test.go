package arm64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
)

func TestInsertDivZeroTraps_GuardsEachMarkedDivide(t *testing.T) {
	a := backend.FromPReg(intReg(1))
	b := backend.FromPReg(intReg(2))
	dst := backend.FromPReg(intReg(0))

	insts := [][]*Inst{{
		{Op: OpDivRRR, Dst: dst, Src1: a, Src2: b, Width: 8, Signed: true, NeedsTrapCheck: TrapDivByZero},
		{Op: OpRet},
	}}

	out := InsertDivZeroTraps(insts)
	require.Len(t, out, 2, "one shared BRK block appended after the function's one real block")

	require.Len(t, out[0], 4, "cmp, b.eq, the divide itself, ret")
	require.Equal(t, OpCmpRI, out[0][0].Op)
	require.Equal(t, b, out[0][0].Src1, "the check must compare the divisor, not the dividend")
	require.Equal(t, int64(0), out[0][0].Imm)

	require.Equal(t, OpBCond, out[0][1].Op)
	require.Equal(t, CcEQ, out[0][1].Cc)
	require.Equal(t, backend.Label(1), out[0][1].Target, "must branch to the appended trap block")

	require.Equal(t, OpDivRRR, out[0][2].Op)
	require.Equal(t, OpRet, out[0][3].Op)

	require.Len(t, out[1], 1)
	require.Equal(t, OpBrk, out[1][0].Op)
	require.True(t, out[1][0].HasTrap)
}

func TestInsertDivZeroTraps_NoCheckedDivideLeavesBlockCountUnchanged(t *testing.T) {
	insts := [][]*Inst{{{Op: OpRet}}}
	out := InsertDivZeroTraps(insts)
	require.Len(t, out, 1, "no OpDivRRR needed a check, so no trap block should be appended")
}

func TestInsertDivZeroTraps_SharesOneTrapBlockAcrossMultipleDivides(t *testing.T) {
	a := backend.FromPReg(intReg(1))
	b := backend.FromPReg(intReg(2))
	insts := [][]*Inst{
		{{Op: OpDivRRR, Dst: a, Src1: a, Src2: b, Width: 8, NeedsTrapCheck: TrapDivByZero}},
		{{Op: OpDivRRR, Dst: b, Src1: b, Src2: a, Width: 8, NeedsTrapCheck: TrapDivByZero}, {Op: OpRet}},
	}
	out := InsertDivZeroTraps(insts)
	require.Len(t, out, 3, "two real blocks plus one shared trap block")

	for _, block := range out[:2] {
		var sawBCond bool
		for _, inst := range block {
			if inst.Op == OpBCond {
				sawBCond = true
				require.Equal(t, backend.Label(2), inst.Target, "both checks must share the same trap block")
			}
		}
		require.True(t, sawBCond)
	}
}
