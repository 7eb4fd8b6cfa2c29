package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/arena"
	"github.com/clifgen/wazevo-clif/backend"
)

func noDepth(int) int { return 0 }

func TestBuildLiveRanges_LinearChain(t *testing.T) {
	v1 := backend.MakeVReg(backend.RegClassInt, 200)
	vc := buildVCode([]testBlock{
		{insts: []func(*backend.OperandCollector){def(v1)}, succs: []int{1}},
		{insts: []func(*backend.OperandCollector){use(v1)}, succs: nil},
	})
	l, err := ComputeLiveness(vc, 0)
	require.NoError(t, err)

	pool := arena.NewPool[LiveRange]()
	ranges := BuildLiveRanges(vc, l, noDepth, &pool)
	rs := ranges[v1]
	require.Len(t, rs, 2)

	var block0, block1 *LiveRange
	for _, r := range rs {
		switch r.Block {
		case 0:
			block0 = r
		case 1:
			block1 = r
		}
	}
	require.NotNil(t, block0)
	require.NotNil(t, block1)
	require.False(t, block0.Overlaps(block1))
	require.Len(t, block1.Uses, 1)

	req, err := block1.Requirement()
	require.NoError(t, err)
	require.Equal(t, ReqRegister, req.Kind)
}

func TestLiveRange_DeadDefStillGetsARange(t *testing.T) {
	v1 := backend.MakeVReg(backend.RegClassInt, 210)
	vc := buildVCode([]testBlock{
		{insts: []func(*backend.OperandCollector){def(v1)}, succs: nil},
	})
	l, err := ComputeLiveness(vc, 0)
	require.NoError(t, err)

	pool := arena.NewPool[LiveRange]()
	ranges := BuildLiveRanges(vc, l, noDepth, &pool)
	rs := ranges[v1]
	require.Len(t, rs, 1)
	require.True(t, rs[0].From.Equal(rs[0].To))
	require.Empty(t, rs[0].Uses)
}
