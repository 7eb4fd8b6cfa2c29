package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
)

func TestPools_BuildLiveRangesAndBundlesAllocateFromThePool(t *testing.T) {
	v1 := backend.MakeVReg(backend.RegClassInt, 200)
	vc := buildVCode([]testBlock{
		{insts: []func(*backend.OperandCollector){def(v1)}, succs: []int{1}},
		{insts: []func(*backend.OperandCollector){use(v1)}, succs: nil},
	})
	l, err := ComputeLiveness(vc, 0)
	require.NoError(t, err)

	pools := NewPools()
	ranges := BuildLiveRanges(vc, l, noDepth, &pools.Ranges)
	require.Equal(t, 2, pools.Ranges.Allocated())
	bundles, err := BuildBundles(ranges, noDepth, &pools.Bundles)
	require.NoError(t, err)
	require.Equal(t, 1, pools.Bundles.Allocated())
	require.Len(t, bundles, 1)
}

func TestPools_ResetReclaimsBackingPagesAcrossFunctions(t *testing.T) {
	v1 := backend.MakeVReg(backend.RegClassInt, 200)
	vc := buildVCode([]testBlock{
		{insts: []func(*backend.OperandCollector){def(v1)}, succs: nil},
	})
	l, err := ComputeLiveness(vc, 0)
	require.NoError(t, err)

	pools := NewPools()
	_ = BuildLiveRanges(vc, l, noDepth, &pools.Ranges)
	require.Equal(t, 1, pools.Ranges.Allocated())

	pools.Reset()
	require.Equal(t, 0, pools.Ranges.Allocated())
	require.Equal(t, 0, pools.Bundles.Allocated())

	ranges2 := BuildLiveRanges(vc, l, noDepth, &pools.Ranges)
	require.Equal(t, 1, pools.Ranges.Allocated())
	require.Len(t, ranges2[v1], 1)
}
