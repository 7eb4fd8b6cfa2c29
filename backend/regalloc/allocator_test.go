package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/arena"
	"github.com/clifgen/wazevo-clif/backend"
)

func TestAllocator_NoConflictKeepsEveryBundleInARegister(t *testing.T) {
	v1 := backend.MakeVReg(backend.RegClassInt, 200)
	v2 := backend.MakeVReg(backend.RegClassInt, 201)
	vc := buildVCode([]testBlock{
		{insts: []func(*backend.OperandCollector){def(v1), use(v1)}, succs: []int{1}},
		{insts: []func(*backend.OperandCollector){def(v2), use(v2)}, succs: nil},
	})
	l, err := ComputeLiveness(vc, 0)
	require.NoError(t, err)
	rpool := arena.NewPool[LiveRange]()
	ranges := BuildLiveRanges(vc, l, noDepth, &rpool)
	bpool := arena.NewPool[LiveBundle]()
	bundles, err := BuildBundles(ranges, noDepth, &bpool)
	require.NoError(t, err)

	p0 := backend.MakePReg(backend.RegClassInt, 0)
	p1 := backend.MakePReg(backend.RegClassInt, 1)
	a := NewAllocator(map[backend.RegClass][]backend.PReg{backend.RegClassInt: {p0, p1}})
	spills, err := a.Allocate(bundles)
	require.NoError(t, err)
	require.Empty(t, spills)
	for _, b := range bundles {
		require.True(t, b.HasReg)
	}
}

func TestAllocator_ConflictForcesASpill(t *testing.T) {
	v1 := backend.MakeVReg(backend.RegClassInt, 200)
	v2 := backend.MakeVReg(backend.RegClassInt, 201)
	useBoth := func(a, b backend.VReg) func(*backend.OperandCollector) {
		return func(c *backend.OperandCollector) {
			c.RegUse(a)
			c.RegUse(b)
		}
	}
	vc := buildVCode([]testBlock{
		{insts: []func(*backend.OperandCollector){def(v1), def(v2), useBoth(v1, v2)}, succs: nil},
	})
	l, err := ComputeLiveness(vc, 0)
	require.NoError(t, err)
	rpool := arena.NewPool[LiveRange]()
	ranges := BuildLiveRanges(vc, l, noDepth, &rpool)
	bpool := arena.NewPool[LiveBundle]()
	bundles, err := BuildBundles(ranges, noDepth, &bpool)
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	require.True(t, bundles[0].Overlaps(bundles[1]))

	p0 := backend.MakePReg(backend.RegClassInt, 0)
	a := NewAllocator(map[backend.RegClass][]backend.PReg{backend.RegClassInt: {p0}})
	spills, err := a.Allocate(bundles)
	require.NoError(t, err)
	require.Len(t, spills, 1)

	regCount, spillCount := 0, 0
	for _, b := range bundles {
		if b.HasReg {
			regCount++
			require.Equal(t, p0, b.Reg)
		} else {
			spillCount++
			require.NotNil(t, b.SpillSet)
		}
	}
	require.Equal(t, 1, regCount)
	require.Equal(t, 1, spillCount)
}

func TestAllocator_FixedRegConflictSpillsLowerWeight(t *testing.T) {
	p0 := backend.MakePReg(backend.RegClassInt, 0)
	v1 := backend.MakeVReg(backend.RegClassInt, 200)
	v2 := backend.MakeVReg(backend.RegClassInt, 201)

	flexible := &LiveBundle{VReg: v1, Req: Requirement{Kind: ReqRegister}, Weight: MakeSpillWeight(10),
		Ranges: []*LiveRange{{VReg: v1, Block: 0, From: ProgPoint{0, PosEarly}, To: ProgPoint{5, PosLate}}}}
	fixed := &LiveBundle{VReg: v2, Req: Requirement{Kind: ReqFixedReg, Preg: p0}, Weight: MakeSpillWeight(5000),
		Ranges: []*LiveRange{{VReg: v2, Block: 0, From: ProgPoint{1, PosEarly}, To: ProgPoint{3, PosLate}}}}

	a := NewAllocator(map[backend.RegClass][]backend.PReg{backend.RegClassInt: {p0}})
	spills, err := a.Allocate([]*LiveBundle{flexible, fixed})
	require.NoError(t, err)
	require.True(t, fixed.HasReg)
	require.Equal(t, p0, fixed.Reg)
	// fixed is placed first (requirement kind outranks weight in the queue),
	// so flexible finds the only PReg held by a heavier overlapping bundle
	// and spills.
	require.Len(t, spills, 1)
	require.False(t, flexible.HasReg)
}
