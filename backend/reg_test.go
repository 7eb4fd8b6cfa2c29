package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPReg_packing(t *testing.T) {
	p := MakePReg(RegClassFloat, 7)
	require.Equal(t, RegClassFloat, p.Class())
	require.Equal(t, byte(7), p.HWNum())
}

func TestVReg_pinning(t *testing.T) {
	p := MakePReg(RegClassInt, 3)
	v := FromPReg(p)
	require.True(t, v.IsPinned())
	require.Equal(t, p, v.PinnedPReg())

	unpinned := MakeVReg(RegClassInt, NumPinnedVRegs+5)
	require.False(t, unpinned.IsPinned())
}

func TestReg_spillSlot(t *testing.T) {
	r := RegFromSpillSlot(42)
	require.True(t, r.IsSpillSlot())
	require.Equal(t, uint32(42), r.SpillSlot())

	v := MakeVReg(RegClassFloat, NumPinnedVRegs)
	r2 := RegFromVReg(v)
	require.False(t, r2.IsSpillSlot())
	require.Equal(t, v, r2.AsVReg())
}

func TestPRegSet(t *testing.T) {
	var s PRegSet
	a := MakePReg(RegClassInt, 1)
	b := MakePReg(RegClassFloat, 2)
	s.Add(a)
	s.Add(b)
	require.True(t, s.Has(a))
	require.True(t, s.Has(b))
	require.False(t, s.Has(MakePReg(RegClassInt, 2)))

	var seen []PReg
	s.Range(func(p PReg) { seen = append(seen, p) })
	require.ElementsMatch(t, []PReg{a, b}, seen)

	s.Remove(a)
	require.False(t, s.Has(a))
}
