package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
)

func TestResolveAssignment(t *testing.T) {
	v1 := backend.MakeVReg(backend.RegClassInt, 200)
	v2 := backend.MakeVReg(backend.RegClassInt, 201)
	p0 := backend.MakePReg(backend.RegClassInt, 0)

	reg := &LiveBundle{VReg: v1, HasReg: true, Reg: p0}
	spilled := &LiveBundle{VReg: v2, SpillSet: &SpillSet{Slot: 3}}

	m := ResolveAssignment([]*LiveBundle{reg, spilled})
	require.Equal(t, backend.RegFromPReg(p0), m[v1])
	require.True(t, m[v2].IsSpillSlot())
	require.Equal(t, uint32(3), m[v2].SpillSlot())
}

func regs(n ...byte) []backend.Reg {
	out := make([]backend.Reg, len(n))
	for i, x := range n {
		out[i] = backend.RegFromPReg(backend.MakePReg(backend.RegClassInt, x))
	}
	return out
}

func TestResolveParallelMoves_SimpleChainNoCycle(t *testing.T) {
	r := regs(0, 1, 2)
	// r1 := r0 is independent of r2 := r1 happening first or second... but
	// since r1 is both a destination and a later source, r2 := r1 must run
	// before r1 is clobbered: (dst=r2,src=r1) then (dst=r1,src=r0) fails,
	// order must put the read-before-overwrite one first.
	moves := []Move{{Src: r[1], Dst: r[2]}, {Src: r[0], Dst: r[1]}}
	out := ResolveParallelMoves(moves, backend.RegFromPReg(backend.MakePReg(backend.RegClassInt, 15)))
	require.Len(t, out, 2)
	require.Equal(t, Move{Src: r[1], Dst: r[2]}, out[0])
	require.Equal(t, Move{Src: r[0], Dst: r[1]}, out[1])
}

func TestResolveParallelMoves_CycleUsesScratch(t *testing.T) {
	r := regs(0, 1)
	scratch := backend.RegFromPReg(backend.MakePReg(backend.RegClassInt, 15))
	// swap r0 and r1
	moves := []Move{{Src: r[0], Dst: r[1]}, {Src: r[1], Dst: r[0]}}
	out := ResolveParallelMoves(moves, scratch)

	// Simulate execution against a register file to confirm correctness.
	file := map[backend.Reg]string{r[0]: "A", r[1]: "B"}
	for _, m := range out {
		file[m.Dst] = file[m.Src]
	}
	require.Equal(t, "B", file[r[0]])
	require.Equal(t, "A", file[r[1]])
}

func TestResolveParallelMoves_DropsNoOps(t *testing.T) {
	r := regs(0)
	out := ResolveParallelMoves([]Move{{Src: r[0], Dst: r[0]}}, backend.RegFromPReg(backend.MakePReg(backend.RegClassInt, 15)))
	require.Empty(t, out)
}
