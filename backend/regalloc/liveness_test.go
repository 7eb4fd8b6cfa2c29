package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
)

func TestComputeLiveness_LinearChain(t *testing.T) {
	v1 := backend.MakeVReg(backend.RegClassInt, 200)
	vc := buildVCode([]testBlock{
		{insts: []func(*backend.OperandCollector){def(v1)}, succs: []int{1}},
		{insts: []func(*backend.OperandCollector){use(v1)}, succs: nil},
	})

	l, err := ComputeLiveness(vc, 0)
	require.NoError(t, err)
	require.Empty(t, l.LiveIn[0])
	require.True(t, l.LiveOut[0][v1])
	require.True(t, l.LiveIn[1][v1])
	require.Empty(t, l.LiveOut[1])
}

func TestComputeLiveness_LoopFixedPoint(t *testing.T) {
	v := backend.MakeVReg(backend.RegClassInt, 201)
	vc := buildVCode([]testBlock{
		{insts: []func(*backend.OperandCollector){def(v)}, succs: []int{1}},
		{insts: []func(*backend.OperandCollector){defUse(v, v)}, succs: []int{1, 2}},
		{insts: []func(*backend.OperandCollector){use(v)}, succs: nil},
	})

	l, err := ComputeLiveness(vc, 0)
	require.NoError(t, err)
	require.True(t, l.LiveOut[0][v])
	require.True(t, l.LiveIn[1][v])
	require.True(t, l.LiveOut[1][v])
	require.True(t, l.LiveIn[2][v])

	l2, err := ComputeLiveness(vc, 0)
	require.NoError(t, err)
	require.Equal(t, l.LiveIn, l2.LiveIn)
	require.Equal(t, l.LiveOut, l2.LiveOut)
}

func TestComputeLiveness_EntryLiveinIsFatal(t *testing.T) {
	v := backend.MakeVReg(backend.RegClassInt, 202)
	vc := buildVCode([]testBlock{
		{insts: []func(*backend.OperandCollector){use(v)}, succs: nil},
	})

	_, err := ComputeLiveness(vc, 0)
	require.Error(t, err)
	var leErr *EntryLiveinError
	require.ErrorAs(t, err, &leErr)
	require.Equal(t, []backend.VReg{v}, leErr.VRegs)
}
