package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
)

func TestSpillWeight_RoundTrip(t *testing.T) {
	for _, f := range []float32{0, 1, 100, 2000, 123456} {
		w := MakeSpillWeight(f)
		// bfloat16 truncation loses mantissa precision but preserves
		// ordering and rough magnitude.
		require.InDelta(t, f, w.Float(), f*0.02+1)
	}
}

func TestComputeUseWeight_OrderingByConstraintAndDepth(t *testing.T) {
	any0 := ComputeUseWeight(backend.ConstraintAny, 0)
	reg0 := ComputeUseWeight(backend.ConstraintReg, 0)
	fixed0 := ComputeUseWeight(backend.ConstraintFixedReg, 0)
	require.Less(t, any0, reg0)
	require.Less(t, reg0, fixed0)

	reg1 := ComputeUseWeight(backend.ConstraintReg, 1)
	require.Greater(t, reg1, reg0)

	// Depth is capped so weight never overflows a bfloat16-range float.
	deep := ComputeUseWeight(backend.ConstraintFixedReg, 30)
	require.False(t, deep.Float() != deep.Float()) // not NaN
}
