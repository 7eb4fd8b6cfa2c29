package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/clifgen/wazevo-clif/ssa"
)

func TestFunctionABI_systemVRegsThenStack(t *testing.T) {
	sig := &ssa.Signature{Params: []ssa.AbiParam{
		{Type: ssa.TypeI64}, {Type: ssa.TypeI64}, {Type: ssa.TypeI64},
		{Type: ssa.TypeI64}, {Type: ssa.TypeI64}, {Type: ssa.TypeI64},
		{Type: ssa.TypeI64}, // 7th int arg spills to the stack under System V
	}}
	abi := NewFunctionABI(SystemVAMD64, sig)
	for i := 0; i < 6; i++ {
		require.Equal(t, ABIArgKindReg, abi.Args[i].Kind, "arg %d", i)
	}
	require.Equal(t, ABIArgKindStack, abi.Args[6].Kind)
	require.Equal(t, int64(0), abi.Args[6].Offset)
	require.Equal(t, int64(16), abi.ArgStackSize) // rounded up to 16-byte alignment
}

func TestFunctionABI_windowsShadowSpaceIsCallerConcern(t *testing.T) {
	sig := &ssa.Signature{Params: []ssa.AbiParam{{Type: ssa.TypeI32}}}
	abi := NewFunctionABI(WindowsFastcallAMD64, sig)
	require.Equal(t, int64(32), WindowsFastcallAMD64.ShadowSpaceBytes())
	require.Equal(t, ABIArgKindReg, abi.Args[0].Kind)
}

func TestResolveABI_unimplementedPairErrors(t *testing.T) {
	_, err := ResolveABI("amd64", ssa.CallConvAppleAarch64)
	require.Error(t, err)
	_, err = ResolveABI("arm64", ssa.CallConvSystemV)
	require.Error(t, err)

	abi, err := ResolveABI("arm64", ssa.CallConvAppleAarch64)
	require.NoError(t, err)
	require.Equal(t, AAPCS64, abi)
}
