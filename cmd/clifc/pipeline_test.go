package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/diag"
	"github.com/clifgen/wazevo-clif/wasmir"
)

func mustParseModule(t *testing.T, src string) *wasmir.Module {
	t.Helper()
	m, err := wasmir.Parse(src)
	require.NoError(t, err)
	return m
}

const addModuleSrc = `
type 0 (i32 i32) -> (i32)
func 0 0
local.get 0
local.get 1
i32.add
end
`

func TestCompileModule_AMD64ProducesLinkedObjectWithOneFunction(t *testing.T) {
	mod := mustParseModule(t, addModuleSrc)
	cfg := &Config{ISA: "amd64", CallConv: "SystemV", OptLevel: "None"}

	obj, err := compileModule(cfg, mod, diag.NopTrace())
	require.NoError(t, err)
	require.NotEmpty(t, obj.Code)
	require.Contains(t, obj.FuncOffsets, "func0")
	require.Equal(t, 0, obj.FuncOffsets["func0"])
	require.Contains(t, obj.FuncFrames, "func0")
}

func TestCompileModule_ARM64ProducesLinkedObjectWithOneFunction(t *testing.T) {
	mod := mustParseModule(t, addModuleSrc)
	cfg := &Config{ISA: "arm64", CallConv: "AppleAarch64", OptLevel: "None"}

	obj, err := compileModule(cfg, mod, diag.NopTrace())
	require.NoError(t, err)
	require.NotEmpty(t, obj.Code)
	require.Zero(t, len(obj.Code)%4, "every AArch64 instruction is one 32-bit word")
	require.Contains(t, obj.FuncOffsets, "func0")
}

func TestCompileModule_MultipleFunctionsGetDistinctOffsetsAndDirectCallRelocIsLeftForTheLinker(t *testing.T) {
	mod := mustParseModule(t, `
type 0 () -> (i32)
func 0 0
i32.const 7
end
func 0 0
call 0
end
`)
	cfg := &Config{ISA: "amd64", CallConv: "SystemV", OptLevel: "None"}

	obj, err := compileModule(cfg, mod, diag.NopTrace())
	require.NoError(t, err)
	require.Len(t, obj.FuncOffsets, 2)
	require.Contains(t, obj.FuncOffsets, "func0")
	require.Contains(t, obj.FuncOffsets, "func1")
	// amd64's Link pass leaves every relocation for the external linker
	// (only arm64's branch26 range ever needs resolving in-object), so
	// func1's call to func0 is still recorded as an unresolved PLT32 reloc.
	require.NotEmpty(t, obj.Relocs)
	require.NotEmpty(t, obj.CallSites)
}

func TestCompileModule_UnknownCallConvReturnsError(t *testing.T) {
	mod := mustParseModule(t, addModuleSrc)
	cfg := &Config{ISA: "amd64", CallConv: "bogus", OptLevel: "None"}

	_, err := compileModule(cfg, mod, diag.NopTrace())
	require.Error(t, err)
}

func TestCompileModule_PopcntCompilesWithAndWithoutPOPCNTFeature(t *testing.T) {
	mod := mustParseModule(t, `
type 0 (i32) -> (i32)
func 0 0
local.get 0
popcnt
end
`)

	baseline := &Config{ISA: "amd64", CallConv: "SystemV", OptLevel: "None"}
	obj, err := compileModule(baseline, mod, diag.NopTrace())
	require.NoError(t, err)
	require.NotEmpty(t, obj.Code)

	withPopcnt := &Config{ISA: "amd64", CallConv: "SystemV", OptLevel: "None"}
	withPopcnt.CPUFeatures.Popcnt = true
	objWithFeature, err := compileModule(withPopcnt, mod, diag.NopTrace())
	require.NoError(t, err)
	require.NotEmpty(t, objWithFeature.Code)

	// The software SWAR fallback lowers to many more instructions than the
	// single POPCNT form, so the two code paths must diverge.
	require.NotEqual(t, len(obj.Code), len(objWithFeature.Code))
}

func TestCompileModule_UnimplementedISACallConvPairReturnsError(t *testing.T) {
	mod := mustParseModule(t, addModuleSrc)
	cfg := &Config{ISA: "arm64", CallConv: "SystemV", OptLevel: "None"}

	_, err := compileModule(cfg, mod, diag.NopTrace())
	require.Error(t, err)
}
