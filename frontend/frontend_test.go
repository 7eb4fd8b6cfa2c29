package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/ssa"
	"github.com/clifgen/wazevo-clif/wasmir"
)

func testLayout() ModuleLayout {
	return ModuleLayout{MemoryBaseOffset: 0, MemoryLenOffset: 8, GlobalsBaseOffset: 16, TableBaseOffset: 256}
}

func testExecLayout() ExecContextLayout {
	return ExecContextLayout{MemoryGrowTrampolineOffset: 0, MemoryCopyTrampolineOffset: 8, MemoryFillTrampolineOffset: 16}
}

func mustParse(t *testing.T, src string) *wasmir.Module {
	t.Helper()
	m, err := wasmir.Parse(src)
	require.NoError(t, err)
	return m
}

func TestCompile_AddParamsReturn(t *testing.T) {
	m := mustParse(t, `
type 0 (i32 i32) -> (i32)
func 0 0
local.get 0
local.get 1
i32.add
end
`)
	c := NewCompiler(m.Types, []uint32{0}, nil, testLayout(), testExecLayout())
	f, err := c.Compile("add", m.Functions[0])
	require.NoError(t, err)
	require.Equal(t, "add", f.Name)
	require.Len(t, f.Signature.Params, 4) // execCtx, moduleCtx, i32, i32
	require.Equal(t, ssa.TypeI64, f.Signature.Params[0].Type)
	require.Equal(t, ssa.ArgumentPurposeVMContext, f.Signature.Params[0].Purpose)
	require.Len(t, f.Signature.Results, 1)
}

func TestCompile_EmptyFunctionReturnsDirectly(t *testing.T) {
	m := mustParse(t, `
type 0 () -> ()
func 0 0
end
`)
	c := NewCompiler(m.Types, []uint32{0}, nil, testLayout(), testExecLayout())
	f, err := c.Compile("empty", m.Functions[0])
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestCompile_IfElse(t *testing.T) {
	m := mustParse(t, `
type 0 (i32) -> (i32)
func 0 0
local.get 0
if i32
  i32.const 1
else
  i32.const 2
end
end
`)
	c := NewCompiler(m.Types, []uint32{0}, nil, testLayout(), testExecLayout())
	f, err := c.Compile("choose", m.Functions[0])
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestCompile_LoopWithBrIf(t *testing.T) {
	m := mustParse(t, `
type 0 (i32) -> (i32)
func 0 0
loop i32
  local.get 0
  i32.const 1
  i32.sub
  local.tee 0
  local.get 0
  i32.const 0
  i32.gt_s
  br_if 0
  local.get 0
end
end
`)
	c := NewCompiler(m.Types, []uint32{0}, nil, testLayout(), testExecLayout())
	f, err := c.Compile("countdown", m.Functions[0])
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestCompile_UnbalancedBlocksError(t *testing.T) {
	m := mustParse(t, `
type 0 () -> ()
func 0 0
end
`)
	c := NewCompiler(m.Types, []uint32{0}, nil, testLayout(), testExecLayout())
	fn := m.Functions[0]
	fn.Body = []wasmir.Operator{
		{Op: wasmir.OpBlock},
	}
	_, err := c.Compile("broken", fn)
	require.Error(t, err)
}

func TestCompile_CallDirect(t *testing.T) {
	m := mustParse(t, `
type 0 (i32) -> (i32)
func 0 0
local.get 0
call 1
end
`)
	c := NewCompiler(m.Types, []uint32{0, 0}, nil, testLayout(), testExecLayout())
	f, err := c.Compile("caller", m.Functions[0])
	require.NoError(t, err)
	require.NotEmpty(t, f.ImportedFuncs)
	require.NotEmpty(t, f.ImportedSignatures)
}

func TestCompile_MemoryLoadNarrow(t *testing.T) {
	m := mustParse(t, `
type 0 (i32) -> (i32)
func 0 0
local.get 0
i32.load8_s 0 0
end
`)
	c := NewCompiler(m.Types, []uint32{0}, nil, testLayout(), testExecLayout())
	f, err := c.Compile("load8", m.Functions[0])
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestCompile_GlobalGetSet(t *testing.T) {
	m := mustParse(t, `
type 0 () -> (i32)
func 0 0
i32.const 5
global.set 0
global.get 0
end
`)
	c := NewCompiler(m.Types, []uint32{0}, []wasmir.ValType{wasmir.ValTypeI32}, testLayout(), testExecLayout())
	f, err := c.Compile("globals", m.Functions[0])
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestCompile_MemoryGrowSize(t *testing.T) {
	m := mustParse(t, `
type 0 (i32) -> (i32)
func 0 0
local.get 0
memory.grow
memory.size
i32.add
end
`)
	c := NewCompiler(m.Types, []uint32{0}, nil, testLayout(), testExecLayout())
	f, err := c.Compile("grow", m.Functions[0])
	require.NoError(t, err)
	require.NotNil(t, f)
}
