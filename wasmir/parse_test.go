package wasmir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_SimpleAdd(t *testing.T) {
	src := `
type 0 (i32 i32) -> (i32)
func 0 0
local.get 0
local.get 1
i32.add
end
`
	m, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, m.Types, 1)
	require.Equal(t, []ValType{ValTypeI32, ValTypeI32}, m.Types[0].Params)
	require.Len(t, m.Functions, 1)
	fn := m.Functions[0]
	require.Equal(t, uint32(0), fn.TypeIndex)
	require.Len(t, fn.Body, 4)
	require.Equal(t, OpLocalGet, fn.Body[0].Op)
	require.Equal(t, uint32(0), fn.Body[0].Index)
	require.Equal(t, OpIAdd, fn.Body[2].Op)
	require.Equal(t, ValTypeI32, fn.Body[2].ValType)
	require.Equal(t, OpEnd, fn.Body[3].Op)
}

func TestParse_LocalsAndConst(t *testing.T) {
	src := `
type 0 () -> (i64)
func 0 0
local i64 f32
i64.const -7
end
`
	m, err := Parse(src)
	require.NoError(t, err)
	fn := m.Functions[0]
	require.Equal(t, []ValType{ValTypeI64, ValTypeF32}, fn.Locals)
	require.Equal(t, int64(-7), fn.Body[0].I64Val)
}

func TestParse_BrTable(t *testing.T) {
	src := `
type 0 (i32) -> ()
func 0 0
local.get 0
br_table 0 1 2 default 3
end
`
	m, err := Parse(src)
	require.NoError(t, err)
	op := m.Functions[0].Body[1]
	require.Equal(t, OpBrTable, op.Op)
	require.Equal(t, []uint32{0, 1, 2}, op.Targets)
	require.Equal(t, uint32(3), op.Default)
}

func TestParse_MemArgAndBlockType(t *testing.T) {
	src := `
type 0 () -> ()
func 0 0
i32.const 0
i32.load 4 2
block i32
  i32.const 1
end
end
`
	m, err := Parse(src)
	require.NoError(t, err)
	body := m.Functions[0].Body
	load := body[1]
	require.Equal(t, OpLoad, load.Op)
	require.Equal(t, ValTypeI32, load.ResultType)
	require.Equal(t, byte(4), load.Width)
	require.Equal(t, MemArg{Offset: 4, Align: 2}, load.Mem)
	blk := body[2]
	require.Equal(t, OpBlock, blk.Op)
	require.Equal(t, []ValType{ValTypeI32}, blk.Block.ResultTypes)
}

func TestParse_UnknownOperatorFails(t *testing.T) {
	_, err := Parse("type 0 () -> ()\nfunc 0 0\nbogus.op\nend\n")
	require.Error(t, err)
}

func TestParse_TruncAndConvert(t *testing.T) {
	src := `
type 0 () -> ()
func 0 0
f64.const 1.5
i32.trunc_f64_s
f32.convert_i32_u
end
`
	m, err := Parse(src)
	require.NoError(t, err)
	body := m.Functions[0].Body
	require.Equal(t, OpITruncFS, body[1].Op)
	require.Equal(t, ValTypeF64, body[1].ValType)
	require.Equal(t, ValTypeI32, body[1].ResultType)
	require.Equal(t, OpFConvertIU, body[2].Op)
	require.Equal(t, ValTypeI32, body[2].ValType)
	require.Equal(t, ValTypeF32, body[2].ResultType)
}
