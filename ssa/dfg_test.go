package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataFlowGraph_determinism(t *testing.T) {
	build := func() *DataFlowGraph {
		g := NewDataFlowGraph()
		b0 := g.MakeBlock()
		p0 := g.AppendBlockParam(b0, TypeI32)
		i0 := g.MakeInst(InstructionData{Opcode: OpIadd, ctrlType: TypeI32})
		g.SetArgs(i0, []Value{p0, p0})
		g.MakeInstResults(i0, TypeI32)
		return g
	}
	g1, g2 := build(), build()
	require.Equal(t, g1.values, g2.values)
	require.Equal(t, g1.insts, g2.insts)
}

func TestDataFlowGraph_blockParams(t *testing.T) {
	g := NewDataFlowGraph()
	b0 := g.MakeBlock()
	p0 := g.AppendBlockParam(b0, TypeI32)
	p1 := g.AppendBlockParam(b0, TypeI64)
	require.Equal(t, []Value{p0, p1}, g.BlockParams(b0))
	require.Equal(t, TypeI32, g.ValueType(p0))
	require.Equal(t, TypeI64, g.ValueType(p1))

	def := g.ValueDef(p1)
	require.Equal(t, b0, def.Block)
	require.Equal(t, 1, def.ParamIndex)
}

func TestDataFlowGraph_argsAndResults(t *testing.T) {
	g := NewDataFlowGraph()
	b0 := g.MakeBlock()
	x := g.AppendBlockParam(b0, TypeI32)
	y := g.AppendBlockParam(b0, TypeI32)
	i := g.MakeInst(InstructionData{Opcode: OpIadd, ctrlType: TypeI32})
	g.SetArgs(i, []Value{x, y})
	require.Equal(t, []Value{x, y}, g.Args(i))

	results := g.MakeInstResults(i, TypeI32)
	require.Len(t, results, 1)
	require.Equal(t, results, g.InstResults(i))
}

func TestDataFlowGraph_multiResult(t *testing.T) {
	g := NewDataFlowGraph()
	i := g.MakeInst(InstructionData{Opcode: OpCall})
	results := g.MakeInstResults(i, TypeI32, TypeF64)
	require.Len(t, results, 2)
	require.Equal(t, TypeI32, g.ValueType(results[0]))
	require.Equal(t, TypeF64, g.ValueType(results[1]))
	for idx, v := range results {
		require.Equal(t, idx, g.ValueDef(v).OutputIndex)
	}
}

func TestDataFlowGraph_resolveAliases_idempotent(t *testing.T) {
	g := NewDataFlowGraph()
	b0 := g.MakeBlock()
	v1 := g.AppendBlockParam(b0, TypeI32)
	v2 := g.AllocPlaceholder(TypeI32)
	v3 := g.AllocPlaceholder(TypeI32)
	v4 := g.AllocPlaceholder(TypeI32)

	g.ChangeToAliasOf(v2, v1)
	g.ChangeToAliasOf(v3, v2)
	g.ChangeToAliasOf(v4, v3)

	for _, v := range []Value{v1, v2, v3, v4} {
		require.Equal(t, v1, g.ResolveAliases(v))
	}
	// Idempotent: resolving an already-resolved value is a no-op.
	resolved := g.ResolveAliases(v4)
	require.Equal(t, resolved, g.ResolveAliases(resolved))
}

func TestValueList_growthPreservesOtherLists(t *testing.T) {
	var pool valueListPool
	var la, lb valueList = listNone, listNone
	for i := 0; i < 3; i++ {
		pool.append(&la, Value(i))
	}
	pool.append(&lb, Value(100))
	for i := 3; i < 10; i++ {
		pool.append(&la, Value(i))
	}
	require.Equal(t, []Value{100}, pool.view(lb))
	want := make([]Value, 10)
	for i := range want {
		want[i] = Value(i)
	}
	require.Equal(t, want, pool.view(la))
}
