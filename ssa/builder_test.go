package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBuilder_diamond builds:
//
//	entry: v0 = iconst.i32 1; brif v0, then, else
//	then:  jump merge
//	else:  jump merge
//	merge: uses variable x, defined differently in then/else -> needs a phi
//
// and checks that merge gets exactly one block parameter resolving to the
// two predecessor definitions.
func TestBuilder_diamond(t *testing.T) {
	sig := &Signature{Params: nil, Results: []AbiParam{{Type: TypeI32}}}
	f := NewFunction("diamond", sig)
	b := NewBuilder(f)

	entry := b.CreateBlock()
	thenBlk := b.CreateBlock()
	elseBlk := b.CreateBlock()
	merge := b.CreateBlock()

	x := b.DeclareVariable(TypeI32)

	b.AppendBlock(entry)
	b.SetCurrentBlock(entry)
	cond := b.Iconst(TypeI32, 1)
	b.Brif(cond, thenBlk, nil, elseBlk, nil)
	b.Seal(thenBlk)
	b.Seal(elseBlk)

	b.AppendBlock(thenBlk)
	b.SetCurrentBlock(thenBlk)
	tv := b.Iconst(TypeI32, 10)
	b.DefineVariableInCurrentBlock(x, tv)
	b.Jump(merge, nil)

	b.AppendBlock(elseBlk)
	b.SetCurrentBlock(elseBlk)
	ev := b.Iconst(TypeI32, 20)
	b.DefineVariableInCurrentBlock(x, ev)
	b.Jump(merge, nil)

	b.Seal(merge)

	b.AppendBlock(merge)
	b.SetCurrentBlock(merge)
	got := b.FindValue(x)
	b.Return([]Value{got})

	require.Len(t, f.DFG.BlockParams(merge), 1)
	param := f.DFG.BlockParams(merge)[0]
	require.Equal(t, got, param)

	// Both predecessor Jumps must have been patched to carry the phi's
	// chosen value across the edge.
	thenJump := f.Layout.LastInst(thenBlk)
	elseJump := f.Layout.LastInst(elseBlk)
	require.Equal(t, []Value{tv}, f.DFG.BlockArgs(thenJump, 0))
	require.Equal(t, []Value{ev}, f.DFG.BlockArgs(elseJump, 0))
}

// TestBuilder_singlePredSkipsParam checks the Braun et al. optimization: a
// sealed block with exactly one predecessor never gets a block parameter for
// a variable unchanged since that predecessor.
func TestBuilder_singlePredSkipsParam(t *testing.T) {
	sig := &Signature{Results: []AbiParam{{Type: TypeI32}}}
	f := NewFunction("straight_line", sig)
	b := NewBuilder(f)

	entry := b.CreateBlock()
	next := b.CreateBlock()
	x := b.DeclareVariable(TypeI32)

	b.AppendBlock(entry)
	b.SetCurrentBlock(entry)
	v := b.Iconst(TypeI32, 42)
	b.DefineVariableInCurrentBlock(x, v)
	b.Jump(next, nil)
	b.Seal(next)

	b.AppendBlock(next)
	b.SetCurrentBlock(next)
	got := b.FindValue(x)

	require.Equal(t, v, got)
	require.Empty(t, f.DFG.BlockParams(next))
}

// TestBuilder_loopHeaderPhi exercises the incomplete-CFG path: a loop header
// is sealed only after its back edge is known, by which point FindValue has
// already handed out a placeholder that Seal must promote to a real block
// parameter.
func TestBuilder_loopHeaderPhi(t *testing.T) {
	sig := &Signature{Results: []AbiParam{{Type: TypeI32}}}
	f := NewFunction("loop", sig)
	b := NewBuilder(f)

	entry := b.CreateBlock()
	header := b.CreateBlock()
	exit := b.CreateBlock()
	x := b.DeclareVariable(TypeI32)

	b.AppendBlock(entry)
	b.SetCurrentBlock(entry)
	initVal := b.Iconst(TypeI32, 0)
	b.DefineVariableInCurrentBlock(x, initVal)
	b.Jump(header, nil)
	// header not sealed yet: its back edge (from inside the loop body) isn't
	// registered until after the body is translated.

	b.AppendBlock(header)
	b.SetCurrentBlock(header)
	cur := b.FindValue(x) // placeholder, header unsealed
	one := b.Iconst(TypeI32, 1)
	next := b.Iadd(TypeI32, cur, one)
	b.DefineVariableInCurrentBlock(x, next)
	loopCond := b.Iconst(TypeI32, 0)
	b.Brif(loopCond, header, nil, exit, nil)
	b.Seal(header) // now both preds (entry, header-self) are known

	b.AppendBlock(exit)
	b.SetCurrentBlock(exit)
	b.Seal(exit)
	final := b.FindValue(x)
	b.Return([]Value{final})

	require.Len(t, f.DFG.BlockParams(header), 1)
	require.Equal(t, cur, f.DFG.BlockParams(header)[0])

	entryJump := f.Layout.LastInst(entry)
	require.Equal(t, []Value{initVal}, f.DFG.BlockArgs(entryJump, 0))
	headerBrif := f.Layout.LastInst(header)
	require.Equal(t, []Value{next}, f.DFG.BlockArgs(headerBrif, 0))
}
