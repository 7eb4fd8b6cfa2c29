package arm64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/ssa"
)

func addFunction(t *testing.T) *ssa.Function {
	t.Helper()
	sig := &ssa.Signature{CallConv: ssa.CallConvAppleAarch64, Results: []ssa.AbiParam{{Type: ssa.TypeI32}}}
	f := ssa.NewFunction("add", sig)
	b := ssa.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	b.SetCurrentBlock(entry)
	b.Seal(entry)

	x := b.Iconst(ssa.TypeI32, 2)
	y := b.Iconst(ssa.TypeI32, 3)
	sum := b.Iadd(ssa.TypeI32, x, y)
	b.Return([]ssa.Value{sum})
	return f
}

func lowerWith(f *ssa.Function, m *Machine) *backend.VCode {
	order := backend.BuildBlockLoweringOrder(f)
	return backend.Lower(f, order, m)
}

func TestLower_IaddUsesThreeOperandAluRRR(t *testing.T) {
	f := addFunction(t)
	vcode := lowerWith(f, NewMachine(backend.AAPCS64))

	var add *Inst
	for _, mi := range vcode.Insts {
		if i := mi.(*Inst); i.Op == OpAluRRR && i.Alu == AluAdd {
			add = i
		}
	}
	require.NotNil(t, add, "expected an OpAluRRR(AluAdd) in the lowered instruction stream")
	require.Equal(t, byte(4), add.Width)
	require.NotEqual(t, backend.VReg(0), add.Src1)
	require.NotEqual(t, backend.VReg(0), add.Src2)
}

func TestLower_ReturnBindsResultToFixedReg(t *testing.T) {
	f := addFunction(t)
	vcode := lowerWith(f, NewMachine(backend.AAPCS64))

	var ret *Inst
	idx := -1
	for i, mi := range vcode.Insts {
		if ii := mi.(*Inst); ii.Op == OpRet {
			ret = ii
			idx = i
		}
	}
	require.NotNil(t, ret, "expected a terminating OpRet")

	ops := vcode.Operands.Operands(idx)
	require.Len(t, ops, 1)
	require.Equal(t, backend.ConstraintFixedReg, ops[0].Constraint)
	require.Equal(t, backend.MakePReg(backend.RegClassInt, 0), ops[0].FixedReg) // x0
}

func branchFunction(t *testing.T) *ssa.Function {
	t.Helper()
	sig := &ssa.Signature{CallConv: ssa.CallConvAppleAarch64, Results: []ssa.AbiParam{{Type: ssa.TypeI32}}}
	f := ssa.NewFunction("select_branch", sig)
	b := ssa.NewBuilder(f)

	entry := b.CreateBlock()
	thenB := b.CreateBlock()
	elseB := b.CreateBlock()
	merge := b.CreateBlock()

	b.AppendBlock(entry)
	b.AppendBlock(thenB)
	b.AppendBlock(elseB)
	b.AppendBlock(merge)

	mergeParam := f.DFG.AppendBlockParam(merge, ssa.TypeI32)

	b.SetCurrentBlock(entry)
	b.Seal(entry)
	cond := b.Iconst(ssa.TypeI32, 1)
	one := b.Iconst(ssa.TypeI32, 1)
	b.Brif(cond, thenB, nil, elseB, nil)

	b.SetCurrentBlock(thenB)
	b.Seal(thenB)
	b.Jump(merge, []ssa.Value{one})

	b.SetCurrentBlock(elseB)
	b.Seal(elseB)
	b.Jump(merge, []ssa.Value{one})

	b.Seal(merge)
	b.SetCurrentBlock(merge)
	b.Return([]ssa.Value{mergeParam})

	return f
}

func TestLowerBranch_BrifEmitsCompareAndTwoBranches(t *testing.T) {
	f := branchFunction(t)
	vcode := lowerWith(f, NewMachine(backend.AAPCS64))

	var cmp, bcond, b int
	for _, mi := range vcode.Insts {
		switch mi.(*Inst).Op {
		case OpCmpRI:
			cmp++
		case OpBCond:
			bcond++
		case OpB:
			b++
		}
	}
	require.Equal(t, 1, cmp)
	require.Equal(t, 1, bcond)
	// one conditional fallthrough branch for Brif, plus one unconditional B
	// per arm of the diamond (then/else -> merge).
	require.Equal(t, 3, b)
}

func divFunction(t *testing.T) *ssa.Function {
	t.Helper()
	sig := &ssa.Signature{CallConv: ssa.CallConvAppleAarch64, Results: []ssa.AbiParam{{Type: ssa.TypeI32}}}
	f := ssa.NewFunction("divrem", sig)
	b := ssa.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	b.SetCurrentBlock(entry)
	b.Seal(entry)

	x := b.Iconst(ssa.TypeI32, 7)
	y := b.Iconst(ssa.TypeI32, 2)
	r := b.Urem(ssa.TypeI32, x, y)
	b.Return([]ssa.Value{r})
	return f
}

func TestLower_UremUsesDivThenMsub(t *testing.T) {
	f := divFunction(t)
	vcode := lowerWith(f, NewMachine(backend.AAPCS64))

	var sawDiv, sawMsub bool
	for _, mi := range vcode.Insts {
		switch mi.(*Inst).Op {
		case OpDivRRR:
			sawDiv = true
		case OpMsub:
			sawMsub = true
		}
	}
	require.True(t, sawDiv, "expected a UDIV computing the quotient")
	require.True(t, sawMsub, "expected an MSUB recovering the remainder")
}
