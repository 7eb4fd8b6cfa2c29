package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/mach"
	"github.com/clifgen/wazevo-clif/ssa"
)

func addFunction(t *testing.T) *ssa.Function {
	t.Helper()
	sig := &ssa.Signature{CallConv: ssa.CallConvSystemV, Results: []ssa.AbiParam{{Type: ssa.TypeI32}}}
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

func TestLower_IaddUsesReuseDefAluRR(t *testing.T) {
	f := addFunction(t)
	vcode := lowerWith(f, NewMachine(backend.SystemVAMD64))

	var add *Inst
	for _, mi := range vcode.Insts {
		if i := mi.(*Inst); i.Op == OpAluRR {
			add = i
		}
	}
	require.NotNil(t, add, "expected an OpAluRR in the lowered instruction stream")
	require.Equal(t, AluAdd, add.Alu)
	require.Equal(t, byte(4), add.Width)
}

func TestLower_ReturnBindsResultToFixedReg(t *testing.T) {
	f := addFunction(t)
	vcode := lowerWith(f, NewMachine(backend.SystemVAMD64))

	var ret *Inst
	for _, mi := range vcode.Insts {
		if i := mi.(*Inst); i.Op == OpRet {
			ret = i
		}
	}
	require.NotNil(t, ret, "expected a terminating OpRet")

	// the Ret instruction's operand range must carry a single fixed-use
	// tying the returned value to System V's rax result register.
	idx := -1
	for i, mi := range vcode.Insts {
		if mi.(*Inst) == ret {
			idx = i
			break
		}
	}
	ops := vcode.Operands.Operands(idx)
	require.Len(t, ops, 1)
	require.Equal(t, backend.ConstraintFixedReg, ops[0].Constraint)
	require.Equal(t, backend.MakePReg(backend.RegClassInt, rax), ops[0].FixedReg)
}

func branchFunction(t *testing.T) (*ssa.Function, ssa.Block, ssa.Block) {
	t.Helper()
	sig := &ssa.Signature{CallConv: ssa.CallConvSystemV, Results: []ssa.AbiParam{{Type: ssa.TypeI32}}}
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

	return f, thenB, elseB
}

func TestLowerBranch_BrifEmitsCompareAndTwoJumps(t *testing.T) {
	f, _, _ := branchFunction(t)
	vcode := lowerWith(f, NewMachine(backend.SystemVAMD64))

	var cmp, jcc, jmp int
	for _, mi := range vcode.Insts {
		switch mi.(*Inst).Op {
		case OpCmpRI:
			cmp++
		case OpJcc:
			jcc++
		case OpJmp:
			jmp++
		}
	}
	require.Equal(t, 1, cmp)
	require.Equal(t, 1, jcc)
	// one conditional fallthrough jump for Brif, plus one unconditional Jump
	// per arm of the diamond (then/else -> merge).
	require.Equal(t, 3, jmp)
}

func divFunction(t *testing.T) *ssa.Function {
	t.Helper()
	sig := &ssa.Signature{CallConv: ssa.CallConvSystemV, Results: []ssa.AbiParam{{Type: ssa.TypeI32}}}
	f := ssa.NewFunction("divrem", sig)
	b := ssa.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	b.SetCurrentBlock(entry)
	b.Seal(entry)

	x := b.Iconst(ssa.TypeI32, 7)
	y := b.Iconst(ssa.TypeI32, 2)
	q := b.Sdiv(ssa.TypeI32, x, y)
	b.Return([]ssa.Value{q})
	return f
}

func TestLower_SdivUsesRaxRdxIdiom(t *testing.T) {
	f := divFunction(t)
	vcode := lowerWith(f, NewMachine(backend.SystemVAMD64))

	var sawIDiv bool
	for _, mi := range vcode.Insts {
		if mi.(*Inst).Op == OpIDiv {
			sawIDiv = true
		}
	}
	require.True(t, sawIDiv, "expected an OpIDiv in the lowered Sdiv")
}

func TestLower_IDivCarriesIntegerDivisionByZeroTrap(t *testing.T) {
	f := divFunction(t)
	vcode := lowerWith(f, NewMachine(backend.SystemVAMD64))

	var idiv *Inst
	for _, mi := range vcode.Insts {
		if i := mi.(*Inst); i.Op == OpIDiv {
			idiv = i
		}
	}
	require.NotNil(t, idiv)
	require.True(t, idiv.HasTrap, "IDIV faults on its own zero divisor, so the division site itself must carry the trap")
	require.Equal(t, mach.TrapIntegerDivisionByZero, idiv.Trap)
}
