package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
)

func TestRequirement_MergeTable(t *testing.T) {
	reg := Requirement{Kind: ReqRegister}
	any := Requirement{Kind: ReqAny}
	stack := Requirement{Kind: ReqStack}
	limit2 := Requirement{Kind: ReqLimit, Limit: 2}
	limit5 := Requirement{Kind: ReqLimit, Limit: 5}
	fixedA := Requirement{Kind: ReqFixedReg, Preg: backend.MakePReg(backend.RegClassInt, 0)}
	fixedB := Requirement{Kind: ReqFixedReg, Preg: backend.MakePReg(backend.RegClassInt, 1)}

	t.Run("any absorbs", func(t *testing.T) {
		got, err := any.Merge(reg)
		require.NoError(t, err)
		require.Equal(t, reg, got)

		got, err = reg.Merge(any)
		require.NoError(t, err)
		require.Equal(t, reg, got)
	})

	t.Run("register+register=register", func(t *testing.T) {
		got, err := reg.Merge(reg)
		require.NoError(t, err)
		require.Equal(t, ReqRegister, got.Kind)
	})

	t.Run("stack+stack=stack", func(t *testing.T) {
		got, err := stack.Merge(stack)
		require.NoError(t, err)
		require.Equal(t, ReqStack, got.Kind)
	})

	t.Run("fixed+fixed same preg ok", func(t *testing.T) {
		got, err := fixedA.Merge(fixedA)
		require.NoError(t, err)
		require.Equal(t, fixedA, got)
	})

	t.Run("fixed+fixed different preg conflicts", func(t *testing.T) {
		_, err := fixedA.Merge(fixedB)
		require.Error(t, err)
	})

	t.Run("limit+limit takes min", func(t *testing.T) {
		got, err := limit2.Merge(limit5)
		require.NoError(t, err)
		require.Equal(t, 2, got.Limit)
	})

	t.Run("register+fixed=fixed", func(t *testing.T) {
		got, err := reg.Merge(fixedA)
		require.NoError(t, err)
		require.Equal(t, fixedA, got)

		got, err = fixedA.Merge(reg)
		require.NoError(t, err)
		require.Equal(t, fixedA, got)
	})

	t.Run("register+stack conflicts", func(t *testing.T) {
		_, err := reg.Merge(stack)
		require.Error(t, err)
		_, err = stack.Merge(reg)
		require.Error(t, err)
	})

	t.Run("register+limit=limit", func(t *testing.T) {
		got, err := reg.Merge(limit2)
		require.NoError(t, err)
		require.Equal(t, limit2, got)
	})
}

func TestRequirementFromOperandConstraint(t *testing.T) {
	fixed := backend.MakePReg(backend.RegClassFloat, 3)
	require.Equal(t, Requirement{Kind: ReqFixedReg, Preg: fixed}, RequirementFromOperandConstraint(backend.ConstraintFixedReg, fixed))
	require.Equal(t, Requirement{Kind: ReqRegister}, RequirementFromOperandConstraint(backend.ConstraintReg, 0))
	require.Equal(t, Requirement{Kind: ReqRegister}, RequirementFromOperandConstraint(backend.ConstraintReuse, 0))
	require.Equal(t, Requirement{Kind: ReqAny}, RequirementFromOperandConstraint(backend.ConstraintAny, 0))
}
