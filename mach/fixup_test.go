package mach

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixupHeap_UseLabelAtOffsetResolvesImmediatelyWhenBound(t *testing.T) {
	h := NewFixupHeap()
	l := h.NewLabel()
	h.BindLabel(l, 40)

	target, resolved := h.UseLabelAtOffset(0, l, FixupKindARM64Branch26)
	require.True(t, resolved)
	require.Equal(t, int64(40), target)
	require.Equal(t, 0, h.Pending())
}

func TestFixupHeap_UseLabelAtOffsetQueuesWhenUnbound(t *testing.T) {
	h := NewFixupHeap()
	l := h.NewLabel()

	_, resolved := h.UseLabelAtOffset(0, l, FixupKindARM64CondBranch19)
	require.False(t, resolved)
	require.Equal(t, 1, h.Pending())

	h.BindLabel(l, 100)
	due := h.DrainDueFixups()
	require.Len(t, due, 1)
	require.Equal(t, l, due[0].Label)
	require.Equal(t, 0, h.Pending())
}

func TestFixupHeap_AliasLabelChasesToFinalTarget(t *testing.T) {
	h := NewFixupHeap()
	a := h.NewLabel()
	b := h.NewLabel()
	h.AliasLabel(a, b)
	h.BindLabel(b, 64)

	target, resolved := h.UseLabelAtOffset(0, a, FixupKindRel32)
	require.True(t, resolved)
	require.Equal(t, int64(64), target)
}

func TestFixupHeap_NeedsIslandWhenLookaheadCrossesDeadline(t *testing.T) {
	h := NewFixupHeap()
	l := h.NewLabel()
	_, _ = h.UseLabelAtOffset(0, l, FixupKindARM64CondBranch19)

	require.False(t, h.NeedsIsland(0, 4))
	deadline := int64(FixupKindARM64CondBranch19.MaxPosRange())
	require.True(t, h.NeedsIsland(deadline-2, 4))
}

func TestFixupHeap_DrainDueFixupsLeavesUnboundFixupsQueued(t *testing.T) {
	h := NewFixupHeap()
	bound := h.NewLabel()
	unbound := h.NewLabel()
	h.BindLabel(bound, 8)

	_, _ = h.UseLabelAtOffset(0, bound, FixupKindARM64Branch26)
	_, _ = h.UseLabelAtOffset(4, unbound, FixupKindARM64Branch26)

	due := h.DrainDueFixups()
	require.Len(t, due, 1)
	require.Equal(t, bound, due[0].Label)
	require.Equal(t, 1, h.Pending())
}
