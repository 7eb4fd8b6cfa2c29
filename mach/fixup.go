package mach

import "container/heap"

// Label identifies a not-yet-bound position in a FixupHeap, matching
// spec.md §4.4's MachLabel.
type Label int32

// FixupKind names the encoding shape of one pending branch immediate, and
// therefore both its byte width and its maximum signed reach (in bytes)
// from the instruction to its target. MaxPosRange mirrors spec.md §4.4's
// `kind.max_pos_range`, used to compute a fixup's island deadline.
type FixupKind byte

const (
	// FixupKindRel32 is x86-64's 4-byte rel32 (Jmp/Jcc/Call): reaches the
	// full address space in practice, so its range is treated as unbounded.
	FixupKindRel32 FixupKind = iota
	// FixupKindARM64Branch26 is ARM64's B/BL 26-bit word-granular immediate:
	// ±128 MiB.
	FixupKindARM64Branch26
	// FixupKindARM64CondBranch19 is ARM64's B.cond 19-bit word-granular
	// immediate: ±1 MiB.
	FixupKindARM64CondBranch19
)

// MaxPosRange is the largest positive byte distance (offset → target) this
// FixupKind can encode before requiring a veneer.
func (k FixupKind) MaxPosRange() int64 {
	switch k {
	case FixupKindARM64Branch26:
		return (1 << 25) * 4
	case FixupKindARM64CondBranch19:
		return (1 << 18) * 4
	default:
		return 1<<62 - 1
	}
}

// LabelFixup is spec.md §4.4's MachLabelFixup{L, offset, kind}: a branch
// immediate at Offset that targets Label L, not yet resolvable because L
// has not been bound.
type LabelFixup struct {
	Label    Label
	Offset   int64
	Kind     FixupKind
	deadline int64
}

// fixupHeap is a min-heap of LabelFixup ordered by deadline, implementing
// spec.md §4.4's "pending-fixup heap keyed by deadline = offset +
// kind.max_pos_range (saturating)".
type fixupHeap []LabelFixup

func (h fixupHeap) Len() int            { return len(h) }
func (h fixupHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h fixupHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *fixupHeap) Push(x interface{}) { *h = append(*h, x.(LabelFixup)) }
func (h *fixupHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// FixupHeap is the ISA-agnostic label/fixup/island bookkeeping spec.md §4.4
// describes for MachBuffer: callers bind labels as they are encountered,
// record a fixup whenever a branch references a label that is not yet
// bound, and ask IslandDeadline before emitting each instruction to decide
// whether an island must be flushed first. Patch functions (how to write a
// resolved displacement back into the byte stream) are supplied by the
// caller's PatchFunc, since that differs per ISA/FixupKind; FixupHeap only
// owns label identity, offsets, and deadlines.
type FixupHeap struct {
	labelOffsets map[Label]int64
	labelAlias   map[Label]Label
	pending      fixupHeap
	nextLabel    Label
}

// NewFixupHeap returns an empty FixupHeap.
func NewFixupHeap() *FixupHeap {
	return &FixupHeap{labelOffsets: map[Label]int64{}, labelAlias: map[Label]Label{}}
}

// NewLabel allocates a fresh, as-yet-unbound Label.
func (f *FixupHeap) NewLabel() Label {
	f.nextLabel++
	return f.nextLabel
}

// BindLabel records offset as L's resolved position (spec.md §4.4's
// bindLabel(L)).
func (f *FixupHeap) BindLabel(l Label, offset int64) {
	f.labelOffsets[l] = offset
}

// AliasLabel unifies two labels (spec.md §4.4's label_aliases[L] = L'):
// future resolution of from chases through to to.
func (f *FixupHeap) AliasLabel(from, to Label) {
	f.labelAlias[from] = to
}

func (f *FixupHeap) resolve(l Label) (Label, bool) {
	for {
		if alias, ok := f.labelAlias[l]; ok {
			l = alias
			continue
		}
		_, bound := f.labelOffsets[l]
		return l, bound
	}
}

// UseLabelAtOffset implements spec.md §4.4's useLabelAtOffset(offset, L,
// kind): if L (after alias resolution) is already bound, it returns the
// resolved target offset and true so the caller can patch immediately;
// otherwise it pushes a LabelFixup onto the deadline heap and returns
// false.
func (f *FixupHeap) UseLabelAtOffset(offset int64, l Label, kind FixupKind) (target int64, resolved bool) {
	resolvedLabel, bound := f.resolve(l)
	if bound {
		return f.labelOffsets[resolvedLabel], true
	}
	deadline := offset + kind.MaxPosRange()
	if deadline < offset {
		deadline = 1<<63 - 1 // saturate instead of wrapping
	}
	heap.Push(&f.pending, LabelFixup{Label: resolvedLabel, Offset: offset, Kind: kind, deadline: deadline})
	return 0, false
}

// NeedsIsland reports whether, with the buffer's cursor at curOffset and
// lookahead bytes of instruction about to be emitted, the earliest pending
// fixup's deadline would be violated -- spec.md §4.4's "cur_offset +
// lookahead >= earliest_deadline" island trigger.
func (f *FixupHeap) NeedsIsland(curOffset int64, lookahead int64) bool {
	if len(f.pending) == 0 {
		return false
	}
	return curOffset+lookahead >= f.pending[0].deadline
}

// DrainDueFixups pops and returns every pending fixup whose target label is
// now bound, in deadline order, for the caller to patch. Fixups whose
// label is still unbound are left on the heap (this only happens when
// DrainDueFixups is called speculatively before the label that would
// resolve them is bound -- callers should bind labels before flushing an
// island so every in-range fixup drains).
func (f *FixupHeap) DrainDueFixups() []LabelFixup {
	var due []LabelFixup
	var requeue []LabelFixup
	for len(f.pending) > 0 {
		fx := heap.Pop(&f.pending).(LabelFixup)
		if _, bound := f.labelOffsets[fx.Label]; bound {
			due = append(due, fx)
		} else {
			requeue = append(requeue, fx)
		}
	}
	for _, fx := range requeue {
		heap.Push(&f.pending, fx)
	}
	return due
}

// Pending reports how many fixups remain unresolved.
func (f *FixupHeap) Pending() int { return len(f.pending) }
