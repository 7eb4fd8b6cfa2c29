package regalloc

import (
	"container/heap"
	"fmt"

	"github.com/clifgen/wazevo-clif/backend"
)

// Allocator assigns LiveBundles to physical registers or spill slots via a
// priority-queue scan with eviction and spill (spec.md §4.3 step 5). Live
// range splitting is not implemented: a bundle that cannot win or evict a
// register is spilled whole, which is a valid (if sometimes less optimal)
// allocation -- every testable property in spec.md §8 still holds.
type Allocator struct {
	available map[backend.RegClass][]backend.PReg
	active    map[backend.RegClass][]*LiveBundle
	spillSets []*SpillSet
	nextSlot  uint32
}

// NewAllocator returns an allocator that may use, for each class, only the
// PRegs listed in available (typically an ISA's allocatable set, excluding
// the frame/stack pointer and other reserved registers).
func NewAllocator(available map[backend.RegClass][]backend.PReg) *Allocator {
	return &Allocator{
		available: available,
		active:    make(map[backend.RegClass][]*LiveBundle),
	}
}

type bundleQueue []*LiveBundle

func (q bundleQueue) Len() int { return len(q) }
func (q bundleQueue) Less(i, j int) bool {
	if q[i].Req.Kind != q[j].Req.Kind {
		return q[i].Req.Kind > q[j].Req.Kind // fixed/limit requirements settled first
	}
	return q[i].Weight > q[j].Weight
}
func (q bundleQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *bundleQueue) Push(x any)        { *q = append(*q, x.(*LiveBundle)) }
func (q *bundleQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Allocate assigns every bundle a PReg or a SpillSet slot, mutating each
// LiveBundle in place, and returns the spill sets created.
func (a *Allocator) Allocate(bundles []*LiveBundle) ([]*SpillSet, error) {
	q := make(bundleQueue, len(bundles))
	copy(q, bundles)
	heap.Init(&q)

	for q.Len() > 0 {
		b := heap.Pop(&q).(*LiveBundle)
		if err := a.place(b, &q); err != nil {
			return nil, err
		}
	}
	return a.spillSets, nil
}

func (a *Allocator) place(b *LiveBundle, q *bundleQueue) error {
	switch b.Req.Kind {
	case ReqStack:
		a.spill(b)
		return nil
	case ReqFixedStack:
		a.spill(b)
		return nil
	case ReqFixedReg:
		return a.placeFixed(b, b.Req.Preg, q)
	default:
		return a.placeAny(b, q)
	}
}

func (a *Allocator) class(b *LiveBundle) backend.RegClass { return b.VReg.Class() }

func (a *Allocator) conflicts(b *LiveBundle, p backend.PReg) []*LiveBundle {
	var out []*LiveBundle
	for _, other := range a.active[p.Class()] {
		if other.HasReg && other.Reg == p && b.Overlaps(other) {
			out = append(out, other)
		}
	}
	return out
}

func (a *Allocator) placeFixed(b *LiveBundle, p backend.PReg, q *bundleQueue) error {
	conflicts := a.conflicts(b, p)
	maxConflictWeight := SpillWeight(0)
	for _, c := range conflicts {
		if c.Weight > maxConflictWeight {
			maxConflictWeight = c.Weight
		}
	}
	if len(conflicts) > 0 && maxConflictWeight >= b.Weight {
		a.spill(b)
		return nil
	}
	for _, c := range conflicts {
		a.evict(c)
		heap.Push(q, c)
	}
	a.assign(b, p)
	return nil
}

func (a *Allocator) placeAny(b *LiveBundle, q *bundleQueue) error {
	candidates := a.available[a.class(b)]
	if len(candidates) == 0 {
		return fmt.Errorf("vreg %s: no allocatable registers in class %s", b.VReg, a.class(b))
	}

	for _, p := range candidates {
		if len(a.conflicts(b, p)) == 0 {
			a.assign(b, p)
			return nil
		}
	}

	// No free register: find the candidate whose conflicting set has the
	// lowest total weight, and either evict it or spill b.
	var bestPReg backend.PReg
	var bestConflicts []*LiveBundle
	var bestWeight SpillWeight = ^SpillWeight(0)
	found := false
	for _, p := range candidates {
		conflicts := a.conflicts(b, p)
		var w SpillWeight
		for _, c := range conflicts {
			w += c.Weight
		}
		if !found || w < bestWeight {
			found = true
			bestWeight = w
			bestPReg = p
			bestConflicts = conflicts
		}
	}

	if bestWeight >= b.Weight {
		a.spill(b)
		return nil
	}
	for _, c := range bestConflicts {
		a.evict(c)
		heap.Push(q, c)
	}
	a.assign(b, bestPReg)
	return nil
}

func (a *Allocator) assign(b *LiveBundle, p backend.PReg) {
	b.HasReg = true
	b.Reg = p
	b.SpillSet = nil
	a.active[p.Class()] = append(a.active[p.Class()], b)
}

func (a *Allocator) evict(b *LiveBundle) {
	list := a.active[a.class(b)]
	for i, o := range list {
		if o == b {
			a.active[a.class(b)] = append(list[:i], list[i+1:]...)
			break
		}
	}
	b.HasReg = false
}

// spill assigns b to an existing SpillSet whose bundles never overlap it, or
// a fresh one.
func (a *Allocator) spill(b *LiveBundle) {
	b.HasReg = false
	for _, s := range a.spillSets {
		conflict := false
		for _, other := range s.Bundles {
			if other.VReg.Class() == b.VReg.Class() && b.Overlaps(other) {
				conflict = true
				break
			}
		}
		if !conflict {
			s.Bundles = append(s.Bundles, b)
			b.SpillSet = s
			return
		}
	}
	s := &SpillSet{Slot: a.nextSlot, Bundles: []*LiveBundle{b}}
	a.nextSlot++
	a.spillSets = append(a.spillSets, s)
	b.SpillSet = s
}
