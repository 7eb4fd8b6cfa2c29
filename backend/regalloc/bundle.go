package regalloc

import (
	"fmt"
	"sort"

	"github.com/clifgen/wazevo-clif/arena"
	"github.com/clifgen/wazevo-clif/backend"
)

// LiveBundle is a collection of non-overlapping LiveRanges that must share
// one allocation: a register, or a shared SpillSet slot (spec.md §3.3).
type LiveBundle struct {
	VReg   backend.VReg
	Ranges []*LiveRange // sorted by From, pairwise non-overlapping

	Req    Requirement
	Weight SpillWeight

	// Assigned is set once the allocator places this bundle.
	HasReg   bool
	Reg      backend.PReg
	SpillSet *SpillSet
}

// SpillSet is the shared stack-slot allocation for one or more evicted/
// split-off bundles that never need to be live in a register simultaneously
// (spec.md §3.3).
type SpillSet struct {
	Slot    uint32
	Bundles []*LiveBundle
}

// BuildBundles groups per-block LiveRanges into one LiveBundle per VReg
// (spec.md §4.3 step 4): since BuildLiveRanges already confines each range
// to a single block, ranges for the same VReg across different blocks never
// overlap and can always be pre-coalesced into one bundle.
func BuildBundles(ranges map[backend.VReg][]*LiveRange, loopDepth func(block int) int, pool *arena.Pool[LiveBundle]) ([]*LiveBundle, error) {
	bundles := make([]*LiveBundle, 0, len(ranges))
	for vreg, rs := range ranges {
		sort.Slice(rs, func(i, j int) bool { return rs[i].From.Before(rs[j].From) })
		for i := 1; i < len(rs); i++ {
			if rs[i-1].Overlaps(rs[i]) {
				return nil, fmt.Errorf("vreg %s: overlapping live ranges in blocks %d and %d", vreg, rs[i-1].Block, rs[i].Block)
			}
		}

		req := Requirement{Kind: ReqAny}
		var maxWeight SpillWeight
		for _, r := range rs {
			rreq, err := r.Requirement()
			if err != nil {
				return nil, fmt.Errorf("vreg %s: %w", vreg, err)
			}
			req, err = req.Merge(rreq)
			if err != nil {
				return nil, fmt.Errorf("vreg %s: %w", vreg, err)
			}
			if w := r.MaxWeight(); w > maxWeight {
				maxWeight = w
			}
		}

		bdl := pool.Allocate()
		*bdl = LiveBundle{VReg: vreg, Ranges: rs, Req: req, Weight: maxWeight}
		bundles = append(bundles, bdl)
	}
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].VReg < bundles[j].VReg })
	return bundles, nil
}

// Overlaps reports whether any range of b overlaps any range of o.
func (b *LiveBundle) Overlaps(o *LiveBundle) bool {
	for _, r := range b.Ranges {
		for _, s := range o.Ranges {
			if r.Overlaps(s) {
				return true
			}
		}
	}
	return false
}
