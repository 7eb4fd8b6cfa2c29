package regalloc

import "github.com/clifgen/wazevo-clif/backend"

// ResolveAssignment flattens the allocator's bundle decisions into a single
// per-VReg location map, the form the ISA-specific emission pass consumes to
// rewrite each MachInst's operands (spec.md §4.3 step 6).
func ResolveAssignment(bundles []*LiveBundle) map[backend.VReg]backend.Reg {
	out := make(map[backend.VReg]backend.Reg, len(bundles))
	for _, b := range bundles {
		if b.HasReg {
			out[b.VReg] = backend.RegFromPReg(b.Reg)
		} else {
			out[b.VReg] = backend.RegFromSpillSlot(b.SpillSet.Slot)
		}
	}
	return out
}

// Move is one location-to-location data transfer the rewrite pass must
// insert, e.g. at a critical-edge block to reconcile a block-param VReg's
// bundle location across the edge.
type Move struct {
	Src, Dst backend.Reg
}

// ResolveParallelMoves sequentializes a set of moves that must all appear to
// execute simultaneously (spec.md §4.3 step 6 "move insertion"), breaking any
// cycles with scratch as a temporary (r11 on x86-64, X16/X17 on ARM64).
// Moves whose source equals its destination are
// dropped.
func ResolveParallelMoves(moves []Move, scratch backend.Reg) []Move {
	pending := make(map[backend.Reg]backend.Reg)
	var order []backend.Reg
	for _, m := range moves {
		if m.Src == m.Dst {
			continue
		}
		pending[m.Dst] = m.Src
		order = append(order, m.Dst)
	}

	srcCount := make(map[backend.Reg]int)
	for _, src := range pending {
		srcCount[src]++
	}

	var ready []backend.Reg
	for _, dst := range order {
		if srcCount[dst] == 0 {
			ready = append(ready, dst)
		}
	}

	var result []Move
	for len(pending) > 0 {
		for len(ready) > 0 {
			dst := ready[len(ready)-1]
			ready = ready[:len(ready)-1]
			src, ok := pending[dst]
			if !ok {
				continue
			}
			result = append(result, Move{Src: src, Dst: dst})
			delete(pending, dst)
			srcCount[src]--
			if srcCount[src] == 0 {
				if _, stillPending := pending[src]; stillPending {
					ready = append(ready, src)
				}
			}
		}
		if len(pending) == 0 {
			break
		}

		// Every remaining dst is part of a cycle. Break one by saving its
		// current value to scratch, then redirecting whoever was waiting to
		// read it to read scratch instead.
		var pick backend.Reg
		found := false
		for _, dst := range order {
			if _, ok := pending[dst]; ok {
				pick = dst
				found = true
				break
			}
		}
		if !found {
			break
		}
		result = append(result, Move{Src: pick, Dst: scratch})
		for d, s := range pending {
			if s == pick {
				pending[d] = scratch
			}
		}
		srcCount[scratch] = srcCount[pick]
		srcCount[pick] = 0
		ready = append(ready, pick)
	}
	return result
}
