package backend

import "github.com/clifgen/wazevo-clif/ssa"

// LoweredBlock is one entry of a BlockLoweringOrder: either a real CLIF
// block or a synthetic CriticalEdge inserted between a multi-successor
// block and a multi-predecessor successor, which is where the allocator's
// block-parameter (phi) moves are emitted (spec.md §4.2, §9).
type LoweredBlock struct {
	CLIFBlock  ssa.Block // valid unless IsCriticalEdge
	IsCriticalEdge bool
	// Pred/Succ/SuccIdx identify the edge a CriticalEdge pseudo-block splits:
	// it sits between Pred and Pred's SuccIdx'th successor, Succ.
	Pred, Succ ssa.Block
	SuccIdx    int
}

// BlockLoweringOrder is the reverse-post-order walk of a function's blocks,
// with CriticalEdge pseudo-blocks spliced in; this order is both the
// lowering walk order and the final emission order (spec.md §4.2).
type BlockLoweringOrder struct {
	Order []LoweredBlock
	// indexOf maps a real CLIF block to its position in Order, for
	// successor-index lookups during lowering.
	indexOf map[ssa.Block]int
}

// BuildBlockLoweringOrder computes in/out degrees via f.Successors, walks
// the dominator-free reverse-post-order (a plain DFS postorder reversed
// suffices for a reducible CFG produced by the Wasm structured-control-flow
// translator; spec.md does not require general irreducible-CFG support),
// and inserts a CriticalEdge between any block with >1 successor and any
// successor with >1 predecessor.
func BuildBlockLoweringOrder(f *ssa.Function) *BlockLoweringOrder {
	preds := make(map[ssa.Block]int)
	var all []ssa.Block
	for b := f.Layout.FirstBlock(); b.Valid(); b = f.Layout.NextBlock(b) {
		all = append(all, b)
	}
	for _, b := range all {
		for _, s := range f.Successors(b) {
			preds[s]++
		}
	}

	visited := make(map[ssa.Block]bool)
	var postorder []ssa.Block
	var walk func(ssa.Block)
	walk = func(b ssa.Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range f.Successors(b) {
			walk(s)
		}
		postorder = append(postorder, b)
	}
	entry := f.Layout.FirstBlock()
	if entry.Valid() {
		walk(entry)
	}
	// Reached-but-unvisited blocks (shouldn't occur for structured Wasm
	// control flow, but layout order may include unreachable trampolines)
	// are appended in layout order so nothing is silently dropped.
	for _, b := range all {
		walk(b)
	}

	rpo := make([]ssa.Block, len(postorder))
	for i, b := range postorder {
		rpo[len(postorder)-1-i] = b
	}

	blo := &BlockLoweringOrder{indexOf: make(map[ssa.Block]int)}
	for _, b := range rpo {
		succs := f.Successors(b)
		blo.indexOf[b] = len(blo.Order)
		blo.Order = append(blo.Order, LoweredBlock{CLIFBlock: b})
		if len(succs) > 1 {
			for idx, s := range succs {
				if preds[s] > 1 {
					blo.Order = append(blo.Order, LoweredBlock{
						IsCriticalEdge: true, Pred: b, Succ: s, SuccIdx: idx,
					})
				}
			}
		}
	}
	return blo
}

// IndexOf returns the position of b's real (non-critical-edge) entry in the
// lowering order.
func (o *BlockLoweringOrder) IndexOf(b ssa.Block) int { return o.indexOf[b] }
