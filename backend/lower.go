package backend

import "github.com/clifgen/wazevo-clif/ssa"

// UseCount classifies how many times a CLIF value is consumed within its
// defining block; values used Once may be sunk into their consumer instead
// of being materialized into their own VReg (spec.md §4.2).
type UseCount byte

const (
	UseUnused UseCount = iota
	UseOnce
	UseMultiple
)

// InstColor partitions instructions by side-effect boundary: every
// side-effecting instruction starts a fresh color, and sinking a value is
// legal only within its consumer's color, preserving observable ordering of
// side effects (spec.md §4.2, §9).
type InstColor uint32

// IsSideEffecting reports whether op can observably affect or depend on
// program state beyond its own result (loads/stores, calls, traps), and so
// must start a new color.
func IsSideEffecting(op ssa.Opcode) bool {
	switch op {
	case ssa.OpLoad, ssa.OpStore, ssa.OpCall, ssa.OpCallIndirect, ssa.OpTrap,
		ssa.OpSdiv, ssa.OpUdiv, ssa.OpSrem, ssa.OpUrem: // may trap
		return true
	default:
		return false
	}
}

// Coloring assigns an InstColor to every instruction of a block, computed by
// a single forward pass.
type Coloring struct {
	color map[ssa.Inst]InstColor
}

// ColorBlock runs the forward side-effect-coloring pass over every
// instruction of b, in layout order.
func ColorBlock(f *ssa.Function, b ssa.Block) *Coloring {
	c := &Coloring{color: make(map[ssa.Inst]InstColor)}
	cur := InstColor(0)
	for i := f.Layout.FirstInst(b); i.Valid(); i = f.Layout.NextInst(i) {
		d := f.DFG.Inst(i)
		if IsSideEffecting(d.Opcode) {
			cur++
		}
		c.color[i] = cur
	}
	return c
}

func (c *Coloring) ColorOf(i ssa.Inst) InstColor { return c.color[i] }

// UseCounts computes, for every value defined in b, how many times it is
// used by instructions within b (the forward pass of spec.md §4.2's
// two-phase walk). Values used outside b (live across a block boundary)
// are always treated as UseMultiple, since sinking cannot cross blocks.
func UseCounts(f *ssa.Function, b ssa.Block) map[ssa.Value]UseCount {
	counts := make(map[ssa.Value]UseCount)
	bump := func(v ssa.Value) {
		v = f.DFG.ResolveAliases(v)
		switch counts[v] {
		case UseUnused:
			counts[v] = UseOnce
		case UseOnce:
			counts[v] = UseMultiple
		}
	}
	for i := f.Layout.FirstInst(b); i.Valid(); i = f.Layout.NextInst(i) {
		for _, arg := range f.DFG.Args(i) {
			bump(arg)
		}
	}
	for which := 0; which < 2; which++ {
		last := f.Layout.LastInst(b)
		if !last.Valid() {
			continue
		}
		for _, v := range f.DFG.BlockArgs(last, which) {
			bump(v)
		}
	}
	for ob := f.Layout.FirstBlock(); ob.Valid(); ob = f.Layout.NextBlock(ob) {
		for i := f.Layout.FirstInst(ob); ob != b && i.Valid(); i = f.Layout.NextInst(i) {
			outside := append(append(append([]ssa.Value(nil), f.DFG.Args(i)...),
				f.DFG.BlockArgs(i, 0)...), f.DFG.BlockArgs(i, 1)...)
			for _, v := range outside {
				counts[f.DFG.ResolveAliases(v)] = UseMultiple
			}
		}
	}
	return counts
}

// LowerCtx is the state threaded through one call to LowerBackend.Lower: the
// function being compiled, the VCode being built, and the block/value
// bookkeeping lowering needs (use counts, coloring, the value->VReg map).
type LowerCtx struct {
	F        *ssa.Function
	VCode    *VCode
	Order    *BlockLoweringOrder
	useCount map[ssa.Value]UseCount
	color    *Coloring
	valueReg map[ssa.Value]VReg
	nextVReg uint32
}

// NewLowerCtx returns a LowerCtx ready to lower f into vcode, in order.
func NewLowerCtx(f *ssa.Function, vcode *VCode, order *BlockLoweringOrder) *LowerCtx {
	return &LowerCtx{F: f, VCode: vcode, Order: order, valueReg: make(map[ssa.Value]VReg)}
}

// VRegOf returns the VReg assigned to v, allocating a fresh one of the
// appropriate RegClass on first use.
func (c *LowerCtx) VRegOf(v ssa.Value, class RegClass) VReg {
	v = c.F.DFG.ResolveAliases(v)
	if r, ok := c.valueReg[v]; ok {
		return r
	}
	idx := NumPinnedVRegs + c.nextVReg
	c.nextVReg++
	r := MakeVReg(class, idx)
	c.valueReg[v] = r
	return r
}

// CanSink reports whether v (used by consumer, which lowers from color
// consumerColor) may be emitted inline at its use site rather than into its
// own VReg: it must be used exactly once, and defined in the same side-
// effect color as its consumer.
func (c *LowerCtx) CanSink(v ssa.Value, consumerColor InstColor) bool {
	v = c.F.DFG.ResolveAliases(v)
	if c.useCount[v] != UseOnce {
		return false
	}
	def := c.F.DFG.ValueDef(v)
	if def.IsAlias() || def.Inst == ssa.InstNone {
		return false
	}
	return c.color.ColorOf(def.Inst) == consumerColor
}

// SetBlockContext recomputes use counts and side-effect coloring for the
// block about to be lowered (the forward pass of the two-phase walk).
func (c *LowerCtx) SetBlockContext(b ssa.Block) {
	c.useCount = UseCounts(c.F, b)
	c.color = ColorBlock(c.F, b)
}

// LowerBackend is the per-ISA contract lowering drives (spec.md §4.2):
// lower translates one CLIF instruction (other than a block terminator)
// into MachInsts pushed onto ctx.VCode; lowerBranch translates a block's
// terminator, given the already-resolved successor block indices in
// lowering order.
type LowerBackend interface {
	Lower(ctx *LowerCtx, inst ssa.Inst) bool
	LowerBranch(ctx *LowerCtx, inst ssa.Inst, targets []int)
}

// Lower runs the whole two-phase lowering pipeline over f: walks
// order.Order back to front so instructions can be pushed onto ctx.VCode in
// reverse (block terminators first within each block, and blocks themselves
// last to first, so VCode.Finalize's single reversal yields forward final
// order), then finalizes.
func Lower(f *ssa.Function, order *BlockLoweringOrder, backend LowerBackend) *VCode {
	vcode := NewVCode()
	ctx := NewLowerCtx(f, vcode, order)
	for i := len(order.Order) - 1; i >= 0; i-- {
		lb := order.Order[i]
		vcode.StartBlock()
		if lb.IsCriticalEdge {
			// Edge-move insertion happens once the allocator assigns block-
			// parameter locations; lowering leaves the pseudo-block empty.
			continue
		}
		b := lb.CLIFBlock
		ctx.SetBlockContext(b)

		last := f.Layout.LastInst(b)
		insts := make([]ssa.Inst, 0, 8)
		for ii := f.Layout.FirstInst(b); ii.Valid(); ii = f.Layout.NextInst(ii) {
			insts = append(insts, ii)
		}
		for k := len(insts) - 1; k >= 0; k-- {
			ii := insts[k]
			if ii == last {
				succs := f.Successors(b)
				targets := make([]int, len(succs))
				for si, s := range succs {
					targets[si] = order.IndexOf(s)
				}
				backend.LowerBranch(ctx, ii, targets)
				continue
			}
			d := f.DFG.Inst(ii)
			results := f.DFG.InstResults(ii)
			if len(results) == 1 && ctx.useCount[f.DFG.ResolveAliases(results[0])] == UseUnused && !IsSideEffecting(d.Opcode) {
				continue // dead, non-side-effecting: elide entirely
			}
			backend.Lower(ctx, ii)
		}
	}
	vcode.Finalize()

	vcode.Succs = make([][]int, len(order.Order))
	for i := range order.Order {
		vcode.Succs[i] = blockSuccessors(f, order, i)
	}
	vcode.Entry = 0
	return vcode
}

// blockSuccessors resolves order.Order[i]'s successors to lowering-order
// indices, routing through any CriticalEdge pseudo-block BuildBlockLoweringOrder
// spliced in immediately after a multi-successor block (spec.md §4.1).
func blockSuccessors(f *ssa.Function, order *BlockLoweringOrder, i int) []int {
	lb := order.Order[i]
	if lb.IsCriticalEdge {
		return []int{order.IndexOf(lb.Succ)}
	}
	b := lb.CLIFBlock
	real := f.Successors(b)
	viaEdge := make(map[int]int, len(real))
	for j := i + 1; j < len(order.Order); j++ {
		nb := order.Order[j]
		if !nb.IsCriticalEdge || nb.Pred != b {
			break
		}
		viaEdge[nb.SuccIdx] = j
	}
	out := make([]int, len(real))
	for idx, s := range real {
		if j, ok := viaEdge[idx]; ok {
			out[idx] = j
		} else {
			out[idx] = order.IndexOf(s)
		}
	}
	return out
}
