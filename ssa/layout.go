package ssa

// Layout orders the blocks of a Function and the instructions within each
// block as two doubly-linked lists. Every node carries a sequence number
// drawn from majorStride with gaps filled by midpoint arithmetic so that
// most insertions don't need to touch their neighbors; when the gap between
// two instructions is exhausted their block is renumbered from scratch.
// Blocks are only ever appended, so block numbers are never renumbered
// (spec.md §3.1).
type Layout struct {
	blocks []layoutBlockNode
	insts  []layoutInstNode

	firstBlock, lastBlock Block
	blockSeqEnd           int64
}

const majorStride = 10

type layoutBlockNode struct {
	inLayout           bool
	prev, next         Block
	seq                int64
	firstInst, lastInst Inst
}

type layoutInstNode struct {
	inLayout   bool
	block      Block
	prev, next Inst
	seq        int64
}

// NewLayout returns an empty Layout.
func NewLayout() *Layout {
	return &Layout{firstBlock: BlockNone, lastBlock: BlockNone}
}

func (l *Layout) ensureBlock(b Block) {
	for Block(len(l.blocks)) <= b {
		l.blocks = append(l.blocks, layoutBlockNode{prev: BlockNone, next: BlockNone, firstInst: InstNone, lastInst: InstNone})
	}
}

func (l *Layout) ensureInst(i Inst) {
	for Inst(len(l.insts)) <= i {
		l.insts = append(l.insts, layoutInstNode{prev: InstNone, next: InstNone})
	}
}

// AppendBlock appends b to the end of the function's block order.
func (l *Layout) AppendBlock(b Block) {
	l.ensureBlock(b)
	l.blockSeqEnd += majorStride
	l.blocks[b] = layoutBlockNode{
		inLayout: true, prev: l.lastBlock, next: BlockNone,
		seq: l.blockSeqEnd, firstInst: InstNone, lastInst: InstNone,
	}
	if l.lastBlock.Valid() {
		n := l.blocks[l.lastBlock]
		n.next = b
		l.blocks[l.lastBlock] = n
	} else {
		l.firstBlock = b
	}
	l.lastBlock = b
}

// FirstBlock / NextBlock walk the block order front to back.
func (l *Layout) FirstBlock() Block       { return l.firstBlock }
func (l *Layout) NextBlock(b Block) Block { return l.blocks[b].next }
func (l *Layout) PrevBlock(b Block) Block { return l.blocks[b].prev }
func (l *Layout) LastBlock() Block        { return l.lastBlock }

// BlockInserted reports whether b has been placed in the layout.
func (l *Layout) BlockInserted(b Block) bool {
	return int(b) < len(l.blocks) && l.blocks[b].inLayout
}

// AppendInst appends i to the tail of block b's instruction list.
func (l *Layout) AppendInst(b Block, i Inst) {
	l.ensureInst(i)
	bn := &l.blocks[b]
	var seq int64
	if bn.lastInst.Valid() {
		seq = l.insts[bn.lastInst].seq + majorStride
	} else {
		seq = majorStride
	}
	l.insts[i] = layoutInstNode{inLayout: true, block: b, prev: bn.lastInst, next: InstNone, seq: seq}
	if bn.lastInst.Valid() {
		l.insts[bn.lastInst].next = i
	} else {
		bn.firstInst = i
	}
	bn.lastInst = i
}

// InsertInstBefore inserts i immediately before at, renumbering at's block
// if the two neighboring sequence numbers leave no integer gap.
func (l *Layout) InsertInstBefore(i, at Inst) {
	l.ensureInst(i)
	atNode := l.insts[at]
	b := atNode.block
	prev := atNode.prev
	var prevSeq int64
	if prev.Valid() {
		prevSeq = l.insts[prev].seq
	}
	gap := atNode.seq - prevSeq
	if gap < 2 {
		l.renumberBlock(b)
		atNode = l.insts[at]
		prev = atNode.prev
		if prev.Valid() {
			prevSeq = l.insts[prev].seq
		} else {
			prevSeq = 0
		}
	}
	seq := prevSeq + (atNode.seq-prevSeq)/2
	l.insts[i] = layoutInstNode{inLayout: true, block: b, prev: prev, next: at, seq: seq}
	if prev.Valid() {
		l.insts[prev].next = i
	} else {
		l.blocks[b].firstInst = i
	}
	l.insts[at].prev = i
}

// renumberBlock assigns fresh, evenly spaced sequence numbers to every
// instruction of b, in current order.
func (l *Layout) renumberBlock(b Block) {
	seq := int64(0)
	for i := l.blocks[b].firstInst; i.Valid(); i = l.insts[i].next {
		seq += majorStride
		n := l.insts[i]
		n.seq = seq
		l.insts[i] = n
	}
}

// RemoveInst unlinks i from its block's instruction list.
func (l *Layout) RemoveInst(i Inst) {
	n := l.insts[i]
	if n.prev.Valid() {
		l.insts[n.prev].next = n.next
	} else {
		l.blocks[n.block].firstInst = n.next
	}
	if n.next.Valid() {
		l.insts[n.next].prev = n.prev
	} else {
		l.blocks[n.block].lastInst = n.prev
	}
	n.inLayout = false
	l.insts[i] = n
}

// FirstInst / NextInst walk a block's instructions front to back.
func (l *Layout) FirstInst(b Block) Inst   { return l.blocks[b].firstInst }
func (l *Layout) LastInst(b Block) Inst    { return l.blocks[b].lastInst }
func (l *Layout) NextInst(i Inst) Inst     { return l.insts[i].next }
func (l *Layout) PrevInst(i Inst) Inst     { return l.insts[i].prev }
func (l *Layout) InstBlock(i Inst) Block   { return l.insts[i].block }

// ProgramPoint is a total-order coordinate within a function: the owning
// block's layout position, then the instruction's in-block sequence number.
// instSeq -1 denotes the block's entry point, preceding every instruction in
// it (spec.md §3.1 Layout / §8.2).
type ProgramPoint struct {
	block   Block
	instSeq int64
}

// PointOfInst returns the ProgramPoint of instruction i.
func (l *Layout) PointOfInst(i Inst) ProgramPoint {
	n := l.insts[i]
	return ProgramPoint{block: n.block, instSeq: n.seq}
}

// PointOfBlockEntry returns the ProgramPoint preceding every instruction of b.
func (l *Layout) PointOfBlockEntry(b Block) ProgramPoint {
	return ProgramPoint{block: b, instSeq: -1}
}

// Compare implements the total order pp_cmp: negative if p < q, positive if
// p > q, zero if equal. Anti-symmetric by construction (testable property,
// spec.md §8.2).
func (l *Layout) Compare(p, q ProgramPoint) int {
	if p.block != q.block {
		bp, bq := l.blocks[p.block].seq, l.blocks[q.block].seq
		switch {
		case bp < bq:
			return -1
		case bp > bq:
			return 1
		default:
			return 0
		}
	}
	switch {
	case p.instSeq < q.instSeq:
		return -1
	case p.instSeq > q.instSeq:
		return 1
	default:
		return 0
	}
}
