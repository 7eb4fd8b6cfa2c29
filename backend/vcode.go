package backend

import "github.com/clifgen/wazevo-clif/ssa"

// MachInst is one ISA-specific virtual-register instruction. The concrete
// type lives in backend/isa/{amd64,arm64}; VCode stores them as an opaque
// value so this package stays ISA-agnostic (spec.md §3.2/§9).
type MachInst any

// VCode is the virtual-register machine-instruction representation of one
// function: instructions in final emission order, their operand ranges
// (via OperandCollector), per-instruction clobbers, source locations, block
// boundaries, block successors, and the entry block. Lowering builds it
// backwards (instructions appended in reverse as CLIF blocks are walked in
// reverse post-order) and VCode.Finalize reverses it once (spec.md §3.2,
// §4.2 "Two-phase lowering").
type VCode struct {
	Insts      []MachInst
	Operands   *OperandCollector
	SrcLocs    []ssa.Inst // the CLIF instruction each MachInst lowers from, or InstNone
	blockStart []int      // blockStart[b] is the index into Insts where block b begins, post-finalize
	Succs      [][]int    // Succs[b] lists the block indices b can transfer control to
	Entry      int
	finalized  bool
}

// NewVCode returns an empty VCode ready to be filled in reverse order.
func NewVCode() *VCode {
	return &VCode{Operands: NewOperandCollector()}
}

// Push appends inst as the next-to-emit instruction (called during the
// backward emission pass, so the final caller-visible order is the reverse
// of push order until Finalize runs).
func (v *VCode) Push(inst MachInst, srcLoc ssa.Inst) {
	v.Insts = append(v.Insts, inst)
	v.SrcLocs = append(v.SrcLocs, srcLoc)
}

// StartBlock marks that the instructions pushed from here, until the next
// StartBlock call, belong to one block. Callers walk blocks last-to-first
// (mirroring the backward emission pass), so the true block index is
// resolved later, in Finalize.
func (v *VCode) StartBlock() {
	v.blockStart = append(v.blockStart, len(v.Insts))
}

// Finalize reverses the instruction stream (and the operand/clobber arrays
// in lockstep) and re-derives block-start offsets in final forward order, so
// indices read front to back in final emission order. It is idempotent;
// calling it twice is a no-op.
//
// blockStart is recorded in call order during the backward emission pass:
// entry i holds the pre-reversal index where the i-th StartBlock call's
// block begins, and blocks are visited last-to-first. With k := len
// (blockStart) calls and raw[k] defined as n (a sentinel one past the end),
// the block visited at call index i occupies the pre-reversal half-open
// range [raw[i], raw[i+1]); reversing the whole instruction stream maps that
// range to final forward range [n-raw[i+1], n-raw[i]). Since call index i
// corresponds to final block index k-1-i, final block b's start is
// n-raw[(k-1-b)+1] = n-raw[k-b].
func (v *VCode) Finalize() {
	if v.finalized {
		return
	}
	n := len(v.Insts)
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		v.Insts[i], v.Insts[j] = v.Insts[j], v.Insts[i]
		v.SrcLocs[i], v.SrcLocs[j] = v.SrcLocs[j], v.SrcLocs[i]
	}
	v.Operands.reverse()

	k := len(v.blockStart)
	raw := make([]int, k+1)
	copy(raw, v.blockStart)
	raw[k] = n
	final := make([]int, k)
	for b := 0; b < k; b++ {
		final[b] = n - raw[k-b]
	}
	v.blockStart = final
	v.finalized = true
}

// BlockRange returns the [start, end) instruction index range of block b
// (valid only after Finalize).
func (v *VCode) BlockRange(b int) (int, int) {
	start := v.blockStart[b]
	end := len(v.Insts)
	if b+1 < len(v.blockStart) {
		end = v.blockStart[b+1]
	}
	return start, end
}
