package ssa

// BlockCall is a (Block, argument-list) pair: a single edge target that
// carries block-parameter arguments, shared by Jump/Brif targets and by
// jump table entries (spec.md §3.1).
type BlockCall struct {
	Block Block
	Args  []Value
}

// JumpTableData holds the default target and the per-case targets of a
// br_table. Unlike a Wasm-level br_table, every BlockCall here is already an
// edge to a *trampoline* block carrying no further arguments: hardware
// indirect-jump tables cannot themselves carry block arguments, so the
// frontend's edge splitting (spec.md §4.1 "br_table with arguments") has
// already moved every argument-carrying edge into its own trampoline block
// by the time a JumpTableData is constructed.
type JumpTableData struct {
	Default BlockCall
	Targets []BlockCall
}

// Len returns the number of explicit (non-default) cases.
func (j *JumpTableData) Len() int { return len(j.Targets) }
