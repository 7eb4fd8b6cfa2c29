package ssa

// Successors returns the blocks that control may transfer to directly from
// the terminator of b (the last instruction in b's layout order). Lowering
// and the register allocator's BlockLoweringOrder use this to build the CFG
// without re-deriving it from raw instruction data (spec.md §4.2).
func (f *Function) Successors(b Block) []Block {
	last := f.Layout.LastInst(b)
	if !last.Valid() {
		return nil
	}
	d := f.DFG.Inst(last)
	switch d.Opcode {
	case OpJump:
		return []Block{d.blocks[0]}
	case OpBrif:
		return []Block{d.blocks[0], d.blocks[1]}
	case OpBrTable:
		jt := f.JumpTables[d.JumpTable]
		succs := make([]Block, 0, jt.Len()+1)
		succs = append(succs, jt.Default.Block)
		for _, t := range jt.Targets {
			succs = append(succs, t.Block)
		}
		return succs
	default: // OpReturn, OpTrap: no successors
		return nil
	}
}
