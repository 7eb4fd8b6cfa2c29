package regalloc

import (
	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/ssa"
)

// testBlock describes one block's instructions for buildVCode, in final
// forward order; each entry is a function that records the instruction's
// operands via the collector.
type testBlock struct {
	insts []func(*backend.OperandCollector)
	succs []int
}

// buildVCode assembles a VCode from blocks (already in final forward order)
// using the real Push/StartBlock/Finalize contract: it visits blocks and
// their instructions in reverse, exactly as backend.Lower does, so Finalize
// produces the same result a real lowering pass would.
func buildVCode(blocks []testBlock) *backend.VCode {
	vc := backend.NewVCode()
	for bi := len(blocks) - 1; bi >= 0; bi-- {
		vc.StartBlock()
		b := blocks[bi]
		for ii := len(b.insts) - 1; ii >= 0; ii-- {
			b.insts[ii](vc.Operands)
			vc.Operands.FinishInst(backend.PRegSet{})
			vc.Push(nil, ssa.InstNone)
		}
	}
	vc.Finalize()
	vc.Succs = make([][]int, len(blocks))
	for i, b := range blocks {
		vc.Succs[i] = b.succs
	}
	return vc
}

func use(v backend.VReg) func(*backend.OperandCollector) {
	return func(c *backend.OperandCollector) { c.RegUse(v) }
}

func def(v backend.VReg) func(*backend.OperandCollector) {
	return func(c *backend.OperandCollector) { c.RegDef(v) }
}

func defUse(d, u backend.VReg) func(*backend.OperandCollector) {
	return func(c *backend.OperandCollector) {
		c.RegUse(u)
		c.RegDef(d)
	}
}
