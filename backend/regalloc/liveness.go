package regalloc

import (
	"fmt"

	"github.com/clifgen/wazevo-clif/backend"
)

// Liveness holds the per-block livein/liveout VReg sets computed by a
// worklist fixed-point (spec.md §4.3 step 1).
type Liveness struct {
	LiveIn, LiveOut []map[backend.VReg]bool
}

// EntryLiveinError is returned when the entry block has a nonempty livein
// set: a VReg is read before ever being defined, a programmer error rather
// than something the allocator can recover from (spec.md §7, "EntryLivein").
type EntryLiveinError struct {
	VRegs []backend.VReg
}

func (e *EntryLiveinError) Error() string {
	return fmt.Sprintf("entry block has %d live-in virtual register(s): indicates use before definition", len(e.VRegs))
}

// ComputeLiveness runs the fixed-point worklist over vcode's blocks. Two
// consecutive runs over an unchanged VCode always yield identical sets
// (spec.md §8 testable property 5): the computation is a pure function of
// (operands, successors), with no hidden mutable state.
func ComputeLiveness(vcode *backend.VCode, entryBlock int) (*Liveness, error) {
	n := len(vcode.Succs)
	l := &Liveness{
		LiveIn:  make([]map[backend.VReg]bool, n),
		LiveOut: make([]map[backend.VReg]bool, n),
	}
	for b := 0; b < n; b++ {
		l.LiveIn[b] = map[backend.VReg]bool{}
		l.LiveOut[b] = map[backend.VReg]bool{}
	}

	changed := true
	for changed {
		changed = false
		for b := n - 1; b >= 0; b-- {
			out := map[backend.VReg]bool{}
			for _, s := range vcode.Succs[b] {
				for v := range l.LiveIn[s] {
					out[v] = true
				}
			}
			in := map[backend.VReg]bool{}
			for v := range out {
				in[v] = true
			}
			start, end := vcode.BlockRange(b)
			for i := end - 1; i >= start; i-- {
				ops := vcode.Operands.Operands(i)
				for _, op := range ops {
					if op.Kind == backend.OperandDef {
						delete(in, op.VReg)
					}
				}
				for _, op := range ops {
					if op.Kind == backend.OperandUse {
						in[op.VReg] = true
					}
				}
			}
			if !setEqual(in, l.LiveIn[b]) {
				l.LiveIn[b] = in
				changed = true
			}
			if !setEqual(out, l.LiveOut[b]) {
				l.LiveOut[b] = out
				changed = true
			}
		}
	}

	if len(l.LiveIn[entryBlock]) > 0 {
		var leaked []backend.VReg
		for v := range l.LiveIn[entryBlock] {
			leaked = append(leaked, v)
		}
		return l, &EntryLiveinError{VRegs: leaked}
	}
	return l, nil
}

func setEqual(a, b map[backend.VReg]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if !b[v] {
			return false
		}
	}
	return true
}
