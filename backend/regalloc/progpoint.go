// Package regalloc implements the bundle-based linear-scan register
// allocator specified in spec.md §4.3/§3.3: liveness, live-range
// construction, bundle formation, priority-queue assignment with eviction
// and whole-bundle spilling (bundles are never split), and
// rewrite-with-move-insertion. It plays the role
// wazero's internal/engine/wazevo/backend/regalloc package plays for
// wazero, though the algorithm itself is a different family (wazero's
// regalloc.go implements Chaitin-style graph coloring; spec.md §4.3
// prescribes the bundle-based linear-scan family used by Cranelift's
// regalloc2) -- the arena/bitset/interface idioms below are grounded on
// wazero's package even where the algorithm diverges.
package regalloc

import "github.com/clifgen/wazevo-clif/backend"

// Pos distinguishes the two sub-positions of one instruction a VReg may be
// live at: Early (operand reads at instruction start) and Late (operand
// writes at instruction end). This mirrors backend.OperandPos so a
// ProgPoint can be derived directly from an Operand's position.
type Pos byte

const (
	PosEarly Pos = iota
	PosLate
)

// ProgPoint is a total-order coordinate within one function's VCode: the
// instruction index, then Early/Late (spec.md §3.3, glossary "Program
// point").
type ProgPoint struct {
	Inst int
	At   Pos
}

// Before reports whether p strictly precedes q.
func (p ProgPoint) Before(q ProgPoint) bool {
	if p.Inst != q.Inst {
		return p.Inst < q.Inst
	}
	return p.At < q.At
}

// Equal reports whether p and q are the same point.
func (p ProgPoint) Equal(q ProgPoint) bool { return p.Inst == q.Inst && p.At == q.At }

func posOf(p backend.OperandPos) Pos {
	if p == backend.PosEarly {
		return PosEarly
	}
	return PosLate
}
