package regalloc

import (
	"math"

	"github.com/clifgen/wazevo-clif/backend"
)

// SpillWeight is a priority used to rank bundles for the assignment queue
// and eviction decisions: higher weight is less willing to be evicted/
// spilled. Stored as the upper 16 bits of an IEEE-754 float32 (a bfloat16-
// style truncation) for compactness, since exact precision doesn't matter
// for a priority ordering (spec.md §3.3).
type SpillWeight uint16

// MakeSpillWeight truncates f to its bfloat16-style representation.
func MakeSpillWeight(f float32) SpillWeight {
	return SpillWeight(math.Float32bits(f) >> 16)
}

// Float expands w back to a float32 (with the truncated mantissa bits
// zeroed).
func (w SpillWeight) Float() float32 {
	return math.Float32frombits(uint32(w) << 16)
}

// Constraint-kind priority contributions, combined with loop nesting depth
// to produce a use's weight (spec.md §4.3 step 2: "spill_weight combines
// constraint priority ... with loop depth").
const (
	weightFixedReg float32 = 2000
	weightRegister float32 = 1000
	weightLimit    float32 = 500
	weightAny      float32 = 100
	weightStack    float32 = 1
)

// weightForConstraint returns the base priority of a use with constraint c.
func weightForConstraint(c backend.OperandConstraint) float32 {
	switch c {
	case backend.ConstraintFixedReg:
		return weightFixedReg
	case backend.ConstraintReg, backend.ConstraintReuse:
		return weightRegister
	case backend.ConstraintAny:
		return weightAny
	default:
		return weightAny
	}
}

// ComputeUseWeight derives a use's SpillWeight from its operand constraint
// and the loop nesting depth of the block it occurs in: deeper loops weight
// uses more heavily, since spilling inside a hot loop is more costly.
func ComputeUseWeight(c backend.OperandConstraint, loopDepth int) SpillWeight {
	base := weightForConstraint(c)
	mult := float32(int(1) << uint(min(loopDepth, 8)))
	return MakeSpillWeight(base * mult)
}
