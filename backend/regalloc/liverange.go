package regalloc

import (
	"github.com/clifgen/wazevo-clif/arena"
	"github.com/clifgen/wazevo-clif/backend"
)

// Use records one occurrence of a LiveRange's VReg at a program point, the
// operand slot it fills (so rewriting can substitute the allocated location
// back into the right operand), and its spill weight.
type Use struct {
	At         ProgPoint
	OperandIdx int
	Weight     SpillWeight
	Constraint backend.OperandConstraint
	FixedReg   backend.PReg
}

// LiveRange is a half-open [From, To) span during which one VReg holds a
// live value, confined to a single block (spec.md §3.3): a VReg live across
// several blocks is represented by one LiveRange per block, grouped into a
// LiveBundle.
type LiveRange struct {
	VReg     backend.VReg
	Block    int
	From, To ProgPoint
	Uses     []Use
	// DefReq is the requirement contributed by this range's defining
	// operand, or nil if the range's value is defined elsewhere (live-in
	// from a predecessor block rather than locally defined).
	DefReq *Requirement
}

// Requirement folds the range's def and use constraints into a single
// merged Requirement (spec.md §4.3 step 3/4).
func (r *LiveRange) Requirement() (Requirement, error) {
	req := Requirement{Kind: ReqAny}
	if r.DefReq != nil {
		req = *r.DefReq
	}
	var err error
	for _, u := range r.Uses {
		ureq := RequirementFromOperandConstraint(u.Constraint, u.FixedReg)
		req, err = req.Merge(ureq)
		if err != nil {
			return Requirement{}, err
		}
	}
	return req, nil
}

// Overlaps reports whether r and o cover any common point.
func (r *LiveRange) Overlaps(o *LiveRange) bool {
	return r.From.Before(o.To) && o.From.Before(r.To)
}

// MaxWeight returns the highest-priority use weight in the range, or zero
// for a range with no recorded uses (a pure def with no following use).
func (r *LiveRange) MaxWeight() SpillWeight {
	var max SpillWeight
	for _, u := range r.Uses {
		if u.Weight > max {
			max = u.Weight
		}
	}
	return max
}

// BuildLiveRanges constructs one LiveRange per (VReg, block) pair the VReg
// is live through, by walking each block's instructions in reverse
// (spec.md §4.3 step 2), seeded by the already-computed per-block
// livein/liveout sets.
func BuildLiveRanges(vcode *backend.VCode, liveness *Liveness, loopDepth func(block int) int, pool *arena.Pool[LiveRange]) map[backend.VReg][]*LiveRange {
	result := make(map[backend.VReg][]*LiveRange)

	for b := 0; b < len(vcode.Succs); b++ {
		start, end := vcode.BlockRange(b)
		active := make(map[backend.VReg]*LiveRange)
		for v := range liveness.LiveOut[b] {
			r := pool.Allocate()
			*r = LiveRange{VReg: v, Block: b, To: ProgPoint{Inst: end, At: PosEarly}}
			active[v] = r
		}

		depth := loopDepth(b)
		for i := end - 1; i >= start; i-- {
			ops := vcode.Operands.Operands(i)
			for opIdx, op := range ops {
				if op.Kind != backend.OperandDef {
					continue
				}
				point := ProgPoint{Inst: i, At: posOf(op.Pos)}
				defReq := RequirementFromOperandConstraint(op.Constraint, op.FixedReg)
				if r, ok := active[op.VReg]; ok {
					r.From = point
					r.DefReq = &defReq
					result[op.VReg] = append(result[op.VReg], r)
					delete(active, op.VReg)
				} else {
					// Dead def: still needs a location for correctness even
					// though nothing reads it.
					r := pool.Allocate()
					*r = LiveRange{VReg: op.VReg, Block: b, From: point, To: point, DefReq: &defReq}
					result[op.VReg] = append(result[op.VReg], r)
				}
				_ = opIdx
			}
			for opIdx, op := range ops {
				if op.Kind != backend.OperandUse {
					continue
				}
				point := ProgPoint{Inst: i, At: posOf(op.Pos)}
				weight := ComputeUseWeight(op.Constraint, depth)
				use := Use{At: point, OperandIdx: opIdx, Weight: weight, Constraint: op.Constraint, FixedReg: op.FixedReg}
				if r, ok := active[op.VReg]; ok {
					r.Uses = append(r.Uses, use)
				} else {
					r := pool.Allocate()
					*r = LiveRange{VReg: op.VReg, Block: b, To: point, Uses: []Use{use}}
					active[op.VReg] = r
				}
			}
		}

		for v, r := range active {
			r.From = ProgPoint{Inst: start, At: PosEarly}
			result[v] = append(result[v], r)
			_ = v
		}
	}
	return result
}
