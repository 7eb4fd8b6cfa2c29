package regalloc

import (
	"fmt"

	"github.com/clifgen/wazevo-clif/backend"
)

// RequirementKind is the kind of location constraint a bundle's merged
// Requirement carries (spec.md §3.3/§4.3).
type RequirementKind byte

const (
	ReqAny RequirementKind = iota
	ReqRegister
	ReqFixedReg
	ReqLimit
	ReqStack
	ReqFixedStack
)

func (k RequirementKind) String() string {
	switch k {
	case ReqAny:
		return "any"
	case ReqRegister:
		return "register"
	case ReqFixedReg:
		return "fixed_reg"
	case ReqLimit:
		return "limit"
	case ReqStack:
		return "stack"
	case ReqFixedStack:
		return "fixed_stack"
	default:
		return "invalid"
	}
}

// Requirement is a bundle's combined location constraint.
type Requirement struct {
	Kind  RequirementKind
	Preg  backend.PReg // valid iff Kind == ReqFixedReg || Kind == ReqFixedStack
	Limit int          // valid iff Kind == ReqLimit: max number of distinct PRegs usable
}

// RequirementFromOperandConstraint derives the single-use Requirement of
// one Operand from its constraint and fixed PReg alone; no constraint maps to
// ReqLimit.
func RequirementFromOperandConstraint(c backend.OperandConstraint, fixed backend.PReg) Requirement {
	switch c {
	case backend.ConstraintFixedReg:
		return Requirement{Kind: ReqFixedReg, Preg: fixed}
	case backend.ConstraintReg, backend.ConstraintReuse:
		return Requirement{Kind: ReqRegister}
	default:
		return Requirement{Kind: ReqAny}
	}
}

// Merge combines a and b associatively and commutatively, per spec.md
// §4.3's table, returning an error if the combination is unsatisfiable.
func (a Requirement) Merge(b Requirement) (Requirement, error) {
	if a.Kind == ReqAny {
		return b, nil
	}
	if b.Kind == ReqAny {
		return a, nil
	}
	switch {
	case a.Kind == ReqRegister && b.Kind == ReqRegister:
		return Requirement{Kind: ReqRegister}, nil
	case a.Kind == ReqStack && b.Kind == ReqStack:
		return Requirement{Kind: ReqStack}, nil
	case a.Kind == ReqFixedReg && b.Kind == ReqFixedReg:
		if a.Preg == b.Preg {
			return a, nil
		}
		return Requirement{}, fmt.Errorf("conflicting fixed-register requirements: %s vs %s", a.Preg, b.Preg)
	case a.Kind == ReqLimit && b.Kind == ReqLimit:
		if b.Limit < a.Limit {
			return b, nil
		}
		return a, nil
	case a.Kind == ReqRegister && b.Kind == ReqFixedReg:
		return b, nil
	case a.Kind == ReqFixedReg && b.Kind == ReqRegister:
		return a, nil
	case a.Kind == ReqRegister && b.Kind == ReqStack:
		return Requirement{}, fmt.Errorf("conflicting requirements: register vs stack")
	case a.Kind == ReqStack && b.Kind == ReqRegister:
		return Requirement{}, fmt.Errorf("conflicting requirements: register vs stack")
	case a.Kind == ReqRegister && b.Kind == ReqLimit:
		return b, nil
	case a.Kind == ReqLimit && b.Kind == ReqRegister:
		return a, nil
	case a.Kind == ReqFixedStack && b.Kind == ReqFixedStack:
		if a.Preg == b.Preg {
			return a, nil
		}
		return Requirement{}, fmt.Errorf("conflicting fixed-stack requirements")
	default:
		return Requirement{}, fmt.Errorf("conflicting requirements: %s vs %s", a.Kind, b.Kind)
	}
}
