package backend

// OperandConstraint restricts where the allocator may place an Operand's
// VReg (spec.md §3.2).
type OperandConstraint byte

const (
	// ConstraintAny lets the allocator choose any PReg or a stack slot.
	ConstraintAny OperandConstraint = iota
	// ConstraintReg requires a PReg, any one of the class's.
	ConstraintReg
	// ConstraintFixedReg requires a specific PReg.
	ConstraintFixedReg
	// ConstraintReuse ties this operand's location to another operand's
	// (by index into the same instruction), for 2-operand-form ISAs.
	ConstraintReuse
)

// OperandKind says whether an Operand reads or writes its VReg.
type OperandKind byte

const (
	OperandUse OperandKind = iota
	OperandDef
)

// OperandPos says whether an Operand is live at the start (Early) or end
// (Late) of its instruction; early defs and late uses let overlapping
// operands of one instruction be distinguished for live-range purposes.
type OperandPos byte

const (
	PosEarly OperandPos = iota
	PosLate
)

// Operand is one register-allocation-relevant operand slot of a MachInst.
type Operand struct {
	VReg       VReg
	Constraint OperandConstraint
	FixedReg   PReg // valid iff Constraint == ConstraintFixedReg
	ReuseIndex int  // valid iff Constraint == ConstraintReuse: index into the owning instruction's Operand slice
	Kind       OperandKind
	Pos        OperandPos
}

// OperandCollector accumulates the Operands of one emitted instruction into
// a flat, per-function vector; each instruction's final range is
// [start, end) into this vector (spec.md §4.2).
type OperandCollector struct {
	operands []Operand
	// instRanges[i] is the [start,end) operand range of MachInst index i.
	instRanges []operandRange
	clobbers   []PRegSet
}

type operandRange struct{ start, end int }

// NewOperandCollector returns an empty collector.
func NewOperandCollector() *OperandCollector { return &OperandCollector{} }

func (c *OperandCollector) add(o Operand) {
	c.operands = append(c.operands, o)
}

// RegUse records a use in any register of its class (ConstraintReg) at the
// early position.
func (c *OperandCollector) RegUse(v VReg) {
	c.add(Operand{VReg: v, Constraint: ConstraintReg, Kind: OperandUse, Pos: PosEarly})
}

// RegDef records a plain register def at the late position.
func (c *OperandCollector) RegDef(v VReg) {
	c.add(Operand{VReg: v, Constraint: ConstraintReg, Kind: OperandDef, Pos: PosLate})
}

// RegEarlyDef records a def that is live starting at the instruction's
// start, so it cannot share a location with any of the instruction's uses
// (needed for 3-address-form emulation on 2-address ISAs).
func (c *OperandCollector) RegEarlyDef(v VReg) {
	c.add(Operand{VReg: v, Constraint: ConstraintReg, Kind: OperandDef, Pos: PosEarly})
}

// RegFixedUse records a use that must be placed in a specific PReg (e.g. the
// shift-count-in-CL convention on x86).
func (c *OperandCollector) RegFixedUse(v VReg, p PReg) {
	c.add(Operand{VReg: v, Constraint: ConstraintFixedReg, FixedReg: p, Kind: OperandUse, Pos: PosEarly})
}

// RegFixedDef records a def that must land in a specific PReg (e.g. a
// multiply's high-half result in RDX).
func (c *OperandCollector) RegFixedDef(v VReg, p PReg) {
	c.add(Operand{VReg: v, Constraint: ConstraintFixedReg, FixedReg: p, Kind: OperandDef, Pos: PosLate})
}

// RegReuseDef records a def whose location must equal the operand at
// useIndex (2-operand-form ISAs where the destination overwrites a source).
func (c *OperandCollector) RegReuseDef(v VReg, useIndex int) {
	c.add(Operand{VReg: v, Constraint: ConstraintReuse, ReuseIndex: useIndex, Kind: OperandDef, Pos: PosLate})
}

// AnyDef records a def the allocator may place in a register or directly in
// a stack slot (e.g. values immediately spilled).
func (c *OperandCollector) AnyDef(v VReg) {
	c.add(Operand{VReg: v, Constraint: ConstraintAny, Kind: OperandDef, Pos: PosLate})
}

// AnyLateUse records a use, live at the instruction's end, with no location
// constraint.
func (c *OperandCollector) AnyLateUse(v VReg) {
	c.add(Operand{VReg: v, Constraint: ConstraintAny, Kind: OperandUse, Pos: PosLate})
}

// FinishInst closes the operand range for the instruction just emitted and
// records its clobber set.
func (c *OperandCollector) FinishInst(clobbers PRegSet) {
	start := 0
	if n := len(c.instRanges); n > 0 {
		start = c.instRanges[n-1].end
	}
	c.instRanges = append(c.instRanges, operandRange{start: start, end: len(c.operands)})
	c.clobbers = append(c.clobbers, clobbers)
}

// Operands returns the operand slice for MachInst index i.
func (c *OperandCollector) Operands(i int) []Operand {
	r := c.instRanges[i]
	return c.operands[r.start:r.end]
}

// Clobbers returns the clobber set recorded for MachInst index i.
func (c *OperandCollector) Clobbers(i int) PRegSet { return c.clobbers[i] }

// reverse flips the per-instruction range/clobber bookkeeping in lockstep
// with VCode.Finalize's reversal of the instruction stream itself; the
// underlying operands backing array needs no reordering, only which
// instruction index each recorded range belongs to.
func (c *OperandCollector) reverse() {
	n := len(c.instRanges)
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		c.instRanges[i], c.instRanges[j] = c.instRanges[j], c.instRanges[i]
		c.clobbers[i], c.clobbers[j] = c.clobbers[j], c.clobbers[i]
	}
}
