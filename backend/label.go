package backend

// Label identifies a block in lowering order (spec.md §4.2's "emit terminator
// using MachLabels"); it is resolved to a byte offset once the mach package
// lays out and finalizes the instruction stream. Using the lowering-order
// index directly as the label value means LowerBranch needs no separate
// label-allocation step: BuildBlockLoweringOrder already assigns every block
// its final position.
type Label int32

// LabelInvalid marks an operand that does not target a block (e.g. an
// indirect call through a register).
const LabelInvalid Label = -1
