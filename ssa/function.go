package ssa

// StackSlotData describes one spill/local stack slot declared ahead of
// lowering (e.g. for address-taken locals); the register allocator's own
// spill slots are separate and tracked by backend/regalloc's SpillSet.
type StackSlotData struct {
	Size  uint32
	Align uint8
}

// Function is one CLIF function: its signature, declared stack slots, the
// DataFlowGraph that owns its values/instructions, the Layout that orders
// its blocks, and the tables of signatures/funcs it can call (spec.md §3.1).
type Function struct {
	Name       string
	Signature  *Signature
	StackSlots []StackSlotData
	DFG        *DataFlowGraph
	Layout     *Layout
	JumpTables []JumpTableData

	// ImportedSignatures / ImportedFuncs back SigRef / FuncRef operands of
	// call_indirect and call respectively.
	ImportedSignatures []*Signature
	ImportedFuncs       []FuncRefData
}

// FuncRefData names the callee of a direct call: either a local function
// (by index, resolved by the linker — out of this core's scope per
// spec.md §1) or an imported one.
type FuncRefData struct {
	Name      string
	Signature SigRef
}

// NewFunction returns an empty function ready for translation.
func NewFunction(name string, sig *Signature) *Function {
	return &Function{
		Name:      name,
		Signature: sig,
		DFG:       NewDataFlowGraph(),
		Layout:    NewLayout(),
	}
}

// CreateStackSlot declares a new stack slot and returns its ID.
func (f *Function) CreateStackSlot(size uint32, align uint8) StackSlot {
	id := StackSlot(len(f.StackSlots))
	f.StackSlots = append(f.StackSlots, StackSlotData{Size: size, Align: align})
	return id
}

// DeclareSignature registers sig in the function's imported-signature table
// and returns the SigRef call/call_indirect instructions use to refer to it.
func (f *Function) DeclareSignature(sig *Signature) SigRef {
	id := SigRef(len(f.ImportedSignatures))
	f.ImportedSignatures = append(f.ImportedSignatures, sig)
	return id
}

// DeclareFuncRef registers a direct-call target and returns its FuncRef.
func (f *Function) DeclareFuncRef(name string, sig SigRef) FuncRef {
	id := FuncRef(len(f.ImportedFuncs))
	f.ImportedFuncs = append(f.ImportedFuncs, FuncRefData{Name: name, Signature: sig})
	return id
}

// CreateJumpTable registers a jump table and returns its ID.
func (f *Function) CreateJumpTable(data JumpTableData) JumpTable {
	id := JumpTable(len(f.JumpTables))
	f.JumpTables = append(f.JumpTables, data)
	return id
}
