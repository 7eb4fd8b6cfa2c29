package ssa

// DataFlowGraph owns every value, instruction, block parameter, value list,
// and the constant pool of one Function. Cross-references are dense integer
// indices, never pointers, so the whole graph lives in a handful of flat
// arenas (spec.md §9 "entity graphs by index, not pointer").
type DataFlowGraph struct {
	values       []valueData
	insts        []InstructionData
	blockParams  [][]Value // indexed by Block; each element's def is valueDefParam
	valueLists   valueListPool
	Signatures   []Signature
	ImportedSigs []Signature
}

type valueData struct {
	typ Type
	def ValueDef
}

// NewDataFlowGraph returns an empty graph ready for MakeBlock/MakeInst calls.
func NewDataFlowGraph() *DataFlowGraph {
	return &DataFlowGraph{}
}

// MakeBlock allocates a new, parameter-less block and returns its ID.
// IDs are handed out densely starting at 0, so a fixed sequence of
// MakeBlock/AppendBlockParam/MakeInst calls always produces the same IDs
// (testable property: DFG determinism, spec.md §8.3).
func (g *DataFlowGraph) MakeBlock() Block {
	id := Block(len(g.blockParams))
	g.blockParams = append(g.blockParams, nil)
	return id
}

// AppendBlockParam adds a parameter of type t to block b and returns the
// Value representing it.
func (g *DataFlowGraph) AppendBlockParam(b Block, t Type) Value {
	idx := len(g.blockParams[b])
	v := g.allocValue(t, ValueDef{kind: valueDefParam, Block: b, ParamIndex: idx})
	g.blockParams[b] = append(g.blockParams[b], v)
	return v
}

// AllocPlaceholder allocates a value with no definition yet. Used by SSA
// construction's incomplete-CFG case (Braun et al.) to speculatively stand in
// for a variable's value in an unsealed block before it is known whether the
// value will need to become a real block parameter.
func (g *DataFlowGraph) AllocPlaceholder(t Type) Value {
	return g.allocValue(t, ValueDef{kind: valueDefResult, Inst: InstNone})
}

// BlockParams returns the parameters of b, in declaration order.
func (g *DataFlowGraph) BlockParams(b Block) []Value {
	return g.blockParams[b]
}

func (g *DataFlowGraph) allocValue(t Type, def ValueDef) Value {
	id := Value(len(g.values))
	g.values = append(g.values, valueData{typ: t, def: def})
	return id
}

// MakeInst appends a new instruction with the given payload and returns its
// ID. The instruction initially has zero results; call MakeInstResult(s) to
// attach them once the controlling type is known.
func (g *DataFlowGraph) MakeInst(data InstructionData) Inst {
	id := Inst(len(g.insts))
	data.args = listNone
	data.results = listNone
	data.blockArgs[0] = listNone
	data.blockArgs[1] = listNone
	g.insts = append(g.insts, data)
	return id
}

// Inst returns the InstructionData for i, for in-place field updates by the
// Layout/builder (e.g. patching Brif's block targets).
func (g *DataFlowGraph) Inst(i Inst) *InstructionData {
	return &g.insts[i]
}

// SetArgs replaces the instruction's argument list.
func (g *DataFlowGraph) SetArgs(i Inst, args []Value) {
	g.insts[i].args = g.valueLists.fromSlice(args)
}

func (g *DataFlowGraph) instArgs(d *InstructionData) []Value {
	return g.valueLists.view(d.args)
}

// Args returns the instruction's argument values.
func (g *DataFlowGraph) Args(i Inst) []Value { return g.instArgs(&g.insts[i]) }

// SetBlockArg sets the arguments carried across blocks[which] (0 for Jump /
// Brif-then, 1 for Brif-else).
func (g *DataFlowGraph) SetBlockArg(i Inst, which int, args []Value) {
	g.insts[i].blockArgs[which] = g.valueLists.fromSlice(args)
}

func (g *DataFlowGraph) BlockArgs(i Inst, which int) []Value {
	return g.valueLists.view(g.insts[i].blockArgs[which])
}

// MakeInstResults attaches one result per entry of types to i, in order, and
// returns them. Most instructions have exactly one result; call/call_indirect
// are the exception (spec.md §3.1, multi-value Wasm calls) and pass one Type
// per returned value.
func (g *DataFlowGraph) MakeInstResults(i Inst, types ...Type) []Value {
	for idx, t := range types {
		v := g.allocValue(t, ValueDef{kind: valueDefResult, Inst: i, OutputIndex: idx})
		g.valueLists.append(&g.insts[i].results, v)
	}
	return g.valueLists.view(g.insts[i].results)
}

// AppendBlockArg appends one more argument to the block-arg list carried
// across blocks[which] of branch instruction i, without disturbing any
// earlier argument's identity. Used to patch already-emitted Jump/Brif
// instructions once a predecessor's definition of a newly-discovered block
// parameter becomes known (Braun et al.'s incomplete-CFG resolution).
func (g *DataFlowGraph) AppendBlockArg(i Inst, which int, v Value) {
	g.valueLists.append(&g.insts[i].blockArgs[which], v)
}

// AppendExistingBlockParam attaches an already-allocated value v as the next
// parameter of block b, re-tagging its ValueDef as a block parameter. Used
// when a placeholder value allocated speculatively by SSA construction turns
// out to need to become a real block parameter (spec.md §3.2, Braun et al.).
func (g *DataFlowGraph) AppendExistingBlockParam(b Block, v Value) {
	idx := len(g.blockParams[b])
	g.values[v].def = ValueDef{kind: valueDefParam, Block: b, ParamIndex: idx}
	g.blockParams[b] = append(g.blockParams[b], v)
}

// InstResults returns the results produced by i.
func (g *DataFlowGraph) InstResults(i Inst) []Value {
	return g.valueLists.view(g.insts[i].results)
}

// ValueType returns the static type of v (following no aliasing: aliases
// carry the same type as their target by construction).
func (g *DataFlowGraph) ValueType(v Value) Type {
	return g.values[v].typ
}

// ValueDef returns how v was defined. It does not resolve aliases; call
// ResolveAliases first if you need the canonical definition.
func (g *DataFlowGraph) ValueDef(v Value) ValueDef {
	return g.values[v].def
}

// ChangeToAliasOf rewrites v so that it becomes an alias of original. Used
// by the frontend to fold block-parameter copies and by optimization passes
// to replace a value without renumbering its uses.
func (g *DataFlowGraph) ChangeToAliasOf(v, original Value) {
	g.values[v].def = ValueDef{kind: valueDefAlias, Original: original}
}

// ResolveAliases follows an alias chain to the value that actually defines
// the data, idempotently (testable property, spec.md §8.4): calling it again
// on its own result is a no-op.
func (g *DataFlowGraph) ResolveAliases(v Value) Value {
	for {
		d := g.values[v].def
		if d.kind != valueDefAlias {
			return v
		}
		v = d.Original
	}
}
