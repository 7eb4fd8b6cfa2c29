package ssa

import "fmt"

// Variable names a source-level local (a Wasm local, in this core's only
// client) whose SSA value changes as control flow proceeds. Variables never
// appear in the final CLIF; FindValue/DefineVariable resolve them to plain
// Values as the function is built (spec.md §3.2).
type Variable uint32

// Builder constructs one Function's CLIF, maintaining the per-block
// bookkeeping (predecessors, sealedness, pending variable definitions)
// needed to run Braun et al.'s SSA construction algorithm as blocks are
// translated in arbitrary order, without a separate phi-insertion pass
// (spec.md §3.2, §4.1).
type Builder struct {
	F        *Function
	varTypes []Type
	blocks   []blockBuilderData
	cur      Block
}

type predEdge struct {
	pred   Block
	branch Inst
	// which selects blockArgs[which] on branch to patch with this edge's
	// contribution to a newly discovered block parameter; -1 marks an edge
	// (e.g. a br_table case) whose target is known to take no parameters and
	// so is never patched.
	which int
}

type blockBuilderData struct {
	sealed        bool
	singlePred    Block
	preds         []predEdge
	lastDefs      map[Variable]Value
	unknownValues map[Variable]Value
}

// NewBuilder returns a Builder over a freshly created, empty Function.
func NewBuilder(f *Function) *Builder {
	return &Builder{F: f, cur: BlockNone}
}

func (b *Builder) ensureBlockData(blk Block) {
	for Block(len(b.blocks)) <= blk {
		b.blocks = append(b.blocks, blockBuilderData{singlePred: BlockNone})
	}
	if b.blocks[blk].lastDefs == nil {
		b.blocks[blk].lastDefs = make(map[Variable]Value)
		b.blocks[blk].unknownValues = make(map[Variable]Value)
		b.blocks[blk].singlePred = BlockNone
	}
}

// CreateBlock allocates a new block. It is not placed in the layout until
// AppendBlock is called, and not reachable from FindValue until it is both
// placed and has had every predecessor registered via AddEdge.
func (b *Builder) CreateBlock() Block {
	blk := b.F.DFG.MakeBlock()
	b.ensureBlockData(blk)
	return blk
}

// AppendBlock places blk at the end of the function's current layout order.
func (b *Builder) AppendBlock(blk Block) {
	b.F.Layout.AppendBlock(blk)
}

// SetCurrentBlock directs subsequent instruction-insertion calls at blk.
func (b *Builder) SetCurrentBlock(blk Block) { b.cur = blk }

// CurrentBlock returns the block set by the last SetCurrentBlock call.
func (b *Builder) CurrentBlock() Block { return b.cur }

func (b *Builder) insertCur(i Inst) {
	b.F.Layout.AppendInst(b.cur, i)
}

// DeclareVariable introduces a new Variable of type t.
func (b *Builder) DeclareVariable(t Type) Variable {
	v := Variable(len(b.varTypes))
	b.varTypes = append(b.varTypes, t)
	return v
}

func (b *Builder) variableType(v Variable) Type {
	t := b.varTypes[v]
	if t.invalid() {
		panic(fmt.Sprintf("variable %d is not declared", v))
	}
	return t
}

// DefineVariable records that, within blk, variable now holds value. The
// actual SSA value(s) implementing the variable's data flow across blocks are
// resolved lazily by FindValue.
func (b *Builder) DefineVariable(variable Variable, value Value, blk Block) {
	b.ensureBlockData(blk)
	b.blocks[blk].lastDefs[variable] = value
}

// DefineVariableInCurrentBlock is DefineVariable(variable, value, b.cur).
func (b *Builder) DefineVariableInCurrentBlock(variable Variable, value Value) {
	b.DefineVariable(variable, value, b.cur)
}

// AddEdge registers blk as a predecessor of succ, reached via branch
// instruction's blockArgs[which] (or which=-1 if succ is known to take no
// block parameters, e.g. a br_table trampoline target). succ must not be
// sealed yet.
func (b *Builder) AddEdge(blk Block, branch Inst, which int, succ Block) {
	b.ensureBlockData(succ)
	if b.blocks[succ].sealed {
		panic(fmt.Sprintf("BUG: adding predecessor to already-sealed %s", succ))
	}
	b.blocks[succ].preds = append(b.blocks[succ].preds, predEdge{pred: blk, branch: branch, which: which})
}

// FindValue resolves variable's current value as seen from the current
// block.
func (b *Builder) FindValue(variable Variable) Value {
	return b.findValue(b.variableType(variable), variable, b.cur)
}

// findValue implements the recursive lookup of Braun, Buchwald, Hack,
// Lei{\ss}a, Mallon, Zwinkau, "Simple and Efficient Construction of Static
// Single Assignment Form" (CC 2013), section 2: a value already defined in
// blk is returned directly; an unsealed blk gets a placeholder that is
// resolved once sealed; a sealed blk with exactly one predecessor forwards
// the lookup to it with no block parameter needed; otherwise a new block
// parameter is created and every predecessor is made to supply it.
func (b *Builder) findValue(typ Type, variable Variable, blk Block) Value {
	b.ensureBlockData(blk)
	bd := &b.blocks[blk]
	if val, ok := bd.lastDefs[variable]; ok {
		return val
	}
	if !bd.sealed {
		value := b.F.DFG.AllocPlaceholder(typ)
		bd.lastDefs[variable] = value
		bd.unknownValues[variable] = value
		return value
	}
	if bd.singlePred.Valid() {
		return b.findValue(typ, variable, bd.singlePred)
	}

	paramValue := b.F.DFG.AppendBlockParam(blk, typ)
	b.DefineVariable(variable, paramValue, blk)
	for i := range bd.preds {
		pred := bd.preds[i]
		value := b.findValue(typ, variable, pred.pred)
		if pred.which >= 0 {
			b.F.DFG.AppendBlockArg(pred.branch, pred.which, value)
		}
	}
	return paramValue
}

// Seal declares that every predecessor of blk has now been registered via
// AddEdge; only after Seal may FindValue calls targeting blk (directly, or
// transitively through an unsealed successor) be resolved to their final
// values. Calling AddEdge on blk after Seal panics.
func (b *Builder) Seal(blk Block) {
	b.ensureBlockData(blk)
	bd := &b.blocks[blk]
	if len(bd.preds) == 1 {
		bd.singlePred = bd.preds[0].pred
	}
	bd.sealed = true

	for variable, placeholder := range bd.unknownValues {
		typ := b.variableType(variable)
		b.F.DFG.AppendExistingBlockParam(blk, placeholder)
		for i := range bd.preds {
			pred := bd.preds[i]
			predValue := b.findValue(typ, variable, pred.pred)
			if pred.which >= 0 {
				b.F.DFG.AppendBlockArg(pred.branch, pred.which, predValue)
			}
		}
	}
}
