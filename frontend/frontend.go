// Package frontend implements the Wasm-to-CLIF translator (spec.md §4.1): it
// consumes a wasmir.Function's decoded operator sequence and drives
// ssa.Builder to produce a CLIF ssa.Function, maintaining the operand/control
// stacks and the block-parameter/critical-edge bookkeeping the translation
// needs. It plays the role wazero's frontend package plays for wazero,
// generalized to read wasmir.Operator streams instead of raw Wasm bytecode
// (the decoding step itself is an external collaborator, spec.md §1).
package frontend

import (
	"fmt"

	"github.com/clifgen/wazevo-clif/ssa"
	"github.com/clifgen/wazevo-clif/wasmir"
)

// executionContextPtrTyp / moduleContextPtrTyp match every function's two
// implicit leading parameters (spec.md §4.2 ABI integration assumes a
// 64-bit target throughout).
const executionContextPtrTyp, moduleContextPtrTyp = ssa.TypeI64, ssa.TypeI64

// ExecContextLayout locates the runtime trampolines a compiled function
// reaches through the execution-context pointer for operations CLIF has no
// native opcode for (memory.grow/copy/fill).
type ExecContextLayout struct {
	MemoryGrowTrampolineOffset int64
	MemoryCopyTrampolineOffset int64
	MemoryFillTrampolineOffset int64
}

// ModuleLayout locates the per-module state a compiled function reaches
// through the module-context pointer: the active memory's base/length,
// the flat global-variable array, and the indirect-call table.
type ModuleLayout struct {
	MemoryBaseOffset  int64
	MemoryLenOffset   int64
	GlobalsBaseOffset int64
	TableBaseOffset   int64
}

func (m ModuleLayout) globalOffset(idx uint32) int64 { return m.GlobalsBaseOffset + int64(idx)*8 }
func (m ModuleLayout) tableSlotOffset(idx uint32) int64 {
	return m.TableBaseOffset + int64(idx)*8
}

// Compiler lowers one wasmir.Function at a time to a CLIF ssa.Function.
// Module-wide data (type table, the function-index-to-type-index table, and
// global types) is set up once by NewCompiler and reused by every call to
// Compile.
type Compiler struct {
	sigs        []*ssa.Signature // one per wasmir type index, wrapped with the two ctx params
	funcSigIdx  []uint32         // funcIndex -> type index, for call's target signature
	globalTypes []ssa.Type
	layout      ModuleLayout
	execLayout  ExecContextLayout

	memoryGrowSig  ssa.Signature
	memoryCopySig  ssa.Signature
	memoryFillSig  ssa.Signature
}

// NewCompiler builds the module-wide tables every per-function Compile call
// shares. types is indexed by wasmir type index; funcSigIdx maps a Wasm
// function index (as referenced by call) to its entry in types;
// globalTypes is indexed by global index.
func NewCompiler(types []wasmir.FuncType, funcSigIdx []uint32, globalTypes []wasmir.ValType, layout ModuleLayout, execLayout ExecContextLayout) *Compiler {
	c := &Compiler{
		funcSigIdx: funcSigIdx,
		layout:     layout,
		execLayout: execLayout,
	}
	c.sigs = make([]*ssa.Signature, len(types))
	for i, t := range types {
		sig := signatureForFuncType(t)
		c.sigs[i] = &sig
	}
	c.globalTypes = make([]ssa.Type, len(globalTypes))
	for i, t := range globalTypes {
		c.globalTypes[i] = valTypeToSSA(t)
	}
	c.memoryGrowSig = ssa.Signature{Params: []ssa.AbiParam{{Type: ssa.TypeI64}, {Type: ssa.TypeI32}}, Results: []ssa.AbiParam{{Type: ssa.TypeI32}}}
	c.memoryCopySig = ssa.Signature{Params: []ssa.AbiParam{{Type: ssa.TypeI64}, {Type: ssa.TypeI32}, {Type: ssa.TypeI32}, {Type: ssa.TypeI32}}}
	c.memoryFillSig = ssa.Signature{Params: []ssa.AbiParam{{Type: ssa.TypeI64}, {Type: ssa.TypeI32}, {Type: ssa.TypeI32}, {Type: ssa.TypeI32}}}
	return c
}

func valTypeToSSA(t wasmir.ValType) ssa.Type {
	switch t {
	case wasmir.ValTypeI32:
		return ssa.TypeI32
	case wasmir.ValTypeI64:
		return ssa.TypeI64
	case wasmir.ValTypeF32:
		return ssa.TypeF32
	case wasmir.ValTypeF64:
		return ssa.TypeF64
	default:
		panic(fmt.Sprintf("invalid wasmir value type %d", t))
	}
}

// signatureForFuncType wraps a Wasm-level function type with the two
// implicit leading parameters every compiled function takes.
func signatureForFuncType(t wasmir.FuncType) ssa.Signature {
	params := make([]ssa.AbiParam, len(t.Params)+2)
	params[0] = ssa.AbiParam{Type: executionContextPtrTyp, Purpose: ssa.ArgumentPurposeVMContext}
	params[1] = ssa.AbiParam{Type: moduleContextPtrTyp, Purpose: ssa.ArgumentPurposeVMContext}
	for i, p := range t.Params {
		params[i+2] = ssa.AbiParam{Type: valTypeToSSA(p)}
	}
	results := make([]ssa.AbiParam, len(t.Results))
	for i, r := range t.Results {
		results[i] = ssa.AbiParam{Type: valTypeToSSA(r)}
	}
	return ssa.Signature{Params: params, Results: results}
}

// funcState holds everything Compile resets for one function translation;
// splitting it out of Compiler keeps the module-wide tables immutable and
// safe to share across concurrent Compile calls (one funcState per call).
type funcState struct {
	f       *ssa.Function
	builder *ssa.Builder

	execCtxPtrValue, moduleCtxPtrValue ssa.Value

	locals []ssa.Variable // one per Wasm local, params included

	memoryBaseVar, memoryLenVar ssa.Variable

	funcRefCache map[uint32]ssa.FuncRef

	// predCount tracks how many edges (registered only by this package's own
	// Jump/Brif/BrTable helpers) target a block, so switchTo can tell a
	// translated continuation is actually dead code (spec.md §4.1's
	// reachability flag governs operand emission, but a block can also be
	// unreachable because every branch into it was itself dead).
	predCount map[ssa.Block]int

	// returnTramp is a lazily-created block that forwards its parameters to
	// a CLIF Return; branches that target the implicit outermost function
	// frame (Wasm's "br" to the function body itself) jump here instead of
	// to a real block, since Builder has no direct "conditional return".
	returnTramp ssa.Block

	state loweringState
}

// Compile translates fn (whose locals/body were already parsed from wasmir
// text or produced by a real decoder) into a fresh CLIF function named name.
func (c *Compiler) Compile(name string, fn wasmir.Function) (*ssa.Function, error) {
	if int(fn.TypeIndex) >= len(c.sigs) {
		return nil, fmt.Errorf("frontend: function %q: type index %d out of range", name, fn.TypeIndex)
	}
	sig := c.sigs[fn.TypeIndex]
	f := ssa.NewFunction(name, sig)
	b := ssa.NewBuilder(f)

	fs := &funcState{
		f:            f,
		builder:      b,
		funcRefCache: make(map[uint32]ssa.FuncRef),
		predCount:    make(map[ssa.Block]int),
		returnTramp:  ssa.BlockNone,
	}

	entry := b.CreateBlock()
	b.AppendBlock(entry)
	b.SetCurrentBlock(entry)

	fs.execCtxPtrValue = f.DFG.AppendBlockParam(entry, executionContextPtrTyp)
	fs.moduleCtxPtrValue = f.DFG.AppendBlockParam(entry, moduleContextPtrTyp)

	wasmParamTypes := sig.Params[2:]
	numParams := len(wasmParamTypes)
	fs.locals = make([]ssa.Variable, numParams+len(fn.Locals))
	for i, p := range wasmParamTypes {
		v := b.DeclareVariable(p.Type)
		fs.locals[i] = v
		paramValue := f.DFG.AppendBlockParam(entry, p.Type)
		b.DefineVariableInCurrentBlock(v, paramValue)
	}
	for i, lt := range fn.Locals {
		t := valTypeToSSA(lt)
		v := b.DeclareVariable(t)
		fs.locals[numParams+i] = v
		b.DefineVariableInCurrentBlock(v, zeroValue(b, t))
	}

	fs.memoryBaseVar = b.DeclareVariable(ssa.TypeI64)
	fs.memoryLenVar = b.DeclareVariable(ssa.TypeI32)
	c.reloadMemoryBaseLen(fs)

	// entry has no predecessors; nothing will ever call AddEdge on it.
	b.Seal(entry)

	if err := c.lowerBody(fs, fn.Body); err != nil {
		return nil, fmt.Errorf("frontend: function %q: %w", name, err)
	}
	return f, nil
}

func zeroValue(b *ssa.Builder, t ssa.Type) ssa.Value {
	if t.IsFloat() {
		return b.Fconst(t, 0)
	}
	return b.Iconst(t, 0)
}

func (c *Compiler) reloadMemoryBaseLen(fs *funcState) {
	b := fs.builder
	base := b.Load(ssa.TypeI64, fs.moduleCtxPtrValue, c.layout.MemoryBaseOffset, ssa.MemFlags{})
	length := b.Load(ssa.TypeI32, fs.moduleCtxPtrValue, c.layout.MemoryLenOffset, ssa.MemFlags{})
	b.DefineVariableInCurrentBlock(fs.memoryBaseVar, base)
	b.DefineVariableInCurrentBlock(fs.memoryLenVar, length)
}

const pageSizeBits = 16 // 65536-byte Wasm pages

func (c *Compiler) loadGlobal(fs *funcState, idx uint32) ssa.Value {
	t := c.globalTypes[idx]
	return fs.builder.Load(t, fs.moduleCtxPtrValue, c.layout.globalOffset(idx), ssa.MemFlags{})
}

func (c *Compiler) storeGlobal(fs *funcState, idx uint32, v ssa.Value) {
	fs.builder.Store(fs.moduleCtxPtrValue, v, c.layout.globalOffset(idx), ssa.MemFlags{})
}

// lowerLoad composes a possibly-narrow Wasm load from the IR's plain Load
// plus a widening extend, rather than adding a fused load+extend opcode; a
// later sinking pass can still fuse the pair at the MachInst level.
func (c *Compiler) lowerLoad(fs *funcState, op wasmir.Operator) ssa.Value {
	b := fs.builder
	addr := c.effectiveAddress(fs, op.Mem)
	full := valTypeToSSA(op.ResultType)
	fromBits := op.Width * 8
	toBits := full.Bits()
	if fromBits == toBits {
		return b.Load(full, addr, 0, ssa.MemFlags{})
	}
	narrow := narrowIntType(op.Width)
	v := b.Load(narrow, addr, 0, ssa.MemFlags{})
	if op.Signed {
		return b.Sextend(full, v, fromBits, toBits)
	}
	return b.Uextend(full, v, fromBits, toBits)
}

func (c *Compiler) lowerStore(fs *funcState, op wasmir.Operator) {
	b := fs.builder
	val := fs.state.pop()
	addr := c.effectiveAddress(fs, op.Mem)
	full := valTypeToSSA(op.ValType)
	fromBits := full.Bits()
	toBits := op.Width * 8
	if fromBits == toBits {
		b.Store(addr, val, 0, ssa.MemFlags{})
		return
	}
	narrow := narrowIntType(op.Width)
	b.Store(addr, b.Ireduce(narrow, val, fromBits, toBits), 0, ssa.MemFlags{})
}

func narrowIntType(width byte) ssa.Type {
	switch width {
	case 1:
		return ssa.TypeI8
	case 2:
		return ssa.TypeI16
	default:
		return ssa.TypeI32
	}
}

// effectiveAddress pops the Wasm-level address operand and adds the memory
// base and the memarg's static offset, yielding the raw host pointer Load
// and Store consume.
func (c *Compiler) effectiveAddress(fs *funcState, mem wasmir.MemArg) ssa.Value {
	b := fs.builder
	idx := fs.state.pop()
	idx64 := b.Uextend(ssa.TypeI64, idx, 32, 64)
	base := b.FindValue(fs.memoryBaseVar)
	addr := b.Iadd(ssa.TypeI64, base, idx64)
	if mem.Offset != 0 {
		addr = b.Iadd(ssa.TypeI64, addr, b.Iconst(ssa.TypeI64, int64(mem.Offset)))
	}
	return addr
}

func (c *Compiler) lowerMemorySize(fs *funcState) ssa.Value {
	b := fs.builder
	length := b.FindValue(fs.memoryLenVar)
	return b.Ushr(ssa.TypeI32, length, b.Iconst(ssa.TypeI32, pageSizeBits))
}

// lowerMemoryGrow and its copy/fill siblings dispatch through a function
// pointer parked in the execution context at a fixed offset, the same
// trampoline pattern the teacher uses for memory.grow: CLIF has no native
// opcode for these, so they become calls to host-provided routines.
func (c *Compiler) lowerMemoryGrow(fs *funcState, deltaPages ssa.Value) ssa.Value {
	b := fs.builder
	ptr := b.Load(ssa.TypeI64, fs.execCtxPtrValue, c.execLayout.MemoryGrowTrampolineOffset, ssa.MemFlags{})
	results := b.CallIndirect(ptr, c.declareSig(fs, c.memoryGrowSig), []ssa.Value{fs.moduleCtxPtrValue, deltaPages})
	c.reloadMemoryBaseLen(fs)
	return results[0]
}

func (c *Compiler) lowerMemoryCopy(fs *funcState, dst, src, n ssa.Value) {
	b := fs.builder
	ptr := b.Load(ssa.TypeI64, fs.execCtxPtrValue, c.execLayout.MemoryCopyTrampolineOffset, ssa.MemFlags{})
	b.CallIndirect(ptr, c.declareSig(fs, c.memoryCopySig), []ssa.Value{fs.moduleCtxPtrValue, dst, src, n})
}

func (c *Compiler) lowerMemoryFill(fs *funcState, dst, val, n ssa.Value) {
	b := fs.builder
	ptr := b.Load(ssa.TypeI64, fs.execCtxPtrValue, c.execLayout.MemoryFillTrampolineOffset, ssa.MemFlags{})
	b.CallIndirect(ptr, c.declareSig(fs, c.memoryFillSig), []ssa.Value{fs.moduleCtxPtrValue, dst, val, n})
}

func (c *Compiler) declareSig(fs *funcState, sig ssa.Signature) ssa.SigRef {
	s := sig
	return fs.f.DeclareSignature(&s)
}

// lowerCall emits a direct call to funcIdx, reusing a single FuncRef per
// callee across the whole function body via funcRefCache.
func (c *Compiler) lowerCall(fs *funcState, funcIdx uint32) error {
	if int(funcIdx) >= len(c.funcSigIdx) {
		return fmt.Errorf("frontend: call: function index %d out of range", funcIdx)
	}
	typeIdx := c.funcSigIdx[funcIdx]
	sig := c.sigs[typeIdx]
	ref, ok := fs.funcRefCache[funcIdx]
	if !ok {
		sigRef := fs.f.DeclareSignature(sig)
		ref = fs.f.DeclareFuncRef(fmt.Sprintf("func%d", funcIdx), sigRef)
		fs.funcRefCache[funcIdx] = ref
	}
	numArgs := len(sig.Params) - 2
	args := make([]ssa.Value, numArgs+2)
	args[0], args[1] = fs.execCtxPtrValue, fs.moduleCtxPtrValue
	fs.state.nPopInto(numArgs, args[2:])
	results := fs.builder.Call(ref, sigRefOf(fs, ref), args)
	for _, r := range results {
		fs.state.push(r)
	}
	return nil
}

func sigRefOf(fs *funcState, ref ssa.FuncRef) ssa.SigRef {
	return fs.f.ImportedFuncs[ref].Signature
}

// lowerCallIndirect loads the callee from the flat function table at the
// popped table index and validates it against typeIdx's signature.
func (c *Compiler) lowerCallIndirect(fs *funcState, typeIdx uint32, tableIdx ssa.Value) error {
	if int(typeIdx) >= len(c.sigs) {
		return fmt.Errorf("frontend: call_indirect: type index %d out of range", typeIdx)
	}
	b := fs.builder
	sig := c.sigs[typeIdx]
	tableIdx64 := b.Uextend(ssa.TypeI64, tableIdx, 32, 64)
	slotBase := b.Iadd(ssa.TypeI64, fs.moduleCtxPtrValue, b.Iconst(ssa.TypeI64, c.layout.TableBaseOffset))
	slotOffset := b.Imul(ssa.TypeI64, tableIdx64, b.Iconst(ssa.TypeI64, 8))
	slotAddr := b.Iadd(ssa.TypeI64, slotBase, slotOffset)
	callee := b.Load(ssa.TypeI64, slotAddr, 0, ssa.MemFlags{})

	sigRef := c.declareSig(fs, *sig)
	numArgs := len(sig.Params) - 2
	args := make([]ssa.Value, numArgs+2)
	args[0], args[1] = fs.execCtxPtrValue, fs.moduleCtxPtrValue
	fs.state.nPopInto(numArgs, args[2:])
	results := b.CallIndirect(callee, sigRef, args)
	for _, r := range results {
		fs.state.push(r)
	}
	return nil
}
