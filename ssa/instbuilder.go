package ssa

// This file holds the Builder's instruction-emission surface: one method per
// CLIF opcode the core needs (spec.md §6.1), each allocating the
// instruction, appending it to the current block's layout position, and
// returning whatever result Value(s) it produces.

func (b *Builder) emit(data InstructionData) Inst {
	i := b.F.DFG.MakeInst(data)
	b.insertCur(i)
	return i
}

func (b *Builder) emit1(data InstructionData, t Type) Value {
	i := b.emit(data)
	return b.F.DFG.MakeInstResults(i, t)[0]
}

// Iconst materializes an integer constant of type t.
func (b *Builder) Iconst(t Type, imm int64) Value {
	return b.emit1(InstructionData{Opcode: OpIconst, ctrlType: t, Imm64: imm}, t)
}

// Fconst materializes a floating point constant of type t from its raw bit
// pattern (so callers don't need a second, float-specific instruction data
// field).
func (b *Builder) Fconst(t Type, bits uint64) Value {
	return b.emit1(InstructionData{Opcode: OpFconst, ctrlType: t, Imm64: int64(bits)}, t)
}

func (b *Builder) binary(op Opcode, t Type, x, y Value) Value {
	i := b.emit(InstructionData{Opcode: op, ctrlType: t})
	b.F.DFG.SetArgs(i, []Value{x, y})
	return b.F.DFG.MakeInstResults(i, t)[0]
}

func (b *Builder) unary(op Opcode, t Type, x Value) Value {
	i := b.emit(InstructionData{Opcode: op, ctrlType: t})
	b.F.DFG.SetArgs(i, []Value{x})
	return b.F.DFG.MakeInstResults(i, t)[0]
}

func (b *Builder) Iadd(t Type, x, y Value) Value { return b.binary(OpIadd, t, x, y) }
func (b *Builder) Isub(t Type, x, y Value) Value { return b.binary(OpIsub, t, x, y) }
func (b *Builder) Imul(t Type, x, y Value) Value { return b.binary(OpImul, t, x, y) }
func (b *Builder) Sdiv(t Type, x, y Value) Value { return b.binary(OpSdiv, t, x, y) }
func (b *Builder) Udiv(t Type, x, y Value) Value { return b.binary(OpUdiv, t, x, y) }
func (b *Builder) Srem(t Type, x, y Value) Value { return b.binary(OpSrem, t, x, y) }
func (b *Builder) Urem(t Type, x, y Value) Value { return b.binary(OpUrem, t, x, y) }
func (b *Builder) Band(t Type, x, y Value) Value { return b.binary(OpBand, t, x, y) }
func (b *Builder) Bor(t Type, x, y Value) Value  { return b.binary(OpBor, t, x, y) }
func (b *Builder) Bxor(t Type, x, y Value) Value { return b.binary(OpBxor, t, x, y) }
func (b *Builder) Ishl(t Type, x, y Value) Value { return b.binary(OpIshl, t, x, y) }
func (b *Builder) Ushr(t Type, x, y Value) Value { return b.binary(OpUshr, t, x, y) }
func (b *Builder) Sshr(t Type, x, y Value) Value { return b.binary(OpSshr, t, x, y) }
func (b *Builder) Rotl(t Type, x, y Value) Value { return b.binary(OpRotl, t, x, y) }
func (b *Builder) Rotr(t Type, x, y Value) Value { return b.binary(OpRotr, t, x, y) }

func (b *Builder) Clz(t Type, x Value) Value    { return b.unary(OpClz, t, x) }
func (b *Builder) Ctz(t Type, x Value) Value    { return b.unary(OpCtz, t, x) }
func (b *Builder) Popcnt(t Type, x Value) Value { return b.unary(OpPopcnt, t, x) }

// Icmp compares x and y (of the operand type, inferred from x) under cond
// and yields an i32 of 1 or 0, matching Wasm's boolean result convention.
func (b *Builder) Icmp(cond Cond, x, y Value) Value {
	i := b.emit(InstructionData{Opcode: OpIcmp, Cond: cond})
	b.F.DFG.SetArgs(i, []Value{x, y})
	return b.F.DFG.MakeInstResults(i, TypeI32)[0]
}

func (b *Builder) Fadd(t Type, x, y Value) Value { return b.binary(OpFadd, t, x, y) }
func (b *Builder) Fsub(t Type, x, y Value) Value { return b.binary(OpFsub, t, x, y) }
func (b *Builder) Fmul(t Type, x, y Value) Value { return b.binary(OpFmul, t, x, y) }
func (b *Builder) Fdiv(t Type, x, y Value) Value { return b.binary(OpFdiv, t, x, y) }
func (b *Builder) Fmin(t Type, x, y Value) Value { return b.binary(OpFmin, t, x, y) }
func (b *Builder) Fmax(t Type, x, y Value) Value { return b.binary(OpFmax, t, x, y) }

func (b *Builder) Fneg(t Type, x Value) Value { return b.unary(OpFneg, t, x) }
func (b *Builder) Fabs(t Type, x Value) Value { return b.unary(OpFabs, t, x) }
func (b *Builder) Sqrt(t Type, x Value) Value { return b.unary(OpSqrt, t, x) }

func (b *Builder) Fcmp(cond Cond, x, y Value) Value {
	i := b.emit(InstructionData{Opcode: OpFcmp, Cond: cond})
	b.F.DFG.SetArgs(i, []Value{x, y})
	return b.F.DFG.MakeInstResults(i, TypeI32)[0]
}

// Select picks x if cond != 0, else y; result type follows x/y's type t.
func (b *Builder) Select(t Type, cond, x, y Value) Value {
	i := b.emit(InstructionData{Opcode: OpSelect, ctrlType: t})
	b.F.DFG.SetArgs(i, []Value{cond, x, y})
	return b.F.DFG.MakeInstResults(i, t)[0]
}

func (b *Builder) convert(op Opcode, to Type, x Value, fromBits, toBits byte) Value {
	i := b.emit(InstructionData{Opcode: op, ctrlType: to, fromBits: fromBits, toBits: toBits})
	b.F.DFG.SetArgs(i, []Value{x})
	return b.F.DFG.MakeInstResults(i, to)[0]
}

func (b *Builder) Uextend(to Type, x Value, fromBits, toBits byte) Value {
	return b.convert(OpUextend, to, x, fromBits, toBits)
}
func (b *Builder) Sextend(to Type, x Value, fromBits, toBits byte) Value {
	return b.convert(OpSextend, to, x, fromBits, toBits)
}
func (b *Builder) Ireduce(to Type, x Value, fromBits, toBits byte) Value {
	return b.convert(OpIreduce, to, x, fromBits, toBits)
}
func (b *Builder) Fpromote(to Type, x Value) Value { return b.convert(OpFpromote, to, x, 0, 0) }
func (b *Builder) Fdemote(to Type, x Value) Value  { return b.convert(OpFdemote, to, x, 0, 0) }
func (b *Builder) FcvtToSint(to Type, x Value) Value {
	return b.convert(OpFcvtToSint, to, x, 0, 0)
}
func (b *Builder) FcvtToUint(to Type, x Value) Value {
	return b.convert(OpFcvtToUint, to, x, 0, 0)
}
func (b *Builder) FcvtFromSint(to Type, x Value) Value {
	return b.convert(OpFcvtFromSint, to, x, 0, 0)
}
func (b *Builder) FcvtFromUint(to Type, x Value) Value {
	return b.convert(OpFcvtFromUint, to, x, 0, 0)
}
func (b *Builder) Bitcast(to Type, x Value) Value { return b.convert(OpBitcast, to, x, 0, 0) }

// Load reads a value of type t from base+offset.
func (b *Builder) Load(t Type, base Value, offset int64, flags MemFlags) Value {
	i := b.emit(InstructionData{Opcode: OpLoad, ctrlType: t, Imm64: offset, Mem: flags})
	b.F.DFG.SetArgs(i, []Value{base})
	return b.F.DFG.MakeInstResults(i, t)[0]
}

// Store writes val to base+offset.
func (b *Builder) Store(base, val Value, offset int64, flags MemFlags) {
	i := b.emit(InstructionData{Opcode: OpStore, Imm64: offset, Mem: flags})
	b.F.DFG.SetArgs(i, []Value{base, val})
}

// Jump unconditionally transfers control to target, carrying args as its
// block parameters, and registers this edge with target's predecessor list.
func (b *Builder) Jump(target Block, args []Value) Inst {
	i := b.emit(InstructionData{Opcode: OpJump, blocks: [2]Block{target, BlockNone}})
	b.F.DFG.SetBlockArg(i, 0, args)
	b.AddEdge(b.cur, i, 0, target)
	return i
}

// Brif transfers control to thenBlock if cond != 0, else to elseBlock, and
// registers both edges.
func (b *Builder) Brif(cond Value, thenBlock Block, thenArgs []Value, elseBlock Block, elseArgs []Value) Inst {
	i := b.emit(InstructionData{Opcode: OpBrif, blocks: [2]Block{thenBlock, elseBlock}})
	b.F.DFG.SetArgs(i, []Value{cond})
	b.F.DFG.SetBlockArg(i, 0, thenArgs)
	b.F.DFG.SetBlockArg(i, 1, elseArgs)
	b.AddEdge(b.cur, i, 0, thenBlock)
	b.AddEdge(b.cur, i, 1, elseBlock)
	return i
}

// BrTable dispatches on index through jt (already built with trampoline
// targets per spec.md §4.1) and registers every case, including the default,
// as an edge of its (parameter-less) target; which is -1 because a br_table
// target never carries its own block arguments (the trampoline forwards
// them via its own Jump instead).
func (b *Builder) BrTable(index Value, jt JumpTable) Inst {
	i := b.emit(InstructionData{Opcode: OpBrTable, JumpTable: jt})
	b.F.DFG.SetArgs(i, []Value{index})
	data := &b.F.JumpTables[jt]
	b.AddEdge(b.cur, i, -1, data.Default.Block)
	for _, t := range data.Targets {
		b.AddEdge(b.cur, i, -1, t.Block)
	}
	return i
}

// Return exits the function, yielding args as the results.
func (b *Builder) Return(args []Value) Inst {
	i := b.emit(InstructionData{Opcode: OpReturn})
	b.F.DFG.SetArgs(i, args)
	return i
}

// Trap unconditionally aborts execution (the lowering of Wasm's unreachable).
func (b *Builder) Trap() Inst {
	return b.emit(InstructionData{Opcode: OpTrap})
}

// Call invokes the direct callee fn (whose signature is sig) with args and
// returns one Value per declared result.
func (b *Builder) Call(fn FuncRef, sig SigRef, args []Value) []Value {
	i := b.emit(InstructionData{Opcode: OpCall, FuncRef: fn, SigRef: sig})
	b.F.DFG.SetArgs(i, args)
	resultTypes := b.F.ImportedSignatures[sig].ResultTypes()
	return b.F.DFG.MakeInstResults(i, resultTypes...)
}

// CallIndirect invokes callee (a function pointer value, typically loaded
// from a table slot) validated against sig's type, with args, returning one
// Value per declared result.
func (b *Builder) CallIndirect(callee Value, sig SigRef, args []Value) []Value {
	i := b.emit(InstructionData{Opcode: OpCallIndirect, SigRef: sig})
	b.F.DFG.SetArgs(i, append([]Value{callee}, args...))
	resultTypes := b.F.ImportedSignatures[sig].ResultTypes()
	return b.F.DFG.MakeInstResults(i, resultTypes...)
}
