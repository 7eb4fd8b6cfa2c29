package arm64

import (
	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/ssa"
)

// Machine is the arm64 backend.LowerBackend: it turns one CLIF instruction
// (or block terminator) into a sequence of *Inst MachInsts, the AArch64
// counterpart of backend/isa/amd64.Machine (spec.md §4.2).
type Machine struct {
	ABI *backend.ABIMachineSpec
}

// NewMachine returns a Machine bound to spec, the resolved ABIMachineSpec for
// the function's calling convention (spec.md §4.2 "ABI integration").
func NewMachine(spec backend.ABIMachineSpec) *Machine {
	return &Machine{ABI: &spec}
}

func regClassOf(t ssa.Type) backend.RegClass {
	if t.IsFloat() || t.IsVector() {
		return backend.RegClassFloat
	}
	return backend.RegClassInt
}

func widthOf(t ssa.Type) byte {
	w := t.Bits() / 8
	if w < 4 {
		w = 4 // sub-word integers live in a 32-bit W register between ops
	}
	return w
}

type regOp func(c *backend.OperandCollector)

func use(v backend.VReg) regOp     { return func(c *backend.OperandCollector) { c.RegUse(v) } }
func regDef(v backend.VReg) regOp  { return func(c *backend.OperandCollector) { c.RegDef(v) } }
func fixedUse(v backend.VReg, p backend.PReg) regOp {
	return func(c *backend.OperandCollector) { c.RegFixedUse(v, p) }
}
func fixedDef(v backend.VReg, p backend.PReg) regOp {
	return func(c *backend.OperandCollector) { c.RegFixedDef(v, p) }
}

// emit records inst's operands (in ops order) and pushes inst onto
// ctx.VCode, keeping OperandCollector's per-instruction ranges in lockstep
// with VCode.Insts (both appended to exactly once per instruction, in the
// same backward-walk order backend.Lower drives).
func (m *Machine) emit(ctx *backend.LowerCtx, src ssa.Inst, inst *Inst, clobbers backend.PRegSet, ops ...regOp) {
	for _, o := range ops {
		o(ctx.VCode.Operands)
	}
	ctx.VCode.Operands.FinishInst(clobbers)
	ctx.VCode.Push(inst, src)
}

func amodeOf(base backend.VReg, disp int32) Amode { return Amode{Base: base, Disp: disp} }

// fresh allocates a VReg backed by a placeholder DFG value, for multi-step
// lowerings (division's quotient, popcount's intermediates) that need a
// temporary the rest of the function never references. Mirrors how
// isa/amd64.Machine.loadSignMask mints its scratch XMM value.
func fresh(ctx *backend.LowerCtx, t ssa.Type, class backend.RegClass) backend.VReg {
	return ctx.VRegOf(ctx.F.DFG.AllocPlaceholder(t), class)
}

// materializeImm loads imm into a fresh 64-bit GPR via OpMovImm64. Used
// anywhere an AArch64 instruction needs an operand in a register that the
// SSA program never names directly: shift counts, bitmask constants for
// popcount's software sequence.
func (m *Machine) materializeImm(ctx *backend.LowerCtx, src ssa.Inst, imm int64) backend.VReg {
	v := fresh(ctx, ssa.TypeI64, backend.RegClassInt)
	m.emit(ctx, src, &Inst{Op: OpMovImm64, Dst: v, Imm: imm, Width: 8}, backend.PRegSet{}, regDef(v))
	return v
}

// Lower translates one non-terminator CLIF instruction into MachInsts
// (spec.md §4.2, §6.1's minimum opcode list).
func (m *Machine) Lower(ctx *backend.LowerCtx, inst ssa.Inst) bool {
	dfg := ctx.F.DFG
	d := dfg.Inst(inst)
	args := dfg.Args(inst)
	results := dfg.InstResults(inst)

	var dst backend.VReg
	if len(results) == 1 {
		dst = ctx.VRegOf(results[0], regClassOf(dfg.ValueType(results[0])))
	}

	switch d.Opcode {
	case ssa.OpIconst:
		m.emit(ctx, inst, &Inst{Op: OpMovImm64, Dst: dst, Imm: d.Imm64, Width: widthOf(dfg.ValueType(results[0]))},
			backend.PRegSet{}, regDef(dst))

	case ssa.OpFconst:
		ft := dfg.ValueType(results[0])
		isDouble := ft == ssa.TypeF64
		gprW := byte(4)
		if isDouble {
			gprW = 8
		}
		scratch := m.materializeImm(ctx, inst, d.Imm64)
		m.emit(ctx, inst, &Inst{Op: OpFmovFromGPR, Dst: dst, Src1: scratch, Width: gprW, IsDouble: isDouble},
			backend.PRegSet{}, use(scratch), regDef(dst))

	case ssa.OpIadd, ssa.OpIsub, ssa.OpBand, ssa.OpBor, ssa.OpBxor:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		b := ctx.VRegOf(args[1], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		m.emit(ctx, inst, &Inst{Op: OpAluRRR, Dst: dst, Src1: a, Src2: b, Alu: intAluOp(d.Opcode), Width: w},
			backend.PRegSet{}, use(a), use(b), regDef(dst))

	case ssa.OpImul:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		b := ctx.VRegOf(args[1], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		m.emit(ctx, inst, &Inst{Op: OpMul, Dst: dst, Src1: a, Src2: b, Width: w},
			backend.PRegSet{}, use(a), use(b), regDef(dst))

	case ssa.OpFadd, ssa.OpFsub, ssa.OpFmul, ssa.OpFdiv, ssa.OpFmin, ssa.OpFmax:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		b := ctx.VRegOf(args[1], backend.RegClassFloat)
		isDouble := dfg.ValueType(results[0]) == ssa.TypeF64
		m.emit(ctx, inst, &Inst{Op: OpFaluRRR, Dst: dst, Src1: a, Src2: b, Alu: floatAluOp(d.Opcode), IsDouble: isDouble},
			backend.PRegSet{}, use(a), use(b), regDef(dst))

	case ssa.OpFneg:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		isDouble := dfg.ValueType(results[0]) == ssa.TypeF64
		m.emit(ctx, inst, &Inst{Op: OpFneg, Dst: dst, Src1: a, IsDouble: isDouble}, backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpFabs:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		isDouble := dfg.ValueType(results[0]) == ssa.TypeF64
		m.emit(ctx, inst, &Inst{Op: OpFabs, Dst: dst, Src1: a, IsDouble: isDouble}, backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpSqrt:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		isDouble := dfg.ValueType(results[0]) == ssa.TypeF64
		m.emit(ctx, inst, &Inst{Op: OpFsqrt, Dst: dst, Src1: a, IsDouble: isDouble}, backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpSdiv, ssa.OpUdiv:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		b := ctx.VRegOf(args[1], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		// SDIV/UDIV silently return 0 on a zero divisor instead of faulting
		// (contrast amd64's IDIV); NeedsTrapCheck flags this Inst for
		// InsertDivZeroTraps, which runs after regalloc/Rewrite and
		// synthesizes the check (spec.md §6.2's MachTrap).
		m.emit(ctx, inst, &Inst{Op: OpDivRRR, Dst: dst, Src1: a, Src2: b, Width: w, Signed: d.Opcode == ssa.OpSdiv, NeedsTrapCheck: TrapDivByZero},
			backend.PRegSet{}, use(a), use(b), regDef(dst))

	case ssa.OpSrem, ssa.OpUrem:
		// AArch64 has no remainder instruction: compute the quotient with
		// SDIV/UDIV into a temporary, then recover the remainder with MSUB
		// (dst = dividend - quotient*divisor).
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		b := ctx.VRegOf(args[1], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		q := fresh(ctx, ssa.TypeI64, backend.RegClassInt)
		m.emit(ctx, inst, &Inst{Op: OpDivRRR, Dst: q, Src1: a, Src2: b, Width: w, Signed: d.Opcode == ssa.OpSrem, NeedsTrapCheck: TrapDivByZero},
			backend.PRegSet{}, use(a), use(b), regDef(q))
		m.emit(ctx, inst, &Inst{Op: OpMsub, Dst: dst, Src1: q, Src2: b, Src3: a, Width: w},
			backend.PRegSet{}, use(q), use(b), use(a), regDef(dst))

	case ssa.OpIshl, ssa.OpUshr, ssa.OpSshr, ssa.OpRotr:
		// Unlike amd64's shift-count-must-be-in-CL constraint, AArch64's
		// register-shift instructions take the count from any GPR, so there
		// is no fixed-register fast path to special-case here.
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		b := ctx.VRegOf(args[1], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		m.emit(ctx, inst, &Inst{Op: OpShiftRRR, Dst: dst, Src1: a, Src2: b, Shift: shiftOpOf(d.Opcode), Width: w},
			backend.PRegSet{}, use(a), use(b), regDef(dst))

	case ssa.OpRotl:
		// AArch64 has no left-rotate instruction, only RORV: rotl(x,n) ==
		// rotr(x, width-n), so the count is negated against the type's bit
		// width before the RORV.
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		b := ctx.VRegOf(args[1], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		bits := m.materializeImm(ctx, inst, int64(w)*8)
		negB := fresh(ctx, ssa.TypeI64, backend.RegClassInt)
		m.emit(ctx, inst, &Inst{Op: OpAluRRR, Dst: negB, Src1: bits, Src2: b, Alu: AluSub, Width: w},
			backend.PRegSet{}, use(bits), use(b), regDef(negB))
		m.emit(ctx, inst, &Inst{Op: OpShiftRRR, Dst: dst, Src1: a, Src2: negB, Shift: ShiftRor, Width: w},
			backend.PRegSet{}, use(a), use(negB), regDef(dst))

	case ssa.OpClz:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		m.emit(ctx, inst, &Inst{Op: OpClz, Dst: dst, Src1: a, Width: w}, backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpCtz:
		// ctz(x) == clz(rbit(x)): reverse the bits, then count leading zeros.
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		rev := fresh(ctx, ssa.TypeI64, backend.RegClassInt)
		m.emit(ctx, inst, &Inst{Op: OpRbit, Dst: rev, Src1: a, Width: w}, backend.PRegSet{}, use(a), regDef(rev))
		m.emit(ctx, inst, &Inst{Op: OpClz, Dst: dst, Src1: rev, Width: w}, backend.PRegSet{}, use(rev), regDef(dst))

	case ssa.OpPopcnt:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		m.lowerPopcount(ctx, inst, w, a, dst)

	case ssa.OpIcmp, ssa.OpFcmp:
		m.lowerCmp(ctx, inst, d, args, dst)

	case ssa.OpSelect:
		c := ctx.VRegOf(args[0], backend.RegClassInt)
		rt := regClassOf(dfg.ValueType(results[0]))
		t := ctx.VRegOf(args[1], rt)
		f := ctx.VRegOf(args[2], rt)
		w := widthOf(dfg.ValueType(results[0]))
		m.emit(ctx, inst, &Inst{Op: OpCmpRI, Src1: c, Imm: 0, Width: 4}, backend.PRegSet{}, use(c))
		m.emit(ctx, inst, &Inst{Op: OpCsel, Dst: dst, Src1: t, Src2: f, Cc: CcNE, Width: w},
			backend.PRegSet{}, use(t), use(f), regDef(dst))

	case ssa.OpUextend, ssa.OpIreduce:
		m.lowerExtendOrReduce(ctx, inst, d.Opcode, args, results, dst, false)
	case ssa.OpSextend:
		m.lowerExtendOrReduce(ctx, inst, d.Opcode, args, results, dst, true)

	case ssa.OpBitcast:
		m.lowerBitcast(ctx, inst, args, results, dst)

	case ssa.OpFpromote:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		m.emit(ctx, inst, &Inst{Op: OpFcvt, Dst: dst, Src1: a, IsDouble: false}, backend.PRegSet{}, use(a), regDef(dst))
	case ssa.OpFdemote:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		m.emit(ctx, inst, &Inst{Op: OpFcvt, Dst: dst, Src1: a, IsDouble: true}, backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpFcvtToSint, ssa.OpFcvtToUint:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		w := widthOf(dfg.ValueType(results[0]))
		isDouble := dfg.ValueType(args[0]) == ssa.TypeF64
		op := OpFcvtzu
		if d.Opcode == ssa.OpFcvtToSint {
			op = OpFcvtzs
		}
		m.emit(ctx, inst, &Inst{Op: op, Dst: dst, Src1: a, Width: w, IsDouble: isDouble},
			backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpFcvtFromSint, ssa.OpFcvtFromUint:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		isDouble := dfg.ValueType(results[0]) == ssa.TypeF64
		op := OpUcvtf
		if d.Opcode == ssa.OpFcvtFromSint {
			op = OpScvtf
		}
		m.emit(ctx, inst, &Inst{Op: op, Dst: dst, Src1: a, Width: widthOf(dfg.ValueType(args[0])), IsDouble: isDouble},
			backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpLoad:
		base := ctx.VRegOf(args[0], backend.RegClassInt)
		rt := dfg.ValueType(results[0])
		m.emit(ctx, inst, &Inst{Op: OpLdr, Dst: dst, Amode: amodeOf(base, int32(d.Imm64)),
			Width: byte(rt.Bits() / 8), Signed: false}, backend.PRegSet{}, use(base), regDef(dst))

	case ssa.OpStore:
		base := ctx.VRegOf(args[1], backend.RegClassInt)
		val := ctx.VRegOf(args[0], regClassOf(dfg.ValueType(args[0])))
		m.emit(ctx, inst, &Inst{Op: OpStr, Src1: val, Amode: amodeOf(base, int32(d.Imm64)),
			Width: byte(dfg.ValueType(args[0]).Bits() / 8)}, backend.PRegSet{}, use(val), use(base))

	case ssa.OpCall:
		m.lowerCall(ctx, inst, d, args, results)
		return true
	case ssa.OpCallIndirect:
		m.lowerCallIndirect(ctx, inst, d, args, results)
		return true

	default:
		// OpReturn/OpTrap are always a block's terminator and so are lowered
		// by LowerBranch, never reached here; anything else is missing.
		panic("arm64: unlowered opcode " + d.Opcode.String())
	}
	return true
}

// lowerPopcount expands Popcnt into the classic SWAR bit-counting sequence
// (Hacker's Delight §5-1): AArch64 has no scalar GPR popcount instruction,
// only NEON's vector CNT, which this reduced encoder does not model, so the
// count is computed with plain ALU/shift ops instead.
func (m *Machine) lowerPopcount(ctx *backend.LowerCtx, inst ssa.Inst, w byte, a, dst backend.VReg) {
	c1 := m.materializeImm(ctx, inst, 0x5555555555555555)
	c2 := m.materializeImm(ctx, inst, 0x3333333333333333)
	c3 := m.materializeImm(ctx, inst, 0x0f0f0f0f0f0f0f0f)
	c4 := m.materializeImm(ctx, inst, 0x0101010101010101)
	one := m.materializeImm(ctx, inst, 1)
	two := m.materializeImm(ctx, inst, 2)
	four := m.materializeImm(ctx, inst, 4)
	finalShift := m.materializeImm(ctx, inst, int64(w)*8-8)

	alu := func(op AluOp, x, y backend.VReg) backend.VReg {
		r := fresh(ctx, ssa.TypeI64, backend.RegClassInt)
		m.emit(ctx, inst, &Inst{Op: OpAluRRR, Dst: r, Src1: x, Src2: y, Alu: op, Width: w}, backend.PRegSet{}, use(x), use(y), regDef(r))
		return r
	}
	lsr := func(x, amt backend.VReg) backend.VReg {
		r := fresh(ctx, ssa.TypeI64, backend.RegClassInt)
		m.emit(ctx, inst, &Inst{Op: OpShiftRRR, Dst: r, Src1: x, Src2: amt, Shift: ShiftLsr, Width: w}, backend.PRegSet{}, use(x), use(amt), regDef(r))
		return r
	}

	t1 := lsr(a, one)
	t2 := alu(AluAnd, t1, c1)
	t3 := alu(AluSub, a, t2) // x - ((x>>1)&0x5555...)

	t4 := alu(AluAnd, t3, c2)
	t5 := lsr(t3, two)
	t6 := alu(AluAnd, t5, c2)
	t7 := alu(AluAdd, t4, t6) // (t3&0x3333...) + ((t3>>2)&0x3333...)

	t8 := lsr(t7, four)
	t9 := alu(AluAdd, t7, t8)
	t10 := alu(AluAnd, t9, c3)

	t11 := fresh(ctx, ssa.TypeI64, backend.RegClassInt)
	m.emit(ctx, inst, &Inst{Op: OpMul, Dst: t11, Src1: t10, Src2: c4, Width: w}, backend.PRegSet{}, use(t10), use(c4), regDef(t11))

	m.emit(ctx, inst, &Inst{Op: OpShiftRRR, Dst: dst, Src1: t11, Src2: finalShift, Shift: ShiftLsr, Width: w},
		backend.PRegSet{}, use(t11), use(finalShift), regDef(dst))
}

func intAluOp(op ssa.Opcode) AluOp {
	switch op {
	case ssa.OpIadd:
		return AluAdd
	case ssa.OpIsub:
		return AluSub
	case ssa.OpBand:
		return AluAnd
	case ssa.OpBor:
		return AluOrr
	default: // OpBxor
		return AluEor
	}
}

func floatAluOp(op ssa.Opcode) AluOp {
	switch op {
	case ssa.OpFadd:
		return AluAdd
	case ssa.OpFsub:
		return AluSub
	case ssa.OpFmul:
		return AluMul
	case ssa.OpFdiv:
		return AluDiv
	case ssa.OpFmin:
		return AluMin
	default: // OpFmax
		return AluMax
	}
}

func shiftOpOf(op ssa.Opcode) ShiftOp {
	switch op {
	case ssa.OpIshl:
		return ShiftLsl
	case ssa.OpUshr:
		return ShiftLsr
	case ssa.OpSshr:
		return ShiftAsr
	default: // OpRotr; OpRotl is handled separately in Lower (see OpRotl case)
		return ShiftRor
	}
}

func intCc(c ssa.Cond) CondCode {
	switch c {
	case ssa.CondEqual:
		return CcEQ
	case ssa.CondNotEqual:
		return CcNE
	case ssa.CondSignedLessThan:
		return CcLT
	case ssa.CondSignedGreaterThanOrEqual:
		return CcGE
	case ssa.CondSignedGreaterThan:
		return CcGT
	case ssa.CondSignedLessThanOrEqual:
		return CcLE
	case ssa.CondUnsignedLessThan:
		return CcLO
	case ssa.CondUnsignedGreaterThanOrEqual:
		return CcHS
	case ssa.CondUnsignedGreaterThan:
		return CcHI
	default: // CondUnsignedLessThanOrEqual
		return CcLS
	}
}

// lowerCmp emits the compare and materializes a 0/1 result via CSET. Icmp
// compares two GPRs directly with SUBS; Fcmp uses FCMP, whose flags already
// match the HS/LS/HI/LO family for the orderings floatCc produces, same as
// isa/amd64.Machine.lowerCmp's analogous note about ucomiss/ucomisd.
func (m *Machine) lowerCmp(ctx *backend.LowerCtx, inst ssa.Inst, d *ssa.InstructionData, args []ssa.Value, dst backend.VReg) {
	if d.Opcode == ssa.OpIcmp {
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		b := ctx.VRegOf(args[1], backend.RegClassInt)
		w := widthOf(ctx.F.DFG.ValueType(args[0]))
		m.emit(ctx, inst, &Inst{Op: OpCmpRR, Src1: a, Src2: b, Width: w}, backend.PRegSet{}, use(a), use(b))
		m.emit(ctx, inst, &Inst{Op: OpCset, Dst: dst, Cc: intCc(d.Cond)}, backend.PRegSet{}, regDef(dst))
		return
	}
	a := ctx.VRegOf(args[0], backend.RegClassFloat)
	b := ctx.VRegOf(args[1], backend.RegClassFloat)
	isDouble := ctx.F.DFG.ValueType(args[0]) == ssa.TypeF64
	m.emit(ctx, inst, &Inst{Op: OpFcmp, Src1: a, Src2: b, IsDouble: isDouble}, backend.PRegSet{}, use(a), use(b))
	m.emit(ctx, inst, &Inst{Op: OpCset, Dst: dst, Cc: floatCc(d.Cond)}, backend.PRegSet{}, regDef(dst))
}

func floatCc(c ssa.Cond) CondCode {
	switch c {
	case ssa.CondEqual:
		return CcEQ
	case ssa.CondNotEqual:
		return CcNE
	case ssa.CondSignedLessThan:
		return CcLO
	case ssa.CondSignedGreaterThan:
		return CcHI
	case ssa.CondSignedLessThanOrEqual:
		return CcLS
	default: // CondSignedGreaterThanOrEqual
		return CcHS
	}
}

// lowerExtendOrReduce derives the conversion's bit widths from its argument
// and result CLIF types, the same as isa/amd64.Machine.lowerExtendOrReduce.
func (m *Machine) lowerExtendOrReduce(ctx *backend.LowerCtx, inst ssa.Inst, op ssa.Opcode, args, results []ssa.Value, dst backend.VReg, signed bool) {
	a := ctx.VRegOf(args[0], backend.RegClassInt)
	fromBits := ctx.F.DFG.ValueType(args[0]).Bits()
	toW := ctx.F.DFG.ValueType(results[0]).Bits() / 8
	if op == ssa.OpIreduce {
		// A narrower view of the same bits: the low bits already hold the
		// value, so the move is a plain register copy.
		m.emit(ctx, inst, &Inst{Op: OpMovRR, Dst: dst, Src1: a, Width: toW}, backend.PRegSet{}, use(a), regDef(dst))
		return
	}
	bfmOp := OpUbfm
	if signed {
		bfmOp = OpSbfm
	}
	m.emit(ctx, inst, &Inst{Op: bfmOp, Dst: dst, Src1: a, Width: toW, Imm: int64(fromBits)}, backend.PRegSet{}, use(a), regDef(dst))
}

// lowerBitcast reinterprets a value's bits at a different type: int<->float
// crossings move through GPR<->scalar-FP register file moves, same-class
// bitcasts are a plain register copy.
func (m *Machine) lowerBitcast(ctx *backend.LowerCtx, inst ssa.Inst, args, results []ssa.Value, dst backend.VReg) {
	fromT := ctx.F.DFG.ValueType(args[0])
	toT := ctx.F.DFG.ValueType(results[0])
	fromClass, toClass := regClassOf(fromT), regClassOf(toT)
	a := ctx.VRegOf(args[0], fromClass)
	w := widthOf(fromT)
	switch {
	case fromClass == toClass && fromClass == backend.RegClassInt:
		m.emit(ctx, inst, &Inst{Op: OpMovRR, Dst: dst, Src1: a, Width: w}, backend.PRegSet{}, use(a), regDef(dst))
	case fromClass == toClass: // both float
		m.emit(ctx, inst, &Inst{Op: OpFmovRR, Dst: dst, Src1: a, IsDouble: fromT == ssa.TypeF64}, backend.PRegSet{}, use(a), regDef(dst))
	case fromClass == backend.RegClassInt: // int -> float bits
		m.emit(ctx, inst, &Inst{Op: OpFmovFromGPR, Dst: dst, Src1: a, Width: w, IsDouble: toT == ssa.TypeF64},
			backend.PRegSet{}, use(a), regDef(dst))
	default: // float -> int bits
		m.emit(ctx, inst, &Inst{Op: OpFmovToGPR, Dst: dst, Src1: a, Width: w, IsDouble: fromT == ssa.TypeF64},
			backend.PRegSet{}, use(a), regDef(dst))
	}
}

// lowerReturn assigns each return value to its ABI-designated register
// (spec.md §4.2) via fixed-register uses, then emits Ret.
func (m *Machine) lowerReturn(ctx *backend.LowerCtx, inst ssa.Inst, args []ssa.Value) {
	abi := backend.NewFunctionABI(*m.ABI, ctx.F.Signature)
	var ops []regOp
	for i, v := range args {
		ra := abi.Rets[i]
		vr := ctx.VRegOf(v, regClassOf(ctx.F.DFG.ValueType(v)))
		ops = append(ops, fixedUse(vr, ra.Reg))
	}
	m.emit(ctx, inst, &Inst{Op: OpRet}, backend.PRegSet{}, ops...)
}

func (m *Machine) lowerCall(ctx *backend.LowerCtx, inst ssa.Inst, d *ssa.InstructionData, args []ssa.Value, results []ssa.Value) {
	callee := ctx.F.ImportedFuncs[d.FuncRef]
	sig := ctx.F.ImportedSignatures[callee.Signature]
	abi := backend.NewFunctionABI(*m.ABI, sig)
	m.emitCallArgSetup(ctx, inst, abi, args)

	clob := backend.PRegSet{}
	for _, r := range (*m.ABI).IntResultRegs() {
		clob.Add(r)
	}
	for _, r := range (*m.ABI).FloatResultRegs() {
		clob.Add(r)
	}
	m.emit(ctx, inst, &Inst{Op: OpBL, FuncSym: callee.Name}, clob)
	m.emitCallResults(ctx, inst, abi, results)
}

func (m *Machine) lowerCallIndirect(ctx *backend.LowerCtx, inst ssa.Inst, d *ssa.InstructionData, args []ssa.Value, results []ssa.Value) {
	sig := ctx.F.ImportedSignatures[d.SigRef]
	abi := backend.NewFunctionABI(*m.ABI, sig)
	callee := ctx.VRegOf(args[len(args)-1], backend.RegClassInt)
	m.emitCallArgSetup(ctx, inst, abi, args[:len(args)-1])

	clob := backend.PRegSet{}
	for _, r := range (*m.ABI).IntResultRegs() {
		clob.Add(r)
	}
	for _, r := range (*m.ABI).FloatResultRegs() {
		clob.Add(r)
	}
	m.emit(ctx, inst, &Inst{Op: OpBLR, Src1: callee}, clob, use(callee))
	m.emitCallResults(ctx, inst, abi, results)
}

func (m *Machine) emitCallArgSetup(ctx *backend.LowerCtx, inst ssa.Inst, abi *backend.FunctionABI, args []ssa.Value) {
	for i, v := range args {
		a := abi.Args[i]
		if a.Kind != backend.ABIArgKindReg {
			continue // stack-passed arguments: out of scope for this reduced ABI path
		}
		class := regClassOf(ctx.F.DFG.ValueType(v))
		vr := ctx.VRegOf(v, class)
		op := OpMovRR
		if class == backend.RegClassFloat {
			op = OpFmovRR
		}
		m.emit(ctx, inst, &Inst{Op: op, Dst: backend.FromPReg(a.Reg), Src1: vr, Width: 8},
			backend.PRegSet{}, use(vr), fixedDef(backend.FromPReg(a.Reg), a.Reg))
	}
}

func (m *Machine) emitCallResults(ctx *backend.LowerCtx, inst ssa.Inst, abi *backend.FunctionABI, results []ssa.Value) {
	for i, v := range results {
		ra := abi.Rets[i]
		class := regClassOf(ctx.F.DFG.ValueType(v))
		dst := ctx.VRegOf(v, class)
		op := OpMovRR
		if class == backend.RegClassFloat {
			op = OpFmovRR
		}
		m.emit(ctx, inst, &Inst{Op: op, Dst: dst, Src1: backend.FromPReg(ra.Reg), Width: 8},
			backend.PRegSet{}, fixedUse(backend.FromPReg(ra.Reg), ra.Reg), regDef(dst))
	}
}

// LowerBranch translates a block terminator, given targets (already resolved
// to lowering-order indices by backend.Lower's driver). See
// isa/amd64.Machine.LowerBranch for why block-parameter copies are emitted
// directly at the branch site rather than through a critical-edge
// move-insertion pass.
func (m *Machine) LowerBranch(ctx *backend.LowerCtx, inst ssa.Inst, targets []int) {
	dfg := ctx.F.DFG
	d := dfg.Inst(inst)

	switch d.Opcode {
	case ssa.OpReturn:
		m.lowerReturn(ctx, inst, dfg.Args(inst))

	case ssa.OpTrap:
		m.emit(ctx, inst, &Inst{Op: OpBrk}, backend.PRegSet{})

	case ssa.OpJump:
		succ := ctx.Order.Order[targets[0]].CLIFBlock
		m.emitBlockArgCopies(ctx, inst, 0, succ)
		m.emit(ctx, inst, &Inst{Op: OpB, Target: backend.Label(targets[0])}, backend.PRegSet{})

	case ssa.OpBrif:
		thenB := ctx.Order.Order[targets[0]].CLIFBlock
		elseB := ctx.Order.Order[targets[1]].CLIFBlock
		m.emitBlockArgCopies(ctx, inst, 0, thenB)
		m.emitBlockArgCopies(ctx, inst, 1, elseB)
		cond := ctx.VRegOf(dfg.Args(inst)[0], backend.RegClassInt)
		m.emit(ctx, inst, &Inst{Op: OpCmpRI, Src1: cond, Imm: 0, Width: 4}, backend.PRegSet{}, use(cond))
		m.emit(ctx, inst, &Inst{Op: OpBCond, Cc: CcNE, Target: backend.Label(targets[0])}, backend.PRegSet{})
		m.emit(ctx, inst, &Inst{Op: OpB, Target: backend.Label(targets[1])}, backend.PRegSet{})

	case ssa.OpBrTable:
		index := ctx.VRegOf(dfg.Args(inst)[0], backend.RegClassInt)
		// targets[0] is the default case, targets[1:] the explicit cases
		// (ssa.Function.Successors' documented ordering); cases never carry
		// block arguments, so no copies are needed here.
		for i := 1; i < len(targets); i++ {
			m.emit(ctx, inst, &Inst{Op: OpCmpRI, Src1: index, Imm: int64(i - 1), Width: 4}, backend.PRegSet{}, use(index))
			m.emit(ctx, inst, &Inst{Op: OpBCond, Cc: CcEQ, Target: backend.Label(targets[i])}, backend.PRegSet{})
		}
		m.emit(ctx, inst, &Inst{Op: OpB, Target: backend.Label(targets[0])}, backend.PRegSet{})

	default:
		panic("arm64: unlowered terminator " + d.Opcode.String())
	}
}

// emitBlockArgCopies copies the arguments carried across blocks[which] of a
// Jump/Brif into succ's block-parameter VRegs, positionally.
func (m *Machine) emitBlockArgCopies(ctx *backend.LowerCtx, inst ssa.Inst, which int, succ ssa.Block) {
	dfg := ctx.F.DFG
	argVals := dfg.BlockArgs(inst, which)
	params := dfg.BlockParams(succ)
	for i, av := range argVals {
		class := regClassOf(dfg.ValueType(av))
		src := ctx.VRegOf(av, class)
		dst := ctx.VRegOf(params[i], class)
		op := OpMovRR
		if class == backend.RegClassFloat {
			op = OpFmovRR
		}
		m.emit(ctx, inst, &Inst{Op: op, Dst: dst, Src1: src, Width: 8}, backend.PRegSet{}, use(src), regDef(dst))
	}
}
