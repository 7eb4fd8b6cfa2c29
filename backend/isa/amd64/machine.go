package amd64

import (
	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/mach"
	"github.com/clifgen/wazevo-clif/ssa"
)

// CPUFeatures gates instruction selection on what the target CPU actually
// supports (spec.md §6.3's cpu_features config), mirroring the teacher's
// isa/amd64/machine_vec.go dispatch on cpuFeatures: when a feature is unset,
// Lower falls back to the architectural SSE2 baseline instead of emitting an
// instruction the target might not have.
type CPUFeatures struct {
	AVX    bool // minss/minsd/maxss/maxsd use the 3-operand VEX form instead of destructive SSE2
	Popcnt bool // popcnt uses the POPCNT instruction instead of a software SWAR fallback
}

// Machine is the amd64 backend.LowerBackend: it turns one CLIF instruction
// (or block terminator) into a sequence of *Inst MachInsts, playing the role
// wazero's backend/isa/amd64 machine.lowerInstr switch plays (spec.md §4.2).
type Machine struct {
	ABI      *backend.ABIMachineSpec
	Features CPUFeatures
}

// NewMachine returns a Machine bound to spec, the resolved ABIMachineSpec for
// the function's calling convention (spec.md §4.2 "ABI integration"), with
// the architectural SSE2/non-POPCNT baseline feature set. Set Features
// directly afterwards to enable AVX/POPCNT codegen.
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
		w = 4 // sub-word integers live in a 32-bit GPR slot between ops
	}
	return w
}

type regOp func(c *backend.OperandCollector)

func use(v backend.VReg) regOp       { return func(c *backend.OperandCollector) { c.RegUse(v) } }
func lateUse(v backend.VReg) regOp   { return func(c *backend.OperandCollector) { c.AnyLateUse(v) } }
func regDef(v backend.VReg) regOp    { return func(c *backend.OperandCollector) { c.RegDef(v) } }
func earlyDef(v backend.VReg) regOp  { return func(c *backend.OperandCollector) { c.RegEarlyDef(v) } }
func reuseDef(v backend.VReg, idx int) regOp {
	return func(c *backend.OperandCollector) { c.RegReuseDef(v, idx) }
}
func fixedUse(v backend.VReg, p backend.PReg) regOp {
	return func(c *backend.OperandCollector) { c.RegFixedUse(v, p) }
}
func fixedDef(v backend.VReg, p backend.PReg) regOp {
	return func(c *backend.OperandCollector) { c.RegFixedDef(v, p) }
}

// emit records inst's operands (in ops order, so ReuseIndex references stay
// correct) and pushes inst onto ctx.VCode, keeping OperandCollector's
// per-instruction ranges in lockstep with VCode.Insts (both are appended to,
// in the same backward-walk order, exactly once per instruction).
func (m *Machine) emit(ctx *backend.LowerCtx, src ssa.Inst, inst *Inst, clobbers backend.PRegSet, ops ...regOp) {
	for _, o := range ops {
		o(ctx.VCode.Operands)
	}
	ctx.VCode.Operands.FinishInst(clobbers)
	ctx.VCode.Push(inst, src)
}

func amodeOf(base backend.VReg, disp int32) Amode { return Amode{Base: base, Disp: disp} }

// loadSignMask materializes, into a fresh scratch XMM register, the 32- or
// 64-bit mask Fneg/Fabs need: the sign bit alone (signOnly, for Fneg's xorps)
// or every bit except the sign bit (for Fabs's andps). Built the same way
// Fconst builds a float bit pattern: through a GPR immediate and a movd/movq
// into XMM, since this package's scoped encoder has no rip-relative constant
// pool to load from memory.
func (m *Machine) loadSignMask(ctx *backend.LowerCtx, src ssa.Inst, isDouble, signOnly bool) backend.VReg {
	var bits int64
	var width byte
	if isDouble {
		width = 8
		if signOnly {
			bits = -1 << 63
		} else {
			bits = ^(int64(-1) << 63)
		}
	} else {
		width = 4
		if signOnly {
			bits = 0x80000000
		} else {
			bits = 0x7fffffff
		}
	}
	scratchGPR := backend.FromPReg(scratchInt())
	mask := ctx.VRegOf(ctx.F.DFG.AllocPlaceholder(ssa.TypeI64), backend.RegClassFloat)
	m.emit(ctx, src, &Inst{Op: OpMovRI, Dst: scratchGPR, Imm: bits, Width: 8}, backend.PRegSet{}, fixedDef(scratchGPR, scratchInt()))
	m.emit(ctx, src, &Inst{Op: OpMovdToXmm, Dst: mask, Src1: scratchGPR, Width: width},
		backend.PRegSet{}, fixedUse(scratchGPR, scratchInt()), regDef(mask))
	return mask
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
		m.emit(ctx, inst, &Inst{Op: OpMovRI, Dst: dst, Imm: d.Imm64, Width: widthOf(dfg.ValueType(results[0]))}, backend.PRegSet{}, regDef(dst))

	case ssa.OpFconst:
		scratch := backend.FromPReg(scratchInt())
		bits := d.Imm64
		ft := dfg.ValueType(results[0])
		m.emit(ctx, inst, &Inst{Op: OpMovRI, Dst: scratch, Imm: bits, Width: 8}, backend.PRegSet{}, fixedDef(scratch, scratchInt()))
		m.emit(ctx, inst, &Inst{Op: OpMovdToXmm, Dst: dst, Src1: scratch, Width: widthOf(ft)}, backend.PRegSet{}, fixedUse(scratch, scratchInt()), regDef(dst))

	case ssa.OpIadd, ssa.OpIsub, ssa.OpBand, ssa.OpBor, ssa.OpBxor, ssa.OpImul:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		b := ctx.VRegOf(args[1], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		m.emit(ctx, inst, &Inst{Op: OpAluRR, Dst: dst, Src2: b, Alu: intAluOp(d.Opcode), Width: w},
			backend.PRegSet{}, use(a), use(b), reuseDef(dst, 0))

	case ssa.OpFadd, ssa.OpFsub, ssa.OpFmul, ssa.OpFdiv:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		b := ctx.VRegOf(args[1], backend.RegClassFloat)
		isDouble := dfg.ValueType(results[0]) == ssa.TypeF64
		m.emit(ctx, inst, &Inst{Op: OpSseAluRR, Dst: dst, Src2: b, Alu: floatAluOp(d.Opcode), IsDouble: isDouble},
			backend.PRegSet{}, use(a), use(b), reuseDef(dst, 0))

	case ssa.OpFmin, ssa.OpFmax:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		b := ctx.VRegOf(args[1], backend.RegClassFloat)
		isDouble := dfg.ValueType(results[0]) == ssa.TypeF64
		if m.Features.AVX {
			// Non-destructive VEX form: dst, src1 (vvvv), src2/rm - no
			// register coalescing needed between dst and a.
			m.emit(ctx, inst, &Inst{Op: OpSseAluRR, Dst: dst, Src1: a, Src2: b, Alu: floatAluOp(d.Opcode), IsDouble: isDouble, Vex: true},
				backend.PRegSet{}, use(a), use(b), regDef(dst))
		} else {
			m.emit(ctx, inst, &Inst{Op: OpSseAluRR, Dst: dst, Src2: b, Alu: floatAluOp(d.Opcode), IsDouble: isDouble},
				backend.PRegSet{}, use(a), use(b), reuseDef(dst, 0))
		}

	case ssa.OpFneg:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		isDouble := dfg.ValueType(results[0]) == ssa.TypeF64
		mask := m.loadSignMask(ctx, inst, isDouble, true)
		m.emit(ctx, inst, &Inst{Op: OpXorps, Dst: dst, Src2: mask}, backend.PRegSet{}, use(a), use(mask), reuseDef(dst, 0))

	case ssa.OpFabs:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		isDouble := dfg.ValueType(results[0]) == ssa.TypeF64
		mask := m.loadSignMask(ctx, inst, isDouble, false)
		m.emit(ctx, inst, &Inst{Op: OpAndps, Dst: dst, Src2: mask}, backend.PRegSet{}, use(a), use(mask), reuseDef(dst, 0))

	case ssa.OpSqrt:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		op := OpSqrtSS
		if dfg.ValueType(results[0]) == ssa.TypeF64 {
			op = OpSqrtSD
		}
		m.emit(ctx, inst, &Inst{Op: op, Dst: dst, Src1: a}, backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpSdiv, ssa.OpUdiv, ssa.OpSrem, ssa.OpUrem:
		m.lowerDivRem(ctx, inst, d.Opcode, args, dst)

	case ssa.OpIshl, ssa.OpUshr, ssa.OpSshr, ssa.OpRotl, ssa.OpRotr:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		shiftOp := shiftOpOf(d.Opcode)
		if cImm, ok := constImm(ctx.F, args[1]); ok {
			m.emit(ctx, inst, &Inst{Op: OpShiftRI, Dst: dst, Shift: shiftOp, Width: w, Imm: cImm},
				backend.PRegSet{}, use(a), reuseDef(dst, 0))
		} else {
			b := ctx.VRegOf(args[1], backend.RegClassInt)
			m.emit(ctx, inst, &Inst{Op: OpShiftRR, Dst: dst, Src2: rcxVReg, Shift: shiftOp, Width: w},
				backend.PRegSet{}, use(a), fixedUse(b, rcx_), reuseDef(dst, 0))
		}

	case ssa.OpClz:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		scratch := backend.FromPReg(scratchInt())
		m.emit(ctx, inst, &Inst{Op: OpBsr, Dst: scratch, Src1: a, Width: w}, backend.PRegSet{}, use(a), fixedDef(scratch, scratchInt()))
		m.emit(ctx, inst, &Inst{Op: OpMovRI, Dst: dst, Imm: int64(w)*8 - 1, Width: w}, backend.PRegSet{}, regDef(dst))
		m.emit(ctx, inst, &Inst{Op: OpAluRR, Dst: dst, Src2: scratch, Alu: AluSub, Width: w},
			backend.PRegSet{}, fixedUse(scratch, scratchInt()), reuseDef(dst, 0))

	case ssa.OpCtz:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		m.emit(ctx, inst, &Inst{Op: OpBsf, Dst: dst, Src1: a, Width: w}, backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpPopcnt:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		w := widthOf(dfg.ValueType(results[0]))
		if m.Features.Popcnt {
			m.emit(ctx, inst, &Inst{Op: OpPopcnt, Dst: dst, Src1: a, Width: w}, backend.PRegSet{}, use(a), regDef(dst))
		} else {
			m.lowerSoftPopcount(ctx, inst, dst, a, w)
		}

	case ssa.OpIcmp, ssa.OpFcmp:
		m.lowerCmp(ctx, inst, d, args, dst)

	case ssa.OpSelect:
		c := ctx.VRegOf(args[0], backend.RegClassInt)
		t := ctx.VRegOf(args[1], regClassOf(dfg.ValueType(results[0])))
		f := ctx.VRegOf(args[2], regClassOf(dfg.ValueType(results[0])))
		w := widthOf(dfg.ValueType(results[0]))
		m.emit(ctx, inst, &Inst{Op: OpCmpRI, Src1: c, Imm: 0, Width: 4}, backend.PRegSet{}, use(c))
		m.emit(ctx, inst, &Inst{Op: OpCmov, Dst: dst, Src2: t, Cc: CcNZ, Width: w},
			backend.PRegSet{}, use(f), use(t), reuseDef(dst, 0))

	case ssa.OpUextend, ssa.OpIreduce:
		m.lowerExtendOrReduce(ctx, inst, d.Opcode, args, results, dst, false)
	case ssa.OpSextend:
		m.lowerExtendOrReduce(ctx, inst, d.Opcode, args, results, dst, true)

	case ssa.OpBitcast:
		m.lowerBitcast(ctx, inst, args, results, dst)

	case ssa.OpFpromote:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		m.emit(ctx, inst, &Inst{Op: OpCvtss2sd, Dst: dst, Src1: a}, backend.PRegSet{}, use(a), regDef(dst))
	case ssa.OpFdemote:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		m.emit(ctx, inst, &Inst{Op: OpCvtsd2ss, Dst: dst, Src1: a}, backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpFcvtToSint, ssa.OpFcvtToUint:
		a := ctx.VRegOf(args[0], backend.RegClassFloat)
		w := widthOf(dfg.ValueType(results[0]))
		isDouble := dfg.ValueType(args[0]) == ssa.TypeF64
		op := OpCvttss2si
		if isDouble {
			op = OpCvttsd2si
		}
		m.emit(ctx, inst, &Inst{Op: op, Dst: dst, Src1: a, Width: w, Signed: d.Opcode == ssa.OpFcvtToSint},
			backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpFcvtFromSint, ssa.OpFcvtFromUint:
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		isDouble := dfg.ValueType(results[0]) == ssa.TypeF64
		op := OpCvtsi2ss
		if isDouble {
			op = OpCvtsi2sd
		}
		m.emit(ctx, inst, &Inst{Op: op, Dst: dst, Src1: a, Width: widthOf(dfg.ValueType(args[0]))},
			backend.PRegSet{}, use(a), regDef(dst))

	case ssa.OpLoad:
		base := ctx.VRegOf(args[0], backend.RegClassInt)
		rt := dfg.ValueType(results[0])
		m.emit(ctx, inst, &Inst{Op: OpMovLoad, Dst: dst, Amode: amodeOf(base, int32(d.Imm64)),
			Width: byte(rt.Bits() / 8), Signed: false}, backend.PRegSet{}, use(base), regDef(dst))

	case ssa.OpStore:
		base := ctx.VRegOf(args[1], backend.RegClassInt)
		val := ctx.VRegOf(args[0], regClassOf(dfg.ValueType(args[0])))
		m.emit(ctx, inst, &Inst{Op: OpMovStore, Src1: val, Amode: amodeOf(base, int32(d.Imm64)),
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
		panic("amd64: unlowered opcode " + d.Opcode.String())
	}
	return true
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
		return AluOr
	case ssa.OpImul:
		return AluImul
	default: // OpBxor
		return AluXor
	}
}

func floatAluOp(op ssa.Opcode) AluOp {
	switch op {
	case ssa.OpFadd:
		return AluAdd
	case ssa.OpFsub:
		return AluSub
	case ssa.OpFmul:
		return AluImul
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
		return ShiftShl
	case ssa.OpUshr:
		return ShiftShr
	case ssa.OpSshr:
		return ShiftSar
	case ssa.OpRotl:
		return ShiftRol
	default: // OpRotr
		return ShiftRor
	}
}

// constImm reports whether v is defined by an Iconst with a value that fits
// the shift-amount immediate form, letting Ishl/Ushr/Sshr/Rotl/Rotr by a
// compile-time-constant amount skip materializing the count into CL.
func constImm(f *ssa.Function, v ssa.Value) (int64, bool) {
	v = f.DFG.ResolveAliases(v)
	def := f.DFG.ValueDef(v)
	if def.IsAlias() || def.Inst == ssa.InstNone {
		return 0, false
	}
	d := f.DFG.Inst(def.Inst)
	if d.Opcode != ssa.OpIconst {
		return 0, false
	}
	return d.Imm64, true
}

func intCc(c ssa.Cond) CondCode {
	switch c {
	case ssa.CondEqual:
		return CcZ
	case ssa.CondNotEqual:
		return CcNZ
	case ssa.CondSignedLessThan:
		return CcL
	case ssa.CondSignedGreaterThanOrEqual:
		return CcGE
	case ssa.CondSignedGreaterThan:
		return CcG
	case ssa.CondSignedLessThanOrEqual:
		return CcLE
	case ssa.CondUnsignedLessThan:
		return CcB
	case ssa.CondUnsignedGreaterThanOrEqual:
		return CcAE
	case ssa.CondUnsignedGreaterThan:
		return CcA
	default: // CondUnsignedLessThanOrEqual
		return CcBE
	}
}

// lowerCmp emits the compare and materializes a 0/1 result via Setcc. Icmp
// compares two GPRs directly; Fcmp uses ucomiss/ucomisd, whose condition
// flags already match CcZ/CcNZ and the CcB/CcBE/CcA/CcAE family for the six
// conditions floatCond ever produces (spec.md §6.1; the unordered/NaN case is left
// matching hardware's "unordered sets CF=ZF=PF=1" behavior rather than
// synthesizing Wasm's stricter false-on-NaN semantics for every comparison).
func (m *Machine) lowerCmp(ctx *backend.LowerCtx, inst ssa.Inst, d *ssa.InstructionData, args []ssa.Value, dst backend.VReg) {
	if d.Opcode == ssa.OpIcmp {
		a := ctx.VRegOf(args[0], backend.RegClassInt)
		b := ctx.VRegOf(args[1], backend.RegClassInt)
		w := widthOf(ctx.F.DFG.ValueType(args[0]))
		m.emit(ctx, inst, &Inst{Op: OpCmpRR, Src1: a, Src2: b, Width: w}, backend.PRegSet{}, use(a), use(b))
		m.emit(ctx, inst, &Inst{Op: OpSetcc, Dst: dst, Cc: intCc(d.Cond)}, backend.PRegSet{}, regDef(dst))
		return
	}
	a := ctx.VRegOf(args[0], backend.RegClassFloat)
	b := ctx.VRegOf(args[1], backend.RegClassFloat)
	isDouble := ctx.F.DFG.ValueType(args[0]) == ssa.TypeF64
	op := OpUcomiss
	if isDouble {
		op = OpUcomisd
	}
	m.emit(ctx, inst, &Inst{Op: op, Src1: a, Src2: b}, backend.PRegSet{}, use(a), use(b))
	m.emit(ctx, inst, &Inst{Op: OpSetcc, Dst: dst, Cc: floatCc(d.Cond)}, backend.PRegSet{}, regDef(dst))
}

func floatCc(c ssa.Cond) CondCode {
	switch c {
	case ssa.CondEqual:
		return CcZ
	case ssa.CondNotEqual:
		return CcNZ
	case ssa.CondSignedLessThan:
		return CcB
	case ssa.CondSignedGreaterThan:
		return CcA
	case ssa.CondSignedLessThanOrEqual:
		return CcBE
	default: // CondSignedGreaterThanOrEqual
		return CcAE
	}
}

// lowerDivRem expands Sdiv/Udiv/Srem/Urem into the RAX:RDX-dividend,
// sign-or-zero-extend, IDiv, quotient-or-remainder-in-fixed-register idiom
// x86 requires (spec.md §6.1).
func (m *Machine) lowerDivRem(ctx *backend.LowerCtx, inst ssa.Inst, op ssa.Opcode, args []ssa.Value, dst backend.VReg) {
	dividend := ctx.VRegOf(args[0], backend.RegClassInt)
	divisor := ctx.VRegOf(args[1], backend.RegClassInt)
	w := widthOf(ctx.F.DFG.ValueType(args[0]))
	signed := op == ssa.OpSdiv || op == ssa.OpSrem
	wantRem := op == ssa.OpSrem || op == ssa.OpUrem

	m.emit(ctx, inst, &Inst{Op: OpMovRR, Dst: raxVReg, Src1: dividend, Width: w},
		backend.PRegSet{}, use(dividend), fixedDef(raxVReg, rax_))
	if signed {
		// sign-extend RAX into RDX:RAX (CQO/CDQ); modeled here as a shift-based
		// extension to keep the encoder's Op set small: arithmetic-shift RAX
		// right by width-1 into a scratch-held RDX value.
		m.emit(ctx, inst, &Inst{Op: OpMovRR, Dst: rdxVReg, Src1: raxVReg, Width: w},
			backend.PRegSet{}, fixedUse(raxVReg, rax_), fixedDef(rdxVReg, rdx_))
		m.emit(ctx, inst, &Inst{Op: OpShiftRI, Dst: rdxVReg, Shift: ShiftSar, Imm: int64(w)*8 - 1, Width: w},
			backend.PRegSet{}, fixedUse(rdxVReg, rdx_), fixedDef(rdxVReg, rdx_))
	} else {
		m.emit(ctx, inst, &Inst{Op: OpMovRI, Dst: rdxVReg, Imm: 0, Width: w}, backend.PRegSet{}, fixedDef(rdxVReg, rdx_))
	}

	clob := backend.PRegSet{}
	clob.Add(rax_)
	clob.Add(rdx_)
	// IDIV/DIV raises #DE on a zero divisor; x86 hardware does the trap check
	// clifc never has to insert (contrast backend/isa/arm64, where SDIV/UDIV
	// silently return 0 instead and InsertDivZeroTraps adds the check), so the division itself is
	// the trap site (spec.md §6.2's MachTrap).
	m.emit(ctx, inst, &Inst{Op: OpIDiv, Src1: divisor, Width: w, Signed: signed, HasTrap: true, Trap: mach.TrapIntegerDivisionByZero}, clob,
		fixedUse(raxVReg, rax_), fixedUse(rdxVReg, rdx_), use(divisor))

	if wantRem {
		m.emit(ctx, inst, &Inst{Op: OpMovRR, Dst: dst, Src1: rdxVReg, Width: w}, backend.PRegSet{}, fixedUse(rdxVReg, rdx_), regDef(dst))
	} else {
		m.emit(ctx, inst, &Inst{Op: OpMovRR, Dst: dst, Src1: raxVReg, Width: w}, backend.PRegSet{}, fixedUse(raxVReg, rax_), regDef(dst))
	}
}

// lowerExtendOrReduce derives the conversion's bit widths from its argument
// and result CLIF types rather than from InstructionData.fromBits/toBits
// (unexported outside package ssa): Uextend/Sextend/Ireduce's behavior is
// fully determined by DFG.ValueType(args[0]).Bits() and
// DFG.ValueType(results[0]).Bits() alone, since CLIF never re-widens through
// an intermediate width the static types don't already name.
func (m *Machine) lowerExtendOrReduce(ctx *backend.LowerCtx, inst ssa.Inst, op ssa.Opcode, args, results []ssa.Value, dst backend.VReg, signed bool) {
	a := ctx.VRegOf(args[0], backend.RegClassInt)
	fromW := ctx.F.DFG.ValueType(args[0]).Bits() / 8
	toW := ctx.F.DFG.ValueType(results[0]).Bits() / 8
	if op == ssa.OpIreduce {
		// A narrower view of the same bits: the existing low bytes already
		// hold the value, so the move is a plain register copy (the upper
		// bits are simply never read again at the narrower width).
		m.emit(ctx, inst, &Inst{Op: OpMovRR, Dst: dst, Src1: a, Width: toW}, backend.PRegSet{}, use(a), reuseDef(dst, 0))
		return
	}
	mop := OpMovZx
	if signed {
		mop = OpMovSx
	}
	m.emit(ctx, inst, &Inst{Op: mop, Dst: dst, Src1: a, Width: fromW}, backend.PRegSet{}, use(a), regDef(dst))
}

// lowerBitcast reinterprets a value's bits at a different type, without
// converting it: int<->float crossings move through GPR<->XMM (no arithmetic
// conversion), while same-class bitcasts (e.g. i32 as i32, a no-op CLIF
// sometimes emits) are a plain register copy.
func (m *Machine) lowerBitcast(ctx *backend.LowerCtx, inst ssa.Inst, args, results []ssa.Value, dst backend.VReg) {
	fromT := ctx.F.DFG.ValueType(args[0])
	toT := ctx.F.DFG.ValueType(results[0])
	fromClass, toClass := regClassOf(fromT), regClassOf(toT)
	a := ctx.VRegOf(args[0], fromClass)
	w := widthOf(fromT)
	switch {
	case fromClass == toClass:
		m.emit(ctx, inst, &Inst{Op: OpMovRR, Dst: dst, Src1: a, Width: w}, backend.PRegSet{}, use(a), reuseDef(dst, 0))
	case fromClass == backend.RegClassInt: // int -> float bits
		m.emit(ctx, inst, &Inst{Op: OpMovdToXmm, Dst: dst, Src1: a, Width: w}, backend.PRegSet{}, use(a), regDef(dst))
	default: // float -> int bits
		m.emit(ctx, inst, &Inst{Op: OpMovdFromXmm, Dst: dst, Src1: a, Width: w}, backend.PRegSet{}, use(a), regDef(dst))
	}
}

// lowerReturn assigns each return value to its ABI-designated register
// (spec.md §4.2) via fixed-register uses, then emits Ret. Stack-returned
// values are out of scope for this reduced ABI path (every Signature this
// core's frontend produces returns scalars that fit in registers).
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
	m.emit(ctx, inst, &Inst{Op: OpCallDirect, FuncSym: callee.Name}, clob)
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
	m.emit(ctx, inst, &Inst{Op: OpCallIndirect, Src1: callee}, clob, use(callee))
	m.emitCallResults(ctx, inst, abi, results)
}

func (m *Machine) emitCallArgSetup(ctx *backend.LowerCtx, inst ssa.Inst, abi *backend.FunctionABI, args []ssa.Value) {
	for i, v := range args {
		a := abi.Args[i]
		if a.Kind != backend.ABIArgKindReg {
			continue // stack-passed arguments: out of scope for this reduced ABI path
		}
		vr := ctx.VRegOf(v, regClassOf(ctx.F.DFG.ValueType(v)))
		m.emit(ctx, inst, &Inst{Op: OpMovRR, Dst: backend.FromPReg(a.Reg), Src1: vr, Width: 8},
			backend.PRegSet{}, use(vr), fixedDef(backend.FromPReg(a.Reg), a.Reg))
	}
}

func (m *Machine) emitCallResults(ctx *backend.LowerCtx, inst ssa.Inst, abi *backend.FunctionABI, results []ssa.Value) {
	for i, v := range results {
		ra := abi.Rets[i]
		dst := ctx.VRegOf(v, regClassOf(ctx.F.DFG.ValueType(v)))
		m.emit(ctx, inst, &Inst{Op: OpMovRR, Dst: dst, Src1: backend.FromPReg(ra.Reg), Width: 8},
			backend.PRegSet{}, fixedUse(backend.FromPReg(ra.Reg), ra.Reg), regDef(dst))
	}
}

// LowerBranch translates a block terminator, given targets (already resolved
// to lowering-order indices by backend.Lower's driver). Block-parameter
// values are copied into their target block's parameter VRegs directly at
// the branch site rather than through a critical-edge move-insertion pass:
// br_table's cases never carry arguments (the frontend's edge splitting
// already routes them through argument-free trampoline blocks), and Brif's
// two targets always have disjoint parameter VRegs, so emitting both
// branches' copies unconditionally ahead of the single conditional jump is
// always safe (the untaken side's copies are simply dead).
func (m *Machine) LowerBranch(ctx *backend.LowerCtx, inst ssa.Inst, targets []int) {
	dfg := ctx.F.DFG
	d := dfg.Inst(inst)

	switch d.Opcode {
	case ssa.OpReturn:
		m.lowerReturn(ctx, inst, dfg.Args(inst))

	case ssa.OpTrap:
		m.emit(ctx, inst, &Inst{Op: OpUd2}, backend.PRegSet{})

	case ssa.OpJump:
		succ := ctx.Order.Order[targets[0]].CLIFBlock
		m.emitBlockArgCopies(ctx, inst, 0, succ)
		m.emit(ctx, inst, &Inst{Op: OpJmp, Target: backend.Label(targets[0])}, backend.PRegSet{})

	case ssa.OpBrif:
		thenB := ctx.Order.Order[targets[0]].CLIFBlock
		elseB := ctx.Order.Order[targets[1]].CLIFBlock
		m.emitBlockArgCopies(ctx, inst, 0, thenB)
		m.emitBlockArgCopies(ctx, inst, 1, elseB)
		cond := ctx.VRegOf(dfg.Args(inst)[0], backend.RegClassInt)
		m.emit(ctx, inst, &Inst{Op: OpCmpRI, Src1: cond, Imm: 0, Width: 4}, backend.PRegSet{}, use(cond))
		m.emit(ctx, inst, &Inst{Op: OpJcc, Cc: CcNZ, Target: backend.Label(targets[0])}, backend.PRegSet{})
		m.emit(ctx, inst, &Inst{Op: OpJmp, Target: backend.Label(targets[1])}, backend.PRegSet{})

	case ssa.OpBrTable:
		index := ctx.VRegOf(dfg.Args(inst)[0], backend.RegClassInt)
		// targets[0] is the default case, targets[1:] the explicit cases
		// (ssa.Function.Successors' documented ordering); cases never carry
		// block arguments, so no copies are needed here.
		for i := 1; i < len(targets); i++ {
			m.emit(ctx, inst, &Inst{Op: OpCmpRI, Src1: index, Imm: int64(i - 1), Width: 4}, backend.PRegSet{}, use(index))
			m.emit(ctx, inst, &Inst{Op: OpJcc, Cc: CcZ, Target: backend.Label(targets[i])}, backend.PRegSet{})
		}
		m.emit(ctx, inst, &Inst{Op: OpJmp, Target: backend.Label(targets[0])}, backend.PRegSet{})

	default:
		panic("amd64: unlowered terminator " + d.Opcode.String())
	}
}

// emitBlockArgCopies copies the arguments carried across blocks[which] of a
// Jump/Brif into succ's block-parameter VRegs, positionally.
func (m *Machine) emitBlockArgCopies(ctx *backend.LowerCtx, inst ssa.Inst, which int, succ ssa.Block) {
	dfg := ctx.F.DFG
	argVals := dfg.BlockArgs(inst, which)
	params := dfg.BlockParams(succ)
	for i, av := range argVals {
		src := ctx.VRegOf(av, regClassOf(dfg.ValueType(av)))
		dst := ctx.VRegOf(params[i], regClassOf(dfg.ValueType(params[i])))
		m.emit(ctx, inst, &Inst{Op: OpMovRR, Dst: dst, Src1: src, Width: 8}, backend.PRegSet{}, use(src), regDef(dst))
	}
}

// The classic SWAR masks (Hacker's Delight §5-1's no-multiply popcount),
// used by lowerSoftPopcount when the target lacks POPCNT.
const (
	popcountM1 = 0x55555555
	popcountM2 = 0x33333333
	popcountM4 = 0x0f0f0f0f
)

func freshInt(ctx *backend.LowerCtx) backend.VReg {
	return ctx.VRegOf(ctx.F.DFG.AllocPlaceholder(ssa.TypeI64), backend.RegClassInt)
}

// lowerSoftPopcount computes the population count of a's low bits (w bytes
// wide) without the POPCNT instruction, for cpu_features.popcnt = false
// (spec.md §6.3). 32-bit values use the SWAR bit trick directly; 64-bit
// values are split into two 32-bit halves, each popcounted the same way,
// and summed - every intermediate stays a plain 32-bit GPR op, so no
// 64-bit-wide immediate is ever needed (0x81 /r id sign-extends its imm32,
// which can't express masks like 0x3333333333333333).
func (m *Machine) lowerSoftPopcount(ctx *backend.LowerCtx, src ssa.Inst, dst, a backend.VReg, w byte) {
	count := m.softPopcount32(ctx, src, a)
	if w == 8 {
		hi := freshInt(ctx)
		m.emit(ctx, src, &Inst{Op: OpMovRR, Dst: hi, Src1: a, Width: 8}, backend.PRegSet{}, use(a), regDef(hi))
		m.emit(ctx, src, &Inst{Op: OpShiftRI, Dst: hi, Shift: ShiftShr, Imm: 32, Width: 8}, backend.PRegSet{}, use(hi), reuseDef(hi, 0))
		hiCount := m.softPopcount32(ctx, src, hi)
		sum := freshInt(ctx)
		m.emit(ctx, src, &Inst{Op: OpAluRR, Dst: sum, Src2: hiCount, Alu: AluAdd, Width: 4},
			backend.PRegSet{}, use(count), use(hiCount), reuseDef(sum, 0))
		count = sum
	}
	m.emit(ctx, src, &Inst{Op: OpMovRR, Dst: dst, Src1: count, Width: 4}, backend.PRegSet{}, use(count), regDef(dst))
}

// softPopcount32 runs the no-multiply SWAR reduction on x's low 32 bits and
// returns a fresh VReg holding the count (0-32), leaving x itself untouched.
func (m *Machine) softPopcount32(ctx *backend.LowerCtx, src ssa.Inst, x backend.VReg) backend.VReg {
	copyOf := func(v backend.VReg) backend.VReg {
		c := freshInt(ctx)
		m.emit(ctx, src, &Inst{Op: OpMovRR, Dst: c, Src1: v, Width: 4}, backend.PRegSet{}, use(v), regDef(c))
		return c
	}
	shr := func(v backend.VReg, amt int64) backend.VReg {
		c := copyOf(v)
		m.emit(ctx, src, &Inst{Op: OpShiftRI, Dst: c, Shift: ShiftShr, Imm: amt, Width: 4}, backend.PRegSet{}, use(c), reuseDef(c, 0))
		return c
	}
	and := func(v backend.VReg, mask int64) backend.VReg {
		c := copyOf(v)
		m.emit(ctx, src, &Inst{Op: OpAluRI, Dst: c, Alu: AluAnd, Imm: mask, Width: 4}, backend.PRegSet{}, use(c), reuseDef(c, 0))
		return c
	}
	add := func(a, b backend.VReg) backend.VReg {
		n := freshInt(ctx)
		m.emit(ctx, src, &Inst{Op: OpAluRR, Dst: n, Src2: b, Alu: AluAdd, Width: 4}, backend.PRegSet{}, use(a), use(b), reuseDef(n, 0))
		return n
	}
	sub := func(a, b backend.VReg) backend.VReg {
		n := freshInt(ctx)
		m.emit(ctx, src, &Inst{Op: OpAluRR, Dst: n, Src2: b, Alu: AluSub, Width: 4}, backend.PRegSet{}, use(a), use(b), reuseDef(n, 0))
		return n
	}
	shrAndMask := func(v backend.VReg, amt int64, mask int64) backend.VReg { return and(shr(v, amt), mask) }

	x = sub(x, shrAndMask(x, 1, popcountM1))               // x -= (x>>1) & m1
	x = add(and(x, popcountM2), shrAndMask(x, 2, popcountM2)) // x = (x&m2) + ((x>>2)&m2)
	x = and(add(x, shr(x, 4)), popcountM4)                  // x = (x + (x>>4)) & m4
	x = add(x, shr(x, 8))                                   // x += x>>8
	x = add(x, shr(x, 16))                                  // x += x>>16
	return and(x, 0x3f)                                     // max count for 32 bits fits in 6 bits
}
