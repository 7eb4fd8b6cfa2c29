package arm64

import (
	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/mach"
	"github.com/clifgen/wazevo-clif/ssa"
)

// Op names one AArch64 MachInst shape this backend emits. Every Op encodes
// to exactly one 32-bit instruction word, except OpMovImm64, which expands
// to a MOVZ followed by up to three MOVK, and a Signed sub-word OpLdr, which
// adds an SBFM word to sign-extend the loaded value.
type Op byte

const (
	OpMovRR     Op = iota // Dst <- Src1 (ORR Dst, xzr, Src1, a.k.a. MOV)
	OpMovImm64            // Dst <- Imm, via MOVZ + up to 3 MOVK
	OpAluRRR              // Dst <- Src1 Alu Src2
	OpAluRI               // Dst <- Src1 Alu Imm (Imm fits a 12-bit unsigned add/sub immediate)
	OpMvn                 // Dst <- ^Src1 (ORN Dst, xzr, Src1)
	OpNeg                 // Dst <- -Src1 (SUB Dst, xzr, Src1)
	OpMsub                // Dst <- Src3 - (Src1 * Src2); used for srem/urem's remainder step
	OpMul                 // Dst <- Src1 * Src2 (MADD Dst, Src1, Src2, xzr)
	OpShiftRRR             // Dst <- Src1 Shift Src2 (LSLV/LSRV/ASRV/RORV)
	OpDivRRR               // Dst <- Src1 / Src2 (SDIV/UDIV), Signed selects which
	OpClz
	OpRbit // used as Ctz's first step: ctz(x) == clz(rbit(x))
	OpSbfm  // sign-extend bitfield move (SXTB/SXTH/SXTW and general Sextend)
	OpUbfm  // zero-extend bitfield move (Uextend/Ireduce)
	OpCmpRR // SUBS xzr, Src1, Src2 (sets flags, discards result)
	OpCmpRI // SUBS xzr, Src1, Imm
	OpCset  // Dst <- Cc ? 1 : 0
	OpCsel  // Dst <- Cc ? Src1 : Src2

	OpFmovRR  // scalar FP reg-to-reg move
	OpFmovToGPR
	OpFmovFromGPR
	OpFaluRRR // FADD/FSUB/FMUL/FDIV/FMAX/FMIN
	OpFneg
	OpFabs
	OpFsqrt
	OpFcmp
	OpFcvt     // FCVT single<->double
	OpScvtf    // signed int -> float
	OpUcvtf    // unsigned int -> float
	OpFcvtzs   // float -> signed int, round toward zero
	OpFcvtzu   // float -> unsigned int, round toward zero

	OpLdr // Dst <- [Amode], Width bytes, zero-extended; Signed triggers a trailing OpSbfm
	OpStr // [Amode] <- Src1, Width bytes

	OpStrPair // STP Src1, Src2, [Amode]!  (pre-index, used once for fp/lr in Prologue)
	OpLdrPair // LDP Dst, Dst2, [Amode], #imm (post-index, used once for fp/lr in Epilogue)
	OpStrPre  // STR Src1, [Amode]! (single-register pre-index push, for callee-saved GPRs)
	OpLdrPost // LDR Dst, [Amode], #imm (single-register post-index pop)

	OpB    // unconditional branch, Target is a block label
	OpBCond
	OpBL      // direct call, FuncSym names the callee
	OpBLR     // indirect call through Src1
	OpRet
	OpBrk // BRK #0, traps unconditionally
)

// TrapKind names which checked-trap sequence backend/isa/arm64's
// InsertDivZeroTraps still owes an OpDivRRR (SDIV/UDIV don't fault on a zero
// divisor the way amd64's IDIV does, so this backend must synthesize the
// check -- spec.md §6.2's MachTrap).
type TrapKind byte

const (
	TrapNone TrapKind = iota
	TrapDivByZero
)

// AluOp selects the operation OpAluRRR/OpAluRI perform.
type AluOp byte

const (
	AluAdd AluOp = iota
	AluSub
	AluAnd
	AluOrr
	AluEor
	// The remaining four are float-only (OpFaluRRR); AluOp is shared with the
	// integer ALU forms the same way amd64.AluOp shares one enum across both
	// register files.
	AluMul
	AluDiv
	AluMin
	AluMax
)

// ShiftOp selects the operation OpShiftRRR performs.
type ShiftOp byte

const (
	ShiftLsl ShiftOp = iota
	ShiftLsr
	ShiftAsr
	ShiftRor
)

// CondCode is an AArch64 condition-flag nibble, matching the architecture's
// own B.cond/CSET/CSEL encoding directly (spec.md §6.1's integer/float
// comparisons both reduce to this one vocabulary, same as amd64.CondCode).
type CondCode byte

const (
	CcEQ CondCode = iota
	CcNE
	CcHS
	CcLO
	CcMI
	CcPL
	CcVS
	CcVC
	CcHI
	CcLS
	CcGE
	CcLT
	CcGT
	CcLE
	CcAL
)

func (c CondCode) negate() CondCode {
	switch c {
	case CcEQ:
		return CcNE
	case CcNE:
		return CcEQ
	case CcHS:
		return CcLO
	case CcLO:
		return CcHS
	case CcMI:
		return CcPL
	case CcPL:
		return CcMI
	case CcVS:
		return CcVC
	case CcVC:
		return CcVS
	case CcHI:
		return CcLS
	case CcLS:
		return CcHI
	case CcGE:
		return CcLT
	case CcLT:
		return CcGE
	case CcGT:
		return CcLE
	case CcLE:
		return CcGT
	default:
		return CcAL
	}
}

// Amode is a base+immediate-offset addressing mode; AArch64's scaled
// register-offset and pre/post-index forms are each handled by their own Op
// (OpLdrPair/OpStrPair/OpStrPre/OpLdrPost) rather than by a richer Amode, to
// keep one addressing type shared by every load/store Op.
type Amode struct {
	Base backend.VReg
	Disp int32
}

// Inst is one machine instruction. Only the fields relevant to Op are
// meaningful; unused fields are zero.
type Inst struct {
	Op       Op
	Dst, Dst2 backend.VReg
	Src1, Src2, Src3 backend.VReg
	Imm      int64
	Amode    Amode
	Alu      AluOp
	Shift    ShiftOp
	Cc       CondCode
	Width    byte // 1, 2, 4, or 8
	Signed   bool
	IsDouble bool
	Target   backend.Label
	FuncSym  string

	// NeedsTrapCheck marks an OpDivRRR that still needs InsertDivZeroTraps to
	// synthesize its zero-divisor check (Machine.Lower's Sdiv/Udiv/Srem/Urem
	// cases set this; Rewrite
	// leaves it untouched since it carries no VReg).
	NeedsTrapCheck TrapKind

	// SrcLoc/HasSrcLoc name the CLIF instruction this Inst lowers from, set
	// by InstsFromVCode from backend.VCode.SrcLocs; synthetic instructions
	// inserted after lowering (Rewrite's spill reloads/stores,
	// InsertDivZeroTraps' check sequence, Prologue/Epilogue) leave HasSrcLoc
	// false (spec.md §6.2's MachSourceLoc).
	SrcLoc    ssa.Inst
	HasSrcLoc bool

	// HasTrap/Trap mark this Inst as the instruction a hardware fault lands
	// on (OpBrk, after InsertDivZeroTraps appends the shared trap block --
	// spec.md §6.2's MachTrap table).
	HasTrap bool
	Trap    mach.TrapCode
}

func (i *Inst) String() string {
	switch i.Op {
	case OpMovRR, OpMovImm64:
		return "mov"
	case OpAluRRR, OpAluRI:
		return "alu"
	case OpMul, OpMsub:
		return "mul"
	case OpDivRRR:
		return "div"
	case OpB, OpBCond:
		return "b"
	case OpBL, OpBLR:
		return "call"
	case OpRet:
		return "ret"
	case OpBrk:
		return "brk"
	default:
		return "arm64.Inst"
	}
}
