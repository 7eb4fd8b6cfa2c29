package amd64

import (
	"fmt"

	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/mach"
	"github.com/clifgen/wazevo-clif/ssa"
)

// Op identifies one amd64 MachInst's shape (spec.md §3.2's "MachInst
// entities"). Kept as a flat union, like ssa.InstructionData, rather than one
// Go type per instruction: most fields are shared (dst/src/imm/amode) and a
// flat union keeps the lowering switch and the encoder switch symmetric.
type Op byte

const (
	OpInvalid Op = iota
	OpMovRR
	OpMovRI
	OpMovLoad  // dst <- [amode], Width bytes, SignExtend if true else zero-extend (no-op for width 8)
	OpMovStore // [amode] <- Src1, Width bytes
	OpMovZx    // dst <- zero_extend(Src1), Src1's width given by Width, to 32 or 64 bits
	OpMovSx    // dst <- sign_extend(Src1), Src1's width given by Width, to 32 or 64 bits
	OpLea
	OpAluRR  // dst(Src1) op= Src2, AluOp selects add/sub/and/or/xor/imul
	OpAluRI  // dst(Src1) op= Imm
	OpNot
	OpNeg
	OpShiftRR // dst(Src1) shifted by CL (Src2 must be pinned to rcx); ShiftOp selects shl/shr/sar/rol/ror
	OpShiftRI
	OpIDiv // RDX:RAX op Src1 -> quotient in RAX, remainder in RDX; Signed selects idiv/div
	OpCmpRR
	OpCmpRI
	OpSetcc
	OpCmov
	OpBsf // dst <- index of lowest set bit of Src1 (ctz); zero-flag set if Src1 == 0
	OpBsr // dst <- index of highest set bit of Src1 (used to synthesize clz)
	OpPopcnt
	OpUd2

	OpMovss
	OpMovsd
	OpSseAluRR // dst(Src1) op= Src2, IsDouble selects ss/sd form, AluOp selects add/sub/mul/div/min/max
	OpSqrtSS
	OpSqrtSD
	OpXorps // used for fneg (sign-bit flip) and to zero a register before a scalar op
	OpAndps // used for fabs (sign-bit clear)
	OpUcomiss
	OpUcomisd
	OpCvtsi2ss
	OpCvtsi2sd
	OpCvttss2si
	OpCvttsd2si
	OpCvtss2sd
	OpCvtsd2ss
	OpMovdToXmm // GPR -> XMM bit pattern (f32/f64 reinterpret)
	OpMovdFromXmm

	OpMovsdLoad  // dst <- [amode], 8 bytes (backend/isa/amd64.Rewrite's float spill reload; movsd's memory form covers f32 spills too, see Rewrite's doc comment)
	OpMovsdStore // [amode] <- Src1, 8 bytes (backend/isa/amd64.Rewrite's float spill store)

	OpJmp
	OpJcc
	OpCallDirect
	OpCallIndirect
	OpRet
	OpPush
	OpPop
)

// AluOp selects which ALU operation OpAluRR/OpAluRI perform.
type AluOp byte

const (
	AluAdd AluOp = iota
	AluSub
	AluAnd
	AluOr
	AluXor
	AluImul
	AluDiv // SSE only: divss/divsd
	AluMin // SSE only: minss/minsd
	AluMax // SSE only: maxss/maxsd
)

// ShiftOp selects which shift/rotate OpShiftRR/OpShiftRI perform.
type ShiftOp byte

const (
	ShiftShl ShiftOp = iota
	ShiftShr
	ShiftSar
	ShiftRol
	ShiftRor
)

// CondCode is the x86 condition-code nibble used by Jcc/Setcc/Cmov, indexed
// by the same ordering the encoder emits (0x0F8x/0x0F9x/0x0F4x + cc).
type CondCode byte

const (
	CcO CondCode = iota
	CcNO
	CcB
	CcAE
	CcZ
	CcNZ
	CcBE
	CcA
	CcS
	CcNS
	CcP
	CcNP
	CcL
	CcGE
	CcLE
	CcG
)

func (c CondCode) negate() CondCode { return c ^ 1 }

// Amode is a memory operand: [Base + Index*Scale + Disp], Index optional.
type Amode struct {
	Base   backend.VReg
	Index  backend.VReg
	Scale  byte // 1, 2, 4, or 8; meaningless if Index is zero-valued
	Disp   int32
	HasIdx bool
}

// Inst is one amd64 MachInst (spec.md §3.2). Dst is a def operand; Src1/Src2
// are uses unless otherwise noted per Op. Width is the operation's operand
// size in bytes (1/2/4/8) for GPR ops.
type Inst struct {
	Op         Op
	Dst        backend.VReg
	Src1, Src2 backend.VReg
	Imm        int64
	Amode      Amode
	Alu        AluOp
	Shift      ShiftOp
	Cc         CondCode
	Width      byte
	Signed     bool
	IsDouble   bool
	Vex        bool          // OpSseAluRR's AluMin/AluMax only: 3-operand VEX form (dst, Src1, Src2) instead of destructive 2-operand SSE2 (dst==Src1, Src2)
	Target     backend.Label // Jmp/Jcc target
	FuncSym    string        // CallDirect's callee symbol name

	// SrcLoc/HasSrcLoc name the CLIF instruction this Inst lowers from, set by
	// InstsFromVCode from backend.VCode.SrcLocs; synthetic instructions this
	// package inserts after lowering (Rewrite's spill reloads/stores,
	// Prologue/Epilogue) leave HasSrcLoc false, since they have no CLIF
	// instruction of their own (spec.md §6.2's MachSourceLoc).
	SrcLoc    ssa.Inst
	HasSrcLoc bool

	// HasTrap/Trap mark this Inst as the site a hardware fault lands on if it
	// traps (amd64's IDIV raises #DE itself on a zero divisor, so the
	// trapping instruction is the division, not a separate check -- spec.md
	// §6.2's MachTrap table).
	HasTrap bool
	Trap    mach.TrapCode
}

func (i *Inst) String() string {
	return fmt.Sprintf("amd64.%d dst=%s src1=%s src2=%s imm=%d", i.Op, i.Dst, i.Src1, i.Src2, i.Imm)
}
