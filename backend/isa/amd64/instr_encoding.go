package amd64

import "github.com/clifgen/wazevo-clif/backend"

// encoder accumulates encoded bytes for one function body; Encode appends
// each Inst's bytes in turn, and records the byte offset of any Jmp/Jcc/Call
// rel32 field that still needs patching (spec.md §4.4, §6.2's
// MachReloc/MachCallSite vectors). EncodeFunction patches the Jmp/Jcc
// fixups itself once every block's offset is known, and surfaces the Call
// fixups as relocations.
type encoder struct {
	buf []byte
	// Fixups records, for each Jmp/Jcc/CallDirect emitted, the byte offset of
	// its rel32 field and the Label or symbol it targets.
	Fixups []Fixup
}

// Fixup is one not-yet-resolved rel32 field left by Encode.
type Fixup struct {
	Offset  int
	Label   backend.Label // valid unless FuncSym != ""
	FuncSym string
}

func newEncoder() *encoder { return &encoder{} }

func (e *encoder) u8(b byte)  { e.buf = append(e.buf, b) }
func (e *encoder) u32(v uint32) {
	e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
func (e *encoder) u64(v uint64) {
	e.u32(uint32(v))
	e.u32(uint32(v >> 32))
}

// rex emits a REX prefix iff any of w/r/x/b or an extended low register
// requires one; w is set for 64-bit operand size.
func (e *encoder) rex(w bool, reg, rm backend.PReg) {
	r := isExtended(reg)
	b := isExtended(rm)
	if !w && !r && !b {
		return
	}
	e.u8(0x40 | b2(w)<<3 | b2(r)<<2 | b2(b))
}

func b2(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// modrm emits a register-direct ModRM byte (mod=11).
func (e *encoder) modrmReg(reg, rm backend.PReg) {
	e.u8(0xC0 | regNum8(reg)<<3 | regNum8(rm))
}

// vex2AluRR emits the 3-byte-VEX form of a register-register SSE ALU op:
// dst, src1, src2/rm, with src1 as the non-destructive VEX.vvvv operand
// (AVX's minss/minsd/maxss/maxsd, gated on cpu_features.avx in Config -
// spec.md §6.3). The 3-byte form (not the shorter 2-byte 0xC5 prefix) is
// used unconditionally since this package allocates out of xmm0-xmm15 and
// the 2-byte form can't express VEX.B for an extended rm register.
func (e *encoder) vex2AluRR(dst, src1, src2 backend.PReg, isDouble bool, opcode byte) {
	r := b2(!isExtended(dst))
	b := b2(!isExtended(src2))
	e.u8(0xC4)
	e.u8(r<<7 | 1<<6 | b<<5 | 0x01) // mmmmm=00001: implied leading 0x0F map, VEX.X always 1 (no memory index here)
	pp := byte(0x02)
	if isDouble {
		pp = 0x03
	}
	vvvv := (^regNum8(src1)) & 0x0F
	e.u8(0<<7 | vvvv<<3 | 0<<2 | pp) // VEX.W=0, VEX.L=0 (128-bit xmm)
	e.u8(opcode)
	e.modrmReg(dst, src2)
}

// modrmMem emits a ModRM (+ SIB + disp32) addressing am, with reg as the
// ModRM.reg field (the non-memory operand or an opcode extension).
func (e *encoder) modrmMem(reg backend.PReg, am Amode) {
	baseNum := regNum8V(am.Base)
	needsSIB := am.HasIdx || baseNum == 0b100 // rsp/r12 require a SIB byte
	if needsSIB {
		e.u8(0x80 | regNum8(reg)<<3 | 0b100)
		idx := byte(0b100)
		scale := byte(0)
		if am.HasIdx {
			idx = regNum8V(am.Index)
			switch am.Scale {
			case 2:
				scale = 1
			case 4:
				scale = 2
			case 8:
				scale = 3
			}
		}
		e.u8(scale<<6 | idx<<3 | baseNum)
	} else {
		e.u8(0x80 | regNum8(reg)<<3 | baseNum)
	}
	e.u32(uint32(am.Disp))
}

func (e *encoder) amodeRex(w bool, reg backend.PReg, am Amode) {
	r := isExtended(reg)
	b := am.Base.IsPinned() && isExtended(am.Base.PinnedPReg())
	x := am.HasIdx && am.Index.IsPinned() && isExtended(am.Index.PinnedPReg())
	if !w && !r && !b && !x {
		return
	}
	e.u8(0x40 | b2(w)<<3 | b2(r)<<2 | b2(x)<<1 | b2(b))
}

// Encode appends i's bytes to e.buf, recording a Fixup for any rel32 field.
func (e *encoder) Encode(i *Inst) {
	switch i.Op {
	case OpMovRR:
		if i.Width == 4 {
			e.rex(false, i.Dst.PinnedPReg(), i.Src1.PinnedPReg())
			e.u8(0x89)
		} else {
			e.rex(true, i.Dst.PinnedPReg(), i.Src1.PinnedPReg())
			e.u8(0x89)
		}
		e.modrmReg(i.Src1.PinnedPReg(), i.Dst.PinnedPReg()) // mov dst, src1: opcode 0x89 is MOV r/m, r -- reg field is source

	case OpMovRI:
		d := i.Dst.PinnedPReg()
		if i.Width == 8 {
			e.rex(true, intReg(0), d)
			e.u8(0xB8 | regNum8(d))
			e.u64(uint64(i.Imm))
		} else {
			e.rex(false, intReg(0), d)
			e.u8(0xB8 | regNum8(d))
			e.u32(uint32(i.Imm))
		}

	case OpMovLoad:
		d := i.Dst.PinnedPReg()
		switch {
		case i.Width == 8:
			e.amodeRex(true, d, i.Amode)
			e.u8(0x8B)
		case i.Width == 4 && !i.Signed:
			e.amodeRex(false, d, i.Amode)
			e.u8(0x8B)
		case i.Width == 4 && i.Signed:
			e.amodeRex(true, d, i.Amode)
			e.u8(0x63) // MOVSXD
		default:
			e.amodeRex(true, d, i.Amode)
			e.u8(0x0F)
			if i.Signed {
				e.u8(0xBE + widthBit(i.Width))
			} else {
				e.u8(0xB6 + widthBit(i.Width))
			}
		}
		e.modrmMem(d, i.Amode)

	case OpMovStore:
		s := i.Src1.PinnedPReg()
		switch i.Width {
		case 1:
			e.amodeRex(false, s, i.Amode)
			e.u8(0x88)
		case 2:
			e.u8(0x66)
			e.amodeRex(false, s, i.Amode)
			e.u8(0x89)
		case 8:
			e.amodeRex(true, s, i.Amode)
			e.u8(0x89)
		default:
			e.amodeRex(false, s, i.Amode)
			e.u8(0x89)
		}
		e.modrmMem(s, i.Amode)

	case OpMovZx:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		switch i.Width {
		case 4:
			// A plain 32-bit MOV already zero-extends into the full 64-bit
			// register on amd64; no explicit extension opcode is needed.
			e.rex(false, d, s)
			e.u8(0x8B) // MOV r, r/m: reg field is the destination
			e.modrmReg(d, s)
		default:
			e.rex(true, d, s)
			e.u8(0x0F)
			e.u8(0xB6 + widthBit(i.Width))
			e.modrmReg(d, s)
		}

	case OpMovSx:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		if i.Width == 4 {
			e.rex(true, d, s)
			e.u8(0x63) // MOVSXD
			e.modrmReg(d, s)
		} else {
			e.rex(true, d, s)
			e.u8(0x0F)
			e.u8(0xBE + widthBit(i.Width))
			e.modrmReg(d, s)
		}

	case OpLea:
		d := i.Dst.PinnedPReg()
		e.amodeRex(true, d, i.Amode)
		e.u8(0x8D)
		e.modrmMem(d, i.Amode)

	case OpAluRR:
		d, s := i.Dst.PinnedPReg(), i.Src2.PinnedPReg()
		if i.Alu == AluImul {
			e.rex(i.Width == 8, d, s)
			e.u8(0x0F)
			e.u8(0xAF)
			e.modrmReg(d, s)
			return
		}
		op := aluOpcodeRR(i.Alu)
		e.rex(i.Width == 8, s, d)
		e.u8(op)
		e.modrmReg(s, d)

	case OpAluRI:
		d := i.Dst.PinnedPReg()
		e.rex(i.Width == 8, intReg(0), d)
		e.u8(0x81)
		e.u8(0xC0 | aluModrmExt(i.Alu)<<3 | regNum8(d))
		e.u32(uint32(i.Imm))

	case OpNot:
		d := i.Dst.PinnedPReg()
		e.rex(i.Width == 8, intReg(0), d)
		e.u8(0xF7)
		e.u8(0xC0 | 2<<3 | regNum8(d))

	case OpNeg:
		d := i.Dst.PinnedPReg()
		e.rex(i.Width == 8, intReg(0), d)
		e.u8(0xF7)
		e.u8(0xC0 | 3<<3 | regNum8(d))

	case OpShiftRR:
		d := i.Dst.PinnedPReg()
		e.rex(i.Width == 8, intReg(0), d)
		e.u8(0xD3)
		e.u8(0xC0 | shiftModrmExt(i.Shift)<<3 | regNum8(d))

	case OpShiftRI:
		d := i.Dst.PinnedPReg()
		e.rex(i.Width == 8, intReg(0), d)
		e.u8(0xC1)
		e.u8(0xC0 | shiftModrmExt(i.Shift)<<3 | regNum8(d))
		e.u8(byte(i.Imm))

	case OpIDiv:
		s := i.Src1.PinnedPReg()
		e.rex(i.Width == 8, intReg(0), s)
		e.u8(0xF7)
		ext := byte(7)
		if !i.Signed {
			ext = 6
		}
		e.u8(0xC0 | ext<<3 | regNum8(s))

	case OpCmpRR:
		e.rex(i.Width == 8, i.Src2.PinnedPReg(), i.Src1.PinnedPReg())
		e.u8(0x39)
		e.modrmReg(i.Src2.PinnedPReg(), i.Src1.PinnedPReg())

	case OpCmpRI:
		s := i.Src1.PinnedPReg()
		e.rex(i.Width == 8, intReg(0), s)
		e.u8(0x81)
		e.u8(0xC0 | 7<<3 | regNum8(s))
		e.u32(uint32(i.Imm))

	case OpSetcc:
		d := i.Dst.PinnedPReg()
		e.rex(false, intReg(0), d)
		e.u8(0x0F)
		e.u8(0x90 | byte(i.Cc))
		e.u8(0xC0 | regNum8(d))

	case OpCmov:
		d, s := i.Dst.PinnedPReg(), i.Src2.PinnedPReg()
		e.rex(i.Width == 8, d, s)
		e.u8(0x0F)
		e.u8(0x40 | byte(i.Cc))
		e.modrmReg(d, s)

	case OpBsf:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		e.rex(i.Width == 8, d, s)
		e.u8(0x0F)
		e.u8(0xBC)
		e.modrmReg(d, s)

	case OpBsr:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		e.rex(i.Width == 8, d, s)
		e.u8(0x0F)
		e.u8(0xBD)
		e.modrmReg(d, s)

	case OpPopcnt:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		e.u8(0xF3)
		e.rex(i.Width == 8, d, s)
		e.u8(0x0F)
		e.u8(0xB8)
		e.modrmReg(d, s)

	case OpUd2:
		e.u8(0x0F)
		e.u8(0x0B)

	case OpMovss, OpMovsd:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		e.u8(sseMandatoryPrefix(i.Op == OpMovsd))
		e.rex(false, d, s)
		e.u8(0x0F)
		e.u8(0x10)
		e.modrmReg(d, s)

	case OpMovsdLoad:
		d := i.Dst.PinnedPReg()
		e.u8(sseMandatoryPrefix(true))
		e.amodeRex(false, d, i.Amode)
		e.u8(0x0F)
		e.u8(0x10)
		e.modrmMem(d, i.Amode)

	case OpMovsdStore:
		s := i.Src1.PinnedPReg()
		e.u8(sseMandatoryPrefix(true))
		e.amodeRex(false, s, i.Amode)
		e.u8(0x0F)
		e.u8(0x11)
		e.modrmMem(s, i.Amode)

	case OpSseAluRR:
		if i.Vex && (i.Alu == AluMin || i.Alu == AluMax) {
			e.vex2AluRR(i.Dst.PinnedPReg(), i.Src1.PinnedPReg(), i.Src2.PinnedPReg(), i.IsDouble, sseAluOpcode(i.Alu))
			return
		}
		d, s := i.Dst.PinnedPReg(), i.Src2.PinnedPReg()
		e.u8(sseMandatoryPrefix(i.IsDouble))
		e.rex(false, d, s)
		e.u8(0x0F)
		e.u8(sseAluOpcode(i.Alu))
		e.modrmReg(d, s)

	case OpSqrtSS, OpSqrtSD:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		e.u8(sseMandatoryPrefix(i.Op == OpSqrtSD))
		e.rex(false, d, s)
		e.u8(0x0F)
		e.u8(0x51)
		e.modrmReg(d, s)

	case OpXorps:
		d, s := i.Dst.PinnedPReg(), i.Src2.PinnedPReg()
		e.rex(false, d, s)
		e.u8(0x0F)
		e.u8(0x57)
		e.modrmReg(d, s)

	case OpAndps:
		d, s := i.Dst.PinnedPReg(), i.Src2.PinnedPReg()
		e.rex(false, d, s)
		e.u8(0x0F)
		e.u8(0x54)
		e.modrmReg(d, s)

	case OpUcomiss, OpUcomisd:
		d, s := i.Src1.PinnedPReg(), i.Src2.PinnedPReg()
		if i.Op == OpUcomisd {
			e.u8(0x66)
		}
		e.rex(false, d, s)
		e.u8(0x0F)
		e.u8(0x2E)
		e.modrmReg(d, s)

	case OpCvtsi2ss, OpCvtsi2sd:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		e.u8(sseMandatoryPrefix(i.Op == OpCvtsi2sd))
		e.rex(i.Width == 8, d, s)
		e.u8(0x0F)
		e.u8(0x2A)
		e.modrmReg(d, s)

	case OpCvttss2si, OpCvttsd2si:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		e.u8(sseMandatoryPrefix(i.Op == OpCvttsd2si))
		e.rex(i.Width == 8, d, s)
		e.u8(0x0F)
		e.u8(0x2C)
		e.modrmReg(d, s)

	case OpCvtss2sd:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		e.u8(0xF3)
		e.rex(false, d, s)
		e.u8(0x0F)
		e.u8(0x5A)
		e.modrmReg(d, s)

	case OpCvtsd2ss:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		e.u8(0xF2)
		e.rex(false, d, s)
		e.u8(0x0F)
		e.u8(0x5A)
		e.modrmReg(d, s)

	case OpMovdToXmm:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		e.u8(0x66)
		e.rex(i.Width == 8, d, s)
		e.u8(0x0F)
		e.u8(0x6E)
		e.modrmReg(d, s)

	case OpMovdFromXmm:
		d, s := i.Dst.PinnedPReg(), i.Src1.PinnedPReg()
		e.u8(0x66)
		e.rex(i.Width == 8, s, d)
		e.u8(0x0F)
		e.u8(0x7E)
		e.modrmReg(s, d)

	case OpJmp:
		e.u8(0xE9)
		e.Fixups = append(e.Fixups, Fixup{Offset: len(e.buf), Label: i.Target})
		e.u32(0)

	case OpJcc:
		e.u8(0x0F)
		e.u8(0x80 | byte(i.Cc))
		e.Fixups = append(e.Fixups, Fixup{Offset: len(e.buf), Label: i.Target})
		e.u32(0)

	case OpCallDirect:
		e.u8(0xE8)
		e.Fixups = append(e.Fixups, Fixup{Offset: len(e.buf), FuncSym: i.FuncSym})
		e.u32(0)

	case OpCallIndirect:
		s := i.Src1.PinnedPReg()
		e.rex(false, intReg(0), s)
		e.u8(0xFF)
		e.u8(0xC0 | 2<<3 | regNum8(s))

	case OpRet:
		e.u8(0xC3)

	case OpPush:
		s := i.Src1.PinnedPReg()
		if isExtended(s) {
			e.u8(0x41)
		}
		e.u8(0x50 | regNum8(s))

	case OpPop:
		d := i.Dst.PinnedPReg()
		if isExtended(d) {
			e.u8(0x41)
		}
		e.u8(0x58 | regNum8(d))

	default:
		panic("amd64: unencoded Op")
	}
}

func widthBit(w byte) byte {
	if w == 2 {
		return 1
	}
	return 0
}

func sseMandatoryPrefix(isDouble bool) byte {
	if isDouble {
		return 0xF2
	}
	return 0xF3
}

func aluOpcodeRR(op AluOp) byte {
	switch op {
	case AluAdd:
		return 0x01
	case AluSub:
		return 0x29
	case AluAnd:
		return 0x21
	case AluOr:
		return 0x09
	default: // AluXor
		return 0x31
	}
}

func aluModrmExt(op AluOp) byte {
	switch op {
	case AluAdd:
		return 0
	case AluSub:
		return 5
	case AluAnd:
		return 4
	case AluOr:
		return 1
	default: // AluXor
		return 6
	}
}

func shiftModrmExt(op ShiftOp) byte {
	switch op {
	case ShiftRol:
		return 0
	case ShiftRor:
		return 1
	case ShiftShl:
		return 4
	case ShiftShr:
		return 5
	default: // ShiftSar
		return 7
	}
}

func sseAluOpcode(op AluOp) byte {
	switch op {
	case AluAdd:
		return 0x58
	case AluSub:
		return 0x5C
	case AluImul:
		return 0x59 // mulss/mulsd
	case AluDiv:
		return 0x5E
	case AluMin:
		return 0x5D
	default: // AluMax
		return 0x5F
	}
}
