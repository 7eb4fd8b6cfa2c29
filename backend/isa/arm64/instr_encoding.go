package arm64

import "github.com/clifgen/wazevo-clif/backend"

// Fixup records a 32-bit instruction word that still needs its branch-offset
// or call-symbol field patched once every block's final byte offset is
// known (mirroring amd64's Fixup, generalized to arm64's word-indexed,
// not byte-indexed, immediate fields).
type Fixup struct {
	WordOffset int // index into encoder.words, not a byte offset
	Label      backend.Label
	FuncSym    string
	Kind       FixupKind
}

// FixupKind distinguishes the branch-immediate field width/shape a Fixup
// must patch.
type FixupKind byte

const (
	FixupB     FixupKind = iota // 26-bit word-offset immediate (B, BL)
	FixupBCond                  // 19-bit word-offset immediate (B.cond)
)

type encoder struct {
	words  []uint32
	Fixups []Fixup
}

func newEncoder() *encoder { return &encoder{} }

func (e *encoder) emit(w uint32) { e.words = append(e.words, w) }

func sizeField(width byte) uint32 {
	switch width {
	case 1:
		return 0b00
	case 2:
		return 0b01
	case 4:
		return 0b10
	default:
		return 0b11
	}
}

func sf64(width byte) uint32 {
	if width == 8 {
		return 1
	}
	return 0
}

// dp2 encodes the "data-processing (2 source)" family: SDIV/UDIV and the
// four register-shift variants all share this shape, differing only in the
// 6-bit opcode field.
func dp2(sfBit uint32, opcode uint32, rm, rn, rd byte) uint32 {
	return sfBit<<31 | 0b11010110<<21 | uint32(rm)<<16 | opcode<<10 | uint32(rn)<<5 | uint32(rd)
}

func addSubShifted(sfBit, op, s uint32, rm, rn, rd byte) uint32 {
	return sfBit<<31 | op<<30 | s<<29 | 0b01011<<24 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd)
}

func addSubImm(sfBit, op, s uint32, imm12 uint32, rn, rd byte) uint32 {
	return sfBit<<31 | op<<30 | s<<29 | 0b100010<<23 | (imm12&0xFFF)<<10 | uint32(rn)<<5 | uint32(rd)
}

func logicalShifted(sfBit, opc uint32, rm, rn, rd byte) uint32 {
	return sfBit<<31 | opc<<29 | 0b01010<<24 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd)
}

func bfm(sfBit, variant uint32, n uint32, immr, imms uint32, rn, rd byte) uint32 {
	return sfBit<<31 | variant<<29 | 0b100110<<23 | n<<22 | (immr&0x3F)<<16 | (imms&0x3F)<<10 | uint32(rn)<<5 | uint32(rd)
}

func loadStoreImm(sizeBits, opc, variant uint32, imm9 int32, rn, rt byte) uint32 {
	return sizeBits<<30 | 0b111<<27 | opc<<22 | (uint32(imm9)&0x1FF)<<12 | variant<<10 | uint32(rn)<<5 | uint32(rt)
}

func loadStorePairImm(opcBit, variant, l uint32, imm7 int32, rt2, rn, rt byte) uint32 {
	return opcBit<<30 | 0b101<<27 | variant<<23 | l<<22 | (uint32(imm7)&0x7F)<<15 | uint32(rt2)<<10 | uint32(rn)<<5 | uint32(rt)
}

func (e *encoder) Encode(i *Inst) {
	switch i.Op {
	case OpMovRR:
		if regNum(i.Src1) == sp || regNum(i.Dst) == sp {
			// ORR reads and writes register 31 as xzr, so a move to or from sp
			// uses the ADD Dst, Src1, #0 alias instead.
			e.emit(addSubImm(sf64(i.Width), 0, 0, 0, regNum(i.Src1), regNum(i.Dst)))
			break
		}
		// ORR Dst, xzr, Src1 (the canonical MOV register-register alias).
		e.emit(logicalShifted(sf64(i.Width), 0b01, regNum(i.Src1), sp, regNum(i.Dst))) // rn=31 reads xzr in this instruction class

	case OpMovImm64:
		rd := regNum(i.Dst)
		u := uint64(i.Imm)
		first := true
		for hw := 0; hw < 4; hw++ {
			chunk := uint32((u >> (16 * hw)) & 0xFFFF)
			if chunk == 0 {
				continue
			}
			opc := uint32(0b11) // MOVK
			if first {
				opc = 0b10 // MOVZ
				first = false
			}
			e.emit(1<<31 | opc<<29 | 0b100101<<23 | uint32(hw)<<21 | chunk<<5 | uint32(rd))
		}
		if first {
			// every chunk was zero: the loop above never ran MOVZ.
			e.emit(1<<31 | 0b10<<29 | 0b100101<<23 | 0<<21 | 0<<5 | uint32(rd))
		}

	case OpAluRRR:
		rd, rn, rm := regNum(i.Dst), regNum(i.Src1), regNum(i.Src2)
		switch i.Alu {
		case AluAdd:
			e.emit(addSubShifted(sf64(i.Width), 0, 0, rm, rn, rd))
		case AluSub:
			e.emit(addSubShifted(sf64(i.Width), 1, 0, rm, rn, rd))
		case AluAnd:
			e.emit(logicalShifted(sf64(i.Width), 0b00, rm, rn, rd))
		case AluOrr:
			e.emit(logicalShifted(sf64(i.Width), 0b01, rm, rn, rd))
		case AluEor:
			e.emit(logicalShifted(sf64(i.Width), 0b10, rm, rn, rd))
		}

	case OpAluRI:
		rd, rn := regNum(i.Dst), regNum(i.Src1)
		op := uint32(0)
		if i.Alu == AluSub {
			op = 1
		}
		e.emit(addSubImm(sf64(i.Width), op, 0, uint32(i.Imm), rn, rd))

	case OpMvn:
		e.emit(logicalShifted(sf64(i.Width), 0b01, regNum(i.Src1), sp, regNum(i.Dst)) | 1<<21) // ORN: N bit set

	case OpNeg:
		e.emit(addSubShifted(sf64(i.Width), 1, 0, regNum(i.Src1), sp, regNum(i.Dst))) // SUB Dst, xzr, Src1

	case OpMsub:
		rd, rn, rm, ra := regNum(i.Dst), regNum(i.Src1), regNum(i.Src2), regNum(i.Src3)
		e.emit(sf64(i.Width)<<31 | 0b11011<<24 | uint32(rm)<<16 | 1<<15 | uint32(ra)<<10 | uint32(rn)<<5 | uint32(rd))

	case OpMul:
		rd, rn, rm := regNum(i.Dst), regNum(i.Src1), regNum(i.Src2)
		e.emit(sf64(i.Width)<<31 | 0b11011<<24 | uint32(rm)<<16 | 0<<15 | uint32(sp)<<10 | uint32(rn)<<5 | uint32(rd))

	case OpShiftRRR:
		var opcode uint32
		switch i.Shift {
		case ShiftLsl:
			opcode = 0b001000
		case ShiftLsr:
			opcode = 0b001001
		case ShiftAsr:
			opcode = 0b001010
		case ShiftRor:
			opcode = 0b001011
		}
		e.emit(dp2(sf64(i.Width), opcode, regNum(i.Src2), regNum(i.Src1), regNum(i.Dst)))

	case OpDivRRR:
		opcode := uint32(0b000010) // UDIV
		if i.Signed {
			opcode = 0b000011 // SDIV
		}
		e.emit(dp2(sf64(i.Width), opcode, regNum(i.Src2), regNum(i.Src1), regNum(i.Dst)))

	case OpClz:
		e.emit(sf64(i.Width)<<31 | 1<<30 | 0b11010110<<21 | 0b000100<<10 | uint32(regNum(i.Src1))<<5 | uint32(regNum(i.Dst)))

	case OpRbit:
		e.emit(sf64(i.Width)<<31 | 1<<30 | 0b11010110<<21 | 0b000000<<10 | uint32(regNum(i.Src1))<<5 | uint32(regNum(i.Dst)))

	case OpSbfm:
		// Width is the destination register size (4 or 8 bytes, selecting
		// Wd/Xd and sf/N); Imm carries the source value's bit width, so
		// imms = Imm-1 keeps exactly that many low bits and sign-extends
		// the rest.
		n := sf64(i.Width)
		e.emit(bfm(sf64(i.Width), 0b00, n, 0, uint32(i.Imm)-1, regNum(i.Src1), regNum(i.Dst)))

	case OpUbfm:
		n := sf64(i.Width)
		e.emit(bfm(sf64(i.Width), 0b10, n, 0, uint32(i.Imm)-1, regNum(i.Src1), regNum(i.Dst)))

	case OpCmpRR:
		e.emit(addSubShifted(sf64(i.Width), 1, 1, regNum(i.Src2), regNum(i.Src1), sp)) // SUBS xzr(rd=31), Src1, Src2

	case OpCmpRI:
		e.emit(addSubImm(sf64(i.Width), 1, 1, uint32(i.Imm), regNum(i.Src1), sp))

	case OpCset:
		// CSET Dst, cond == CSINC Dst, xzr, xzr, invert(cond).
		cc := i.Cc.negate()
		e.emit(sf64(8)<<31 | 0b11010100<<21 | uint32(sp)<<16 | uint32(cc)<<12 | 0b01<<10 | uint32(sp)<<5 | uint32(regNum(i.Dst)))

	case OpCsel:
		e.emit(sf64(i.Width)<<31 | 0b11010100<<21 | uint32(regNum(i.Src2))<<16 | uint32(i.Cc)<<12 | uint32(regNum(i.Src1))<<5 | uint32(regNum(i.Dst)))

	case OpFmovRR:
		typ := uint32(0)
		if i.IsDouble {
			typ = 1
		}
		e.emit(0b11110<<24 | typ<<22 | 1<<21 | 0b10000<<10 | uint32(regNum(i.Src1))<<5 | uint32(regNum(i.Dst)))

	case OpFmovToGPR:
		typ, sfBit := uint32(0), uint32(0)
		if i.IsDouble {
			typ, sfBit = 1, 1
		}
		e.emit(sfBit<<31 | 0b11110<<24 | typ<<22 | 1<<21 | 0b110<<16 | uint32(regNum(i.Src1))<<5 | uint32(regNum(i.Dst)))

	case OpFmovFromGPR:
		typ, sfBit := uint32(0), uint32(0)
		if i.IsDouble {
			typ, sfBit = 1, 1
		}
		e.emit(sfBit<<31 | 0b11110<<24 | typ<<22 | 1<<21 | 0b111<<16 | uint32(regNum(i.Src1))<<5 | uint32(regNum(i.Dst)))

	case OpFaluRRR:
		typ := uint32(0)
		if i.IsDouble {
			typ = 1
		}
		var opcode uint32
		switch i.Alu {
		case AluAdd:
			opcode = 0b0010
		case AluSub:
			opcode = 0b0011
		case AluMul:
			opcode = 0b0000
		case AluDiv:
			opcode = 0b0001
		case AluMax:
			opcode = 0b0100
		case AluMin:
			opcode = 0b0101
		}
		e.emit(0b11110<<24 | typ<<22 | 1<<21 | uint32(regNum(i.Src2))<<16 | opcode<<12 | 0b10<<10 | uint32(regNum(i.Src1))<<5 | uint32(regNum(i.Dst)))

	case OpFneg, OpFabs, OpFsqrt:
		typ := uint32(0)
		if i.IsDouble {
			typ = 1
		}
		var opcode uint32
		switch i.Op {
		case OpFabs:
			opcode = 0b000001
		case OpFneg:
			opcode = 0b000010
		case OpFsqrt:
			opcode = 0b000011
		}
		e.emit(0b11110<<24 | typ<<22 | 1<<21 | opcode<<15 | 0b10000<<10 | uint32(regNum(i.Src1))<<5 | uint32(regNum(i.Dst)))

	case OpFcmp:
		typ := uint32(0)
		if i.IsDouble {
			typ = 1
		}
		e.emit(0b11110<<24 | typ<<22 | 1<<21 | uint32(regNum(i.Src2))<<16 | 0b1000<<10 | uint32(regNum(i.Src1))<<5)

	case OpFcvt:
		typ := uint32(0) // source is single
		opcode := uint32(0b000101) // convert to double
		if i.IsDouble {
			typ = 1 // source is double
			opcode = 0b000100 // convert to single
		}
		e.emit(0b11110<<24 | typ<<22 | 1<<21 | opcode<<15 | 0b10000<<10 | uint32(regNum(i.Src1))<<5 | uint32(regNum(i.Dst)))

	case OpScvtf, OpUcvtf, OpFcvtzs, OpFcvtzu:
		typ := uint32(0)
		if i.IsDouble {
			typ = 1
		}
		var opcode uint32
		switch i.Op {
		case OpFcvtzs:
			opcode = 0b000
		case OpFcvtzu:
			opcode = 0b001
		case OpScvtf:
			opcode = 0b010
		case OpUcvtf:
			opcode = 0b011
		}
		e.emit(sf64(i.Width)<<31 | 0b11110<<24 | typ<<22 | 1<<21 | opcode<<16 | uint32(regNum(i.Src1))<<5 | uint32(regNum(i.Dst)))

	case OpLdr:
		sizeBits := sizeField(i.Width)
		e.emit(loadStoreImm(sizeBits, 0b01, 0b00, i.Amode.Disp, regNum(i.Amode.Base), regNum(i.Dst)))
		if i.Signed && i.Width < 8 {
			e.emit(bfm(sf64(8), 0b00, 1, 0, uint32(i.Width)*8-1, regNum(i.Dst), regNum(i.Dst)))
		}

	case OpStr:
		sizeBits := sizeField(i.Width)
		e.emit(loadStoreImm(sizeBits, 0b00, 0b00, i.Amode.Disp, regNum(i.Amode.Base), regNum(i.Src1)))

	case OpStrPair:
		e.emit(loadStorePairImm(0b10, 0b011, 0, i.Amode.Disp/8, regNum(i.Src2), regNum(i.Amode.Base), regNum(i.Src1)))

	case OpLdrPair:
		e.emit(loadStorePairImm(0b10, 0b001, 1, i.Amode.Disp/8, regNum(i.Dst2), regNum(i.Amode.Base), regNum(i.Dst)))

	case OpStrPre:
		e.emit(loadStoreImm(0b11, 0b00, 0b11, i.Amode.Disp, regNum(i.Amode.Base), regNum(i.Src1)))

	case OpLdrPost:
		e.emit(loadStoreImm(0b11, 0b01, 0b01, i.Amode.Disp, regNum(i.Amode.Base), regNum(i.Dst)))

	case OpB:
		e.Fixups = append(e.Fixups, Fixup{WordOffset: len(e.words), Label: i.Target, Kind: FixupB})
		e.emit(0b000101 << 26)

	case OpBCond:
		e.Fixups = append(e.Fixups, Fixup{WordOffset: len(e.words), Label: i.Target, Kind: FixupBCond})
		e.emit(0b01010100<<24 | uint32(i.Cc))

	case OpBL:
		e.Fixups = append(e.Fixups, Fixup{WordOffset: len(e.words), FuncSym: i.FuncSym, Kind: FixupB})
		e.emit(0b100101 << 26)

	case OpBLR:
		e.emit(0b1101011<<25 | 0b0001<<21 | 0b11111<<16 | uint32(regNum(i.Src1))<<5)

	case OpRet:
		e.emit(0b1101011<<25 | 0b0010<<21 | 0b11111<<16 | uint32(lr)<<5)

	case OpBrk:
		e.emit(0b11010100001<<21 | 0<<5)
	}
}
