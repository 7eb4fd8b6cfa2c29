package amd64

import (
	"testing"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/stretchr/testify/require"

	"github.com/clifgen/wazevo-clif/backend"
)

// assembleWithGolangAsm drives golang-asm the way
// internal/asm/golang_asm.GolangAsmBaseAssembler does in wazero: a Builder
// sized for a handful of instructions, Progs appended one at a time, then
// Assemble to get the final bytes.
func assembleWithGolangAsm(t *testing.T, progs ...func(p *obj.Prog)) []byte {
	t.Helper()
	b, err := goasm.NewBuilder("amd64", 64)
	require.NoError(t, err)
	for _, set := range progs {
		p := b.NewProg()
		set(p)
		b.AddInstruction(p)
	}
	return b.Assemble()
}

func reg(class backend.RegClass, hw byte) backend.VReg {
	return backend.FromPReg(backend.MakePReg(class, hw))
}

// TestEncodeFunction_MatchesGolangAsm_AddRR cross-checks this package's own
// encoder against golang-asm for a 64-bit register-register add, the same
// differential-testing idea as wazero's amd64_debug package: two independent
// encoders agreeing on the same opcode is stronger evidence of correctness
// than either one alone.
func TestEncodeFunction_MatchesGolangAsm_AddRR(t *testing.T) {
	insts := [][]*Inst{{
		{Op: OpAluRR, Dst: reg(backend.RegClassInt, rax), Src1: reg(backend.RegClassInt, rax), Src2: reg(backend.RegClassInt, rcx), Alu: AluAdd, Width: 8},
	}}
	got, _, _, _ := EncodeFunction(insts, "add_rr")

	want := assembleWithGolangAsm(t, func(p *obj.Prog) {
		p.As = x86.AADDQ
		p.From.Type = obj.TYPE_REG
		p.From.Reg = x86.REG_CX
		p.To.Type = obj.TYPE_REG
		p.To.Reg = x86.REG_AX
	})

	require.Equal(t, want, got)
}

// TestEncodeFunction_MatchesGolangAsm_SubRR is the same cross-check for a
// 32-bit subtract, to exercise the non-REX.W encoding path too.
func TestEncodeFunction_MatchesGolangAsm_SubRR(t *testing.T) {
	insts := [][]*Inst{{
		{Op: OpAluRR, Dst: reg(backend.RegClassInt, rdx), Src1: reg(backend.RegClassInt, rdx), Src2: reg(backend.RegClassInt, rbx), Alu: AluSub, Width: 4},
	}}
	got, _, _, _ := EncodeFunction(insts, "sub_rr")

	want := assembleWithGolangAsm(t, func(p *obj.Prog) {
		p.As = x86.ASUBL
		p.From.Type = obj.TYPE_REG
		p.From.Reg = x86.REG_BX
		p.To.Type = obj.TYPE_REG
		p.To.Reg = x86.REG_DX
	})

	require.Equal(t, want, got)
}

// TestEncodeFunction_MatchesGolangAsm_Ret confirms a bare RET agrees too,
// covering the operand-less encoding path.
func TestEncodeFunction_MatchesGolangAsm_Ret(t *testing.T) {
	insts := [][]*Inst{{{Op: OpRet}}}
	got, _, _, _ := EncodeFunction(insts, "ret")

	want := assembleWithGolangAsm(t, func(p *obj.Prog) {
		p.As = x86.ARET
	})

	require.Equal(t, want, got)
}
