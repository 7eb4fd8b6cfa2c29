package backend

import (
	"fmt"

	"github.com/clifgen/wazevo-clif/ssa"
)

// ABIArgKind says whether an ABIArg lives in a register or on the stack.
type ABIArgKind byte

const (
	ABIArgKindReg ABIArgKind = iota
	ABIArgKindStack
)

func (k ABIArgKind) String() string {
	switch k {
	case ABIArgKindReg:
		return "reg"
	case ABIArgKindStack:
		return "stack"
	default:
		return "invalid"
	}
}

// ABIArg is the resolved location of one parameter or return value.
type ABIArg struct {
	Index  int
	Kind   ABIArgKind
	Reg    PReg  // valid iff Kind == ABIArgKindReg
	Offset int64 // valid iff Kind == ABIArgKindStack: offset from the base of the arg/ret stack area
	Type   ssa.Type
}

func (a ABIArg) String() string {
	if a.Kind == ABIArgKindReg {
		return fmt.Sprintf("args[%d]: %s(%s)", a.Index, a.Kind, a.Reg)
	}
	return fmt.Sprintf("args[%d]: %s(+%d)", a.Index, a.Kind, a.Offset)
}

// ABIMachineSpec is the table-driven per-(ISA, CallConv) contract spec.md
// §4.2/§9's open question calls for: register lists, stack alignment, and
// shadow-space reservation, queried uniformly regardless of which pair was
// configured.
type ABIMachineSpec interface {
	// IntParamRegs / FloatParamRegs list the registers used for integer and
	// float/vector parameters, in argument order.
	IntParamRegs() []PReg
	FloatParamRegs() []PReg
	// IntResultRegs / FloatResultRegs list the registers used for integer
	// and float/vector results, in result order.
	IntResultRegs() []PReg
	FloatResultRegs() []PReg
	// StackAlignBytes is the required alignment of the outgoing-argument
	// stack area (16 for both System V and AAPCS64).
	StackAlignBytes() int64
	// ShadowSpaceBytes is reserved by the caller before its outgoing stack
	// arguments even when unused by the callee (32, Windows x64 only).
	ShadowSpaceBytes() int64
	// CalleeSavedInt / CalleeSavedFloat list the PRegs the ABI requires a
	// callee to preserve across a call.
	CalleeSavedInt() []PReg
	CalleeSavedFloat() []PReg
}

// FunctionABI computes and caches the argument/return locations for one
// Signature under a given ABIMachineSpec.
type FunctionABI struct {
	spec ABIMachineSpec

	Args, Rets                 []ABIArg
	ArgStackSize, RetStackSize int64
}

// NewFunctionABI resolves sig's parameter/return locations under spec.
func NewFunctionABI(spec ABIMachineSpec, sig *ssa.Signature) *FunctionABI {
	a := &FunctionABI{spec: spec}
	a.Args = make([]ABIArg, len(sig.Params))
	a.ArgStackSize = a.layout(a.Args, sig.Params, spec.IntParamRegs(), spec.FloatParamRegs())
	a.Rets = make([]ABIArg, len(sig.Results))
	a.RetStackSize = a.layout(a.Rets, sig.Results, spec.IntResultRegs(), spec.FloatResultRegs())
	return a
}

// layout assigns each param a register (while the appropriate class's
// register list has room) or a stack slot, returning the total stack bytes
// consumed, rounded to the ABI's stack alignment.
func (a *FunctionABI) layout(dst []ABIArg, params []ssa.AbiParam, intRegs, floatRegs []PReg) int64 {
	nextInt, nextFloat := 0, 0
	var offset int64
	for i, p := range params {
		size := int64(p.Type.Size())
		if size < 8 {
			size = 8 // every ABI in scope passes sub-word scalars in a full slot/register
		}
		switch {
		case p.Type.IsFloat() && nextFloat < len(floatRegs):
			dst[i] = ABIArg{Index: i, Kind: ABIArgKindReg, Reg: floatRegs[nextFloat], Type: p.Type}
			nextFloat++
		case !p.Type.IsFloat() && nextInt < len(intRegs):
			dst[i] = ABIArg{Index: i, Kind: ABIArgKindReg, Reg: intRegs[nextInt], Type: p.Type}
			nextInt++
		default:
			dst[i] = ABIArg{Index: i, Kind: ABIArgKindStack, Offset: offset, Type: p.Type}
			offset += size
		}
	}
	align := a.spec.StackAlignBytes()
	if rem := offset % align; rem != 0 {
		offset += align - rem
	}
	return offset
}

// SystemVAMD64 is the Linux/macOS x86-64 calling convention (spec.md §4.2).
var SystemVAMD64 ABIMachineSpec = systemVAMD64{}

type systemVAMD64 struct{}

func (systemVAMD64) IntParamRegs() []PReg {
	return pregs(RegClassInt, rdi, rsi, rdx, rcx, r8, r9)
}
func (systemVAMD64) FloatParamRegs() []PReg  { return pregs(RegClassFloat, 0, 1, 2, 3, 4, 5, 6, 7) }
func (systemVAMD64) IntResultRegs() []PReg   { return pregs(RegClassInt, rax, rdx) }
func (systemVAMD64) FloatResultRegs() []PReg { return pregs(RegClassFloat, 0, 1) }
func (systemVAMD64) StackAlignBytes() int64  { return 16 }
func (systemVAMD64) ShadowSpaceBytes() int64 { return 0 }
func (systemVAMD64) CalleeSavedInt() []PReg {
	return pregs(RegClassInt, rbx, r12, r13, r14, r15, rbp)
}
func (systemVAMD64) CalleeSavedFloat() []PReg { return nil }

// WindowsFastcallAMD64 is the Windows x64 calling convention (spec.md §4.2).
var WindowsFastcallAMD64 ABIMachineSpec = windowsFastcallAMD64{}

type windowsFastcallAMD64 struct{}

func (windowsFastcallAMD64) IntParamRegs() []PReg   { return pregs(RegClassInt, rcx, rdx, r8, r9) }
func (windowsFastcallAMD64) FloatParamRegs() []PReg { return pregs(RegClassFloat, 0, 1, 2, 3) }
func (windowsFastcallAMD64) IntResultRegs() []PReg  { return pregs(RegClassInt, rax) }
func (windowsFastcallAMD64) FloatResultRegs() []PReg {
	return pregs(RegClassFloat, 0)
}
func (windowsFastcallAMD64) StackAlignBytes() int64  { return 16 }
func (windowsFastcallAMD64) ShadowSpaceBytes() int64 { return 32 }
func (windowsFastcallAMD64) CalleeSavedInt() []PReg {
	return pregs(RegClassInt, rbx, rsi, rdi, r12, r13, r14, r15, rbp)
}
func (windowsFastcallAMD64) CalleeSavedFloat() []PReg {
	return pregs(RegClassFloat, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15)
}

// AAPCS64 is the ARM64 procedure call standard (spec.md §4.2).
var AAPCS64 ABIMachineSpec = aapcs64{}

type aapcs64 struct{}

func (aapcs64) IntParamRegs() []PReg    { return pregs(RegClassInt, 0, 1, 2, 3, 4, 5, 6, 7) }
func (aapcs64) FloatParamRegs() []PReg  { return pregs(RegClassFloat, 0, 1, 2, 3, 4, 5, 6, 7) }
func (aapcs64) IntResultRegs() []PReg   { return pregs(RegClassInt, 0, 1) }
func (aapcs64) FloatResultRegs() []PReg { return pregs(RegClassFloat, 0, 1) }
func (aapcs64) StackAlignBytes() int64  { return 16 }
func (aapcs64) ShadowSpaceBytes() int64 { return 0 }
func (aapcs64) CalleeSavedInt() []PReg {
	return pregs(RegClassInt, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30)
}
func (aapcs64) CalleeSavedFloat() []PReg {
	return pregs(RegClassFloat, 8, 9, 10, 11, 12, 13, 14, 15)
}

func pregs(class RegClass, nums ...byte) []PReg {
	out := make([]PReg, len(nums))
	for i, n := range nums {
		out[i] = MakePReg(class, n)
	}
	return out
}

// x86-64 integer hardware register numbers, in the conventional encoding
// order used by both ABIs above (spec.md §4.2's named register lists).
const (
	rax byte = 0
	rcx byte = 1
	rdx byte = 2
	rbx byte = 3
	rsp byte = 4
	rbp byte = 5
	rsi byte = 6
	rdi byte = 7
	r8  byte = 8
	r9  byte = 9
	r10 byte = 10
	r11 byte = 11
	r12 byte = 12
	r13 byte = 13
	r14 byte = 14
	r15 byte = 15
)

// ResolveABI returns the ABIMachineSpec for (isa, callConv), or an error
// naming the unimplemented pair -- per spec.md §9's open question, an
// unimplemented (ISA, call_conv) combination must produce a clear
// configuration error rather than silently falling back to another ABI.
func ResolveABI(isaName string, callConv ssa.CallConv) (ABIMachineSpec, error) {
	switch isaName {
	case "amd64", "x86_64":
		switch callConv {
		case ssa.CallConvSystemV:
			return SystemVAMD64, nil
		case ssa.CallConvWindowsFastcall:
			return WindowsFastcallAMD64, nil
		}
	case "arm64", "aarch64":
		switch callConv {
		case ssa.CallConvAppleAarch64:
			return AAPCS64, nil
		}
	}
	return nil, fmt.Errorf("unimplemented (isa, call_conv) pair: %s / %s", isaName, callConv)
}
