package ssa

import "fmt"

// Opcode identifies the operation an Instruction performs. The set here is
// the subset of Cranelift's instruction set needed to express every Wasm
// operator spec.md §6.1 requires the core to translate.
type Opcode int32

const (
	OpInvalid Opcode = iota

	OpIconst
	OpFconst

	OpIadd
	OpIsub
	OpImul
	OpSdiv
	OpUdiv
	OpSrem
	OpUrem
	OpBand
	OpBor
	OpBxor
	OpIshl
	OpUshr
	OpSshr
	OpRotl
	OpRotr
	OpClz
	OpCtz
	OpPopcnt
	OpIcmp

	OpFadd
	OpFsub
	OpFmul
	OpFdiv
	OpFneg
	OpFabs
	OpSqrt
	OpFmin
	OpFmax
	OpFcmp

	OpSelect

	OpUextend
	OpSextend
	OpIreduce // wrap (e.g. i64 -> i32)
	OpFpromote
	OpFdemote
	OpFcvtToSint
	OpFcvtToUint
	OpFcvtFromSint
	OpFcvtFromUint
	OpBitcast

	OpLoad
	OpStore

	OpJump
	OpBrif
	OpBrTable
	OpReturn
	OpCall
	OpCallIndirect

	OpTrap // unconditional trap (unreachable)
)

// Cond is an integer or float comparison condition code.
type Cond byte

const (
	CondEqual Cond = iota
	CondNotEqual
	CondSignedLessThan
	CondSignedGreaterThanOrEqual
	CondSignedGreaterThan
	CondSignedLessThanOrEqual
	CondUnsignedLessThan
	CondUnsignedGreaterThanOrEqual
	CondUnsignedGreaterThan
	CondUnsignedLessThanOrEqual
)

// MemFlags records the trapping/alignment contract of a Load/Store.
type MemFlags struct {
	Align   byte // log2 alignment, as encoded in the Wasm memarg
	Aligned bool
}

// InstructionData is the opcode + operand payload of one Instruction. It is
// a manually-discriminated union: only the fields relevant to Opcode are
// meaningful, matching spec.md 3.1's "opcode + argument list + controlling
// type" description of CLIF instruction data.
type InstructionData struct {
	Opcode    Opcode
	ctrlType  Type
	args      valueList
	results   valueList
	Imm64     int64
	Cond      Cond
	Mem       MemFlags
	FuncRef   FuncRef
	SigRef    SigRef
	JumpTable JumpTable
	// blocks[0] is the Jump/Brif "then" target; blocks[1] is Brif's "else".
	blocks [2]Block
	// blockArgs[i] are the arguments passed across blocks[i].
	blockArgs [2]valueList
	// fromBits/toBits are set by Uextend/Sextend/Ireduce; Fpromote/Fdemote
	// leave them zero.
	fromBits, toBits byte
}

func (d *InstructionData) String(dfg *DataFlowGraph) string {
	args := dfg.instArgs(d)
	argStrs := make([]string, len(args))
	for i, a := range args {
		argStrs[i] = a.String()
	}
	return fmt.Sprintf("%s%v %v", d.Opcode, ctrlSuffix(d.ctrlType), argStrs)
}

func ctrlSuffix(t Type) string {
	if t.invalid() {
		return ""
	}
	return "." + t.String()
}

// String implements fmt.Stringer for debugging dumps.
func (o Opcode) String() string {
	switch o {
	case OpIconst:
		return "iconst"
	case OpFconst:
		return "fconst"
	case OpIadd:
		return "iadd"
	case OpIsub:
		return "isub"
	case OpImul:
		return "imul"
	case OpSdiv:
		return "sdiv"
	case OpUdiv:
		return "udiv"
	case OpSrem:
		return "srem"
	case OpUrem:
		return "urem"
	case OpBand:
		return "band"
	case OpBor:
		return "bor"
	case OpBxor:
		return "bxor"
	case OpIshl:
		return "ishl"
	case OpUshr:
		return "ushr"
	case OpSshr:
		return "sshr"
	case OpRotl:
		return "rotl"
	case OpRotr:
		return "rotr"
	case OpClz:
		return "clz"
	case OpCtz:
		return "ctz"
	case OpPopcnt:
		return "popcnt"
	case OpIcmp:
		return "icmp"
	case OpFadd:
		return "fadd"
	case OpFsub:
		return "fsub"
	case OpFmul:
		return "fmul"
	case OpFdiv:
		return "fdiv"
	case OpFneg:
		return "fneg"
	case OpFabs:
		return "fabs"
	case OpSqrt:
		return "sqrt"
	case OpFmin:
		return "fmin"
	case OpFmax:
		return "fmax"
	case OpFcmp:
		return "fcmp"
	case OpSelect:
		return "select"
	case OpUextend:
		return "uextend"
	case OpSextend:
		return "sextend"
	case OpIreduce:
		return "ireduce"
	case OpFpromote:
		return "fpromote"
	case OpFdemote:
		return "fdemote"
	case OpFcvtToSint:
		return "fcvt_to_sint"
	case OpFcvtToUint:
		return "fcvt_to_uint"
	case OpFcvtFromSint:
		return "fcvt_from_sint"
	case OpFcvtFromUint:
		return "fcvt_from_uint"
	case OpBitcast:
		return "bitcast"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpJump:
		return "jump"
	case OpBrif:
		return "brif"
	case OpBrTable:
		return "br_table"
	case OpReturn:
		return "return"
	case OpCall:
		return "call"
	case OpCallIndirect:
		return "call_indirect"
	case OpTrap:
		return "trap"
	default:
		return "invalid"
	}
}

// ValueDef discriminates how a Value was defined: as an instruction result,
// a block parameter, or an alias of another value (spec 3.1).
type ValueDef struct {
	kind        valueDefKind
	Inst        Inst
	OutputIndex int
	Block       Block
	ParamIndex  int
	Original    Value
}

type valueDefKind byte

const (
	valueDefResult valueDefKind = iota
	valueDefParam
	valueDefAlias
)

func (d ValueDef) IsAlias() bool { return d.kind == valueDefAlias }
