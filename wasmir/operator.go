// Package wasmir stands in for a real Wasm binary decoder. spec.md scopes
// "Wasm validation" and bytecode decoding out of the core (external
// collaborators feed it already-decoded operators); wasmir gives the core a
// concrete operator sequence to consume and, for tests and tooling, a tiny
// line-oriented textual encoding of the same sequence, modeled on the
// frontend's operator switch rather than on any wire format.
package wasmir

import "fmt"

// Op names one decoded Wasm operator. The set matches spec.md §6.1's minimum
// opcode list exactly; there is deliberately no 1:1 mapping to the Wasm
// binary opcode byte, since bytes never reach this package.
type Op uint16

const (
	OpInvalid Op = iota

	// Control
	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpBrTable
	OpReturn
	OpUnreachable
	OpNop
	OpCall
	OpCallIndirect

	// Parametric
	OpDrop
	OpSelect

	// Variable
	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpGlobalGet
	OpGlobalSet

	// Constants
	OpI32Const
	OpI64Const
	OpF32Const
	OpF64Const

	// Integer arithmetic (i32/i64, discriminated by Operator.ValType)
	OpIAdd
	OpISub
	OpIMul
	OpIDivS
	OpIDivU
	OpIRemS
	OpIRemU
	OpIAnd
	OpIOr
	OpIXor
	OpIShl
	OpIShrS
	OpIShrU
	OpIRotl
	OpIRotr
	OpIClz
	OpICtz
	OpIPopcnt

	// Integer compare
	OpIEq
	OpINe
	OpILtS
	OpILtU
	OpIGtS
	OpIGtU
	OpILeS
	OpILeU
	OpIGeS
	OpIGeU
	OpIEqz

	// Float arithmetic (f32/f64, discriminated by Operator.ValType)
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFNeg
	OpFAbs
	OpFSqrt
	OpFMin
	OpFMax

	// Float compare
	OpFEq
	OpFNe
	OpFLt
	OpFGt
	OpFLe
	OpFGe

	// Conversions
	OpI32WrapI64
	OpI64ExtendI32S
	OpI64ExtendI32U
	OpITruncFS // ValType selects the source float width; ResultType the integer width
	OpITruncFU
	OpFConvertIS // ValType selects the source int width; ResultType the float width
	OpFConvertIU
	OpF32DemoteF64
	OpF64PromoteF32
	OpIReinterpretF
	OpFReinterpretI

	// Memory
	OpLoad  // ResultType selects i32/i64/f32/f64; MemArg carries width via Operator.Width
	OpStore // ValType selects the stored value's width
	OpMemorySize
	OpMemoryGrow
	OpMemoryCopy
	OpMemoryFill

	// Sign extension (Wasm 2.0)
	OpI32Extend8S
	OpI32Extend16S
	OpI64Extend8S
	OpI64Extend16S
	OpI64Extend32S
)

// ValType is a Wasm value type, independent of ssa.Type so this package
// never needs to import the IR it feeds.
type ValType byte

const (
	ValTypeInvalid ValType = iota
	ValTypeI32
	ValTypeI64
	ValTypeF32
	ValTypeF64
)

func (v ValType) String() string {
	switch v {
	case ValTypeI32:
		return "i32"
	case ValTypeI64:
		return "i64"
	case ValTypeF32:
		return "f32"
	case ValTypeF64:
		return "f64"
	default:
		return "invalid"
	}
}

// BlockType is the signature of a block/loop/if. Wasm 1.0 restricts a
// blocktype to either no result or a single result value (the multi-value
// and type-index blocktype encodings are later proposals); wasmir's textual
// format only expresses that MVP grammar, though the translation algorithm
// in package frontend is written generally against ParamTypes/ResultTypes.
type BlockType struct {
	ParamTypes  []ValType
	ResultTypes []ValType
}

// MemArg is a load/store's static offset and alignment hint.
type MemArg struct {
	Offset uint32
	Align  uint32 // log2 alignment
}

// Operator is one decoded instruction plus whichever immediate fields its Op
// uses; unused fields are zero.
type Operator struct {
	Op Op

	// Integer/float constants.
	I32Val int32
	I64Val int64
	F32Bits uint32
	F64Bits uint64

	// local.{get,set,tee} / global.{get,set} / call's function index.
	Index uint32

	// call_indirect's type index.
	TypeIndex uint32

	// br / br_if depth.
	Depth uint32

	// br_table.
	Targets []uint32
	Default uint32

	// block / loop / if.
	Block BlockType

	// Arithmetic/compare/convert/load/store operand width discriminator.
	ValType    ValType
	ResultType ValType

	// Load/store memory immediate and width in bytes (1, 2, 4, or 8).
	Mem   MemArg
	Width byte
	Signed bool
}

func (o Operator) String() string {
	return fmt.Sprintf("%s", opName(o.Op))
}

// FuncType is a function signature, referenced by index from Module.Types
// and from call/call_indirect operators.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Function is one decoded function body: its type, any locals declared
// beyond its parameters, and its operator sequence (including the
// terminating End that closes the implicit outermost block).
type Function struct {
	TypeIndex uint32
	Locals    []ValType
	Body      []Operator
}

// Module is a parsed wasmir text module: just enough structure to drive
// per-function translation (spec.md's core never sees imports, tables, or
// exports; those belong to the linking collaborator named in spec.md §1).
type Module struct {
	Types     []FuncType
	Functions []Function
}
