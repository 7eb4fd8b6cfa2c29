package wasmir

// mnemonic is the textual encoding's name for an Op, independent of any
// stack-effect or immediate shape; opName renders them for diagnostics and
// Operator.String. Parse does not use this table: it looks full dotted
// mnemonics up in mnemonicTable (parse.go).
var mnemonic = map[Op]string{
	OpBlock:       "block",
	OpLoop:        "loop",
	OpIf:          "if",
	OpElse:        "else",
	OpEnd:         "end",
	OpBr:          "br",
	OpBrIf:        "br_if",
	OpBrTable:     "br_table",
	OpReturn:      "return",
	OpUnreachable: "unreachable",
	OpNop:         "nop",
	OpCall:        "call",
	OpCallIndirect: "call_indirect",

	OpDrop:   "drop",
	OpSelect: "select",

	OpLocalGet:  "local.get",
	OpLocalSet:  "local.set",
	OpLocalTee:  "local.tee",
	OpGlobalGet: "global.get",
	OpGlobalSet: "global.set",

	OpI32Const: "i32.const",
	OpI64Const: "i64.const",
	OpF32Const: "f32.const",
	OpF64Const: "f64.const",

	OpIAdd:    "add",
	OpISub:    "sub",
	OpIMul:    "mul",
	OpIDivS:   "div_s",
	OpIDivU:   "div_u",
	OpIRemS:   "rem_s",
	OpIRemU:   "rem_u",
	OpIAnd:    "and",
	OpIOr:     "or",
	OpIXor:    "xor",
	OpIShl:    "shl",
	OpIShrS:   "shr_s",
	OpIShrU:   "shr_u",
	OpIRotl:   "rotl",
	OpIRotr:   "rotr",
	OpIClz:    "clz",
	OpICtz:    "ctz",
	OpIPopcnt: "popcnt",

	OpIEq:  "eq",
	OpINe:  "ne",
	OpILtS: "lt_s",
	OpILtU: "lt_u",
	OpIGtS: "gt_s",
	OpIGtU: "gt_u",
	OpILeS: "le_s",
	OpILeU: "le_u",
	OpIGeS: "ge_s",
	OpIGeU: "ge_u",
	OpIEqz: "eqz",

	OpFAdd:  "add",
	OpFSub:  "sub",
	OpFMul:  "mul",
	OpFDiv:  "div",
	OpFNeg:  "neg",
	OpFAbs:  "abs",
	OpFSqrt: "sqrt",
	OpFMin:  "min",
	OpFMax:  "max",

	OpFEq: "eq",
	OpFNe: "ne",
	OpFLt: "lt",
	OpFGt: "gt",
	OpFLe: "le",
	OpFGe: "ge",

	OpI32WrapI64:     "i32.wrap_i64",
	OpI64ExtendI32S:  "i64.extend_i32_s",
	OpI64ExtendI32U:  "i64.extend_i32_u",
	OpITruncFS:       "trunc_f_s",
	OpITruncFU:       "trunc_f_u",
	OpFConvertIS:     "convert_i_s",
	OpFConvertIU:     "convert_i_u",
	OpF32DemoteF64:   "f32.demote_f64",
	OpF64PromoteF32:  "f64.promote_f32",
	OpIReinterpretF:  "i.reinterpret_f",
	OpFReinterpretI:  "f.reinterpret_i",

	OpLoad:       "load",
	OpStore:      "store",
	OpMemorySize: "memory.size",
	OpMemoryGrow: "memory.grow",
	OpMemoryCopy: "memory.copy",
	OpMemoryFill: "memory.fill",

	OpI32Extend8S:  "i32.extend8_s",
	OpI32Extend16S: "i32.extend16_s",
	OpI64Extend8S:  "i64.extend8_s",
	OpI64Extend16S: "i64.extend16_s",
	OpI64Extend32S: "i64.extend32_s",
}

func opName(o Op) string {
	if n, ok := mnemonic[o]; ok {
		return n
	}
	return "invalid"
}
