package ssa

// CallConv identifies a calling convention an ABIMachineSpec knows how to
// lower arguments/returns for (spec.md §4.2 "ABI integration").
type CallConv byte

const (
	CallConvSystemV CallConv = iota
	CallConvWindowsFastcall
	CallConvAppleAarch64
)

func (c CallConv) String() string {
	switch c {
	case CallConvSystemV:
		return "system_v"
	case CallConvWindowsFastcall:
		return "windows_fastcall"
	case CallConvAppleAarch64:
		return "apple_aarch64"
	default:
		return "invalid"
	}
}

// ArgumentPurpose classifies what an AbiParam is used for, beyond its type.
type ArgumentPurpose byte

const (
	ArgumentPurposeNormal ArgumentPurpose = iota
	ArgumentPurposeStructArgument
	ArgumentPurposeStructReturn
	ArgumentPurposeVMContext
)

// ArgumentExtension records whether a sub-word argument must be sign- or
// zero-extended to fill a register before/after a call.
type ArgumentExtension byte

const (
	ExtensionNone ArgumentExtension = iota
	ExtensionSext
	ExtensionUext
)

// AbiParam is one parameter or return value slot of a Signature.
type AbiParam struct {
	Type          Type
	Purpose       ArgumentPurpose
	Extension     ArgumentExtension
	StructArgSize int64 // valid iff Purpose == ArgumentPurposeStructArgument
}

// SignatureID names a Signature declared in a Function's imported-signature
// table, referenced from call/call_indirect instructions via SigRef.
type SignatureID uint32

// Signature is a function's calling contract: its parameter/return types
// (each possibly carrying ABI purpose/extension info) and calling
// convention (spec.md §3.1).
type Signature struct {
	ID       SignatureID
	Params   []AbiParam
	Results  []AbiParam
	CallConv CallConv
}

// ParamTypes / ResultTypes project out just the Type of each AbiParam, which
// is what most of the pipeline (lowering, regalloc) actually needs.
func (s *Signature) ParamTypes() []Type {
	ts := make([]Type, len(s.Params))
	for i, p := range s.Params {
		ts[i] = p.Type
	}
	return ts
}

func (s *Signature) ResultTypes() []Type {
	ts := make([]Type, len(s.Results))
	for i, p := range s.Results {
		ts[i] = p.Type
	}
	return ts
}
