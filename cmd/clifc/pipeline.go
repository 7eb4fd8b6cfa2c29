package main

import (
	"fmt"
	"time"

	"github.com/clifgen/wazevo-clif/backend"
	"github.com/clifgen/wazevo-clif/backend/isa/amd64"
	"github.com/clifgen/wazevo-clif/backend/isa/arm64"
	"github.com/clifgen/wazevo-clif/backend/regalloc"
	"github.com/clifgen/wazevo-clif/diag"
	"github.com/clifgen/wazevo-clif/frontend"
	"github.com/clifgen/wazevo-clif/mach"
	"github.com/clifgen/wazevo-clif/ssa"
	"github.com/clifgen/wazevo-clif/wasmir"
)

// defaultModuleLayout and defaultExecLayout stand in for the memory/global/
// table base offsets and host trampoline addresses a real embedder's linking
// collaborator would supply (spec.md §1 draws that line around the core);
// clifc compiles one function at a time with no host module to query, so it
// uses the same fixed offsets frontend's own tests exercise.
func defaultModuleLayout() frontend.ModuleLayout {
	return frontend.ModuleLayout{MemoryBaseOffset: 0, MemoryLenOffset: 8, GlobalsBaseOffset: 16, TableBaseOffset: 256}
}

func defaultExecLayout() frontend.ExecContextLayout {
	return frontend.ExecContextLayout{MemoryGrowTrampolineOffset: 0, MemoryCopyTrampolineOffset: 8, MemoryFillTrampolineOffset: 16}
}

// callConvFor maps clifc's TOML call_conv name to the ssa.CallConv
// backend.ResolveABI dispatches on (spec.md §6.3).
func callConvFor(name string) (ssa.CallConv, error) {
	switch name {
	case "SystemV":
		return ssa.CallConvSystemV, nil
	case "WindowsFastcall":
		return ssa.CallConvWindowsFastcall, nil
	case "AppleAarch64":
		return ssa.CallConvAppleAarch64, nil
	default:
		return 0, fmt.Errorf("clifc: unknown call_conv %q", name)
	}
}

// cpuFeaturesFor narrows Config's full TOML-driven feature set down to the
// two amd64 actually gates instruction selection on (spec.md §6.3; avx2,
// avx512, bmi, and sse4_2 are accepted in config but nothing in this
// backend's instruction set yet depends on them beyond the plain SSE2
// baseline and AVX's 3-operand min/max).
func cpuFeaturesFor(cfg *Config) amd64.CPUFeatures {
	return amd64.CPUFeatures{
		AVX:    cfg.CPUFeatures.AVX || cfg.CPUFeatures.AVX2 || cfg.CPUFeatures.AVX512,
		Popcnt: cfg.CPUFeatures.Popcnt,
	}
}

// noLoopDepth is the loopDepth func BuildLiveRanges/BuildBundles weight
// spill decisions by; clifc does not run loop analysis (wasmir's structured
// control flow gives the frontend no back-edges to report), so every block
// is treated as loop depth 0.
func noLoopDepth(int) int { return 0 }

// allocatableAMD64 lists the x86-64 GPRs/XMMs the register allocator may
// hand out freely. Every ABI's param/result/callee-saved registers are
// placed through Allocator.placeFixed or scanned directly by
// Prologue/Epilogue, so they need not appear here; rsp is the hardware
// stack pointer and rbp this package's fixed frame pointer, so neither is
// ever allocatable, r11 is amd64.Machine's own instruction-expansion scratch
// register, and r9/r10/xmm14/xmm15 are amd64.Rewrite's spill-reload scratch
// registers (backend/isa/amd64/reg.go's spillScratchIntA/B,
// spillScratchFloatA/B).
func allocatableAMD64() map[backend.RegClass][]backend.PReg {
	ints := []byte{0, 1, 2, 3, 6, 7, 8, 12, 13, 14, 15} // rax,rcx,rdx,rbx,rsi,rdi,r8,r12-r15
	floats := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}
	return map[backend.RegClass][]backend.PReg{
		backend.RegClassInt:   pregList(backend.RegClassInt, ints),
		backend.RegClassFloat: pregList(backend.RegClassFloat, floats),
	}
}

// allocatableARM64 excludes x16/x17 (arm64.Rewrite's IP0/IP1-style spill
// scratch, backend/isa/arm64/reg.go's scratchGPR/scratchGPR2), x29 (frame
// pointer), x30 (link register), x31 (stack pointer, never named as a GPR
// operand by this backend), and v30/v31 (arm64.Rewrite's float spill
// scratch).
func allocatableARM64() map[backend.RegClass][]backend.PReg {
	ints := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
		18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28}
	floats := make([]byte, 30)
	for i := range floats {
		floats[i] = byte(i)
	}
	return map[backend.RegClass][]backend.PReg{
		backend.RegClassInt:   pregList(backend.RegClassInt, ints),
		backend.RegClassFloat: pregList(backend.RegClassFloat, floats),
	}
}

func pregList(class backend.RegClass, nums []byte) []backend.PReg {
	out := make([]backend.PReg, len(nums))
	for i, n := range nums {
		out[i] = backend.MakePReg(class, n)
	}
	return out
}

// clobbersFrom scans assignment for every PReg actually handed out, so
// Prologue/Epilogue only save/restore the callee-saved registers this
// function really uses (spec.md §4.2's minimal-clobber-set prologue).
func clobbersFrom(assignment map[backend.VReg]backend.Reg) backend.PRegSet {
	var set backend.PRegSet
	for _, r := range assignment {
		if r.IsSpillSlot() {
			continue
		}
		set.Add(r.AsVReg().PinnedPReg())
	}
	return set
}

// allocate runs the ISA-independent middle of the pipeline (spec.md §4.3):
// liveness, live ranges, bundling, and priority-queue allocation, shared by
// both ISA backends since regalloc operates purely on backend.VCode.
func allocate(vcode *backend.VCode, available map[backend.RegClass][]backend.PReg, pools *regalloc.Pools, tr *diag.Trace, funcName string) (map[backend.VReg]backend.Reg, error) {
	tr.PassStarted(funcName, "regalloc")
	start := time.Now()
	pools.Reset()

	liveness, err := regalloc.ComputeLiveness(vcode, vcode.Entry)
	if err != nil {
		return nil, fmt.Errorf("regalloc: %w", err)
	}
	ranges := regalloc.BuildLiveRanges(vcode, liveness, noLoopDepth, &pools.Ranges)
	bundles, err := regalloc.BuildBundles(ranges, noLoopDepth, &pools.Bundles)
	if err != nil {
		return nil, fmt.Errorf("regalloc: %w", err)
	}

	alloc := regalloc.NewAllocator(available)
	if _, err := alloc.Allocate(bundles); err != nil {
		tr.RequirementConflict(funcName, -1)
		return nil, fmt.Errorf("regalloc: %w", err)
	}
	assignment := regalloc.ResolveAssignment(bundles)

	tr.PassFinished(funcName, "regalloc", time.Since(start))
	return assignment, nil
}

// frameSizeFor returns the stack bytes this function's spilled VRegs need,
// rounded up to align: one 8-byte slot per SpillSet, addressed the same way
// by backend/isa/{amd64,arm64}.Rewrite's spillAmode.
func frameSizeFor(assignment map[backend.VReg]backend.Reg, align int64) int64 {
	maxSlot := -1
	for _, r := range assignment {
		if r.IsSpillSlot() && int(r.SpillSlot()) > maxSlot {
			maxSlot = int(r.SpillSlot())
		}
	}
	size := int64(maxSlot+1) * 8
	if align > 0 {
		if rem := size % align; rem != 0 {
			size += align - rem
		}
	}
	return size
}

// compiledFunc is one function's ISA-neutral compile result, the point
// where the two ISA-specific halves of the pipeline rejoin.
type compiledFunc struct {
	code    []byte
	relocs  []mach.Reloc
	traps   []mach.Trap
	srcLocs []mach.SourceLoc
	frame   mach.FrameLayout
}

func compileFunctionAMD64(name string, f *ssa.Function, abiSpec backend.ABIMachineSpec, features amd64.CPUFeatures, pools *regalloc.Pools, tr *diag.Trace) (compiledFunc, error) {
	m := amd64.NewMachine(abiSpec)
	m.Features = features
	order := backend.BuildBlockLoweringOrder(f)
	vcode := backend.Lower(f, order, m)

	assignment, err := allocate(vcode, allocatableAMD64(), pools, tr, name)
	if err != nil {
		return compiledFunc{}, err
	}
	clobbers := clobbersFrom(assignment)
	frameSize := frameSizeFor(assignment, abiSpec.StackAlignBytes())

	insts := amd64.InstsFromVCode(vcode, len(order.Order))
	insts = amd64.Rewrite(insts, assignment)

	// Prologue/Epilogue must not change the block count EncodeFunction
	// indexes Jmp/Jcc fixups by: the prologue is prepended into block 0 in
	// place, and the epilogue is spliced immediately before every OpRet
	// (there may be more than one exit block) rather than appended as a
	// trailing block, since a trailing block would run after -- not before
	// -- whichever Ret reaches it.
	insts[0] = append(amd64.Prologue(abiSpec, frameSize, clobbers), insts[0]...)
	epilogue := amd64.Epilogue(abiSpec, frameSize, clobbers)
	for b, block := range insts {
		insts[b] = spliceBeforeRetAMD64(block, epilogue)
	}

	tr.PassStarted(name, "emission")
	start := time.Now()
	code, relocs, traps, srcLocs := amd64.EncodeFunction(insts, name)
	tr.PassFinished(name, "emission", time.Since(start))

	return compiledFunc{
		code:    code,
		relocs:  translateAMD64Relocs(relocs),
		traps:   traps,
		srcLocs: srcLocs,
		frame: mach.FrameLayout{
			StackSizeBytes:       frameSize,
			CalleeSavedClobbered: calleeSavedNames(abiSpec, clobbers),
		},
	}, nil
}

func compileFunctionARM64(name string, f *ssa.Function, abiSpec backend.ABIMachineSpec, pools *regalloc.Pools, tr *diag.Trace) (compiledFunc, error) {
	m := arm64.NewMachine(abiSpec)
	order := backend.BuildBlockLoweringOrder(f)
	vcode := backend.Lower(f, order, m)

	assignment, err := allocate(vcode, allocatableARM64(), pools, tr, name)
	if err != nil {
		return compiledFunc{}, err
	}
	clobbers := clobbersFrom(assignment)
	frameSize := frameSizeFor(assignment, abiSpec.StackAlignBytes())

	insts := arm64.InstsFromVCode(vcode, len(order.Order))
	insts = arm64.Rewrite(insts, assignment)
	// InsertDivZeroTraps appends a new trap block after every existing one
	// (never splicing into the middle), so doing this before prologue/
	// epilogue splicing -- which indexes insts by position, not by count --
	// is safe either way; here it runs first so the trap block reads like
	// part of finishing lowering rather than framing the function.
	insts = arm64.InsertDivZeroTraps(insts)

	// See the matching comment in compileFunctionAMD64: prologue/epilogue
	// are spliced in place rather than added as new blocks, to keep Jmp/Jcc
	// fixup block indices unchanged.
	insts[0] = append(arm64.Prologue(abiSpec, frameSize, clobbers), insts[0]...)
	epilogue := arm64.Epilogue(abiSpec, frameSize, clobbers)
	for b, block := range insts {
		insts[b] = spliceBeforeRetARM64(block, epilogue)
	}

	tr.PassStarted(name, "emission")
	start := time.Now()
	code, relocs, traps, srcLocs := arm64.EncodeFunction(insts, name)
	tr.PassFinished(name, "emission", time.Since(start))

	return compiledFunc{
		code:    code,
		relocs:  translateARM64Relocs(relocs),
		traps:   traps,
		srcLocs: srcLocs,
		frame: mach.FrameLayout{
			StackSizeBytes:       frameSize,
			CalleeSavedClobbered: calleeSavedNames(abiSpec, clobbers),
		},
	}, nil
}

// spliceBeforeRetAMD64 inserts epilogue immediately before every OpRet in
// block, leaving every other instruction (and the single Ret itself) in
// place; a block with no Ret passes through unchanged.
func spliceBeforeRetAMD64(block []*amd64.Inst, epilogue []*amd64.Inst) []*amd64.Inst {
	out := make([]*amd64.Inst, 0, len(block)+len(epilogue))
	for _, inst := range block {
		if inst.Op == amd64.OpRet {
			out = append(out, epilogue...)
		}
		out = append(out, inst)
	}
	return out
}

func spliceBeforeRetARM64(block []*arm64.Inst, epilogue []*arm64.Inst) []*arm64.Inst {
	out := make([]*arm64.Inst, 0, len(block)+len(epilogue))
	for _, inst := range block {
		if inst.Op == arm64.OpRet {
			out = append(out, epilogue...)
		}
		out = append(out, inst)
	}
	return out
}

func translateAMD64Relocs(relocs []amd64.Reloc) []mach.Reloc {
	out := make([]mach.Reloc, len(relocs))
	for i, r := range relocs {
		out[i] = mach.Reloc{Offset: r.Offset, Kind: mach.RelocX86PLT32, Symbol: r.Symbol, Addend: r.Addend}
	}
	return out
}

func translateARM64Relocs(relocs []arm64.Reloc) []mach.Reloc {
	out := make([]mach.Reloc, len(relocs))
	for i, r := range relocs {
		out[i] = mach.Reloc{Offset: r.Offset, Kind: mach.RelocARM64Branch26, Symbol: r.Symbol, Addend: r.Addend}
	}
	return out
}

// calleeSavedNames lists, by register name, every callee-saved PReg this
// function's prologue actually pushed -- the FrameLayout field spec.md §6.2
// asks for alongside stack size and spill-area size.
func calleeSavedNames(abiSpec backend.ABIMachineSpec, clobbers backend.PRegSet) []string {
	var out []string
	record := func(list []backend.PReg) {
		for _, p := range list {
			if clobbers.Has(p) {
				out = append(out, p.String())
			}
		}
	}
	record(abiSpec.CalleeSavedInt())
	record(abiSpec.CalleeSavedFloat())
	return out
}

// compileModule runs every function of mod through the frontend, backend
// lowering, register allocation, and ISA encoding in turn, then links the
// results into one mach.Object (spec.md §6.1's "compile a Wasm module"
// external interface).
func compileModule(cfg *Config, mod *wasmir.Module, tr *diag.Trace) (*mach.Object, error) {
	callConv, err := callConvFor(cfg.CallConv)
	if err != nil {
		return nil, err
	}
	abiSpec, err := backend.ResolveABI(cfg.ISA, callConv)
	if err != nil {
		return nil, fmt.Errorf("clifc: %w", err)
	}

	funcSigIdx := make([]uint32, len(mod.Functions))
	for i, fn := range mod.Functions {
		funcSigIdx[i] = fn.TypeIndex
	}
	comp := frontend.NewCompiler(mod.Types, funcSigIdx, nil, defaultModuleLayout(), defaultExecLayout())

	funcs := make([]mach.Function, 0, len(mod.Functions))
	pools := regalloc.NewPools()
	for i, fn := range mod.Functions {
		name := fmt.Sprintf("func%d", i)

		tr.PassStarted(name, "frontend")
		start := time.Now()
		f, err := comp.Compile(name, fn)
		tr.PassFinished(name, "frontend", time.Since(start))
		if err != nil {
			tr.FatalError(name, err)
			return nil, fmt.Errorf("clifc: compiling %s: %w", name, err)
		}

		var cf compiledFunc
		switch cfg.ISA {
		case "amd64", "x86_64":
			cf, err = compileFunctionAMD64(name, f, abiSpec, cpuFeaturesFor(cfg), pools, tr)
		case "arm64", "aarch64":
			cf, err = compileFunctionARM64(name, f, abiSpec, pools, tr)
		default:
			err = fmt.Errorf("clifc: unknown isa %q", cfg.ISA)
		}
		if err != nil {
			tr.FatalError(name, err)
			return nil, err
		}

		// Every call relocation's offset is inherently also a call site
		// (spec.md §6.2's MachCallSite).
		callSites := make([]mach.CallSite, len(cf.relocs))
		for i, r := range cf.relocs {
			callSites[i] = mach.CallSite{Offset: r.Offset, Callee: r.Symbol, ReturnAddrOffset: r.Offset + 4}
		}
		funcs = append(funcs, mach.Function{
			Name:       name,
			Code:       cf.code,
			Relocs:     cf.relocs,
			Traps:      cf.traps,
			SourceLocs: cf.srcLocs,
			CallSites:  callSites,
			Frame:      cf.frame,
		})
	}

	return mach.Link(cfg.ISA, funcs)
}
