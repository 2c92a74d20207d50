// Package codegen implements component C9, the Native Code Emitter:
// translation of internal/mir's block-structured IR into an LLVM-class
// module via tinygo.org/x/go-llvm, through a declare-then-compile
// lifecycle, an optimization pipeline, and either JIT execution or
// object-file emission (spec §4.8).
//
// Grounded on tinygo.org/x/go-llvm's real API surface as used by
// _examples/other_examples' hhramberg-go-vslc LLVM transform (context/
// builder/module construction, target-machine/target-data setup,
// EmitToMemoryBuffer for object files) and malphas-lang's mir2llvm
// generator (per-function two-pass block/value emission over a MIR-like
// input, a diag.Diagnostic error-collection style); the process-wide
// concurrency guards are grounded on original_source's
// codegen/llvm_jit_backend.rs (see globals.go).
package codegen

import (
	"fmt"
	"os"

	"github.com/rayzor-lang/rayzor/internal/diag"
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/mir"
	"github.com/rayzor-lang/rayzor/internal/trace"
	"tinygo.org/x/go-llvm"
)

// OptLevel mirrors spec §6's RAYZOR_LLVM_OPT mapping: "0","1","2", anything
// else -> None/Less/Default/Aggressive.
type OptLevel int

const (
	OptNone OptLevel = iota
	OptLess
	OptDefault
	OptAggressive
)

// OptLevelFromEnv reads RAYZOR_LLVM_OPT the way spec §6 specifies.
func OptLevelFromEnv() OptLevel {
	switch os.Getenv("RAYZOR_LLVM_OPT") {
	case "0":
		return OptNone
	case "1":
		return OptLess
	case "2":
		return OptDefault
	default:
		return OptAggressive
	}
}

func (l OptLevel) pipelineNumber() int {
	switch l {
	case OptNone:
		return 0
	case OptLess:
		return 1
	case OptDefault:
		return 2
	default:
		return 3
	}
}

// declaredFunction is what DeclareModule records for each MIR function so
// CompileModuleBodies and call-site coercion can look it up later without
// re-deriving the calling convention.
type declaredFunction struct {
	llvmFn    llvm.Value
	llvmType  llvm.Type
	signature mir.Signature
	hidden    hiddenParams
	name      string // mangled
}

// Emitter owns one LLVM context/module/builder/execution-engine for one
// compilation. Per spec §3's lifecycle/ownership note, it has exclusive
// ownership of these resources and releases them on Dispose.
type Emitter struct {
	ctx     llvm.Context
	mod     llvm.Module
	builder llvm.Builder

	optLevel OptLevel

	declared     map[ids.IrFunctionId]*declaredFunction
	mangledNames map[string]ids.IrFunctionId // collision detection (spec §4.8)

	// Per-function scratch state, cleared at the start of each function's
	// emission (spec §4.8 step 1: "Clear per-function value/block/phi
	// maps and the optional current-sret pointer").
	blockLLVM   map[ids.IrBlockId]llvm.BasicBlock
	valueLLVM   map[ids.IrId]llvm.Value
	phiLLVM     map[ids.IrId]llvm.Value
	currentSret llvm.Value
	hasSret     bool
	currentEnv  llvm.Value // this function's own hidden environment pointer, if any
	hasEnv      bool

	tm       llvm.TargetMachine
	haveTM   bool
	engine   llvm.ExecutionEngine
	haveEng  bool
	finalized bool
}

// NewEmitter creates an Emitter with a fresh context/module/builder. The
// optLevel argument, if not supplied by the caller, should default to
// OptLevelFromEnv().
func NewEmitter(moduleName string, optLevel OptLevel) *Emitter {
	ctx := llvm.NewContext()
	return &Emitter{
		ctx:          ctx,
		mod:          ctx.NewModule(moduleName),
		builder:      ctx.NewBuilder(),
		optLevel:     optLevel,
		declared:     make(map[ids.IrFunctionId]*declaredFunction),
		mangledNames: make(map[string]ids.IrFunctionId),
	}
}

// Dispose releases the context, module, builder, target machine, and
// execution engine this Emitter owns.
func (e *Emitter) Dispose() {
	withBackendLock(func() {
		if e.haveEng {
			e.engine.Dispose()
		}
		if e.haveTM {
			e.tm.Dispose()
		}
		e.builder.Dispose()
		if !e.haveEng {
			// The execution engine, once created, owns and disposes the
			// module itself; disposing it again would double-free.
			e.mod.Dispose()
		}
		e.ctx.Dispose()
	})
}

// DeclareModule is phase one of spec §4.8's two-phase lifecycle:
// "declare_module(module) for EVERY module first". It declares every
// function symbol (extern and non-extern) without compiling any body, so
// cross-module/forward calls resolve correctly once bodies compile.
func (e *Emitter) DeclareModule(m *mir.IrModule) error {
	var err error
	withBackendLock(func() {
		for _, id := range m.FunctionOrder {
			fn := m.Functions[id]
			if declErr := e.declareFunction(fn); declErr != nil {
				err = declErr
				return
			}
		}
		for id, fn := range m.ExternFunctions {
			if _, exists := e.declared[id]; exists {
				continue
			}
			if declErr := e.declareFunction(fn); declErr != nil {
				err = declErr
				return
			}
		}
	})
	return err
}

func (e *Emitter) declareFunction(fn *mir.IrFunction) error {
	hidden := hiddenParamsFor(fn.Signature)
	mangled := Mangle(fn.Name)
	if existingID, collision := e.mangledNames[mangled]; collision && existingID != fn.Id {
		mangled = disambiguate(mangled, fn.Id.Raw())
	}
	e.mangledNames[mangled] = fn.Id

	fnType, retType := e.buildFunctionType(fn.Signature, hidden)
	llvmFn := e.mod.AddFunction(mangled, fnType)
	if fn.Signature.IsExtern {
		llvmFn.SetLinkage(llvm.ExternalLinkage)
	}

	e.declared[fn.Id] = &declaredFunction{
		llvmFn:    llvmFn,
		llvmType:  fnType,
		signature: fn.Signature,
		hidden:    hidden,
		name:      mangled,
	}
	_ = retType
	return nil
}

// buildFunctionType lowers a mir.Signature to an llvm.Type function type,
// inserting hidden parameters per spec §4.8's calling convention.
func (e *Emitter) buildFunctionType(sig mir.Signature, hidden hiddenParams) (llvm.Type, llvm.Type) {
	retType := e.lowerType(sig.ReturnType)
	llvmRet := retType
	params := make([]llvm.Type, 0, hidden.Count()+len(sig.Parameters))
	if hidden.Sret {
		params = append(params, llvm.PointerType(e.ctx.Int8Type(), 0))
		llvmRet = e.ctx.VoidType()
	}
	if hidden.Env {
		params = append(params, e.ctx.Int64Type())
	}
	for _, p := range sig.Parameters {
		params = append(params, e.lowerType(p))
	}
	return llvm.FunctionType(llvmRet, params, false), retType
}

// CompileModuleBodies is phase two: emit every non-extern function's body.
// Must be called after DeclareModule (spec §4.8).
func (e *Emitter) CompileModuleBodies(m *mir.IrModule) error {
	var firstErr error
	withBackendLock(func() {
		for _, id := range m.FunctionOrder {
			fn := m.Functions[id]
			if len(fn.BlockOrder) == 0 {
				continue // extern declaration folded into Functions, nothing to compile
			}
			if err := e.compileFunctionBody(fn); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("function %q: %w", fn.Name, err)
				}
			}
		}
	})
	return firstErr
}

// Finalize verifies the module, runs the optimization pipeline, and
// builds a JIT execution engine (spec §4.8's "Finalize" step). Per
// property P7, calling it twice has the same observable effect as once.
func (e *Emitter) Finalize() error {
	var err error
	withBackendLock(func() {
		if e.finalized {
			return
		}
		if verr := e.verifyModule(); verr != nil {
			err = verr
			return
		}
		e.maybeDumpIR()
		if perr := e.runOptimizationPipeline(); perr != nil {
			err = perr
			return
		}
		if initErr := initNativeTargetOnce(); initErr != nil {
			err = fmt.Errorf("initializing native target: %w", initErr)
			return
		}
		if !jitEngineBuilt.trySet() {
			err = fmt.Errorf("codegen: a JIT execution engine already exists in this process")
			return
		}
		options := llvm.NewMCJITCompilerOptions()
		options.SetMCJITOptimizationLevel(0) // already optimized above
		engine, eerr := llvm.NewMCJITCompiler(e.mod, options)
		if eerr != nil {
			err = fmt.Errorf("creating JIT execution engine: %w", eerr)
			return
		}
		e.engine = engine
		e.haveEng = true

		for id, d := range e.declared {
			if d.signature.IsExtern {
				continue
			}
			_ = id
		}
		e.finalized = true
		trace.Verbosef("codegen: finalized module %q with %d declared functions", e.mod.String(), len(e.declared))
	})
	return err
}

// verifyModule runs LLVM's module verifier twice on failure, the second
// time to collect the error text for the caller (spec §4.8: "Verify the
// module; if verification fails, re-verify to collect the error text and
// fail").
func (e *Emitter) verifyModule() error {
	if verr := e.mod.Verify(llvm.ReturnStatusAction); verr != nil {
		_ = e.mod.Verify(llvm.PrintMessageAction)
		return fmt.Errorf("module verification failed: %w", verr)
	}
	return nil
}

func (e *Emitter) maybeDumpIR() {
	if os.Getenv("RAYZOR_DUMP_LLVM_IR") == "" {
		return
	}
	ir := e.mod.String()
	const maxBytes = 5000
	if err := os.WriteFile("/tmp/rayzor_llvm_ir.ll", []byte(ir), 0o644); err != nil {
		truncated := ir
		if len(truncated) > maxBytes {
			truncated = truncated[:maxBytes]
		}
		fmt.Fprintln(os.Stderr, truncated)
	}
}

// runOptimizationPipeline runs the new-pass-manager "default<ON>" pipeline
// at the emitter's configured level (spec §4.8/§6). It runs exactly once
// per Finalize call; Finalize itself is idempotent (property P7), so
// repeated Finalize calls never re-run the pipeline.
func (e *Emitter) runOptimizationPipeline() error {
	target, ttriple, err := e.targetMachineForHost(llvm.CodeGenLevelDefault, false)
	if err != nil {
		return err
	}
	e.tm = target
	e.haveTM = true

	pipeline := fmt.Sprintf("default<O%d>", e.optLevel.pipelineNumber())
	opts := llvm.NewPassBuilderOptions()
	defer opts.Dispose()
	if perr := e.tm.RunPasses(e.mod, pipeline, opts); perr != nil {
		return fmt.Errorf("running optimization pipeline %q: %w", pipeline, perr)
	}
	_ = ttriple
	return nil
}

// targetMachineForHost builds a TargetMachine for the host CPU with host
// CPU features (spec §4.8: "through a target machine with host CPU
// features"). pic selects PIC relocation for compile_to_object (spec
// §4.8: "reruns the optimization pipeline in PIC mode").
func (e *Emitter) targetMachineForHost(level llvm.CodeGenOptLevel, pic bool) (llvm.TargetMachine, string, error) {
	triple := llvm.DefaultTargetTriple()
	target, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return llvm.TargetMachine{}, "", fmt.Errorf("resolving target triple %q: %w", triple, err)
	}
	reloc := llvm.RelocDefault
	if pic {
		reloc = llvm.RelocPIC
	}
	tm := target.CreateTargetMachine(triple, llvm.HostCPUName(), llvm.HostCPUFeatures(),
		level, reloc, llvm.CodeModelDefault)
	td := tm.CreateTargetData()
	defer td.Dispose()
	e.mod.SetDataLayout(td.String())
	e.mod.SetTarget(triple)
	return tm, triple, nil
}

// GetFunctionPtr returns the JIT address of a declared, non-extern
// function by its original (unmangled) name. Must be called after
// Finalize.
func (e *Emitter) GetFunctionPtr(fn *mir.IrFunction) (uintptr, error) {
	if !e.finalized {
		return 0, fmt.Errorf("codegen: Finalize must run before GetFunctionPtr")
	}
	d, ok := e.declared[fn.Id]
	if !ok {
		return 0, fmt.Errorf("codegen: function %q was never declared", fn.Name)
	}
	// Spec §4.8: "later emitters read pointers from that map" — if some
	// earlier Emitter in this process already JIT-compiled a function
	// under this mangled name, its address is already known; only
	// bother checking the write-once map once an engine actually exists
	// somewhere in the process (jitEngineBuilt.get()), since a fresh
	// process never has anything to find there.
	if jitEngineBuilt.get() {
		if addr, ok := lookupFunctionAddress(d.name); ok {
			return addr, nil
		}
	}
	var addr uintptr
	withBackendLock(func() {
		a := e.engine.GetFunctionAddress(d.name)
		addr = uintptr(a)
	})
	if addr == 0 {
		return 0, fmt.Errorf("codegen: no JIT address for function %q", fn.Name)
	}
	registerFunctionAddress(d.name, addr)
	return addr, nil
}

// CallMain invokes the JIT-compiled "main" function with no arguments,
// the convenience entry point spec §4.8 names ("call_main() or
// get_function_ptr()").
func (e *Emitter) CallMain() (int64, error) {
	var id ids.IrFunctionId
	var found bool
	for fid, d := range e.declared {
		if d.name == "main" {
			id = fid
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("codegen: no declared function named \"main\"")
	}
	d := e.declared[id]
	var result llvm.GenericValue
	withBackendLock(func() {
		result = e.engine.RunFunction(d.llvmFn, nil)
	})
	return int64(result.Int(true)), nil
}

// CompileToObject reruns the optimization pipeline in PIC mode and writes
// an ELF/Mach-O object file (per host) to path, exposing every declared
// non-extern function keyed by IrFunctionId (spec §4.8/§6).
func (e *Emitter) CompileToObject(path string) (map[ids.IrFunctionId]string, error) {
	var exposed map[ids.IrFunctionId]string
	var err error
	withBackendLock(func() {
		if verr := e.verifyModule(); verr != nil {
			err = verr
			return
		}
		target, _, terr := e.targetMachineForHost(llvm.CodeGenLevelDefault, true)
		if terr != nil {
			err = terr
			return
		}
		defer target.Dispose()

		pipeline := fmt.Sprintf("default<O%d>", e.optLevel.pipelineNumber())
		opts := llvm.NewPassBuilderOptions()
		defer opts.Dispose()
		if perr := target.RunPasses(e.mod, pipeline, opts); perr != nil {
			err = fmt.Errorf("running PIC optimization pipeline: %w", perr)
			return
		}

		buf, berr := target.EmitToMemoryBuffer(e.mod, llvm.ObjectFile)
		if berr != nil {
			err = fmt.Errorf("emitting object file: %w", berr)
			return
		}
		defer buf.Dispose()

		if werr := os.WriteFile(path, buf.Bytes(), 0o755); werr != nil {
			err = fmt.Errorf("writing object file %q: %w", path, werr)
			return
		}

		exposed = make(map[ids.IrFunctionId]string)
		for id, d := range e.declared {
			if !d.signature.IsExtern {
				exposed[id] = d.name
			}
		}
	})
	return exposed, err
}

// diagnosticFromFailure turns a fatal per-module codegen error into the
// structured diagnostic record spec §7 asks for: "tagged with the
// function name and, where relevant, the failing instruction pair
// (BlockId, IrInstruction)".
func diagnosticFromFailure(functionName string, block ids.IrBlockId, instr *mir.IrInstruction, cause error) diag.Record {
	ctx := fmt.Sprintf("native code emission failed in function %q", functionName)
	if instr != nil {
		ctx = fmt.Sprintf("%s at block %d, instruction op %d", ctx, block.Raw(), instr.Op)
	}
	return diag.Record{
		Kind:    diag.KindInferenceFailed,
		Context: fmt.Sprintf("%s: %v", ctx, cause),
	}
}

// EmissionError is the fatal, per-module codegen failure spec §7
// describes: an error string tagged with the function name and, where
// relevant, the failing (BlockId, IrInstruction) pair, carried as a
// structured diag.Record rather than folded into a plain string.
type EmissionError struct {
	Record diag.Record
	Cause  error
}

func (e *EmissionError) Error() string { return e.Record.Context }
func (e *EmissionError) Unwrap() error { return e.Cause }

// wrapEmissionFailure builds the EmissionError for a failure at block
// (and, if known, a specific instruction within it) during
// compileFunctionBody.
func wrapEmissionFailure(functionName string, block ids.IrBlockId, instr *mir.IrInstruction, cause error) error {
	return &EmissionError{Record: diagnosticFromFailure(functionName, block, instr, cause), Cause: cause}
}
