package codegen

import (
	"sync"

	"tinygo.org/x/go-llvm"
)

// The native code emitter's backend library is not fully thread-safe
// (spec §4.8/§5/§9). Three module-level primitives quarantine the global
// mutable state this requires, grounded on the Rust
// init_llvm_once/llvm_lock/mark_llvm_compiled_globally_with_pointers trio
// in original_source's codegen/llvm_jit_backend.rs: a one-shot latch for
// native-target initialization, a process-wide mutex serializing every
// LLVM call, and a write-once function-pointer map guarding against more
// than one JIT attempt per process. Apart from internal/trace's
// once-computed verbose flag, no other component in this repo touches
// package-level mutable state.
var (
	nativeTargetOnce sync.Once
	nativeTargetErr  error

	backendMu sync.Mutex

	functionAddresses sync.Map // string (mangled name) -> uintptr
	jitEngineBuilt    atomicBool
)

// initNativeTargetOnce performs llvm.InitializeNativeTarget/AsmPrinter
// exactly once per process, as spec §4.8's "Finalize" step requires
// ("initializes LLVM's native target exactly once via a single-shot
// latch").
func initNativeTargetOnce() error {
	nativeTargetOnce.Do(func() {
		if err := llvm.InitializeNativeTarget(); err != nil {
			nativeTargetErr = err
			return
		}
		if err := llvm.InitializeNativeAsmPrinter(); err != nil {
			nativeTargetErr = err
			return
		}
	})
	return nativeTargetErr
}

// withBackendLock runs fn while holding the process-wide LLVM mutex. Every
// Emitter method that touches llvm.Context/Module/Builder/TargetMachine
// must go through this.
func withBackendLock(fn func()) {
	backendMu.Lock()
	defer backendMu.Unlock()
	fn()
}

// registerFunctionAddress records the JIT address for a mangled function
// name in the write-once global map (spec §4.8: "later emitters read
// pointers from that map"). It is a no-op if the name is already present,
// since the map is write-once by contract, not last-writer-wins.
func registerFunctionAddress(mangledName string, addr uintptr) {
	functionAddresses.LoadOrStore(mangledName, addr)
}

// lookupFunctionAddress returns a previously JIT-compiled function's
// address, if any emitter in this process has already compiled it.
func lookupFunctionAddress(mangledName string) (uintptr, bool) {
	v, ok := functionAddresses.Load(mangledName)
	if !ok {
		return 0, false
	}
	return v.(uintptr), true
}

// atomicBool is a tiny compare-and-swap boolean used to guard "at most one
// engine is built per process" (spec §3's lifecycle/ownership note).
type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (b *atomicBool) trySet() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.v {
		return false
	}
	b.v = true
	return true
}

func (b *atomicBool) get() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}
