// Package mir defines the mid-level IR that sits between the SSA data
// flow graph (internal/ssa) and the native code emitter (internal/codegen):
// a block-structured, explicitly-terminated representation distinct from
// the DFG, produced by a lowering pass outside this core and consumed
// read-only by component C9 (spec §3, "Mid IR").
//
// internal/mir owns no behavior beyond type lowering helpers; construction
// of an IrModule from a DataFlowGraph is the "mid IR lowering pass" spec §2
// places outside the three covered subsystems. Tests in this package build
// IrModule values by hand, the way a downstream lowering pass would, to
// exercise internal/codegen.
package mir

import "github.com/rayzor-lang/rayzor/internal/ids"

// IrType is the closed set of mid-IR value types (spec §3/§4.8's type
// lowering matrix). It deliberately mirrors typetab.Kind's shape-closed
// tagged-struct style rather than introducing N Go types, since C9 lowers
// every variant into exactly one LLVM type.
type IrType struct {
	Kind IrTypeKind

	IntBits int // IrInt bit width (1, 8, 16, 32, 64)

	Elem      *IrType // Array/Slice element, Ptr pointee, Vector lane type
	ArrayLen  uint64  // IrArray length
	LaneCount int     // IrVector lane count

	Fields []IrType // IrStruct field types, in order

	Variants  []IrType // IrUnion variant payload types
	MaxVariant int     // IrUnion largest variant size in bytes, precomputed by the lowering pass

	OpaqueSize int // IrOpaque byte size
}

// IrTypeKind enumerates the shapes IrType can take.
type IrTypeKind uint8

const (
	IrVoid IrTypeKind = iota
	IrBool
	IrInt
	IrFloat32
	IrFloat64
	IrArray
	IrSlice // lowers to {ptr, i64}
	IrString // lowers to {ptr, i64}, same ABI shape as IrSlice
	IrPtr
	IrStruct
	IrUnion // lowers to {i32 tag, [i8 x max_variant_size]}
	IrVector
	IrOpaque // lowers to [i8 x N]
)

// Signature describes a function's MIR-level signature, before hidden
// parameter insertion (that happens in internal/codegen at emission time;
// spec §4.8 keeps calling-convention lowering as an emitter concern so the
// MIR stays calling-convention-agnostic).
type Signature struct {
	Parameters []IrType
	ReturnType IrType
	UsesSret   bool // true when ReturnType must be returned via a hidden pointer
	UsesEnv    bool // true when the function carries a hidden environment pointer
	IsExtern   bool // true for C-ABI declarations: no hidden parameters at all
}

// IrFunction is one function body (or extern declaration) in an IrModule.
type IrFunction struct {
	Id            ids.IrFunctionId
	Name          string
	Signature     Signature
	Params        []ids.IrId // register ids bound to each user-visible parameter, in order
	Blocks        map[ids.IrBlockId]*IrBasicBlock
	BlockOrder    []ids.IrBlockId // declaration order; the first entry is the MIR entry block
	RegisterTypes map[ids.IrId]IrType
	Locals        []ids.IrId // stack-allocated locals, by convention allocated before the body
}

// IrBasicBlock is one block of an IrFunction: phis, then straight-line
// instructions, then exactly one terminator.
type IrBasicBlock struct {
	Id           ids.IrBlockId
	PhiNodes     []IrPhiNode
	Instructions []IrInstruction
	Terminator   IrTerminator
}

// IrPhiNode merges one value per predecessor MIR block.
type IrPhiNode struct {
	Result   ids.IrId
	Type     IrType
	Incoming []IrPhiIncoming
}

// IrPhiIncoming is one phi operand: predecessor block and the IrId flowing
// in from it.
type IrPhiIncoming struct {
	Block ids.IrBlockId
	Value ids.IrId
}

// InstrOp is the closed instruction-kind taxonomy of spec §3 ("Instruction
// kinds cover arithmetic/compare/cast/load/store/alloc/free/memcpy/memset/
// GEP/call/bitcast/vector ops/union ops/throw/landingpad/resume").
type InstrOp uint8

const (
	OpAdd InstrOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpCmpEq
	OpCmpNe
	OpCmpLt
	OpCmpLe
	OpCmpGt
	OpCmpGe
	OpNeg
	OpNot
	OpCast
	OpLoad
	OpStore
	OpAlloc
	OpFree
	OpMemcpy
	OpMemset
	OpGEP
	OpCall
	OpBitcast
	OpVectorExtract
	OpVectorInsert
	OpUnionTag
	OpUnionPayload
	OpThrow
	OpLandingPad
	OpResume
)

// CastKind mirrors the DFG Cast kind (spec §3) so the mid-IR lowering pass
// can carry the validator's original intent (Implicit casts need no runtime
// check, Checked casts need one, Unsafe bypasses) through to codegen, even
// though C9 itself treats every cast the same at the instruction-selection
// level (spec §4.8's cast matrix is purely type-driven).
type CastKind uint8

const (
	CastImplicit CastKind = iota
	CastExplicit
	CastChecked
	CastUnsafe
)

// AllocKind distinguishes the two allocation instructions the emitter
// recognizes. Per spec §4.8, C9 lowers both to heap allocation regardless:
// "Allocations are heap (call malloc) because the MIR later emits Free.
// Stack alloca would crash free." AllocKind is kept on the instruction so
// codegen can assert that invariant rather than silently reinterpreting it.
type AllocKind uint8

const (
	AllocStack AllocKind = iota
	AllocHeap
)

// IrInstruction is one non-terminator, non-phi operation.
type IrInstruction struct {
	Op     InstrOp
	Result ids.IrId // InvalidIrId for void instructions (Store, Free, memcpy/memset)
	Type   IrType   // result type; also operand type for homogeneous ops

	Operands []ids.IrId // operand IrIds, meaning depends on Op

	// Call-specific.
	Callee   ids.IrFunctionId
	CalleeIsIndirect bool
	IndirectFn       ids.IrId // used when CalleeIsIndirect

	// Cast-specific.
	CastKind CastKind
	FromType IrType

	// GEP-specific: FieldIndex is a MIR field index (spec §4.8: "indices
	// are field indices in MIR; they are multiplied by the field size …
	// and applied as byte offsets").
	FieldIndex int

	// Alloc-specific.
	AllocKind AllocKind
	AllocSize ids.IrId // dynamic size operand, InvalidIrId when Type is fixed-size

	// FastMath marks floating binary ops. The emitter applies the
	// NoNaNs|NoInfs|NoSignedZeros|AllowContract flag set (spec §4.8) to
	// every floating binary op whether or not this field is set.
	FastMath bool

	// Signed selects the signed/unsigned instruction family for integer
	// div/rem/compare (sdiv vs udiv, icmp slt vs ult); IrType itself does
	// not distinguish I8..I64 from U8..U64 at the mid-IR level, so the
	// lowering pass carries signedness on the instruction.
	Signed bool
}

// TerminatorKind is the closed set of block terminators.
type TerminatorKind uint8

const (
	TermReturn TerminatorKind = iota
	TermJump
	TermCondBranch
	TermSwitch
	TermUnreachable
)

// SwitchCase is one arm of a TermSwitch terminator.
type SwitchCase struct {
	Value  int64
	Target ids.IrBlockId
}

// IrTerminator is the one mandatory block-ending operation.
type IrTerminator struct {
	Kind TerminatorKind

	ReturnValue ids.IrId // InvalidIrId for void returns

	Target ids.IrBlockId // TermJump

	Cond      ids.IrId // TermCondBranch/TermSwitch
	TrueTarget  ids.IrBlockId // TermCondBranch
	FalseTarget ids.IrBlockId // TermCondBranch

	Cases          []SwitchCase  // TermSwitch
	DefaultTarget  ids.IrBlockId // TermSwitch
}

// IrModule is a declare-then-compile unit: the set of functions a single
// internal/codegen.Emitter run declares and then compiles (spec §4.8).
type IrModule struct {
	Name            string
	Functions       map[ids.IrFunctionId]*IrFunction
	FunctionOrder   []ids.IrFunctionId
	ExternFunctions map[ids.IrFunctionId]*IrFunction
}

// NewModule creates an empty IrModule.
func NewModule(name string) *IrModule {
	return &IrModule{
		Name:            name,
		Functions:       make(map[ids.IrFunctionId]*IrFunction),
		ExternFunctions: make(map[ids.IrFunctionId]*IrFunction),
	}
}

// AddFunction registers a function body and records it in declaration
// order, which C9's declare_module/compile_module_bodies two-phase
// lifecycle (spec §4.8) relies on for deterministic name resolution.
func (m *IrModule) AddFunction(fn *IrFunction) {
	if m.Functions == nil {
		m.Functions = make(map[ids.IrFunctionId]*IrFunction)
	}
	m.Functions[fn.Id] = fn
	m.FunctionOrder = append(m.FunctionOrder, fn.Id)
}

// NewFunction creates an IrFunction shell ready for blocks to be appended.
func NewFunction(id ids.IrFunctionId, name string, sig Signature) *IrFunction {
	return &IrFunction{
		Id:            id,
		Name:          name,
		Signature:     sig,
		Blocks:        make(map[ids.IrBlockId]*IrBasicBlock),
		RegisterTypes: make(map[ids.IrId]IrType),
	}
}

// AddBlock appends a new block in MIR order; the first block added becomes
// the MIR entry block that spec §4.8 says the emitter must NOT treat as the
// LLVM entry block (it synthesizes a true entry that jumps here).
func (f *IrFunction) AddBlock(id ids.IrBlockId) *IrBasicBlock {
	b := &IrBasicBlock{Id: id}
	if f.Blocks == nil {
		f.Blocks = make(map[ids.IrBlockId]*IrBasicBlock)
	}
	f.Blocks[id] = b
	f.BlockOrder = append(f.BlockOrder, id)
	return b
}

// EntryBlock returns the first MIR block, or false if the function has
// none (an extern declaration).
func (f *IrFunction) EntryBlock() (ids.IrBlockId, bool) {
	if len(f.BlockOrder) == 0 {
		return ids.InvalidIrBlockId, false
	}
	return f.BlockOrder[0], true
}

// SizeOf returns the byte size of t used for heap allocation. Scalars,
// slices, strings, unions, arrays and vectors get their LLVM store size;
// a struct's size is the plain sum of its field sizes, with no alignment
// padding, so it is smaller than the LLVM ABI size whenever a field needs
// padding (e.g. {i32, f64} is 12 here, 16 in LLVM).
// Pointer-sized fields assume a 64-bit target, consistent with the
// emitter's GEP byte-offset arithmetic (spec §4.8: "field size assumed
// uniform 8 bytes").
func SizeOf(t IrType) int {
	const ptrSize = 8
	switch t.Kind {
	case IrVoid:
		return 0
	case IrBool:
		return 1 // i8-wide storage per spec §4.8
	case IrInt:
		return (t.IntBits + 7) / 8
	case IrFloat32:
		return 4
	case IrFloat64:
		return 8
	case IrArray:
		if t.Elem == nil {
			return 0
		}
		return SizeOf(*t.Elem) * int(t.ArrayLen)
	case IrSlice, IrString:
		return ptrSize + 8 // {ptr, i64}
	case IrPtr:
		return ptrSize
	case IrStruct:
		total := 0
		for _, f := range t.Fields {
			total += SizeOf(f)
		}
		return total
	case IrUnion:
		return 4 + t.MaxVariant // {i32 tag, [i8 x max_variant_size]}
	case IrVector:
		if t.Elem == nil {
			return 0
		}
		return SizeOf(*t.Elem) * t.LaneCount
	case IrOpaque:
		return t.OpaqueSize
	default:
		return 0
	}
}

// IsAggregate reports whether t is passed/returned by the sret/struct
// convention rather than as a scalar register (spec §4.8's calling
// convention: "functions returning composite values use sret"). Slices
// and strings count too: both lower to a {ptr, i64} struct (see IrSlice/
// IrString above), so the struct<->pointer call-site coercion applies to
// them exactly as it does to IrStruct/IrUnion/IrArray.
func IsAggregate(t IrType) bool {
	switch t.Kind {
	case IrStruct, IrUnion, IrArray, IrSlice, IrString:
		return true
	default:
		return false
	}
}
