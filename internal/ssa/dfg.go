// Package ssa implements component C6, the SSA Graph Builder: walking
// TAST in dominance order to build a Data Flow Graph in SSA form,
// allocating SSA ids and placing/completing phi nodes (spec §4.5).
package ssa

import (
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/tast"
)

// NodeKind is the closed set of DataFlowNode shapes (spec §3).
type NodeKind uint8

const (
	KindParameter NodeKind = iota
	KindVariable
	KindConstant
	KindPhi
	KindBinaryOp
	KindUnaryOp
	KindCall
	KindFieldAccess
	KindStaticFieldAccess
	KindArrayAccess
	KindCast
	KindAllocation
	KindLoad
	KindStore
	KindReturn
	KindThrow
	KindTypeCheck
	KindClosure
	KindBlock
)

// AllocationKind distinguishes stack vs. heap allocation.
type AllocationKind uint8

const (
	AllocStack AllocationKind = iota
	AllocHeap
)

// PhiIncoming is one phi operand.
type PhiIncoming struct {
	Block ids.BlockId
	Node  ids.DataFlowNodeId
}

// ConstantValue is the literal payload of a Constant node, carried
// through unchanged from the TAST literal that produced it.
type ConstantValue = tast.LiteralValue

// Node is one entry of the DataFlowGraph (spec §3's DataFlowNode). Only
// the fields relevant to Kind are populated, matching the tagged-struct
// convention used by internal/typetab.Type for the same "closed variant
// set, dense table" reason.
type Node struct {
	Id             ids.DataFlowNodeId
	Kind           NodeKind
	ValueType      ids.TypeId
	Location       tast.SourceLocation
	BasicBlock     ids.BlockId
	Defines        ids.SsaVariableId // invalid for nodes that do not define an SSA variable
	HasSideEffects bool

	// Parameter
	ParamIdx    int
	ParamSymbol ids.SymbolId

	// Variable
	SsaVar ids.SsaVariableId

	// Constant
	Value ConstantValue

	// Phi
	Incoming []PhiIncoming

	// BinaryOp / UnaryOp
	Op        tast.BinaryOperator
	UnaryOpOp tast.UnaryOperator
	Lhs       ids.DataFlowNodeId
	Rhs       ids.DataFlowNodeId
	Operand   ids.DataFlowNodeId

	// Call
	Callee   ids.SymbolId
	Receiver ids.DataFlowNodeId // invalid for non-method calls
	Args     []ids.DataFlowNodeId
	CallKind tast.CallKind

	// FieldAccess / StaticFieldAccess
	Object ids.DataFlowNodeId
	Field  ids.SymbolId
	Class  ids.SymbolId

	// ArrayAccess
	Array ids.DataFlowNodeId
	Index ids.DataFlowNodeId

	// Cast
	CastKind tast.CastKind

	// Allocation
	AllocType ids.TypeId
	AllocSize ids.DataFlowNodeId // invalid if size is implicit from AllocType
	AllocKind AllocationKind

	// Load / Store
	Addr       ids.DataFlowNodeId
	MemoryType ids.TypeId
	StoreValue ids.DataFlowNodeId

	// Return / Throw
	ReturnValue ids.DataFlowNodeId // invalid for bare `return;`

	// TypeCheck
	TypeCheckTarget ids.TypeId

	// Closure
	ClosureId int

	// Block
	Statements []ids.DataFlowNodeId
}

// SsaVariable is one entry of the DataFlowGraph's SSA variable table.
type SsaVariable struct {
	OriginalSymbol ids.SymbolId // invalid for compiler-synthesized variables (e.g. for-in index)
	SsaIndex       int
	VarType        ids.TypeId
	Definition     ids.DataFlowNodeId
	Uses           []ids.DataFlowNodeId
}

// ConstructionStats mirrors the original's DfgBuilderStats, surfaced
// through DataFlowGraph.Metadata.ConstructionStats (named but left
// unspecified by spec §3; internal/trace prints it in verbose mode).
type ConstructionStats struct {
	NodesCreated          int
	PhiNodesInserted      int
	SsaVariablesAllocated int
}

// Metadata carries the DataFlowGraph-level facts spec §3 names.
type Metadata struct {
	IsSsaForm         bool
	ConstructionStats ConstructionStats
}

// Graph is the Data Flow Graph in SSA form (spec §3's DataFlowGraph).
// It exclusively owns its nodes and SSA variables; nodes reference each
// other only by id, never by pointer, so the graph can be handed around
// and serialized without alias concerns.
type Graph struct {
	Nodes        map[ids.DataFlowNodeId]*Node
	SsaVariables map[ids.SsaVariableId]*SsaVariable
	EntryNodeId  ids.DataFlowNodeId
	Metadata     Metadata
}

func newGraph() *Graph {
	return &Graph{
		Nodes:        make(map[ids.DataFlowNodeId]*Node),
		SsaVariables: make(map[ids.SsaVariableId]*SsaVariable),
	}
}

// Node returns the node stored for id.
func (g *Graph) Node(id ids.DataFlowNodeId) *Node { return g.Nodes[id] }

// Variable returns the SSA variable stored for id.
func (g *Graph) Variable(id ids.SsaVariableId) *SsaVariable { return g.SsaVariables[id] }
