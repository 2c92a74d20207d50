// Package flowsafety implements component C7, the flow-sensitive safety
// analyzer: a fixpoint dataflow pass over a function body tracking
// variable initialization and nullability state, plus resource-leak and
// dead-code detection (spec §4.6).
//
// Unlike C2/C3/C6, this analyzer does not consume the upstream
// ControlFlowGraph. It builds its own lightweight, statement-granularity
// graph directly from the TAST, mirroring the original Rust
// ControlFlowAnalyzer's create_block/add_edge/add_statement walk — a
// deliberate architectural duality carried over unchanged rather than
// unified with internal/cfg (see DESIGN.md).
package flowsafety

import (
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/tast"
)

// InitState is the initialization lattice of spec §4.6.
type InitState uint8

const (
	Uninitialized InitState = iota
	Initialized
	MaybeInitialized
)

func joinInit(a, b InitState) InitState {
	if a == b {
		return a
	}
	if a == Uninitialized && b == Uninitialized {
		return Uninitialized
	}
	return MaybeInitialized
}

// NullState is the nullability lattice of spec §4.6.
type NullState uint8

const (
	NullUnknown NullState = iota
	Null
	NotNull
	MaybeNull
)

func joinNull(a, b NullState) NullState {
	if a == NullUnknown {
		return b
	}
	if b == NullUnknown {
		return a
	}
	if a == b {
		return a
	}
	return MaybeNull
}

// VariableState is one symbol's lattice value at a program point.
type VariableState struct {
	Init InitState
	Null NullState
}

func joinState(a, b VariableState) VariableState {
	return VariableState{Init: joinInit(a.Init, b.Init), Null: joinNull(a.Null, b.Null)}
}

// ResourceType is the closed set of recognized resource-acquiring
// constructs (spec §4.6's "resource tracking").
type ResourceType uint8

const (
	ResourceFile ResourceType = iota
	ResourceDbConnection
	ResourceSocket
	ResourceBuffer
	ResourceGeneric
)

// ResourceClassifier answers whether a constructor call or a named
// acquisition function call acquires a tracked resource, and whether a
// method call on a known receiver disposes it. This is supplied by the
// caller (normally derived from class/function annotations upstream of
// this core) since bare TAST carries no such tag itself.
type ResourceClassifier interface {
	AcquiresResource(callee ids.SymbolId) (ResourceType, bool)
	IsDisposeMethod(callee ids.SymbolId) bool
}

// NoResources is a ResourceClassifier that never matches; use it when the
// caller has no resource registry to supply.
type NoResources struct{}

func (NoResources) AcquiresResource(ids.SymbolId) (ResourceType, bool) { return 0, false }
func (NoResources) IsDisposeMethod(ids.SymbolId) bool                  { return false }

// ResourceRecord tracks one acquired-but-maybe-not-disposed resource.
type ResourceRecord struct {
	AcquisitionLocation tast.SourceLocation
	ResourceType        ResourceType
	IsDisposed          bool
}

// Finding is one diagnostic-shaped result of the analysis.
type Finding struct {
	Location tast.SourceLocation
	Symbol   ids.SymbolId
	Message  string
}

// AnalysisResults is spec §4.6's AnalysisResults record.
type AnalysisResults struct {
	UninitializedUses []Finding
	DeadCode          []Finding
	NullDereferences  []Finding
	ResourceLeaks     []Finding
}
