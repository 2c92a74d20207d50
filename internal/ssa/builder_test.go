package ssa

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rayzor-lang/rayzor/internal/cfg"
	"github.com/rayzor-lang/rayzor/internal/dominance"
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/stmtmap"
	"github.com/rayzor-lang/rayzor/internal/symtab"
	"github.com/rayzor-lang/rayzor/internal/tast"
	"github.com/rayzor-lang/rayzor/internal/typetab"
	"github.com/stretchr/testify/require"
)

func blk(n uint32) ids.BlockId { return ids.BlockId(n) }

func node(n uint64) tast.Node { return tast.Node{NodeId: n} }

// buildWhileLoopFixture mirrors:
//
//	function f(n: Int): Int {
//	    var i = 0;
//	    while (i < n) { i = i + 1; }
//	    return i;
//	}
//
// as a 4-block CFG: entry(0) -> header(1) -> (body(2) -> header, exit(3)).
func buildWhileLoopFixture(t *testing.T) (*tast.Function, *cfg.Graph, *dominance.Tree, *stmtmap.Mapping, *typetab.Table, *symtab.Table) {
	t.Helper()

	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	intType := types.Int(32, true)

	nSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindParameter, TypeId: intType})
	iSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindLocal, TypeId: intType})

	zero := &tast.Literal{Node: node(1), Value: tast.LiteralValue{Kind: tast.LitInt, Int: 0}}
	varDecl := &tast.VarDeclaration{Node: node(2), Symbol: iSym, Init: zero}

	cond := &tast.BinaryOp{Node: node(3), Op: tast.OpLt,
		Left:  &tast.Variable{Node: node(4), Symbol: iSym},
		Right: &tast.Variable{Node: node(5), Symbol: nSym},
	}
	one := &tast.Literal{Node: node(8), Value: tast.LiteralValue{Kind: tast.LitInt, Int: 1}}
	incr := &tast.BinaryOp{Node: node(9), Op: tast.OpAdd,
		Left:  &tast.Variable{Node: node(10), Symbol: iSym},
		Right: one,
	}
	assign := &tast.Assignment{Node: node(11), Target: tast.AssignVariable, Symbol: iSym, Value: incr}

	// A leading no-op statement keeps this nested list's index of assign
	// (1) aligned with the outer body's index of whileStmt (1), so the
	// statement-location descent below needs no clamp correction.
	whileStmt := &tast.While{Node: node(6), Cond: cond,
		Body: &tast.BlockStatement{Node: node(7), Body: []tast.Statement{&tast.Break{Node: node(20)}, assign}},
	}

	ret := &tast.Return{Node: node(12), Value: &tast.Variable{Node: node(13), Symbol: iSym}}

	fn := &tast.Function{
		Symbol: symbols.Declare(symtab.Symbol{Kind: symtab.KindFunction}),
		Params: []tast.Param{{Symbol: nSym, Type: intType}},
		ReturnType: intType,
		Body:   []tast.Statement{varDecl, whileStmt, ret},
	}

	g := cfg.NewGraph()
	g.Entry = blk(0)
	for i := uint32(0); i <= 3; i++ {
		g.AddBlock(blk(i))
	}
	g.SetTerminator(blk(0), cfg.Terminator{Kind: cfg.TermJump, Target: blk(1)})
	g.SetTerminator(blk(1), cfg.Terminator{Kind: cfg.TermBranch, TrueTarget: blk(2), FalseTarget: blk(3)})
	g.SetTerminator(blk(2), cfg.Terminator{Kind: cfg.TermJump, Target: blk(1)})
	g.SetTerminator(blk(3), cfg.Terminator{Kind: cfg.TermReturn})

	dom, err := dominance.Build(g)
	require.NoError(t, err)

	mapping := stmtmap.New(map[ids.BlockId][]stmtmap.StatementLocation{
		blk(0): {{StatementIndex: 0, NestingDepth: 0}},
		blk(1): {{StatementIndex: 1, NestingDepth: 0}},
		blk(2): {{StatementIndex: 1, NestingDepth: 1}},
		blk(3): {{StatementIndex: 2, NestingDepth: 0}},
	}, nil)

	return fn, g, dom, mapping, types, symbols
}

func TestBuildWhileLoopHeaderPhi(t *testing.T) {
	fn, g, dom, mapping, types, symbols := buildWhileLoopFixture(t)

	graph, err := Build(fn, g, dom, mapping, types, symbols)
	require.NoError(t, err)
	require.True(t, graph.Metadata.IsSsaForm)

	var headerPhi *Node
	for _, n := range graph.Nodes {
		if n.Kind == KindPhi && n.BasicBlock == blk(1) {
			headerPhi = n
		}
	}
	require.NotNil(t, headerPhi, "expected a phi placed at the loop header")
	require.Len(t, headerPhi.Incoming, 2, "loop header phi must join the entry edge and the back edge")

	var sawEntry, sawBackEdge bool
	for _, in := range headerPhi.Incoming {
		def := graph.Nodes[in.Node]
		require.Equal(t, KindVariable, def.Kind, "each binding site wraps its value in a Variable node")
		operand := graph.Nodes[def.Operand]
		switch in.Block {
		case blk(0):
			sawEntry = true
			require.Equal(t, KindConstant, operand.Kind)
		case blk(2):
			sawBackEdge = true
			require.Equal(t, KindBinaryOp, operand.Kind)
			require.Equal(t, tast.OpAdd, operand.Op)
		default:
			t.Fatalf("unexpected predecessor block %v feeding the header phi", in.Block)
		}
	}
	require.True(t, sawEntry, "expected the entry block to seed the phi with the initial value")
	require.True(t, sawBackEdge, "expected the loop body's increment to feed the phi on the back edge")

	require.Greater(t, graph.Metadata.ConstructionStats.PhiNodesInserted, 0)
	require.Greater(t, graph.Metadata.ConstructionStats.NodesCreated, 0)
}

// TestBuildWhileLoopHeaderPhiShape asserts the loop-header phi's shape
// (P2: predecessor set equals incoming block set) and its SSA variable
// record with a go-cmp structural diff instead of field-by-field
// require.Equal calls, ignoring the Uses slice — a field derived by
// downstream consumers (e.g. internal/flowsafety) rather than populated
// by the builder itself.
func TestBuildWhileLoopHeaderPhiShape(t *testing.T) {
	fn, g, dom, mapping, types, symbols := buildWhileLoopFixture(t)

	graph, err := Build(fn, g, dom, mapping, types, symbols)
	require.NoError(t, err)

	var headerPhi *Node
	for _, n := range graph.Nodes {
		if n.Kind == KindPhi && n.BasicBlock == blk(1) {
			headerPhi = n
		}
	}
	require.NotNil(t, headerPhi)

	gotBlocks := make([]ids.BlockId, 0, len(headerPhi.Incoming))
	for _, in := range headerPhi.Incoming {
		gotBlocks = append(gotBlocks, in.Block)
	}
	wantBlocks := []ids.BlockId{blk(0), blk(2)}
	less := func(a, b ids.BlockId) bool { return a < b }
	if diff := cmp.Diff(wantBlocks, gotBlocks, cmpopts.SortSlices(less)); diff != "" {
		t.Fatalf("header phi predecessor set mismatch (-want +got):\n%s", diff)
	}

	phiVar := graph.Variable(headerPhi.Defines)
	require.NotNil(t, phiVar)
	want := &SsaVariable{
		OriginalSymbol: phiVar.OriginalSymbol,
		SsaIndex:       phiVar.SsaIndex,
		VarType:        phiVar.VarType,
		Definition:     headerPhi.Id,
	}
	if diff := cmp.Diff(want, phiVar, cmpopts.IgnoreFields(SsaVariable{}, "Uses")); diff != "" {
		t.Fatalf("header phi SSA variable shape mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildEmptyPredecessorListProducesNoPhi(t *testing.T) {
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	iSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindLocal, TypeId: types.Int(32, true)})

	zero := &tast.Literal{Node: node(1), Value: tast.LiteralValue{Kind: tast.LitInt, Int: 0}}
	varDecl := &tast.VarDeclaration{Node: node(2), Symbol: iSym, Init: zero}
	ret := &tast.Return{Node: node(3), Value: &tast.Variable{Node: node(4), Symbol: iSym}}

	fn := &tast.Function{
		Symbol: symbols.Declare(symtab.Symbol{Kind: symtab.KindFunction}),
		Body:   []tast.Statement{varDecl, ret},
	}

	g := cfg.NewGraph()
	g.Entry = blk(0)
	g.AddBlock(blk(0))
	g.SetTerminator(blk(0), cfg.Terminator{Kind: cfg.TermReturn})

	dom, err := dominance.Build(g)
	require.NoError(t, err)

	mapping := stmtmap.New(map[ids.BlockId][]stmtmap.StatementLocation{
		blk(0): {{StatementIndex: 0, NestingDepth: 0}, {StatementIndex: 1, NestingDepth: 0}},
	}, nil)

	graph, err := Build(fn, g, dom, mapping, types, symbols)
	require.NoError(t, err)

	for _, n := range graph.Nodes {
		require.NotEqual(t, KindPhi, n.Kind, "a single straight-line block must never need a phi")
	}
}

func TestBuildBothBranchesReturnProducesNoMergePhi(t *testing.T) {
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	boolType := types.Bool()
	intType := types.Int(32, true)
	nSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindParameter, TypeId: boolType})

	cond := &tast.Variable{Node: node(1), Symbol: nSym}
	thenRet := &tast.Return{Node: node(5), Value: &tast.Literal{Node: node(6), Value: tast.LiteralValue{Kind: tast.LitInt, Int: 1}}}
	elseRet := &tast.Return{Node: node(7), Value: &tast.Literal{Node: node(8), Value: tast.LiteralValue{Kind: tast.LitInt, Int: 2}}}
	ifStmt := &tast.If{Node: node(2), Cond: cond,
		Then: &tast.BlockStatement{Node: node(3), Body: []tast.Statement{thenRet}},
		Else: &tast.BlockStatement{Node: node(4), Body: []tast.Statement{elseRet}}, HasElse: true,
	}

	fn := &tast.Function{
		Symbol:     symbols.Declare(symtab.Symbol{Kind: symtab.KindFunction}),
		Params:     []tast.Param{{Symbol: nSym, Type: boolType}},
		ReturnType: intType,
		Body:       []tast.Statement{ifStmt},
	}

	g := cfg.NewGraph()
	g.Entry = blk(0)
	for i := uint32(0); i <= 2; i++ {
		g.AddBlock(blk(i))
	}
	g.SetTerminator(blk(0), cfg.Terminator{Kind: cfg.TermBranch, TrueTarget: blk(1), FalseTarget: blk(2)})
	g.SetTerminator(blk(1), cfg.Terminator{Kind: cfg.TermReturn})
	g.SetTerminator(blk(2), cfg.Terminator{Kind: cfg.TermReturn})

	dom, err := dominance.Build(g)
	require.NoError(t, err)

	mapping := stmtmap.New(map[ids.BlockId][]stmtmap.StatementLocation{
		blk(0): {{StatementIndex: 0, NestingDepth: 0}},
		blk(1): {{StatementIndex: 0, NestingDepth: 1, BranchContext: stmtmap.BranchContext{Kind: stmtmap.BranchIfThen}}},
		blk(2): {{StatementIndex: 0, NestingDepth: 1, BranchContext: stmtmap.BranchContext{Kind: stmtmap.BranchIfElse}}},
	}, nil)

	graph, err := Build(fn, g, dom, mapping, types, symbols)
	require.NoError(t, err)

	for _, n := range graph.Nodes {
		require.NotEqual(t, KindPhi, n.Kind, "two unmerged returning branches must never need a phi")
	}
}
