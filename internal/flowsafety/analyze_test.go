package flowsafety

import (
	"testing"

	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/symtab"
	"github.com/rayzor-lang/rayzor/internal/tast"
	"github.com/rayzor-lang/rayzor/internal/typetab"
	"github.com/stretchr/testify/require"
)

func loc(line uint32) tast.SourceLocation { return tast.SourceLocation{Line: line} }

// TestAnalyzeNullDerefOnDeclaredNull mirrors spec §8 scenario 5:
//
//	function f(): Int { var p: Foo = null; return p.value; }
func TestAnalyzeNullDerefOnDeclaredNull(t *testing.T) {
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	fooSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindClass})
	fooType := types.Class(fooSym, nil)
	valueSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindField, DeclaringClass: fooSym})

	pSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindLocal, TypeId: fooType})
	varDecl := &tast.VarDeclaration{Node: tast.Node{NodeId: 1, Location: loc(1)}, Symbol: pSym, Init: &tast.Null{Node: tast.Node{NodeId: 2}}}
	fieldAccess := &tast.FieldAccess{
		Node:   tast.Node{NodeId: 3, Location: loc(2)},
		Object: &tast.Variable{Node: tast.Node{NodeId: 4, Location: loc(2)}, Symbol: pSym},
		Field:  valueSym,
	}
	ret := &tast.Return{Node: tast.Node{NodeId: 5, Location: loc(2)}, Value: fieldAccess}

	fn := &tast.Function{
		Symbol: symbols.Declare(symtab.Symbol{Kind: symtab.KindFunction}),
		Body:   []tast.Statement{varDecl, ret},
	}

	results := Analyze(fn, nil)

	require.Len(t, results.NullDereferences, 1)
	require.Equal(t, pSym, results.NullDereferences[0].Symbol)
	require.Equal(t, loc(2), results.NullDereferences[0].Location)
	require.Empty(t, results.UninitializedUses)
}

// TestAnalyzeUninitializedUse covers the companion lattice half of the
// same rule: a declared-but-never-initialized local read before any
// assignment.
func TestAnalyzeUninitializedUse(t *testing.T) {
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	intType := types.Int(32, true)
	xSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindLocal, TypeId: intType})

	varDecl := &tast.VarDeclaration{Node: tast.Node{NodeId: 1, Location: loc(1)}, Symbol: xSym}
	ret := &tast.Return{Node: tast.Node{NodeId: 2, Location: loc(2)},
		Value: &tast.Variable{Node: tast.Node{NodeId: 3, Location: loc(2)}, Symbol: xSym},
	}

	fn := &tast.Function{
		Symbol: symbols.Declare(symtab.Symbol{Kind: symtab.KindFunction}),
		Body:   []tast.Statement{varDecl, ret},
	}

	results := Analyze(fn, nil)

	require.Len(t, results.UninitializedUses, 1)
	require.Equal(t, xSym, results.UninitializedUses[0].Symbol)
	require.Empty(t, results.NullDereferences)
}

// TestAnalyzeDeadCodeAfterReturn covers the "statements after an
// unconditional terminator" half of dead-code detection, distinct from
// whole-block unreachability.
func TestAnalyzeDeadCodeAfterReturn(t *testing.T) {
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	intType := types.Int(32, true)

	ret := &tast.Return{Node: tast.Node{NodeId: 1, Location: loc(1)},
		Value: &tast.Literal{Node: tast.Node{NodeId: 2, Type: intType}, Value: tast.LiteralValue{Kind: tast.LitInt, Int: 1}},
	}
	unreachable := &tast.ExpressionStatement{Node: tast.Node{NodeId: 3, Location: loc(2)},
		Expr: &tast.Literal{Node: tast.Node{NodeId: 4, Type: intType}, Value: tast.LiteralValue{Kind: tast.LitInt, Int: 2}},
	}

	fn := &tast.Function{
		Symbol: symbols.Declare(symtab.Symbol{Kind: symtab.KindFunction}),
		Body:   []tast.Statement{ret, unreachable},
	}

	results := Analyze(fn, nil)

	require.Len(t, results.DeadCode, 1)
	require.Equal(t, "unreachable code after return/throw/break/continue", results.DeadCode[0].Message)
	require.Equal(t, loc(2), results.DeadCode[0].Location)
}

// fileClassifier is a minimal ResourceClassifier treating any New of
// openSym as a file-handle acquisition and any call to closeSym as its
// disposal, mirroring how an upstream annotation registry would answer
// these two questions.
type fileClassifier struct {
	openSym  ids.SymbolId
	closeSym ids.SymbolId
}

func (c fileClassifier) AcquiresResource(callee ids.SymbolId) (ResourceType, bool) {
	if callee == c.openSym {
		return ResourceFile, true
	}
	return 0, false
}

func (c fileClassifier) IsDisposeMethod(callee ids.SymbolId) bool {
	return callee == c.closeSym
}

// TestAnalyzeResourceLeakOnMissingDispose covers the case where an
// acquired resource is never disposed along any reachable path.
func TestAnalyzeResourceLeakOnMissingDispose(t *testing.T) {
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	_ = types
	fileSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindClass})
	openSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindFunction})
	closeSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindMethod})

	fSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindLocal, TypeId: types.Class(fileSym, nil)})
	acquire := &tast.VarDeclaration{Node: tast.Node{NodeId: 1, Location: loc(1)}, Symbol: fSym,
		Init: &tast.New{Node: tast.Node{NodeId: 2, Location: loc(1)}, Class: openSym},
	}

	fn := &tast.Function{
		Symbol: symbols.Declare(symtab.Symbol{Kind: symtab.KindFunction}),
		Body:   []tast.Statement{acquire},
	}

	results := Analyze(fn, fileClassifier{openSym: openSym, closeSym: closeSym})

	require.Len(t, results.ResourceLeaks, 1)
	require.Equal(t, fSym, results.ResourceLeaks[0].Symbol)
	require.Equal(t, loc(1), results.ResourceLeaks[0].Location)
}

// TestAnalyzeResourceDisposedIsNotALeak confirms the same acquisition
// followed by an explicit dispose call produces no finding.
func TestAnalyzeResourceDisposedIsNotALeak(t *testing.T) {
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	fileSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindClass})
	openSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindFunction})
	closeSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindMethod})

	fileType := types.Class(fileSym, nil)
	fSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindLocal, TypeId: fileType})
	acquire := &tast.VarDeclaration{Node: tast.Node{NodeId: 1, Location: loc(1)}, Symbol: fSym,
		Init: &tast.New{Node: tast.Node{NodeId: 2, Location: loc(1), Type: fileType}, Class: openSym},
	}
	dispose := &tast.ExpressionStatement{Node: tast.Node{NodeId: 3, Location: loc(2)},
		Expr: &tast.Call{Node: tast.Node{NodeId: 4, Location: loc(2)},
			Receiver: &tast.Variable{Node: tast.Node{NodeId: 5, Type: fileType}, Symbol: fSym},
			Callee:   closeSym,
		},
	}

	fn := &tast.Function{
		Symbol: symbols.Declare(symtab.Symbol{Kind: symtab.KindFunction}),
		Body:   []tast.Statement{acquire, dispose},
	}

	results := Analyze(fn, fileClassifier{openSym: openSym, closeSym: closeSym})

	require.Empty(t, results.ResourceLeaks)
}
