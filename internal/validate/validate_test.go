package validate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rayzor-lang/rayzor/internal/diag"
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/symtab"
	"github.com/rayzor-lang/rayzor/internal/tast"
	"github.com/rayzor-lang/rayzor/internal/typetab"
	"github.com/stretchr/testify/require"
)

// Interned names used across the fixtures below; the exact numeric
// values don't matter; only that equal names share one id.
const (
	nameGetArea ids.InternedString = iota + 1
	nameRectangle
	nameIShape
	nameW
	nameH
	nameA
	nameB
	nameX
	nameF
	nameMoney
	nameAdd
)

type testInterner map[ids.InternedString]string

func (ti testInterner) Lookup(id ids.InternedString) string { return ti[id] }

func loc() tast.SourceLocation { return tast.SourceLocation{Line: 1} }

// rectangleFixture builds spec §8 scenario 1/2's `interface IShape {
// function getArea(): Float; } class Rectangle implements IShape { ... }`,
// with implement set to false to reproduce scenario 2's omitted method.
func rectangleFixture(t *testing.T, implementGetArea bool) (*tast.File, *typetab.Table, *symtab.Table, testInterner) {
	t.Helper()
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	floatType := types.Float(64)

	ishapeSym := symbols.Declare(symtab.Symbol{Name: nameIShape, Kind: symtab.KindInterface})
	getAreaIfaceSym := symbols.Declare(symtab.Symbol{Name: nameGetArea, Kind: symtab.KindMethod, TypeId: floatType})

	rectSym := symbols.Declare(symtab.Symbol{Name: nameRectangle, Kind: symtab.KindClass, Interfaces: []ids.SymbolId{ishapeSym}})
	wSym := symbols.Declare(symtab.Symbol{Name: nameW, Kind: symtab.KindField, TypeId: floatType, DeclaringClass: rectSym, Visibility: symtab.Private})
	hSym := symbols.Declare(symtab.Symbol{Name: nameH, Kind: symtab.KindField, TypeId: floatType, DeclaringClass: rectSym, Visibility: symtab.Private})

	cls := tast.Class{Symbol: rectSym, Implements: []ids.SymbolId{ishapeSym}, Fields: []ids.SymbolId{wSym, hSym}}

	if implementGetArea {
		getAreaClassSym := symbols.Declare(symtab.Symbol{Name: nameGetArea, Kind: symtab.KindMethod, TypeId: floatType, DeclaringClass: rectSym})
		ret := &tast.Return{Node: tast.Node{Location: loc()}, Value: &tast.BinaryOp{
			Node: tast.Node{Type: floatType, Location: loc()}, Op: tast.OpMul,
			Left:  &tast.FieldAccess{Node: tast.Node{Type: floatType, Location: loc()}, Object: &tast.This{Node: tast.Node{Type: types.Class(rectSym, nil)}}, Field: wSym},
			Right: &tast.FieldAccess{Node: tast.Node{Type: floatType, Location: loc()}, Object: &tast.This{Node: tast.Node{Type: types.Class(rectSym, nil)}}, Field: hSym},
		}}
		cls.Methods = []tast.Function{{Symbol: getAreaClassSym, ReturnType: floatType, Body: []tast.Statement{ret}}}
	}

	file := &tast.File{
		Classes:    []tast.Class{cls},
		Interfaces: []tast.Interface{{Symbol: ishapeSym, Methods: []tast.MethodSignature{{Symbol: getAreaIfaceSym, Return: floatType}}}},
	}

	interner := testInterner{
		nameGetArea:   "getArea",
		nameRectangle: "Rectangle",
		nameIShape:    "IShape",
		nameW:         "w",
		nameH:         "h",
	}
	return file, types, symbols, interner
}

func TestInterfaceConformancePassProducesNoDiagnostics(t *testing.T) {
	file, types, symbols, interner := rectangleFixture(t, true)
	sink := diag.NewMemorySink()
	v := New(types, symbols, sink, interner, nil)

	v.ValidateFile(file)

	require.Empty(t, sink.Records())
}

func TestMissingInterfaceMethodReportsExactSuggestion(t *testing.T) {
	file, types, symbols, interner := rectangleFixture(t, false)
	sink := diag.NewMemorySink()
	v := New(types, symbols, sink, interner, nil)

	v.ValidateFile(file)

	records := sink.Records()
	require.Len(t, records, 1)
	require.Equal(t, diag.KindInterfaceNotImplemented, records[0].Kind)
	require.Equal(t, "Add method 'getArea' to class 'Rectangle'", records[0].Suggestion)
}

// TestMissingInterfaceMethodDiagnosticListShape compares the full
// diagnostic list with a go-cmp structural diff rather than indexing into
// a single record, ignoring Location (the fixture gives the class no body
// statement to anchor a position to) and the synthetic dedup Name key.
func TestMissingInterfaceMethodDiagnosticListShape(t *testing.T) {
	file, types, symbols, interner := rectangleFixture(t, false)
	sink := diag.NewMemorySink()
	v := New(types, symbols, sink, interner, nil)

	v.ValidateFile(file)

	want := []diag.Record{{
		Kind:          diag.KindInterfaceNotImplemented,
		Context:       "class Rectangle does not implement method getArea required by interface IShape",
		Suggestion:    "Add method 'getArea' to class 'Rectangle'",
		HasSuggestion: true,
	}}
	diff := cmp.Diff(want, sink.Records(), cmpopts.IgnoreFields(diag.Record{}, "Location", "Name"))
	if diff != "" {
		t.Fatalf("diagnostic list mismatch (-want +got):\n%s", diff)
	}
}

// privateFieldFixture builds spec §8 scenario 3's `class A { private var
// x:Int; } class B { function f(a:A) { a.x = 1; } }`.
func privateFieldFixture(t *testing.T) (*tast.File, *typetab.Table, *symtab.Table, testInterner) {
	t.Helper()
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	intType := types.Int(32, true)

	aSym := symbols.Declare(symtab.Symbol{Name: nameA, Kind: symtab.KindClass})
	xSym := symbols.Declare(symtab.Symbol{Name: nameX, Kind: symtab.KindField, TypeId: intType, DeclaringClass: aSym, Visibility: symtab.Private})
	bSym := symbols.Declare(symtab.Symbol{Name: nameB, Kind: symtab.KindClass})

	aParamSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindParameter, TypeId: types.Class(aSym, nil)})
	assign := &tast.Assignment{
		Node:        tast.Node{Location: loc()},
		Target:      tast.AssignField,
		Symbol:      xSym,
		FieldObject: &tast.Variable{Node: tast.Node{Type: types.Class(aSym, nil)}, Symbol: aParamSym},
		Value:       &tast.Literal{Node: tast.Node{Type: intType}, Value: tast.LiteralValue{Kind: tast.LitInt, Int: 1}},
	}
	fFn := tast.Function{
		Symbol: symbols.Declare(symtab.Symbol{Name: nameF, Kind: symtab.KindMethod, DeclaringClass: bSym}),
		Params: []tast.Param{{Symbol: aParamSym, Type: types.Class(aSym, nil)}},
		Body:   []tast.Statement{assign},
	}

	file := &tast.File{
		Classes: []tast.Class{
			{Symbol: aSym, Fields: []ids.SymbolId{xSym}},
			{Symbol: bSym, Methods: []tast.Function{fFn}},
		},
	}

	interner := testInterner{nameA: "A", nameB: "B", nameX: "x", nameF: "f"}
	return file, types, symbols, interner
}

func TestPrivateFieldLeakageReportsAccessViolation(t *testing.T) {
	file, types, symbols, interner := privateFieldFixture(t)
	sink := diag.NewMemorySink()
	v := New(types, symbols, sink, interner, nil)

	v.ValidateFile(file)

	records := sink.Records()
	require.Len(t, records, 1)
	require.Equal(t, diag.KindAccessViolation, records[0].Kind)
	require.Equal(t, "Make the field public or use a getter method", records[0].Suggestion)
}

// moneyFixture builds spec §8 scenario 6: an abstract Money with an
// operator-overloaded Add method, and an `a + b` expression over two
// Money-typed locals.
func moneyFixture(t *testing.T) (*tast.BinaryOp, *typetab.Table, *symtab.Table, testInterner) {
	t.Helper()
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)

	moneySym := symbols.Declare(symtab.Symbol{Name: nameMoney, Kind: symtab.KindClass})
	moneyType := types.Abstract(moneySym, nil)

	addMethodSym := symbols.Declare(symtab.Symbol{
		Name: nameAdd, Kind: symtab.KindMethod,
		OperatorMetadata: symtab.OperatorMetadata{Op: symtab.OpAdd, LhsIsA: true},
	})
	moneyClass := symbols.Get(moneySym)
	moneyClass.Methods = []ids.SymbolId{addMethodSym}
	symbols.Update(moneySym, moneyClass)

	aSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindLocal, TypeId: moneyType})
	bSym := symbols.Declare(symtab.Symbol{Kind: symtab.KindLocal, TypeId: moneyType})

	expr := &tast.BinaryOp{
		Node: tast.Node{Type: moneyType, Location: loc()}, Op: tast.OpAdd,
		Left:  &tast.Variable{Node: tast.Node{Type: moneyType}, Symbol: aSym},
		Right: &tast.Variable{Node: tast.Node{Type: moneyType}, Symbol: bSym},
	}
	return expr, types, symbols, testInterner{nameMoney: "Money", nameAdd: "add"}
}

func TestOperatorOverloadingOnAbstractRecordsRewriteAndReportsNothing(t *testing.T) {
	expr, types, symbols, interner := moneyFixture(t)
	sink := diag.NewMemorySink()
	v := New(types, symbols, sink, interner, nil)

	v.checkExpression(expr, context{})

	require.Empty(t, sink.Records())
	require.True(t, expr.HasOperatorMethod)
	require.Equal(t, symbols.ByName(nameAdd)[0], expr.OperatorMethod)
}

func TestDuplicateClassNamesReported(t *testing.T) {
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	dup := ids.InternedString(900)
	first := symbols.Declare(symtab.Symbol{Name: dup, Kind: symtab.KindClass})
	second := symbols.Declare(symtab.Symbol{Name: dup, Kind: symtab.KindClass})

	file := &tast.File{Classes: []tast.Class{{Symbol: first}, {Symbol: second}}}
	sink := diag.NewMemorySink()
	v := New(types, symbols, sink, testInterner{dup: "Dup"}, nil)

	v.ValidateFile(file)

	require.Len(t, sink.Records(), 1)
	require.Equal(t, diag.KindUndefinedType, sink.Records()[0].Kind)
}

func TestStaticFieldAccessedThroughInstanceIsViolation(t *testing.T) {
	symbols := symtab.NewTable()
	types := typetab.NewTable(symbols)
	intType := types.Int(32, true)
	classSym := symbols.Declare(symtab.Symbol{Name: nameA, Kind: symtab.KindClass})
	staticField := symbols.Declare(symtab.Symbol{Name: nameX, Kind: symtab.KindField, TypeId: intType, DeclaringClass: classSym, IsStatic: true, Visibility: symtab.Public})

	sink := diag.NewMemorySink()
	v := New(types, symbols, sink, testInterner{nameA: "A", nameX: "count"}, nil)

	v.checkAccess(staticField, false, context{hasClass: true, class: classSym}, loc())

	require.Len(t, sink.Records(), 1)
	require.Equal(t, diag.KindStaticAccessFromInstance, sink.Records()[0].Kind)
}
