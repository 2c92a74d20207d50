// Package validate implements component C8, the semantic validator: a
// top-down walk over a TypedFile that checks the ten rules of spec
// §4.7 against the symbol and type tables, reporting every violation to
// a diagnostic sink without early-exiting on the first error.
//
// The walk is grounded on the teacher's internal/elaborate package (a
// top-down checker over already-typed declarations that reports to an
// internal/errors-shaped sink rather than returning on first failure).
package validate

import (
	"fmt"

	"github.com/rayzor-lang/rayzor/internal/diag"
	"github.com/rayzor-lang/rayzor/internal/flowsafety"
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/symtab"
	"github.com/rayzor-lang/rayzor/internal/tast"
	"github.com/rayzor-lang/rayzor/internal/typetab"
)

// Interner resolves interned names back to source text for diagnostic
// messages; the validator never needs it for anything else.
type Interner interface {
	Lookup(id ids.InternedString) string
}

// Validator runs the spec §4.7 checklist over one TypedFile.
type Validator struct {
	types   *typetab.Table
	symbols *symtab.Table
	sink    diag.Sink
	interner Interner

	classifier  flowsafety.ResourceClassifier
	flowEnabled bool

	interfaces map[ids.SymbolId]*tast.Interface
	classes    map[ids.SymbolId]*tast.Class

	// iterableInterface is the well-known Iterable interface's symbol,
	// consulted by the for-in rule of spec §4.7(7); invalid until set.
	iterableInterface ids.SymbolId
}

// New creates a Validator. classifier may be nil (defaults to
// flowsafety.NoResources{}).
func New(types *typetab.Table, symbols *symtab.Table, sink diag.Sink, interner Interner, classifier flowsafety.ResourceClassifier) *Validator {
	if classifier == nil {
		classifier = flowsafety.NoResources{}
	}
	return &Validator{
		types: types, symbols: symbols, sink: sink, interner: interner, classifier: classifier,
		iterableInterface: ids.InvalidSymbolId,
	}
}

// EnableFlowAnalysis turns on the spec §4.7(10) hookup to C7.
func (v *Validator) EnableFlowAnalysis(enabled bool) {
	v.flowEnabled = enabled
}

// SetIterableInterface tells the validator which interface symbol
// represents the source language's Iterable contract, consulted by the
// for-in rule of spec §4.7(7) for class-typed iterables.
func (v *Validator) SetIterableInterface(sym ids.SymbolId) {
	v.iterableInterface = sym
}

// context carries the access-site facts the visibility and static/
// instance rules need (spec §4.7(5), (6)): the enclosing class (if
// any), whether the enclosing method is static, and the enclosing
// package.
type context struct {
	class    ids.SymbolId
	hasClass bool
	static   bool
	pkg      ids.PackageId
}

func (v *Validator) name(sym ids.SymbolId) string {
	n := v.symbols.Get(sym).Name
	if v.interner == nil {
		return fmt.Sprintf("symbol#%d", sym.Raw())
	}
	return v.interner.Lookup(n)
}

func (v *Validator) report(kind diag.Kind, loc tast.SourceLocation, context, suggestion string) {
	v.sink.Report(diag.Record{
		Kind: kind, Location: loc, Context: context,
		Suggestion: suggestion, HasSuggestion: suggestion != "",
	})
}

// ValidateFile runs the full checklist over file, in declaration order.
func (v *Validator) ValidateFile(file *tast.File) {
	v.interfaces = make(map[ids.SymbolId]*tast.Interface, len(file.Interfaces))
	for i := range file.Interfaces {
		v.interfaces[file.Interfaces[i].Symbol] = &file.Interfaces[i]
	}
	v.classes = make(map[ids.SymbolId]*tast.Class, len(file.Classes))
	for i := range file.Classes {
		v.classes[file.Classes[i].Symbol] = &file.Classes[i]
	}

	v.checkDuplicateNames(file)

	pkg := file.Metadata.PackageId
	for i := range file.Classes {
		v.checkClass(&file.Classes[i], pkg)
	}
	for i := range file.Abstracts {
		for j := range file.Abstracts[i].Methods {
			v.checkFunction(&file.Abstracts[i].Methods[j], context{class: file.Abstracts[i].Symbol, hasClass: true, pkg: pkg})
		}
	}
	for i := range file.Functions {
		v.checkFunction(&file.Functions[i], context{pkg: pkg})
	}
}

func (v *Validator) checkClass(cls *tast.Class, pkg ids.PackageId) {
	v.checkInterfaceConformance(cls)
	v.checkOverrides(cls)
	for i := range cls.Methods {
		v.checkFunction(&cls.Methods[i], context{class: cls.Symbol, hasClass: true, static: cls.Methods[i].IsStatic, pkg: pkg})
	}
}

func (v *Validator) checkFunction(fn *tast.Function, ctx context) {
	ctx.static = fn.IsStatic
	for _, stmt := range fn.Body {
		v.checkStatement(stmt, ctx)
	}
	if v.flowEnabled {
		v.checkFlow(fn)
	}
}

// checkDuplicateNames implements spec §4.7(1): two classes/interfaces
// sharing a name is rejected. It groups the file's classes and
// interfaces by name and reports every declaration after the first
// under a shared name; functions, abstracts and enums are not checked.
func (v *Validator) checkDuplicateNames(file *tast.File) {
	seen := make(map[ids.InternedString][]ids.SymbolId)
	record := func(sym ids.SymbolId) {
		name := v.symbols.Get(sym).Name
		seen[name] = append(seen[name], sym)
	}
	for _, c := range file.Classes {
		record(c.Symbol)
	}
	for _, i := range file.Interfaces {
		record(i.Symbol)
	}
	for name, syms := range seen {
		if len(syms) < 2 {
			continue
		}
		_ = name
		for _, sym := range syms[1:] {
			kind := "class"
			if v.symbols.Get(sym).Kind == symtab.KindInterface {
				kind = "interface"
			}
			v.report(diag.KindUndefinedType, tast.SourceLocation{},
				fmt.Sprintf("duplicate %s definition: %s", kind, v.name(sym)),
				fmt.Sprintf("rename one of the duplicate %ss", kind))
		}
	}
}
