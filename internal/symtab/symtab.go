// Package symtab implements the symbol table half of component C1: an
// interned store of symbols (fields, methods, classes, interfaces,
// functions, locals) addressed by ids.SymbolId, plus the nominal class
// hierarchy facts (superclass, declared interfaces) the type table's
// subtype lattice consults.
package symtab

import "github.com/rayzor-lang/rayzor/internal/ids"

// Visibility is the closed access-control lattice of spec §3.
type Visibility uint8

const (
	Public Visibility = iota
	Private
	Protected
	Internal
)

// Kind distinguishes what a Symbol denotes.
type Kind uint8

const (
	KindField Kind = iota
	KindMethod
	KindClass
	KindInterface
	KindFunction
	KindLocal
	KindParameter
)

// Symbol is one entry of the symbol table (spec §3: "Symbols carry
// {name, kind, type_id, visibility, package_id, static?, …}").
type Symbol struct {
	Name       ids.InternedString
	Kind       Kind
	TypeId     ids.TypeId
	Visibility Visibility
	PackageId  ids.PackageId
	IsStatic   bool

	// DeclaringClass is set for Field/Method symbols: the class that
	// declares them, independent of where they are accessed from. Field
	// and method visibility/static-ness is tracked per spec §3's note
	// that each is recorded "independently of its declaring class".
	DeclaringClass ids.SymbolId

	// SuperClass and Interfaces are only meaningful for Kind == KindClass.
	SuperClass ids.SymbolId
	HasSuper   bool
	Interfaces []ids.SymbolId

	// Methods/Fields list the symbol ids of a class or interface's own
	// members, in declaration order.
	Methods []ids.SymbolId
	Fields  []ids.SymbolId

	// OverloadSignatures lists alternate (param types, return type)
	// signatures for a method symbol that supports overload resolution
	// (spec §4.7(8)); empty for symbols without overloads.
	OverloadSignatures []Signature

	// OperatorMetadata records the operator this method overloads, for
	// Abstract-type operator resolution (spec §4.7(9)); Kind ==
	// OperatorNone for symbols that are not operator overloads.
	OperatorMetadata OperatorMetadata

	// IsOverride records whether the declaration carried an explicit
	// override annotation (spec §4.7(3)).
	IsOverride bool
}

// Signature is a parameter/return shape used for overload resolution.
type Signature struct {
	Params []ids.TypeId
	Return ids.TypeId
}

// Operator is the closed set of overloadable operators.
type Operator uint8

const (
	OperatorNone Operator = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeg
)

// OperatorMetadata names the operator (and operand arrangement) a method
// implements when it is reachable through Abstract-type operator lookup.
type OperatorMetadata struct {
	Op       Operator
	LhsIsA   bool // true for "A op B" (this on the left), false for "B op A"
}

// Table is the interned symbol store.
type Table struct {
	symbols []Symbol
	byName  map[ids.InternedString][]ids.SymbolId // backs ByName
}

// NewTable creates an empty symbol table.
func NewTable() *Table {
	return &Table{
		symbols: make([]Symbol, 0, 64),
		byName:  make(map[ids.InternedString][]ids.SymbolId),
	}
}

// Declare interns a new symbol and returns its id.
func (t *Table) Declare(sym Symbol) ids.SymbolId {
	id := ids.SymbolIdFromRaw(uint32(len(t.symbols)))
	t.symbols = append(t.symbols, sym)
	t.byName[sym.Name] = append(t.byName[sym.Name], id)
	return id
}

// Get returns the Symbol stored for id.
func (t *Table) Get(id ids.SymbolId) Symbol {
	return t.symbols[id.Raw()]
}

// Update replaces the Symbol stored for id. The validator does not call
// it; it is for callers that fill in a symbol's fields after declaring it.
func (t *Table) Update(id ids.SymbolId, sym Symbol) {
	t.symbols[id.Raw()] = sym
}

// ByName returns every symbol declared under a given interned name,
// in declaration order. The validator's duplicate-name check does not use
// it; it groups the file's classes and interfaces itself.
func (t *Table) ByName(name ids.InternedString) []ids.SymbolId {
	return t.byName[name]
}

// SuperClass implements typetab.ClassHierarchy.
func (t *Table) SuperClass(class ids.SymbolId) (ids.SymbolId, bool) {
	sym := t.Get(class)
	if !sym.HasSuper {
		return ids.SymbolId(0), false
	}
	return sym.SuperClass, true
}

// Interfaces implements typetab.ClassHierarchy.
func (t *Table) Interfaces(class ids.SymbolId) []ids.SymbolId {
	return t.Get(class).Interfaces
}

// MethodNamed finds a method of the given name among a class's own
// methods, returning its id and whether it was found. The validator is
// responsible for walking superclasses when that semantics is wanted.
func (t *Table) MethodNamed(class ids.SymbolId, name ids.InternedString) (ids.SymbolId, bool) {
	for _, m := range t.Get(class).Methods {
		if t.Get(m).Name == name {
			return m, true
		}
	}
	return ids.SymbolId(0), false
}
