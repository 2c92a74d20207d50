// Package typetab implements the interned type table (component C1): a
// store of types addressed by ids.TypeId with stable identity for the
// lifetime of one compilation. Every constructor interns on demand, and
// the table does not restrict which pass may intern: the SSA builder
// (the for-in index type) and LeastUpperBound (Unknown, Error, Dynamic
// and common-ancestor class types) add entries while they run.
package typetab

import (
	"fmt"
	"strings"

	"github.com/rayzor-lang/rayzor/internal/ids"
)

// Field describes one member of a Struct or Anonymous type.
type Field struct {
	Name string
	Type ids.TypeId
}

// Kind is the closed set of type shapes a Type can take.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindInt // Bits + Signed distinguish I8..I64 / U8..U64
	KindFloat
	KindString
	KindChar
	KindArray
	KindSlice
	KindOptional
	KindPtr
	KindRef
	KindFunction
	KindStruct
	KindUnion
	KindVector
	KindClass
	KindInterface
	KindAbstract
	KindAnonymous
	KindGeneric
	KindTypeVar
	KindOpaque
	KindAny
	KindDynamic
	KindUnknown
	KindError
)

// Type is one interned entry of the type table. Only the fields relevant
// to Kind are populated; this mirrors the closed TypeKind enum of spec §3
// as a single tagged struct instead of N Go structs, since most variants
// share the "one or two dependent TypeIds plus metadata" shape and the
// table must be able to store them homogeneously in a dense slice.
type Type struct {
	Kind Kind

	Bits   int  // Int/Float bit width
	Signed bool // Int signedness

	Elem    ids.TypeId // Array/Slice/Vector element, Optional/Ptr/Ref pointee
	LaneCount int      // Vector lane count
	ArrayLen  uint64   // Array length (only meaningful when Kind == KindArray)

	Params  []ids.TypeId // Function parameter types
	Return  ids.TypeId   // Function return type
	Effects []ids.TypeId // Function effect row

	Fields []Field // Struct/Anonymous fields (order preserved)

	Variants []ids.TypeId // Union variants

	Symbol   ids.SymbolId // Class/Interface/Abstract declaring symbol
	TypeArgs []ids.TypeId // Class/Interface/Abstract/Generic type arguments

	OpaqueSize int // Opaque byte size

	TypeVarId uint32 // TypeVar identity
}

// Table is the interned type store.
type Table struct {
	types []Type
	byKey map[string]ids.TypeId

	// classes supplies subtype-lattice facts (super class / interfaces)
	// looked up by Symbol. It is populated by the symbol table owner;
	// typetab never constructs class hierarchy information itself.
	classes ClassHierarchy
}

// ClassHierarchy answers the nominal-subtyping questions the type table
// needs but does not own: which symbol is the superclass of which, and
// which interfaces a class declares. Implemented by internal/symtab.
type ClassHierarchy interface {
	SuperClass(ids.SymbolId) (ids.SymbolId, bool)
	Interfaces(ids.SymbolId) []ids.SymbolId
}

// NewTable creates an empty type table bound to a class hierarchy.
func NewTable(classes ClassHierarchy) *Table {
	return &Table{
		types:   make([]Type, 0, 64),
		byKey:   make(map[string]ids.TypeId),
		classes: classes,
	}
}

// Get returns the Type stored for id. Panics on an invalid/out-of-range
// id: callers hold ids produced by this table or its Intern calls only.
func (t *Table) Get(id ids.TypeId) Type {
	return t.types[id.Raw()]
}

// intern is the shared dedup-then-store path: types with identical
// structural keys collapse to the same TypeId so that equality of types
// becomes equality of ids.
func (t *Table) intern(key string, ty Type) ids.TypeId {
	if existing, ok := t.byKey[key]; ok {
		return existing
	}
	id := ids.TypeIdFromRaw(uint32(len(t.types)))
	t.types = append(t.types, ty)
	t.byKey[key] = id
	return id
}

func (t *Table) Void() ids.TypeId   { return t.intern("void", Type{Kind: KindVoid}) }
func (t *Table) Bool() ids.TypeId   { return t.intern("bool", Type{Kind: KindBool}) }
func (t *Table) StringType() ids.TypeId { return t.intern("string", Type{Kind: KindString}) }
func (t *Table) Char() ids.TypeId   { return t.intern("char", Type{Kind: KindChar}) }
func (t *Table) Any() ids.TypeId    { return t.intern("any", Type{Kind: KindAny}) }
func (t *Table) Dynamic() ids.TypeId { return t.intern("dynamic", Type{Kind: KindDynamic}) }
func (t *Table) Unknown() ids.TypeId { return t.intern("unknown", Type{Kind: KindUnknown}) }
func (t *Table) Error() ids.TypeId   { return t.intern("error", Type{Kind: KindError}) }

func (t *Table) Int(bits int, signed bool) ids.TypeId {
	key := fmt.Sprintf("int:%d:%v", bits, signed)
	return t.intern(key, Type{Kind: KindInt, Bits: bits, Signed: signed})
}

func (t *Table) Float(bits int) ids.TypeId {
	key := fmt.Sprintf("float:%d", bits)
	return t.intern(key, Type{Kind: KindFloat, Bits: bits})
}

func (t *Table) Array(elem ids.TypeId, length uint64) ids.TypeId {
	key := fmt.Sprintf("array:%d:%d", elem.Raw(), length)
	return t.intern(key, Type{Kind: KindArray, Elem: elem, ArrayLen: length})
}

func (t *Table) Slice(elem ids.TypeId) ids.TypeId {
	return t.intern(fmt.Sprintf("slice:%d", elem.Raw()), Type{Kind: KindSlice, Elem: elem})
}

func (t *Table) Optional(inner ids.TypeId) ids.TypeId {
	return t.intern(fmt.Sprintf("opt:%d", inner.Raw()), Type{Kind: KindOptional, Elem: inner})
}

func (t *Table) Ptr(pointee ids.TypeId) ids.TypeId {
	return t.intern(fmt.Sprintf("ptr:%d", pointee.Raw()), Type{Kind: KindPtr, Elem: pointee})
}

func (t *Table) Ref(pointee ids.TypeId) ids.TypeId {
	return t.intern(fmt.Sprintf("ref:%d", pointee.Raw()), Type{Kind: KindRef, Elem: pointee})
}

func (t *Table) Function(params []ids.TypeId, ret ids.TypeId, effects []ids.TypeId) ids.TypeId {
	var b strings.Builder
	b.WriteString("fn:")
	for _, p := range params {
		fmt.Fprintf(&b, "%d,", p.Raw())
	}
	fmt.Fprintf(&b, "->%d!", ret.Raw())
	for _, e := range effects {
		fmt.Fprintf(&b, "%d,", e.Raw())
	}
	return t.intern(b.String(), Type{
		Kind:    KindFunction,
		Params:  append([]ids.TypeId(nil), params...),
		Return:  ret,
		Effects: append([]ids.TypeId(nil), effects...),
	})
}

func (t *Table) Struct(fields []Field) ids.TypeId {
	var b strings.Builder
	b.WriteString("struct:")
	for _, f := range fields {
		fmt.Fprintf(&b, "%s:%d,", f.Name, f.Type.Raw())
	}
	return t.intern(b.String(), Type{Kind: KindStruct, Fields: append([]Field(nil), fields...)})
}

func (t *Table) Union(variants []ids.TypeId) ids.TypeId {
	var b strings.Builder
	b.WriteString("union:")
	for _, v := range variants {
		fmt.Fprintf(&b, "%d,", v.Raw())
	}
	return t.intern(b.String(), Type{Kind: KindUnion, Variants: append([]ids.TypeId(nil), variants...)})
}

func (t *Table) Vector(elem ids.TypeId, lanes int) ids.TypeId {
	return t.intern(fmt.Sprintf("vec:%d:%d", elem.Raw(), lanes),
		Type{Kind: KindVector, Elem: elem, LaneCount: lanes})
}

func (t *Table) Class(symbol ids.SymbolId, typeArgs []ids.TypeId) ids.TypeId {
	return t.intern(classKey("class", symbol, typeArgs),
		Type{Kind: KindClass, Symbol: symbol, TypeArgs: append([]ids.TypeId(nil), typeArgs...)})
}

func (t *Table) Interface(symbol ids.SymbolId, typeArgs []ids.TypeId) ids.TypeId {
	return t.intern(classKey("iface", symbol, typeArgs),
		Type{Kind: KindInterface, Symbol: symbol, TypeArgs: append([]ids.TypeId(nil), typeArgs...)})
}

func (t *Table) Abstract(symbol ids.SymbolId, typeArgs []ids.TypeId) ids.TypeId {
	return t.intern(classKey("abstract", symbol, typeArgs),
		Type{Kind: KindAbstract, Symbol: symbol, TypeArgs: append([]ids.TypeId(nil), typeArgs...)})
}

func (t *Table) Anonymous(fields []Field) ids.TypeId {
	var b strings.Builder
	b.WriteString("anon:")
	for _, f := range fields {
		fmt.Fprintf(&b, "%s:%d,", f.Name, f.Type.Raw())
	}
	return t.intern(b.String(), Type{Kind: KindAnonymous, Fields: append([]Field(nil), fields...)})
}

func (t *Table) Generic(params []ids.TypeId) ids.TypeId {
	var b strings.Builder
	b.WriteString("generic:")
	for _, p := range params {
		fmt.Fprintf(&b, "%d,", p.Raw())
	}
	return t.intern(b.String(), Type{Kind: KindGeneric, Params: append([]ids.TypeId(nil), params...)})
}

func (t *Table) TypeVar(id uint32) ids.TypeId {
	return t.intern(fmt.Sprintf("tvar:%d", id), Type{Kind: KindTypeVar, TypeVarId: id})
}

func (t *Table) Opaque(size int) ids.TypeId {
	return t.intern(fmt.Sprintf("opaque:%d", size), Type{Kind: KindOpaque, OpaqueSize: size})
}

func classKey(tag string, symbol ids.SymbolId, typeArgs []ids.TypeId) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:", tag, symbol.Raw())
	for _, a := range typeArgs {
		fmt.Fprintf(&b, "%d,", a.Raw())
	}
	return b.String()
}

// String renders a human-readable name for a type, for diagnostics.
func (t *Table) String(id ids.TypeId) string {
	ty := t.Get(id)
	switch ty.Kind {
	case KindVoid:
		return "Void"
	case KindBool:
		return "Bool"
	case KindInt:
		prefix := "I"
		if !ty.Signed {
			prefix = "U"
		}
		return fmt.Sprintf("%s%d", prefix, ty.Bits)
	case KindFloat:
		return fmt.Sprintf("F%d", ty.Bits)
	case KindString:
		return "String"
	case KindChar:
		return "Char"
	case KindArray:
		return fmt.Sprintf("Array<%s; %d>", t.String(ty.Elem), ty.ArrayLen)
	case KindSlice:
		return fmt.Sprintf("Slice<%s>", t.String(ty.Elem))
	case KindOptional:
		return fmt.Sprintf("%s?", t.String(ty.Elem))
	case KindPtr:
		return fmt.Sprintf("*%s", t.String(ty.Elem))
	case KindRef:
		return fmt.Sprintf("&%s", t.String(ty.Elem))
	case KindFunction:
		parts := make([]string, len(ty.Params))
		for i, p := range ty.Params {
			parts[i] = t.String(p)
		}
		return fmt.Sprintf("(%s) -> %s", strings.Join(parts, ", "), t.String(ty.Return))
	case KindStruct:
		return t.fieldsString("struct", ty.Fields)
	case KindUnion:
		parts := make([]string, len(ty.Variants))
		for i, v := range ty.Variants {
			parts[i] = t.String(v)
		}
		return fmt.Sprintf("union{%s}", strings.Join(parts, " | "))
	case KindVector:
		return fmt.Sprintf("vector<%s x %d>", t.String(ty.Elem), ty.LaneCount)
	case KindClass:
		return fmt.Sprintf("class#%d%s", ty.Symbol.Raw(), typeArgsString(t, ty.TypeArgs))
	case KindInterface:
		return fmt.Sprintf("iface#%d%s", ty.Symbol.Raw(), typeArgsString(t, ty.TypeArgs))
	case KindAbstract:
		return fmt.Sprintf("abstract#%d%s", ty.Symbol.Raw(), typeArgsString(t, ty.TypeArgs))
	case KindAnonymous:
		return t.fieldsString("anon", ty.Fields)
	case KindGeneric:
		return "generic"
	case KindTypeVar:
		return fmt.Sprintf("'t%d", ty.TypeVarId)
	case KindOpaque:
		return fmt.Sprintf("opaque<%d>", ty.OpaqueSize)
	case KindAny:
		return "Any"
	case KindDynamic:
		return "Dynamic"
	case KindUnknown:
		return "Unknown"
	case KindError:
		return "Error"
	default:
		return "?"
	}
}

func (t *Table) fieldsString(tag string, fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, t.String(f.Type))
	}
	return fmt.Sprintf("%s{%s}", tag, strings.Join(parts, ", "))
}

func typeArgsString(t *Table, args []ids.TypeId) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = t.String(a)
	}
	return "<" + strings.Join(parts, ", ") + ">"
}
