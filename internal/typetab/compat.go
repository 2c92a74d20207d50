package typetab

import "github.com/rayzor-lang/rayzor/internal/ids"

// Compatibility classifies how two types relate for assignment and
// signature-matching purposes (spec §4.7(2), "{Identical, Assignable,
// Incompatible}").
type Compatibility uint8

const (
	Identical Compatibility = iota
	Assignable
	Incompatible
)

// Compatible computes the Compatibility of assigning a value of type
// `from` to a target of type `to`.
func (t *Table) Compatible(from, to ids.TypeId) Compatibility {
	if from == to {
		return Identical
	}
	fromTy := t.Get(from)
	toTy := t.Get(to)

	if toTy.Kind == KindDynamic || fromTy.Kind == KindDynamic {
		return Assignable
	}
	if toTy.Kind == KindAny {
		return Assignable
	}
	if fromTy.Kind == KindError || toTy.Kind == KindError {
		return Incompatible
	}

	switch {
	case fromTy.Kind == KindInt && toTy.Kind == KindInt:
		if fromTy.Signed == toTy.Signed && fromTy.Bits <= toTy.Bits {
			return Assignable
		}
		return Incompatible
	case fromTy.Kind == KindInt && toTy.Kind == KindFloat:
		return Assignable // widening int -> float, used by overload resolution (§4.7(8))
	case fromTy.Kind == KindFloat && toTy.Kind == KindFloat:
		if fromTy.Bits <= toTy.Bits {
			return Assignable
		}
		return Incompatible
	case fromTy.Kind == KindOptional && toTy.Kind == KindOptional:
		return t.Compatible(fromTy.Elem, toTy.Elem)
	case fromTy.Kind != KindOptional && toTy.Kind == KindOptional:
		return t.Compatible(from, toTy.Elem)
	case fromTy.Kind == KindClass && toTy.Kind == KindClass:
		if t.isSubclassOf(fromTy.Symbol, toTy.Symbol) {
			return Assignable
		}
		return Incompatible
	case fromTy.Kind == KindClass && toTy.Kind == KindInterface:
		if t.classImplements(fromTy.Symbol, toTy.Symbol) {
			return Assignable
		}
		return Incompatible
	case fromTy.Kind == KindArray && toTy.Kind == KindSlice:
		return t.Compatible(fromTy.Elem, toTy.Elem)
	case fromTy.Kind == KindSlice && toTy.Kind == KindSlice:
		return t.Compatible(fromTy.Elem, toTy.Elem)
	default:
		return Incompatible
	}
}

// isSubclassOf walks the super-class chain looking for target.
func (t *Table) isSubclassOf(class, target ids.SymbolId) bool {
	current := class
	for i := 0; i < 1<<16; i++ { // bounded: class hierarchies are finite and acyclic
		if current == target {
			return true
		}
		super, ok := t.classes.SuperClass(current)
		if !ok {
			return false
		}
		current = super
	}
	return false
}

// classImplements reports whether class (or any of its superclasses)
// declares the given interface.
func (t *Table) classImplements(class, iface ids.SymbolId) bool {
	current := class
	for i := 0; i < 1<<16; i++ {
		for _, decl := range t.classes.Interfaces(current) {
			if decl == iface {
				return true
			}
		}
		super, ok := t.classes.SuperClass(current)
		if !ok {
			return false
		}
		current = super
	}
	return false
}

// IsSubclassOf exposes the superclass-chain walk used by the validator's
// Protected-visibility rule (spec §4.7(5)).
func (t *Table) IsSubclassOf(class, target ids.SymbolId) bool {
	return t.isSubclassOf(class, target)
}

// ClassImplements exposes the interface-conformance walk.
func (t *Table) ClassImplements(class, iface ids.SymbolId) bool {
	return t.classImplements(class, iface)
}

// LeastUpperBound computes the least upper bound of a set of types in the
// subtype lattice for phi-type unification (component C5, spec §4.4). If
// no common upper bound exists below Dynamic, the result is Dynamic. Any
// Error-kind input propagates Error per spec §4.4's error condition.
func (t *Table) LeastUpperBound(candidates []ids.TypeId) ids.TypeId {
	if len(candidates) == 0 {
		return t.Unknown()
	}
	for _, c := range candidates {
		if t.Get(c).Kind == KindError {
			return t.Error()
		}
	}
	lub := candidates[0]
	for _, c := range candidates[1:] {
		lub = t.pairwiseLUB(lub, c)
	}
	return lub
}

func (t *Table) pairwiseLUB(a, b ids.TypeId) ids.TypeId {
	if a == b {
		return a
	}
	switch t.Compatible(a, b) {
	case Identical, Assignable:
		return b
	}
	switch t.Compatible(b, a) {
	case Identical, Assignable:
		return a
	}
	aTy, bTy := t.Get(a), t.Get(b)
	if aTy.Kind == KindClass && bTy.Kind == KindClass {
		if common, ok := t.nearestCommonAncestor(aTy.Symbol, bTy.Symbol); ok {
			return t.Class(common, nil)
		}
	}
	return t.Dynamic()
}

func (t *Table) nearestCommonAncestor(a, b ids.SymbolId) (ids.SymbolId, bool) {
	ancestors := map[ids.SymbolId]bool{a: true}
	for cur, ok := a, true; ok; cur, ok = t.classes.SuperClass(cur) {
		ancestors[cur] = true
		if cur == a {
			continue
		}
	}
	for cur, ok := b, true; ok; {
		if ancestors[cur] {
			return cur, true
		}
		cur, ok = t.classes.SuperClass(cur)
	}
	if ancestors[b] {
		return b, true
	}
	return ids.SymbolId(0), false
}
