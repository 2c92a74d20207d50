package validate

import (
	"fmt"

	"github.com/rayzor-lang/rayzor/internal/diag"
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/tast"
	"github.com/rayzor-lang/rayzor/internal/typetab"
)

// methodSig is the (params, return) shape of a declared method, found
// either on an interface (MethodSignature) or a class (Function).
type methodSig struct {
	symbol ids.SymbolId
	params []ids.TypeId
	ret    ids.TypeId
	loc    tast.SourceLocation
}

func classMethodSigs(cls *tast.Class) []methodSig {
	out := make([]methodSig, len(cls.Methods))
	for i, m := range cls.Methods {
		params := make([]ids.TypeId, len(m.Params))
		for j, p := range m.Params {
			params[j] = p.Type
		}
		loc := tast.SourceLocation{}
		if len(m.Body) > 0 {
			loc = m.Body[0].Loc()
		}
		out[i] = methodSig{symbol: m.Symbol, params: params, ret: m.ReturnType, loc: loc}
	}
	return out
}

// compatibleSignature applies spec §4.7(2)'s contra/covariant rule: the
// class parameter must accept at least what the interface parameter
// accepts (contravariant), and the class return type must be
// assignable to the interface return type (covariant).
func compatibleSignature(t *typetab.Table, iface, class methodSig) bool {
	if len(iface.params) != len(class.params) {
		return false
	}
	for i := range iface.params {
		if t.Compatible(iface.params[i], class.params[i]) == typetab.Incompatible {
			return false
		}
	}
	return t.Compatible(class.ret, iface.ret) != typetab.Incompatible
}

// checkInterfaceConformance implements spec §4.7(2).
func (v *Validator) checkInterfaceConformance(cls *tast.Class) {
	classSigs := classMethodSigs(cls)
	for _, ifaceSym := range cls.Implements {
		iface := v.interfaceOf(ifaceSym)
		if iface == nil {
			continue
		}
		for _, im := range iface.Methods {
			ifaceSig := methodSig{symbol: im.Symbol, params: im.Params, ret: im.Return}
			name := v.symbols.Get(im.Symbol).Name
			found, ok := findByName(classSigs, v, name)
			if !ok {
				v.report(diag.KindInterfaceNotImplemented,
					v.classLoc(cls),
					fmt.Sprintf("class %s does not implement method %s required by interface %s",
						v.name(cls.Symbol), v.name(im.Symbol), v.name(ifaceSym)),
					fmt.Sprintf("Add method '%s' to class '%s'", v.name(im.Symbol), v.name(cls.Symbol)))
				continue
			}
			if !compatibleSignature(v.types, ifaceSig, found) {
				v.report(diag.KindMethodSignatureMismatch, found.loc,
					fmt.Sprintf("method %s on %s has a signature incompatible with interface %s",
						v.name(found.symbol), v.name(cls.Symbol), v.name(ifaceSym)),
					"adjust parameter/return types to satisfy the interface contract")
			}
		}
	}
}

func findByName(sigs []methodSig, v *Validator, name ids.InternedString) (methodSig, bool) {
	for _, s := range sigs {
		if v.symbols.Get(s.symbol).Name == name {
			return s, true
		}
	}
	return methodSig{}, false
}

func (v *Validator) interfaceOf(sym ids.SymbolId) *tast.Interface {
	iface, ok := v.interfaces[sym]
	if !ok {
		return nil
	}
	return iface
}

func (v *Validator) classLoc(cls *tast.Class) tast.SourceLocation {
	if len(cls.Methods) > 0 && len(cls.Methods[0].Body) > 0 {
		return cls.Methods[0].Body[0].Loc()
	}
	return tast.SourceLocation{}
}

// checkOverrides implements spec §4.7(3): every class method whose
// name also appears on the superclass must carry an override
// annotation and match the parent's signature under the same
// contra/covariant rule used for interfaces.
func (v *Validator) checkOverrides(cls *tast.Class) {
	sym := v.symbols.Get(cls.Symbol)
	if !sym.HasSuper {
		return
	}
	classSigs := classMethodSigs(cls)
	for _, m := range classSigs {
		name := v.symbols.Get(m.symbol).Name
		parentId, ok := v.symbols.MethodNamed(sym.SuperClass, name)
		if !ok {
			continue
		}
		methodSym := v.symbols.Get(m.symbol)
		if !methodSym.IsOverride {
			v.report(diag.KindMissingOverride, m.loc,
				fmt.Sprintf("method %s overrides %s.%s but is not marked override",
					v.name(m.symbol), v.name(sym.SuperClass), v.name(parentId)),
				"add an override annotation")
			continue
		}
		parent := v.symbols.Get(parentId)
		parentType := v.types.Get(parent.TypeId)
		if parentType.Kind != typetab.KindFunction {
			v.report(diag.KindInvalidOverride, m.loc,
				fmt.Sprintf("method %s is marked override but %s has no matching parent method",
					v.name(m.symbol), v.name(sym.SuperClass)),
				"remove the override annotation or rename the method")
			continue
		}
		parentSig := methodSig{symbol: parentId, params: parentType.Params, ret: parentType.Return}
		if !compatibleSignature(v.types, parentSig, m) {
			v.report(diag.KindInvalidOverride, m.loc,
				fmt.Sprintf("method %s's signature is incompatible with the overridden %s.%s",
					v.name(m.symbol), v.name(sym.SuperClass), v.name(parentId)),
				"match the parent method's parameter and return types")
		}
	}
}
