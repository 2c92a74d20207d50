// Package closure implements component C4: given a lambda body and its
// parameter list, find the set of free variables — symbols referenced by
// the body that are neither locally declared within it nor parameters —
// and describe the closure record layout the emitter must produce for
// them (spec §4.3).
package closure

import (
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/tast"
)

// CaptureType distinguishes how a captured variable is stored in the
// closure record.
type CaptureType uint8

const (
	ByValue CaptureType = iota
	ByReference
)

// Captured describes one free variable captured by a closure.
type Captured struct {
	SymbolId    ids.SymbolId
	SsaVarId    ids.SsaVariableId // filled in by the SSA builder once known; invalid until then
	CaptureType CaptureType
	// CaptureIndex is the slot this variable occupies in the closure
	// record, after the 8-byte header (spec §4.3).
	CaptureIndex int
}

const headerSize = 8
const slotSize = 8 // pointer-sized slot per captured variable

// RecordSize returns the total byte size of a closure record holding the
// given captures: an 8-byte header followed by one pointer-sized slot
// per capture.
func RecordSize(captures []Captured) int {
	return headerSize + slotSize*len(captures)
}

// FreeVariables finds every symbol the lambda body references that is
// neither a parameter nor declared within the body itself, in first-use
// order (stable so the emitter's capture indices are deterministic).
func FreeVariables(params []ids.SymbolId, body []tast.Statement) []Captured {
	bound := make(map[ids.SymbolId]bool, len(params))
	for _, p := range params {
		bound[p] = true
	}

	var order []ids.SymbolId
	seen := make(map[ids.SymbolId]bool)
	free := func(sym ids.SymbolId) {
		if bound[sym] || seen[sym] {
			return
		}
		seen[sym] = true
		order = append(order, sym)
	}

	var walkStmt func(tast.Statement)
	var walkExpr func(tast.Expression)

	walkExpr = func(e tast.Expression) {
		if e == nil {
			return
		}
		switch ex := e.(type) {
		case *tast.Variable:
			free(ex.Symbol)
		case *tast.FieldAccess:
			walkExpr(ex.Object)
		case *tast.StaticFieldAccess:
			// no locally-scoped reference
		case *tast.ArrayAccess:
			walkExpr(ex.Array)
			walkExpr(ex.Index)
		case *tast.Call:
			walkExpr(ex.Receiver)
			for _, a := range ex.Args {
				walkExpr(a)
			}
		case *tast.BinaryOp:
			walkExpr(ex.Left)
			walkExpr(ex.Right)
		case *tast.UnaryOp:
			walkExpr(ex.Operand)
		case *tast.Cast:
			walkExpr(ex.Operand)
		case *tast.New:
			for _, a := range ex.Args {
				walkExpr(a)
			}
		case *tast.Conditional:
			walkExpr(ex.Cond)
			walkExpr(ex.Then)
			walkExpr(ex.Else)
		case *tast.ArrayLiteral:
			for _, el := range ex.Elements {
				walkExpr(el)
			}
		case *tast.MapLiteral:
			for _, en := range ex.Entries {
				walkExpr(en.Key)
				walkExpr(en.Value)
			}
		case *tast.ObjectLiteral:
			for _, f := range ex.Fields {
				walkExpr(f.Value)
			}
		case *tast.FunctionLiteral:
			// Nested closures are analyzed independently by the caller
			// against their own parameter set; references the inner
			// lambda makes to symbols outside *this* lambda are free
			// variables of this lambda too, so we walk in, treating this
			// lambda's bound symbols and the inner lambda's own params
			// as bound.
			inner := make(map[ids.SymbolId]bool, len(bound)+len(ex.Params))
			for k := range bound {
				inner[k] = true
			}
			for _, p := range ex.Params {
				inner[p] = true
			}
			walkNestedBody(ex.Body, inner, free)
		case *tast.StringInterpolation:
			for _, p := range ex.Parts {
				walkExpr(p)
			}
		case *tast.Macro:
			walkExpr(ex.Name)
		}
	}

	walkStmt = func(s tast.Statement) {
		if s == nil {
			return
		}
		switch st := s.(type) {
		case *tast.VarDeclaration:
			walkExpr(st.Init)
			bound[st.Symbol] = true
		case *tast.Assignment:
			switch st.Target {
			case tast.AssignVariable:
				free(st.Symbol)
			case tast.AssignField:
				walkExpr(st.FieldObject)
			case tast.AssignArrayElement:
				walkExpr(st.ArrayObject)
				walkExpr(st.ArrayIndex)
			}
			walkExpr(st.Value)
		case *tast.ExpressionStatement:
			walkExpr(st.Expr)
		case *tast.Return:
			walkExpr(st.Value)
		case *tast.Throw:
			walkExpr(st.Value)
		case *tast.If:
			walkExpr(st.Cond)
			walkStmt(st.Then)
			if st.HasElse {
				walkStmt(st.Else)
			}
		case *tast.While:
			walkExpr(st.Cond)
			walkStmt(st.Body)
		case *tast.For:
			walkStmt(st.Init)
			walkExpr(st.Cond)
			walkStmt(st.Body)
			walkStmt(st.Post)
		case *tast.ForIn:
			walkExpr(st.Iterable)
			bound[st.LoopVar] = true
			walkStmt(st.Body)
		case *tast.TryStatement:
			walkStmt(st.Body)
			for _, c := range st.Catches {
				bound[c.ExceptionVar] = true
				walkExpr(c.Filter)
				walkStmt(c.Body)
			}
			if st.HasFinally {
				walkStmt(st.Finally)
			}
		case *tast.Switch:
			walkExpr(st.Discriminant)
			for _, c := range st.Cases {
				walkExpr(c.Value)
				walkStmt(c.Body)
			}
		case *tast.BlockStatement:
			for _, inner := range st.Body {
				walkStmt(inner)
			}
		}
	}

	for _, s := range body {
		walkStmt(s)
	}

	out := make([]Captured, len(order))
	for i, sym := range order {
		out[i] = Captured{
			SymbolId:     sym,
			SsaVarId:     ids.InvalidSsaVariableId,
			CaptureType:  ByValue,
			CaptureIndex: i,
		}
	}
	return out
}

// walkNestedBody walks a nested lambda's body treating `bound` (which
// already includes the outer lambda's scope plus the inner lambda's own
// parameters) as locally bound, reporting anything else via free.
func walkNestedBody(body []tast.Statement, bound map[ids.SymbolId]bool, free func(ids.SymbolId)) {
	inner := FreeVariables(boundKeys(bound), body)
	for _, c := range inner {
		free(c.SymbolId)
	}
}

func boundKeys(m map[ids.SymbolId]bool) []ids.SymbolId {
	out := make([]ids.SymbolId, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
