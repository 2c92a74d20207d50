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

// checkStatement implements the statement-shaped half of spec §4.7(7):
// it recurses into every nested statement and routes every contained
// expression through checkExpression.
func (v *Validator) checkStatement(stmt tast.Statement, ctx context) {
	switch s := stmt.(type) {
	case *tast.VarDeclaration:
		if s.Init != nil {
			v.checkExpression(s.Init, ctx)
		}
	case *tast.Assignment:
		switch s.Target {
		case tast.AssignField:
			v.checkExpression(s.FieldObject, ctx)
			v.checkAccess(s.Symbol, false, ctx, s.Loc())
		case tast.AssignArrayElement:
			v.checkExpression(s.ArrayObject, ctx)
			v.checkExpression(s.ArrayIndex, ctx)
		}
		v.checkExpression(s.Value, ctx)
	case *tast.ExpressionStatement:
		v.checkExpression(s.Expr, ctx)
	case *tast.Return:
		if s.Value != nil {
			v.checkExpression(s.Value, ctx)
		}
	case *tast.Throw:
		// spec §4.7(7): throw accepts any type (documented permissive).
		v.checkExpression(s.Value, ctx)
	case *tast.If:
		v.checkBoolCondition(s.Cond, ctx, "if condition")
		v.checkStatement(s.Then, ctx)
		if s.HasElse {
			v.checkStatement(s.Else, ctx)
		}
	case *tast.While:
		v.checkBoolCondition(s.Cond, ctx, "while condition")
		v.checkStatement(s.Body, ctx)
	case *tast.For:
		if s.Init != nil {
			v.checkStatement(s.Init, ctx)
		}
		if s.Cond != nil {
			v.checkBoolCondition(s.Cond, ctx, "for condition")
		}
		if s.Post != nil {
			v.checkStatement(s.Post, ctx)
		}
		v.checkStatement(s.Body, ctx)
	case *tast.ForIn:
		v.checkForInIterable(s.Iterable, ctx)
		v.checkStatement(s.Body, ctx)
	case *tast.TryStatement:
		v.checkStatement(s.Body, ctx)
		for _, c := range s.Catches {
			if !c.ExceptionVar.IsValid() {
				v.report(diag.KindUndefinedSymbol, s.Loc(),
					"catch exception variable is not present in the symbol table", "")
			}
			if c.Filter != nil {
				v.checkBoolCondition(c.Filter, ctx, "catch filter")
			}
			v.checkStatement(c.Body, ctx)
		}
		if s.HasFinally {
			v.checkStatement(s.Finally, ctx)
		}
	case *tast.Switch:
		v.checkSwitch(s, ctx)
	case *tast.BlockStatement:
		for _, inner := range s.Body {
			v.checkStatement(inner, ctx)
		}
	case *tast.Break, *tast.Continue:
		// nothing to check
	}
}

// checkSwitch implements spec §4.7(7)'s switch rule. The TAST models
// Switch only as a statement (no switch-expression variant), so the
// "branch expression types must unify when used as an expression" half
// of the rule has no applicable case here.
func (v *Validator) checkSwitch(s *tast.Switch, ctx context) {
	v.checkExpression(s.Discriminant, ctx)
	for _, c := range s.Cases {
		if !c.IsDefault {
			v.checkExpression(c.Value, ctx)
			if v.types.Compatible(c.Value.TypeId(), s.Discriminant.TypeId()) == typetab.Incompatible &&
				v.types.Compatible(s.Discriminant.TypeId(), c.Value.TypeId()) == typetab.Incompatible {
				v.report(diag.KindTypeMismatch, c.Value.Loc(),
					"case value is incompatible with the switch discriminant", "")
			}
		}
		v.checkStatement(c.Body, ctx)
	}
}

// checkExpression implements spec §4.7(7)-(9) for one expression,
// recursing into operands first so diagnostics surface in traversal
// (definition/statement/expression) order, per spec §5.
func (v *Validator) checkExpression(e tast.Expression, ctx context) {
	switch expr := e.(type) {
	case *tast.Literal, *tast.This, *tast.Super, *tast.Null:
		// leaves, nothing to check
	case *tast.Variable:
		sym := v.symbols.Get(expr.Symbol)
		if ctx.static && sym.Kind == symtab.KindField && !sym.IsStatic {
			v.report(diag.KindInstanceAccessFromStatic, expr.Loc(),
				fmt.Sprintf("%s is an instance field implicitly referenced via 'this' from a static method", v.name(expr.Symbol)),
				"qualify the access with an instance or make the method non-static")
		}
	case *tast.FieldAccess:
		v.checkExpression(expr.Object, ctx)
		v.checkAccess(expr.Field, expr.IsStaticBase, ctx, expr.Loc())
	case *tast.StaticFieldAccess:
		v.checkAccess(expr.Field, true, ctx, expr.Loc())
	case *tast.ArrayAccess:
		v.checkExpression(expr.Array, ctx)
		v.checkExpression(expr.Index, ctx)
		v.checkArrayIndex(expr)
	case *tast.Call:
		for _, a := range expr.Args {
			v.checkExpression(a, ctx)
		}
		if expr.Receiver != nil {
			v.checkExpression(expr.Receiver, ctx)
		}
		if expr.Callee.IsValid() && (expr.Kind == tast.CallVirtual || expr.Kind == tast.CallStatic) {
			v.checkAccess(expr.Callee, expr.Kind == tast.CallStatic, ctx, expr.Loc())
		}
		v.checkOverload(expr)
	case *tast.BinaryOp:
		v.checkExpression(expr.Left, ctx)
		v.checkExpression(expr.Right, ctx)
		v.checkBinaryOp(expr)
	case *tast.UnaryOp:
		v.checkExpression(expr.Operand, ctx)
		v.checkUnaryOp(expr)
	case *tast.Cast:
		v.checkExpression(expr.Operand, ctx)
		v.checkCast(expr)
	case *tast.New:
		for _, a := range expr.Args {
			v.checkExpression(a, ctx)
		}
		v.checkGenericConstraints(expr)
	case *tast.Conditional:
		v.checkBoolCondition(expr.Cond, ctx, "conditional expression")
		v.checkExpression(expr.Then, ctx)
		v.checkExpression(expr.Else, ctx)
		if v.types.Compatible(expr.Then.TypeId(), expr.Else.TypeId()) == typetab.Incompatible &&
			v.types.Compatible(expr.Else.TypeId(), expr.Then.TypeId()) == typetab.Incompatible {
			v.report(diag.KindTypeMismatch, expr.Loc(), "conditional branches do not unify to a common type", "")
		}
	case *tast.ArrayLiteral:
		for _, el := range expr.Elements {
			v.checkExpression(el, ctx)
		}
	case *tast.MapLiteral:
		for _, ent := range expr.Entries {
			v.checkExpression(ent.Key, ctx)
			v.checkExpression(ent.Value, ctx)
		}
	case *tast.ObjectLiteral:
		for _, f := range expr.Fields {
			v.checkExpression(f.Value, ctx)
		}
	case *tast.FunctionLiteral:
		for _, st := range expr.Body {
			v.checkStatement(st, ctx)
		}
	case *tast.StringInterpolation:
		for _, p := range expr.Parts {
			v.checkExpression(p, ctx)
		}
	case *tast.Macro:
		v.checkExpression(expr.Name, ctx)
	}
}

// checkBoolCondition implements the "while/for condition / conditional /
// catch filter: Bool" half of spec §4.7(7).
func (v *Validator) checkBoolCondition(e tast.Expression, ctx context, what string) {
	v.checkExpression(e, ctx)
	if v.types.Get(e.TypeId()).Kind != typetab.KindBool {
		v.report(diag.KindTypeMismatch, e.Loc(), fmt.Sprintf("%s must be Bool", what), "")
	}
}

// checkForInIterable implements spec §4.7(7)'s for-in rule: the iterable
// must be Array, String, a class implementing Iterable, or Dynamic.
func (v *Validator) checkForInIterable(e tast.Expression, ctx context) {
	v.checkExpression(e, ctx)
	t := v.types.Get(e.TypeId())
	ok := false
	switch t.Kind {
	case typetab.KindArray, typetab.KindSlice, typetab.KindString, typetab.KindDynamic:
		ok = true
	case typetab.KindClass:
		ok = v.iterableInterface.IsValid() && v.types.ClassImplements(t.Symbol, v.iterableInterface)
	}
	if !ok {
		v.report(diag.KindTypeMismatch, e.Loc(),
			fmt.Sprintf("%s is not iterable", v.types.String(e.TypeId())), "")
	}
}

// checkArrayIndex implements spec §4.7(7)'s "array index requires Int
// and an indexable receiver (Array, String, Dynamic)" rule.
func (v *Validator) checkArrayIndex(a *tast.ArrayAccess) {
	if v.types.Get(a.Index.TypeId()).Kind != typetab.KindInt {
		v.report(diag.KindTypeMismatch, a.Loc(), "array index must be Int", "")
	}
	arr := v.types.Get(a.Array.TypeId())
	switch arr.Kind {
	case typetab.KindArray, typetab.KindSlice, typetab.KindString, typetab.KindDynamic:
	default:
		v.report(diag.KindTypeMismatch, a.Loc(),
			fmt.Sprintf("%s is not indexable", v.types.String(a.Array.TypeId())), "")
	}
}

// checkBinaryOp implements spec §4.7(7)'s per-operator rules plus the
// §4.7(9) operator-overload lookup on Abstract-typed left operands.
func (v *Validator) checkBinaryOp(b *tast.BinaryOp) {
	lt := v.types.Get(b.Left.TypeId())
	rt := v.types.Get(b.Right.TypeId())

	if method, ok := v.operatorMethodFor(lt, b.Op); ok {
		b.OperatorMethod = method
		b.HasOperatorMethod = true
		return
	}

	switch b.Op {
	case tast.OpSub, tast.OpMul, tast.OpDiv, tast.OpMod:
		if !isNumeric(lt) || !isNumeric(rt) {
			v.report(diag.KindTypeMismatch, b.Loc(), "operator requires both operands to be numeric", "")
		}
	case tast.OpAdd:
		if !((isNumeric(lt) && isNumeric(rt)) || isString(lt) || isString(rt)) {
			v.report(diag.KindTypeMismatch, b.Loc(), "'+' requires both operands numeric, or at least one string", "")
		}
	case tast.OpEq, tast.OpNotEq:
		if v.types.Compatible(b.Left.TypeId(), b.Right.TypeId()) == typetab.Incompatible &&
			v.types.Compatible(b.Right.TypeId(), b.Left.TypeId()) == typetab.Incompatible {
			v.report(diag.KindTypeMismatch, b.Loc(), "operands are not comparable for equality", "")
		}
	case tast.OpLt, tast.OpLte, tast.OpGt, tast.OpGte:
		if !isNumeric(lt) || !isNumeric(rt) {
			v.report(diag.KindTypeMismatch, b.Loc(), "relational operator requires numeric operands", "")
		}
	case tast.OpAnd, tast.OpOr:
		if lt.Kind != typetab.KindBool || rt.Kind != typetab.KindBool {
			v.report(diag.KindTypeMismatch, b.Loc(), "logical operator requires Bool operands", "")
		}
	}
}

// operatorMethodFor implements spec §4.7(9): when the left operand's
// type is Abstract{symbol}, search the abstract's methods for one whose
// operator metadata names an operator variant matching op.
func (v *Validator) operatorMethodFor(lt typetab.Type, op tast.BinaryOperator) (ids.SymbolId, bool) {
	if lt.Kind != typetab.KindAbstract {
		return ids.InvalidSymbolId, false
	}
	want, ok := operatorFor(op)
	if !ok {
		return ids.InvalidSymbolId, false
	}
	abs := v.symbols.Get(lt.Symbol)
	for _, m := range abs.Methods {
		meta := v.symbols.Get(m).OperatorMetadata
		if meta.Op == want && meta.LhsIsA {
			return m, true
		}
	}
	return ids.InvalidSymbolId, false
}

func operatorFor(op tast.BinaryOperator) (symtab.Operator, bool) {
	switch op {
	case tast.OpAdd:
		return symtab.OpAdd, true
	case tast.OpSub:
		return symtab.OpSub, true
	case tast.OpMul:
		return symtab.OpMul, true
	case tast.OpDiv:
		return symtab.OpDiv, true
	case tast.OpMod:
		return symtab.OpMod, true
	case tast.OpEq:
		return symtab.OpEq, true
	default:
		return symtab.OperatorNone, false
	}
}

// checkUnaryOp implements spec §4.7(7)'s "logical negation requires
// Bool; unary minus requires numeric" rule.
func (v *Validator) checkUnaryOp(u *tast.UnaryOp) {
	t := v.types.Get(u.Operand.TypeId())
	switch u.Op {
	case tast.OpNot:
		if t.Kind != typetab.KindBool {
			v.report(diag.KindTypeMismatch, u.Loc(), "logical negation requires a Bool operand", "")
		}
	case tast.OpNeg:
		if !isNumeric(t) {
			v.report(diag.KindTypeMismatch, u.Loc(), "unary minus requires a numeric operand", "")
		}
	}
}

// checkCast implements spec §4.7(7)'s cast matrix: explicit casts follow
// a fixed compatibility matrix, implicit casts require Assignable, and
// unsafe casts bypass checking entirely. Checked casts use the same
// matrix as explicit (the runtime check they insert is an emitter
// concern, not a validation-time one).
func (v *Validator) checkCast(c *tast.Cast) {
	from := c.Operand.TypeId()
	to := c.TypeId()
	switch c.Kind {
	case tast.CastUnsafe:
		return
	case tast.CastImplicit:
		if v.types.Compatible(from, to) == typetab.Incompatible {
			v.report(diag.KindInvalidCast, c.Loc(),
				fmt.Sprintf("cannot implicitly convert %s to %s", v.types.String(from), v.types.String(to)), "")
		}
	case tast.CastExplicit, tast.CastChecked:
		if !v.explicitCastAllowed(from, to) {
			v.report(diag.KindInvalidCast, c.Loc(),
				fmt.Sprintf("no explicit conversion from %s to %s", v.types.String(from), v.types.String(to)), "")
		}
	}
}

func (v *Validator) explicitCastAllowed(from, to ids.TypeId) bool {
	fromTy, toTy := v.types.Get(from), v.types.Get(to)
	if fromTy.Kind == typetab.KindDynamic || toTy.Kind == typetab.KindDynamic {
		return true
	}
	if isNumeric(fromTy) && isNumeric(toTy) {
		return true
	}
	if (isString(fromTy) && isPrimitive(toTy)) || (isPrimitive(fromTy) && isString(toTy)) {
		return true
	}
	if fromTy.Kind == typetab.KindClass && toTy.Kind == typetab.KindClass {
		return true
	}
	if fromTy.Kind == typetab.KindClass && toTy.Kind == typetab.KindInterface {
		return true
	}
	if fromTy.Kind == typetab.KindInterface && toTy.Kind == typetab.KindClass {
		return true
	}
	if fromTy.Kind == typetab.KindOptional || toTy.Kind == typetab.KindOptional {
		inner, other := from, to
		if fromTy.Kind == typetab.KindOptional {
			inner = fromTy.Elem
		}
		if toTy.Kind == typetab.KindOptional {
			other = toTy.Elem
		}
		return inner == other || v.explicitCastAllowed(inner, other)
	}
	return v.types.Compatible(from, to) != typetab.Incompatible
}

func isNumeric(t typetab.Type) bool { return t.Kind == typetab.KindInt || t.Kind == typetab.KindFloat }
func isString(t typetab.Type) bool  { return t.Kind == typetab.KindString }
func isPrimitive(t typetab.Type) bool {
	switch t.Kind {
	case typetab.KindInt, typetab.KindFloat, typetab.KindBool, typetab.KindChar:
		return true
	default:
		return false
	}
}

// checkOverload implements spec §4.7(8): only when the declared-name
// signature rejects the supplied arguments does the validator scan the
// callee's overload_signatures; it reports an error only if none match.
func (v *Validator) checkOverload(call *tast.Call) {
	if !call.Callee.IsValid() {
		return
	}
	sym := v.symbols.Get(call.Callee)
	if sym.Kind != symtab.KindMethod && sym.Kind != symtab.KindFunction {
		return
	}
	fnType := v.types.Get(sym.TypeId)
	if fnType.Kind != typetab.KindFunction {
		return
	}
	if v.argsMatch(fnType.Params, call.Args) {
		return
	}
	for _, alt := range sym.OverloadSignatures {
		if v.argsMatch(alt.Params, call.Args) {
			return
		}
	}
	v.report(diag.KindMethodSignatureMismatch, call.Loc(),
		fmt.Sprintf("no overload of %s matches the supplied argument types", v.name(call.Callee)),
		"check the argument types against the declared overloads")
}

func (v *Validator) argsMatch(params []ids.TypeId, args []tast.Expression) bool {
	if len(params) != len(args) {
		return false
	}
	for i, p := range params {
		// Int->Float widening and Dynamic accepting anything are both
		// already encoded in typetab.Table.Compatible.
		if v.types.Compatible(args[i].TypeId(), p) == typetab.Incompatible {
			return false
		}
	}
	return true
}

// checkGenericConstraints implements spec §4.7(4): every type argument
// of a `new T<A1, …, An>(…)` expression must satisfy the corresponding
// declared constraint.
func (v *Validator) checkGenericConstraints(n *tast.New) {
	cls, ok := v.classes[n.Class]
	if !ok {
		return
	}
	for i, tp := range cls.TypeParams {
		if i >= len(n.TypeArgs) {
			break
		}
		arg := n.TypeArgs[i]
		for _, constraint := range tp.Constraints {
			if !v.satisfiesConstraint(arg, constraint) {
				v.report(diag.KindConstraintViolation, n.Loc(),
					fmt.Sprintf("type argument %s does not satisfy constraint %s required by %s",
						v.types.String(arg), v.types.String(constraint), v.name(n.Class)),
					"use a type argument that satisfies the declared constraint")
			}
		}
	}
}

// satisfiesConstraint implements spec §4.7(4)'s rule: interface
// constraints require implementation; non-interface constraints are
// conservatively rejected unless identical.
func (v *Validator) satisfiesConstraint(arg, constraint ids.TypeId) bool {
	constraintTy := v.types.Get(constraint)
	if constraintTy.Kind == typetab.KindInterface {
		argTy := v.types.Get(arg)
		if argTy.Kind != typetab.KindClass {
			return false
		}
		return v.types.ClassImplements(argTy.Symbol, constraintTy.Symbol)
	}
	return arg == constraint
}

// checkAccess implements spec §4.7(5)'s visibility predicate and
// §4.7(6)'s static/instance discipline for one access to sym.
// viaStaticBase is true when the access expression names a type rather
// than an instance (FieldAccess.IsStaticBase / a CallStatic receiver).
func (v *Validator) checkAccess(sym ids.SymbolId, viaStaticBase bool, ctx context, loc tast.SourceLocation) {
	s := v.symbols.Get(sym)
	switch {
	case viaStaticBase && !s.IsStatic:
		v.report(diag.KindStaticAccessFromInstance, loc,
			fmt.Sprintf("%s is an instance member and cannot be accessed through a type name", v.name(sym)),
			"access it through an instance instead of the type name")
	case !viaStaticBase && s.IsStatic:
		v.report(diag.KindStaticAccessFromInstance, loc,
			fmt.Sprintf("%s is static and cannot be accessed through an instance expression", v.name(sym)),
			fmt.Sprintf("access it as %s.%s", v.name(s.DeclaringClass), v.name(sym)))
	}
	v.checkVisibility(sym, s, ctx, loc)
}

// checkVisibility implements spec §4.7(5) / P4.
func (v *Validator) checkVisibility(sym ids.SymbolId, s symtab.Symbol, ctx context, loc tast.SourceLocation) {
	var allowed bool
	switch s.Visibility {
	case symtab.Public:
		allowed = true
	case symtab.Private:
		allowed = ctx.hasClass && ctx.class == s.DeclaringClass
	case symtab.Protected:
		allowed = ctx.hasClass && (ctx.class == s.DeclaringClass || v.types.IsSubclassOf(ctx.class, s.DeclaringClass))
	case symtab.Internal:
		allowed = ctx.pkg == s.PackageId
	}
	if allowed {
		return
	}
	v.report(diag.KindAccessViolation, loc,
		fmt.Sprintf("%s is not accessible from this context", v.name(sym)),
		accessSuggestion(s.Visibility))
}

func accessSuggestion(vis symtab.Visibility) string {
	switch vis {
	case symtab.Private:
		return "Make the field public or use a getter method"
	case symtab.Protected:
		return "Access this member from the declaring class or a subclass"
	case symtab.Internal:
		return "Access this member from within the same package"
	default:
		return ""
	}
}

// checkFlow implements spec §4.7(10): it runs C7 over fn's body and
// converts every finding into a diagnostic under a synthetic Name key so
// the sink can deduplicate repeated findings for the same location.
func (v *Validator) checkFlow(fn *tast.Function) {
	results := flowsafety.Analyze(fn, v.classifier)
	for _, f := range results.UninitializedUses {
		v.reportFlow(diag.KindUninitializedUse, "uninit", f)
	}
	for _, f := range results.NullDereferences {
		v.reportFlow(diag.KindNullDereference, "null", f)
	}
	for _, f := range results.ResourceLeaks {
		v.reportFlow(diag.KindResourceLeak, "leak", f)
	}
	for _, f := range results.DeadCode {
		v.reportFlow(diag.KindDeadCode, "dead", f)
	}
}

func (v *Validator) reportFlow(kind diag.Kind, prefix string, f flowsafety.Finding) {
	v.sink.Report(diag.Record{
		Kind:     kind,
		Location: f.Location,
		Context:  f.Message,
		Name: fmt.Sprintf("%s:%d:%d:%d:%d", prefix, f.Location.FileId, f.Location.Line, f.Location.Column, f.Symbol.Raw()),
	})
}
