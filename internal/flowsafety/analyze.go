package flowsafety

import (
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/tast"
)

type stateMap = map[ids.SymbolId]VariableState

func cloneState(s stateMap) stateMap {
	out := make(stateMap, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func statesEqual(a, b stateMap) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

var unseenDefault = VariableState{Init: Uninitialized, Null: NullUnknown}

func joinPredecessors(block *Block, exitStates map[int]stateMap, entryBase stateMap) stateMap {
	if len(block.Predecessors) == 0 {
		return cloneState(entryBase)
	}
	symbols := make(map[ids.SymbolId]bool)
	for _, pred := range block.Predecessors {
		for sym := range exitStates[pred] {
			symbols[sym] = true
		}
	}
	out := make(stateMap, len(symbols))
	for sym := range symbols {
		acc := unseenDefault
		first := true
		for _, pred := range block.Predecessors {
			v, ok := exitStates[pred][sym]
			if !ok {
				v = unseenDefault
			}
			if first {
				acc = v
				first = false
				continue
			}
			acc = joinState(acc, v)
		}
		out[sym] = acc
	}
	return out
}

// Analyze runs the flow-sensitive safety analysis over one function body
// (spec §4.6): a fixpoint over the initialization/nullability lattices,
// reachability-based and after-exit dead-code detection, and resource
// leak tracking.
func Analyze(fn *tast.Function, classifier ResourceClassifier) AnalysisResults {
	if classifier == nil {
		classifier = NoResources{}
	}
	g := BuildGraph(fn.Body)

	base := make(stateMap, len(fn.Params))
	for _, p := range fn.Params {
		base[p.Symbol] = VariableState{Init: Initialized, Null: NullUnknown}
	}

	entryStates := make(map[int]stateMap, len(g.Blocks))
	exitStates := make(map[int]stateMap, len(g.Blocks))
	declared := make(map[ids.SymbolId]bool)
	used := make(map[ids.SymbolId]bool)
	resources := make(map[ids.SymbolId]*ResourceRecord)

	changed := true
	for changed {
		changed = false
		for _, block := range g.Blocks {
			in := joinPredecessors(block, exitStates, base)
			if !statesEqual(in, entryStates[block.Id]) {
				entryStates[block.Id] = in
				changed = true
			}
			out := transferBlock(in, block, classifier, resources, false, nil, declared, used)
			if !statesEqual(out, exitStates[block.Id]) {
				exitStates[block.Id] = out
				changed = true
			}
		}
	}

	var results AnalysisResults
	declared = make(map[ids.SymbolId]bool)
	used = make(map[ids.SymbolId]bool)
	resources = make(map[ids.SymbolId]*ResourceRecord)

	for _, block := range g.Blocks {
		if !block.Reachable {
			for _, stmt := range block.Statements {
				results.DeadCode = append(results.DeadCode, Finding{Location: stmt.Loc(), Message: "unreachable code"})
			}
			continue
		}
		transferBlock(entryStates[block.Id], block, classifier, resources, true, &results, declared, used)
	}

	for _, stmt := range g.DeadAfterExit {
		results.DeadCode = append(results.DeadCode, Finding{Location: stmt.Loc(), Message: "unreachable code after return/throw/break/continue"})
	}
	for sym, rec := range resources {
		if !rec.IsDisposed {
			results.ResourceLeaks = append(results.ResourceLeaks, Finding{
				Location: rec.AcquisitionLocation, Symbol: sym, Message: "resource may not be disposed",
			})
		}
	}
	for sym := range declared {
		if !used[sym] {
			results.DeadCode = append(results.DeadCode, Finding{Symbol: sym, Message: "declared but unused variable"})
		}
	}
	return results
}

// transferBlock applies block's statements to entry, returning the
// resulting exit state. When record is true, use/dead-code/resource
// findings are accumulated into out and declared/used.
func transferBlock(entry stateMap, block *Block, classifier ResourceClassifier, resources map[ids.SymbolId]*ResourceRecord, record bool, out *AnalysisResults, declared, used map[ids.SymbolId]bool) stateMap {
	state := cloneState(entry)
	for _, stmt := range block.Statements {
		applyStmt(stmt, state, classifier, resources, record, out, declared, used)
	}
	return state
}

func applyStmt(stmt tast.Statement, state stateMap, classifier ResourceClassifier, resources map[ids.SymbolId]*ResourceRecord, record bool, out *AnalysisResults, declared, used map[ids.SymbolId]bool) {
	switch s := stmt.(type) {
	case *tast.VarDeclaration:
		if record {
			declared[s.Symbol] = true
		}
		if s.Init != nil {
			checkExprUses(s.Init, state, record, out, used)
			if record {
				trackResource(s.Symbol, s.Init, classifier, resources)
			}
			state[s.Symbol] = VariableState{Init: Initialized, Null: nullStateOf(s.Init)}
		} else {
			state[s.Symbol] = VariableState{Init: Uninitialized, Null: NullUnknown}
		}

	case *tast.Assignment:
		checkExprUses(s.Value, state, record, out, used)
		switch s.Target {
		case tast.AssignVariable:
			if record {
				trackResource(s.Symbol, s.Value, classifier, resources)
			}
			state[s.Symbol] = VariableState{Init: Initialized, Null: nullStateOf(s.Value)}
		case tast.AssignField:
			checkExprUses(s.FieldObject, state, record, out, used)
		case tast.AssignArrayElement:
			checkExprUses(s.ArrayObject, state, record, out, used)
			checkExprUses(s.ArrayIndex, state, record, out, used)
		}

	case *tast.ExpressionStatement:
		checkExprUses(s.Expr, state, record, out, used)
		if record {
			if call, ok := s.Expr.(*tast.Call); ok && call.Receiver != nil && classifier.IsDisposeMethod(call.Callee) {
				if recv, ok := call.Receiver.(*tast.Variable); ok {
					if rec, ok := resources[recv.Symbol]; ok {
						rec.IsDisposed = true
					}
				}
			}
		}

	case *tast.Return:
		if s.Value != nil {
			checkExprUses(s.Value, state, record, out, used)
		}

	case *tast.Throw:
		checkExprUses(s.Value, state, record, out, used)

	case *tast.If:
		checkExprUses(s.Cond, state, record, out, used)
		if record {
			if lit, ok := s.Cond.(*tast.Literal); ok && lit.Value.Kind == tast.LitBool {
				out.DeadCode = append(out.DeadCode, Finding{Location: s.Location, Message: "condition is always the same value"})
			}
		}

	case *tast.While:
		checkExprUses(s.Cond, state, record, out, used)
		if record {
			if lit, ok := s.Cond.(*tast.Literal); ok && lit.Value.Kind == tast.LitBool {
				out.DeadCode = append(out.DeadCode, Finding{Location: s.Location, Message: "condition is always the same value"})
			}
		}

	case *tast.For:
		if s.Cond != nil {
			checkExprUses(s.Cond, state, record, out, used)
		}

	case *tast.ForIn:
		checkExprUses(s.Iterable, state, record, out, used)
		state[s.LoopVar] = VariableState{Init: Initialized, Null: NotNull}

	case *tast.Switch:
		checkExprUses(s.Discriminant, state, record, out, used)
	}
}

// checkExprUses recursively walks an expression tree; every *Variable it
// encounters is a use, checked against the current lattice state (spec
// §4.6: "On every Variable, FieldAccess.object, ArrayAccess.array,
// MethodCall.receiver" — all four reduce to "a Variable node occurring in
// this position", which recursion into every operand already covers).
func checkExprUses(e tast.Expression, state stateMap, record bool, out *AnalysisResults, used map[ids.SymbolId]bool) {
	if e == nil {
		return
	}
	switch ex := e.(type) {
	case *tast.Variable:
		if record {
			used[ex.Symbol] = true
		}
		checkVarState(ex.Symbol, state, ex.Location, record, out)
	case *tast.FieldAccess:
		checkExprUses(ex.Object, state, record, out, used)
	case *tast.ArrayAccess:
		checkExprUses(ex.Array, state, record, out, used)
		checkExprUses(ex.Index, state, record, out, used)
	case *tast.Call:
		checkExprUses(ex.Receiver, state, record, out, used)
		for _, a := range ex.Args {
			checkExprUses(a, state, record, out, used)
		}
	case *tast.BinaryOp:
		checkExprUses(ex.Left, state, record, out, used)
		checkExprUses(ex.Right, state, record, out, used)
	case *tast.UnaryOp:
		checkExprUses(ex.Operand, state, record, out, used)
	case *tast.Cast:
		checkExprUses(ex.Operand, state, record, out, used)
	case *tast.New:
		for _, a := range ex.Args {
			checkExprUses(a, state, record, out, used)
		}
	case *tast.Conditional:
		checkExprUses(ex.Cond, state, record, out, used)
		checkExprUses(ex.Then, state, record, out, used)
		checkExprUses(ex.Else, state, record, out, used)
	case *tast.ArrayLiteral:
		for _, el := range ex.Elements {
			checkExprUses(el, state, record, out, used)
		}
	case *tast.MapLiteral:
		for _, entry := range ex.Entries {
			checkExprUses(entry.Key, state, record, out, used)
			checkExprUses(entry.Value, state, record, out, used)
		}
	case *tast.ObjectLiteral:
		for _, f := range ex.Fields {
			checkExprUses(f.Value, state, record, out, used)
		}
	case *tast.StringInterpolation:
		for _, p := range ex.Parts {
			checkExprUses(p, state, record, out, used)
		}
	case *tast.Macro:
		checkExprUses(ex.Name, state, record, out, used)
		// *FunctionLiteral: a nested closure body is its own analysis unit
		// and is not walked here.
	}
}

func checkVarState(sym ids.SymbolId, state stateMap, loc tast.SourceLocation, record bool, out *AnalysisResults) {
	if !record {
		return
	}
	st := state[sym]
	if st.Init == Uninitialized || st.Init == MaybeInitialized {
		out.UninitializedUses = append(out.UninitializedUses, Finding{
			Location: loc, Symbol: sym, Message: "use of possibly uninitialized variable",
		})
	}
	if st.Null == Null || st.Null == MaybeNull {
		out.NullDereferences = append(out.NullDereferences, Finding{
			Location: loc, Symbol: sym, Message: "possible null dereference",
		})
	}
}

func nullStateOf(e tast.Expression) NullState {
	if _, ok := e.(*tast.Null); ok {
		return Null
	}
	return NotNull
}

func trackResource(sym ids.SymbolId, rhs tast.Expression, classifier ResourceClassifier, resources map[ids.SymbolId]*ResourceRecord) {
	switch rhs := rhs.(type) {
	case *tast.New:
		if rt, ok := classifier.AcquiresResource(rhs.Class); ok {
			resources[sym] = &ResourceRecord{AcquisitionLocation: rhs.Location, ResourceType: rt}
		}
	case *tast.Call:
		if rt, ok := classifier.AcquiresResource(rhs.Callee); ok {
			resources[sym] = &ResourceRecord{AcquisitionLocation: rhs.Location, ResourceType: rt}
		}
	}
}
