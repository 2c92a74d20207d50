package ssa

import (
	"fmt"

	"github.com/rayzor-lang/rayzor/internal/cfg"
	"github.com/rayzor-lang/rayzor/internal/closure"
	"github.com/rayzor-lang/rayzor/internal/dominance"
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/phiunify"
	"github.com/rayzor-lang/rayzor/internal/stmtmap"
	"github.com/rayzor-lang/rayzor/internal/symtab"
	"github.com/rayzor-lang/rayzor/internal/tast"
	"github.com/rayzor-lang/rayzor/internal/trace"
	"github.com/rayzor-lang/rayzor/internal/typetab"
)

// BuildError reports a failure building a function's DataFlowGraph; Reason
// carries the stmtmap navigation failure's message when that is the cause
// (spec §4.5's failure modes).
type BuildError struct {
	Function ids.SymbolId
	Reason   string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build data flow graph for function %d: %s", e.Function.Raw(), e.Reason)
}

type phiKey struct {
	block ids.BlockId
	sym   ids.SymbolId
}

// builder holds the mutable state of one function's SSA construction
// pass. A fresh builder is used per function.
type builder struct {
	fn      *tast.Function
	g       *cfg.Graph
	dom     *dominance.Tree
	mapping *stmtmap.Mapping
	types   *typetab.Table
	symbols *symtab.Table

	graph     *Graph
	nodeAlloc ids.Allocator[ids.DataFlowNodeId]
	ssaAlloc  ids.Allocator[ids.SsaVariableId]

	stacks    map[ids.SymbolId][]ids.SsaVariableId
	ssaIndex  map[ids.SymbolId]int
	exitState map[ids.BlockId]map[ids.SymbolId]ids.SsaVariableId

	phiPlaced  map[phiKey]ids.DataFlowNodeId
	nextClosed int

	blockConditions map[ids.BlockId]ids.DataFlowNodeId

	err error
}

// Build runs the SSA construction pass for one function (spec §4.5): it
// seeds parameters, places phi functions via the iterated dominance
// frontier, renames variables in a dominator-tree walk, fills phi
// operands from recorded block-exit state, and unifies phi value types.
func Build(fn *tast.Function, g *cfg.Graph, dom *dominance.Tree, mapping *stmtmap.Mapping, types *typetab.Table, symbols *symtab.Table) (*Graph, error) {
	b := &builder{
		fn:              fn,
		g:               g,
		dom:             dom,
		mapping:         mapping,
		types:           types,
		symbols:         symbols,
		graph:           newGraph(),
		stacks:          make(map[ids.SymbolId][]ids.SsaVariableId),
		ssaIndex:        make(map[ids.SymbolId]int),
		exitState:       make(map[ids.BlockId]map[ids.SymbolId]ids.SsaVariableId),
		phiPlaced:       make(map[phiKey]ids.DataFlowNodeId),
		blockConditions: make(map[ids.BlockId]ids.DataFlowNodeId),
	}

	b.seedParameters()
	if err := b.placePhis(); err != nil {
		return nil, err
	}
	b.renameBlock(g.Entry)
	if b.err != nil {
		return nil, b.err
	}
	b.fillPhiOperands()
	b.unifyPhiTypes()

	b.graph.Metadata.IsSsaForm = true
	b.graph.Metadata.ConstructionStats = ConstructionStats{
		NodesCreated:          b.nodeAlloc.Len(),
		PhiNodesInserted:      len(b.phiPlaced),
		SsaVariablesAllocated: b.ssaAlloc.Len(),
	}
	stats := b.graph.Metadata.ConstructionStats
	trace.Verbosef("ssa: function %d: %d nodes, %d phis, %d ssa variables",
		fn.Symbol.Raw(), stats.NodesCreated, stats.PhiNodesInserted, stats.SsaVariablesAllocated)
	return b.graph, nil
}

// ---- node/variable allocation ----

func (b *builder) newNode(block ids.BlockId, loc tast.SourceLocation) *Node {
	n := &Node{Id: b.nodeAlloc.Next(), BasicBlock: block, Location: loc, Defines: ids.InvalidSsaVariableId}
	b.graph.Nodes[n.Id] = n
	return n
}

func (b *builder) allocSsaVar(sym ids.SymbolId, typ ids.TypeId, def ids.DataFlowNodeId) ids.SsaVariableId {
	idx := b.ssaIndex[sym]
	b.ssaIndex[sym] = idx + 1
	v := b.ssaAlloc.Next()
	b.graph.SsaVariables[v] = &SsaVariable{OriginalSymbol: sym, SsaIndex: idx, VarType: typ, Definition: def}
	return v
}

func (b *builder) push(sym ids.SymbolId, v ids.SsaVariableId) {
	b.stacks[sym] = append(b.stacks[sym], v)
}

func (b *builder) pop(sym ids.SymbolId) {
	s := b.stacks[sym]
	b.stacks[sym] = s[:len(s)-1]
}

func (b *builder) top(sym ids.SymbolId) (ids.SsaVariableId, bool) {
	s := b.stacks[sym]
	if len(s) == 0 {
		return ids.InvalidSsaVariableId, false
	}
	return s[len(s)-1], true
}

// currentOrPlaceholder resolves a variable read. If the variable has
// never been defined on this path (the "forward reference of locals"
// edge case of spec §4.5), it synthesizes a default-value constant at
// the use site and pushes it, so later reads on the same path reuse it.
func (b *builder) currentOrPlaceholder(sym ids.SymbolId, block ids.BlockId, loc tast.SourceLocation) ids.SsaVariableId {
	if v, ok := b.top(sym); ok {
		return v
	}
	symInfo := b.symbols.Get(sym)
	n := b.newNode(block, loc)
	n.Kind = KindConstant
	n.ValueType = symInfo.TypeId
	v := b.allocSsaVar(sym, symInfo.TypeId, n.Id)
	n.Defines = v
	b.push(sym, v)
	return v
}

// ---- phase 1: parameters ----

func (b *builder) seedParameters() {
	for i, p := range b.fn.Params {
		n := b.newNode(b.g.Entry, tast.SourceLocation{})
		n.Kind = KindParameter
		n.ParamIdx = i
		n.ParamSymbol = p.Symbol
		n.ValueType = p.Type
		v := b.allocSsaVar(p.Symbol, p.Type, n.Id)
		n.Defines = v
		b.push(p.Symbol, v)
	}
}

// ---- phase 2: phi placement ----

// placePhis implements the iterated dominance frontier worklist (spec
// §4.5 / §4.1): every variable's definition blocks seed a worklist; a
// phi is placed once at each block in the growing dominance frontier.
func (b *builder) placePhis() error {
	defBlocks, err := b.findVariableDefinitionBlocks()
	if err != nil {
		return err
	}

	for sym, blocks := range defBlocks {
		placed := make(map[ids.BlockId]bool)
		worklist := append([]ids.BlockId(nil), blocks...)
		for len(worklist) > 0 {
			blk := worklist[0]
			worklist = worklist[1:]
			for _, fb := range b.dom.DominanceFrontier(blk) {
				if placed[fb] {
					continue
				}
				placed[fb] = true
				n := b.newNode(fb, tast.SourceLocation{})
				n.Kind = KindPhi
				n.ValueType = ids.InvalidTypeId
				b.phiPlaced[phiKey{fb, sym}] = n.Id
				worklist = append(worklist, fb)
			}
		}
	}
	return nil
}

// findVariableDefinitionBlocks scans every block's statements (via the
// TAST<->CFG mapping) for VarDeclaration/Assignment/ForIn occurrences,
// collecting the set of blocks that define each variable.
func (b *builder) findVariableDefinitionBlocks() (map[ids.SymbolId][]ids.BlockId, error) {
	out := make(map[ids.SymbolId][]ids.BlockId)
	add := func(sym ids.SymbolId, block ids.BlockId) {
		for _, existing := range out[sym] {
			if existing == block {
				return
			}
		}
		out[sym] = append(out[sym], block)
	}

	for _, block := range b.g.Order() {
		for _, loc := range b.mapping.GetStatementsInBlock(block) {
			stmt, err := b.mapping.GetStatement(b.fn.Body, loc)
			if err != nil {
				return nil, &BuildError{Function: b.fn.Symbol, Reason: err.Error()}
			}
			switch s := stmt.(type) {
			case *tast.VarDeclaration:
				add(s.Symbol, block)
			case *tast.Assignment:
				if s.Target == tast.AssignVariable {
					add(s.Symbol, block)
				}
			case *tast.ForIn:
				add(s.LoopVar, block)
			}
		}
	}
	return out, nil
}

// ---- phase 3: renaming ----

// renameBlock walks the dominator tree, per spec §4.5: push fresh SSA
// definitions for phis placed here, build this block's own statements,
// snapshot the live variable -> ssa-var map as this block's exit state,
// recurse into dominator-tree children, then restore the stacks exactly
// as far as this frame pushed them.
func (b *builder) renameBlock(block ids.BlockId) {
	if b.err != nil {
		return
	}
	var pushed []ids.SymbolId
	for key, nodeId := range b.phiPlaced {
		if key.block != block {
			continue
		}
		sym := key.sym
		symInfo := b.symbols.Get(sym)
		v := b.allocSsaVar(sym, symInfo.TypeId, nodeId)
		b.graph.Nodes[nodeId].Defines = v
		b.push(sym, v)
		pushed = append(pushed, sym)
	}

	for _, loc := range b.mapping.GetStatementsInBlock(block) {
		stmt, err := b.mapping.GetStatement(b.fn.Body, loc)
		if err != nil {
			b.err = &BuildError{Function: b.fn.Symbol, Reason: err.Error()}
			return
		}
		more := b.buildStatement(stmt, block)
		pushed = append(pushed, more...)
		if b.err != nil {
			return
		}
	}

	snapshot := make(map[ids.SymbolId]ids.SsaVariableId)
	for sym := range b.stacks {
		if v, ok := b.top(sym); ok {
			snapshot[sym] = v
		}
	}
	b.exitState[block] = snapshot

	for _, child := range b.dom.Children(block) {
		b.renameBlock(child)
		if b.err != nil {
			return
		}
	}

	for i := len(pushed) - 1; i >= 0; i-- {
		b.pop(pushed[i])
	}
}

// ---- phase 4: phi operand filling ----

// fillPhiOperands implements spec §4.5's phase 4: every phi's incoming
// list is filled generically from the recorded block-exit state of each
// CFG predecessor. A predecessor with no recorded definition for the
// variable (a path that never reaches a definition) gets a synthesized
// placeholder, shared across repeated gaps on the same path.
func (b *builder) fillPhiOperands() {
	for key, nodeId := range b.phiPlaced {
		n := b.graph.Nodes[nodeId]
		for _, pred := range b.g.Predecessors(key.block) {
			v, ok := b.exitState[pred][key.sym]
			if !ok {
				v = b.placeholderAt(pred, key.sym)
			}
			def := b.graph.SsaVariables[v].Definition
			n.Incoming = append(n.Incoming, PhiIncoming{Block: pred, Node: def})
		}
	}
}

func (b *builder) placeholderAt(block ids.BlockId, sym ids.SymbolId) ids.SsaVariableId {
	if state, ok := b.exitState[block]; ok {
		if v, ok := state[sym]; ok {
			return v
		}
	}
	symInfo := b.symbols.Get(sym)
	n := b.newNode(block, tast.SourceLocation{})
	n.Kind = KindConstant
	n.ValueType = symInfo.TypeId
	v := b.allocSsaVar(sym, symInfo.TypeId, n.Id)
	n.Defines = v
	if b.exitState[block] == nil {
		b.exitState[block] = make(map[ids.SymbolId]ids.SsaVariableId)
	}
	b.exitState[block][sym] = v
	return v
}

// ---- phase 5: phi type unification ----

func (b *builder) unifyPhiTypes() {
	for _, nodeId := range b.phiPlaced {
		n := b.graph.Nodes[nodeId]
		incoming := make([]phiunify.Incoming, len(n.Incoming))
		for i, in := range n.Incoming {
			incoming[i] = phiunify.Incoming{Block: in.Block, Type: b.graph.Nodes[in.Node].ValueType}
		}
		n.ValueType = phiunify.Unify(b.types, incoming)
	}
}

// ---- statement/expression building ----

// buildStatement builds the DFG nodes for one statement attributed to
// block, returning the symbols (if any) it pushed a fresh SSA definition
// for, so renameBlock can restore the stacks correctly. Nested bodies of
// compound statements (If/While/For/ForIn/Try/Switch branches) are never
// recursed into here: each is separately addressed by its own block via
// the TAST<->CFG mapping, and is visited when the per-block walk reaches
// that block.
func (b *builder) buildStatement(stmt tast.Statement, block ids.BlockId) []ids.SymbolId {
	switch s := stmt.(type) {
	case *tast.VarDeclaration:
		var initNode ids.DataFlowNodeId
		valueType := b.symbols.Get(s.Symbol).TypeId
		if s.Init != nil {
			initNode = b.buildExpr(s.Init, block)
			if b.err != nil {
				return nil
			}
			valueType = b.graph.Nodes[initNode].ValueType
		}
		n := b.newNode(block, s.Location)
		n.Kind = KindVariable
		n.ValueType = valueType
		n.Operand = initNode
		v := b.allocSsaVar(s.Symbol, valueType, n.Id)
		n.SsaVar = v
		n.Defines = v
		b.push(s.Symbol, v)
		return []ids.SymbolId{s.Symbol}

	case *tast.Assignment:
		valNode := b.buildExpr(s.Value, block)
		if b.err != nil {
			return nil
		}
		switch s.Target {
		case tast.AssignVariable:
			n := b.newNode(block, s.Location)
			n.Kind = KindVariable
			n.ValueType = b.graph.Nodes[valNode].ValueType
			n.Operand = valNode
			v := b.allocSsaVar(s.Symbol, n.ValueType, n.Id)
			n.SsaVar = v
			n.Defines = v
			b.push(s.Symbol, v)
			return []ids.SymbolId{s.Symbol}
		case tast.AssignField:
			objNode := b.buildExpr(s.FieldObject, block)
			n := b.newNode(block, s.Location)
			n.Kind = KindStore
			n.Object = objNode
			n.Field = s.Symbol
			n.StoreValue = valNode
			n.HasSideEffects = true
		case tast.AssignArrayElement:
			arrNode := b.buildExpr(s.ArrayObject, block)
			idxNode := b.buildExpr(s.ArrayIndex, block)
			n := b.newNode(block, s.Location)
			n.Kind = KindStore
			n.Array = arrNode
			n.Index = idxNode
			n.StoreValue = valNode
			n.HasSideEffects = true
		}
		return nil

	case *tast.ExpressionStatement:
		b.buildExpr(s.Expr, block)
		return nil

	case *tast.Return:
		n := b.newNode(block, s.Location)
		n.Kind = KindReturn
		n.ReturnValue = ids.InvalidDataFlowNodeId
		if s.Value != nil {
			n.ReturnValue = b.buildExpr(s.Value, block)
		}
		n.HasSideEffects = true
		return nil

	case *tast.Throw:
		valNode := b.buildExpr(s.Value, block)
		n := b.newNode(block, s.Location)
		n.Kind = KindThrow
		n.Operand = valNode
		n.HasSideEffects = true
		return nil

	case *tast.If:
		cond := b.buildExpr(s.Cond, block)
		b.blockConditions[block] = cond
		return nil

	case *tast.While:
		cond := b.buildExpr(s.Cond, block)
		b.blockConditions[block] = cond
		return nil

	case *tast.For:
		var pushed []ids.SymbolId
		if s.Init != nil {
			pushed = append(pushed, b.buildStatement(s.Init, block)...)
		}
		if s.Cond != nil {
			cond := b.buildExpr(s.Cond, block)
			b.blockConditions[block] = cond
		}
		// Post runs once per iteration on the loop latch: the
		// dominator-tree predecessor of this header reached only
		// through a back edge.
		for _, pred := range b.g.Predecessors(block) {
			if b.dom.Dominates(block, pred) && s.Post != nil {
				b.buildStatement(s.Post, pred)
			}
		}
		return pushed

	case *tast.ForIn:
		return b.buildForIn(s, block)

	case *tast.TryStatement, *tast.Switch, *tast.BlockStatement, *tast.Break, *tast.Continue:
		// These either have no own value (Break/Continue) or their
		// sub-parts are each addressed by their own block via the
		// mapping; nothing to build at this statement's own location.
		return nil

	default:
		return nil
	}
}

// buildForIn implements spec §4.5's for-in handling: an index phi seeded
// with a zero entry value, an array-element read bound to the loop
// variable, and an index+1 contribution queued on every back edge into
// this header.
func (b *builder) buildForIn(s *tast.ForIn, block ids.BlockId) []ids.SymbolId {
	iterable := b.buildExpr(s.Iterable, block)
	if b.err != nil {
		return nil
	}

	indexType := b.types.Int(32, true)
	zero := b.newNode(block, s.Location)
	zero.Kind = KindConstant
	zero.ValueType = indexType
	zero.Value = ConstantValue{Kind: tast.LitInt, Int: 0}

	phi := b.newNode(block, s.Location)
	phi.Kind = KindPhi
	indexVar := b.allocSsaVar(ids.InvalidSymbolId, ids.InvalidTypeId, phi.Id)
	phi.Defines = indexVar
	phi.ValueType = ids.InvalidTypeId

	access := b.newNode(block, s.Location)
	access.Kind = KindArrayAccess
	access.Array = iterable
	access.Index = phi.Id
	access.ValueType = b.symbols.Get(s.LoopVar).TypeId

	bind := b.newNode(block, s.Location)
	bind.Kind = KindVariable
	bind.ValueType = access.ValueType
	bind.Operand = access.Id
	loopSsa := b.allocSsaVar(s.LoopVar, access.ValueType, bind.Id)
	bind.SsaVar = loopSsa
	bind.Defines = loopSsa
	b.push(s.LoopVar, loopSsa)

	incr := b.newNode(block, s.Location)
	incr.Kind = KindBinaryOp
	incr.Op = tast.OpAdd
	incr.Lhs = phi.Id
	incr.ValueType = indexType
	one := b.newNode(block, s.Location)
	one.Kind = KindConstant
	one.ValueType = indexType
	one.Value = ConstantValue{Kind: tast.LitInt, Int: 1}
	incr.Rhs = one.Id

	for _, pred := range b.g.Predecessors(block) {
		if b.dom.Dominates(block, pred) {
			phi.Incoming = append(phi.Incoming, PhiIncoming{Block: pred, Node: incr.Id})
		} else {
			phi.Incoming = append(phi.Incoming, PhiIncoming{Block: pred, Node: zero.Id})
		}
	}
	phi.ValueType = zero.ValueType

	return []ids.SymbolId{s.LoopVar}
}

func (b *builder) buildExpr(expr tast.Expression, block ids.BlockId) ids.DataFlowNodeId {
	if b.err != nil || expr == nil {
		return ids.InvalidDataFlowNodeId
	}
	switch e := expr.(type) {
	case *tast.Literal:
		n := b.newNode(block, e.Location)
		n.Kind = KindConstant
		n.ValueType = e.TypeId()
		n.Value = e.Value
		return n.Id

	case *tast.Variable:
		v := b.currentOrPlaceholder(e.Symbol, block, e.Location)
		n := b.newNode(block, e.Location)
		n.Kind = KindVariable
		n.SsaVar = v
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.FieldAccess:
		obj := b.buildExpr(e.Object, block)
		n := b.newNode(block, e.Location)
		n.Kind = KindFieldAccess
		n.Object = obj
		n.Field = e.Field
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.StaticFieldAccess:
		n := b.newNode(block, e.Location)
		n.Kind = KindStaticFieldAccess
		n.Class = e.DeclaringClass
		n.Field = e.Field
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.ArrayAccess:
		arr := b.buildExpr(e.Array, block)
		idx := b.buildExpr(e.Index, block)
		n := b.newNode(block, e.Location)
		n.Kind = KindArrayAccess
		n.Array = arr
		n.Index = idx
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.Call:
		var recv ids.DataFlowNodeId = ids.InvalidDataFlowNodeId
		if e.Receiver != nil {
			recv = b.buildExpr(e.Receiver, block)
		}
		args := make([]ids.DataFlowNodeId, len(e.Args))
		for i, a := range e.Args {
			args[i] = b.buildExpr(a, block)
		}
		n := b.newNode(block, e.Location)
		n.Kind = KindCall
		n.Callee = e.Callee
		n.Receiver = recv
		n.Args = args
		n.CallKind = e.Kind
		n.ValueType = e.TypeId()
		n.HasSideEffects = true
		return n.Id

	case *tast.BinaryOp:
		lhs := b.buildExpr(e.Left, block)
		rhs := b.buildExpr(e.Right, block)
		if e.HasOperatorMethod {
			n := b.newNode(block, e.Location)
			n.Kind = KindCall
			n.Callee = e.OperatorMethod
			n.Receiver = lhs
			n.Args = []ids.DataFlowNodeId{rhs}
			n.CallKind = tast.CallVirtual
			n.ValueType = e.TypeId()
			n.HasSideEffects = true
			return n.Id
		}
		n := b.newNode(block, e.Location)
		n.Kind = KindBinaryOp
		n.Op = e.Op
		n.Lhs = lhs
		n.Rhs = rhs
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.UnaryOp:
		operand := b.buildExpr(e.Operand, block)
		n := b.newNode(block, e.Location)
		n.Kind = KindUnaryOp
		n.UnaryOpOp = e.Op
		n.Operand = operand
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.Cast:
		operand := b.buildExpr(e.Operand, block)
		n := b.newNode(block, e.Location)
		n.Kind = KindCast
		n.Operand = operand
		n.CastKind = e.Kind
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.New:
		args := make([]ids.DataFlowNodeId, len(e.Args))
		for i, a := range e.Args {
			args[i] = b.buildExpr(a, block)
		}
		n := b.newNode(block, e.Location)
		n.Kind = KindAllocation
		n.AllocType = e.TypeId()
		n.AllocKind = AllocHeap
		n.Args = args
		n.Callee = e.Class
		n.ValueType = e.TypeId()
		n.HasSideEffects = true
		return n.Id

	case *tast.Conditional:
		cond := b.buildExpr(e.Cond, block)
		then := b.buildExpr(e.Then, block)
		els := b.buildExpr(e.Else, block)
		incoming := []PhiIncoming{{Block: block, Node: then}, {Block: block, Node: els}}
		n := b.newNode(block, e.Location)
		n.Kind = KindPhi
		n.Incoming = incoming
		n.Operand = cond
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.ArrayLiteral:
		elems := make([]ids.DataFlowNodeId, len(e.Elements))
		for i, el := range e.Elements {
			elems[i] = b.buildExpr(el, block)
		}
		n := b.newNode(block, e.Location)
		n.Kind = KindAllocation
		n.AllocKind = AllocHeap
		n.Args = elems
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.MapLiteral:
		args := make([]ids.DataFlowNodeId, 0, len(e.Entries)*2)
		for _, entry := range e.Entries {
			args = append(args, b.buildExpr(entry.Key, block), b.buildExpr(entry.Value, block))
		}
		n := b.newNode(block, e.Location)
		n.Kind = KindAllocation
		n.AllocKind = AllocHeap
		n.Args = args
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.ObjectLiteral:
		args := make([]ids.DataFlowNodeId, len(e.Fields))
		for i, f := range e.Fields {
			args[i] = b.buildExpr(f.Value, block)
		}
		n := b.newNode(block, e.Location)
		n.Kind = KindAllocation
		n.AllocKind = AllocHeap
		n.Callee = e.Class
		n.Args = args
		n.ValueType = e.TypeId()
		n.HasSideEffects = true
		return n.Id

	case *tast.FunctionLiteral:
		captures := closure.FreeVariables(e.Params, e.Body)
		for i := range captures {
			if v, ok := b.top(captures[i].SymbolId); ok {
				captures[i].SsaVarId = v
			}
		}
		n := b.newNode(block, e.Location)
		n.Kind = KindClosure
		n.ClosureId = b.nextClosed
		b.nextClosed++
		n.ValueType = e.TypeId()
		n.HasSideEffects = true
		return n.Id

	case *tast.This, *tast.Super:
		n := b.newNode(block, expr.Loc())
		n.Kind = KindVariable
		n.ValueType = expr.TypeId()
		return n.Id

	case *tast.Null:
		n := b.newNode(block, e.Location)
		n.Kind = KindConstant
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.StringInterpolation:
		parts := make([]ids.DataFlowNodeId, len(e.Parts))
		for i, p := range e.Parts {
			parts[i] = b.buildExpr(p, block)
		}
		n := b.newNode(block, e.Location)
		n.Kind = KindAllocation
		n.AllocKind = AllocHeap
		n.Args = parts
		n.ValueType = e.TypeId()
		return n.Id

	case *tast.Macro:
		return b.buildExpr(e.Name, block)

	default:
		return ids.InvalidDataFlowNodeId
	}
}
