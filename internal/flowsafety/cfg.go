package flowsafety

import "github.com/rayzor-lang/rayzor/internal/tast"

// Block is one block of the analyzer's own statement-granularity graph
// (spec §4.6's duality with the upstream CFG — see package doc).
type Block struct {
	Id           int
	Statements   []tast.Statement
	Successors   []int
	Predecessors []int
	Reachable    bool
}

// Graph is the statement-granularity control-flow graph the analyzer
// builds directly from a function body.
type Graph struct {
	Blocks        []*Block
	Entry         int
	DeadAfterExit []tast.Statement // statements unreachable within their own list, after a terminator
}

func newGraph() *Graph { return &Graph{} }

func (g *Graph) newBlock() int {
	id := len(g.Blocks)
	g.Blocks = append(g.Blocks, &Block{Id: id})
	return id
}

func (g *Graph) edge(from, to int) {
	g.Blocks[from].Successors = append(g.Blocks[from].Successors, to)
	g.Blocks[to].Predecessors = append(g.Blocks[to].Predecessors, from)
}

// BuildGraph walks a function body and produces its statement-granularity
// control-flow graph (mirrors analyze_function's create_statement_info
// walk in the original source).
func BuildGraph(body []tast.Statement) *Graph {
	g := newGraph()
	entry := g.newBlock()
	g.Entry = entry
	bld := &builder{g: g}
	bld.walkList(body, entry)
	g.computeReachability()
	return g
}

type builder struct {
	g               *Graph
	breakTargets    []int
	continueTargets []int
}

func asList(stmt tast.Statement) []tast.Statement {
	if block, ok := stmt.(*tast.BlockStatement); ok {
		return block.Body
	}
	return []tast.Statement{stmt}
}

// walkList builds stmts into the graph starting at block cur, returning
// the block execution continues in and whether that block falls through
// (vs. ending unconditionally in return/throw/break/continue). Any
// statement appearing after an unconditional terminator in the same flat
// list is recorded as dead code rather than built into the graph.
func (b *builder) walkList(stmts []tast.Statement, cur int) (int, bool) {
	fallsThrough := true
	for i, s := range stmts {
		if !fallsThrough {
			b.g.DeadAfterExit = append(b.g.DeadAfterExit, stmts[i:]...)
			break
		}
		cur, fallsThrough = b.walkStmt(s, cur)
	}
	return cur, fallsThrough
}

func (b *builder) walkStmt(s tast.Statement, cur int) (int, bool) {
	b.g.Blocks[cur].Statements = append(b.g.Blocks[cur].Statements, s)

	switch st := s.(type) {
	case *tast.Return, *tast.Throw:
		return cur, false

	case *tast.Break:
		if n := len(b.breakTargets); n > 0 {
			b.g.edge(cur, b.breakTargets[n-1])
		}
		return cur, false

	case *tast.Continue:
		if n := len(b.continueTargets); n > 0 {
			b.g.edge(cur, b.continueTargets[n-1])
		}
		return cur, false

	case *tast.If:
		thenB := b.g.newBlock()
		b.g.edge(cur, thenB)
		thenEnd, thenFalls := b.walkList(asList(st.Then), thenB)

		elseEnd, elseFalls := cur, true
		if st.HasElse {
			elseB := b.g.newBlock()
			b.g.edge(cur, elseB)
			elseEnd, elseFalls = b.walkList(asList(st.Else), elseB)
		}

		merge := b.g.newBlock()
		if thenFalls {
			b.g.edge(thenEnd, merge)
		}
		if st.HasElse {
			if elseFalls {
				b.g.edge(elseEnd, merge)
			}
		} else {
			b.g.edge(cur, merge)
		}
		return merge, thenFalls || elseFalls

	case *tast.While:
		header := b.g.newBlock()
		b.g.edge(cur, header)
		body := b.g.newBlock()
		b.g.edge(header, body)
		after := b.g.newBlock()
		b.g.edge(header, after)

		b.breakTargets = append(b.breakTargets, after)
		b.continueTargets = append(b.continueTargets, header)
		bodyEnd, bodyFalls := b.walkList(asList(st.Body), body)
		if bodyFalls {
			b.g.edge(bodyEnd, header)
		}
		b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
		b.continueTargets = b.continueTargets[:len(b.continueTargets)-1]
		return after, true

	case *tast.For:
		if st.Init != nil {
			cur, _ = b.walkStmt(st.Init, cur)
		}
		header := b.g.newBlock()
		b.g.edge(cur, header)
		body := b.g.newBlock()
		b.g.edge(header, body)
		after := b.g.newBlock()
		b.g.edge(header, after)

		latch := header
		if st.Post != nil {
			latch = b.g.newBlock()
		}
		b.breakTargets = append(b.breakTargets, after)
		b.continueTargets = append(b.continueTargets, latch)
		bodyEnd, bodyFalls := b.walkList(asList(st.Body), body)
		if bodyFalls {
			if st.Post != nil {
				b.g.edge(bodyEnd, latch)
				latchEnd, _ := b.walkStmt(st.Post, latch)
				b.g.edge(latchEnd, header)
			} else {
				b.g.edge(bodyEnd, header)
			}
		}
		b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
		b.continueTargets = b.continueTargets[:len(b.continueTargets)-1]
		return after, true

	case *tast.ForIn:
		header := b.g.newBlock()
		b.g.edge(cur, header)
		body := b.g.newBlock()
		b.g.edge(header, body)
		after := b.g.newBlock()
		b.g.edge(header, after)

		b.breakTargets = append(b.breakTargets, after)
		b.continueTargets = append(b.continueTargets, header)
		bodyEnd, bodyFalls := b.walkList(asList(st.Body), body)
		if bodyFalls {
			b.g.edge(bodyEnd, header)
		}
		b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
		b.continueTargets = b.continueTargets[:len(b.continueTargets)-1]
		return after, true

	case *tast.TryStatement:
		bodyB := b.g.newBlock()
		b.g.edge(cur, bodyB)
		bodyEnd, bodyFalls := b.walkList(asList(st.Body), bodyB)

		merge := b.g.newBlock()
		anyFalls := false
		if bodyFalls {
			b.g.edge(bodyEnd, merge)
			anyFalls = true
		}
		for _, c := range st.Catches {
			catchB := b.g.newBlock()
			b.g.edge(cur, catchB)
			catchEnd, catchFalls := b.walkList(asList(c.Body), catchB)
			if catchFalls {
				b.g.edge(catchEnd, merge)
				anyFalls = true
			}
		}
		if st.HasFinally {
			finallyB := b.g.newBlock()
			b.g.edge(merge, finallyB)
			finallyEnd, finallyFalls := b.walkList(asList(st.Finally), finallyB)
			return finallyEnd, finallyFalls
		}
		return merge, anyFalls

	case *tast.Switch:
		merge := b.g.newBlock()
		anyFalls := false
		b.breakTargets = append(b.breakTargets, merge)
		for _, c := range st.Cases {
			caseB := b.g.newBlock()
			b.g.edge(cur, caseB)
			caseEnd, caseFalls := b.walkList(asList(c.Body), caseB)
			if caseFalls {
				b.g.edge(caseEnd, merge)
				anyFalls = true
			}
		}
		b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
		return merge, anyFalls

	case *tast.BlockStatement:
		return b.walkList(st.Body, cur)

	default: // VarDeclaration, Assignment, ExpressionStatement
		return cur, true
	}
}

// computeReachability runs a BFS from the entry block (spec §4.6:
// "Reachability is computed first by BFS from the entry block").
func (g *Graph) computeReachability() {
	if len(g.Blocks) == 0 {
		return
	}
	queue := []int{g.Entry}
	g.Blocks[g.Entry].Reachable = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, succ := range g.Blocks[cur].Successors {
			if !g.Blocks[succ].Reachable {
				g.Blocks[succ].Reachable = true
				queue = append(queue, succ)
			}
		}
	}
}
