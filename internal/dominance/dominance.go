// Package dominance implements component C2: from a ControlFlowGraph,
// compute immediate dominators, dominance-tree children, reverse
// postorder, and per-block dominance frontiers, using the iterative
// Cooper–Harvey–Kennedy algorithm followed by a frontier pass (spec
// §4.1).
package dominance

import (
	"github.com/rayzor-lang/rayzor/internal/cfg"
	"github.com/rayzor-lang/rayzor/internal/ids"
)

// Tree is the result of dominance computation over one CFG.
type Tree struct {
	idom     map[ids.BlockId]ids.BlockId
	children map[ids.BlockId][]ids.BlockId
	rpo      []ids.BlockId
	rpoIndex map[ids.BlockId]int
	frontier map[ids.BlockId][]ids.BlockId
	entry    ids.BlockId
}

// Idom returns block's immediate dominator and whether it has one (the
// entry block has none).
func (t *Tree) Idom(block ids.BlockId) (ids.BlockId, bool) {
	if block == t.entry {
		return ids.InvalidBlockId, false
	}
	idom, ok := t.idom[block]
	return idom, ok
}

// Children returns block's dominance-tree children.
func (t *Tree) Children(block ids.BlockId) []ids.BlockId {
	return t.children[block]
}

// ReversePostorder returns every reachable block in reverse postorder.
func (t *Tree) ReversePostorder() []ids.BlockId {
	return t.rpo
}

// DominanceFrontier returns the dominance frontier of block: blocks j
// such that block dominates a predecessor of j but not j itself.
func (t *Tree) DominanceFrontier(block ids.BlockId) []ids.BlockId {
	return t.frontier[block]
}

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (t *Tree) Dominates(a, b ids.BlockId) bool {
	if a == b {
		return true
	}
	cur := b
	for {
		idom, ok := t.idom[cur]
		if !ok {
			return false
		}
		if idom == a {
			return true
		}
		if idom == cur {
			return false
		}
		cur = idom
	}
}

// Build computes the dominance tree and frontiers of g.
func Build(g *cfg.Graph) (*Tree, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	rpo := reversePostorder(g)
	rpoIndex := make(map[ids.BlockId]int, len(rpo))
	for i, b := range rpo {
		rpoIndex[b] = i
	}

	idom := computeIdoms(g, rpo, rpoIndex)

	t := &Tree{
		idom:     idom,
		children: make(map[ids.BlockId][]ids.BlockId),
		rpo:      rpo,
		rpoIndex: rpoIndex,
		frontier: make(map[ids.BlockId][]ids.BlockId),
		entry:    g.Entry,
	}
	for b, d := range idom {
		if b != d {
			t.children[d] = append(t.children[d], b)
		}
	}
	t.computeFrontiers(g)
	return t, nil
}

// reversePostorder performs a DFS from the entry block and returns nodes
// in reverse postorder; unreachable blocks are omitted.
func reversePostorder(g *cfg.Graph) []ids.BlockId {
	visited := make(map[ids.BlockId]bool)
	var post []ids.BlockId

	var visit func(ids.BlockId)
	visit = func(b ids.BlockId) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, succ := range g.Successors(b) {
			visit(succ)
		}
		post = append(post, b)
	}
	visit(g.Entry)

	rpo := make([]ids.BlockId, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}

// computeIdoms runs the Cooper–Harvey–Kennedy fixpoint.
func computeIdoms(g *cfg.Graph, rpo []ids.BlockId, rpoIndex map[ids.BlockId]int) map[ids.BlockId]ids.BlockId {
	idom := make(map[ids.BlockId]ids.BlockId)
	idom[g.Entry] = g.Entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == g.Entry {
				continue
			}
			var newIdom ids.BlockId
			found := false
			for _, p := range g.Predecessors(b) {
				if _, ok := idom[p]; !ok {
					continue // predecessor not yet processed this pass
				}
				if !found {
					newIdom = p
					found = true
					continue
				}
				newIdom = intersect(idom, rpoIndex, newIdom, p)
			}
			if !found {
				continue
			}
			if cur, ok := idom[b]; !ok || cur != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}

func intersect(idom map[ids.BlockId]ids.BlockId, rpoIndex map[ids.BlockId]int, a, b ids.BlockId) ids.BlockId {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = idom[a]
		}
		for rpoIndex[b] > rpoIndex[a] {
			b = idom[b]
		}
	}
	return a
}

// computeFrontiers implements spec §4.1's frontier pass: for each join
// block j with >=2 predecessors, for each predecessor p, walk up the
// dominator chain from p adding j to DF(runner) until runner == idom(j).
func (t *Tree) computeFrontiers(g *cfg.Graph) {
	for _, b := range t.rpo {
		preds := g.Predecessors(b)
		if len(preds) < 2 {
			continue
		}
		idomB := t.idom[b]
		for _, p := range preds {
			runner := p
			for runner != idomB {
				if !containsBlock(t.frontier[runner], b) {
					t.frontier[runner] = append(t.frontier[runner], b)
				}
				next, ok := t.idom[runner]
				if !ok || next == runner {
					break
				}
				runner = next
			}
		}
	}
}

func containsBlock(xs []ids.BlockId, x ids.BlockId) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
