package dominance

import (
	"testing"

	"github.com/rayzor-lang/rayzor/internal/cfg"
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/stretchr/testify/require"
)

func block(n uint32) ids.BlockId {
	return ids.BlockId(n)
}

// diamond builds: entry -> (left, right) -> join -> exit
func diamond() *cfg.Graph {
	g := cfg.NewGraph()
	g.Entry = block(0)
	for i := uint32(0); i <= 3; i++ {
		g.AddBlock(block(i))
	}
	g.SetTerminator(block(0), cfg.Terminator{Kind: cfg.TermBranch, TrueTarget: block(1), FalseTarget: block(2)})
	g.SetTerminator(block(1), cfg.Terminator{Kind: cfg.TermJump, Target: block(3)})
	g.SetTerminator(block(2), cfg.Terminator{Kind: cfg.TermJump, Target: block(3)})
	g.SetTerminator(block(3), cfg.Terminator{Kind: cfg.TermReturn})
	return g
}

func TestBuildDiamondIdom(t *testing.T) {
	g := diamond()
	tree, err := Build(g)
	require.NoError(t, err)

	idomLeft, ok := tree.Idom(block(1))
	require.True(t, ok)
	require.Equal(t, block(0), idomLeft)

	idomRight, ok := tree.Idom(block(2))
	require.True(t, ok)
	require.Equal(t, block(0), idomRight)

	idomJoin, ok := tree.Idom(block(3))
	require.True(t, ok)
	require.Equal(t, block(0), idomJoin)

	_, hasEntryIdom := tree.Idom(block(0))
	require.False(t, hasEntryIdom)
}

func TestBuildDiamondDominanceFrontier(t *testing.T) {
	g := diamond()
	tree, err := Build(g)
	require.NoError(t, err)

	require.ElementsMatch(t, []ids.BlockId{block(3)}, tree.DominanceFrontier(block(1)))
	require.ElementsMatch(t, []ids.BlockId{block(3)}, tree.DominanceFrontier(block(2)))
	require.Empty(t, tree.DominanceFrontier(block(0)))
	require.Empty(t, tree.DominanceFrontier(block(3)))
}

func TestDominatesReflexiveAndTransitive(t *testing.T) {
	g := diamond()
	tree, err := Build(g)
	require.NoError(t, err)

	require.True(t, tree.Dominates(block(0), block(0)))
	require.True(t, tree.Dominates(block(0), block(1)))
	require.True(t, tree.Dominates(block(0), block(3)))
	require.False(t, tree.Dominates(block(1), block(2)))
	require.False(t, tree.Dominates(block(3), block(0)))
}

func TestChildrenAndReversePostorder(t *testing.T) {
	g := diamond()
	tree, err := Build(g)
	require.NoError(t, err)

	require.ElementsMatch(t, []ids.BlockId{block(1), block(2), block(3)}, tree.Children(block(0)))
	require.Empty(t, tree.Children(block(1)))

	rpo := tree.ReversePostorder()
	require.Len(t, rpo, 4)
	require.Equal(t, block(0), rpo[0])
	require.Equal(t, block(3), rpo[len(rpo)-1])
}

func TestBuildRejectsMissingEntry(t *testing.T) {
	g := cfg.NewGraph()
	g.Entry = block(0)
	_, err := Build(g)
	require.Error(t, err)
}

// loop builds: entry -> header -> (body -> header, exit)
func TestBuildLoopHeaderDominatesBody(t *testing.T) {
	g := cfg.NewGraph()
	g.Entry = block(0)
	for i := uint32(0); i <= 3; i++ {
		g.AddBlock(block(i))
	}
	g.SetTerminator(block(0), cfg.Terminator{Kind: cfg.TermJump, Target: block(1)})
	g.SetTerminator(block(1), cfg.Terminator{Kind: cfg.TermBranch, TrueTarget: block(2), FalseTarget: block(3)})
	g.SetTerminator(block(2), cfg.Terminator{Kind: cfg.TermJump, Target: block(1)})
	g.SetTerminator(block(3), cfg.Terminator{Kind: cfg.TermReturn})

	tree, err := Build(g)
	require.NoError(t, err)

	require.True(t, tree.Dominates(block(1), block(2)))
	require.True(t, tree.Dominates(block(1), block(3)))
	idomBody, ok := tree.Idom(block(2))
	require.True(t, ok)
	require.Equal(t, block(1), idomBody)

	// the loop body's successor is the header, so the header is in the
	// body's dominance frontier (block(2) dominates a predecessor of the
	// header — itself — but does not dominate the header)
	require.Contains(t, tree.DominanceFrontier(block(2)), block(1))
}
