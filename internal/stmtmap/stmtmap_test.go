package stmtmap

import (
	"testing"

	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/tast"
	"github.com/stretchr/testify/require"
)

func block(n uint32) ids.BlockId { return ids.BlockId(n) }

func TestGetStatementsInBlock(t *testing.T) {
	locs := []StatementLocation{{StatementIndex: 0}, {StatementIndex: 1}}
	m := New(map[ids.BlockId][]StatementLocation{block(0): locs}, nil)

	require.Equal(t, locs, m.GetStatementsInBlock(block(0)))
	require.Nil(t, m.GetStatementsInBlock(block(1)))
}

func TestGetStatementTopLevel(t *testing.T) {
	m := New(nil, nil)
	ret := &tast.Return{}
	body := []tast.Statement{&tast.ExpressionStatement{}, ret}

	got, err := m.GetStatement(body, StatementLocation{StatementIndex: 1})
	require.NoError(t, err)
	require.Same(t, ret, got)
}

func TestGetStatementDescendsIntoIfThen(t *testing.T) {
	inner := &tast.Return{}
	ifStmt := &tast.If{
		Then: &tast.BlockStatement{Body: []tast.Statement{inner}},
	}
	body := []tast.Statement{ifStmt}

	m := New(nil, nil)
	loc := StatementLocation{
		StatementIndex: 0,
		NestingDepth:   1,
		BranchContext:  BranchContext{Kind: BranchIfThen},
	}
	got, err := m.GetStatement(body, loc)
	require.NoError(t, err)
	require.Same(t, inner, got)
}

func TestGetStatementIfElseMissingIsInternalError(t *testing.T) {
	ifStmt := &tast.If{Then: &tast.BlockStatement{}, HasElse: false}
	body := []tast.Statement{ifStmt}

	m := New(nil, nil)
	loc := StatementLocation{
		StatementIndex: 0,
		NestingDepth:   1,
		BranchContext:  BranchContext{Kind: BranchIfElse},
	}
	_, err := m.GetStatement(body, loc)
	require.Error(t, err)
	var internal *InternalError
	require.ErrorAs(t, err, &internal)
}

func TestGetStatementSwitchCaseByIndex(t *testing.T) {
	case0 := &tast.ExpressionStatement{}
	case1 := &tast.ExpressionStatement{}
	sw := &tast.Switch{Cases: []tast.SwitchCase{
		{Body: case0},
		{Body: case1},
	}}
	body := []tast.Statement{sw}

	m := New(nil, nil)
	loc := StatementLocation{
		StatementIndex: 0,
		NestingDepth:   1,
		BranchContext:  BranchContext{Kind: BranchSwitchCase, Index: 1},
	}
	got, err := m.GetStatement(body, loc)
	require.NoError(t, err)
	require.Same(t, case1, got)
}

func TestGetStatementClampsOutOfRangeIndexToZero(t *testing.T) {
	first := &tast.Return{}
	body := []tast.Statement{first}

	var clamped []StatementLocation
	m := New(nil, func(loc StatementLocation, available int) {
		clamped = append(clamped, loc)
	})

	loc := StatementLocation{StatementIndex: 5}
	got, err := m.GetStatement(body, loc)
	require.NoError(t, err)
	require.Same(t, first, got)
	require.Len(t, clamped, 1)
	require.Equal(t, loc, clamped[0])
}

func TestGetStatementEmptyBodyIsInternalError(t *testing.T) {
	m := New(nil, nil)
	_, err := m.GetStatement(nil, StatementLocation{StatementIndex: 0})
	require.Error(t, err)
	var internal *InternalError
	require.ErrorAs(t, err, &internal)
}
