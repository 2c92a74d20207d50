// Package stmtmap implements component C3: the TAST<->CFG mapping. Each
// TAST statement is addressable by a StatementLocation
// {statement_index, nesting_depth, branch_context, stable_id}; the
// mapping exposes GetStatementsInBlock, ordered by appearance, and
// GetStatement, which walks into nested statement trees using the branch
// context to select the correct sub-tree (spec §4.2).
package stmtmap

import (
	"fmt"

	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/tast"
	"github.com/rayzor-lang/rayzor/internal/trace"
)

// BranchContextKind is the closed set of sub-tree selectors.
type BranchContextKind uint8

const (
	BranchNone BranchContextKind = iota
	BranchIfThen
	BranchIfElse
	BranchCatchClause
	BranchFinally
	BranchSwitchCase
	BranchSwitchDefault
)

// BranchContext selects which sub-tree of a compound statement a
// StatementLocation descends into. Index is only meaningful for
// BranchCatchClause and BranchSwitchCase.
type BranchContext struct {
	Kind  BranchContextKind
	Index int
}

// StatementLocation addresses one TAST statement relative to a function
// body, per spec §4.2.
type StatementLocation struct {
	StatementIndex int
	NestingDepth   int
	BranchContext  BranchContext
	StableId       uint64
}

// ClampLogger receives a notification whenever GetStatement has to apply
// the documented clamp-to-zero correction (spec §4.2's "Edge case" and
// §9's Open Question). Every clamp is also written as a verbose trace
// line; callers that want to observe clamps themselves pass a non-nil
// logger.
type ClampLogger func(loc StatementLocation, statementsAvailable int)

// Mapping associates each CFG block with the ordered StatementLocations
// that fall inside it. The association itself comes from the upstream
// CFG/statement-location builder (out of scope for this core); Mapping
// only stores and navigates it.
type Mapping struct {
	byBlock map[ids.BlockId][]StatementLocation
	onClamp ClampLogger
}

// New wraps an already-computed block -> statement-location assignment.
func New(byBlock map[ids.BlockId][]StatementLocation, onClamp ClampLogger) *Mapping {
	return &Mapping{byBlock: byBlock, onClamp: onClamp}
}

// GetStatementsInBlock returns the StatementLocations assigned to block,
// in appearance order.
func (m *Mapping) GetStatementsInBlock(block ids.BlockId) []StatementLocation {
	return m.byBlock[block]
}

// InternalError reports a navigation failure that cannot be corrected by
// the documented clamp (spec §4.5's InternalError failure mode).
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string { return e.Message }

// GetStatement resolves a StatementLocation against a function's body.
func (m *Mapping) GetStatement(body []tast.Statement, loc StatementLocation) (tast.Statement, error) {
	return m.navigate(body, loc, 0)
}

func (m *Mapping) navigate(statements []tast.Statement, loc StatementLocation, currentDepth int) (tast.Statement, error) {
	if currentDepth == loc.NestingDepth {
		idx := loc.StatementIndex
		if idx >= len(statements) && len(statements) > 0 {
			if m.onClamp != nil {
				m.onClamp(loc, len(statements))
			}
			trace.Verbosef("stmtmap: statement index %d out of range (%d statements), clamped to 0",
				loc.StatementIndex, len(statements))
			idx = 0
		}
		if idx < 0 || idx >= len(statements) {
			return nil, &InternalError{Message: fmt.Sprintf(
				"invalid statement index %d (adjusted to %d), statements available: %d",
				loc.StatementIndex, idx, len(statements))}
		}
		return statements[idx], nil
	}

	if currentDepth == 0 {
		if loc.StatementIndex < len(statements) {
			stmt := statements[loc.StatementIndex]
			if nested, ok := nestedStatementsForBranch(stmt, loc.BranchContext); ok {
				return m.navigate(nested, loc, currentDepth+1)
			}
		}
	} else {
		for _, stmt := range statements {
			if nested, ok := nestedStatementsForBranch(stmt, loc.BranchContext); ok {
				if found, err := m.navigate(nested, loc, currentDepth+1); err == nil {
					return found, nil
				}
			}
			if currentDepth == loc.NestingDepth-1 {
				return stmt, nil
			}
		}
	}

	return nil, &InternalError{Message: fmt.Sprintf(
		"statement not found at depth %d (target %d) among %d statements",
		currentDepth, loc.NestingDepth, len(statements))}
}

// asStatementList unwraps a single branch statement into the list the
// navigator recurses over: a *BlockStatement's own statements, or the
// statement itself as a one-element run (mirrors the original's "Block
// -> statements, else single-element slice" rule applied at every branch
// site).
func asStatementList(stmt tast.Statement) []tast.Statement {
	if block, ok := stmt.(*tast.BlockStatement); ok {
		return block.Body
	}
	return []tast.Statement{stmt}
}

// nestedStatementsForBranch mirrors get_nested_statements_for_branch:
// given a parent statement and the branch context requested by a
// StatementLocation, return the sub-tree it selects (or ok=false).
func nestedStatementsForBranch(stmt tast.Statement, bc BranchContext) ([]tast.Statement, bool) {
	switch s := stmt.(type) {
	case *tast.BlockStatement:
		return s.Body, true

	case *tast.If:
		switch bc.Kind {
		case BranchIfThen:
			return asStatementList(s.Then), true
		case BranchIfElse:
			if s.HasElse {
				return asStatementList(s.Else), true
			}
			return nil, false
		default:
			return nil, false
		}

	case *tast.While:
		return asStatementList(s.Body), true

	case *tast.For:
		return asStatementList(s.Body), true

	case *tast.ForIn:
		return asStatementList(s.Body), true

	case *tast.TryStatement:
		switch bc.Kind {
		case BranchNone:
			return asStatementList(s.Body), true
		case BranchCatchClause:
			if bc.Index >= 0 && bc.Index < len(s.Catches) {
				return asStatementList(s.Catches[bc.Index].Body), true
			}
			return nil, false
		case BranchFinally:
			if s.HasFinally {
				return asStatementList(s.Finally), true
			}
			return nil, false
		default:
			return nil, false
		}

	case *tast.Switch:
		switch bc.Kind {
		case BranchSwitchCase:
			if bc.Index >= 0 && bc.Index < len(s.Cases) && !s.Cases[bc.Index].IsDefault {
				return asStatementList(s.Cases[bc.Index].Body), true
			}
			return nil, false
		case BranchSwitchDefault:
			for _, c := range s.Cases {
				if c.IsDefault {
					return asStatementList(c.Body), true
				}
			}
			return nil, false
		default:
			return nil, false
		}

	default:
		return nil, false
	}
}
