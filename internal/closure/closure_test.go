package closure

import (
	"testing"

	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/tast"
	"github.com/stretchr/testify/require"
)

func sym(n uint32) ids.SymbolId {
	return ids.SymbolId(n)
}

func variable(s ids.SymbolId) tast.Expression {
	return &tast.Variable{Symbol: s}
}

func TestFreeVariablesExcludesParamsAndLocals(t *testing.T) {
	param := sym(1)
	captured := sym(2)
	local := sym(3)

	body := []tast.Statement{
		&tast.VarDeclaration{Symbol: local, Init: variable(captured)},
		&tast.ExpressionStatement{Expr: &tast.BinaryOp{
			Op:    tast.OpAdd,
			Left:  variable(param),
			Right: variable(local),
		}},
		&tast.Return{Value: variable(captured)},
	}

	free := FreeVariables([]ids.SymbolId{param}, body)

	require.Len(t, free, 1)
	require.Equal(t, captured, free[0].SymbolId)
	require.Equal(t, ByValue, free[0].CaptureType)
	require.Equal(t, 0, free[0].CaptureIndex)
	require.Equal(t, ids.InvalidSsaVariableId, free[0].SsaVarId)
}

func TestFreeVariablesFirstUseOrderIsStableAndDeduped(t *testing.T) {
	a, b := sym(10), sym(11)
	body := []tast.Statement{
		&tast.ExpressionStatement{Expr: variable(b)},
		&tast.ExpressionStatement{Expr: variable(a)},
		&tast.ExpressionStatement{Expr: variable(b)}, // repeat, shouldn't duplicate or reorder
	}

	free := FreeVariables(nil, body)
	require.Len(t, free, 2)
	require.Equal(t, b, free[0].SymbolId)
	require.Equal(t, 0, free[0].CaptureIndex)
	require.Equal(t, a, free[1].SymbolId)
	require.Equal(t, 1, free[1].CaptureIndex)
}

func TestFreeVariablesNestedLambdaCapturesOuterScope(t *testing.T) {
	outerParam := sym(20)
	innerParam := sym(21)

	inner := &tast.FunctionLiteral{
		Params: []ids.SymbolId{innerParam},
		Body: []tast.Statement{
			&tast.Return{Value: &tast.BinaryOp{
				Op:    tast.OpAdd,
				Left:  variable(innerParam),
				Right: variable(outerParam),
			}},
		},
	}

	body := []tast.Statement{
		&tast.ExpressionStatement{Expr: inner},
	}

	// The inner lambda captures outerParam from the enclosing scope...
	innerFree := FreeVariables(inner.Params, inner.Body)
	require.Len(t, innerFree, 1)
	require.Equal(t, outerParam, innerFree[0].SymbolId)

	// ...but outerParam is a parameter of the outer lambda, so it is not
	// free there.
	free := FreeVariables([]ids.SymbolId{outerParam}, body)
	require.Empty(t, free)
}

func TestFreeVariablesLoopVarAndCatchVarAreBound(t *testing.T) {
	iterVar := sym(30)
	exceptionVar := sym(31)
	leaked := sym(32)

	body := []tast.Statement{
		&tast.ForIn{
			LoopVar:  iterVar,
			Iterable: variable(leaked),
			Body:     &tast.ExpressionStatement{Expr: variable(iterVar)},
		},
		&tast.TryStatement{
			Body: &tast.ExpressionStatement{Expr: variable(leaked)},
			Catches: []tast.CatchClause{
				{ExceptionVar: exceptionVar, Body: &tast.ExpressionStatement{Expr: variable(exceptionVar)}},
			},
		},
	}

	free := FreeVariables(nil, body)
	require.Len(t, free, 1)
	require.Equal(t, leaked, free[0].SymbolId)
}

func TestRecordSizeAccountsForHeaderAndSlots(t *testing.T) {
	require.Equal(t, 8, RecordSize(nil))
	require.Equal(t, 24, RecordSize([]Captured{{}, {}}))
}
