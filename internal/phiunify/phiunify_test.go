package phiunify

import (
	"testing"

	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/typetab"
	"github.com/stretchr/testify/require"
)

func TestUnifySameTypeOnEveryEdge(t *testing.T) {
	types := typetab.NewTable(nil)
	i32 := types.Int(32, true)

	got := Unify(types, []Incoming{
		{Block: ids.BlockId(1), Type: i32},
		{Block: ids.BlockId(2), Type: i32},
	})
	require.Equal(t, i32, got)
}

func TestUnifyErrorPropagates(t *testing.T) {
	types := typetab.NewTable(nil)
	i32 := types.Int(32, true)

	got := Unify(types, []Incoming{
		{Block: ids.BlockId(1), Type: i32},
		{Block: ids.BlockId(2), Type: types.Error()},
	})
	require.Equal(t, types.Error(), got)
}

func TestUnifyNoIncomingYieldsUnknown(t *testing.T) {
	types := typetab.NewTable(nil)
	got := Unify(types, nil)
	require.Equal(t, types.Unknown(), got)
}

func TestUnifyUnrelatedPrimitivesFallBackToDynamic(t *testing.T) {
	types := typetab.NewTable(nil)
	i32 := types.Int(32, true)
	str := types.StringType()

	got := Unify(types, []Incoming{
		{Block: ids.BlockId(1), Type: i32},
		{Block: ids.BlockId(2), Type: str},
	})
	require.Equal(t, types.Dynamic(), got)
}
