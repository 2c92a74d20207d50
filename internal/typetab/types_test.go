package typetab

import (
	"testing"

	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/stretchr/testify/require"
)

func TestInterningDedupsStructurallyIdenticalTypes(t *testing.T) {
	table := NewTable(nil)

	a := table.Int(32, true)
	b := table.Int(32, true)
	require.Equal(t, a, b)

	c := table.Int(32, false)
	require.NotEqual(t, a, c)

	d := table.Int(64, true)
	require.NotEqual(t, a, d)
}

func TestCompositeTypeInterningByStructure(t *testing.T) {
	table := NewTable(nil)
	i32 := table.Int(32, true)

	s1 := table.Slice(i32)
	s2 := table.Slice(i32)
	require.Equal(t, s1, s2)

	arr1 := table.Array(i32, 4)
	arr2 := table.Array(i32, 4)
	arr3 := table.Array(i32, 5)
	require.Equal(t, arr1, arr2)
	require.NotEqual(t, arr1, arr3)
}

func TestStructTypeFieldOrderMatters(t *testing.T) {
	table := NewTable(nil)
	i32 := table.Int(32, true)
	f64 := table.Float(64)

	s1 := table.Struct([]Field{{Name: "a", Type: i32}, {Name: "b", Type: f64}})
	s2 := table.Struct([]Field{{Name: "b", Type: f64}, {Name: "a", Type: i32}})
	require.NotEqual(t, s1, s2)

	s3 := table.Struct([]Field{{Name: "a", Type: i32}, {Name: "b", Type: f64}})
	require.Equal(t, s1, s3)
}

func TestWellKnownSingletonsIntern(t *testing.T) {
	table := NewTable(nil)
	require.Equal(t, table.Void(), table.Void())
	require.Equal(t, table.StringType(), table.StringType())
	require.NotEqual(t, table.Void(), table.Bool())
}

func TestStringRendersReadableNames(t *testing.T) {
	table := NewTable(nil)
	i32 := table.Int(32, true)
	require.Equal(t, "I32", table.String(i32))

	slice := table.Slice(table.Bool())
	require.Contains(t, table.String(slice), "Bool")
}

func TestGetPanicsOnOutOfRangeId(t *testing.T) {
	table := NewTable(nil)
	require.Panics(t, func() {
		table.Get(ids.TypeIdFromRaw(999))
	})
}
