package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMangleReplacesReservedSequences(t *testing.T) {
	require.Equal(t, "Shapes_L_Rectangle", Mangle("Shapes::Rectangle"))
	require.Equal(t, "List_R_Int_C_", Mangle("List<Int>"))
	require.Equal(t, "Map_R_String_S__S_Int_C_", Mangle("Map<String, Int>"))
	require.Equal(t, "a_S_b", Mangle("a b"))
}

func TestMangleLeavesPlainNamesUnchanged(t *testing.T) {
	require.Equal(t, "getArea", Mangle("getArea"))
}

func TestDisambiguateAppendsIdSuffix(t *testing.T) {
	require.Equal(t, "getArea__dup0", disambiguate("getArea", 0))
	require.Equal(t, "getArea__dup7", disambiguate("getArea", 7))
	require.Equal(t, "getArea__dup123", disambiguate("getArea", 123))
}
