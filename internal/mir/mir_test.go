package mir

import (
	"testing"

	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/stretchr/testify/require"
)

func TestSizeOfScalars(t *testing.T) {
	require.Equal(t, 0, SizeOf(IrType{Kind: IrVoid}))
	require.Equal(t, 1, SizeOf(IrType{Kind: IrBool}))
	require.Equal(t, 1, SizeOf(IrType{Kind: IrInt, IntBits: 1}))
	require.Equal(t, 4, SizeOf(IrType{Kind: IrInt, IntBits: 32}))
	require.Equal(t, 8, SizeOf(IrType{Kind: IrInt, IntBits: 64}))
	require.Equal(t, 4, SizeOf(IrType{Kind: IrFloat32}))
	require.Equal(t, 8, SizeOf(IrType{Kind: IrFloat64}))
	require.Equal(t, 8, SizeOf(IrType{Kind: IrPtr}))
}

func TestSizeOfSliceAndString(t *testing.T) {
	require.Equal(t, 16, SizeOf(IrType{Kind: IrSlice}))
	require.Equal(t, 16, SizeOf(IrType{Kind: IrString}))
}

func TestSizeOfArray(t *testing.T) {
	elem := IrType{Kind: IrInt, IntBits: 32}
	arr := IrType{Kind: IrArray, Elem: &elem, ArrayLen: 5}
	require.Equal(t, 20, SizeOf(arr))
}

func TestSizeOfEmptyArrayHasNoElem(t *testing.T) {
	arr := IrType{Kind: IrArray, ArrayLen: 5}
	require.Equal(t, 0, SizeOf(arr))
}

func TestSizeOfStructSumsFields(t *testing.T) {
	s := IrType{Kind: IrStruct, Fields: []IrType{
		{Kind: IrInt, IntBits: 32},
		{Kind: IrFloat64},
		{Kind: IrPtr},
	}}
	require.Equal(t, 4+8+8, SizeOf(s))
}

func TestSizeOfUnionAddsTagWord(t *testing.T) {
	u := IrType{Kind: IrUnion, MaxVariant: 24}
	require.Equal(t, 28, SizeOf(u))
}

func TestSizeOfVector(t *testing.T) {
	elem := IrType{Kind: IrFloat32}
	v := IrType{Kind: IrVector, Elem: &elem, LaneCount: 4}
	require.Equal(t, 16, SizeOf(v))
}

func TestIsAggregate(t *testing.T) {
	require.True(t, IsAggregate(IrType{Kind: IrStruct}))
	require.True(t, IsAggregate(IrType{Kind: IrUnion}))
	require.True(t, IsAggregate(IrType{Kind: IrArray}))
	require.False(t, IsAggregate(IrType{Kind: IrInt, IntBits: 32}))
	require.False(t, IsAggregate(IrType{Kind: IrPtr}))
	require.True(t, IsAggregate(IrType{Kind: IrSlice}))
}

func TestModuleAddFunctionPreservesDeclarationOrder(t *testing.T) {
	m := NewModule("test")
	fa := NewFunction(ids.IrFunctionId(1), "a", Signature{})
	fb := NewFunction(ids.IrFunctionId(2), "b", Signature{})
	m.AddFunction(fb)
	m.AddFunction(fa)

	require.Equal(t, []ids.IrFunctionId{fb.Id, fa.Id}, m.FunctionOrder)
	require.Same(t, fb, m.Functions[fb.Id])
	require.Same(t, fa, m.Functions[fa.Id])
}

func TestFunctionEntryBlockIsFirstAdded(t *testing.T) {
	fn := NewFunction(ids.IrFunctionId(1), "f", Signature{})
	_, ok := fn.EntryBlock()
	require.False(t, ok, "a function with no blocks has no entry")

	fn.AddBlock(ids.IrBlockId(5))
	fn.AddBlock(ids.IrBlockId(2))

	entry, ok := fn.EntryBlock()
	require.True(t, ok)
	require.Equal(t, ids.IrBlockId(5), entry)
}
