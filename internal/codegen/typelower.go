package codegen

import (
	"fmt"

	"github.com/rayzor-lang/rayzor/internal/mir"
	"tinygo.org/x/go-llvm"
)

// lowerType implements spec §4.8's type lowering matrix. Void lowers to
// LLVM's void type, which is only usable as a function return type
// (buildFunctionType passes a void return type through here); Bool
// lowers to i8 rather than i1 so storage
// and ABI stay byte-wide (branch conditions are compare-with-zero'd back
// to i1 at use sites, see truthiness in instr.go).
func (e *Emitter) lowerType(t mir.IrType) llvm.Type {
	switch t.Kind {
	case mir.IrVoid:
		return e.ctx.VoidType()
	case mir.IrBool:
		return e.ctx.Int8Type()
	case mir.IrInt:
		switch t.IntBits {
		case 1:
			return e.ctx.Int1Type()
		case 8:
			return e.ctx.Int8Type()
		case 16:
			return e.ctx.Int16Type()
		case 32:
			return e.ctx.Int32Type()
		default:
			return e.ctx.Int64Type()
		}
	case mir.IrFloat32:
		return e.ctx.FloatType()
	case mir.IrFloat64:
		return e.ctx.DoubleType()
	case mir.IrSlice, mir.IrString:
		// {ptr, i64}: a data pointer plus a length, per spec §4.8.
		return e.ctx.StructType([]llvm.Type{
			llvm.PointerType(e.ctx.Int8Type(), 0),
			e.ctx.Int64Type(),
		}, false)
	case mir.IrPtr:
		if t.Elem == nil {
			return llvm.PointerType(e.ctx.Int8Type(), 0)
		}
		pointee := e.lowerType(*t.Elem)
		if pointee.TypeKind() == llvm.VoidTypeKind {
			return llvm.PointerType(e.ctx.Int8Type(), 0)
		}
		return llvm.PointerType(pointee, 0)
	case mir.IrArray:
		elem := e.ctx.Int8Type()
		if t.Elem != nil {
			elem = e.lowerType(*t.Elem)
		}
		return llvm.ArrayType(elem, int(t.ArrayLen))
	case mir.IrStruct:
		fields := make([]llvm.Type, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = e.lowerType(f)
		}
		return e.ctx.StructType(fields, false)
	case mir.IrUnion:
		// {i32 tag, [i8 x max_variant_size]}, per spec §3/§4.8.
		return e.ctx.StructType([]llvm.Type{
			e.ctx.Int32Type(),
			llvm.ArrayType(e.ctx.Int8Type(), t.MaxVariant),
		}, false)
	case mir.IrVector:
		elem := e.ctx.Int32Type()
		if t.Elem != nil {
			elem = e.lowerType(*t.Elem)
		}
		return llvm.VectorType(elem, t.LaneCount)
	case mir.IrOpaque:
		return llvm.ArrayType(e.ctx.Int8Type(), t.OpaqueSize)
	default:
		panic(fmt.Sprintf("codegen: unhandled IrType kind %d", t.Kind))
	}
}

// isFloatType reports whether t lowers to a floating-point LLVM type,
// used to select the arithmetic/compare instruction family (spec §4.8:
// "Binary ops dispatch by the MIR result type when available").
func isFloatType(t mir.IrType) bool {
	return t.Kind == mir.IrFloat32 || t.Kind == mir.IrFloat64
}

// isSignedType reports the default signedness used for generic int
// widening at call-site/phi-incoming coercion points, where no explicit
// Signed flag is available (mir.IrType itself does not distinguish
// I8..I64 from U8..U64). Explicit compare/div/rem instructions instead
// consult mir.IrInstruction.Signed, set by the mid-IR lowering pass from
// the source type; this default (sign-extend) matches the source
// language's integer literals defaulting to a signed type.
func isSignedType(t mir.IrType) bool {
	return t.Kind == mir.IrInt
}
