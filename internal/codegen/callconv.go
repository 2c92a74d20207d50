package codegen

import (
	"github.com/rayzor-lang/rayzor/internal/mir"
	"tinygo.org/x/go-llvm"
)

// hiddenParams reports how many hidden parameters a function carries and
// in which order they precede the user parameters, per spec §4.8:
// "The emitter inserts hidden parameters in the order: [sret?, env,
// user_params…]. Extern (C ABI) functions get neither."
type hiddenParams struct {
	Sret bool
	Env  bool
}

func hiddenParamsFor(sig mir.Signature) hiddenParams {
	if sig.IsExtern {
		return hiddenParams{}
	}
	return hiddenParams{Sret: sig.UsesSret, Env: sig.UsesEnv}
}

// Count returns the number of hidden leading parameters (spec property
// P6: hidden(f) = (uses_sret(f) ? 1 : 0) + (is_haxe(f) ? 1 : 0), where
// "is_haxe" is this core's name for "carries the hidden environment
// pointer" — every non-extern function in this source language does).
func (h hiddenParams) Count() int {
	n := 0
	if h.Sret {
		n++
	}
	if h.Env {
		n++
	}
	return n
}

// sretIndex returns the parameter index of the hidden sret pointer, or -1
// if the function has none.
func (h hiddenParams) sretIndex() int {
	if !h.Sret {
		return -1
	}
	return 0
}

// envIndex returns the parameter index of the hidden environment pointer,
// or -1 if the function has none.
func (h hiddenParams) envIndex() int {
	if !h.Env {
		return -1
	}
	if h.Sret {
		return 1
	}
	return 0
}

// firstUserParam returns the parameter index of the first user-visible
// parameter.
func (h hiddenParams) firstUserParam() int {
	return h.Count()
}

// calleeShape reads the leading-parameter shape off an already-declared
// LLVM function type, the input inferCallConvFromShape needs. It is the
// call-site half of spec §4.8's robustness requirement: the calling
// convention is derived from what the callee's LLVM signature actually
// looks like, not from a side table keyed by an id that may collide
// across modules.
func calleeShape(calleeType llvm.Type) (paramCount int, leadingIsPtr, secondIsI64 bool) {
	params := calleeType.ParamTypes()
	paramCount = len(params)
	if len(params) > 0 {
		leadingIsPtr = params[0].TypeKind() == llvm.PointerTypeKind
	}
	if len(params) > 1 {
		secondIsI64 = params[1].TypeKind() == llvm.IntegerTypeKind && params[1].IntTypeWidth() == 64
	}
	return
}

// inferCallConvFromShape infers a callee's hidden-parameter shape from its
// already-declared LLVM signature by comparing parameter counts and
// leading parameter shapes against the supplied argument count (spec
// §4.8: "At call sites the convention is inferred from the callee's
// declared LLVM signature ... this is robust across modules where ids
// may collide"). leadingIsPtr/secondIsI64 describe the first two
// declared parameter kinds (ptr/i64), which is enough to disambiguate
// [sret, env, …] from [env, …] from [user…] in this calling convention
// since sret is always a pointer and env is always i64.
func inferCallConvFromShape(declaredParamCount int, argCount int, leadingIsPtr, secondIsI64 bool) hiddenParams {
	extra := declaredParamCount - argCount
	switch extra {
	case 0:
		return hiddenParams{}
	case 1:
		// Either a bare env (i64) or a bare sret (ptr); env is the more
		// common shape for functions with scalar returns.
		if leadingIsPtr && !secondIsI64 {
			return hiddenParams{Sret: true}
		}
		return hiddenParams{Env: true}
	default:
		return hiddenParams{Sret: true, Env: true}
	}
}
