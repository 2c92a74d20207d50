package codegen

import (
	"errors"
	"testing"

	"github.com/rayzor-lang/rayzor/internal/diag"
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/mir"
	"github.com/stretchr/testify/require"
)

func TestOptLevelFromEnv(t *testing.T) {
	cases := map[string]OptLevel{
		"0": OptNone,
		"1": OptLess,
		"2": OptDefault,
		"3": OptAggressive,
		"":  OptAggressive,
		"x": OptAggressive,
	}
	for val, want := range cases {
		t.Setenv("RAYZOR_LLVM_OPT", val)
		require.Equal(t, want, OptLevelFromEnv(), "RAYZOR_LLVM_OPT=%q", val)
	}
}

func TestOptLevelPipelineNumber(t *testing.T) {
	require.Equal(t, 0, OptNone.pipelineNumber())
	require.Equal(t, 1, OptLess.pipelineNumber())
	require.Equal(t, 2, OptDefault.pipelineNumber())
	require.Equal(t, 3, OptAggressive.pipelineNumber())
}

// TestDiagnosticFromFailureCarriesInstructionPair checks spec §7's
// requirement that a fatal emission failure carry the failing (BlockId,
// IrInstruction) pair, not just a function name.
func TestDiagnosticFromFailureCarriesInstructionPair(t *testing.T) {
	cause := errors.New("unsupported union layout")
	instr := &mir.IrInstruction{Op: mir.OpUnionTag}

	rec := diagnosticFromFailure("Shape.getArea", ids.IrBlockId(3), instr, cause)

	require.Equal(t, diag.KindInferenceFailed, rec.Kind)
	require.Contains(t, rec.Context, `"Shape.getArea"`)
	require.Contains(t, rec.Context, "block 3")
	require.Contains(t, rec.Context, "unsupported union layout")
}

// TestDiagnosticFromFailureWithoutInstruction covers the terminator-only
// failure path, where no specific instruction is available.
func TestDiagnosticFromFailureWithoutInstruction(t *testing.T) {
	cause := errors.New("unreachable terminator")

	rec := diagnosticFromFailure("Shape.getArea", ids.IrBlockId(1), nil, cause)

	require.Equal(t, diag.KindInferenceFailed, rec.Kind)
	require.NotContains(t, rec.Context, "instruction op")
	require.Contains(t, rec.Context, "unreachable terminator")
}

// TestWrapEmissionFailureUnwraps checks EmissionError preserves the
// original cause through errors.Unwrap while exposing the structured
// diag.Record spec §7 requires.
func TestWrapEmissionFailureUnwraps(t *testing.T) {
	cause := errors.New("no value for incoming register 4")
	instr := &mir.IrInstruction{Op: mir.OpCall}

	err := wrapEmissionFailure("main", ids.IrBlockId(2), instr, cause)

	var emitErr *EmissionError
	require.True(t, errors.As(err, &emitErr))
	require.Equal(t, diag.KindInferenceFailed, emitErr.Record.Kind)
	require.True(t, errors.Is(err, cause))
}
