// Package trace renders debug-only progress output for the compiler core
// — SSA construction statistics (node, phi and SSA-variable counts),
// statement-location clamp notices and codegen finalize notices; the
// validator writes no trace output — gated behind RAYZOR_VERBOSE=1 (spec §9's
// "Logging / verbose tracing" ambient concern). It is grounded on the
// teacher's use of github.com/fatih/color in cmd/ailang/main.go and
// internal/repl/repl.go for colorized terminal output; unlike those call
// sites, every message here is a debug aid, never gates correctness, and
// is never on the hot path of any of C1-C9.
package trace

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	once    sync.Once
	enabled bool

	label = color.New(color.FgCyan, color.Bold)
)

func verboseEnabled() bool {
	once.Do(func() {
		enabled = os.Getenv("RAYZOR_VERBOSE") == "1"
	})
	return enabled
}

// Verbosef writes a verbose trace line to stderr when RAYZOR_VERBOSE=1 is
// set, prefixed with a colorized "[rayzor]" label. It is a no-op
// otherwise, and never returns an error: tracing must never cause a pass
// to fail.
func Verbosef(format string, args ...any) {
	if !verboseEnabled() {
		return
	}
	label.Fprint(os.Stderr, "[rayzor] ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Enabled reports whether verbose tracing is currently on, for callers
// that want to skip building an expensive trace message entirely.
func Enabled() bool {
	return verboseEnabled()
}
