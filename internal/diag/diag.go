// Package diag implements the structured diagnostic sink consumed at the
// core boundary (spec §6), grounded on the teacher's internal/errors
// package (Report/ReportError, a closed phase/code taxonomy in
// codes.go): a closed Kind taxonomy, a Record carrying
// {kind, location, context, suggestion?}, and a Sink interface with an
// order-preserving MemorySink implementation.
package diag

import (
	"fmt"

	"github.com/rayzor-lang/rayzor/internal/tast"
)

// Kind is the closed diagnostic taxonomy of spec §6.
type Kind uint8

const (
	KindTypeMismatch Kind = iota
	KindMethodSignatureMismatch
	KindInterfaceNotImplemented
	KindMissingOverride
	KindInvalidOverride
	KindStaticAccessFromInstance
	KindInstanceAccessFromStatic
	KindAccessViolation
	KindUndefinedSymbol
	KindUndefinedType
	KindInvalidCast
	KindConstraintViolation
	KindInferenceFailed
	// KindUninitializedUse, KindNullDereference and KindResourceLeak are
	// the synthetic flow-analysis kinds spec §4.7(10) asks the validator
	// to convert C7's findings into, so they share the one sink.
	KindUninitializedUse
	KindNullDereference
	KindResourceLeak
	// KindDeadCode is informational (a "hint", per spec §4.6/§7), never
	// counted toward the "N errors" summary.
	KindDeadCode
)

// Severity distinguishes errors (which count toward check_file's failure
// summary) from hints. Only KindDeadCode is a hint; every other kind,
// KindResourceLeak included, is an error.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityHint
)

func (k Kind) Severity() Severity {
	if k == KindDeadCode {
		return SeverityHint
	}
	return SeverityError
}

// Record is one structured diagnostic (spec §6's stable schema).
type Record struct {
	Kind       Kind
	Location   tast.SourceLocation
	Context    string
	Suggestion string
	HasSuggestion bool

	// Name is a synthetic dedup key used for flow-analysis diagnostics
	// (spec §4.7(10): "under synthetic name keys so the diagnostic sink
	// can deduplicate"). Empty for ordinary validator diagnostics.
	Name string
}

// Sink receives diagnostics in discovery order; the validator never
// early-exits on the first error (spec §4.7, §7).
type Sink interface {
	Report(Record)
}

// MemorySink is the in-process Sink implementation: it preserves
// discovery order and exposes a name-based dedup check for the flow
// analysis hookup.
type MemorySink struct {
	records []Record
	seen    map[string]bool
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[string]bool)}
}

// Report appends rec, unless rec.Name is set and has already been
// reported (spec §4.7(10)'s dedup-by-name behavior).
func (s *MemorySink) Report(rec Record) {
	if rec.Name != "" {
		if s.seen[rec.Name] {
			return
		}
		s.seen[rec.Name] = true
	}
	s.records = append(s.records, rec)
}

// Records returns every diagnostic reported, in discovery order.
func (s *MemorySink) Records() []Record { return s.records }

// ErrorCount returns the number of SeverityError records — the N in
// check_file's "Type checking failed with N errors" summary (spec §7).
func (s *MemorySink) ErrorCount() int {
	n := 0
	for _, r := range s.records {
		if r.Kind.Severity() == SeverityError {
			n++
		}
	}
	return n
}

// Summary renders the top-level user-visible failure summary (spec §7),
// or "" if there were no errors.
func (s *MemorySink) Summary() string {
	n := s.ErrorCount()
	if n == 0 {
		return ""
	}
	if n == 1 {
		return "Type checking failed with 1 error"
	}
	return fmt.Sprintf("Type checking failed with %d errors", n)
}
