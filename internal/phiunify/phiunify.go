// Package phiunify implements component C5: given the list of phi
// incoming values and their per-node value types, compute the least
// upper bound in the source-language subtype lattice (spec §4.4).
package phiunify

import (
	"github.com/rayzor-lang/rayzor/internal/ids"
	"github.com/rayzor-lang/rayzor/internal/typetab"
)

// Incoming is one phi operand: the predecessor block it comes from and
// the type of the value flowing in along that edge.
type Incoming struct {
	Block ids.BlockId
	Type  ids.TypeId
}

// Unify computes the phi's value_type: the least upper bound of every
// incoming type. An Error-kind incoming propagates Error (spec §4.4's
// error condition); if no common upper bound exists below Dynamic, the
// result is Dynamic.
func Unify(types *typetab.Table, incoming []Incoming) ids.TypeId {
	candidates := make([]ids.TypeId, len(incoming))
	for i, in := range incoming {
		candidates[i] = in.Type
	}
	return types.LeastUpperBound(candidates)
}
