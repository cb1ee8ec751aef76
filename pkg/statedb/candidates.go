package statedb

import (
	"github.com/symbion/symck/pkg/smt"
	"github.com/symbion/symck/pkg/solvercache"
	"github.com/symbion/symck/pkg/stats"
	"github.com/symbion/symck/pkg/symbolic"
)

// CandidateContainer holds every symbolic store seen so far under one
// explicit key and decides whether a newly reached one is novel.
// Alternative policies (hashed exact equality, an ordered set) are
// interface-compatible (spec.md §4.9).
type CandidateContainer interface {
	// InsertCheck returns the id assigned to s (an existing candidate's
	// id if s is subsumed by it, otherwise a freshly allocated one) and
	// whether s was novel.
	InsertCheck(s *symbolic.Store, bridge *smt.Bridge, cache *solvercache.Cache, reg *stats.Registry, timeoutEnabled bool, unknownCount *int) (id uint64, isNew bool)
	// Get returns the candidate stored under id, or nil if unknown.
	Get(id uint64) *symbolic.Store
}

// LinearCandidateContainer is a vector of symbolic stores searched
// linearly on insert (spec.md §4.9: "linear scan performs well because
// most symbolic states under a given explicit key subsume one another
// quickly; the number of candidates per key is empirically small").
type LinearCandidateContainer struct {
	stores []*symbolic.Store
}

// NewLinearCandidateContainer returns an empty linear candidate
// container.
func NewLinearCandidateContainer() *LinearCandidateContainer {
	return &LinearCandidateContainer{}
}

// InsertCheck reports s as "not new" on the first existing candidate c
// with s ⊆ c (checked via symbolic.Subseteq(s, c, ...)), returning c's
// id; otherwise it appends s as a fresh candidate.
func (c *LinearCandidateContainer) InsertCheck(s *symbolic.Store, bridge *smt.Bridge, cache *solvercache.Cache, reg *stats.Registry, timeoutEnabled bool, unknownCount *int) (uint64, bool) {
	for i, existing := range c.stores {
		if symbolic.Subseteq(s, existing, bridge, cache, reg, timeoutEnabled, unknownCount) {
			return uint64(i), false
		}
	}
	c.stores = append(c.stores, s)
	return uint64(len(c.stores) - 1), true
}

// Get returns the candidate at id, or nil if id is out of range.
func (c *LinearCandidateContainer) Get(id uint64) *symbolic.Store {
	if id >= uint64(len(c.stores)) {
		return nil
	}
	return c.stores[id]
}
