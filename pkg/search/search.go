// Package search implements the search drivers (spec.md §4.10): plain
// reachability (§4.10.1) and LTL model checking by nested DFS on the
// product of the program with a Büchi automaton (§4.10.2). Both drivers
// share the same successor-generation primitive — Expand, which composes
// pkg/eval's single-instruction Step calls into "advance until an
// observable boundary" for every thread eligible to run next (spec.md
// §5: "the next step may advance any thread whose stack is non-empty").
//
// A state's identity for the database (spec.md §4.9: "hashed+eq'ed on
// the explicit bytes") is Control + MemoryLayout + the explicit store
// serialised together, mirroring the original's getExplicitSize(), which
// sums control.getSize() + layout.getSize() + explicitData.getSize() —
// the symbolic store is the only region excluded from identity. The
// frontier here always carries the live *eval.State alongside its
// StateId: GetState only ever reconstructs the symbolic store (pkg/blob
// has no decoder for the combined explicit region), so the database is
// consulted purely for novelty, never to rebuild a state to resume from.
package search

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand"

	"github.com/symbion/symck/pkg/blob"
	"github.com/symbion/symck/pkg/eval"
	"github.com/symbion/symck/pkg/smt"
	"github.com/symbion/symck/pkg/solvercache"
	"github.com/symbion/symck/pkg/statedb"
)

// identityBytes serialises st's explicit region (control, memory layout,
// explicit store, in that order) and symbolic region for a blob.
func identityBytes(st *eval.State) (explicitBytes, symbolicBytes []byte, err error) {
	var eb bytes.Buffer
	if err := st.Control.WriteTo(&eb); err != nil {
		return nil, nil, fmt.Errorf("search: serialising control: %w", err)
	}
	if err := st.Layout.WriteTo(&eb); err != nil {
		return nil, nil, fmt.Errorf("search: serialising memory layout: %w", err)
	}
	if err := st.Explicit.WriteTo(&eb); err != nil {
		return nil, nil, fmt.Errorf("search: serialising explicit store: %w", err)
	}
	var sb bytes.Buffer
	if err := st.Symbolic.WriteTo(&sb); err != nil {
		return nil, nil, fmt.Errorf("search: serialising symbolic store: %w", err)
	}
	return eb.Bytes(), sb.Bytes(), nil
}

// userBytes gob-encodes extra (the LTL driver's ba_state) into a blob's
// opaque user region (spec.md §4.10.2); extra is nil for plain
// reachability, which has nothing to put there.
func userBytes(extra any) ([]byte, error) {
	if extra == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(extra); err != nil {
		return nil, fmt.Errorf("search: encoding user payload: %w", err)
	}
	return buf.Bytes(), nil
}

// insertCheck encodes st into a blob and inserts it into db, returning
// its StateId and whether it is novel.
func insertCheck(st *eval.State, extra any, db *statedb.Database, bridge *smt.Bridge, cache *solvercache.Cache, timeoutEnabled bool, unknownCount *int) (statedb.StateId, bool, error) {
	user, err := userBytes(extra)
	if err != nil {
		return statedb.StateId{}, false, err
	}
	explicitBytes, symbolicBytes, err := identityBytes(st)
	if err != nil {
		return statedb.StateId{}, false, err
	}
	b := blob.New(user, explicitBytes, symbolicBytes)
	return db.InsertCheck(b, bridge, cache, timeoutEnabled, unknownCount)
}

// leaf is one observable-boundary successor reached from a chain walk,
// tagged with which thread was advanced to reach it.
type leaf struct {
	State   *eval.State
	Tid     int
	IsError bool
}

// chainWalk advances tid from st, repeatedly calling eval.Step on every
// non-observable, non-error successor until each branch reaches an
// observable boundary (spec.md §4.8), an assertion failure, or the
// stepped thread exiting — stepRet's thread-exit case does not set
// Observable itself, so a drop in thread count is treated as an
// equivalent implicit boundary here: the scheduler must be free to pick
// a different thread once one has finished.
func chainWalk(st *eval.State, tid int) ([]leaf, error) {
	startThreads := st.Control.NumThreads()
	succs, err := st.Step(tid)
	if err != nil {
		return nil, err
	}

	var out []leaf
	for _, s := range succs {
		// A fork whose explicit prune contradicted itself (spec.md §4.3's
		// "explicit prune soundness") denotes no concrete valuation at
		// all; Empty latches permanently once set, so every descendant of
		// a dead fork is dead too and the walk stops here instead of
		// wasting work exploring an unreachable branch.
		if s.State.Explicit.Empty() {
			continue
		}
		if s.IsError {
			out = append(out, leaf{State: s.State, Tid: tid, IsError: true})
			continue
		}
		if s.Observable || s.State.Control.NumThreads() != startThreads {
			out = append(out, leaf{State: s.State, Tid: tid})
			continue
		}
		rest, err := chainWalk(s.State, tid)
		if err != nil {
			return nil, err
		}
		out = append(out, rest...)
	}
	return out, nil
}

// Expand returns every observable-boundary successor of st, across every
// thread eligible to run next (spec.md §5's "the driver chooses" —
// modelled here as "all eligible choices", leaving the actual scheduling
// policy to whichever driver consumes Expand's result: reachability
// explores all of them, the LTL driver does too, shuffled into
// randomised order to reduce degenerate worst cases (spec.md §4.10.1)).
func Expand(st *eval.State) ([]leaf, error) {
	if st.Explicit.Empty() {
		return nil, nil
	}
	var all []leaf
	for tid := 0; tid < st.Control.NumThreads(); tid++ {
		ls, err := chainWalk(st, tid)
		if err != nil {
			return nil, err
		}
		all = append(all, ls...)
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all, nil
}
