// Package statedb implements the state database (spec.md §4.9): two
// indexes over stored items — state2item keyed by the explicit blob's
// bytes, id2item keyed by the opaque StateId the database hands back —
// each item owning its canonical explicit blob plus a symbolic candidate
// container.
package statedb

import (
	"errors"
	"fmt"

	"github.com/symbion/symck/pkg/blob"
	"github.com/symbion/symck/pkg/smt"
	"github.com/symbion/symck/pkg/solvercache"
	"github.com/symbion/symck/pkg/stats"
	"github.com/symbion/symck/pkg/symbolic"
)

// StateId pairs the explicit id (stable per distinct explicit blob) with
// the id the item's candidate container allocated for the symbolic part
// (spec.md §3.9).
type StateId struct {
	ExplicitID uint64
	SymbolicID uint64
}

// ErrUnknownState is returned by GetState for an id the database never
// allocated — spec.md §7's "Database miss" error kind, a bug indicator
// for the caller rather than a recoverable search outcome.
var ErrUnknownState = errors.New("statedb: unknown state id")

type item struct {
	explicitID uint64
	blob       *blob.Blob
	candidates CandidateContainer
}

// Database is the driver-owned (spec.md §5) store of every state
// reached so far.
type Database struct {
	state2item     map[string]int // explicit-blob bytes -> items index
	id2item        map[StateId]int
	items          []*item
	nextExplicitID uint64
	reg            *stats.Registry
}

// New returns an empty database. reg may be nil if the caller does not
// want states-explored/novel counters recorded.
func New(reg *stats.Registry) *Database {
	return &Database{
		state2item: map[string]int{},
		id2item:    map[StateId]int{},
		reg:        reg,
	}
}

// InsertCheck inserts b, returning its StateId and whether it was novel
// (a fresh explicit key, or a symbolic candidate not already subsumed by
// one already stored under its explicit key).
func (db *Database) InsertCheck(b *blob.Blob, bridge *smt.Bridge, cache *solvercache.Cache, timeoutEnabled bool, unknownCount *int) (StateId, bool, error) {
	if db.reg != nil {
		db.reg.Incr(stats.StatesExplored)
	}

	key := b.ExplicitKey()
	idx, ok := db.state2item[key]
	var it *item
	if !ok {
		it = &item{
			explicitID: db.nextExplicitID,
			blob:       b,
			candidates: NewLinearCandidateContainer(),
		}
		db.nextExplicitID++
		db.items = append(db.items, it)
		idx = len(db.items) - 1
		db.state2item[key] = idx
	} else {
		it = db.items[idx]
	}

	sym, err := b.DecodeSymbolic()
	if err != nil {
		return StateId{}, false, fmt.Errorf("statedb: decoding symbolic region: %w", err)
	}

	symID, isNew := it.candidates.InsertCheck(sym, bridge, cache, db.reg, timeoutEnabled, unknownCount)
	sid := StateId{ExplicitID: it.explicitID, SymbolicID: symID}
	db.id2item[sid] = idx

	if isNew && db.reg != nil {
		db.reg.Incr(stats.StatesNovel)
	}
	return sid, isNew, nil
}

// Insert is InsertCheck without the novelty flag, for callers that only
// need the id (e.g. re-inserting a state already known to be novel).
func (db *Database) Insert(b *blob.Blob, bridge *smt.Bridge, cache *solvercache.Cache, timeoutEnabled bool, unknownCount *int) (StateId, error) {
	id, _, err := db.InsertCheck(b, bridge, cache, timeoutEnabled, unknownCount)
	return id, err
}

// GetState looks up a previously inserted state by id.
func (db *Database) GetState(id StateId) (*blob.Blob, *symbolic.Store, error) {
	idx, ok := db.id2item[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %+v", ErrUnknownState, id)
	}
	it := db.items[idx]
	sym := it.candidates.Get(id.SymbolicID)
	if sym == nil {
		return nil, nil, fmt.Errorf("%w: %+v", ErrUnknownState, id)
	}
	return it.blob, sym, nil
}

// NumItems reports how many distinct explicit keys are stored.
func (db *Database) NumItems() int { return len(db.items) }
