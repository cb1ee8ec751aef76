// Package symbolic implements the symbolic-valued half of the hybrid
// store (spec.md §3.3/§4.4): a path condition, a canonically-sorted
// definition set, per-variable SSA-like generations, and subsumption via
// a quantified SMT query. Grounded on
// original_source/src/llvmsym/smtdatastore.h's SMTStore.
package symbolic

import (
	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/formula"
)

// Value is a reference into the symbolic store's local variable space, or
// a constant — the same operand shape the explicit store uses, so the
// evaluator can route a single Value to whichever store the multival flag
// selects (spec.md §4.8 "Binary arithmetic. Routed to the symbolic store
// iff any operand is multival").
type Value = explicitstore.Value

// Store holds the symbolic-valued side of one program state.
//
// segmentsMapping maps a store-local segment id (the position the
// evaluator addresses through, which shifts as frames are pushed/popped)
// to a stable global id that survives segment erasure — definitions keep
// referring to the global id even after the local numbering changes.
type Store struct {
	segmentsMapping []uint16
	generations     [][]uint16
	bitWidths       [][]uint8

	pathCondition []formula.Formula
	definitions   []formula.Definition

	fstUnusedID uint16
}

// New returns an empty store with no segments.
func New() *Store {
	return &Store{}
}

// NumSegments reports the number of locally addressable segments.
func (s *Store) NumSegments() int { return len(s.segmentsMapping) }

// PathCondition exposes the current path condition clauses, read-only.
func (s *Store) PathCondition() []formula.Formula { return s.pathCondition }

// Definitions exposes the current (canonically sorted) definition set,
// read-only.
func (s *Store) Definitions() []formula.Definition { return s.definitions }

// globalSeg maps a local segment id to its stable global id.
func (s *Store) globalSeg(localSeg int) uint16 { return s.segmentsMapping[localSeg] }

func (s *Store) bw(v Value) uint8 {
	if v.IsConstant() {
		return v.ConstBw()
	}
	return s.bitWidths[v.Var.Seg][v.Var.Off]
}

// buildItem returns the Ident a variable operand currently denotes (its
// global segment, offset, current generation, and bit width) without
// advancing its generation.
func (s *Store) buildItem(v Value) formula.Ident {
	return formula.Ident{
		Seg: s.globalSeg(v.Var.Seg),
		Off: uint16(v.Var.Off),
		Gen: s.getGeneration(v.Var.Seg, v.Var.Off, false),
		Bw:  s.bitWidths[v.Var.Seg][v.Var.Off],
	}
}

// buildExpression lowers an operand (constant or variable) to a Formula,
// optionally advancing the variable's generation first (used when the
// operand being built is itself the destination of a new definition).
func (s *Store) buildExpression(v Value, advanceGeneration bool) formula.Formula {
	if v.IsConstant() {
		return formula.BuildConstant(int64(v.ConstValue()), v.ConstBw())
	}
	gen := s.getGeneration(v.Var.Seg, v.Var.Off, advanceGeneration)
	return formula.BuildIdentifier(formula.Ident{
		Seg: s.globalSeg(v.Var.Seg),
		Off: uint16(v.Var.Off),
		Gen: gen,
		Bw:  s.bitWidths[v.Var.Seg][v.Var.Off],
	})
}
