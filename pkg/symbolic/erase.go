package symbolic

import (
	"github.com/symbion/symck/pkg/formula"
	"github.com/symbion/symck/pkg/smt"
)

// removeDefinitions drops every definition matching pred, then eliminates
// references to them from the remaining definitions and the path
// condition by repeated substitution until a fixed point, and finally
// restores canonical sort order. Mirrors SMTStore::removeDefinitions.
func (s *Store) removeDefinitions(pred func(formula.Definition) bool) {
	var removed []formula.Definition
	kept := s.definitions[:0:0]
	for _, d := range s.definitions {
		if pred(d) {
			removed = append(removed, d)
		} else {
			kept = append(kept, d)
		}
	}
	s.definitions = kept

	if len(removed) == 0 {
		return
	}

	for {
		changed := false
		for i, pc := range s.pathCondition {
			for _, def := range removed {
				next := pc.Substitute(def.Ident, def.Body)
				if !next.Equal(pc) {
					changed = true
					pc = next
				}
			}
			s.pathCondition[i] = pc
		}
		for i, d := range s.definitions {
			for j := len(removed) - 1; j >= 0; j-- {
				def := removed[j]
				next := d.Substitute(def.Ident, def.Body)
				if !next.Equal(d) {
					changed = true
					d = next
				}
			}
			s.definitions[i] = d
		}
		if !changed {
			break
		}
	}

	formula.SortDefinitions(s.definitions)
}

// AddSegment inserts a new locally-addressed segment at position id,
// allocating it a fresh, never-reused global id. Mirrors
// SMTStore::addSegment.
func (s *Store) AddSegment(id int, bitWidths []uint8) {
	global := s.fstUnusedID
	s.fstUnusedID++

	s.segmentsMapping = append(s.segmentsMapping, 0)
	copy(s.segmentsMapping[id+1:], s.segmentsMapping[id:])
	s.segmentsMapping[id] = global

	gens := make([]uint16, len(bitWidths))
	s.generations = append(s.generations, nil)
	copy(s.generations[id+1:], s.generations[id:])
	s.generations[id] = gens

	widths := make([]uint8, len(bitWidths))
	copy(widths, bitWidths)
	s.bitWidths = append(s.bitWidths, nil)
	copy(s.bitWidths[id+1:], s.bitWidths[id:])
	s.bitWidths[id] = widths
}

// EraseSegment removes the segment at local position id, eliminating every
// definition whose LHS lay in it (substituting it out of whatever still
// depends on it) and re-simplifying. Mirrors SMTStore::eraseSegment, which
// always calls simplify() once the segment's definitions are gone. bridge
// may be nil to skip re-simplification (e.g. in unit tests that don't stand
// up a solver process); tactic is ignored in that case.
func (s *Store) EraseSegment(id int, bridge *smt.Bridge, tactic smt.Tactic) {
	mapped := s.segmentsMapping[id]
	s.removeDefinitions(func(d formula.Definition) bool { return d.IsInSegment(mapped) })

	s.segmentsMapping = append(s.segmentsMapping[:id], s.segmentsMapping[id+1:]...)
	s.generations = append(s.generations[:id], s.generations[id+1:]...)
	s.bitWidths = append(s.bitWidths[:id], s.bitWidths[id+1:]...)

	if bridge != nil {
		s.Simplify(bridge, tactic)
	}
}

// Clear empties the store entirely.
func (s *Store) Clear() {
	s.pathCondition = nil
	s.definitions = nil
	s.segmentsMapping = nil
	s.generations = nil
	s.bitWidths = nil
	s.fstUnusedID = 0
}
