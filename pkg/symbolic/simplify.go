package symbolic

import (
	"github.com/symbion/symck/pkg/formula"
	"github.com/symbion/symck/pkg/smt"
)

// Simplify conjoins the path condition into a single formula and asks the
// solver to rewrite it under tactic, replacing the path condition with the
// single simplified result. Mirrors SMTStore::simplify(), which always
// collapses path_condition down to one element even when simplification
// changes nothing structural, so later pc.size() checks (e.g. Empty's
// "no clauses" fast path) stay meaningful after a segment erase.
func (s *Store) Simplify(bridge *smt.Bridge, tactic smt.Tactic) {
	var whole formula.Formula
	for _, pc := range s.pathCondition {
		whole = whole.And(pc)
	}
	simplified := bridge.Simplify(whole, tactic)
	if simplified.Size() == 0 {
		s.pathCondition = nil
		return
	}
	s.pathCondition = []formula.Formula{simplified}
}

// PushPropGuard renames g's identifiers to the store's current generations
// before conjoining it into the path condition, mirroring
// SMTStore::pushPropGuard: an LTL edge guard is written against a property
// automaton's own fresh variable numbering and must be re-anchored to
// whatever generation the referenced program variables are actually at
// right now before it can be asserted as a real constraint.
func (s *Store) PushPropGuard(g formula.Formula) {
	renamed := g
	for _, id := range g.CollectVariables(nil) {
		for seg := 0; seg < s.NumSegments(); seg++ {
			if s.globalSeg(seg) != id.Seg {
				continue
			}
			if int(id.Off) >= len(s.bitWidths[seg]) {
				continue
			}
			current := s.getGeneration(seg, int(id.Off), false)
			if current == id.Gen {
				continue
			}
			want := formula.Ident{Seg: id.Seg, Off: id.Off, Gen: current, Bw: id.Bw}
			renamed = renamed.Substitute(id, formula.BuildIdentifier(want))
		}
	}
	s.PushCondition(renamed)
}
