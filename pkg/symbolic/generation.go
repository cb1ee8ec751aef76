package symbolic

import "github.com/symbion/symck/pkg/formula"

// getGeneration returns a variable's generation. When advanceGeneration is
// set, it first drops any definition whose LHS is exactly the
// (segment, offset, *pre-advance* generation) triple, bumps the counter,
// and returns the *new* generation — the SSA-like "new assignment" step
// spec.md §4.4 describes. Mirrors SMTStore::get_generation, whose
// advancing overload returns the post-increment value because its local
// `g` is a reference into the same storage ++g mutates.
func (s *Store) getGeneration(localSeg, offset int, advanceGeneration bool) uint16 {
	g := s.generations[localSeg][offset]
	if !advanceGeneration {
		return g
	}
	segM := s.globalSeg(localSeg)
	off16 := uint16(offset)
	s.removeDefinitions(func(d formula.Definition) bool {
		return d.IsInSegment(segM) && d.IsOffset(off16) && d.IsGeneration(g)
	})
	g++
	s.generations[localSeg][offset] = g
	return g
}

// PushCondition appends f to the path condition. Unlike
// SMTStore::push_condition it does not simplify afterwards: the list stays
// in append order until a Simplify call (made by EraseSegment when it is
// given a bridge) collapses it.
func (s *Store) PushCondition(f formula.Formula) {
	s.pathCondition = append(s.pathCondition, f)
}

// PushDefinition advances dst's generation and installs Definition(dst@new,
// def), keeping the definition set sorted. Mirrors
// SMTStore::push_definition.
func (s *Store) PushDefinition(dst Value, def formula.Formula) {
	segM := s.globalSeg(dst.Var.Seg)
	gen := s.getGeneration(dst.Var.Seg, dst.Var.Off, true)
	ident := formula.Ident{
		Seg: segM,
		Off: uint16(dst.Var.Off),
		Gen: gen,
		Bw:  s.bitWidths[dst.Var.Seg][dst.Var.Off],
	}
	whole := formula.Definition{Ident: ident, Body: def}
	s.insertDefinitionSorted(whole)
}

func (s *Store) insertDefinitionSorted(d formula.Definition) {
	i := 0
	for i < len(s.definitions) && s.definitions[i].Less(d) {
		i++
	}
	s.definitions = append(s.definitions, formula.Definition{})
	copy(s.definitions[i+1:], s.definitions[i:])
	s.definitions[i] = d
}

// CollectVariables returns every distinct Ident mentioned across the path
// condition and definition set.
func (s *Store) CollectVariables() []formula.Ident {
	var out []formula.Ident
	for _, pc := range s.pathCondition {
		out = pc.CollectVariables(out)
	}
	for _, d := range s.definitions {
		out = d.ToFormula().CollectVariables(out)
	}
	return out
}

// DependsOnVar reports whether the store's constraints mention val's
// current generation.
func (s *Store) DependsOnVar(v Value) bool {
	id := s.buildItem(v)
	return s.DependsOn(id.Seg, id.Off, id.Gen)
}

// DependsOn reports whether any definition or path-condition clause
// mentions the exact (seg, off, gen) triple.
func (s *Store) DependsOn(seg, off, gen uint16) bool {
	for _, d := range s.definitions {
		if d.DependsOn(seg, off, gen) {
			return true
		}
	}
	for _, pc := range s.pathCondition {
		if pc.DependsOn(seg, off, gen) {
			return true
		}
	}
	return false
}
