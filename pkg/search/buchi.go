package search

// BAState is one Büchi-automaton state, opaque except for equality.
type BAState int

// BAEdge is one outgoing Büchi-automaton transition, guarded by an
// atomic-proposition formula (spec.md §4.10.2).
type BAEdge struct {
	To    BAState
	Guard Expr
}

// Automaton is the BA the negated LTL property was translated to by the
// external LTL→BA translator (spec.md §1/§6.2: an external collaborator,
// interface only — this type is the interface, not a translator).
type Automaton struct {
	Initial    BAState
	Accepting  map[BAState]bool
	Edges      map[BAState][]BAEdge
}
