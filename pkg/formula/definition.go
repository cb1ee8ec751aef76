package formula

import "sort"

// Definition binds ident's logical meaning to body: "ident = body"
// (spec.md §3.2). Definitions are carried separately from the formula
// they define so the symbolic store can index by LHS without re-parsing
// an equality out of the RPN stream.
type Definition struct {
	Ident Ident
	Body  Formula
}

// ToFormula renders the definition as the equality it denotes.
func (d Definition) ToFormula() Formula {
	return BuildIdentifier(d.Ident).Eq(d.Body)
}

// DependsOn reports whether the definition's body mentions the given
// variable generation.
func (d Definition) DependsOn(seg, off, gen uint16) bool {
	return d.Body.DependsOn(seg, off, gen)
}

// IsInSegment reports whether the definition's LHS lives in the given
// (global) segment.
func (d Definition) IsInSegment(seg uint16) bool { return d.Ident.Seg == seg }

// IsOffset reports whether the definition's LHS is at the given offset.
func (d Definition) IsOffset(off uint16) bool { return d.Ident.Off == off }

// IsGeneration reports whether the definition's LHS is at the given
// generation.
func (d Definition) IsGeneration(gen uint16) bool { return d.Ident.Gen == gen }

// Substitute replaces every occurrence of pattern inside the body with
// replacement, returning a new Definition. The LHS ident is untouched —
// substituting into a definition's own right-hand side is how segment
// erasure (spec.md §4.4) eliminates dangling references.
func (d Definition) Substitute(pattern Ident, replacement Formula) Definition {
	return Definition{Ident: d.Ident, Body: d.Body.Substitute(pattern, replacement)}
}

// Less gives Definitions the canonical order mandated by spec.md §3.2 and
// §4.1: primarily by LHS ident, then by the RPN sequence of the body.
func (d Definition) Less(o Definition) bool {
	if d.Ident != o.Ident {
		return d.Ident.Less(o.Ident)
	}
	return d.Body.Less(o.Body)
}

// Equal compares two definitions structurally (ident plus syntactic body
// equality), as used by the subsumption syntactic shortcut (spec.md §4.4).
func (d Definition) Equal(o Definition) bool {
	return d.Ident == o.Ident && d.Body.Equal(o.Body)
}

// SortDefinitions sorts a definition slice in place into canonical order.
func SortDefinitions(defs []Definition) {
	sort.Slice(defs, func(i, j int) bool { return defs[i].Less(defs[j]) })
}

// DefinitionSetEqual compares two canonically-sorted definition slices for
// element-wise equality — the first half of the subseteq syntactic
// shortcut (spec.md §4.4 step 1).
func DefinitionSetEqual(a, b []Definition) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// FormulaSetEqual compares two path-condition slices element-wise on RPN.
func FormulaSetEqual(a, b []Formula) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
