package formula

import "testing"

func TestSortDefinitionsCanonical(t *testing.T) {
	d1 := Definition{Ident: Ident{Seg: 1, Off: 0, Gen: 1, Bw: 8}, Body: BuildConstant(1, 8)}
	d0 := Definition{Ident: Ident{Seg: 0, Off: 0, Gen: 1, Bw: 8}, Body: BuildConstant(2, 8)}

	defs := []Definition{d1, d0}
	SortDefinitions(defs)

	if !defs[0].Equal(d0) || !defs[1].Equal(d1) {
		t.Fatalf("expected canonical order [d0, d1], got %+v", defs)
	}
}

func TestDefinitionSetEqual(t *testing.T) {
	d := Definition{Ident: Ident{Seg: 0, Off: 0, Gen: 1, Bw: 8}, Body: BuildConstant(1, 8)}
	a := []Definition{d}
	b := []Definition{d}
	if !DefinitionSetEqual(a, b) {
		t.Errorf("expected equal definition sets to compare equal")
	}
	c := []Definition{{Ident: d.Ident, Body: BuildConstant(2, 8)}}
	if DefinitionSetEqual(a, c) {
		t.Errorf("expected different bodies to compare unequal")
	}
}

func TestDefinitionSubstituteEliminatesDependency(t *testing.T) {
	removed := Ident{Seg: 3, Off: 0, Gen: 0, Bw: 8}
	dependent := Definition{
		Ident: Ident{Seg: 0, Off: 0, Gen: 1, Bw: 8},
		Body:  BuildIdentifier(removed).Plus(BuildConstant(1, 8)),
	}
	out := dependent.Substitute(removed, BuildConstant(5, 8))
	if out.DependsOn(removed.Seg, removed.Off, removed.Gen) {
		t.Fatalf("expected substitution to eliminate dependency, got %v", out.Body)
	}
}
