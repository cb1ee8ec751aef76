package symbolic

import (
	"bytes"
	"testing"

	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/formula"
)

func TestPushDefinitionAdvancesGeneration(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{8, 8})

	dst := explicitstore.VarValue(0, 0)
	a := explicitstore.VarValue(0, 1)

	s.ImplementAdd(dst, a, explicitstore.Const(5, 8))
	if len(s.Definitions()) != 1 {
		t.Fatalf("expected one definition after first add, got %d", len(s.Definitions()))
	}
	firstGen := s.Definitions()[0].Ident.Gen
	if firstGen != 1 {
		t.Errorf("first generation should be 1 (post-increment), got %d", firstGen)
	}

	s.ImplementAdd(dst, a, explicitstore.Const(7, 8))
	if len(s.Definitions()) != 1 {
		t.Fatalf("stale generation-1 definition should have been dropped, got %d defs", len(s.Definitions()))
	}
	if s.Definitions()[0].Ident.Gen != 2 {
		t.Errorf("second generation should be 2, got %d", s.Definitions()[0].Ident.Gen)
	}
}

func TestPushDefinitionsStaySorted(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{8, 8, 8})

	s.ImplementStore(explicitstore.VarValue(0, 2), explicitstore.Const(1, 8))
	s.ImplementStore(explicitstore.VarValue(0, 0), explicitstore.Const(2, 8))
	s.ImplementStore(explicitstore.VarValue(0, 1), explicitstore.Const(3, 8))

	defs := s.Definitions()
	for i := 1; i < len(defs); i++ {
		if !defs[i-1].Less(defs[i]) && !defs[i-1].Equal(defs[i]) {
			t.Fatalf("definitions out of order at %d: %+v then %+v", i, defs[i-1], defs[i])
		}
	}
}

func TestEraseSegmentSubstitutesDanglingReferences(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{8}) // the segment that will be erased
	s.AddSegment(1, []uint8{8}) // survives

	tmp := explicitstore.VarValue(0, 0)
	s.ImplementStore(tmp, explicitstore.Const(9, 8))

	survivor := explicitstore.VarValue(1, 0)
	s.ImplementStore(survivor, tmp) // survivor's definition references seg 0's value

	beforeErase := s.Definitions()
	if len(beforeErase) != 2 {
		t.Fatalf("expected 2 definitions before erase, got %d", len(beforeErase))
	}

	s.EraseSegment(0, nil, 0)

	defs := s.Definitions()
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition after erasing segment 0, got %d", len(defs))
	}
	for _, it := range defs[0].Body.Items() {
		if it.Kind == formula.KindIdentifier && it.Ident.Seg == 0 {
			t.Fatalf("surviving definition still references erased segment: %+v", defs[0])
		}
	}
}

func TestCollectVariablesAndDependsOn(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{8})
	v := explicitstore.VarValue(0, 0)
	s.Prune(v, explicitstore.Const(3, 8), ICmpEQ)

	vars := s.CollectVariables()
	if len(vars) != 1 {
		t.Fatalf("expected 1 variable mentioned, got %d", len(vars))
	}
	if !s.DependsOn(vars[0].Seg, vars[0].Off, vars[0].Gen) {
		t.Errorf("DependsOn should find the variable the path condition just used")
	}
	if s.DependsOn(vars[0].Seg, vars[0].Off, vars[0].Gen+1) {
		t.Errorf("DependsOn should not match an unrelated generation")
	}
}

func TestSubseteqSyntacticShortcut(t *testing.T) {
	a := New()
	a.AddSegment(0, []uint8{8})
	a.Prune(explicitstore.VarValue(0, 0), explicitstore.Const(3, 8), ICmpEQ)

	b := New()
	b.AddSegment(0, []uint8{8})
	b.Prune(explicitstore.VarValue(0, 0), explicitstore.Const(3, 8), ICmpEQ)

	unknown := 0
	// No bridge is ever dialed: identical definitions (none) and
	// identical, identically-ordered path conditions short-circuit before
	// any solver call is attempted.
	if !Subseteq(b, a, nil, nil, nil, false, &unknown) {
		t.Fatalf("syntactically identical stores must be reported subseteq without a solver call")
	}
}

func TestWireRoundTrip(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{8, 16})
	v := explicitstore.VarValue(0, 0)
	s.ImplementStore(v, explicitstore.Const(7, 8))
	s.Prune(v, explicitstore.Const(7, 8), ICmpEQ)

	var buf bytes.Buffer
	if err := s.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	out := New()
	if err := out.ReadFrom(&buf); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	if out.NumSegments() != s.NumSegments() {
		t.Fatalf("segment count mismatch: got %d, want %d", out.NumSegments(), s.NumSegments())
	}
	if len(out.Definitions()) != len(s.Definitions()) {
		t.Fatalf("definition count mismatch: got %d, want %d", len(out.Definitions()), len(s.Definitions()))
	}
	if !out.Definitions()[0].Equal(s.Definitions()[0]) {
		t.Errorf("definition changed across round trip: got %+v, want %+v", out.Definitions()[0], s.Definitions()[0])
	}
	if len(out.PathCondition()) != len(s.PathCondition()) {
		t.Fatalf("path condition count mismatch: got %d, want %d", len(out.PathCondition()), len(s.PathCondition()))
	}
	if !out.PathCondition()[0].Equal(s.PathCondition()[0]) {
		t.Errorf("path condition changed across round trip")
	}
}

func TestAddSegmentInsertsWithFreshGlobalID(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{8})
	s.AddSegment(1, []uint8{8})
	s.AddSegment(1, []uint8{8}) // insert between

	if s.NumSegments() != 3 {
		t.Fatalf("expected 3 segments, got %d", s.NumSegments())
	}
	ids := map[uint16]bool{}
	for i := 0; i < s.NumSegments(); i++ {
		g := s.globalSeg(i)
		if ids[g] {
			t.Fatalf("global segment id %d reused", g)
		}
		ids[g] = true
	}
}

func TestPartitionedPushConditionGroupsByDependency(t *testing.T) {
	p := NewPartitioned()
	p.AddSegment(0, []uint8{8, 8})

	x := explicitstore.VarValue(0, 0)
	y := explicitstore.VarValue(0, 1)
	p.Prune(x, explicitstore.Const(1, 8), ICmpEQ)
	p.Prune(y, explicitstore.Const(2, 8), ICmpEQ)

	if len(p.groups) != 2 {
		t.Fatalf("independent constraints should sit in separate groups, got %d groups", len(p.groups))
	}
}

func TestPartitionedSubseteqSyntacticShortcut(t *testing.T) {
	a := NewPartitioned()
	a.AddSegment(0, []uint8{8})
	a.Prune(explicitstore.VarValue(0, 0), explicitstore.Const(5, 8), ICmpEQ)

	b := NewPartitioned()
	b.AddSegment(0, []uint8{8})
	b.Prune(explicitstore.VarValue(0, 0), explicitstore.Const(5, 8), ICmpEQ)

	unknown := 0
	if !SubseteqPartitioned(b, a, nil, nil, nil, false, &unknown) {
		t.Fatalf("syntactically identical groups must be reported subseteq without a solver call")
	}
}
