package smt

import (
	"strings"
	"testing"

	"github.com/symbion/symck/pkg/formula"
)

func ident(seg, off, gen uint16, bw uint8) formula.Ident {
	return formula.Ident{Seg: seg, Off: off, Gen: gen, Bw: bw}
}

func TestTranslateEmptyFormulaIsTrue(t *testing.T) {
	term, decls, err := Translate(formula.Formula{}, "a")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if term != "true" || len(decls) != 0 {
		t.Errorf("got term=%q decls=%v, want true/[]", term, decls)
	}
}

func TestTranslateBinaryArithmetic(t *testing.T) {
	x := formula.BuildIdentifier(ident(0, 0, 0, 8))
	f := x.Plus(formula.BuildConstant(1, 8))

	term, decls, err := Translate(f, "a")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if term != "(bvadd a_seg0_off0_gen0 (_ bv1 8))" {
		t.Errorf("unexpected term: %s", term)
	}
	if len(decls) != 1 || !strings.Contains(decls[0], "a_seg0_off0_gen0") {
		t.Errorf("unexpected decls: %v", decls)
	}
}

func TestTranslateComparisonsUseCorrectSignedness(t *testing.T) {
	x := formula.BuildIdentifier(ident(0, 0, 0, 8))
	y := formula.BuildIdentifier(ident(0, 1, 0, 8))

	cases := []struct {
		f    formula.Formula
		want string
	}{
		{x.LT(y), "bvslt"},
		{x.ULT(y), "bvult"},
		{x.GEq(y), "bvsge"},
		{x.UGEq(y), "bvuge"},
	}
	for _, c := range cases {
		term, _, err := Translate(c.f, "a")
		if err != nil {
			t.Fatalf("Translate: %v", err)
		}
		if !strings.Contains(term, c.want) {
			t.Errorf("term %q missing expected operator %q", term, c.want)
		}
	}
}

func TestTranslateCastsCarryWidth(t *testing.T) {
	x := formula.BuildIdentifier(ident(0, 0, 0, 8))
	zext := x.ZExt(16)

	term, _, err := Translate(zext, "a")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if term != "((_ zero_extend 8) a_seg0_off0_gen0)" {
		t.Errorf("unexpected zext term: %s", term)
	}
}

func TestJoinDeclsDedupsAndSorts(t *testing.T) {
	a := []string{"(declare-const a_seg0_off1_gen0 (_ BitVec 8))"}
	b := []string{
		"(declare-const a_seg0_off1_gen0 (_ BitVec 8))",
		"(declare-const a_seg0_off0_gen0 (_ BitVec 8))",
	}
	got := JoinDecls(a, b)
	if len(got) != 2 {
		t.Fatalf("expected 2 deduped decls, got %d: %v", len(got), got)
	}
	if !strings.Contains(got[0], "off0") {
		t.Errorf("expected sorted output, got %v", got)
	}
}

func TestFromSExprRoundTripsArithmetic(t *testing.T) {
	x := ident(0, 0, 0, 8)
	f := formula.BuildIdentifier(x).Plus(formula.BuildConstant(1, 8))
	term, decls, err := Translate(f, "a")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	_ = decls

	exprs, err := parseSExprs(term)
	if err != nil || len(exprs) != 1 {
		t.Fatalf("parseSExprs: %v (%d exprs)", err, len(exprs))
	}
	widths := map[string]uint8{"a_seg0_off0_gen0": 8}
	back, err := fromSExpr(exprs[0], widths)
	if err != nil {
		t.Fatalf("fromSExpr: %v", err)
	}
	if !back.Equal(f) {
		t.Errorf("round trip mismatch: got %v, want %v", back, f)
	}
}

func TestParseGoalsResultConjoinsTerms(t *testing.T) {
	text := "(goals\n(goal (= a_seg0_off0_gen0 (_ bv1 8)) :precision precise :depth 1))"
	widths := map[string]uint8{"a_seg0_off0_gen0": 8}
	f, err := parseGoalsResult(text, widths)
	if err != nil {
		t.Fatalf("parseGoalsResult: %v", err)
	}
	if f.Size() == 0 {
		t.Errorf("expected non-empty formula")
	}
}

func TestParseGoalsResultEmptyGoalIsTrue(t *testing.T) {
	text := "(goals (goal :precision precise :depth 1))"
	f, err := parseGoalsResult(text, nil)
	if err != nil {
		t.Fatalf("parseGoalsResult: %v", err)
	}
	if !f.Equal(formula.BuildBoolVal(true)) {
		t.Errorf("expected true for an empty goal, got %v", f)
	}
}
