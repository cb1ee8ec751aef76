package explicitstore

import (
	"bytes"
	"testing"
)

func TestAddSegmentAndArithmetic(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{8, 8})

	dst := VarValue(0, 0)
	a := VarValue(0, 1)
	s.SetCell(0, 1, 200, false)

	s.ImplementAdd(dst, a, Const(100, 8))
	if got := s.Get(dst); got != 44 { // (200+100) mod 256 = 44
		t.Errorf("ImplementAdd wrapped wrong: got %d, want 44", got)
	}
}

func TestURemAndSRemDiffer(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{8, 8})
	dst := VarValue(0, 0)
	// -5 mod 3, 8-bit two's complement: 0xFB (251)
	a := Const(251, 8)
	b := Const(3, 8)

	s.ImplementURem(dst, a, b)
	uresult := s.Get(dst)

	s.ImplementSRem(dst, a, b)
	sresult := s.Get(dst)

	if uresult == sresult {
		t.Fatalf("expected URem and SRem to differ on a negative operand, both gave %d", uresult)
	}
	if uresult != 251%3 {
		t.Errorf("URem = %d, want %d", uresult, 251%3)
	}
	if int8(sresult) != -5%3 {
		t.Errorf("SRem = %d, want %d", int8(sresult), -5%3)
	}
}

func TestPruneLatchesEmpty(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{8})
	s.SetCell(0, 0, 5, false)

	s.Prune(VarValue(0, 0), Const(5, 8), ICmpEQ)
	if s.Empty() {
		t.Fatalf("prune of a true predicate must not mark empty")
	}

	s.Prune(VarValue(0, 0), Const(6, 8), ICmpEQ)
	if !s.Empty() {
		t.Fatalf("prune of a false predicate must latch empty")
	}

	// Empty is sticky: a later true prune must not clear it.
	s.Prune(VarValue(0, 0), Const(5, 8), ICmpEQ)
	if !s.Empty() {
		t.Fatalf("empty flag must stay latched once set")
	}
}

func TestMovePointersShiftsOnlyAboveThreshold(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{64, 64})
	s.SetCell(0, 0, EncodePointer(5, 3), true)
	s.SetCell(0, 1, EncodePointer(1, 2), true)

	s.MovePointers(2, 1)

	seg, off := DecodePointer(s.Get(VarValue(0, 0)))
	if seg != 6 || off != 3 {
		t.Errorf("pointer above threshold not shifted: got seg=%d off=%d", seg, off)
	}
	seg2, off2 := DecodePointer(s.Get(VarValue(0, 1)))
	if seg2 != 1 || off2 != 2 {
		t.Errorf("pointer at/below threshold was shifted: got seg=%d off=%d", seg2, off2)
	}
}

func TestICmpNegateIsInvolution(t *testing.T) {
	ops := []ICmpOp{ICmpEQ, ICmpNE, ICmpUGT, ICmpUGE, ICmpULT, ICmpULE, ICmpSGT, ICmpSGE, ICmpSLT, ICmpSLE}
	for _, op := range ops {
		if op.Negate().Negate() != op {
			t.Errorf("Negate is not an involution for %d", op)
		}
		if op.Negate() == op {
			t.Errorf("Negate(%d) should differ from op", op)
		}
	}
}

func TestWireRoundTrip(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{8, 64})
	s.SetCell(0, 0, 42, false)
	s.SetCell(0, 1, EncodePointer(1, 0), true)
	s.Prune(VarValue(0, 0), Const(41, 8), ICmpEQ) // force empty=true

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
	if out.Get(VarValue(0, 0)) != 42 {
		t.Errorf("cell 0 mismatch: got %d", out.Get(VarValue(0, 0)))
	}
	if !out.CellIsPointer(0, 1) {
		t.Errorf("pointer flag lost in round trip")
	}
	if out.Empty() != s.Empty() {
		t.Errorf("empty flag mismatch after round trip")
	}
}

func TestAddSegmentShiftsLaterSegments(t *testing.T) {
	s := New()
	s.AddSegment(0, []uint8{8})
	s.SetCell(0, 0, 1, false)
	s.AddSegment(1, []uint8{8})
	s.SetCell(1, 0, 2, false)

	// Insert a new segment between them.
	s.AddSegment(1, []uint8{8})
	s.SetCell(1, 0, 99, false)

	if s.Get(VarValue(0, 0)) != 1 {
		t.Errorf("segment 0 disturbed by insert")
	}
	if s.Get(VarValue(2, 0)) != 2 {
		t.Errorf("old segment 1 should have shifted to 2, got %d", s.Get(VarValue(2, 0)))
	}
}
