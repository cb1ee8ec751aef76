package symbolic

import "github.com/symbion/symck/pkg/formula"

// Each Implement* op builds dst's defining expression as a_expr <op> b_expr
// over the operands' *current* generations (buildExpression with
// advanceGeneration=false) and pushes it as dst's next definition — which
// itself is what advances dst's generation. Mirrors BaseSMTStore's
// implement_* template methods (base_smt_datastore.h), which all follow
// this "build operand expressions, then push_definition" shape.

func (s *Store) binOp(dst, a, b Value, join func(l, r formula.Formula) formula.Formula) {
	l := s.buildExpression(a, false)
	r := s.buildExpression(b, false)
	s.PushDefinition(dst, join(l, r))
}

func (s *Store) ImplementAdd(dst, a, b Value) { s.binOp(dst, a, b, formula.Formula.Plus) }
func (s *Store) ImplementSub(dst, a, b Value) { s.binOp(dst, a, b, formula.Formula.Minus) }
func (s *Store) ImplementMult(dst, a, b Value) { s.binOp(dst, a, b, formula.Formula.Times) }
func (s *Store) ImplementDiv(dst, a, b Value) { s.binOp(dst, a, b, formula.Formula.Div) }
func (s *Store) ImplementSRem(dst, a, b Value) { s.binOp(dst, a, b, formula.Formula.SRem) }
func (s *Store) ImplementURem(dst, a, b Value) { s.binOp(dst, a, b, formula.Formula.URem) }
func (s *Store) ImplementAnd(dst, a, b Value)  { s.binOp(dst, a, b, formula.Formula.BAnd) }
func (s *Store) ImplementOr(dst, a, b Value)   { s.binOp(dst, a, b, formula.Formula.BOr) }
func (s *Store) ImplementXor(dst, a, b Value)  { s.binOp(dst, a, b, formula.Formula.BXor) }
func (s *Store) ImplementLeftShift(dst, a, b Value)  { s.binOp(dst, a, b, formula.Formula.Shl) }
func (s *Store) ImplementRightShift(dst, a, b Value) { s.binOp(dst, a, b, formula.Formula.Shr) }

// ImplementStore copies what's current symbolic expression into dst
// unchanged (a plain store through the symbolic side).
func (s *Store) ImplementStore(dst, what Value) {
	s.PushDefinition(dst, s.buildExpression(what, false))
}

func (s *Store) ImplementZExt(dst, a Value, targetBw int) {
	s.PushDefinition(dst, s.buildExpression(a, false).ZExt(targetBw))
}

func (s *Store) ImplementSExt(dst, a Value, targetBw int) {
	s.PushDefinition(dst, s.buildExpression(a, false).SExt(targetBw))
}

func (s *Store) ImplementTrunc(dst, a Value, targetBw int) {
	s.PushDefinition(dst, s.buildExpression(a, false).Trunc(targetBw))
}

// ImplementInput advances v's generation without installing a definition
// for it, treating it as an unconstrained input (spec.md §4.4
// "implement_input(v, bw): advance v's generation without defining it").
func (s *Store) ImplementInput(v Value) {
	s.getGeneration(v.Var.Seg, v.Var.Off, true)
}

// Prune conjoins a new path-condition clause asserting the predicate
// between a and b. Mirrors SMTStore's prune, which (via BaseSMTStore)
// builds the ICmp expression and calls push_condition.
func (s *Store) Prune(a, b Value, op ICmpOp) {
	l := s.buildExpression(a, false)
	r := s.buildExpression(b, false)
	s.PushCondition(icmpFormula(l, r, op))
}

// ICmpOp mirrors explicitstore.ICmpOp's predicate set so the evaluator can
// prune identically regardless of which store backs an operand.
type ICmpOp int

const (
	ICmpEQ ICmpOp = iota
	ICmpNE
	ICmpUGT
	ICmpUGE
	ICmpULT
	ICmpULE
	ICmpSGT
	ICmpSGE
	ICmpSLT
	ICmpSLE
)

func icmpFormula(l, r formula.Formula, op ICmpOp) formula.Formula {
	switch op {
	case ICmpEQ:
		return l.Eq(r)
	case ICmpNE:
		return l.NEq(r)
	case ICmpUGT:
		return l.UGT(r)
	case ICmpUGE:
		return l.UGEq(r)
	case ICmpULT:
		return l.ULT(r)
	case ICmpULE:
		return l.ULEq(r)
	case ICmpSGT:
		return l.GT(r)
	case ICmpSGE:
		return l.GEq(r)
	case ICmpSLT:
		return l.LT(r)
	case ICmpSLE:
		return l.LEq(r)
	default:
		panic("symbolic: unknown ICmpOp")
	}
}
