package smt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/symbion/symck/pkg/formula"
)

// termSort discriminates the two SMT-LIB2 sorts a translated term can have.
// formula.Ident never denotes a boolean cell (original_source only ever
// builds bv_const identifiers), so a variable is always sortBV.
type termSort int

const (
	sortBV termSort = iota
	sortBool
)

type stackEntry struct {
	term  string
	sort  termSort
	width uint8
}

// varName renders the SMT-LIB2 identifier for a program variable, grounded
// on z3.cpp's identifier2z3: "<prefix>_seg<seg>_off<off>_gen<gen>".
func varName(prefix string, id formula.Ident) string {
	return fmt.Sprintf("%s_seg%d_off%d_gen%d", prefix, id.Seg, id.Off, id.Gen)
}

// VarName exposes varName for callers outside this package that need to
// name a variable exactly as Translate would (e.g. subsumption's quantified
// query, which binds the same atoms Translate would otherwise declare).
func VarName(prefix string, id formula.Ident) string { return varName(prefix, id) }

// DeclConst renders the declare-const statement Translate would emit for a
// variable of the given width under prefix, without requiring a full
// formula to translate.
func DeclConst(prefix string, id formula.Ident) string {
	return fmt.Sprintf("(declare-const %s (_ BitVec %d))", varName(prefix, id), id.Bw)
}

// Translate lowers f to an SMT-LIB2 term under the given variable prefix
// (the "a"/"b" tagging z3.cpp uses to keep the two sides of a subsumption
// query's variables apart), returning the term text and the declare-const
// statements every free variable it mentions needs.
//
// An empty formula translates to "true", matching toz3's empty-stack case.
func Translate(f formula.Formula, prefix string) (term string, decls []string, err error) {
	items := f.Items()
	if len(items) == 0 {
		return "true", nil, nil
	}

	var stack []stackEntry
	declared := make(map[string]string) // name -> declare-const line, dedup

	pop := func() stackEntry {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return e
	}

	for _, it := range items {
		switch it.Kind {
		case formula.KindConstant:
			w := it.Ident.Bw
			stack = append(stack, stackEntry{
				term:  fmt.Sprintf("(_ bv%d %d)", uint64(it.Value)&mask(w), w),
				sort:  sortBV,
				width: w,
			})
		case formula.KindBoolVal:
			lit := "false"
			if it.Value != 0 {
				lit = "true"
			}
			stack = append(stack, stackEntry{term: lit, sort: sortBool})
		case formula.KindIdentifier:
			name := varName(prefix, it.Ident)
			if _, ok := declared[name]; !ok {
				declared[name] = fmt.Sprintf("(declare-const %s (_ BitVec %d))", name, it.Ident.Bw)
			}
			stack = append(stack, stackEntry{term: name, sort: sortBV, width: it.Ident.Bw})
		case formula.KindOp:
			if op := it.Op; op == formula.OpNot || op == formula.OpBNot || op == formula.OpZExt || op == formula.OpSExt || op == formula.OpTrunc {
				if len(stack) < 1 {
					return "", nil, &Error{Op: "translate", Err: fmt.Errorf("stack underflow at unary %s", it.Op)}
				}
				l := pop()
				e, terr := translateUnary(it, l)
				if terr != nil {
					return "", nil, terr
				}
				stack = append(stack, e)
				continue
			}
			if len(stack) < 2 {
				return "", nil, &Error{Op: "translate", Err: fmt.Errorf("stack underflow at binary %s", it.Op)}
			}
			r := pop()
			l := pop()
			e, terr := translateBinary(it, l, r)
			if terr != nil {
				return "", nil, terr
			}
			stack = append(stack, e)
		}
	}

	if len(stack) != 1 {
		return "", nil, &Error{Op: "translate", Err: fmt.Errorf("formula left %d residual terms, want 1", len(stack))}
	}

	names := make([]string, 0, len(declared))
	for n := range declared {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		decls = append(decls, declared[n])
	}
	return stack[0].term, decls, nil
}

func mask(bw uint8) uint64 {
	if bw >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bw) - 1
}

func translateUnary(it formula.Item, l stackEntry) (stackEntry, error) {
	switch it.Op {
	case formula.OpNot:
		return stackEntry{term: fmt.Sprintf("(not %s)", l.term), sort: sortBool}, nil
	case formula.OpBNot:
		return stackEntry{term: fmt.Sprintf("(bvnot %s)", l.term), sort: sortBV, width: l.width}, nil
	case formula.OpZExt:
		target := uint8(it.Value)
		return stackEntry{
			term:  fmt.Sprintf("((_ zero_extend %d) %s)", target-l.width, l.term),
			sort:  sortBV, width: target,
		}, nil
	case formula.OpSExt:
		target := uint8(it.Value)
		return stackEntry{
			term:  fmt.Sprintf("((_ sign_extend %d) %s)", target-l.width, l.term),
			sort:  sortBV, width: target,
		}, nil
	case formula.OpTrunc:
		target := uint8(it.Value)
		return stackEntry{
			term:  fmt.Sprintf("((_ extract %d 0) %s)", target-1, l.term),
			sort:  sortBV, width: target,
		}, nil
	default:
		return stackEntry{}, &Error{Op: "translate", Err: fmt.Errorf("unknown unary op %s", it.Op)}
	}
}

func translateBinary(it formula.Item, l, r stackEntry) (stackEntry, error) {
	bv := func(op string) stackEntry {
		return stackEntry{term: fmt.Sprintf("(%s %s %s)", op, l.term, r.term), sort: sortBV, width: l.width}
	}
	b := func(op string) stackEntry {
		return stackEntry{term: fmt.Sprintf("(%s %s %s)", op, l.term, r.term), sort: sortBool}
	}

	switch it.Op {
	case formula.OpPlus:
		return bv("bvadd"), nil
	case formula.OpMinus:
		return bv("bvsub"), nil
	case formula.OpTimes:
		return bv("bvmul"), nil
	case formula.OpDiv:
		return bv("bvsdiv"), nil
	case formula.OpSRem:
		return bv("bvsrem"), nil
	case formula.OpURem:
		return bv("bvurem"), nil
	case formula.OpBAnd:
		return bv("bvand"), nil
	case formula.OpBOr:
		return bv("bvor"), nil
	case formula.OpBXor:
		return bv("bvxor"), nil
	case formula.OpShl:
		return bv("bvshl"), nil
	case formula.OpShr:
		return bv("bvlshr"), nil
	case formula.OpConcat:
		return stackEntry{term: fmt.Sprintf("(concat %s %s)", l.term, r.term), sort: sortBV, width: l.width + r.width}, nil
	case formula.OpEq:
		return b("="), nil
	case formula.OpNEq:
		return stackEntry{term: fmt.Sprintf("(distinct %s %s)", l.term, r.term), sort: sortBool}, nil
	case formula.OpLT:
		return b("bvslt"), nil
	case formula.OpULT:
		return b("bvult"), nil
	case formula.OpLEq:
		return b("bvsle"), nil
	case formula.OpULEq:
		return b("bvule"), nil
	case formula.OpGT:
		return b("bvsgt"), nil
	case formula.OpUGT:
		return b("bvugt"), nil
	case formula.OpGEq:
		return b("bvsge"), nil
	case formula.OpUGEq:
		return b("bvuge"), nil
	case formula.OpAnd:
		return b("and"), nil
	case formula.OpOr:
		return b("or"), nil
	default:
		return stackEntry{}, &Error{Op: "translate", Err: fmt.Errorf("unknown binary op %s", it.Op)}
	}
}

// JoinDecls merges declaration lists from multiple Translate calls, deduping
// repeated "declare-const" lines (the same variable commonly appears in both
// the path condition and several definitions).
func JoinDecls(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, d := range l {
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// assertionBlock renders a full SMT-LIB2 script: declarations, one
// (assert ...) per formula, followed by (check-sat).
func assertionBlock(decls []string, asserts []string) string {
	var b strings.Builder
	for _, d := range decls {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	for _, a := range asserts {
		fmt.Fprintf(&b, "(assert %s)\n", a)
	}
	b.WriteString("(check-sat)\n")
	return b.String()
}
