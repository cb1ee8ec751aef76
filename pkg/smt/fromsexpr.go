package smt

import (
	"fmt"
	"strings"

	"github.com/symbion/symck/pkg/formula"
)

// fromSExpr is the inverse of Translate: it rebuilds a formula.Formula from
// a solver-returned term, mirroring original_source's fromz3. widths maps a
// declared variable's SMT-LIB2 name back to its bit width, since the text
// form alone doesn't carry it for non-literal subterms.
func fromSExpr(e sexpr, widths map[string]uint8) (formula.Formula, error) {
	if e.isAtom() {
		switch e.atom {
		case "true":
			return formula.BuildBoolVal(true), nil
		case "false":
			return formula.BuildBoolVal(false), nil
		}
		if w, ok := widths[e.atom]; ok {
			if id, ok := parseVarName(e.atom); ok {
				id.Bw = w
				return formula.BuildIdentifier(id), nil
			}
		}
		if v, w, ok := parseBVLiteral(e, 0); ok {
			return formula.BuildConstant(v, w), nil
		}
		return formula.Formula{}, fmt.Errorf("smt: unrecognised atom %q", e.atom)
	}

	if v, w, ok := parseBVLiteral(e, 0); ok {
		return formula.BuildConstant(v, w), nil
	}

	if len(e.list) == 0 {
		return formula.Formula{}, fmt.Errorf("smt: empty list term")
	}
	head := e.list[0]

	// Indexed operator: ((_ zero_extend n) arg), ((_ sign_extend n) arg),
	// ((_ extract hi lo) arg).
	if !head.isAtom() && len(head.list) >= 2 && head.list[0].isAtom() && head.list[0].atom == "_" {
		arg, err := fromSExpr(e.list[1], widths)
		if err != nil {
			return formula.Formula{}, err
		}
		switch head.list[1].atom {
		case "zero_extend":
			n := atoiOrZero(head.list[2].atom)
			return arg.ZExt(argWidth(arg) + n), nil
		case "sign_extend":
			n := atoiOrZero(head.list[2].atom)
			return arg.SExt(argWidth(arg) + n), nil
		case "extract":
			// Translate only ever emits "(_ extract hi 0)" (truncation from
			// bit 0), so recovering Trunc's target width only needs hi.
			hi := atoiOrZero(head.list[2].atom)
			return arg.Trunc(hi + 1), nil
		}
		return formula.Formula{}, fmt.Errorf("smt: unknown indexed op %s", head.String())
	}

	if !head.isAtom() {
		return formula.Formula{}, fmt.Errorf("smt: unsupported application head %s", head.String())
	}

	args := make([]formula.Formula, len(e.list)-1)
	for i, a := range e.list[1:] {
		f, err := fromSExpr(a, widths)
		if err != nil {
			return formula.Formula{}, err
		}
		args[i] = f
	}

	switch head.atom {
	case "bvadd":
		return args[0].Plus(args[1]), nil
	case "bvsub":
		return args[0].Minus(args[1]), nil
	case "bvmul":
		return args[0].Times(args[1]), nil
	case "bvsdiv":
		return args[0].Div(args[1]), nil
	case "bvsrem":
		return args[0].SRem(args[1]), nil
	case "bvurem":
		return args[0].URem(args[1]), nil
	case "bvand":
		return args[0].BAnd(args[1]), nil
	case "bvor":
		return args[0].BOr(args[1]), nil
	case "bvxor":
		return args[0].BXor(args[1]), nil
	case "bvnot":
		return args[0].BNot(), nil
	case "bvshl":
		return args[0].Shl(args[1]), nil
	case "bvlshr":
		return args[0].Shr(args[1]), nil
	case "concat":
		return args[0].Concat(args[1]), nil
	case "=":
		return args[0].Eq(args[1]), nil
	case "distinct":
		return args[0].NEq(args[1]), nil
	case "and":
		out := args[0]
		for _, a := range args[1:] {
			out = out.And(a)
		}
		return out, nil
	case "or":
		out := args[0]
		for _, a := range args[1:] {
			out = out.Or(a)
		}
		return out, nil
	case "not":
		return args[0].Not(), nil
	case "bvult":
		return args[0].ULT(args[1]), nil
	case "bvslt":
		return args[0].LT(args[1]), nil
	case "bvule":
		return args[0].ULEq(args[1]), nil
	case "bvsle":
		return args[0].LEq(args[1]), nil
	case "bvugt":
		return args[0].UGT(args[1]), nil
	case "bvsgt":
		return args[0].GT(args[1]), nil
	case "bvuge":
		return args[0].UGEq(args[1]), nil
	case "bvsge":
		return args[0].GEq(args[1]), nil
	default:
		return formula.Formula{}, fmt.Errorf("smt: unknown function symbol %q", head.atom)
	}
}

func argWidth(f formula.Formula) int {
	items := f.Items()
	if len(items) == 0 {
		return 0
	}
	last := items[len(items)-1]
	if last.Kind == formula.KindIdentifier {
		return int(last.Ident.Bw)
	}
	return int(last.Ident.Bw)
}

func atoiOrZero(s string) int {
	n := 0
	neg := false
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		n = -n
	}
	return n
}

// parseVarName recovers the (seg, off, gen) triple encoded by varName.
// Returns ok=false for anything not matching the "<pfx>_seg%d_off%d_gen%d"
// shape (e.g. a skolem constant the solver invented).
func parseVarName(name string) (formula.Ident, bool) {
	us := strings.IndexByte(name, '_')
	if us < 0 {
		return formula.Ident{}, false
	}
	rest := name[us+1:]
	var seg, off, gen uint64
	n, err := fmt.Sscanf(rest, "seg%d_off%d_gen%d", &seg, &off, &gen)
	if err != nil || n != 3 {
		return formula.Ident{}, false
	}
	return formula.Ident{Seg: uint16(seg), Off: uint16(off), Gen: uint16(gen)}, true
}
