package smt

import (
	"fmt"
	"strconv"
	"strings"
)

// sexpr is a minimal parsed S-expression: either an atom or a list of
// sub-expressions. It exists purely to read back the simplified terms a
// solver's "(apply ...)" response hands back as SMT-LIB2 text — the
// inverse of Translate, mirroring original_source's fromz3.
type sexpr struct {
	atom string
	list []sexpr
}

func (e sexpr) isAtom() bool { return e.list == nil }

// parseSExprs tokenizes and parses zero or more top-level S-expressions from
// text (a solver reply can contain several, e.g. "sat" followed by a model).
func parseSExprs(text string) ([]sexpr, error) {
	toks := tokenizeSExpr(text)
	var out []sexpr
	pos := 0
	for pos < len(toks) {
		e, next, err := parseOne(toks, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		pos = next
	}
	return out, nil
}

func tokenizeSExpr(text string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

func parseOne(toks []string, pos int) (sexpr, int, error) {
	if pos >= len(toks) {
		return sexpr{}, pos, fmt.Errorf("smt: unexpected end of s-expression")
	}
	if toks[pos] == "(" {
		pos++
		var items []sexpr
		for pos < len(toks) && toks[pos] != ")" {
			item, next, err := parseOne(toks, pos)
			if err != nil {
				return sexpr{}, pos, err
			}
			items = append(items, item)
			pos = next
		}
		if pos >= len(toks) {
			return sexpr{}, pos, fmt.Errorf("smt: unterminated s-expression")
		}
		return sexpr{list: items}, pos + 1, nil
	}
	if toks[pos] == ")" {
		return sexpr{}, pos, fmt.Errorf("smt: unexpected ')'")
	}
	return sexpr{atom: toks[pos]}, pos + 1, nil
}

func (e sexpr) String() string {
	if e.isAtom() {
		return e.atom
	}
	parts := make([]string, len(e.list))
	for i, s := range e.list {
		parts[i] = s.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// parseBVLiteral reads a bitvector literal of any surface form the
// solver may use: "#xHH.." (hex, four bits per digit), "#b.." (binary,
// one bit per digit) or "(_ bvN W)".
func parseBVLiteral(e sexpr, fallbackWidth uint8) (value int64, width uint8, ok bool) {
	if e.isAtom() {
		if strings.HasPrefix(e.atom, "#x") {
			n, err := strconv.ParseUint(e.atom[2:], 16, 64)
			if err != nil {
				return 0, 0, false
			}
			return int64(n), uint8(4 * (len(e.atom) - 2)), true
		}
		if strings.HasPrefix(e.atom, "#b") {
			n, err := strconv.ParseUint(e.atom[2:], 2, 64)
			if err != nil {
				return 0, 0, false
			}
			return int64(n), uint8(len(e.atom) - 2), true
		}
		return 0, 0, false
	}
	if len(e.list) == 3 && e.list[0].isAtom() && e.list[0].atom == "_" &&
		e.list[1].isAtom() && strings.HasPrefix(e.list[1].atom, "bv") {
		n, err := strconv.ParseInt(e.list[1].atom[2:], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		w, err := strconv.ParseUint(e.list[2].atom, 10, 8)
		if err != nil {
			return 0, 0, false
		}
		return n, uint8(w), true
	}
	return 0, 0, false
}
