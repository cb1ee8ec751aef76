package search

import (
	"fmt"
	"regexp"

	"github.com/symbion/symck/pkg/eval"
	"github.com/symbion/symck/pkg/explicitstore"
)

// Predicate declares one atomic proposition as a comparison against a
// named global (spec.md §6.4: "the default translator allows each ap to
// be declared as a predicate over one or more named globals" — here,
// over exactly one, the common case the original's examples all use).
type Predicate struct {
	Global string
	Op     explicitstore.ICmpOp
	Value  int64
}

// Predicates is the translator's AP-name-to-predicate table, supplied by
// the caller (the model file's author, not derived automatically).
type Predicates map[string]Predicate

// Expr is a parsed atomic-proposition formula: a literal, or the &&/||
// of two sub-expressions (spec.md §6.4).
type Expr interface{ isExpr() }

// Literal is one (possibly negated) named atomic proposition.
type Literal struct {
	Name    string
	Negated bool
}

// And/Or are the only connectives the AP language allows (spec.md §6.4
// names no others).
type And struct{ L, R Expr }
type Or struct{ L, R Expr }

func (Literal) isExpr() {}
func (And) isExpr()     {}
func (Or) isExpr()      {}

var apToken = regexp.MustCompile(`\|\||&&|!|[A-Za-z_][A-Za-z0-9_]*`)

// ParseAP parses an atomic-proposition formula of the form
// `ap1 && !ap2 || ap3` (&& binds tighter than ||, as usual).
func ParseAP(s string) (Expr, error) {
	toks := apToken.FindAllString(s, -1)
	if len(toks) == 0 {
		return nil, fmt.Errorf("search: empty atomic-proposition formula %q", s)
	}
	p := &apParser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("search: trailing input in atomic-proposition formula %q", s)
	}
	return expr, nil
}

type apParser struct {
	toks []string
	pos  int
}

func (p *apParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *apParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek() == "||" {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{L: left, R: right}
	}
	return left, nil
}

func (p *apParser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek() == "&&" {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{L: left, R: right}
	}
	return left, nil
}

func (p *apParser) parseUnary() (Expr, error) {
	negated := false
	for p.peek() == "!" {
		negated = !negated
		p.pos++
	}
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("search: atomic-proposition formula ends after '!'")
	}
	name := p.toks[p.pos]
	if name == "&&" || name == "||" {
		return nil, fmt.Errorf("search: expected an atomic proposition, got %q", name)
	}
	p.pos++
	return Literal{Name: name, Negated: negated}, nil
}

// Guard narrows st to the states where expr holds, forking on Or exactly
// like stepICmp forks on a comparison (spec.md §4.10.2's pushPropGuard:
// "rename identifiers' gen to current, then advance the program" — the
// renaming itself is pkg/symbolic's concern inside Prune; Guard only
// decides which comparisons to prune by).
func Guard(st *eval.State, expr Expr, preds Predicates) ([]*eval.State, error) {
	switch e := expr.(type) {
	case Literal:
		// "true"/"false" are reserved as the unconditional Büchi-edge
		// guards an automaton's self-loops commonly need, without
		// requiring the model author to declare a predicate for them.
		if e.Name == "true" || e.Name == "false" {
			if (e.Name == "true") == !e.Negated {
				return []*eval.State{st.Clone()}, nil
			}
			return nil, nil
		}
		pred, ok := preds[e.Name]
		if !ok {
			return nil, fmt.Errorf("search: undeclared atomic proposition %q", e.Name)
		}
		op := pred.Op
		if e.Negated {
			op = op.Negate()
		}
		next, err := st.PruneGlobal(pred.Global, op, pred.Value)
		if err != nil {
			return nil, err
		}
		return []*eval.State{next}, nil
	case And:
		lefts, err := Guard(st, e.L, preds)
		if err != nil {
			return nil, err
		}
		var out []*eval.State
		for _, l := range lefts {
			rs, err := Guard(l, e.R, preds)
			if err != nil {
				return nil, err
			}
			out = append(out, rs...)
		}
		return out, nil
	case Or:
		lefts, err := Guard(st, e.L, preds)
		if err != nil {
			return nil, err
		}
		rights, err := Guard(st, e.R, preds)
		if err != nil {
			return nil, err
		}
		return append(lefts, rights...), nil
	default:
		return nil, fmt.Errorf("search: unknown atomic-proposition expression %T", expr)
	}
}
