package search

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/symbion/symck/pkg/explicitstore"
)

// LoadLTLSpec decodes the predicate table and Büchi automaton an `ltl`
// run needs from r's JSON description. The LTL formula's translation to
// a Büchi automaton is an external collaborator's job (spec.md §1/§6.2),
// so this is the hand-off point: the caller supplies the already
// -translated automaton and the named-global predicates its edge guards
// reference (spec.md §6.4), the same division of labour as z3's own
// external-process Bridge.
func LoadLTLSpec(r io.Reader) (Predicates, *Automaton, error) {
	var js jsonLTLSpec
	if err := json.NewDecoder(r).Decode(&js); err != nil {
		return nil, nil, fmt.Errorf("search: decoding LTL spec JSON: %w", err)
	}

	preds := make(Predicates, len(js.Predicates))
	for name, jp := range js.Predicates {
		op, err := parseICmpOp(jp.Op)
		if err != nil {
			return nil, nil, fmt.Errorf("search: predicate %q: %w", name, err)
		}
		preds[name] = Predicate{Global: jp.Global, Op: op, Value: jp.Value}
	}

	ba := &Automaton{
		Initial:   BAState(js.Automaton.Initial),
		Accepting: make(map[BAState]bool, len(js.Automaton.Accepting)),
		Edges:     make(map[BAState][]BAEdge, len(js.Automaton.Edges)),
	}
	for _, s := range js.Automaton.Accepting {
		ba.Accepting[BAState(s)] = true
	}
	for from, edges := range js.Automaton.Edges {
		q, err := parseBAStateKey(from)
		if err != nil {
			return nil, nil, err
		}
		for _, je := range edges {
			guard, err := ParseAP(je.Guard)
			if err != nil {
				return nil, nil, fmt.Errorf("search: edge %s->%d guard: %w", from, je.To, err)
			}
			ba.Edges[q] = append(ba.Edges[q], BAEdge{To: BAState(je.To), Guard: guard})
		}
	}
	return preds, ba, nil
}

type jsonLTLSpec struct {
	Predicates map[string]jsonPredicate  `json:"predicates"`
	Automaton  jsonAutomaton             `json:"automaton"`
}

type jsonPredicate struct {
	Global string `json:"global"`
	Op     string `json:"op"`
	Value  int64  `json:"value"`
}

type jsonAutomaton struct {
	Initial   int              `json:"initial"`
	Accepting []int            `json:"accepting"`
	Edges     map[string][]jsonBAEdge `json:"edges"`
}

type jsonBAEdge struct {
	To    int    `json:"to"`
	Guard string `json:"guard"`
}

func parseBAStateKey(s string) (BAState, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("search: malformed Büchi state key %q: %w", s, err)
	}
	return BAState(n), nil
}

var icmpOpNames = map[string]explicitstore.ICmpOp{
	"eq": explicitstore.ICmpEQ, "ne": explicitstore.ICmpNE,
	"ugt": explicitstore.ICmpUGT, "uge": explicitstore.ICmpUGE,
	"ult": explicitstore.ICmpULT, "ule": explicitstore.ICmpULE,
	"sgt": explicitstore.ICmpSGT, "sge": explicitstore.ICmpSGE,
	"slt": explicitstore.ICmpSLT, "sle": explicitstore.ICmpSLE,
}

func parseICmpOp(s string) (explicitstore.ICmpOp, error) {
	op, ok := icmpOpNames[s]
	if !ok {
		return 0, fmt.Errorf("unknown comparison op %q", s)
	}
	return op, nil
}
