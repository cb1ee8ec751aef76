package search

import (
	"time"

	"github.com/symbion/symck/pkg/eval"
	"github.com/symbion/symck/pkg/smt"
)

// CheckWitnessValidity conjoins st's path condition and asks bridge
// whether it is satisfiable, the --testvalidity flag's "check every
// reported path condition for satisfiability before printing it" (a
// reported witness whose path condition is actually unsat would mean
// the search itself has a bug, since an unsat path can never really be
// taken — this is a paranoia check on the search, not part of its
// normal operation).
func CheckWitnessValidity(st *eval.State, bridge *smt.Bridge, timeout time.Duration) (smt.Result, error) {
	pc := st.Symbolic.PathCondition()
	if len(pc) == 0 {
		return smt.Sat, nil
	}
	conj := pc[0]
	for _, f := range pc[1:] {
		conj = conj.And(f)
	}
	term, decls, err := smt.Translate(conj, "w")
	if err != nil {
		return smt.Unknown, err
	}
	return bridge.CheckSat(decls, []string{term}, timeout)
}
