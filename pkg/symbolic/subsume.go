package symbolic

import (
	"time"

	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/formula"
	"github.com/symbion/symck/pkg/smt"
	"github.com/symbion/symck/pkg/solvercache"
	"github.com/symbion/symck/pkg/stats"
)

// conjoinWithDefs folds the store's definitions (as the equalities they
// denote) and its path condition into one formula, mirroring how both
// empty() and subseteq() build "pc = pc && def.to_formula() && ... && p".
func (s *Store) conjoinWithDefs() formula.Formula {
	var out formula.Formula
	for _, d := range s.definitions {
		out = out.And(d.ToFormula())
	}
	for _, pc := range s.pathCondition {
		out = out.And(pc)
	}
	return out
}

// Empty reports whether the store's constraints are jointly unsatisfiable —
// i.e. this program state denotes no concrete valuation at all. Mirrors
// SMTStore::empty(): a store with no path-condition clauses is vacuously
// considered non-empty, since the definitions alone (pure assignments) can
// never be contradictory on their own.
func (s *Store) Empty(bridge *smt.Bridge) bool {
	if len(s.pathCondition) == 0 {
		return false
	}
	whole := s.conjoinWithDefs()
	term, decls, err := smt.Translate(whole, "a")
	if err != nil {
		return false
	}
	result, err := bridge.CheckSat(decls, []string{term}, 0)
	if err != nil {
		return false
	}
	return result == smt.Unsat
}

// unknownBackoff computes the dynamic timeout subseteq's quantified query
// uses once the solver has returned "unknown" unknownCount times,
// doubling every five unknowns counted over the whole run (the count is
// never reset). Mirrors the original's
// escalating unknown_instances-driven backoff.
func unknownBackoff(unknownCount int) time.Duration {
	return time.Duration(1<<uint(unknownCount/5)) * time.Millisecond
}

// Subseteq reports whether every concrete state b's constraints admit is
// also admitted by a's constraints (b ⊆ a) — the core subsumption test
// driving search-space pruning (spec.md §4.4). Mirrors SMTStore::subseteq.
//
// timeoutEnabled bounds each quantified query at the current dynamic
// backoff; unknownCount is the caller's running tally of "unknown"
// responses across all subseteq calls — read and incremented here so the
// backoff escalates across repeated uncertainty. cache and reg may be nil
// to disable memoization/statistics (e.g. in unit tests).
func Subseteq(b, a *Store, bridge *smt.Bridge, cache *solvercache.Cache, reg *stats.Registry, timeoutEnabled bool, unknownCount *int) bool {
	if reg != nil {
		reg.Incr(stats.SubseteqCalls)
	}

	// 1. Syntactic shortcut: identical definitions and identical,
	// identically-ordered path conditions mean identical constraint sets.
	if formula.DefinitionSetEqual(a.definitions, b.definitions) &&
		formula.FormulaSetEqual(a.pathCondition, b.pathCondition) {
		if reg != nil {
			reg.Incr(stats.SubseteqSyntaxEqual)
		}
		return true
	}

	// 2. Relevance filter: only (seg, off) pairs either side's constraints
	// actually mention need to be compared; segment numbering runs in
	// lockstep across a and b (same frame layout), so the same local
	// (seg, off) addresses the corresponding slot in both.
	type pair struct{ aAtom, bAtom formula.Ident }
	var toCompare []pair
	for seg := 0; seg < a.NumSegments(); seg++ {
		for off := 0; off < len(a.generations[seg]); off++ {
			v := explicitstore.VarValue(seg, off)
			if !a.DependsOnVar(v) && !b.DependsOnVar(v) {
				continue
			}
			toCompare = append(toCompare, pair{aAtom: a.buildItem(v), bAtom: b.buildItem(v)})
		}
	}
	if len(toCompare) == 0 {
		return true
	}

	// 3. Build the quantified query's pieces: pc_b && forall(a_vars).
	// (!pc_a || distinct).
	aWhole := a.conjoinWithDefs()
	bWhole := b.conjoinWithDefs()
	aTerm, aDecls, errA := smt.Translate(aWhole, "a")
	bTerm, bDecls, errB := smt.Translate(bWhole, "b")
	if errA != nil || errB != nil {
		return false
	}

	var distinctTerms []string
	for _, p := range toCompare {
		distinctTerms = append(distinctTerms,
			"(distinct "+smt.VarName("a", p.aAtom)+" "+smt.VarName("b", p.bAtom)+")")
	}
	distinctTerm := joinOr(distinctTerms)

	aVarIdents := a.CollectVariables()
	aVars := make([]smt.ForallVar, len(aVarIdents))
	for i, id := range aVarIdents {
		aVars[i] = smt.ForallVar{Name: smt.VarName("a", id), Width: id.Bw}
	}
	decls := smt.JoinDecls(aDecls, bDecls)

	// 4. Dynamic timeout, escalating on repeated "unknown".
	var timeout time.Duration
	if timeoutEnabled {
		timeout = unknownBackoff(*unknownCount)
	}

	// 5. Cache: build the query key exactly like Z3SubsetCall does (both
	// sides' path conditions and definitions, plus the distinct pairs),
	// look up, and place the fresh result on a miss.
	var cacheQuery *solvercache.Query
	if cache != nil {
		q := solvercache.Query{
			PathConditionA: a.pathCondition,
			DefinitionsA:   a.definitions,
			PathConditionB: b.pathCondition,
			DefinitionsB:   b.definitions,
		}
		for _, p := range toCompare {
			q.Distinct = append(q.Distinct, solvercache.IdentPair{A: p.aAtom, B: p.bAtom})
		}
		cacheQuery = &q
		if result, ok := cache.Lookup(q); ok {
			return result == smt.Unsat
		}
	}

	start := time.Now()
	result, err := bridge.CheckSubsumptionQuery(decls, aTerm, bTerm, distinctTerm, aVars, timeout)
	elapsed := time.Since(start)
	if err != nil {
		result = smt.Unknown
	}
	if result == smt.Unknown {
		if reg != nil {
			reg.Incr(stats.SMTUnknown)
		}
		*unknownCount++
	}

	if cacheQuery != nil {
		cache.Place(*cacheQuery, result, elapsed)
	}

	return result == smt.Unsat
}

func joinOr(terms []string) string {
	if len(terms) == 0 {
		return "false"
	}
	out := terms[0]
	for _, t := range terms[1:] {
		out = "(or " + out + " " + t + ")"
	}
	return out
}
