package symbolic

import (
	"sort"
	"time"

	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/formula"
	"github.com/symbion/symck/pkg/smt"
	"github.com/symbion/symck/pkg/solvercache"
	"github.com/symbion/symck/pkg/stats"
)

// dependencyGroup is a maximal set of variables whose constraints mention
// each other transitively, together with the path-condition clauses and
// definitions that mention only variables inside the group. Mirrors
// SMTStorePartial::dependency_group.
type dependencyGroup struct {
	vars          map[formula.Ident]struct{}
	pathCondition []formula.Formula
	definitions   []formula.Definition
}

func newDependencyGroup() *dependencyGroup {
	return &dependencyGroup{vars: make(map[formula.Ident]struct{})}
}

func (g *dependencyGroup) absorb(o *dependencyGroup) {
	for v := range o.vars {
		g.vars[v] = struct{}{}
	}
	g.pathCondition = append(g.pathCondition, o.pathCondition...)
	g.definitions = append(g.definitions, o.definitions...)
}

// PartitionedStore is the partitioned alternative to Store: instead of one
// monolithic path condition and definition set, constraints are split
// across independent dependency groups, so subsumption and simplification
// only need to touch the groups a query actually mentions. Mirrors
// original_source's SMTStorePartial (spec.md §3.3/§4.4 call the
// partitioned variant out as optional). The evaluator always uses Store;
// the --partitioned flag does not select this type.
type PartitionedStore struct {
	segmentsMapping []uint16
	generations     [][]uint16
	bitWidths       [][]uint8
	fstUnusedID     uint16

	groups        map[int]*dependencyGroup
	dependencyMap map[formula.Ident]int
	nextGroupID   int
}

// NewPartitioned returns an empty partitioned store with no segments.
func NewPartitioned() *PartitionedStore {
	return &PartitionedStore{
		groups:        make(map[int]*dependencyGroup),
		dependencyMap: make(map[formula.Ident]int),
	}
}

func (s *PartitionedStore) NumSegments() int { return len(s.segmentsMapping) }

func (s *PartitionedStore) globalSeg(localSeg int) uint16 { return s.segmentsMapping[localSeg] }

// AddSegment mirrors Store.AddSegment; see its comment.
func (s *PartitionedStore) AddSegment(id int, bitWidths []uint8) {
	global := s.fstUnusedID
	s.fstUnusedID++

	s.segmentsMapping = append(s.segmentsMapping, 0)
	copy(s.segmentsMapping[id+1:], s.segmentsMapping[id:])
	s.segmentsMapping[id] = global

	gens := make([]uint16, len(bitWidths))
	s.generations = append(s.generations, nil)
	copy(s.generations[id+1:], s.generations[id:])
	s.generations[id] = gens

	widths := make([]uint8, len(bitWidths))
	copy(widths, bitWidths)
	s.bitWidths = append(s.bitWidths, nil)
	copy(s.bitWidths[id+1:], s.bitWidths[id:])
	s.bitWidths[id] = widths
}

// EraseSegment drops every definition rooted in the erased segment from
// whichever groups hold them (substituting it out of the rest of that
// group's constraints to a fixed point), then drops the segment's
// bookkeeping. Mirrors SMTStorePartial::eraseSegment.
func (s *PartitionedStore) EraseSegment(id int) {
	mapped := s.segmentsMapping[id]
	s.removeDefinitions(func(d formula.Definition) bool { return d.IsInSegment(mapped) })

	s.segmentsMapping = append(s.segmentsMapping[:id], s.segmentsMapping[id+1:]...)
	s.generations = append(s.generations[:id], s.generations[id+1:]...)
	s.bitWidths = append(s.bitWidths[:id], s.bitWidths[id+1:]...)
}

// removeDefinitions applies the same fixed-point elimination as
// Store.removeDefinitions, independently within each group (a definition
// can only reference variables inside its own group, by construction, so
// groups never need to consult each other here). Mirrors
// SMTStorePartial::removeDefinitions.
func (s *PartitionedStore) removeDefinitions(pred func(formula.Definition) bool) {
	for id, g := range s.groups {
		var removed []formula.Definition
		kept := g.definitions[:0:0]
		for _, d := range g.definitions {
			if pred(d) {
				removed = append(removed, d)
			} else {
				kept = append(kept, d)
			}
		}
		g.definitions = kept
		if len(removed) == 0 {
			continue
		}

		for {
			changed := false
			for i, pc := range g.pathCondition {
				for _, def := range removed {
					next := pc.Substitute(def.Ident, def.Body)
					if !next.Equal(pc) {
						changed = true
						pc = next
					}
				}
				g.pathCondition[i] = pc
			}
			for i, d := range g.definitions {
				for j := len(removed) - 1; j >= 0; j-- {
					def := removed[j]
					next := d.Substitute(def.Ident, def.Body)
					if !next.Equal(d) {
						changed = true
						d = next
					}
				}
				g.definitions[i] = d
			}
			if !changed {
				break
			}
		}
		formula.SortDefinitions(g.definitions)
		if len(g.definitions) == 0 && len(g.pathCondition) == 0 {
			for v := range g.vars {
				delete(s.dependencyMap, v)
			}
			delete(s.groups, id)
		}
	}
}

func (s *PartitionedStore) Clear() {
	s.segmentsMapping = nil
	s.generations = nil
	s.bitWidths = nil
	s.fstUnusedID = 0
	s.groups = make(map[int]*dependencyGroup)
	s.dependencyMap = make(map[formula.Ident]int)
}

func (s *PartitionedStore) getGeneration(localSeg, offset int, advanceGeneration bool) uint16 {
	g := s.generations[localSeg][offset]
	if !advanceGeneration {
		return g
	}
	segM := s.globalSeg(localSeg)
	off16 := uint16(offset)
	s.removeDefinitions(func(d formula.Definition) bool {
		return d.IsInSegment(segM) && d.IsOffset(off16) && d.IsGeneration(g)
	})
	g++
	s.generations[localSeg][offset] = g
	return g
}

func (s *PartitionedStore) buildItem(v Value) formula.Ident {
	return formula.Ident{
		Seg: s.globalSeg(v.Var.Seg), Off: uint16(v.Var.Off),
		Gen: s.getGeneration(v.Var.Seg, v.Var.Off, false),
		Bw:  s.bitWidths[v.Var.Seg][v.Var.Off],
	}
}

func (s *PartitionedStore) buildExpression(v Value, advanceGeneration bool) formula.Formula {
	if v.IsConstant() {
		return formula.BuildConstant(int64(v.ConstValue()), v.ConstBw())
	}
	gen := s.getGeneration(v.Var.Seg, v.Var.Off, advanceGeneration)
	return formula.BuildIdentifier(formula.Ident{
		Seg: s.globalSeg(v.Var.Seg), Off: uint16(v.Var.Off), Gen: gen,
		Bw: s.bitWidths[v.Var.Seg][v.Var.Off],
	})
}

// resolveDependency returns the single group spanning every ident in deps,
// merging however many previously-distinct groups that requires and
// creating fresh singleton groups for idents seen for the first time.
// Mirrors SMTStorePartial::resolve_dependency.
func (s *PartitionedStore) resolveDependency(deps []formula.Ident) *dependencyGroup {
	toJoin := make(map[int]struct{})
	for _, id := range deps {
		gid, ok := s.dependencyMap[id]
		if !ok {
			gid = s.nextGroupID
			s.nextGroupID++
			g := newDependencyGroup()
			g.vars[id] = struct{}{}
			s.groups[gid] = g
			s.dependencyMap[id] = gid
		}
		toJoin[gid] = struct{}{}
	}

	ids := make([]int, 0, len(toJoin))
	for id := range toJoin {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	resID := ids[0]
	res := s.groups[resID]
	for _, gid := range ids[1:] {
		other := s.groups[gid]
		res.absorb(other)
		for v := range other.vars {
			s.dependencyMap[v] = resID
		}
		delete(s.groups, gid)
	}
	return res
}

// PushCondition conjoins f into whichever dependency group spans its free
// variables, merging groups as needed.
func (s *PartitionedStore) PushCondition(f formula.Formula) {
	deps := f.CollectVariables(nil)
	var g *dependencyGroup
	if len(deps) == 0 {
		// A variable-free clause (e.g. a literal contradiction) doesn't
		// belong to any existing group; give it a standalone one.
		gid := s.nextGroupID
		s.nextGroupID++
		g = newDependencyGroup()
		s.groups[gid] = g
	} else {
		g = s.resolveDependency(deps)
	}
	g.pathCondition = append(g.pathCondition, f)
}

// PushDefinition mirrors Store.PushDefinition, but the new definition (and
// the generation-advance it causes) is filed under whichever dependency
// group spans its own identifier plus every variable its body mentions.
func (s *PartitionedStore) PushDefinition(dst Value, def formula.Formula) {
	gen := s.getGeneration(dst.Var.Seg, dst.Var.Off, true)
	ident := formula.Ident{
		Seg: s.globalSeg(dst.Var.Seg), Off: uint16(dst.Var.Off), Gen: gen,
		Bw: s.bitWidths[dst.Var.Seg][dst.Var.Off],
	}
	whole := formula.Definition{Ident: ident, Body: def}

	deps := def.CollectVariables([]formula.Ident{ident})
	g := s.resolveDependency(deps)

	i := 0
	for i < len(g.definitions) && g.definitions[i].Less(whole) {
		i++
	}
	g.definitions = append(g.definitions, formula.Definition{})
	copy(g.definitions[i+1:], g.definitions[i:])
	g.definitions[i] = whole
}

func (s *PartitionedStore) binOp(dst, a, b Value, join func(l, r formula.Formula) formula.Formula) {
	l := s.buildExpression(a, false)
	r := s.buildExpression(b, false)
	s.PushDefinition(dst, join(l, r))
}

func (s *PartitionedStore) ImplementAdd(dst, a, b Value)  { s.binOp(dst, a, b, formula.Formula.Plus) }
func (s *PartitionedStore) ImplementSub(dst, a, b Value)  { s.binOp(dst, a, b, formula.Formula.Minus) }
func (s *PartitionedStore) ImplementMult(dst, a, b Value) { s.binOp(dst, a, b, formula.Formula.Times) }
func (s *PartitionedStore) ImplementDiv(dst, a, b Value)  { s.binOp(dst, a, b, formula.Formula.Div) }
func (s *PartitionedStore) ImplementSRem(dst, a, b Value) { s.binOp(dst, a, b, formula.Formula.SRem) }
func (s *PartitionedStore) ImplementURem(dst, a, b Value) { s.binOp(dst, a, b, formula.Formula.URem) }
func (s *PartitionedStore) ImplementAnd(dst, a, b Value)  { s.binOp(dst, a, b, formula.Formula.BAnd) }
func (s *PartitionedStore) ImplementOr(dst, a, b Value)   { s.binOp(dst, a, b, formula.Formula.BOr) }
func (s *PartitionedStore) ImplementXor(dst, a, b Value)  { s.binOp(dst, a, b, formula.Formula.BXor) }
func (s *PartitionedStore) ImplementLeftShift(dst, a, b Value) {
	s.binOp(dst, a, b, formula.Formula.Shl)
}
func (s *PartitionedStore) ImplementRightShift(dst, a, b Value) {
	s.binOp(dst, a, b, formula.Formula.Shr)
}

func (s *PartitionedStore) ImplementStore(dst, what Value) {
	s.PushDefinition(dst, s.buildExpression(what, false))
}
func (s *PartitionedStore) ImplementZExt(dst, a Value, targetBw int) {
	s.PushDefinition(dst, s.buildExpression(a, false).ZExt(targetBw))
}
func (s *PartitionedStore) ImplementSExt(dst, a Value, targetBw int) {
	s.PushDefinition(dst, s.buildExpression(a, false).SExt(targetBw))
}
func (s *PartitionedStore) ImplementTrunc(dst, a Value, targetBw int) {
	s.PushDefinition(dst, s.buildExpression(a, false).Trunc(targetBw))
}
func (s *PartitionedStore) ImplementInput(v Value) {
	s.getGeneration(v.Var.Seg, v.Var.Off, true)
}

func (s *PartitionedStore) Prune(a, b Value, op ICmpOp) {
	l := s.buildExpression(a, false)
	r := s.buildExpression(b, false)
	s.PushCondition(icmpFormula(l, r, op))
}

// CollectVariables returns every distinct Ident mentioned across every
// group's constraints.
func (s *PartitionedStore) CollectVariables() []formula.Ident {
	var out []formula.Ident
	for _, g := range s.groups {
		for _, pc := range g.pathCondition {
			out = pc.CollectVariables(out)
		}
		for _, d := range g.definitions {
			out = d.ToFormula().CollectVariables(out)
		}
	}
	return out
}

func (s *PartitionedStore) DependsOnVar(v Value) bool {
	id := s.buildItem(v)
	return s.DependsOn(id.Seg, id.Off, id.Gen)
}

func (s *PartitionedStore) DependsOn(seg, off, gen uint16) bool {
	for _, g := range s.groups {
		for _, d := range g.definitions {
			if d.DependsOn(seg, off, gen) {
				return true
			}
		}
		for _, pc := range g.pathCondition {
			if pc.DependsOn(seg, off, gen) {
				return true
			}
		}
	}
	return false
}

// Empty reports whether the conjunction of every still-undetermined
// group's constraints is jointly unsatisfiable. Mirrors
// SMTStorePartial::empty — each group is independent, so in principle only
// groups that changed since the last call need rechecking; we simply
// recheck the whole conjunction, which is always sound even if not as
// incremental as the original's per-group TriState cache.
func (s *PartitionedStore) Empty(bridge *smt.Bridge) bool {
	var whole formula.Formula
	any := false
	for _, g := range s.groups {
		for _, d := range g.definitions {
			whole = whole.And(d.ToFormula())
			any = true
		}
		for _, pc := range g.pathCondition {
			whole = whole.And(pc)
			any = true
		}
	}
	if !any {
		return false
	}
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

// groupPair bundles the merged a-side and b-side constraint sets plus the
// distinct-pair atoms that fall within them — one unit of subsumption work.
type groupPair struct {
	aPC, bPC     []formula.Formula
	aDefs, bDefs []formula.Definition
	distinct     []struct{ a, b formula.Ident }
}

// SubseteqPartitioned reports whether b's constraints are subsumed by a's,
// computed per merged dependency group rather than over the whole store:
// each distinct-pair's two groups (one from a, one from b) are merged, and
// any groups that end up untouched by the comparison are skipped entirely.
// Mirrors SMTStorePartial::subseteq's two-argument grouped overload.
func SubseteqPartitioned(b, a *PartitionedStore, bridge *smt.Bridge, cache *solvercache.Cache, reg *stats.Registry, timeoutEnabled bool, unknownCount *int) bool {
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

	// Partition to_compare by which merged (a-group, b-group) id pair each
	// entry's atoms belong to, so independent groups are checked
	// separately instead of dragging the whole store into one query.
	type groupKey struct{ aGID, bGID int }
	byGroup := make(map[groupKey]*groupPair)
	for _, p := range toCompare {
		aGID, aOK := a.dependencyMap[p.aAtom]
		bGID, bOK := b.dependencyMap[p.bAtom]
		if !aOK {
			aGID = -1
		}
		if !bOK {
			bGID = -1
		}
		key := groupKey{aGID, bGID}
		gp, ok := byGroup[key]
		if !ok {
			gp = &groupPair{}
			if aOK {
				gp.aPC = append(gp.aPC, a.groups[aGID].pathCondition...)
				gp.aDefs = append(gp.aDefs, a.groups[aGID].definitions...)
			}
			if bOK {
				gp.bPC = append(gp.bPC, b.groups[bGID].pathCondition...)
				gp.bDefs = append(gp.bDefs, b.groups[bGID].definitions...)
			}
			byGroup[key] = gp
		}
		gp.distinct = append(gp.distinct, struct{ a, b formula.Ident }{p.aAtom, p.bAtom})
	}

	for _, gp := range byGroup {
		if !subseteqGroup(gp, bridge, cache, reg, timeoutEnabled, unknownCount) {
			return false
		}
	}
	return true
}

func subseteqGroup(gp *groupPair, bridge *smt.Bridge, cache *solvercache.Cache, reg *stats.Registry, timeoutEnabled bool, unknownCount *int) bool {
	if reg != nil {
		reg.Incr(stats.SubseteqCalls)
	}

	if formula.DefinitionSetEqual(gp.aDefs, gp.bDefs) && formula.FormulaSetEqual(gp.aPC, gp.bPC) {
		if reg != nil {
			reg.Incr(stats.SubseteqSyntaxEqual)
		}
		return true
	}

	var aWhole, bWhole formula.Formula
	for _, d := range gp.aDefs {
		aWhole = aWhole.And(d.ToFormula())
	}
	for _, pc := range gp.aPC {
		aWhole = aWhole.And(pc)
	}
	for _, d := range gp.bDefs {
		bWhole = bWhole.And(d.ToFormula())
	}
	for _, pc := range gp.bPC {
		bWhole = bWhole.And(pc)
	}

	aTerm, aDecls, errA := smt.Translate(aWhole, "a")
	bTerm, bDecls, errB := smt.Translate(bWhole, "b")
	if errA != nil || errB != nil {
		return false
	}

	var distinctTerms []string
	for _, p := range gp.distinct {
		distinctTerms = append(distinctTerms, "(distinct "+smt.VarName("a", p.a)+" "+smt.VarName("b", p.b)+")")
	}
	distinctTerm := joinOr(distinctTerms)

	var aVarIdents []formula.Ident
	aVarIdents = aWhole.CollectVariables(aVarIdents)
	aVars := make([]smt.ForallVar, len(aVarIdents))
	for i, id := range aVarIdents {
		aVars[i] = smt.ForallVar{Name: smt.VarName("a", id), Width: id.Bw}
	}
	decls := smt.JoinDecls(aDecls, bDecls)

	var timeout time.Duration
	if timeoutEnabled {
		timeout = unknownBackoff(*unknownCount)
	}

	var cacheQuery *solvercache.Query
	if cache != nil {
		q := solvercache.Query{PathConditionA: gp.aPC, DefinitionsA: gp.aDefs, PathConditionB: gp.bPC, DefinitionsB: gp.bDefs}
		for _, p := range gp.distinct {
			q.Distinct = append(q.Distinct, solvercache.IdentPair{A: p.a, B: p.b})
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
