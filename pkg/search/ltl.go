package search

import (
	"fmt"

	"github.com/symbion/symck/pkg/eval"
	"github.com/symbion/symck/pkg/graph"
	"github.com/symbion/symck/pkg/smt"
	"github.com/symbion/symck/pkg/solvercache"
	"github.com/symbion/symck/pkg/statedb"
)

// ProductVertex is a product-automaton state (spec.md §4.10.2): the
// program state's StateId plus the Büchi-automaton state, both
// comparable so it can key pkg/graph's generic vertex map directly.
type ProductVertex struct {
	State statedb.StateId
	BA    BAState
}

// LTLConfig configures LTL. Bound, if non-zero, caps the DFS depth; the
// caller is expected to double it and retry on exhaustion (spec.md
// §4.10.2's "doubling on exhaustion" iterative-deepening mode) — LTL
// itself only ever runs one depth.
type LTLConfig struct {
	Bound          int
	TimeoutEnabled bool
}

// LTLResult is the nested-DFS search's outcome. Graph is the explored
// product-automaton graph (spec.md §4.11), exposed so a caller can dump
// it via Graph.WriteDOT (the --space_output flag's use of it).
type LTLResult struct {
	CycleFound bool
	Graph      *graph.Graph[ProductVertex, BAState]
}

// ltlDriver holds the nested-DFS search's mutable state: the product
// graph explored so far (a record for dumping and for DFS colours; a
// revisited vertex's successors are recomputed), the live eval.State each vertex was last
// reached by, and the shared SMT/cache/database plumbing every
// successor computation needs.
type ltlDriver struct {
	ba     *Automaton
	preds  Predicates
	db     *statedb.Database
	bridge *smt.Bridge
	cache  *solvercache.Cache
	cfg    LTLConfig

	g      *graph.Graph[ProductVertex, BAState]
	states map[ProductVertex]*eval.State

	unknownCount int
}

// LTL searches the product of initial's reachable program states with
// ba for an accepting cycle — a lasso witnessing the negated LTL
// property holds infinitely often (spec.md §4.10.2).
func LTL(initial *eval.State, ba *Automaton, preds Predicates, db *statedb.Database, bridge *smt.Bridge, cache *solvercache.Cache, cfg LTLConfig) (*LTLResult, error) {
	d := &ltlDriver{
		ba:     ba,
		preds:  preds,
		db:     db,
		bridge: bridge,
		cache:  cache,
		cfg:    cfg,
		g:      graph.New[ProductVertex, BAState](),
		states: map[ProductVertex]*eval.State{},
	}

	id, novel, err := insertCheck(initial, ba.Initial, db, bridge, cache, cfg.TimeoutEnabled, &d.unknownCount)
	if err != nil {
		return nil, fmt.Errorf("search: inserting initial product state: %w", err)
	}
	if !novel {
		return nil, fmt.Errorf("search: initial product state rejected as non-novel")
	}
	root := ProductVertex{State: id, BA: ba.Initial}
	d.states[root] = initial
	d.g.AddVertex(root)

	cyclic, err := d.outerDFS(root, 0)
	if err != nil {
		return nil, err
	}
	return &LTLResult{CycleFound: cyclic, Graph: d.g}, nil
}

// productSuccessors advances v's program state along every BA edge out
// of v.BA whose guard holds, returning each resulting product vertex
// (spec.md §4.10.2: "for each BA edge q →[ap] q', push ap as a path
// -condition guard, then advance the program; each program successor p'
// becomes (p', q')").
func (d *ltlDriver) productSuccessors(v ProductVertex) ([]ProductVertex, error) {
	st := d.states[v]
	var out []ProductVertex
	for _, edge := range d.ba.Edges[v.BA] {
		guarded, err := Guard(st, edge.Guard, d.preds)
		if err != nil {
			return nil, err
		}
		for _, g := range guarded {
			leaves, err := Expand(g)
			if err != nil {
				return nil, err
			}
			for _, l := range leaves {
				if l.IsError {
					continue // assertion failures are a reachability concern, not an LTL cycle
				}
				id, _, err := insertCheck(l.State, edge.To, d.db, d.bridge, d.cache, d.cfg.TimeoutEnabled, &d.unknownCount)
				if err != nil {
					return nil, err
				}
				next := ProductVertex{State: id, BA: edge.To}
				if _, ok := d.states[next]; !ok {
					d.states[next] = l.State
				}
				d.g.AddEdge(v, next, edge.To)
				out = append(out, next)
			}
		}
	}
	return out, nil
}

// outerDFS colours vertices white/gray/black and, on backtracking from
// an accepting BA state, launches an inner DFS for a cycle back to v
// (spec.md §4.10.2).
func (d *ltlDriver) outerDFS(v ProductVertex, depth int) (bool, error) {
	if d.cfg.Bound > 0 && depth >= d.cfg.Bound {
		return false, nil
	}
	d.g.SetColor(v, graph.Gray)

	succs, err := d.productSuccessors(v)
	if err != nil {
		return false, err
	}
	for _, sv := range succs {
		if d.g.Color(sv) == graph.White {
			cyclic, err := d.outerDFS(sv, depth+1)
			if err != nil || cyclic {
				return cyclic, err
			}
		}
	}
	d.g.SetColor(v, graph.Black)

	if d.ba.Accepting[v.BA] {
		return d.innerDFS(v, depth)
	}
	return false, nil
}

// innerDFS looks for a path from v back to v, treating only vertices
// unvisited by *this* inner pass as extensible (spec.md §4.10.2's cycle
// -detection invariant — a fresh visited set per call, never the outer
// DFS's own Black/Gray colouring, which would let one inner pass's
// partial exploration poison the next).
func (d *ltlDriver) innerDFS(start ProductVertex, depth int) (bool, error) {
	visited := map[ProductVertex]bool{start: true}
	return d.innerDFSStep(start, start, visited, depth)
}

func (d *ltlDriver) innerDFSStep(start, v ProductVertex, visited map[ProductVertex]bool, depth int) (bool, error) {
	if d.cfg.Bound > 0 && depth >= d.cfg.Bound {
		return false, nil
	}
	succs, err := d.productSuccessors(v)
	if err != nil {
		return false, err
	}
	for _, sv := range succs {
		if sv == start {
			return true, nil
		}
		if visited[sv] {
			continue
		}
		visited[sv] = true
		cyclic, err := d.innerDFSStep(start, sv, visited, depth+1)
		if err != nil || cyclic {
			return cyclic, err
		}
	}
	return false, nil
}
