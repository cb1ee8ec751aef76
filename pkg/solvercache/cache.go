// Package solvercache memoizes subsumption query outcomes so that repeated
// checks between structurally identical store pairs (common during search,
// where many successors share most of their path condition) skip the
// solver entirely. Grounded on original_source's Z3cache
// (toolkit/z3cache.h, driven from smtdatastore.cpp's subseteq): a query is
// reduced to a fingerprint over the two path conditions, the two
// definition sets, and the set of externally-visible identifier pairs
// being forced distinct, and only that fingerprint is looked up.
package solvercache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/symbion/symck/pkg/formula"
	"github.com/symbion/symck/pkg/smt"
	"github.com/symbion/symck/pkg/stats"
)

// IdentPair is one (a-side, b-side) identifier pair the query forces apart,
// corresponding to an entry of subseteq's "to_compare" map.
type IdentPair struct {
	A, B formula.Ident
}

// Query is everything a cached subsumption check depends on. Two Querys
// that encode to the same fingerprint are, by construction, the same SMT
// query up to variable renaming — so caching is sound even though the
// underlying stores differ in identity.
type Query struct {
	PathConditionA []formula.Formula
	DefinitionsA   []formula.Definition
	PathConditionB []formula.Formula
	DefinitionsB   []formula.Definition
	Distinct       []IdentPair
}

// Fingerprint renders q as the cache key: a delimiter-safe, order-preserving
// encoding of every field. Order matters for the path-condition/definition
// slices (they are not re-sorted here) but the distinct pairs are expected
// to already arrive in canonical (sorted) order, same as std::map<Ident,
// Ident> iteration order in the original.
func (q Query) Fingerprint() string {
	var b strings.Builder
	writeFormulas := func(tag string, fs []formula.Formula) {
		fmt.Fprintf(&b, "%s(%d)", tag, len(fs))
		for _, f := range fs {
			writeFormula(&b, f)
		}
	}
	writeDefs := func(tag string, defs []formula.Definition) {
		fmt.Fprintf(&b, "%s(%d)", tag, len(defs))
		for _, d := range defs {
			writeIdent(&b, d.Ident)
			writeFormula(&b, d.Body)
		}
	}

	writeFormulas("pcA", q.PathConditionA)
	writeDefs("defA", q.DefinitionsA)
	writeFormulas("pcB", q.PathConditionB)
	writeDefs("defB", q.DefinitionsB)

	fmt.Fprintf(&b, "dist(%d)", len(q.Distinct))
	for _, p := range q.Distinct {
		writeIdent(&b, p.A)
		b.WriteByte(':')
		writeIdent(&b, p.B)
	}
	return b.String()
}

func writeIdent(b *strings.Builder, id formula.Ident) {
	fmt.Fprintf(b, "[%d,%d,%d,%d]", id.Seg, id.Off, id.Gen, id.Bw)
}

func writeFormula(b *strings.Builder, f formula.Formula) {
	items := f.Items()
	fmt.Fprintf(b, "{%d:", len(items))
	for _, it := range items {
		switch it.Kind {
		case formula.KindIdentifier:
			b.WriteByte('i')
			writeIdent(b, it.Ident)
		case formula.KindConstant:
			fmt.Fprintf(b, "c%d/%d", it.Value, it.Ident.Bw)
		case formula.KindBoolVal:
			fmt.Fprintf(b, "b%d", it.Value)
		case formula.KindOp:
			fmt.Fprintf(b, "o%d.%d", it.Op, it.Value)
		}
	}
	b.WriteByte('}')
}

type entry struct {
	result    smt.Result
	solveTime time.Duration
}

// Cache is a subsumption-query memo table. Zero value is not usable; build
// one with New so it can report hit/miss counts into a stats.Registry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	stats   *stats.Registry
}

// New constructs an empty cache reporting into reg (may be nil to disable
// statistics recording, e.g. in unit tests).
func New(reg *stats.Registry) *Cache {
	return &Cache{entries: make(map[string]entry), stats: reg}
}

// Lookup reports a cached result for q, if one exists, and records the hit
// or miss against the registry.
func (c *Cache) Lookup(q Query) (smt.Result, bool) {
	key := q.Fingerprint()
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if c.stats != nil {
		if ok {
			c.stats.RecordCacheHit(e.solveTime)
		} else {
			c.stats.RecordCacheMiss()
		}
	}
	if !ok {
		return smt.Unknown, false
	}
	return e.result, true
}

// Place records the outcome of actually solving q, overwriting any prior
// entry (a replacement, per original_source's Z3cache.place semantics,
// which never refuses to overwrite).
func (c *Cache) Place(q Query, result smt.Result, solveTime time.Duration) {
	key := q.Fingerprint()
	c.mu.Lock()
	_, existed := c.entries[key]
	c.entries[key] = entry{result: result, solveTime: solveTime}
	c.mu.Unlock()
	if existed && c.stats != nil {
		c.stats.RecordCacheReplacement()
	}
}

// Len reports the number of distinct cached queries, mostly useful in
// tests and --statistics output.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
