package stats

import (
	"strings"
	"testing"
	"time"
)

func TestRegistryCountersAndDump(t *testing.T) {
	r := NewRegistry()
	r.Incr(SMTQueries)
	r.Incr(SMTQueries)
	r.Add(StatesExplored, 5)

	if got := r.Get(SMTQueries); got != 2 {
		t.Errorf("SMTQueries = %d, want 2", got)
	}
	if got := r.Get(StatesExplored); got != 5 {
		t.Errorf("StatesExplored = %d, want 5", got)
	}
	if got := r.Get("never_touched"); got != 0 {
		t.Errorf("untouched counter = %d, want 0", got)
	}

	r.RecordCacheHit(10 * time.Millisecond)
	r.RecordCacheMiss()
	r.RecordCacheReplacement()

	var buf strings.Builder
	r.Dump(&buf)
	out := buf.String()
	if !strings.Contains(out, SMTQueries) || !strings.Contains(out, "2") {
		t.Errorf("dump missing counter line: %s", out)
	}
	if !strings.Contains(out, "hits:") || !strings.Contains(out, "10ms") {
		t.Errorf("dump missing cache stats: %s", out)
	}
}

func TestRegistryIndependentInstances(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.Incr(SMTQueries)
	if b.Get(SMTQueries) != 0 {
		t.Errorf("registries must not share state")
	}
}
