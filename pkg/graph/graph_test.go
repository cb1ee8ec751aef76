package graph

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddEdgeRegistersBothEndpoints(t *testing.T) {
	g := New[string, string]()
	g.AddEdge("a", "b", "ap1")

	if !g.HasVertex("a") || !g.HasVertex("b") {
		t.Fatalf("both endpoints should be registered")
	}
	succ := g.Successors("a")
	if len(succ) != 1 || succ[0].To != "b" || succ[0].Label != "ap1" {
		t.Fatalf("unexpected successors: %+v", succ)
	}
}

func TestNewVerticesStartWhite(t *testing.T) {
	g := New[int, struct{}]()
	g.AddVertex(1)
	if g.Color(1) != White {
		t.Fatalf("a fresh vertex should be White")
	}
	g.SetColor(1, Gray)
	if g.Color(1) != Gray {
		t.Fatalf("SetColor should stick")
	}
}

func TestUnknownVertexDefaultsWhite(t *testing.T) {
	g := New[int, struct{}]()
	if g.Color(99) != White {
		t.Fatalf("an unregistered vertex should report White, not panic or some other zero value")
	}
	if g.HasVertex(99) {
		t.Fatalf("querying a vertex's colour must not implicitly register it")
	}
}

func TestWriteDOTProducesValidShape(t *testing.T) {
	g := New[string, string]()
	g.AddEdge("s0", "s1", "x")

	var buf bytes.Buffer
	if err := g.WriteDOT(&buf, func(v string) string { return v }, func(l string) string { return l }); err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "digraph product {") {
		t.Errorf("expected a digraph header, got %q", out)
	}
	if !strings.Contains(out, `"s0" -> "s1"`) {
		t.Errorf("expected an s0->s1 edge in the dump, got %q", out)
	}
}
