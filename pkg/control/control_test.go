package control

import (
	"testing"

	"github.com/symbion/symck/pkg/ir"
)

func block(name string, fn *ir.Function) *ir.BasicBlock {
	b := &ir.BasicBlock{Name: name, Function: fn}
	fn.Blocks = append(fn.Blocks, b)
	return b
}

func TestStartThreadBeginsAtEntry(t *testing.T) {
	fn := &ir.Function{Name: "main"}
	entry := block("entry", fn)

	c := New()
	tid := c.StartThread(fn)
	pc := c.Current(tid)
	if pc.Block != entry || pc.Instr != 0 {
		t.Fatalf("expected to start at entry/0, got %+v", pc)
	}
}

func TestJumpToRecordsPrevBlock(t *testing.T) {
	fn := &ir.Function{Name: "main"}
	entry := block("entry", fn)
	loop := block("loop", fn)

	c := New()
	tid := c.StartThread(fn)
	c.JumpTo(loop, tid)

	if c.Current(tid).Block != loop {
		t.Fatalf("expected current block to be loop")
	}
	if c.PrevBlock(tid) != entry {
		t.Errorf("expected prev block to be entry, got %v", c.PrevBlock(tid))
	}
}

func TestEnterFunctionAndCallSite(t *testing.T) {
	caller := &ir.Function{Name: "caller"}
	callerEntry := block("entry", caller)
	callee := &ir.Function{Name: "callee"}
	calleeEntry := block("entry", callee)

	c := New()
	tid := c.StartThread(caller)
	c.Advance(tid, 2) // pretend we're at the call instruction
	c.EnterFunction(callee, tid)

	if c.Current(tid).Block != calleeEntry {
		t.Fatalf("expected current frame to be callee's entry")
	}
	site, ok := c.CallSite(tid)
	if !ok || site.Block != callerEntry || site.Instr != 2 {
		t.Fatalf("expected call site at caller entry/2, got %+v ok=%v", site, ok)
	}
}

func TestLeaveRemovesExhaustedThread(t *testing.T) {
	fn := &ir.Function{Name: "main"}
	block("entry", fn)

	c := New()
	tid := c.StartThread(fn)
	if c.NumThreads() != 1 {
		t.Fatalf("expected 1 thread, got %d", c.NumThreads())
	}
	c.Leave(tid)
	if c.NumThreads() != 0 {
		t.Errorf("expected thread to be removed once its stack empties, got %d threads", c.NumThreads())
	}
}

func TestLeaveFromNestedCallReturnsToCaller(t *testing.T) {
	caller := &ir.Function{Name: "caller"}
	block("entry", caller)
	callee := &ir.Function{Name: "callee"}
	block("entry", callee)

	c := New()
	tid := c.StartThread(caller)
	c.EnterFunction(callee, tid)
	c.Leave(tid)

	if c.Current(tid).Func != caller {
		t.Fatalf("expected to be back in caller's frame after leaving callee")
	}
	if c.NumThreads() != 1 {
		t.Errorf("the thread itself should survive leaving a non-final frame")
	}
}
