// Package eval is the per-thread instruction evaluator (spec.md §4.8): a
// small-step interpreter over pkg/ir instructions that advances one
// simulated thread by exactly one instruction per Step call, forking a
// slice of independent successor States for any instruction with more
// than one outcome (ICmp, conditional Branch, Switch, assert).
//
// Step never restores or mutates its receiver — every successor is a
// fresh State built by Clone (spec.md §9's materializing-iterator
// redesign: "the driver then owns the decision to expand", replacing
// original_source/src/llvmsym/instructiondispatch.h's
// yield(is_observable,is_empty,is_last) callback plus restore-from
// -snapshot dance with values the caller can freely keep, discard or
// queue). The caller composes "advance until an observable boundary" by
// calling Step repeatedly on the non-observable successors it gets back
// (pkg/search owns that loop); Step itself only ever executes one
// instruction.
package eval

import (
	"github.com/symbion/symck/pkg/control"
	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/ir"
	"github.com/symbion/symck/pkg/memlayout"
	"github.com/symbion/symck/pkg/symbolic"
)

// State is one full program configuration: the concrete and symbolic
// halves of the hybrid store, the memory layout bookkeeping that
// addresses them, and every simulated thread's control stack. Module is
// shared, read-only program structure — never cloned.
type State struct {
	Module   *ir.Module
	Explicit *explicitstore.Store
	Symbolic *symbolic.Store
	Layout   *memlayout.MemoryLayout
	Control  *control.Control

	// Error is set by a failed assert/__VERIFIER_assert fork — spec.md
	// §4.10.1's "stop on is_error()".
	Error bool
}

// Clone returns an independent deep copy of st, safe to advance down a
// divergent path without aliasing st's stores or control stacks.
func (st *State) Clone() *State {
	return &State{
		Module:   st.Module,
		Explicit: st.Explicit.Clone(),
		Symbolic: st.Symbolic.Clone(),
		Layout:   st.Layout.Clone(),
		Control:  st.Control.Clone(),
		Error:    st.Error,
	}
}

// NewInitial builds the state a run starts from: a single thread at
// entry's first instruction, a global segment sized for globalWidths,
// and entry's own register frame already pushed.
func NewInitial(mod *ir.Module, entry *ir.Function, globalWidths []uint8) *State {
	st := &State{
		Module:   mod,
		Explicit: explicitstore.New(),
		Symbolic: symbolic.New(),
		Layout:   memlayout.New(globalWidths),
		Control:  control.New(),
	}
	// Segment 0 backs globals, segment 1 is memlayout's unused reserved
	// sentinel (see pkg/memlayout's package doc) — both stores must carry
	// a matching placeholder so segment numbering stays in lockstep.
	st.Explicit.AddSegment(0, globalWidths)
	st.Explicit.AddSegment(1, nil)
	st.Symbolic.AddSegment(0, globalWidths)
	st.Symbolic.AddSegment(1, nil)
	st.Layout.PreassignGlobals(mod.Globals)

	tid := st.Control.StartThread(entry)
	st.enterFunction(tid, entry, nil, false)
	return st
}

// enterFunction allocates entry's register segment (one cell per
// distinct local value of fn, spec.md §4.8 "push caller args into a new
// stack segment and enter the function") and copies args into its
// leading cells in argument order. isCall must be false for a thread's
// very first frame — control.StartThread and memlayout.StartThread
// already pushed that frame's PC and segment marker — and true for
// every later call, which must push both itself.
func (st *State) enterFunction(tid int, fn *ir.Function, args []explicitstore.Value, isCall bool) {
	frame := st.Layout.FrameFor(fn)
	widths := append([]uint8(nil), frame.Widths...)

	if isCall {
		st.Layout.NewStack(tid)
	}
	segID := st.Layout.NewSegment(tid, widths)
	st.Explicit.AddSegment(segID, widths)
	st.Symbolic.AddSegment(segID, widths)

	for i := range frame.Widths {
		dst := explicitstore.VarValue(segID, i)
		dst.Pointer = frame.Pointers[i]
		st.Layout.SetMultival(dst, false)
	}
	for i, a := range args {
		dst := explicitstore.VarValue(segID, i)
		dst.Pointer = frame.Pointers[i]
		st.writeValue(dst, a)
	}

	if isCall {
		st.Control.EnterFunction(fn, tid)
	}
	st.Layout.SwitchBB(fn.EntryBlock(), tid)
}

// writeValue copies src into dst, routed to the symbolic store iff src
// is multival — the same "whichever side is symbolic wins" rule spec.md
// §4.8 states for binary arithmetic, generalised to every plain value
// copy (casts, call-argument passing, Phi, Return's writeback, Store's
// value operand). dst's own prior flag is irrelevant here: a plain copy
// fully overwrites whatever dst held before, so only src decides the
// destination's new multival-ness — unlike stepBinary, which must
// combine two source operands, writeValue only ever has the one.
func (st *State) writeValue(dst, src explicitstore.Value) {
	if st.Layout.IsMultival(src) {
		st.Layout.SetMultival(dst, true)
		st.Symbolic.ImplementStore(dst, src)
		return
	}
	st.Layout.SetMultival(dst, false)
	st.Explicit.ImplementStore(dst, src)
}

// prune narrows st to the states where the predicate holds, routed to
// whichever store the operands' multival-ness dictates.
func (st *State) prune(a, b explicitstore.Value, op explicitstore.ICmpOp) {
	if st.Layout.IsMultival(a) || st.Layout.IsMultival(b) {
		st.Symbolic.Prune(a, b, symbolic.ICmpOp(op))
		return
	}
	st.Explicit.Prune(a, b, op)
}

func toExplicitICmp(p ir.ICmpPredicate) explicitstore.ICmpOp { return explicitstore.ICmpOp(p) }

// Successor is one outcome of a Step call: an independent State plus
// whether reaching it crossed an observable boundary (spec.md §4.8) and
// whether it represents an assertion failure.
type Successor struct {
	State      *State
	Observable bool
	IsError    bool
}
