package eval

import (
	"fmt"
	"strings"

	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/ir"
)

// ignoredCallees names standard I/O and mutex init/destroy/lifetime
// intrinsics the evaluator advances past without any store effect
// (spec.md §4.8: "Ignored: standard I/O and mutex init/destroy and
// lifetime intrinsics").
var ignoredCallees = map[string]bool{
	"printf": true, "puts": true, "putchar": true, "scanf": true, "fflush": true,
	"pthread_mutex_init": true, "pthread_mutex_destroy": true,
	"pthread_exit":           true,
	"llvm.lifetime.start":    true,
	"llvm.lifetime.start.p0": true,
	"llvm.lifetime.end":      true,
	"llvm.lifetime.end.p0":   true,
}

// stepCall dispatches a Call instruction to its intrinsic handler, or
// (the default) pushes the callee's arguments into a new register
// segment and enters it (spec.md §4.8).
func (st *State) stepCall(tid int, instr *ir.Instruction) ([]Successor, error) {
	switch {
	case strings.HasPrefix(instr.Callee, "__VERIFIER_nondet"):
		return st.stepNondet(tid, instr)
	case instr.Callee == "__VERIFIER_assume":
		return st.stepAssume(tid, instr)
	case instr.Callee == "assert" || instr.Callee == "__VERIFIER_assert":
		return st.stepAssert(tid, instr)
	case instr.Callee == "pthread_create":
		return st.stepPthreadCreate(tid, instr)
	case instr.Callee == "pthread_join":
		return st.stepPthreadJoin(tid, instr)
	case instr.Callee == "pthread_mutex_lock":
		return st.stepMutexLock(tid, instr)
	case instr.Callee == "pthread_mutex_unlock":
		return st.stepMutexUnlock(tid, instr)
	case ignoredCallees[instr.Callee]:
		next := st.Clone()
		next.Control.Advance(tid, 1)
		return st.single(next), nil
	default:
		return st.stepOrdinaryCall(tid, instr)
	}
}

// stepNondet advances the destination's generation and marks it
// multival — an unconstrained input (spec.md §4.8).
func (st *State) stepNondet(tid int, instr *ir.Instruction) ([]Successor, error) {
	dst := st.Layout.Deref(instr.Result, tid, false)
	next := st.Clone()
	next.Layout.SetMultival(dst, true)
	next.Symbolic.ImplementInput(dst)
	next.Control.Advance(tid, 1)
	return st.single(next), nil
}

// stepAssume prunes cond ≠ 0 (spec.md §4.8).
func (st *State) stepAssume(tid int, instr *ir.Instruction) ([]Successor, error) {
	cond := st.Layout.Deref(instr.Args[0], tid, false)
	zero := explicitstore.Const(0, instr.Args[0].Bitwidth)
	next := st.Clone()
	next.prune(cond, zero, explicitstore.ICmpNE)
	next.Control.Advance(tid, 1)
	return st.single(next), nil
}

// stepAssert forks: the success branch prunes cond ≠ 0, the failure
// branch prunes cond = 0 and sets the error flag (spec.md §4.8).
func (st *State) stepAssert(tid int, instr *ir.Instruction) ([]Successor, error) {
	cond := st.Layout.Deref(instr.Args[0], tid, false)
	zero := explicitstore.Const(0, instr.Args[0].Bitwidth)

	ok := st.Clone()
	ok.prune(cond, zero, explicitstore.ICmpNE)
	ok.Control.Advance(tid, 1)

	fail := st.Clone()
	fail.prune(cond, zero, explicitstore.ICmpEQ)
	fail.Error = true
	fail.Control.Advance(tid, 1)

	return []Successor{
		{State: ok},
		{State: fail, IsError: true},
	}, nil
}

// stepPthreadCreate starts a new thread at the named function and
// stores its tid at the address pointed to by the first argument
// (spec.md §4.8). The started function's single parameter takes
// pthread_create's fourth argument (the void* passed to the start
// routine), matching the POSIX `start_routine(arg)` calling convention.
func (st *State) stepPthreadCreate(tid int, instr *ir.Instruction) ([]Successor, error) {
	if len(instr.Args) < 4 || instr.Args[2].Kind != ir.KindFunction {
		return nil, fmt.Errorf("eval: pthread_create: expected (thread*, attr*, start_routine, arg)")
	}
	target := st.Module.FindFunction(instr.Args[2].Name)
	if target == nil {
		return nil, fmt.Errorf("eval: pthread_create: unknown function %q", instr.Args[2].Name)
	}
	threadPtr := st.Layout.Deref(instr.Args[0], tid, false)
	arg := st.Layout.Deref(instr.Args[3], tid, false)

	next := st.Clone()
	newTid := next.Control.StartThread(target)
	got := next.Layout.StartThread()
	if got != newTid {
		return nil, fmt.Errorf("eval: pthread_create: control/layout tid allocation diverged (%d vs %d)", newTid, got)
	}
	next.enterFunction(newTid, target, []explicitstore.Value{arg}, false)

	word := next.Explicit.Get(threadPtr)
	seg, off := explicitstore.DecodePointer(word)
	next.Explicit.SetCell(int(seg), int(off), uint64(newTid), false)

	next.Control.Advance(tid, 1)
	return []Successor{{State: next, Observable: true}}, nil
}

// stepPthreadJoin leaves tid on the join instruction (the caller retries
// it on its next step) while the named tid still has a live thread,
// otherwise continues (spec.md §4.8).
// Args[0] is the same thread-handle pointer pthread_create wrote the
// started tid through, so the tid itself is read back by dereferencing
// it exactly as stepPthreadCreate wrote it.
func (st *State) stepPthreadJoin(tid int, instr *ir.Instruction) ([]Successor, error) {
	threadPtr := st.Layout.Deref(instr.Args[0], tid, false)
	next := st.Clone()
	word := next.Explicit.Get(threadPtr)
	seg, off := explicitstore.DecodePointer(word)
	waited := int(next.Explicit.Get(explicitstore.VarValue(int(seg), int(off))))

	if !(waited >= 0 && waited < next.Layout.NumThreads() && waited != tid && threadAlive(next, waited)) {
		next.Control.Advance(tid, 1)
	}
	return []Successor{{State: next, Observable: true}}, nil
}

// threadAlive reports whether tid still has a pending instruction — a
// thread that has run its Return down to its last frame was already
// removed by Control.Leave, so any tid still within NumThreads() and
// distinct from the joiner is still running.
func threadAlive(st *State, tid int) bool {
	return tid < st.Control.NumThreads()
}

// stepMutexLock sets the mutex cell to 1 and continues if it reads zero,
// otherwise leaves tid on the lock instruction to retry (spec.md §4.8).
func (st *State) stepMutexLock(tid int, instr *ir.Instruction) ([]Successor, error) {
	mutex := st.Layout.Deref(instr.Args[0], tid, false)
	next := st.Clone()
	if next.Explicit.Get(mutex) == 0 {
		next.Explicit.SetCell(mutex.Var.Seg, mutex.Var.Off, 1, false)
		next.Control.Advance(tid, 1)
	}
	return []Successor{{State: next, Observable: true}}, nil
}

// stepMutexUnlock zeroes the mutex cell (spec.md §4.8).
func (st *State) stepMutexUnlock(tid int, instr *ir.Instruction) ([]Successor, error) {
	mutex := st.Layout.Deref(instr.Args[0], tid, false)
	next := st.Clone()
	next.Explicit.SetCell(mutex.Var.Seg, mutex.Var.Off, 0, false)
	next.Control.Advance(tid, 1)
	return []Successor{{State: next, Observable: true}}, nil
}

// stepOrdinaryCall pushes the caller's argument values into a new
// register segment and enters the callee (spec.md §4.8).
func (st *State) stepOrdinaryCall(tid int, instr *ir.Instruction) ([]Successor, error) {
	target := st.Module.FindFunction(instr.Callee)
	if target == nil {
		return nil, fmt.Errorf("eval: call to unknown function %q", instr.Callee)
	}
	args := make([]explicitstore.Value, len(instr.Args))
	for i, a := range instr.Args {
		args[i] = st.Layout.Deref(a, tid, false)
	}

	next := st.Clone()
	next.enterFunction(tid, target, args, true)
	return st.single(next), nil
}
