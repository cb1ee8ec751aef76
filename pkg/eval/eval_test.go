package eval

import (
	"testing"

	"github.com/symbion/symck/pkg/ir"
)

// simpleModule builds a one-function module whose entry block holds the
// given instructions, wiring each instruction's Block pointer and
// returning the module, the function and the entry block.
func simpleModule(name string, instrs ...*ir.Instruction) (*ir.Module, *ir.Function, *ir.BasicBlock) {
	fn := &ir.Function{Name: name}
	bb := &ir.BasicBlock{Name: "entry", Function: fn}
	for _, in := range instrs {
		in.Block = bb
	}
	bb.Instructions = instrs
	fn.Blocks = []*ir.BasicBlock{bb}
	mod := &ir.Module{Name: "m", Functions: []*ir.Function{fn}}
	return mod, fn, bb
}

func TestICmpForksTrueAndFalse(t *testing.T) {
	a := ir.NewRegister("a", 32, false)
	dst := ir.NewRegister("cmp", 1, false)
	icmp := &ir.Instruction{
		Op:       ir.OpICmp,
		Pred:     ir.ICmpEQ,
		Operands: []*ir.Value{a, ir.NewConstInt(0, 32)},
		Result:   dst,
	}
	ret := &ir.Instruction{Op: ir.OpRet}
	mod, fn, _ := simpleModule("main", icmp, ret)

	st := NewInitial(mod, fn, nil)
	succs, err := st.Step(0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(succs) != 2 {
		t.Fatalf("expected 2 successors from ICmp, got %d", len(succs))
	}
	for _, s := range succs {
		if s.State == st {
			t.Fatalf("Step must never return the receiver itself")
		}
	}
}

func TestCondBrMarksBackEdgeObservable(t *testing.T) {
	a := ir.NewRegister("a", 32, false)
	condbr := &ir.Instruction{
		Op:         ir.OpCondBr,
		Operands:   []*ir.Value{a},
		IsBackEdge: []bool{true, false},
	}
	mod, fn, entry := simpleModule("main", condbr)
	loop := &ir.BasicBlock{Name: "loop", Function: fn}
	loop.Instructions = []*ir.Instruction{{Op: ir.OpRet, Block: loop}}
	exit := &ir.BasicBlock{Name: "exit", Function: fn}
	exit.Instructions = []*ir.Instruction{{Op: ir.OpRet, Block: exit}}
	fn.Blocks = append(fn.Blocks, loop, exit)
	condbr.Successors = []*ir.BasicBlock{loop, exit}
	_ = entry

	st := NewInitial(mod, fn, nil)
	succs, err := st.Step(0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(succs) != 2 {
		t.Fatalf("expected 2 successors, got %d", len(succs))
	}
	if !succs[0].Observable {
		t.Errorf("the back-edge successor should be observable")
	}
	if succs[1].Observable {
		t.Errorf("the forward-edge successor should not be observable")
	}
}

func TestSwitchPrunesEachCaseAndDefault(t *testing.T) {
	a := ir.NewRegister("a", 32, false)
	sw := &ir.Instruction{
		Op:       ir.OpSwitch,
		Operands: []*ir.Value{a},
	}
	mod, fn, _ := simpleModule("main", sw)
	caseBlock := &ir.BasicBlock{Name: "case1", Function: fn}
	caseBlock.Instructions = []*ir.Instruction{{Op: ir.OpRet, Block: caseBlock}}
	defBlock := &ir.BasicBlock{Name: "default", Function: fn}
	defBlock.Instructions = []*ir.Instruction{{Op: ir.OpRet, Block: defBlock}}
	fn.Blocks = append(fn.Blocks, caseBlock, defBlock)
	sw.SwitchCases = []ir.SwitchCase{{Value: ir.NewConstInt(1, 32), Target: caseBlock}}
	sw.SwitchDefault = defBlock

	st := NewInitial(mod, fn, nil)
	succs, err := st.Step(0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(succs) != 2 {
		t.Fatalf("expected one successor per case plus a default, got %d", len(succs))
	}
}

func TestCallAndReturnRoundTrip(t *testing.T) {
	// callee(arg) { return arg }
	arg := ir.NewArgument("arg", 32, false)
	calleeRet := &ir.Instruction{Op: ir.OpRet, Operands: []*ir.Value{arg}}
	calleeFn := &ir.Function{Name: "callee", Args: []*ir.Value{arg}}
	calleeEntry := &ir.BasicBlock{Name: "entry", Function: calleeFn}
	calleeRet.Block = calleeEntry
	calleeEntry.Instructions = []*ir.Instruction{calleeRet}
	calleeFn.Blocks = []*ir.BasicBlock{calleeEntry}

	// main() { %y = call callee(7); ret }
	dst := ir.NewRegister("y", 32, false)
	call := &ir.Instruction{
		Op:     ir.OpCall,
		Callee: "callee",
		Args:   []*ir.Value{ir.NewConstInt(7, 32)},
		Result: dst,
	}
	mainRet := &ir.Instruction{Op: ir.OpRet}
	mod, mainFn, _ := simpleModule("main", call, mainRet)
	mod.Functions = append(mod.Functions, calleeFn)
	calleeFn.Module = mod

	st := NewInitial(mod, mainFn, nil)
	succs, err := st.Step(0)
	if err != nil {
		t.Fatalf("Step (call): %v", err)
	}
	if len(succs) != 1 {
		t.Fatalf("expected exactly one successor from a call, got %d", len(succs))
	}
	next := succs[0].State
	pc := next.Control.Current(0)
	if pc.Block != calleeEntry {
		t.Fatalf("expected control to have entered the callee's entry block")
	}

	succs, err = next.Step(0)
	if err != nil {
		t.Fatalf("Step (return): %v", err)
	}
	if len(succs) != 1 {
		t.Fatalf("expected exactly one successor from a return, got %d", len(succs))
	}
	final := succs[0].State
	dstVal := final.Layout.Deref(dst, 0, false)
	if got := final.Explicit.Get(dstVal); got != 7 {
		t.Errorf("expected the call's result to be written back as 7, got %d", got)
	}
	pc = final.Control.Current(0)
	if pc.Block != mainFn.Blocks[0] || pc.Instr != 1 {
		t.Fatalf("expected the caller to resume one instruction past the call, got %+v", pc)
	}
}

func TestAllocaStoreLoadRoundTrip(t *testing.T) {
	ptr := ir.NewRegister("p", 64, true)
	alloca := &ir.Instruction{Op: ir.OpAlloca, Result: ptr, ElemWidths: []uint8{32}}
	store := &ir.Instruction{Op: ir.OpStore, Operands: []*ir.Value{ptr, ir.NewConstInt(99, 32)}}
	loaded := ir.NewRegister("v", 32, false)
	load := &ir.Instruction{Op: ir.OpLoad, Operands: []*ir.Value{ptr}, Result: loaded}
	ret := &ir.Instruction{Op: ir.OpRet}
	mod, fn, _ := simpleModule("main", alloca, store, load, ret)

	st := NewInitial(mod, fn, nil)
	for i := 0; i < 3; i++ {
		succs, err := st.Step(0)
		if err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if len(succs) != 1 {
			t.Fatalf("Step %d: expected a single successor, got %d", i, len(succs))
		}
		st = succs[0].State
	}

	loadedVal := st.Layout.Deref(loaded, 0, false)
	if got := st.Explicit.Get(loadedVal); got != 99 {
		t.Errorf("expected the loaded value to be 99, got %d", got)
	}
}

func TestAssertForksSuccessAndFailure(t *testing.T) {
	cond := ir.NewRegister("c", 32, false)
	assert := &ir.Instruction{Op: ir.OpCall, Callee: "assert", Args: []*ir.Value{cond}}
	ret := &ir.Instruction{Op: ir.OpRet}
	mod, fn, _ := simpleModule("main", assert, ret)

	st := NewInitial(mod, fn, nil)
	succs, err := st.Step(0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(succs) != 2 {
		t.Fatalf("expected assert to fork into 2 successors, got %d", len(succs))
	}
	var sawError bool
	for _, s := range succs {
		if s.IsError {
			sawError = true
			if !s.State.Error {
				t.Errorf("the error successor must have State.Error set")
			}
		}
	}
	if !sawError {
		t.Errorf("expected one successor to be flagged IsError")
	}
}

func TestPthreadCreateAndJoin(t *testing.T) {
	// worker(arg) { ret }
	warg := ir.NewArgument("arg", 32, false)
	workerFn := &ir.Function{Name: "worker", Args: []*ir.Value{warg}}
	workerEntry := &ir.BasicBlock{Name: "entry", Function: workerFn}
	workerRet := &ir.Instruction{Op: ir.OpRet, Block: workerEntry}
	workerEntry.Instructions = []*ir.Instruction{workerRet}
	workerFn.Blocks = []*ir.BasicBlock{workerEntry}

	// main() { %tptr = alloca; call pthread_create(%tptr, null, worker, 5);
	//          call pthread_join(%tptr); ret }
	tptr := ir.NewRegister("t", 64, true)
	alloca := &ir.Instruction{Op: ir.OpAlloca, Result: tptr, ElemWidths: []uint8{32}}
	create := &ir.Instruction{
		Op:     ir.OpCall,
		Callee: "pthread_create",
		Args:   []*ir.Value{tptr, ir.NewConstNullPtr(), ir.NewFunctionRef("worker"), ir.NewConstInt(5, 32)},
	}
	join := &ir.Instruction{
		Op:     ir.OpCall,
		Callee: "pthread_join",
		Args:   []*ir.Value{tptr},
	}
	ret := &ir.Instruction{Op: ir.OpRet}
	mod, mainFn, _ := simpleModule("main", alloca, create, join, ret)
	mod.Functions = append(mod.Functions, workerFn)
	workerFn.Module = mod

	st := NewInitial(mod, mainFn, nil)

	succs, err := st.Step(0) // alloca
	if err != nil {
		t.Fatalf("alloca: %v", err)
	}
	st = succs[0].State

	succs, err = st.Step(0) // pthread_create
	if err != nil {
		t.Fatalf("pthread_create: %v", err)
	}
	if len(succs) != 1 || !succs[0].Observable {
		t.Fatalf("expected a single observable successor from pthread_create")
	}
	st = succs[0].State
	if st.Control.NumThreads() != 2 {
		t.Fatalf("expected a second thread to have started, got %d threads", st.Control.NumThreads())
	}

	succs, err = st.Step(0) // pthread_join: worker still alive, must rewind
	if err != nil {
		t.Fatalf("pthread_join (waiting): %v", err)
	}
	waiting := succs[0].State
	if pc := waiting.Control.Current(0); pc.Instr != 2 {
		t.Fatalf("expected the joiner to retry at the join instruction, got instr %d", pc.Instr)
	}

	// Run the worker to completion, then join should proceed.
	succs, err = st.Step(1) // worker's ret
	if err != nil {
		t.Fatalf("worker ret: %v", err)
	}
	st = succs[0].State
	if st.Control.NumThreads() != 1 {
		t.Fatalf("expected the worker thread to be removed after returning, got %d threads", st.Control.NumThreads())
	}

	succs, err = st.Step(0) // pthread_join: worker gone, must proceed
	if err != nil {
		t.Fatalf("pthread_join (done): %v", err)
	}
	done := succs[0].State
	if pc := done.Control.Current(0); pc.Instr != 3 {
		t.Fatalf("expected the joiner to advance past the join instruction, got instr %d", pc.Instr)
	}
}

func TestGEPWalksStructFieldOffset(t *testing.T) {
	structTy := ir.StructType{Fields: []ir.Type{ir.IntType{Width: 32}, ir.IntType{Width: 32}}}
	base := ir.NewRegister("base", 64, true)
	alloca := &ir.Instruction{Op: ir.OpAlloca, Result: base, ElemWidths: []uint8{32, 32}}
	field := ir.NewRegister("field", 64, true)
	gep := &ir.Instruction{
		Op:          ir.OpGetElementPtr,
		Operands:    []*ir.Value{base},
		Result:      field,
		GEPBaseType: structTy,
		GEPIndices:  []int64{0, 1},
	}
	stored := ir.NewConstInt(123, 32)
	store := &ir.Instruction{Op: ir.OpStore, Operands: []*ir.Value{field, stored}}
	loaded := ir.NewRegister("out", 32, false)
	load := &ir.Instruction{Op: ir.OpLoad, Operands: []*ir.Value{field}, Result: loaded}
	ret := &ir.Instruction{Op: ir.OpRet}
	mod, fn, _ := simpleModule("main", alloca, gep, store, load, ret)

	st := NewInitial(mod, fn, nil)
	for i := 0; i < 4; i++ {
		succs, err := st.Step(0)
		if err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		st = succs[0].State
	}

	loadedVal := st.Layout.Deref(loaded, 0, false)
	if got := st.Explicit.Get(loadedVal); got != 123 {
		t.Errorf("expected the value stored through the GEP'd field pointer to read back as 123, got %d", got)
	}
}
