package eval

import (
	"fmt"

	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/ir"
)

// Step advances tid by exactly one instruction, returning every outcome
// (more than one only for ICmp, conditional Branch, Switch and a failed-
// vs-succeeded assert) as an independent State. st itself is never
// mutated.
func (st *State) Step(tid int) ([]Successor, error) {
	pc := st.Control.Current(tid)
	st.Layout.SwitchBB(pc.Block, tid)
	if pc.Instr >= len(pc.Block.Instructions) {
		return nil, fmt.Errorf("eval: tid %d: instruction index %d out of range in block %q", tid, pc.Instr, pc.Block.Name)
	}
	instr := pc.Block.Instructions[pc.Instr]

	switch instr.Op {
	case ir.OpICmp:
		return st.stepICmp(tid, instr)
	case ir.OpCondBr:
		return st.stepCondBr(tid, instr)
	case ir.OpBr:
		return st.stepBr(tid, instr)
	case ir.OpSwitch:
		return st.stepSwitch(tid, instr)
	case ir.OpSelect:
		return st.stepSelect(tid, instr)
	case ir.OpCall:
		return st.stepCall(tid, instr)
	case ir.OpRet:
		return st.stepRet(tid, instr)
	case ir.OpLoad:
		return st.stepLoad(tid, instr)
	case ir.OpStore:
		return st.stepStore(tid, instr)
	case ir.OpAlloca:
		return st.stepAlloca(tid, instr)
	case ir.OpGetElementPtr:
		return st.stepGEP(tid, instr)
	case ir.OpPhi:
		return st.stepPhi(tid, instr)
	case ir.OpZExt, ir.OpSExt, ir.OpTrunc:
		return st.stepCast(tid, instr)
	case ir.OpPtrToInt, ir.OpIntToPtr:
		return st.stepPtrCast(tid, instr)
	default:
		return st.stepBinary(tid, instr)
	}
}

func (st *State) single(next *State) []Successor {
	return []Successor{{State: next, Observable: false}}
}

// stepICmp forks: one side writes 1 and prunes pc ∧ cond, the other
// writes 0 and prunes pc ∧ ¬cond (spec.md §4.8).
func (st *State) stepICmp(tid int, instr *ir.Instruction) ([]Successor, error) {
	a := st.Layout.Deref(instr.Operands[0], tid, false)
	b := st.Layout.Deref(instr.Operands[1], tid, false)
	dst := st.Layout.Deref(instr.Result, tid, false)
	op := toExplicitICmp(instr.Pred)

	trueSt := st.Clone()
	trueSt.writeValue(dst, explicitstore.Const(1, instr.Result.Bitwidth))
	trueSt.prune(a, b, op)
	trueSt.Control.Advance(tid, 1)

	falseSt := st.Clone()
	falseSt.writeValue(dst, explicitstore.Const(0, instr.Result.Bitwidth))
	falseSt.prune(a, b, op.Negate())
	falseSt.Control.Advance(tid, 1)

	return []Successor{{State: trueSt}, {State: falseSt}}, nil
}

// stepCondBr forks on the branch condition, jumping each side to its
// target; a fork is observable exactly when its edge is a loop back-edge
// (spec.md §4.8).
func (st *State) stepCondBr(tid int, instr *ir.Instruction) ([]Successor, error) {
	cond := st.Layout.Deref(instr.Operands[0], tid, false)
	zero := explicitstore.Const(0, instr.Operands[0].Bitwidth)

	trueSt := st.Clone()
	trueSt.prune(cond, zero, explicitstore.ICmpNE)
	trueSt.Control.JumpTo(instr.Successors[0], tid)

	falseSt := st.Clone()
	falseSt.prune(cond, zero, explicitstore.ICmpEQ)
	falseSt.Control.JumpTo(instr.Successors[1], tid)

	return []Successor{
		{State: trueSt, Observable: instr.IsBackEdge[0]},
		{State: falseSt, Observable: instr.IsBackEdge[1]},
	}, nil
}

func (st *State) stepBr(tid int, instr *ir.Instruction) ([]Successor, error) {
	next := st.Clone()
	next.Control.JumpTo(instr.Successors[0], tid)
	return []Successor{{State: next, Observable: instr.IsBackEdge[0]}}, nil
}

// stepSwitch enumerates cases pruning on equality; the default arm is
// pruned by the conjunction of inequalities to every case (spec.md §4.8).
func (st *State) stepSwitch(tid int, instr *ir.Instruction) ([]Successor, error) {
	cond := st.Layout.Deref(instr.Operands[0], tid, false)

	var succs []Successor
	for _, c := range instr.SwitchCases {
		branch := st.Clone()
		caseVal := explicitstore.Const(c.Value.ConstValue, c.Value.Bitwidth)
		branch.prune(cond, caseVal, explicitstore.ICmpEQ)
		branch.Control.JumpTo(c.Target, tid)
		succs = append(succs, Successor{State: branch})
	}

	def := st.Clone()
	for _, c := range instr.SwitchCases {
		caseVal := explicitstore.Const(c.Value.ConstValue, c.Value.Bitwidth)
		def.prune(cond, caseVal, explicitstore.ICmpNE)
	}
	def.Control.JumpTo(instr.SwitchDefault, tid)
	succs = append(succs, Successor{State: def})

	return succs, nil
}

// stepSelect is fatal on a symbolic condition — spec.md §4.8 names this
// a deliberate non-goal, not a missing feature.
func (st *State) stepSelect(tid int, instr *ir.Instruction) ([]Successor, error) {
	cond := st.Layout.Deref(instr.Operands[0], tid, false)
	if st.Layout.IsMultival(cond) {
		return nil, fmt.Errorf("eval: select on a symbolic condition is not supported")
	}
	trueVal := st.Layout.Deref(instr.Operands[1], tid, false)
	falseVal := st.Layout.Deref(instr.Operands[2], tid, false)
	dst := st.Layout.Deref(instr.Result, tid, false)

	next := st.Clone()
	if next.Explicit.Get(cond) != 0 {
		next.writeValue(dst, trueVal)
	} else {
		next.writeValue(dst, falseVal)
	}
	next.Control.Advance(tid, 1)
	return st.single(next), nil
}

// stepBinary routes to the symbolic store iff either operand is
// multival, else to the explicit store (spec.md §4.8).
func (st *State) stepBinary(tid int, instr *ir.Instruction) ([]Successor, error) {
	a := st.Layout.Deref(instr.Operands[0], tid, false)
	b := st.Layout.Deref(instr.Operands[1], tid, false)
	dst := st.Layout.Deref(instr.Result, tid, false)

	next := st.Clone()
	multival := next.Layout.IsMultival(a) || next.Layout.IsMultival(b)
	next.Layout.SetMultival(dst, multival)

	if multival {
		fn, ok := symbolicBinOps[instr.Op]
		if !ok {
			return nil, fmt.Errorf("eval: opcode %d has no symbolic implementation", instr.Op)
		}
		fn(next.Symbolic, dst, a, b)
	} else {
		fn, ok := explicitBinOps[instr.Op]
		if !ok {
			return nil, fmt.Errorf("eval: opcode %d has no explicit implementation", instr.Op)
		}
		fn(next.Explicit, dst, a, b)
	}
	next.Control.Advance(tid, 1)
	return st.single(next), nil
}

func (st *State) stepCast(tid int, instr *ir.Instruction) ([]Successor, error) {
	a := st.Layout.Deref(instr.Operands[0], tid, false)
	dst := st.Layout.Deref(instr.Result, tid, false)

	next := st.Clone()
	if next.Layout.IsMultival(a) {
		next.Layout.SetMultival(dst, true)
		bw := int(instr.Result.Bitwidth)
		switch instr.Op {
		case ir.OpZExt:
			next.Symbolic.ImplementZExt(dst, a, bw)
		case ir.OpSExt:
			next.Symbolic.ImplementSExt(dst, a, bw)
		case ir.OpTrunc:
			next.Symbolic.ImplementTrunc(dst, a, bw)
		}
	} else {
		next.Layout.SetMultival(dst, false)
		switch instr.Op {
		case ir.OpZExt:
			next.Explicit.ImplementZExt(dst, a)
		case ir.OpSExt:
			next.Explicit.ImplementSExt(dst, a)
		case ir.OpTrunc:
			next.Explicit.ImplementTrunc(dst, a)
		}
	}
	next.Control.Advance(tid, 1)
	return st.single(next), nil
}

// stepPtrCast implements PtrToInt/IntToPtr as a plain value copy — the
// store's underlying word layout already matches (spec.md §3.5), only
// the IsPointer tag on the destination cell needs to flip.
func (st *State) stepPtrCast(tid int, instr *ir.Instruction) ([]Successor, error) {
	a := st.Layout.Deref(instr.Operands[0], tid, false)
	dst := st.Layout.Deref(instr.Result, tid, false)
	dst.Pointer = instr.Op == ir.OpIntToPtr

	next := st.Clone()
	next.writeValue(dst, a)
	next.Control.Advance(tid, 1)
	return st.single(next), nil
}

// stepLoad/stepStore resolve the pointer via the explicit store (pointers
// are never themselves symbolic — spec.md's non-goals); whether the value
// cell is multival decides which store the transferred value goes
// through. Observable whenever more than one thread exists.
func (st *State) stepLoad(tid int, instr *ir.Instruction) ([]Successor, error) {
	ptr := st.Layout.Deref(instr.Operands[0], tid, false)
	dst := st.Layout.Deref(instr.Result, tid, false)

	next := st.Clone()
	if next.Layout.IsMultival(ptr) {
		return nil, fmt.Errorf("eval: load through a symbolic pointer is not supported")
	}
	word := next.Explicit.Get(ptr)
	seg, off := explicitstore.DecodePointer(word)
	src := explicitstore.VarValue(int(seg), int(off))
	src.Pointer = next.Explicit.CellIsPointer(int(seg), int(off))
	dst.Pointer = src.Pointer

	next.writeValue(dst, src)
	next.Control.Advance(tid, 1)
	observable := next.Layout.NumThreads() > 1
	return []Successor{{State: next, Observable: observable}}, nil
}

func (st *State) stepStore(tid int, instr *ir.Instruction) ([]Successor, error) {
	ptr := st.Layout.Deref(instr.Operands[0], tid, false)
	val := st.Layout.Deref(instr.Operands[1], tid, false)

	next := st.Clone()
	if next.Layout.IsMultival(ptr) {
		return nil, fmt.Errorf("eval: store through a symbolic pointer is not supported")
	}
	word := next.Explicit.Get(ptr)
	seg, off := explicitstore.DecodePointer(word)
	dst := explicitstore.VarValue(int(seg), int(off))
	dst.Pointer = val.Pointer

	next.writeValue(dst, val)
	next.Control.Advance(tid, 1)
	observable := next.Layout.NumThreads() > 1
	return []Successor{{State: next, Observable: observable}}, nil
}

// stepAlloca creates a new stack segment of the requested cell widths and
// stores a pointer to its first cell in the destination (spec.md §4.8).
func (st *State) stepAlloca(tid int, instr *ir.Instruction) ([]Successor, error) {
	dst := st.Layout.Deref(instr.Result, tid, false)

	next := st.Clone()
	segID := next.Layout.NewSegment(tid, instr.ElemWidths)
	next.Explicit.AddSegment(segID, instr.ElemWidths)
	next.Symbolic.AddSegment(segID, instr.ElemWidths)

	word := explicitstore.EncodePointer(uint32(segID), 0)
	next.Explicit.SetCell(dst.Var.Seg, dst.Var.Off, word, true)
	next.Layout.SetMultival(dst, false)

	next.Control.Advance(tid, 1)
	return st.single(next), nil
}

// stepGEP walks the aggregate type through a compile-time-constant index
// path, summing cell offsets (spec.md §4.8; pkg/ir's Type.SizeOf counts
// cells, not bytes — see its package doc). A symbolic base pointer is
// fatal, mirroring GEP's symbolic-index non-goal.
func (st *State) stepGEP(tid int, instr *ir.Instruction) ([]Successor, error) {
	base := st.Layout.Deref(instr.Operands[0], tid, false)
	dst := st.Layout.Deref(instr.Result, tid, false)

	next := st.Clone()
	if next.Layout.IsMultival(base) {
		return nil, fmt.Errorf("eval: GEP on a symbolic pointer is not supported")
	}
	word := next.Explicit.Get(base)
	seg, off := explicitstore.DecodePointer(word)
	cellOff, _ := ir.OffsetOf(instr.GEPBaseType, instr.GEPIndices)

	next.Explicit.SetCell(dst.Var.Seg, dst.Var.Off, explicitstore.EncodePointer(seg, off+uint32(cellOff)), true)
	next.Layout.SetMultival(dst, false)

	next.Control.Advance(tid, 1)
	return st.single(next), nil
}

// stepPhi reads the incoming value matching the block control just
// arrived from.
func (st *State) stepPhi(tid int, instr *ir.Instruction) ([]Successor, error) {
	prevBlock := st.Control.PrevBlock(tid)
	var src *ir.Value
	for _, in := range instr.PhiIncoming {
		if in.From == prevBlock {
			src = in.Value
			break
		}
	}
	if src == nil {
		return nil, fmt.Errorf("eval: phi in block %q has no incoming value for predecessor %v", instr.Block.Name, prevBlock)
	}
	srcVal := st.Layout.Deref(src, tid, false)
	dst := st.Layout.Deref(instr.Result, tid, false)

	next := st.Clone()
	next.writeValue(dst, srcVal)
	next.Control.Advance(tid, 1)
	return st.single(next), nil
}

// stepRet writes the return value (if any) into the caller's destination
// slot and leaves the current frame (spec.md §4.8).
func (st *State) stepRet(tid int, instr *ir.Instruction) ([]Successor, error) {
	var retVal *explicitstore.Value
	if len(instr.Operands) > 0 {
		v := st.Layout.Deref(instr.Operands[0], tid, false)
		retVal = &v
	}
	callSite, hasCaller := st.Control.CallSite(tid)

	next := st.Clone()
	if hasCaller && retVal != nil && callSite.Instr < len(callSite.Block.Instructions) {
		callInstr := callSite.Block.Instructions[callSite.Instr]
		if callInstr.Result != nil {
			// The caller's frame map resolves its own result register; prev
			// picks the caller's segment while the callee's is still live.
			next.Layout.SwitchBB(callSite.Block, tid)
			dst := next.Layout.Deref(callInstr.Result, tid, true)
			next.writeValue(dst, *retVal)
		}
	}
	next.Control.Leave(tid)
	next.Layout.Leave(tid)
	if hasCaller {
		next.Control.Advance(tid, 1)
	}
	return st.single(next), nil
}
