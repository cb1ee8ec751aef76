// Package memlayout maps program values to (segment, offset) cells and
// tracks the per-thread stack of segments those cells live in, plus which
// cells are currently tracked symbolically ("multival"). Grounded on
// original_source/src/llvmsym/memorylayout.h/.cpp's MemoryLayout class.
package memlayout

import (
	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/ir"
)

// The first two segments are reserved sentinels with no owning thread
// (segmentsToTid holds -1 for both): segment 0 backs the module's actual
// global variables, segment 1 is held in reserve so later segment-id
// arithmetic always has "two global segments" to count past exactly as
// memorylayout.cpp's newSegment() does for thread 0's first real segment
// (`wanted_sid == 2`) — nothing is ever stored in segment 1 itself.
const (
	globalSegment         = 0
	reservedGlobalSegment = 1
	firstUserSegment      = 2
)

// MemoryLayout is the driver-owned (spec.md §5: "the global variable maps
// for LLVM frames are owned by the driver") bookkeeping for where every
// program value currently lives.
type MemoryLayout struct {
	currentFrames  []*Frame
	globalValueMap map[*ir.Value]int
	frameCache     map[*ir.Function]*Frame

	threadSegments  [][]int  // per-thread: live segment ids, oldest-stack-frame-first
	segmentsInStack [][]int  // per-thread: stack of frame-widths (segment count per call depth)
	segmentsToTid   []int    // per-segment: owning tid, or -1 for the two global segments
	multivalFlags   [][]bool // per-segment, per-cell: true iff tracked symbolically
}

// New builds a layout with one main thread (tid 0) and a global segment
// sized for len(globalWidths) global variables.
func New(globalWidths []uint8) *MemoryLayout {
	m := &MemoryLayout{
		globalValueMap: map[*ir.Value]int{},
		frameCache:     map[*ir.Function]*Frame{},
		segmentsToTid:  []int{-1, -1},
		multivalFlags:  [][]bool{defaultFlags(len(globalWidths)), nil},
	}
	m.StartThread()
	return m
}

func defaultFlags(n int) []bool {
	flags := make([]bool, n)
	for i := range flags {
		flags[i] = true // spec.md §9: new slots default to multival
	}
	return flags
}

// PreassignGlobals assigns every global in globals a stable index in
// declaration order, matching globalWidths' ordering one-for-one.
// Deref would otherwise assign indices lazily on first reference, which
// is both order-dependent (the first branch explored, not declaration
// order, would decide the mapping) and unsafe once forking begins:
// Clone deliberately shares globalValueMap across every fork of a state
// (it is structural, not per-path), so mutating it from Deref during a
// parallel search would race. Calling this once, before the initial
// state is ever cloned, makes every later Deref(global) a pure read.
func (m *MemoryLayout) PreassignGlobals(globals []*ir.Value) {
	for i, g := range globals {
		m.globalValueMap[g] = i
	}
}

// NumThreads reports how many simulated threads are currently live.
func (m *MemoryLayout) NumThreads() int { return len(m.threadSegments) }

// NumSegments reports how many segments (global plus every live
// thread-owned segment) currently exist.
func (m *MemoryLayout) NumSegments() int { return len(m.segmentsToTid) }

// SwitchBB installs tid's current frame for bb, building and caching it
// the first time bb's function is visited.
func (m *MemoryLayout) SwitchBB(bb *ir.BasicBlock, tid int) {
	m.currentFrames[tid] = m.FrameFor(bb.Function)
}

// FrameFor returns fn's cached Frame, building it on first use. Exposed
// so the evaluator can size a new call's register segment (one cell per
// distinct local value in fn) before any block of fn has been entered.
func (m *MemoryLayout) FrameFor(fn *ir.Function) *Frame {
	fr, ok := m.frameCache[fn]
	if !ok {
		fr = buildFrame(fn)
		m.frameCache[fn] = fr
	}
	return fr
}

// Deref resolves v to an explicit-store operand: a literal for
// ConstantInt/ConstantPointerNull/UndefValue, a global-segment cell for a
// module global, or a cell in the most recent stack frame (the caller's
// frame below it, if prev is set — used by Return to write the result
// into the caller) otherwise. Mirrors memorylayout.cpp's
// deref().
func (m *MemoryLayout) Deref(v *ir.Value, tid int, prev bool) explicitstore.Value {
	switch v.Kind {
	case ir.KindConstInt:
		return explicitstore.Const(v.ConstValue, v.Bitwidth)
	case ir.KindConstNullPtr:
		return explicitstore.ConstPointer(0)
	case ir.KindUndef:
		if v.IsPointer {
			return explicitstore.ConstPointer(0)
		}
		return explicitstore.Const(0, v.Bitwidth)
	case ir.KindGlobal:
		idx, ok := m.globalValueMap[v]
		if !ok {
			idx = len(m.globalValueMap)
			m.globalValueMap[v] = idx
		}
		val := explicitstore.VarValue(globalSegment, idx)
		val.Pointer = v.IsPointer
		return val
	}

	frame := m.currentFrames[tid]
	idx, ok := frame.Values[v]
	if !ok {
		panic("memlayout: value not present in the current frame")
	}
	// GetLastStackSegmentRange's first/last are positions into
	// threadSegments[tid]; the frame's own dedicated segment (allocated
	// once on function entry, before any of that call's allocas) is
	// always the first position of the current frame's range.
	firstPos, _ := m.GetLastStackSegmentRange(tid, prev)
	segID := m.threadSegments[tid][firstPos]
	val := explicitstore.VarValue(segID, idx)
	val.Pointer = v.IsPointer
	return val
}

// IsMultival reports whether val's cell is currently tracked
// symbolically. Constants are never multival.
func (m *MemoryLayout) IsMultival(val explicitstore.Value) bool {
	if val.IsConstant() {
		return false
	}
	return m.multivalFlags[val.Var.Seg][val.Var.Off]
}

// SetMultival sets val's cell's multival flag to flag; constants are
// ignored. Callers both lower it (a cell receives a concrete value) and
// raise it (a cell receives a symbolic value).
func (m *MemoryLayout) SetMultival(val explicitstore.Value, flag bool) {
	if val.IsConstant() {
		return
	}
	m.multivalFlags[val.Var.Seg][val.Var.Off] = flag
}

// Clear resets the layout to an empty, thread-less state.
func (m *MemoryLayout) Clear() {
	m.currentFrames = nil
	m.globalValueMap = map[*ir.Value]int{}
	m.threadSegments = nil
	m.segmentsInStack = nil
	m.segmentsToTid = nil
	m.multivalFlags = nil
}

// Clone returns an independent deep copy of m for the evaluator's
// materializing-iterator successor generation (spec.md §9): forking a path
// must not let one branch's segment allocation or multival flags leak into
// another's. globalValueMap and frameCache are shared, not copied — both
// are purely structural (a function's Frame and a global's slot index
// depend only on the program's IR, never on the path taken to reach a
// state), matching spec.md §5's "the global variable maps for LLVM frames
// are owned by the driver", i.e. owned once, not per-state.
func (m *MemoryLayout) Clone() *MemoryLayout {
	out := &MemoryLayout{
		globalValueMap: m.globalValueMap,
		frameCache:     m.frameCache,
		currentFrames:  append([]*Frame(nil), m.currentFrames...),
		segmentsToTid:  append([]int(nil), m.segmentsToTid...),
	}
	out.threadSegments = make([][]int, len(m.threadSegments))
	for i, segs := range m.threadSegments {
		out.threadSegments[i] = append([]int(nil), segs...)
	}
	out.segmentsInStack = make([][]int, len(m.segmentsInStack))
	for i, frames := range m.segmentsInStack {
		out.segmentsInStack[i] = append([]int(nil), frames...)
	}
	out.multivalFlags = make([][]bool, len(m.multivalFlags))
	for i, flags := range m.multivalFlags {
		out.multivalFlags[i] = append([]bool(nil), flags...)
	}
	return out
}
