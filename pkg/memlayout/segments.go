package memlayout

// addSegmentAt inserts a fresh, all-default-multival segment of the given
// cell widths at position id, shifting every recorded segment id (in
// every thread's threadSegments) at or after id up by one — the layout's
// own bookkeeping twin of explicitstore.Store.AddSegment /
// symbolic.Store.AddSegment, which the caller must insert at the same id.
func (m *MemoryLayout) addSegmentAt(id int, widths []uint8) {
	m.segmentsToTid = append(m.segmentsToTid, 0)
	copy(m.segmentsToTid[id+1:], m.segmentsToTid[id:])
	m.segmentsToTid[id] = -1

	m.multivalFlags = append(m.multivalFlags, nil)
	copy(m.multivalFlags[id+1:], m.multivalFlags[id:])
	m.multivalFlags[id] = defaultFlags(len(widths))

	for t := range m.threadSegments {
		for i, s := range m.threadSegments[t] {
			if s >= id {
				m.threadSegments[t][i] = s + 1
			}
		}
	}
}

// eraseSegmentAt removes the segment at id, shifting every higher
// recorded segment id down by one.
func (m *MemoryLayout) eraseSegmentAt(id int) {
	m.segmentsToTid = append(m.segmentsToTid[:id], m.segmentsToTid[id+1:]...)
	m.multivalFlags = append(m.multivalFlags[:id], m.multivalFlags[id+1:]...)
	for t := range m.threadSegments {
		for i, s := range m.threadSegments[t] {
			if s > id {
				m.threadSegments[t][i] = s - 1
			}
		}
	}
}

// wantedSid computes where tid's next segment should be inserted,
// mirroring memorylayout.cpp's newSegment(): for a thread's first
// segment, immediately after the most recent segment of the nearest
// lower-numbered thread that has one (or after the two reserved global
// segments if none has), or immediately after tid's own most recent
// segment otherwise.
func (m *MemoryLayout) wantedSid(tid int) int {
	if len(m.threadSegments[tid]) == 0 {
		for t := tid - 1; t >= 0; t-- {
			if prev := m.threadSegments[t]; len(prev) > 0 {
				return prev[len(prev)-1] + 1
			}
		}
		return firstUserSegment
	}
	segs := m.threadSegments[tid]
	return segs[len(segs)-1] + 1
}

// NewSegment allocates a new segment of the given cell widths for tid's
// current call frame, returning its id so the caller can insert a
// matching segment at the same position in the explicit and symbolic
// stores.
func (m *MemoryLayout) NewSegment(tid int, widths []uint8) int {
	sid := m.wantedSid(tid)
	m.addSegmentAt(sid, widths)
	m.segmentsToTid[sid] = tid
	m.threadSegments[tid] = append(m.threadSegments[tid], sid)

	top := len(m.segmentsInStack[tid]) - 1
	m.segmentsInStack[tid][top]++
	return sid
}

// NewStack pushes a fresh, empty call-frame marker onto tid's stack,
// called on function entry before any NewSegment calls for that frame.
func (m *MemoryLayout) NewStack(tid int) {
	m.segmentsInStack[tid] = append(m.segmentsInStack[tid], 0)
}

// GetLastStackSegmentRange returns the [first, last) range, into tid's
// threadSegments, of the segments belonging to the most recent call
// frame — or, if prev is set, the frame below it (the caller's frame,
// which Return writes the callee's result into).
func (m *MemoryLayout) GetLastStackSegmentRange(tid int, prev bool) (first, last int) {
	stack := m.segmentsInStack[tid]
	idx := len(stack) - 1
	if prev {
		idx--
	}
	after := 0
	for i := idx + 1; i < len(stack); i++ {
		after += stack[i]
	}
	count := 0
	if idx >= 0 {
		count = stack[idx]
	}
	total := len(m.threadSegments[tid])
	last = total - after
	first = last - count
	return
}

// StartThread allocates a new thread id and pushes its first (empty)
// call frame, returning the new tid. The caller is responsible for
// following up with NewSegment calls for the entry function's own
// allocas/argument segment.
func (m *MemoryLayout) StartThread() int {
	tid := len(m.threadSegments)
	m.threadSegments = append(m.threadSegments, nil)
	m.segmentsInStack = append(m.segmentsInStack, nil)
	m.currentFrames = append(m.currentFrames, nil)
	m.NewStack(tid)
	return tid
}

// DropLastStack erases every segment belonging to tid's most recent call
// frame (erasing one at a time via eraseSegmentAt, so later segments'
// ids collapse downward exactly as repeated single-segment erasure
// would), pops that frame marker, and — if tid has no call frame
// left — removes the thread entirely, renumbering every tid-indexed
// structure above it down by one. Returns the first erased segment id
// (0 when the frame held none) and the number of segments erased so the
// caller can mirror the same erase (and, for tid removal,
// the explicit/symbolic stores need no thread-removal step of their own
// since threads own no store-level resource beyond their segments).
func (m *MemoryLayout) DropLastStack(tid int) (first, width int) {
	firstPos, lastPos := m.GetLastStackSegmentRange(tid, false)
	width = lastPos - firstPos
	if width > 0 {
		first = m.threadSegments[tid][firstPos]
	}
	for pos := lastPos - 1; pos >= firstPos; pos-- {
		m.eraseSegmentAt(m.threadSegments[tid][pos])
	}
	m.threadSegments[tid] = m.threadSegments[tid][:len(m.threadSegments[tid])-width]
	m.segmentsInStack[tid] = m.segmentsInStack[tid][:len(m.segmentsInStack[tid])-1]

	if len(m.segmentsInStack[tid]) == 0 {
		m.removeThread(tid)
	}
	return first, width
}

// Leave drops tid's current call frame, used by Return (spec.md §4.8:
// "leaves the thread's current frame").
func (m *MemoryLayout) Leave(tid int) {
	m.DropLastStack(tid)
}

// removeThread deletes tid's bookkeeping entirely and shifts every
// thread id above it (and every segmentsToTid entry referencing one)
// down by one, collapsing the gap left by a finished thread.
func (m *MemoryLayout) removeThread(tid int) {
	m.threadSegments = append(m.threadSegments[:tid], m.threadSegments[tid+1:]...)
	m.segmentsInStack = append(m.segmentsInStack[:tid], m.segmentsInStack[tid+1:]...)
	m.currentFrames = append(m.currentFrames[:tid], m.currentFrames[tid+1:]...)
	for i, t := range m.segmentsToTid {
		if t > tid {
			m.segmentsToTid[i] = t - 1
		}
	}
}
