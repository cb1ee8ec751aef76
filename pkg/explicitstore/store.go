package explicitstore

import "fmt"

// CellInfo is the metadata carried alongside every concrete cell.
type CellInfo struct {
	Bw        uint8
	IsPointer bool
}

// Store holds the concrete-valued side of the hybrid state: one vector of
// 64-bit cells per segment, matching metadata, and a sticky "empty" flag
// that a failed prune sets (spec.md §4.3).
type Store struct {
	data  [][]uint64
	info  [][]CellInfo
	empty bool
}

// New returns an empty store with no segments.
func New() *Store {
	return &Store{}
}

func lowerToNBits(v uint64, bw uint8) uint64 {
	if bw >= 64 {
		return v
	}
	return v & ((uint64(1) << bw) - 1)
}

// AddSegment inserts a new segment at position id holding one cell per
// entry of widths, all initially zero and non-pointer. Existing segments
// at or after id shift up by one, mirroring ValueStore::addSegment's
// vector insert-at-position semantics.
func (s *Store) AddSegment(id int, widths []uint8) {
	cells := make([]uint64, len(widths))
	infos := make([]CellInfo, len(widths))
	for i, bw := range widths {
		infos[i] = CellInfo{Bw: bw}
	}

	s.data = append(s.data, nil)
	copy(s.data[id+1:], s.data[id:])
	s.data[id] = cells

	s.info = append(s.info, nil)
	copy(s.info[id+1:], s.info[id:])
	s.info[id] = infos
}

// EraseSegment removes the segment at id, shifting later segments down.
func (s *Store) EraseSegment(id int) {
	s.data = append(s.data[:id], s.data[id+1:]...)
	s.info = append(s.info[:id], s.info[id+1:]...)
}

// NumSegments reports how many segments are live.
func (s *Store) NumSegments() int { return len(s.data) }

// SegmentSize reports the cell count of segment id.
func (s *Store) SegmentSize(id int) int { return len(s.data[id]) }

// MovePointers shifts the segment half of every pointer-tagged cell whose
// segment exceeds from by moveCount — required after AddSegment/EraseSegment
// change segment numbering out from under live pointers (spec.md §4.3).
func (s *Store) MovePointers(from uint32, moveCount int) {
	for seg := range s.data {
		for off := range s.data[seg] {
			if !s.info[seg][off].IsPointer {
				continue
			}
			word := s.data[seg][off]
			pseg, _ := DecodePointer(word)
			if pseg > from {
				s.data[seg][off] = ShiftPointerSegment(word, moveCount)
			}
		}
	}
}

func (s *Store) getBw(v Value) uint8 {
	if v.IsConstant() {
		return v.constantBw
	}
	return s.info[v.Var.Seg][v.Var.Off].Bw
}

// Get reads v's current concrete value.
func (s *Store) Get(v Value) uint64 {
	if v.IsConstant() {
		return v.constant
	}
	return s.data[v.Var.Seg][v.Var.Off]
}

func (s *Store) setPointerFlag(v Value, flag bool) {
	s.info[v.Var.Seg][v.Var.Off].IsPointer = flag
}

func (s *Store) set(dst Value, raw uint64) {
	s.data[dst.Var.Seg][dst.Var.Off] = lowerToNBits(raw, s.getBw(dst))
}

// --- arithmetic (spec.md §4.3: "every arithmetic/cast/comparison op with
// modular 64-bit integer math, masking to target width") ---

func (s *Store) ImplementAdd(dst, a, b Value) {
	s.set(dst, s.Get(a)+s.Get(b))
	s.setPointerFlag(dst, a.Pointer || b.Pointer)
}

func (s *Store) ImplementSub(dst, a, b Value) {
	s.set(dst, s.Get(a)-s.Get(b))
	s.setPointerFlag(dst, a.Pointer || b.Pointer)
}

func (s *Store) ImplementMult(dst, a, b Value) {
	s.set(dst, s.Get(a)*s.Get(b))
	s.setPointerFlag(dst, a.Pointer || b.Pointer)
}

func (s *Store) ImplementDiv(dst, a, b Value) {
	s.set(dst, s.Get(a)/s.Get(b))
	s.setPointerFlag(dst, a.Pointer || b.Pointer)
}

// ImplementURem computes the unsigned remainder — a distinct operation
// from ImplementSRem at every bit width; spec.md §9 flags the original's
// missing break between the two cases as a bug, so these never share code.
func (s *Store) ImplementURem(dst, a, b Value) {
	s.set(dst, s.Get(a)%s.Get(b))
	s.setPointerFlag(dst, a.Pointer || b.Pointer)
}

// ImplementSRem computes the signed remainder at a's exact bit width.
func (s *Store) ImplementSRem(dst, a, b Value) {
	var r int64
	switch s.getBw(a) {
	case 64:
		r = int64(s.Get(a)) % int64(s.Get(b))
	case 32:
		r = int64(int32(s.Get(a)) % int32(s.Get(b)))
	case 16:
		r = int64(int16(s.Get(a)) % int16(s.Get(b)))
	case 8:
		r = int64(int8(s.Get(a)) % int8(s.Get(b)))
	default:
		panic(fmt.Sprintf("explicitstore: srem at unsupported width %d", s.getBw(a)))
	}
	s.set(dst, uint64(r))
	s.setPointerFlag(dst, a.Pointer || b.Pointer)
}

func (s *Store) ImplementAnd(dst, a, b Value) {
	s.set(dst, s.Get(a)&s.Get(b))
	s.setPointerFlag(dst, a.Pointer || b.Pointer)
}

func (s *Store) ImplementOr(dst, a, b Value) {
	s.set(dst, s.Get(a)|s.Get(b))
	s.setPointerFlag(dst, a.Pointer || b.Pointer)
}

func (s *Store) ImplementXor(dst, a, b Value) {
	s.set(dst, s.Get(a)^s.Get(b))
	s.setPointerFlag(dst, a.Pointer || b.Pointer)
}

func (s *Store) ImplementLeftShift(dst, a, b Value) {
	s.set(dst, s.Get(a)<<s.Get(b))
	s.setPointerFlag(dst, a.Pointer || b.Pointer)
}

func (s *Store) ImplementRightShift(dst, a, b Value) {
	s.set(dst, s.Get(a)>>s.Get(b))
	s.setPointerFlag(dst, a.Pointer || b.Pointer)
}

// ImplementStore copies what's value into dst, masking to dst's width and
// propagating its pointer tag.
func (s *Store) ImplementStore(dst, what Value) {
	s.set(dst, s.Get(what))
	s.setPointerFlag(dst, what.Pointer)
}

// ImplementZExt and ImplementTrunc reduce to a masked store in the
// explicit store: the target width is already recorded in dst's own
// metadata, so the mask ImplementStore applies is all they need.
// ImplementSExt additionally fills the bits above a's width with a's
// sign bit before that mask is applied.
func (s *Store) ImplementZExt(dst, a Value) { s.ImplementStore(dst, a) }
func (s *Store) ImplementSExt(dst, a Value) {
	v := s.Get(a)
	if bw := s.getBw(a); bw > 0 && bw < 64 && v&(uint64(1)<<(bw-1)) != 0 {
		v |= ^uint64(0) << bw
	}
	s.set(dst, v)
	s.setPointerFlag(dst, a.Pointer)
}
func (s *Store) ImplementTrunc(dst, a Value) { s.ImplementStore(dst, a) }

// ImplementInput always indicates a caller bug: an unconstrained input
// must be routed to the symbolic store (it cannot be represented
// concretely), mirroring ValueStore::implement_input's assert(false).
func (s *Store) ImplementInput(Value, uint8) {
	panic("explicitstore: implement_input is not representable concretely; route through the symbolic store")
}

// Prune evaluates the predicate concretely; if it fails, the store's empty
// flag latches true and stays true (spec.md §4.3/§8.1 "explicit prune
// soundness").
func (s *Store) Prune(a, b Value, op ICmpOp) {
	holds := s.evalICmp(a, b, op)
	s.empty = s.empty || !holds
}

func (s *Store) evalICmp(a, b Value, op ICmpOp) bool {
	av, bv := s.Get(a), s.Get(b)
	switch op {
	case ICmpEQ:
		return av == bv
	case ICmpNE:
		return av != bv
	case ICmpUGT:
		return av > bv
	case ICmpUGE:
		return av >= bv
	case ICmpULT:
		return av < bv
	case ICmpULE:
		return av <= bv
	case ICmpSGT, ICmpSGE, ICmpSLT, ICmpSLE:
		return s.evalSignedICmp(a, av, bv, op)
	default:
		panic(fmt.Sprintf("explicitstore: unknown ICmpOp %d", op))
	}
}

func (s *Store) evalSignedICmp(a Value, av, bv uint64, op ICmpOp) bool {
	var sa, sb int64
	switch s.getBw(a) {
	case 64:
		sa, sb = int64(av), int64(bv)
	case 32:
		sa, sb = int64(int32(av)), int64(int32(bv))
	case 16:
		sa, sb = int64(int16(av)), int64(int16(bv))
	case 8:
		sa, sb = int64(int8(av)), int64(int8(bv))
	default:
		panic(fmt.Sprintf("explicitstore: signed compare at unsupported width %d", s.getBw(a)))
	}
	switch op {
	case ICmpSGT:
		return sa > sb
	case ICmpSGE:
		return sa >= sb
	case ICmpSLT:
		return sa < sb
	case ICmpSLE:
		return sa <= sb
	default:
		panic("explicitstore: evalSignedICmp called with an unsigned op")
	}
}

// Empty reports whether any prune along this store's history has failed.
func (s *Store) Empty() bool { return s.empty }

// Clear resets the store to hold no segments at all.
func (s *Store) Clear() {
	s.data = nil
	s.info = nil
	s.empty = false
}

// CellBw reports the bit width recorded for a stored cell.
func (s *Store) CellBw(seg, off int) uint8 { return s.info[seg][off].Bw }

// CellIsPointer reports whether a stored cell currently holds a pointer.
func (s *Store) CellIsPointer(seg, off int) bool { return s.info[seg][off].IsPointer }

// SetCell writes a raw value directly into a cell, masking to its
// recorded width. Used by the evaluator for operations (Alloca, GEP,
// pointer stores) that don't go through one of the Implement* ops.
func (s *Store) SetCell(seg, off int, raw uint64, isPointer bool) {
	s.data[seg][off] = lowerToNBits(raw, s.info[seg][off].Bw)
	s.info[seg][off].IsPointer = isPointer
}
