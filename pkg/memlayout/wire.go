package memlayout

import (
	"encoding/binary"
	"io"

	"github.com/symbion/symck/pkg/ir"
)

// WriteTo serialises the thread/segment bookkeeping — thread_segments,
// segments_in_stack, and the multival flags — mirroring
// memorylayout.h's writeData. spec.md §6.1 lists this as one of the
// per-store wire formats folded into a state blob's explicit region
// (alongside pkg/control and pkg/explicitstore's own WriteTo methods);
// pkg/search's state-identity encoding is what actually does that
// folding.
func (m *MemoryLayout) WriteTo(w io.Writer) error {
	if err := writeIntSlice2D(w, m.threadSegments); err != nil {
		return err
	}
	if err := writeIntSlice2D(w, m.segmentsInStack); err != nil {
		return err
	}
	if err := writeIntSlice(w, m.segmentsToTid); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(m.multivalFlags))); err != nil {
		return err
	}
	for _, seg := range m.multivalFlags {
		if err := writeBoolSlice(w, seg); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrom reconstructs the bookkeeping WriteTo serialised. Frame caches
// and the global value map are not restored — they are rebuilt lazily
// from the *ir.Module the caller re-attaches after a restore, since
// *ir.Value pointer identity cannot survive a byte round trip.
func (m *MemoryLayout) ReadFrom(r io.Reader) error {
	var err error
	if m.threadSegments, err = readIntSlice2D(r); err != nil {
		return err
	}
	if m.segmentsInStack, err = readIntSlice2D(r); err != nil {
		return err
	}
	if m.segmentsToTid, err = readIntSlice(r); err != nil {
		return err
	}
	n, err := readU32(r)
	if err != nil {
		return err
	}
	m.multivalFlags = make([][]bool, n)
	for i := range m.multivalFlags {
		if m.multivalFlags[i], err = readBoolSlice(r); err != nil {
			return err
		}
	}
	m.currentFrames = make([]*Frame, len(m.threadSegments))
	m.globalValueMap = map[*ir.Value]int{}
	m.frameCache = map[*ir.Function]*Frame{}
	return nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeIntSlice(w io.Writer, s []int) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	for _, v := range s {
		if err := writeU32(w, uint32(int32(v))); err != nil {
			return err
		}
	}
	return nil
}

func readIntSlice(r io.Reader) ([]int, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i := range out {
		v, err := readU32(r)
		if err != nil {
			return nil, err
		}
		out[i] = int(int32(v))
	}
	return out, nil
}

func writeIntSlice2D(w io.Writer, s [][]int) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	for _, inner := range s {
		if err := writeIntSlice(w, inner); err != nil {
			return err
		}
	}
	return nil
}

func readIntSlice2D(r io.Reader) ([][]int, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([][]int, n)
	for i := range out {
		if out[i], err = readIntSlice(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeBoolSlice(w io.Writer, s []bool) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	for _, b := range s {
		var v byte
		if b {
			v = 1
		}
		if _, err := w.Write([]byte{v}); err != nil {
			return err
		}
	}
	return nil
}

func readBoolSlice(r io.Reader) ([]bool, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]bool, n)
	var buf [1]byte
	for i := range out {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		out[i] = buf[0] != 0
	}
	return out, nil
}
