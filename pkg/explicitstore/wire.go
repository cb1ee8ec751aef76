package explicitstore

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteTo serialises the store's explicit region in the order spec.md §6.1
// mandates: segment count, then per segment its cell count and raw u64
// values, then per-segment cell metadata, then the sticky empty flag.
func (s *Store) WriteTo(w io.Writer) error {
	if err := writeU64(w, uint64(len(s.data))); err != nil {
		return err
	}
	for _, seg := range s.data {
		if err := writeU64(w, uint64(len(seg))); err != nil {
			return err
		}
		for _, v := range seg {
			if err := writeU64(w, v); err != nil {
				return err
			}
		}
	}
	for _, infos := range s.info {
		for _, ci := range infos {
			if err := writeByte(w, ci.Bw); err != nil {
				return err
			}
			flag := byte(0)
			if ci.IsPointer {
				flag = 1
			}
			if err := writeByte(w, flag); err != nil {
				return err
			}
		}
	}
	return writeByte(w, boolByte(s.empty))
}

// ReadFrom reconstructs the store from a stream written by WriteTo. The
// store is cleared first.
func (s *Store) ReadFrom(r io.Reader) error {
	s.Clear()
	n, err := readU64(r)
	if err != nil {
		return err
	}

	lens := make([]int, n)
	s.data = make([][]uint64, n)
	for i := range s.data {
		segLen, err := readU64(r)
		if err != nil {
			return err
		}
		lens[i] = int(segLen)
		seg := make([]uint64, segLen)
		for j := range seg {
			v, err := readU64(r)
			if err != nil {
				return err
			}
			seg[j] = v
		}
		s.data[i] = seg
	}

	s.info = make([][]CellInfo, n)
	for i := range s.info {
		infos := make([]CellInfo, lens[i])
		for j := range infos {
			bw, err := readByte(r)
			if err != nil {
				return err
			}
			flag, err := readByte(r)
			if err != nil {
				return err
			}
			infos[j] = CellInfo{Bw: bw, IsPointer: flag != 0}
		}
		s.info[i] = infos
	}

	emptyByte, err := readByte(r)
	if err != nil {
		return err
	}
	s.empty = emptyByte != 0
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("explicitstore: read u64: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("explicitstore: read byte: %w", err)
	}
	return buf[0], nil
}
