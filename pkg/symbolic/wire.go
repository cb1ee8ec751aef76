package symbolic

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/symbion/symck/pkg/formula"
)

// WriteTo serialises the symbolic region in the order spec.md §6.1
// mandates: the segment bookkeeping arrays, then the definition set, then
// the path condition — mirroring SMTStore::writeData's field order
// (segments_mapping, generations, bitWidths, fst_unused_id, definitions,
// path_condition).
func (s *Store) WriteTo(w io.Writer) error {
	n := len(s.segmentsMapping)
	if err := writeU16(w, uint16(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := writeU16(w, s.segmentsMapping[i]); err != nil {
			return err
		}
		if err := writeU16(w, uint16(len(s.generations[i]))); err != nil {
			return err
		}
		for _, g := range s.generations[i] {
			if err := writeU16(w, g); err != nil {
				return err
			}
		}
		for _, bw := range s.bitWidths[i] {
			if err := writeByte(w, bw); err != nil {
				return err
			}
		}
	}
	if err := writeU16(w, s.fstUnusedID); err != nil {
		return err
	}

	if err := writeU64(w, uint64(len(s.definitions))); err != nil {
		return err
	}
	for _, d := range s.definitions {
		if err := writeIdent(w, d.Ident); err != nil {
			return err
		}
		if err := writeFormula(w, d.Body); err != nil {
			return err
		}
	}

	if err := writeU64(w, uint64(len(s.pathCondition))); err != nil {
		return err
	}
	for _, pc := range s.pathCondition {
		if err := writeFormula(w, pc); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrom reconstructs the store from a stream written by WriteTo. The
// store is cleared first.
func (s *Store) ReadFrom(r io.Reader) error {
	s.Clear()

	n, err := readU16(r)
	if err != nil {
		return err
	}
	count := int(n)
	s.segmentsMapping = make([]uint16, count)
	s.generations = make([][]uint16, count)
	s.bitWidths = make([][]uint8, count)
	for i := 0; i < count; i++ {
		seg, err := readU16(r)
		if err != nil {
			return err
		}
		s.segmentsMapping[i] = seg

		slots, err := readU16(r)
		if err != nil {
			return err
		}
		gens := make([]uint16, slots)
		for j := range gens {
			g, err := readU16(r)
			if err != nil {
				return err
			}
			gens[j] = g
		}
		s.generations[i] = gens

		widths := make([]uint8, slots)
		for j := range widths {
			bw, err := readByte(r)
			if err != nil {
				return err
			}
			widths[j] = bw
		}
		s.bitWidths[i] = widths
	}

	fstUnused, err := readU16(r)
	if err != nil {
		return err
	}
	s.fstUnusedID = fstUnused

	defCount, err := readU64(r)
	if err != nil {
		return err
	}
	s.definitions = make([]formula.Definition, defCount)
	for i := range s.definitions {
		ident, err := readIdent(r)
		if err != nil {
			return err
		}
		body, err := readFormula(r)
		if err != nil {
			return err
		}
		s.definitions[i] = formula.Definition{Ident: ident, Body: body}
	}

	pcCount, err := readU64(r)
	if err != nil {
		return err
	}
	s.pathCondition = make([]formula.Formula, pcCount)
	for i := range s.pathCondition {
		pc, err := readFormula(r)
		if err != nil {
			return err
		}
		s.pathCondition[i] = pc
	}
	return nil
}

func writeIdent(w io.Writer, id formula.Ident) error {
	if err := writeU16(w, id.Seg); err != nil {
		return err
	}
	if err := writeU16(w, id.Off); err != nil {
		return err
	}
	if err := writeU16(w, id.Gen); err != nil {
		return err
	}
	return writeByte(w, id.Bw)
}

func readIdent(r io.Reader) (formula.Ident, error) {
	var id formula.Ident
	var err error
	if id.Seg, err = readU16(r); err != nil {
		return id, err
	}
	if id.Off, err = readU16(r); err != nil {
		return id, err
	}
	if id.Gen, err = readU16(r); err != nil {
		return id, err
	}
	id.Bw, err = readByte(r)
	return id, err
}

// writeFormula serialises a formula as its item count followed by each item
// in postfix order: a one-byte Kind tag, then the fields relevant to that
// kind.
func writeFormula(w io.Writer, f formula.Formula) error {
	items := f.Items()
	if err := writeU64(w, uint64(len(items))); err != nil {
		return err
	}
	for _, it := range items {
		if err := writeByte(w, byte(it.Kind)); err != nil {
			return err
		}
		switch it.Kind {
		case formula.KindIdentifier:
			if err := writeIdent(w, it.Ident); err != nil {
				return err
			}
		case formula.KindConstant:
			if err := writeByte(w, it.Ident.Bw); err != nil {
				return err
			}
			if err := writeI64(w, it.Value); err != nil {
				return err
			}
		case formula.KindBoolVal:
			if err := writeI64(w, it.Value); err != nil {
				return err
			}
		case formula.KindOp:
			if err := writeByte(w, byte(it.Op)); err != nil {
				return err
			}
			if err := writeI64(w, it.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func readFormula(r io.Reader) (formula.Formula, error) {
	n, err := readU64(r)
	if err != nil {
		return formula.Formula{}, err
	}
	items := make([]formula.Item, n)
	for i := range items {
		kindByte, err := readByte(r)
		if err != nil {
			return formula.Formula{}, err
		}
		kind := formula.Kind(kindByte)
		it := formula.Item{Kind: kind}
		switch kind {
		case formula.KindIdentifier:
			id, err := readIdent(r)
			if err != nil {
				return formula.Formula{}, err
			}
			it.Ident = id
		case formula.KindConstant:
			bw, err := readByte(r)
			if err != nil {
				return formula.Formula{}, err
			}
			val, err := readI64(r)
			if err != nil {
				return formula.Formula{}, err
			}
			it.Ident = formula.Ident{Bw: bw}
			it.Value = val
		case formula.KindBoolVal:
			val, err := readI64(r)
			if err != nil {
				return formula.Formula{}, err
			}
			it.Value = val
		case formula.KindOp:
			opByte, err := readByte(r)
			if err != nil {
				return formula.Formula{}, err
			}
			val, err := readI64(r)
			if err != nil {
				return formula.Formula{}, err
			}
			it.Op = formula.Op(opByte)
			it.Value = val
		default:
			return formula.Formula{}, fmt.Errorf("symbolic: unknown item kind %d", kindByte)
		}
		items[i] = it
	}
	return formula.FromItems(items), nil
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
		return 0, fmt.Errorf("symbolic: read u64: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeI64(w io.Writer, v int64) error { return writeU64(w, uint64(v)) }

func readI64(r io.Reader) (int64, error) {
	v, err := readU64(r)
	return int64(v), err
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("symbolic: read u16: %w", err)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("symbolic: read byte: %w", err)
	}
	return buf[0], nil
}
