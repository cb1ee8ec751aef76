package ir

// Type describes an aggregate shape well enough for GEP (spec.md §4.8:
// "Walks the struct/array type, summing field offsets at compile-time
// -constant indices") to compute an offset without a real LLVM type
// system behind it. SizeOf counts *cells* — memlayout's segments are
// arrays of uniform explicit/symbolic store cells (spec.md §3.6), not raw
// bytes, so every scalar occupies exactly one cell regardless of its
// declared bit width.
type Type interface {
	// SizeOf returns the type's size in cells.
	SizeOf() uint64
}

// IntType is a scalar integer of the given bit width — one cell.
type IntType struct {
	Width uint8
}

func (IntType) SizeOf() uint64 { return 1 }

// PointerType is one cell, holding a segment:offset pointer word
// (spec.md §3.5).
type PointerType struct{ Elem Type }

func (PointerType) SizeOf() uint64 { return 1 }

// ArrayType is Count repetitions of Elem.
type ArrayType struct {
	Elem  Type
	Count int
}

func (t ArrayType) SizeOf() uint64 { return t.Elem.SizeOf() * uint64(t.Count) }

// StructType is an ordered, packed sequence of fields (no alignment
// padding — GEP offset arithmetic below assumes packed layout, matching
// the level of fidelity the rest of this package targets).
type StructType struct {
	Fields []Type
}

func (t StructType) SizeOf() uint64 {
	var total uint64
	for _, f := range t.Fields {
		total += f.SizeOf()
	}
	return total
}

// FieldOffset returns the cell offset of field i within the struct.
func (t StructType) FieldOffset(i int) uint64 {
	var off uint64
	for j := 0; j < i; j++ {
		off += t.Fields[j].SizeOf()
	}
	return off
}

// OffsetOf walks t through a GEP-style compile-time-constant index path
// (the first index is the pointer-level "which element of the pointed-to
// array" step GEP always carries; subsequent indices descend into structs
// or arrays) and returns the total cell offset plus the innermost type
// reached. Fatal (panic) on a struct field index out of range, matching
// the "GEP's symbolic indices are fatal" contract's sibling case of a
// malformed constant path — there is no sound fallback.
func OffsetOf(t Type, indices []int64) (uint64, Type) {
	if len(indices) == 0 {
		return 0, t
	}
	var total uint64
	cur := t
	// The first index steps over whole elements of cur itself (GEP's
	// "base pointer" index), the rest descend into cur's structure.
	if arr, ok := cur.(ArrayType); ok {
		total += uint64(indices[0]) * arr.SizeOf()
	} else {
		total += uint64(indices[0]) * cur.SizeOf()
	}
	for _, idx := range indices[1:] {
		switch v := cur.(type) {
		case StructType:
			total += v.FieldOffset(int(idx))
			cur = v.Fields[idx]
		case ArrayType:
			total += uint64(idx) * v.Elem.SizeOf()
			cur = v.Elem
		default:
			panic("ir: GEP index descends into a non-aggregate type")
		}
	}
	return total, cur
}
