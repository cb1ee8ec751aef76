// Package explicitstore implements the concrete-valued half of the hybrid
// store (spec.md §3.4/§4.3): per-segment vectors of 64-bit cells plus
// per-cell (bit width, is-pointer) metadata, with modular arithmetic and a
// sticky "empty" flag set by a failed prune. Grounded on
// original_source/llvmsym/explicitstore.h's ValueStore<Explicit>.
package explicitstore

// VariableID addresses one concrete cell by (segment, offset), mirroring
// DataStore::VariableId.
type VariableID struct {
	Seg int
	Off int
}

// Value is either a compile-time constant or a reference into the store,
// tagged with whether it currently holds a pointer — mirrors datastore.h's
// tagged-union Value (Constant | Variable, plus the separate `pointer`
// bool carried alongside every operand).
type Value struct {
	isConstant bool
	constant   uint64
	constantBw uint8
	Var        VariableID
	Pointer    bool
}

// Const builds a constant operand of the given bit width.
func Const(v uint64, bw uint8) Value {
	return Value{isConstant: true, constant: lowerToNBits(v, bw), constantBw: bw}
}

// ConstPointer builds a constant operand carrying a pointer word (spec.md
// §3.5: high 32 bits segment, low 32 bits offset), used for e.g. null
// pointer constants.
func ConstPointer(word uint64) Value {
	return Value{isConstant: true, constant: word, constantBw: 64, Pointer: true}
}

// VarValue builds an operand referencing a stored cell.
func VarValue(seg, off int) Value {
	return Value{Var: VariableID{Seg: seg, Off: off}}
}

// IsConstant reports whether v is a literal rather than a cell reference.
func (v Value) IsConstant() bool { return v.isConstant }

// ConstValue returns a constant operand's literal value. Meaningless if
// !v.IsConstant().
func (v Value) ConstValue() uint64 { return v.constant }

// ConstBw returns a constant operand's declared bit width. Meaningless if
// !v.IsConstant().
func (v Value) ConstBw() uint8 { return v.constantBw }
