package symbolic

import "bytes"

// Clone returns an independent deep copy of s via the same wire format
// used for the state blob's symbolic region (spec.md §6.1), so the
// evaluator's materializing-iterator successor generation (spec.md §9)
// can fork a path without aliasing the parent's path condition or
// generation counters.
func (s *Store) Clone() *Store {
	var buf bytes.Buffer
	if err := s.WriteTo(&buf); err != nil {
		panic("symbolic: Clone: " + err.Error())
	}
	out := New()
	if err := out.ReadFrom(&buf); err != nil {
		panic("symbolic: Clone: " + err.Error())
	}
	return out
}
