package explicitstore

import "bytes"

// Clone returns an independent deep copy of s, built through the same
// WriteTo/ReadFrom wire format the state blob uses (spec.md §6.1). This
// avoids a second, parallel definition of the store's internal layout
// that a hand-written field-by-field copy would require.
func (s *Store) Clone() *Store {
	var buf bytes.Buffer
	if err := s.WriteTo(&buf); err != nil {
		panic("explicitstore: Clone: " + err.Error())
	}
	out := New()
	if err := out.ReadFrom(&buf); err != nil {
		panic("explicitstore: Clone: " + err.Error())
	}
	return out
}
