// Package blob implements the state blob (spec.md §3.8/§6.1): a
// reference-counted byte buffer carrying three contiguous regions — user
// (opaque), explicit (hashed/compared for identity), symbolic (not
// compared byte-wise) — plus the encode/decode glue between a blob's
// byte regions and the live pkg/explicitstore/pkg/symbolic stores they
// were serialised from.
package blob

import (
	"bytes"
	"sync"

	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/symbolic"
)

// Blob is a shared, reference-counted byte buffer. Multiple containers
// (frontier, database candidates) may hold the same *Blob; spec.md §5:
// "Lifetime = longest holder." Go's GC already reclaims the backing
// memory once nothing references the *Blob, but the explicit counter
// still exists to make the §3.8 invariant ("refcount reaches zero
// exactly when no candidate still references it") directly observable
// and testable, independent of GC timing.
type Blob struct {
	mu   sync.Mutex
	refs int

	User     []byte
	Explicit []byte
	Symbolic []byte
}

// New wraps the three regions in a blob with an initial refcount of 1.
func New(user, explicit, symbolic []byte) *Blob {
	return &Blob{refs: 1, User: user, Explicit: explicit, Symbolic: symbolic}
}

// Encode serialises explicitStore and symbolicStore into a fresh blob's
// explicit/symbolic regions, attaching user verbatim as the opaque
// region (e.g. the LTL driver's Büchi-state index, spec.md §4.10.2).
func Encode(user []byte, explicitStore *explicitstore.Store, symbolicStore *symbolic.Store) (*Blob, error) {
	var eb, sb bytes.Buffer
	if err := explicitStore.WriteTo(&eb); err != nil {
		return nil, err
	}
	if err := symbolicStore.WriteTo(&sb); err != nil {
		return nil, err
	}
	return New(user, eb.Bytes(), sb.Bytes()), nil
}

// DecodeExplicit reconstructs the explicit store the blob's explicit
// region was written from.
func (b *Blob) DecodeExplicit() (*explicitstore.Store, error) {
	s := explicitstore.New()
	if err := s.ReadFrom(bytes.NewReader(b.Explicit)); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeSymbolic reconstructs the symbolic store the blob's symbolic
// region was written from.
func (b *Blob) DecodeSymbolic() (*symbolic.Store, error) {
	s := symbolic.New()
	if err := s.ReadFrom(bytes.NewReader(b.Symbolic)); err != nil {
		return nil, err
	}
	return s, nil
}

// Retain increments the refcount and returns b, for chaining at a call
// site that hands the same blob to a second container.
func (b *Blob) Retain() *Blob {
	b.mu.Lock()
	b.refs++
	b.mu.Unlock()
	return b
}

// Release decrements the refcount and returns its new value. Callers
// that drop a blob's last reference may discard it; they are not
// required to (Go's GC reclaims it regardless).
func (b *Blob) Release() int {
	b.mu.Lock()
	b.refs--
	n := b.refs
	b.mu.Unlock()
	return n
}

// RefCount reports the current refcount.
func (b *Blob) RefCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refs
}

// ExplicitKey is the map key pkg/statedb's state2item index uses: the
// explicit region's raw bytes, hashed and compared by Go's built-in
// string equality/hashing (spec.md §4.9: "hashed+eq'ed on the explicit
// bytes").
func (b *Blob) ExplicitKey() string { return string(b.Explicit) }

// ExplicitEqual reports whether b and other have byte-identical explicit
// regions — the "segment round-trip" testable property (spec.md §8.1)
// checks this, and the symbolic region is explicitly exempted from any
// such comparison.
func (b *Blob) ExplicitEqual(other *Blob) bool {
	return bytes.Equal(b.Explicit, other.Explicit)
}
