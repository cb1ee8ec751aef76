package statedb

import (
	"testing"

	"github.com/symbion/symck/pkg/blob"
	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/symbolic"
)

func makeBlob(t *testing.T, cellValue uint64, pcConst uint64) *blob.Blob {
	t.Helper()
	es := explicitstore.New()
	es.AddSegment(0, []uint8{8})
	es.ImplementStore(explicitstore.VarValue(0, 0), explicitstore.Const(cellValue, 8))

	ss := symbolic.New()
	ss.AddSegment(0, []uint8{8})
	if pcConst > 0 {
		ss.Prune(explicitstore.VarValue(0, 0), explicitstore.Const(pcConst, 8), symbolic.ICmpEQ)
	}

	b, err := blob.Encode(nil, es, ss)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return b
}

func TestInsertCheckNewExplicitKeyIsAlwaysNovel(t *testing.T) {
	db := New(nil)
	unknown := 0

	b1 := makeBlob(t, 1, 0)
	id1, isNew, err := db.InsertCheck(b1, nil, nil, false, &unknown)
	if err != nil || !isNew {
		t.Fatalf("first insert under a fresh explicit key should be novel: err=%v isNew=%v", err, isNew)
	}

	b2 := makeBlob(t, 2, 0)
	id2, isNew, err := db.InsertCheck(b2, nil, nil, false, &unknown)
	if err != nil || !isNew {
		t.Fatalf("a distinct explicit key should always be novel: err=%v isNew=%v", err, isNew)
	}
	if id1.ExplicitID == id2.ExplicitID {
		t.Errorf("distinct explicit keys should get distinct explicit ids")
	}
}

func TestInsertCheckSameSymbolicStateNotNovel(t *testing.T) {
	db := New(nil)
	unknown := 0

	b1 := makeBlob(t, 5, 3)
	id1, isNew, err := db.InsertCheck(b1, nil, nil, false, &unknown)
	if err != nil || !isNew {
		t.Fatalf("first insert should be novel: err=%v isNew=%v", err, isNew)
	}

	b2 := makeBlob(t, 5, 3)
	id2, isNew, err := db.InsertCheck(b2, nil, nil, false, &unknown)
	if err != nil {
		t.Fatalf("InsertCheck: %v", err)
	}
	if isNew {
		t.Fatalf("a syntactically identical symbolic candidate under the same explicit key should not be novel")
	}
	if id1 != id2 {
		t.Errorf("a repeat of the same state should resolve to the same StateId, got %+v vs %+v", id1, id2)
	}
}

func TestGetStateRoundTrip(t *testing.T) {
	db := New(nil)
	unknown := 0
	b := makeBlob(t, 9, 0)

	id, _, err := db.InsertCheck(b, nil, nil, false, &unknown)
	if err != nil {
		t.Fatalf("InsertCheck: %v", err)
	}

	gotBlob, gotSym, err := db.GetState(id)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if gotBlob != b {
		t.Errorf("GetState should return the exact blob that was inserted")
	}
	if gotSym == nil {
		t.Errorf("GetState should return a decoded symbolic store")
	}
}

func TestGetStateUnknownID(t *testing.T) {
	db := New(nil)
	if _, _, err := db.GetState(StateId{ExplicitID: 99, SymbolicID: 0}); err == nil {
		t.Fatalf("expected an error for an unknown StateId")
	}
}
