package txn

import (
	"reflect"
	"testing"

	"github.com/mosaicnetworks/murmur/src/common"
)

func TestDatabase_Apply(t *testing.T) {
	db := NewDatabase()

	res, err := db.Apply([]MicroOp{Append(1, 10), Read(1), Read(2)})
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	expected := []MicroOp{
		Append(1, 10),
		{Func: FuncRead, Key: 1, List: []uint64{10}},
		Read(2),
	}
	if !reflect.DeepEqual(res, expected) {
		t.Fatalf("results should be %#v, not %#v", expected, res)
	}

	res, _ = db.Apply([]MicroOp{Append(1, 11), Read(1)})
	if l := res[1].List; !reflect.DeepEqual(l, []uint64{10, 11}) {
		t.Fatalf("read should be [10 11], not %v", l)
	}

	// results do not alias the database
	res[1].List[0] = 99
	if l, _ := db.Get(1); l[0] != 10 {
		t.Fatalf("read results should be copies")
	}
}

func TestDatabase_Verify(t *testing.T) {
	db := NewDatabase()
	db.Apply([]MicroOp{Append(1, 10), Append(1, 11)})

	if _, err := db.Apply([]MicroOp{Verify(1, []uint64{10, 11}), Verify(2, []uint64{})}); err != nil {
		t.Fatalf("matching verifies should pass: %v", err)
	}

	clone := db.Clone()
	_, err := clone.Apply([]MicroOp{Append(2, 1), Verify(1, []uint64{10})})
	if !common.IsRPC(err, common.TxnConflict) {
		t.Fatalf("expected txn-conflict, got %v", err)
	}

	if _, ok := db.Get(2); ok {
		t.Fatalf("the original should be untouched by a failed apply on a clone")
	}
}

func TestDatabase_Marshal(t *testing.T) {
	a := NewDatabase()
	a.Apply([]MicroOp{Append(2, 1), Append(10, 5), Append(1, 7), Append(2, 3)})

	// same content, different insertion order
	b := NewDatabase()
	b.Apply([]MicroOp{Append(1, 7), Append(10, 5), Append(2, 1), Append(2, 3)})

	ba, err := a.Marshal()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	bb, _ := b.Marshal()

	if string(ba) != string(bb) {
		t.Fatalf("encodings should be identical: %s vs %s", ba, bb)
	}

	c := NewDatabase()
	if err := c.Unmarshal(ba); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !reflect.DeepEqual(c.lists, a.lists) {
		t.Fatalf("decoded database should be %v, not %v", a.lists, c.lists)
	}

	empty, _ := NewDatabase().Marshal()
	if string(empty) != "{}" {
		t.Fatalf("empty database should encode to {}, not %s", empty)
	}
}
