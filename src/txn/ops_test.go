package txn

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/mosaicnetworks/murmur/src/common"
)

func rawOps(t *testing.T, s string) []json.RawMessage {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		t.Fatalf("err: %v", err)
	}
	return raw
}

func TestParseTxn(t *testing.T) {
	ops, err := ParseTxn(rawOps(t, `[["append",1,10],["r",1,null],["r",2,[3,4]],["r",3,[]]]`))
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	expected := []MicroOp{
		Append(1, 10),
		Read(1),
		Verify(2, []uint64{3, 4}),
		Verify(3, []uint64{}),
	}

	if !reflect.DeepEqual(ops, expected) {
		t.Fatalf("ops should be %#v, not %#v", expected, ops)
	}
}

func TestParseTxn_Malformed(t *testing.T) {
	cases := []string{
		`[["write",1,10]]`,
		`[["append",1]]`,
		`[["append","k",10]]`,
		`[["append",1,"v"]]`,
		`[["r",1,"x"]]`,
		`[{"f":"r"}]`,
		`[[1,1,null]]`,
		`[["append",1,null]]`,
		`[["append",null,1]]`,
		`[["r",null,null]]`,
	}

	for _, c := range cases {
		_, err := ParseTxn(rawOps(t, c))
		if !common.IsRPC(err, common.MalformedRequest) {
			t.Fatalf("%s: expected malformed-request, got %v", c, err)
		}
	}
}

func TestEncodeTxn(t *testing.T) {
	results := []MicroOp{
		Append(1, 10),
		{Func: FuncRead, Key: 1, List: []uint64{10}},
		Read(2),
	}

	wire, err := EncodeTxn(results)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	b, _ := json.Marshal(wire)
	if string(b) != `[["append",1,10],["r",1,[10]],["r",2,null]]` {
		t.Fatalf("unexpected encoding %s", b)
	}

	if _, err := EncodeTxn([]MicroOp{{Func: "write"}}); err == nil {
		t.Fatalf("unknown functions should not encode")
	}
}
