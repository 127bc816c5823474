package txn

import (
	"bytes"
	"reflect"
	"strconv"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/ugorji/go/codec"
)

// ErrVerify aborts a transaction whose verify op does not match the database.
var ErrVerify = common.NewRPCErr(common.TxnConflict, "verify failed")

// Database maps keys to append-only lists.
type Database struct {
	lists map[uint64][]uint64
}

// NewDatabase ...
func NewDatabase() *Database {
	return &Database{lists: make(map[uint64][]uint64)}
}

// Get returns the list under key, and whether there is one.
func (d *Database) Get(key uint64) ([]uint64, bool) {
	l, ok := d.lists[key]
	return l, ok
}

// Len returns the number of keys.
func (d *Database) Len() int {
	return len(d.lists)
}

// Apply runs ops in order and returns their results: appends are echoed and
// reads carry the list they observed, or nil for a missing key. On error the
// database may have been partially modified; callers apply to a Clone.
func (d *Database) Apply(ops []MicroOp) ([]MicroOp, error) {
	res := make([]MicroOp, 0, len(ops))

	for _, op := range ops {
		r, err := d.apply(op)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}

	return res, nil
}

func (d *Database) apply(op MicroOp) (MicroOp, error) {
	switch op.Func {
	case FuncAppend:
		d.lists[op.Key] = append(d.lists[op.Key], op.Value)
		return op, nil
	case FuncRead:
		current, ok := d.lists[op.Key]
		if op.Verify && !sameList(current, op.List) {
			return MicroOp{}, common.NewRPCErrf(common.TxnConflict,
				"verify failed on key %d: expected %v, found %v", op.Key, op.List, current)
		}
		r := Read(op.Key)
		if ok {
			r.List = append([]uint64{}, current...)
		}
		return r, nil
	default:
		return MicroOp{}, malformed("unknown micro-op function %q", op.Func)
	}
}

func sameList(a, b []uint64) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Clone returns a deep copy.
func (d *Database) Clone() *Database {
	c := NewDatabase()
	for k, l := range d.lists {
		c.lists[k] = append([]uint64(nil), l...)
	}
	return c
}

// Marshal - canonical json encoding of the Database. Equal databases encode to
// identical bytes, which is what makes them usable as compare-and-swap
// values.
func (d *Database) Marshal() ([]byte, error) {
	doc := make(map[string][]uint64, len(d.lists))
	for k, l := range d.lists {
		doc[strconv.FormatUint(k, 10)] = l
	}

	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(doc); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (d *Database) Unmarshal(data []byte) error {
	doc := make(map[string][]uint64)

	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(&doc); err != nil {
		return err
	}

	lists := make(map[uint64][]uint64, len(doc))
	for k, l := range doc {
		key, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return err
		}
		lists[key] = l
	}
	d.lists = lists

	return nil
}
