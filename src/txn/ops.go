package txn

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mosaicnetworks/murmur/src/common"
)

// Micro-operation functions.
const (
	FuncAppend = "append"
	FuncRead   = "r"
)

// MicroOp is one step of a transaction, [f, k, v] on the wire.
//
// An append carries the value to add to the end of the key's list. A read
// carries null in a request, and the list it observed in a response. A read
// that already carries a list in the request is a verify: the transaction
// aborts unless the key holds exactly that list.
type MicroOp struct {
	Func   string
	Key    uint64
	Value  uint64
	List   []uint64
	Verify bool
}

// Append ...
func Append(key, value uint64) MicroOp {
	return MicroOp{Func: FuncAppend, Key: key, Value: value}
}

// Read ...
func Read(key uint64) MicroOp {
	return MicroOp{Func: FuncRead, Key: key}
}

// Verify ...
func Verify(key uint64, list []uint64) MicroOp {
	return MicroOp{Func: FuncRead, Key: key, List: list, Verify: true}
}

// IsWrite reports whether the op changes the database.
func (o MicroOp) IsWrite() bool {
	return o.Func == FuncAppend
}

// String ...
func (o MicroOp) String() string {
	b, _ := o.MarshalJSON()
	return string(b)
}

// MarshalJSON encodes the op as [f, k, v]. Reads of a missing key carry null.
func (o MicroOp) MarshalJSON() ([]byte, error) {
	var v interface{}
	switch o.Func {
	case FuncAppend:
		v = o.Value
	case FuncRead:
		if o.List != nil {
			v = o.List
		}
	default:
		return nil, fmt.Errorf("unknown micro-op function %q", o.Func)
	}
	return json.Marshal([]interface{}{o.Func, o.Key, v})
}

// UnmarshalJSON ...
func (o *MicroOp) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return malformed("micro-op %s is not an array", data)
	}
	if len(parts) != 3 {
		return malformed("micro-op %s should have 3 elements", data)
	}

	var op MicroOp

	if err := json.Unmarshal(parts[0], &op.Func); err != nil {
		return malformed("micro-op function %s is not a string", parts[0])
	}
	if isNull(parts[1]) {
		return malformed("micro-op key is null")
	}
	if err := json.Unmarshal(parts[1], &op.Key); err != nil {
		return malformed("micro-op key %s is not an integer", parts[1])
	}

	switch op.Func {
	case FuncAppend:
		if isNull(parts[2]) {
			return malformed("appended value is null")
		}
		if err := json.Unmarshal(parts[2], &op.Value); err != nil {
			return malformed("appended value %s is not an integer", parts[2])
		}
	case FuncRead:
		if !isNull(parts[2]) {
			if err := json.Unmarshal(parts[2], &op.List); err != nil {
				return malformed("read value %s is neither null nor a list", parts[2])
			}
			if op.List == nil {
				op.List = []uint64{}
			}
			op.Verify = true
		}
	default:
		return malformed("unknown micro-op function %q", op.Func)
	}

	*o = op
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// ParseTxn decodes the micro-ops of a txn request.
func ParseTxn(raw []json.RawMessage) ([]MicroOp, error) {
	ops := make([]MicroOp, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &ops[i]); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

// EncodeTxn is the inverse of ParseTxn.
func EncodeTxn(ops []MicroOp) ([]json.RawMessage, error) {
	res := make([]json.RawMessage, len(ops))
	for i, op := range ops {
		b, err := op.MarshalJSON()
		if err != nil {
			return nil, err
		}
		res[i] = b
	}
	return res, nil
}

func malformed(format string, args ...interface{}) error {
	return common.NewRPCErrf(common.MalformedRequest, format, args...)
}
