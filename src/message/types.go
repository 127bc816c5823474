package message

import (
	"bytes"
	"encoding/json"
)

// Message kinds.
const (
	TypeInit        = "init"
	TypeInitOk      = "init_ok"
	TypeTopology    = "topology"
	TypeTopologyOk  = "topology_ok"
	TypeEcho        = "echo"
	TypeEchoOk      = "echo_ok"
	TypeBroadcast   = "broadcast"
	TypeBroadcastOk = "broadcast_ok"
	TypeRead        = "read"
	TypeReadOk      = "read_ok"
	TypeWrite       = "write"
	TypeWriteOk     = "write_ok"
	TypeCas         = "cas"
	TypeCasOk       = "cas_ok"
	TypeAdd         = "add"
	TypeAddOk       = "add_ok"
	TypeReplicate   = "replicate"
	TypeTxn         = "txn"
	TypeTxnOk       = "txn_ok"
	TypeError       = "error"
)

// Init is the handshake assigning a node its identity and the cluster members.
type Init struct {
	NodeID  string   `json:"node_id"`
	NodeIDs []string `json:"node_ids"`
}

// Topology maps every node to its neighbours.
type Topology struct {
	Topology map[string][]string `json:"topology"`
}

// Echo carries an arbitrary value to be sent back unchanged.
type Echo struct {
	Echo interface{} `json:"echo"`
}

// Broadcast carries a gossiped payload value.
type Broadcast struct {
	Message uint64 `json:"message"`
}

// Key is a KV key in its compact JSON encoding. The harness' KV services take
// strings as well as integers, so keys are kept as they appear on the wire.
type Key []byte

// StringKey is the Key for a string.
func StringKey(s string) Key {
	b, _ := json.Marshal(s)
	return Key(b)
}

// MarshalJSON ...
func (k Key) MarshalJSON() ([]byte, error) {
	if len(k) == 0 {
		return []byte("null"), nil
	}
	return k, nil
}

// UnmarshalJSON ...
func (k *Key) UnmarshalJSON(data []byte) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*k = Key(buf.Bytes())
	return nil
}

// Missing reports whether no key was given.
func (k Key) Missing() bool {
	return len(k) == 0 || string(k) == "null"
}

func (k Key) String() string {
	return string(k)
}

// Read is sent by clients to workload nodes (no key) and by nodes to a KV
// service (with a key).
type Read struct {
	Key Key `json:"key,omitempty"`
}

// ReadOk is the generic decoded form of read_ok. Broadcast nodes answer with
// messages, everything else with value.
type ReadOk struct {
	Messages []uint64        `json:"messages,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// ReadMessagesOk is the broadcast answer to read. Messages is always present,
// even when empty.
type ReadMessagesOk struct {
	Messages []uint64 `json:"messages"`
}

// ReadValueOk is the CRDT and KV answer to read.
type ReadValueOk struct {
	Value interface{} `json:"value"`
}

// Write stores a value under a key in a KV service.
type Write struct {
	Key   Key             `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Cas atomically replaces From with To under Key. With CreateIfNotExists, a
// missing key is created with To.
type Cas struct {
	Key               Key             `json:"key"`
	From              json.RawMessage `json:"from"`
	To                json.RawMessage `json:"to"`
	CreateIfNotExists bool            `json:"create_if_not_exists,omitempty"`
}

// Add is a CRDT update: Element for sets, Delta for counters.
type Add struct {
	Element *uint64 `json:"element,omitempty"`
	Delta   *int64  `json:"delta,omitempty"`
}

// Replicate ships a full CRDT state to a peer. Exactly one field is set,
// depending on the CRDT variant.
type Replicate struct {
	Value      []uint64              `json:"value,omitempty"`
	Counters   map[string]uint64     `json:"counters,omitempty"`
	PNCounters *[2]map[string]uint64 `json:"pn_counters,omitempty"`
}

// Txn is a list of micro-operations, each one a JSON array [f, k, v].
type Txn struct {
	Txn []json.RawMessage `json:"txn"`
}

// Error is the body of an error response. Code follows the harness error
// codes (see common.RPCErrType).
type Error struct {
	Code int    `json:"code"`
	Text string `json:"text,omitempty"`
}
