// Package crdt implements state-based replicated data types and the workload
// that keeps them converging across a cluster.
//
// Three variants share the CRDT interface: GSet, GCounter and PNCounter. Each
// node applies adds locally and periodically ships its whole state to every
// peer, which merges it into its own. Merges are commutative, associative and
// idempotent, so states converge regardless of the order, duplication or loss
// of replicate messages.
package crdt

import (
	"fmt"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
)

// Kinds of CRDT, also used as workload names.
const (
	KindGSet      = "g-set"
	KindGCounter  = "g-counter"
	KindPNCounter = "pn-counter"
)

// CRDT is a state-based replicated data type. Implementations are not safe for
// concurrent use; the Replicator serialises access.
type CRDT interface {
	// Add applies a local update on behalf of node.
	Add(node string, add message.Add) error
	// Read returns the value clients observe.
	Read() interface{}
	// Merge folds another state of the same kind into this one.
	Merge(other CRDT) error
	// FromWire builds a state of the same kind from a replicate payload.
	FromWire(r *message.Replicate) (CRDT, error)
	// ToWire returns the whole state as a replicate payload. The payload does
	// not share memory with the state.
	ToWire() message.Replicate
	// Clone returns an independent copy.
	Clone() CRDT
}

// New returns an empty CRDT of the given kind.
func New(kind string) (CRDT, error) {
	switch kind {
	case KindGSet:
		return NewGSet(), nil
	case KindGCounter:
		return NewGCounter(), nil
	case KindPNCounter:
		return NewPNCounter(), nil
	default:
		return nil, fmt.Errorf("unknown CRDT kind %q", kind)
	}
}

// IsKind reports whether kind names a CRDT.
func IsKind(kind string) bool {
	switch kind {
	case KindGSet, KindGCounter, KindPNCounter:
		return true
	}
	return false
}

func mismatch(want string, got CRDT) error {
	return common.NewRPCErrf(common.MalformedRequest, "cannot merge %T into %s", got, want)
}
