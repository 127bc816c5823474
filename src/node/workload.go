package node

import (
	"errors"

	"github.com/mosaicnetworks/murmur/src/message"
)

// ErrUnknownKind is returned by a Workload for message kinds it does not
// handle. An unknown request is a protocol violation and stops the node; an
// unknown reply is most likely a late response and is dropped.
var ErrUnknownKind = errors.New("unknown message kind")

// Workload is the application a node runs. The node handles init and topology
// itself and passes every other message to Handle, from the dispatch loop.
//
// Start is called once, when init has assigned the node its identity. It is
// the place to launch background routines with Node.Go.
//
// When Handle returns an error for a request, the node answers it with an
// error response carrying the code of the error (see common.AsRPC).
type Workload interface {
	Name() string
	Start(n *Node)
	Handle(n *Node, msg message.Message) error
}
