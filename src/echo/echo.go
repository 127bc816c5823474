// Package echo implements the simplest workload: every echo request is
// answered with the same value.
package echo

import (
	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/node"
)

// Name of the workload.
const Name = "echo"

// Echo ...
type Echo struct{}

// New ...
func New() *Echo {
	return &Echo{}
}

// Name implements the node.Workload interface.
func (e *Echo) Name() string {
	return Name
}

// Start implements the node.Workload interface.
func (e *Echo) Start(n *node.Node) {}

// Handle implements the node.Workload interface.
func (e *Echo) Handle(n *node.Node, msg message.Message) error {
	if msg.Body.Type != message.TypeEcho {
		return node.ErrUnknownKind
	}

	payload, ok := msg.Body.Payload.(*message.Echo)
	if !ok {
		return common.NewRPCErr(common.MalformedRequest, "echo payload missing")
	}

	return n.Reply(msg, message.TypeEchoOk, &message.Echo{Echo: payload.Echo})
}
