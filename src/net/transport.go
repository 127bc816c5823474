package net

import (
	"time"

	"github.com/mosaicnetworks/murmur/src/message"
)

// Transport provides an interface for transports to allow a node to exchange
// messages with its peers, clients and services.
type Transport interface {

	// Listen reads incoming messages until the input is exhausted or the
	// transport is closed. It is blocking and should run in its own routine.
	Listen()

	// Consumer returns a channel that can be used to consume incoming messages
	// that are not answers to a pending Call. The channel is closed when
	// Listen returns.
	Consumer() <-chan message.Message

	// Send writes a message. It is safe to call from concurrent routines.
	Send(msg message.Message) error

	// Call sends a request and waits for the response correlated through
	// in_reply_to, for at most timeout. The request must carry a msg_id.
	Call(req message.Message, timeout time.Duration) (message.Message, error)

	// Err returns the error that stopped Listen, if any. It is nil when the
	// input was exhausted or the transport was closed.
	Err() error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
