package net

import (
	"sync"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
)

// InmemNetwork connects InmemTransports so that several nodes, and the
// services they talk to, can be tested in a single process.
type InmemNetwork struct {
	sync.RWMutex
	transports map[string]*InmemTransport
	cut        map[string]map[string]bool
}

// NewInmemNetwork creates an empty network.
func NewInmemNetwork() *InmemNetwork {
	return &InmemNetwork{
		transports: make(map[string]*InmemTransport),
		cut:        make(map[string]map[string]bool),
	}
}

// Route returns the transport for id, creating it on first use.
func (n *InmemNetwork) Route(id string) *InmemTransport {
	n.Lock()
	defer n.Unlock()

	if t, ok := n.transports[id]; ok {
		return t
	}

	t := &InmemTransport{
		network:    n,
		localAddr:  id,
		consumeCh:  make(chan message.Message),
		signalCh:   make(chan struct{}, 1),
		pending:    newPendingCalls(),
		shutdownCh: make(chan struct{}),
	}
	n.transports[id] = t
	return t
}

// Partition drops every message travelling between a and b, in both
// directions, until Heal is called.
func (n *InmemNetwork) Partition(a, b string) {
	n.Lock()
	defer n.Unlock()
	n.setCut(a, b, true)
	n.setCut(b, a, true)
}

// Heal removes every partition.
func (n *InmemNetwork) Heal() {
	n.Lock()
	defer n.Unlock()
	n.cut = make(map[string]map[string]bool)
}

func (n *InmemNetwork) setCut(from, to string, v bool) {
	if _, ok := n.cut[from]; !ok {
		n.cut[from] = make(map[string]bool)
	}
	n.cut[from][to] = v
}

func (n *InmemNetwork) lookup(from, to string) (*InmemTransport, bool, bool) {
	n.RLock()
	defer n.RUnlock()
	t, ok := n.transports[to]
	return t, ok, n.cut[from][to]
}

// InmemTransport implements the Transport interface, to allow nodes to be
// tested in-memory without going through stdin and stdout. Deliveries never
// block the sender; messages queue up until Listen hands them to the consumer.
type InmemTransport struct {
	network   *InmemNetwork
	localAddr string

	queue     []message.Message
	queueLock sync.Mutex
	signalCh  chan struct{}

	consumeCh chan message.Message
	pending   *pendingCalls

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// LocalAddr returns the node id the transport is routed under.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan message.Message {
	return i.consumeCh
}

// Listen implements the Transport interface.
func (i *InmemTransport) Listen() {
	defer close(i.consumeCh)

	for {
		select {
		case <-i.signalCh:
		case <-i.shutdownCh:
			return
		}

		for _, msg := range i.drain() {
			select {
			case i.consumeCh <- msg:
			case <-i.shutdownCh:
				return
			}
		}
	}
}

func (i *InmemTransport) drain() []message.Message {
	i.queueLock.Lock()
	defer i.queueLock.Unlock()
	q := i.queue
	i.queue = nil
	return q
}

func (i *InmemTransport) receive(msg message.Message) {
	if i.pending.deliver(msg) {
		return
	}

	i.queueLock.Lock()
	i.queue = append(i.queue, msg)
	i.queueLock.Unlock()

	select {
	case i.signalCh <- struct{}{}:
	default:
	}
}

// Send implements the Transport interface. Messages are copied through the
// wire encoding so that nodes never share payloads. Messages to unknown or
// partitioned destinations are dropped silently, like a lossy network would.
func (i *InmemTransport) Send(msg message.Message) error {
	if i.IsShutdown() {
		return ErrTransportShutdown
	}

	line, err := message.Encode(msg)
	if err != nil {
		return err
	}
	cp, err := message.Decode(line)
	if err != nil {
		return err
	}

	peer, ok, cut := i.network.lookup(i.localAddr, msg.Dest)
	if !ok {
		return common.NewRPCErrf(common.NodeNotFound, "no route to %s", msg.Dest)
	}
	if cut || peer.IsShutdown() {
		return nil
	}

	peer.receive(cp)
	return nil
}

// Call implements the Transport interface.
func (i *InmemTransport) Call(req message.Message, timeout time.Duration) (message.Message, error) {
	return i.pending.call(i.Send, req, timeout, i.shutdownCh)
}

// Err implements the Transport interface. Inmem transports never fail on input.
func (i *InmemTransport) Err() error {
	return nil
}

// IsShutdown is used to check if the transport is shutdown.
func (i *InmemTransport) IsShutdown() bool {
	select {
	case <-i.shutdownCh:
		return true
	default:
		return false
	}
}

// Close is used to permanently disable the transport.
func (i *InmemTransport) Close() error {
	i.shutdownLock.Lock()
	defer i.shutdownLock.Unlock()

	if !i.shutdown {
		close(i.shutdownCh)
		i.shutdown = true
	}
	return nil
}
