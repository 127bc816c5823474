// Package broadcast implements the retry-gossip workload.
//
// Every value a node learns is recorded in a grow-only delivered set. The
// first time a value arrives, the node forwards it to each of its neighbors
// except the one it came from, and keeps resending it to each of them at a
// fixed interval until that neighbor acknowledges. A value that is already
// known is only acknowledged, which keeps cyclic topologies from amplifying
// traffic.
//
// Delivery is at-least-once: a neighbor may see a value several times when
// acks are lost or slow, and the delivered set absorbs the duplicates.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Name of the workload.
const Name = "broadcast"

// DefaultResendInterval is how long a gossip waits for an ack before it is
// sent again.
const DefaultResendInterval = 500 * time.Millisecond

// Config ...
type Config struct {
	ResendInterval time.Duration `mapstructure:"resend-interval"`
	TimerFactory   node.TimerFactory
}

// DefaultConfig ...
func DefaultConfig() *Config {
	return &Config{
		ResendInterval: DefaultResendInterval,
		TimerFactory:   node.AfterFactory,
	}
}

// Broadcast is the retry-gossip workload.
type Broadcast struct {
	conf *Config

	delivered *common.Uint64Set

	// msg_id of an outstanding gossip => cancels its retry routine
	pending     map[uint64]context.CancelFunc
	pendingLock sync.Mutex

	resends uint64
	acks    uint64
}

// New ...
func New(conf *Config) *Broadcast {
	return &Broadcast{
		conf:      conf,
		delivered: common.NewUint64Set(),
		pending:   make(map[uint64]context.CancelFunc),
	}
}

// Name implements the node.Workload interface.
func (b *Broadcast) Name() string {
	return Name
}

// Start implements the node.Workload interface. Retry routines are only
// started when values arrive.
func (b *Broadcast) Start(n *node.Node) {
	n.Logger().WithField("resend_interval", b.conf.ResendInterval).Debug("Broadcast ready")
}

// Handle implements the node.Workload interface.
func (b *Broadcast) Handle(n *node.Node, msg message.Message) error {
	switch msg.Body.Type {
	case message.TypeBroadcast:
		return b.processBroadcast(n, msg)
	case message.TypeBroadcastOk:
		b.processAck(n, msg)
		return nil
	case message.TypeRead:
		return n.Reply(msg, message.TypeReadOk, &message.ReadMessagesOk{
			Messages: b.delivered.Values(),
		})
	case message.TypeError:
		if msg.Body.IsReply() {
			// the retry routine keeps going until a real ack
			n.Logger().WithFields(logrus.Fields{
				"src":         msg.Src,
				"in_reply_to": msg.Body.ReplyTo(),
			}).Debug("Gossip refused")
			return nil
		}
	}
	return node.ErrUnknownKind
}

func (b *Broadcast) processBroadcast(n *node.Node, msg message.Message) error {
	payload, ok := msg.Body.Payload.(*message.Broadcast)
	if !ok {
		return common.NewRPCErr(common.MalformedRequest, "broadcast payload missing")
	}

	if b.delivered.Insert(payload.Message) {
		for _, dest := range n.Neighbors() {
			if dest == msg.Src {
				continue
			}
			b.gossip(n, dest, payload.Message)
		}
	}

	return n.Reply(msg, message.TypeBroadcastOk, nil)
}

// gossip registers a pending entry for a fresh msg_id and starts the routine
// that sends the value to dest until the entry is cancelled.
func (b *Broadcast) gossip(n *node.Node, dest string, value uint64) {
	msg := n.NewRequest(dest, message.TypeBroadcast, &message.Broadcast{Message: value})

	ctx, cancel := context.WithCancel(n.Context())

	b.pendingLock.Lock()
	b.pending[msg.Body.ID()] = cancel
	b.pendingLock.Unlock()

	telemetry.GossipPending.Inc()

	n.Go(func(context.Context) {
		b.retry(ctx, n, msg)
	})
}

func (b *Broadcast) retry(ctx context.Context, n *node.Node, msg message.Message) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			atomic.AddUint64(&b.resends, 1)
			telemetry.GossipResends.Inc()
		}

		if err := n.Send(msg); err != nil && ctx.Err() == nil {
			n.Logger().WithError(err).WithField("dest", msg.Dest).Warn("Sending gossip")
		}

		select {
		case <-ctx.Done():
			return
		case <-b.conf.TimerFactory(b.conf.ResendInterval):
		}
	}
}

func (b *Broadcast) processAck(n *node.Node, msg message.Message) {
	if !msg.Body.IsReply() {
		return
	}

	id := msg.Body.ReplyTo()

	b.pendingLock.Lock()
	cancel, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.pendingLock.Unlock()

	if !ok {
		// ack for a client-facing reply or a gossip already acked
		return
	}

	cancel()
	atomic.AddUint64(&b.acks, 1)
	telemetry.GossipAcks.Inc()
	telemetry.GossipPending.Dec()

	n.Logger().WithFields(logrus.Fields{
		"src":         msg.Src,
		"in_reply_to": id,
	}).Debug("Gossip acked")
}

// Delivered returns every value seen so far, in ascending order.
func (b *Broadcast) Delivered() []uint64 {
	return b.delivered.Values()
}

// Pending returns the number of gossips waiting for an ack.
func (b *Broadcast) Pending() int {
	b.pendingLock.Lock()
	defer b.pendingLock.Unlock()
	return len(b.pending)
}

// Resends returns how many times a gossip was sent again for lack of an ack.
func (b *Broadcast) Resends() uint64 {
	return atomic.LoadUint64(&b.resends)
}

// Acks returns how many gossips were acknowledged.
func (b *Broadcast) Acks() uint64 {
	return atomic.LoadUint64(&b.acks)
}
