package node

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Node is the dispatch loop of a cluster member. It owns the transport, the
// message id generator and the identity assigned by init, and hands every
// other message to its Workload.
type Node struct {
	state

	conf     *Config
	logger   *logrus.Entry
	workload Workload

	ids *IDGenerator

	identity     Identity
	identityLock sync.RWMutex

	trans net.Transport
	netCh <-chan message.Message

	ctx        context.Context
	cancel     context.CancelFunc
	shutdownCh chan struct{}
	shutdown   sync.Once

	start    time.Time
	received uint64
	sent     uint64
	failures uint64
}

// NewNode is a factory method that returns a Node instance
func NewNode(conf *Config, trans net.Transport, workload Workload) *Node {
	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		conf:       conf,
		logger:     conf.Logger.WithField("workload", workload.Name()),
		workload:   workload,
		ids:        &IDGenerator{},
		trans:      trans,
		netCh:      trans.Consumer(),
		ctx:        ctx,
		cancel:     cancel,
		shutdownCh: make(chan struct{}),
		start:      time.Now(),
	}
}

// Run starts listening on the transport and dispatches messages until the
// input ends, the node is shut down, or a fatal error occurs. Fatal errors are
// returned: malformed input, a second init, or a request of an unknown kind.
func (n *Node) Run() error {
	go n.trans.Listen()

	for {
		select {
		case msg, ok := <-n.netCh:
			if !ok {
				if err := n.trans.Err(); err != nil {
					n.Logger().WithError(err).Error("Transport failed")
					return err
				}
				n.Logger().Debug("Input closed")
				return nil
			}

			atomic.AddUint64(&n.received, 1)
			telemetry.MessagesReceived.WithLabelValues(msg.Body.Type).Inc()

			if err := n.dispatch(msg); err != nil {
				n.Logger().WithError(err).Error("Fatal")
				return err
			}
		case <-n.shutdownCh:
			return nil
		}
	}
}

func (n *Node) dispatch(msg message.Message) error {
	n.Logger().WithFields(logrus.Fields{
		"src":    msg.Src,
		"type":   msg.Body.Type,
		"msg_id": msg.Body.ID(),
	}).Debug("Dispatch")

	if msg.Body.Type == message.TypeInit {
		return n.processInit(msg)
	}

	if n.getState() != Serving {
		if msg.Body.IsReply() {
			n.Logger().WithField("type", msg.Body.Type).Warn("Reply before init")
			return nil
		}
		return n.ReplyError(msg, common.TemporarilyUnavailable, "node not initialised")
	}

	if msg.Body.Type == message.TypeTopology {
		return n.processTopology(msg)
	}

	err := n.workload.Handle(n, msg)
	if err == nil {
		return nil
	}

	if errors.Cause(err) == ErrUnknownKind {
		if msg.Body.IsReply() {
			n.Logger().WithFields(logrus.Fields{
				"type":        msg.Body.Type,
				"in_reply_to": msg.Body.ReplyTo(),
			}).Warn("Dropping unexpected reply")
			return nil
		}
		return errors.Wrapf(err, "%s from %s", msg.Body.Type, msg.Src)
	}

	atomic.AddUint64(&n.failures, 1)

	if msg.Body.IsReply() {
		n.Logger().WithError(err).WithField("type", msg.Body.Type).Warn("Handling reply")
		return nil
	}

	rpcErr := common.AsRPC(err)
	entry := n.Logger().WithError(err).WithField("code", int(rpcErr.Code))
	if rpcErr.Code.Definite() {
		entry.Debug("Request failed")
	} else {
		entry.Warn("Request outcome unknown")
	}

	text := rpcErr.Text
	if text == "" {
		text = err.Error()
	}
	return n.ReplyError(msg, rpcErr.Code, text)
}

func (n *Node) processInit(msg message.Message) error {
	init, ok := msg.Body.Payload.(*message.Init)
	if !ok || init.NodeID == "" {
		return errors.Errorf("malformed init from %s", msg.Src)
	}

	if n.getState() != Waiting {
		return errors.Wrapf(ErrAlreadyInitialised, "init from %s", msg.Src)
	}

	id := newIdentity(init.NodeID, init.NodeIDs)

	n.identityLock.Lock()
	n.identity = id
	n.logger = n.logger.WithField("this_id", id.ID)
	n.identityLock.Unlock()

	n.setState(Serving)

	n.Logger().WithFields(logrus.Fields{
		"peers":     strings.Join(id.Peers, ","),
		"neighbors": strings.Join(id.Neighbors, ","),
	}).Info("Initialised")

	n.workload.Start(n)

	return n.Reply(msg, message.TypeInitOk, nil)
}

func (n *Node) processTopology(msg message.Message) error {
	topo, ok := msg.Body.Payload.(*message.Topology)
	if !ok {
		return n.ReplyError(msg, common.MalformedRequest, "topology payload missing")
	}

	n.identityLock.Lock()
	n.identity.Neighbors = n.identity.neighborsFrom(topo.Topology)
	neighbors := n.identity.Neighbors
	n.identityLock.Unlock()

	n.Logger().WithField("neighbors", strings.Join(neighbors, ",")).Debug("Topology")

	return n.Reply(msg, message.TypeTopologyOk, nil)
}

// NewRequest builds a request from this node to dest with a fresh msg_id.
func (n *Node) NewRequest(dest, typ string, payload interface{}) message.Message {
	return message.NewRequest(n.ID(), dest, typ, n.ids.Next(), payload)
}

// NextID issues a fresh message id.
func (n *Node) NextID() uint64 {
	return n.ids.Next()
}

// Send writes msg to the transport.
func (n *Node) Send(msg message.Message) error {
	if err := n.trans.Send(msg); err != nil {
		return err
	}
	atomic.AddUint64(&n.sent, 1)
	telemetry.MessagesSent.WithLabelValues(msg.Body.Type).Inc()
	return nil
}

// Reply answers req with a response of kind typ.
func (n *Node) Reply(req message.Message, typ string, payload interface{}) error {
	return n.Send(message.Reply(req, n.ids.Next(), typ, payload))
}

// ReplyError answers req with an error response.
func (n *Node) ReplyError(req message.Message, code common.RPCErrType, text string) error {
	telemetry.ErrorReplies.WithLabelValues(strconv.Itoa(int(code))).Inc()
	return n.Send(message.ErrorReply(req, n.ids.Next(), int(code), text))
}

// Call sends a request to dest and waits for the response, at most
// RPCTimeout. An error response is returned as a common.RPCErr.
func (n *Node) Call(dest, typ string, payload interface{}) (message.Message, error) {
	req := n.NewRequest(dest, typ, payload)

	start := time.Now()
	resp, err := n.trans.Call(req, n.conf.RPCTimeout)
	telemetry.RPCDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())

	if err != nil {
		return message.Message{}, err
	}

	atomic.AddUint64(&n.sent, 1)
	telemetry.MessagesSent.WithLabelValues(typ).Inc()

	if resp.Body.Type == message.TypeError {
		e, ok := resp.Body.Payload.(*message.Error)
		if !ok {
			return resp, common.NewRPCErrf(common.Crash, "%s from %s: malformed error", typ, dest)
		}
		return resp, common.NewRPCErr(common.RPCErrType(e.Code), e.Text)
	}

	return resp, nil
}

// Go runs f in the background. The context is cancelled when the node shuts
// down, and Shutdown waits for f to return.
func (n *Node) Go(f func(ctx context.Context)) {
	n.goFunc(func() { f(n.ctx) })
}

// Context is cancelled when the node shuts down.
func (n *Node) Context() context.Context {
	return n.ctx
}

// ID returns the id assigned by init, or "" before init.
func (n *Node) ID() string {
	n.identityLock.RLock()
	defer n.identityLock.RUnlock()
	return n.identity.ID
}

// Identity returns a copy of the node's identity.
func (n *Node) Identity() Identity {
	n.identityLock.RLock()
	defer n.identityLock.RUnlock()
	return n.identity.clone()
}

// Neighbors returns the peers this node gossips with.
func (n *Node) Neighbors() []string {
	return n.Identity().Neighbors
}

// Others returns every peer but this node.
func (n *Node) Others() []string {
	return n.Identity().Others()
}

// Logger returns the node's logger, tagged with its id once known.
func (n *Node) Logger() *logrus.Entry {
	n.identityLock.RLock()
	defer n.identityLock.RUnlock()
	return n.logger
}

// GetState returns the current state.
func (n *Node) GetState() State {
	return n.getState()
}

// Shutdown stops the dispatch loop, cancels background routines and waits for
// them, then closes the transport.
func (n *Node) Shutdown() {
	n.shutdown.Do(func() {
		n.Logger().Debug("Shutdown")

		n.setState(Shutdown)

		close(n.shutdownCh)
		n.cancel()

		n.waitRoutines()

		n.trans.Close()
	})
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	id := n.Identity()

	return map[string]string{
		"id":         id.ID,
		"state":      n.getState().String(),
		"workload":   n.workload.Name(),
		"peers":      strings.Join(id.Peers, ","),
		"neighbors":  strings.Join(id.Neighbors, ","),
		"received":   strconv.FormatUint(atomic.LoadUint64(&n.received), 10),
		"sent":       strconv.FormatUint(atomic.LoadUint64(&n.sent), 10),
		"errors":     strconv.FormatUint(atomic.LoadUint64(&n.failures), 10),
		"routines":   fmt.Sprint(n.routines()),
		"last_msgid": strconv.FormatUint(n.ids.Last(), 10),
		"uptime":     time.Since(n.start).Round(time.Millisecond).String(),
	}
}
