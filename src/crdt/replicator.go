package crdt

import (
	"context"
	"sync"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/sirupsen/logrus"
)

// DefaultReplicateInterval is the anti-entropy period.
const DefaultReplicateInterval = 2 * time.Second

func init() {
	message.Register(message.TypeReplicate, func() interface{} { return &message.Replicate{} })
}

// Config ...
type Config struct {
	Kind              string        `mapstructure:"workload"`
	ReplicateInterval time.Duration `mapstructure:"replicate-interval"`
	TimerFactory      node.TimerFactory
}

// DefaultConfig ...
func DefaultConfig(kind string) *Config {
	return &Config{
		Kind:              kind,
		ReplicateInterval: DefaultReplicateInterval,
		TimerFactory:      node.AfterFactory,
	}
}

// Replicator is the workload serving add, read and replicate over one CRDT,
// and running anti-entropy in the background.
type Replicator struct {
	conf *Config

	state     CRDT
	stateLock sync.RWMutex

	timer *node.ControlTimer
}

// NewReplicator ...
func NewReplicator(conf *Config) (*Replicator, error) {
	state, err := New(conf.Kind)
	if err != nil {
		return nil, err
	}

	return &Replicator{
		conf:  conf,
		state: state,
		timer: node.NewControlTimer(conf.TimerFactory),
	}, nil
}

// Name implements the node.Workload interface.
func (r *Replicator) Name() string {
	return r.conf.Kind
}

// Start implements the node.Workload interface. It starts anti-entropy.
func (r *Replicator) Start(n *node.Node) {
	n.Go(func(context.Context) {
		r.timer.Run(r.conf.ReplicateInterval)
	})

	n.Go(func(ctx context.Context) {
		r.antiEntropy(ctx, n)
	})
}

func (r *Replicator) antiEntropy(ctx context.Context, n *node.Node) {
	for {
		select {
		case <-r.timer.TickCh():
			r.Replicate(n)
			r.timer.Reset(r.conf.ReplicateInterval)
		case <-ctx.Done():
			r.timer.Shutdown()
			return
		}
	}
}

// Replicate sends the whole state to every other node. The state is
// snapshotted under the read lock and sent without holding it.
func (r *Replicator) Replicate(n *node.Node) {
	r.stateLock.RLock()
	wire := r.state.ToWire()
	r.stateLock.RUnlock()

	peers := n.Others()
	for _, peer := range peers {
		if err := n.Send(n.NewRequest(peer, message.TypeReplicate, &wire)); err != nil {
			n.Logger().WithError(err).WithField("dest", peer).Debug("Replicating")
		}
	}

	telemetry.Replications.Inc()

	n.Logger().WithField("peers", len(peers)).Debug("Replicated")
}

// Handle implements the node.Workload interface.
func (r *Replicator) Handle(n *node.Node, msg message.Message) error {
	switch msg.Body.Type {
	case message.TypeAdd:
		return r.processAdd(n, msg)
	case message.TypeReplicate:
		return r.processReplicate(n, msg)
	case message.TypeRead:
		return n.Reply(msg, message.TypeReadOk, &message.ReadValueOk{Value: r.Read()})
	}
	return node.ErrUnknownKind
}

func (r *Replicator) processAdd(n *node.Node, msg message.Message) error {
	add, ok := msg.Body.Payload.(*message.Add)
	if !ok {
		return common.NewRPCErr(common.MalformedRequest, "add payload missing")
	}

	r.stateLock.Lock()
	err := r.state.Add(n.ID(), *add)
	r.stateLock.Unlock()

	if err != nil {
		return err
	}

	return n.Reply(msg, message.TypeAddOk, nil)
}

// processReplicate merges a peer's state. Replicate is fire-and-forget: there
// is no response unless the payload is unusable.
func (r *Replicator) processReplicate(n *node.Node, msg message.Message) error {
	wire, ok := msg.Body.Payload.(*message.Replicate)
	if !ok {
		return common.NewRPCErr(common.MalformedRequest, "replicate payload missing")
	}

	// FromWire only reads the receiver's kind
	r.stateLock.RLock()
	other, err := r.state.FromWire(wire)
	r.stateLock.RUnlock()
	if err != nil {
		return err
	}

	r.stateLock.Lock()
	err = r.state.Merge(other)
	r.stateLock.Unlock()

	if err != nil {
		return err
	}

	n.Logger().WithFields(logrus.Fields{
		"src": msg.Src,
	}).Debug("Merged")

	return nil
}

// Read returns the current value.
func (r *Replicator) Read() interface{} {
	r.stateLock.RLock()
	defer r.stateLock.RUnlock()
	return r.state.Read()
}

// Snapshot returns a copy of the current state.
func (r *Replicator) Snapshot() CRDT {
	r.stateLock.RLock()
	defer r.stateLock.RUnlock()
	return r.state.Clone()
}
