// Package txn implements the list-append transaction workload.
//
// Clients submit transactions made of micro-ops that append to, read, or
// verify integer lists. Nodes hold no state of their own: every transaction is
// committed to a linearizable key-value service with compare-and-swap, so any
// node can serve any transaction and no lock spans several nodes. How the
// database is laid out in the service, and therefore which guarantees hold,
// depends on the commit Strategy.
package txn

import (
	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/kv"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Name of the workload.
const Name = "txn-list-append"

// Config ...
type Config struct {
	Strategy string `mapstructure:"txn-strategy"`
	Cache    bool   `mapstructure:"txn-cache"`
	Service  string `mapstructure:"kv-service"`
}

// DefaultConfig ...
func DefaultConfig() *Config {
	return &Config{
		Strategy: StrategyDocument,
		Cache:    false,
		Service:  kv.DefaultService,
	}
}

// Engine is the transaction workload.
type Engine struct {
	conf     *Config
	strategy Strategy
}

// NewEngine checks the configuration. The strategy is set up by Start, once
// the node can reach the key-value service.
func NewEngine(conf *Config) (*Engine, error) {
	if conf.Strategy != StrategyDocument && conf.Strategy != StrategyPerKey {
		return nil, common.NewRPCErrf(common.NotSupported, "unknown commit strategy %q", conf.Strategy)
	}
	return &Engine{conf: conf}, nil
}

// Name implements the node.Workload interface.
func (e *Engine) Name() string {
	return Name
}

// Start implements the node.Workload interface.
func (e *Engine) Start(n *node.Node) {
	logger := n.Logger().WithField("strategy", e.conf.Strategy)

	// NewEngine validated the name
	e.strategy, _ = NewStrategy(e.conf.Strategy, kv.NewClient(n, e.conf.Service), e.conf.Cache, logger)

	logger.WithFields(logrus.Fields{
		"service": e.conf.Service,
		"cache":   e.conf.Cache,
	}).Info("Committing transactions")
}

// Handle implements the node.Workload interface.
func (e *Engine) Handle(n *node.Node, msg message.Message) error {
	if msg.Body.Type != message.TypeTxn {
		return node.ErrUnknownKind
	}

	req, ok := msg.Body.Payload.(*message.Txn)
	if !ok {
		return common.NewRPCErr(common.MalformedRequest, "txn payload missing")
	}

	ops, err := ParseTxn(req.Txn)
	if err != nil {
		e.count("malformed")
		if _, isRPC := err.(common.RPCErr); !isRPC {
			err = malformed("%v", err)
		}
		return err
	}

	res, err := e.strategy.Commit(ops)
	if err != nil {
		e.count(outcome(err))
		n.Logger().WithError(err).WithField("ops", len(ops)).Debug("Transaction aborted")
		return err
	}

	wire, err := EncodeTxn(res)
	if err != nil {
		return err
	}

	e.count("committed")

	return n.Reply(msg, message.TypeTxnOk, &message.Txn{Txn: wire})
}

func (e *Engine) count(outcome string) {
	telemetry.Transactions.WithLabelValues(e.conf.Strategy, outcome).Inc()
}

func outcome(err error) string {
	switch common.AsRPC(err).Code {
	case common.TxnConflict:
		return "conflict"
	case common.Timeout:
		return "timeout"
	default:
		return "failed"
	}
}
