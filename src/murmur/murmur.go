// Package murmur assembles a node from a Config: the workload it runs, the
// stdio transport it speaks the protocol over, and the optional HTTP service.
package murmur

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mosaicnetworks/murmur/src/broadcast"
	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/crdt"
	"github.com/mosaicnetworks/murmur/src/echo"
	"github.com/mosaicnetworks/murmur/src/kv"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/service"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/mosaicnetworks/murmur/src/txn"
	"github.com/mosaicnetworks/murmur/src/version"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Murmur is a node and everything it needs to run.
type Murmur struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Workload  node.Workload
	Store     *kv.Store
	Service   *service.Service

	// Input and Output carry the protocol. They default to stdin and stdout.
	Input  io.Reader
	Output io.Writer

	shutdown sync.Once
}

// NewMurmur ...
func NewMurmur(config *config.Config) *Murmur {
	engine := &Murmur{
		Config: config,
		Input:  os.Stdin,
		Output: os.Stdout,
	}

	return engine
}

func (m *Murmur) initWorkload() error {
	conf := m.Config

	switch {
	case conf.Workload == echo.Name:
		m.Workload = echo.New()

	case conf.Workload == broadcast.Name:
		m.Workload = broadcast.New(&broadcast.Config{
			ResendInterval: conf.ResendInterval,
			TimerFactory:   node.AfterFactory,
		})

	case crdt.IsKind(conf.Workload):
		r, err := crdt.NewReplicator(&crdt.Config{
			Kind:              conf.Workload,
			ReplicateInterval: conf.ReplicateInterval,
			TimerFactory:      node.JitterFactory,
		})
		if err != nil {
			return err
		}
		m.Workload = r

	case conf.Workload == txn.Name:
		e, err := txn.NewEngine(&txn.Config{
			Strategy: conf.TxnStrategy,
			Cache:    conf.TxnCache,
			Service:  conf.KVService,
		})
		if err != nil {
			return err
		}
		m.Workload = e

	case conf.Workload == kv.DefaultService:
		conf.Logger().WithField("path", conf.StoreDir).Debug("Opening key-value store")

		store, err := kv.NewStore(conf.StoreDir, conf.Logger())
		if err != nil {
			return err
		}
		m.Store = store
		m.Workload = kv.NewService(store)

	default:
		return fmt.Errorf("unknown workload %q", conf.Workload)
	}

	return nil
}

func (m *Murmur) initTransport() error {
	m.Transport = net.NewStdioTransport(m.Input, m.Output, m.Config.Logger())
	return nil
}

func (m *Murmur) initNode() error {
	m.Node = node.NewNode(
		node.NewConfig(m.Config.RPCTimeout, m.Config.BaseLogger()),
		m.Transport,
		m.Workload,
	)
	return nil
}

func (m *Murmur) initService() error {
	if m.Config.ServiceAddr != "" {
		m.Service = service.NewService(m.Config.ServiceAddr, m.Node, m.Config.Logger())
	}
	return nil
}

// Init ...
func (m *Murmur) Init() error {
	if err := m.initWorkload(); err != nil {
		return err
	}

	if err := m.initTransport(); err != nil {
		return err
	}

	if err := m.initNode(); err != nil {
		return err
	}

	if err := m.initService(); err != nil {
		return err
	}

	telemetry.SetBuildInfo(version.Version)

	m.Config.Logger().WithFields(logrus.Fields{
		"workload": m.Workload.Name(),
		"version":  version.Version,
	}).Debug("Initialised")

	return nil
}

// Run serves the protocol until the input ends or a fatal error occurs, and
// the HTTP service alongside it if there is one. Everything is shut down
// before Run returns.
func (m *Murmur) Run() error {
	var g errgroup.Group

	if m.Service != nil {
		g.Go(func() error {
			err := m.Service.Serve()
			if err != nil {
				m.Shutdown()
			}
			return err
		})
	}

	g.Go(func() error {
		defer m.Shutdown()
		return m.Node.Run()
	})

	return g.Wait()
}

// Shutdown stops the node and releases the store. It is safe to call more
// than once.
func (m *Murmur) Shutdown() {
	m.shutdown.Do(func() {
		m.Node.Shutdown()

		if m.Service != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.Service.Close(ctx); err != nil {
				m.Config.Logger().WithError(err).Warn("Closing service")
			}
		}

		if m.Store != nil {
			if err := m.Store.Close(); err != nil {
				m.Config.Logger().WithError(err).Warn("Closing store")
			}
		}
	})
}
