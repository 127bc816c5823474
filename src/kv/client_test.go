package kv

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node"
)

// startService runs a lin-kv node over a fresh badger store, and a client node
// calling it.
func startService(t *testing.T) (*node.Node, *node.Node, func()) {
	network := net.NewInmemNetwork()

	store := newTestStore(t)
	svc := node.NewNode(node.TestConfig(t), network.Route(DefaultService), NewService(store))
	go svc.Run()

	cli := node.NewNode(node.TestConfig(t), network.Route("n1"), nopWorkload{})
	go cli.Run()

	// the harness side: initialise both nodes
	harness := network.Route("harness")
	go harness.Listen()

	ids := &node.IDGenerator{}
	for _, id := range []string{DefaultService, "n1"} {
		req := message.NewRequest("harness", id, message.TypeInit, ids.Next(),
			&message.Init{NodeID: id, NodeIDs: []string{"n1"}})
		resp, err := harness.Call(req, time.Second)
		if err != nil || resp.Body.Type != message.TypeInitOk {
			t.Fatalf("init %s: %v %v", id, resp.Body.Type, err)
		}
	}

	return svc, cli, func() {
		cli.Shutdown()
		svc.Shutdown()
		harness.Close()
		store.Close()
	}
}

type nopWorkload struct{}

func (nopWorkload) Name() string { return "nop" }

func (nopWorkload) Start(n *node.Node) {}

func (nopWorkload) Handle(n *node.Node, m message.Message) error { return node.ErrUnknownKind }

func TestClient(t *testing.T) {
	_, cli, stop := startService(t)
	defer stop()

	client := NewClient(cli, DefaultService)

	if _, err := client.Read("missing"); !common.IsRPC(err, common.KeyDoesNotExist) {
		t.Fatalf("expected key-does-not-exist, got %v", err)
	}

	if err := client.Write("a", raw(`[1,2]`)); err != nil {
		t.Fatalf("err: %v", err)
	}

	value, err := client.Read("a")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if string(value) != "[1,2]" {
		t.Fatalf("value should be [1,2], not %s", value)
	}

	err = client.CAS("a", raw(`[1]`), raw(`[1,3]`), false)
	if !common.IsRPC(err, common.PreconditionFailed) {
		t.Fatalf("expected precondition-failed, got %v", err)
	}

	if err := client.CAS("a", raw(`[1,2]`), raw(`[1,2,3]`), false); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := client.CAS("b", raw(`null`), raw(`"new"`), true); err != nil {
		t.Fatalf("err: %v", err)
	}

	value, _ = client.Read("b")
	if string(value) != `"new"` {
		t.Fatalf("value should be \"new\", not %s", value)
	}
}

func TestClient_Timeout(t *testing.T) {
	network := net.NewInmemNetwork()

	conf := node.TestConfig(t)
	conf.RPCTimeout = 20 * time.Millisecond

	cli := node.NewNode(conf, network.Route("n1"), nopWorkload{})
	defer cli.Shutdown()

	// nobody serves lin-kv
	dead := network.Route(DefaultService)
	defer dead.Close()

	client := NewClient(cli, DefaultService)

	if _, err := client.Read("a"); !common.IsRPC(err, common.Timeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}
