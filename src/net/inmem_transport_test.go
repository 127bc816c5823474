package net

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
)

func newTestNetwork(ids ...string) (*InmemNetwork, map[string]*InmemTransport) {
	network := NewInmemNetwork()
	transports := make(map[string]*InmemTransport)
	for _, id := range ids {
		t := network.Route(id)
		go t.Listen()
		transports[id] = t
	}
	return network, transports
}

func closeAll(transports map[string]*InmemTransport) {
	for _, t := range transports {
		t.Close()
	}
}

func TestInmemTransport_Send(t *testing.T) {
	_, trans := newTestNetwork("n1", "n2")
	defer closeAll(trans)

	// sending never blocks, even with nobody consuming yet
	for i := 1; i <= 100; i++ {
		msg := message.NewRequest("n1", "n2", message.TypeBroadcast, uint64(i),
			&message.Broadcast{Message: uint64(i)})
		if err := trans["n1"].Send(msg); err != nil {
			t.Fatalf("err: %v", err)
		}
	}

	for i := 1; i <= 100; i++ {
		select {
		case msg := <-trans["n2"].Consumer():
			b, ok := msg.Body.Payload.(*message.Broadcast)
			if !ok || b.Message != uint64(i) {
				t.Fatalf("message %d: unexpected payload %#v", i, msg.Body.Payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for message %d", i)
		}
	}
}

func TestInmemTransport_UnknownDestination(t *testing.T) {
	_, trans := newTestNetwork("n1")
	defer closeAll(trans)

	msg := message.NewRequest("n1", "n9", message.TypeEcho, 1, &message.Echo{Echo: "x"})
	err := trans["n1"].Send(msg)
	if !common.IsRPC(err, common.NodeNotFound) {
		t.Fatalf("expected node-not-found, got %v", err)
	}
}

func TestInmemTransport_Call(t *testing.T) {
	_, trans := newTestNetwork("n1", "lin-kv")
	defer closeAll(trans)

	go func() {
		for req := range trans["lin-kv"].Consumer() {
			trans["lin-kv"].Send(message.Reply(req, 1000+req.Body.ID(), message.TypeWriteOk, nil))
		}
	}()

	req := message.NewRequest("n1", "lin-kv", message.TypeWrite, 3,
		&message.Write{Key: message.StringKey("a"), Value: []byte(`1`)})

	resp, err := trans["n1"].Call(req, time.Second)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if resp.Body.Type != message.TypeWriteOk || resp.Body.ReplyTo() != 3 {
		t.Fatalf("unexpected response %+v", resp.Body)
	}
}

func TestInmemTransport_Partition(t *testing.T) {
	network, trans := newTestNetwork("n1", "n2")
	defer closeAll(trans)

	network.Partition("n1", "n2")

	req := message.NewRequest("n1", "n2", message.TypeEcho, 1, &message.Echo{Echo: "lost"})
	if err := trans["n1"].Send(req); err != nil {
		t.Fatalf("partitioned sends are dropped silently: %v", err)
	}

	select {
	case msg := <-trans["n2"].Consumer():
		t.Fatalf("partitioned message delivered: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}

	network.Heal()

	req = message.NewRequest("n1", "n2", message.TypeEcho, 2, &message.Echo{Echo: "found"})
	trans["n1"].Send(req)

	select {
	case msg := <-trans["n2"].Consumer():
		if msg.Body.ID() != 2 {
			t.Fatalf("unexpected message %+v", msg.Body)
		}
	case <-time.After(time.Second):
		t.Fatalf("healed message not delivered")
	}
}

func TestInmemTransport_CallTimeoutOnPartition(t *testing.T) {
	network, trans := newTestNetwork("n1", "lin-kv")
	defer closeAll(trans)

	network.Partition("n1", "lin-kv")

	req := message.NewRequest("n1", "lin-kv", message.TypeRead, 1, &message.Read{Key: message.StringKey("db")})
	_, err := trans["n1"].Call(req, 20*time.Millisecond)
	if !common.IsRPC(err, common.Timeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}
