package echo

import (
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node"
)

func TestEcho(t *testing.T) {
	network := net.NewInmemNetwork()

	n := node.NewNode(node.TestConfig(t), network.Route("n1"), New())
	go n.Run()
	defer n.Shutdown()

	client := network.Route("c1")
	go client.Listen()
	defer client.Close()

	call := func(id uint64, typ string, payload interface{}) message.Message {
		if err := client.Send(message.NewRequest("c1", "n1", typ, id, payload)); err != nil {
			t.Fatalf("err: %v", err)
		}
		select {
		case resp := <-client.Consumer():
			return resp
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", typ)
		}
		return message.Message{}
	}

	call(1, message.TypeInit, &message.Init{NodeID: "n1", NodeIDs: []string{"n1"}})

	value := map[string]interface{}{"nested": []interface{}{1.0, "two"}}
	resp := call(2, message.TypeEcho, &message.Echo{Echo: value})

	if resp.Body.Type != message.TypeEchoOk || resp.Body.ReplyTo() != 2 {
		t.Fatalf("unexpected response %+v", resp.Body)
	}

	got := resp.Body.Payload.(*message.Echo).Echo
	if !reflect.DeepEqual(got, value) {
		t.Fatalf("echo should be %#v, not %#v", value, got)
	}
}
