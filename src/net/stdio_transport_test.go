package net

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
)

// lockedBuffer is a bytes.Buffer that records each Write call separately.
type lockedBuffer struct {
	sync.Mutex
	buf    bytes.Buffer
	writes int
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.Lock()
	defer l.Unlock()
	l.writes++
	return l.buf.Write(p)
}

func (l *lockedBuffer) String() string {
	l.Lock()
	defer l.Unlock()
	return l.buf.String()
}

func TestStdioTransport_Consume(t *testing.T) {
	input := strings.Join([]string{
		`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":1,"echo":"hello"}}`,
		``,
		`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":2,"echo":"world"}}`,
	}, "\n")

	trans := NewStdioTransport(strings.NewReader(input), io.Discard, common.NewTestEntry(t, common.TestLogLevel))
	defer trans.Close()
	go trans.Listen()

	var got []string
	for msg := range trans.Consumer() {
		echo, ok := msg.Body.Payload.(*message.Echo)
		if !ok {
			t.Fatalf("payload should be *message.Echo, not %T", msg.Body.Payload)
		}
		got = append(got, echo.Echo.(string))
	}

	if len(got) != 2 || got[0] != "hello" || got[1] != "world" {
		t.Fatalf("consumed %v", got)
	}

	if err := trans.Err(); err != nil {
		t.Fatalf("EOF should not be an error: %v", err)
	}
}

func TestStdioTransport_MalformedLine(t *testing.T) {
	input := `{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":1,"echo":"x"}}
{"src":"c1","dest":"n1","body":
{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":3,"echo":"y"}}
`

	trans := NewStdioTransport(strings.NewReader(input), io.Discard, common.NewTestEntry(t, common.TestLogLevel))
	defer trans.Close()
	go trans.Listen()

	count := 0
	for range trans.Consumer() {
		count++
	}

	if count != 1 {
		t.Fatalf("only the first line should be consumed, got %d", count)
	}

	if trans.Err() == nil {
		t.Fatalf("a malformed line should be reported")
	}
}

func TestStdioTransport_ConcurrentSend(t *testing.T) {
	out := &lockedBuffer{}

	trans := NewStdioTransport(strings.NewReader(""), out, common.NewTestEntry(t, common.TestLogLevel))
	defer trans.Close()

	const routines = 10
	const perRoutine = 50

	var wg sync.WaitGroup
	for r := 0; r < routines; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := 0; i < perRoutine; i++ {
				msg := message.NewRequest("n1", "n2", message.TypeBroadcast, uint64(r*perRoutine+i+1),
					&message.Broadcast{Message: uint64(i)})
				if err := trans.Send(msg); err != nil {
					t.Errorf("err: %v", err)
				}
			}
		}(r)
	}
	wg.Wait()

	if out.writes != routines*perRoutine {
		t.Fatalf("each message should be written at once: %d writes", out.writes)
	}

	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	lines := 0
	for scanner.Scan() {
		if _, err := message.Decode(scanner.Bytes()); err != nil {
			t.Fatalf("line %d is not a message: %v", lines, err)
		}
		lines++
	}

	if lines != routines*perRoutine {
		t.Fatalf("expected %d lines, got %d", routines*perRoutine, lines)
	}
}

func TestStdioTransport_Call(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	trans := NewStdioTransport(inR, outW, common.NewTestEntry(t, common.TestLogLevel))
	defer trans.Close()
	go trans.Listen()

	// answer the first request and emit an unrelated request afterwards
	go func() {
		reader := bufio.NewReader(outR)
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		req, err := message.Decode(line)
		if err != nil {
			return
		}

		resp, _ := message.Encode(message.Reply(req, 100, message.TypeReadOk,
			&message.ReadValueOk{Value: 42}))
		inW.Write(append(resp, '\n'))

		other, _ := message.Encode(message.NewRequest("c1", "n1", message.TypeEcho, 7,
			&message.Echo{Echo: "after"}))
		inW.Write(append(other, '\n'))
	}()

	req := message.NewRequest("n1", "lin-kv", message.TypeRead, 5, &message.Read{Key: message.StringKey("db")})
	resp, err := trans.Call(req, time.Second)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if resp.Body.Type != message.TypeReadOk || resp.Body.ReplyTo() != 5 {
		t.Fatalf("unexpected response %+v", resp.Body)
	}

	select {
	case msg := <-trans.Consumer():
		if msg.Body.Type != message.TypeEcho {
			t.Fatalf("the response should not reach the consumer, got %s", msg.Body.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for the next request")
	}

	inW.Close()
	outR.Close()
}

func TestStdioTransport_CallTimeout(t *testing.T) {
	inR, inW := io.Pipe()
	defer inW.Close()

	trans := NewStdioTransport(inR, io.Discard, common.NewTestEntry(t, common.TestLogLevel))
	defer trans.Close()
	go trans.Listen()

	req := message.NewRequest("n1", "lin-kv", message.TypeRead, 1, &message.Read{Key: message.StringKey("db")})

	start := time.Now()
	_, err := trans.Call(req, 50*time.Millisecond)
	if !common.IsRPC(err, common.Timeout) {
		t.Fatalf("expected a timeout error, got %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatalf("returned before the timeout")
	}
}

func TestStdioTransport_CallWithoutMsgID(t *testing.T) {
	trans := NewStdioTransport(strings.NewReader(""), io.Discard, common.NewTestEntry(t, common.TestLogLevel))
	defer trans.Close()

	req := message.Message{Src: "n1", Dest: "n2", Body: message.Body{Type: message.TypeRead}}
	if _, err := trans.Call(req, time.Second); err != ErrNoMsgID {
		t.Fatalf("expected ErrNoMsgID, got %v", err)
	}
}

func TestStdioTransport_SendAfterClose(t *testing.T) {
	trans := NewStdioTransport(strings.NewReader(""), io.Discard, common.NewTestEntry(t, common.TestLogLevel))
	trans.Close()
	trans.Close()

	msg := message.NewRequest("n1", "n2", message.TypeEcho, 1, &message.Echo{Echo: 1})
	if err := trans.Send(msg); err != ErrTransportShutdown {
		t.Fatalf("expected ErrTransportShutdown, got %v", err)
	}
}

func TestStdioTransport_CallWhileConsumerBusy(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	trans := NewStdioTransport(inR, outW, common.NewTestEntry(t, common.TestLogLevel))
	defer trans.Close()
	go trans.Listen()

	// a new request arrives before the response, and nobody consumes it
	go func() {
		reader := bufio.NewReader(outR)
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		req, _ := message.Decode(line)

		other, _ := message.Encode(message.NewRequest("c1", "n1", message.TypeEcho, 7,
			&message.Echo{Echo: "first"}))
		inW.Write(append(other, '\n'))

		resp, _ := message.Encode(message.Reply(req, 100, message.TypeWriteOk, nil))
		inW.Write(append(resp, '\n'))
	}()

	req := message.NewRequest("n1", "lin-kv", message.TypeWrite, 5, &message.Write{Key: message.StringKey("k"), Value: []byte("1")})
	if _, err := trans.Call(req, time.Second); err != nil {
		t.Fatalf("err: %v", err)
	}

	msg := <-trans.Consumer()
	if msg.Body.Type != message.TypeEcho {
		t.Fatalf("the queued request should still be consumed, got %s", msg.Body.Type)
	}

	inW.Close()
	outR.Close()
}
