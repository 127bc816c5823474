package net

import (
	"errors"
	"sync"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrNoMsgID is returned by Call when the request cannot be correlated.
	ErrNoMsgID = errors.New("rpc request has no msg_id")
)

// pendingCalls routes responses to the routines blocked in Call. A response is
// delivered at most once; responses arriving after the caller gave up are left
// to the consumer.
type pendingCalls struct {
	sync.Mutex
	calls map[uint64]chan message.Message
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{
		calls: make(map[uint64]chan message.Message),
	}
}

func (p *pendingCalls) register(id uint64) chan message.Message {
	p.Lock()
	defer p.Unlock()

	ch := make(chan message.Message, 1)
	p.calls[id] = ch
	return ch
}

func (p *pendingCalls) forget(id uint64) {
	p.Lock()
	defer p.Unlock()
	delete(p.calls, id)
}

// deliver hands msg to the pending call it answers and reports whether there
// was one.
func (p *pendingCalls) deliver(msg message.Message) bool {
	if !msg.Body.IsReply() {
		return false
	}

	p.Lock()
	ch, ok := p.calls[msg.Body.ReplyTo()]
	if ok {
		delete(p.calls, msg.Body.ReplyTo())
	}
	p.Unlock()

	if ok {
		ch <- msg
	}
	return ok
}

// call sends req through send and waits for the correlated response.
func (p *pendingCalls) call(send func(message.Message) error, req message.Message, timeout time.Duration, shutdownCh <-chan struct{}) (message.Message, error) {
	if req.Body.MsgID == nil {
		return message.Message{}, ErrNoMsgID
	}

	id := *req.Body.MsgID
	respCh := p.register(id)

	if err := send(req); err != nil {
		p.forget(id)
		return message.Message{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		return resp, nil
	case <-timer.C:
		p.forget(id)
		return message.Message{}, common.NewRPCErrf(common.Timeout, "%s to %s timed out after %s", req.Body.Type, req.Dest, timeout)
	case <-shutdownCh:
		p.forget(id)
		return message.Message{}, ErrTransportShutdown
	}
}
