package net

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// lines carrying a whole transaction document can get large
	maxLineSize = 64 << 20
)

// StdioTransport exchanges newline-delimited JSON messages over a pair of
// streams, normally the process' standard input and output.
//
// Every message is written as one line inside a critical section, so routines
// sending concurrently never interleave bytes. Input is read by a routine of
// its own which never waits on the consumer: responses to pending Calls must
// get through while the consumer is busy issuing them. A line that cannot be
// decoded stops the transport and is reported by Err, because malformed input
// from the harness is unrecoverable.
type StdioTransport struct {
	logger *logrus.Entry

	r *bufio.Reader

	w     io.Writer
	wLock sync.Mutex

	queue     []message.Message
	done      bool
	queueLock sync.Mutex
	signalCh  chan struct{}

	consumeCh chan message.Message
	pending   *pendingCalls

	err     error
	errLock sync.Mutex

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewStdioTransport creates a transport reading from r and writing to w.
func NewStdioTransport(r io.Reader, w io.Writer, logger *logrus.Entry) *StdioTransport {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &StdioTransport{
		logger:     logger,
		r:          bufio.NewReader(r),
		w:          w,
		signalCh:   make(chan struct{}, 1),
		consumeCh:  make(chan message.Message),
		pending:    newPendingCalls(),
		shutdownCh: make(chan struct{}),
	}
}

// Consumer implements the Transport interface.
func (s *StdioTransport) Consumer() <-chan message.Message {
	return s.consumeCh
}

// Listen implements the Transport interface. Messages read before the end of
// the input, or before a malformed line, are all handed to the consumer before
// its channel is closed.
func (s *StdioTransport) Listen() {
	defer close(s.consumeCh)

	go s.read()

	for {
		select {
		case <-s.signalCh:
		case <-s.shutdownCh:
			return
		}

		queue, done := s.drain()

		for _, msg := range queue {
			select {
			case s.consumeCh <- msg:
			case <-s.shutdownCh:
				return
			}
		}

		if done {
			return
		}
	}
}

func (s *StdioTransport) read() {
	defer s.finish()

	for {
		line, err := s.readLine()
		if err != nil {
			if err != io.EOF && !s.IsShutdown() {
				s.setErr(errors.Wrap(err, "reading input"))
			}
			return
		}

		if len(line) == 0 {
			continue
		}

		msg, err := message.Decode(line)
		if err != nil {
			s.setErr(errors.Wrapf(err, "decoding %q", line))
			return
		}

		s.logger.WithFields(logrus.Fields{
			"src":  msg.Src,
			"type": msg.Body.Type,
		}).Debug("Received")

		if s.pending.deliver(msg) {
			continue
		}

		s.enqueue(msg)
	}
}

func (s *StdioTransport) enqueue(msg message.Message) {
	s.queueLock.Lock()
	s.queue = append(s.queue, msg)
	s.queueLock.Unlock()
	s.signal()
}

// finish marks the end of the input.
func (s *StdioTransport) finish() {
	s.queueLock.Lock()
	s.done = true
	s.queueLock.Unlock()
	s.signal()
}

func (s *StdioTransport) signal() {
	select {
	case s.signalCh <- struct{}{}:
	default:
	}
}

// drain takes the queued messages, and whether the input has ended. Once it
// has, the queue returned holds everything that is left.
func (s *StdioTransport) drain() ([]message.Message, bool) {
	s.queueLock.Lock()
	defer s.queueLock.Unlock()
	q := s.queue
	s.queue = nil
	return q, s.done
}

// readLine returns the next line without its terminator. A final line without
// a terminator is still returned.
func (s *StdioTransport) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := s.r.ReadLine()
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return line, nil
			}
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxLineSize {
			return nil, errors.Errorf("line exceeds %d bytes", maxLineSize)
		}
		if !isPrefix {
			return line, nil
		}
	}
}

// Send implements the Transport interface.
func (s *StdioTransport) Send(msg message.Message) error {
	if s.IsShutdown() {
		return ErrTransportShutdown
	}

	line, err := message.Encode(msg)
	if err != nil {
		return errors.Wrapf(err, "encoding %s to %s", msg.Body.Type, msg.Dest)
	}
	line = append(line, '\n')

	s.wLock.Lock()
	_, err = s.w.Write(line)
	s.wLock.Unlock()

	if err != nil {
		return errors.Wrap(err, "writing output")
	}

	s.logger.WithFields(logrus.Fields{
		"dest": msg.Dest,
		"type": msg.Body.Type,
	}).Debug("Sent")

	return nil
}

// Call implements the Transport interface.
func (s *StdioTransport) Call(req message.Message, timeout time.Duration) (message.Message, error) {
	return s.pending.call(s.Send, req, timeout, s.shutdownCh)
}

// Err implements the Transport interface.
func (s *StdioTransport) Err() error {
	s.errLock.Lock()
	defer s.errLock.Unlock()
	return s.err
}

func (s *StdioTransport) setErr(err error) {
	s.errLock.Lock()
	defer s.errLock.Unlock()
	s.err = err
}

// IsShutdown is used to check if the transport is shutdown.
func (s *StdioTransport) IsShutdown() bool {
	select {
	case <-s.shutdownCh:
		return true
	default:
		return false
	}
}

// Close is used to stop the transport. Listen returns immediately; the
// reading routine stays blocked on the input until it yields a line or ends.
func (s *StdioTransport) Close() error {
	s.shutdownLock.Lock()
	defer s.shutdownLock.Unlock()

	if !s.shutdown {
		close(s.shutdownCh)
		s.shutdown = true
	}
	return nil
}
