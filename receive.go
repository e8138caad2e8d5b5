// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Implements the per-connection session with its receive loop. A read pump go
// routine issues the transport reads, while the session's processing context
// handles the read completions. The read pump must acquire the session's
// single flow-control token before issuing the next read; the processing
// context releases the token only after it has completely handled the bytes
// received, so there is never more than one read outstanding and the receive
// buffer has a single writer.

package wsclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/siemens/wsclient/websock"
	log "github.com/sirupsen/logrus"
)

// session is the context of a single connection attempt. It exclusively owns
// the transport, the receive buffer, the frame assembler, and the handshake
// context.
type session struct {
	client    *Client
	transport Transport
	hs        *handshake
	buf       []byte
	asm       *websock.Assembler

	// Flow-control token with a single permit.
	token chan struct{}
	// Closed when the session gets torn down.
	done chan struct{}
	// Is the transport open, so there's something to disconnect?
	opened atomic.Bool
	// Only touched by the processing context.
	authenticated bool

	// Settles the outcome of the connecting phase exactly once: either the
	// handshake completed or the attempt failed. settled gets closed
	// when the outcome is known.
	sm        sync.Mutex
	isSettled bool
	outcome   error
	settled   chan struct{}

	// Serializes writes to the transport, and stops them after the close
	// frame.
	wm      sync.Mutex
	closing bool

	teardown sync.Once
}

// completion is the result of a single transport read.
type completion struct {
	n   int
	err error
}

func newSession(c *Client, hs *handshake, t Transport) *session {
	s := &session{
		client:    c,
		transport: t,
		hs:        hs,
		asm:       websock.NewAssembler(c.opts.ReadLimit),
		token:     make(chan struct{}, 1),
		done:      make(chan struct{}),
		settled:   make(chan struct{}),
	}
	s.token <- struct{}{}
	return s
}

// settle records the outcome of the connecting phase, unless already
// settled. It returns true if this call settled the outcome.
func (s *session) settle(err error) bool {
	s.sm.Lock()
	defer s.sm.Unlock()
	if s.isSettled {
		return false
	}
	s.isSettled = true
	s.outcome = err
	close(s.settled)
	return true
}

// connecting returns true while the connecting phase hasn't been settled yet.
func (s *session) connecting() bool {
	s.sm.Lock()
	defer s.sm.Unlock()
	return !s.isSettled
}

// result returns the outcome of the connecting phase; it must only be called
// after the settled channel has been closed.
func (s *session) result() error {
	s.sm.Lock()
	defer s.sm.Unlock()
	return s.outcome
}

// send writes p to the transport, unless the close frame has already been
// sent.
func (s *session) send(p []byte) error {
	s.wm.Lock()
	defer s.wm.Unlock()
	if s.closing {
		return ErrNotConnected
	}
	return s.transport.Send(p)
}

// sendClose sends the close frame, if not already done so. Afterwards, no
// further frames will be sent.
func (s *session) sendClose() error {
	s.wm.Lock()
	defer s.wm.Unlock()
	if s.closing {
		return nil
	}
	s.closing = true
	b, err := websock.CloseFrame{}.Bytes()
	if err != nil {
		return err
	}
	return s.transport.Send(b)
}

// run opens the transport, sends the opening handshake request, and then
// receives until the end of the stream. It always finally tears down the
// session.
func (s *session) run(ctx context.Context) {
	c := s.client
	defer c.teardown(s)

	log.Debugf("opening transport to %s", c.target.Addr())
	if err := s.transport.Open(ctx, c.target); err != nil {
		log.Debugf("transport to %s failed to open: %s", c.target.Addr(), err.Error())
		s.settle(fmt.Errorf("%w: %w", ErrTransportOpen, err))
		return
	}
	select {
	case <-s.done:
		return // ...we were already given up.
	default:
	}
	s.buf = make([]byte, c.opts.ReceiveBufferSize)
	s.opened.Store(true)
	if fn := c.opts.Handlers.OnConnect; fn != nil {
		fn(c)
	}

	log.Debugf("sending opening handshake request for %s", c.target)
	if err := s.send(s.hs.request()); err != nil {
		s.settle(fmt.Errorf("%w: cannot send request: %s", ErrHandshake, err.Error()))
		return
	}
	s.receive()
}

// receive runs the processing context of the receive loop until the stream
// ends or fails, or either side closes the websocket.
func (s *session) receive() {
	completions := make(chan completion)
	stop := make(chan struct{})
	defer close(stop)
	go s.readPump(completions, stop)
	for comp := range completions {
		if !s.received(comp) {
			return
		}
	}
}

// readPump issues a single transport read each time it acquires the
// flow-control token, and posts the read's completion to the processing
// context.
func (s *session) readPump(completions chan<- completion, stop <-chan struct{}) {
	defer close(completions)
	for {
		select {
		case <-s.token:
		case <-stop:
			return
		case <-s.done:
			return
		}
		n, err := s.transport.Receive(s.buf)
		select {
		case completions <- completion{n: n, err: err}:
		case <-stop:
			return
		}
		if n == 0 || err != nil {
			return
		}
	}
}

// received handles a single read completion. It returns false if the session
// must end, otherwise it has released the flow-control token so that the read
// pump can issue the next read.
func (s *session) received(comp completion) bool {
	n := comp.n
	if comp.err != nil {
		if !errors.Is(comp.err, io.EOF) && !errors.Is(comp.err, net.ErrClosed) {
			log.Debugf("receive from %s failed: %s", s.client.target.Addr(), comp.err.Error())
		}
		n = 0
	}
	if n == 0 {
		log.Debugf("end of stream from %s", s.client.target.Addr())
		s.settle(fmt.Errorf("%w: connection closed by server", ErrHandshake))
		return false
	}
	data := s.buf[:n]
	if !s.authenticated {
		if !s.handshakeReceived(data) {
			return false
		}
	} else if !s.messagesReceived(data) {
		return false
	}
	s.token <- struct{}{}
	return true
}

// handshakeReceived accumulates the server's handshake response and validates
// it once the complete header block has been received.
func (s *session) handshakeReceived(data []byte) bool {
	s.asm.Append(data, false)
	raw := s.asm.Bytes()
	end := responseEnd(raw)
	if end < 0 {
		if len(raw) > maxHandshakeResponseSize {
			s.asm.Reset()
			s.settle(fmt.Errorf("%w: response header exceeds %d octets",
				ErrHandshake, maxHandshakeResponseSize))
			return false
		}
		return true
	}
	protocol, err := s.hs.validate(raw[:end])
	rest := append([]byte(nil), raw[end:]...)
	s.asm.Reset()
	if err != nil {
		log.Debugf("handshake with %s failed: %s", s.client.target, err.Error())
		s.settle(err)
		return false
	}
	if !s.client.handshakeCompleted(s, protocol) {
		return false
	}
	s.authenticated = true
	if fn := s.client.opts.Handlers.OnConnected; fn != nil {
		fn(s.client)
	}
	if len(rest) > 0 {
		// The server already sent frames right after its handshake response.
		return s.messagesReceived(rest)
	}
	return true
}

// messagesReceived feeds data into the frame assembler and dispatches all
// messages that have become complete.
func (s *session) messagesReceived(data []byte) bool {
	if err := s.asm.Append(data, true); err != nil {
		log.Errorf("receiving from %s failed: %s", s.client.target, err.Error())
		return false
	}
	for s.asm.State() == websock.Complete {
		if !s.dispatch(s.asm.Message()) {
			return false
		}
		if err := s.asm.Next(); err != nil {
			log.Errorf("receiving from %s failed: %s", s.client.target, err.Error())
			return false
		}
	}
	return true
}

// dispatch a complete message: control messages are handled here, data
// messages are passed on to the OnReceive handler.
func (s *session) dispatch(m websock.Message) bool {
	switch m.Opcode {
	case websock.OpPing:
		pong, err := websock.Pong(m.Payload)
		if err == nil {
			err = s.send(pong)
		}
		if err != nil {
			log.Debugf("cannot answer ping: %s", err.Error())
			return false
		}
	case websock.OpPong:
		log.Debug("unsolicited pong received")
	case websock.OpClose:
		code, reason := m.CloseStatus()
		log.Debugf("server closes websocket, code %d, reason %q", code, reason)
		return false
	default:
		if fn := s.client.opts.Handlers.OnReceive; fn != nil {
			fn(s.client, m)
		}
	}
	return true
}
