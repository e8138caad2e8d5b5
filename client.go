// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Implements the websocket client controlling the connection lifecycle:
// connecting with a timeout, sending messages, and disconnecting.

package wsclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/siemens/wsclient/websock"
	log "github.com/sirupsen/logrus"
)

// Client is a websocket client for a single target. A Client can be
// connected, disconnected, and then connected again; each connection attempt
// uses a fresh transport and handshake context.
type Client struct {
	target Target
	opts   Options
	state  *stateMachine

	m             sync.Mutex // protects the fields below.
	sess          *session
	authenticated bool
	protocol      string
}

// New returns a new websocket client for the specified “ws[s]://host:port/path”
// target URI, using the specified options. The options might be nil, in which
// case the defaults are used.
func New(uri string, opts *Options) (*Client, error) {
	t, err := ParseTarget(uri)
	if err != nil {
		return nil, err
	}
	return &Client{
		target: t,
		opts:   opts.withDefaults(),
		state:  newStateMachine(),
	}, nil
}

// Target returns the websocket target of this client.
func (c *Client) Target() Target { return c.target }

// State returns the current ready state.
func (c *Client) State() ReadyState { return c.state.current() }

// IsAuthenticated returns true if the opening handshake of the current
// connection has successfully been completed.
func (c *Client) IsAuthenticated() bool {
	c.m.Lock()
	defer c.m.Unlock()
	return c.authenticated
}

// Protocol returns the subprotocol negotiated in the most recent successful
// opening handshake, or "" if none.
func (c *Client) Protocol() string {
	c.m.Lock()
	defer c.m.Unlock()
	return c.protocol
}

// Connected returns true while the transport of the current connection is
// open.
func (c *Client) Connected() bool {
	c.m.Lock()
	s := c.sess
	c.m.Unlock()
	return s != nil && s.transport.Connected()
}

// newTransport returns a fresh transport for a new connection attempt.
func (c *Client) newTransport() Transport {
	if c.opts.Transport != nil {
		return c.opts.Transport()
	}
	var tlsConfig *tls.Config
	if c.opts.InsecureSkipVerify {
		tlsConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	return NewTCPTransport(tlsConfig)
}

// Connect opens the transport to the target and then runs the opening
// handshake, waiting until the handshake has been completed, the connection
// attempt failed, the connect timeout passed, or the context has been
// cancelled. If there already is a connection, Connect is a no-op; if another
// connection attempt is still in progress, Connect waits for its outcome.
//
// If the connection attempt fails, Connect cleans up, reports the failure to
// the OnFailedConnection handler, and then returns the error.
func (c *Client) Connect(ctx context.Context) error {
	c.m.Lock()
	if s := c.sess; s != nil {
		c.m.Unlock()
		log.Debugf("already connected or connecting to %s", c.target)
		select {
		case <-s.settled:
			return s.result()
		case <-ctx.Done():
			return fmt.Errorf("waiting for connection to %s aborted: %w", c.target, ctx.Err())
		}
	}
	hs, err := newHandshake(c.target, &c.opts)
	if err != nil {
		c.m.Unlock()
		return err
	}
	if err := c.state.transition(Connecting); err != nil {
		c.m.Unlock()
		return err
	}
	sess := newSession(c, hs, c.newTransport())
	c.sess = sess
	c.authenticated = false
	c.protocol = ""
	c.m.Unlock()

	log.Debugf("connecting to %s, timeout %s", c.target, c.opts.ConnectTimeout)
	openctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sess.run(openctx)

	timer := time.NewTimer(c.opts.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-sess.settled:
	case <-timer.C:
		c.giveUp(sess, fmt.Errorf("%w after %s", ErrConnectTimeout, c.opts.ConnectTimeout))
	case <-ctx.Done():
		c.giveUp(sess, fmt.Errorf("connecting to %s aborted: %w", c.target, ctx.Err()))
	}
	err = sess.result()
	if err == nil {
		log.Debugf("connected to %s", c.target)
		return nil
	}
	log.Debugf("connecting to %s failed: %s", c.target, err.Error())
	c.teardown(sess)
	if fn := c.opts.Handlers.OnFailedConnection; fn != nil {
		fn(c, err)
	}
	return err
}

// giveUp settles the connection attempt of the specified session with the
// specified error, unless the opening handshake already completed.
func (c *Client) giveUp(s *session, err error) {
	c.m.Lock()
	defer c.m.Unlock()
	s.settle(err)
}

// handshakeCompleted opens the connection of the specified session after a
// successful opening handshake. It returns false if the connection attempt
// has already been given up.
func (c *Client) handshakeCompleted(s *session, protocol string) bool {
	c.m.Lock()
	defer c.m.Unlock()
	if !s.connecting() || c.sess != s {
		return false
	}
	if err := c.state.transition(Open); err != nil {
		log.Errorf("cannot open connection to %s: %s", c.target, err.Error())
		return false
	}
	c.authenticated = true
	c.protocol = protocol
	s.settle(nil)
	return true
}

// Disconnect closes the current connection, if any: if the opening handshake
// had been completed it first sends a close frame, and then closes the
// transport. Disconnect is idempotent.
func (c *Client) Disconnect() {
	c.m.Lock()
	s := c.sess
	c.m.Unlock()
	if s == nil {
		log.Debugf("not connected to %s", c.target)
		return
	}
	c.teardown(s)
}

// teardown runs the disconnect sequence for the specified session exactly
// once, regardless of how many parties try to tear it down.
func (c *Client) teardown(s *session) {
	s.teardown.Do(func() {
		c.m.Lock()
		s.settle(fmt.Errorf("connection to %s closed while connecting: %w",
			c.target, ErrNotConnected))
		if err := c.state.transition(Closing); err != nil {
			log.Errorf("disconnecting from %s: %s", c.target, err.Error())
		}
		authenticated := c.authenticated
		c.authenticated = false
		c.m.Unlock()

		log.Debugf("disconnecting from %s", c.target)
		close(s.done)
		if authenticated {
			if err := s.sendClose(); err != nil {
				log.Debugf("cannot send close frame to %s: %s", c.target, err.Error())
			}
		}
		if err := s.transport.Close(); err != nil {
			log.Debugf("closing transport to %s: %s", c.target, err.Error())
		}

		c.m.Lock()
		if err := c.state.transition(Closed); err != nil {
			log.Errorf("disconnecting from %s: %s", c.target, err.Error())
		}
		if c.sess == s {
			c.sess = nil
		}
		c.m.Unlock()
		log.Debugf("disconnected from %s", c.target)
		if s.opened.Load() {
			if fn := c.opts.Handlers.OnDisconnect; fn != nil {
				fn(c)
			}
		}
	})
}

// Send sends a binary message with the specified payload.
func (c *Client) Send(payload []byte) error {
	return c.send(websock.Message{Opcode: websock.OpBinary, Payload: payload})
}

// SendText sends a text message.
func (c *Client) SendText(text string) error {
	return c.send(websock.Message{Opcode: websock.OpText, Payload: []byte(text)})
}

func (c *Client) send(m websock.Message) error {
	c.m.Lock()
	s := c.sess
	authenticated := c.authenticated
	c.m.Unlock()
	if s == nil || !authenticated {
		return ErrNotConnected
	}
	b, err := websock.EncodeMessage(m)
	if err != nil {
		return err
	}
	if err := s.send(b); err != nil {
		return fmt.Errorf("cannot send %d octet message to %s: %w",
			len(m.Payload), c.target, err)
	}
	if fn := c.opts.Handlers.OnSend; fn != nil {
		fn(c, m)
	}
	return nil
}
