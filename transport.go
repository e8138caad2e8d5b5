// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wsclient

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Transport is a byte stream connection to a websocket server. A Client uses
// a fresh Transport for each connection attempt. Send may be called
// concurrently with Receive, but the Client never issues concurrent Receive
// calls nor concurrent Send calls.
type Transport interface {
	// Open connects to the target, blocking until either connected, failed,
	// or the context got cancelled.
	Open(ctx context.Context, t Target) error
	// Send writes all bytes in p.
	Send(p []byte) error
	// Receive reads at most len(buf) bytes into buf, blocking until at least
	// one byte is available. At the end of the stream it returns 0 and
	// possibly an error.
	Receive(buf []byte) (int, error)
	// Close closes the transport, unblocking any pending Receive. Close is
	// idempotent.
	Close() error
	// Connected returns true while the transport is open.
	Connected() bool
}

// tcpTransport is the default transport, using TCP for “ws” targets and TLS
// on top of TCP for “wss” targets.
type tcpTransport struct {
	tlsConfig *tls.Config
	m         sync.Mutex
	conn      net.Conn
	closed    bool
}

var _ Transport = (*tcpTransport)(nil)

// NewTCPTransport returns a new TCP (and TLS) transport. The optional TLS
// configuration is used only for “wss” targets; if nil, a default
// configuration verifying the server certificate against the target host is
// used.
func NewTCPTransport(tlsConfig *tls.Config) Transport {
	return &tcpTransport{tlsConfig: tlsConfig}
}

func (t *tcpTransport) Open(ctx context.Context, target Target) error {
	var conn net.Conn
	var err error
	if target.Secure() {
		cfg := t.tlsConfig
		if cfg == nil {
			cfg = &tls.Config{}
		}
		if cfg.ServerName == "" {
			cfg = cfg.Clone()
			cfg.ServerName = target.Host
		}
		d := &tls.Dialer{Config: cfg}
		conn, err = d.DialContext(ctx, "tcp", target.Addr())
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", target.Addr())
	}
	if err != nil {
		return err
	}
	t.m.Lock()
	defer t.m.Unlock()
	if t.closed {
		// We got closed while still dialing...
		conn.Close()
		return net.ErrClosed
	}
	t.conn = conn
	log.Debugf("transport connected to %s from %s", conn.RemoteAddr(), conn.LocalAddr())
	return nil
}

func (t *tcpTransport) netConn() net.Conn {
	t.m.Lock()
	defer t.m.Unlock()
	return t.conn
}

func (t *tcpTransport) Send(p []byte) error {
	conn := t.netConn()
	if conn == nil {
		return net.ErrClosed
	}
	_, err := conn.Write(p)
	return err
}

func (t *tcpTransport) Receive(buf []byte) (int, error) {
	conn := t.netConn()
	if conn == nil {
		return 0, net.ErrClosed
	}
	return conn.Read(buf)
}

func (t *tcpTransport) Close() error {
	t.m.Lock()
	defer t.m.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (t *tcpTransport) Connected() bool {
	t.m.Lock()
	defer t.m.Unlock()
	return t.conn != nil && !t.closed
}
