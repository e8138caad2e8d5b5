// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Defines the options for websocket clients, as well as the notifications
// clients hand out during the lifecycle of a websocket connection.

package wsclient

import (
	"time"

	"github.com/siemens/wsclient/websock"
)

// Options allows some degree of control over how a Client connects to its
// websocket target. Zero values are replaced with their defaults, see
// defaults.go.
type Options struct {
	// ConnectTimeout limits the time allowed to open the transport and to
	// complete the opening handshake.
	ConnectTimeout time.Duration `yaml:"connect-timeout"`
	// Origin optionally specifies the origin to announce in the opening
	// handshake.
	Origin string `yaml:"origin"`
	// SubProtocols lists the subprotocols to request, in order of preference.
	// If non-empty, the server must agree to one of them.
	SubProtocols []string `yaml:"subprotocols"`
	// ProtocolVersion is the websocket protocol version to request; use "13"
	// for servers strictly implementing the final RFC6455 only.
	ProtocolVersion string `yaml:"protocol-version"`
	// ReceiveBufferSize is the size of the buffer used for individual
	// transport reads.
	ReceiveBufferSize int `yaml:"receive-buffer-size"`
	// ReadLimit limits the size of (reassembled) messages.
	ReadLimit int64 `yaml:"read-limit"`
	// Header specifies additional header fields to send in the opening
	// handshake request.
	Header map[string]string `yaml:"header"`
	// InsecureSkipVerify skips verifying server certificates for “wss”
	// targets. Only used with the default transport.
	InsecureSkipVerify bool `yaml:"insecure-skip-verify"`

	// Handlers receive notifications about connection events and messages.
	Handlers Handlers `yaml:"-"`
	// Transport optionally returns a fresh transport for each connection
	// attempt, replacing the default TCP/TLS transport.
	Transport func() Transport `yaml:"-"`
}

// withDefaults returns a copy of these options with all unset options
// replaced by their defaults.
func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReceiveBufferSize <= 0 {
		opts.ReceiveBufferSize = DefaultReceiveBufferSize
	}
	if opts.ProtocolVersion == "" {
		opts.ProtocolVersion = DefaultProtocolVersion
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	opts.SubProtocols = append([]string(nil), opts.SubProtocols...)
	return opts
}

// Handlers are notified about connection lifecycle events and messages.
// Handlers are called synchronously from the go routine noticing the event,
// so they should not block; unset handlers are simply skipped.
type Handlers struct {
	// OnConnect is called when the transport connection has been opened,
	// before the opening handshake.
	OnConnect func(c *Client)
	// OnConnected is called after the opening handshake has successfully been
	// completed, so the connection is now open.
	OnConnected func(c *Client)
	// OnDisconnect is called once after a connection has been torn down.
	OnDisconnect func(c *Client)
	// OnSend is called after a message has been sent.
	OnSend func(c *Client, m websock.Message)
	// OnReceive is called for each received data message.
	OnReceive func(c *Client, m websock.Message)
	// OnFailedConnection is called once when a connection attempt fails,
	// be it because of the transport, the opening handshake, or a timeout.
	OnFailedConnection func(c *Client, err error)
}

// DefaultOptions returns the default client options.
func DefaultOptions() Options {
	return (*Options)(nil).withDefaults()
}
