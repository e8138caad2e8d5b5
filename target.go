// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wsclient

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

// Scheme is a websocket URI scheme.
type Scheme string

const (
	// WS is the literal string, "ws".
	WS Scheme = "ws"
	// WSS is the literal string, "wss", for websockets over TLS.
	WSS Scheme = "wss"
)

// targetURI matches websocket URIs of the form “ws[s]://host:port/path”,
// where host may also be a bracketed IPv6 address.
var targetURI = regexp.MustCompile(`^(wss?)://(\[[0-9A-Fa-f:.]+\]|[^:/\[\]]+):([0-9]+)/(.*)$`)

// Target describes the websocket endpoint a Client connects to. It is
// immutable after parsing.
type Target struct {
	Scheme Scheme
	Host   string
	Port   int
	// Path without the leading slash.
	Path string
}

// ParseTarget parses a websocket URI of the form “ws://host:port/path” or
// “wss://host:port/path”. Note that the port number is mandatory and that the
// path may be empty, but the slash after the port is not optional.
func ParseTarget(uri string) (Target, error) {
	m := targetURI.FindStringSubmatch(uri)
	if m == nil {
		return Target{}, fmt.Errorf("%w: %q", ErrMalformedURI, uri)
	}
	port, err := strconv.Atoi(m[3])
	if err != nil || port < 1 || port > 65535 {
		return Target{}, fmt.Errorf("%w %q in %q", ErrInvalidPort, m[3], uri)
	}
	host := m[2]
	if host[0] == '[' {
		host = host[1 : len(host)-1]
	}
	return Target{
		Scheme: Scheme(m[1]),
		Host:   host,
		Port:   port,
		Path:   m[4],
	}, nil
}

// Addr returns the “host:port” transport address of this target.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// RequestURI returns the path (with leading slash) to use in the opening
// handshake request.
func (t Target) RequestURI() string {
	return "/" + t.Path
}

// Secure returns true if the target requires TLS.
func (t Target) Secure() bool {
	return t.Scheme == WSS
}

// String returns the target in URI form.
func (t Target) String() string {
	return string(t.Scheme) + "://" + t.Addr() + t.RequestURI()
}
