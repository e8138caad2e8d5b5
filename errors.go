// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wsclient

import "errors"

var (
	// ErrMalformedURI is returned for target URIs not of the form
	// “ws[s]://host:port/path”.
	ErrMalformedURI = errors.New("malformed websocket URI")
	// ErrInvalidPort is returned for target URIs with a port number outside
	// the range 1-65535.
	ErrInvalidPort = errors.New("invalid port number")
	// ErrConnectTimeout is returned when the transport connection and
	// opening handshake could not be completed in time.
	ErrConnectTimeout = errors.New("connect timeout")
	// ErrTransportOpen is returned when the transport failed to connect.
	ErrTransportOpen = errors.New("transport open failed")
	// ErrHandshake is returned when the server's opening handshake response
	// is invalid, or the subprotocol negotiation failed.
	ErrHandshake = errors.New("websocket handshake failed")
	// ErrNotConnected is returned when sending while there is no open
	// websocket connection.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrIllegalTransition is returned for ready state changes not allowed by
	// the connection lifecycle.
	ErrIllegalTransition = errors.New("illegal ready state transition")
)
