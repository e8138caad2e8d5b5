// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wsclient

import "time"

const (
	// DefaultConnectTimeout specifies the time limit for establishing the
	// transport connection and completing the opening handshake.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultReceiveBufferSize is the size of the buffer each individual
	// transport read goes into.
	DefaultReceiveBufferSize = 512

	// DefaultProtocolVersion is the Sec-WebSocket-Version sent in the opening
	// handshake request.
	DefaultProtocolVersion = "8"

	// DefaultReadLimit limits the size of (reassembled) messages received.
	DefaultReadLimit = 16 << 20

	// maxHandshakeResponseSize limits the size of the server's handshake
	// response header block.
	maxHandshakeResponseSize = 8 << 10
)
