// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// This statically typed data model describes the outcome of probing websocket
// servers, as rendered by the “wsclient probe” command in its various output
// formats.

package api

// Probes is a list of probe results. We use a list of references, so we don't
// need to copy things around all the time.
type Probes []*Probe

// Probe describes the outcome of connecting to a single websocket server and
// running the opening handshake.
type Probe struct {
	// The websocket target URI in “ws[s]://host:port/path” form.
	URI string `json:"uri"`
	// The ready state reached: “open” when the opening handshake succeeded,
	// otherwise “closed”.
	State string `json:"state"`
	// The subprotocol agreed on with the server, if any.
	Protocol string `json:"protocol,omitempty"`
	// True if the server passed the opening handshake validation.
	Authenticated bool `json:"authenticated"`
	// Time taken to connect and to complete the opening handshake, in Go
	// duration notation.
	Latency string `json:"latency"`
	// The reason why probing failed, if it failed.
	Error string `json:"error,omitempty"`
}
