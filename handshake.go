// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Implements the client side of the websocket opening handshake: building the
// upgrade request and validating the server's upgrade response, including
// subprotocol negotiation.

package wsclient

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gobwas/httphead"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// keyGUID is the magic GUID from RFC6455 section 1.3 that gets appended to the
// client's key when deriving the server's accept value.
const keyGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// headerTerminator separates the handshake response header block from any
// websocket frames following it.
var headerTerminator = []byte("\r\n\r\n")

// handshake is the context of a single opening handshake attempt. It is
// created fresh for each connection attempt.
type handshake struct {
	target       Target
	version      string
	origin       string
	key          string
	subprotocols []string
	header       map[string]string
}

// newHandshake returns a new handshake context for the specified target and
// client options, with a freshly generated key.
func newHandshake(t Target, opts *Options) (*handshake, error) {
	for k, v := range opts.Header {
		if k == "" || strings.ContainsAny(k, "\r\n: ") || strings.ContainsAny(v, "\r\n") {
			return nil, fmt.Errorf("invalid handshake header field %q", k)
		}
	}
	key, err := makeKey()
	if err != nil {
		return nil, err
	}
	return &handshake{
		target:       t,
		version:      opts.ProtocolVersion,
		origin:       opts.Origin,
		key:          key,
		subprotocols: opts.SubProtocols,
		header:       opts.Header,
	}, nil
}

// makeKey returns a new Sec-WebSocket-Key value: 16 random bytes, base64
// encoded.
func makeKey() (string, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("cannot generate handshake key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// acceptKey returns the Sec-WebSocket-Accept value a server must return for
// the specified client key.
func acceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(keyGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// request returns the serialized opening handshake request.
func (hs *handshake) request() []byte {
	var b strings.Builder
	b.WriteString("GET " + hs.target.RequestURI() + " HTTP/1.1\r\n")
	b.WriteString("Host: " + hs.target.Addr() + "\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Key: " + hs.key + "\r\n")
	b.WriteString("Sec-WebSocket-Version: " + hs.version + "\r\n")
	if hs.origin != "" {
		// Drafts up to and including version 8 used a different origin header
		// field than the final RFC6455.
		if v, err := strconv.Atoi(hs.version); err == nil && v < 13 {
			b.WriteString("Sec-WebSocket-Origin: " + hs.origin + "\r\n")
		} else {
			b.WriteString("Origin: " + hs.origin + "\r\n")
		}
	}
	if len(hs.subprotocols) > 0 {
		b.WriteString("Sec-WebSocket-Protocol: " + strings.Join(hs.subprotocols, ", ") + "\r\n")
	}
	keys := make([]string, 0, len(hs.header))
	for k := range hs.header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k + ": " + hs.header[k] + "\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// responseEnd returns the length of the complete handshake response header
// block in raw, including the terminating empty line, or -1 if raw doesn't
// contain the complete header block yet.
func responseEnd(raw []byte) int {
	idx := bytes.Index(raw, headerTerminator)
	if idx < 0 {
		return -1
	}
	return idx + len(headerTerminator)
}

// handshakeResponse contains the parts of the server's handshake response we
// are interested in.
type handshakeResponse struct {
	status     int
	upgrade    bool // Upgrade header field contains "websocket"
	connection bool // Connection header field contains "upgrade"
	accept     string
	// Subprotocols offered by the server in order of appearance; nil if the
	// server didn't send any Sec-WebSocket-Protocol header field.
	protocols []string
}

// parseHandshakeResponse parses the header block of a handshake response.
func parseHandshakeResponse(raw []byte) (*handshakeResponse, error) {
	lines := bytes.Split(bytes.TrimSuffix(raw, headerTerminator), []byte("\r\n"))
	status, ok := httphead.ParseResponseLine(lines[0])
	if !ok {
		return nil, fmt.Errorf("%w: malformed status line %q", ErrHandshake, lines[0])
	}
	resp := &handshakeResponse{status: status.Status}
	for _, line := range lines[1:] {
		k, v, ok := httphead.ParseHeaderLine(line)
		if !ok {
			return nil, fmt.Errorf("%w: malformed header line %q", ErrHandshake, line)
		}
		switch {
		case bytes.EqualFold(k, []byte("Upgrade")):
			resp.upgrade = resp.upgrade || containsToken(v, "websocket")
		case bytes.EqualFold(k, []byte("Connection")):
			resp.connection = resp.connection || containsToken(v, "upgrade")
		case bytes.EqualFold(k, []byte("Sec-WebSocket-Accept")):
			resp.accept = string(bytes.TrimSpace(v))
		case bytes.EqualFold(k, []byte("Sec-WebSocket-Protocol")):
			if resp.protocols == nil {
				resp.protocols = []string{}
			}
			httphead.ScanTokens(v, func(token []byte) bool {
				resp.protocols = append(resp.protocols, string(token))
				return true
			})
		}
	}
	return resp, nil
}

// containsToken returns true if the comma-separated list of tokens in v
// contains the specified token, ignoring case.
func containsToken(v []byte, token string) (found bool) {
	httphead.ScanTokens(v, func(t []byte) bool {
		found = bytes.EqualFold(t, []byte(token))
		return !found
	})
	return
}

// selectSubprotocol returns the first of the requested subprotocols that is
// also offered, or "" if there is no such subprotocol.
func selectSubprotocol(requested, offered []string) string {
	for _, proto := range requested {
		if slices.Contains(offered, proto) {
			return proto
		}
	}
	return ""
}

// validate checks the server's handshake response header block against this
// handshake context, returning the negotiated subprotocol, if any.
func (hs *handshake) validate(raw []byte) (protocol string, err error) {
	resp, err := parseHandshakeResponse(raw)
	if err != nil {
		return "", err
	}
	if resp.status != 101 {
		return "", fmt.Errorf("%w: expected status 101, got %d", ErrHandshake, resp.status)
	}
	if !resp.upgrade || !resp.connection {
		return "", fmt.Errorf("%w: missing Upgrade/Connection header fields", ErrHandshake)
	}
	if expected := acceptKey(hs.key); resp.accept != expected {
		return "", fmt.Errorf("%w: invalid Sec-WebSocket-Accept %q for key %q",
			ErrHandshake, resp.accept, hs.key)
	}
	if len(hs.subprotocols) == 0 {
		if len(resp.protocols) != 0 {
			log.Debugf("ignoring unrequested subprotocols %q", resp.protocols)
		}
		return "", nil
	}
	if resp.protocols == nil {
		return "", fmt.Errorf("%w: server didn't agree to any of the subprotocols %q",
			ErrHandshake, hs.subprotocols)
	}
	protocol = selectSubprotocol(hs.subprotocols, resp.protocols)
	if protocol == "" {
		return "", fmt.Errorf("%w: server subprotocols %q don't match requested %q",
			ErrHandshake, resp.protocols, hs.subprotocols)
	}
	return protocol, nil
}
