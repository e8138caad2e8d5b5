// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wstest

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
)

// Responder returns the raw server response (which might well be empty) to an
// opening handshake request.
type Responder func(req *http.Request) string

// ScriptedServer is a TCP server answering opening handshake requests with
// scripted raw responses, so that clients can be tested against broken or
// unusual servers. After sending its response, the server keeps the
// connection open and collects everything the client sends until the client
// closes the connection.
type ScriptedServer struct {
	ln      net.Listener
	respond Responder
	wg      sync.WaitGroup

	m        sync.Mutex
	conns    []net.Conn
	requests []*http.Request
	received [][]byte
}

// NewScriptedServer returns a new and already started scripted server on the
// loopback interface.
func NewScriptedServer(respond Responder) (*ScriptedServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	ss := &ScriptedServer{ln: ln, respond: respond}
	ss.wg.Add(1)
	go ss.serve()
	return ss, nil
}

// URI returns the “ws://” URI of this server for the specified path.
func (ss *ScriptedServer) URI(path string) string {
	return "ws://" + ss.ln.Addr().String() + "/" + strings.TrimPrefix(path, "/")
}

// Requests returns the handshake requests received so far.
func (ss *ScriptedServer) Requests() []*http.Request {
	ss.m.Lock()
	defer ss.m.Unlock()
	return append([]*http.Request(nil), ss.requests...)
}

// Received returns the bytes received after the handshake requests on those
// connections the clients have closed already.
func (ss *ScriptedServer) Received() [][]byte {
	ss.m.Lock()
	defer ss.m.Unlock()
	return append([][]byte(nil), ss.received...)
}

// Close stops the server and closes all connections still open.
func (ss *ScriptedServer) Close() {
	ss.ln.Close()
	ss.m.Lock()
	for _, conn := range ss.conns {
		conn.Close()
	}
	ss.m.Unlock()
	ss.wg.Wait()
}

func (ss *ScriptedServer) serve() {
	defer ss.wg.Done()
	for {
		conn, err := ss.ln.Accept()
		if err != nil {
			return
		}
		ss.m.Lock()
		ss.conns = append(ss.conns, conn)
		ss.m.Unlock()
		ss.wg.Add(1)
		go ss.handle(conn)
	}
}

func (ss *ScriptedServer) handle(conn net.Conn) {
	defer ss.wg.Done()
	defer conn.Close()
	br := bufio.NewReader(conn)
	req, err := http.ReadRequest(br)
	if err != nil {
		return
	}
	ss.m.Lock()
	ss.requests = append(ss.requests, req)
	ss.m.Unlock()
	if resp := ss.respond(req); resp != "" {
		if _, err := io.WriteString(conn, resp); err != nil {
			return
		}
	}
	rest, _ := io.ReadAll(br)
	ss.m.Lock()
	ss.received = append(ss.received, rest)
	ss.m.Unlock()
}

// AcceptKey returns the Sec-WebSocket-Accept value for the specified client
// key.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key + "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// SwitchingProtocols returns a raw 101 handshake response with the specified
// accept value and additional header fields.
func SwitchingProtocols(accept string, fields ...string) string {
	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Sec-WebSocket-Accept: %s\r\n", accept)
	for _, field := range fields {
		b.WriteString(field + "\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

// Accepting returns a Responder properly accepting opening handshakes,
// sending the specified additional header fields, and optionally some raw
// data directly following the handshake response.
func Accepting(trailer []byte, fields ...string) Responder {
	return func(req *http.Request) string {
		return SwitchingProtocols(AcceptKey(req.Header.Get("Sec-WebSocket-Key")), fields...) +
			string(trailer)
	}
}
