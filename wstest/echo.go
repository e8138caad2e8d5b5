// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wstest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// EchoServer is a websocket server echoing all data messages it receives. Text
// messages of the form “ping:<payload>” instead cause the server to send a
// ping with the payload, and the text message “bye” causes the server to close
// the websocket with a normal closure status.
//
// Please note that the server only accepts the RFC6455 protocol version 13.
type EchoServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	m      sync.Mutex
	pongs  []string
	closes int
}

// NewEchoServer returns a new and already started echo server that offers the
// specified subprotocols, if any.
func NewEchoServer(subprotocols ...string) *EchoServer {
	es := &EchoServer{
		upgrader: websocket.Upgrader{
			Subprotocols: subprotocols,
			CheckOrigin:  func(*http.Request) bool { return true },
		},
	}
	es.Server = httptest.NewServer(http.HandlerFunc(es.serve))
	return es
}

// URI returns the “ws://” URI of the echo server for the specified path.
func (es *EchoServer) URI(path string) string {
	return strings.Replace(es.Server.URL, "http", "ws", 1) + "/" + strings.TrimPrefix(path, "/")
}

// Pongs returns the payloads of the pongs received so far.
func (es *EchoServer) Pongs() []string {
	es.m.Lock()
	defer es.m.Unlock()
	return append([]string(nil), es.pongs...)
}

// Closes returns the number of close frames received so far.
func (es *EchoServer) Closes() int {
	es.m.Lock()
	defer es.m.Unlock()
	return es.closes
}

func (es *EchoServer) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := es.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("echo server upgrade failed: %s", err.Error())
		return
	}
	defer conn.Close()
	conn.SetPongHandler(func(data string) error {
		es.m.Lock()
		es.pongs = append(es.pongs, data)
		es.m.Unlock()
		return nil
	})
	closer := conn.CloseHandler()
	conn.SetCloseHandler(func(code int, text string) error {
		es.m.Lock()
		es.closes++
		es.m.Unlock()
		return closer(code, text)
	})
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch {
		case typ == websocket.TextMessage && strings.HasPrefix(string(data), "ping:"):
			err = conn.WriteControl(websocket.PingMessage,
				data[len("ping:"):], time.Now().Add(time.Second))
		case typ == websocket.TextMessage && string(data) == "bye":
			err = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
		default:
			err = conn.WriteMessage(typ, data)
		}
		if err != nil {
			return
		}
	}
}
