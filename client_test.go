// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wsclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/siemens/wsclient/websock"
	"github.com/siemens/wsclient/wstest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// stuckTransport never manages to open until its context gets cancelled.
type stuckTransport struct {
	closed atomic.Int32
}

func (t *stuckTransport) Open(ctx context.Context, _ Target) error {
	<-ctx.Done()
	return ctx.Err()
}

func (t *stuckTransport) Send([]byte) error            { return net.ErrClosed }
func (t *stuckTransport) Receive([]byte) (int, error) { return 0, io.EOF }
func (t *stuckTransport) Close() error                 { t.closed.Add(1); return nil }
func (t *stuckTransport) Connected() bool              { return false }

// recorder records the notifications of a client.
type recorder struct {
	m           sync.Mutex
	connects    int
	connecteds  int
	disconnects int
	failures    []error
	sent        []websock.Message
	received    []websock.Message
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnConnect:    func(*Client) { r.m.Lock(); r.connects++; r.m.Unlock() },
		OnConnected:  func(*Client) { r.m.Lock(); r.connecteds++; r.m.Unlock() },
		OnDisconnect: func(*Client) { r.m.Lock(); r.disconnects++; r.m.Unlock() },
		OnSend: func(_ *Client, m websock.Message) {
			r.m.Lock()
			r.sent = append(r.sent, m)
			r.m.Unlock()
		},
		OnReceive: func(_ *Client, m websock.Message) {
			r.m.Lock()
			r.received = append(r.received, m)
			r.m.Unlock()
		},
		OnFailedConnection: func(_ *Client, err error) {
			r.m.Lock()
			r.failures = append(r.failures, err)
			r.m.Unlock()
		},
	}
}

func (r *recorder) Connects() int    { r.m.Lock(); defer r.m.Unlock(); return r.connects }
func (r *recorder) Connecteds() int  { r.m.Lock(); defer r.m.Unlock(); return r.connecteds }
func (r *recorder) Disconnects() int { r.m.Lock(); defer r.m.Unlock(); return r.disconnects }

func (r *recorder) Failures() []error {
	r.m.Lock()
	defer r.m.Unlock()
	return append([]error(nil), r.failures...)
}

func (r *recorder) Sent() []websock.Message {
	r.m.Lock()
	defer r.m.Unlock()
	return append([]websock.Message(nil), r.sent...)
}

func (r *recorder) Received() []string {
	r.m.Lock()
	defer r.m.Unlock()
	texts := []string{}
	for _, m := range r.received {
		texts = append(texts, m.Text())
	}
	return texts
}

var _ = Describe("websocket client", func() {

	var rec *recorder

	BeforeEach(func() {
		rec = &recorder{}
	})

	It("rejects malformed target URIs", func() {
		_, err := New("http://localhost:80/", nil)
		Expect(err).To(MatchError(ErrMalformedURI))
		_, err = New("ws://localhost:0/", nil)
		Expect(err).To(MatchError(ErrInvalidPort))
	})

	It("is closed before ever connecting", func() {
		c, err := New("ws://localhost:1234/", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.State()).To(Equal(Closed))
		Expect(c.IsAuthenticated()).To(BeFalse())
		Expect(c.Connected()).To(BeFalse())
		Expect(c.Send([]byte("foo"))).To(MatchError(ErrNotConnected))
		Expect(c.SendText("foo")).To(MatchError(ErrNotConnected))
		c.Disconnect()
		Expect(c.State()).To(Equal(Closed))
	})

	It("times out connecting", func() {
		t := &stuckTransport{}
		c, err := New("ws://localhost:1234/", &Options{
			ConnectTimeout: 50 * time.Millisecond,
			Handlers:       rec.handlers(),
			Transport:      func() Transport { return t },
		})
		Expect(err).NotTo(HaveOccurred())
		start := time.Now()
		Expect(c.Connect(context.Background())).To(MatchError(ErrConnectTimeout))
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
		Expect(c.State()).To(Equal(Closed))
		Expect(t.closed.Load()).To(BeNumerically(">=", 1))
		Consistently(rec.Failures, "200ms").Should(HaveLen(1))
		Expect(rec.Failures()[0]).To(MatchError(ErrConnectTimeout))
		Expect(rec.Connects()).To(BeZero())
		Expect(rec.Disconnects()).To(BeZero())
	})

	It("aborts connecting when the context gets cancelled", func() {
		c, err := New("ws://localhost:1234/", &Options{
			Handlers:  rec.handlers(),
			Transport: func() Transport { return &stuckTransport{} },
		})
		Expect(err).NotTo(HaveOccurred())
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)
		Expect(c.Connect(ctx)).To(MatchError(context.Canceled))
		Expect(c.State()).To(Equal(Closed))
		Expect(rec.Failures()).To(HaveLen(1))
	})

	It("reports transport failures", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := ln.Addr().String()
		ln.Close()

		c, err := New("ws://"+addr+"/", &Options{Handlers: rec.handlers()})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Connect(context.Background())).To(MatchError(ErrTransportOpen))
		Expect(c.State()).To(Equal(Closed))
		Expect(rec.Failures()).To(HaveLen(1))
	})

	Context("with a scripted server", func() {

		var ss *wstest.ScriptedServer

		start := func(respond wstest.Responder) {
			var err error
			ss, err = wstest.NewScriptedServer(respond)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(ss.Close)
		}

		It("sends a proper handshake request", func() {
			start(wstest.Accepting(nil, "Sec-WebSocket-Protocol: a"))
			c, err := New(ss.URI("chat"), &Options{
				Origin:       "http://localhost",
				SubProtocols: []string{"a", "b"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(Succeed())
			defer c.Disconnect()
			Expect(ss.Requests()).To(HaveLen(1))
			req := ss.Requests()[0]
			Expect(req.RequestURI).To(Equal("/chat"))
			Expect(req.Host).To(Equal(c.Target().Addr()))
			Expect(req.Header.Get("Sec-WebSocket-Version")).To(Equal("8"))
			Expect(req.Header.Get("Sec-WebSocket-Origin")).To(Equal("http://localhost"))
			Expect(req.Header.Get("Sec-WebSocket-Protocol")).To(Equal("a, b"))
		})

		It("negotiates the first subprotocol in client order", func() {
			start(wstest.Accepting(nil, "Sec-WebSocket-Protocol: b, a"))
			c, err := New(ss.URI(""), &Options{
				SubProtocols: []string{"a", "b"},
				Handlers:     rec.handlers(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(Succeed())
			defer c.Disconnect()
			Expect(c.State()).To(Equal(Open))
			Expect(c.IsAuthenticated()).To(BeTrue())
			Expect(c.Protocol()).To(Equal("a"))
			Expect(rec.Connects()).To(Equal(1))
			Eventually(rec.Connecteds).Should(Equal(1))
		})

		It("fails when the server doesn't agree to a subprotocol", func() {
			start(wstest.Accepting(nil))
			c, err := New(ss.URI(""), &Options{
				SubProtocols: []string{"x"},
				Handlers:     rec.handlers(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(MatchError(ErrHandshake))
			Expect(c.State()).To(Equal(Closed))
			Expect(c.IsAuthenticated()).To(BeFalse())
			Expect(rec.Connecteds()).To(BeZero())
			Consistently(rec.Failures, "100ms").Should(HaveLen(1))
		})

		It("fails on a wrong accept value", func() {
			start(func(*http.Request) string {
				return wstest.SwitchingProtocols(wstest.AcceptKey("not-the-key"))
			})
			c, err := New(ss.URI(""), &Options{Handlers: rec.handlers()})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(MatchError(ErrHandshake))
			Expect(c.State()).To(Equal(Closed))
			Expect(c.IsAuthenticated()).To(BeFalse())
			Expect(rec.Failures()).To(HaveLen(1))
			Eventually(rec.Disconnects).Should(Equal(1))
			Eventually(ss.Received).Should(ConsistOf(BeEmpty()))
		})

		It("times out on a silent server", func() {
			start(func(*http.Request) string { return "" })
			c, err := New(ss.URI(""), &Options{
				ConnectTimeout: 100 * time.Millisecond,
				Handlers:       rec.handlers(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(MatchError(ErrConnectTimeout))
			Expect(c.State()).To(Equal(Closed))
			Expect(rec.Connects()).To(Equal(1))
			Expect(rec.Disconnects()).To(Equal(1))
			Consistently(rec.Failures, "200ms").Should(HaveLen(1))
		})

		It("fails on an oversized handshake response", func() {
			start(func(*http.Request) string {
				return "HTTP/1.1 101 Switching Protocols\r\nX-Junk: " +
					string(make([]byte, maxHandshakeResponseSize)) + "\r\n"
			})
			c, err := New(ss.URI(""), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(MatchError(ErrHandshake))
			Expect(c.State()).To(Equal(Closed))
		})

		It("receives frames following the handshake response", func() {
			frame, err := ws.CompileFrame(ws.NewTextFrame([]byte("early bird")))
			Expect(err).NotTo(HaveOccurred())
			start(wstest.Accepting(frame))
			c, err := New(ss.URI(""), &Options{Handlers: rec.handlers()})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(Succeed())
			defer c.Disconnect()
			Eventually(rec.Received).Should(ConsistOf("early bird"))
		})

		It("sends an empty close frame when disconnecting", func() {
			start(wstest.Accepting(nil))
			c, err := New(ss.URI(""), &Options{Handlers: rec.handlers()})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(Succeed())
			c.Disconnect()
			Expect(c.State()).To(Equal(Closed))
			Eventually(ss.Received).Should(HaveLen(1))
			b := ss.Received()[0]
			Expect(b).To(HaveLen(6))
			Expect(b[0]).To(Equal(byte(0x88)))
			Expect(b[1]).To(Equal(byte(0x80)))
		})

		It("tears down exactly once when the server goes away", func() {
			start(wstest.Accepting(nil))
			c, err := New(ss.URI(""), &Options{Handlers: rec.handlers()})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(Succeed())
			ss.Close()
			Eventually(c.State).Should(Equal(Closed))
			c.Disconnect()
			Consistently(rec.Disconnects, "100ms").Should(Equal(1))
			Expect(rec.Failures()).To(BeEmpty())
		})

		It("tears down exactly once after sending an empty message", func() {
			start(wstest.Accepting(nil))
			c, err := New(ss.URI(""), &Options{Handlers: rec.handlers()})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(Succeed())
			Expect(c.Send(nil)).To(Succeed())
			ss.Close()
			Eventually(c.State).Should(Equal(Closed))
			Consistently(rec.Disconnects, "200ms").Should(Equal(1))
			Expect(rec.Failures()).To(BeEmpty())
		})

		It("waits for a connection attempt in progress", func() {
			release := make(chan struct{})
			accept := wstest.Accepting(nil)
			start(func(req *http.Request) string {
				<-release
				return accept(req)
			})
			c, err := New(ss.URI(""), &Options{Handlers: rec.handlers()})
			Expect(err).NotTo(HaveOccurred())
			defer c.Disconnect()

			first := make(chan error, 1)
			go func() { first <- c.Connect(context.Background()) }()
			Eventually(ss.Requests).Should(HaveLen(1))
			Expect(c.State()).To(Equal(Connecting))

			time.AfterFunc(100*time.Millisecond, func() { close(release) })
			Expect(c.Connect(context.Background())).To(Succeed())
			Expect(c.State()).To(Equal(Open))
			Eventually(first).Should(Receive(BeNil()))
			Expect(ss.Requests()).To(HaveLen(1))
		})

		It("stops waiting for a connection attempt in progress when cancelled", func() {
			release := make(chan struct{})
			start(func(*http.Request) string {
				<-release
				return ""
			})
			DeferCleanup(func() { close(release) })
			c, err := New(ss.URI(""), &Options{Handlers: rec.handlers()})
			Expect(err).NotTo(HaveOccurred())
			defer c.Disconnect()

			go func() { _ = c.Connect(context.Background()) }()
			Eventually(ss.Requests).Should(HaveLen(1))

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			Expect(c.Connect(ctx)).To(MatchError(context.DeadlineExceeded))
			Expect(c.State()).To(Equal(Connecting))
		})

	})

	Context("with an echo server", func() {

		var es *wstest.EchoServer

		BeforeEach(func() {
			es = wstest.NewEchoServer("chat")
			DeferCleanup(es.Close)
		})

		newClient := func() *Client {
			c, err := New(es.URI("echo"), &Options{
				ProtocolVersion: "13",
				SubProtocols:    []string{"chat"},
				Handlers:        rec.handlers(),
			})
			Expect(err).NotTo(HaveOccurred())
			return c
		}

		It("connects only once", func() {
			transports := 0
			c, err := New(es.URI("echo"), &Options{
				ProtocolVersion: "13",
				Transport: func() Transport {
					transports++
					return NewTCPTransport(nil)
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(Succeed())
			Expect(c.Connect(context.Background())).To(Succeed())
			defer c.Disconnect()
			Expect(transports).To(Equal(1))
			Expect(c.Connected()).To(BeTrue())
		})

		It("echoes messages", func() {
			c := newClient()
			Expect(c.Connect(context.Background())).To(Succeed())
			defer c.Disconnect()
			Expect(c.Protocol()).To(Equal("chat"))
			Expect(c.SendText("Hellorld!")).To(Succeed())
			Expect(c.Send([]byte("binary"))).To(Succeed())
			Eventually(rec.Received).Should(Equal([]string{"Hellorld!", "binary"}))
			Expect(rec.Sent()).To(HaveLen(2))
			Expect(rec.Sent()[0].Opcode).To(Equal(websock.OpText))
			Expect(rec.Sent()[1].Opcode).To(Equal(websock.OpBinary))
		})

		It("echoes messages larger than the receive buffer", func() {
			c := newClient()
			Expect(c.Connect(context.Background())).To(Succeed())
			defer c.Disconnect()
			large := make([]byte, 10*DefaultReceiveBufferSize)
			for idx := range large {
				large[idx] = 'A' + byte(idx%26)
			}
			Expect(c.SendText(string(large))).To(Succeed())
			Eventually(rec.Received).Should(Equal([]string{string(large)}))
		})

		It("answers pings", func() {
			c := newClient()
			Expect(c.Connect(context.Background())).To(Succeed())
			defer c.Disconnect()
			Expect(c.SendText("ping:xyz")).To(Succeed())
			Eventually(es.Pongs).Should(ContainElement("xyz"))
		})

		It("disconnects idempotently", func() {
			c := newClient()
			Expect(c.Connect(context.Background())).To(Succeed())
			c.Disconnect()
			c.Disconnect()
			Expect(c.State()).To(Equal(Closed))
			Expect(c.IsAuthenticated()).To(BeFalse())
			Expect(c.Connected()).To(BeFalse())
			Expect(c.SendText("too late")).To(MatchError(ErrNotConnected))
			Consistently(rec.Disconnects, "100ms").Should(Equal(1))
			Eventually(es.Closes).Should(Equal(1))
		})

		It("ends the connection when the server closes", func() {
			c := newClient()
			Expect(c.Connect(context.Background())).To(Succeed())
			Expect(c.SendText("bye")).To(Succeed())
			Eventually(c.State).Should(Equal(Closed))
			Consistently(rec.Disconnects, "100ms").Should(Equal(1))
		})

		It("reconnects after disconnecting", func() {
			c := newClient()
			Expect(c.Connect(context.Background())).To(Succeed())
			c.Disconnect()
			Expect(c.Connect(context.Background())).To(Succeed())
			defer c.Disconnect()
			Expect(c.State()).To(Equal(Open))
			Expect(c.SendText("again")).To(Succeed())
			Eventually(rec.Received).Should(Equal([]string{"again"}))
			Expect(rec.Connecteds()).To(Equal(2))
		})

		It("can disconnect from within a handler", func() {
			var c *Client
			var err error
			c, err = New(es.URI("echo"), &Options{
				ProtocolVersion: "13",
				Handlers: Handlers{
					OnReceive: func(c *Client, _ websock.Message) { c.Disconnect() },
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Connect(context.Background())).To(Succeed())
			Expect(c.SendText("foo")).To(Succeed())
			Eventually(c.State).Should(Equal(Closed))
		})

		It("rejects draft versions", func() {
			c, err := New(es.URI("echo"), &Options{Handlers: rec.handlers()})
			Expect(err).NotTo(HaveOccurred())
			err = c.Connect(context.Background())
			Expect(err).To(MatchError(ErrHandshake))
			Expect(errors.Is(err, ErrConnectTimeout)).To(BeFalse())
		})

	})

})
