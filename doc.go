/*
Package wsclient is a websocket client: it connects via TCP (or TLS for
“wss” targets), performs the RFC6455 opening handshake including optional
subprotocol negotiation, then receives messages in a background receive loop,
until either side tears down the connection with a close frame.

A Client is created for a single target URI of the form
“ws://host:port/path” or “wss://host:port/path”. Connect blocks until the
handshake has been completed, the connect timeout has passed, or the
transport failed to open. Applications learn about connection lifecycle
events and incoming messages through the notification functions in
Handlers.

	c, err := wsclient.New("ws://localhost:5001/echo", &wsclient.Options{
		SubProtocols: []string{"chat.v2", "chat"},
		Handlers: wsclient.Handlers{
			OnReceive: func(c *wsclient.Client, m websock.Message) {
				fmt.Println(m.Text())
			},
		},
	})
	if err != nil {
		...
	}
	if err := c.Connect(context.Background()); err != nil {
		...
	}
	defer c.Disconnect()
	c.SendText("Hellorld!")

The receive loop never issues a new transport read before the bytes of the
previous read have been completely processed: either validated as the
handshake response, or fed into the frame assembler and the resulting
messages dispatched.
*/
package wsclient
