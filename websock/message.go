// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package websock

import (
	"errors"

	"github.com/gobwas/ws"
)

// Opcode is a websocket frame opcode, see RFC6455 section 5.2.
type Opcode = ws.OpCode

// Opcodes that websocket clients get to see.
const (
	OpContinuation = ws.OpContinuation
	OpText         = ws.OpText
	OpBinary       = ws.OpBinary
	OpClose        = ws.OpClose
	OpPing         = ws.OpPing
	OpPong         = ws.OpPong
)

var (
	// ErrProtocol signals that the server violated the websocket framing
	// rules, such as sending reserved opcodes, fragmented control frames, or
	// continuation frames out of the blue.
	ErrProtocol = errors.New("websocket protocol violation")
	// ErrMessageTooLarge signals that a (reassembled) message exceeds the
	// configured read limit.
	ErrMessageTooLarge = errors.New("websocket message too large")
)

// Message is a complete websocket message as received from (or sent to) the
// server. For control messages, such as close and ping, Opcode is the control
// frame's opcode and Payload its (at most 125 octets) application data.
type Message struct {
	Opcode  Opcode
	Payload []byte
}

// Text returns the message payload as a string.
func (m Message) Text() string {
	return string(m.Payload)
}

// IsControl returns true for close, ping, and pong messages.
func (m Message) IsControl() bool {
	return m.Opcode.IsControl()
}

// CloseStatus returns the status code and reason carried in a close message.
// If the close message has no body, the code is zero and the reason empty.
func (m Message) CloseStatus() (ws.StatusCode, string) {
	if m.Opcode != OpClose || len(m.Payload) < 2 {
		return 0, ""
	}
	return ws.ParseCloseFrameData(m.Payload)
}
