// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package websock

import (
	"github.com/gobwas/ws"
)

// Encode returns the wire representation of a single, unfragmented client
// frame with the specified opcode and payload. As required from clients, the
// frame is masked using a fresh random masking key. The caller's payload is
// left untouched.
func Encode(op Opcode, payload []byte) ([]byte, error) {
	p := make([]byte, len(payload))
	copy(p, payload)
	f := ws.MaskFrameInPlace(ws.NewFrame(op, true, p))
	return ws.CompileFrame(f)
}

// EncodeMessage returns the wire representation of the given data message.
func EncodeMessage(m Message) ([]byte, error) {
	return Encode(m.Opcode, m.Payload)
}

// Pong returns the wire representation of a pong frame answering a ping with
// the specified application data.
func Pong(pingPayload []byte) ([]byte, error) {
	return Encode(OpPong, pingPayload)
}
