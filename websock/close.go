// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package websock

import (
	"github.com/gobwas/ws"
)

// CloseFrame is a websocket close control frame. The zero value is a close
// frame without any status code and reason, so it encodes with a zero-length
// payload.
type CloseFrame struct {
	// Optional status code; zero means "no status", in which case Reason is
	// ignored.
	Code ws.StatusCode
	// Optional close reason; it must fit into a control frame together with
	// the status code.
	Reason string
}

// Opcode always returns the close opcode.
func (CloseFrame) Opcode() Opcode {
	return OpClose
}

// Payload returns the close frame's application data: either empty, or the
// status code followed by the UTF-8 reason.
func (cf CloseFrame) Payload() []byte {
	if cf.Code == 0 {
		return nil
	}
	reason := cf.Reason
	if len(reason) > maxControlPayload-2 {
		reason = reason[:maxControlPayload-2]
	}
	return ws.NewCloseFrameBody(cf.Code, reason)
}

// Bytes returns the masked wire representation of this close frame. For the
// zero close frame, the first octet is 0x88 (FIN plus close opcode), followed
// by the mask flag with a zero payload length and the masking key.
func (cf CloseFrame) Bytes() ([]byte, error) {
	return Encode(cf.Opcode(), cf.Payload())
}
