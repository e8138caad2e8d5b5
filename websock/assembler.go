// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package websock

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gobwas/ws"
	log "github.com/sirupsen/logrus"
)

// maxControlPayload is the maximum payload length of a control frame, see
// RFC6455 section 5.5.
const maxControlPayload = 125

// State tells whether an Assembler currently holds a complete message.
type State int

// Assembler states.
const (
	Partial State = iota
	Complete
)

func (s State) String() string {
	if s == Complete {
		return "complete"
	}
	return "partial"
}

// Assembler accumulates received bytes and reassembles them into complete
// websocket messages. It is not safe for concurrent use; the receive loop
// owns it exclusively.
type Assembler struct {
	// ReadLimit limits the payload size of (reassembled) messages; zero
	// means no limit.
	ReadLimit int64

	buf         bytes.Buffer // received bytes not yet consumed as frames.
	fragmenting bool         // are we in the middle of a fragmented message?
	fragOp      Opcode       // opcode of the first fragment.
	fragments   []byte       // payload collected so far.
	msg         Message      // the complete message, if state is Complete.
	state       State
}

// NewAssembler returns a new assembler with the specified read limit.
func NewAssembler(readLimit int64) *Assembler {
	return &Assembler{ReadLimit: readLimit}
}

// Append adds the bytes in p to the accumulator. In streaming mode the
// accumulated bytes are decoded as websocket frames until either a complete
// message is available or more bytes are needed. Outside streaming mode the
// bytes are just accumulated, see Bytes.
//
// The bytes in p are copied, so the caller is free to reuse its buffer.
func (a *Assembler) Append(p []byte, streaming bool) error {
	a.buf.Write(p)
	if !streaming {
		return nil
	}
	return a.decode()
}

// Bytes returns the accumulated bytes not yet consumed as frames. The
// returned slice is only valid until the next modification of the assembler.
func (a *Assembler) Bytes() []byte {
	return a.buf.Bytes()
}

// State returns Complete if a message is ready to be picked up using Message,
// otherwise Partial.
func (a *Assembler) State() State {
	return a.state
}

// Message returns the complete message. It returns a zero Message while the
// assembler is in Partial state.
func (a *Assembler) Message() Message {
	return a.msg
}

// Next drops the current complete message and continues decoding any
// further frames already accumulated.
func (a *Assembler) Next() error {
	a.msg = Message{}
	a.state = Partial
	return a.decode()
}

// Reset throws away everything accumulated so far: bytes, fragments, and
// any complete message.
func (a *Assembler) Reset() {
	a.buf.Reset()
	a.fragmenting = false
	a.fragOp = 0
	a.fragments = nil
	a.msg = Message{}
	a.state = Partial
}

// decode consumes frames from the accumulated bytes until a message is
// complete or the frame at the head isn't completely available yet.
func (a *Assembler) decode() error {
	for a.state != Complete {
		data := a.buf.Bytes()
		if len(data) == 0 {
			return nil
		}
		r := bytes.NewReader(data)
		h, err := ws.ReadHeader(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil // ...header not yet complete.
			}
			return fmt.Errorf("%w: %s", ErrProtocol, err.Error())
		}
		if a.ReadLimit > 0 && h.Length+int64(len(a.fragments)) > a.ReadLimit {
			return fmt.Errorf("%w: %d octets exceed limit of %d",
				ErrMessageTooLarge, h.Length+int64(len(a.fragments)), a.ReadLimit)
		}
		if h.Length > int64(r.Len()) {
			return nil // ...payload not yet complete.
		}
		headerLen := len(data) - r.Len()
		payload := make([]byte, h.Length)
		copy(payload, data[headerLen:])
		a.buf.Next(headerLen + int(h.Length))
		if h.Masked {
			// Servers must not mask, but we're lenient here.
			ws.Cipher(payload, h.Mask, 0)
		}
		if err := a.frame(h, payload); err != nil {
			return err
		}
	}
	return nil
}

// frame processes a single decoded frame.
func (a *Assembler) frame(h ws.Header, payload []byte) error {
	if h.Rsv != 0 {
		return fmt.Errorf("%w: reserved bits set without negotiated extension", ErrProtocol)
	}
	switch {
	case h.OpCode.IsControl():
		if !h.Fin || len(payload) > maxControlPayload {
			return fmt.Errorf("%w: invalid %s control frame", ErrProtocol, opName(h.OpCode))
		}
		a.complete(h.OpCode, payload)
	case h.OpCode == OpContinuation:
		if !a.fragmenting {
			return fmt.Errorf("%w: continuation frame without message start", ErrProtocol)
		}
		a.fragments = append(a.fragments, payload...)
		if h.Fin {
			a.complete(a.fragOp, a.fragments)
			a.fragmenting = false
			a.fragments = nil
		}
	case h.OpCode == OpText || h.OpCode == OpBinary:
		if a.fragmenting {
			return fmt.Errorf("%w: new message while previous message is still fragmented", ErrProtocol)
		}
		if h.Fin {
			a.complete(h.OpCode, payload)
			break
		}
		log.Debugf("start of fragmented %s message", opName(h.OpCode))
		a.fragmenting = true
		a.fragOp = h.OpCode
		a.fragments = payload
	default:
		return fmt.Errorf("%w: reserved opcode %#x", ErrProtocol, byte(h.OpCode))
	}
	return nil
}

func (a *Assembler) complete(op Opcode, payload []byte) {
	a.msg = Message{Opcode: op, Payload: payload}
	a.state = Complete
}

// opName returns a human-readable name for the given opcode, for use in log
// and error messages.
func opName(op Opcode) string {
	switch op {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	}
	return fmt.Sprintf("opcode-%#x", byte(op))
}
