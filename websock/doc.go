/*
Package websock implements the websocket framing the wsclient connection
controller relies on: it reassembles (possibly fragmented) server frames into
complete messages, and it encodes masked client frames, including a dedicated
close frame type. The heavy lifting of frame header encoding, decoding, and
masking is done by the gobwas/ws package.

The [Assembler] is fed with whatever chunks of bytes the transport delivers,
so frame boundaries never need to align with read boundaries. Before the
opening handshake has completed, the assembler simply accumulates raw bytes
without interpreting them as frames.
*/
package websock
