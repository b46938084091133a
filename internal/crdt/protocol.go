package crdt

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// MessageType is the first byte of every frame exchanged over a
// collaboration WebSocket connection.
type MessageType byte

const (
	SyncStep1 MessageType = iota
	SyncStep2
	Update
	Awareness
	ErrorFrame
)

// ErrMalformedFrame is returned by DecodeFrame when the frame is too short
// to contain even a type byte, or its type byte is unrecognized.
var ErrMalformedFrame = errors.New("crdt: malformed frame")

// Frame is one decoded message: a type tag plus its opaque payload bytes.
// For SyncStep1 the payload is an encoded state vector; for SyncStep2 and
// Update it is an encoded update (see EncodeStateAsUpdate); for Awareness
// and ErrorFrame it is an opaque blob the CRDT layer never inspects.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// EncodeFrame serializes a frame as [type byte][payload]. Framing over the
// WebSocket connection itself (one frame per WS message) comes for free
// from gorilla/websocket's message boundaries, so no length prefix is
// needed on top.
func EncodeFrame(f Frame) []byte {
	out := make([]byte, 1+len(f.Payload))
	out[0] = byte(f.Type)
	copy(out[1:], f.Payload)
	return out
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < 1 {
		return Frame{}, ErrMalformedFrame
	}
	t := MessageType(raw[0])
	if t > ErrorFrame {
		return Frame{}, ErrMalformedFrame
	}
	payload := make([]byte, len(raw)-1)
	copy(payload, raw[1:])
	return Frame{Type: t, Payload: payload}, nil
}

// errorPayload is the opaque blob carried by an ErrorFrame: a short
// machine-readable code plus a human message, neither of which the
// client is required to parse.
func errorPayload(code, message string) []byte {
	var buf bytes.Buffer
	writeString(&buf, code)
	writeString(&buf, message)
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}
