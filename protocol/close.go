package protocol

import "encoding/binary"

// NewTextFrame builds a final TEXT frame from a UTF-8 string.
func NewTextFrame(text string, masked bool) *Frame {
	return &Frame{Fin: true, Opcode: OpText, Masked: masked, Payload: []byte(text)}
}

// NewBinaryFrame builds a final BINARY frame.
func NewBinaryFrame(data []byte, masked bool) *Frame {
	return &Frame{Fin: true, Opcode: OpBinary, Masked: masked, Payload: data}
}

// NewPingFrame builds a final PING control frame.
func NewPingFrame(payload []byte, masked bool) *Frame {
	return &Frame{Fin: true, Opcode: OpPing, Masked: masked, Payload: payload}
}

// NewPongFrame builds a final PONG control frame, typically echoing a PING payload.
func NewPongFrame(payload []byte, masked bool) *Frame {
	return &Frame{Fin: true, Opcode: OpPong, Masked: masked, Payload: payload}
}

// NewCloseFrame builds a final CLOSE control frame carrying a 2-byte
// big-endian status code followed by a UTF-8 reason.
func NewCloseFrame(code int, reason string, masked bool) *Frame {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)
	return &Frame{Fin: true, Opcode: OpClose, Masked: masked, Payload: payload}
}

// ParseClose extracts the status code and reason from a CLOSE frame's
// payload. An empty or undersized payload yields the default code (1000,
// normal closure) and an empty reason, per RFC 6455 §7.1.5.
func ParseClose(payload []byte) (code int, reason string) {
	if len(payload) < 2 {
		return CloseNormal, ""
	}
	return int(binary.BigEndian.Uint16(payload[:2])), string(payload[2:])
}
