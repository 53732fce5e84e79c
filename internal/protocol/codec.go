package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// HeaderSize is the fixed frame header length: type (2 bytes) plus
// payload length (4 bytes), both network byte order.
const HeaderSize = 6

// MaxPayloadSize bounds a frame payload. A header announcing more is
// treated as stream corruption and resynced past.
const MaxPayloadSize = 16 << 20

// Frame is one typed message unit.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// Encode serializes a frame: big-endian header followed by the payload.
func Encode(f Frame) []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(f.Type))
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(f.Payload)))
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// EncodeJSON marshals payload and wraps it in a frame of the given type.
func EncodeJSON(t MessageType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %#04x payload: %w", uint16(t), err)
	}
	return Encode(Frame{Type: t, Payload: data}), nil
}

// Decode parses as many complete frames as buf holds and returns them
// with the number of consumed bytes. A header with an unrecognized type
// code (or an oversized length) advances one byte and retries, so a
// corrupt frame cannot desynchronize the stream indefinitely.
func Decode(buf []byte) ([]Frame, int) {
	var frames []Frame
	consumed := 0
	for len(buf)-consumed >= HeaderSize {
		t := MessageType(binary.BigEndian.Uint16(buf[consumed : consumed+2]))
		length := binary.BigEndian.Uint32(buf[consumed+2 : consumed+6])
		if !t.Known() || length > MaxPayloadSize {
			consumed++
			continue
		}
		total := HeaderSize + int(length)
		if len(buf)-consumed < total {
			break
		}
		payload := make([]byte, length)
		copy(payload, buf[consumed+HeaderSize:consumed+total])
		frames = append(frames, Frame{Type: t, Payload: payload})
		consumed += total
	}
	return frames, consumed
}

// HasComplete reports whether buf holds at least one whole frame.
func HasComplete(buf []byte) bool {
	frames, _ := Decode(buf)
	return len(frames) > 0
}

// Required returns the number of bytes still needed to complete the next
// frame, or 0 when buf already holds a complete one. Unknown-type bytes
// are skipped the same way Decode skips them.
func Required(buf []byte) int {
	pos := 0
	for len(buf)-pos >= HeaderSize {
		t := MessageType(binary.BigEndian.Uint16(buf[pos : pos+2]))
		length := binary.BigEndian.Uint32(buf[pos+2 : pos+6])
		if !t.Known() || length > MaxPayloadSize {
			pos++
			continue
		}
		remaining := len(buf) - pos
		total := HeaderSize + int(length)
		if remaining >= total {
			return 0
		}
		return total - remaining
	}
	return HeaderSize - (len(buf) - pos)
}
