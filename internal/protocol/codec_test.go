package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestEncodeDecodeRoundTrip verifies decode(encode(F)) = [F] with the
// whole encoding consumed.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte(`{"query":"abc","k":5,"timestamp":1}`)
	encoded := Encode(Frame{Type: TypeRecommendRequest, Payload: payload})

	frames, consumed := Decode(encoded)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if consumed != len(encoded) {
		t.Errorf("expected %d bytes consumed, got %d", len(encoded), consumed)
	}
	if frames[0].Type != TypeRecommendRequest {
		t.Errorf("expected type %#04x, got %#04x", uint16(TypeRecommendRequest), uint16(frames[0].Type))
	}
	if !bytes.Equal(frames[0].Payload, payload) {
		t.Errorf("payload mismatch: %q", frames[0].Payload)
	}
}

// TestEncodeHeaderLayout verifies the big-endian header byte layout.
func TestEncodeHeaderLayout(t *testing.T) {
	encoded := Encode(Frame{Type: TypeRecommendRequest, Payload: []byte("{}")})
	want := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x02, '{', '}'}
	if !bytes.Equal(encoded, want) {
		t.Errorf("encoded bytes %x, want %x", encoded, want)
	}
}

// TestDecodeResync verifies a leading garbage byte is skipped: one frame
// decoded and 1+6+2 bytes consumed.
func TestDecodeResync(t *testing.T) {
	valid := Encode(Frame{Type: TypeRecommendRequest, Payload: []byte("{}")})
	stream := append([]byte{0xFF}, valid...)

	frames, consumed := Decode(stream)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after resync, got %d", len(frames))
	}
	if consumed != 1+len(valid) {
		t.Errorf("expected %d bytes consumed, got %d", 1+len(valid), consumed)
	}
	if frames[0].Type != TypeRecommendRequest {
		t.Errorf("unexpected frame type %#04x", uint16(frames[0].Type))
	}
}

// TestDecodePartialFrame verifies an incomplete frame is left in the
// buffer untouched.
func TestDecodePartialFrame(t *testing.T) {
	valid := Encode(Frame{Type: TypeSearchRequest, Payload: []byte(`{"query":"x"}`)})
	partial := valid[:len(valid)-3]

	frames, consumed := Decode(partial)
	if len(frames) != 0 {
		t.Fatalf("expected no frames from a partial buffer, got %d", len(frames))
	}
	if consumed != 0 {
		t.Errorf("expected 0 bytes consumed, got %d", consumed)
	}
}

// TestDecodeMultipleFrames verifies back-to-back frames decode in order.
func TestDecodeMultipleFrames(t *testing.T) {
	a := Encode(Frame{Type: TypeRecommendRequest, Payload: []byte("{}")})
	b := Encode(Frame{Type: TypeSearchRequest, Payload: []byte(`{"q":1}`)})
	stream := append(append([]byte{}, a...), b...)

	frames, consumed := Decode(stream)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if consumed != len(stream) {
		t.Errorf("expected full consumption, got %d of %d", consumed, len(stream))
	}
	if frames[0].Type != TypeRecommendRequest || frames[1].Type != TypeSearchRequest {
		t.Error("frames decoded out of order")
	}
}

// TestHasCompleteAndRequired verifies the buffer inspection helpers.
func TestHasCompleteAndRequired(t *testing.T) {
	valid := Encode(Frame{Type: TypeSearchRequest, Payload: []byte(`{"query":"x"}`)})

	if HasComplete(valid[:4]) {
		t.Error("4 header bytes must not report a complete frame")
	}
	if got, want := Required(valid[:4]), 2; got != want {
		t.Errorf("Required on a header fragment: got %d, want %d", got, want)
	}
	if got, want := Required(valid[:HeaderSize]), len(valid)-HeaderSize; got != want {
		t.Errorf("Required on a bare header: got %d, want %d", got, want)
	}
	if !HasComplete(valid) {
		t.Error("full frame must report complete")
	}
	if got := Required(valid); got != 0 {
		t.Errorf("Required on a complete frame: got %d, want 0", got)
	}
}

// TestDecodeOversizedLengthResyncs verifies a header announcing an absurd
// payload is treated as corruption, not a huge pending frame.
func TestDecodeOversizedLengthResyncs(t *testing.T) {
	corrupt := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(corrupt[0:2], uint16(TypeSearchRequest))
	binary.BigEndian.PutUint32(corrupt[2:6], MaxPayloadSize+1)
	valid := Encode(Frame{Type: TypeRecommendRequest, Payload: []byte("{}")})
	stream := append(corrupt, valid...)

	frames, _ := Decode(stream)
	if len(frames) != 1 || frames[0].Type != TypeRecommendRequest {
		t.Fatalf("expected the trailing valid frame to survive resync, got %d frames", len(frames))
	}
}
