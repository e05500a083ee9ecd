package protocol

import (
	"bytes"
	"testing"

	"google.golang.org/grpc/codes"

	"rpc-endpoint/message"
)

func TestEncodeDecode(t *testing.T) {
	body := []byte("hello world")
	header := Header{BodyLen: uint32(len(body))}

	var buf bytes.Buffer
	if err := Encode(&buf, &header, body); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() != HeaderSize+len(body) {
		t.Fatalf("frame size mismatch: got %d, want %d", buf.Len(), HeaderSize+len(body))
	}

	decodedHeader, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decodedHeader.BodyLen != header.BodyLen {
		t.Errorf("BodyLen mismatch: got %d, want %d", decodedHeader.BodyLen, header.BodyLen)
	}
	if !bytes.Equal(decodedBody, body) {
		t.Errorf("Body mismatch: got %s, want %s", string(decodedBody), string(body))
	}
}

func TestEncodeLengthMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, &Header{BodyLen: 3}, []byte("hello"))
	if err == nil {
		t.Fatal("expected error for mismatched body length")
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written on error, got %d bytes", buf.Len())
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	invalidHeader := []byte{0x00, 0x00, 0x00, Version, 0x00, 0x00, 0x00, 0x0B}
	var buf bytes.Buffer
	buf.Write(invalidHeader)
	buf.Write([]byte("hello world"))

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("Expected error for invalid magic number, but got nil")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("invalid magic number")) {
		t.Errorf("Error message should contain 'invalid magic', instead: %v", err)
	}
}

func TestDecodeInvalidVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{
		MagicNumber, MagicByte2, MagicByte3,
		0xFF,       // wrong version
		0, 0, 0, 0, // BodyLen
	})

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("expected error for wrong version")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("unsupported version")) {
		t.Errorf("error should mention 'unsupported version', got: %v", err)
	}
}

func TestDecodeOversizedBody(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{MagicNumber, MagicByte2, MagicByte3, Version, 0xFF, 0xFF, 0xFF, 0xFF})

	if _, _, err := Decode(&buf); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	body, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if len(body) != 0 {
		t.Errorf("Expected empty body, got length %d", len(body))
	}
}

func TestDecodeLargeBody(t *testing.T) {
	var buf bytes.Buffer

	largeBody := make([]byte, 1024*1024)
	for i := range largeBody {
		largeBody[i] = byte(i % 256)
	}

	if err := WriteFrame(&buf, largeBody); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	decodedBody, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(decodedBody, largeBody) {
		t.Errorf("large body mismatch")
	}
}

func TestFramesBackToBack(t *testing.T) {
	var buf bytes.Buffer
	bodies := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	for _, b := range bodies {
		if err := WriteFrame(&buf, b); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range bodies {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestEncodePacketWireBytes(t *testing.T) {
	p := &message.Packet{
		Type:      message.PacketClientError,
		ChannelID: 555,
		ServiceID: 0x01020304,
		CallID:    1,
		Status:    codes.Canceled,
	}

	got, err := EncodePacket(p)
	if err != nil {
		t.Fatalf("EncodePacket failed: %v", err)
	}

	want := []byte{
		0x08, 0x04, // type = CLIENT_ERROR
		0x10, 0xAB, 0x04, // channel_id = 555
		0x1D, 0x04, 0x03, 0x02, 0x01, // service_id (fixed32, little-endian)
		0x30, 0x01, // status = CANCELLED
		0x38, 0x01, // call_id = 1
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("wire mismatch:\n got %x\nwant %x", got, want)
	}
}

func TestPacketRoundTrip(t *testing.T) {
	p := &message.Packet{
		Type:      message.PacketServerStream,
		ChannelID: 1,
		ServiceID: 0xdeadbeef,
		MethodID:  0x0badf00d,
		CallID:    42,
		Payload:   []byte{1, 2, 3},
	}
	data, err := EncodePacket(p)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodePacket(data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.String() != p.String() || !bytes.Equal(decoded.Payload, p.Payload) {
		t.Fatalf("round trip mismatch: got %s, want %s", decoded, p)
	}
}

func TestDecodePacketSkipsUnknownFields(t *testing.T) {
	data := []byte{
		0x10, 0x05, // channel_id = 5
		0x48, 0x07, // field 9 (unknown varint)
		0x38, 0x03, // call_id = 3
	}
	p, err := DecodePacket(data)
	if err != nil {
		t.Fatal(err)
	}
	if p.ChannelID != 5 || p.CallID != 3 {
		t.Fatalf("unexpected packet %s", p)
	}
	if p.Type != message.PacketRequest {
		t.Fatalf("missing type should decode as REQUEST, got %s", p.Type)
	}
}

func TestDecodePacketErrors(t *testing.T) {
	if _, err := DecodePacket([]byte{0x38, 0x03}); err != ErrMissingChannel {
		t.Fatalf("expect ErrMissingChannel, got %v", err)
	}
	if _, err := DecodePacket([]byte{0x2A, 0x05, 0x01}); err == nil {
		t.Fatal("expect error for truncated payload")
	}
	if _, err := EncodePacket(&message.Packet{}); err != ErrMissingChannel {
		t.Fatalf("expect ErrMissingChannel on encode, got %v", err)
	}
}
