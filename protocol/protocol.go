// Package protocol implements the byte formats used below the call layer.
//
// Two formats live here:
//
//   - The packet encoding (packet.go): one message.Packet as protobuf wire bytes,
//     laid out like pw_rpc's RpcPacket. This is what a channel's Send receives.
//   - The stream frame (this file): a fixed 8-byte header followed by a
//     variable-length body. Byte-stream transports (TCP, serial over a pipe)
//     have no message boundaries, so the receiver reads the header first to
//     learn the body length, then reads exactly that many bytes.
//
// Frame format:
//
//	0      3  4         8
//	┌──────┬──┬─────────┬───────────────┐
//	│magic │v │ bodyLen │    body ...    │
//	│ pwr  │01│ uint32  │ bodyLen bytes  │
//	└──────┴──┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic number bytes: "pwr".
// Used to quickly reject a peer that is not speaking this framing.
const (
	MagicNumber byte = 0x70 // 'p'
	MagicByte2  byte = 0x77 // 'w'
	MagicByte3  byte = 0x72 // 'r'
	Version     byte = 0x01
	HeaderSize  int  = 8 // 3 (magic) + 1 (version) + 4 (bodyLen)

	// MaxBodySize bounds a single frame so a corrupt length cannot make the
	// reader allocate gigabytes.
	MaxBodySize uint32 = 16 * 1024 * 1024
)

// Header represents the fixed frame header.
type Header struct {
	BodyLen uint32 // Body length in bytes
}

// Encode writes a complete frame (header + body) to w.
// The caller must hold a write lock if multiple goroutines share the same writer,
// otherwise frames from different calls will interleave and corrupt the stream.
func Encode(w io.Writer, h *Header, body []byte) error {
	if h.BodyLen != uint32(len(body)) {
		return fmt.Errorf("body length mismatch: header says %d, body has %d", h.BodyLen, len(body))
	}
	if h.BodyLen > MaxBodySize {
		return fmt.Errorf("body too large: %d bytes", h.BodyLen)
	}

	// Header and body go out in one Write so a concurrent reader on the
	// far side never observes a header without its body.
	buf := make([]byte, HeaderSize+len(body))
	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	binary.BigEndian.PutUint32(buf[4:8], h.BodyLen)
	copy(buf[HeaderSize:], body)

	_, err := w.Write(buf)
	return err
}

// Decode reads a complete frame (header + body) from r.
// It validates the magic number, version and body length.
// Uses io.ReadFull to guarantee exactly N bytes are read, preventing partial reads.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("invalid magic number: %x", headerBuf[0:3])
	}

	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("unsupported version: %d", headerBuf[3])
	}

	bodyLen := binary.BigEndian.Uint32(headerBuf[4:8])
	if bodyLen > MaxBodySize {
		return nil, nil, fmt.Errorf("body too large: %d bytes", bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	return &Header{BodyLen: bodyLen}, body, nil
}

// WriteFrame frames body and writes it to w.
func WriteFrame(w io.Writer, body []byte) error {
	return Encode(w, &Header{BodyLen: uint32(len(body))}, body)
}

// ReadFrame reads one frame from r and returns its body.
func ReadFrame(r io.Reader) ([]byte, error) {
	_, body, err := Decode(r)
	return body, err
}
