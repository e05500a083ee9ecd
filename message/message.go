// Package message defines the RPC packet exchanged between client and server.
//
// Packet is the "envelope" for every step of a call: the request that starts it,
// stream data in either direction, and the packet that finishes it. It gets
// serialized by the protocol layer and handed to a channel for transmission.
//
// The header fields (channel, service, method, call id) name the call a packet
// belongs to; the client routes inbound packets by exactly these four values.
package message

import (
	"fmt"

	"google.golang.org/grpc/codes"
)

// PacketType distinguishes the role of a packet within a call.
// Values match the pw_rpc wire enumeration.
type PacketType uint32

const (
	// Client → Server
	PacketRequest                 PacketType = 0 // Starts a call, carries the request payload
	PacketClientStream            PacketType = 2 // One message of a client stream
	PacketClientError             PacketType = 4 // Client aborts the call (e.g. CANCELLED)
	PacketClientRequestCompletion PacketType = 8 // Client has finished streaming

	// Server → Client
	PacketResponse     PacketType = 1 // Final packet of a successful call
	PacketServerError  PacketType = 5 // Server failed the call
	PacketServerStream PacketType = 7 // One message of a server stream
)

var packetTypeNames = map[PacketType]string{
	PacketRequest:                 "REQUEST",
	PacketResponse:                "RESPONSE",
	PacketClientStream:            "CLIENT_STREAM",
	PacketClientError:             "CLIENT_ERROR",
	PacketServerError:             "SERVER_ERROR",
	PacketServerStream:            "SERVER_STREAM",
	PacketClientRequestCompletion: "CLIENT_REQUEST_COMPLETION",
}

func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PacketType(%d)", uint32(t))
}

// Valid reports whether t is one of the known packet types.
func (t PacketType) Valid() bool {
	_, ok := packetTypeNames[t]
	return ok
}

// IsTerminal reports whether a packet of this type ends the call it belongs to
// when received by the client.
func (t PacketType) IsTerminal() bool {
	switch t {
	case PacketResponse, PacketServerError, PacketClientError:
		return true
	}
	return false
}

// IsServerPacket reports whether the type is one a server sends.
func (t PacketType) IsServerPacket() bool {
	switch t {
	case PacketResponse, PacketServerError, PacketServerStream:
		return true
	}
	return false
}

// Packet carries the header fields of one RPC packet plus its opaque payload.
//
//   - Status is meaningful on RESPONSE, SERVER_ERROR and CLIENT_ERROR.
//   - Payload is present on REQUEST, RESPONSE and the two stream types.
type Packet struct {
	Type      PacketType
	ChannelID uint32
	ServiceID uint32
	MethodID  uint32
	CallID    uint32
	Status    codes.Code
	Payload   []byte
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s{channel=%d service=%08x method=%08x call=%d status=%s len=%d}",
		p.Type, p.ChannelID, p.ServiceID, p.MethodID, p.CallID, p.Status, len(p.Payload))
}
