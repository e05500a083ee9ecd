package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/encoding/protowire"

	"rpc-endpoint/message"
)

// RpcPacket field numbers.
const (
	fieldType      protowire.Number = 1
	fieldChannelID protowire.Number = 2
	fieldServiceID protowire.Number = 3
	fieldMethodID  protowire.Number = 4
	fieldPayload   protowire.Number = 5
	fieldStatus    protowire.Number = 6
	fieldCallID    protowire.Number = 7
)

// ErrMissingChannel is returned when decoding a packet with no channel id.
// Channel 0 is reserved and never routable.
var ErrMissingChannel = errors.New("protocol: packet has no channel id")

// EncodePacket serializes p as protobuf wire bytes. Fields are written in
// field-number order and zero values are omitted, so the output is identical
// to what a proto3 encoder produces for the same message.
func EncodePacket(p *message.Packet) ([]byte, error) {
	if p.ChannelID == 0 {
		return nil, ErrMissingChannel
	}

	b := make([]byte, 0, 32+len(p.Payload))
	if p.Type != 0 {
		b = protowire.AppendTag(b, fieldType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Type))
	}
	b = protowire.AppendTag(b, fieldChannelID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.ChannelID))
	if p.ServiceID != 0 {
		b = protowire.AppendTag(b, fieldServiceID, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, p.ServiceID)
	}
	if p.MethodID != 0 {
		b = protowire.AppendTag(b, fieldMethodID, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, p.MethodID)
	}
	if len(p.Payload) > 0 {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Payload)
	}
	if p.Status != codes.OK {
		b = protowire.AppendTag(b, fieldStatus, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Status))
	}
	if p.CallID != 0 {
		b = protowire.AppendTag(b, fieldCallID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.CallID))
	}
	return b, nil
}

// DecodePacket parses protobuf wire bytes into a Packet. Unknown fields are
// skipped. The payload slice is copied so the caller may reuse data.
func DecodePacket(data []byte) (*message.Packet, error) {
	p := &message.Packet{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("protocol: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("protocol: bad type: %w", protowire.ParseError(n))
			}
			p.Type = message.PacketType(v)
			data = data[n:]
		case num == fieldChannelID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("protocol: bad channel_id: %w", protowire.ParseError(n))
			}
			p.ChannelID = uint32(v)
			data = data[n:]
		case num == fieldServiceID && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return nil, fmt.Errorf("protocol: bad service_id: %w", protowire.ParseError(n))
			}
			p.ServiceID = v
			data = data[n:]
		case num == fieldMethodID && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return nil, fmt.Errorf("protocol: bad method_id: %w", protowire.ParseError(n))
			}
			p.MethodID = v
			data = data[n:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("protocol: bad payload: %w", protowire.ParseError(n))
			}
			p.Payload = append([]byte(nil), v...)
			data = data[n:]
		case num == fieldStatus && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("protocol: bad status: %w", protowire.ParseError(n))
			}
			p.Status = codes.Code(v)
			data = data[n:]
		case num == fieldCallID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("protocol: bad call_id: %w", protowire.ParseError(n))
			}
			p.CallID = uint32(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("protocol: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if p.ChannelID == 0 {
		return nil, ErrMissingChannel
	}
	return p, nil
}
