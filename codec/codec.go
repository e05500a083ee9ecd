// Package codec serializes call payloads.
//
// The packet layer treats payloads as opaque bytes; a Method picks the codec
// that turns its request and response values into those bytes.
package codec

type CodecType byte

const (
	CodecTypeJSON  CodecType = 0
	CodecTypeProto CodecType = 1
	CodecTypeRaw   CodecType = 2
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType // 0=JSON, 1=Proto, 2=Raw
}

func GetCodec(codecType CodecType) Codec {
	switch codecType {
	case CodecTypeJSON:
		return &JSONCodec{}
	case CodecTypeProto:
		return &ProtoCodec{}
	}
	return &RawCodec{}
}
