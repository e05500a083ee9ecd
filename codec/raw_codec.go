package codec

import "fmt"

// RawCodec passes []byte payloads through untouched. Decode accepts a *[]byte.
type RawCodec struct{}

func (c *RawCodec) Encode(v any) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}
	return nil, fmt.Errorf("RawCodec: cannot encode %T", v)
}

func (c *RawCodec) Decode(data []byte, v any) error {
	out, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("RawCodec: cannot decode into %T", v)
	}
	*out = append((*out)[:0], data...)
	return nil
}

func (c *RawCodec) Type() CodecType {
	return CodecTypeRaw
}
