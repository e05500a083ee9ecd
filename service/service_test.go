package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-endpoint/codec"
)

func TestHash(t *testing.T) {
	cases := []struct {
		name string
		want uint32
	}{
		{"", 0},
		{"a", 6363104},
		{"ab", 815990595},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Hash(tc.name), "Hash(%q)", tc.name)
	}
	assert.NotEqual(t, Hash("SomeUnary"), Hash("SomeServerStreaming"))
}

func TestNewService(t *testing.T) {
	json := codec.GetCodec(codec.CodecTypeJSON)
	svc, err := NewService("pw.rpc.test1.TheTestService",
		UnaryMethod("SomeUnary", json, json),
		ServerStreamingMethod("SomeServerStreaming", json, json),
		ClientStreamingMethod("SomeClientStreaming", json, json),
		BidirectionalStreamingMethod("SomeBidiStreaming", json, json),
	)
	require.NoError(t, err)

	assert.Equal(t, Hash("pw.rpc.test1.TheTestService"), svc.ID())

	unary := svc.Method("SomeUnary")
	require.NotNil(t, unary)
	assert.Equal(t, Unary, unary.Type())
	assert.Equal(t, Hash("SomeUnary"), unary.ID())
	assert.Same(t, svc, unary.Service())
	assert.Equal(t, "pw.rpc.test1.TheTestService.SomeUnary", unary.FullName())
	assert.Same(t, unary, svc.MethodByID(unary.ID()))

	bidi := svc.Method("SomeBidiStreaming")
	require.NotNil(t, bidi)
	assert.True(t, bidi.Type().HasClientStream())
	assert.True(t, bidi.Type().HasServerStream())
	assert.False(t, svc.Method("SomeServerStreaming").Type().HasClientStream())

	assert.Nil(t, svc.Method("Missing"))
}

func TestMethodBelongsToOneService(t *testing.T) {
	m := UnaryMethod("Echo", nil, nil)
	_, err := NewService("a.Service", m)
	require.NoError(t, err)

	_, err = NewService("b.Service", m)
	require.Error(t, err)
}

func TestDuplicateMethodRejected(t *testing.T) {
	_, err := NewService("a.Service", UnaryMethod("Echo", nil, nil), UnaryMethod("Echo", nil, nil))
	require.Error(t, err)
}

func TestSetLookup(t *testing.T) {
	echo := UnaryMethod("Echo", nil, nil)
	svc := MustService("a.Service", echo)

	set, err := NewSet(svc)
	require.NoError(t, err)
	require.NoError(t, set.Add(svc), "re-adding the same service is allowed")
	assert.Equal(t, 1, set.Len())

	m, ok := set.Lookup(svc.ID(), echo.ID())
	require.True(t, ok)
	assert.Same(t, echo, m)

	_, ok = set.Lookup(svc.ID(), Hash("Other"))
	assert.False(t, ok)
	_, ok = set.Lookup(Hash("b.Service"), echo.ID())
	assert.False(t, ok)
}
