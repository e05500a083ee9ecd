package client

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"rpc-endpoint/message"
	"rpc-endpoint/protocol"
)

// 场景1: 单 goroutine 串行调用
func BenchmarkSerialUnary(b *testing.B) {
	c, _ := newTestClient(b, false, WithLogger(zap.NewNop()))
	b.Cleanup(func() { c.Close() })

	req := []byte("ping")
	var reply []byte
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.Unary(context.Background(), 1, echo, req, &reply); err != nil {
			b.Fatal(err)
		}
	}
}

// 场景2: 多 goroutine 并发调用（同一 channel 多路复用）
func BenchmarkConcurrentUnary(b *testing.B) {
	c, _ := newTestClient(b, false, WithLogger(zap.NewNop()))
	b.Cleanup(func() { c.Close() })

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		req := []byte("ping")
		var reply []byte
		for pb.Next() {
			if err := c.Unary(context.Background(), 1, echo, req, &reply); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// 场景3: packet 编解码性能（不走网络）
func BenchmarkPacketCodec(b *testing.B) {
	p := &message.Packet{
		Type:      message.PacketResponse,
		ChannelID: 1,
		ServiceID: echoSvc.ID(),
		MethodID:  echo.ID(),
		CallID:    42,
		Payload:   []byte(`{"A":1,"B":2}`),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := protocol.EncodePacket(p)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := protocol.DecodePacket(data); err != nil {
			b.Fatal(err)
		}
	}
}
