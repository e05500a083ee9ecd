package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"rpc-endpoint/protocol"
)

// ErrConnClosed is returned by Send after Close.
var ErrConnClosed = errors.New("transport: connection closed")

// PacketHandler receives the body of every frame read from a Conn.
// An error is logged; it does not stop the receive loop.
type PacketHandler func(data []byte) error

// Conn carries packets over a single stream connection.
//
//	goroutine-1 ──Send(call 1)──┐
//	goroutine-2 ──Send(call 2)──┼──→ single conn ──→ peer
//	goroutine-3 ──Send(call 1)──┘
//
//	Serve:  ←── frame ──→ handler(body) → Endpoint routes it to the owning call
//
// Conn implements Output, so it can back a Channel directly.
type Conn struct {
	conn    net.Conn
	sending sync.Mutex // whole frames only; header of A + body of B would corrupt the stream
	closed  atomic.Bool
	logger  *zap.Logger
}

// NewConn wraps conn. A nil logger disables logging.
func NewConn(conn net.Conn, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conn{
		conn:   conn,
		logger: logger.With(zap.String("remote", remoteAddr(conn))),
	}
}

// Send frames data and writes it to the connection.
// Frames written by one goroutine keep their order.
func (c *Conn) Send(data []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	c.sending.Lock()
	defer c.sending.Unlock()
	if err := protocol.WriteFrame(c.conn, data); err != nil {
		if c.closed.Load() {
			return ErrConnClosed
		}
		return err
	}
	return nil
}

// Serve reads frames until the connection breaks, Close is called, or ctx is
// done, passing each frame body to handle. It returns nil when the loop was
// stopped by Close or ctx, and the read error otherwise.
//
// Reads must be sequential to keep frame boundaries, so call Serve from a
// single goroutine.
func (c *Conn) Serve(ctx context.Context, handle PacketHandler) error {
	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer stop()

	for {
		body, err := protocol.ReadFrame(c.conn)
		if err != nil {
			if c.closed.Load() {
				return nil
			}
			c.logger.Warn("receive loop stopped", zap.Error(err))
			return err
		}
		if err := handle(body); err != nil {
			c.logger.Debug("packet not handled", zap.Error(err))
		}
	}
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// Conn returns the underlying connection.
func (c *Conn) Conn() net.Conn {
	return c.conn
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
