package client

import (
	"context"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"rpc-endpoint/middleware"
)

const defaultDialTimeout = 5 * time.Second

// DialFunc opens the stream connection for one channel instance.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

type Option func(*options)

type options struct {
	logger      *zap.Logger
	registerer  prometheus.Registerer
	maxCallID   uint32
	middlewares []middleware.Middleware
	dial        DialFunc
	dialTimeout time.Duration
}

func defaultOptions() options {
	return options{
		logger:      zap.NewNop(),
		dialTimeout: defaultDialTimeout,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

// WithLogger sets the logger shared by the client, its connections and its
// endpoint.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics registers endpoint and per-channel send metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithMaxCallID is endpoint.WithMaxCallID.
func WithMaxCallID(max uint32) Option {
	return func(o *options) { o.maxCallID = max }
}

// WithMiddleware wraps every channel's outbound sends, first one outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}

// WithDialer replaces the TCP dialer.
func WithDialer(dial DialFunc) Option {
	return func(o *options) { o.dial = dial }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}
