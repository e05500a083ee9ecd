// Package client wires the endpoint to real connections.
//
// A Client discovers its channels in a registry, picks one instance of each
// with a load balancer and dials it. Every connection gets a receive loop
// that decodes inbound packets and hands them to the shared Endpoint:
//
//	registry ──Channels/Discover──→ balancer.Pick ──dial──→ transport.Conn
//	                                                           │
//	Unary / ServerStream / Open ──→ Endpoint ──→ middleware ───┘ (send)
//	                                   ↑
//	                  HandlePacket ←───┴── Conn.Serve (one goroutine per channel)
package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"

	"rpc-endpoint/endpoint"
	"rpc-endpoint/loadbalance"
	"rpc-endpoint/middleware"
	"rpc-endpoint/protocol"
	"rpc-endpoint/registry"
	"rpc-endpoint/service"
	"rpc-endpoint/transport"
)

var (
	// ErrNoChannels is returned by NewClient when the registry lists no channels.
	ErrNoChannels = errors.New("client: registry has no channels")

	// ErrUnknownMethod is returned by HandlePacket for a packet whose service
	// and method ids match none of the client's services.
	ErrUnknownMethod = errors.New("client: unknown method")

	// ErrUnroutable is returned by HandlePacket for a packet on a channel the
	// client did not open.
	ErrUnroutable = errors.New("client: packet for unknown channel")
)

type Client struct {
	registry registry.Registry
	balancer loadbalance.Balancer
	services *service.Set
	endpoint *endpoint.Endpoint
	logger   *zap.Logger

	conns     map[uint32]*transport.Conn
	instances map[uint32]registry.ChannelInstance

	cancel    context.CancelFunc
	group     errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

// NewClient opens one connection per channel listed in reg and starts
// receiving on all of them. Inbound packets are resolved against services.
//
// If any channel cannot be opened, the connections opened so far are closed
// and the error is returned.
func NewClient(reg registry.Registry, bal loadbalance.Balancer, services []*service.Service, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	set, err := service.NewSet(services...)
	if err != nil {
		return nil, err
	}
	ids, err := reg.Channels()
	if err != nil {
		return nil, fmt.Errorf("client: listing channels: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNoChannels
	}

	var sendMetrics *middleware.Metrics
	if o.registerer != nil {
		if sendMetrics, err = middleware.NewMetrics(o.registerer); err != nil {
			return nil, err
		}
	}

	c := &Client{
		registry:  reg,
		balancer:  bal,
		services:  set,
		logger:    o.logger,
		conns:     make(map[uint32]*transport.Conn, len(ids)),
		instances: make(map[uint32]registry.ChannelInstance, len(ids)),
	}

	channels := make([]*transport.Channel, 0, len(ids))
	for _, id := range ids {
		ch, err := c.openChannel(id, &o, sendMetrics)
		if err != nil {
			c.closeConns()
			return nil, err
		}
		channels = append(channels, ch)
	}

	epOpts := []endpoint.Option{endpoint.WithLogger(o.logger), endpoint.WithMetrics(o.registerer)}
	if o.maxCallID != 0 {
		epOpts = append(epOpts, endpoint.WithMaxCallID(o.maxCallID))
	}
	c.endpoint, err = endpoint.New(channels, epOpts...)
	if err != nil {
		c.closeConns()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	for id, conn := range c.conns {
		c.group.Go(func() error {
			return c.receive(ctx, id, conn)
		})
	}
	return c, nil
}

func (c *Client) openChannel(id uint32, o *options, sendMetrics *middleware.Metrics) (*transport.Channel, error) {
	instances, err := c.registry.Discover(id)
	if err != nil {
		return nil, fmt.Errorf("client: discovering channel %d: %w", id, err)
	}
	inst, err := c.balancer.Pick(instances)
	if err != nil {
		return nil, fmt.Errorf("client: picking instance for channel %d: %w", id, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.dialTimeout)
	defer cancel()
	netConn, err := o.dial(ctx, inst.Addr)
	if err != nil {
		return nil, fmt.Errorf("client: dialing channel %d at %s: %w", id, inst.Addr, err)
	}

	conn := transport.NewConn(netConn, c.logger.With(zap.Uint32("channel", id)))
	c.conns[id] = conn
	c.instances[id] = *inst

	mws := o.middlewares
	if sendMetrics != nil {
		mws = append([]middleware.Middleware{sendMetrics.Middleware(strconv.FormatUint(uint64(id), 10))}, mws...)
	}
	c.logger.Info("channel open",
		zap.Uint32("channel", id), zap.String("addr", inst.Addr), zap.String("balancer", c.balancer.Name()))
	return transport.NewChannel(id, middleware.Wrap(conn, mws...))
}

// receive runs the receive loop of one channel. When it stops, every call
// still active on the channel ends with an error: Unavailable if the
// connection broke, Aborted if the client was closed.
func (c *Client) receive(ctx context.Context, id uint32, conn *transport.Conn) error {
	err := conn.Serve(ctx, c.HandlePacket)
	conn.Close()

	status := codes.Aborted
	if err != nil {
		status = codes.Unavailable
	}
	if n := c.endpoint.AbortChannel(id, status); n > 0 {
		c.logger.Info("channel closed with calls in flight",
			zap.Uint32("channel", id), zap.Int("calls", n), zap.Stringer("status", status))
	}
	if err != nil {
		return fmt.Errorf("client: channel %d: %w", id, err)
	}
	return nil
}

// HandlePacket decodes one inbound packet and routes it to the call that
// owns it. Packets that no active call owns are dropped and nil is returned.
func (c *Client) HandlePacket(data []byte) error {
	p, err := protocol.DecodePacket(data)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	method, ok := c.services.Lookup(p.ServiceID, p.MethodID)
	if !ok {
		return fmt.Errorf("%w: service %08x method %08x", ErrUnknownMethod, p.ServiceID, p.MethodID)
	}
	if result := c.endpoint.ProcessClientPacket(method, p); !result.Routed() {
		return fmt.Errorf("%w: %d", ErrUnroutable, p.ChannelID)
	}
	return nil
}

func (c *Client) Endpoint() *endpoint.Endpoint {
	return c.endpoint
}

// Instance returns the instance dialed for channelID.
func (c *Client) Instance(channelID uint32) (registry.ChannelInstance, bool) {
	inst, ok := c.instances[channelID]
	return inst, ok
}

// Close stops every receive loop and closes the connections. Calls still in
// flight end with Aborted. It returns the first error a receive loop stopped
// with, if a connection broke before Close.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.group.Wait()
		c.logger.Info("client closed")
	})
	return c.closeErr
}

func (c *Client) closeConns() {
	for _, conn := range c.conns {
		conn.Close()
	}
}
