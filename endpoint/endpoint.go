// Package endpoint tracks the client's in-flight calls.
//
// The Endpoint owns a fixed set of channels and the active-call table. It
// allocates call ids, builds and sends the client's control packets (request,
// client stream, stream end, cancel) and routes inbound packets back to the
// call that owns them:
//
//	InvokeRpc ──alloc id──→ table[identity] = call ──→ channel.Send(REQUEST)
//	                                 ↑
//	ProcessClientPacket ── identity ─┘ found  → observer event (terminal ones remove the call)
//	                                   absent → dropped silently
//
// The table and the id counter are guarded by one mutex. Channel sends happen
// outside of it.
package endpoint

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"rpc-endpoint/codec"
	"rpc-endpoint/message"
	"rpc-endpoint/protocol"
	"rpc-endpoint/service"
	"rpc-endpoint/transport"
)

// Option configures an Endpoint.
type Option func(*options)

type options struct {
	maxCallID  uint32
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// WithMaxCallID bounds the call id sequence; ids run from FirstCallID to
// max-1 and then wrap. max also bounds how many calls may be outstanding on
// one (channel, service, method) before a new call supersedes an old one.
func WithMaxCallID(max uint32) Option {
	return func(o *options) { o.maxCallID = max }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics registers the endpoint's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Endpoint is the call registry and packet dispatcher of an RPC client.
// It is safe for concurrent use.
type Endpoint struct {
	channels map[uint32]*transport.Channel // fixed at construction
	logger   *zap.Logger
	metrics  *metrics

	mu    sync.Mutex
	calls map[Identity]*Call
	ids   callIDAllocator
}

// New creates an Endpoint over channels. Channel ids must be unique.
func New(channels []*transport.Channel, opts ...Option) (*Endpoint, error) {
	o := options{
		maxCallID: DefaultMaxCallID,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxCallID <= FirstCallID {
		return nil, fmt.Errorf("endpoint: max call id must be greater than %d, got %d", FirstCallID, o.maxCallID)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	byID := make(map[uint32]*transport.Channel, len(channels))
	for _, ch := range channels {
		if ch == nil {
			return nil, fmt.Errorf("endpoint: nil channel")
		}
		if _, dup := byID[ch.ID()]; dup {
			return nil, fmt.Errorf("endpoint: duplicate channel id %d", ch.ID())
		}
		byID[ch.ID()] = ch
	}

	m, err := newMetrics(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("endpoint: registering metrics: %w", err)
	}

	return &Endpoint{
		channels: byID,
		logger:   o.logger,
		metrics:  m,
		calls:    make(map[Identity]*Call),
		ids:      newCallIDAllocator(o.maxCallID),
	}, nil
}

// Channel returns the channel with the given id.
func (e *Endpoint) Channel(id uint32) (*transport.Channel, bool) {
	ch, ok := e.channels[id]
	return ch, ok
}

// ChannelIDs returns the configured channel ids in ascending order.
func (e *Endpoint) ChannelIDs() []uint32 {
	ids := make([]uint32, 0, len(e.channels))
	for id := range e.channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ActiveCalls returns the number of calls in the active-call table.
func (e *Endpoint) ActiveCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// InvokeRpc starts a call: it registers a new call for method on the channel
// and sends a REQUEST packet carrying the encoded request.
//
// The call is in the table before the packet is sent, so a response that
// races the send is still routed to it. If the send fails the call is
// removed again, nothing is delivered to its observer, and the returned
// error matches ErrSendFailure.
func (e *Endpoint) InvokeRpc(channelID uint32, method *service.Method, factory CallFactory, request any) (*Call, error) {
	ch, ok := e.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrChannelUnknown, channelID)
	}
	if method == nil {
		return nil, ErrNoMethod
	}
	payload, err := encodePayload(method.Request, request)
	if err != nil {
		return nil, fmt.Errorf("endpoint: encoding %s request: %w", method, err)
	}

	call, err := e.register(ch, method, factory)
	if err != nil {
		return nil, err
	}

	if err := e.send(ch, call.id, message.PacketRequest, payload, codes.OK); err != nil {
		e.mu.Lock()
		e.removeLocked(call)
		call.closeSilently()
		e.mu.Unlock()
		return nil, err
	}

	e.logger.Debug("call started", zap.Stringer("call", call))
	return call, nil
}

// OpenRpc registers a call without sending anything, for calls the server
// already knows to stream to. The returned call is active.
func (e *Endpoint) OpenRpc(channelID uint32, method *service.Method, factory CallFactory) (*Call, error) {
	ch, ok := e.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrChannelUnknown, channelID)
	}
	if method == nil {
		return nil, ErrNoMethod
	}

	call, err := e.register(ch, method, factory)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("call opened", zap.Stringer("call", call))
	return call, nil
}

// Abandon forgets call locally. Nothing is sent; later packets for it are
// dropped. It returns false if call is not the active call for its identity.
func (e *Endpoint) Abandon(call *Call) bool {
	if call == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.removeLocked(call) {
		return false
	}
	call.closeSilently()
	return true
}

// Cancel removes call and then sends a CLIENT_ERROR packet with status
// CANCELLED. It returns false, sending nothing, if the call is not active.
// When the cancel packet cannot be sent the call is still gone locally:
// the result is true together with the send error.
func (e *Endpoint) Cancel(call *Call) (bool, error) {
	if call == nil {
		return false, nil
	}

	e.mu.Lock()
	if !e.removeLocked(call) {
		e.mu.Unlock()
		return false, nil
	}
	call.closeSilently()
	e.mu.Unlock()

	ch := e.channels[call.id.ChannelID]
	return true, e.send(ch, call.id, message.PacketClientError, nil, codes.Canceled)
}

// ClientStream sends one CLIENT_STREAM message for call. It returns false,
// sending nothing, if the call is not active. An encoding or send failure is
// returned with true and leaves the call active.
func (e *Endpoint) ClientStream(call *Call, payload any) (bool, error) {
	ch, ok := e.channelOf(call)
	if !ok {
		return false, nil
	}
	data, err := encodePayload(call.method.Request, payload)
	if err != nil {
		return true, fmt.Errorf("endpoint: encoding %s stream message: %w", call.method, err)
	}
	return true, e.send(ch, call.id, message.PacketClientStream, data, codes.OK)
}

// ClientStreamEnd tells the server the client stream is finished. Same
// results as ClientStream.
func (e *Endpoint) ClientStreamEnd(call *Call) (bool, error) {
	ch, ok := e.channelOf(call)
	if !ok {
		return false, nil
	}
	return true, e.send(ch, call.id, message.PacketClientRequestCompletion, nil, codes.OK)
}

// ProcessClientPacket routes an inbound packet to the call that owns it.
//
// Stream packets are delivered with the call left active. RESPONSE,
// SERVER_ERROR and CLIENT_ERROR end the call: it is removed and marked
// inactive, then the observer gets OnCompleted or OnError. A packet for an
// identity with no active call is dropped without any event; only a packet
// on an unknown channel is reported as unroutable.
//
// method is the method the caller resolved from the packet's ids; it may be
// nil. A packet whose ids disagree with method is dropped.
func (e *Endpoint) ProcessClientPacket(method *service.Method, p *message.Packet) DispatchResult {
	result := e.dispatch(method, p)
	e.metrics.dispatched.WithLabelValues(result.String()).Inc()
	return result
}

func (e *Endpoint) dispatch(method *service.Method, p *message.Packet) DispatchResult {
	if _, ok := e.channels[p.ChannelID]; !ok {
		e.logger.Warn("packet for unknown channel", zap.Stringer("packet", p))
		return DispatchUnroutable
	}
	if !p.Type.Valid() {
		e.logger.Warn("packet with unknown type", zap.Stringer("packet", p))
		return DispatchDropped
	}
	if method != nil && (method.ID() != p.MethodID || method.Service() == nil || method.Service().ID() != p.ServiceID) {
		e.logger.Warn("packet does not match method",
			zap.Stringer("packet", p), zap.String("method", method.FullName()))
		return DispatchDropped
	}

	id := IdentityOf(p)
	e.mu.Lock()
	call, ok := e.calls[id]
	if !ok {
		e.mu.Unlock()
		e.logger.Debug("no active call for packet", zap.Stringer("packet", p))
		return DispatchDropped
	}
	if p.Type.IsTerminal() {
		e.removeLocked(call)
		call.close()
	}
	e.mu.Unlock()

	switch p.Type {
	case message.PacketServerStream, message.PacketClientStream:
		call.handleStreamData(p.Payload)
	case message.PacketResponse:
		call.handleCompletion(p.Status, p.Payload)
	case message.PacketServerError, message.PacketClientError:
		call.handleError(p.Status)
	default:
		// REQUEST and CLIENT_REQUEST_COMPLETION carry nothing for the observer.
		e.logger.Debug("ignoring packet", zap.Stringer("packet", p))
	}
	return DispatchHandled
}

// AbortChannel ends every active call on channelID with OnError(status) and
// returns how many were ended. Nothing is sent. The client uses it when the
// connection behind a channel breaks.
func (e *Endpoint) AbortChannel(channelID uint32, status codes.Code) int {
	e.mu.Lock()
	var aborted []*Call
	for id, call := range e.calls {
		if id.ChannelID == channelID {
			aborted = append(aborted, call)
		}
	}
	for _, call := range aborted {
		e.removeLocked(call)
		call.close()
	}
	e.mu.Unlock()

	for _, call := range aborted {
		call.handleError(status)
	}
	if len(aborted) > 0 {
		e.logger.Info("aborted calls on channel",
			zap.Uint32("channel", channelID), zap.Int("calls", len(aborted)), zap.Stringer("status", status))
	}
	return len(aborted)
}

// register allocates an id, builds the call and inserts it into the table in
// one critical section. If the id wrapped onto a call that is still active
// for the same channel, service and method, that call is superseded: it is
// removed and gets OnError(ABORTED).
func (e *Endpoint) register(ch *transport.Channel, method *service.Method, factory CallFactory) (*Call, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil factory", ErrBadCallFactory)
	}
	var serviceID uint32
	if svc := method.Service(); svc != nil {
		serviceID = svc.ID()
	}

	e.mu.Lock()
	id := Identity{
		ChannelID: ch.ID(),
		ServiceID: serviceID,
		MethodID:  method.ID(),
		CallID:    e.ids.nextID(),
	}
	call := factory(e, id, method)
	if call == nil || call.endpoint != e || call.id != id || call.method != method || !call.activate() {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w for %s", ErrBadCallFactory, id)
	}

	superseded := e.calls[id]
	if superseded != nil {
		superseded.close()
		e.metrics.superseded.Inc()
	}
	e.calls[id] = call
	e.metrics.activeCalls.Set(float64(len(e.calls)))
	e.mu.Unlock()

	if superseded != nil {
		e.logger.Warn("call id wrapped onto an active call; superseding it", zap.Stringer("call", superseded))
		superseded.handleError(codes.Aborted)
	}
	return call, nil
}

// removeLocked deletes call from the table if it is the call registered
// under its identity. e.mu must be held.
func (e *Endpoint) removeLocked(call *Call) bool {
	if current, ok := e.calls[call.id]; !ok || current != call {
		return false
	}
	delete(e.calls, call.id)
	e.metrics.activeCalls.Set(float64(len(e.calls)))
	return true
}

// channelOf returns call's channel if call is the active call for its identity.
func (e *Endpoint) channelOf(call *Call) (*transport.Channel, bool) {
	if call == nil {
		return nil, false
	}
	e.mu.Lock()
	current, ok := e.calls[call.id]
	e.mu.Unlock()
	if !ok || current != call {
		return nil, false
	}
	ch, ok := e.channels[call.id.ChannelID]
	return ch, ok
}

func (e *Endpoint) send(ch *transport.Channel, id Identity, typ message.PacketType, payload []byte, status codes.Code) error {
	data, err := protocol.EncodePacket(&message.Packet{
		Type:      typ,
		ChannelID: id.ChannelID,
		ServiceID: id.ServiceID,
		MethodID:  id.MethodID,
		CallID:    id.CallID,
		Status:    status,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("endpoint: encoding %s: %w", typ, err)
	}

	if err := ch.Send(data); err != nil {
		e.metrics.sendFailures.WithLabelValues(typ.String()).Inc()
		e.logger.Warn("channel send failed",
			zap.Stringer("type", typ), zap.Stringer("call", id), zap.Error(err))
		return &SendError{Identity: id, Type: typ, Err: err}
	}
	e.metrics.packetsSent.WithLabelValues(typ.String()).Inc()
	return nil
}

func encodePayload(c codec.Codec, v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if c == nil {
		c = codec.GetCodec(codec.CodecTypeRaw)
	}
	return c.Encode(v)
}
