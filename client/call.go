package client

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"rpc-endpoint/codec"
	"rpc-endpoint/endpoint"
	"rpc-endpoint/service"
)

var (
	// ErrWrongMethodType is returned when a helper is used with a method of
	// another kind, e.g. Unary with a server streaming method.
	ErrWrongMethodType = errors.New("client: wrong method type")

	// ErrCallClosed is returned when writing to a stream whose call has ended.
	ErrCallClosed = errors.New("client: call is no longer active")
)

type outcome struct {
	status  codes.Code
	payload []byte
	failed  bool // OnError rather than OnCompleted
}

// Stream is a call whose outcome is awaited with Wait. Client and
// bidirectional streaming calls write with Send and CloseSend.
type Stream struct {
	client *Client
	call   *endpoint.Call
	done   chan outcome
}

func (c *Client) newStream(onNext func(payload []byte)) (*Stream, endpoint.CallFactory) {
	s := &Stream{client: c, done: make(chan outcome, 1)}
	obs := endpoint.ObserverFuncs{
		Next: onNext,
		Completed: func(st codes.Code, payload []byte) {
			s.done <- outcome{status: st, payload: payload}
		},
		Error: func(st codes.Code) {
			s.done <- outcome{status: st, failed: true}
		},
	}
	return s, endpoint.ObserverFactory(obs)
}

// Unary calls a unary method and decodes the response into reply. A nil
// reply discards the response. If ctx ends first the call is cancelled and
// ctx's error is returned.
//
// A non-OK status is returned as a grpc status error; use status.Code(err).
func (c *Client) Unary(ctx context.Context, channelID uint32, method *service.Method, req, reply any) error {
	if err := checkType(method, service.Unary); err != nil {
		return err
	}
	s, factory := c.newStream(nil)
	call, err := c.endpoint.InvokeRpc(channelID, method, factory, req)
	if err != nil {
		return err
	}
	s.call = call
	return s.Wait(ctx, reply)
}

// ServerStream calls a server streaming method. onNext receives every
// stream message as raw bytes; use the method's Response codec to decode
// them. It returns when the server completes the call.
func (c *Client) ServerStream(ctx context.Context, channelID uint32, method *service.Method, req any, onNext func(payload []byte)) error {
	if err := checkType(method, service.ServerStreaming); err != nil {
		return err
	}
	s, factory := c.newStream(onNext)
	call, err := c.endpoint.InvokeRpc(channelID, method, factory, req)
	if err != nil {
		return err
	}
	s.call = call
	return s.Wait(ctx, nil)
}

// Open starts a client or bidirectional streaming call. It sends an empty
// request; messages follow with Send. onNext may be nil for client streams.
func (c *Client) Open(channelID uint32, method *service.Method, onNext func(payload []byte)) (*Stream, error) {
	if method != nil && !method.Type().HasClientStream() {
		return nil, fmt.Errorf("%w: %s is %s", ErrWrongMethodType, method.FullName(), method.Type())
	}
	s, factory := c.newStream(onNext)
	call, err := c.endpoint.InvokeRpc(channelID, method, factory, nil)
	if err != nil {
		return nil, err
	}
	s.call = call
	return s, nil
}

// Listen registers a call for a stream the server sends without being
// asked. Nothing is sent.
func (c *Client) Listen(channelID uint32, method *service.Method, onNext func(payload []byte)) (*Stream, error) {
	s, factory := c.newStream(onNext)
	call, err := c.endpoint.OpenRpc(channelID, method, factory)
	if err != nil {
		return nil, err
	}
	s.call = call
	return s, nil
}

// Call returns the underlying call. End it with Stream.Cancel or
// Stream.Abandon rather than through the call, or Wait only returns when its
// context ends.
func (s *Stream) Call() *endpoint.Call {
	return s.call
}

// Send writes one client stream message.
func (s *Stream) Send(msg any) error {
	ok, err := s.call.Write(msg)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCallClosed
	}
	return nil
}

// CloseSend tells the server the client stream is complete.
func (s *Stream) CloseSend() error {
	ok, err := s.call.CloseClientStream()
	if err != nil {
		return err
	}
	if !ok {
		return ErrCallClosed
	}
	return nil
}

// Cancel ends the call locally and asks the server to stop. A pending Wait
// returns a Canceled status error.
func (s *Stream) Cancel() error {
	ok, err := s.call.Cancel()
	if ok {
		s.endLocally(codes.Canceled)
	}
	return err
}

// Abandon ends the call locally without telling the server. A pending Wait
// returns a Canceled status error.
func (s *Stream) Abandon() {
	if s.call.Abandon() {
		s.endLocally(codes.Canceled)
	}
}

// endLocally stands in for the terminal event a locally ended call never gets.
func (s *Stream) endLocally(st codes.Code) {
	s.endWith(outcome{status: st, failed: true})
}

func (s *Stream) endWith(out outcome) {
	select {
	case s.done <- out:
	default:
	}
}

// Wait blocks until the call ends and decodes the final response into reply.
// If ctx ends first the call is cancelled.
func (s *Stream) Wait(ctx context.Context, reply any) error {
	select {
	case out := <-s.done:
		// Put it back for later Waits.
		s.endWith(out)
		return s.finish(out, reply)
	case <-ctx.Done():
		if err := s.Cancel(); err != nil {
			s.client.logger.Debug("cancel not delivered", zap.Stringer("call", s.call), zap.Error(err))
		}
		return ctx.Err()
	}
}

func (s *Stream) finish(out outcome, reply any) error {
	method := s.call.Method()
	if out.failed {
		if out.status == codes.OK {
			out.status = codes.Unknown
		}
		return status.Errorf(out.status, "%s failed", method.FullName())
	}
	if out.status != codes.OK {
		return status.Errorf(out.status, "%s completed with %s", method.FullName(), out.status)
	}
	if reply == nil || len(out.payload) == 0 {
		return nil
	}
	c := method.Response
	if c == nil {
		c = codec.GetCodec(codec.CodecTypeRaw)
	}
	if err := c.Decode(out.payload, reply); err != nil {
		return fmt.Errorf("client: decoding %s response: %w", method.FullName(), err)
	}
	return nil
}

func checkType(method *service.Method, want service.MethodType) error {
	if method == nil {
		return endpoint.ErrNoMethod
	}
	if method.Type() != want {
		return fmt.Errorf("%w: %s is %s", ErrWrongMethodType, method.FullName(), method.Type())
	}
	return nil
}
