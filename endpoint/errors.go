package endpoint

import (
	"errors"
	"fmt"

	"rpc-endpoint/message"
)

var (
	// ErrChannelUnknown is returned when an operation names a channel id the
	// Endpoint was not built with. No state is changed.
	ErrChannelUnknown = errors.New("endpoint: unknown channel")

	// ErrSendFailure matches every *SendError.
	ErrSendFailure = errors.New("endpoint: send failed")

	// ErrBadCallFactory is returned when a CallFactory returns nil, a call for
	// another endpoint or identity, or a call that was already registered.
	ErrBadCallFactory = errors.New("endpoint: call factory returned an unusable call")

	// ErrNoMethod is returned when a call is started without a method.
	ErrNoMethod = errors.New("endpoint: method is required")
)

// SendError reports a channel Send failure for one packet.
// errors.Is(err, ErrSendFailure) is true, and Err is reachable with errors.Is/As.
type SendError struct {
	Identity Identity
	Type     message.PacketType
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("endpoint: sending %s for %s: %v", e.Type, e.Identity, e.Err)
}

func (e *SendError) Unwrap() []error {
	return []error{ErrSendFailure, e.Err}
}

// DispatchResult is the outcome of routing one inbound packet.
type DispatchResult int

const (
	// DispatchHandled: an active call owned the packet.
	DispatchHandled DispatchResult = iota
	// DispatchDropped: the channel is known but no active call has the
	// packet's identity (late response, race with cancel, never existed).
	DispatchDropped
	// DispatchUnroutable: the packet names a channel this Endpoint does not have.
	DispatchUnroutable
)

// Routed reports whether the packet was structurally routable. Dropped
// packets count as routed; only an unknown channel does not.
func (r DispatchResult) Routed() bool {
	return r != DispatchUnroutable
}

func (r DispatchResult) String() string {
	switch r {
	case DispatchHandled:
		return "handled"
	case DispatchDropped:
		return "dropped"
	case DispatchUnroutable:
		return "unroutable"
	}
	return fmt.Sprintf("DispatchResult(%d)", int(r))
}
