package endpoint

import (
	"sync/atomic"

	"google.golang.org/grpc/codes"

	"rpc-endpoint/service"
)

// Observer receives the events of one call.
//
// OnNext is called for each stream message. Exactly one of OnCompleted or
// OnError ends the call, unless the call was cancelled or abandoned locally,
// in which case neither is called. Events are delivered from the goroutine
// that processes inbound packets; observers must not block it for long.
type Observer interface {
	OnNext(payload []byte)
	OnCompleted(status codes.Code, payload []byte)
	OnError(status codes.Code)
}

// ObserverFuncs adapts plain functions to Observer. Nil funcs are skipped.
type ObserverFuncs struct {
	Next      func(payload []byte)
	Completed func(status codes.Code, payload []byte)
	Error     func(status codes.Code)
}

func (o ObserverFuncs) OnNext(payload []byte) {
	if o.Next != nil {
		o.Next(payload)
	}
}

func (o ObserverFuncs) OnCompleted(status codes.Code, payload []byte) {
	if o.Completed != nil {
		o.Completed(status, payload)
	}
}

func (o ObserverFuncs) OnError(status codes.Code) {
	if o.Error != nil {
		o.Error(status)
	}
}

// CallFactory builds the Call for a newly allocated identity. The Endpoint
// calls it while holding its lock, so a factory must not call back into the
// Endpoint.
type CallFactory func(e *Endpoint, id Identity, method *service.Method) *Call

// ObserverFactory returns a CallFactory whose calls report to observer.
func ObserverFactory(observer Observer) CallFactory {
	return func(e *Endpoint, id Identity, method *service.Method) *Call {
		return NewCall(e, id, method, observer)
	}
}

const (
	callNew int32 = iota
	callActive
	callClosed
)

// Call is the client-side handle of one RPC.
//
// A Call starts out unregistered. It becomes active when its Endpoint inserts
// it into the active-call table and inactive, for good, when the Endpoint
// removes it. Only the Endpoint changes that state.
type Call struct {
	endpoint *Endpoint
	id       Identity
	method   *service.Method
	observer Observer

	state    atomic.Int32
	finished atomic.Bool // a terminal event was delivered or suppressed
}

// NewCall creates an unregistered call. A nil observer discards events.
func NewCall(e *Endpoint, id Identity, method *service.Method, observer Observer) *Call {
	if observer == nil {
		observer = ObserverFuncs{}
	}
	return &Call{
		endpoint: e,
		id:       id,
		method:   method,
		observer: observer,
	}
}

// Active reports whether the call is registered with its Endpoint.
func (c *Call) Active() bool {
	return c.state.Load() == callActive
}

func (c *Call) Identity() Identity {
	return c.id
}

func (c *Call) Method() *service.Method {
	return c.method
}

func (c *Call) Endpoint() *Endpoint {
	return c.endpoint
}

// Cancel is Endpoint.Cancel for this call.
func (c *Call) Cancel() (bool, error) {
	return c.endpoint.Cancel(c)
}

// Abandon is Endpoint.Abandon for this call.
func (c *Call) Abandon() bool {
	return c.endpoint.Abandon(c)
}

// Write is Endpoint.ClientStream for this call.
func (c *Call) Write(payload any) (bool, error) {
	return c.endpoint.ClientStream(c, payload)
}

// CloseClientStream is Endpoint.ClientStreamEnd for this call.
func (c *Call) CloseClientStream() (bool, error) {
	return c.endpoint.ClientStreamEnd(c)
}

// activate moves a fresh call to active. A call that was ever registered
// cannot be activated again.
func (c *Call) activate() bool {
	return c.state.CompareAndSwap(callNew, callActive)
}

// close marks the call inactive. Callers hold the Endpoint lock and have just
// removed the call from the table.
func (c *Call) close() {
	c.state.Store(callClosed)
}

// closeSilently closes the call and suppresses any terminal event. Used for
// cancel, abandon and send failures, which end the call without an event.
func (c *Call) closeSilently() {
	c.close()
	c.finished.Store(true)
}

// handleStreamData delivers one stream message. No-op once inactive.
func (c *Call) handleStreamData(payload []byte) {
	if !c.Active() {
		return
	}
	c.observer.OnNext(payload)
}

// handleCompletion delivers the final response. The Endpoint closes the call
// before delivering, so this is guarded by finished rather than Active; at
// most one terminal event reaches the observer.
func (c *Call) handleCompletion(status codes.Code, payload []byte) {
	if c.state.Load() != callClosed || !c.finished.CompareAndSwap(false, true) {
		return
	}
	c.observer.OnCompleted(status, payload)
}

// handleError delivers a terminal error. Same guard as handleCompletion.
func (c *Call) handleError(status codes.Code) {
	if c.state.Load() != callClosed || !c.finished.CompareAndSwap(false, true) {
		return
	}
	c.observer.OnError(status)
}

func (c *Call) String() string {
	if c.method != nil {
		return c.method.FullName() + "[" + c.id.String() + "]"
	}
	return c.id.String()
}
