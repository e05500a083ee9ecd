// Package middleware wraps a channel's send capability.
//
// Middlewares compose in the onion model:
//
//	Chain(A, B, C)(send) → A(B(C(send)))
//	Execution order: A.before → B.before → C.before → send → C.after → B.after → A.after
//
// Wrap applies a chain to a transport.Output, so the Endpoint sees an
// ordinary channel and never knows the sends are rate limited or logged.
package middleware

import (
	"rpc-endpoint/transport"
)

type SendFunc func(data []byte) error

type Middleware func(next SendFunc) SendFunc

// Chain 将多个中间件组合成一个中间件
func Chain(middlewares ...Middleware) Middleware {
	return func(next SendFunc) SendFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Wrap returns an Output that runs every Send through middlewares before
// reaching out.
func Wrap(out transport.Output, middlewares ...Middleware) transport.Output {
	if len(middlewares) == 0 {
		return out
	}
	return transport.OutputFunc(Chain(middlewares...)(out.Send))
}
