package middleware

import (
	"errors"
	"time"
)

// ErrSendTimeout is returned when the wrapped send does not finish in time.
var ErrSendTimeout = errors.New("middleware: send timed out")

// TimeOutMiddleware bounds how long a send may block. The underlying send
// keeps running after the timeout; its result is discarded.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next SendFunc) SendFunc {
		return func(data []byte) error {
			done := make(chan error, 1)
			go func() {
				done <- next(data)
			}()

			timer := time.NewTimer(timeout)
			defer timer.Stop()
			select {
			case err := <-done:
				return err
			case <-timer.C:
				return ErrSendTimeout
			}
		}
	}
}
