package middleware

import (
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a send exceeds the channel's budget.
var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimitMiddleware 创建一个基于令牌桶算法的限流中间件
// Sends over budget fail immediately; the caller sees a send failure.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next SendFunc) SendFunc {
		return func(data []byte) error {
			if !limiter.Allow() {
				return ErrRateLimited
			}
			return next(data)
		}
	}
}
