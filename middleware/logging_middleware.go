package middleware

import (
	"time"

	"go.uber.org/zap"

	"rpc-endpoint/protocol"
)

// LoggingMiddleware logs every packet sent, with its duration, at debug level
// and every failed send at warn level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next SendFunc) SendFunc {
		return func(data []byte) error {
			start := time.Now()
			err := next(data)
			fields := []zap.Field{zap.Int("bytes", len(data)), zap.Duration("duration", time.Since(start))}
			if p, decodeErr := protocol.DecodePacket(data); decodeErr == nil {
				fields = append(fields, zap.Stringer("packet", p))
			}
			if err != nil {
				logger.Warn("send failed", append(fields, zap.Error(err))...)
				return err
			}
			logger.Debug("sent", fields...)
			return nil
		}
	}
}
