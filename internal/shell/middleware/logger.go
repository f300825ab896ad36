package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Logger creates a logging middleware using zap
func Logger(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()

			err := next(ctx, req)

			fields := []zap.Field{
				zap.String("command", req.Command),
				zap.Duration("latency", time.Since(start)),
				zap.String("session_id", req.SessionID),
			}
			if req.ID != "" {
				fields = append(fields, zap.String("request_id", req.ID))
			}
			if req.OwnerID != uuid.Nil {
				fields = append(fields, zap.String("owner_id", req.OwnerID.String()))
			}

			if err != nil {
				logger.Warn("command failed", append(fields, zap.Error(err))...)
			} else {
				logger.Info("command", fields...)
			}

			return err
		}
	}
}
