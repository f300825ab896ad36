package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrPanic is returned in place of a command that panicked.
var ErrPanic = errors.New("command panicked")

// Recovery recovers from panics and logs the error
func Recovery(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()

					fields := []zap.Field{
						zap.Error(fmt.Errorf("panic recovered: %v", r)),
						zap.ByteString("stack", stack),
						zap.String("command", req.Command),
					}
					if req.ID != "" {
						fields = append(fields, zap.String("request_id", req.ID))
					}

					logger.Error("panic recovered", fields...)
					err = fmt.Errorf("%w: %v", ErrPanic, r)
				}
			}()

			return next(ctx, req)
		}
	}
}
