package middleware

import (
	"context"

	"github.com/google/uuid"
)

// RequestID assigns a unique id to each command that arrives without one
func RequestID() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) error {
			if req.ID == "" {
				req.ID = uuid.NewString()
			}
			return next(ctx, req)
		}
	}
}
