package middleware

import (
	"context"

	"github.com/google/uuid"
)

// Request describes one menu command as it travels through the middleware chain.
type Request struct {
	ID        string
	Command   string
	SessionID string
	OwnerID   uuid.UUID
}

// Handler executes a menu command.
type Handler func(ctx context.Context, req *Request) error

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Chain wraps h so that the first middleware is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
