package controller

import (
	"context"
	"log/slog"
)

type requestIDKey struct{}

// WithRequestID tags ctx so the controller's log lines for the request carry
// a request_id attribute.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (c *Controller) log(ctx context.Context) *slog.Logger {
	if id := RequestID(ctx); id != "" {
		return c.logger.With("request_id", id)
	}
	return c.logger
}
