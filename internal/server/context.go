package server

import "context"

type contextKey int

const (
	ctxKeyRequestID contextKey = iota
	ctxKeyBearer
)

// RequestIDFromContext returns the request ID from the context, if present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func withBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyBearer, token)
}

// BearerFromContext returns the upstream bearer token attached by the auth
// middleware, or "".
func BearerFromContext(ctx context.Context) string {
	t, _ := ctx.Value(ctxKeyBearer).(string)
	return t
}
