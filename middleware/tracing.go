package middleware

import (
	"context"

	"github.com/shrek82/jpersist/store"
)

type contextKey string

// Context keys read by Tracing.
const (
	RequestIDKey contextKey = "request_id"
	TraceIDKey   contextKey = "trace_id"
	SourceKey    contextKey = "source"
)

// WithRequestID returns a context whose statements are logged with request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithTraceID returns a context whose statements are logged with trace_id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// WithSource returns a context whose statements are logged with the payload source.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, SourceKey, source)
}

// Tracing copies request identifiers from the context onto each statement's log fields.
type Tracing struct{}

var _ store.Middleware = Tracing{}

func NewTracing() Tracing {
	return Tracing{}
}

func (Tracing) Name() string {
	return "Tracing"
}

func (Tracing) Process(ctx context.Context, stmt *store.Statement, next store.ExecFunc) (*store.Result, error) {
	for _, key := range []contextKey{RequestIDKey, TraceIDKey, SourceKey} {
		v := ctx.Value(key)
		if v == nil {
			continue
		}
		if stmt.Fields == nil {
			stmt.Fields = make(map[string]any)
		}
		stmt.Fields[string(key)] = v
	}
	return next(ctx, stmt)
}
