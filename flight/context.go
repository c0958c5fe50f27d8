package flight

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/metadata"
)

type requestMetaKey struct{}

// Observability headers read from every call.
const (
	HeaderTraceID   = "gridsource-trace-id"
	HeaderSessionID = "gridsource-client-session-id"
)

// RequestMeta holds the observability headers of a call.
type RequestMeta struct {
	TraceID   string
	SessionID string
}

// WithRequestMeta stores meta in ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, &meta)
}

// RequestMetaFromContext returns the stored metadata, or nil.
func RequestMetaFromContext(ctx context.Context) *RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(*RequestMeta)
	return meta
}

// EnrichContextMetadata stores the observability headers of an incoming
// call in ctx. Calls without metadata, and contexts that already carry it,
// are returned as is.
func EnrichContextMetadata(ctx context.Context) context.Context {
	if RequestMetaFromContext(ctx) != nil {
		return ctx
	}
	if _, ok := metadata.FromIncomingContext(ctx); !ok {
		return ctx
	}
	return WithRequestMeta(ctx, RequestMeta{
		TraceID:   firstValue(ctx, HeaderTraceID),
		SessionID: firstValue(ctx, HeaderSessionID),
	})
}

func firstValue(ctx context.Context, key string) string {
	if values := metadata.ValueFromIncomingContext(ctx, key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// loggerFor adds the call's trace and session ids to logger.
func loggerFor(ctx context.Context, logger *slog.Logger) *slog.Logger {
	meta := RequestMetaFromContext(ctx)
	if meta == nil {
		return logger
	}
	if meta.TraceID != "" {
		logger = logger.With("trace_id", meta.TraceID)
	}
	if meta.SessionID != "" {
		logger = logger.With("session_id", meta.SessionID)
	}
	return logger
}
