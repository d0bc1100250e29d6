package logctx

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys shared by the HTTP middleware chain and services. Gin stores
// them under the same string keys so both c.Get and ctx.Value work.
const (
	KeyLogger  = "logger"
	KeyTraceID = "traceID"
	KeyActor   = "actor"
)

type ctxKey string

// WithValue stores v under key in ctx using the package key type.
func WithValue(ctx context.Context, key string, v any) context.Context {
	return context.WithValue(ctx, ctxKey(key), v)
}

// Value reads a value stored with WithValue.
func Value(ctx context.Context, key string) any {
	if ctx == nil {
		return nil
	}
	return ctx.Value(ctxKey(key))
}

// FromGin returns a request-scoped logger from gin.Context if present,
// otherwise returns the provided base logger.
func FromGin(c *gin.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return base
	}
	if l, ok := c.Get(KeyLogger); ok {
		if lg, ok := l.(*zap.SugaredLogger); ok && lg != nil {
			return lg
		}
	}
	return FromCtx(c.Request.Context(), base)
}

// FromCtx returns a logger from context if set, otherwise attempts to enrich
// base with trace_id/actor from context values.
func FromCtx(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if ctx == nil {
		return base
	}
	if lg, ok := Value(ctx, KeyLogger).(*zap.SugaredLogger); ok && lg != nil {
		return lg
	}
	var fields []interface{}
	if tid, ok := Value(ctx, KeyTraceID).(string); ok && tid != "" {
		fields = append(fields, "trace_id", tid)
	}
	if actor, ok := Value(ctx, KeyActor).(string); ok && actor != "" {
		fields = append(fields, "actor", actor)
	}
	if len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}

// Actor returns the authenticated actor identifier carried by ctx, if any.
func Actor(ctx context.Context) string {
	if actor, ok := Value(ctx, KeyActor).(string); ok {
		return actor
	}
	return ""
}
