package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	originKey    contextKey = "origin"
	messageKey   contextKey = "message_type"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOrigin annotates context with the name of the context that issued a
// change (for example "background" or "cli-1234").
func WithOrigin(ctx context.Context, origin string) context.Context {
	if origin == "" {
		return ctx
	}
	return context.WithValue(ctx, originKey, origin)
}

// OriginFromContext returns the origin if present.
func OriginFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(originKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithMessageType annotates context with the operation being handled.
func WithMessageType(ctx context.Context, messageType string) context.Context {
	if messageType == "" {
		return ctx
	}
	return context.WithValue(ctx, messageKey, messageType)
}

// MessageTypeFromContext returns the operation name if present.
func MessageTypeFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(messageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
