package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	MessageIDKey   = "message_id"
	ServiceNameKey = "service_name"
	SourceIDKey    = "source_id"
)

type ctxKey string

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey(TraceIDKey), traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, ctxKey(MessageIDKey), messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ctxKey(ServiceNameKey), serviceName)
}

// WithSourceID tags the context with the normalized source chat id.
func WithSourceID(ctx context.Context, sourceID int64) context.Context {
	return context.WithValue(ctx, ctxKey(SourceIDKey), sourceID)
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(ctxKey(TraceIDKey)).(string); ok {
		return traceID
	}
	return ""
}

func GetMessageID(ctx context.Context) string {
	if messageID, ok := ctx.Value(ctxKey(MessageIDKey)).(string); ok {
		return messageID
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ctxKey(ServiceNameKey)).(string); ok {
		return serviceName
	}
	return ""
}

func GetSourceID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey(SourceIDKey)).(int64)
	return id, ok
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, TraceIDKey, traceID)
	}

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, MessageIDKey, messageID)
	}

	if sourceID, ok := GetSourceID(ctx); ok {
		fields = append(fields, SourceIDKey, sourceID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, ServiceNameKey, serviceName)
	}

	return fields
}
