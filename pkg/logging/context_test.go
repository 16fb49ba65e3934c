package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithMessageID(ctx, "42")
	ctx = WithSourceID(ctx, -1001234)
	ctx = WithServiceName(ctx, "relay")

	assert.Equal(t, []interface{}{
		"trace_id", "trace-1",
		"message_id", "42",
		"source_id", int64(-1001234),
		"service_name", "relay",
	}, GetLogFields(ctx))
}

func TestContextKeysDoNotCollideWithPlainStrings(t *testing.T) {
	ctx := context.WithValue(context.Background(), "trace_id", "plain")
	assert.Equal(t, "", GetTraceID(ctx))
}
