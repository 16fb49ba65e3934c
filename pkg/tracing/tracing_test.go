package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"relay/internal/config"
)

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(config.TracingConfig{Enabled: false}, "relay")
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestChatAttributes(t *testing.T) {
	assert.Equal(t,
		[]attribute.KeyValue{attribute.Int64("target.chat_id", -200), attribute.Int("target.topic_id", 9)},
		ChatAttributes("target", -200, 9))
	assert.Len(t, ChatAttributes("source", -100, 0), 1)
}

func TestStartAndRecordError(t *testing.T) {
	ctx, span := Start(context.Background(), "test.span")
	defer span.End()

	assert.NotNil(t, ctx)
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
}
