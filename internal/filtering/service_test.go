package filtering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"relay/internal/config"
	"relay/internal/logger"
	"relay/internal/transport"
)

const (
	filteredSource   int64 = -100
	unfilteredSource int64 = -300
)

func newService(t *testing.T, cfg config.FilteringConfig) (*Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	svc, err := NewService(cfg, logger.NewFromZap(zap.New(core)))
	require.NoError(t, err)
	return svc, logs
}

func TestCheck_ContactFilterOnlyForConfiguredSources(t *testing.T) {
	svc, logs := newService(t, config.FilteringConfig{
		ContactFilterSources: []int64{filteredSource},
	})
	msg := &transport.Message{ID: 1, Text: "join t.me/xyz"}

	v, err := svc.Check(context.Background(), filteredSource, 0, msg)
	require.NoError(t, err)
	assert.False(t, v.Pass)
	assert.Equal(t, ReasonContactInfo, v.Reason)
	assert.Equal(t, 1, logs.FilterMessage("Message dropped: contact info from filtered source").Len())

	v, err = svc.Check(context.Background(), unfilteredSource, 0, msg)
	require.NoError(t, err)
	assert.True(t, v.Pass)

	v, err = svc.Check(context.Background(), filteredSource, 0, &transport.Message{Text: "BUY EURUSD now"})
	require.NoError(t, err)
	assert.True(t, v.Pass)
}

func TestCheck_Rules(t *testing.T) {
	svc, _ := newService(t, config.FilteringConfig{
		Rules: []config.RuleConfig{
			{Name: "no_promo", Expression: `!text.lowerAscii().contains("promo")`},
			{Name: "topic_5_text_only", Expression: `topic != 5 || !has_media`, Sources: []int64{-100}},
		},
	})
	assert.Equal(t, 2, svc.RuleCount())

	tests := []struct {
		name     string
		source   int64
		topic    int
		msg      transport.Message
		wantPass bool
		wantRule string
	}{
		{
			name:     "passes every rule",
			source:   -100,
			topic:    5,
			msg:      transport.Message{Text: "entry 1.2345"},
			wantPass: true,
		},
		{
			name:     "first rule rejects",
			source:   -300,
			msg:      transport.Message{Text: "PROMO today"},
			wantRule: "no_promo",
		},
		{
			name:     "source-scoped rule rejects",
			source:   -100,
			topic:    5,
			msg:      transport.Message{Media: &transport.Media{Kind: transport.MediaPhoto}},
			wantRule: "topic_5_text_only",
		},
		{
			name:     "source-scoped rule skipped for other sources",
			source:   -300,
			topic:    5,
			msg:      transport.Message{Media: &transport.Media{Kind: transport.MediaPhoto}},
			wantPass: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			v, err := svc.Check(context.Background(), tt.source, tt.topic, &msg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPass, v.Pass)
			assert.Equal(t, tt.wantRule, v.Rule)
		})
	}
}

func TestCheck_EvaluationErrorFallback(t *testing.T) {
	failing := config.RuleConfig{Name: "div", Expression: `10 / (topic - topic) > 1`}

	allow, _ := newService(t, config.FilteringConfig{
		Rules:    []config.RuleConfig{failing},
		Fallback: config.FallbackConfig{OnError: "allow"},
	})
	v, err := allow.Check(context.Background(), -100, 3, &transport.Message{Text: "x"})
	require.NoError(t, err)
	assert.True(t, v.Pass)

	deny, logs := newService(t, config.FilteringConfig{
		Rules:    []config.RuleConfig{failing},
		Fallback: config.FallbackConfig{OnError: "DENY"},
	})
	v, err = deny.Check(context.Background(), -100, 3, &transport.Message{Text: "x"})
	require.NoError(t, err)
	assert.False(t, v.Pass)
	assert.Equal(t, ReasonRuleError, v.Reason)
	assert.Equal(t, "div", v.Rule)
	assert.Equal(t, 1, logs.FilterMessage("Rule evaluation error").Len())
}

func TestCheck_CancelledContext(t *testing.T) {
	svc, _ := newService(t, config.FilteringConfig{
		Rules: []config.RuleConfig{{Expression: `true`}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Check(ctx, -100, 0, &transport.Message{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewService_InvalidRule(t *testing.T) {
	_, err := NewService(config.FilteringConfig{
		Rules: []config.RuleConfig{{Name: "bad", Expression: `size(text)`}},
	}, logger.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}
