package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"relay/internal/dispatch"
	"relay/internal/logger"
	"relay/internal/routing"
)

type staticDirectory map[int64]string

func (d staticDirectory) ChatName(_ context.Context, id int64) (string, error) {
	if name, ok := d[id]; ok {
		return name, nil
	}
	return "", errors.New("not found")
}

func TestPrintMappings(t *testing.T) {
	mappings := []routing.Mapping{
		{SourceID: -100, SourceTopicID: 5, TargetID: -200, TargetTopicID: 9},
		{SourceID: -300, TargetID: -400},
	}

	t.Run("ids only", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printMappings(context.Background(), &buf, mappings, nil))

		out := buf.String()
		assert.Contains(t, out, "SOURCE")
		assert.Contains(t, out, "-100#5")
		assert.Contains(t, out, "-200#9")
		assert.NotContains(t, out, "NAME")
	})

	t.Run("with names", func(t *testing.T) {
		names := dispatch.NewNameCache(staticDirectory{-100: "Signals", -200: "Mirror"}, logger.NewFromZap(zap.NewNop()))

		var buf bytes.Buffer
		require.NoError(t, printMappings(context.Background(), &buf, mappings, names))

		out := buf.String()
		assert.Contains(t, out, "Signals")
		assert.Contains(t, out, "Mirror")
		assert.Contains(t, out, "Unknown")
	})
}
