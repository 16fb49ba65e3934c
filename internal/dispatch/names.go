package dispatch

import (
	"context"
	"strings"
	"sync"

	"relay/internal/constants"
	"relay/internal/logger"
	"relay/internal/transport"
	"relay/pkg/metrics"
)

// NameCache memoizes chat display names for log lines. A failed lookup is
// cached as "Unknown" and never retried for the life of the process.
type NameCache struct {
	dir    transport.Directory
	logger logger.Logger

	mu    sync.Mutex
	names map[int64]string
}

func NewNameCache(dir transport.Directory, log logger.Logger) *NameCache {
	return &NameCache{
		dir:    dir,
		logger: log,
		names:  make(map[int64]string),
	}
}

func (c *NameCache) Name(ctx context.Context, chatID int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name, ok := c.names[chatID]; ok {
		return name
	}

	name, err := c.dir.ChatName(ctx, chatID)
	if err != nil {
		c.logger.DebugwCtx(ctx, "Chat name lookup failed",
			"chat_id", chatID,
			"error", err,
		)
		name = constants.UnknownName
	}
	if strings.TrimSpace(name) == "" {
		name = constants.UnknownName
	}

	c.names[chatID] = name
	metrics.SetNameCacheSize(len(c.names))
	return name
}

// Len returns the number of cached entries.
func (c *NameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.names)
}
