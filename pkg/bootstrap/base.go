package bootstrap

import (
	"context"
	"fmt"

	"relay/internal/config"
	"relay/internal/logger"
)

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Base holds what every process needs and the resources to release on
// shutdown.
type Base struct {
	Config *config.Config
	Logger logger.Logger

	closers []closer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// OnShutdown registers fn to run on Shutdown. Closers run in reverse order of
// registration.
func (b *Base) OnShutdown(name string, fn func(ctx context.Context) error) {
	b.closers = append(b.closers, closer{name: name, fn: fn})
}

func (b *Base) Shutdown(ctx context.Context) error {
	b.Logger.InfowCtx(ctx, "Shutting down application...")

	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		c := b.closers[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s close error: %w", c.name, err))
		}
	}
	b.closers = nil

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.InfowCtx(ctx, "Application exited successfully")
	return nil
}
