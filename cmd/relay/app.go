package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/delivery"
	"relay/internal/dispatch"
	"relay/internal/filtering"
	"relay/internal/logger"
	"relay/internal/routing"
	"relay/internal/server"
	"relay/internal/session"
	"relay/internal/transport/telegram"
	"relay/pkg/bootstrap"
	"relay/pkg/circuitbreaker"
	"relay/pkg/health"
	"relay/pkg/logging"
	"relay/pkg/metrics"
	"relay/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	mappings   []routing.Mapping
	index      *routing.Index
	client     *telegram.Client
	names      *dispatch.NameCache
	supervisor *session.Supervisor
	server     *server.Server
	breakers   *circuitbreaker.Registry
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base: bootstrap.NewBase(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.OnShutdown("tracer provider", tp.Shutdown)

	metrics.RegisterRelayMetrics()
	metrics.RegisterFilteringMetrics()
	metrics.RegisterSessionMetrics()
	if a.Config.Delivery.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.mappings = routing.FromConfig(a.Config.Mappings)
	a.index = routing.Build(a.mappings)

	client, err := telegram.New(a.Config.Telegram, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create telegram client: %w", err)
	}
	a.client = client
	a.OnShutdown("telegram client", func(context.Context) error {
		return client.Close()
	})

	filter, err := filtering.NewService(a.Config.Filtering, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create filtering service: %w", err)
	}

	deliveryOpts := delivery.OptionsFromConfig(a.Config.Delivery)
	a.breakers = deliveryOpts.Breakers
	pipeline := delivery.NewPipeline(client, deliveryOpts, a.Logger)
	a.names = dispatch.NewNameCache(client, a.Logger)
	dispatcher := dispatch.NewDispatcher(a.index, filter, pipeline, a.names, a.Logger)

	a.supervisor = session.NewSupervisor(client, a.index.Sources(), dispatcher.Handle,
		session.OptionsFromConfig(a.Config.Session), a.Logger)

	a.initHTTPServer()

	a.Logger.InfowCtx(ctx, "Relay initialized",
		"mappings", a.index.Len(),
		"sources", len(a.index.Sources()),
		"filter_rules", filter.RuleCount(),
	)
	return nil
}

func (a *App) initHTTPServer() {
	checks := health.NewCheckerRegistry()
	checks.Register(server.NewStateChecker("session", a.supervisor))
	if a.breakers != nil {
		checks.Register(server.NewBreakerChecker("delivery", a.breakers))
	}

	info := server.Info{
		Service:  constants.ServiceName,
		Version:  version,
		Mappings: a.index.Len(),
		Sources:  len(a.index.Sources()),
	}
	a.server = server.New(a.Config.Server, a.Config.Tracing.Enabled, checks, info, a.Logger)
}

// Run blocks until ctx is cancelled or the session supervisor stops with an
// error. The HTTP server stops with it either way.
func (a *App) Run(ctx context.Context) error {
	a.checkAccess(ctx)
	a.logMappings(ctx)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Run(gCtx)
	})

	g.Go(func() error {
		err := a.supervisor.Run(gCtx)
		if err == nil && ctx.Err() == nil {
			return fmt.Errorf("session supervisor stopped unexpectedly")
		}
		return err
	})

	return g.Wait()
}

// checkAccess looks up every mapped chat once. A chat the bot cannot see is
// reported but does not stop startup.
func (a *App) checkAccess(ctx context.Context) {
	seen := make(map[int64]struct{})
	for _, m := range a.mappings {
		for _, id := range []int64{m.SourceID, m.TargetID} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			checkCtx, cancel := context.WithTimeout(ctx, constants.AccessCheckTimeout)
			_, err := a.client.ChatName(checkCtx, id)
			cancel()
			if err != nil {
				a.Logger.WarnwCtx(ctx, "Cannot access chat",
					"chat_id", id,
					"error", err,
				)
			}
		}
	}
}

func (a *App) logMappings(ctx context.Context) {
	ctx = logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(ctx, "Active mappings", "count", len(a.mappings))

	for _, m := range a.mappings {
		from := routing.Destination{TargetID: m.SourceID, TargetTopicID: m.SourceTopicID}
		to := routing.Destination{TargetID: m.TargetID, TargetTopicID: m.TargetTopicID}
		a.Logger.InfowCtx(ctx, "Mapping",
			"source", from.String(),
			"source_name", a.names.Name(ctx, m.SourceID),
			"target", to.String(),
			"target_name", a.names.Name(ctx, m.TargetID),
		)
	}
}
