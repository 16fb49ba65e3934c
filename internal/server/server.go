// Package server exposes the relay's health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
	"relay/pkg/health"
	"relay/pkg/middleware"
	"relay/pkg/tracing"
)

// Info is served on the root path.
type Info struct {
	Service  string `json:"service"`
	Version  string `json:"version"`
	Mappings int    `json:"mappings"`
	Sources  int    `json:"sources"`
}

type healthResponse struct {
	health.Health
	Service string `json:"service"`
}

type Server struct {
	cfg    config.ServerConfig
	router *gin.Engine
	http   *http.Server
	logger logger.Logger
}

func New(cfg config.ServerConfig, tracingEnabled bool, checks *health.CheckerRegistry, info Info, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if tracingEnabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		h := checks.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, healthResponse{Health: h, Service: info.Service})
	})

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, info)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		cfg:    cfg,
		router: router,
		logger: log,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout(),
			WriteTimeout: cfg.WriteTimeout(),
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfowCtx(ctx, "HTTP server starting", "port", s.cfg.Port)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return <-errCh
}

// StateSource reports a component's lifecycle state as text plus whether it
// is serving, stopped, or in between.
type StateSource interface {
	Health() (state string, serving, stopped bool)
}

// NewStateChecker reports src as unhealthy once stopped and degraded while
// not serving.
func NewStateChecker(name string, src StateSource) health.Checker {
	return health.NewCheckFunc(name, func(context.Context) error {
		state, serving, stopped := src.Health()
		switch {
		case stopped:
			return fmt.Errorf("%s is %s", name, state)
		case !serving:
			return health.Degraded(fmt.Sprintf("%s is %s", name, state))
		default:
			return nil
		}
	})
}

// BreakerSource lists the circuit breakers that are currently open.
type BreakerSource interface {
	Open() []string
}

// NewBreakerChecker reports degraded while any breaker in src is open.
func NewBreakerChecker(name string, src BreakerSource) health.Checker {
	return health.NewCheckFunc(name, func(context.Context) error {
		if open := src.Open(); len(open) > 0 {
			return health.Degraded("open circuits: " + strings.Join(open, ", "))
		}
		return nil
	})
}
