// Package session keeps the transport connection alive and decides, per
// failure, whether to reconnect or stop.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"relay/internal/config"
	"relay/internal/logger"
	"relay/internal/transport"
	apperrors "relay/pkg/errors"
	"relay/pkg/metrics"
	"relay/pkg/retry"
)

type State int32

const (
	StateConnecting State = iota
	StateRunning
	StateReconnecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Cause string

const (
	CauseClean       Cause = "clean"
	CauseSkew        Cause = "protocol_skew"
	CauseInvalidated Cause = "session_invalidated"
	CauseUnknown     Cause = "unknown"
)

// Classify maps the error that ended a listen run to a recovery cause. Any
// error observed after ctx is done counts as a clean stop.
func Classify(ctx context.Context, err error) Cause {
	switch {
	case err == nil, ctx.Err() != nil, errors.Is(err, context.Canceled):
		return CauseClean
	case transport.IsSessionInvalidated(err):
		return CauseInvalidated
	case transport.IsProtocolSkew(err):
		return CauseSkew
	default:
		return CauseUnknown
	}
}

type Options struct {
	// Cooldown is the fixed wait before reconnecting after protocol skew.
	Cooldown time.Duration
	// MaxReconnects bounds skew reconnects; 0 means unlimited.
	MaxReconnects int
	ConnectRetry  retry.Policy
}

func OptionsFromConfig(cfg config.SessionConfig) Options {
	return Options{
		Cooldown:      cfg.Cooldown(),
		MaxReconnects: cfg.MaxReconnects,
		ConnectRetry:  retry.FromConfig(cfg.ConnectRetry),
	}
}

type Supervisor struct {
	session transport.Session
	chats   []int64
	handler transport.Handler
	opts    Options
	logger  logger.Logger

	state atomic.Int32
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSupervisor(session transport.Session, chats []int64, handler transport.Handler, opts Options, log logger.Logger) *Supervisor {
	s := &Supervisor{
		session: session,
		chats:   chats,
		handler: handler,
		opts:    opts,
		logger:  log,
		sleep:   sleepCtx,
	}
	s.setState(StateConnecting)
	return s
}

func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Health reports the current state for the health endpoint.
func (s *Supervisor) Health() (state string, serving, stopped bool) {
	st := s.State()
	return st.String(), st == StateRunning, st == StateTerminated
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	metrics.SetSessionState(int(st))
}

// Run connects and listens until ctx is cancelled (nil), the session is
// invalidated, or an unclassified error occurs. Protocol skew triggers a
// cooldown and a reconnect with the same handler.
func (s *Supervisor) Run(ctx context.Context) error {
	reconnects := 0

	for {
		if err := s.connect(ctx); err != nil {
			s.setState(StateTerminated)
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		s.setState(StateRunning)
		s.logger.InfowCtx(ctx, "Listening for messages",
			"chats", len(s.chats),
			"reconnects", reconnects,
		)

		err := s.session.Listen(ctx, s.chats, s.handler)

		switch Classify(ctx, err) {
		case CauseClean:
			s.setState(StateTerminated)
			s.logger.InfowCtx(ctx, "Session stopped")
			return nil

		case CauseSkew:
			if s.opts.MaxReconnects > 0 && reconnects >= s.opts.MaxReconnects {
				s.setState(StateTerminated)
				s.logger.ErrorwCtx(ctx, "Reconnect limit reached",
					"max_reconnects", s.opts.MaxReconnects,
					"error", err,
				)
				return fmt.Errorf("reconnect limit %d reached: %w", s.opts.MaxReconnects, err)
			}
			reconnects++
			metrics.IncSessionReconnect(string(CauseSkew))
			s.setState(StateReconnecting)
			s.logger.WarnwCtx(ctx, "Protocol skew, reconnecting after cooldown",
				"cooldown", s.opts.Cooldown,
				"attempt", reconnects,
				"error", err,
			)
			if err := s.sleep(ctx, s.opts.Cooldown); err != nil {
				s.setState(StateTerminated)
				return nil
			}

		case CauseInvalidated:
			s.setState(StateTerminated)
			s.logger.ErrorwCtx(ctx, "Session invalidated, not reconnecting",
				"error", err,
			)
			return apperrors.ErrSessionInvalidated.WithCause(err)

		default:
			s.setState(StateTerminated)
			s.logger.ErrorwCtx(ctx, "Unhandled session error",
				"error", err,
				"error_type", fmt.Sprintf("%T", err),
			)
			return apperrors.ErrUnhandled.WithCause(err)
		}
	}
}

func (s *Supervisor) connect(ctx context.Context) error {
	err := retry.RetryWithCallback(ctx, s.opts.ConnectRetry, func() error {
		err := s.session.Connect(ctx)
		if transport.IsSessionInvalidated(err) {
			return retry.NewFatalError(err)
		}
		return err
	}, func(attempt int, err error, next time.Duration) {
		s.logger.WarnwCtx(ctx, "Connect failed, retrying",
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
	if err == nil {
		return nil
	}

	if transport.IsSessionInvalidated(err) {
		s.logger.ErrorwCtx(ctx, "Session invalidated during connect", "error", err)
		return apperrors.ErrSessionInvalidated.WithCause(err)
	}
	s.logger.ErrorwCtx(ctx, "Could not connect", "error", err)
	return apperrors.ErrConnectFailed.WithCause(err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
