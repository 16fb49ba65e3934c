// Package delivery sends a message to its resolved destinations.
package delivery

import (
	"context"
	"fmt"
	"time"

	"relay/internal/config"
	"relay/internal/logger"
	"relay/internal/routing"
	"relay/internal/transport"
	"relay/pkg/circuitbreaker"
	apperrors "relay/pkg/errors"
	"relay/pkg/metrics"
	"relay/pkg/ratelimit"
	"relay/pkg/tracing"
)

type Outcome string

const (
	OutcomeCopied     Outcome = "copied"
	OutcomeReuploaded Outcome = "reuploaded"
	OutcomeFailed     Outcome = "failed"
	OutcomeSkipped    Outcome = "skipped"
)

// Result describes one destination attempt. Err is set for failed and
// skipped outcomes.
type Result struct {
	Destination routing.Destination
	Outcome     Outcome
	Err         error
	Duration    time.Duration
}

func (r Result) Delivered() bool {
	return r.Outcome == OutcomeCopied || r.Outcome == OutcomeReuploaded
}

// Options are the tunables of a Pipeline. Zero values disable the optional
// limiter and breakers.
type Options struct {
	Delay         time.Duration
	TrailingDelay bool
	TempDir       string
	MaxFloodWait  time.Duration
	Limiter       *ratelimit.Limiter
	Breakers      *circuitbreaker.Registry
}

// OptionsFromConfig builds Options from the delivery section.
func OptionsFromConfig(cfg config.DeliveryConfig) Options {
	opts := Options{
		Delay:         cfg.Delay(),
		TrailingDelay: cfg.TrailingDelay,
		TempDir:       cfg.TempDir,
		MaxFloodWait:  time.Duration(cfg.MaxFloodWaitSeconds) * time.Second,
		Limiter:       ratelimit.New(cfg.MaxSendsPerSecond),
	}
	if cfg.CircuitBreaker.Enabled {
		opts.Breakers = circuitbreaker.NewRegistry(func(name string) circuitbreaker.Config {
			return circuitbreaker.FromConfig("delivery:"+name, cfg.CircuitBreaker)
		})
	}
	return opts
}

type Pipeline struct {
	sender transport.Sender
	opts   Options
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewPipeline(sender transport.Sender, opts Options, log logger.Logger) *Pipeline {
	return &Pipeline{
		sender: sender,
		opts:   opts,
		logger: log,
		sleep:  sleepCtx,
	}
}

// DeliverAll visits dests in order. A failed destination never stops the
// ones after it. The configured delay follows every attempt, and the last
// one only when trailing delay is enabled. Cancellation ends the walk early
// with the results gathered so far.
func (p *Pipeline) DeliverAll(ctx context.Context, msg *transport.Message, dests []routing.Destination) []Result {
	results := make([]Result, 0, len(dests))

	for i, dest := range dests {
		if ctx.Err() != nil {
			break
		}
		results = append(results, p.Deliver(ctx, msg, dest))

		last := i == len(dests)-1
		if p.opts.Delay > 0 && (!last || p.opts.TrailingDelay) {
			if err := p.sleep(ctx, p.opts.Delay); err != nil {
				break
			}
		}
	}

	return results
}

// Deliver sends msg to one destination, falling back to a local re-upload
// when the source protects its media. A panic in the sender is reported as
// a failed outcome.
func (p *Pipeline) Deliver(ctx context.Context, msg *transport.Message, dest routing.Destination) Result {
	ctx, span := tracing.Start(ctx, "delivery.deliver", tracing.ChatAttributes("target", dest.TargetID, dest.TargetTopicID)...)
	defer span.End()

	start := time.Now()
	to := transport.Address{ChatID: dest.TargetID, TopicID: dest.TargetTopicID}

	var outcome Outcome
	// Recovered here so the breaker records the panic as a failure.
	attempt := func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.RecoverPanic(r)
				p.logger.ErrorwCtx(ctx, "Panic during delivery",
					"target_id", dest.TargetID,
					"target_topic_id", dest.TargetTopicID,
					"error", err,
					"stack_trace", apperrors.StackTrace(err),
				)
			}
		}()
		outcome, err = p.attempt(ctx, msg, to)
		return err
	}

	var err error
	if p.opts.Breakers != nil {
		err = p.opts.Breakers.Get(dest.String()).Execute(ctx, attempt)
	} else {
		err = attempt(ctx)
	}

	switch {
	case err == nil:
	case circuitbreaker.IsRejected(err):
		outcome = OutcomeSkipped
		p.logger.WarnwCtx(ctx, "Destination skipped: circuit open",
			"target_id", dest.TargetID,
			"target_topic_id", dest.TargetTopicID,
		)
	default:
		outcome = OutcomeFailed
		p.logger.ErrorwCtx(ctx, "Delivery failed",
			"target_id", dest.TargetID,
			"target_topic_id", dest.TargetTopicID,
			"error", err,
		)
	}
	tracing.RecordError(span, err)

	res := Result{
		Destination: dest,
		Outcome:     outcome,
		Err:         err,
		Duration:    time.Since(start),
	}
	metrics.ObserveDelivery(string(outcome), res.Duration)
	return res
}

func (p *Pipeline) attempt(ctx context.Context, msg *transport.Message, to transport.Address) (Outcome, error) {
	err := p.call(ctx, func(ctx context.Context) error {
		return p.sender.Send(ctx, msg, to)
	})
	if err == nil {
		return OutcomeCopied, nil
	}

	if !transport.IsProtectedContent(err) || !msg.HasMedia() {
		return OutcomeFailed, apperrors.ErrDeliveryFailed.WithCause(err)
	}

	p.logger.WarnwCtx(ctx, "Protected content, falling back to download and re-upload",
		"target_id", to.ChatID,
		"target_topic_id", to.TopicID,
		"media_kind", msg.Media.Kind,
	)

	if err := p.reupload(ctx, msg, to); err != nil {
		metrics.IncFallback("failed")
		return OutcomeFailed, apperrors.ErrFallbackFailed.WithCause(err)
	}

	metrics.IncFallback("succeeded")
	p.logger.InfowCtx(ctx, "Protected media re-uploaded",
		"target_id", to.ChatID,
		"target_topic_id", to.TopicID,
	)
	return OutcomeReuploaded, nil
}

func (p *Pipeline) reupload(ctx context.Context, msg *transport.Message, to transport.Address) error {
	return withTempFile(p.opts.TempDir, tempPattern(msg), func(path string) error {
		err := p.call(ctx, func(ctx context.Context) error {
			return p.sender.Download(ctx, msg, path)
		})
		if err != nil {
			return fmt.Errorf("download media: %w", err)
		}

		err = p.call(ctx, func(ctx context.Context) error {
			return p.sender.SendLocal(ctx, msg, to, path)
		})
		if err != nil {
			return fmt.Errorf("upload media: %w", err)
		}
		return nil
	})
}

// call performs one transport call under the send limiter. A flood wait no
// longer than MaxFloodWait is honored and the call is retried once.
func (p *Pipeline) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.opts.Limiter.Wait(ctx); err != nil {
		return err
	}

	err := fn(ctx)
	wait, ok := transport.FloodWait(err)
	if !ok {
		return err
	}

	if p.opts.MaxFloodWait <= 0 || wait > p.opts.MaxFloodWait {
		metrics.IncFloodWait("gave_up")
		p.logger.WarnwCtx(ctx, "Flood wait exceeds limit, not retrying",
			"retry_after", wait,
			"max_flood_wait", p.opts.MaxFloodWait,
		)
		return err
	}

	metrics.IncFloodWait("retried")
	p.logger.WarnwCtx(ctx, "Flood wait, retrying once",
		"retry_after", wait,
	)
	if err := p.sleep(ctx, wait); err != nil {
		return err
	}
	if err := p.opts.Limiter.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
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
