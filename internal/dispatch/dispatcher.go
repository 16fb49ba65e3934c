// Package dispatch turns one inbound message into filtered, routed
// deliveries.
package dispatch

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"relay/internal/constants"
	"relay/internal/delivery"
	"relay/internal/filtering"
	"relay/internal/logger"
	"relay/internal/routing"
	"relay/internal/transport"
	apperrors "relay/pkg/errors"
	"relay/pkg/logging"
	"relay/pkg/metrics"
	"relay/pkg/tracing"
)

type Filter interface {
	Check(ctx context.Context, source int64, topic int, msg *transport.Message) (filtering.Verdict, error)
}

type Deliverer interface {
	DeliverAll(ctx context.Context, msg *transport.Message, dests []routing.Destination) []delivery.Result
}

type Dispatcher struct {
	index    *routing.Index
	filter   Filter
	pipeline Deliverer
	names    *NameCache
	logger   logger.Logger
}

// NewDispatcher wires the stages. filter may be nil.
func NewDispatcher(index *routing.Index, filter Filter, pipeline Deliverer, names *NameCache, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		index:    index,
		filter:   filter,
		pipeline: pipeline,
		names:    names,
		logger:   log,
	}
}

// Handle processes one message. It never returns an error for a message it
// could not relay and never lets a panic escape. The only error returned is
// ctx's, when the listener is shutting down.
func (d *Dispatcher) Handle(ctx context.Context, msg *transport.Message) (err error) {
	source := routing.NormalizeChatID(msg.ChatID)

	ctx = logging.WithTraceID(ctx, uuid.NewString())
	ctx = logging.WithMessageID(ctx, strconv.Itoa(msg.ID))
	ctx = logging.WithSourceID(ctx, source)

	ctx, span := tracing.Start(ctx, "dispatch.handle", tracing.ChatAttributes("source", source, 0)...)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			perr := apperrors.RecoverPanic(r)
			metrics.IncMessages(constants.MessageStatusPanic)
			tracing.RecordError(span, perr)
			d.logger.ErrorwCtx(ctx, "Panic while handling message",
				"error", perr,
				"stack_trace", apperrors.StackTrace(perr),
			)
			err = nil
		}
	}()

	if msg.Service {
		metrics.IncMessages(constants.MessageStatusService)
		d.logger.DebugwCtx(ctx, "Ignoring service message")
		return nil
	}

	topic, dests := d.index.Route(source, msg)

	if d.filter != nil {
		verdict, err := d.filter.Check(ctx, source, topic, msg)
		if err != nil {
			return err
		}
		if !verdict.Pass {
			metrics.IncMessages(constants.MessageStatusFiltered)
			return nil
		}
	}

	if len(dests) == 0 {
		metrics.IncMessages(constants.MessageStatusNoRoute)
		d.logger.DebugwCtx(ctx, "No route for message",
			"topic_id", topic,
		)
		return nil
	}

	d.logger.InfowCtx(ctx, "New message",
		"source_name", d.names.Name(ctx, source),
		"topic_id", topic,
		"preview", msg.Preview(constants.PreviewLength),
		"destinations", len(dests),
	)

	results := d.pipeline.DeliverAll(ctx, msg, dests)
	d.report(ctx, results, len(dests))
	return ctx.Err()
}

func (d *Dispatcher) report(ctx context.Context, results []delivery.Result, total int) {
	delivered := 0
	for i, res := range results {
		if !res.Delivered() {
			continue
		}
		delivered++
		d.logger.InfowCtx(ctx, "Delivered",
			"index", i+1,
			"total", total,
			"outcome", res.Outcome,
			"target_name", d.names.Name(ctx, res.Destination.TargetID),
			"target_id", res.Destination.TargetID,
			"target_topic_id", res.Destination.TargetTopicID,
		)
	}

	switch {
	case delivered == total:
		metrics.IncMessages(constants.MessageStatusDelivered)
	case delivered == 0:
		metrics.IncMessages(constants.MessageStatusFailed)
	default:
		metrics.IncMessages(constants.MessageStatusPartial)
	}
}
