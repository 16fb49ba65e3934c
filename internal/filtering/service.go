// Package filtering decides whether an inbound message may be relayed.
package filtering

import (
	"context"
	"fmt"
	"strings"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
	"relay/internal/transport"
	"relay/pkg/cel"
	"relay/pkg/metrics"
	"relay/pkg/tracing"
)

type errorHandlingStatus int

const (
	errorHandlingDeny errorHandlingStatus = iota
	errorHandlingSkip
)

// Verdict is the outcome of Check. Reason and Rule are set only when the
// message is dropped.
type Verdict struct {
	Pass   bool
	Reason string
	Rule   string
}

const (
	ReasonContactInfo = "contact_info"
	ReasonRule        = "rule"
	ReasonRuleError   = "rule_error"
)

var passVerdict = Verdict{Pass: true}

type rule struct {
	name    string
	filter  *cel.Filter
	sources map[int64]struct{}
}

func (r rule) appliesTo(source int64) bool {
	if len(r.sources) == 0 {
		return true
	}
	_, ok := r.sources[source]
	return ok
}

type Service struct {
	contactSources map[int64]struct{}
	rules          []rule
	onError        string
	logger         logger.Logger
}

// NewService compiles the configured rules. An expression that does not
// compile to a boolean is a configuration error.
func NewService(cfg config.FilteringConfig, log logger.Logger) (*Service, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	s := &Service{
		contactSources: toSet(cfg.ContactFilterSources),
		rules:          make([]rule, 0, len(cfg.Rules)),
		onError:        strings.ToLower(cfg.Fallback.OnError),
		logger:         log,
	}
	if s.onError == "" {
		s.onError = constants.FallbackAllow
	}

	for i, rc := range cfg.Rules {
		name := rc.Name
		if name == "" {
			name = fmt.Sprintf("rule_%d", i)
		}
		f, err := evaluator.CompileFilter(rc.Expression)
		if err != nil {
			return nil, fmt.Errorf("filtering rule %q: %w", name, err)
		}
		s.rules = append(s.rules, rule{
			name:    name,
			filter:  f,
			sources: toSet(rc.Sources),
		})
	}

	return s, nil
}

// IsContactFiltered reports whether source is subject to the contact filter.
func (s *Service) IsContactFiltered(source int64) bool {
	_, ok := s.contactSources[source]
	return ok
}

// RuleCount returns the number of compiled rules.
func (s *Service) RuleCount() int {
	return len(s.rules)
}

// Check runs the contact filter and then every rule that applies to source.
// The returned error is non-nil only when ctx is done.
func (s *Service) Check(ctx context.Context, source int64, topic int, msg *transport.Message) (Verdict, error) {
	ctx, span := tracing.Start(ctx, "filtering.check")
	defer span.End()

	if s.IsContactFiltered(source) && ContainsContactInfo(msg.Text) {
		s.logger.InfowCtx(ctx, "Message dropped: contact info from filtered source",
			"preview", msg.Preview(constants.PreviewLength),
		)
		return Verdict{Reason: ReasonContactInfo}, nil
	}

	if len(s.rules) == 0 {
		return passVerdict, nil
	}

	in := cel.Input{
		ID:        int64(msg.ID),
		Source:    source,
		Topic:     int64(topic),
		Text:      msg.Text,
		HasMedia:  msg.HasMedia(),
		Protected: msg.Protected,
	}
	return s.evaluateRules(ctx, source, in)
}

func (s *Service) evaluateRules(ctx context.Context, source int64, in cel.Input) (Verdict, error) {
	for _, r := range s.rules {
		if err := ctx.Err(); err != nil {
			return Verdict{}, err
		}
		if !r.appliesTo(source) {
			continue
		}

		result, err := r.filter.Evaluate(ctx, in)
		if err != nil {
			metrics.IncFilterRuleEvaluation(r.name, "error")
			if s.handleEvaluationError(ctx, r, err) == errorHandlingDeny {
				return Verdict{Reason: ReasonRuleError, Rule: r.name}, nil
			}
			continue
		}

		if !result {
			metrics.IncFilterRuleEvaluation(r.name, "rejected")
			s.logger.InfowCtx(ctx, "Message dropped by rule",
				"rule_name", r.name,
			)
			return Verdict{Reason: ReasonRule, Rule: r.name}, nil
		}
		metrics.IncFilterRuleEvaluation(r.name, "passed")
	}

	return passVerdict, nil
}

func (s *Service) handleEvaluationError(ctx context.Context, r rule, err error) errorHandlingStatus {
	s.logger.ErrorwCtx(ctx, "Rule evaluation error",
		"rule_name", r.name,
		"expression", r.filter.Expression(),
		"error", err,
	)

	switch s.onError {
	case constants.FallbackDeny:
		metrics.IncFilterFallback("deny_on_error")
		s.logger.WarnwCtx(ctx, "Evaluation error, denying message (fallback: deny)",
			"rule_name", r.name,
		)
		return errorHandlingDeny
	default:
		metrics.IncFilterFallback("allow_on_error")
		s.logger.WarnwCtx(ctx, "Evaluation error, allowing message (fallback: allow)",
			"rule_name", r.name,
		)
		return errorHandlingSkip
	}
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
