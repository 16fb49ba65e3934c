package config

import (
	"fmt"
	"strings"

	"relay/internal/constants"
	"relay/pkg/cel"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateLogging(cfg.Logging); err != nil {
		errors = append(errors, err)
	}

	if err := validateTelegram(cfg.Telegram); err != nil {
		errors = append(errors, err)
	}

	if err := validateMappings(cfg.Mappings); err != nil {
		errors = append(errors, err)
	}

	if err := validateDelivery(cfg.Delivery); err != nil {
		errors = append(errors, err)
	}

	if err := validateFiltering(cfg.Filtering); err != nil {
		errors = append(errors, err)
	}

	if err := validateSession(cfg.Session); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateLogging(cfg LoggingConfig) error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if cfg.Level != "" && !validLevels[strings.ToLower(cfg.Level)] {
		return &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", cfg.Level),
		}
	}

	validFormats := map[string]bool{
		constants.LogFormatJSON: true, constants.LogFormatConsole: true,
	}
	if cfg.Format != "" && !validFormats[strings.ToLower(cfg.Format)] {
		return &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: json, console)", cfg.Format),
		}
	}

	return nil
}

func validateTelegram(cfg TelegramConfig) error {
	if cfg.Token == "" {
		return &ValidationError{
			Field:   "telegram.token",
			Message: "bot token is required (set telegram.token or TELEGRAM_TOKEN)",
		}
	}

	if cfg.PollTimeoutSeconds < 0 {
		return &ValidationError{
			Field:   "telegram.poll_timeout_seconds",
			Message: "poll timeout must be non-negative",
		}
	}

	if cfg.PollRetry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "telegram.poll_retry.max_attempts",
			Message: "max_attempts must be non-negative (0 means unlimited)",
		}
	}

	return nil
}

func validateMappings(mappings []MappingConfig) error {
	if len(mappings) == 0 {
		return &ValidationError{
			Field:   "mappings",
			Message: "at least one mapping is required",
		}
	}

	for i, m := range mappings {
		if m.SourceID == 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("mappings[%d].source_id", i),
				Message: "source_id is required",
			}
		}

		if m.TargetID == 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("mappings[%d].target_id", i),
				Message: "target_id is required",
			}
		}

		if m.SourceTopicID < 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("mappings[%d].source_topic_id", i),
				Message: "source_topic_id must be non-negative",
			}
		}

		if m.TargetTopicID < 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("mappings[%d].target_topic_id", i),
				Message: "target_topic_id must be non-negative",
			}
		}

		if m.SourceID == m.TargetID && m.SourceTopicID == m.TargetTopicID {
			return &ValidationError{
				Field:   fmt.Sprintf("mappings[%d]", i),
				Message: "source and target are the same chat and topic",
			}
		}
	}

	return nil
}

func validateDelivery(cfg DeliveryConfig) error {
	if cfg.DelaySeconds < 0 {
		return &ValidationError{
			Field:   "delivery.delay_seconds",
			Message: "delay must be non-negative",
		}
	}

	if cfg.MaxFloodWaitSeconds < 0 {
		return &ValidationError{
			Field:   "delivery.max_flood_wait_seconds",
			Message: "max flood wait must be non-negative",
		}
	}

	if cfg.MaxSendsPerSecond < 0 {
		return &ValidationError{
			Field:   "delivery.max_sends_per_second",
			Message: "max sends per second must be non-negative",
		}
	}

	if cfg.CircuitBreaker.Enabled {
		if cfg.CircuitBreaker.FailureRatio <= 0 || cfg.CircuitBreaker.FailureRatio > 1 {
			return &ValidationError{
				Field:   "delivery.circuit_breaker.failure_ratio",
				Message: "failure ratio must be in (0, 1]",
			}
		}
	}

	return nil
}

func validateFiltering(cfg FilteringConfig) error {
	var evaluator *cel.Evaluator
	for i, rule := range cfg.Rules {
		field := fmt.Sprintf("filtering.rules[%d].expression", i)
		if strings.TrimSpace(rule.Expression) == "" {
			return &ValidationError{
				Field:   field,
				Message: "expression is required",
			}
		}

		if evaluator == nil {
			var err error
			if evaluator, err = cel.NewEvaluator(); err != nil {
				return err
			}
		}
		if err := evaluator.ValidateFilterExpression(rule.Expression); err != nil {
			return &ValidationError{
				Field:   field,
				Message: err.Error(),
			}
		}
	}

	validOnError := map[string]bool{
		constants.FallbackAllow: true, constants.FallbackDeny: true,
	}
	if cfg.Fallback.OnError != "" && !validOnError[strings.ToLower(cfg.Fallback.OnError)] {
		return &ValidationError{
			Field:   "filtering.fallback.on_error",
			Message: fmt.Sprintf("invalid on_error value: %s (valid: allow, deny)", cfg.Fallback.OnError),
		}
	}

	return nil
}

func validateSession(cfg SessionConfig) error {
	if cfg.CooldownSeconds < 0 {
		return &ValidationError{
			Field:   "session.cooldown_seconds",
			Message: "cooldown must be non-negative",
		}
	}

	if cfg.MaxReconnects < 0 {
		return &ValidationError{
			Field:   "session.max_reconnects",
			Message: "max_reconnects must be non-negative (0 means unlimited)",
		}
	}

	r := cfg.ConnectRetry
	if r.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "session.connect_retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if r.MaxInterval > 0 && r.InitialInterval > 0 && r.MaxInterval < r.InitialInterval {
		return &ValidationError{
			Field:   "session.connect_retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if r.Multiplier < 0 {
		return &ValidationError{
			Field:   "session.connect_retry.multiplier",
			Message: "multiplier must be non-negative",
		}
	}

	return nil
}
