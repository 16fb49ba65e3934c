package config

import (
	"time"
)

type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Telegram  TelegramConfig
	Mappings  []MappingConfig `mapstructure:"mappings"`
	Delivery  DeliveryConfig
	Filtering FilteringConfig
	Session   SessionConfig
	Tracing   TracingConfig
}

type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// TelegramConfig holds the transport credentials. The token is opaque to the
// relay engine.
type TelegramConfig struct {
	Token              string `mapstructure:"token"`
	APIURL             string `mapstructure:"api_url"`
	PollTimeoutSeconds int    `mapstructure:"poll_timeout_seconds"`
	// PollRetry governs retries of failed long polls. MaxAttempts 0 retries
	// until the poll succeeds or the session is stopped.
	PollRetry RetryConfig `mapstructure:"poll_retry"`
}

// MappingConfig is one source -> target rule. Zero topic ids mean "no topic".
type MappingConfig struct {
	SourceID      int64 `mapstructure:"source_id"`
	SourceTopicID int   `mapstructure:"source_topic_id"`
	TargetID      int64 `mapstructure:"target_id"`
	TargetTopicID int   `mapstructure:"target_topic_id"`
}

type DeliveryConfig struct {
	DelaySeconds        float64              `mapstructure:"delay_seconds"`
	TrailingDelay       bool                 `mapstructure:"trailing_delay"`
	TempDir             string               `mapstructure:"temp_dir"`
	MaxFloodWaitSeconds int                  `mapstructure:"max_flood_wait_seconds"`
	MaxSendsPerSecond   float64              `mapstructure:"max_sends_per_second"`
	CircuitBreaker      CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// Delay returns the inter-delivery delay.
func (c DeliveryConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

type FilteringConfig struct {
	ContactFilterSources []int64        `mapstructure:"contact_filter_sources"`
	Rules                []RuleConfig   `mapstructure:"rules"`
	Fallback             FallbackConfig `mapstructure:"fallback"`
}

type RuleConfig struct {
	Name       string  `mapstructure:"name"`
	Expression string  `mapstructure:"expression"` // CEL expression that must evaluate to bool
	Sources    []int64 `mapstructure:"sources"`
}

type FallbackConfig struct {
	OnError string `mapstructure:"on_error"` // "allow", "deny" (default: "allow")
}

type SessionConfig struct {
	CooldownSeconds int         `mapstructure:"cooldown_seconds"`
	MaxReconnects   int         `mapstructure:"max_reconnects"`
	ConnectRetry    RetryConfig `mapstructure:"connect_retry"`
}

// Cooldown returns the fixed wait before reconnecting after protocol skew.
func (c SessionConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

// SourceIDs returns the distinct source ids across all mappings, in order of
// first appearance.
func (c *Config) SourceIDs() []int64 {
	seen := make(map[int64]struct{}, len(c.Mappings))
	ids := make([]int64, 0, len(c.Mappings))
	for _, m := range c.Mappings {
		if _, ok := seen[m.SourceID]; ok {
			continue
		}
		seen[m.SourceID] = struct{}{}
		ids = append(ids, m.SourceID)
	}
	return ids
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
