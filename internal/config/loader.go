package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"relay/internal/constants"
)

// DotEnvFile is loaded into the process environment before the config file
// is read. A missing file is not an error.
var DotEnvFile = ".env"

func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", 10)
	viper.SetDefault("server.write_timeout_seconds", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", constants.LogFormatJSON)

	viper.SetDefault("telegram.poll_timeout_seconds", 30)
	viper.SetDefault("telegram.poll_retry.max_attempts", 0)
	viper.SetDefault("telegram.poll_retry.initial_interval", "1s")
	viper.SetDefault("telegram.poll_retry.max_interval", "30s")
	viper.SetDefault("telegram.poll_retry.multiplier", 2.0)

	viper.SetDefault("delivery.delay_seconds", 2)
	viper.SetDefault("delivery.trailing_delay", true)
	viper.SetDefault("delivery.max_flood_wait_seconds", 60)

	viper.SetDefault("filtering.fallback.on_error", constants.FallbackAllow)

	viper.SetDefault("session.cooldown_seconds", 5)
	viper.SetDefault("session.connect_retry.max_attempts", 5)
	viper.SetDefault("session.connect_retry.initial_interval", "1s")
	viper.SetDefault("session.connect_retry.max_interval", "30s")
	viper.SetDefault("session.connect_retry.multiplier", 2.0)
}

func bindEnvVariables() {
	viper.BindEnv("telegram.token", "TELEGRAM_TOKEN")
	viper.BindEnv("telegram.api_url", "TELEGRAM_API_URL")
	viper.BindEnv("telegram.poll_timeout_seconds", "TELEGRAM_POLL_TIMEOUT_SECONDS")
	viper.BindEnv("telegram.poll_retry.max_attempts", "TELEGRAM_POLL_RETRY_MAX_ATTEMPTS")

	viper.BindEnv("delivery.delay_seconds", "DELIVERY_DELAY_SECONDS")
	viper.BindEnv("delivery.trailing_delay", "DELIVERY_TRAILING_DELAY")
	viper.BindEnv("delivery.temp_dir", "DELIVERY_TEMP_DIR")

	viper.BindEnv("session.cooldown_seconds", "SESSION_COOLDOWN_SECONDS")
	viper.BindEnv("session.max_reconnects", "SESSION_MAX_RECONNECTS")

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL", "LOG_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")
	viper.BindEnv("logging.file", "LOGGING_FILE", "LOG_FILE")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if sourcesEnv := viper.GetString("FILTERING_CONTACT_FILTER_SOURCES"); sourcesEnv != "" {
		sources, err := parseIDList(sourcesEnv)
		if err != nil {
			return fmt.Errorf("FILTERING_CONTACT_FILTER_SOURCES: %w", err)
		}
		cfg.Filtering.ContactFilterSources = sources
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}

func parseIDList(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var id int64
		if _, err := fmt.Sscan(p, &id); err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
