package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Batching BatchingConfig
	Budget   BudgetConfig
	Provider ProviderConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// BatchingConfig holds the initial scheduler parameters. The strategy
// coordinator republishes them at runtime.
type BatchingConfig struct {
	MaxBatchSize   int
	MinBatchSize   int
	MaxWaitTime    time.Duration
	PriorityBypass bool
	BatchDiscount  float64
}

// BudgetConfig holds the rolling budget and the coordinator cadence.
type BudgetConfig struct {
	TotalUSD       float64
	PeriodDays     int
	RetuneInterval time.Duration
}

// ProviderConfig selects the execution collaborator.
type ProviderConfig struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	DatabaseURL     string
}

const (
	defaultPort        = "8080"
	defaultReadTimeout = 10 * time.Second
	// Submissions block until their batch flushes, so the write timeout
	// must exceed the longest profile's max wait.
	defaultWriteTimeout    = 180 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultMaxBatchSize  = 20
	defaultMinBatchSize  = 2
	defaultMaxWaitTime   = 30 * time.Second
	defaultBatchDiscount = 0.5

	defaultBudgetUSD      = 500.0
	defaultPeriodDays     = 30
	defaultRetuneInterval = 1 * time.Minute
)

// Load reads configuration from environment variables, applying defaults
// when values are not provided.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Batching: BatchingConfig{
			MaxBatchSize:   defaultMaxBatchSize,
			MinBatchSize:   defaultMinBatchSize,
			MaxWaitTime:    defaultMaxWaitTime,
			PriorityBypass: true,
			BatchDiscount:  defaultBatchDiscount,
		},
		Budget: BudgetConfig{
			TotalUSD:       defaultBudgetUSD,
			PeriodDays:     defaultPeriodDays,
			RetuneInterval: defaultRetuneInterval,
		},
		Provider: ProviderConfig{
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			DatabaseURL:     os.Getenv("DATABASE_URL"),
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("BATCH_MAX_SIZE"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BATCH_MAX_SIZE: %w", err)
		}
		cfg.Batching.MaxBatchSize = n
	}

	if v := os.Getenv("BATCH_MIN_SIZE"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BATCH_MIN_SIZE: %w", err)
		}
		cfg.Batching.MinBatchSize = n
	}

	if v := os.Getenv("BATCH_MAX_WAIT_MS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BATCH_MAX_WAIT_MS: %w", err)
		}
		cfg.Batching.MaxWaitTime = time.Duration(n) * time.Millisecond
	}

	if v := os.Getenv("BATCH_PRIORITY_BYPASS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BATCH_PRIORITY_BYPASS: must be a boolean")
		}
		cfg.Batching.PriorityBypass = b
	}

	if v := os.Getenv("BATCH_DISCOUNT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f >= 1 {
			return Config{}, fmt.Errorf("invalid BATCH_DISCOUNT: must be a fraction between 0 and 1")
		}
		cfg.Batching.BatchDiscount = f
	}

	if v := os.Getenv("BUDGET_TOTAL_USD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return Config{}, fmt.Errorf("invalid BUDGET_TOTAL_USD: must be a positive number")
		}
		cfg.Budget.TotalUSD = f
	}

	if v := os.Getenv("BUDGET_PERIOD_DAYS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BUDGET_PERIOD_DAYS: %w", err)
		}
		cfg.Budget.PeriodDays = n
	}

	if v := os.Getenv("STRATEGY_RETUNE_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid STRATEGY_RETUNE_SECONDS: %w", err)
		}
		cfg.Budget.RetuneInterval = d
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
