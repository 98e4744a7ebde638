// Package config loads SalesIQ configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the SalesIQ agent CLI.
type Config struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	LLM           LLMConfig
	Investigation InvestigationConfig
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AcquireTimeout  time.Duration
}

type RedisConfig struct {
	// URL is optional; when empty the cache layer is disabled.
	URL string
}

type LLMConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Anthropic        AnthropicConfig
	Ollama           OllamaConfig
}

type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

// InvestigationConfig carries the tunable knobs of the orchestrator.
// The defaults mirror the seeded demo data (30 days, anomaly at day 20)
// and are provisional configuration, not guaranteed product behavior.
type InvestigationConfig struct {
	// AnomalyThreshold is the |delta_pct| at or above which a metric is
	// flagged. A fixed comparison threshold, deliberately not a
	// statistical model.
	AnomalyThreshold float64
	// BaselineDays and RecentDays split the lookback range into the two
	// comparison windows, most recent days last.
	BaselineDays int
	RecentDays   int
	// QueryRetries is the number of additional attempts after a retryable
	// query failure (3 total attempts with the default of 2).
	QueryRetries int
	RetryDelay   time.Duration
}

var validProviders = map[string]bool{
	"anthropic": true,
	"ollama":    true,
	"mock":      true,
}

// Load reads configuration from environment variables and returns a
// validated Config. Returns a descriptive error if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:             databaseURL(),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			AcquireTimeout:  envDuration("DATABASE_ACQUIRE_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		LLM: LLMConfig{
			Provider:         envString("LLM_PROVIDER", "anthropic"),
			InferenceTimeout: envDurationSecs("LLM_TIMEOUT_SECS", 60*time.Second),
			Anthropic: AnthropicConfig{
				APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
				Model:     envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
				MaxTokens: int64(envInt("ANTHROPIC_MAX_TOKENS", 2000)),
			},
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
		},
		Investigation: InvestigationConfig{
			AnomalyThreshold: envFloat("SALESIQ_ANOMALY_THRESHOLD", 0.20),
			BaselineDays:     envInt("SALESIQ_BASELINE_DAYS", 20),
			RecentDays:       envInt("SALESIQ_RECENT_DAYS", 10),
			QueryRetries:     envInt("SALESIQ_QUERY_RETRIES", 2),
			RetryDelay:       envDuration("SALESIQ_RETRY_DELAY", 500*time.Millisecond),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL (or DB_HOST/DB_NAME/DB_USER) is required")
	}

	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("LLM_PROVIDER must be one of anthropic, ollama, mock; got %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "anthropic" && c.LLM.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER is anthropic")
	}

	if c.Investigation.AnomalyThreshold <= 0 {
		return fmt.Errorf("SALESIQ_ANOMALY_THRESHOLD must be positive, got %v", c.Investigation.AnomalyThreshold)
	}
	if c.Investigation.BaselineDays <= 0 || c.Investigation.RecentDays <= 0 {
		return fmt.Errorf("SALESIQ_BASELINE_DAYS and SALESIQ_RECENT_DAYS must be positive")
	}
	if c.Investigation.QueryRetries < 0 {
		return fmt.Errorf("SALESIQ_QUERY_RETRIES must not be negative")
	}

	return nil
}

// databaseURL returns DATABASE_URL when set, otherwise composes a Postgres
// URL from the discrete DB_* variables the original deployment used.
func databaseURL() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	host := os.Getenv("DB_HOST")
	name := os.Getenv("DB_NAME")
	user := os.Getenv("DB_USER")
	if host == "" || name == "" || user == "" {
		return ""
	}
	port := envString("DB_PORT", "5432")
	pass := os.Getenv("DB_PASSWORD")

	u := url.URL{
		Scheme: "postgres",
		Host:   host + ":" + port,
		Path:   "/" + name,
	}
	if pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	q := u.Query()
	q.Set("sslmode", envString("DB_SSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
