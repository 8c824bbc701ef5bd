package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/parks-context/internal/park/providers"
	"github.com/i474232898/parks-context/internal/resilience"
)

// ProviderConfig holds one provider's endpoint settings.
type ProviderConfig struct {
	BaseURL string `validate:"omitempty,url"`
	APIKey  string
}

type AppConfig struct {
	Parks       ProviderConfig
	OpenWeather ProviderConfig
	OpenMeteo   ProviderConfig
	AirVisual   ProviderConfig

	HTTPTimeout    time.Duration `validate:"gt=0"`
	ContextTimeout time.Duration `validate:"gt=0"`

	RequestsPerHour int           `validate:"gte=1"`
	AcquireTimeout  time.Duration `validate:"gte=0"`

	RetryMaxAttempts int           `validate:"gte=1,lte=10"`
	RetryBaseDelay   time.Duration `validate:"gte=0"`
	RetryMaxDelay    time.Duration `validate:"gtefield=RetryBaseDelay"`
	RetryJitter      float64       `validate:"gte=0,lte=1"`

	// BreakerThreshold of zero disables the circuit breaker.
	BreakerThreshold   int           `validate:"gte=0"`
	BreakerOpenTimeout time.Duration `validate:"gte=0"`

	// StatusInterval controls how often limiter gauges are published and the
	// provider history is pruned.
	StatusInterval time.Duration `validate:"gt=0"`

	// In-memory provider history retention.
	StoreMaxHistory int           `validate:"gte=0"` // max outcomes per provider (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of outcomes (0 = unlimited)

	Port string `validate:"required,numeric"`

	LogLevel string `validate:"oneof=debug info warn error"`
	LogJSON  bool
}

// Load reads configuration from the environment with sensible defaults.
// envFiles are loaded first when present; a missing file is not an error.
func Load(envFiles ...string) (*AppConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &AppConfig{
		Parks: ProviderConfig{
			BaseURL: os.Getenv("NPS_API_BASE_URL"),
			APIKey:  os.Getenv("NPS_API_KEY"),
		},
		OpenWeather: ProviderConfig{
			BaseURL: os.Getenv("OPENWEATHER_API_BASE_URL"),
			APIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		},
		OpenMeteo: ProviderConfig{
			BaseURL: os.Getenv("OPEN_METEO_API_BASE_URL"),
		},
		AirVisual: ProviderConfig{
			BaseURL: os.Getenv("AIRVISUAL_API_BASE_URL"),
			APIKey:  os.Getenv("AIRVISUAL_API_KEY"),
		},
		RequestsPerHour:  getenvInt("RATE_LIMIT_REQUESTS_PER_HOUR", 1000),
		RetryMaxAttempts: getenvInt("RETRY_MAX_ATTEMPTS", 3),
		BreakerThreshold: getenvInt("BREAKER_FAILURE_THRESHOLD", 10),
		StoreMaxHistory:  getenvInt("STORE_MAX_HISTORY", 500),
		Port:             getenvDefault("PORT", "8080"),
		LogLevel:         strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogJSON:          getenvBool("LOG_JSON", false),
	}

	jitter, err := strconv.ParseFloat(getenvDefault("RETRY_JITTER", "0.1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_JITTER: %w", err)
	}
	cfg.RetryJitter = jitter

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "20s", &cfg.HTTPTimeout},
		{"CONTEXT_TIMEOUT", "25s", &cfg.ContextTimeout},
		{"RATE_LIMIT_ACQUIRE_TIMEOUT", "10s", &cfg.AcquireTimeout},
		{"RETRY_BASE_DELAY", "1s", &cfg.RetryBaseDelay},
		{"RETRY_MAX_DELAY", "60s", &cfg.RetryMaxDelay},
		{"BREAKER_OPEN_TIMEOUT", "2m", &cfg.BreakerOpenTimeout},
		{"STATUS_INTERVAL", "15s", &cfg.StatusInterval},
		{"STORE_MAX_AGE", "24h", &cfg.StoreMaxAge},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RetryPolicy builds the retry policy shared by every provider.
func (c *AppConfig) RetryPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:          c.RetryMaxAttempts,
		BaseDelay:            c.RetryBaseDelay,
		MaxDelay:             c.RetryMaxDelay,
		RetryableStatusCodes: resilience.DefaultRetryableStatusCodes(),
		JitterFraction:       c.RetryJitter,
	}
}

// Registry builds the provider registry configuration.
func (c *AppConfig) Registry() providers.RegistryConfig {
	settings := func(p ProviderConfig) providers.Settings {
		return providers.Settings{
			BaseURL:            p.BaseURL,
			APIKey:             p.APIKey,
			Timeout:            c.HTTPTimeout,
			Policy:             c.RetryPolicy(),
			RequestsPerHour:    c.RequestsPerHour,
			AcquireTimeout:     c.AcquireTimeout,
			BreakerThreshold:   uint32(c.BreakerThreshold),
			BreakerOpenTimeout: c.BreakerOpenTimeout,
		}
	}
	return providers.RegistryConfig{
		Parks:       settings(c.Parks),
		OpenWeather: settings(c.OpenWeather),
		OpenMeteo:   settings(c.OpenMeteo),
		AirVisual:   settings(c.AirVisual),
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
