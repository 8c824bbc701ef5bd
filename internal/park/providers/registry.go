package providers

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/parks-context/internal/resilience"
)

// Settings configures one provider's endpoint and resilience resources.
type Settings struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	Policy          resilience.RetryPolicy
	RequestsPerHour int
	AcquireTimeout  time.Duration
	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit; zero disables the breaker.
	BreakerThreshold   uint32
	BreakerOpenTimeout time.Duration
}

// RegistryConfig configures every provider the service talks to.
type RegistryConfig struct {
	Parks       Settings
	OpenWeather Settings
	OpenMeteo   Settings
	AirVisual   Settings
}

// Registry holds the process-wide provider clients and their rate limiters.
// It replaces per-provider singletons: build it once at startup and pass it
// by reference.
type Registry struct {
	Parks       *NPSClient
	OpenWeather *OpenWeatherClient
	OpenMeteo   *OpenMeteoClient
	AirVisual   *AirVisualClient

	limiters []*resilience.RateLimiter
}

// NewRegistry constructs every provider client. It fails when a provider's
// retry policy is invalid.
func NewRegistry(cfg RegistryConfig, logger *zap.Logger, observer resilience.Observer) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = resilience.NopObserver{}
	}

	r := &Registry{}
	eps := make(map[string]Endpoint, 4)
	for _, p := range []struct {
		name string
		s    Settings
	}{
		{ParksProviderName, cfg.Parks},
		{OpenWeatherProviderName, cfg.OpenWeather},
		{OpenMeteoProviderName, cfg.OpenMeteo},
		{AirVisualProviderName, cfg.AirVisual},
	} {
		ep, limiter, err := buildEndpoint(p.name, p.s, logger, observer)
		if err != nil {
			return nil, err
		}
		eps[p.name] = ep
		r.limiters = append(r.limiters, limiter)
	}

	r.Parks = NewNPSClient(eps[ParksProviderName])
	r.OpenWeather = NewOpenWeatherClient(eps[OpenWeatherProviderName])
	r.OpenMeteo = NewOpenMeteoClient(eps[OpenMeteoProviderName])
	r.AirVisual = NewAirVisualClient(eps[AirVisualProviderName])
	return r, nil
}

// Limiters returns the rate limiters in provider order.
func (r *Registry) Limiters() []*resilience.RateLimiter {
	return append([]*resilience.RateLimiter(nil), r.limiters...)
}

func buildEndpoint(name string, s Settings, logger *zap.Logger, observer resilience.Observer) (Endpoint, *resilience.RateLimiter, error) {
	policy := s.Policy
	// An unset policy takes the defaults; a partially set one is validated.
	if policy.MaxAttempts == 0 && policy.BaseDelay == 0 && policy.MaxDelay == 0 {
		policy = resilience.DefaultRetryPolicy()
	}
	if policy.RetryableStatusCodes == nil {
		policy.RetryableStatusCodes = resilience.DefaultRetryableStatusCodes()
	}
	if err := policy.Validate(); err != nil {
		return Endpoint{}, nil, fmt.Errorf("provider %s: %w", name, err)
	}

	perHour := s.RequestsPerHour
	if perHour <= 0 {
		perHour = 1000
	}
	limiter := resilience.NewHourlyRateLimiter(name, perHour)
	limiter.SetObserver(observer)

	opts := []resilience.ExecutorOption{
		resilience.WithRateLimiter(limiter, s.AcquireTimeout),
		resilience.WithLogger(logger),
		resilience.WithObserver(observer),
	}
	if s.BreakerThreshold > 0 {
		bc := resilience.DefaultBreakerConfig(name)
		bc.FailureThreshold = s.BreakerThreshold
		if s.BreakerOpenTimeout > 0 {
			bc.OpenTimeout = s.BreakerOpenTimeout
		}
		opts = append(opts, resilience.WithBreaker(resilience.NewBreaker(bc, logger)))
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	logger.Info("api_client_initialized",
		zap.String("provider", name),
		zap.String("base_url", s.BaseURL),
		zap.Int("requests_per_hour", perHour),
		zap.Int("max_attempts", policy.MaxAttempts))

	return Endpoint{
		Name:       name,
		BaseURL:    s.BaseURL,
		APIKey:     s.APIKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Executor:   resilience.NewExecutor(name, policy, opts...),
		Logger:     logger,
		Observer:   observer,
	}, limiter, nil
}
