package park

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/i474232898/parks-context/internal/resilience"
)

// Preference selects which weather provider answers a request.
type Preference string

const (
	PreferAuto        Preference = "auto"
	PreferOpenWeather Preference = "openweather"
	PreferOpenMeteo   Preference = "open-meteo"
)

// ParsePreference normalizes a provider name; empty means auto.
func ParsePreference(s string) (Preference, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PreferAuto, true
	case "openweather":
		return PreferOpenWeather, true
	case "open-meteo", "open_meteo", "openmeteo":
		return PreferOpenMeteo, true
	default:
		return "", false
	}
}

// FallbackChain answers weather requests from a primary provider and falls
// back to a secondary one at most once per request.
type FallbackChain struct {
	primary   WeatherSource
	secondary WeatherSource
	logger    *zap.Logger
}

// NewFallbackChain creates a chain. The secondary must not need credentials.
func NewFallbackChain(primary, secondary WeatherSource, logger *zap.Logger) *FallbackChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackChain{primary: primary, secondary: secondary, logger: logger}
}

// GetWeather tries the primary when it is configured and returns its result
// on success. Any primary failure triggers exactly one secondary call whose
// outcome is returned as-is. An unconfigured primary is skipped entirely.
func (f *FallbackChain) GetWeather(ctx context.Context, at Coordinates) resilience.Result[WeatherData] {
	if f.primary == nil || !f.primary.Configured() {
		return f.secondary.CurrentWeather(ctx, at)
	}

	res := f.primary.CurrentWeather(ctx, at)
	if res.IsOk() {
		return res
	}

	err := res.Err()
	f.logger.Warn("openweather_failed_fallback",
		zap.String("primary", f.primary.Name()),
		zap.String("secondary", f.secondary.Name()),
		zap.String("kind", string(err.Kind)),
		zap.String("error", err.Message))
	return f.secondary.CurrentWeather(ctx, at)
}

// Get honors an explicit provider preference; PreferAuto uses GetWeather.
func (f *FallbackChain) Get(ctx context.Context, at Coordinates, pref Preference) resilience.Result[WeatherData] {
	switch pref {
	case PreferOpenWeather:
		if f.primary == nil {
			return resilience.Fail[WeatherData](resilience.NewError(resilience.KindConfiguration,
				string(PreferOpenWeather), "provider is not available"))
		}
		return f.primary.CurrentWeather(ctx, at)
	case PreferOpenMeteo:
		return f.secondary.CurrentWeather(ctx, at)
	default:
		return f.GetWeather(ctx, at)
	}
}
