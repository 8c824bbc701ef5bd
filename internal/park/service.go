package park

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/parks-context/internal/resilience"
)

// DefaultContextTimeout bounds one GetContext call.
const DefaultContextTimeout = 25 * time.Second

// Branch names used in logs and metrics.
const (
	BranchParkDetails = "parkDetails"
	BranchAlerts      = "alerts"
	BranchWeather     = "weather"
	BranchAirQuality  = "airQuality"
)

// BranchObserver is notified once per finished aggregation branch; err is
// nil on success.
type BranchObserver interface {
	ObserveBranch(branch string, err *resilience.Error)
}

type nopBranchObserver struct{}

func (nopBranchObserver) ObserveBranch(string, *resilience.Error) {}

// Aggregator builds the combined park context from the Parks, weather and
// air quality providers.
type Aggregator struct {
	parks      ParkSource
	resolver   *LocationResolver
	weather    *FallbackChain
	airQuality AirQualitySource
	timeout    time.Duration
	logger     *zap.Logger
	observer   BranchObserver
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithTimeout sets the top-level deadline for GetContext.
func WithTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithBranchObserver(o BranchObserver) AggregatorOption {
	return func(a *Aggregator) {
		if o != nil {
			a.observer = o
		}
	}
}

// NewAggregator wires the aggregator to its providers.
func NewAggregator(parks ParkSource, weather *FallbackChain, airQuality AirQualitySource, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		parks:      parks,
		resolver:   NewLocationResolver(parks),
		weather:    weather,
		airQuality: airQuality,
		timeout:    DefaultContextTimeout,
		logger:     zap.NewNop(),
		observer:   nopBranchObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// contextSlots collects branch outcomes. Once sealed, late writes from
// branches that outlived the deadline are dropped.
type contextSlots struct {
	mu     sync.Mutex
	sealed bool
	out    AggregatedContext
	set    map[string]bool
}

func (s *contextSlots) store(branch string, fn func(*AggregatedContext)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return false
	}
	fn(&s.out)
	s.set[branch] = true
	return true
}

// GetContext returns the park details, alerts, weather and air quality for
// parkCode. pref picks the weather provider; PreferAuto uses the fallback
// chain. The only error is a ValidationError for a malformed park code,
// raised before any network attempt; every provider failure is recorded in
// its own field instead.
func (a *Aggregator) GetContext(ctx context.Context, parkCode string, pref Preference) (AggregatedContext, error) {
	if err := ValidateParkCode(ParksProvider, parkCode); err != nil {
		return AggregatedContext{}, err
	}

	id := uuid.NewString()
	log := a.logger.With(zap.String("aggregation_id", id),
		zap.String("park_code", parkCode),
		zap.String("weather_provider", string(pref)))
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	slots := &contextSlots{set: make(map[string]bool, 4)}

	details := a.parks.ParkDetails(ctx, parkCode)
	slots.store(BranchParkDetails, func(c *AggregatedContext) { c.ParkDetails = details })
	a.observer.ObserveBranch(BranchParkDetails, details.Err())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res := a.parks.Alerts(gctx, ListQuery{ParkCode: parkCode})
		a.finish(slots, BranchAlerts, res.Err(), func(c *AggregatedContext) { c.Alerts = res })
		return nil
	})

	if details.IsOk() {
		g.Go(func() error {
			res := resilience.Then(a.resolver.Resolve(gctx, parkCode), func(loc ResolvedLocation) resilience.Result[WeatherData] {
				return a.weather.Get(gctx, loc.Coordinates(), pref)
			})
			a.finish(slots, BranchWeather, res.Err(), func(c *AggregatedContext) { c.Weather = res })
			return nil
		})
		g.Go(func() error {
			res := resilience.Then(a.resolver.Resolve(gctx, parkCode), func(loc ResolvedLocation) resilience.Result[AirQualityData] {
				return a.airQuality.AirQuality(gctx, loc.Coordinates())
			})
			a.finish(slots, BranchAirQuality, res.Err(), func(c *AggregatedContext) { c.AirQuality = res })
			return nil
		})
	} else {
		unresolved := resilience.NewError(resilience.KindValidation, ParksProvider, "location unresolved")
		a.finish(slots, BranchWeather, unresolved, func(c *AggregatedContext) {
			c.Weather = resilience.Fail[WeatherData](unresolved)
		})
		a.finish(slots, BranchAirQuality, unresolved, func(c *AggregatedContext) {
			c.AirQuality = resilience.Fail[AirQualityData](unresolved)
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.expire(slots, log)
	}

	slots.mu.Lock()
	slots.sealed = true
	out := slots.out
	slots.mu.Unlock()

	log.Info("context_aggregated",
		zap.Bool("resolved", out.Resolved()),
		zap.Bool("alerts_ok", out.Alerts.IsOk()),
		zap.Bool("weather_ok", out.Weather.IsOk()),
		zap.Bool("air_quality_ok", out.AirQuality.IsOk()),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

func (a *Aggregator) finish(slots *contextSlots, branch string, err *resilience.Error, fn func(*AggregatedContext)) {
	if slots.store(branch, fn) {
		a.observer.ObserveBranch(branch, err)
	}
}

// expire seals the slots and fills every unfinished branch with a
// TimeoutError.
func (a *Aggregator) expire(slots *contextSlots, log *zap.Logger) {
	slots.mu.Lock()
	defer slots.mu.Unlock()
	if slots.sealed {
		return
	}
	slots.sealed = true

	timeout := func(provider string) *resilience.Error {
		return resilience.NewError(resilience.KindTimeout, provider, "deadline exceeded")
	}
	var expired []string
	if !slots.set[BranchAlerts] {
		err := timeout(ParksProvider)
		slots.out.Alerts = resilience.Fail[AlertsData](err)
		expired = append(expired, BranchAlerts)
	}
	if !slots.set[BranchWeather] {
		err := timeout(BranchWeather)
		slots.out.Weather = resilience.Fail[WeatherData](err)
		expired = append(expired, BranchWeather)
	}
	if !slots.set[BranchAirQuality] {
		err := timeout(BranchAirQuality)
		slots.out.AirQuality = resilience.Fail[AirQualityData](err)
		expired = append(expired, BranchAirQuality)
	}
	for _, b := range expired {
		a.observer.ObserveBranch(b, timeout(""))
	}
	if len(expired) > 0 {
		log.Warn("context_deadline_exceeded",
			zap.Duration("timeout", a.timeout),
			zap.Strings("branches", expired))
	}
}
