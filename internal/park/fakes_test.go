package park

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/i474232898/parks-context/internal/resilience"
)

type fakeParks struct {
	details      resilience.Result[Park]
	alerts       resilience.Result[AlertsData]
	alertsDelay  time.Duration
	detailsCalls atomic.Int32
	alertsCalls  atomic.Int32
}

func (f *fakeParks) ParkDetails(context.Context, string) resilience.Result[Park] {
	f.detailsCalls.Add(1)
	return f.details
}

func (f *fakeParks) Alerts(ctx context.Context, _ ListQuery) resilience.Result[AlertsData] {
	f.alertsCalls.Add(1)
	if f.alertsDelay > 0 {
		select {
		case <-time.After(f.alertsDelay):
		case <-ctx.Done():
			return resilience.Fail[AlertsData](resilience.NewError(resilience.KindTimeout, "parks", "request aborted"))
		}
	}
	return f.alerts
}

type fakeWeather struct {
	name       string
	configured bool
	result     resilience.Result[WeatherData]
	calls      atomic.Int32
	lastAt     atomic.Value
}

func (f *fakeWeather) Name() string     { return f.name }
func (f *fakeWeather) Configured() bool { return f.configured }

func (f *fakeWeather) CurrentWeather(_ context.Context, at Coordinates) resilience.Result[WeatherData] {
	f.calls.Add(1)
	f.lastAt.Store(at)
	return f.result
}

type fakeAirQuality struct {
	result resilience.Result[AirQualityData]
	calls  atomic.Int32
}

func (f *fakeAirQuality) AirQuality(context.Context, Coordinates) resilience.Result[AirQualityData] {
	f.calls.Add(1)
	return f.result
}

func yosemitePark() Park {
	return Park{ParkCode: "yose", FullName: "Yosemite National Park", Latitude: "37.8651", Longitude: "-119.5383"}
}

func networkErr(provider string) *resilience.Error {
	return resilience.NewError(resilience.KindNetwork, provider, "connection reset by peer")
}
