package park

import (
	"context"

	"github.com/i474232898/parks-context/internal/resilience"
)

// ParkQuery filters a park search.
type ParkQuery struct {
	StateCodes []string
	Query      string
	Activities string
	Limit      int
	Start      int
}

// ListQuery filters the per-park listings (alerts, campgrounds, visitor
// centers, events).
type ListQuery struct {
	// ParkCode is empty or a comma-separated list of park codes.
	ParkCode string
	Query    string
	Limit    int
	Start    int
}

// ParkSource abstracts the Parks provider.
type ParkSource interface {
	ParkDetails(ctx context.Context, parkCode string) resilience.Result[Park]
	Alerts(ctx context.Context, q ListQuery) resilience.Result[AlertsData]
}

// ParkCatalog is the full Parks provider surface.
type ParkCatalog interface {
	ParkSource
	FindParks(ctx context.Context, q ParkQuery) resilience.Result[ParkList]
	Campgrounds(ctx context.Context, q ListQuery) resilience.Result[CampgroundList]
	VisitorCenters(ctx context.Context, q ListQuery) resilience.Result[VisitorCenterList]
	Events(ctx context.Context, q ListQuery) resilience.Result[EventList]
}

// WeatherSource abstracts a current-conditions weather provider
// (e.g. OpenWeather, Open-Meteo).
type WeatherSource interface {
	Name() string
	// Configured reports whether the provider has the credentials it needs.
	Configured() bool
	CurrentWeather(ctx context.Context, at Coordinates) resilience.Result[WeatherData]
}

// AirQualitySource abstracts the air quality provider.
type AirQualitySource interface {
	AirQuality(ctx context.Context, at Coordinates) resilience.Result[AirQualityData]
}
