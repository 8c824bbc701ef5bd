package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/i474232898/parks-context/internal/park"
	"github.com/i474232898/parks-context/internal/resilience"
)

// OpenWeatherProviderName identifies OpenWeatherMap.
const OpenWeatherProviderName = "openweather"

// OpenWeatherClient implements park.WeatherSource for OpenWeatherMap.
type OpenWeatherClient struct {
	c *client
}

var _ park.WeatherSource = (*OpenWeatherClient)(nil)

// NewOpenWeatherClient creates an OpenWeather client. The key goes in the
// appid query parameter; without it the client reports itself unconfigured.
func NewOpenWeatherClient(ep Endpoint) *OpenWeatherClient {
	if ep.Name == "" {
		ep.Name = OpenWeatherProviderName
	}
	if ep.BaseURL == "" {
		ep.BaseURL = "https://api.openweathermap.org/data/2.5"
	}
	return &OpenWeatherClient{c: newClient(ep, true, queryAuth("appid"))}
}

func (p *OpenWeatherClient) Name() string { return p.c.name }

func (p *OpenWeatherClient) Configured() bool { return p.c.configured() }

type openWeatherCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type openWeatherPayload struct {
	Dt    int64 `json:"dt"`
	Coord *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main *struct {
		Temp     json.RawMessage `json:"temp"`
		Humidity json.RawMessage `json:"humidity"`
		Pressure json.RawMessage `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed json.RawMessage `json:"speed"`
		Deg   json.RawMessage `json:"deg"`
	} `json:"wind"`
	Weather []openWeatherCondition `json:"weather"`
}

// CurrentWeather fetches current conditions in metric units.
func (p *OpenWeatherClient) CurrentWeather(ctx context.Context, at park.Coordinates) resilience.Result[park.WeatherData] {
	values := url.Values{}
	values.Set("lat", formatCoord(at.Latitude))
	values.Set("lon", formatCoord(at.Longitude))
	values.Set("units", "metric")

	return call(ctx, p.c, "/weather", values, func(body []byte) (park.WeatherData, error) {
		var payload openWeatherPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return park.WeatherData{}, err
		}
		if payload.Main == nil {
			return park.WeatherData{}, errors.New("missing main block")
		}

		lat, lon := at.Latitude, at.Longitude
		if payload.Coord != nil {
			lat, lon = payload.Coord.Lat, payload.Coord.Lon
		}

		var desc string
		if len(payload.Weather) > 0 {
			desc = payload.Weather[0].Description
		}

		var observed string
		if payload.Dt > 0 {
			observed = time.Unix(payload.Dt, 0).UTC().Format(time.RFC3339)
		}

		return park.WeatherData{
			Provider:           p.c.name,
			Latitude:           lat,
			Longitude:          lon,
			TemperatureC:       optFloat(payload.Main.Temp),
			HumidityPercent:    optFloat(payload.Main.Humidity),
			PressureHpa:        optFloat(payload.Main.Pressure),
			WindSpeedMS:        optFloat(payload.Wind.Speed),
			WindDirectionDeg:   optFloat(payload.Wind.Deg),
			WeatherDescription: desc,
			Condition:          mapOpenWeatherCondition(payload.Weather),
			ObservationTime:    observed,
		}, nil
	})
}

func mapOpenWeatherCondition(items []openWeatherCondition) park.Condition {
	if len(items) == 0 {
		return park.ConditionUnknown
	}
	switch items[0].Main {
	case "Clear":
		return park.ConditionClear
	case "Clouds":
		return park.ConditionCloudy
	case "Rain", "Drizzle":
		return park.ConditionRain
	case "Snow":
		return park.ConditionSnow
	case "Thunderstorm":
		return park.ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke":
		return park.ConditionMist
	default:
		return park.ConditionUnknown
	}
}
