package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/i474232898/parks-context/internal/park"
	"github.com/i474232898/parks-context/internal/resilience"
)

// OpenMeteoProviderName identifies Open-Meteo.
const OpenMeteoProviderName = "open-meteo"

// OpenMeteoClient implements park.WeatherSource for Open-Meteo. It needs no
// API key and is always configured.
type OpenMeteoClient struct {
	c *client
}

var _ park.WeatherSource = (*OpenMeteoClient)(nil)

func NewOpenMeteoClient(ep Endpoint) *OpenMeteoClient {
	if ep.Name == "" {
		ep.Name = OpenMeteoProviderName
	}
	if ep.BaseURL == "" {
		ep.BaseURL = "https://api.open-meteo.com/v1"
	}
	return &OpenMeteoClient{c: newClient(ep, false, nil)}
}

func (p *OpenMeteoClient) Name() string { return p.c.name }

func (p *OpenMeteoClient) Configured() bool { return true }

type openMeteoPayload struct {
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	CurrentWeather *struct {
		Temperature   json.RawMessage `json:"temperature"`
		WindSpeed     json.RawMessage `json:"windspeed"`
		WindDirection json.RawMessage `json:"winddirection"`
		Time          string          `json:"time"`
		WeatherCode   *int            `json:"weathercode"`
	} `json:"current_weather"`
}

// CurrentWeather fetches current conditions with wind speed in m/s.
func (p *OpenMeteoClient) CurrentWeather(ctx context.Context, at park.Coordinates) resilience.Result[park.WeatherData] {
	values := url.Values{}
	values.Set("latitude", formatCoord(at.Latitude))
	values.Set("longitude", formatCoord(at.Longitude))
	values.Set("current_weather", "true")
	values.Set("windspeed_unit", "ms")

	return call(ctx, p.c, "/forecast", values, func(body []byte) (park.WeatherData, error) {
		var payload openMeteoPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return park.WeatherData{}, err
		}
		if payload.CurrentWeather == nil {
			return park.WeatherData{}, errors.New("missing current_weather block")
		}

		lat, lon := at.Latitude, at.Longitude
		if payload.Latitude != nil && payload.Longitude != nil {
			lat, lon = *payload.Latitude, *payload.Longitude
		}

		cond := park.ConditionUnknown
		if payload.CurrentWeather.WeatherCode != nil {
			cond = mapOpenMeteoCondition(*payload.CurrentWeather.WeatherCode)
		}

		return park.WeatherData{
			Provider:         p.c.name,
			Latitude:         lat,
			Longitude:        lon,
			TemperatureC:     optFloat(payload.CurrentWeather.Temperature),
			WindSpeedMS:      optFloat(payload.CurrentWeather.WindSpeed),
			WindDirectionDeg: optFloat(payload.CurrentWeather.WindDirection),
			Condition:        cond,
			ObservationTime:  payload.CurrentWeather.Time,
		}, nil
	})
}

func mapOpenMeteoCondition(code int) park.Condition {
	// WMO weather interpretation codes, simplified.
	switch {
	case code == 0:
		return park.ConditionClear
	case code >= 1 && code <= 3:
		return park.ConditionCloudy
	case code == 45 || code == 48:
		return park.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return park.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return park.ConditionSnow
	case code >= 95:
		return park.ConditionStorm
	default:
		return park.ConditionUnknown
	}
}
