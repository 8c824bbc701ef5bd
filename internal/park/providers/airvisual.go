package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/i474232898/parks-context/internal/park"
	"github.com/i474232898/parks-context/internal/resilience"
)

// AirVisualProviderName identifies the AirVisual air quality provider.
const AirVisualProviderName = "airvisual"

// AirVisualClient implements park.AirQualitySource.
type AirVisualClient struct {
	c *client
}

var _ park.AirQualitySource = (*AirVisualClient)(nil)

// NewAirVisualClient creates an AirVisual client. Without a key every call
// returns a ConfigurationError before touching the network.
func NewAirVisualClient(ep Endpoint) *AirVisualClient {
	if ep.Name == "" {
		ep.Name = AirVisualProviderName
	}
	if ep.BaseURL == "" {
		ep.BaseURL = "https://api.airvisual.com/v2"
	}
	return &AirVisualClient{c: newClient(ep, true, queryAuth("key"))}
}

func (p *AirVisualClient) Name() string { return p.c.name }

func (p *AirVisualClient) Configured() bool { return p.c.configured() }

type airVisualPayload struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type airVisualData struct {
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Location struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"location"`
	Current struct {
		Pollution struct {
			TS     string `json:"ts"`
			AQIUS  *int   `json:"aqius"`
			MainUS string `json:"mainus"`
			AQICN  *int   `json:"aqicn"`
			MainCN string `json:"maincn"`
		} `json:"pollution"`
	} `json:"current"`
}

// AirQuality returns readings from the monitoring station nearest to at.
func (p *AirVisualClient) AirQuality(ctx context.Context, at park.Coordinates) resilience.Result[park.AirQualityData] {
	values := url.Values{}
	values.Set("lat", formatCoord(at.Latitude))
	values.Set("lon", formatCoord(at.Longitude))

	return call(ctx, p.c, "/nearest_city", values, func(body []byte) (park.AirQualityData, error) {
		var payload airVisualPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return park.AirQualityData{}, err
		}
		if payload.Status != "success" {
			var msg struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(payload.Data, &msg)
			if msg.Message == "" {
				msg.Message = "AirVisual error"
			}
			return park.AirQualityData{}, fmt.Errorf("status %q: %s", payload.Status, msg.Message)
		}

		var data airVisualData
		if err := json.Unmarshal(payload.Data, &data); err != nil {
			return park.AirQualityData{}, err
		}
		if data.Current.Pollution.AQIUS == nil && data.Current.Pollution.AQICN == nil {
			return park.AirQualityData{}, errors.New("missing pollution indices")
		}

		// GeoJSON order: [longitude, latitude].
		lat, lon := at.Latitude, at.Longitude
		if c := data.Location.Coordinates; len(c) == 2 {
			lon, lat = c[0], c[1]
		}

		return park.AirQualityData{
			Provider: p.c.name,
			Location: park.AirQualityLocation{
				City:      data.City,
				State:     data.State,
				Country:   data.Country,
				Latitude:  lat,
				Longitude: lon,
			},
			Indices: park.AirQualityIndices{
				AQIUS:           data.Current.Pollution.AQIUS,
				AQICN:           data.Current.Pollution.AQICN,
				MainPollutantUS: data.Current.Pollution.MainUS,
				MainPollutantCN: data.Current.Pollution.MainCN,
			},
			Timestamp: data.Current.Pollution.TS,
		}, nil
	})
}
