package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/parks-context/internal/park"
	"github.com/i474232898/parks-context/internal/resilience"
)

var yosemite = park.Coordinates{Latitude: 37.8651, Longitude: -119.5383}

func fastPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:          3,
		BaseDelay:            time.Millisecond,
		MaxDelay:             5 * time.Millisecond,
		RetryableStatusCodes: resilience.DefaultRetryableStatusCodes(),
		JitterFraction:       0.1,
	}
}

type callRecorder struct {
	resilience.NopObserver
	mu    sync.Mutex
	calls []*resilience.Error
}

func (r *callRecorder) ObserveCall(_ string, _ time.Duration, err *resilience.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, err)
}

func endpoint(name, baseURL, key string) Endpoint {
	return Endpoint{
		Name:     name,
		BaseURL:  baseURL,
		APIKey:   key,
		Executor: resilience.NewExecutor(name, fastPolicy()),
	}
}

// fakeAPI serves fixed bodies per path and counts requests.
type fakeAPI struct {
	*httptest.Server
	hits     atomic.Int32
	mu       sync.Mutex
	requests []*http.Request
}

func newFakeAPI(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(context.Background()))
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeAPI) lastRequest() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

const yosemiteParks = `{
  "total": "1", "limit": "10", "start": "0",
  "data": [{
    "id": "4324B2B4-D1A3-497F-8E6B-27171FAE4DB2",
    "parkCode": "yose",
    "name": "Yosemite",
    "fullName": "Yosemite National Park",
    "designation": "National Park",
    "states": "CA",
    "latitude": "37.84883288",
    "longitude": "-119.5571873",
    "activities": [{"id": "1", "name": "Hiking"}, {"id": "2", "name": "Camping"}],
    "entranceFees": [{"cost": "35.00", "title": "Private Vehicle", "description": "7 days"}]
  }]
}`

func TestNPSParkDetails(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, yosemiteParks)
	})
	rec := &callRecorder{}
	ep := endpoint(ParksProviderName, api.URL, "nps-key")
	ep.Observer = rec
	client := NewNPSClient(ep)

	res := client.ParkDetails(context.Background(), "yose")

	require.True(t, res.IsOk(), "%v", res.Err())
	p, _ := res.Value()
	assert.Equal(t, "yose", p.ParkCode)
	assert.Equal(t, []string{"CA"}, p.States)
	assert.Equal(t, []string{"Hiking", "Camping"}, p.Activities)
	require.Len(t, p.EntranceFees, 1)
	c, ok := p.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 37.8488, c.Latitude, 0.001)

	req := api.lastRequest()
	assert.Equal(t, "/parks", req.URL.Path)
	assert.Equal(t, "yose", req.URL.Query().Get("parkCode"))
	assert.Equal(t, "nps-key", req.Header.Get("X-Api-Key"))
	assert.Empty(t, req.URL.Query().Get("api_key"))

	require.Len(t, rec.calls, 1)
	assert.Nil(t, rec.calls[0])
}

func TestNPSParkDetailsUnknownCode(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total":"0","limit":"10","start":"0","data":[]}`)
	})
	client := NewNPSClient(endpoint(ParksProviderName, api.URL, "nps-key"))

	res := client.ParkDetails(context.Background(), "nope")

	require.False(t, res.IsOk())
	assert.Equal(t, resilience.KindValidation, res.Err().Kind)
	assert.Equal(t, ParksProviderName, res.Err().Provider)
	assert.EqualValues(t, 1, api.hits.Load())
}

func TestNPSUnusablePayload(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"something odd"}`)
	})
	client := NewNPSClient(endpoint(ParksProviderName, api.URL, "nps-key"))

	res := client.Alerts(context.Background(), park.ListQuery{ParkCode: "yose"})

	require.False(t, res.IsOk())
	assert.Equal(t, resilience.KindValidation, res.Err().Kind)
	assert.Contains(t, res.Err().Message, "unusable response payload")
}

func TestNPSWithoutKey(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, yosemiteParks)
	})
	client := NewNPSClient(endpoint(ParksProviderName, api.URL, ""))

	res := client.ParkDetails(context.Background(), "yose")

	require.False(t, res.IsOk())
	assert.Equal(t, resilience.KindConfiguration, res.Err().Kind)
	assert.False(t, res.Err().Retryable)
	assert.False(t, client.Configured())
	assert.Zero(t, api.hits.Load())
}

func TestNPSFindParks(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, yosemiteParks)
	})
	client := NewNPSClient(endpoint(ParksProviderName, api.URL, "nps-key"))

	t.Run("invalid state", func(t *testing.T) {
		res := client.FindParks(context.Background(), park.ParkQuery{StateCodes: []string{"CA", "XX"}})
		require.False(t, res.IsOk())
		assert.Equal(t, resilience.KindValidation, res.Err().Kind)
		assert.Contains(t, res.Err().Message, "XX")
		assert.Zero(t, api.hits.Load())
	})

	t.Run("query parameters", func(t *testing.T) {
		res := client.FindParks(context.Background(), park.ParkQuery{
			StateCodes: []string{"ca", " wy"},
			Query:      "falls",
			Limit:      200,
			Start:      5,
		})
		require.True(t, res.IsOk(), "%v", res.Err())
		list, _ := res.Value()
		assert.Equal(t, 1, list.Total)
		assert.Len(t, list.Parks, 1)

		q := api.lastRequest().URL.Query()
		assert.Equal(t, "CA,WY", q.Get("stateCode"))
		assert.Equal(t, "falls", q.Get("q"))
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "5", q.Get("start"))
	})
}

func TestNPSAlertsGroupedByPark(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total":"3","limit":"10","start":"0","data":[
			{"id":"a1","title":"Road closed","category":"Park Closure","parkCode":"yose"},
			{"id":"a2","title":"Fire danger","category":"Caution","parkCode":"yose"},
			{"id":"a3","title":"Trail work","category":"Information","parkCode":"seki"}]}`)
	})
	client := NewNPSClient(endpoint(ParksProviderName, api.URL, "nps-key"))

	res := client.Alerts(context.Background(), park.ListQuery{ParkCode: "yose,seki"})

	require.True(t, res.IsOk(), "%v", res.Err())
	data, _ := res.Value()
	assert.Equal(t, 3, data.Total)
	assert.Len(t, data.Alerts, 3)
	assert.Len(t, data.AlertsByPark["yose"], 2)
	assert.Len(t, data.AlertsByPark["seki"], 1)
	assert.Equal(t, "/alerts", api.lastRequest().URL.Path)
	assert.Equal(t, "yose,seki", api.lastRequest().URL.Query().Get("parkCode"))
	assert.Equal(t, "10", api.lastRequest().URL.Query().Get("limit"))
}

func TestNPSCampgroundsAndEvents(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/campgrounds":
			fmt.Fprint(w, `{"total":"1","limit":"10","start":"0","data":[
				{"id":"c1","name":"Upper Pines","parkCode":"yose","numberOfSitesReservable":"235",
				 "numberOfSitesFirstComeFirstServe":"0","campsites":{"totalSites":"238"}}]}`)
		case "/events":
			fmt.Fprint(w, `{"total":1,"limit":10,"start":0,"data":[
				{"id":"e1","title":"Ranger Walk","isFree":"true","dates":["2024-06-01"]}]}`)
		case "/visitorcenters":
			fmt.Fprint(w, `{"total":"1","limit":"10","start":"0","data":[{"id":"v1","name":"Valley VC","parkCode":"yose"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	client := NewNPSClient(endpoint(ParksProviderName, api.URL, "nps-key"))
	ctx := context.Background()

	camps := client.Campgrounds(ctx, park.ListQuery{ParkCode: "yose"})
	require.True(t, camps.IsOk(), "%v", camps.Err())
	cl, _ := camps.Value()
	assert.Equal(t, 238, cl.Campgrounds[0].TotalSites)
	assert.Equal(t, 235, cl.Campgrounds[0].ReservableSites)

	events := client.Events(ctx, park.ListQuery{ParkCode: "yose"})
	require.True(t, events.IsOk(), "%v", events.Err())
	el, _ := events.Value()
	assert.True(t, el.Events[0].IsFree)

	vcs := client.VisitorCenters(ctx, park.ListQuery{ParkCode: "yose"})
	require.True(t, vcs.IsOk(), "%v", vcs.Err())
	vl, _ := vcs.Value()
	assert.Equal(t, "Valley VC", vl.VisitorCenters[0].Name)
}

func TestNPSUpstreamErrorNotRetried(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":"API_KEY_INVALID","message":"An invalid api_key was supplied."}}`)
	})
	client := NewNPSClient(endpoint(ParksProviderName, api.URL, "bad-key"))

	res := client.ParkDetails(context.Background(), "yose")

	require.False(t, res.IsOk())
	err := res.Err()
	assert.Equal(t, resilience.KindUpstreamHTTP, err.Kind)
	assert.Equal(t, "An invalid api_key was supplied.", err.Message)
	assert.Equal(t, ParksProviderName, err.Provider)
	assert.False(t, err.Retryable)
	assert.EqualValues(t, 1, api.hits.Load())
}

const openMeteoBody = `{
  "latitude": 37.87, "longitude": -119.54,
  "current_weather": {"temperature": 18.4, "windspeed": 2.1, "winddirection": 270, "weathercode": 3, "time": "2024-06-01T12:00"}
}`

func TestOpenMeteoCurrentWeather(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, openMeteoBody)
	})
	client := NewOpenMeteoClient(endpoint(OpenMeteoProviderName, api.URL, ""))

	res := client.CurrentWeather(context.Background(), yosemite)

	require.True(t, res.IsOk(), "%v", res.Err())
	w, _ := res.Value()
	assert.Equal(t, OpenMeteoProviderName, w.Provider)
	assert.Equal(t, park.ConditionCloudy, w.Condition)
	require.NotNil(t, w.TemperatureC)
	assert.InDelta(t, 18.4, *w.TemperatureC, 1e-9)
	assert.Nil(t, w.HumidityPercent)

	q := api.lastRequest().URL.Query()
	assert.Equal(t, "/forecast", api.lastRequest().URL.Path)
	assert.Equal(t, "37.8651", q.Get("latitude"))
	assert.Equal(t, "-119.5383", q.Get("longitude"))
	assert.Equal(t, "true", q.Get("current_weather"))
	assert.Equal(t, "ms", q.Get("windspeed_unit"))
}

func TestOpenWeatherCurrentWeather(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"coord":{"lat":37.87,"lon":-119.54},"dt":1717243200,
			"main":{"temp":19.2,"humidity":40,"pressure":1015},
			"wind":{"speed":3.5,"deg":200},
			"weather":[{"main":"Clear","description":"clear sky"}]}`)
	})
	client := NewOpenWeatherClient(endpoint(OpenWeatherProviderName, api.URL, "ow-key"))

	res := client.CurrentWeather(context.Background(), yosemite)

	require.True(t, res.IsOk(), "%v", res.Err())
	w, _ := res.Value()
	assert.Equal(t, park.ConditionClear, w.Condition)
	assert.Equal(t, "clear sky", w.WeatherDescription)
	assert.Equal(t, "2024-06-01T12:00:00Z", w.ObservationTime)
	require.NotNil(t, w.HumidityPercent)
	assert.InDelta(t, 40, *w.HumidityPercent, 1e-9)

	q := api.lastRequest().URL.Query()
	assert.Equal(t, "ow-key", q.Get("appid"))
	assert.Equal(t, "metric", q.Get("units"))
}

func TestWeatherFallbackReturnsOpenMeteoOutcome(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	meteo := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, openMeteoBody)
	})

	openWeather := NewOpenWeatherClient(endpoint(OpenWeatherProviderName, deadURL, "ow-key"))
	openMeteo := NewOpenMeteoClient(endpoint(OpenMeteoProviderName, meteo.URL, ""))
	require.True(t, openWeather.Configured())

	direct := openMeteo.CurrentWeather(context.Background(), yosemite)
	require.True(t, direct.IsOk(), "%v", direct.Err())

	chain := park.NewFallbackChain(openWeather, openMeteo, nil)
	res := chain.GetWeather(context.Background(), yosemite)

	require.True(t, res.IsOk(), "%v", res.Err())
	got, _ := res.Value()
	want, _ := direct.Value()
	assert.Equal(t, want, got)
	assert.EqualValues(t, 2, meteo.hits.Load())
}

func TestAirVisualWithoutKeyMakesNoCalls(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{}}`)
	})
	limiter := resilience.NewRateLimiter(AirVisualProviderName, 1, 0.001)
	ep := endpoint(AirVisualProviderName, api.URL, "")
	ep.Executor = resilience.NewExecutor(AirVisualProviderName, fastPolicy(), resilience.WithRateLimiter(limiter, 0))
	client := NewAirVisualClient(ep)

	res := client.AirQuality(context.Background(), yosemite)

	require.False(t, res.IsOk())
	assert.Equal(t, resilience.KindConfiguration, res.Err().Kind)
	assert.Equal(t, AirVisualProviderName, res.Err().Provider)
	assert.Zero(t, api.hits.Load())
	assert.InDelta(t, 1, limiter.Tokens(), 0.01)
}

func TestAirVisualNearestCity(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{
			"city":"Yosemite Valley","state":"California","country":"USA",
			"location":{"type":"Point","coordinates":[-119.59,37.74]},
			"current":{"pollution":{"ts":"2024-06-01T12:00:00.000Z","aqius":42,"mainus":"p2","aqicn":15,"maincn":"p2"}}}}`)
	})
	client := NewAirVisualClient(endpoint(AirVisualProviderName, api.URL, "av-key"))

	res := client.AirQuality(context.Background(), yosemite)

	require.True(t, res.IsOk(), "%v", res.Err())
	aq, _ := res.Value()
	assert.Equal(t, "Yosemite Valley", aq.Location.City)
	assert.InDelta(t, 37.74, aq.Location.Latitude, 1e-9)
	assert.InDelta(t, -119.59, aq.Location.Longitude, 1e-9)
	require.NotNil(t, aq.Indices.AQIUS)
	assert.Equal(t, 42, *aq.Indices.AQIUS)

	req := api.lastRequest()
	assert.Equal(t, "/nearest_city", req.URL.Path)
	assert.Equal(t, "av-key", req.URL.Query().Get("key"))
}

func TestAirVisualFailStatus(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"fail","data":{"message":"city_not_found"}}`)
	})
	client := NewAirVisualClient(endpoint(AirVisualProviderName, api.URL, "av-key"))

	res := client.AirQuality(context.Background(), yosemite)

	require.False(t, res.IsOk())
	assert.Equal(t, resilience.KindValidation, res.Err().Kind)
	assert.Contains(t, res.Err().Message, "city_not_found")
	assert.EqualValues(t, 1, api.hits.Load())
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(RegistryConfig{
		Parks:     Settings{APIKey: "nps-key", RequestsPerHour: 100, BreakerThreshold: 3},
		OpenMeteo: Settings{BaseURL: "http://localhost:1"},
	}, nil, nil)
	require.NoError(t, err)

	assert.True(t, reg.Parks.Configured())
	assert.False(t, reg.OpenWeather.Configured())
	assert.True(t, reg.OpenMeteo.Configured())
	assert.False(t, reg.AirVisual.Configured())

	limiters := reg.Limiters()
	require.Len(t, limiters, 4)
	assert.Equal(t, ParksProviderName, limiters[0].Name())
	assert.Equal(t, 100, limiters[0].Capacity())
	assert.Equal(t, 1000, limiters[1].Capacity())
}

func TestRegistryRejectsInvalidPolicy(t *testing.T) {
	policy := fastPolicy()
	policy.MaxAttempts = 0

	reg, err := NewRegistry(RegistryConfig{
		Parks: Settings{APIKey: "nps-key", Policy: policy},
	}, nil, nil)

	require.Error(t, err)
	assert.Nil(t, reg)
	assert.Contains(t, err.Error(), ParksProviderName)
}
