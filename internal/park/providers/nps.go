package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/parks-context/internal/common"
	"github.com/i474232898/parks-context/internal/park"
	"github.com/i474232898/parks-context/internal/resilience"
)

// ParksProviderName identifies the National Park Service provider.
const ParksProviderName = "parks"

// NPSClient talks to the National Park Service API.
type NPSClient struct {
	c *client
}

var _ park.ParkCatalog = (*NPSClient)(nil)

// NewNPSClient creates a Parks client. The API key is sent in the
// X-Api-Key header and is required.
func NewNPSClient(ep Endpoint) *NPSClient {
	if ep.Name == "" {
		ep.Name = ParksProviderName
	}
	if ep.BaseURL == "" {
		ep.BaseURL = "https://developer.nps.gov/api/v1"
	}
	return &NPSClient{c: newClient(ep, true, headerAuth("X-Api-Key"))}
}

// Name returns the provider name.
func (n *NPSClient) Name() string { return n.c.name }

// Configured reports whether an API key is set.
func (n *NPSClient) Configured() bool { return n.c.configured() }

type npsEnvelope[T any] struct {
	Total flexInt `json:"total"`
	Limit flexInt `json:"limit"`
	Start flexInt `json:"start"`
	Data  []T     `json:"data"`
}

func (e npsEnvelope[T]) page() park.Page {
	return park.Page{Total: int(e.Total), Limit: int(e.Limit), Start: int(e.Start)}
}

func decodeEnvelope[T any](body []byte) (npsEnvelope[T], error) {
	var env npsEnvelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return env, err
	}
	if env.Data == nil {
		return env, errors.New("missing data array")
	}
	return env, nil
}

type npsPark struct {
	ID             string `json:"id"`
	ParkCode       string `json:"parkCode"`
	Name           string `json:"name"`
	FullName       string `json:"fullName"`
	Designation    string `json:"designation"`
	Description    string `json:"description"`
	States         string `json:"states"`
	URL            string `json:"url"`
	Latitude       string `json:"latitude"`
	Longitude      string `json:"longitude"`
	WeatherInfo    string `json:"weatherInfo"`
	DirectionsInfo string `json:"directionsInfo"`
	Activities     []struct {
		Name string `json:"name"`
	} `json:"activities"`
	EntranceFees []park.Fee `json:"entranceFees"`
}

func (p npsPark) normalize() park.Park {
	activities := make([]string, 0, len(p.Activities))
	for _, a := range p.Activities {
		activities = append(activities, a.Name)
	}
	return park.Park{
		ID:             p.ID,
		ParkCode:       p.ParkCode,
		Name:           p.Name,
		FullName:       p.FullName,
		Designation:    p.Designation,
		Description:    p.Description,
		States:         common.SplitTrim(p.States),
		URL:            p.URL,
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
		WeatherInfo:    p.WeatherInfo,
		DirectionsInfo: p.DirectionsInfo,
		Activities:     activities,
		EntranceFees:   p.EntranceFees,
	}
}

func listParams(q park.ListQuery) url.Values {
	v := url.Values{}
	if q.ParkCode != "" {
		v.Set("parkCode", q.ParkCode)
	}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	v.Set("limit", strconv.Itoa(clampLimit(q.Limit)))
	if q.Start > 0 {
		v.Set("start", strconv.Itoa(q.Start))
	}
	return v
}

// clampLimit applies the default page size of 10 and the maximum of 50.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 10
	case limit > 50:
		return 50
	default:
		return limit
	}
}

// FindParks searches parks by state, keyword or activity. Unknown state
// codes fail validation without a network call.
func (n *NPSClient) FindParks(ctx context.Context, q park.ParkQuery) resilience.Result[park.ParkList] {
	if invalid := park.InvalidStateCodes(q.StateCodes); len(invalid) > 0 {
		return resilience.Fail[park.ParkList](resilience.NewError(resilience.KindValidation, n.c.name,
			"invalid state code(s): %s", strings.Join(invalid, ", ")))
	}

	v := url.Values{}
	if len(q.StateCodes) > 0 {
		codes := make([]string, len(q.StateCodes))
		for i, s := range q.StateCodes {
			codes[i] = strings.ToUpper(strings.TrimSpace(s))
		}
		v.Set("stateCode", strings.Join(codes, ","))
	}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.Activities != "" {
		v.Set("activities", q.Activities)
	}
	v.Set("limit", strconv.Itoa(clampLimit(q.Limit)))
	if q.Start > 0 {
		v.Set("start", strconv.Itoa(q.Start))
	}

	return call(ctx, n.c, "/parks", v, func(body []byte) (park.ParkList, error) {
		env, err := decodeEnvelope[npsPark](body)
		if err != nil {
			return park.ParkList{}, err
		}
		parks := make([]park.Park, 0, len(env.Data))
		for _, p := range env.Data {
			parks = append(parks, p.normalize())
		}
		return park.ParkList{Page: env.page(), Parks: parks}, nil
	})
}

// ParkDetails fetches one park by code. An empty result is a
// ValidationError: the code does not name a park.
func (n *NPSClient) ParkDetails(ctx context.Context, parkCode string) resilience.Result[park.Park] {
	v := url.Values{}
	v.Set("parkCode", parkCode)

	return call(ctx, n.c, "/parks", v, func(body []byte) (park.Park, error) {
		env, err := decodeEnvelope[npsPark](body)
		if err != nil {
			return park.Park{}, err
		}
		if len(env.Data) == 0 {
			return park.Park{}, fmt.Errorf("no park found with park code %q", parkCode)
		}
		return env.Data[0].normalize(), nil
	})
}

type npsAlert struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	URL             string `json:"url"`
	ParkCode        string `json:"parkCode"`
	LastIndexedDate string `json:"lastIndexedDate"`
}

// Alerts lists current alerts and closures, grouped by park code.
func (n *NPSClient) Alerts(ctx context.Context, q park.ListQuery) resilience.Result[park.AlertsData] {
	return call(ctx, n.c, "/alerts", listParams(q), func(body []byte) (park.AlertsData, error) {
		env, err := decodeEnvelope[npsAlert](body)
		if err != nil {
			return park.AlertsData{}, err
		}
		out := park.AlertsData{
			Page:         env.page(),
			Alerts:       make([]park.Alert, 0, len(env.Data)),
			AlertsByPark: make(map[string][]park.Alert),
		}
		for _, a := range env.Data {
			alert := park.Alert(a)
			out.Alerts = append(out.Alerts, alert)
			out.AlertsByPark[a.ParkCode] = append(out.AlertsByPark[a.ParkCode], alert)
		}
		return out, nil
	})
}

type npsCampground struct {
	ID                               string  `json:"id"`
	Name                             string  `json:"name"`
	ParkCode                         string  `json:"parkCode"`
	Description                      string  `json:"description"`
	URL                              string  `json:"url"`
	Latitude                         string  `json:"latitude"`
	Longitude                        string  `json:"longitude"`
	ReservationURL                   string  `json:"reservationUrl"`
	NumberOfSitesReservable          flexInt `json:"numberOfSitesReservable"`
	NumberOfSitesFirstComeFirstServe flexInt `json:"numberOfSitesFirstComeFirstServe"`
	WeatherOverview                  string  `json:"weatherOverview"`
	DirectionsOverview               string  `json:"directionsOverview"`
	Campsites                        struct {
		TotalSites flexInt `json:"totalSites"`
	} `json:"campsites"`
}

// Campgrounds lists campgrounds for a park.
func (n *NPSClient) Campgrounds(ctx context.Context, q park.ListQuery) resilience.Result[park.CampgroundList] {
	return call(ctx, n.c, "/campgrounds", listParams(q), func(body []byte) (park.CampgroundList, error) {
		env, err := decodeEnvelope[npsCampground](body)
		if err != nil {
			return park.CampgroundList{}, err
		}
		out := park.CampgroundList{Page: env.page(), Campgrounds: make([]park.Campground, 0, len(env.Data))}
		for _, c := range env.Data {
			out.Campgrounds = append(out.Campgrounds, park.Campground{
				ID:                 c.ID,
				Name:               c.Name,
				ParkCode:           c.ParkCode,
				Description:        c.Description,
				URL:                c.URL,
				Latitude:           c.Latitude,
				Longitude:          c.Longitude,
				ReservationURL:     c.ReservationURL,
				TotalSites:         int(c.Campsites.TotalSites),
				ReservableSites:    int(c.NumberOfSitesReservable),
				FirstComeSites:     int(c.NumberOfSitesFirstComeFirstServe),
				WeatherOverview:    c.WeatherOverview,
				DirectionsOverview: c.DirectionsOverview,
			})
		}
		return out, nil
	})
}

type npsVisitorCenter struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ParkCode       string `json:"parkCode"`
	Description    string `json:"description"`
	URL            string `json:"url"`
	Latitude       string `json:"latitude"`
	Longitude      string `json:"longitude"`
	DirectionsInfo string `json:"directionsInfo"`
}

// VisitorCenters lists visitor centers for a park.
func (n *NPSClient) VisitorCenters(ctx context.Context, q park.ListQuery) resilience.Result[park.VisitorCenterList] {
	return call(ctx, n.c, "/visitorcenters", listParams(q), func(body []byte) (park.VisitorCenterList, error) {
		env, err := decodeEnvelope[npsVisitorCenter](body)
		if err != nil {
			return park.VisitorCenterList{}, err
		}
		out := park.VisitorCenterList{Page: env.page(), VisitorCenters: make([]park.VisitorCenter, 0, len(env.Data))}
		for _, vc := range env.Data {
			out.VisitorCenters = append(out.VisitorCenters, park.VisitorCenter(vc))
		}
		return out, nil
	})
}

type npsEvent struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ParkName    string   `json:"parkFullName"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	DateStart   string   `json:"dateStart"`
	DateEnd     string   `json:"dateEnd"`
	Dates       []string `json:"dates"`
	IsFree      any      `json:"isFree"`
	URL         string   `json:"url"`
}

// Events lists upcoming events for a park.
func (n *NPSClient) Events(ctx context.Context, q park.ListQuery) resilience.Result[park.EventList] {
	return call(ctx, n.c, "/events", listParams(q), func(body []byte) (park.EventList, error) {
		env, err := decodeEnvelope[npsEvent](body)
		if err != nil {
			return park.EventList{}, err
		}
		out := park.EventList{Page: env.page(), Events: make([]park.Event, 0, len(env.Data))}
		for _, e := range env.Data {
			out.Events = append(out.Events, park.Event{
				ID:          e.ID,
				Title:       e.Title,
				ParkName:    e.ParkName,
				Description: e.Description,
				Location:    e.Location,
				DateStart:   e.DateStart,
				DateEnd:     e.DateEnd,
				Dates:       e.Dates,
				IsFree:      parseBool(e.IsFree),
				URL:         e.URL,
			})
		}
		return out, nil
	})
}

// parseBool accepts the mix of booleans and "true"/"false" strings the
// events endpoint returns.
func parseBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		ok, _ := strconv.ParseBool(strings.TrimSpace(b))
		return ok
	default:
		return false
	}
}
