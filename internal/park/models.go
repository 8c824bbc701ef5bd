package park

import (
	"math"
	"strconv"
	"strings"

	"github.com/i474232898/parks-context/internal/resilience"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether c is a finite point on the globe.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Fee is an entrance fee or pass.
type Fee struct {
	Cost        string `json:"cost"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Park is the normalized park record. Latitude and Longitude keep the raw
// strings the Parks API returns; they are frequently empty.
type Park struct {
	ID             string   `json:"id"`
	ParkCode       string   `json:"code"`
	Name           string   `json:"name"`
	FullName       string   `json:"fullName"`
	Designation    string   `json:"designation,omitempty"`
	Description    string   `json:"description,omitempty"`
	States         []string `json:"states,omitempty"`
	URL            string   `json:"url,omitempty"`
	Latitude       string   `json:"latitude"`
	Longitude      string   `json:"longitude"`
	WeatherInfo    string   `json:"weatherInfo,omitempty"`
	DirectionsInfo string   `json:"directionsInfo,omitempty"`
	Activities     []string `json:"activities,omitempty"`
	EntranceFees   []Fee    `json:"entranceFees,omitempty"`
}

// Coordinates parses the park's latitude and longitude.
func (p Park) Coordinates() (Coordinates, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(p.Latitude), 64)
	if err != nil {
		return Coordinates{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(p.Longitude), 64)
	if err != nil {
		return Coordinates{}, false
	}
	c := Coordinates{Latitude: lat, Longitude: lon}
	return c, c.Valid()
}

// Page carries the paging fields of a Parks API listing.
type Page struct {
	Total int `json:"total"`
	Limit int `json:"limit"`
	Start int `json:"start"`
}

// ParkList is a page of parks.
type ParkList struct {
	Page
	Parks []Park `json:"parks"`
}

// Alert is a park alert, closure or notice.
type Alert struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	URL             string `json:"url,omitempty"`
	ParkCode        string `json:"parkCode"`
	LastIndexedDate string `json:"lastIndexedDate,omitempty"`
}

// AlertsData is a page of alerts, also grouped by park code.
type AlertsData struct {
	Page
	Alerts       []Alert            `json:"alerts"`
	AlertsByPark map[string][]Alert `json:"alertsByPark"`
}

// Campground is a normalized campground record.
type Campground struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	ParkCode           string `json:"parkCode"`
	Description        string `json:"description,omitempty"`
	URL                string `json:"url,omitempty"`
	Latitude           string `json:"latitude,omitempty"`
	Longitude          string `json:"longitude,omitempty"`
	ReservationURL     string `json:"reservationUrl,omitempty"`
	TotalSites         int    `json:"totalSites"`
	ReservableSites    int    `json:"reservableSites"`
	FirstComeSites     int    `json:"firstComeFirstServeSites"`
	WeatherOverview    string `json:"weatherOverview,omitempty"`
	DirectionsOverview string `json:"directionsOverview,omitempty"`
}

// CampgroundList is a page of campgrounds.
type CampgroundList struct {
	Page
	Campgrounds []Campground `json:"campgrounds"`
}

// VisitorCenter is a normalized visitor center record.
type VisitorCenter struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ParkCode       string `json:"parkCode"`
	Description    string `json:"description,omitempty"`
	URL            string `json:"url,omitempty"`
	Latitude       string `json:"latitude,omitempty"`
	Longitude      string `json:"longitude,omitempty"`
	DirectionsInfo string `json:"directionsInfo,omitempty"`
}

// VisitorCenterList is a page of visitor centers.
type VisitorCenterList struct {
	Page
	VisitorCenters []VisitorCenter `json:"visitorCenters"`
}

// Event is a normalized park event.
type Event struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ParkName    string   `json:"parkFullName,omitempty"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	DateStart   string   `json:"dateStart,omitempty"`
	DateEnd     string   `json:"dateEnd,omitempty"`
	Dates       []string `json:"dates,omitempty"`
	IsFree      bool     `json:"isFree"`
	URL         string   `json:"url,omitempty"`
}

// EventList is a page of events.
type EventList struct {
	Page
	Events []Event `json:"events"`
}

// WeatherData is the provider-independent current-conditions shape.
type WeatherData struct {
	Provider           string    `json:"provider"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	TemperatureC       *float64  `json:"temperatureC,omitempty"`
	HumidityPercent    *float64  `json:"humidityPercent,omitempty"`
	PressureHpa        *float64  `json:"pressureHpa,omitempty"`
	WindSpeedMS        *float64  `json:"windSpeedMS,omitempty"`
	WindDirectionDeg   *float64  `json:"windDirectionDeg,omitempty"`
	WeatherDescription string    `json:"weatherDescription,omitempty"`
	Condition          Condition `json:"condition"`
	ObservationTime    string    `json:"observationTime,omitempty"`
}

// AirQualityLocation names the monitoring station area.
type AirQualityLocation struct {
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AirQualityIndices holds AQI values and main pollutants.
type AirQualityIndices struct {
	AQIUS           *int   `json:"aqiUS,omitempty"`
	AQICN           *int   `json:"aqiCN,omitempty"`
	MainPollutantUS string `json:"mainPollutantUS,omitempty"`
	MainPollutantCN string `json:"mainPollutantCN,omitempty"`
}

// AirQualityData is the normalized air quality reading.
type AirQualityData struct {
	Provider  string             `json:"provider"`
	Location  AirQualityLocation `json:"location"`
	Indices   AirQualityIndices  `json:"indices"`
	Timestamp string             `json:"timestamp,omitempty"`
}

// ResolvedLocation is a park code translated into coordinates.
type ResolvedLocation struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	SourceParkCode string  `json:"sourceParkCode,omitempty"`
}

// Coordinates returns the location as a point.
func (l ResolvedLocation) Coordinates() Coordinates {
	return Coordinates{Latitude: l.Latitude, Longitude: l.Longitude}
}

// AggregatedContext is the combined park, alerts, weather and air quality
// view. Every field carries its own outcome; field order is fixed.
type AggregatedContext struct {
	ParkDetails resilience.Result[Park]           `json:"parkDetails"`
	Alerts      resilience.Result[AlertsData]     `json:"alerts"`
	Weather     resilience.Result[WeatherData]    `json:"weather"`
	AirQuality  resilience.Result[AirQualityData] `json:"airQuality"`
}

// Resolved reports whether at least the park details resolved.
func (c AggregatedContext) Resolved() bool {
	return c.ParkDetails.IsOk()
}
