package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/parks-context/internal/common"
	"github.com/i474232898/parks-context/internal/park"
	"github.com/i474232898/parks-context/internal/resilience"
	"github.com/i474232898/parks-context/internal/store"
)

var validate = validator.New()

// requestProvider tags errors raised while validating an incoming request.
const requestProvider = "api"

// Services are the collaborators the HTTP layer exposes.
type Services struct {
	Parks      park.ParkCatalog
	Weather    *park.FallbackChain
	AirQuality park.AirQualitySource
	Aggregator *park.Aggregator
	History    *store.MemoryStore
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc Services) {
	resolver := park.NewLocationResolver(svc.Parks)
	v1 := app.Group("/api/v1")

	v1.Get("/parks", func(c *fiber.Ctx) error {
		var req parkSearchQuery
		if err := req.bind(c); err != nil {
			return badRequest(c, err)
		}
		return writeResult(c, svc.Parks.FindParks(c.UserContext(), req.toQuery()))
	})

	v1.Get("/parks/:parkCode", func(c *fiber.Ctx) error {
		code := c.Params("parkCode")
		if err := park.ValidateParkCode(requestProvider, code); err != nil {
			return writeError(c, err)
		}
		return writeResult(c, svc.Parks.ParkDetails(c.UserContext(), code))
	})

	// Listings for one or more parks named in the path.
	v1.Get("/parks/:parkCode/alerts", listHandler(pathParkCodes, svc.Parks.Alerts))
	v1.Get("/parks/:parkCode/campgrounds", listHandler(pathParkCodes, svc.Parks.Campgrounds))
	v1.Get("/parks/:parkCode/visitorcenters", listHandler(pathParkCodes, svc.Parks.VisitorCenters))
	v1.Get("/parks/:parkCode/events", listHandler(pathParkCodes, svc.Parks.Events))

	// Listings across all parks, optionally filtered by ?parkCode=a,b.
	v1.Get("/alerts", listHandler(queryParkCodes, svc.Parks.Alerts))
	v1.Get("/campgrounds", listHandler(queryParkCodes, svc.Parks.Campgrounds))
	v1.Get("/visitorcenters", listHandler(queryParkCodes, svc.Parks.VisitorCenters))
	v1.Get("/events", listHandler(queryParkCodes, svc.Parks.Events))

	v1.Get("/parks/:parkCode/context", func(c *fiber.Ctx) error {
		code := c.Params("parkCode")
		if err := park.ValidateParkCode(requestProvider, code); err != nil {
			return writeError(c, err)
		}
		pref, perr := weatherPreference(c, "weatherProvider")
		if perr != nil {
			return writeError(c, perr)
		}
		out, err := svc.Aggregator.GetContext(c.UserContext(), code, pref)
		if err != nil {
			return err
		}
		status := fiber.StatusOK
		if !out.Resolved() {
			status = StatusFor(out.ParkDetails.Err())
		}
		return c.Status(status).JSON(out)
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		var req locationQuery
		if err := req.bind(c); err != nil {
			return badRequest(c, err)
		}
		pref, perr := weatherPreference(c, "provider")
		if perr != nil {
			return writeError(c, perr)
		}
		res := resilience.Then(req.resolve(c.UserContext(), resolver), func(at park.Coordinates) resilience.Result[park.WeatherData] {
			return svc.Weather.Get(c.UserContext(), at, pref)
		})
		return writeResult(c, res)
	})

	v1.Get("/airquality", func(c *fiber.Ctx) error {
		var req locationQuery
		if err := req.bind(c); err != nil {
			return badRequest(c, err)
		}
		res := resilience.Then(req.resolve(c.UserContext(), resolver), func(at park.Coordinates) resilience.Result[park.AirQualityData] {
			return svc.AirQuality.AirQuality(c.UserContext(), at)
		})
		return writeResult(c, res)
	})

	v1.Get("/providers/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"providers": svc.History.Status()})
	})

	v1.Get("/providers/:name/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return badRequest(c, err)
		}
		if err := validate.Struct(req); err != nil {
			return badRequest(c, err)
		}

		outcomes, err := svc.History.GetRange(req.Provider, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no provider history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch provider history")
		}

		return c.JSON(fiber.Map{
			"provider": req.Provider,
			"from":     req.From,
			"to":       req.To,
			"outcomes": outcomes,
		})
	})
}

// parkCodesFunc extracts the comma-joined park codes a listing is filtered by.
type parkCodesFunc func(c *fiber.Ctx) (string, *resilience.Error)

// pathParkCodes requires at least one valid code in the :parkCode segment.
func pathParkCodes(c *fiber.Ctx) (string, *resilience.Error) {
	raw := c.Params("parkCode")
	codes, err := park.ParseParkCodes(requestProvider, raw)
	if err != nil {
		return "", err
	}
	if len(codes) == 0 {
		return "", park.ValidateParkCode(requestProvider, raw)
	}
	return strings.Join(codes, ","), nil
}

// queryParkCodes reads the optional parkCode query parameter.
func queryParkCodes(c *fiber.Ctx) (string, *resilience.Error) {
	codes, err := park.ParseParkCodes(requestProvider, c.Query("parkCode"))
	if err != nil {
		return "", err
	}
	return strings.Join(codes, ","), nil
}

func weatherPreference(c *fiber.Ctx, key string) (park.Preference, *resilience.Error) {
	raw := c.Query(key)
	pref, ok := park.ParsePreference(raw)
	if !ok {
		return "", resilience.NewError(resilience.KindValidation, requestProvider,
			"invalid %s %q; use auto, openweather or open-meteo", key, raw)
	}
	return pref, nil
}

func listHandler[T any](parkCodes parkCodesFunc, fetch func(context.Context, park.ListQuery) resilience.Result[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		codes, err := parkCodes(c)
		if err != nil {
			return writeError(c, err)
		}
		var page pageQuery
		if err := page.bind(c); err != nil {
			return badRequest(c, err)
		}
		return writeResult(c, fetch(c.UserContext(), park.ListQuery{
			ParkCode: codes,
			Query:    c.Query("q"),
			Limit:    page.Limit,
			Start:    page.Start,
		}))
	}
}

// StatusFor maps an error kind to the HTTP status returned to clients.
func StatusFor(err *resilience.Error) int {
	if err == nil {
		return fiber.StatusOK
	}
	switch err.Kind {
	case resilience.KindValidation:
		return fiber.StatusBadRequest
	case resilience.KindConfiguration:
		return fiber.StatusServiceUnavailable
	case resilience.KindTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusBadGateway
	}
}

func writeResult[T any](c *fiber.Ctx, r resilience.Result[T]) error {
	return c.Status(StatusFor(r.Err())).JSON(r)
}

func writeError(c *fiber.Ctx, err *resilience.Error) error {
	return writeResult(c, resilience.Fail[struct{}](err))
}

func badRequest(c *fiber.Ctx, err error) error {
	return writeError(c, resilience.NewError(resilience.KindValidation, requestProvider, "%s", err.Error()))
}

// pageQuery holds the paging parameters of listing endpoints.
type pageQuery struct {
	Limit int `validate:"min=0,max=50"`
	Start int `validate:"min=0"`
}

func (p *pageQuery) bind(c *fiber.Ctx) error {
	var err error
	if p.Limit, err = queryInt(c, "limit"); err != nil {
		return err
	}
	if p.Start, err = queryInt(c, "start"); err != nil {
		return err
	}
	return validate.Struct(p)
}

// parkSearchQuery holds query parameters for the park search endpoint.
type parkSearchQuery struct {
	StateCodes []string
	Query      string
	Activities string
	Page       pageQuery
}

func (q *parkSearchQuery) bind(c *fiber.Ctx) error {
	q.StateCodes = common.SplitTrim(c.Query("stateCode"))
	q.Query = c.Query("q")
	q.Activities = c.Query("activities")
	return q.Page.bind(c)
}

func (q parkSearchQuery) toQuery() park.ParkQuery {
	return park.ParkQuery{
		StateCodes: q.StateCodes,
		Query:      q.Query,
		Activities: q.Activities,
		Limit:      q.Page.Limit,
		Start:      q.Page.Start,
	}
}

// locationQuery identifies a point either by park code or by coordinates.
type locationQuery struct {
	ParkCode  string
	Latitude  *float64 `validate:"omitempty,latitude"`
	Longitude *float64 `validate:"omitempty,longitude"`
}

func (l *locationQuery) bind(c *fiber.Ctx) error {
	l.ParkCode = strings.TrimSpace(c.Query("parkCode"))

	lat, lon := c.Query("lat"), c.Query("lon")
	switch {
	case l.ParkCode != "" && (lat != "" || lon != ""):
		return errors.New("use either parkCode or lat/lon, not both")
	case l.ParkCode != "":
		return nil
	case lat == "" || lon == "":
		return errors.New("parkCode or both lat and lon query parameters are required")
	}

	latV, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return errors.New("lat must be a number")
	}
	lonV, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return errors.New("lon must be a number")
	}
	l.Latitude, l.Longitude = &latV, &lonV
	return validate.Struct(l)
}

// resolve returns the query's coordinates, looking up the park when a park
// code was given.
func (l locationQuery) resolve(ctx context.Context, resolver *park.LocationResolver) resilience.Result[park.Coordinates] {
	if l.ParkCode == "" {
		return resilience.Ok(park.Coordinates{Latitude: *l.Latitude, Longitude: *l.Longitude})
	}
	if err := park.ValidateParkCode(requestProvider, l.ParkCode); err != nil {
		return resilience.Fail[park.Coordinates](err)
	}
	return resilience.Then(resolver.Resolve(ctx, l.ParkCode), func(loc park.ResolvedLocation) resilience.Result[park.Coordinates] {
		return resilience.Ok(loc.Coordinates())
	})
}

// historyQuery holds query parameters for the provider history endpoint.
type historyQuery struct {
	Provider string    `validate:"required"`
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.Provider = c.Params("name")

	h.To = time.Now().UTC()
	if s := c.Query("to"); s != "" {
		to, err := parseTime(s)
		if err != nil {
			return err
		}
		h.To = to
	}

	h.From = h.To.Add(-time.Hour)
	if s := c.Query("from"); s != "" {
		from, err := parseTime(s)
		if err != nil {
			return err
		}
		h.From = from
	}
	return nil
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
