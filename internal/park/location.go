package park

import (
	"context"

	"github.com/i474232898/parks-context/internal/resilience"
)

// ParksProvider is the provider name used for errors raised while
// resolving a park's location.
const ParksProvider = "parks"

// LocationResolver translates park codes into coordinates using the Parks
// provider. Nothing is cached: every call re-fetches the park details.
type LocationResolver struct {
	parks ParkSource
}

func NewLocationResolver(parks ParkSource) *LocationResolver {
	return &LocationResolver{parks: parks}
}

// Resolve fetches the park and extracts its coordinates. A failed parks
// call is returned unchanged; a park without usable coordinates is a
// ValidationError.
func (r *LocationResolver) Resolve(ctx context.Context, parkCode string) resilience.Result[ResolvedLocation] {
	return resilience.Then(r.parks.ParkDetails(ctx, parkCode), func(p Park) resilience.Result[ResolvedLocation] {
		return LocationFromPark(parkCode, p)
	})
}

// LocationFromPark extracts a ResolvedLocation from already fetched park details.
func LocationFromPark(parkCode string, p Park) resilience.Result[ResolvedLocation] {
	c, ok := p.Coordinates()
	if !ok {
		return resilience.Fail[ResolvedLocation](resilience.NewError(resilience.KindValidation, ParksProvider,
			"coordinates unavailable for parkCode %s", parkCode))
	}
	source := p.ParkCode
	if source == "" {
		source = parkCode
	}
	return resilience.Ok(ResolvedLocation{
		Latitude:       c.Latitude,
		Longitude:      c.Longitude,
		SourceParkCode: source,
	})
}
