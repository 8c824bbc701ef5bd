package park

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/parks-context/internal/resilience"
)

func TestResolve(t *testing.T) {
	parks := &fakeParks{details: resilience.Ok(yosemitePark())}
	r := NewLocationResolver(parks)

	res := r.Resolve(context.Background(), "yose")

	require.True(t, res.IsOk())
	loc, _ := res.Value()
	assert.Equal(t, ResolvedLocation{Latitude: 37.8651, Longitude: -119.5383, SourceParkCode: "yose"}, loc)
}

func TestResolveRefetchesEveryCall(t *testing.T) {
	parks := &fakeParks{details: resilience.Ok(yosemitePark())}
	r := NewLocationResolver(parks)

	r.Resolve(context.Background(), "yose")
	r.Resolve(context.Background(), "yose")

	assert.EqualValues(t, 2, parks.detailsCalls.Load())
}

func TestResolvePropagatesParksError(t *testing.T) {
	cause := resilience.HTTPError("parks", 503, "Service Unavailable", true)
	r := NewLocationResolver(&fakeParks{details: resilience.Fail[Park](cause)})

	res := r.Resolve(context.Background(), "yose")

	require.False(t, res.IsOk())
	assert.Same(t, cause, res.Err())
}

func TestResolveMissingCoordinates(t *testing.T) {
	for name, p := range map[string]Park{
		"empty":        {ParkCode: "xmpl"},
		"non numeric":  {ParkCode: "xmpl", Latitude: "north", Longitude: "-119"},
		"out of range": {ParkCode: "xmpl", Latitude: "137.2", Longitude: "-119"},
	} {
		t.Run(name, func(t *testing.T) {
			parks := &fakeParks{details: resilience.Ok(p)}
			weather := &fakeWeather{name: "open-meteo", configured: true}
			aq := &fakeAirQuality{}
			agg := NewAggregator(parks, NewFallbackChain(nil, weather, nil), aq)

			res := NewLocationResolver(parks).Resolve(context.Background(), "xmpl")
			require.False(t, res.IsOk())
			assert.Equal(t, resilience.KindValidation, res.Err().Kind)
			assert.Equal(t, "parks", res.Err().Provider)

			out, err := agg.GetContext(context.Background(), "xmpl", PreferAuto)
			require.NoError(t, err)
			assert.True(t, out.ParkDetails.IsOk())
			assert.Equal(t, resilience.KindValidation, out.Weather.Err().Kind)
			assert.Equal(t, resilience.KindValidation, out.AirQuality.Err().Kind)
			assert.Zero(t, weather.calls.Load())
			assert.Zero(t, aq.calls.Load())
		})
	}
}
