package overpass

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckpilot/hazardwatch/internal/cache"
	"github.com/truckpilot/hazardwatch/internal/lib/geo"
	"github.com/truckpilot/hazardwatch/internal/lib/hazard"
	"github.com/truckpilot/hazardwatch/internal/lib/units"
)

const metersPerDegreeLat = 6371000 * math.Pi / 180

func testRoute(n int, spacingMeters float64) []geo.Point {
	route := make([]geo.Point, n)
	for i := range route {
		route[i] = geo.Point{
			Latitude:  38.0 + float64(i)*spacingMeters/metersPerDegreeLat,
			Longitude: -120.0,
		}
	}
	return route
}

const sampleResponse = `{
  "elements": [
    {
      "type": "way",
      "id": 1001,
      "tags": {"maxheight": "3.5", "name": "Main St"},
      "geometry": [{"lat": 38.001, "lon": -120.0}, {"lat": 38.002, "lon": -120.0}]
    },
    {
      "type": "way",
      "id": 1002,
      "tags": {"maxweight": "26000 lbs", "maxheight": "11'6\"", "tunnel": "yes"},
      "lat": 38.003,
      "lon": -120.001
    },
    {
      "type": "way",
      "id": 1003,
      "tags": {"maxwidth": "garbage value"},
      "lat": 38.004,
      "lon": -120.0
    },
    {
      "type": "way",
      "id": 1004,
      "tags": {"maxlength": "18"}
    }
  ]
}`

func TestFetchRestrictions_ParsesElements(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		query := r.Form.Get("data")
		assert.Contains(t, query, "[out:json]")
		assert.Contains(t, query, `["maxheight"]`)
		assert.Contains(t, query, "out tags geom;")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	client := NewClient(nil, WithEndpoint(server.URL))
	records, err := client.FetchRestrictions(context.Background(), testRoute(5, 500))
	require.NoError(t, err)

	// Way 1001: one height record anchored at its first geometry vertex.
	// Way 1002: one weight and one tunnel height record at its own coord.
	// Way 1003: unparseable width, dropped. Way 1004: no coordinate, dropped.
	require.Len(t, records, 3)

	var metricHeight, weight *hazard.RestrictionRecord
	for i, r := range records {
		if r.Kind == hazard.MaxHeight && r.Unit == units.Meters {
			metricHeight = &records[i]
		}
		if r.Kind == hazard.MaxWeight {
			weight = &records[i]
		}
	}

	require.NotNil(t, metricHeight)
	assert.InDelta(t, 38.001, metricHeight.Location.Latitude, 1e-9, "first geometry vertex wins")
	assert.Equal(t, "Main St", metricHeight.RoadName)

	require.NotNil(t, weight)
	assert.Equal(t, units.Pounds, weight.Unit)
	assert.InDelta(t, 26000, weight.Value, 1e-6)
	assert.True(t, weight.Tunnel)
}

func TestFetchRestrictions_NameAndFeetParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	client := NewClient(nil, WithEndpoint(server.URL))
	records, err := client.FetchRestrictions(context.Background(), testRoute(2, 100))
	require.NoError(t, err)

	var named, feet bool
	for _, r := range records {
		if r.RoadName == "Main St" {
			named = true
		}
		if r.Unit == units.Feet {
			feet = true
			assert.InDelta(t, 11.5, r.Value, 1e-6)
		}
	}
	assert.True(t, named)
	assert.True(t, feet)
}

func TestFetchRestrictions_ServerErrorDegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too busy", http.StatusGatewayTimeout)
	}))
	defer server.Close()

	client := NewClient(nil, WithEndpoint(server.URL))
	records, err := client.FetchRestrictions(context.Background(), testRoute(5, 500))
	require.NoError(t, err, "transport failure is not surfaced as an error")
	assert.Empty(t, records)
}

func TestFetchRestrictions_MalformedBodyDegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewClient(nil, WithEndpoint(server.URL))
	records, err := client.FetchRestrictions(context.Background(), testRoute(5, 500))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchRestrictions_EmptyRoute(t *testing.T) {
	client := NewClient(nil)
	records, err := client.FetchRestrictions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchRestrictions_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(nil, WithEndpoint(server.URL))
	_, err := client.FetchRestrictions(ctx, testRoute(5, 500))
	assert.Error(t, err, "cancellation is surfaced so stale fetches can be discarded")
}

func TestFetchRestrictions_ChunkCaching(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	client := NewClient(nil,
		WithEndpoint(server.URL),
		WithCache(cache.New(nil), 15*time.Minute))

	route := testRoute(5, 500)

	first, err := client.FetchRestrictions(context.Background(), route)
	require.NoError(t, err)
	queriesAfterFirst := hits.Load()
	require.Greater(t, queriesAfterFirst, int32(0))

	second, err := client.FetchRestrictions(context.Background(), route)
	require.NoError(t, err)
	assert.Equal(t, queriesAfterFirst, hits.Load(), "second fetch of the same corridor is served from cache")
	assert.Equal(t, len(first), len(second))
}

func TestBuildQuery_CoversAllKindsAndPoints(t *testing.T) {
	points := testRoute(3, 500)
	query := buildQuery(points, 100)

	for _, kind := range hazard.RestrictionKinds {
		assert.Contains(t, query, `["`+kind.TagKey()+`"]`)
	}
	assert.Contains(t, query, "way(around:100,38.000000,-120.000000)")
}

func TestChunkPoints(t *testing.T) {
	points := testRoute(45, 500)
	chunks := chunkPoints(points, 20)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 20)
	assert.Len(t, chunks[2], 5)
}
