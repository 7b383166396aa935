package hazard

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckpilot/hazardwatch/internal/lib/geo"
)

// offsetAt returns a point the given number of meters from origin along the
// given bearing, using a planar approximation good enough for short test
// geometries.
func offsetAt(origin geo.Point, bearingDeg, meters float64) geo.Point {
	rad := bearingDeg * math.Pi / 180
	dNorth := math.Cos(rad) * meters
	dEast := math.Sin(rad) * meters
	return geo.Point{
		Latitude:  origin.Latitude + dNorth/metersPerDegreeLat,
		Longitude: origin.Longitude + dEast/(metersPerDegreeLat*math.Cos(origin.Latitude*math.Pi/180)),
	}
}

func TestDetectSharpTurn_ColinearRouteIsClear(t *testing.T) {
	window := northRoute(0, 150, 300, 450)
	assert.Nil(t, DetectSharpTurn(testOrigin, window))
}

func TestDetectSharpTurn_HundredDegreeTurn(t *testing.T) {
	// Due north for 500 m, then a 100 degree bearing change.
	turnVertex := northOf(testOrigin, 500)
	window := []geo.Point{
		testOrigin,
		northOf(testOrigin, 250),
		turnVertex,
		offsetAt(turnVertex, 100, 150),
	}

	alert := DetectSharpTurn(testOrigin, window)
	require.NotNil(t, alert)
	assert.Equal(t, SharpTurn, alert.Kind)
	assert.InDelta(t, 500, alert.DistanceMeters, 5)
}

func TestDetectSharpTurn_GentleTurnIsClear(t *testing.T) {
	turnVertex := northOf(testOrigin, 500)
	window := []geo.Point{
		testOrigin,
		northOf(testOrigin, 250),
		turnVertex,
		offsetAt(turnVertex, 45, 150),
	}

	assert.Nil(t, DetectSharpTurn(testOrigin, window), "45 degrees is under the 90 degree threshold")
}

func TestDetectSharpTurn_DistanceGating(t *testing.T) {
	// Turn vertex only 40 m ahead: below the action floor.
	nearVertex := northOf(testOrigin, 40)
	near := []geo.Point{
		testOrigin,
		nearVertex,
		offsetAt(nearVertex, 100, 150),
	}
	assert.Nil(t, DetectSharpTurn(testOrigin, near))

	// Turn vertex 1500 m ahead: beyond the 1000 m ceiling.
	farVertex := northOf(testOrigin, 1500)
	far := []geo.Point{
		testOrigin,
		farVertex,
		offsetAt(farVertex, 100, 150),
	}
	assert.Nil(t, DetectSharpTurn(testOrigin, far))
}

func TestDetectSharpTurn_FirstQualifyingTurnWins(t *testing.T) {
	first := northOf(testOrigin, 200)
	afterFirst := offsetAt(first, 100, 120)
	second := offsetAt(afterFirst, 100, 120)
	window := []geo.Point{
		testOrigin,
		first,
		afterFirst,
		second,
		offsetAt(second, 200, 120),
	}

	alert := DetectSharpTurn(testOrigin, window)
	require.NotNil(t, alert)
	assert.InDelta(t, 200, alert.DistanceMeters, 5, "reports the first turn along the window")
}

func TestDetectSharpTurn_ScanBounded(t *testing.T) {
	// A sharp turn past the tenth vertex is not actionable yet.
	window := northRoute(0, 50, 100, 150, 200, 250, 300, 350, 400, 450, 500, 550)
	turnVertex := window[len(window)-1]
	window = append(window, offsetAt(turnVertex, 100, 100))

	assert.Nil(t, DetectSharpTurn(testOrigin, window))
}

func TestDetectSharpTurn_DegenerateWindows(t *testing.T) {
	assert.Nil(t, DetectSharpTurn(testOrigin, nil))
	assert.Nil(t, DetectSharpTurn(testOrigin, northRoute(0)))
	assert.Nil(t, DetectSharpTurn(testOrigin, northRoute(0, 100)))
}
