package hazard

import (
	"github.com/truckpilot/hazardwatch/internal/lib/geo"
)

const (
	// sharpTurnDegrees is the bearing change beyond which a turn is
	// hazardous for a long vehicle.
	sharpTurnDegrees = 90.0

	// turnScanVertices bounds how far into the window turns are scanned;
	// turns beyond the first few vertices are not yet actionable.
	turnScanVertices = 10

	// maxTurnDistance caps how far ahead a turn warning fires.
	maxTurnDistance = 1000.0
)

// DetectSharpTurn scans the leading vertices of the route window for sharp
// bearing changes and reports the first qualifying turn, or nil. It needs no
// external data, so it keeps working when the restriction fetch failed.
func DetectSharpTurn(position geo.Point, window []geo.Point) *Alert {
	limit := len(window) - 1
	if limit > turnScanVertices {
		limit = turnScanVertices
	}

	for i := 1; i < limit; i++ {
		inbound := geo.Bearing(window[i-1], window[i])
		outbound := geo.Bearing(window[i], window[i+1])

		if geo.BearingDelta(inbound, outbound) <= sharpTurnDegrees {
			continue
		}

		distance := geo.Distance(position, window[i])
		if distance <= minActionableDistance || distance > maxTurnDistance {
			continue
		}

		return &Alert{Kind: SharpTurn, DistanceMeters: distance}
	}

	return nil
}
