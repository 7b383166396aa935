package hazard

import (
	"github.com/truckpilot/hazardwatch/internal/lib/geo"
	"github.com/truckpilot/hazardwatch/internal/lib/units"
)

// Safety margins subtracted from a restriction's limit before comparison,
// so alerts fire slightly before an exact-equal clearance.
const (
	heightMarginMeters = 0.05
	widthMarginMeters  = 0.05
	lengthMarginMeters = 0.10
	weightMarginKg     = 100.0

	// steepGradePercent is the incline at which a grade becomes a hazard
	// for a loaded truck regardless of its profile.
	steepGradePercent = 12.0

	// offRouteThreshold discards restrictions whose nearest window vertex
	// is too far away to be on the relevant road.
	offRouteThreshold = 200.0

	// minActionableDistance is the floor below which a hazard is too close
	// to act on and is suppressed.
	minActionableDistance = 50.0
)

// Matcher evaluates cached restriction records against a vehicle profile
// within the current route window.
type Matcher struct {
	profile         VehicleProfile
	warningDistance float64
}

// NewMatcher creates a Matcher for one monitoring session.
func NewMatcher(profile VehicleProfile, warningDistanceMeters float64) *Matcher {
	return &Matcher{profile: profile, warningDistance: warningDistanceMeters}
}

// Match returns the first cached restriction the vehicle violates within the
// window, or nil when nothing qualifies. Records are checked in cache order
// and the first qualifying record wins; candidates are not re-ranked by
// distance across kinds.
func (m *Matcher) Match(position geo.Point, window []geo.Point, records []RestrictionRecord) *Alert {
	if len(window) == 0 {
		return nil
	}

	for _, record := range records {
		alert := m.evaluate(position, window, record)
		if alert != nil {
			return alert
		}
	}
	return nil
}

// evaluate checks a single record against the window and profile.
func (m *Matcher) evaluate(position geo.Point, window []geo.Point, record RestrictionRecord) *Alert {
	nearest, offset := nearestWindowVertex(record.Location, window)
	if offset > offRouteThreshold {
		return nil
	}

	distance := geo.Distance(position, nearest)
	if distance <= minActionableDistance || distance > m.warningDistance {
		return nil
	}

	if !m.violates(record) {
		return nil
	}

	return &Alert{
		Kind:           alertKind(record),
		DistanceMeters: distance,
		RoadName:       record.RoadName,
	}
}

// violates converts the record's value into the vehicle dimension's unit
// family and applies the conservative safety margin.
func (m *Matcher) violates(record RestrictionRecord) bool {
	measurement := units.Measurement{Value: record.Value, Unit: record.Unit}

	switch record.Kind {
	case MaxHeight:
		return m.profile.HeightMeters >= measurement.ToMeters()-heightMarginMeters
	case MaxWidth:
		return m.profile.WidthMeters >= measurement.ToMeters()-widthMarginMeters
	case MaxLength:
		return m.profile.LengthMeters >= measurement.ToMeters()-lengthMarginMeters
	case MaxWeight:
		return m.profile.WeightKilograms >= measurement.ToKilograms()-weightMarginKg
	case MaxGrade:
		return record.Value >= steepGradePercent
	}
	return false
}

// alertKind maps a restriction to the hazard it presents. A height limit
// inside a tunnel reads as a tunnel restriction rather than a low bridge.
func alertKind(record RestrictionRecord) Kind {
	switch record.Kind {
	case MaxHeight:
		if record.Tunnel {
			return TunnelRestriction
		}
		return LowBridge
	case MaxWeight:
		return WeightLimit
	case MaxWidth:
		return WidthRestriction
	case MaxLength:
		return LengthRestriction
	case MaxGrade:
		return SteepGrade
	}
	return LowBridge
}

// nearestWindowVertex finds the window vertex closest to a restriction's
// location and how far off the window that location sits.
func nearestWindowVertex(location geo.Point, window []geo.Point) (geo.Point, float64) {
	nearest := window[0]
	best := geo.Distance(location, nearest)
	for _, vertex := range window[1:] {
		if d := geo.Distance(location, vertex); d < best {
			best = d
			nearest = vertex
		}
	}
	return nearest, best
}
