package hazard

import (
	"github.com/truckpilot/hazardwatch/internal/lib/geo"
	"github.com/truckpilot/hazardwatch/internal/lib/units"
)

// RestrictionKind identifies which road attribute a restriction limits.
type RestrictionKind int

const (
	MaxHeight RestrictionKind = iota
	MaxWeight
	MaxWidth
	MaxLength
	MaxGrade
)

// TagKey returns the map data tag key carrying this restriction.
func (k RestrictionKind) TagKey() string {
	switch k {
	case MaxHeight:
		return "maxheight"
	case MaxWeight:
		return "maxweight"
	case MaxWidth:
		return "maxwidth"
	case MaxLength:
		return "maxlength"
	case MaxGrade:
		return "incline"
	}
	return ""
}

// RestrictionKinds lists every kind queried from the geodata source.
var RestrictionKinds = []RestrictionKind{MaxHeight, MaxWeight, MaxWidth, MaxLength, MaxGrade}

// RestrictionRecord is a parsed, normalized road restriction tied to a
// geographic location. Records are immutable once created; the full set for
// a route is replaced, never merged, when a fresh query completes.
type RestrictionRecord struct {
	Location geo.Point
	Kind     RestrictionKind
	Value    float64
	Unit     units.Unit
	RoadName string
	Tunnel   bool
}

// VehicleProfile holds the truck dimensions evaluated against restrictions.
// Supplied once per monitoring session and treated as read-only.
type VehicleProfile struct {
	HeightMeters    float64
	WidthMeters     float64
	LengthMeters    float64
	WeightKilograms float64
}

// Kind classifies a hazard alert.
type Kind int

const (
	LowBridge Kind = iota
	WeightLimit
	WidthRestriction
	LengthRestriction
	TunnelRestriction
	SharpTurn
	SteepGrade
)

// Label returns a short display name for the hazard kind.
func (k Kind) Label() string {
	switch k {
	case LowBridge:
		return "low bridge"
	case WeightLimit:
		return "weight limit"
	case WidthRestriction:
		return "width restriction"
	case LengthRestriction:
		return "length restriction"
	case TunnelRestriction:
		return "tunnel restriction"
	case SharpTurn:
		return "sharp turn"
	case SteepGrade:
		return "steep grade"
	}
	return "unknown"
}

// Critical reports whether the hazard represents a physical restriction the
// vehicle cannot clear, as opposed to an advisory about road geometry.
// Callers use this to pick between alert and advisory audio treatment.
func (k Kind) Critical() bool {
	switch k {
	case LowBridge, WeightLimit, WidthRestriction, LengthRestriction, TunnelRestriction:
		return true
	case SharpTurn, SteepGrade:
		return false
	}
	return false
}

// Alert is a single emitted hazard warning: what it is and how far along
// the route it lies. RoadName is empty when the source data carried none.
type Alert struct {
	Kind           Kind
	DistanceMeters float64
	RoadName       string
}
