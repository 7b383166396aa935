package overpass

import "github.com/truckpilot/hazardwatch/internal/lib/geo"

// Response is the top-level Overpass JSON payload.
type Response struct {
	Elements []Element `json:"elements"`
}

// Element is a single returned way (or node). Tags, geometry and the direct
// coordinate pair are all optional in the wire format.
type Element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat,omitempty"`
	Lon      float64           `json:"lon,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
	Geometry []LatLon          `json:"geometry,omitempty"`
}

// LatLon is a geometry vertex in an Overpass response.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// representativePoint picks the coordinate a restriction is anchored to:
// the first geometry vertex when geometry is present, otherwise the
// element's own coordinate.
func (e Element) representativePoint() (geo.Point, bool) {
	if len(e.Geometry) > 0 {
		return geo.Point{Latitude: e.Geometry[0].Lat, Longitude: e.Geometry[0].Lon}, true
	}
	if e.Lat != 0 || e.Lon != 0 {
		return geo.Point{Latitude: e.Lat, Longitude: e.Lon}, true
	}
	return geo.Point{}, false
}
