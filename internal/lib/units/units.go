// Package units normalizes free-form road restriction values as found in
// crowd-sourced map data. Tag values arrive in mixed, loosely formatted
// encodings ("3.5", "3.5 m", "11'6\"", "12t", "26000 lbs") and are parsed
// into a numeric magnitude plus a canonical unit tag. Values keep their
// source unit; conversion happens at comparison time, never at ingestion.
package units

import (
	"strconv"
	"strings"
)

// Unit is a canonical unit tag for a normalized restriction value.
type Unit string

const (
	Meters     Unit = "meters"
	Feet       Unit = "feet"
	MetricTons Unit = "metric_tons"
	Pounds     Unit = "pounds"
	Percent    Unit = "percent"
)

// Conversion constants between unit families.
const (
	MetersPerFoot     = 0.3048
	KilogramsPerPound = 0.453592
	KilogramsPerTon   = 1000.0
)

// Measurement is a parsed restriction value.
type Measurement struct {
	Value float64
	Unit  Unit
}

// ToMeters converts a length measurement to meters.
func (m Measurement) ToMeters() float64 {
	if m.Unit == Feet {
		return m.Value * MetersPerFoot
	}
	return m.Value
}

// ToKilograms converts a mass measurement to kilograms.
func (m Measurement) ToKilograms() float64 {
	switch m.Unit {
	case Pounds:
		return m.Value * KilogramsPerPound
	case MetricTons:
		return m.Value * KilogramsPerTon
	}
	return m.Value
}

// ParseDimension parses a height, width or length restriction value.
// Plain decimals default to meters; an "ft" suffix or feet-inches notation
// (11'6") selects feet, with inches folded into decimal feet.
func ParseDimension(raw string) (Measurement, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Measurement{}, false
	}

	if strings.ContainsRune(s, '\'') {
		return parseFeetInches(s)
	}

	value, ok := extractNumber(s)
	if !ok {
		return Measurement{}, false
	}

	unit := Meters
	if strings.Contains(s, "ft") || strings.Contains(s, "feet") {
		unit = Feet
	}
	return Measurement{Value: value, Unit: unit}, true
}

// ParseWeight parses a weight restriction value. A bare number is metric
// tons, the OSM convention; "t" is tons and "lb"/"lbs" is pounds.
func ParseWeight(raw string) (Measurement, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Measurement{}, false
	}

	value, ok := extractNumber(s)
	if !ok {
		return Measurement{}, false
	}

	if strings.Contains(s, "lb") {
		return Measurement{Value: value, Unit: Pounds}, true
	}
	return Measurement{Value: value, Unit: MetricTons}, true
}

// ParseIncline parses a road grade value such as "12%", "up 10%" or "-8%".
// Direction words and sign are dropped; only the steepness magnitude
// matters for hazard purposes.
func ParseIncline(raw string) (Measurement, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "up")
	s = strings.TrimPrefix(s, "down")
	s = strings.TrimPrefix(strings.TrimSpace(s), "-")

	value, ok := extractNumber(s)
	if !ok {
		return Measurement{}, false
	}
	return Measurement{Value: value, Unit: Percent}, true
}

// parseFeetInches handles imperial notation: 11'6" is 11.5 feet, 13' is
// 13 feet with no inches component.
func parseFeetInches(s string) (Measurement, bool) {
	feetPart, rest, _ := strings.Cut(s, "'")

	feet, ok := extractNumber(feetPart)
	if !ok {
		return Measurement{}, false
	}

	rest = strings.TrimSuffix(strings.TrimSpace(rest), "\"")
	if strings.TrimSpace(rest) != "" {
		inches, ok := extractNumber(rest)
		if !ok {
			return Measurement{}, false
		}
		feet += inches / 12
	}

	return Measurement{Value: feet, Unit: Feet}, true
}

// extractNumber strips every rune that is not a digit or decimal point and
// parses what remains. Multiple decimal points, a leading minus or no
// numeric content at all are parse failures; callers skip the record.
func extractNumber(s string) (float64, bool) {
	if strings.HasPrefix(strings.TrimSpace(s), "-") {
		return 0, false
	}

	var b strings.Builder
	dots := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.':
			dots++
			b.WriteRune(r)
		}
	}

	if dots > 1 || b.Len() == 0 || b.String() == "." {
		return 0, false
	}

	value, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
