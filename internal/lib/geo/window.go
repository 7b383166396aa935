package geo

// routeEndThreshold is how close to the final route vertex the vehicle must
// be before the forward window is allowed to collapse to empty.
const routeEndThreshold = 200.0

// NearestVertex returns the index of the route vertex closest to position.
// Ties are broken by the lowest index, i.e. the earliest occurrence along
// the route. Returns -1 for an empty route.
func NearestVertex(position Point, route []Point) int {
	best := -1
	var bestDistance float64
	for i, vertex := range route {
		d := Distance(position, vertex)
		if best < 0 || d < bestDistance {
			best = i
			bestDistance = d
		}
	}
	return best
}

// RouteWindow computes the forward-looking slice of the route relevant to
// the current position: a contiguous suffix starting at the vertex closest
// to position, extended vertex by vertex until the accumulated arc length
// reaches lookaheadMeters or the route ends.
//
// The window is empty only for an empty route, or when the vehicle has
// effectively arrived: the nearest vertex is the final one and the vehicle
// is within 200 m of it.
func RouteWindow(position Point, route []Point, lookaheadMeters float64) []Point {
	start := NearestVertex(position, route)
	if start < 0 {
		return nil
	}

	if start == len(route)-1 && Distance(position, route[start]) <= routeEndThreshold {
		return nil
	}

	window := []Point{route[start]}
	var accumulated float64
	for i := start + 1; i < len(route); i++ {
		accumulated += Distance(route[i-1], route[i])
		window = append(window, route[i])
		if accumulated >= lookaheadMeters {
			break
		}
	}

	return window
}

// Downsample reduces a route to one sample point per spacingMeters of arc
// length. The first and last vertices are always included so query coverage
// spans the whole route.
func Downsample(route []Point, spacingMeters float64) []Point {
	if len(route) == 0 {
		return nil
	}
	if len(route) == 1 {
		return []Point{route[0]}
	}

	samples := []Point{route[0]}
	var sinceLast float64
	for i := 1; i < len(route); i++ {
		sinceLast += Distance(route[i-1], route[i])
		if sinceLast >= spacingMeters {
			samples = append(samples, route[i])
			sinceLast = 0
		}
	}

	last := route[len(route)-1]
	tail := samples[len(samples)-1]
	if tail.Latitude != last.Latitude || tail.Longitude != last.Longitude {
		samples = append(samples, last)
	}

	return samples
}
