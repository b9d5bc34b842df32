package geo

import "math"

// LineDistance returns the perpendicular distance from point to the infinite
// line through p1 and p2, treating (lng, lat) as a flat Euclidean plane. The
// result is in degree units. When p1 and p2 coincide the line is undefined
// and the plain distance from point to p1 is returned instead.
func LineDistance(p1, p2, point Point) float64 {
	a := p2.Lat - p1.Lat
	b := p1.Lng - p2.Lng
	c := p2.Lng*p1.Lat - p1.Lng*p2.Lat

	norm := math.Sqrt(a*a + b*b)
	if norm == 0 {
		return math.Hypot(point.Lng-p1.Lng, point.Lat-p1.Lat)
	}

	return math.Abs(a*point.Lng+b*point.Lat+c) / norm
}

// NearLine reports whether point lies strictly closer than threshold to the
// line through p1 and p2.
//
// The threshold is compared in degree units even though callers name it in
// kilometres; at Seoul's latitude 0.5 spans roughly 45-55 km.
func NearLine(p1, p2, point Point, threshold float64) bool {
	return LineDistance(p1, p2, point) < threshold
}
