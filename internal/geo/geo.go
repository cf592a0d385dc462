// Package geo implements the C1 geometry primitives: polyline length,
// point-to-polyline projection, point-in-segment containment, and
// haversine distance. Grounded on the teacher's hand-rolled haversine in
// worker/segments.go, generalized to the WKID-aware distance the catalog
// loader needs (§4.1).
package geo

import "math"

// ContainmentTolDeg is the default perpendicular-distance tolerance used
// by PointInSegment for WGS84 (degree) coordinates, per §4.1.
const ContainmentTolDeg = 1e-7

const earthRadiusM = 6371000.0

// Point is a minimal (x, y) coordinate, independent of model.Point to keep
// this package free of a dependency on the rest of the module.
type Point struct {
	X, Y float64
}

// WKID is the subset of spatial references VTRIE supports: WGS84 (degrees,
// great-circle distance) or any other WKID, treated as already-projected
// planar meters (Euclidean distance), per §4.1 and §6.
type WKID int

const WGS84 WKID = 4326

// HaversineM returns the great-circle distance in meters between two
// WGS84 (lon, lat) points.
func HaversineM(a, b Point) float64 {
	lat1 := a.Y * math.Pi / 180
	lat2 := b.Y * math.Pi / 180
	dLat := (b.Y - a.Y) * math.Pi / 180
	dLon := (b.X - a.X) * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
}

// EuclideanM returns the planar distance between two already-projected
// (meters) points.
func EuclideanM(a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// DistanceM returns the distance between two points in meters, using
// great-circle distance for WGS84 and Euclidean distance for any other
// (projected) WKID, per §4.1(c).
func DistanceM(wkid WKID, a, b Point) float64 {
	if wkid == WGS84 {
		return HaversineM(a, b)
	}
	return EuclideanM(a, b)
}

// SegmentLengthM is §4.1(c): the length in meters of a single two-point
// segment.
func SegmentLengthM(wkid WKID, seg [2]Point) float64 {
	return DistanceM(wkid, seg[0], seg[1])
}

// projectPointToSegment projects pt onto the infinite line through a-b,
// clamped to the segment [a,b]. Returns the projected point and the
// parametric position t in [0,1].
func projectPointToSegment(pt, a, b Point) (Point, float64) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a, 0
	}
	t := ((pt.X-a.X)*dx + (pt.Y-a.Y)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Point{X: a.X + t*dx, Y: a.Y + t*dy}, t
}

// ProjectPointToPolyline finds the closest point on polyline to pt,
// minimizing Euclidean distance in the source WKID coordinates (§4.1(a)).
// It returns the projected point, the cumulative arc length (meters, via
// wkid-appropriate distance) from polyline[0] to the projection, and the
// index of the containing segment (the edge polyline[idx]->polyline[idx+1]).
func ProjectPointToPolyline(wkid WKID, pt Point, polyline []Point) (projected Point, cumArc float64, segIdx int) {
	if len(polyline) < 2 {
		return Point{}, 0, -1
	}

	bestDist := math.Inf(1)
	bestIdx := 0
	var bestProj Point
	var bestT float64

	cum := make([]float64, len(polyline))
	for i := 1; i < len(polyline); i++ {
		cum[i] = cum[i-1] + DistanceM(wkid, polyline[i-1], polyline[i])
	}

	for i := 0; i < len(polyline)-1; i++ {
		proj, t := projectPointToSegment(pt, polyline[i], polyline[i+1])
		// Euclidean distance in source coordinates minimizes, per §4.1(a);
		// on a tie the earlier edge is kept.
		d := EuclideanM(pt, proj)
		if d < bestDist {
			bestDist = d
			bestIdx = i
			bestProj = proj
			bestT = t
		}
	}

	legLen := DistanceM(wkid, polyline[bestIdx], polyline[bestIdx+1])
	cumArc = cum[bestIdx] + bestT*legLen
	return bestProj, cumArc, bestIdx
}

// PointInSegment reports whether pt lies within tol (perpendicular
// distance, in the segment's own coordinate units — degrees for WGS84) of
// the given two-point segment, and within its span (§4.1(b)).
func PointInSegment(wkid WKID, pt Point, seg [2]Point, tol float64) bool {
	proj, t := projectPointToSegment(pt, seg[0], seg[1])
	if t < 0 || t > 1 {
		return false
	}
	// Perpendicular distance uses plain Euclidean distance in source
	// coordinates (degrees or projected meters), per §4.1's "Euclidean
	// distance in the source WKID" framing for containment.
	dx := pt.X - proj.X
	dy := pt.Y - proj.Y
	d := math.Sqrt(dx*dx + dy*dy)
	return d <= tol
}

// PolylineLengthBetween returns the arc length in meters between two
// cumulative-arc-length positions on a polyline whose per-vertex
// cumulative lengths are given in cum (§4.1(d)). arcA/arcB are absolute
// cumulative arc lengths, not segment indices — callers resolve those via
// ProjectPointToPolyline or a catalog's precomputed DissolvedCum.
func PolylineLengthBetween(arcA, arcB float64) float64 {
	return math.Abs(arcB - arcA)
}

// CumulativeLengths returns the cumulative arc length (meters) at each
// vertex of polyline, CumulativeLengths[0] == 0.
func CumulativeLengths(wkid WKID, polyline []Point) []float64 {
	cum := make([]float64, len(polyline))
	for i := 1; i < len(polyline); i++ {
		cum[i] = cum[i-1] + DistanceM(wkid, polyline[i-1], polyline[i])
	}
	return cum
}
