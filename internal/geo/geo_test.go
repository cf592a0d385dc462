package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineMKnownDistance(t *testing.T) {
	// Two points from the spec's scenario 1 (§8), roughly 318m apart.
	a := Point{X: -114.1138535, Y: 51.052491}
	b := Point{X: -114.1092988, Y: 51.05249544}
	d := HaversineM(a, b)
	assert.InDelta(t, 316.0, d, 20.0)
}

func TestProjectPointToPolylineOnVertex(t *testing.T) {
	polyline := []Point{{0, 0}, {0, 10}, {0, 20}}
	proj, arc, idx := ProjectPointToPolyline(WGS84, Point{0.00001, 10}, polyline)
	require.Equal(t, 0, idx)
	assert.InDelta(t, 10, proj.Y, 0.01)
	assert.Greater(t, arc, 0.0)
}

func TestProjectPointToPolylineEmpty(t *testing.T) {
	_, _, idx := ProjectPointToPolyline(WGS84, Point{0, 0}, nil)
	assert.Equal(t, -1, idx)
}

func TestPointInSegmentTolerance(t *testing.T) {
	seg := [2]Point{{0, 0}, {0, 1}}
	assert.True(t, PointInSegment(WGS84, Point{0, 0.5}, seg, ContainmentTolDeg))
	assert.False(t, PointInSegment(WGS84, Point{0.01, 0.5}, seg, ContainmentTolDeg))
	// Outside the segment span entirely, even though colinear.
	assert.False(t, PointInSegment(WGS84, Point{0, 1.5}, seg, ContainmentTolDeg))
}

func TestPolylineLengthBetween(t *testing.T) {
	assert.InDelta(t, 100.0, PolylineLengthBetween(50, 150), 1e-9)
	assert.InDelta(t, 100.0, PolylineLengthBetween(150, 50), 1e-9)
}

func TestSegmentLengthMProjectedWKID(t *testing.T) {
	seg := [2]Point{{0, 0}, {3, 4}}
	assert.InDelta(t, 5.0, SegmentLengthM(3857, seg), 1e-9)
}
