package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitflow/vtrie/internal/geo"
	"github.com/transitflow/vtrie/internal/model"
)

func fixAtXY(tripID string, t time.Time, x, y float64) model.Fix {
	return model.Fix{TripID: tripID, RouteID: "R1", Timestamp: t, Lon: x, Lat: y}
}

// loopCatalog builds a route whose outbound and inbound legs retrace the
// same physical segment at two different seg_indexes, sharing a
// stop_sequence — the self-overlap case §4.3/§9 describes.
func loopCatalog() *model.RouteCatalog {
	return &model.RouteCatalog{
		Dissolved:    []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}},
		DissolvedSeg: []int{2, 5},
		Segments: []model.Segment{
			{SegIndex: 2, StopSequence: 5, StopID: "S5-out", Path: [2]model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}},
			{SegIndex: 5, StopSequence: 6, StopID: "S6", Path: [2]model.Point{{X: 10, Y: 0}, {X: 20, Y: 0}}},
			{SegIndex: 8, StopSequence: 5, StopID: "S5-in", Path: [2]model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}},
		},
	}
}

func TestGeolocateLoopRoutePicksEarlierSegIndexOutboundLaterInbound(t *testing.T) {
	cat := loopCatalog()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	fixes := []model.Fix{
		fixAtXY("t1", base, 5, 0),                      // outbound, ambiguous region
		fixAtXY("t1", base.Add(60*time.Second), 15, 0), // unambiguous leg in between
		fixAtXY("t1", base.Add(120*time.Second), 5, 0), // inbound, same ambiguous region
	}

	snapped, recs := Geolocate(cat, fixes, geo.WGS84, 50.0)

	require.Empty(t, recs)
	require.Len(t, snapped, 3)
	assert.Equal(t, 2, snapped[0].SegIndex)
	assert.Equal(t, "S5-out", snapped[0].StopID)
	assert.Equal(t, 5, snapped[1].SegIndex)
	assert.Equal(t, 8, snapped[2].SegIndex)
	assert.Equal(t, "S5-in", snapped[2].StopID)
	assert.Equal(t, snapped[0].StopSequence, snapped[2].StopSequence)
}

func TestGeolocateFirstFixOfTripWithNoPriorPicksLowestSegIndex(t *testing.T) {
	cat := loopCatalog()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	fixes := []model.Fix{fixAtXY("t1", base, 5, 0)}

	snapped, recs := Geolocate(cat, fixes, geo.WGS84, 50.0)

	require.Empty(t, recs)
	require.Len(t, snapped, 1)
	assert.Equal(t, 2, snapped[0].SegIndex)
}

func TestGeolocateDropsFixFartherThanSnapBound(t *testing.T) {
	cat := loopCatalog()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	fixes := []model.Fix{fixAtXY("t1", base, 5, 1000)}

	snapped, recs := Geolocate(cat, fixes, geo.WGS84, 50.0)

	assert.Empty(t, snapped)
	require.Len(t, recs, 1)
	assert.Equal(t, 0, recs[0].StopSeq)
}

func TestGeolocateEmptyDissolvedPolylineFlagsEveryFix(t *testing.T) {
	cat := &model.RouteCatalog{}
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	fixes := []model.Fix{fixAtXY("t1", base, 5, 0), fixAtXY("t1", base, 6, 0)}

	snapped, recs := Geolocate(cat, fixes, geo.WGS84, 50.0)

	assert.Empty(t, snapped)
	assert.Len(t, recs, 2)
}
