package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitflow/vtrie/internal/geo"
	"github.com/transitflow/vtrie/internal/model"
)

func catForInterpolation() *model.RouteCatalog {
	// Stops 2, 3, 4 at increasing arc lengths along a straight dissolved
	// polyline, spaced so proj_speed_kmh works out to a plausible value
	// for the §8 scenario-1/2 timings.
	return &model.RouteCatalog{
		MaxStopSequence:     10,
		MaxSegIndex:         40,
		MaxStopSeqValidated: true,
		DissolvedSeg:        []int{3, 7, 15},
		Segments: []model.Segment{
			{SegIndex: 3, StopSequence: 2},
			{SegIndex: 7, StopSequence: 3},
			{SegIndex: 15, StopSequence: 4},
		},
		StopTable: map[model.StopTimeKey]model.StopTime{
			{TripID: "t1", StopSequence: 3}: {StopID: "S3", ArrivalOffset: 15*time.Hour + 44*time.Minute},
			{TripID: "t1", StopSequence: 4}: {StopID: "S4", ArrivalOffset: 15*time.Hour + 45*time.Minute},
		},
	}
}

func TestInterpolateOneStopMatchesScenario1(t *testing.T) {
	cat := catForInterpolation()
	// Stop 3 sits 100m into the 316m leg from A to B's fix — the stop
	// marker's own arc length, independent of where B's fix snapped.
	cat.DissolvedCum = []float64{0, 50, 100, 500}

	base := time.Date(2026, 1, 1, 15, 42, 42, 0, time.UTC)
	a := model.SnappedFix{
		Fix: model.Fix{TripID: "t1", Timestamp: base}, StopSequence: 2, SegIndex: 3, ArcLength: 0,
	}
	b := model.SnappedFix{
		Fix: model.Fix{TripID: "t1", Timestamp: base.Add(60 * time.Second)}, StopSequence: 3, SegIndex: 7, ArcLength: 316,
	}
	pair := model.EnrichedPair{A: a, B: b, Status: model.Movement}

	idx := 0
	rows, recs := Interpolate(cat, geo.WGS84, "R1", "0", "t1", []model.EnrichedPair{pair}, &idx)

	require.Empty(t, recs)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].StopSequence)
	assert.InDelta(t, 59.0, rows[0].OffArrDifS, 5.0)
	assert.Equal(t, model.OnTime, rows[0].PerfRate)
}

func TestInterpolateStationaryRowNoInterpolation(t *testing.T) {
	cat := catForInterpolation()
	base := time.Date(2026, 1, 1, 15, 0, 0, 0, time.UTC)
	a := model.SnappedFix{Fix: model.Fix{TripID: "t1", Timestamp: base}, StopSequence: 6, SegIndex: 34}
	pair := model.EnrichedPair{A: a, B: a, Status: model.Stationary}

	idx := 0
	rows, _ := Interpolate(cat, geo.WGS84, "R1", "0", "t1", []model.EnrichedPair{pair}, &idx)

	require.Len(t, rows, 1)
	assert.Equal(t, model.TravelStationaryRow, rows[0].TravelType)
	assert.True(t, rows[0].LastOfGroup)
}

func TestInterpolateIdxIncrementsPerPairAcrossCalls(t *testing.T) {
	cat := catForInterpolation()
	base := time.Date(2026, 1, 1, 15, 0, 0, 0, time.UTC)
	a := model.SnappedFix{Fix: model.Fix{TripID: "t1", Timestamp: base}, StopSequence: 6, SegIndex: 34}
	pair := model.EnrichedPair{A: a, B: a, Status: model.Stationary}

	idx := 5
	rows, _ := Interpolate(cat, geo.WGS84, "R1", "0", "t1", []model.EnrichedPair{pair, pair}, &idx)

	require.Len(t, rows, 2)
	assert.Equal(t, 5, rows[0].Idx)
	assert.Equal(t, 6, rows[1].Idx)
	assert.Equal(t, 7, idx)
}
