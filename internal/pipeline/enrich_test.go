package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitflow/vtrie/internal/geo"
	"github.com/transitflow/vtrie/internal/model"
)

func snapAt(tripID string, t time.Time, stopSeq, segIdx int, x, y float64) model.SnappedFix {
	return model.SnappedFix{
		Fix:          model.Fix{TripID: tripID, Timestamp: t},
		StopSequence: stopSeq,
		SegIndex:     segIdx,
		Projected:    model.Point{X: x, Y: y},
	}
}

func TestEnrichStationaryWithinDistanceBound(t *testing.T) {
	cat := &model.RouteCatalog{MaxStopSequence: 10, MaxSegIndex: 40, MaxStopSeqValidated: true}
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fixes := []model.SnappedFix{
		snapAt("t1", base, 6, 34, -114.0956573, 51.052517),
		snapAt("t1", base.Add(15*time.Second), 6, 34, -114.0956573, 51.052517),
	}

	pairs := Enrich(cat, geo.WGS84, fixes)

	// The trailing fix isn't at a validated terminus, so it stops the
	// pair sequence rather than echoing a spurious self-pair (§8).
	require.Len(t, pairs, 1)
	assert.Equal(t, model.Stationary, pairs[0].Status)
	assert.True(t, pairs[0].HasDeltaDist)
	assert.LessOrEqual(t, pairs[0].DeltaDistM, stationaryDistBoundM)
}

func TestEnrichTerminusAtMaxStopSequence(t *testing.T) {
	cat := &model.RouteCatalog{MaxStopSequence: 10, MaxSegIndex: 40, MaxStopSeqValidated: true}
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fixes := []model.SnappedFix{
		snapAt("t1", base, 10, 40, 0, 0),
	}

	pairs := Enrich(cat, geo.WGS84, fixes)

	require.Len(t, pairs, 1)
	assert.Equal(t, model.Terminus, pairs[0].Status)
}

func TestEnrichSingleFixNonTerminusTripEmitsNoPair(t *testing.T) {
	cat := &model.RouteCatalog{MaxStopSequence: 10, MaxSegIndex: 40, MaxStopSeqValidated: true}
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fixes := []model.SnappedFix{
		snapAt("t1", base, 4, 16, -114.1, 51.05),
	}

	pairs := Enrich(cat, geo.WGS84, fixes)

	assert.Empty(t, pairs)
}

func TestEnrichMovementWhenSegIndexAdvances(t *testing.T) {
	cat := &model.RouteCatalog{MaxStopSequence: 10, MaxSegIndex: 40, MaxStopSeqValidated: true}
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fixes := []model.SnappedFix{
		snapAt("t1", base, 2, 3, -114.1138535, 51.052491),
		snapAt("t1", base.Add(60*time.Second), 3, 7, -114.1092988, 51.05249544),
	}

	pairs := Enrich(cat, geo.WGS84, fixes)

	// Same trailing-fix rule: the second fix isn't at a validated
	// terminus, so only the one real consecutive pair is emitted.
	require.Len(t, pairs, 1)
	assert.Equal(t, model.Movement, pairs[0].Status)
	assert.Equal(t, 8, pairs[0].StopLeft)
}
