package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitflow/vtrie/internal/model"
)

func row(tripID string, stopSeq int, hour int, perf model.PerfRate) model.InterpolatedRow {
	sched := time.Date(2026, 1, 1, hour, 0, 0, 0, time.UTC)
	return model.InterpolatedRow{
		RouteID: "R1", Direction: "0", TripID: tripID,
		StopSequence: stopSeq, StopID: "S1",
		SchedArr: sched, PerfRate: perf,
		ProjSpeedKmh: 20, OffArrDifS: 10,
	}
}

func TestTripStopLevelSatisUnsatisSumToTotal(t *testing.T) {
	rows := []model.InterpolatedRow{
		row("t1", 3, 8, model.OnTime),
		row("t1", 3, 8, model.Late),
		row("t1", 3, 8, model.Early),
	}

	level1 := TripStopLevel(rows)

	require.Len(t, level1, 1)
	g := level1[0]
	assert.Equal(t, g.Satis+g.Unsatis, g.TotalObs)
	assert.InDelta(t, 100.0, g.PrcObsSat+g.PrcObsUns, 0.01)
}

func TestHourLevelGroupsByScheduledHour(t *testing.T) {
	level1 := TripStopLevel([]model.InterpolatedRow{
		row("t1", 3, 8, model.OnTime),
		row("t2", 3, 8, model.Late),
		row("t3", 3, 9, model.OnTime),
	})

	level2 := HourLevel(level1)

	var hours []int
	for _, h := range level2 {
		hours = append(hours, h.RefHour)
	}
	assert.ElementsMatch(t, []int{8, 9}, hours)
}

func TestDayLevelAgglengthCountsDistinctHours(t *testing.T) {
	level1 := TripStopLevel([]model.InterpolatedRow{
		row("t1", 3, 6, model.OnTime),
		row("t2", 3, 7, model.OnTime),
		row("t3", 3, 7, model.Late),
	})
	level2 := HourLevel(level1)
	level3 := DayLevel(level1, level2)

	require.Len(t, level3, 1)
	assert.Equal(t, 2, level3[0].Agglength)
	assert.Equal(t, []int{6, 7}, level3[0].ListRefHr)
	assert.Equal(t, 3, level3[0].AllObs)
}

func TestFillWeightedActSatPUsesLastPerfRate(t *testing.T) {
	rows := []model.InterpolatedRow{
		row("t1", 3, 8, model.OnTime),
		row("t2", 3, 8, model.Late),
	}
	level1 := TripStopLevel(rows)
	level2 := HourLevel(level1)

	require.Len(t, level2, 1)
	assert.InDelta(t, 50.0, level2[0].ActSatP, 0.01)
	assert.InDelta(t, 50.0, level2[0].ActUnsP, 0.01)
}
