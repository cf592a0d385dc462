package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/transitflow/vtrie/internal/model"
)

func TestCleanupDropsIllogicalSpeed(t *testing.T) {
	rows := []model.InterpolatedRow{
		{TripID: "t1", StopSequence: 1, ProjSpeedKmh: 150},
		{TripID: "t1", StopSequence: 2, ProjSpeedKmh: 40},
	}
	kept, res := Cleanup(10, rows)

	assert.Len(t, kept, 1)
	assert.Equal(t, 1, res.DroppedSpeed)
	assert.Equal(t, 1, res.Kept())
}

func TestCleanupDropsImplausibleArrivalDifference(t *testing.T) {
	rows := []model.InterpolatedRow{
		{TripID: "t1", StopSequence: 1, ProjSpeedKmh: 20, OffArrDifS: 3000},
	}
	_, res := Cleanup(10, rows)

	assert.Equal(t, 1, res.DroppedArrDif)
}

func TestCleanupDropsNonPositiveElapsedTime(t *testing.T) {
	rows := []model.InterpolatedRow{
		{TripID: "t1", StopSequence: 1, ProjSpeedKmh: 40, NonPositiveElapsed: true},
		{TripID: "t1", StopSequence: 2, ProjSpeedKmh: 40},
	}
	kept, res := Cleanup(10, rows)

	assert.Len(t, kept, 1)
	assert.Equal(t, 1, res.DroppedNonPosTime)
	assert.Equal(t, 1, res.Kept())
}

func TestCleanupDropsWrapAroundAfterNearMaxStopSequence(t *testing.T) {
	rows := []model.InterpolatedRow{
		{TripID: "t1", StopSequence: 9, ProjSpeedKmh: 10}, // max_stop_sequence - 1
		{TripID: "t1", StopSequence: 3, ProjSpeedKmh: 10}, // regresses after reaching near-max
	}
	kept, res := Cleanup(10, rows)

	assert.Len(t, kept, 1)
	assert.Equal(t, 1, res.DroppedWrap)
}
