package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveSchedTimeSameDayNoRollover(t *testing.T) {
	near := time.Date(2026, 1, 1, 15, 42, 0, 0, time.UTC)
	offset := 15*time.Hour + 44*time.Minute

	got := ResolveSchedTime(near, offset)

	assert.Equal(t, time.Date(2026, 1, 1, 15, 44, 0, 0, time.UTC), got)
}

func TestResolveSchedTimeRollsForwardWhenMoreThan12HoursBehind(t *testing.T) {
	// A trip running late crosses midnight: the fix lands at 23:58 on day
	// one, but the offset (00:05) names an early-morning stop that — read
	// against day one's midnight — would fall nearly a full day behind the
	// fix. The resolver rolls it onto day two instead.
	near := time.Date(2026, 1, 1, 23, 58, 0, 0, time.UTC)
	offset := 5 * time.Minute

	got := ResolveSchedTime(near, offset)

	assert.Equal(t, time.Date(2026, 1, 2, 0, 5, 0, 0, time.UTC), got)
}

func TestResolveSchedTimeOffsetPast24HoursAnchorsToNearsDate(t *testing.T) {
	// GTFS clock-of-day offsets may exceed 24h (e.g. "24:10:00"). Anchored
	// to near's own calendar date, this lands comfortably ahead of near,
	// so no rollover applies.
	near := time.Date(2026, 1, 2, 0, 30, 0, 0, time.UTC)
	offset := 24*time.Hour + 10*time.Minute

	got := ResolveSchedTime(near, offset)

	assert.Equal(t, time.Date(2026, 1, 3, 0, 10, 0, 0, time.UTC), got)
}
