package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/transitflow/vtrie/internal/model"
)

func fixAt(tripID string, t time.Time, stopSeq, segIdx int) model.SnappedFix {
	return model.SnappedFix{
		Fix:          model.Fix{TripID: tripID, Timestamp: t},
		StopSequence: stopSeq,
		SegIndex:     segIdx,
	}
}

func TestQAQCDropsBackStep(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fixes := []model.SnappedFix{
		fixAt("t1", base, 1, 1),
		fixAt("t1", base.Add(10*time.Second), 2, 5),
		fixAt("t1", base.Add(20*time.Second), 1, 2), // spurious back-step
		fixAt("t1", base.Add(30*time.Second), 3, 9),
	}

	kept, ret := QAQC(fixes)

	assert.Equal(t, 4, ret.Input)
	assert.Less(t, ret.Kept, ret.Input)
	for i := 1; i < len(kept); i++ {
		assert.GreaterOrEqual(t, kept[i].StopSequence, kept[i-1].StopSequence)
		assert.GreaterOrEqual(t, kept[i].SegIndex, kept[i-1].SegIndex)
	}
}

func TestQAQCDedupsExactDuplicates(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := fixAt("t1", base, 1, 1)
	fixes := []model.SnappedFix{f, f, f}

	kept, ret := QAQC(fixes)

	assert.Equal(t, 1, len(kept))
	assert.Equal(t, 1, ret.Kept)
}

func TestQAQCEmptyInput(t *testing.T) {
	kept, ret := QAQC(nil)
	assert.Nil(t, kept)
	assert.Equal(t, 0, ret.Input)
	assert.Equal(t, float64(1), ret.Fraction())
}

func TestRetentionFraction(t *testing.T) {
	r := Retention{Input: 10, Kept: 7}
	assert.InDelta(t, 0.7, r.Fraction(), 1e-9)
}
