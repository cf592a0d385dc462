package pipeline

import "github.com/transitflow/vtrie/internal/model"

const maxOffArrDifS = 20 * 60.0

// CleanupResult reports how many rows Cleanup dropped, by reason (§4.7,
// §7).
type CleanupResult struct {
	Input             int
	DroppedSpeed      int
	DroppedArrDif     int
	DroppedWrap       int
	DroppedNonPosTime int
}

func (r CleanupResult) Kept() int {
	return r.Input - r.DroppedSpeed - r.DroppedArrDif - r.DroppedWrap - r.DroppedNonPosTime
}

// Cleanup is C7: drops rows with a non-positive elapsed time between the
// underlying fixes, an illogical projected speed, an implausible
// arrival-difference magnitude, or a wrap-around artifact — a trip's
// stop_sequence regressing after having already reached
// max_stop_sequence-1 (§4.7). rows must be grouped and time-ordered by
// trip the way Interpolate emits them.
func Cleanup(maxStopSequence int, rows []model.InterpolatedRow) ([]model.InterpolatedRow, CleanupResult) {
	res := CleanupResult{Input: len(rows)}
	if len(rows) == 0 {
		return rows, res
	}

	out := make([]model.InterpolatedRow, 0, len(rows))
	reachedNearMax := make(map[string]bool)

	for _, r := range rows {
		if r.NonPositiveElapsed {
			res.DroppedNonPosTime++
			continue
		}
		if r.ProjSpeedKmh > maxPlausibleSpeedKmh {
			res.DroppedSpeed++
			continue
		}
		if absF(r.OffArrDifS) > maxOffArrDifS {
			res.DroppedArrDif++
			continue
		}
		if r.StopSequence >= maxStopSequence-1 {
			reachedNearMax[r.TripID] = true
		} else if reachedNearMax[r.TripID] {
			res.DroppedWrap++
			continue
		}
		out = append(out, r)
	}

	return out, res
}
