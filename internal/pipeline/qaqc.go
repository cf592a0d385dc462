package pipeline

import (
	"github.com/transitflow/vtrie/internal/model"
)

// Retention is the per-route fraction of input rows surviving C4 (§4.4, §7).
type Retention struct {
	Input int
	Kept  int
}

func (r Retention) Fraction() float64 {
	if r.Input == 0 {
		return 1
	}
	return float64(r.Kept) / float64(r.Input)
}

// QAQC is C4: enforces monotonic progression per trip by running a
// three-pass filter at decreasing lookback orders k ∈ {3, 2, 1} (§4.4).
// Rows must already be grouped contiguously by trip_id in timestamp order
// — Geolocate preserves the ordering fixtable.Load established.
func QAQC(fixes []model.SnappedFix) ([]model.SnappedFix, Retention) {
	ret := Retention{Input: len(fixes)}
	if len(fixes) == 0 {
		return fixes, ret
	}

	deduped := dedupExact(fixes)

	byTrip := make(map[string][]model.SnappedFix)
	order := make([]string, 0)
	for _, f := range deduped {
		if _, ok := byTrip[f.TripID]; !ok {
			order = append(order, f.TripID)
		}
		byTrip[f.TripID] = append(byTrip[f.TripID], f)
	}

	for _, k := range []int{3, 2, 1} {
		for _, trip := range order {
			byTrip[trip] = sweepLookback(byTrip[trip], k)
		}
	}

	var out []model.SnappedFix
	for _, trip := range order {
		out = append(out, byTrip[trip]...)
	}
	ret.Kept = len(out)
	return out, ret
}

// dedupExact drops exact duplicates: same trip, timestamp, and snap point
// (§4.4).
func dedupExact(fixes []model.SnappedFix) []model.SnappedFix {
	seen := make(map[string]bool, len(fixes))
	out := make([]model.SnappedFix, 0, len(fixes))
	for _, f := range fixes {
		key := f.TripID + "|" + f.Timestamp.String() + "|" +
			floatKey(f.Projected.X) + "," + floatKey(f.Projected.Y)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

func floatKey(v float64) string {
	// 1e-9 resolution is well below GPS precision; adequate for an exact
	// "same snap point" dedup key without pulling in a formatting library.
	const scale = 1e9
	return itoa64(int64(v * scale))
}

func itoa64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [32]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// sweepLookback runs one decreasing-lookback pass at order k: for every
// row, if the k-th prior row retained so far in this pass has a greater
// stop_sequence or seg_index, the current row is dropped as a back-step
// (GPS jitter around overlapping sections), per §4.4.
func sweepLookback(rows []model.SnappedFix, k int) []model.SnappedFix {
	kept := make([]model.SnappedFix, 0, len(rows))
	for _, r := range rows {
		if len(kept) >= k {
			prior := kept[len(kept)-k]
			if r.StopSequence < prior.StopSequence || r.SegIndex < prior.SegIndex {
				continue
			}
		}
		kept = append(kept, r)
	}
	return kept
}
