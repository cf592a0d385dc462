package pipeline

import (
	"sort"
	"time"

	"github.com/transitflow/vtrie/internal/errs"
	"github.com/transitflow/vtrie/internal/geo"
	"github.com/transitflow/vtrie/internal/model"
)

const maxPlausibleSpeedKmh = 120.0

// Interpolate is C6: classifies the travel type of each consecutive pair
// of one trip and emits stop-by-stop arrival estimates (§4.6). idx is a
// per-route cumulative counter the caller owns across every trip of the
// route: it increments once per pair reaching this function regardless
// of how many rows the pair emits. Pairs that C4/C5 dropped never reach
// it and leave no gap; a gap in the final rows marks a pair group whose
// rows C7 later dropped entirely — informational only, never used as a
// join key.
func Interpolate(cat *model.RouteCatalog, wkid geo.WKID, routeID, direction, tripID string, pairs []model.EnrichedPair, idx *int) ([]model.InterpolatedRow, []errs.Record) {
	var rows []model.InterpolatedRow
	var recs []errs.Record

	for _, p := range pairs {
		groupIdx := *idx
		*idx++

		grouped, rerrs := interpolatePair(cat, wkid, routeID, direction, tripID, groupIdx, p)
		recs = append(recs, rerrs...)
		if len(grouped) == 0 {
			continue
		}

		sort.SliceStable(grouped, func(i, j int) bool { return grouped[i].StopSequence < grouped[j].StopSequence })
		for i := range grouped {
			grouped[i].LastOfGroup = i == len(grouped)-1
		}
		rows = append(rows, grouped...)
	}

	applyPercChge(rows)
	return rows, recs
}

// applyPercChge fills perc_chge across the trip's full emitted-row
// sequence, undefined for the first row (§4.6).
func applyPercChge(rows []model.InterpolatedRow) {
	for i := 1; i < len(rows); i++ {
		prev := rows[i-1].OffArrDifS
		if prev == 0 {
			continue
		}
		rows[i].PercChge = (rows[i].OffArrDifS - prev) / absF(prev) * 100
		rows[i].HasPercChge = true
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func interpolatePair(cat *model.RouteCatalog, wkid geo.WKID, routeID, direction, tripID string, idx int, p model.EnrichedPair) ([]model.InterpolatedRow, []errs.Record) {
	a, b := p.A, p.B
	base := model.InterpolatedRow{
		RouteID:   routeID,
		Direction: direction,
		TripID:    tripID,
		Idx:       idx,
	}

	switch p.Status {
	case Stationary:
		return []model.InterpolatedRow{stationaryRow(cat, base, a)}, nil
	case Terminus:
		return []model.InterpolatedRow{terminusRow(cat, base, a)}, nil
	}

	deltaStop := b.StopSequence - a.StopSequence
	totalDist := geo.PolylineLengthBetween(a.ArcLength, b.ArcLength)
	deltaTimeS := b.Timestamp.Sub(a.Timestamp).Seconds()

	var recs []errs.Record
	speedKmh := 0.0
	if deltaTimeS > 0 {
		speedKmh = (totalDist / 1000) / (deltaTimeS / 3600)
	}
	nonPositiveElapsed := deltaTimeS <= 0
	if nonPositiveElapsed || speedKmh > maxPlausibleSpeedKmh {
		recs = append(recs, errs.New(errs.NumericAnomaly, routeID, tripID, a.StopSequence,
			errIllogicalSpeed, "interpolate pair"))
	}

	var stops []int
	travelType := model.TravelBtwnStops
	switch {
	case deltaStop >= 2:
		travelType = model.TravelBtwnStops
		for s := a.StopSequence + 1; s <= b.StopSequence; s++ {
			stops = append(stops, s)
		}
	case deltaStop == 1:
		travelType = model.TravelOneStop
		stops = []int{b.StopSequence}
	case deltaStop == 0 && a.SegIndex != b.SegIndex:
		travelType = model.TravelSameStopDiffSeg
		stops = []int{a.StopSequence}
	case deltaStop == 0:
		travelType = model.TravelSameStopSameSeg
		stops = []int{a.StopSequence}
	default:
		// deltaStop < 0: a regression such as the rare self-overlap
		// wrap-around (deltaStop <= -2); C7's wrap check
		// catches and drops it. Emit a single synthesized row so the row
		// still exists for that check to act on.
		travelType = model.TravelSameStopDiffSeg
		stops = []int{a.StopSequence}
	}

	if len(stops) == 0 {
		return nil, recs
	}

	sameStop := travelType == model.TravelSameStopDiffSeg || travelType == model.TravelSameStopSameSeg
	nextArc, hasNext := cat.StopArcLength(b.StopSequence + 1)
	distFutr := 0.0
	if hasNext {
		distFutr = geo.PolylineLengthBetween(b.ArcLength, nextArc)
	}
	futrTravelS := 0.0
	if speedKmh > 0 {
		futrTravelS = (distFutr / 1000) / speedKmh * 3600
	}

	out := make([]model.InterpolatedRow, 0, len(stops))
	prevArc := a.ArcLength
	cumTravelS := 0.0

	for _, stopSeq := range stops {
		row := base
		row.StopSequence = stopSeq
		row.StopID, _ = cat.StopIDFor(stopSeq)
		row.TravelType = travelType
		row.ProjSpeedKmh = speedKmh
		row.DistFutrM = distFutr
		row.FutrTravelS = futrTravelS
		row.NonPositiveElapsed = nonPositiveElapsed

		if sameStop {
			// B hasn't crossed into a new stop yet — its position IS the
			// future-leg basis, so off_earr projects forward from B
			// rather than accumulating from A (§4.6).
			row.DistM = geo.DistanceM(wkid,
				geo.Point{X: a.Projected.X, Y: a.Projected.Y},
				geo.Point{X: b.Projected.X, Y: b.Projected.Y})
			row.EstArr = a.Timestamp
			row.OffArr = b.Timestamp.Add(timeSeconds(futrTravelS))
		} else {
			// Traversed stops (including the one B reached) accumulate
			// forward from A's timestamp (§4.6).
			stopArc, ok := cat.StopArcLength(stopSeq)
			if !ok {
				stopArc = b.ArcLength
			}
			legDist := geo.PolylineLengthBetween(prevArc, stopArc)
			row.DistM = legDist
			legTravelS := 0.0
			if speedKmh > 0 {
				legTravelS = (legDist / 1000) / speedKmh * 3600
			}
			cumTravelS += legTravelS
			row.ProjTravelS = legTravelS

			row.OffArr = a.Timestamp.Add(timeSeconds(cumTravelS))
			row.EstArr = row.OffArr
			prevArc = stopArc
		}

		if st, ok := cat.StopTable[model.StopTimeKey{TripID: tripID, StopSequence: stopSeq}]; ok {
			row.SchedArr = model.ResolveSchedTime(row.OffArr, st.ArrivalOffset)
			row.OffArrDifS = row.SchedArr.Sub(row.OffArr).Seconds()
			row.PerfRate = classifyPerf(row.OffArrDifS)
		}

		out = append(out, row)
	}

	return out, recs
}

func classifyPerf(offArrDifS float64) model.PerfRate {
	switch {
	case offArrDifS <= -120:
		return Late
	case offArrDifS >= 300:
		return Early
	default:
		return OnTime
	}
}

func stationaryRow(cat *model.RouteCatalog, base model.InterpolatedRow, a model.SnappedFix) model.InterpolatedRow {
	row := base
	row.StopSequence = a.StopSequence
	row.StopID = a.StopID
	row.TravelType = model.TravelStationaryRow
	row.EstArr = a.Timestamp
	row.OffArr = a.Timestamp
	if st, ok := cat.StopTable[model.StopTimeKey{TripID: base.TripID, StopSequence: a.StopSequence}]; ok {
		row.SchedArr = model.ResolveSchedTime(row.OffArr, st.ArrivalOffset)
		row.OffArrDifS = row.SchedArr.Sub(row.OffArr).Seconds()
		row.PerfRate = classifyPerf(row.OffArrDifS)
	}
	return row
}

func terminusRow(cat *model.RouteCatalog, base model.InterpolatedRow, a model.SnappedFix) model.InterpolatedRow {
	row := stationaryRow(cat, base, a)
	row.TravelType = model.TravelTerminusRow
	return row
}

func timeSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
