// Package aggregate implements C8: the three-level reduction from cleaned
// interpolated rows down to per-(route,stop,hour) and per-(route,stop,day)
// on-time-performance summaries (§4.8). Grounded on the teacher's
// cron_aggregate.go reduction-query shape, reimplemented in-process
// instead of as SQL since VTRIE has no database.
package aggregate

import (
	"sort"
	"time"

	"github.com/transitflow/vtrie/internal/model"
)

// TripStopRow is level 1: one row per (route, trip, stop_seq, stop_id,
// sched_arr) — the finest aggregate grain, computed inside each C9
// worker so its output is per-route coherent (§4.9).
type TripStopRow struct {
	RouteID      string
	Direction    string
	TripID       string
	StopSequence int
	StopID       string
	SchedArr     time.Time

	Idx int

	Late    int
	OnTime  int
	Early   int
	Satis   int
	Unsatis int

	PrcObsSat float64
	PrcObsUns float64
	AvgSpd    float64
	AvgArrDif float64

	LastOffArr  time.Time
	LastPerfRte model.PerfRate
	TotalObs    int

	SpdList    []float64
	ArrDifList []float64
}

// HourRow is level 2: per-(route, stop_id, stop_seq, ref_hr).
type HourRow struct {
	RouteID      string
	Direction    string
	StopID       string
	StopSequence int
	RefHour      int

	AvgSpd    float64
	AvgArrDif float64
	PrcObsSat float64
	PrcObsUns float64

	SpdW    float64
	ArrdW   float64
	PrcwSat float64
	PrcwUns float64

	CntTripIDs int
	AllObs     int

	ActSatP float64
	ActUnsP float64
}

// DayRow is level 3: per-(route, stop_id, stop_seq), over the whole day.
type DayRow struct {
	RouteID      string
	Direction    string
	StopID       string
	StopSequence int

	AvgSpd    float64
	AvgArrDif float64
	PrcObsSat float64
	PrcObsUns float64

	SpdW    float64
	ArrdW   float64
	PrcwSat float64
	PrcwUns float64

	CntTripIDs int
	AllObs     int

	ActSatP float64
	ActUnsP float64

	Agglength  int
	ListRefHr  []int
}

// TripStopLevel is C8 stage 1, run inside the route worker: reduces one
// route's cleaned interpolated rows down to one row per (trip,
// stop_sequence, stop_id, sched_arr) (§4.8.1).
func TripStopLevel(rows []model.InterpolatedRow) []TripStopRow {
	type key struct {
		tripID   string
		stopSeq  int
		stopID   string
		schedArr int64
	}
	groups := make(map[key]*TripStopRow)
	var order []key

	for _, r := range rows {
		k := key{tripID: r.TripID, stopSeq: r.StopSequence, stopID: r.StopID, schedArr: r.SchedArr.Unix()}
		g, ok := groups[k]
		if !ok {
			g = &TripStopRow{
				RouteID:      r.RouteID,
				Direction:    r.Direction,
				TripID:       r.TripID,
				StopSequence: r.StopSequence,
				StopID:       r.StopID,
				SchedArr:     r.SchedArr,
				Idx:          r.Idx,
			}
			groups[k] = g
			order = append(order, k)
		}

		switch r.PerfRate {
		case model.Late:
			g.Late++
		case model.Early:
			g.Early++
		default:
			g.OnTime++
		}
		g.TotalObs++
		g.SpdList = append(g.SpdList, r.ProjSpeedKmh)
		g.ArrDifList = append(g.ArrDifList, r.OffArrDifS)
		g.LastOffArr = r.OffArr
		g.LastPerfRte = r.PerfRate
	}

	out := make([]TripStopRow, 0, len(order))
	for _, k := range order {
		g := groups[k]
		g.Satis = g.OnTime
		g.Unsatis = g.Late + g.Early
		if g.TotalObs > 0 {
			g.PrcObsSat = pct(g.Satis, g.TotalObs)
			g.PrcObsUns = pct(g.Unsatis, g.TotalObs)
			g.AvgSpd = mean(g.SpdList)
			g.AvgArrDif = mean(g.ArrDifList)
		}
		out = append(out, *g)
	}
	return out
}

// HourLevel is C8 stage 2: per-(route, stop_id, stop_seq, ref_hr), where
// ref_hr = hour(sched_arr) (§4.8.2). Runs once, after the barrier, over
// every route's stage-1 output.
func HourLevel(level1 []TripStopRow) []HourRow {
	type key struct {
		routeID, direction, stopID string
		stopSeq, refHour           int
	}
	groups := make(map[key][]TripStopRow)
	var order []key

	for _, r := range level1 {
		k := key{r.RouteID, r.Direction, r.StopID, r.StopSequence, r.SchedArr.UTC().Hour()}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]HourRow, 0, len(order))
	for _, k := range order {
		rs := groups[k]
		row := HourRow{
			RouteID:      k.routeID,
			Direction:    k.direction,
			StopID:       k.stopID,
			StopSequence: k.stopSeq,
			RefHour:      k.refHour,
		}
		fillWeighted(rs, &row.AvgSpd, &row.AvgArrDif, &row.PrcObsSat, &row.PrcObsUns,
			&row.SpdW, &row.ArrdW, &row.PrcwSat, &row.PrcwUns,
			&row.CntTripIDs, &row.AllObs, &row.ActSatP, &row.ActUnsP)
		out = append(out, row)
	}
	return out
}

// DayLevel is C8 stage 3: per-(route, stop_id, stop_seq), over the whole
// day (§4.8.3), plus agglength/list_refhr drawn from the hour level.
func DayLevel(level1 []TripStopRow, level2 []HourRow) []DayRow {
	type key struct {
		routeID, direction, stopID string
		stopSeq                    int
	}
	groups := make(map[key][]TripStopRow)
	hours := make(map[key]map[int]bool)
	var order []key

	for _, r := range level1 {
		k := key{r.RouteID, r.Direction, r.StopID, r.StopSequence}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
			hours[k] = make(map[int]bool)
		}
		groups[k] = append(groups[k], r)
		hours[k][r.SchedArr.UTC().Hour()] = true
	}

	out := make([]DayRow, 0, len(order))
	for _, k := range order {
		rs := groups[k]
		row := DayRow{
			RouteID:      k.routeID,
			Direction:    k.direction,
			StopID:       k.stopID,
			StopSequence: k.stopSeq,
		}
		fillWeighted(rs, &row.AvgSpd, &row.AvgArrDif, &row.PrcObsSat, &row.PrcObsUns,
			&row.SpdW, &row.ArrdW, &row.PrcwSat, &row.PrcwUns,
			&row.CntTripIDs, &row.AllObs, &row.ActSatP, &row.ActUnsP)

		var hrs []int
		for h := range hours[k] {
			hrs = append(hrs, h)
		}
		sort.Ints(hrs)
		row.ListRefHr = hrs
		row.Agglength = len(hrs)

		out = append(out, row)
	}
	return out
}

// fillWeighted computes both the unweighted (per-trip, weight 1) and
// TotalObs-weighted means/percentages shared by the hour and day levels
// (§4.8.2-3), plus the actual-satisfied/unsatisfied trip percentages
// drawn from each trip's last perf_rate.
func fillWeighted(rs []TripStopRow,
	avgSpd, avgArrDif, prcObsSat, prcObsUns,
	spdW, arrdW, prcwSat, prcwUns *float64,
	cntTripIDs, allObs *int,
	actSatP, actUnsP *float64,
) {
	n := len(rs)
	if n == 0 {
		return
	}

	var sumSpd, sumArrDif, sumPrcSat, sumPrcUns float64
	var wSumSpd, wSumArrDif, wSumPrcSat, wSumPrcUns float64
	var totalObs int
	var satTrips int

	tripIDs := make(map[string]bool, n)
	for _, r := range rs {
		sumSpd += r.AvgSpd
		sumArrDif += r.AvgArrDif
		sumPrcSat += r.PrcObsSat
		sumPrcUns += r.PrcObsUns

		w := float64(r.TotalObs)
		wSumSpd += r.AvgSpd * w
		wSumArrDif += r.AvgArrDif * w
		wSumPrcSat += r.PrcObsSat * w
		wSumPrcUns += r.PrcObsUns * w

		totalObs += r.TotalObs
		tripIDs[r.TripID] = true
		if r.LastPerfRte == model.OnTime {
			satTrips++
		}
	}

	*avgSpd = sumSpd / float64(n)
	*avgArrDif = sumArrDif / float64(n)
	*prcObsSat = sumPrcSat / float64(n)
	*prcObsUns = sumPrcUns / float64(n)

	if totalObs > 0 {
		*spdW = wSumSpd / float64(totalObs)
		*arrdW = wSumArrDif / float64(totalObs)
		*prcwSat = wSumPrcSat / float64(totalObs)
		*prcwUns = wSumPrcUns / float64(totalObs)
	}

	*cntTripIDs = len(tripIDs)
	*allObs = totalObs
	*actSatP = pct(satTrips, len(tripIDs))
	*actUnsP = 100 - *actSatP
}

func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
