// Package pipeline implements the per-route C3-C7 stages: geolocation,
// QA/QC, enrichment, interpolation, and post-interpolation cleanup.
package pipeline

import (
	"github.com/transitflow/vtrie/internal/errs"
	"github.com/transitflow/vtrie/internal/geo"
	"github.com/transitflow/vtrie/internal/model"
)

// Geolocate is C3: snap every fix to the dissolved polyline and recover
// its seg_index/stop_id/stop_sequence, resolving ambiguous matches on
// self-overlapping (loop) routes via a trip-local monotonic-seg_index
// state machine (§4.3, §9). fixes must already be sorted by (trip_id,
// timestamp) — fixtable.Load guarantees this.
func Geolocate(cat *model.RouteCatalog, fixes []model.Fix, wkid geo.WKID, maxSnapDistM float64) ([]model.SnappedFix, []errs.Record) {
	var out []model.SnappedFix
	var recs []errs.Record

	if len(cat.Dissolved) < 2 {
		for _, f := range fixes {
			recs = append(recs, errs.New(errs.Geometric, f.RouteID, f.TripID, 0,
				errNoPolyline, "geolocate"))
		}
		return nil, recs
	}

	dissolved := make([]geo.Point, len(cat.Dissolved))
	for i, p := range cat.Dissolved {
		dissolved[i] = geo.Point{X: p.X, Y: p.Y}
	}

	segBySegIndex := make(map[int]model.Segment, len(cat.Segments))
	for _, s := range cat.Segments {
		segBySegIndex[s.SegIndex] = s
	}
	segsByStopSeq := make(map[int][]model.Segment)
	for _, s := range cat.Segments {
		segsByStopSeq[s.StopSequence] = append(segsByStopSeq[s.StopSequence], s)
	}

	lastSegIndex := make(map[string]int)
	var barcode int64

	for _, f := range fixes {
		pt := geo.Point{X: f.Lon, Y: f.Lat}
		proj, arc, dissolvedIdx := geo.ProjectPointToPolyline(wkid, pt, dissolved)
		if dissolvedIdx < 0 {
			recs = append(recs, errs.New(errs.Geometric, f.RouteID, f.TripID, 0, errNoPolyline, "project fix"))
			continue
		}
		dist := geo.DistanceM(wkid, pt, proj)
		if dist > maxSnapDistM {
			recs = append(recs, errs.New(errs.Geometric, f.RouteID, f.TripID, 0,
				errTooFar, "snap fix to polyline"))
			continue
		}

		locSegIndex := cat.DissolvedSeg[dissolvedIdx]
		locSeg, ok := segBySegIndex[locSegIndex]
		if !ok {
			recs = append(recs, errs.New(errs.DataIntegrity, f.RouteID, f.TripID, 0,
				errUnknownSegment, "resolve dissolved segment"))
			continue
		}

		candidates := segsByStopSeq[locSeg.StopSequence]
		var containing []model.Segment
		for _, c := range candidates {
			if geo.PointInSegment(wkid, pt, [2]geo.Point{
				{X: c.Path[0].X, Y: c.Path[0].Y},
				{X: c.Path[1].X, Y: c.Path[1].Y},
			}, geo.ContainmentTolDeg) {
				containing = append(containing, c)
			}
		}

		chosen := resolveCandidate(containing, locSeg, lastSegIndex[f.TripID], f.TripID, lastSegIndex)

		lastSegIndex[f.TripID] = chosen.SegIndex
		barcode++

		out = append(out, model.SnappedFix{
			Fix:          f,
			SegIndex:     chosen.SegIndex,
			StopID:       chosen.StopID,
			StopSequence: chosen.StopSequence,
			Projected:    model.Point{X: proj.X, Y: proj.Y},
			ArcLength:    arc,
			Barcode:      barcode,
		})
	}

	return out, recs
}

// resolveCandidate picks which undissolved segment a projected point
// belongs to when point_in_segment matches zero, one, or several
// candidates (§4.3). On first fix of a trip (no prior accepted
// seg_index), ties resolve to the lowest seg_index; thereafter, ties
// resolve to the candidate that keeps seg_index monotonically
// non-decreasing relative to the trip's previously accepted fix.
func resolveCandidate(containing []model.Segment, fallback model.Segment, lastSeg int, tripID string, lastSegIndex map[string]int) model.Segment {
	if len(containing) == 0 {
		return fallback
	}
	if len(containing) == 1 {
		return containing[0]
	}

	_, hasPrior := lastSegIndex[tripID]
	if !hasPrior {
		best := containing[0]
		for _, c := range containing[1:] {
			if c.SegIndex < best.SegIndex {
				best = c
			}
		}
		return best
	}

	var bestForward *model.Segment
	for i := range containing {
		c := containing[i]
		if c.SegIndex >= lastSeg {
			if bestForward == nil || c.SegIndex < bestForward.SegIndex {
				bestForward = &containing[i]
			}
		}
	}
	if bestForward != nil {
		return *bestForward
	}
	// No candidate preserves monotonicity; best-effort to the largest
	// seg_index rather than regressing further.
	best := containing[0]
	for _, c := range containing[1:] {
		if c.SegIndex > best.SegIndex {
			best = c
		}
	}
	return best
}
