package pipeline

import (
	"sort"

	"github.com/transitflow/vtrie/internal/errs"
	"github.com/transitflow/vtrie/internal/geo"
	"github.com/transitflow/vtrie/internal/model"
)

// RouteResult is everything one C9 worker returns for a (route_id,
// direction) task: the cleaned interpolated rows ready for C8 stage 1,
// retention/cleanup stats for the manifest, and every recoverable error
// encountered along the way.
type RouteResult struct {
	Rows      []model.InterpolatedRow
	Retention Retention
	Cleanup   CleanupResult
	Errors    []errs.Record
}

// RunRoute executes C3 through C7 for one route's fixes against its
// catalog (§4.9: "workers read the shared immutable catalog and the
// per-route slice of fixes; they return rows, retention, errors").
func RunRoute(cat *model.RouteCatalog, wkid geo.WKID, maxSnapDistM float64, fixes []model.Fix) RouteResult {
	var res RouteResult

	snapped, geoErrs := Geolocate(cat, fixes, wkid, maxSnapDistM)
	res.Errors = append(res.Errors, geoErrs...)

	kept, retention := QAQC(snapped)
	res.Retention = retention

	byTrip := make(map[string][]model.SnappedFix)
	var tripOrder []string
	for _, f := range kept {
		if _, ok := byTrip[f.TripID]; !ok {
			tripOrder = append(tripOrder, f.TripID)
		}
		byTrip[f.TripID] = append(byTrip[f.TripID], f)
	}
	sort.Strings(tripOrder)

	var allRows []model.InterpolatedRow
	idx := 0
	for _, tripID := range tripOrder {
		tripFixes := byTrip[tripID]
		pairs := Enrich(cat, wkid, tripFixes)
		rows, interpErrs := Interpolate(cat, wkid, cat.Key.RouteID, cat.Key.Direction, tripID, pairs, &idx)
		res.Errors = append(res.Errors, interpErrs...)
		allRows = append(allRows, rows...)
	}

	cleaned, cleanupRes := Cleanup(cat.MaxStopSequence, allRows)
	res.Rows = cleaned
	res.Cleanup = cleanupRes

	return res
}
