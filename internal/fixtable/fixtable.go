// Package fixtable reads the day's raw fix CSV (§6: "GTFSRT_YYYY-MM-DD.csv")
// and groups the rows by (route_id, direction) for C9's per-route fan-out.
// Grounded on tidbyt-gtfs/parse's gocsv-callback style and the teacher's
// own vehicle-grouping idiom in worker/cron_aggregate.go.
package fixtable

import (
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/transitflow/vtrie/internal/errs"
	"github.com/transitflow/vtrie/internal/model"
)

type fixCSV struct {
	TripID    string `csv:"trip_id"`
	Timestamp string `csv:"timestamp"`
	Lat       float64 `csv:"lat"`
	Lon       float64 `csv:"lon"`
	VehicleID string `csv:"vehicle_id"`
}

// Load reads path and groups every row into its (route_id, direction)
// bucket using tripRoutes (from catalog.LoadTripRoutes). Rows whose
// trip_id isn't in tripRoutes are reported as DataIntegrity records
// rather than aborting the job (§7: DataIntegrity is recoverable).
func Load(path string, tripRoutes map[string]model.RouteKey) (map[model.RouteKey][]model.Fix, []errs.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errs.Fatal(errs.InputMissing, "open fix table", err)
	}
	defer f.Close()

	groups := make(map[model.RouteKey][]model.Fix)
	var recs []errs.Record

	i := -1
	err = gocsv.UnmarshalToCallbackWithError(f, func(row *fixCSV) error {
		i++
		ts, perr := time.Parse(time.RFC3339, row.Timestamp)
		if perr != nil {
			recs = append(recs, errs.New(errs.DataIntegrity, "", row.TripID, 0, perr,
				"parse timestamp"))
			return nil
		}
		rk, ok := tripRoutes[row.TripID]
		if !ok {
			recs = append(recs, errs.New(errs.DataIntegrity, "", row.TripID, 0,
				errors.Errorf("trip_id %q not found in trips.txt", row.TripID), "resolve route for fix"))
			return nil
		}
		groups[rk] = append(groups[rk], model.Fix{
			TripID:    row.TripID,
			RouteID:   rk.RouteID,
			Direction: rk.Direction,
			Timestamp: ts.UTC(),
			Lat:       row.Lat,
			Lon:       row.Lon,
			VehicleID: row.VehicleID,
		})
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse fix table")
	}

	// §5: "fixes are sorted by (trip_id, timestamp) before C3".
	for rk := range groups {
		g := groups[rk]
		sort.Slice(g, func(i, j int) bool {
			if g[i].TripID != g[j].TripID {
				return g[i].TripID < g[j].TripID
			}
			return g[i].Timestamp.Before(g[j].Timestamp)
		})
		groups[rk] = g
	}

	return groups, recs, nil
}
