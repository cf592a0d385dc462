// Package manifest writes the per-route retention/error-count manifest
// that accompanies every run's output (§7: "per-route retention and
// error counts are written to a manifest alongside outputs"). Grounded
// on the teacher's gocsv-via-struct-tag output style, generalized from
// vehicle positions to route outcomes.
package manifest

import (
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/transitflow/vtrie/internal/errs"
	"github.com/transitflow/vtrie/internal/executor"
)

type row struct {
	RouteID       string  `csv:"route_id"`
	Direction     string  `csv:"direction"`
	InputFixes    int     `csv:"input_fixes"`
	KeptFixes     int     `csv:"kept_fixes"`
	Retention     float64 `csv:"retention"`
	RowsEmitted   int     `csv:"rows_emitted"`
	RowsDropped   int     `csv:"rows_dropped"`
	GeometricErrs int     `csv:"geometric_errors"`
	IntegrityErrs int     `csv:"data_integrity_errors"`
	NumericErrs   int     `csv:"numeric_anomaly_errors"`
	Failed        bool    `csv:"failed"`
	FailReason    string  `csv:"fail_reason"`
}

// Write renders one CSV manifest row per route outcome to
// <outputDir>/7_requests/manifest_<date>.csv, overwriting any manifest
// already present for that date — reruns for the same VTRIE_DATE are
// idempotent the same way the teacher's cron_aggregate.go DELETE-then-
// insert pattern makes a Postgres rerun idempotent.
func Write(outputDir, date string, outcomes []executor.RouteOutcome) (string, error) {
	dir := filepath.Join(outputDir, "7_requests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create manifest directory")
	}
	path := filepath.Join(dir, "manifest_"+date+".csv")

	rows := make([]row, 0, len(outcomes))
	for _, o := range outcomes {
		r := row{
			RouteID:       o.Route.RouteID,
			Direction:     o.Route.Direction,
			InputFixes:    o.Retention.Input,
			KeptFixes:     o.Retention.Kept,
			Retention:     o.Retention.Fraction(),
			RowsEmitted:   o.Cleanup.Kept(),
			RowsDropped:   o.Cleanup.DroppedSpeed + o.Cleanup.DroppedArrDif + o.Cleanup.DroppedWrap + o.Cleanup.DroppedNonPosTime,
			GeometricErrs: o.ErrCounts[errs.Geometric],
			IntegrityErrs: o.ErrCounts[errs.DataIntegrity],
			NumericErrs:   o.ErrCounts[errs.NumericAnomaly],
			Failed:        o.Failed,
		}
		if o.FailErr != nil {
			r.FailReason = o.FailErr.Error()
		}
		rows = append(rows, r)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create manifest file")
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return "", errors.Wrap(err, "write manifest")
	}
	return path, nil
}

// ExitCode computes the job's exit code per §6: 0 success, 2 partial
// failure (some routes errored). 1 (invalid or missing fix table) and 3
// (trips.txt load or executor failure) are returned directly by main
// without calling this.
func ExitCode(outcomes []executor.RouteOutcome) int {
	for _, o := range outcomes {
		if o.Failed {
			return 2
		}
	}
	return 0
}
