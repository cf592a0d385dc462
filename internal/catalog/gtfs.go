package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/transitflow/vtrie/internal/model"
)

// tripCSV and stopTimeCSV mirror tidbyt-gtfs's parse package: one
// gocsv-tagged struct per GTFS static file, read with the BOM stripped
// the same way tidbyt-gtfs/parse does for feeds exported from Windows
// tooling.
type tripCSV struct {
	RouteID     string `csv:"route_id"`
	TripID      string `csv:"trip_id"`
	DirectionID string `csv:"direction_id"`
}

type stopTimeCSV struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  int    `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
}

func openBOMStripped(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{Reader: bom.NewReader(f), Closer: f}, nil
}

// parseClockOffset parses a GTFS "HH:MM:SS" clock-of-day string (hours
// may exceed 24) into a time.Duration since service-day midnight.
func parseClockOffset(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errors.Wrapf(err, "hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.Wrapf(err, "minute in %q", s)
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, errors.Wrapf(err, "second in %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// LoadTripRoutes reads trips.txt once and returns the (route_id,
// direction) every trip_id belongs to. This is the global lookup the fix
// table (internal/fixtable) needs to group raw fixes — which carry only
// trip_id — by route before C9 fans them out.
func LoadTripRoutes(gtfsDir string) (map[string]model.RouteKey, error) {
	f, err := openBOMStripped(filepath.Join(gtfsDir, "trips.txt"))
	if err != nil {
		return nil, errors.Wrap(err, "open trips.txt")
	}
	defer f.Close()

	var rows []tripCSV
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, errors.Wrap(err, "parse trips.txt")
	}

	out := make(map[string]model.RouteKey, len(rows))
	for _, r := range rows {
		dir := r.DirectionID
		if dir == "" {
			dir = "0"
		}
		out[r.TripID] = model.RouteKey{RouteID: r.RouteID, Direction: dir}
	}
	return out, nil
}

// loadTripDirections returns, for each trip_id in trips.txt matching
// route, the direction string ("0"/"1") from direction_id.
func loadTripDirections(gtfsDir, routeID string) (map[string]string, error) {
	all, err := LoadTripRoutes(gtfsDir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for tripID, rk := range all {
		if rk.RouteID == routeID {
			out[tripID] = rk.Direction
		}
	}
	return out, nil
}

// loadStopTable builds the per-(trip_id, stop_sequence) schedule table
// for every trip in tripIDs (already filtered to one route/direction by
// the caller).
func loadStopTable(gtfsDir string, tripIDs map[string]bool) (map[model.StopTimeKey]model.StopTime, error) {
	f, err := openBOMStripped(filepath.Join(gtfsDir, "stop_times.txt"))
	if err != nil {
		return nil, errors.Wrap(err, "open stop_times.txt")
	}
	defer f.Close()

	table := make(map[model.StopTimeKey]model.StopTime)
	i := -1
	err = gocsv.UnmarshalToCallbackWithError(f, func(st *stopTimeCSV) error {
		i++
		if !tripIDs[st.TripID] {
			return nil
		}
		arr, err := parseClockOffset(st.ArrivalTime)
		if err != nil {
			return errors.Wrapf(err, "row %d arrival_time", i)
		}
		dep, err := parseClockOffset(st.DepartureTime)
		if err != nil {
			return errors.Wrapf(err, "row %d departure_time", i)
		}
		table[model.StopTimeKey{TripID: st.TripID, StopSequence: st.StopSequence}] = model.StopTime{
			StopID:          st.StopID,
			ArrivalOffset:   arr,
			DepartureOffset: dep,
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse stop_times.txt")
	}
	return table, nil
}
