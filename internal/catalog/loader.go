// Package catalog implements C2: assembling the read-only, per-route
// geometry+schedule bundle (model.RouteCatalog) from the static GTFS
// bundle and its pre-derived shapefiles (§4.2, §6).
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	polyline "github.com/twpayne/go-polyline"
	"github.com/pkg/errors"

	"github.com/transitflow/vtrie/internal/geo"
	"github.com/transitflow/vtrie/internal/model"
)

// Loader builds and caches RouteCatalogs for one job run. Build once per
// job, share immutably across C3-C6 workers (§4.2, §5).
type Loader struct {
	GTFSDir    string
	StagingDir string // 2_staging/<gtfs_date>/ per §6
	WKID       geo.WKID
}

// Load assembles the RouteCatalog for one (route_id, direction), using
// the staging cache when present (determinism property, §8) and
// rebuilding it from the GTFS bundle otherwise.
func (l *Loader) Load(key model.RouteKey) (*model.RouteCatalog, error) {
	if l.StagingDir != "" {
		if c, ok, err := l.loadFromCache(key); err != nil {
			return nil, err
		} else if ok {
			return c, nil
		}
	}

	segs, err := readUndissolvedSegments(l.GTFSDir, key.RouteID, key.Direction)
	if err != nil {
		return nil, errors.Wrapf(err, "load undissolved segments for %s", key)
	}
	if len(segs) == 0 {
		return nil, errors.Errorf("catalog invalid: no undissolved segments for %s", key)
	}
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].Index != segs[j].Index {
			return segs[i].Index < segs[j].Index
		}
		return segs[i].ObjectID < segs[j].ObjectID
	})

	modelSegs := make([]model.Segment, len(segs))
	for i, s := range segs {
		modelSegs[i] = model.Segment{
			SegIndex:     s.Index,
			Path:         [2]model.Point{{X: s.Start.X, Y: s.Start.Y}, {X: s.End.X, Y: s.End.Y}},
			StopSequence: s.StopSequence,
			StopID:       s.StopID,
		}
	}

	dissolved, fromShapefile := l.buildDissolved(key, modelSegs)

	dissolvedSeg := make([]int, len(dissolved)-1)
	if fromShapefile && len(dissolved)-1 == len(modelSegs) {
		for i, s := range modelSegs {
			dissolvedSeg[i] = s.SegIndex
		}
	} else {
		// Fallback: derive strictly from the concatenation, so each edge
		// maps 1:1 to the segment it came from by construction.
		dissolved = concatenateSegments(modelSegs)
		dissolvedSeg = make([]int, len(modelSegs))
		for i, s := range modelSegs {
			dissolvedSeg[i] = s.SegIndex
		}
	}

	maxSegIndex := modelSegs[len(modelSegs)-1].SegIndex
	maxReachableStopSeq := 0
	for _, s := range modelSegs {
		if s.StopSequence > maxReachableStopSeq {
			maxReachableStopSeq = s.StopSequence
		}
	}

	tripDirs, err := loadTripDirections(l.GTFSDir, key.RouteID)
	if err != nil {
		return nil, errors.Wrapf(err, "load trip directions for %s", key)
	}
	tripIDs := make(map[string]bool)
	for tripID, dir := range tripDirs {
		if dir == key.Direction {
			tripIDs[tripID] = true
		}
	}

	stopTable, err := loadStopTable(l.GTFSDir, tripIDs)
	if err != nil {
		return nil, errors.Wrapf(err, "load stop table for %s", key)
	}

	maxStopSequence := 0
	for k := range stopTable {
		if k.StopSequence > maxStopSequence {
			maxStopSequence = k.StopSequence
		}
	}

	validated := true
	if maxStopSequence > maxReachableStopSeq {
		// §4.2: lower the effective max to the polyline's maximum and
		// mark max_stop_seq_validated = false.
		maxStopSequence = maxReachableStopSeq
		validated = false
	}

	cat := &model.RouteCatalog{
		Key:                 key,
		Segments:            modelSegs,
		Dissolved:           dissolved,
		DissolvedCum:        geo.CumulativeLengths(l.WKID, dissolved),
		DissolvedSeg:        dissolvedSeg,
		StopTable:           stopTable,
		MaxStopSequence:      maxStopSequence,
		MaxSegIndex:          maxSegIndex,
		MaxStopSeqValidated: validated,
		WKID:                int(l.WKID),
	}

	if l.StagingDir != "" {
		if err := l.writeCache(key, cat); err != nil {
			return nil, errors.Wrapf(err, "write staging cache for %s", key)
		}
	}

	return cat, nil
}

func concatenateSegments(segs []model.Segment) []model.Point {
	pts := make([]model.Point, 0, len(segs)+1)
	for i, s := range segs {
		if i == 0 {
			pts = append(pts, s.Path[0])
		}
		pts = append(pts, s.Path[1])
	}
	return pts
}

// buildDissolved reads the pre-derived single-polyline dissolved
// shapefile (§6) via go-shp, falling back to concatenating the
// undissolved segments (per the data-model definition in §3) when that
// artifact is absent or malformed.
func (l *Loader) buildDissolved(key model.RouteKey, segs []model.Segment) (pts []model.Point, fromShapefile bool) {
	path := filepath.Join(l.GTFSDir, "Route", fmt.Sprintf("%s_%s_dissolved.shp", key.RouteID, key.Direction))
	reader, err := shp.Open(path)
	if err != nil {
		return concatenateSegments(segs), false
	}
	defer reader.Close()

	for reader.Next() {
		_, shape := reader.Shape()
		line, ok := shape.(*shp.PolyLine)
		if !ok || len(line.Points) < 2 {
			continue
		}
		pts = make([]model.Point, len(line.Points))
		for i, p := range line.Points {
			pts[i] = model.Point{X: p.X, Y: p.Y}
		}
		break
	}
	if len(pts) < 2 {
		return concatenateSegments(segs), false
	}
	return pts, true
}

// cacheFile is the JSON sidecar persisted to 2_staging/<gtfs_date>/,
// holding everything but the dissolved polyline, which is stored
// alongside as a Google-encoded-polyline string via go-polyline — the
// same library the teacher uses to decode OTP geometry in
// worker/cron_segments.go, applied here to VTRIE's own catalog cache.
type cacheFile struct {
	Segments            []model.Segment               `json:"segments"`
	DissolvedSeg         []int                         `json:"dissolved_seg"`
	StopTable           map[string]model.StopTime      `json:"stop_table"`
	MaxStopSequence     int                            `json:"max_stop_sequence"`
	MaxSegIndex         int                            `json:"max_seg_index"`
	MaxStopSeqValidated bool                           `json:"max_stop_seq_validated"`
	WKID                int                            `json:"wkid"`
}

func stopTableKey(k model.StopTimeKey) string {
	return fmt.Sprintf("%s|%d", k.TripID, k.StopSequence)
}

func (l *Loader) cachePaths(key model.RouteKey) (jsonPath, polylinePath string) {
	base := filepath.Join(l.StagingDir, fmt.Sprintf("%s_%s", key.RouteID, key.Direction))
	return base + ".json", base + ".polyline"
}

func (l *Loader) writeCache(key model.RouteKey, cat *model.RouteCatalog) error {
	if err := os.MkdirAll(l.StagingDir, 0o755); err != nil {
		return err
	}
	jsonPath, polylinePath := l.cachePaths(key)

	coords := make([][]float64, len(cat.Dissolved))
	for i, p := range cat.Dissolved {
		coords[i] = []float64{p.Y, p.X} // go-polyline expects [lat, lon]
	}
	encoded := polyline.EncodeCoords(coords)
	if err := os.WriteFile(polylinePath, encoded, 0o644); err != nil {
		return err
	}

	cf := cacheFile{
		Segments:            cat.Segments,
		DissolvedSeg:        cat.DissolvedSeg,
		StopTable:           make(map[string]model.StopTime, len(cat.StopTable)),
		MaxStopSequence:     cat.MaxStopSequence,
		MaxSegIndex:         cat.MaxSegIndex,
		MaxStopSeqValidated: cat.MaxStopSeqValidated,
		WKID:                cat.WKID,
	}
	for k, v := range cat.StopTable {
		cf.StopTable[stopTableKey(k)] = v
	}

	b, err := json.Marshal(cf)
	if err != nil {
		return err
	}
	return os.WriteFile(jsonPath, b, 0o644)
}

func (l *Loader) loadFromCache(key model.RouteKey) (*model.RouteCatalog, bool, error) {
	jsonPath, polylinePath := l.cachePaths(key)
	jb, err := os.ReadFile(jsonPath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	pb, err := os.ReadFile(polylinePath)
	if err != nil {
		return nil, false, err
	}

	var cf cacheFile
	if err := json.Unmarshal(jb, &cf); err != nil {
		return nil, false, errors.Wrap(err, "unmarshal catalog cache")
	}

	coords, _, err := polyline.DecodeCoords(pb)
	if err != nil {
		return nil, false, errors.Wrap(err, "decode cached dissolved polyline")
	}
	dissolved := make([]model.Point, len(coords))
	for i, c := range coords {
		dissolved[i] = model.Point{X: c[1], Y: c[0]}
	}

	stopTable := make(map[model.StopTimeKey]model.StopTime, len(cf.StopTable))
	for ks, v := range cf.StopTable {
		sep := strings.LastIndex(ks, "|")
		if sep < 0 {
			continue
		}
		seq, err := strconv.Atoi(ks[sep+1:])
		if err != nil {
			continue
		}
		stopTable[model.StopTimeKey{TripID: ks[:sep], StopSequence: seq}] = v
	}

	cat := &model.RouteCatalog{
		Key:                 key,
		Segments:            cf.Segments,
		Dissolved:           dissolved,
		DissolvedCum:        geo.CumulativeLengths(geo.WKID(cf.WKID), dissolved),
		DissolvedSeg:        cf.DissolvedSeg,
		StopTable:           stopTable,
		MaxStopSequence:     cf.MaxStopSequence,
		MaxSegIndex:         cf.MaxSegIndex,
		MaxStopSeqValidated: cf.MaxStopSeqValidated,
		WKID:                cf.WKID,
	}
	return cat, true, nil
}
