package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/pkg/errors"

	"github.com/transitflow/vtrie/internal/geo"
)

// undissolvedSegmentPath returns the path to the per-route undissolved
// segment shapefile, per §6: "Route/<route_id>_<direction>_undissolved.shp".
func undissolvedSegmentPath(gtfsDir, routeID, direction string) string {
	return filepath.Join(gtfsDir, "Route", fmt.Sprintf("%s_%s_undissolved.shp", routeID, direction))
}

// shapeSegment is one record read from the undissolved-segment shapefile,
// carrying the attribute fields §6 specifies: stop_sequence, stop_id,
// index, objectid. index is the record's own SegIndex; objectid is read
// but only used to break ties when two records share the same index
// (shouldn't happen in a well-formed catalog, but the generator's output
// is an external collaborator's artifact — defend against it).
type shapeSegment struct {
	Index        int
	ObjectID     int
	StopSequence int
	StopID       string
	Start, End   geo.Point
}

// readUndissolvedSegments reads the per-route undissolved-segment
// shapefile using jonas-p/go-shp, the standard Go ESRI-shapefile reader —
// no repo in the pack parses shapefiles, so this is the out-of-pack pick
// DESIGN.md documents for C2.
func readUndissolvedSegments(gtfsDir, routeID, direction string) ([]shapeSegment, error) {
	path := undissolvedSegmentPath(gtfsDir, routeID, direction)
	reader, err := shp.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer reader.Close()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		fieldIdx[f.String()] = i
	}

	idxOf := func(name string) (int, bool) {
		lname := strings.ToLower(name)
		for fname, i := range fieldIdx {
			lfname := strings.ToLower(fname)
			// go-shp truncates DBF field names to 10 chars; match by
			// case-insensitive prefix to tolerate that.
			if lfname == lname {
				return i, true
			}
			if len(lfname) > 0 && len(lname) >= len(lfname) && lname[:len(lfname)] == lfname {
				return i, true
			}
		}
		return 0, false
	}

	segIdxField, _ := idxOf("index")
	objIDField, _ := idxOf("objectid")
	stopSeqField, _ := idxOf("stop_sequence")
	stopIDField, _ := idxOf("stop_id")

	var out []shapeSegment
	for reader.Next() {
		n, shape := reader.Shape()
		line, ok := shape.(*shp.PolyLine)
		if !ok || len(line.Points) < 2 {
			continue
		}
		start := geo.Point{X: line.Points[0].X, Y: line.Points[0].Y}
		end := geo.Point{X: line.Points[len(line.Points)-1].X, Y: line.Points[len(line.Points)-1].Y}

		seg := shapeSegment{Start: start, End: end}
		seg.Index = atoiAttr(reader, n, segIdxField)
		seg.ObjectID = atoiAttr(reader, n, objIDField)
		seg.StopSequence = atoiAttr(reader, n, stopSeqField)
		seg.StopID = reader.ReadAttribute(n, stopIDField)
		out = append(out, seg)
	}
	return out, nil
}

func atoiAttr(reader *shp.Reader, row, field int) int {
	s := reader.ReadAttribute(row, field)
	var v int
	_, _ = fmt.Sscanf(s, "%d", &v)
	return v
}
