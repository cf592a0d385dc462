// Package model holds the data types shared across VTRIE's pipeline
// stages: raw fixes, route catalog geometry, and the rows each stage
// produces for the next.
package model

import "time"

// RouteKey identifies one (route_id, direction) catalog/task unit.
type RouteKey struct {
	RouteID   string
	Direction string
}

func (k RouteKey) String() string {
	return k.RouteID + ":" + k.Direction
}

// Fix is one raw vehicle position sample as emitted by the harvester.
type Fix struct {
	TripID    string
	RouteID   string
	Direction string
	Timestamp time.Time
	Lat       float64
	Lon       float64
	VehicleID string
}

// Point is a planar (lon, lat) or projected-meter coordinate, depending on
// the catalog's WKID.
type Point struct {
	X float64 // lon, or easting for projected WKIDs
	Y float64 // lat, or northing for projected WKIDs
}

// Segment is one two-point undissolved piece of a route's polyline.
type Segment struct {
	SegIndex     int
	Path         [2]Point
	StopSequence int
	StopID       string
}

// StopTimeKey indexes the per-trip scheduled stop times.
type StopTimeKey struct {
	TripID       string
	StopSequence int
}

// StopTime is one scheduled arrival/departure for a trip at a stop,
// stored as an offset from service-day midnight (GTFS clock-of-day
// strings may exceed 24h, e.g. "25:10:00") rather than an absolute
// instant — §9's "avoid hidden time-zone drift" note means the absolute
// instant can only be resolved once a reference calendar date (the fix's
// own timestamp) is known, see ResolveSchedTime.
type StopTime struct {
	StopID          string
	ArrivalOffset   time.Duration
	DepartureOffset time.Duration
}

// ResolveSchedTime materializes a service-day-midnight-relative offset as
// an absolute UTC instant, anchored to the calendar date of near, per the
// cross-midnight open-question decision in SPEC_FULL.md §4: the schedule
// date is assumed to be near's calendar date, rolled forward one day if
// the resulting instant would otherwise fall more than 12 hours before
// near (i.e. the trip started before midnight and is now being compared
// against a fix recorded after the schedule's nominal day rolled over).
func ResolveSchedTime(near time.Time, offset time.Duration) time.Time {
	near = near.UTC()
	midnight := time.Date(near.Year(), near.Month(), near.Day(), 0, 0, 0, 0, time.UTC)
	t := midnight.Add(offset)
	if near.Sub(t) > 12*time.Hour {
		t = t.Add(24 * time.Hour)
	}
	return t
}

// RouteCatalog is the read-only per-route geometry and schedule bundle C2
// assembles and C3-C6 consume.
type RouteCatalog struct {
	Key RouteKey

	// Segments is the undissolved polyline, ordered by SegIndex.
	Segments []Segment

	// Dissolved is the concatenation of every segment's Path, in
	// traversal order, deduplicating the shared boundary vertex between
	// consecutive segments.
	Dissolved []Point

	// DissolvedCum[i] is the cumulative arc length (meters) from
	// Dissolved[0] to Dissolved[i].
	DissolvedCum []float64

	// DissolvedSeg[i] is the SegIndex the dissolved piece starting at
	// Dissolved[i] (i.e. the edge Dissolved[i]->Dissolved[i+1]) came from.
	DissolvedSeg []int

	StopTable map[StopTimeKey]StopTime

	MaxStopSequence     int
	MaxSegIndex         int
	MaxStopSeqValidated bool

	// WKID is the spatial reference all coordinates in this catalog are
	// expressed in.
	WKID int
}

// StopArcLength returns the cumulative arc length along Dissolved at the
// point the route passes the given stop sequence, i.e. the end of the
// lowest-SegIndex segment carrying that StopSequence.
func (c *RouteCatalog) StopArcLength(stopSeq int) (float64, bool) {
	bestSeg := -1
	for _, s := range c.Segments {
		if s.StopSequence == stopSeq {
			if bestSeg == -1 || s.SegIndex < bestSeg {
				bestSeg = s.SegIndex
			}
		}
	}
	if bestSeg == -1 {
		return 0, false
	}
	for i, segIdx := range c.DissolvedSeg {
		if segIdx == bestSeg {
			return c.DissolvedCum[i+1], true
		}
	}
	return 0, false
}

// StopIDFor returns the stop_id for a stop sequence, using the lowest
// SegIndex occurrence the way StopArcLength does.
func (c *RouteCatalog) StopIDFor(stopSeq int) (string, bool) {
	bestSeg := -1
	var stopID string
	for _, s := range c.Segments {
		if s.StopSequence == stopSeq && (bestSeg == -1 || s.SegIndex < bestSeg) {
			bestSeg = s.SegIndex
			stopID = s.StopID
		}
	}
	return stopID, bestSeg != -1
}

// MobilityStatus is the C5 per-pair mobility classification.
type MobilityStatus int

const (
	Movement MobilityStatus = iota
	Stationary
	Terminus
)

func (s MobilityStatus) String() string {
	switch s {
	case Stationary:
		return "Stationary"
	case Terminus:
		return "Terminus"
	default:
		return "Movement"
	}
}

// SnappedFix is a Fix augmented with its projection onto the dissolved
// polyline (C3 output).
type SnappedFix struct {
	Fix
	SegIndex     int
	StopID       string
	StopSequence int
	Projected    Point
	ArcLength    float64
	Barcode      int64
}

// EnrichedPair is two consecutive SnappedFixes of the same trip (C5
// output), carrying both points for the interpolator.
type EnrichedPair struct {
	A, B                  SnappedFix
	DeltaTimeS            float64
	DeltaDistM            float64
	HasDeltaDist          bool
	Status                MobilityStatus
	StopLeft              int
	IdxLeft               int
	MaxStopSeqValidated   bool
	Idx                   int // C6/§9 per-route cumulative group identifier
}

// PerfRate is the C6 on-time classification.
type PerfRate int

const (
	OnTime PerfRate = iota
	Late
	Early
)

func (p PerfRate) String() string {
	switch p {
	case Late:
		return "Late"
	case Early:
		return "Early"
	default:
		return "On-Time"
	}
}

// TravelType names the interpolation case classified for a pair (§4.6).
type TravelType int

const (
	TravelStationaryRow TravelType = iota
	TravelBtwnStops
	TravelOneStop
	TravelSameStopDiffSeg
	TravelSameStopSameSeg
	TravelTerminusRow
)

// InterpolatedRow is one emitted row of the C6 interpolator, one per
// (trip_id, idx, stop_id).
type InterpolatedRow struct {
	RouteID      string
	Direction    string
	TripID       string
	Idx          int
	StopSequence int
	StopID       string

	TravelType TravelType

	ProjSpeedKmh float64
	DistM        float64
	DistFutrM    float64
	ProjTravelS  float64
	FutrTravelS  float64

	EstArr time.Time
	OffArr time.Time // off_earr: the final estimated arrival for this row

	SchedArr    time.Time
	OffArrDifS  float64
	PercChge    float64
	HasPercChge bool

	PerfRate PerfRate

	// LastOfGroup marks the final row of an (trip,idx) group, after the
	// group is sorted by stop_sequence. Only SameStop groups project that
	// row's OffArr from B's timestamp plus the future leg; BtwnStops and
	// OneStop groups emit no separate B row, and their last row's OffArr
	// is accumulated from A's timestamp like the rows before it.
	LastOfGroup bool

	// NonPositiveElapsed marks a row whose underlying pair had
	// delta_time_s <= 0 (out-of-order or duplicate-timestamp fixes that
	// slipped past C4) — §4.6/§4.7 require this dropped in C7 regardless
	// of the projected speed it produces.
	NonPositiveElapsed bool
}
