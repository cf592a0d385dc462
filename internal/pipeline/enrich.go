package pipeline

import (
	"github.com/transitflow/vtrie/internal/geo"
	"github.com/transitflow/vtrie/internal/model"
)

const stationaryDistBoundM = 20.0

// Enrich is C5: builds per-consecutive-pair features for one trip's
// QA/QC-filtered SnappedFixes and freezes each pair's mobility status
// (§3, §4.5).
func Enrich(cat *model.RouteCatalog, wkid geo.WKID, fixes []model.SnappedFix) []model.EnrichedPair {
	if len(fixes) == 0 {
		return nil
	}

	pairs := make([]model.EnrichedPair, 0, len(fixes))

	for i := 0; i < len(fixes); i++ {
		a := fixes[i]
		var b model.SnappedFix
		hasB := i+1 < len(fixes)
		if hasB {
			b = fixes[i+1]
		} else {
			b = a
		}

		stpLeft := cat.MaxStopSequence - a.StopSequence

		deltaSeg := b.SegIndex - a.SegIndex
		deltaStop := b.StopSequence - a.StopSequence

		tentative := Movement
		if hasB && deltaSeg == 0 && deltaStop == 0 {
			tentative = Stationary
		}

		var deltaDist float64
		hasDeltaDist := false
		if tentative == Stationary || !hasB {
			deltaDist = geo.DistanceM(wkid,
				geo.Point{X: a.Projected.X, Y: a.Projected.Y},
				geo.Point{X: b.Projected.X, Y: b.Projected.Y})
			hasDeltaDist = true
		}

		status := classify(cat, a, tentative, deltaDist, hasDeltaDist)

		if !hasB && status != Terminus {
			// Trailing fix isn't at a validated terminus: there is no real
			// next fix to pair it with, so no pair is emitted for it (§8
			// "single-fix trip" boundary case) — only a Terminus echo-pair
			// is synthesized here; anything else stops the trip's pair
			// sequence at its last real consecutive pair.
			break
		}

		deltaTime := 0.0
		if hasB {
			deltaTime = b.Timestamp.Sub(a.Timestamp).Seconds()
		}

		pairs = append(pairs, model.EnrichedPair{
			A:                   a,
			B:                   b,
			DeltaTimeS:          deltaTime,
			DeltaDistM:          deltaDist,
			HasDeltaDist:        hasDeltaDist,
			Status:              status,
			StopLeft:            stpLeft,
			IdxLeft:             0,
			MaxStopSeqValidated: cat.MaxStopSeqValidated,
		})

		if !hasB {
			break
		}
	}

	return pairs
}

// classify freezes the mobility status of a pair per §3: Terminus takes
// priority when the route's final stop has been validated and the fix
// has reached it with no further segment to advance into; otherwise the
// tentative (distance-agnostic) classification is confirmed against the
// stationary distance bound.
func classify(cat *model.RouteCatalog, a model.SnappedFix, tentative model.MobilityStatus, deltaDist float64, hasDeltaDist bool) model.MobilityStatus {
	if cat.MaxStopSeqValidated && a.StopSequence == cat.MaxStopSequence && a.SegIndex >= cat.MaxSegIndex {
		return Terminus
	}
	if tentative == Stationary {
		if hasDeltaDist && deltaDist <= stationaryDistBoundM {
			return Stationary
		}
		return Movement
	}
	return Movement
}
