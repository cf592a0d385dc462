package pipeline

import (
	"errors"

	"github.com/transitflow/vtrie/internal/model"
)

var (
	errNoPolyline     = errors.New("dissolved polyline is empty or unprojectable")
	errTooFar         = errors.New("fix farther than the configured snap distance bound")
	errUnknownSegment = errors.New("dissolved location maps to an unknown segment index")
	errIllogicalSpeed = errors.New("projected speed exceeds 120 km/h or non-positive elapsed time")
)

// Local names for the model package's mobility/performance enums, used
// throughout this package's classification logic.
const (
	Movement   = model.Movement
	Stationary = model.Stationary
	Terminus   = model.Terminus

	OnTime = model.OnTime
	Late   = model.Late
	Early  = model.Early
)
