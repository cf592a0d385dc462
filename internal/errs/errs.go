// Package errs implements the error-kind taxonomy of §7: the kinds that
// abort the job before workers start (InputMissing, CatalogInvalid) are
// plain wrapped errors; the kinds a worker can recover from (Geometric,
// DataIntegrity, NumericAnomaly, TaskFailure) are collected per route as
// Records so the manifest can report retention and error counts without
// aborting the run.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the six error kinds named in §7.
type Kind string

const (
	InputMissing   Kind = "InputMissing"
	CatalogInvalid Kind = "CatalogInvalid"
	Geometric      Kind = "Geometric"
	DataIntegrity  Kind = "DataIntegrity"
	NumericAnomaly Kind = "NumericAnomaly"
	TaskFailure    Kind = "TaskFailure"
)

// Record is one recoverable error encountered inside a worker, attributed
// to the row/pair it caused VTRIE to drop.
type Record struct {
	Kind    Kind
	Err     error
	RouteID string
	TripID  string
	StopSeq int
}

func (r Record) Error() string {
	if r.TripID != "" {
		return fmt.Sprintf("%s[%s/%s]: %v", r.Kind, r.RouteID, r.TripID, r.Err)
	}
	return fmt.Sprintf("%s[%s]: %v", r.Kind, r.RouteID, r.Err)
}

// New wraps cause with Kind context the way errors.Wrap does, for a
// recoverable drop attributed to routeID/tripID.
func New(kind Kind, routeID, tripID string, stopSeq int, cause error, msg string) Record {
	return Record{
		Kind:    kind,
		Err:     errors.Wrap(cause, msg),
		RouteID: routeID,
		TripID:  tripID,
		StopSeq: stopSeq,
	}
}

// Fatal wraps an abort-class error (InputMissing/CatalogInvalid) for
// returning straight out of main before any worker starts.
func Fatal(kind Kind, msg string, cause error) error {
	return errors.Wrapf(cause, "%s: %s", kind, msg)
}

// Counts tallies Records by Kind.
func Counts(records []Record) map[Kind]int {
	out := make(map[Kind]int)
	for _, r := range records {
		out[r.Kind]++
	}
	return out
}
