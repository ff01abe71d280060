package domain

import (
	"errors"
	"fmt"
)

var errInvalidHour = errors.New("invalid hour bucket")

// FetchError reports a failed snapshot fetch: transport failure, a
// non-success HTTP status, or a malformed response body. A fetch error
// aborts the whole cycle before any write is attempted.
type FetchError struct {
	Status int // HTTP status when the response was received, else 0
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch snapshot: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("fetch snapshot: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NormalizeError reports a malformed or incomplete station record. It is
// isolated to that station; the rest of the cycle continues.
type NormalizeError struct {
	StationID string
	Field     string
	Reason    string
}

func (e *NormalizeError) Error() string {
	if e.StationID == "" {
		return fmt.Sprintf("normalize station: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("normalize station %s: %s: %s", e.StationID, e.Field, e.Reason)
}

// PersistenceError reports a store-level failure on one entity write. It
// aborts the remainder of that station's persistence step only.
type PersistenceError struct {
	Entity string // "station", "sensor", or "measurement"
	Key    string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Entity, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
