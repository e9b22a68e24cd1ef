package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrAlreadyExists is returned by Create when the identity already has a row
// (the upsert engine's create-then-fallback-to-merge race, SPEC_FULL.md §4.4).
var ErrAlreadyExists = errors.New("store: already exists")

// ErrNotFound is returned by single-row reads that find no matching row.
var ErrNotFound = errors.New("store: not found")

// transientSQLStates are the Postgres SQLSTATE classes §7 names as
// transient-storage: deadline-exceeded, resource-exhausted, aborted,
// internal, and connection-unavailable.
var transientSQLStates = map[string]struct{}{
	"40001": {}, // serialization_failure (aborted)
	"40P01": {}, // deadlock_detected (aborted)
	"53000": {}, // insufficient_resources
	"53100": {}, // disk_full
	"53200": {}, // out_of_memory
	"53300": {}, // too_many_connections (resource-exhausted)
	"57014": {}, // query_canceled (deadline-exceeded)
	"58000": {}, // system_error (internal)
	"08000": {}, // connection_exception
	"08003": {}, // connection_does_not_exist
	"08006": {}, // connection_failure (unavailable)
}

func isTransientSQLError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		_, ok := transientSQLStates[string(pqErr.Code)]
		return ok
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
