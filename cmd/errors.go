package cmd

import (
	"errors"
)

// Sentinel errors classifying CLI failures onto the exit codes documented
// in SPEC_FULL.md §6. Command RunE functions wrap the underlying error
// with one of these via fmt.Errorf("%w: %w", ...) so ExitCode can map it
// without the caller needing to inspect error strings.
var (
	errBadInput = errors.New("bad input")
	errUpstream = errors.New("upstream failure")
	errStorage  = errors.New("storage failure")
)

// ExitCode maps a command error to the process exit code documented in
// SPEC_FULL.md §6: 0 success, 2 bad input, 3 upstream failure, 4 storage
// failure, 1 for anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errBadInput):
		return ExitBadInput
	case errors.Is(err, errUpstream):
		return ExitUpstreamError
	case errors.Is(err, errStorage):
		return ExitStorageError
	default:
		return 1
	}
}
