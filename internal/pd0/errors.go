package pd0

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMoreEnsembles marks a clean end of stream. Decode never returns it.
	ErrNoMoreEnsembles = errors.New("no more ensembles")

	ErrMalformedHeader    = errors.New("malformed ensemble header")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrUnknownSectionType = errors.New("unknown section type")
	ErrMissingFixedLeader = errors.New("cell-indexed section before fixed leader")
	ErrTruncatedSection   = errors.New("truncated section")
	ErrCellCountMismatch  = errors.New("cell count mismatch")
	ErrDuplicateSection   = errors.New("duplicate section")

	// ErrUnsynchronised marks a run of bytes that held no sync marker. It
	// never wraps into a DecodeError.
	ErrUnsynchronised = errors.New("unsynchronised bytes")
)

// ReasonUnsynchronised is the Reason of a skipped byte range.
const ReasonUnsynchronised = "unsynchronised_bytes"

// DecodeError describes a local failure that caused one ensemble to be
// discarded. It wraps one of the sentinel errors above.
type DecodeError struct {
	Offset int   // ensemble start
	State  State // state in which the failure occurred
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ensemble at offset %d (%s): %v", e.Offset, e.State, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Reason returns a short stable name for the wrapped sentinel, suitable for
// persisting in diagnostics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, ErrUnknownSectionType):
		return "unknown_section_type"
	case errors.Is(err, ErrMissingFixedLeader):
		return "missing_fixed_leader"
	case errors.Is(err, ErrTruncatedSection):
		return "truncated_section"
	case errors.Is(err, ErrCellCountMismatch):
		return "cell_count_mismatch"
	case errors.Is(err, ErrDuplicateSection):
		return "duplicate_section"
	case errors.Is(err, ErrUnsynchronised):
		return ReasonUnsynchronised
	default:
		return "unknown"
	}
}
