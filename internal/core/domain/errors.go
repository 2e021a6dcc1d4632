package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	// Read paths surface absence as empty results; this sentinel is for
	// single-entity lookups where the caller asked for something specific.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input,
	// such as empty segment text or a negative token count.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// the configured embedding dimension. Vectors are never coerced,
	// padded, or truncated.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrIndexUnavailable indicates the ANN index is absent or still
	// building. It never crosses the engine boundary: queries fall back
	// to an exact linear scan instead.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrStorage wraps backing-store I/O failures so callers can decide
	// whether to retry without depending on driver error types.
	ErrStorage = errors.New("storage error")
)

// DimensionError reports a vector with the wrong number of components.
// It wraps ErrDimensionMismatch so errors.Is works on the sentinel.
type DimensionError struct {
	// Got is the length of the offending vector.
	Got int

	// Want is the configured embedding dimension.
	Want int
}

// Error implements the error interface.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: got %d components, want %d", e.Got, e.Want)
}

// Unwrap makes errors.Is(err, ErrDimensionMismatch) true.
func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// BatchEntryError records why a single entry of an embedding batch
// was rejected.
type BatchEntryError struct {
	// SegmentID is the segment the entry targeted.
	SegmentID string

	// Err is the validation failure, typically a *DimensionError.
	Err error
}

// Error implements the error interface.
func (e BatchEntryError) Error() string {
	return fmt.Sprintf("segment %s: %v", e.SegmentID, e.Err)
}

// Unwrap exposes the underlying validation error.
func (e BatchEntryError) Unwrap() error {
	return e.Err
}

// BatchError is returned when an embedding batch is rejected.
// The batch is all-or-nothing: if any entry is listed here, no entry
// from the batch was persisted.
type BatchError struct {
	// Entries lists every rejected entry with its reason.
	Entries []BatchEntryError
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if len(e.Entries) == 1 {
		return fmt.Sprintf("embedding batch rejected: %v", e.Entries[0])
	}
	return fmt.Sprintf("embedding batch rejected: %d invalid entries (first: %v)",
		len(e.Entries), e.Entries[0])
}
