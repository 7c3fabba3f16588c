package types

import (
	"errors"
	"fmt"
)

// Sentinel errors the core distinguishes (spec §7). Components return
// these wrapped with operation context via fmt.Errorf("%w", ...); callers
// use errors.Is/errors.As to classify.
var (
	// ErrNotFound indicates the requested title is unknown to the
	// metadata store.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a client-supplied value failed a sanity
	// check (empty title, unsafe path characters, invalid page/size).
	ErrValidation = errors.New("validation failed")

	// ErrIO indicates the content store or search index was
	// unavailable or returned an unclassified I/O failure.
	ErrIO = errors.New("io failure")

	// ErrInternal is the catch-all for anything else; it is logged
	// with context and surfaced with a safe message.
	ErrInternal = errors.New("internal error")
)

// ConflictError is the distinct typed signal for an optimistic
// concurrency mismatch (spec §4.1 step 2). It carries the full
// ConflictDetail so HTTP handlers never need to reconstruct it.
type ConflictError struct {
	Detail ConflictDetail
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("note conflict: server last_hash=%s", e.Detail.ServerLastHash)
}

// NewConflictError builds a ConflictError from a populated detail.
func NewConflictError(detail ConflictDetail) error {
	return &ConflictError{Detail: detail}
}

// AsConflict reports whether err is (or wraps) a *ConflictError and
// returns its detail.
func AsConflict(err error) (ConflictDetail, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Detail, true
	}
	return ConflictDetail{}, false
}

// WrapIO wraps an underlying content-store or search-index error as IO,
// per the propagation policy of spec §7.
func WrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrIO, err)
}

// WrapInternal wraps an unclassified error as Internal.
func WrapInternal(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrInternal, err)
}

// WrapValidation wraps a validation failure with a human-readable
// reason.
func WrapValidation(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrValidation)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
