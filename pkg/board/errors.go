package board

import (
	"errors"
	"fmt"
)

// Error taxonomy for session operations. Callers classify failures with
// errors.Is against the base kinds; the specialised sentinels wrap their
// base kind so a single check covers the whole family.
var (
	// ErrNotFound indicates an unknown session, identity, or buffer.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed or out-of-range request value.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates a failed signature or sequence check.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates the request lost a race with a concurrent writer.
	ErrConflict = errors.New("conflict")

	// ErrResourceExhausted indicates a spent budget or exceeded limit.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInternal indicates a store, scheduler, or lock failure.
	ErrInternal = errors.New("internal")
)

// Specialised rejections. Each wraps its base kind.
var (
	// ErrRevisionUnknown is returned when the claimed base revision is
	// neither the current revision nor present in the revision ledger.
	ErrRevisionUnknown = fmt.Errorf("%w: revision unknown", ErrConflict)

	// ErrDrawSpaceViolation is returned when an intervening mutation touched
	// a cell within the conflict radius of the proposed position.
	ErrDrawSpaceViolation = fmt.Errorf("%w: draw space violation", ErrConflict)

	// ErrInsufficientBudget is returned when the paint cost exceeds the
	// identity's remaining balance.
	ErrInsufficientBudget = fmt.Errorf("%w: paint spent", ErrResourceExhausted)

	// ErrNoOpEdit is returned for zero-cost edits (painting a cell its own
	// color). They are rejected, not merely free, to keep ledger spam from
	// being costless.
	ErrNoOpEdit = fmt.Errorf("%w: already the same color", ErrInvalidInput)

	// ErrSignatureInvalid is returned when signature recovery does not yield
	// the claimed identity.
	ErrSignatureInvalid = fmt.Errorf("%w: signature verification failed", ErrUnauthorized)
)

// IsNotFound returns true if the error is (or wraps) ErrNotFound.
// Use this to check GetSession, GetUser, and canvas store lookups.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for revision-ledger rejections
// (ErrRevisionUnknown, ErrDrawSpaceViolation).
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
