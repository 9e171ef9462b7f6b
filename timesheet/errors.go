/*
errors.go - Centralized error types for the allocation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations map their driver errors onto these sentinels so the
  rest of the system can classify failures with errors.Is.

ERROR CATEGORIES:
  1. Store errors - Persistence failures (permission, missing, constraint)
  2. Policy errors - Edit-window and allocation-gate violations
  3. Save errors - Structured failures from the two-stage save

SEE ALSO:
  - reconcile.go: Produces SaveError
  - store/sqlite: Maps driver errors onto these sentinels
*/
package timesheet

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPermissionDenied is returned when the store rejects an operation
	// for authorization reasons.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a referenced row or user doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConstraintViolation is returned when the store rejects a write for
	// schema or uniqueness reasons.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrStoreUnavailable is returned for connectivity-level failures.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrWeekLocked is returned when a save touches work entries in a
	// future-locked week.
	ErrWeekLocked = errors.New("week is locked for work entries")

	// ErrUnbalancedAllocation is returned by the save gate when work
	// percentages do not sum to 100 while work hours are available.
	ErrUnbalancedAllocation = errors.New("work percentages must total 100")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SaveStage identifies which half of the delete-then-insert save failed.
type SaveStage string

const (
	StageDelete SaveStage = "delete"
	StageInsert SaveStage = "insert"
)

// SaveError reports a failed week save. Stage tells the caller whether the
// delete or the insert step failed; because both run inside one store
// transaction, neither case leaves partial rows behind.
type SaveError struct {
	UserID UserID
	Week   Week
	Stage  SaveStage
	Err    error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save failed for %s %s at %s step: %v", e.UserID, e.Week.Label(), e.Stage, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// LockedWeekError reports a rejected edit on a future-locked week.
type LockedWeekError struct {
	Selected Week
	Current  Week
}

func (e *LockedWeekError) Error() string {
	return fmt.Sprintf("week %s is more than %d weeks ahead of %s: work entries are read-only",
		e.Selected.Label(), FutureEditHorizon, e.Current.Label())
}

func (e *LockedWeekError) Unwrap() error { return ErrWeekLocked }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// rather than a system fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrWeekLocked) ||
		errors.Is(err, ErrUnbalancedAllocation) ||
		errors.Is(err, ErrConstraintViolation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsPermission returns true if the error indicates an authorization failure.
func IsPermission(err error) bool { return errors.Is(err, ErrPermissionDenied) }
