/*
store.go - Persistence interfaces for timesheet data

PURPOSE:
  Defines the interface between the engine and the datastore. The engine is
  storage-agnostic; implementations exist for SQLite (store/sqlite) and
  in-memory (timesheet/store, used by tests).

KEY INTERFACES:
  Store:     Entry rows, project catalog, reporting queries
  TxStore:   Store plus atomic multi-write transactions
  Directory: Roster and preferred-project persistence

SAVE SEMANTICS:
  A week is overwritten wholesale on every save: delete all rows for
  (user, year, week), then insert the surviving entries. TxStore.WithTx
  exists so the reconciler can run that pair atomically; a store without
  real transactions must still guarantee all-or-nothing for the callback.

SEE ALSO:
  - reconcile.go: The only writer of entry rows
  - store/memory.go: In-memory implementation
  - store/sqlite/sqlite.go: Production implementation
*/
package timesheet

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCOPES - Aggregation boundaries
// =============================================================================

// Scope selects the aggregation boundary for reporting queries.
type Scope string

const (
	ScopeDepartment Scope = "department" // no filter
	ScopeTeam       Scope = "team"       // filter by team affiliation
	ScopeUser       Scope = "user"       // filter by single user
)

// ScopeFilter narrows a reporting query. TeamID is consulted only when
// Scope == ScopeTeam, UserID only when Scope == ScopeUser.
type ScopeFilter struct {
	Scope  Scope
	TeamID TeamID
	UserID UserID
}

// Matches reports whether a row belonging to (user, team) is in scope.
func (f ScopeFilter) Matches(user UserID, team TeamID) bool {
	switch f.Scope {
	case ScopeTeam:
		return team == f.TeamID
	case ScopeUser:
		return user == f.UserID
	default:
		return true
	}
}

// RawHourRow is the flat reporting projection of a persisted entry.
type RawHourRow struct {
	UserID    UserID
	TeamID    TeamID
	ProjectID ProjectID
	Week      Week
	Hours     decimal.Decimal
}

// =============================================================================
// STORE - Entry and catalog persistence
// =============================================================================

type Store interface {
	// Entries returns the persisted rows for one user-week, with Category
	// resolved from the project catalog.
	Entries(ctx context.Context, user UserID, week Week) ([]TimeEntry, error)

	// DeleteEntries removes every row for one user-week.
	DeleteEntries(ctx context.Context, user UserID, week Week) error

	// InsertEntries persists the given rows.
	InsertEntries(ctx context.Context, rows []TimeEntry) error

	// Projects returns the catalog ordered by category, then name.
	Projects(ctx context.Context) ([]Project, error)

	// SubmittedUserIDs returns the distinct users with at least one
	// persisted row for the week.
	SubmittedUserIDs(ctx context.Context, week Week) ([]UserID, error)

	// RawHourRows returns the reporting rows matching the scope filter.
	RawHourRows(ctx context.Context, filter ScopeFilter) ([]RawHourRow, error)
}

// TxStore wraps Store with transaction support. The reconciler requires it:
// the delete+insert save pair must be atomic.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// DIRECTORY - Roster access
// =============================================================================

type Directory interface {
	// Users returns the full roster.
	Users(ctx context.Context) ([]OrgUser, error)

	// User returns one roster record, or ErrNotFound.
	User(ctx context.Context, id UserID) (*OrgUser, error)

	// SavePreferences replaces a user's preferred-project list.
	SavePreferences(ctx context.Context, user UserID, projects []ProjectID) error
}
