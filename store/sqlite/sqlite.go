/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements timesheet.Store, timesheet.TxStore, and timesheet.Directory
  using SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  projects:         The shared project catalog (category fixed at creation)
  time_entries:     Persisted weekly allocation rows
  users:            Org roster (role, team, status)
  user_preferences: Preferred-project lists

SAVE SEMANTICS:
  A week save is delete-then-insert over (user_id, year, week). WithTx wraps
  both steps in one database transaction, so a failed insert rolls back the
  delete instead of leaving the week empty.

ERROR MAPPING:
  Driver errors are mapped onto the timesheet sentinel taxonomy so callers
  can distinguish permission, not-found, and constraint failures with
  errors.Is instead of string matching.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

SEEDING:
  On first run (empty projects table), the built-in default catalog from
  timesheet.DefaultProjects is inserted.

USAGE:
  store, err := sqlite.New("./data/allocation.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  rec := timesheet.NewReconciler(store)

SEE ALSO:
  - timesheet/store.go: Interface definitions
  - timesheet/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/allocation-engine/timesheet"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := store.seedProjects(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed projects: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Project catalog. Category is fixed at creation; only name is mutable.
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_category
		ON projects(category, name);

	-- Weekly allocation rows. One row per (user, year, week, project);
	-- the week is overwritten wholesale on every save.
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		week INTEGER NOT NULL,
		project_id TEXT NOT NULL REFERENCES projects(id),
		percent TEXT NOT NULL,
		days TEXT NOT NULL,
		hours TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_user_week_project
		ON time_entries(user_id, year, week, project_id);

	-- Hot path: loading one user-week
	CREATE INDEX IF NOT EXISTS idx_entries_user_week
		ON time_entries(user_id, year, week);

	-- Hot path: compliance and aggregation by week
	CREATE INDEX IF NOT EXISTS idx_entries_week
		ON time_entries(year, week);

	-- Org roster
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL DEFAULT 'user',
		team_id TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_team
		ON users(team_id);

	-- Preferred projects shown on a user's own entry screen
	CREATE TABLE IF NOT EXISTS user_preferences (
		user_id TEXT NOT NULL REFERENCES users(id),
		project_id TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, project_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// seedProjects inserts the built-in catalog when the table is empty.
func (s *Store) seedProjects() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM projects").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, p := range timesheet.DefaultProjects() {
		_, err := s.db.Exec(
			"INSERT INTO projects (id, name, category, created_at) VALUES (?, ?, ?, ?)",
			p.ID, p.Name, p.Category, time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// ENTRY STORE (timesheet.Store interface)
// =============================================================================

const entryColumns = `e.user_id, e.year, e.week, e.project_id, p.category, e.percent, e.days, e.hours`

// Entries returns the persisted rows for one user-week, category resolved
// via the catalog join.
func (s *Store) Entries(ctx context.Context, user timesheet.UserID, week timesheet.Week) ([]timesheet.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + entryColumns + `
		FROM time_entries e
		JOIN projects p ON p.id = e.project_id
		WHERE e.user_id = ? AND e.year = ? AND e.week = ?
		ORDER BY p.category ASC, p.name ASC
	`
	return queryEntries(ctx, s.db, query, user, week.Year, week.Number)
}

// DeleteEntries removes every row for one user-week.
func (s *Store) DeleteEntries(ctx context.Context, user timesheet.UserID, week timesheet.Week) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEntries(ctx, s.db, user, week)
}

// InsertEntries persists the given rows.
func (s *Store) InsertEntries(ctx context.Context, rows []timesheet.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertEntries(ctx, s.db, rows)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func deleteEntries(ctx context.Context, db execer, user timesheet.UserID, week timesheet.Week) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM time_entries WHERE user_id = ? AND year = ? AND week = ?",
		user, week.Year, week.Number,
	)
	if err != nil {
		return mapError("delete entries", err)
	}
	return nil
}

func insertEntries(ctx context.Context, db execer, rows []timesheet.TimeEntry) error {
	query := `
		INSERT INTO time_entries
		(id, user_id, year, week, project_id, percent, days, hours, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC().Format(time.RFC3339)
	for _, row := range rows {
		_, err := db.ExecContext(ctx, query,
			uuid.NewString(),
			row.UserID,
			row.Week.Year,
			row.Week.Number,
			row.ProjectID,
			row.Percent.String(),
			row.Days.String(),
			row.Hours.String(),
			now,
		)
		if err != nil {
			return mapError("insert entry", err)
		}
	}
	return nil
}

func queryEntries(ctx context.Context, db querier, query string, args ...any) ([]timesheet.TimeEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("query entries", err)
	}
	defer rows.Close()

	var entries []timesheet.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (timesheet.TimeEntry, error) {
	var (
		e        timesheet.TimeEntry
		year     int
		week     int
		percent  string
		days     string
		hours    string
		category string
	)

	err := rows.Scan(&e.UserID, &year, &week, &e.ProjectID, &category, &percent, &days, &hours)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.Week = timesheet.NewWeek(year, week)
	e.Category = timesheet.Category(category)
	e.Percent = mustDecimal(percent)
	e.Days = mustDecimal(days)
	e.Hours = mustDecimal(hours)
	return e, nil
}

// =============================================================================
// CATALOG AND REPORTING QUERIES
// =============================================================================

// Projects returns the catalog ordered by category, then name.
func (s *Store) Projects(ctx context.Context) ([]timesheet.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryProjects(ctx, s.db)
}

func queryProjects(ctx context.Context, db querier) ([]timesheet.Project, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, category FROM projects ORDER BY category ASC, name ASC")
	if err != nil {
		return nil, mapError("query projects", err)
	}
	defer rows.Close()

	var projects []timesheet.Project
	for rows.Next() {
		var p timesheet.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Category); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SaveProject inserts or renames a project. The category of an existing
// project is never changed.
func (s *Store) SaveProject(ctx context.Context, p timesheet.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, category, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, p.ID, p.Name, p.Category, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return mapError("save project", err)
	}
	return nil
}

// SubmittedUserIDs returns the distinct users with at least one persisted
// row for the week.
func (s *Store) SubmittedUserIDs(ctx context.Context, week timesheet.Week) ([]timesheet.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return submittedUserIDs(ctx, s.db, week)
}

func submittedUserIDs(ctx context.Context, db querier, week timesheet.Week) ([]timesheet.UserID, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT DISTINCT user_id FROM time_entries WHERE year = ? AND week = ? ORDER BY user_id ASC",
		week.Year, week.Number,
	)
	if err != nil {
		return nil, mapError("query submitted users", err)
	}
	defer rows.Close()

	var ids []timesheet.UserID
	for rows.Next() {
		var id timesheet.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RawHourRows returns the reporting rows matching the scope filter.
func (s *Store) RawHourRows(ctx context.Context, filter timesheet.ScopeFilter) ([]timesheet.RawHourRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rawHourRows(ctx, s.db, filter)
}

func rawHourRows(ctx context.Context, db querier, filter timesheet.ScopeFilter) ([]timesheet.RawHourRow, error) {
	query := `
		SELECT e.user_id, COALESCE(u.team_id, ''), e.project_id, e.year, e.week, e.hours
		FROM time_entries e
		LEFT JOIN users u ON u.id = e.user_id
	`
	var args []any
	switch filter.Scope {
	case timesheet.ScopeTeam:
		query += " WHERE u.team_id = ?"
		args = append(args, filter.TeamID)
	case timesheet.ScopeUser:
		query += " WHERE e.user_id = ?"
		args = append(args, filter.UserID)
	}
	query += " ORDER BY e.year ASC, e.week ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("query hour rows", err)
	}
	defer rows.Close()

	var result []timesheet.RawHourRow
	for rows.Next() {
		var (
			row   timesheet.RawHourRow
			year  int
			week  int
			hours string
		)
		if err := rows.Scan(&row.UserID, &row.TeamID, &row.ProjectID, &year, &week, &hours); err != nil {
			return nil, fmt.Errorf("failed to scan hour row: %w", err)
		}
		row.Week = timesheet.NewWeek(year, week)
		row.Hours = mustDecimal(hours)
		result = append(result, row)
	}
	return result, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (timesheet.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store timesheet.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes Store calls through an open transaction. Read queries the
// save path doesn't use fall through to the parent connection.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (t *txStore) Entries(ctx context.Context, user timesheet.UserID, week timesheet.Week) ([]timesheet.TimeEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM time_entries e
		JOIN projects p ON p.id = e.project_id
		WHERE e.user_id = ? AND e.year = ? AND e.week = ?
		ORDER BY p.category ASC, p.name ASC
	`
	return queryEntries(ctx, t.tx, query, user, week.Year, week.Number)
}

func (t *txStore) DeleteEntries(ctx context.Context, user timesheet.UserID, week timesheet.Week) error {
	return deleteEntries(ctx, t.tx, user, week)
}

func (t *txStore) InsertEntries(ctx context.Context, rows []timesheet.TimeEntry) error {
	return insertEntries(ctx, t.tx, rows)
}

func (t *txStore) Projects(ctx context.Context) ([]timesheet.Project, error) {
	return queryProjects(ctx, t.tx)
}

func (t *txStore) SubmittedUserIDs(ctx context.Context, week timesheet.Week) ([]timesheet.UserID, error) {
	return submittedUserIDs(ctx, t.tx, week)
}

func (t *txStore) RawHourRows(ctx context.Context, filter timesheet.ScopeFilter) ([]timesheet.RawHourRow, error) {
	return rawHourRows(ctx, t.tx, filter)
}

// =============================================================================
// DIRECTORY (timesheet.Directory interface)
// =============================================================================

// Users returns the full roster with preferences attached.
func (s *Store) Users(ctx context.Context) ([]timesheet.OrgUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, COALESCE(email, ''), role, COALESCE(team_id, ''), status FROM users ORDER BY id ASC")
	if err != nil {
		return nil, mapError("query users", err)
	}
	defer rows.Close()

	var users []timesheet.OrgUser
	for rows.Next() {
		var u timesheet.OrgUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.TeamID, &u.Status); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range users {
		prefs, err := s.preferences(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].PreferredProjects = prefs
	}
	return users, nil
}

// User returns one roster record, or timesheet.ErrNotFound.
func (s *Store) User(ctx context.Context, id timesheet.UserID) (*timesheet.OrgUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u timesheet.OrgUser
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, COALESCE(email, ''), role, COALESCE(team_id, ''), status FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.TeamID, &u.Status)
	if err == sql.ErrNoRows {
		return nil, timesheet.ErrNotFound
	}
	if err != nil {
		return nil, mapError("query user", err)
	}

	prefs, err := s.preferences(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.PreferredProjects = prefs
	return &u, nil
}

// SaveUser inserts or updates a roster record.
func (s *Store) SaveUser(ctx context.Context, u timesheet.OrgUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, team_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, email = excluded.email, role = excluded.role,
			team_id = excluded.team_id, status = excluded.status
	`, u.ID, u.Name, u.Email, u.Role, u.TeamID, u.Status, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return mapError("save user", err)
	}
	return nil
}

// SavePreferences replaces a user's preferred-project list.
func (s *Store) SavePreferences(ctx context.Context, user timesheet.UserID, projects []timesheet.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM user_preferences WHERE user_id = ?", user); err != nil {
		return mapError("delete preferences", err)
	}
	for i, p := range projects {
		_, err := sqlTx.ExecContext(ctx,
			"INSERT INTO user_preferences (user_id, project_id, position) VALUES (?, ?, ?)",
			user, p, i,
		)
		if err != nil {
			return mapError("insert preference", err)
		}
	}
	return sqlTx.Commit()
}

func (s *Store) preferences(ctx context.Context, user timesheet.UserID) ([]timesheet.ProjectID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT project_id FROM user_preferences WHERE user_id = ? ORDER BY position ASC",
		user,
	)
	if err != nil {
		return nil, mapError("query preferences", err)
	}
	defer rows.Close()

	var prefs []timesheet.ProjectID
	for rows.Next() {
		var p timesheet.ProjectID
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// mapError wraps driver errors with the sentinel taxonomy so callers can
// classify them with errors.Is.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"),
		strings.Contains(msg, "FOREIGN KEY constraint failed"),
		strings.Contains(msg, "CHECK constraint failed"):
		return fmt.Errorf("%s: %v: %w", op, err, timesheet.ErrConstraintViolation)
	case strings.Contains(msg, "attempt to write a readonly database"),
		strings.Contains(msg, "access denied"):
		return fmt.Errorf("%s: %v: %w", op, err, timesheet.ErrPermissionDenied)
	case strings.Contains(msg, "no such table"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "unable to open database"):
		return fmt.Errorf("%s: %v: %w", op, err, timesheet.ErrStoreUnavailable)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
