/*
Package timesheet provides the weekly time-allocation engine.

PURPOSE:
  This package contains the domain types and algorithms for weekly time
  allocation: converting per-project percentages and leave days into hours
  against a configurable weekly capacity, reconciling edited weeks against
  persisted state, and deciding when a week is still editable.

KEY CONCEPTS IN THIS FILE (types.go):
  - Project/Category: What time is booked against, and how it rolls up
  - Week: A (year, week-number) key with fixed 52-week wrap arithmetic
  - TimeEntry: One project's allocation inside one user-week
  - WeekTimesheet: The full entry set for one (user, year, week)
  - OrgUser: Roster record with role, team, and preferred projects
  - Config: Explicit per-session capacity configuration

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for percent/days/hours arithmetic
  2. Hours are derived: percentages and days are the inputs users edit,
     hours is the single authoritative value used for persistence and
     aggregation
  3. Explicit configuration: weekly capacity is a Config value passed into
     every calculation, never ambient process state

USAGE:
  sheet := timesheet.NewWeekTimesheet("u-1", timesheet.NewWeek(2025, 7))
  sheet.SetDays("vacation", decimal.NewFromInt(1))
  sheet.SetPercent("apollo", decimal.NewFromInt(50))
  timesheet.Recalculate(sheet, timesheet.DefaultConfig())

SEE ALSO:
  - calculator.go: Percentage/days to hours derivation
  - reconcile.go: Load/carry-forward/save lifecycle
  - lock.go: Edit-window policy
  - store.go: Persistence interfaces
*/
package timesheet

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROJECTS AND CATEGORIES
// =============================================================================

// Category classifies a project for reporting roll-ups.
// Fixed at project creation; never changes afterwards.
type Category string

const (
	CategoryRnD        Category = "rnd"
	CategoryRnDSupport Category = "rnd_support"
	CategoryMfgSupport Category = "mfg_support"
	CategoryLeave      Category = "leave"
)

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryRnD, CategoryRnDSupport, CategoryMfgSupport, CategoryLeave:
		return true
	}
	return false
}

type ProjectID string
type UserID string
type TeamID string

// Project is something time can be booked against.
// The ID is a stable string key; only Name is mutable after creation.
type Project struct {
	ID       ProjectID
	Name     string
	Category Category
}

func (p Project) IsLeave() bool { return p.Category == CategoryLeave }

// DefaultProjects is the built-in catalog used when no store is configured.
// A configured store seeds these on first run and owns the catalog from then on.
func DefaultProjects() []Project {
	return []Project{
		{ID: "platform", Name: "Platform", Category: CategoryRnD},
		{ID: "firmware", Name: "Firmware", Category: CategoryRnD},
		{ID: "sustaining", Name: "Sustaining", Category: CategoryRnDSupport},
		{ID: "test-infra", Name: "Test Infrastructure", Category: CategoryRnDSupport},
		{ID: "line-support", Name: "Line Support", Category: CategoryMfgSupport},
		{ID: "vacation", Name: "Vacation", Category: CategoryLeave},
		{ID: "sick", Name: "Sick Leave", Category: CategoryLeave},
	}
}

// ProjectIndex builds an ID lookup over a catalog slice.
func ProjectIndex(catalog []Project) map[ProjectID]Project {
	idx := make(map[ProjectID]Project, len(catalog))
	for _, p := range catalog {
		idx[p.ID] = p
	}
	return idx
}

// =============================================================================
// WEEK - (year, week-number) key with fixed 52-week wrap
// =============================================================================

// WeeksPerYear is the fixed wrap modulus for week arithmetic.
// Deliberately NOT ISO-correct for 53-week years: prev/next navigation and
// the edit-window distance both use a flat 52-week year. See DESIGN.md.
const WeeksPerYear = 52

// Week identifies one allocation week.
type Week struct {
	Year   int
	Number int // 1..52
}

func NewWeek(year, number int) Week { return Week{Year: year, Number: number} }

// CurrentWeek returns the week containing now, per ISO week numbering.
func CurrentWeek(now time.Time) Week {
	year, number := now.ISOWeek()
	if number > WeeksPerYear {
		number = WeeksPerYear
	}
	return Week{Year: year, Number: number}
}

// Prev returns the preceding week, wrapping 1 -> 52 of the prior year.
func (w Week) Prev() Week {
	if w.Number <= 1 {
		return Week{Year: w.Year - 1, Number: WeeksPerYear}
	}
	return Week{Year: w.Year, Number: w.Number - 1}
}

// Next returns the following week, wrapping 52 -> 1 of the next year.
func (w Week) Next() Week {
	if w.Number >= WeeksPerYear {
		return Week{Year: w.Year + 1, Number: 1}
	}
	return Week{Year: w.Year, Number: w.Number + 1}
}

// Absolute maps the week onto a single comparable axis.
// Used by the edit-window policy and for time-series ordering.
func (w Week) Absolute() int { return w.Year*WeeksPerYear + w.Number }

func (w Week) Before(other Week) bool { return w.Absolute() < other.Absolute() }

// Key returns the composite grouping key. Grouping by "year:week" rather
// than by bare week number keeps week 52 of one year distinct from week 1
// of the next.
func (w Week) Key() string { return fmt.Sprintf("%d:%d", w.Year, w.Number) }

// Label is the human-readable form used on report axes.
func (w Week) Label() string { return fmt.Sprintf("%d-W%02d", w.Year, w.Number) }

// =============================================================================
// TIME ENTRY - One project's allocation inside one user-week
// =============================================================================

// HoursPerLeaveDay converts leave days to hours.
const HoursPerLeaveDay = 8

// MaxLeaveDays caps a single leave entry at a full week.
const MaxLeaveDays = 7

// TimeEntry is one row of a weekly timesheet.
//
// Percent is meaningful only for work (non-leave) entries; Days only for
// leave entries. Hours is always present and is the authoritative derived
// value: it is what gets persisted and aggregated.
type TimeEntry struct {
	UserID    UserID
	Week      Week
	ProjectID ProjectID
	Category  Category

	Percent decimal.Decimal
	Days    decimal.Decimal
	Hours   decimal.Decimal
}

func (e TimeEntry) IsLeave() bool { return e.Category == CategoryLeave }

// IsBlank reports whether the entry carries no information at all.
// Blank entries are rendered but never persisted.
func (e TimeEntry) IsBlank() bool {
	return e.Hours.IsZero() && e.Percent.IsZero() && e.Days.IsZero()
}

// =============================================================================
// WEEK TIMESHEET - The entry set for one (user, year, week)
// =============================================================================

// WeekTimesheet is the in-memory working state for one user-week.
//
// Submitted is true when the entries were loaded from persisted rows.
// Prefilled is true when the entries were carried forward from the prior
// week; a prefilled sheet must NOT be treated as already saved.
type WeekTimesheet struct {
	UserID  UserID
	Week    Week
	Entries []TimeEntry

	Submitted bool
	Prefilled bool
}

func NewWeekTimesheet(user UserID, week Week) *WeekTimesheet {
	return &WeekTimesheet{UserID: user, Week: week}
}

// Entry returns a pointer to the entry for projectID, or nil.
func (s *WeekTimesheet) Entry(projectID ProjectID) *TimeEntry {
	for i := range s.Entries {
		if s.Entries[i].ProjectID == projectID {
			return &s.Entries[i]
		}
	}
	return nil
}

// Ensure returns the entry for the project, creating a zeroed one if absent.
func (s *WeekTimesheet) Ensure(p Project) *TimeEntry {
	if e := s.Entry(p.ID); e != nil {
		return e
	}
	s.Entries = append(s.Entries, TimeEntry{
		UserID:    s.UserID,
		Week:      s.Week,
		ProjectID: p.ID,
		Category:  p.Category,
	})
	return &s.Entries[len(s.Entries)-1]
}

// SetPercent sets a work entry's percentage, clamped to [0, 100].
// Clamping lives here, at the edit boundary, so the calculator itself stays
// a total function. No-op for leave entries.
func (s *WeekTimesheet) SetPercent(projectID ProjectID, pct decimal.Decimal) {
	e := s.Entry(projectID)
	if e == nil || e.IsLeave() {
		return
	}
	e.Percent = clamp(pct, decimal.Zero, decimal.NewFromInt(100))
}

// SetDays sets a leave entry's day count, clamped to [0, 7].
// No-op for work entries.
func (s *WeekTimesheet) SetDays(projectID ProjectID, days decimal.Decimal) {
	e := s.Entry(projectID)
	if e == nil || !e.IsLeave() {
		return
	}
	e.Days = clamp(days, decimal.Zero, decimal.NewFromInt(MaxLeaveDays))
}

// PersistableEntries returns the rows the save step is allowed to insert:
// everything that is not blank. A zeroed row must never reach the store.
func (s *WeekTimesheet) PersistableEntries() []TimeEntry {
	var rows []TimeEntry
	for _, e := range s.Entries {
		if !e.IsBlank() {
			rows = append(rows, e)
		}
	}
	return rows
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// =============================================================================
// ORG USERS
// =============================================================================

type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
	StatusPending  UserStatus = "pending"
)

// OrgUser is a roster record. PreferredProjects controls which work projects
// show on the user's own entry screen; it does not restrict which projects
// can carry entries (admins may book against any project on a user's behalf).
type OrgUser struct {
	ID                UserID
	Name              string
	Email             string
	Role              Role
	TeamID            TeamID
	Status            UserStatus
	PreferredProjects []ProjectID
}

func (u OrgUser) IsActive() bool { return u.Status == StatusActive }

// CanCorrectOthers reports whether the user may use the admin correction
// path to overwrite another user's week.
func (u OrgUser) CanCorrectOthers() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}

// =============================================================================
// CONFIG - Per-session capacity configuration
// =============================================================================

// DefaultWeeklyCapacity is the fallback capacity in hours.
const DefaultWeeklyCapacity = 40

// Config carries the per-session settings the engine needs. Capacity is a
// user preference that is not persisted per week; callers pass it in
// explicitly on every calculation.
type Config struct {
	WeeklyCapacity decimal.Decimal
}

func DefaultConfig() Config {
	return Config{WeeklyCapacity: decimal.NewFromInt(DefaultWeeklyCapacity)}
}

// Normalize replaces a non-positive capacity with the default.
func (c Config) Normalize() Config {
	if c.WeeklyCapacity.LessThanOrEqual(decimal.Zero) {
		return DefaultConfig()
	}
	return c
}
