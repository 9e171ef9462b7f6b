// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/allocation-engine/timesheet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	entries  map[entryKey][]timesheet.TimeEntry
	projects []timesheet.Project
	users    map[timesheet.UserID]timesheet.OrgUser
}

type entryKey struct {
	User timesheet.UserID
	Week timesheet.Week
}

func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[entryKey][]timesheet.TimeEntry),
		projects: timesheet.DefaultProjects(),
		users:    make(map[timesheet.UserID]timesheet.OrgUser),
	}
}

// SetProjects replaces the catalog. Test setup helper.
func (m *Memory) SetProjects(projects []timesheet.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = append([]timesheet.Project(nil), projects...)
}

// PutUser adds or replaces a roster record. Test setup helper.
func (m *Memory) PutUser(u timesheet.OrgUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// =============================================================================
// timesheet.Store
// =============================================================================

func (m *Memory) Entries(_ context.Context, user timesheet.UserID, week timesheet.Week) ([]timesheet.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := entryKey{User: user, Week: week}
	result := make([]timesheet.TimeEntry, len(m.entries[k]))
	copy(result, m.entries[k])
	return result, nil
}

func (m *Memory) DeleteEntries(_ context.Context, user timesheet.UserID, week timesheet.Week) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, entryKey{User: user, Week: week})
	return nil
}

func (m *Memory) InsertEntries(_ context.Context, rows []timesheet.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		k := entryKey{User: row.UserID, Week: row.Week}
		m.entries[k] = append(m.entries[k], row)
	}
	return nil
}

// Projects returns the catalog ordered by category, then name.
func (m *Memory) Projects(_ context.Context) ([]timesheet.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]timesheet.Project, len(m.projects))
	copy(result, m.projects)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (m *Memory) SubmittedUserIDs(_ context.Context, week timesheet.Week) ([]timesheet.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[timesheet.UserID]bool)
	for k, rows := range m.entries {
		if k.Week == week && len(rows) > 0 {
			seen[k.User] = true
		}
	}
	ids := make([]timesheet.UserID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) RawHourRows(_ context.Context, filter timesheet.ScopeFilter) ([]timesheet.RawHourRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []timesheet.RawHourRow
	for k, entries := range m.entries {
		team := m.users[k.User].TeamID
		if !filter.Matches(k.User, team) {
			continue
		}
		for _, e := range entries {
			rows = append(rows, timesheet.RawHourRow{
				UserID:    e.UserID,
				TeamID:    team,
				ProjectID: e.ProjectID,
				Week:      e.Week,
				Hours:     e.Hours,
			})
		}
	}
	return rows, nil
}

// =============================================================================
// timesheet.Directory
// =============================================================================

func (m *Memory) Users(_ context.Context) ([]timesheet.OrgUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]timesheet.OrgUser, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *Memory) User(_ context.Context, id timesheet.UserID) (*timesheet.OrgUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, timesheet.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) SavePreferences(_ context.Context, user timesheet.UserID, projects []timesheet.ProjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[user]
	if !ok {
		return timesheet.ErrNotFound
	}
	u.PreferredProjects = append([]timesheet.ProjectID(nil), projects...)
	m.users[user] = u
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot of the entry map and a rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(timesheet.Store) error) error {
	snapshot := tm.snapshotEntries()

	if err := fn(tm.Memory); err != nil {
		tm.restoreEntries(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshotEntries() map[entryKey][]timesheet.TimeEntry {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	snap := make(map[entryKey][]timesheet.TimeEntry, len(tm.entries))
	for k, v := range tm.entries {
		snap[k] = append([]timesheet.TimeEntry{}, v...)
	}
	return snap
}

func (tm *TxMemory) restoreEntries(snap map[entryKey][]timesheet.TimeEntry) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.entries = snap
}
