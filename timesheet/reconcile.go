/*
reconcile.go - Week load/save lifecycle

PURPOSE:
  Owns the per-(user, year, week) entry set: loading persisted rows, the
  carry-forward prefill when a week is empty, keeping the entry set in sync
  with the user's preferred projects, and the wholesale save.

CARRY-FORWARD:
  An empty week prefills from the prior week (wrapping week 1 -> week 52 of
  the prior year): work percentages are copied, leave is reset to zero, and
  hours are recomputed against the current capacity. The prefilled sheet is
  marked not-submitted.

SAVE SEMANTICS:
  Delete-then-insert scoped to the user-week, with only non-blank rows in
  the insert set. Both steps run inside a single store transaction AND under
  a per-(user, year, week) mutex, so a failed insert cannot leave the week
  empty and two concurrent saves of the same week cannot interleave. A
  successful delete with nothing to insert is a valid save of a fully
  zeroed week.

LOCK ENFORCEMENT:
  Save rejects work-entry changes on future-locked weeks; a leave-only save
  there re-persists whatever work rows the week already held, so booking
  future vacation never wipes them. SaveAsAdmin is the privileged
  correction path and skips the check entirely.

SEE ALSO:
  - calculator.go: Hour derivation, capacity inference
  - lock.go: Edit-window policy
  - store.go: TxStore contract
*/
package timesheet

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Reconciler mediates between edited WeekTimesheets and the store.
type Reconciler struct {
	store TxStore

	mu    sync.Mutex
	locks map[weekKey]*sync.Mutex
}

type weekKey struct {
	User UserID
	Week Week
}

func NewReconciler(store TxStore) *Reconciler {
	return &Reconciler{
		store: store,
		locks: make(map[weekKey]*sync.Mutex),
	}
}

// =============================================================================
// LOAD
// =============================================================================

// Load materializes the working sheet for one user-week.
//
// Resolution order:
//  1. Persisted rows for the week (marked Submitted; hours kept as stored).
//  2. Carry-forward from the prior week: copy work percentages, reset all
//     leave to zero, recompute hours against cfg (marked Prefilled).
//  3. A zeroed skeleton: one entry per preferred work project plus one per
//     leave project in the catalog.
func (r *Reconciler) Load(ctx context.Context, user UserID, week Week, prefs []ProjectID, cfg Config) (*WeekTimesheet, error) {
	entries, err := r.store.Entries(ctx, user, week)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		sheet := &WeekTimesheet{UserID: user, Week: week, Entries: entries, Submitted: true}
		return sheet, nil
	}

	prior, err := r.store.Entries(ctx, user, week.Prev())
	if err != nil {
		return nil, err
	}
	if len(prior) > 0 {
		sheet := carryForward(user, week, prior)
		Recalculate(sheet, cfg)
		return sheet, nil
	}

	sheet, err := r.skeleton(ctx, user, week, prefs)
	if err != nil {
		return nil, err
	}
	return sheet, nil
}

// carryForward builds a fresh week from the prior week's entries. Work
// percentages carry over; hours do not (they are recomputed against the
// current capacity and zero leave). Leave never carries over.
func carryForward(user UserID, week Week, prior []TimeEntry) *WeekTimesheet {
	sheet := &WeekTimesheet{UserID: user, Week: week, Prefilled: true}
	for _, p := range prior {
		e := TimeEntry{UserID: user, Week: week, ProjectID: p.ProjectID, Category: p.Category}
		if !p.IsLeave() {
			e.Percent = p.Percent
		}
		sheet.Entries = append(sheet.Entries, e)
	}
	return sheet
}

// skeleton builds a zeroed sheet: preferred work projects plus every leave
// project. Preferred IDs that no longer resolve in the catalog are skipped.
func (r *Reconciler) skeleton(ctx context.Context, user UserID, week Week, prefs []ProjectID) (*WeekTimesheet, error) {
	catalog, err := r.store.Projects(ctx)
	if err != nil {
		return nil, err
	}
	idx := ProjectIndex(catalog)

	sheet := NewWeekTimesheet(user, week)
	for _, id := range prefs {
		p, ok := idx[id]
		if !ok || p.IsLeave() {
			continue
		}
		sheet.Ensure(p)
	}
	for _, p := range catalog {
		if p.IsLeave() {
			sheet.Ensure(p)
		}
	}
	return sheet, nil
}

// SyncPreferences reconciles the sheet with an updated preferred-project
// list: newly preferred projects gain zeroed entries, de-preferred work
// projects are zeroed in place. Entries are never removed here, so no stale
// non-zero hours can linger under a project the user no longer sees.
func SyncPreferences(sheet *WeekTimesheet, prefs []ProjectID, catalog []Project) {
	idx := ProjectIndex(catalog)
	preferred := make(map[ProjectID]bool, len(prefs))
	for _, id := range prefs {
		preferred[id] = true
	}

	for _, id := range prefs {
		p, ok := idx[id]
		if !ok || p.IsLeave() {
			continue
		}
		sheet.Ensure(p)
	}

	for i := range sheet.Entries {
		e := &sheet.Entries[i]
		if e.IsLeave() || preferred[e.ProjectID] {
			continue
		}
		e.Percent = decimal.Zero
		e.Hours = decimal.Zero
	}
}

// =============================================================================
// SAVE
// =============================================================================

// Save persists the sheet for a normal user: recalculate, enforce the
// edit-window policy against current, then overwrite the week.
func (r *Reconciler) Save(ctx context.Context, sheet *WeekTimesheet, cfg Config, current Week) error {
	if EditWindow(sheet.Week, current) == FutureLockedForWork {
		if hasWorkAllocation(sheet) {
			return &LockedWeekError{Selected: sheet.Week, Current: current}
		}
		// Leave-only edit on a locked week. The wholesale delete-then-insert
		// would wipe any work rows already persisted there (an admin may
		// have placed them), so carry their percentages into the sheet
		// before saving.
		if err := r.restoreLockedWork(ctx, sheet); err != nil {
			return err
		}
	}
	return r.save(ctx, sheet, cfg)
}

// restoreLockedWork copies persisted work percentages into a leave-only
// sheet. Hours are recomputed by the save against the edited leave.
func (r *Reconciler) restoreLockedWork(ctx context.Context, sheet *WeekTimesheet) error {
	persisted, err := r.store.Entries(ctx, sheet.UserID, sheet.Week)
	if err != nil {
		return err
	}
	for _, p := range persisted {
		if p.IsLeave() {
			continue
		}
		e := sheet.Entry(p.ProjectID)
		if e == nil {
			sheet.Entries = append(sheet.Entries, TimeEntry{
				UserID:    sheet.UserID,
				Week:      sheet.Week,
				ProjectID: p.ProjectID,
				Category:  p.Category,
			})
			e = &sheet.Entries[len(sheet.Entries)-1]
		}
		e.Percent = p.Percent
	}
	return nil
}

// SaveAsAdmin is the privileged correction path: same persistence semantics,
// no edit-window check.
func (r *Reconciler) SaveAsAdmin(ctx context.Context, sheet *WeekTimesheet, cfg Config) error {
	return r.save(ctx, sheet, cfg)
}

func (r *Reconciler) save(ctx context.Context, sheet *WeekTimesheet, cfg Config) error {
	Recalculate(sheet, cfg)
	rows := sheet.PersistableEntries()

	mu := r.weekLock(sheet.UserID, sheet.Week)
	mu.Lock()
	defer mu.Unlock()

	err := r.store.WithTx(ctx, func(s Store) error {
		if err := s.DeleteEntries(ctx, sheet.UserID, sheet.Week); err != nil {
			return &SaveError{UserID: sheet.UserID, Week: sheet.Week, Stage: StageDelete, Err: err}
		}
		if len(rows) == 0 {
			// Fully zeroed week: a successful delete with nothing to
			// insert is still a successful save.
			return nil
		}
		if err := s.InsertEntries(ctx, rows); err != nil {
			return &SaveError{UserID: sheet.UserID, Week: sheet.Week, Stage: StageInsert, Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	sheet.Submitted = true
	sheet.Prefilled = false
	return nil
}

func hasWorkAllocation(sheet *WeekTimesheet) bool {
	for _, e := range sheet.Entries {
		if !e.IsLeave() && (e.Percent.IsPositive() || e.Hours.IsPositive()) {
			return true
		}
	}
	return false
}

// weekLock returns the mutex guarding one user-week's save path.
func (r *Reconciler) weekLock(user UserID, week Week) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := weekKey{User: user, Week: week}
	mu, ok := r.locks[k]
	if !ok {
		mu = &sync.Mutex{}
		r.locks[k] = mu
	}
	return mu
}

// =============================================================================
// ADMIN CORRECTION LOAD
// =============================================================================

// LoadForCorrection loads another user's week for the admin editor. No
// carry-forward: corrections operate on what was actually persisted, plus a
// zeroed entry for every catalog project so the admin can book against any
// of them. The returned Config carries the inferred capacity, since capacity
// is not persisted per week.
func (r *Reconciler) LoadForCorrection(ctx context.Context, user UserID, week Week) (*WeekTimesheet, Config, error) {
	entries, err := r.store.Entries(ctx, user, week)
	if err != nil {
		return nil, Config{}, err
	}

	cfg := Config{WeeklyCapacity: InferCapacity(entries)}

	sheet := &WeekTimesheet{UserID: user, Week: week, Entries: entries, Submitted: len(entries) > 0}
	catalog, err := r.store.Projects(ctx)
	if err != nil {
		return nil, Config{}, err
	}
	for _, p := range catalog {
		sheet.Ensure(p)
	}
	return sheet, cfg, nil
}
