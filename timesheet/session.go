/*
session.go - Week navigation with stale-load discard

PURPOSE:
  Loads are I/O and the user can navigate to another week while one is in
  flight. A Session keys every load to the week it was issued for: when the
  selection changes, the previous load's context is cancelled and its
  result, if it still arrives, is dropped instead of applied.

USAGE:
  sess := timesheet.NewSession(rec, "u-1", prefs, cfg)
  ch := sess.Select(ctx, timesheet.NewWeek(2025, 7))
  res, ok := <-ch
  if !ok {
      // superseded by a later Select; ignore
  }

SEE ALSO:
  - reconcile.go: Performs the actual load
*/
package timesheet

import (
	"context"
	"sync"
)

// LoadResult is what a Select delivers: the sheet for the requested week,
// or the load error.
type LoadResult struct {
	Week  Week
	Sheet *WeekTimesheet
	Err   error
}

// Session serializes week navigation for one user. Only the most recent
// Select ever delivers a result; superseded loads are cancelled and their
// channels closed without a value.
type Session struct {
	rec   *Reconciler
	user  UserID
	prefs []ProjectID
	cfg   Config

	mu       sync.Mutex
	selected Week
	gen      uint64
	cancel   context.CancelFunc
}

func NewSession(rec *Reconciler, user UserID, prefs []ProjectID, cfg Config) *Session {
	return &Session{rec: rec, user: user, prefs: prefs, cfg: cfg}
}

// Selected returns the currently selected week.
func (s *Session) Selected() Week {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SetPreferences updates the preferred-project list used by future loads.
func (s *Session) SetPreferences(prefs []ProjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = append([]ProjectID(nil), prefs...)
}

// SetConfig updates the capacity config used by future loads. Capacity is a
// per-user setting the user can change mid-session.
func (s *Session) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.Normalize()
}

// Select navigates to week and starts a load for it. The returned channel
// yields exactly one LoadResult if this selection is still current when the
// load finishes; it is closed without a value if a later Select supersedes
// it.
func (s *Session) Select(ctx context.Context, week Week) <-chan LoadResult {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.selected = week
	s.gen++
	gen := s.gen
	prefs := s.prefs
	cfg := s.cfg
	s.mu.Unlock()

	ch := make(chan LoadResult, 1)
	go func() {
		defer close(ch)
		sheet, err := s.rec.Load(loadCtx, s.user, week, prefs, cfg)

		s.mu.Lock()
		stale := s.gen != gen
		s.mu.Unlock()
		if stale {
			// The user has navigated away; this result is for the wrong
			// week and must not be applied.
			return
		}
		ch <- LoadResult{Week: week, Sheet: sheet, Err: err}
	}()
	return ch
}
