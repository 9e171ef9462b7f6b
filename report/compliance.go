/*
compliance.go - Weekly submission tracking

PURPOSE:
  Derives, for one week, which users in scope have and have not submitted a
  timesheet. Submission is a pure presence test on persisted rows: the
  amount of hours is irrelevant. (The save path never inserts all-zero rows,
  so in practice presence means at least one non-zero entry.)

  Compliance is reporting only; it never gates the editing flow.

SEE ALSO:
  - aggregate.go: Shares the store's scope semantics
*/
package report

import (
	"context"
	"sort"

	"github.com/warp/allocation-engine/timesheet"
)

// ComplianceReport lists who has and has not submitted for one week.
type ComplianceReport struct {
	Week      timesheet.Week
	Submitted []timesheet.UserID
	Missing   []timesheet.UserID
}

// Rate is submitted / (submitted + missing), in [0, 1].
// Zero when the scope has no active users.
func (r ComplianceReport) Rate() float64 {
	total := len(r.Submitted) + len(r.Missing)
	if total == 0 {
		return 0
	}
	return float64(len(r.Submitted)) / float64(total)
}

// Tracker computes compliance reports.
type Tracker struct {
	Store     timesheet.Store
	Directory timesheet.Directory
}

// WeekCompliance splits the scope's active roster into submitted and
// missing for the given week. Team scope narrows the roster; inactive and
// pending users are never counted as missing.
func (t *Tracker) WeekCompliance(ctx context.Context, week timesheet.Week, filter timesheet.ScopeFilter) (*ComplianceReport, error) {
	submittedIDs, err := t.Store.SubmittedUserIDs(ctx, week)
	if err != nil {
		return nil, err
	}
	users, err := t.Directory.Users(ctx)
	if err != nil {
		return nil, err
	}

	submitted := make(map[timesheet.UserID]bool, len(submittedIDs))
	for _, id := range submittedIDs {
		submitted[id] = true
	}

	report := &ComplianceReport{Week: week}
	for _, u := range users {
		if !u.IsActive() || !filter.Matches(u.ID, u.TeamID) {
			continue
		}
		if submitted[u.ID] {
			report.Submitted = append(report.Submitted, u.ID)
		} else {
			report.Missing = append(report.Missing, u.ID)
		}
	}

	sort.Slice(report.Submitted, func(i, j int) bool { return report.Submitted[i] < report.Submitted[j] })
	sort.Slice(report.Missing, func(i, j int) bool { return report.Missing[i] < report.Missing[j] })
	return report, nil
}
