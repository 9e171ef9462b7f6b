package report_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/allocation-engine/report"
	"github.com/warp/allocation-engine/timesheet"
)

func TestWeekCompliance_SplitsSubmittedAndMissing(t *testing.T) {
	// GIVEN: Three active users, one of whom has rows for the week
	mem := newTestStore()
	putUser(mem, "u-1", "Ada", "t-1")
	putUser(mem, "u-2", "Grace", "t-1")
	putUser(mem, "u-3", "Edsger", "t-2")
	week := timesheet.NewWeek(2025, 7)
	insertRow(t, mem, "u-1", week, "apollo", 16)

	tracker := &report.Tracker{Store: mem, Directory: mem}

	// WHEN: Computing department-wide compliance
	rep, err := tracker.WeekCompliance(context.Background(), week,
		timesheet.ScopeFilter{Scope: timesheet.ScopeDepartment})
	require.NoError(t, err)

	// THEN: Missing = roster minus submitted
	assert.Equal(t, []timesheet.UserID{"u-1"}, rep.Submitted)
	assert.Equal(t, []timesheet.UserID{"u-2", "u-3"}, rep.Missing)
	assert.InDelta(t, 1.0/3.0, rep.Rate(), 1e-9)
}

func TestWeekCompliance_TeamScopeNarrowsRoster(t *testing.T) {
	// GIVEN: Submissions across two teams
	mem := newTestStore()
	putUser(mem, "u-1", "Ada", "t-1")
	putUser(mem, "u-2", "Grace", "t-1")
	putUser(mem, "u-3", "Edsger", "t-2")
	week := timesheet.NewWeek(2025, 7)
	insertRow(t, mem, "u-1", week, "apollo", 16)
	insertRow(t, mem, "u-3", week, "apollo", 8)

	tracker := &report.Tracker{Store: mem, Directory: mem}

	// WHEN: Scoping to team t-1
	rep, err := tracker.WeekCompliance(context.Background(), week,
		timesheet.ScopeFilter{Scope: timesheet.ScopeTeam, TeamID: "t-1"})
	require.NoError(t, err)

	// THEN: t-2's submission is invisible; only t-1's roster counts
	assert.Equal(t, []timesheet.UserID{"u-1"}, rep.Submitted)
	assert.Equal(t, []timesheet.UserID{"u-2"}, rep.Missing)
}

func TestWeekCompliance_InactiveUsersNotCounted(t *testing.T) {
	// GIVEN: An inactive and a pending user with no submissions
	mem := newTestStore()
	putUser(mem, "u-1", "Ada", "t-1")
	mem.PutUser(timesheet.OrgUser{ID: "u-2", Name: "Gone", TeamID: "t-1",
		Role: timesheet.RoleUser, Status: timesheet.StatusInactive})
	mem.PutUser(timesheet.OrgUser{ID: "u-3", Name: "Invited", TeamID: "t-1",
		Role: timesheet.RoleUser, Status: timesheet.StatusPending})

	tracker := &report.Tracker{Store: mem, Directory: mem}
	rep, err := tracker.WeekCompliance(context.Background(), timesheet.NewWeek(2025, 7),
		timesheet.ScopeFilter{Scope: timesheet.ScopeDepartment})
	require.NoError(t, err)

	// THEN: Only the active user can be missing
	assert.Empty(t, rep.Submitted)
	assert.Equal(t, []timesheet.UserID{"u-1"}, rep.Missing)
}

func TestWeekCompliance_EmptyRosterRateIsZero(t *testing.T) {
	mem := newTestStore()
	tracker := &report.Tracker{Store: mem, Directory: mem}

	rep, err := tracker.WeekCompliance(context.Background(), timesheet.NewWeek(2025, 7),
		timesheet.ScopeFilter{Scope: timesheet.ScopeDepartment})
	require.NoError(t, err)

	assert.Zero(t, rep.Rate())
}
