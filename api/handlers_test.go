package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/allocation-engine/api"
	"github.com/warp/allocation-engine/timesheet"
	"github.com/warp/allocation-engine/timesheet/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Feb 10 2025 is a Monday in ISO week 7, so the edit window runs through
// week 9 and week 10 is future-locked for work.
var testNow = time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*store.TxMemory, http.Handler) {
	t.Helper()
	mem := store.NewTxMemory()
	mem.PutUser(timesheet.OrgUser{
		ID: "u-1", Name: "Ada", Role: timesheet.RoleUser,
		TeamID: "t-1", Status: timesheet.StatusActive,
		PreferredProjects: []timesheet.ProjectID{"platform"},
	})

	h := api.NewHandler(mem, mem, zap.NewNop())
	h.Now = func() time.Time { return testNow }
	return mem, api.NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func weekPath(user string, week timesheet.Week) string {
	return fmt.Sprintf("/api/users/%s/weeks/%d/%d", user, week.Year, week.Number)
}

func adminWeekPath(user string, week timesheet.Week) string {
	return fmt.Sprintf("/api/admin/users/%s/weeks/%d/%d", user, week.Year, week.Number)
}

// =============================================================================
// CATALOG AND ROSTER
// =============================================================================

func TestListProjects_ReturnsSeededCatalog(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	projects := decode[[]api.ProjectDTO](t, rec)
	assert.Len(t, projects, len(timesheet.DefaultProjects()))
}

func TestGetUser_UnknownIs404(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/users/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSavePreferences_RoundTrip(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPut, "/api/users/u-1/preferences",
		api.PreferencesRequest{ProjectIDs: []string{"firmware", "sustaining"}})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/users/u-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode[api.UserDTO](t, rec)
	assert.Equal(t, []string{"firmware", "sustaining"}, user.PreferredProjects)
}

// =============================================================================
// LOAD
// =============================================================================

func TestLoadWeek_EmptyWeekYieldsSkeleton(t *testing.T) {
	// GIVEN: No persisted rows anywhere
	_, router := newTestServer(t)
	week := timesheet.NewWeek(2025, 7)

	// WHEN: Loading the current week
	rec := doJSON(t, router, http.MethodGet, weekPath("u-1", week), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: The sheet holds the preferred project plus both leave projects,
	// unsubmitted, editable
	dto := decode[api.WeekDTO](t, rec)
	assert.Equal(t, "u-1", dto.UserID)
	assert.False(t, dto.Submitted)
	assert.Equal(t, "editable", dto.EditState)

	ids := make(map[string]bool)
	for _, e := range dto.Entries {
		ids[e.ProjectID] = true
	}
	assert.True(t, ids["platform"])
	assert.True(t, ids["vacation"])
	assert.True(t, ids["sick"])
}

func TestLoadWeek_FutureWeekReportsLockState(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, weekPath("u-1", timesheet.NewWeek(2025, 10)), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decode[api.WeekDTO](t, rec)
	assert.Equal(t, "future_locked_for_work", dto.EditState)
}

func TestLoadWeek_InvalidWeekNumberIs400(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/users/u-1/weeks/2025/53", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SAVE
// =============================================================================

func TestSaveWeek_HappyPath(t *testing.T) {
	// GIVEN: A balanced submission at capacity 40
	_, router := newTestServer(t)
	week := timesheet.NewWeek(2025, 7)
	req := api.SaveWeekRequest{
		Capacity: 40,
		Entries: []api.EntryInput{
			{ProjectID: "platform", Percent: 75},
			{ProjectID: "firmware", Percent: 25},
			{ProjectID: "vacation", Days: 1},
		},
	}

	// WHEN: Saving
	rec := doJSON(t, router, http.MethodPut, weekPath("u-1", week), req)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: Hours are derived server-side from the 32 available hours
	dto := decode[api.WeekDTO](t, rec)
	assert.True(t, dto.Submitted)
	assert.True(t, dto.Balanced)
	hours := make(map[string]float64)
	for _, e := range dto.Entries {
		hours[e.ProjectID] = e.Hours
	}
	assert.InDelta(t, 24, hours["platform"], 1e-9)
	assert.InDelta(t, 8, hours["firmware"], 1e-9)
	assert.InDelta(t, 8, hours["vacation"], 1e-9)

	// AND: A reload returns the persisted rows, not a carry-forward
	rec = doJSON(t, router, http.MethodGet, weekPath("u-1", week), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reloaded := decode[api.WeekDTO](t, rec)
	assert.True(t, reloaded.Submitted)
	assert.False(t, reloaded.Prefilled)
}

func TestSaveWeek_UnbalancedIs400(t *testing.T) {
	_, router := newTestServer(t)
	req := api.SaveWeekRequest{
		Capacity: 40,
		Entries:  []api.EntryInput{{ProjectID: "platform", Percent: 60}},
	}

	rec := doJSON(t, router, http.MethodPut, weekPath("u-1", timesheet.NewWeek(2025, 7)), req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[api.ErrorResponse](t, rec)
	assert.Contains(t, body.Error, "100")
}

func TestSaveWeek_LockedFutureWeekIs409(t *testing.T) {
	// Week 10 is beyond the current-week+2 horizon
	_, router := newTestServer(t)
	req := api.SaveWeekRequest{
		Capacity: 40,
		Entries:  []api.EntryInput{{ProjectID: "platform", Percent: 100}},
	}

	rec := doJSON(t, router, http.MethodPut, weekPath("u-1", timesheet.NewWeek(2025, 10)), req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSaveWeek_LeaveOnlyAllowedInLockedWeek(t *testing.T) {
	// Planned vacation far ahead carries no work allocation, so the lock
	// does not apply.
	_, router := newTestServer(t)
	req := api.SaveWeekRequest{
		Capacity: 40,
		Entries:  []api.EntryInput{{ProjectID: "vacation", Days: 5}},
	}

	rec := doJSON(t, router, http.MethodPut, weekPath("u-1", timesheet.NewWeek(2025, 10)), req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSaveWeek_PartialLeaveAllowedInLockedWeek(t *testing.T) {
	// GIVEN: Two vacation days booked for a far-future week, the remaining
	// 24 work hours deliberately unplanned
	_, router := newTestServer(t)
	week := timesheet.NewWeek(2025, 12)
	req := api.SaveWeekRequest{
		Capacity: 40,
		Entries:  []api.EntryInput{{ProjectID: "vacation", Days: 2}},
	}

	// WHEN: Saving as a normal user
	rec := doJSON(t, router, http.MethodPut, weekPath("u-1", week), req)

	// THEN: The 100% gate does not apply outside the edit window; the leave
	// lands with its hours priced
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[api.WeekDTO](t, rec)
	assert.Equal(t, "future_locked_for_work", dto.EditState)
	require.Len(t, dto.Entries, 1)
	assert.Equal(t, "vacation", dto.Entries[0].ProjectID)
	assert.InDelta(t, 16, dto.Entries[0].Hours, 1e-9)
}

func TestSaveWeek_UnknownProjectIs404(t *testing.T) {
	_, router := newTestServer(t)
	req := api.SaveWeekRequest{
		Capacity: 40,
		Entries:  []api.EntryInput{{ProjectID: "no-such-project", Percent: 100}},
	}

	rec := doJSON(t, router, http.MethodPut, weekPath("u-1", timesheet.NewWeek(2025, 7)), req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ADMIN CORRECTION
// =============================================================================

func TestAdminSaveWeek_BypassesLockAndBalanceGate(t *testing.T) {
	// GIVEN: A locked week and an intentionally partial correction
	_, router := newTestServer(t)
	week := timesheet.NewWeek(2025, 10)
	req := api.SaveWeekRequest{
		Capacity: 40,
		Entries:  []api.EntryInput{{ProjectID: "platform", Percent: 50}},
	}

	// WHEN: Saving via the admin path
	rec := doJSON(t, router, http.MethodPut, adminWeekPath("u-1", week), req)

	// THEN: The save lands despite the lock and the 50% total
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[api.WeekDTO](t, rec)
	assert.Equal(t, "editable", dto.EditState)
}

func TestAdminLoadWeek_InfersCapacityFromPersistedRows(t *testing.T) {
	// GIVEN: A week saved at capacity 48
	_, router := newTestServer(t)
	week := timesheet.NewWeek(2025, 7)
	save := api.SaveWeekRequest{
		Capacity: 48,
		Entries:  []api.EntryInput{{ProjectID: "platform", Percent: 100}},
	}
	rec := doJSON(t, router, http.MethodPut, weekPath("u-1", week), save)
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: An admin loads it for correction
	rec = doJSON(t, router, http.MethodGet, adminWeekPath("u-1", week), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: The inferred capacity matches what the user entered
	dto := decode[api.WeekDTO](t, rec)
	assert.InDelta(t, 48, dto.Capacity, 1e-9)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestReports_SeriesAndCompliance(t *testing.T) {
	// GIVEN: One saved week
	_, router := newTestServer(t)
	week := timesheet.NewWeek(2025, 7)
	save := api.SaveWeekRequest{
		Capacity: 40,
		Entries:  []api.EntryInput{{ProjectID: "platform", Percent: 100}},
	}
	rec := doJSON(t, router, http.MethodPut, weekPath("u-1", week), save)
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: Querying the series team-scoped
	rec = doJSON(t, router, http.MethodGet, "/api/reports/series?scope=team&team=t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	points := decode[[]api.SeriesPointDTO](t, rec)
	require.Len(t, points, 1)
	assert.Equal(t, "2025-W07", points[0].Label)
	assert.InDelta(t, 40, points[0].RnD, 1e-9)

	// AND: Compliance for that week shows the one submitter
	rec = doJSON(t, router, http.MethodGet, "/api/reports/compliance?year=2025&week=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comp := decode[api.ComplianceDTO](t, rec)
	assert.Equal(t, []string{"u-1"}, comp.Submitted)
	assert.Empty(t, comp.Missing)
	assert.InDelta(t, 1.0, comp.Rate, 1e-9)
}

func TestReports_DetailedWithWeekAllowList(t *testing.T) {
	// GIVEN: Saves in weeks 6 and 7
	_, router := newTestServer(t)
	for _, wk := range []timesheet.Week{timesheet.NewWeek(2025, 6), timesheet.NewWeek(2025, 7)} {
		save := api.SaveWeekRequest{
			Capacity: 40,
			Entries:  []api.EntryInput{{ProjectID: "platform", Percent: 100}},
		}
		rec := doJSON(t, router, http.MethodPut, weekPath("u-1", wk), save)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// WHEN: Restricting the detailed report to week 7
	rec := doJSON(t, router, http.MethodGet, "/api/reports/detailed?weeks=2025:7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: Only week 7's 40 hours are counted
	dto := decode[api.DetailedReportDTO](t, rec)
	require.Len(t, dto.Rows, 1)
	assert.InDelta(t, 40, dto.Rows[0].TotalHours, 1e-9)
	assert.InDelta(t, 40, dto.Totals.TotalHours, 1e-9)
}

func TestReports_ComplianceMissingParamsIs400(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/reports/compliance", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
