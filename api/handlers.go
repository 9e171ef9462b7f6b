/*
handlers.go - HTTP API handlers for the allocation engine

PURPOSE:
  Exposes the weekly time-allocation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Catalog and roster:
    GET    /api/projects                                  List catalog
    GET    /api/users                                     List roster
    GET    /api/users/{id}                                Get one user
    PUT    /api/users/{id}/preferences                    Replace preferred projects

  Timesheets:
    GET    /api/users/{id}/weeks/{year}/{week}            Load (with carry-forward)
    PUT    /api/users/{id}/weeks/{year}/{week}            Save (lock + balance gated)

  Admin correction (bypasses the edit-window lock and the balance gate):
    GET    /api/admin/users/{id}/weeks/{year}/{week}      Load with inferred capacity
    PUT    /api/admin/users/{id}/weeks/{year}/{week}      Overwrite

  Reports:
    GET    /api/reports/series                            Week series per scope
    GET    /api/reports/detailed                          Per-user breakdown
    GET    /api/reports/compliance                        Submission status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, unbalanced allocation
  - 403: Permission denied
  - 404: Resource not found
  - 409: Locked week, constraint violation
  - 500: Internal errors

SECURITY NOTE:
  Authentication and role routing are external to this service; the /admin
  subtree assumes an upstream gateway has already authorized the caller.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/allocation-engine/report"
	"github.com/warp/allocation-engine/timesheet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Reconciler *timesheet.Reconciler
	Store      timesheet.TxStore
	Directory  timesheet.Directory
	Aggregator *report.Aggregator
	Tracker    *report.Tracker
	Log        *zap.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewHandler creates a new handler with the given store and directory.
func NewHandler(store timesheet.TxStore, dir timesheet.Directory, log *zap.Logger) *Handler {
	return &Handler{
		Reconciler: timesheet.NewReconciler(store),
		Store:      store,
		Directory:  dir,
		Aggregator: &report.Aggregator{Store: store, Directory: dir},
		Tracker:    &report.Tracker{Store: store, Directory: dir},
		Log:        log,
		Now:        time.Now,
	}
}

func (h *Handler) currentWeek() timesheet.Week {
	return timesheet.CurrentWeek(h.Now())
}

// =============================================================================
// CATALOG AND ROSTER
// =============================================================================

// ListProjects returns the catalog in (category, name) order.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.Projects(r.Context())
	if err != nil {
		h.writeError(w, "Failed to list projects", err)
		return
	}
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListUsers returns the roster.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Directory.Users(r.Context())
	if err != nil {
		h.writeError(w, "Failed to list users", err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUser returns one roster record.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Directory.User(r.Context(), timesheet.UserID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, "Failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// SavePreferences replaces the user's preferred-project list.
func (h *Handler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ids := make([]timesheet.ProjectID, len(req.ProjectIDs))
	for i, p := range req.ProjectIDs {
		ids[i] = timesheet.ProjectID(p)
	}

	userID := timesheet.UserID(chi.URLParam(r, "id"))
	if err := h.Directory.SavePreferences(r.Context(), userID, ids); err != nil {
		h.writeError(w, "Failed to save preferences", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TIMESHEET LOAD/SAVE
// =============================================================================

// LoadWeek loads one user-week, carrying forward from the prior week when
// the selected week has no persisted rows.
// GET /api/users/{id}/weeks/{year}/{week}?capacity=40
func (h *Handler) LoadWeek(w http.ResponseWriter, r *http.Request) {
	userID, week, ok := weekParams(w, r)
	if !ok {
		return
	}
	cfg := capacityConfig(r)

	user, err := h.Directory.User(r.Context(), userID)
	if err != nil {
		h.writeError(w, "Failed to get user", err)
		return
	}

	sheet, err := h.Reconciler.Load(r.Context(), userID, week, user.PreferredProjects, cfg)
	if err != nil {
		h.writeError(w, "Failed to load week", err)
		return
	}

	state := timesheet.EditWindow(week, h.currentWeek())
	writeJSON(w, http.StatusOK, toWeekDTO(sheet, state, cfg))
}

// SaveWeek overwrites one user-week for a normal user. The edit-window lock
// applies; the 100% allocation gate applies only within the edit window.
// PUT /api/users/{id}/weeks/{year}/{week}
func (h *Handler) SaveWeek(w http.ResponseWriter, r *http.Request) {
	userID, week, ok := weekParams(w, r)
	if !ok {
		return
	}

	var req SaveWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sheet, cfg, err := h.buildSheet(r, userID, week, req)
	if err != nil {
		h.writeError(w, "Invalid entries", err)
		return
	}

	timesheet.Recalculate(sheet, cfg)
	state := timesheet.EditWindow(week, h.currentWeek())

	// The 100% gate only applies inside the edit window. A future-locked
	// week can carry nothing but leave, and partial leave (2 vacation days,
	// work still unplanned) is a legitimate save there.
	if state == timesheet.Editable && !timesheet.AllocationBalanced(sheet, cfg) {
		writeError(w, http.StatusBadRequest, "Work percentages must total 100", timesheet.ErrUnbalancedAllocation)
		return
	}

	if err := h.Reconciler.Save(r.Context(), sheet, cfg, h.currentWeek()); err != nil {
		h.writeError(w, "Failed to save week", err)
		return
	}

	h.Log.Info("week saved",
		zap.String("user", string(userID)),
		zap.String("week", week.Label()),
		zap.Int("rows", len(sheet.PersistableEntries())))

	writeJSON(w, http.StatusOK, toWeekDTO(sheet, state, cfg))
}

// =============================================================================
// ADMIN CORRECTION PATH
// =============================================================================

// AdminLoadWeek loads another user's week for correction. Capacity is not
// persisted per week, so the response carries the inferred value.
// GET /api/admin/users/{id}/weeks/{year}/{week}
func (h *Handler) AdminLoadWeek(w http.ResponseWriter, r *http.Request) {
	userID, week, ok := weekParams(w, r)
	if !ok {
		return
	}

	sheet, cfg, err := h.Reconciler.LoadForCorrection(r.Context(), userID, week)
	if err != nil {
		h.writeError(w, "Failed to load week", err)
		return
	}

	// Admin edits are never future-locked.
	writeJSON(w, http.StatusOK, toWeekDTO(sheet, timesheet.Editable, cfg))
}

// AdminSaveWeek overwrites another user's week, bypassing the edit-window
// lock and the allocation gate.
// PUT /api/admin/users/{id}/weeks/{year}/{week}
func (h *Handler) AdminSaveWeek(w http.ResponseWriter, r *http.Request) {
	userID, week, ok := weekParams(w, r)
	if !ok {
		return
	}

	var req SaveWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sheet, cfg, err := h.buildSheet(r, userID, week, req)
	if err != nil {
		h.writeError(w, "Invalid entries", err)
		return
	}

	if err := h.Reconciler.SaveAsAdmin(r.Context(), sheet, cfg); err != nil {
		h.writeError(w, "Failed to save week", err)
		return
	}

	h.Log.Info("week corrected",
		zap.String("user", string(userID)),
		zap.String("week", week.Label()))

	writeJSON(w, http.StatusOK, toWeekDTO(sheet, timesheet.Editable, cfg))
}

// buildSheet converts a save request into a recalculated working sheet.
// Unknown project IDs are rejected rather than silently dropped: a save is
// an explicit write, unlike aggregation's tolerated drift.
func (h *Handler) buildSheet(r *http.Request, userID timesheet.UserID, week timesheet.Week, req SaveWeekRequest) (*timesheet.WeekTimesheet, timesheet.Config, error) {
	catalog, err := h.Store.Projects(r.Context())
	if err != nil {
		return nil, timesheet.Config{}, err
	}
	idx := timesheet.ProjectIndex(catalog)

	cfg := timesheet.Config{WeeklyCapacity: decimalFrom(req.Capacity)}.Normalize()

	sheet := timesheet.NewWeekTimesheet(userID, week)
	for _, in := range req.Entries {
		p, ok := idx[timesheet.ProjectID(in.ProjectID)]
		if !ok {
			return nil, timesheet.Config{}, timesheet.ErrNotFound
		}
		sheet.Ensure(p)
		if p.IsLeave() {
			sheet.SetDays(p.ID, decimalFrom(in.Days))
		} else {
			sheet.SetPercent(p.ID, decimalFrom(in.Percent))
		}
	}
	return sheet, cfg, nil
}

// =============================================================================
// REPORTS
// =============================================================================

// Series returns the aggregated week series for a scope.
// GET /api/reports/series?scope=team&team=T
func (h *Handler) Series(w http.ResponseWriter, r *http.Request) {
	filter := scopeFilter(r)
	points, err := h.Aggregator.Series(r.Context(), filter)
	if err != nil {
		h.writeError(w, "Failed to aggregate", err)
		return
	}
	writeJSON(w, http.StatusOK, toSeriesDTO(points))
}

// Detailed returns the per-user breakdown, optionally restricted to an
// allow-list of active weeks.
// GET /api/reports/detailed?scope=team&team=T&weeks=2025:6,2025:7
func (h *Handler) Detailed(w http.ResponseWriter, r *http.Request) {
	filter := scopeFilter(r)

	var activeWeeks map[string]bool
	if raw := r.URL.Query().Get("weeks"); raw != "" {
		activeWeeks = make(map[string]bool)
		for _, k := range strings.Split(raw, ",") {
			activeWeeks[strings.TrimSpace(k)] = true
		}
	}

	rep, err := h.Aggregator.Detailed(r.Context(), filter, activeWeeks)
	if err != nil {
		h.writeError(w, "Failed to build report", err)
		return
	}

	dto := DetailedReportDTO{Totals: toDetailedRowDTO(rep.Totals)}
	for _, p := range rep.Projects {
		dto.Projects = append(dto.Projects, toProjectDTO(p))
	}
	for _, row := range rep.Rows {
		dto.Rows = append(dto.Rows, toDetailedRowDTO(row))
	}
	writeJSON(w, http.StatusOK, dto)
}

// Compliance returns who has and has not submitted for a week.
// GET /api/reports/compliance?year=2025&week=7&team=T
func (h *Handler) Compliance(w http.ResponseWriter, r *http.Request) {
	year, err1 := strconv.Atoi(r.URL.Query().Get("year"))
	weekNum, err2 := strconv.Atoi(r.URL.Query().Get("week"))
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "year and week query parameters are required", nil)
		return
	}
	week := timesheet.NewWeek(year, weekNum)

	rep, err := h.Tracker.WeekCompliance(r.Context(), week, scopeFilter(r))
	if err != nil {
		h.writeError(w, "Failed to compute compliance", err)
		return
	}

	dto := ComplianceDTO{
		Year:      week.Year,
		Week:      week.Number,
		Submitted: userIDStrings(rep.Submitted),
		Missing:   userIDStrings(rep.Missing),
		Rate:      rep.Rate(),
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func weekParams(w http.ResponseWriter, r *http.Request) (timesheet.UserID, timesheet.Week, bool) {
	userID := timesheet.UserID(chi.URLParam(r, "id"))
	year, err1 := strconv.Atoi(chi.URLParam(r, "year"))
	weekNum, err2 := strconv.Atoi(chi.URLParam(r, "week"))
	if err1 != nil || err2 != nil || weekNum < 1 || weekNum > timesheet.WeeksPerYear {
		writeError(w, http.StatusBadRequest, "Invalid year/week in path", nil)
		return "", timesheet.Week{}, false
	}
	return userID, timesheet.NewWeek(year, weekNum), true
}

func capacityConfig(r *http.Request) timesheet.Config {
	cfg := timesheet.DefaultConfig()
	if raw := r.URL.Query().Get("capacity"); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg = timesheet.Config{WeeklyCapacity: decimalFrom(f)}.Normalize()
		}
	}
	return cfg
}

func scopeFilter(r *http.Request) timesheet.ScopeFilter {
	q := r.URL.Query()
	switch timesheet.Scope(q.Get("scope")) {
	case timesheet.ScopeTeam:
		return timesheet.ScopeFilter{Scope: timesheet.ScopeTeam, TeamID: timesheet.TeamID(q.Get("team"))}
	case timesheet.ScopeUser:
		return timesheet.ScopeFilter{Scope: timesheet.ScopeUser, UserID: timesheet.UserID(q.Get("user"))}
	default:
		return timesheet.ScopeFilter{Scope: timesheet.ScopeDepartment}
	}
}

func userIDStrings(ids []timesheet.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// writeError maps a domain error onto an HTTP status via the sentinel
// taxonomy, logging server-side faults.
func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	switch {
	case timesheet.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case timesheet.IsPermission(err):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, timesheet.ErrWeekLocked),
		errors.Is(err, timesheet.ErrConstraintViolation):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, timesheet.ErrUnbalancedAllocation):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Log.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
