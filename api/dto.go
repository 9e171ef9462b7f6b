/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMALS:
  Domain quantities are decimal.Decimal internally; the API serializes them
  as JSON numbers. Conversion happens only at this boundary.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/allocation-engine/report"
	"github.com/warp/allocation-engine/timesheet"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ProjectDTO represents a catalog project.
type ProjectDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// UserDTO represents a roster record.
type UserDTO struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email,omitempty"`
	Role              string   `json:"role"`
	TeamID            string   `json:"team_id,omitempty"`
	Status            string   `json:"status"`
	PreferredProjects []string `json:"preferred_projects"`
}

// EntryDTO is one timesheet row in a response.
type EntryDTO struct {
	ProjectID string  `json:"project_id"`
	Category  string  `json:"category"`
	Percent   float64 `json:"percent"`
	Days      float64 `json:"days"`
	Hours     float64 `json:"hours"`
}

// WeekDTO is a full loaded week.
type WeekDTO struct {
	UserID    string     `json:"user_id"`
	Year      int        `json:"year"`
	Week      int        `json:"week"`
	Entries   []EntryDTO `json:"entries"`
	Submitted bool       `json:"submitted"`
	Prefilled bool       `json:"prefilled"`
	EditState string     `json:"edit_state"`
	Capacity  float64    `json:"capacity"`
	Balanced  bool       `json:"balanced"`
}

// EntryInput is one edited row in a save request. Percent applies to work
// projects, Days to leave projects; hours are derived server-side.
type EntryInput struct {
	ProjectID string  `json:"project_id"`
	Percent   float64 `json:"percent"`
	Days      float64 `json:"days"`
}

// SaveWeekRequest overwrites one user-week.
type SaveWeekRequest struct {
	Capacity float64      `json:"capacity"`
	Entries  []EntryInput `json:"entries"`
}

// PreferencesRequest replaces a user's preferred-project list.
type PreferencesRequest struct {
	ProjectIDs []string `json:"project_ids"`
}

// SeriesPointDTO is one aggregated week.
type SeriesPointDTO struct {
	Label        string             `json:"label"`
	Year         int                `json:"year"`
	Week         int                `json:"week"`
	RnD          float64            `json:"rd"`
	Support      float64            `json:"support"`
	Mfg          float64            `json:"mfg"`
	Leave        float64            `json:"leave"`
	ProjectHours map[string]float64 `json:"project_hours"`
}

// DetailedRowDTO is one user's share breakdown.
type DetailedRowDTO struct {
	UserID        string             `json:"user_id,omitempty"`
	Name          string             `json:"name"`
	TotalHours    float64            `json:"total_hours"`
	CategoryShare map[string]float64 `json:"category_share"`
	ProjectShare  map[string]float64 `json:"project_share"`
}

// DetailedReportDTO is the per-user breakdown report.
type DetailedReportDTO struct {
	Projects []ProjectDTO     `json:"projects"`
	Rows     []DetailedRowDTO `json:"rows"`
	Totals   DetailedRowDTO   `json:"totals"`
}

// ComplianceDTO lists submission status for one week.
type ComplianceDTO struct {
	Year      int      `json:"year"`
	Week      int      `json:"week"`
	Submitted []string `json:"submitted"`
	Missing   []string `json:"missing"`
	Rate      float64  `json:"rate"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toProjectDTO(p timesheet.Project) ProjectDTO {
	return ProjectDTO{ID: string(p.ID), Name: p.Name, Category: string(p.Category)}
}

func toUserDTO(u timesheet.OrgUser) UserDTO {
	prefs := make([]string, len(u.PreferredProjects))
	for i, p := range u.PreferredProjects {
		prefs[i] = string(p)
	}
	return UserDTO{
		ID:                string(u.ID),
		Name:              u.Name,
		Email:             u.Email,
		Role:              string(u.Role),
		TeamID:            string(u.TeamID),
		Status:            string(u.Status),
		PreferredProjects: prefs,
	}
}

func toWeekDTO(sheet *timesheet.WeekTimesheet, state timesheet.EditState, cfg timesheet.Config) WeekDTO {
	dto := WeekDTO{
		UserID:    string(sheet.UserID),
		Year:      sheet.Week.Year,
		Week:      sheet.Week.Number,
		Submitted: sheet.Submitted,
		Prefilled: sheet.Prefilled,
		EditState: editStateString(state),
		Capacity:  cfg.Normalize().WeeklyCapacity.InexactFloat64(),
		Balanced:  timesheet.AllocationBalanced(sheet, cfg),
		Entries:   make([]EntryDTO, 0, len(sheet.Entries)),
	}
	for _, e := range sheet.Entries {
		dto.Entries = append(dto.Entries, EntryDTO{
			ProjectID: string(e.ProjectID),
			Category:  string(e.Category),
			Percent:   e.Percent.InexactFloat64(),
			Days:      e.Days.InexactFloat64(),
			Hours:     e.Hours.InexactFloat64(),
		})
	}
	return dto
}

func editStateString(s timesheet.EditState) string {
	if s == timesheet.FutureLockedForWork {
		return "future_locked_for_work"
	}
	return "editable"
}

func toSeriesDTO(points []report.DataPoint) []SeriesPointDTO {
	dtos := make([]SeriesPointDTO, len(points))
	for i, p := range points {
		hours := make(map[string]float64, len(p.ProjectHours))
		for id, h := range p.ProjectHours {
			hours[string(id)] = h.InexactFloat64()
		}
		dtos[i] = SeriesPointDTO{
			Label:        p.Label,
			Year:         p.Week.Year,
			Week:         p.Week.Number,
			RnD:          p.RnD.InexactFloat64(),
			Support:      p.Support.InexactFloat64(),
			Mfg:          p.Mfg.InexactFloat64(),
			Leave:        p.Leave.InexactFloat64(),
			ProjectHours: hours,
		}
	}
	return dtos
}

func toDetailedRowDTO(row report.DetailedRow) DetailedRowDTO {
	cat := make(map[string]float64, len(row.CategoryShare))
	for c, v := range row.CategoryShare {
		cat[string(c)] = v.InexactFloat64()
	}
	proj := make(map[string]float64, len(row.ProjectShare))
	for p, v := range row.ProjectShare {
		proj[string(p)] = v.InexactFloat64()
	}
	return DetailedRowDTO{
		UserID:        string(row.UserID),
		Name:          row.Name,
		TotalHours:    row.TotalHours.InexactFloat64(),
		CategoryShare: cat,
		ProjectShare:  proj,
	}
}

func decimalFrom(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }
