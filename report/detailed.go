/*
detailed.go - Per-user breakdown report

PURPOSE:
  The detailed report uses the same scope filtering and project resolution
  as the week series, but groups by USER instead of by week, expressing each
  user's time as percentage-of-total per category and per active project,
  with a synthetic totals row at the end. The report surface (CSV, screen)
  formats these rows; this package only produces them.

ACTIVE-WEEK ALLOW-LIST:
  Callers restrict the report to a selected time range by passing the set of
  active "year:week" keys. Rows outside the allow-list are ignored without
  re-querying the store. A nil/empty allow-list means no restriction.

SEE ALSO:
  - aggregate.go: Week-series variant of the same fold
*/
package report

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/allocation-engine/timesheet"
)

// DetailedRow is one user's share breakdown. Shares are percentages of the
// row's TotalHours; the totals row's shares are percentages of the grand
// total.
type DetailedRow struct {
	UserID     timesheet.UserID
	Name       string
	TotalHours decimal.Decimal

	CategoryShare map[timesheet.Category]decimal.Decimal
	ProjectShare  map[timesheet.ProjectID]decimal.Decimal
}

// DetailedReport is the full per-user breakdown for a scope and time range.
type DetailedReport struct {
	// Projects active in the filtered rows, in catalog (category, name) order.
	// These are the report's dynamic columns.
	Projects []timesheet.Project

	Rows   []DetailedRow
	Totals DetailedRow
}

// Detailed produces the per-user breakdown for the scope, restricted to the
// activeWeeks allow-list of year:week keys.
func (a *Aggregator) Detailed(ctx context.Context, filter timesheet.ScopeFilter, activeWeeks map[string]bool) (*DetailedReport, error) {
	rows, err := a.Store.RawHourRows(ctx, filter)
	if err != nil {
		return nil, err
	}
	catalog, err := a.Store.Projects(ctx)
	if err != nil {
		return nil, err
	}
	idx := timesheet.ProjectIndex(catalog)

	names := make(map[timesheet.UserID]string)
	if a.Directory != nil {
		users, err := a.Directory.Users(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			names[u.ID] = u.Name
		}
	}

	type userAccum struct {
		total      decimal.Decimal
		byCategory map[timesheet.Category]decimal.Decimal
		byProject  map[timesheet.ProjectID]decimal.Decimal
	}
	accums := make(map[timesheet.UserID]*userAccum)
	active := make(map[timesheet.ProjectID]bool)

	for _, row := range rows {
		if len(activeWeeks) > 0 && !activeWeeks[row.Week.Key()] {
			continue
		}
		project, ok := idx[row.ProjectID]
		if !ok {
			continue
		}

		acc, ok := accums[row.UserID]
		if !ok {
			acc = &userAccum{
				byCategory: make(map[timesheet.Category]decimal.Decimal),
				byProject:  make(map[timesheet.ProjectID]decimal.Decimal),
			}
			accums[row.UserID] = acc
		}
		acc.total = acc.total.Add(row.Hours)
		acc.byCategory[project.Category] = acc.byCategory[project.Category].Add(row.Hours)
		acc.byProject[project.ID] = acc.byProject[project.ID].Add(row.Hours)
		active[project.ID] = true
	}

	report := &DetailedReport{}
	for _, p := range catalog {
		if active[p.ID] {
			report.Projects = append(report.Projects, p)
		}
	}

	grand := &userAccum{
		byCategory: make(map[timesheet.Category]decimal.Decimal),
		byProject:  make(map[timesheet.ProjectID]decimal.Decimal),
	}

	userIDs := make([]timesheet.UserID, 0, len(accums))
	for id := range accums {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	for _, id := range userIDs {
		acc := accums[id]
		report.Rows = append(report.Rows, shareRow(id, names[id], acc.total, acc.byCategory, acc.byProject))

		grand.total = grand.total.Add(acc.total)
		for c, h := range acc.byCategory {
			grand.byCategory[c] = grand.byCategory[c].Add(h)
		}
		for p, h := range acc.byProject {
			grand.byProject[p] = grand.byProject[p].Add(h)
		}
	}

	report.Totals = shareRow("", "Total", grand.total, grand.byCategory, grand.byProject)
	return report, nil
}

// shareRow converts absolute hours into percentage-of-total shares.
func shareRow(id timesheet.UserID, name string, total decimal.Decimal,
	byCategory map[timesheet.Category]decimal.Decimal,
	byProject map[timesheet.ProjectID]decimal.Decimal) DetailedRow {

	row := DetailedRow{
		UserID:        id,
		Name:          name,
		TotalHours:    total,
		CategoryShare: make(map[timesheet.Category]decimal.Decimal),
		ProjectShare:  make(map[timesheet.ProjectID]decimal.Decimal),
	}
	if total.IsZero() {
		return row
	}
	hundred := decimal.NewFromInt(100)
	for c, h := range byCategory {
		row.CategoryShare[c] = h.Div(total).Mul(hundred)
	}
	for p, h := range byProject {
		row.ProjectShare[p] = h.Div(total).Mul(hundred)
	}
	return row
}
