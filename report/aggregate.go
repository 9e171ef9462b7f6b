/*
Package report folds persisted hour rows into reporting series.

PURPOSE:
  The aggregation engine reads raw (user, team, project, week, hours) rows
  from the store, scope-filtered, and folds them into ordered week-by-week
  data points with four fixed category totals plus per-project columns.
  Everything here is stateless: aggregates are recomputed from raw rows on
  every query, never maintained incrementally. A single team-week is tens of
  rows, so the O(rows) fold is cheap and the statelessness keeps correctness
  trivial.

GROUPING KEY:
  Points group by the composite "year:week" key, never by bare week number.
  Week 52 of 2024 and week 1 of 2025 are distinct points and must not merge.

DATA DRIFT:
  A persisted row may reference a project that no longer resolves in the
  catalog (deleted project). Such rows are silently skipped; drift is not an
  error.

SEE ALSO:
  - detailed.go: Per-user report with percentage-of-total columns
  - compliance.go: Submission presence tracking
*/
package report

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/allocation-engine/timesheet"
)

// DataPoint is one aggregated week within a scope.
type DataPoint struct {
	Week  timesheet.Week
	Label string

	// Fixed category totals, in hours.
	RnD     decimal.Decimal
	Support decimal.Decimal
	Mfg     decimal.Decimal
	Leave   decimal.Decimal

	// Per-project hours for every project active in scope that week.
	ProjectHours map[timesheet.ProjectID]decimal.Decimal
}

// Aggregator runs reporting queries against the store.
type Aggregator struct {
	Store     timesheet.Store
	Directory timesheet.Directory
}

// Series produces the ordered week series for a scope: one DataPoint per
// year:week group, sorted ascending by (year, week).
func (a *Aggregator) Series(ctx context.Context, filter timesheet.ScopeFilter) ([]DataPoint, error) {
	rows, err := a.Store.RawHourRows(ctx, filter)
	if err != nil {
		return nil, err
	}
	catalog, err := a.Store.Projects(ctx)
	if err != nil {
		return nil, err
	}
	idx := timesheet.ProjectIndex(catalog)

	groups := make(map[string]*DataPoint)
	for _, row := range rows {
		project, ok := idx[row.ProjectID]
		if !ok {
			// Project no longer in the catalog. Tolerated drift, not an error.
			continue
		}

		key := row.Week.Key()
		point, ok := groups[key]
		if !ok {
			point = &DataPoint{
				Week:         row.Week,
				Label:        row.Week.Label(),
				ProjectHours: make(map[timesheet.ProjectID]decimal.Decimal),
			}
			groups[key] = point
		}

		point.ProjectHours[project.ID] = point.ProjectHours[project.ID].Add(row.Hours)
		point.addToCategory(project.Category, row.Hours)
	}

	points := make([]DataPoint, 0, len(groups))
	for _, p := range groups {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Week.Absolute() < points[j].Week.Absolute()
	})
	return points, nil
}

// addToCategory routes hours into exactly one of the four fixed totals.
func (p *DataPoint) addToCategory(c timesheet.Category, hours decimal.Decimal) {
	switch c {
	case timesheet.CategoryRnD:
		p.RnD = p.RnD.Add(hours)
	case timesheet.CategoryRnDSupport:
		p.Support = p.Support.Add(hours)
	case timesheet.CategoryMfgSupport:
		p.Mfg = p.Mfg.Add(hours)
	case timesheet.CategoryLeave:
		p.Leave = p.Leave.Add(hours)
	}
}

// TotalHours sums the four category totals.
func (p DataPoint) TotalHours() decimal.Decimal {
	return p.RnD.Add(p.Support).Add(p.Mfg).Add(p.Leave)
}
