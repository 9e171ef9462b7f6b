/*
calculator.go - Capacity and allocation arithmetic

PURPOSE:
  Pure functions deriving hours from the values users actually edit:
  work-project percentages and leave days. Leave is priced first because it
  consumes from the shared capacity pool that all work entries divide.

THE COUPLING INVARIANT:
  Leave and work entries are not independent. One added leave day shrinks
  availableWorkHours, which changes the hour value of EVERY work entry even
  though their percentages are untouched. Recalculate therefore always
  re-derives the full entry set; callers never update a single entry's hours
  in isolation.

TOTALITY:
  Every function here is a total function over its numeric domain: no error
  returns, no I/O, no clamping. Range clamping happens at the edit boundary
  (WeekTimesheet.SetPercent / SetDays).

SEE ALSO:
  - types.go: TimeEntry, WeekTimesheet, Config
  - reconcile.go: Calls Recalculate before every save
*/
package timesheet

import "github.com/shopspring/decimal"

var (
	hundred     = decimal.NewFromInt(100)
	hoursPerDay = decimal.NewFromInt(HoursPerLeaveDay)
)

// LeaveHours sums the hours of all leave entries, pricing days at 8 hours
// each. It reads Days, not Hours, so it is stable under repeated
// recalculation.
func LeaveHours(entries []TimeEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.IsLeave() {
			total = total.Add(e.Days.Mul(hoursPerDay))
		}
	}
	return total
}

// AvailableWorkHours is the capacity left for work after leave:
// max(0, capacity - leaveHours).
func AvailableWorkHours(capacity, leaveHours decimal.Decimal) decimal.Decimal {
	avail := capacity.Sub(leaveHours)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// Recalculate re-derives Hours for every entry in the sheet.
//
// Leave entries first (hours = days * 8), then work entries against the
// remaining capacity (hours = percent/100 * available). Idempotent: running
// it twice over the same inputs yields the same sheet.
func Recalculate(sheet *WeekTimesheet, cfg Config) {
	cfg = cfg.Normalize()

	leave := LeaveHours(sheet.Entries)
	avail := AvailableWorkHours(cfg.WeeklyCapacity, leave)

	for i := range sheet.Entries {
		e := &sheet.Entries[i]
		if e.IsLeave() {
			e.Hours = e.Days.Mul(hoursPerDay)
		} else {
			e.Hours = e.Percent.Div(hundred).Mul(avail)
		}
	}
}

// WorkPercentTotal sums the percentages of all work entries.
func WorkPercentTotal(entries []TimeEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if !e.IsLeave() {
			total = total.Add(e.Percent)
		}
	}
	return total
}

// AllocationBalanced is the soft save-gate: work percentages must total 100
// whenever any work hours are available. A full week of leave leaves nothing
// to allocate, so the check passes vacuously.
func AllocationBalanced(sheet *WeekTimesheet, cfg Config) bool {
	cfg = cfg.Normalize()
	avail := AvailableWorkHours(cfg.WeeklyCapacity, LeaveHours(sheet.Entries))
	if avail.IsZero() {
		return true
	}
	return WorkPercentTotal(sheet.Entries).Equal(hundred)
}

// InferCapacity estimates the weekly capacity a persisted week was entered
// against. Capacity itself is never persisted, so the admin correction path
// derives it: capacity ~= workHours / (workPercent/100). Falls back to the
// default when either sum is non-positive.
func InferCapacity(entries []TimeEntry) decimal.Decimal {
	workHours := decimal.Zero
	workPct := decimal.Zero
	for _, e := range entries {
		if !e.IsLeave() {
			workHours = workHours.Add(e.Hours)
			workPct = workPct.Add(e.Percent)
		}
	}
	if workHours.IsPositive() && workPct.IsPositive() {
		return workHours.Div(workPct.Div(hundred))
	}
	return decimal.NewFromInt(DefaultWeeklyCapacity)
}
