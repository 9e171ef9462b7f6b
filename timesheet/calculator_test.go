package timesheet_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/allocation-engine/timesheet"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func cfg(capacity float64) timesheet.Config {
	return timesheet.Config{WeeklyCapacity: dec(capacity)}
}

var (
	projApollo   = timesheet.Project{ID: "apollo", Name: "Apollo", Category: timesheet.CategoryRnD}
	projGemini   = timesheet.Project{ID: "gemini", Name: "Gemini", Category: timesheet.CategoryRnDSupport}
	projLine     = timesheet.Project{ID: "line", Name: "Line Support", Category: timesheet.CategoryMfgSupport}
	projVacation = timesheet.Project{ID: "vacation", Name: "Vacation", Category: timesheet.CategoryLeave}
	projSick     = timesheet.Project{ID: "sick", Name: "Sick Leave", Category: timesheet.CategoryLeave}
)

func newSheet(projects ...timesheet.Project) *timesheet.WeekTimesheet {
	sheet := timesheet.NewWeekTimesheet("u-1", timesheet.NewWeek(2025, 10))
	for _, p := range projects {
		sheet.Ensure(p)
	}
	return sheet
}

func assertDecimal(t *testing.T, expected float64, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual),
		"expected %v, got %v %v", expected, actual, msgAndArgs)
}

// =============================================================================
// CAPACITY LAW
// =============================================================================

func TestAvailableWorkHours_LeaveReducesCapacity(t *testing.T) {
	// GIVEN: Capacity 40, one day of leave (8h)
	// WHEN: Computing available work hours
	// THEN: 32 hours remain for work

	avail := timesheet.AvailableWorkHours(dec(40), dec(8))
	assertDecimal(t, 32, avail)
}

func TestAvailableWorkHours_NeverNegative(t *testing.T) {
	// GIVEN: More leave hours than capacity
	// WHEN: Computing available work hours
	// THEN: Floor at zero, never negative

	avail := timesheet.AvailableWorkHours(dec(40), dec(56))
	assert.True(t, avail.IsZero())
}

func TestLeaveHours_PricesDaysAtEightHours(t *testing.T) {
	// GIVEN: 1.5 vacation days and 0.5 sick days
	sheet := newSheet(projVacation, projSick)
	sheet.SetDays("vacation", dec(1.5))
	sheet.SetDays("sick", dec(0.5))

	// WHEN: Summing leave hours
	// THEN: (1.5 + 0.5) * 8 = 16
	assertDecimal(t, 16, timesheet.LeaveHours(sheet.Entries))
}

// =============================================================================
// PERCENTAGE -> HOURS SCALING
// =============================================================================

func TestRecalculate_WorkHoursScaleWithAvailable(t *testing.T) {
	// GIVEN: Capacity 40, 1 leave day, one project at 50%
	sheet := newSheet(projApollo, projVacation)
	sheet.SetDays("vacation", dec(1))
	sheet.SetPercent("apollo", dec(50))

	// WHEN: Recalculating
	timesheet.Recalculate(sheet, cfg(40))

	// THEN: available = 32, apollo = 16h, vacation = 8h
	assertDecimal(t, 16, sheet.Entry("apollo").Hours)
	assertDecimal(t, 8, sheet.Entry("vacation").Hours)
}

func TestRecalculate_LeaveChangeRepricesAllWorkEntries(t *testing.T) {
	// GIVEN: A recalculated week with apollo at 50% of 32h = 16h
	sheet := newSheet(projApollo, projVacation)
	sheet.SetDays("vacation", dec(1))
	sheet.SetPercent("apollo", dec(50))
	timesheet.Recalculate(sheet, cfg(40))
	assertDecimal(t, 16, sheet.Entry("apollo").Hours)

	// WHEN: Adding one more leave day WITHOUT touching apollo
	sheet.SetDays("vacation", dec(2))
	timesheet.Recalculate(sheet, cfg(40))

	// THEN: apollo's hours must follow the shrunk pool: 50% of 24h = 12h
	assertDecimal(t, 12, sheet.Entry("apollo").Hours)
}

func TestRecalculate_Idempotent(t *testing.T) {
	// GIVEN: A sheet with mixed work and leave
	sheet := newSheet(projApollo, projGemini, projVacation)
	sheet.SetDays("vacation", dec(1))
	sheet.SetPercent("apollo", dec(60))
	sheet.SetPercent("gemini", dec(40))

	// WHEN: Recalculating twice
	timesheet.Recalculate(sheet, cfg(40))
	first := append([]timesheet.TimeEntry(nil), sheet.Entries...)
	timesheet.Recalculate(sheet, cfg(40))

	// THEN: Nothing changes on the second pass
	require.Len(t, sheet.Entries, len(first))
	for i, e := range sheet.Entries {
		assert.True(t, first[i].Hours.Equal(e.Hours), "entry %s drifted", e.ProjectID)
	}
}

func TestRecalculate_FullLeaveWeekZeroesWork(t *testing.T) {
	// GIVEN: 5 leave days consuming the whole 40h capacity
	sheet := newSheet(projApollo, projVacation)
	sheet.SetDays("vacation", dec(5))
	sheet.SetPercent("apollo", dec(100))

	// WHEN: Recalculating
	timesheet.Recalculate(sheet, cfg(40))

	// THEN: No work hours remain regardless of percentage
	assert.True(t, sheet.Entry("apollo").Hours.IsZero())
	assertDecimal(t, 40, sheet.Entry("vacation").Hours)
}

func TestRecalculate_ZeroCapacityFallsBackToDefault(t *testing.T) {
	// GIVEN: A config with no capacity set
	sheet := newSheet(projApollo)
	sheet.SetPercent("apollo", dec(100))

	// WHEN: Recalculating with the zero config
	timesheet.Recalculate(sheet, timesheet.Config{})

	// THEN: The default 40h capacity applies
	assertDecimal(t, 40, sheet.Entry("apollo").Hours)
}

// =============================================================================
// INPUT CLAMPING AT THE EDIT BOUNDARY
// =============================================================================

func TestSetPercent_ClampsToRange(t *testing.T) {
	sheet := newSheet(projApollo)

	sheet.SetPercent("apollo", dec(150))
	assertDecimal(t, 100, sheet.Entry("apollo").Percent)

	sheet.SetPercent("apollo", dec(-10))
	assert.True(t, sheet.Entry("apollo").Percent.IsZero())
}

func TestSetDays_ClampsToRange(t *testing.T) {
	sheet := newSheet(projVacation)

	sheet.SetDays("vacation", dec(9))
	assertDecimal(t, 7, sheet.Entry("vacation").Days)

	sheet.SetDays("vacation", dec(-1))
	assert.True(t, sheet.Entry("vacation").Days.IsZero())
}

func TestSetPercent_IgnoresLeaveEntries(t *testing.T) {
	// Percent is meaningless on leave rows and must not stick.
	sheet := newSheet(projVacation)
	sheet.SetPercent("vacation", dec(50))
	assert.True(t, sheet.Entry("vacation").Percent.IsZero())
}

// =============================================================================
// ALLOCATION GATE
// =============================================================================

func TestAllocationBalanced_RequiresFullHundred(t *testing.T) {
	sheet := newSheet(projApollo, projGemini)
	sheet.SetPercent("apollo", dec(60))
	sheet.SetPercent("gemini", dec(30))

	assert.False(t, timesheet.AllocationBalanced(sheet, cfg(40)))

	sheet.SetPercent("gemini", dec(40))
	assert.True(t, timesheet.AllocationBalanced(sheet, cfg(40)))
}

func TestAllocationBalanced_VacuousOnFullLeaveWeek(t *testing.T) {
	// GIVEN: The whole week is leave; nothing left to allocate
	sheet := newSheet(projApollo, projVacation)
	sheet.SetDays("vacation", dec(5))

	// THEN: The gate passes with 0% allocated
	assert.True(t, timesheet.AllocationBalanced(sheet, cfg(40)))
}

// =============================================================================
// CAPACITY INFERENCE (admin correction path)
// =============================================================================

func TestInferCapacity_DerivesFromHoursAndPercent(t *testing.T) {
	// GIVEN: A leave-free week entered at capacity 48 (50% + 50%)
	sheet := newSheet(projApollo, projGemini)
	sheet.SetPercent("apollo", dec(50))
	sheet.SetPercent("gemini", dec(50))
	timesheet.Recalculate(sheet, cfg(48))

	// WHEN: Inferring capacity from the recalculated rows
	got := timesheet.InferCapacity(sheet.Entries)

	// THEN: 48h round-trips exactly (no leave in the week)
	assertDecimal(t, 48, got)
}

func TestInferCapacity_DefaultsWhenNoWorkRows(t *testing.T) {
	sheet := newSheet(projVacation)
	sheet.SetDays("vacation", dec(2))
	timesheet.Recalculate(sheet, cfg(40))

	got := timesheet.InferCapacity(sheet.Entries)
	assertDecimal(t, 40, got)
}

// =============================================================================
// ZERO-ROW PRUNING
// =============================================================================

func TestPersistableEntries_DropsBlankRows(t *testing.T) {
	// GIVEN: Entries {apollo: 0%, gemini: 100%}
	sheet := newSheet(projApollo, projGemini, projVacation)
	sheet.SetPercent("gemini", dec(100))
	timesheet.Recalculate(sheet, cfg(40))

	// WHEN: Collecting the persistable set
	rows := sheet.PersistableEntries()

	// THEN: Only gemini survives
	require.Len(t, rows, 1)
	assert.Equal(t, timesheet.ProjectID("gemini"), rows[0].ProjectID)
}
