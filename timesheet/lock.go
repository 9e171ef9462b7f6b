/*
lock.go - Edit-window policy

PURPOSE:
  Decides whether a selected week is still editable for a normal user.
  Weeks more than FutureEditHorizon weeks ahead of the current week are
  future-locked: leave entries stay editable, work entries become read-only.
  Past weeks are never locked.

  Week distance is measured on the flat Absolute() axis (year*52 + week),
  so the boundary behaves consistently across year boundaries.

SEE ALSO:
  - types.go: Week.Absolute
  - reconcile.go: Save enforces the policy for non-admin callers
*/
package timesheet

// FutureEditHorizon is how many weeks past the current week remain fully
// editable. Week N+2 is editable; week N+3 is future-locked for work.
const FutureEditHorizon = 2

// EditState is the outcome of the edit-window policy. There are only two
// states and no transitions; the state is recomputed fresh on every week
// navigation.
type EditState int

const (
	// Editable means both work and leave entries accept edits.
	Editable EditState = iota

	// FutureLockedForWork means only leave entries accept edits; work
	// percentages are rendered but inert.
	FutureLockedForWork
)

// EditWindow classifies the selected week relative to the current week.
func EditWindow(selected, current Week) EditState {
	if selected.Absolute() > current.Absolute()+FutureEditHorizon {
		return FutureLockedForWork
	}
	return Editable
}

// CanEditWork reports whether work-percentage entries accept edits.
func (s EditState) CanEditWork() bool { return s == Editable }

// CanEditLeave reports whether leave entries accept edits.
// Leave is editable in every state.
func (s EditState) CanEditLeave() bool { return true }
