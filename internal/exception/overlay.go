package exception

import (
	"sort"
	"time"

	"github.com/calvuzs3/qdue-server/internal/rotation"
)

// EffectiveFor returns the exceptions effective for the user on the date,
// ordered by priority descending, then target date, then id.
func EffectiveFor(userID string, date time.Time, candidates []Exception) []Exception {
	effective := make([]Exception, 0)
	for _, candidate := range candidates {
		if candidate.UserID != userID {
			continue
		}
		if candidate.EffectiveOn(date) {
			effective = append(effective, candidate)
		}
	}
	sortEffective(effective)
	return effective
}

func sortEffective(exceptions []Exception) {
	sort.Slice(exceptions, func(i, j int) bool {
		a, b := exceptions[i], exceptions[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		aDate, bDate := rotation.Normalize(a.TargetDate), rotation.Normalize(b.TargetDate)
		if !aDate.Equal(bDate) {
			return aDate.Before(bDate)
		}
		return a.ID < b.ID
	})
}

// Composed is the final per-day outcome after overlaying exceptions on the
// base pattern evaluation.
type Composed struct {
	Working bool
	ShiftID string

	Reduced      bool
	ReducedStart string
	ReducedEnd   string

	// AppliedIDs lists the exceptions that shaped the outcome, override
	// first.
	AppliedIDs []string
}

// Conflict reports two effective exceptions of equal priority carrying
// incompatible overrides for the same date. The composition still picks a
// deterministic winner, but the collision is surfaced instead of silently
// swallowed.
type Conflict struct {
	Date         time.Time
	ExceptionIDs []string
	Reason       string
}

// ComposeWithBase overlays the effective exceptions on a base outcome.
// The highest-priority absence forces rest; the highest-priority change
// replaces the shift reference; reductions annotate the surviving shift with
// a narrowed time window. Equal-priority incompatible overrides are returned
// as conflicts.
func ComposeWithBase(base rotation.Outcome, effective []Exception) (Composed, []Conflict) {
	ordered := make([]Exception, len(effective))
	copy(ordered, effective)
	sortEffective(ordered)

	composed := Composed{Working: base.Working, ShiftID: base.ShiftID}
	conflicts := make([]Conflict, 0)

	overrides := filterByClass(ordered, ClassAbsence, ClassChange)
	if len(overrides) > 0 {
		winner := overrides[0]
		conflicts = append(conflicts, overrideConflicts(winner, overrides[1:])...)

		switch winner.Type.Class() {
		case ClassAbsence:
			composed.Working = false
			composed.ShiftID = ""
		case ClassChange:
			// A change on a rest day calls the user in on the new shift.
			composed.Working = true
			composed.ShiftID = winner.NewShiftID
		}
		composed.AppliedIDs = append(composed.AppliedIDs, winner.ID)
	}

	if composed.Working {
		reductions := filterByClass(ordered, ClassReduction)
		if len(reductions) > 0 {
			winner := reductions[0]
			conflicts = append(conflicts, reductionConflicts(winner, reductions[1:])...)
			composed.Reduced = true
			composed.ReducedStart = winner.ReducedStart
			composed.ReducedEnd = winner.ReducedEnd
			composed.AppliedIDs = append(composed.AppliedIDs, winner.ID)
		}
	}

	return composed, conflicts
}

// DetectConflicts reports the equal-priority collisions among the effective
// exceptions without composing a base outcome. Each override class is
// examined on its own, so reduction collisions surface even when the day
// would compose to rest. Used by callers validating a new exception before
// persisting it.
func DetectConflicts(effective []Exception) []Conflict {
	ordered := make([]Exception, len(effective))
	copy(ordered, effective)
	sortEffective(ordered)

	conflicts := make([]Conflict, 0)
	if overrides := filterByClass(ordered, ClassAbsence, ClassChange); len(overrides) > 0 {
		conflicts = append(conflicts, overrideConflicts(overrides[0], overrides[1:])...)
	}
	if reductions := filterByClass(ordered, ClassReduction); len(reductions) > 0 {
		conflicts = append(conflicts, reductionConflicts(reductions[0], reductions[1:])...)
	}
	return conflicts
}

func filterByClass(exceptions []Exception, classes ...Class) []Exception {
	out := make([]Exception, 0, len(exceptions))
	for _, e := range exceptions {
		for _, class := range classes {
			if e.Type.Class() == class {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func overrideConflicts(winner Exception, rest []Exception) []Conflict {
	conflicts := make([]Conflict, 0)
	for _, contender := range rest {
		if contender.Priority != winner.Priority {
			break // ordered by priority; nothing below can tie
		}
		if compatibleOverrides(winner, contender) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Date:         rotation.Normalize(winner.TargetDate),
			ExceptionIDs: []string{winner.ID, contender.ID},
			Reason:       "equal-priority exceptions carry incompatible overrides",
		})
	}
	return conflicts
}

func compatibleOverrides(a, b Exception) bool {
	if a.Type.Class() != b.Type.Class() {
		return false
	}
	if a.Type.Class() == ClassChange {
		return a.NewShiftID == b.NewShiftID
	}
	// Two absences agree on the effect regardless of their subtype.
	return true
}

func reductionConflicts(winner Exception, rest []Exception) []Conflict {
	conflicts := make([]Conflict, 0)
	for _, contender := range rest {
		if contender.Priority != winner.Priority {
			break
		}
		if contender.ReducedStart == winner.ReducedStart && contender.ReducedEnd == winner.ReducedEnd {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Date:         rotation.Normalize(winner.TargetDate),
			ExceptionIDs: []string{winner.ID, contender.ID},
			Reason:       "equal-priority reductions disagree on the time window",
		})
	}
	return conflicts
}
