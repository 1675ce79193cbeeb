// Package composer merges recurrence evaluation, assignment resolution and
// exception overlay into the final per-day schedule view. The composer is
// stateless between calls: it receives a consistent snapshot of candidate
// records and computes from it alone.
package composer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/calvuzs3/qdue-server/internal/assignment"
	"github.com/calvuzs3/qdue-server/internal/calendar"
	"github.com/calvuzs3/qdue-server/internal/exception"
	"github.com/calvuzs3/qdue-server/internal/rotation"
)

// Snapshot carries the candidate records for one composition request.
// Retrieval is the caller's responsibility; the composer assumes the
// snapshot is internally consistent.
type Snapshot struct {
	Patterns    map[string]rotation.Pattern
	Assignments []assignment.Assignment
	Exceptions  []exception.Exception
	Closures    *calendar.Calendar
}

// Diagnostic kinds accumulated into composition results instead of aborting
// the batch.
const (
	DiagnosticResolutionAmbiguity = "resolution_ambiguity"
	DiagnosticExceptionConflict   = "exception_conflict"
	DiagnosticPatternMissing      = "pattern_missing"
)

// Diagnostic is a per-date, per-user problem recorded during composition.
type Diagnostic struct {
	Date   time.Time
	UserID string
	Kind   string
	Detail string
}

// Day is the composed outcome for one user on one calendar date.
type Day struct {
	Date   time.Time
	UserID string

	// Governing assignment context; empty when the day is an implicit
	// rest (no assignment covers the date).
	AssignmentID string
	TeamID       string
	PatternID    string

	Working bool
	ShiftID string

	Reduced      bool
	ReducedStart string
	ReducedEnd   string

	Closed      bool
	ClosureName string

	AppliedExceptionIDs []string
}

// RangeResult is the outcome of a range composition: one Day per calendar
// date plus the diagnostics accumulated along the way.
type RangeResult struct {
	Days        []Day
	Diagnostics []Diagnostic
}

// Composer batch-evaluates schedules. The zero value is usable; BatchSize
// tunes the cancellation granularity for wide ranges.
type Composer struct {
	// BatchSize is the number of days composed between cancellation
	// checks. Values below 1 fall back to the default.
	BatchSize int
}

const defaultBatchSize = 32

func (c Composer) batchSize() int {
	if c.BatchSize < 1 {
		return defaultBatchSize
	}
	return c.BatchSize
}

// ComposeRange composes the schedule for one user over an inclusive date
// range: exactly one entry per calendar date, in date order. Per-day
// problems become diagnostics, never batch failures; only context
// cancellation aborts, checked between batches.
func (c Composer) ComposeRange(ctx context.Context, userID string, start, end time.Time, snap Snapshot) (RangeResult, error) {
	start = rotation.Normalize(start)
	end = rotation.Normalize(end)
	if end.Before(start) {
		return RangeResult{}, fmt.Errorf("composer: range end %s precedes start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	totalDays := rotation.DaysBetween(start, end) + 1
	batchSize := c.batchSize()
	batches := (totalDays + batchSize - 1) / batchSize

	days := make([]Day, totalDays)
	batchDiagnostics := make([][]Diagnostic, batches)

	var wg sync.WaitGroup
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return RangeResult{}, err
		}

		first := b * batchSize
		last := first + batchSize
		if last > totalDays {
			last = totalDays
		}

		wg.Add(1)
		go func(batch, first, last int) {
			defer wg.Done()
			diagnostics := make([]Diagnostic, 0)
			for i := first; i < last; i++ {
				date := start.AddDate(0, 0, i)
				day, dayDiagnostics := composeDay(userID, date, snap)
				days[i] = day
				diagnostics = append(diagnostics, dayDiagnostics...)
			}
			batchDiagnostics[batch] = diagnostics
		}(b, first, last)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return RangeResult{}, err
	}

	// Batches complete in arbitrary order; output ordering is fixed by the
	// index layout, diagnostics by batch position.
	result := RangeResult{Days: days}
	for _, diagnostics := range batchDiagnostics {
		result.Diagnostics = append(result.Diagnostics, diagnostics...)
	}
	return result, nil
}

// composeDay applies the single-date pipeline: governing assignment, base
// pattern evaluation, closure calendar, exception overlay.
func composeDay(userID string, date time.Time, snap Snapshot) (Day, []Diagnostic) {
	day := Day{Date: date, UserID: userID}
	diagnostics := make([]Diagnostic, 0)

	resolution := assignment.ResolveGoverning(userID, date, snap.Assignments)
	if resolution.Ambiguous {
		diagnostics = append(diagnostics, Diagnostic{
			Date:   date,
			UserID: userID,
			Kind:   DiagnosticResolutionAmbiguity,
			Detail: fmt.Sprintf("assignments %s and %s tie on priority and start date", resolution.Assignment.ID, resolution.ContenderID),
		})
	}

	if !resolution.Found {
		// No governing assignment: the day is an implicit rest and
		// exceptions have nothing to override.
		if closure, closed := snap.Closures.ClosedOn(date); closed {
			day.Closed = true
			day.ClosureName = closure.Name
		}
		return day, diagnostics
	}

	governing := resolution.Assignment
	day.AssignmentID = governing.ID
	day.TeamID = governing.TeamID
	day.PatternID = governing.PatternID

	pattern, ok := snap.Patterns[governing.PatternID]
	if !ok {
		diagnostics = append(diagnostics, Diagnostic{
			Date:   date,
			UserID: userID,
			Kind:   DiagnosticPatternMissing,
			Detail: fmt.Sprintf("assignment %s references unknown pattern %s", governing.ID, governing.PatternID),
		})
		return day, diagnostics
	}
	base := rotation.Evaluate(pattern, date)

	effective := exception.EffectiveFor(userID, date, snap.Exceptions)
	composed, conflicts := exception.ComposeWithBase(base, effective)
	for _, conflict := range conflicts {
		diagnostics = append(diagnostics, Diagnostic{
			Date:   date,
			UserID: userID,
			Kind:   DiagnosticExceptionConflict,
			Detail: fmt.Sprintf("%s: %v", conflict.Reason, conflict.ExceptionIDs),
		})
	}

	day.Working = composed.Working
	day.ShiftID = composed.ShiftID
	day.Reduced = composed.Reduced
	day.ReducedStart = composed.ReducedStart
	day.ReducedEnd = composed.ReducedEnd
	day.AppliedExceptionIDs = composed.AppliedIDs

	// Plant closures force rest after everything else; the day keeps its
	// closure context so callers can tell it apart from pattern rest.
	if closure, closed := snap.Closures.ClosedOn(date); closed {
		day.Working = false
		day.ShiftID = ""
		day.Reduced = false
		day.ReducedStart = ""
		day.ReducedEnd = ""
		day.Closed = true
		day.ClosureName = closure.Name
	}

	return day, diagnostics
}

// RosterEntry groups the users working one shift on a roster day.
type RosterEntry struct {
	ShiftID string
	UserIDs []string
}

// Roster is the full-team day view used by coordinators: every governed
// user of the team grouped by resulting shift, plus the resting users.
type Roster struct {
	TeamID      string
	Date        time.Time
	Entries     []RosterEntry
	RestUserIDs []string
	Diagnostics []Diagnostic
}

// ComposeTeamRoster composes the single-date roster for a team. Users are
// evaluated independently and in parallel; output ordering is deterministic
// (entries by shift id, users by id) regardless of completion order.
func (c Composer) ComposeTeamRoster(ctx context.Context, teamID string, date time.Time, snap Snapshot) (Roster, error) {
	if err := ctx.Err(); err != nil {
		return Roster{}, err
	}
	date = rotation.Normalize(date)

	userSet := make(map[string]struct{})
	for _, candidate := range snap.Assignments {
		if candidate.TeamID == teamID {
			userSet[candidate.UserID] = struct{}{}
		}
	}
	userIDs := make([]string, 0, len(userSet))
	for userID := range userSet {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	days := make([]Day, len(userIDs))
	diagnostics := make([][]Diagnostic, len(userIDs))

	var wg sync.WaitGroup
	for i, userID := range userIDs {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			days[i], diagnostics[i] = composeDay(userID, date, snap)
		}(i, userID)
	}
	wg.Wait()

	roster := Roster{TeamID: teamID, Date: date}
	byShift := make(map[string][]string)
	for i, day := range days {
		roster.Diagnostics = append(roster.Diagnostics, diagnostics[i]...)

		// The user may be governed by an assignment for another team on
		// this date; the roster only lists days this team governs.
		if day.AssignmentID != "" && day.TeamID != teamID {
			continue
		}
		if day.Working {
			byShift[day.ShiftID] = append(byShift[day.ShiftID], day.UserID)
		} else {
			roster.RestUserIDs = append(roster.RestUserIDs, day.UserID)
		}
	}

	shiftIDs := make([]string, 0, len(byShift))
	for shiftID := range byShift {
		shiftIDs = append(shiftIDs, shiftID)
	}
	sort.Strings(shiftIDs)
	for _, shiftID := range shiftIDs {
		users := byShift[shiftID]
		sort.Strings(users)
		roster.Entries = append(roster.Entries, RosterEntry{ShiftID: shiftID, UserIDs: users})
	}

	return roster, nil
}
