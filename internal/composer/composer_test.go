package composer

import (
	"context"
	"testing"
	"time"

	"github.com/calvuzs3/qdue-server/internal/assignment"
	"github.com/calvuzs3/qdue-server/internal/calendar"
	"github.com/calvuzs3/qdue-server/internal/exception"
	"github.com/calvuzs3/qdue-server/internal/rotation"
)

func datePtr(t time.Time) *time.Time { return &t }

func snapshotWithPattern(t *testing.T) Snapshot {
	t.Helper()

	pattern, err := rotation.NewCustomPattern("pattern-1", rotation.Date(2024, time.January, 1), []string{"morning", "night", ""})
	if err != nil {
		t.Fatalf("NewCustomPattern: %v", err)
	}

	return Snapshot{
		Patterns: map[string]rotation.Pattern{pattern.ID: pattern},
		Assignments: []assignment.Assignment{{
			ID:        "a-1",
			UserID:    "user-1",
			TeamID:    "team-1",
			PatternID: "pattern-1",
			StartDate: rotation.Date(2024, time.January, 1),
			Priority:  assignment.PriorityNormal,
			Status:    assignment.StatusActive,
			Active:    true,
		}},
	}
}

func TestComposeRange_Completeness(t *testing.T) {
	t.Parallel()

	snap := snapshotWithPattern(t)
	start := rotation.Date(2024, time.January, 1)
	end := rotation.Date(2024, time.February, 15)

	result, err := Composer{BatchSize: 7}.ComposeRange(context.Background(), "user-1", start, end, snap)
	if err != nil {
		t.Fatalf("ComposeRange: %v", err)
	}

	wantDays := rotation.DaysBetween(start, end) + 1
	if len(result.Days) != wantDays {
		t.Fatalf("days = %d, want %d", len(result.Days), wantDays)
	}
	for i, day := range result.Days {
		expected := start.AddDate(0, 0, i)
		if !day.Date.Equal(expected) {
			t.Fatalf("day %d date = %s, want %s", i, day.Date.Format("2006-01-02"), expected.Format("2006-01-02"))
		}
	}

	// Cycle: morning, night, rest.
	if !result.Days[0].Working || result.Days[0].ShiftID != "morning" {
		t.Fatalf("day 0 = %+v, want morning", result.Days[0])
	}
	if !result.Days[1].Working || result.Days[1].ShiftID != "night" {
		t.Fatalf("day 1 = %+v, want night", result.Days[1])
	}
	if result.Days[2].Working {
		t.Fatalf("day 2 = %+v, want rest", result.Days[2])
	}
	if !result.Days[3].Working || result.Days[3].ShiftID != "morning" {
		t.Fatalf("day 3 = %+v, want cycle restart on morning", result.Days[3])
	}
}

func TestComposeRange_NoAssignmentMeansRest(t *testing.T) {
	t.Parallel()

	snap := snapshotWithPattern(t)
	result, err := Composer{}.ComposeRange(context.Background(), "user-unknown",
		rotation.Date(2024, time.January, 1), rotation.Date(2024, time.January, 3), snap)
	if err != nil {
		t.Fatalf("ComposeRange: %v", err)
	}
	for _, day := range result.Days {
		if day.Working || day.AssignmentID != "" {
			t.Fatalf("ungoverned day = %+v, want implicit rest", day)
		}
	}
}

func TestComposeRange_ExceptionOverridesBase(t *testing.T) {
	t.Parallel()

	snap := snapshotWithPattern(t)
	snap.Exceptions = []exception.Exception{{
		ID:         "e-1",
		UserID:     "user-1",
		TargetDate: rotation.Date(2024, time.January, 1),
		Type:       exception.TypeAbsenceSick,
		Status:     exception.StatusApproved,
		Priority:   exception.PriorityNormal,
		Active:     true,
	}}

	result, err := Composer{}.ComposeRange(context.Background(), "user-1",
		rotation.Date(2024, time.January, 1), rotation.Date(2024, time.January, 2), snap)
	if err != nil {
		t.Fatalf("ComposeRange: %v", err)
	}

	if result.Days[0].Working {
		t.Fatalf("approved absence must force rest, got %+v", result.Days[0])
	}
	if len(result.Days[0].AppliedExceptionIDs) != 1 || result.Days[0].AppliedExceptionIDs[0] != "e-1" {
		t.Fatalf("applied exceptions = %v", result.Days[0].AppliedExceptionIDs)
	}
	if !result.Days[1].Working {
		t.Fatalf("untargeted day affected: %+v", result.Days[1])
	}
}

func TestComposeRange_DiagnosticsDoNotAbort(t *testing.T) {
	t.Parallel()

	snap := snapshotWithPattern(t)
	snap.Assignments = append(snap.Assignments, assignment.Assignment{
		ID:        "a-broken",
		UserID:    "user-1",
		TeamID:    "team-1",
		PatternID: "pattern-ghost",
		StartDate: rotation.Date(2024, time.January, 2),
		EndDate:   datePtr(rotation.Date(2024, time.January, 2)),
		Priority:  assignment.PriorityOverride,
		Status:    assignment.StatusActive,
		Active:    true,
	})

	result, err := Composer{}.ComposeRange(context.Background(), "user-1",
		rotation.Date(2024, time.January, 1), rotation.Date(2024, time.January, 3), snap)
	if err != nil {
		t.Fatalf("ComposeRange: %v", err)
	}

	if len(result.Days) != 3 {
		t.Fatalf("batch aborted: %d days", len(result.Days))
	}
	found := false
	for _, diagnostic := range result.Diagnostics {
		if diagnostic.Kind == DiagnosticPatternMissing && diagnostic.Date.Equal(rotation.Date(2024, time.January, 2)) {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing pattern diagnostic not recorded: %+v", result.Diagnostics)
	}
	// The broken day resolves to rest, the neighbours stay intact.
	if result.Days[1].Working {
		t.Fatalf("broken day = %+v, want rest", result.Days[1])
	}
	if !result.Days[0].Working {
		t.Fatalf("day before broken day = %+v, want work", result.Days[0])
	}
}

func TestComposeRange_Cancellation(t *testing.T) {
	t.Parallel()

	snap := snapshotWithPattern(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Composer{BatchSize: 1}.ComposeRange(ctx, "user-1",
		rotation.Date(2024, time.January, 1), rotation.Date(2024, time.December, 31), snap)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestComposeRange_ClosureForcesRest(t *testing.T) {
	t.Parallel()

	snap := snapshotWithPattern(t)
	snap.Closures = &calendar.Calendar{
		Version: "test",
		Closures: []calendar.Closure{{
			Name:  "maintenance",
			Start: rotation.Date(2024, time.January, 1),
			End:   rotation.Date(2024, time.January, 1),
		}},
	}

	result, err := Composer{}.ComposeRange(context.Background(), "user-1",
		rotation.Date(2024, time.January, 1), rotation.Date(2024, time.January, 2), snap)
	if err != nil {
		t.Fatalf("ComposeRange: %v", err)
	}
	if result.Days[0].Working || !result.Days[0].Closed || result.Days[0].ClosureName != "maintenance" {
		t.Fatalf("closure day = %+v", result.Days[0])
	}
	if !result.Days[1].Working {
		t.Fatalf("day after closure = %+v, want work", result.Days[1])
	}
}

func TestComposeTeamRoster(t *testing.T) {
	t.Parallel()

	morningPattern, err := rotation.NewCustomPattern("pattern-m", rotation.Date(2024, time.January, 1), []string{"morning"})
	if err != nil {
		t.Fatalf("NewCustomPattern: %v", err)
	}
	nightPattern, err := rotation.NewCustomPattern("pattern-n", rotation.Date(2024, time.January, 1), []string{"night"})
	if err != nil {
		t.Fatalf("NewCustomPattern: %v", err)
	}
	restPattern, err := rotation.NewCustomPattern("pattern-r", rotation.Date(2024, time.January, 1), []string{"morning", ""})
	if err != nil {
		t.Fatalf("NewCustomPattern: %v", err)
	}

	newAssignment := func(id, userID, patternID string) assignment.Assignment {
		return assignment.Assignment{
			ID:        id,
			UserID:    userID,
			TeamID:    "team-1",
			PatternID: patternID,
			StartDate: rotation.Date(2024, time.January, 1),
			Priority:  assignment.PriorityNormal,
			Status:    assignment.StatusActive,
			Active:    true,
		}
	}

	snap := Snapshot{
		Patterns: map[string]rotation.Pattern{
			morningPattern.ID: morningPattern,
			nightPattern.ID:   nightPattern,
			restPattern.ID:    restPattern,
		},
		Assignments: []assignment.Assignment{
			newAssignment("a-1", "user-b", "pattern-m"),
			newAssignment("a-2", "user-a", "pattern-m"),
			newAssignment("a-3", "user-c", "pattern-n"),
			newAssignment("a-4", "user-d", "pattern-r"),
		},
	}

	// 2024-01-02: user-d's two-day pattern rests.
	roster, err := Composer{}.ComposeTeamRoster(context.Background(), "team-1", rotation.Date(2024, time.January, 2), snap)
	if err != nil {
		t.Fatalf("ComposeTeamRoster: %v", err)
	}

	if len(roster.Entries) != 2 {
		t.Fatalf("entries = %+v, want morning and night", roster.Entries)
	}
	if roster.Entries[0].ShiftID != "morning" || roster.Entries[1].ShiftID != "night" {
		t.Fatalf("entry order = %+v", roster.Entries)
	}
	if got := roster.Entries[0].UserIDs; len(got) != 2 || got[0] != "user-a" || got[1] != "user-b" {
		t.Fatalf("morning users = %v", got)
	}
	if len(roster.RestUserIDs) != 1 || roster.RestUserIDs[0] != "user-d" {
		t.Fatalf("resting users = %v", roster.RestUserIDs)
	}
}
