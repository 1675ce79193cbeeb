package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

type assignmentServiceFixture struct {
	service  *AssignmentService
	users    *fakeUserRepository
	teams    *fakeTeamRepository
	patterns *fakePatternRepository
}

func newAssignmentServiceForTest(t *testing.T) assignmentServiceFixture {
	t.Helper()

	users := newFakeUserRepository()
	teams := newFakeTeamRepository()
	patterns := newFakePatternRepository()
	assignments := newFakeAssignmentRepository()

	ctx := context.Background()
	if err := users.CreateUser(ctx, mustUser("user-1", "worker@example.com")); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := teams.CreateTeam(ctx, mustTeam("team-1", "Rotation")); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	if err := patterns.CreatePattern(ctx, mustCyclePattern("pattern-1", 4)); err != nil {
		t.Fatalf("seed pattern: %v", err)
	}

	service := NewAssignmentService(assignments, users, teams, patterns,
		sequentialIDs("assignment"), fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)), nil)
	return assignmentServiceFixture{service: service, users: users, teams: teams, patterns: patterns}
}

func TestAssignmentService_CreateAssignment(t *testing.T) {
	t.Parallel()

	t.Run("validates referenced records", func(t *testing.T) {
		t.Parallel()
		fixture := newAssignmentServiceForTest(t)

		_, _, err := fixture.service.CreateAssignment(context.Background(), adminPrincipal, AssignmentInput{
			UserID:    "missing-user",
			TeamID:    "missing-team",
			PatternID: "missing-pattern",
			StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"user_id", "team_id", "pattern_id"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Errorf("expected a field error for %s, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("rejects an inverted validity window", func(t *testing.T) {
		t.Parallel()
		fixture := newAssignmentServiceForTest(t)

		end := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		_, _, err := fixture.service.CreateAssignment(context.Background(), adminPrincipal, AssignmentInput{
			UserID:    "user-1",
			TeamID:    "team-1",
			PatternID: "pattern-1",
			StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			EndDate:   &end,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["end_date"]; !ok {
			t.Fatalf("expected an end_date field error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("reports window overlaps without refusing the write", func(t *testing.T) {
		t.Parallel()
		fixture := newAssignmentServiceForTest(t)
		ctx := context.Background()

		first, overlaps, err := fixture.service.CreateAssignment(ctx, adminPrincipal, AssignmentInput{
			UserID:    "user-1",
			TeamID:    "team-1",
			PatternID: "pattern-1",
			StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("first CreateAssignment: %v", err)
		}
		if len(overlaps) != 0 {
			t.Fatalf("expected no overlaps for the first assignment, got %d", len(overlaps))
		}

		second, overlaps, err := fixture.service.CreateAssignment(ctx, adminPrincipal, AssignmentInput{
			UserID:    "user-1",
			TeamID:    "team-1",
			PatternID: "pattern-1",
			StartDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			Priority:  "HIGH",
		})
		if err != nil {
			t.Fatalf("second CreateAssignment: %v", err)
		}
		if len(overlaps) != 1 || overlaps[0].ID != first.ID {
			t.Fatalf("expected the first assignment reported as overlap, got %v", overlaps)
		}
		if second.Priority != "HIGH" {
			t.Fatalf("expected HIGH priority persisted, got %q", second.Priority)
		}
	})

	t.Run("rejects an unknown priority label", func(t *testing.T) {
		t.Parallel()
		fixture := newAssignmentServiceForTest(t)

		_, _, err := fixture.service.CreateAssignment(context.Background(), adminPrincipal, AssignmentInput{
			UserID:    "user-1",
			TeamID:    "team-1",
			PatternID: "pattern-1",
			StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			Priority:  "URGENT",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestAssignmentService_CancelAssignment(t *testing.T) {
	t.Parallel()
	fixture := newAssignmentServiceForTest(t)
	ctx := context.Background()

	created, _, err := fixture.service.CreateAssignment(ctx, adminPrincipal, AssignmentInput{
		UserID:    "user-1",
		TeamID:    "team-1",
		PatternID: "pattern-1",
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	cancelled, err := fixture.service.CancelAssignment(ctx, adminPrincipal, created.ID)
	if err != nil {
		t.Fatalf("CancelAssignment: %v", err)
	}
	if cancelled.Status != "CANCELLED" {
		t.Fatalf("expected CANCELLED status, got %q", cancelled.Status)
	}
	if !cancelled.Active {
		t.Fatalf("cancellation must keep the record active for history")
	}
}

func TestAssignmentService_SuspendAndResume(t *testing.T) {
	t.Parallel()
	fixture := newAssignmentServiceForTest(t)
	ctx := context.Background()

	created, _, err := fixture.service.CreateAssignment(ctx, adminPrincipal, AssignmentInput{
		UserID:    "user-1",
		TeamID:    "team-1",
		PatternID: "pattern-1",
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	t.Run("suspension pauses governance and resumption restores it", func(t *testing.T) {
		suspended, err := fixture.service.SuspendAssignment(ctx, adminPrincipal, created.ID)
		if err != nil {
			t.Fatalf("SuspendAssignment: %v", err)
		}
		if suspended.Status != "SUSPENDED" || suspended.Active {
			t.Fatalf("expected an inactive SUSPENDED record, got status=%q active=%v", suspended.Status, suspended.Active)
		}

		resumed, err := fixture.service.ResumeAssignment(ctx, adminPrincipal, created.ID)
		if err != nil {
			t.Fatalf("ResumeAssignment: %v", err)
		}
		if resumed.Status != "ACTIVE" || !resumed.Active {
			t.Fatalf("expected an active ACTIVE record, got status=%q active=%v", resumed.Status, resumed.Active)
		}
	})

	t.Run("requires administrator privileges", func(t *testing.T) {
		_, err := fixture.service.SuspendAssignment(ctx, Principal{UserID: "user-1"}, created.ID)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("cancelled assignments stay cancelled", func(t *testing.T) {
		if _, err := fixture.service.CancelAssignment(ctx, adminPrincipal, created.ID); err != nil {
			t.Fatalf("CancelAssignment: %v", err)
		}
		_, err := fixture.service.SuspendAssignment(ctx, adminPrincipal, created.ID)
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
		_, err = fixture.service.ResumeAssignment(ctx, adminPrincipal, created.ID)
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})
}

func TestAssignmentService_ListAssignments(t *testing.T) {
	t.Parallel()
	fixture := newAssignmentServiceForTest(t)
	ctx := context.Background()

	if err := fixture.users.CreateUser(ctx, mustUser("user-2", "other@example.com")); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	for _, userID := range []string{"user-1", "user-2"} {
		if _, _, err := fixture.service.CreateAssignment(ctx, adminPrincipal, AssignmentInput{
			UserID:    userID,
			TeamID:    "team-1",
			PatternID: "pattern-1",
			StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("CreateAssignment %s: %v", userID, err)
		}
	}

	t.Run("non-admin principals only see their own records", func(t *testing.T) {
		t.Parallel()
		listed, err := fixture.service.ListAssignments(ctx, Principal{UserID: "user-1"}, assignmentFilterAll())
		if err != nil {
			t.Fatalf("ListAssignments: %v", err)
		}
		if len(listed) != 1 || listed[0].UserID != "user-1" {
			t.Fatalf("expected only user-1 assignments, got %v", listed)
		}
	})

	t.Run("non-admin principals cannot query other users", func(t *testing.T) {
		t.Parallel()
		filter := assignmentFilterAll()
		filter.UserID = "user-2"
		_, err := fixture.service.ListAssignments(ctx, Principal{UserID: "user-1"}, filter)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("administrators see everything", func(t *testing.T) {
		t.Parallel()
		listed, err := fixture.service.ListAssignments(ctx, adminPrincipal, assignmentFilterAll())
		if err != nil {
			t.Fatalf("ListAssignments: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("expected 2 assignments, got %d", len(listed))
		}
	})
}
