package application

import (
	"context"
	"testing"
	"time"

	"github.com/calvuzs3/qdue-server/internal/rotation"
)

type bootstrapFixture struct {
	bootstrapper *Bootstrapper
	users        *fakeUserRepository
	teams        *fakeTeamRepository
	shifts       *fakeShiftRepository
	patterns     *fakePatternRepository
}

func newBootstrapperForTest() bootstrapFixture {
	users := newFakeUserRepository()
	teams := newFakeTeamRepository()
	shifts := newFakeShiftRepository()
	patterns := newFakePatternRepository()
	bootstrapper := NewBootstrapper(users, teams, shifts, patterns,
		plaintextHasher, sequentialIDs("seed"), fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)), nil)
	return bootstrapFixture{bootstrapper: bootstrapper, users: users, teams: teams, shifts: shifts, patterns: patterns}
}

func TestBootstrapper_EnsureAdmin(t *testing.T) {
	t.Parallel()
	fixture := newBootstrapperForTest()
	ctx := context.Background()

	if err := fixture.bootstrapper.EnsureAdmin(ctx, "admin@example.com", "bootstrap-password"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	created, err := fixture.users.GetUserByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if !created.IsAdmin {
		t.Fatalf("expected an administrator account")
	}

	// A second run leaves the account untouched, password included.
	if err := fixture.bootstrapper.EnsureAdmin(ctx, "admin@example.com", "different-password"); err != nil {
		t.Fatalf("second EnsureAdmin: %v", err)
	}
	unchanged, err := fixture.users.GetUserByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if unchanged.PasswordHash != created.PasswordHash {
		t.Fatalf("expected the original hash to survive reruns")
	}
}

func TestBootstrapper_EnsureRotationCatalog(t *testing.T) {
	t.Parallel()
	fixture := newBootstrapperForTest()
	ctx := context.Background()
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	if err := fixture.bootstrapper.EnsureRotationCatalog(ctx, start); err != nil {
		t.Fatalf("EnsureRotationCatalog: %v", err)
	}

	teams, err := fixture.teams.ListTeams(ctx)
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 10 {
		t.Fatalf("expected the parent plus nine half-teams, got %d", len(teams))
	}
	halves, err := fixture.teams.ListChildTeams(ctx, "team-rotation")
	if err != nil {
		t.Fatalf("ListChildTeams: %v", err)
	}
	if len(halves) != 9 {
		t.Fatalf("expected nine half-teams, got %d", len(halves))
	}

	shifts, err := fixture.shifts.ListShifts(ctx)
	if err != nil {
		t.Fatalf("ListShifts: %v", err)
	}
	if len(shifts) != 3 {
		t.Fatalf("expected three shifts, got %d", len(shifts))
	}

	patterns, err := fixture.patterns.ListPatterns(ctx)
	if err != nil {
		t.Fatalf("ListPatterns: %v", err)
	}
	if len(patterns) != 9 {
		t.Fatalf("expected nine rotation patterns, got %d", len(patterns))
	}
	for _, pattern := range patterns {
		if pattern.CycleLength != rotation.QuattroDueCycleLength {
			t.Errorf("pattern %s: expected cycle length %d, got %d", pattern.ID, rotation.QuattroDueCycleLength, pattern.CycleLength)
		}
		if len(pattern.Days) != rotation.QuattroDueCycleLength {
			t.Errorf("pattern %s: expected %d day rows, got %d", pattern.ID, rotation.QuattroDueCycleLength, len(pattern.Days))
		}
	}

	// Reruns create nothing new.
	if err := fixture.bootstrapper.EnsureRotationCatalog(ctx, start); err != nil {
		t.Fatalf("second EnsureRotationCatalog: %v", err)
	}
	teams, err = fixture.teams.ListTeams(ctx)
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 10 {
		t.Fatalf("expected the catalog unchanged after a rerun, got %d teams", len(teams))
	}
}
