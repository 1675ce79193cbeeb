package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(MemoryConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func seedUser(t *testing.T, store *Store, id, email string) {
	t.Helper()
	err := store.Users().CreateUser(context.Background(), persistence.User{
		ID:           id,
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", id, err)
	}
}

func TestUserRepository_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedUser(t, store, "user-1", "Rossi@Example.COM")

	// Email lookup is case-insensitive via normalization.
	user, err := store.Users().GetUserByEmail(ctx, "rossi@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user.ID != "user-1" || user.Email != "rossi@example.com" {
		t.Fatalf("user = %+v", user)
	}

	if err := store.Users().CreateUser(ctx, persistence.User{
		ID:           "user-2",
		Email:        "rossi@example.com",
		PasswordHash: "hash",
	}); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for reused email, got %v", err)
	}

	user.Disabled = true
	if err := store.Users().UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	updated, err := store.Users().GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !updated.Disabled {
		t.Fatal("disabled flag not persisted")
	}

	if _, err := store.Users().GetUser(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTeamRepository_HalfTeams(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Teams().CreateTeam(ctx, persistence.Team{ID: "team-1", Name: "Plant"}); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	parent := "team-1"
	for _, half := range []string{"A", "B", "C"} {
		err := store.Teams().CreateTeam(ctx, persistence.Team{
			ID:       "half-" + half,
			Name:     "Half-team " + half,
			ParentID: &parent,
		})
		if err != nil {
			t.Fatalf("CreateTeam(half %s): %v", half, err)
		}
	}

	children, err := store.Teams().ListChildTeams(ctx, "team-1")
	if err != nil {
		t.Fatalf("ListChildTeams: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("children = %d, want 3", len(children))
	}
	if children[0].ParentID == nil || *children[0].ParentID != "team-1" {
		t.Fatalf("child parent = %v", children[0].ParentID)
	}

	// A parent with children cannot be deleted.
	if err := store.Teams().DeleteTeam(ctx, "team-1"); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
	if err := store.Teams().DeleteTeam(ctx, "half-A"); err != nil {
		t.Fatalf("DeleteTeam(half-A): %v", err)
	}
}

func TestShiftRepository_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	shifts := []persistence.Shift{
		{ID: "night", Name: "Night", StartsAt: "22:00", EndsAt: "06:00"},
		{ID: "morning", Name: "Morning", StartsAt: "06:00", EndsAt: "14:00"},
		{ID: "afternoon", Name: "Afternoon", StartsAt: "14:00", EndsAt: "22:00"},
	}
	for _, shift := range shifts {
		if err := store.Shifts().CreateShift(ctx, shift); err != nil {
			t.Fatalf("CreateShift(%s): %v", shift.ID, err)
		}
	}

	listed, err := store.Shifts().ListShifts(ctx)
	if err != nil {
		t.Fatalf("ListShifts: %v", err)
	}
	if len(listed) != 3 || listed[0].ID != "morning" || listed[2].ID != "night" {
		t.Fatalf("shift order = %+v", listed)
	}

	// The night shift crosses midnight; both bounds survive the round trip.
	night, err := store.Shifts().GetShift(ctx, "night")
	if err != nil {
		t.Fatalf("GetShift: %v", err)
	}
	if night.StartsAt != "22:00" || night.EndsAt != "06:00" {
		t.Fatalf("night shift = %+v", night)
	}

	if err := store.Shifts().CreateShift(ctx, persistence.Shift{
		ID: "bad", Name: "Bad", StartsAt: "25:99", EndsAt: "06:00",
	}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for bad clock time, got %v", err)
	}
}

func TestPatternRepository_CycleDays(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pattern := persistence.Pattern{
		ID:          "pattern-1",
		Name:        "Three day cycle",
		Frequency:   "ROTATION_CYCLE",
		Interval:    1,
		StartDate:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndKind:     "NEVER",
		CycleLength: 3,
		Days: []persistence.PatternDay{
			{DayNumber: 1, ShiftID: "morning"},
			{DayNumber: 2, ShiftID: "night"},
			{DayNumber: 3, ShiftID: ""},
		},
		Active: true,
	}
	if err := store.Patterns().CreatePattern(ctx, pattern); err != nil {
		t.Fatalf("CreatePattern: %v", err)
	}

	loaded, err := store.Patterns().GetPattern(ctx, "pattern-1")
	if err != nil {
		t.Fatalf("GetPattern: %v", err)
	}
	if !loaded.StartDate.Equal(pattern.StartDate) {
		t.Fatalf("start date = %s", loaded.StartDate)
	}
	if len(loaded.Days) != 3 || loaded.Days[1].ShiftID != "night" || loaded.Days[2].ShiftID != "" {
		t.Fatalf("days = %+v", loaded.Days)
	}

	// Updates rewrite the day rows wholesale.
	loaded.CycleLength = 2
	loaded.Days = []persistence.PatternDay{
		{DayNumber: 1, ShiftID: "afternoon"},
		{DayNumber: 2, ShiftID: ""},
	}
	if err := store.Patterns().UpdatePattern(ctx, loaded); err != nil {
		t.Fatalf("UpdatePattern: %v", err)
	}
	reloaded, err := store.Patterns().GetPattern(ctx, "pattern-1")
	if err != nil {
		t.Fatalf("GetPattern after update: %v", err)
	}
	if len(reloaded.Days) != 2 || reloaded.Days[0].ShiftID != "afternoon" {
		t.Fatalf("days after update = %+v", reloaded.Days)
	}
}

func TestPatternRepository_WeeklyFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count := 10
	pattern := persistence.Pattern{
		ID:         "pattern-w",
		Name:       "Weekly coverage",
		Frequency:  "WEEKLY",
		Interval:   2,
		StartDate:  time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndKind:    "COUNT",
		EndCount:   &count,
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		WeekStart:  time.Monday,
		Active:     true,
	}
	if err := store.Patterns().CreatePattern(ctx, pattern); err != nil {
		t.Fatalf("CreatePattern: %v", err)
	}

	loaded, err := store.Patterns().GetPattern(ctx, "pattern-w")
	if err != nil {
		t.Fatalf("GetPattern: %v", err)
	}
	if len(loaded.DaysOfWeek) != 3 || loaded.DaysOfWeek[0] != time.Monday || loaded.DaysOfWeek[2] != time.Friday {
		t.Fatalf("weekdays = %v", loaded.DaysOfWeek)
	}
	if loaded.EndCount == nil || *loaded.EndCount != 10 {
		t.Fatalf("end count = %v", loaded.EndCount)
	}
	if loaded.WeekStart != time.Monday {
		t.Fatalf("week start = %s", loaded.WeekStart)
	}
}

func seedAssignmentFixtures(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()

	seedUser(t, store, "user-1", "one@example.com")
	seedUser(t, store, "user-2", "two@example.com")
	if err := store.Teams().CreateTeam(ctx, persistence.Team{ID: "team-1", Name: "Plant"}); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if err := store.Patterns().CreatePattern(ctx, persistence.Pattern{
		ID: "pattern-1", Name: "Cycle", Frequency: "ROTATION_CYCLE", Interval: 1,
		StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndKind:   "NEVER", CycleLength: 1,
		Days:   []persistence.PatternDay{{DayNumber: 1, ShiftID: "morning"}},
		Active: true,
	}); err != nil {
		t.Fatalf("CreatePattern: %v", err)
	}
}

func TestAssignmentRepository_Filter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedAssignmentFixtures(t, store)

	end := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
	assignments := []persistence.Assignment{
		{ID: "a-1", UserID: "user-1", TeamID: "team-1", PatternID: "pattern-1",
			StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			Priority:  "NORMAL", Status: "ACTIVE", Active: true},
		{ID: "a-2", UserID: "user-1", TeamID: "team-1", PatternID: "pattern-1",
			StartDate: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   &end,
			Priority:  "HIGH", Status: "ACTIVE", Active: true},
		{ID: "a-3", UserID: "user-2", TeamID: "team-1", PatternID: "pattern-1",
			StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			Priority:  "NORMAL", Status: "ACTIVE", Active: true},
	}
	for _, a := range assignments {
		if err := store.Assignments().CreateAssignment(ctx, a); err != nil {
			t.Fatalf("CreateAssignment(%s): %v", a.ID, err)
		}
	}

	byUser, err := store.Assignments().ListAssignments(ctx, persistence.AssignmentFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListAssignments by user: %v", err)
	}
	if len(byUser) != 2 || byUser[0].ID != "a-1" || byUser[1].ID != "a-2" {
		t.Fatalf("by user = %+v", byUser)
	}

	// April is past a-2's end date; only the open-ended assignment covers it.
	april := time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC)
	covering, err := store.Assignments().ListAssignments(ctx, persistence.AssignmentFilter{
		UserID:     "user-1",
		CoversDate: &april,
	})
	if err != nil {
		t.Fatalf("ListAssignments covering: %v", err)
	}
	if len(covering) != 1 || covering[0].ID != "a-1" {
		t.Fatalf("covering = %+v", covering)
	}

	if err := store.Assignments().CreateAssignment(ctx, persistence.Assignment{
		ID: "a-bad", UserID: "user-1", TeamID: "team-1", PatternID: "pattern-1",
		StartDate: end, EndDate: &assignments[0].StartDate,
		Priority: "NORMAL", Status: "ACTIVE", Active: true,
	}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for inverted window, got %v", err)
	}
}

func TestExceptionRepository_Filter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", "one@example.com")

	newShift := "night"
	exceptions := []persistence.Exception{
		{ID: "e-1", UserID: "user-1", TargetDate: time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC),
			Type: "ABSENCE_VACATION", Status: "APPROVED", Priority: "NORMAL",
			RequiresApproval: true, Active: true},
		{ID: "e-2", UserID: "user-1", TargetDate: time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC),
			Type: "CHANGE_SHIFT", Status: "PENDING", Priority: "NORMAL",
			RequiresApproval: true, NewShiftID: &newShift, Active: true},
	}
	for _, e := range exceptions {
		if err := store.Exceptions().CreateException(ctx, e); err != nil {
			t.Fatalf("CreateException(%s): %v", e.ID, err)
		}
	}

	from := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC)
	windowed, err := store.Exceptions().ListExceptions(ctx, persistence.ExceptionFilter{
		UserID: "user-1",
		From:   &from,
		To:     &to,
	})
	if err != nil {
		t.Fatalf("ListExceptions windowed: %v", err)
	}
	if len(windowed) != 1 || windowed[0].ID != "e-1" {
		t.Fatalf("windowed = %+v", windowed)
	}

	pending, err := store.Exceptions().ListExceptions(ctx, persistence.ExceptionFilter{Status: "PENDING"})
	if err != nil {
		t.Fatalf("ListExceptions pending: %v", err)
	}
	if len(pending) != 1 || pending[0].NewShiftID == nil || *pending[0].NewShiftID != "night" {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestSessionRepository_RevokeAndExpire(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", "one@example.com")

	expires := time.Now().Add(time.Hour).UTC()
	_, err := store.Sessions().CreateSession(ctx, persistence.Session{
		ID:        "s-1",
		UserID:    "user-1",
		Token:     "token-1",
		ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	session, err := store.Sessions().GetSession(ctx, "token-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.RevokedAt != nil {
		t.Fatalf("fresh session already revoked: %+v", session)
	}

	rotated, err := store.Sessions().UpdateSession(ctx, persistence.Session{
		ID:        "s-1",
		UserID:    "user-1",
		Token:     "token-1b",
		ExpiresAt: expires.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if rotated.Token != "token-1b" {
		t.Fatalf("rotated token = %q", rotated.Token)
	}
	if _, err := store.Sessions().GetSession(ctx, "token-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected the old token to be gone, got %v", err)
	}

	revoked, err := store.Sessions().RevokeSession(ctx, "token-1b", time.Now())
	if err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if revoked.RevokedAt == nil {
		t.Fatal("revocation timestamp missing")
	}

	// Revoking twice reports not found since the revoked filter excludes it.
	if _, err := store.Sessions().RevokeSession(ctx, "token-1b", time.Now()); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second revoke, got %v", err)
	}

	if err := store.Sessions().DeleteExpiredSessions(ctx, time.Now()); err != nil {
		t.Fatalf("DeleteExpiredSessions: %v", err)
	}
	if _, err := store.Sessions().GetSession(ctx, "token-1b"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected revoked session to be purged, got %v", err)
	}
}
