package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/rotation"
)

// Bootstrapper seeds the initial records a fresh deployment needs: the
// administrator account and, optionally, the continuous four-two rotation
// catalog. Every step is idempotent so restarts are safe.
type Bootstrapper struct {
	users       persistence.UserRepository
	teams       persistence.TeamRepository
	shifts      persistence.ShiftRepository
	patterns    persistence.PatternRepository
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBootstrapper wires dependencies for initial seeding.
func NewBootstrapper(
	users persistence.UserRepository,
	teams persistence.TeamRepository,
	shifts persistence.ShiftRepository,
	patterns persistence.PatternRepository,
	hash PasswordHasher,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *Bootstrapper {
	if hash == nil {
		hash = func(password string) (string, error) {
			return HashPassword(password, DefaultArgon2idParams)
		}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &Bootstrapper{
		users:       users,
		teams:       teams,
		shifts:      shifts,
		patterns:    patterns,
		hash:        hash,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// EnsureAdmin creates the administrator account if no user owns the email
// yet. An existing account is left untouched, password included.
func (b *Bootstrapper) EnsureAdmin(ctx context.Context, email, password string) error {
	if b == nil {
		return fmt.Errorf("Bootstrapper is nil")
	}

	_, err := b.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return mapPersistenceError(err)
	}

	passwordHash, err := b.hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	user := persistence.User{
		ID:           b.idGenerator(),
		Email:        email,
		DisplayName:  "Administrator",
		PasswordHash: passwordHash,
		IsAdmin:      true,
	}
	if err := b.users.CreateUser(ctx, user); err != nil {
		return mapPersistenceError(err)
	}

	b.logger.InfoContext(ctx, "administrator account created", "user_id", user.ID)
	return nil
}

// Fixed identifiers for the seeded rotation catalog. Deterministic ids keep
// the seeding idempotent across restarts.
const (
	rotationParentTeamID = "team-rotation"
	shiftMorningID       = "shift-morning"
	shiftAfternoonID     = "shift-afternoon"
	shiftNightID         = "shift-night"
)

// EnsureRotationCatalog seeds the continuous rotation: the parent team with
// its nine half-teams, the three shifts, and one open-ended cycle pattern
// per half-team, all phase shifted from the given start date. Records that
// already exist are left untouched.
func (b *Bootstrapper) EnsureRotationCatalog(ctx context.Context, start time.Time) error {
	if b == nil {
		return fmt.Errorf("Bootstrapper is nil")
	}

	parent := persistence.Team{ID: rotationParentTeamID, Name: "Rotation"}
	if err := b.ensureTeam(ctx, parent); err != nil {
		return err
	}
	for _, label := range rotation.QuattroDueHalfTeams() {
		parentID := rotationParentTeamID
		halfTeam := persistence.Team{
			ID:       "team-rotation-" + label,
			Name:     "Half-team " + label,
			ParentID: &parentID,
		}
		if err := b.ensureTeam(ctx, halfTeam); err != nil {
			return err
		}
	}

	shifts := []persistence.Shift{
		{ID: shiftMorningID, Name: "Morning", StartsAt: "06:00", EndsAt: "14:00"},
		{ID: shiftAfternoonID, Name: "Afternoon", StartsAt: "14:00", EndsAt: "22:00"},
		{ID: shiftNightID, Name: "Night", StartsAt: "22:00", EndsAt: "06:00"},
	}
	for _, shift := range shifts {
		if err := b.ensureShift(ctx, shift); err != nil {
			return err
		}
	}

	patterns := rotation.BootstrapQuattroDue(start, shiftMorningID, shiftAfternoonID, shiftNightID, func(halfTeam string) string {
		return "pattern-rotation-" + halfTeam
	})
	for _, pattern := range patterns {
		label := pattern.ID[len("pattern-rotation-"):]
		if err := b.ensurePattern(ctx, "Rotation cycle "+label, pattern); err != nil {
			return err
		}
	}

	b.logger.InfoContext(ctx, "rotation catalog seeded",
		"half_team_count", len(rotation.QuattroDueHalfTeams()), "start", rotation.Normalize(start).Format("2006-01-02"))
	return nil
}

func (b *Bootstrapper) ensureTeam(ctx context.Context, team persistence.Team) error {
	if _, err := b.teams.GetTeam(ctx, team.ID); err == nil {
		return nil
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return mapPersistenceError(err)
	}
	if err := b.teams.CreateTeam(ctx, team); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func (b *Bootstrapper) ensureShift(ctx context.Context, shift persistence.Shift) error {
	if _, err := b.shifts.GetShift(ctx, shift.ID); err == nil {
		return nil
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return mapPersistenceError(err)
	}
	if err := b.shifts.CreateShift(ctx, shift); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func (b *Bootstrapper) ensurePattern(ctx context.Context, name string, pattern rotation.Pattern) error {
	if _, err := b.patterns.GetPattern(ctx, pattern.ID); err == nil {
		return nil
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return mapPersistenceError(err)
	}

	days := make([]persistence.PatternDay, 0, len(pattern.Days))
	for _, day := range pattern.Days {
		days = append(days, persistence.PatternDay{DayNumber: day.DayNumber, ShiftID: day.ShiftID})
	}
	model := persistence.Pattern{
		ID:          pattern.ID,
		Name:        name,
		Frequency:   string(pattern.Frequency),
		Interval:    pattern.Interval,
		StartDate:   pattern.StartDate,
		EndKind:     string(pattern.End.Kind),
		CycleLength: pattern.CycleLength,
		Days:        days,
		Active:      pattern.Active,
	}
	if err := b.patterns.CreatePattern(ctx, model); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}
