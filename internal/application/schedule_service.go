package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvuzs3/qdue-server/internal/assignment"
	"github.com/calvuzs3/qdue-server/internal/calendar"
	"github.com/calvuzs3/qdue-server/internal/composer"
	"github.com/calvuzs3/qdue-server/internal/exception"
	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/rotation"
)

// ScheduleService composes the final schedule views. It loads a consistent
// snapshot of patterns, assignments, and exceptions, then delegates the
// per-day work to the composer. Per-day problems surface as diagnostics in
// the result rather than failing the whole request.
type ScheduleService struct {
	patterns    persistence.PatternRepository
	assignments persistence.AssignmentRepository
	exceptions  persistence.ExceptionRepository
	closures    *calendar.Calendar
	composer    composer.Composer
	rosters     *rosterCache
	now         func() time.Time
	logger      *slog.Logger
}

// NewScheduleService wires dependencies for the schedule service. A nil
// closure calendar means no plant closures apply.
func NewScheduleService(
	patterns persistence.PatternRepository,
	assignments persistence.AssignmentRepository,
	exceptions persistence.ExceptionRepository,
	closures *calendar.Calendar,
	now func() time.Time,
	logger *slog.Logger,
) *ScheduleService {
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		patterns:    patterns,
		assignments: assignments,
		exceptions:  exceptions,
		closures:    closures,
		rosters:     newRosterCache(defaultRosterCacheTTL, now),
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

// UserScheduleRange composes the schedule for one user over an inclusive
// date range: exactly one entry per calendar date, in date order. Non-admin
// principals may only read their own schedule.
func (s *ScheduleService) UserScheduleRange(ctx context.Context, principal Principal, userID string, from, to time.Time) (UserScheduleResult, error) {
	if s == nil {
		return UserScheduleResult{}, fmt.Errorf("ScheduleService is nil")
	}
	if !principal.IsAdmin && principal.UserID != userID {
		return UserScheduleResult{}, ErrUnauthorized
	}

	from = rotation.Normalize(from)
	to = rotation.Normalize(to)
	if to.Before(from) {
		vErr := &ValidationError{}
		vErr.add("range", "end date precedes start date")
		return UserScheduleResult{}, vErr
	}

	snap, err := s.loadUserSnapshot(ctx, userID, from, to)
	if err != nil {
		return UserScheduleResult{}, err
	}

	result, err := s.composer.ComposeRange(ctx, userID, from, to, snap)
	if err != nil {
		return UserScheduleResult{}, err
	}

	out := UserScheduleResult{
		Days:        make([]ScheduleDay, 0, len(result.Days)),
		Diagnostics: toScheduleDiagnostics(result.Diagnostics),
	}
	for _, day := range result.Days {
		out.Days = append(out.Days, toScheduleDay(day))
	}

	s.loggerWith(ctx, "UserScheduleRange").DebugContext(ctx, "schedule composed",
		"user_id", userID, "day_count", len(out.Days), "diagnostic_count", len(out.Diagnostics))
	return out, nil
}

// TeamRoster composes the single-date roster for a team: every governed
// user grouped by resulting shift, plus the resting users. Results are
// cached briefly; writes through the mutating services invalidate the
// cache.
func (s *ScheduleService) TeamRoster(ctx context.Context, teamID string, date time.Time) (TeamRosterResult, error) {
	if s == nil {
		return TeamRosterResult{}, fmt.Errorf("ScheduleService is nil")
	}
	date = rotation.Normalize(date)

	key := rosterCacheKey(teamID, date)
	if cached, ok := s.rosters.get(key); ok {
		return cached, nil
	}

	snap, err := s.loadRosterSnapshot(ctx, date)
	if err != nil {
		return TeamRosterResult{}, err
	}

	roster, err := s.composer.ComposeTeamRoster(ctx, teamID, date, snap)
	if err != nil {
		return TeamRosterResult{}, err
	}

	out := TeamRosterResult{
		TeamID:      roster.TeamID,
		Date:        roster.Date,
		Shifts:      make([]RosterShift, 0, len(roster.Entries)),
		RestUserIDs: roster.RestUserIDs,
		Diagnostics: toScheduleDiagnostics(roster.Diagnostics),
	}
	for _, entry := range roster.Entries {
		out.Shifts = append(out.Shifts, RosterShift{ShiftID: entry.ShiftID, UserIDs: entry.UserIDs})
	}

	s.rosters.set(key, out)
	s.loggerWith(ctx, "TeamRoster").DebugContext(ctx, "roster composed",
		"team_id", teamID, "date", date.Format("2006-01-02"), "shift_count", len(out.Shifts))
	return out, nil
}

// InvalidateRosters drops every cached roster. Mutating services call this
// after any write that can change a composed schedule.
func (s *ScheduleService) InvalidateRosters() {
	if s == nil {
		return
	}
	s.rosters.invalidate()
}

// loadUserSnapshot gathers the records that can influence the user's
// schedule over the range.
func (s *ScheduleService) loadUserSnapshot(ctx context.Context, userID string, from, to time.Time) (composer.Snapshot, error) {
	assignments, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{UserID: userID})
	if err != nil {
		return composer.Snapshot{}, mapPersistenceError(err)
	}
	exceptions, err := s.exceptions.ListExceptions(ctx, persistence.ExceptionFilter{UserID: userID, From: &from, To: &to})
	if err != nil {
		return composer.Snapshot{}, mapPersistenceError(err)
	}
	return s.buildSnapshot(ctx, assignments, exceptions)
}

// loadRosterSnapshot gathers every assignment covering the date, so a user
// governed by another team on that date is recognized as such.
func (s *ScheduleService) loadRosterSnapshot(ctx context.Context, date time.Time) (composer.Snapshot, error) {
	assignments, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{CoversDate: &date})
	if err != nil {
		return composer.Snapshot{}, mapPersistenceError(err)
	}
	exceptions, err := s.exceptions.ListExceptions(ctx, persistence.ExceptionFilter{From: &date, To: &date})
	if err != nil {
		return composer.Snapshot{}, mapPersistenceError(err)
	}
	return s.buildSnapshot(ctx, assignments, exceptions)
}

func (s *ScheduleService) buildSnapshot(ctx context.Context, storedAssignments []persistence.Assignment, storedExceptions []persistence.Exception) (composer.Snapshot, error) {
	snap := composer.Snapshot{
		Patterns:    make(map[string]rotation.Pattern),
		Assignments: make([]assignment.Assignment, 0, len(storedAssignments)),
		Exceptions:  make([]exception.Exception, 0, len(storedExceptions)),
		Closures:    s.closures,
	}

	for _, stored := range storedAssignments {
		converted, err := toResolverAssignment(stored)
		if err != nil {
			return composer.Snapshot{}, err
		}
		snap.Assignments = append(snap.Assignments, converted)
	}
	for _, stored := range storedExceptions {
		snap.Exceptions = append(snap.Exceptions, toOverlayException(stored))
	}

	// A stored pattern that no longer converts is left out of the map; the
	// composer reports it per day as a missing pattern instead of failing
	// the batch.
	patterns, err := s.patterns.ListPatterns(ctx)
	if err != nil {
		return composer.Snapshot{}, mapPersistenceError(err)
	}
	for _, stored := range patterns {
		converted, err := ToRotationPattern(stored)
		if err != nil {
			s.logger.Warn("skipping unconvertible pattern", "pattern_id", stored.ID, "error", err)
			continue
		}
		snap.Patterns[stored.ID] = converted
	}

	return snap, nil
}

func toScheduleDay(day composer.Day) ScheduleDay {
	return ScheduleDay{
		Date:                day.Date,
		UserID:              day.UserID,
		AssignmentID:        day.AssignmentID,
		TeamID:              day.TeamID,
		PatternID:           day.PatternID,
		Working:             day.Working,
		ShiftID:             day.ShiftID,
		Reduced:             day.Reduced,
		ReducedStart:        day.ReducedStart,
		ReducedEnd:          day.ReducedEnd,
		Closed:              day.Closed,
		ClosureName:         day.ClosureName,
		AppliedExceptionIDs: day.AppliedExceptionIDs,
	}
}

func toScheduleDiagnostics(diagnostics []composer.Diagnostic) []ScheduleDiagnostic {
	out := make([]ScheduleDiagnostic, 0, len(diagnostics))
	for _, diagnostic := range diagnostics {
		out = append(out, ScheduleDiagnostic{
			Date:   diagnostic.Date,
			UserID: diagnostic.UserID,
			Kind:   diagnostic.Kind,
			Detail: diagnostic.Detail,
		})
	}
	return out
}
