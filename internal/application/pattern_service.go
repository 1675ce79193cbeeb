package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/assignment"
	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/rotation"
)

// PatternService orchestrates recurrence pattern definitions. Every write
// passes structural validation so the stored catalog only ever contains
// evaluable patterns.
type PatternService struct {
	patterns    persistence.PatternRepository
	assignments persistence.AssignmentRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewPatternService wires dependencies for the pattern service.
func NewPatternService(patterns persistence.PatternRepository, assignments persistence.AssignmentRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *PatternService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &PatternService{patterns: patterns, assignments: assignments, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *PatternService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PatternService", operation, attrs...)
}

// CreatePattern validates and persists a new pattern for administrators.
func (s *PatternService) CreatePattern(ctx context.Context, principal Principal, input PatternInput) (Pattern, error) {
	if s == nil {
		return Pattern{}, fmt.Errorf("PatternService is nil")
	}
	if !principal.IsAdmin {
		return Pattern{}, ErrUnauthorized
	}

	model, vErr := buildPatternModel(s.idGenerator(), input)
	if vErr.HasErrors() {
		return Pattern{}, vErr
	}

	if err := s.patterns.CreatePattern(ctx, model); err != nil {
		err = mapPersistenceError(err)
		s.loggerWith(ctx, "CreatePattern").ErrorContext(ctx, "failed to create pattern", "error", err, "error_kind", ErrorKind(err))
		return Pattern{}, err
	}

	stored, err := s.patterns.GetPattern(ctx, model.ID)
	if err != nil {
		return Pattern{}, mapPersistenceError(err)
	}

	s.loggerWith(ctx, "CreatePattern").InfoContext(ctx, "pattern created", "pattern_id", stored.ID, "frequency", stored.Frequency)
	return toPattern(stored), nil
}

// UpdatePattern validates and updates an existing pattern for administrators.
func (s *PatternService) UpdatePattern(ctx context.Context, principal Principal, patternID string, input PatternInput) (Pattern, error) {
	if s == nil {
		return Pattern{}, fmt.Errorf("PatternService is nil")
	}
	if !principal.IsAdmin {
		return Pattern{}, ErrUnauthorized
	}

	existing, err := s.patterns.GetPattern(ctx, patternID)
	if err != nil {
		return Pattern{}, mapPersistenceError(err)
	}

	model, vErr := buildPatternModel(existing.ID, input)
	if vErr.HasErrors() {
		return Pattern{}, vErr
	}
	model.CreatedAt = existing.CreatedAt

	// Renaming and deactivation stay possible while the pattern governs
	// someone; changing how it evaluates would silently rewrite schedules.
	if patternStructureChanged(existing, model) {
		referenced, err := s.referencedByActiveAssignment(ctx, patternID)
		if err != nil {
			return Pattern{}, err
		}
		if referenced {
			return Pattern{}, fmt.Errorf("%w: the pattern is referenced by an active assignment", ErrInUse)
		}
	}

	if err := s.patterns.UpdatePattern(ctx, model); err != nil {
		return Pattern{}, mapPersistenceError(err)
	}

	stored, err := s.patterns.GetPattern(ctx, patternID)
	if err != nil {
		return Pattern{}, mapPersistenceError(err)
	}
	return toPattern(stored), nil
}

// GetPattern returns one pattern for any authenticated principal.
func (s *PatternService) GetPattern(ctx context.Context, patternID string) (Pattern, error) {
	if s == nil {
		return Pattern{}, fmt.Errorf("PatternService is nil")
	}
	stored, err := s.patterns.GetPattern(ctx, patternID)
	if err != nil {
		return Pattern{}, mapPersistenceError(err)
	}
	return toPattern(stored), nil
}

// ListPatterns returns the pattern catalog for any authenticated principal.
func (s *PatternService) ListPatterns(ctx context.Context) ([]Pattern, error) {
	if s == nil {
		return nil, fmt.Errorf("PatternService is nil")
	}
	models, err := s.patterns.ListPatterns(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	patterns := make([]Pattern, 0, len(models))
	for _, model := range models {
		patterns = append(patterns, toPattern(model))
	}
	return patterns, nil
}

// DeletePattern removes a pattern for administrators. Patterns referenced
// by assignments are refused.
func (s *PatternService) DeletePattern(ctx context.Context, principal Principal, patternID string) error {
	if s == nil {
		return fmt.Errorf("PatternService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if err := s.patterns.DeletePattern(ctx, patternID); err != nil {
		return mapPersistenceError(err)
	}
	s.loggerWith(ctx, "DeletePattern").InfoContext(ctx, "pattern deleted", "pattern_id", patternID)
	return nil
}

func (s *PatternService) referencedByActiveAssignment(ctx context.Context, patternID string) (bool, error) {
	candidates, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{})
	if err != nil {
		return false, mapPersistenceError(err)
	}
	for _, candidate := range candidates {
		if candidate.PatternID != patternID {
			continue
		}
		if candidate.Active && candidate.Status != string(assignment.StatusCancelled) {
			return true, nil
		}
	}
	return false, nil
}

// patternStructureChanged reports whether an update touches fields that
// change how the pattern evaluates.
func patternStructureChanged(a, b persistence.Pattern) bool {
	if a.Frequency != b.Frequency || a.Interval != b.Interval || !a.StartDate.Equal(b.StartDate) {
		return true
	}
	if a.EndKind != b.EndKind || !equalIntPtr(a.EndCount, b.EndCount) || !equalTimePtr(a.EndUntil, b.EndUntil) {
		return true
	}
	if !equalStringPtr(a.ShiftID, b.ShiftID) || !equalIntPtr(a.ByMonthDay, b.ByMonthDay) || !equalIntPtr(a.ByMonth, b.ByMonth) {
		return true
	}
	if a.WeekStart != b.WeekStart || a.CycleLength != b.CycleLength {
		return true
	}
	if len(a.DaysOfWeek) != len(b.DaysOfWeek) {
		return true
	}
	for i := range a.DaysOfWeek {
		if a.DaysOfWeek[i] != b.DaysOfWeek[i] {
			return true
		}
	}
	if len(a.Days) != len(b.Days) {
		return true
	}
	for i := range a.Days {
		if a.Days[i] != b.Days[i] {
			return true
		}
	}
	return false
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// PreviewPattern evaluates a stored pattern over an inclusive date range
// without touching assignments or exceptions. Coordinators use it to check
// a definition before binding anyone to it.
func (s *PatternService) PreviewPattern(ctx context.Context, patternID string, from, to time.Time) ([]ScheduleDay, error) {
	if s == nil {
		return nil, fmt.Errorf("PatternService is nil")
	}
	from = rotation.Normalize(from)
	to = rotation.Normalize(to)
	if to.Before(from) {
		vErr := &ValidationError{}
		vErr.add("range", "end date precedes start date")
		return nil, vErr
	}

	stored, err := s.patterns.GetPattern(ctx, patternID)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	evaluable, err := ToRotationPattern(stored)
	if err != nil {
		return nil, err
	}

	days := make([]ScheduleDay, 0, rotation.DaysBetween(from, to)+1)
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		outcome := rotation.Evaluate(evaluable, date)
		days = append(days, ScheduleDay{
			Date:      date,
			PatternID: stored.ID,
			Working:   outcome.Working,
			ShiftID:   outcome.ShiftID,
		})
	}
	return days, nil
}

// buildPatternModel normalizes and validates pattern input, returning the
// storage model.
func buildPatternModel(id string, input PatternInput) (persistence.Pattern, *ValidationError) {
	vErr := &ValidationError{}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}

	interval := input.Interval
	if interval == 0 {
		interval = 1
	}

	endKind := strings.ToUpper(strings.TrimSpace(input.EndKind))
	if endKind == "" {
		endKind = string(rotation.EndNever)
	}

	days := make([]persistence.PatternDay, 0, len(input.Days))
	for _, day := range input.Days {
		days = append(days, persistence.PatternDay{DayNumber: day.DayNumber, ShiftID: day.ShiftID})
	}

	model := persistence.Pattern{
		ID:          id,
		Name:        name,
		Frequency:   strings.ToUpper(strings.TrimSpace(input.Frequency)),
		Interval:    interval,
		StartDate:   rotation.Normalize(input.StartDate),
		EndKind:     endKind,
		EndCount:    input.EndCount,
		EndUntil:    input.EndUntil,
		ShiftID:     input.ShiftID,
		DaysOfWeek:  input.DaysOfWeek,
		WeekStart:   input.WeekStart,
		ByMonthDay:  input.ByMonthDay,
		ByMonth:     input.ByMonth,
		CycleLength: input.CycleLength,
		Days:        days,
		Active:      input.Active,
	}

	evaluable, err := ToRotationPattern(model)
	if err == nil {
		err = rotation.ValidatePattern(evaluable)
	}
	if err != nil {
		var rErr *rotation.ValidationError
		if errors.As(err, &rErr) {
			vErr.add("pattern", rErr.Reason)
		} else {
			vErr.add("pattern", err.Error())
		}
	}

	return model, vErr
}

// ToRotationPattern converts a stored pattern into its evaluable form.
func ToRotationPattern(model persistence.Pattern) (rotation.Pattern, error) {
	frequency, err := rotation.ParseFrequency(model.Frequency)
	if err != nil {
		return rotation.Pattern{}, err
	}

	end := rotation.EndCondition{Kind: rotation.EndKind(model.EndKind)}
	if model.EndCount != nil {
		end.Count = *model.EndCount
	}
	if model.EndUntil != nil {
		end.Until = *model.EndUntil
	}

	shiftID := ""
	if model.ShiftID != nil {
		shiftID = *model.ShiftID
	}
	byMonthDay := 0
	if model.ByMonthDay != nil {
		byMonthDay = *model.ByMonthDay
	}
	byMonth := time.Month(0)
	if model.ByMonth != nil {
		byMonth = time.Month(*model.ByMonth)
	}

	days := make([]rotation.PatternDay, 0, len(model.Days))
	for _, day := range model.Days {
		days = append(days, rotation.PatternDay{DayNumber: day.DayNumber, ShiftID: day.ShiftID})
	}

	return rotation.Pattern{
		ID:          model.ID,
		Frequency:   frequency,
		Interval:    model.Interval,
		StartDate:   model.StartDate,
		End:         end,
		ShiftID:     shiftID,
		DaysOfWeek:  model.DaysOfWeek,
		WeekStart:   model.WeekStart,
		ByMonthDay:  byMonthDay,
		ByMonth:     byMonth,
		CycleLength: model.CycleLength,
		Days:        days,
		Active:      model.Active,
	}, nil
}

func toPattern(model persistence.Pattern) Pattern {
	days := make([]PatternDayInput, 0, len(model.Days))
	for _, day := range model.Days {
		days = append(days, PatternDayInput{DayNumber: day.DayNumber, ShiftID: day.ShiftID})
	}
	return Pattern{
		ID:          model.ID,
		Name:        model.Name,
		Frequency:   model.Frequency,
		Interval:    model.Interval,
		StartDate:   model.StartDate,
		EndKind:     model.EndKind,
		EndCount:    model.EndCount,
		EndUntil:    model.EndUntil,
		ShiftID:     model.ShiftID,
		DaysOfWeek:  model.DaysOfWeek,
		WeekStart:   model.WeekStart,
		ByMonthDay:  model.ByMonthDay,
		ByMonth:     model.ByMonth,
		CycleLength: model.CycleLength,
		Days:        days,
		Active:      model.Active,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}
