package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// ShiftService orchestrates the shift type catalog.
type ShiftService struct {
	shifts      persistence.ShiftRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewShiftService wires dependencies for the shift service.
func NewShiftService(shifts persistence.ShiftRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ShiftService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ShiftService{shifts: shifts, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// CreateShift persists a new shift catalog entry for administrators.
func (s *ShiftService) CreateShift(ctx context.Context, principal Principal, input ShiftInput) (Shift, error) {
	if s == nil {
		return Shift{}, fmt.Errorf("ShiftService is nil")
	}
	if !principal.IsAdmin {
		return Shift{}, ErrUnauthorized
	}

	if vErr := validateShiftInput(input); vErr.HasErrors() {
		return Shift{}, vErr
	}

	model := persistence.Shift{
		ID:       s.idGenerator(),
		Name:     strings.TrimSpace(input.Name),
		StartsAt: input.StartsAt,
		EndsAt:   input.EndsAt,
	}
	if err := s.shifts.CreateShift(ctx, model); err != nil {
		return Shift{}, mapPersistenceError(err)
	}

	stored, err := s.shifts.GetShift(ctx, model.ID)
	if err != nil {
		return Shift{}, mapPersistenceError(err)
	}

	serviceLogger(ctx, s.logger, "ShiftService", "CreateShift").InfoContext(ctx, "shift created", "shift_id", stored.ID)
	return toShift(stored), nil
}

// UpdateShift updates an existing shift catalog entry for administrators.
func (s *ShiftService) UpdateShift(ctx context.Context, principal Principal, shiftID string, input ShiftInput) (Shift, error) {
	if s == nil {
		return Shift{}, fmt.Errorf("ShiftService is nil")
	}
	if !principal.IsAdmin {
		return Shift{}, ErrUnauthorized
	}

	existing, err := s.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return Shift{}, mapPersistenceError(err)
	}
	if vErr := validateShiftInput(input); vErr.HasErrors() {
		return Shift{}, vErr
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.StartsAt = input.StartsAt
	existing.EndsAt = input.EndsAt
	if err := s.shifts.UpdateShift(ctx, existing); err != nil {
		return Shift{}, mapPersistenceError(err)
	}

	stored, err := s.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return Shift{}, mapPersistenceError(err)
	}
	return toShift(stored), nil
}

// GetShift returns one shift for any authenticated principal.
func (s *ShiftService) GetShift(ctx context.Context, shiftID string) (Shift, error) {
	if s == nil {
		return Shift{}, fmt.Errorf("ShiftService is nil")
	}
	stored, err := s.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return Shift{}, mapPersistenceError(err)
	}
	return toShift(stored), nil
}

// ListShifts returns the shift catalog for any authenticated principal.
func (s *ShiftService) ListShifts(ctx context.Context) ([]Shift, error) {
	if s == nil {
		return nil, fmt.Errorf("ShiftService is nil")
	}
	models, err := s.shifts.ListShifts(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	shifts := make([]Shift, 0, len(models))
	for _, model := range models {
		shifts = append(shifts, toShift(model))
	}
	return shifts, nil
}

// DeleteShift removes a shift for administrators.
func (s *ShiftService) DeleteShift(ctx context.Context, principal Principal, shiftID string) error {
	if s == nil {
		return fmt.Errorf("ShiftService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if err := s.shifts.DeleteShift(ctx, shiftID); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func toShift(model persistence.Shift) Shift {
	return Shift{
		ID:        model.ID,
		Name:      model.Name,
		StartsAt:  model.StartsAt,
		EndsAt:    model.EndsAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func validateShiftInput(input ShiftInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if _, err := time.Parse("15:04", input.StartsAt); err != nil {
		vErr.add("starts_at", "starts_at must use the HH:MM form")
	}
	if _, err := time.Parse("15:04", input.EndsAt); err != nil {
		vErr.add("ends_at", "ends_at must use the HH:MM form")
	}
	return vErr
}
