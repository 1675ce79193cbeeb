package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/exception"
	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/rotation"
)

// ExceptionConflict mirrors an equal-priority override collision for callers.
type ExceptionConflict struct {
	Date         time.Time
	ExceptionIDs []string
	Reason       string
}

// ExceptionService orchestrates schedule exceptions and their approval
// workflow. Writes that would collide with an equal-priority effective
// exception are reported, never refused.
type ExceptionService struct {
	exceptions  persistence.ExceptionRepository
	users       persistence.UserRepository
	shifts      persistence.ShiftRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewExceptionService wires dependencies for the exception service.
func NewExceptionService(
	exceptions persistence.ExceptionRepository,
	users persistence.UserRepository,
	shifts persistence.ShiftRepository,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *ExceptionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ExceptionService{
		exceptions:  exceptions,
		users:       users,
		shifts:      shifts,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ExceptionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ExceptionService", operation, attrs...)
}

// CreateException records a new draft exception. Users may file exceptions
// for themselves; administrators for anyone. The second return value lists
// equal-priority collisions with already effective exceptions on the date.
func (s *ExceptionService) CreateException(ctx context.Context, principal Principal, input ExceptionInput) (Exception, []ExceptionConflict, error) {
	if s == nil {
		return Exception{}, nil, fmt.Errorf("ExceptionService is nil")
	}
	if !principal.IsAdmin && principal.UserID != input.UserID {
		return Exception{}, nil, ErrUnauthorized
	}

	model, vErr := s.buildExceptionModel(ctx, s.idGenerator(), input)
	if vErr.HasErrors() {
		return Exception{}, nil, vErr
	}

	conflicts, err := s.detectConflicts(ctx, model)
	if err != nil {
		return Exception{}, nil, err
	}

	if err := s.exceptions.CreateException(ctx, model); err != nil {
		err = mapPersistenceError(err)
		s.loggerWith(ctx, "CreateException").ErrorContext(ctx, "failed to create exception", "error", err, "error_kind", ErrorKind(err))
		return Exception{}, nil, err
	}

	stored, err := s.exceptions.GetException(ctx, model.ID)
	if err != nil {
		return Exception{}, nil, mapPersistenceError(err)
	}

	s.loggerWith(ctx, "CreateException").InfoContext(ctx, "exception created",
		"exception_id", stored.ID, "user_id", stored.UserID, "type", stored.Type, "conflict_count", len(conflicts))
	return toException(stored), conflicts, nil
}

// UpdateException replaces the mutable fields of a draft exception. Only
// drafts may change; submitted and decided exceptions are frozen.
func (s *ExceptionService) UpdateException(ctx context.Context, principal Principal, exceptionID string, input ExceptionInput) (Exception, []ExceptionConflict, error) {
	if s == nil {
		return Exception{}, nil, fmt.Errorf("ExceptionService is nil")
	}

	existing, err := s.exceptions.GetException(ctx, exceptionID)
	if err != nil {
		return Exception{}, nil, mapPersistenceError(err)
	}
	if !principal.IsAdmin && principal.UserID != existing.UserID {
		return Exception{}, nil, ErrUnauthorized
	}
	if existing.Status != string(exception.StatusDraft) {
		return Exception{}, nil, fmt.Errorf("%w: only drafts can be edited", ErrInvalidState)
	}

	model, vErr := s.buildExceptionModel(ctx, existing.ID, input)
	if vErr.HasErrors() {
		return Exception{}, nil, vErr
	}
	model.CreatedAt = existing.CreatedAt

	conflicts, err := s.detectConflicts(ctx, model)
	if err != nil {
		return Exception{}, nil, err
	}

	if err := s.exceptions.UpdateException(ctx, model); err != nil {
		return Exception{}, nil, mapPersistenceError(err)
	}

	stored, err := s.exceptions.GetException(ctx, exceptionID)
	if err != nil {
		return Exception{}, nil, mapPersistenceError(err)
	}
	return toException(stored), conflicts, nil
}

// SubmitException moves a draft into the pending approval queue.
func (s *ExceptionService) SubmitException(ctx context.Context, principal Principal, exceptionID string) (Exception, error) {
	return s.transition(ctx, principal, exceptionID, "SubmitException", false,
		func(e exception.Exception) (exception.Exception, error) {
			return exception.Submit(e)
		})
}

// ApproveException finalizes a pending exception, recording the approver.
func (s *ExceptionService) ApproveException(ctx context.Context, principal Principal, exceptionID string) (Exception, error) {
	return s.transition(ctx, principal, exceptionID, "ApproveException", true,
		func(e exception.Exception) (exception.Exception, error) {
			return exception.Approve(e, principal.UserID, s.now().UTC())
		})
}

// RejectException finalizes a pending exception as refused.
func (s *ExceptionService) RejectException(ctx context.Context, principal Principal, exceptionID string) (Exception, error) {
	return s.transition(ctx, principal, exceptionID, "RejectException", true,
		func(e exception.Exception) (exception.Exception, error) {
			return exception.Reject(e, principal.UserID, s.now().UTC())
		})
}

func (s *ExceptionService) transition(ctx context.Context, principal Principal, exceptionID, operation string, adminOnly bool, apply func(exception.Exception) (exception.Exception, error)) (Exception, error) {
	if s == nil {
		return Exception{}, fmt.Errorf("ExceptionService is nil")
	}

	existing, err := s.exceptions.GetException(ctx, exceptionID)
	if err != nil {
		return Exception{}, mapPersistenceError(err)
	}
	if adminOnly {
		if !principal.IsAdmin {
			return Exception{}, ErrUnauthorized
		}
	} else if !principal.IsAdmin && principal.UserID != existing.UserID {
		return Exception{}, ErrUnauthorized
	}

	transitioned, err := apply(toOverlayException(existing))
	if err != nil {
		if errors.Is(err, exception.ErrTerminalState) || errors.Is(err, exception.ErrInvalidTransition) {
			return Exception{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		return Exception{}, err
	}

	updated := applyOverlayException(existing, transitioned)
	if err := s.exceptions.UpdateException(ctx, updated); err != nil {
		return Exception{}, mapPersistenceError(err)
	}

	stored, err := s.exceptions.GetException(ctx, exceptionID)
	if err != nil {
		return Exception{}, mapPersistenceError(err)
	}

	s.loggerWith(ctx, operation).InfoContext(ctx, "exception transitioned",
		"exception_id", exceptionID, "status", stored.Status)
	return toException(stored), nil
}

// DeactivateException hides an exception administratively. Unlike the
// approval transitions this is allowed from any state.
func (s *ExceptionService) DeactivateException(ctx context.Context, principal Principal, exceptionID string) (Exception, error) {
	if s == nil {
		return Exception{}, fmt.Errorf("ExceptionService is nil")
	}
	if !principal.IsAdmin {
		return Exception{}, ErrUnauthorized
	}

	existing, err := s.exceptions.GetException(ctx, exceptionID)
	if err != nil {
		return Exception{}, mapPersistenceError(err)
	}

	updated := applyOverlayException(existing, exception.Deactivate(toOverlayException(existing)))
	if err := s.exceptions.UpdateException(ctx, updated); err != nil {
		return Exception{}, mapPersistenceError(err)
	}

	stored, err := s.exceptions.GetException(ctx, exceptionID)
	if err != nil {
		return Exception{}, mapPersistenceError(err)
	}
	s.loggerWith(ctx, "DeactivateException").InfoContext(ctx, "exception deactivated", "exception_id", exceptionID)
	return toException(stored), nil
}

// GetException returns one exception. Non-admin principals may only read
// their own.
func (s *ExceptionService) GetException(ctx context.Context, principal Principal, exceptionID string) (Exception, error) {
	if s == nil {
		return Exception{}, fmt.Errorf("ExceptionService is nil")
	}
	stored, err := s.exceptions.GetException(ctx, exceptionID)
	if err != nil {
		return Exception{}, mapPersistenceError(err)
	}
	if !principal.IsAdmin && principal.UserID != stored.UserID {
		return Exception{}, ErrUnauthorized
	}
	return toException(stored), nil
}

// ListExceptions returns exceptions matching the filter. Non-admin
// principals are restricted to their own records.
func (s *ExceptionService) ListExceptions(ctx context.Context, principal Principal, filter persistence.ExceptionFilter) ([]Exception, error) {
	if s == nil {
		return nil, fmt.Errorf("ExceptionService is nil")
	}
	if !principal.IsAdmin {
		if filter.UserID != "" && filter.UserID != principal.UserID {
			return nil, ErrUnauthorized
		}
		filter.UserID = principal.UserID
	}

	models, err := s.exceptions.ListExceptions(ctx, filter)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	exceptions := make([]Exception, 0, len(models))
	for _, model := range models {
		exceptions = append(exceptions, toException(model))
	}
	return exceptions, nil
}

func (s *ExceptionService) buildExceptionModel(ctx context.Context, id string, input ExceptionInput) (persistence.Exception, *ValidationError) {
	vErr := &ValidationError{}

	if input.UserID == "" {
		vErr.add("user_id", "user_id is required")
	} else if _, err := s.users.GetUser(ctx, input.UserID); err != nil {
		vErr.add("user_id", "user does not exist")
	}

	exceptionType := exception.Type(strings.ToUpper(strings.TrimSpace(input.Type)))
	class := exceptionType.Class()
	if class == exception.ClassUnknown {
		vErr.add("type", "type must carry an ABSENCE_, CHANGE_, or REDUCTION_ prefix")
	}

	priority := strings.ToUpper(strings.TrimSpace(input.Priority))
	if priority == "" {
		priority = exception.PriorityNormal.String()
	} else if _, err := exception.ParsePriority(priority); err != nil {
		vErr.add("priority", "priority must be LOW, NORMAL, HIGH, or OVERRIDE")
	}

	switch class {
	case exception.ClassChange:
		if input.NewShiftID == nil || *input.NewShiftID == "" {
			vErr.add("new_shift_id", "change exceptions require a replacement shift")
		} else if _, err := s.shifts.GetShift(ctx, *input.NewShiftID); err != nil {
			vErr.add("new_shift_id", "replacement shift does not exist")
		}
	case exception.ClassReduction:
		if input.ReducedStart == nil || input.ReducedEnd == nil {
			vErr.add("reduced_window", "reduction exceptions require both window bounds")
		} else {
			if _, err := time.Parse("15:04", *input.ReducedStart); err != nil {
				vErr.add("reduced_start", "reduced_start must use the HH:MM form")
			}
			if _, err := time.Parse("15:04", *input.ReducedEnd); err != nil {
				vErr.add("reduced_end", "reduced_end must use the HH:MM form")
			}
		}
	}

	return persistence.Exception{
		ID:                id,
		UserID:            input.UserID,
		TargetDate:        rotation.Normalize(input.TargetDate),
		Type:              string(exceptionType),
		Status:            string(exception.StatusDraft),
		Priority:          priority,
		RequiresApproval:  input.RequiresApproval,
		NewShiftID:        input.NewShiftID,
		SwapWithUserID:    input.SwapWithUserID,
		ReplacementUserID: input.ReplacementUserID,
		ReducedStart:      input.ReducedStart,
		ReducedEnd:        input.ReducedEnd,
		Reason:            input.Reason,
		Active:            true,
	}, vErr
}

// detectConflicts checks the candidate against the exceptions already
// effective on its target date.
func (s *ExceptionService) detectConflicts(ctx context.Context, model persistence.Exception) ([]ExceptionConflict, error) {
	targetDate := model.TargetDate
	stored, err := s.exceptions.ListExceptions(ctx, persistence.ExceptionFilter{
		UserID: model.UserID,
		From:   &targetDate,
		To:     &targetDate,
	})
	if err != nil {
		return nil, mapPersistenceError(err)
	}

	candidates := make([]exception.Exception, 0, len(stored)+1)
	for _, existing := range stored {
		if existing.ID == model.ID {
			continue
		}
		candidates = append(candidates, toOverlayException(existing))
	}
	candidate := toOverlayException(model)
	// A draft that still needs approval is not yet effective; probe the
	// collision it would cause once approved.
	candidate.Status = exception.StatusApproved
	candidates = append(candidates, candidate)

	effective := exception.EffectiveFor(model.UserID, model.TargetDate, candidates)
	conflicts := exception.DetectConflicts(effective)

	out := make([]ExceptionConflict, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, ExceptionConflict{
			Date:         conflict.Date,
			ExceptionIDs: conflict.ExceptionIDs,
			Reason:       conflict.Reason,
		})
	}
	return out, nil
}

// toOverlayException converts a stored exception into its overlay form.
func toOverlayException(model persistence.Exception) exception.Exception {
	return exception.Exception{
		ID:                model.ID,
		UserID:            model.UserID,
		TargetDate:        model.TargetDate,
		Type:              exception.Type(model.Type),
		Status:            exception.Status(model.Status),
		RequiresApproval:  model.RequiresApproval,
		Priority:          parsedExceptionPriority(model.Priority),
		NewShiftID:        stringValue(model.NewShiftID),
		SwapWithUserID:    stringValue(model.SwapWithUserID),
		ReplacementUserID: stringValue(model.ReplacementUserID),
		ReducedStart:      stringValue(model.ReducedStart),
		ReducedEnd:        stringValue(model.ReducedEnd),
		Active:            model.Active,
		ApprovedBy:        stringValue(model.ApprovedBy),
		ApprovedAt:        model.ApprovedAt,
	}
}

// applyOverlayException folds the workflow fields of an overlay value back
// into the stored model.
func applyOverlayException(model persistence.Exception, e exception.Exception) persistence.Exception {
	model.Status = string(e.Status)
	model.Active = e.Active
	if e.ApprovedBy != "" {
		approvedBy := e.ApprovedBy
		model.ApprovedBy = &approvedBy
	}
	model.ApprovedAt = e.ApprovedAt
	return model
}

func parsedExceptionPriority(value string) exception.Priority {
	priority, err := exception.ParsePriority(value)
	if err != nil {
		return exception.PriorityNormal
	}
	return priority
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func toException(model persistence.Exception) Exception {
	return Exception{
		ID:                model.ID,
		UserID:            model.UserID,
		TargetDate:        model.TargetDate,
		Type:              model.Type,
		Status:            model.Status,
		Priority:          model.Priority,
		RequiresApproval:  model.RequiresApproval,
		NewShiftID:        model.NewShiftID,
		SwapWithUserID:    model.SwapWithUserID,
		ReplacementUserID: model.ReplacementUserID,
		ReducedStart:      model.ReducedStart,
		ReducedEnd:        model.ReducedEnd,
		Reason:            model.Reason,
		Active:            model.Active,
		ApprovedBy:        model.ApprovedBy,
		ApprovedAt:        model.ApprovedAt,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}
