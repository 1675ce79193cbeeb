package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/assignment"
	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/rotation"
)

// AssignmentService orchestrates the binding of users to teams and patterns.
// Overlapping validity windows are legal; writes report the overlaps so the
// caller can decide whether the priority layering is intentional.
type AssignmentService struct {
	assignments persistence.AssignmentRepository
	users       persistence.UserRepository
	teams       persistence.TeamRepository
	patterns    persistence.PatternRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAssignmentService wires dependencies for the assignment service.
func NewAssignmentService(
	assignments persistence.AssignmentRepository,
	users persistence.UserRepository,
	teams persistence.TeamRepository,
	patterns persistence.PatternRepository,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *AssignmentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AssignmentService{
		assignments: assignments,
		users:       users,
		teams:       teams,
		patterns:    patterns,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AssignmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AssignmentService", operation, attrs...)
}

// CreateAssignment persists a new assignment for administrators. The second
// return value lists existing assignments of the same user whose validity
// window intersects the new one; overlap is reported, never refused.
func (s *AssignmentService) CreateAssignment(ctx context.Context, principal Principal, input AssignmentInput) (Assignment, []Assignment, error) {
	if s == nil {
		return Assignment{}, nil, fmt.Errorf("AssignmentService is nil")
	}
	if !principal.IsAdmin {
		return Assignment{}, nil, ErrUnauthorized
	}

	model, vErr := s.buildAssignmentModel(ctx, s.idGenerator(), input)
	if vErr.HasErrors() {
		return Assignment{}, nil, vErr
	}

	overlaps, err := s.findOverlaps(ctx, model)
	if err != nil {
		return Assignment{}, nil, err
	}

	if err := s.assignments.CreateAssignment(ctx, model); err != nil {
		err = mapPersistenceError(err)
		s.loggerWith(ctx, "CreateAssignment").ErrorContext(ctx, "failed to create assignment", "error", err, "error_kind", ErrorKind(err))
		return Assignment{}, nil, err
	}

	stored, err := s.assignments.GetAssignment(ctx, model.ID)
	if err != nil {
		return Assignment{}, nil, mapPersistenceError(err)
	}

	s.loggerWith(ctx, "CreateAssignment").InfoContext(ctx, "assignment created",
		"assignment_id", stored.ID, "user_id", stored.UserID, "overlap_count", len(overlaps))
	return toAssignment(stored), overlaps, nil
}

// UpdateAssignment replaces the mutable fields of an assignment for
// administrators, reporting window overlaps the same way creation does.
func (s *AssignmentService) UpdateAssignment(ctx context.Context, principal Principal, assignmentID string, input AssignmentInput) (Assignment, []Assignment, error) {
	if s == nil {
		return Assignment{}, nil, fmt.Errorf("AssignmentService is nil")
	}
	if !principal.IsAdmin {
		return Assignment{}, nil, ErrUnauthorized
	}

	existing, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, nil, mapPersistenceError(err)
	}

	model, vErr := s.buildAssignmentModel(ctx, existing.ID, input)
	if vErr.HasErrors() {
		return Assignment{}, nil, vErr
	}
	model.Status = existing.Status
	model.Active = existing.Active
	model.CreatedAt = existing.CreatedAt

	overlaps, err := s.findOverlaps(ctx, model)
	if err != nil {
		return Assignment{}, nil, err
	}

	if err := s.assignments.UpdateAssignment(ctx, model); err != nil {
		return Assignment{}, nil, mapPersistenceError(err)
	}

	stored, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, nil, mapPersistenceError(err)
	}
	return toAssignment(stored), overlaps, nil
}

// GetAssignment returns one assignment. Non-admin principals may only read
// their own.
func (s *AssignmentService) GetAssignment(ctx context.Context, principal Principal, assignmentID string) (Assignment, error) {
	if s == nil {
		return Assignment{}, fmt.Errorf("AssignmentService is nil")
	}
	stored, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, mapPersistenceError(err)
	}
	if !principal.IsAdmin && principal.UserID != stored.UserID {
		return Assignment{}, ErrUnauthorized
	}
	return toAssignment(stored), nil
}

// ListAssignments returns assignments matching the filter. Non-admin
// principals are restricted to their own records.
func (s *AssignmentService) ListAssignments(ctx context.Context, principal Principal, filter persistence.AssignmentFilter) ([]Assignment, error) {
	if s == nil {
		return nil, fmt.Errorf("AssignmentService is nil")
	}
	if !principal.IsAdmin {
		if filter.UserID != "" && filter.UserID != principal.UserID {
			return nil, ErrUnauthorized
		}
		filter.UserID = principal.UserID
	}

	models, err := s.assignments.ListAssignments(ctx, filter)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	assignments := make([]Assignment, 0, len(models))
	for _, model := range models {
		assignments = append(assignments, toAssignment(model))
	}
	return assignments, nil
}

// CancelAssignment marks an assignment cancelled so it stops governing any
// date while the record stays available for historical recomputation.
func (s *AssignmentService) CancelAssignment(ctx context.Context, principal Principal, assignmentID string) (Assignment, error) {
	if s == nil {
		return Assignment{}, fmt.Errorf("AssignmentService is nil")
	}
	if !principal.IsAdmin {
		return Assignment{}, ErrUnauthorized
	}

	existing, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, mapPersistenceError(err)
	}
	existing.Status = string(assignment.StatusCancelled)
	if err := s.assignments.UpdateAssignment(ctx, existing); err != nil {
		return Assignment{}, mapPersistenceError(err)
	}

	stored, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, mapPersistenceError(err)
	}
	s.loggerWith(ctx, "CancelAssignment").InfoContext(ctx, "assignment cancelled", "assignment_id", assignmentID)
	return toAssignment(stored), nil
}

// SuspendAssignment takes an assignment out of governance without losing
// it: the record stops covering any date until it is resumed.
func (s *AssignmentService) SuspendAssignment(ctx context.Context, principal Principal, assignmentID string) (Assignment, error) {
	return s.setActive(ctx, principal, assignmentID, "SuspendAssignment", false, assignment.StatusSuspended)
}

// ResumeAssignment reinstates a suspended assignment.
func (s *AssignmentService) ResumeAssignment(ctx context.Context, principal Principal, assignmentID string) (Assignment, error) {
	return s.setActive(ctx, principal, assignmentID, "ResumeAssignment", true, assignment.StatusActive)
}

func (s *AssignmentService) setActive(ctx context.Context, principal Principal, assignmentID, operation string, active bool, status assignment.Status) (Assignment, error) {
	if s == nil {
		return Assignment{}, fmt.Errorf("AssignmentService is nil")
	}
	if !principal.IsAdmin {
		return Assignment{}, ErrUnauthorized
	}

	existing, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, mapPersistenceError(err)
	}
	if existing.Status == string(assignment.StatusCancelled) {
		return Assignment{}, fmt.Errorf("%w: cancelled assignments cannot change state", ErrInvalidState)
	}
	existing.Active = active
	existing.Status = string(status)
	if err := s.assignments.UpdateAssignment(ctx, existing); err != nil {
		return Assignment{}, mapPersistenceError(err)
	}

	stored, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, mapPersistenceError(err)
	}
	s.loggerWith(ctx, operation).InfoContext(ctx, "assignment state changed",
		"assignment_id", assignmentID, "status", stored.Status, "active", stored.Active)
	return toAssignment(stored), nil
}

// DeleteAssignment removes an assignment outright for administrators.
// Cancellation is the usual path; deletion is for records entered in error.
func (s *AssignmentService) DeleteAssignment(ctx context.Context, principal Principal, assignmentID string) error {
	if s == nil {
		return fmt.Errorf("AssignmentService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if err := s.assignments.DeleteAssignment(ctx, assignmentID); err != nil {
		return mapPersistenceError(err)
	}
	s.loggerWith(ctx, "DeleteAssignment").InfoContext(ctx, "assignment deleted", "assignment_id", assignmentID)
	return nil
}

func (s *AssignmentService) buildAssignmentModel(ctx context.Context, id string, input AssignmentInput) (persistence.Assignment, *ValidationError) {
	vErr := &ValidationError{}

	if input.UserID == "" {
		vErr.add("user_id", "user_id is required")
	} else if _, err := s.users.GetUser(ctx, input.UserID); err != nil {
		vErr.add("user_id", "user does not exist")
	}
	if input.TeamID == "" {
		vErr.add("team_id", "team_id is required")
	} else if _, err := s.teams.GetTeam(ctx, input.TeamID); err != nil {
		vErr.add("team_id", "team does not exist")
	}
	if input.PatternID == "" {
		vErr.add("pattern_id", "pattern_id is required")
	} else if _, err := s.patterns.GetPattern(ctx, input.PatternID); err != nil {
		vErr.add("pattern_id", "pattern does not exist")
	}

	priority := strings.ToUpper(strings.TrimSpace(input.Priority))
	if priority == "" {
		priority = assignment.PriorityNormal.String()
	} else if _, err := assignment.ParsePriority(priority); err != nil {
		vErr.add("priority", "priority must be LOW, NORMAL, HIGH, or OVERRIDE")
	}

	startDate := rotation.Normalize(input.StartDate)
	endDate := input.EndDate
	if endDate != nil {
		normalized := rotation.Normalize(*endDate)
		endDate = &normalized
		if normalized.Before(startDate) {
			vErr.add("end_date", "end date precedes start date")
		}
	}

	return persistence.Assignment{
		ID:        id,
		UserID:    input.UserID,
		TeamID:    input.TeamID,
		PatternID: input.PatternID,
		StartDate: startDate,
		EndDate:   endDate,
		Priority:  priority,
		Status:    string(assignment.StatusActive),
		Active:    true,
	}, vErr
}

func (s *AssignmentService) findOverlaps(ctx context.Context, model persistence.Assignment) ([]Assignment, error) {
	candidates, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{UserID: model.UserID})
	if err != nil {
		return nil, mapPersistenceError(err)
	}

	resolverCandidates := make([]assignment.Assignment, 0, len(candidates))
	for _, candidate := range candidates {
		resolverCandidate, err := toResolverAssignment(candidate)
		if err != nil {
			return nil, err
		}
		resolverCandidates = append(resolverCandidates, resolverCandidate)
	}

	window := assignment.Window{Start: model.StartDate, End: model.EndDate}
	overlapping := assignment.FindOverlaps(model.UserID, window, model.ID, resolverCandidates)

	byID := make(map[string]persistence.Assignment, len(candidates))
	for _, candidate := range candidates {
		byID[candidate.ID] = candidate
	}
	overlaps := make([]Assignment, 0, len(overlapping))
	for _, overlap := range overlapping {
		overlaps = append(overlaps, toAssignment(byID[overlap.ID]))
	}
	return overlaps, nil
}

// toResolverAssignment converts a stored assignment into its resolver form.
func toResolverAssignment(model persistence.Assignment) (assignment.Assignment, error) {
	priority, err := assignment.ParsePriority(model.Priority)
	if err != nil {
		return assignment.Assignment{}, err
	}
	return assignment.Assignment{
		ID:        model.ID,
		UserID:    model.UserID,
		TeamID:    model.TeamID,
		PatternID: model.PatternID,
		StartDate: model.StartDate,
		EndDate:   model.EndDate,
		Priority:  priority,
		Status:    assignment.Status(model.Status),
		Active:    model.Active,
	}, nil
}

func toAssignment(model persistence.Assignment) Assignment {
	return Assignment{
		ID:        model.ID,
		UserID:    model.UserID,
		TeamID:    model.TeamID,
		PatternID: model.PatternID,
		StartDate: model.StartDate,
		EndDate:   model.EndDate,
		Priority:  model.Priority,
		Status:    model.Status,
		Active:    model.Active,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
