package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/application"
	"github.com/calvuzs3/qdue-server/internal/persistence"
)

type assignmentService interface {
	CreateAssignment(ctx context.Context, principal application.Principal, input application.AssignmentInput) (application.Assignment, []application.Assignment, error)
	UpdateAssignment(ctx context.Context, principal application.Principal, assignmentID string, input application.AssignmentInput) (application.Assignment, []application.Assignment, error)
	GetAssignment(ctx context.Context, principal application.Principal, assignmentID string) (application.Assignment, error)
	ListAssignments(ctx context.Context, principal application.Principal, filter persistence.AssignmentFilter) ([]application.Assignment, error)
	CancelAssignment(ctx context.Context, principal application.Principal, assignmentID string) (application.Assignment, error)
	SuspendAssignment(ctx context.Context, principal application.Principal, assignmentID string) (application.Assignment, error)
	ResumeAssignment(ctx context.Context, principal application.Principal, assignmentID string) (application.Assignment, error)
	DeleteAssignment(ctx context.Context, principal application.Principal, assignmentID string) error
}

// AssignmentHandler serves user-team-pattern assignments.
type AssignmentHandler struct {
	service   assignmentService
	rosters   rosterInvalidator
	responder responder
	logger    *slog.Logger
}

func NewAssignmentHandler(service assignmentService, rosters rosterInvalidator, logger *slog.Logger) *AssignmentHandler {
	base := defaultLogger(logger)
	return &AssignmentHandler{service: service, rosters: rosters, responder: newResponder(base), logger: base}
}

func (h *AssignmentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AssignmentHandler", operation, attrs...)
}

func (h *AssignmentHandler) invalidateRosters() {
	if h != nil && h.rosters != nil {
		h.rosters.InvalidateRosters()
	}
}

func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	assignment, overlaps, err := h.service.CreateAssignment(r.Context(), principal, input)
	if err != nil {
		logger.ErrorContext(r.Context(), "assignment creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.invalidateRosters()
	logger.With("assignment_id", assignment.ID, "overlap_count", len(overlaps)).InfoContext(r.Context(), "assignment created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, assignmentResponse{
		Assignment: toAssignmentDTO(assignment),
		Overlaps:   toAssignmentDTOs(overlaps),
	})
}

func (h *AssignmentHandler) Update(w http.ResponseWriter, r *http.Request, assignmentID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	assignment, overlaps, err := h.service.UpdateAssignment(r.Context(), principal, assignmentID, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.invalidateRosters()
	h.responder.writeJSON(r.Context(), w, http.StatusOK, assignmentResponse{
		Assignment: toAssignmentDTO(assignment),
		Overlaps:   toAssignmentDTOs(overlaps),
	})
}

func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request, assignmentID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	assignment, err := h.service.GetAssignment(r.Context(), principal, assignmentID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, assignmentResponse{Assignment: toAssignmentDTO(assignment)})
}

// List supports ?user_id=, ?team_id=, and ?covers= query filters.
func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	filter := persistence.AssignmentFilter{
		UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
		TeamID: strings.TrimSpace(r.URL.Query().Get("team_id")),
	}
	if covers := strings.TrimSpace(r.URL.Query().Get("covers")); covers != "" {
		date, err := parseWireDate(covers)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		filter.CoversDate = &date
	}

	assignments, err := h.service.ListAssignments(r.Context(), principal, filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAssignmentsResponse{Assignments: toAssignmentDTOs(assignments)})
}

// Transition dispatches the lifecycle verbs carried as the trailing path
// segment: cancel, suspend, resume.
func (h *AssignmentHandler) Transition(w http.ResponseWriter, r *http.Request, assignmentID, verb string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var apply func(context.Context, application.Principal, string) (application.Assignment, error)
	switch verb {
	case "cancel":
		apply = h.service.CancelAssignment
	case "suspend":
		apply = h.service.SuspendAssignment
	case "resume":
		apply = h.service.ResumeAssignment
	default:
		http.NotFound(w, r)
		return
	}

	logger := h.log(r.Context(), "Transition", "principal_id", principal.UserID, "assignment_id", assignmentID, "verb", verb)
	assignment, err := apply(r.Context(), principal, assignmentID)
	if err != nil {
		logger.ErrorContext(r.Context(), "assignment transition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.invalidateRosters()
	logger.With("status", assignment.Status).InfoContext(r.Context(), "assignment transitioned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, assignmentResponse{Assignment: toAssignmentDTO(assignment)})
}

func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request, assignmentID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "assignment_id", assignmentID)
	if err := h.service.DeleteAssignment(r.Context(), principal, assignmentID); err != nil {
		logger.ErrorContext(r.Context(), "assignment delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.invalidateRosters()
	logger.InfoContext(r.Context(), "assignment deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type assignmentRequest struct {
	UserID    string `json:"user_id"`
	TeamID    string `json:"team_id"`
	PatternID string `json:"pattern_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Priority  string `json:"priority"`
}

func (r assignmentRequest) toInput() (application.AssignmentInput, error) {
	startDate, err := parseWireDate(r.StartDate)
	if err != nil {
		return application.AssignmentInput{}, err
	}
	endDate, err := parseWireDatePtr(r.EndDate)
	if err != nil {
		return application.AssignmentInput{}, err
	}
	return application.AssignmentInput{
		UserID:    strings.TrimSpace(r.UserID),
		TeamID:    strings.TrimSpace(r.TeamID),
		PatternID: strings.TrimSpace(r.PatternID),
		StartDate: startDate,
		EndDate:   endDate,
		Priority:  r.Priority,
	}, nil
}

type assignmentResponse struct {
	Assignment assignmentDTO   `json:"assignment"`
	Overlaps   []assignmentDTO `json:"overlaps,omitempty"`
}

type listAssignmentsResponse struct {
	Assignments []assignmentDTO `json:"assignments"`
}

type assignmentDTO struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	TeamID    string  `json:"team_id"`
	PatternID string  `json:"pattern_id"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date,omitempty"`
	Priority  string  `json:"priority"`
	Status    string  `json:"status"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func toAssignmentDTO(assignment application.Assignment) assignmentDTO {
	return assignmentDTO{
		ID:        assignment.ID,
		UserID:    assignment.UserID,
		TeamID:    assignment.TeamID,
		PatternID: assignment.PatternID,
		StartDate: formatWireDate(assignment.StartDate),
		EndDate:   formatWireDatePtr(assignment.EndDate),
		Priority:  assignment.Priority,
		Status:    assignment.Status,
		Active:    assignment.Active,
		CreatedAt: assignment.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: assignment.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toAssignmentDTOs(assignments []application.Assignment) []assignmentDTO {
	if len(assignments) == 0 {
		return nil
	}
	out := make([]assignmentDTO, 0, len(assignments))
	for _, assignment := range assignments {
		out = append(out, toAssignmentDTO(assignment))
	}
	return out
}
