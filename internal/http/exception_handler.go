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

type exceptionService interface {
	CreateException(ctx context.Context, principal application.Principal, input application.ExceptionInput) (application.Exception, []application.ExceptionConflict, error)
	UpdateException(ctx context.Context, principal application.Principal, exceptionID string, input application.ExceptionInput) (application.Exception, []application.ExceptionConflict, error)
	SubmitException(ctx context.Context, principal application.Principal, exceptionID string) (application.Exception, error)
	ApproveException(ctx context.Context, principal application.Principal, exceptionID string) (application.Exception, error)
	RejectException(ctx context.Context, principal application.Principal, exceptionID string) (application.Exception, error)
	DeactivateException(ctx context.Context, principal application.Principal, exceptionID string) (application.Exception, error)
	GetException(ctx context.Context, principal application.Principal, exceptionID string) (application.Exception, error)
	ListExceptions(ctx context.Context, principal application.Principal, filter persistence.ExceptionFilter) ([]application.Exception, error)
}

// ExceptionHandler serves date-scoped schedule exceptions and their
// approval workflow.
type ExceptionHandler struct {
	service   exceptionService
	rosters   rosterInvalidator
	responder responder
	logger    *slog.Logger
}

func NewExceptionHandler(service exceptionService, rosters rosterInvalidator, logger *slog.Logger) *ExceptionHandler {
	base := defaultLogger(logger)
	return &ExceptionHandler{service: service, rosters: rosters, responder: newResponder(base), logger: base}
}

func (h *ExceptionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ExceptionHandler", operation, attrs...)
}

func (h *ExceptionHandler) invalidateRosters() {
	if h != nil && h.rosters != nil {
		h.rosters.InvalidateRosters()
	}
}

func (h *ExceptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req exceptionRequest
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
	exception, conflicts, err := h.service.CreateException(r.Context(), principal, input)
	if err != nil {
		logger.ErrorContext(r.Context(), "exception creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.invalidateRosters()
	logger.With("exception_id", exception.ID, "conflict_count", len(conflicts)).InfoContext(r.Context(), "exception created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, exceptionResponse{
		Exception: toExceptionDTO(exception),
		Conflicts: toConflictDTOs(conflicts),
	})
}

func (h *ExceptionHandler) Update(w http.ResponseWriter, r *http.Request, exceptionID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req exceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	exception, conflicts, err := h.service.UpdateException(r.Context(), principal, exceptionID, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.invalidateRosters()
	h.responder.writeJSON(r.Context(), w, http.StatusOK, exceptionResponse{
		Exception: toExceptionDTO(exception),
		Conflicts: toConflictDTOs(conflicts),
	})
}

// Transition dispatches the workflow verbs carried as the trailing
// path segment: submit, approve, reject, deactivate.
func (h *ExceptionHandler) Transition(w http.ResponseWriter, r *http.Request, exceptionID, verb string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var apply func(context.Context, application.Principal, string) (application.Exception, error)
	switch verb {
	case "submit":
		apply = h.service.SubmitException
	case "approve":
		apply = h.service.ApproveException
	case "reject":
		apply = h.service.RejectException
	case "deactivate":
		apply = h.service.DeactivateException
	default:
		http.NotFound(w, r)
		return
	}

	logger := h.log(r.Context(), "Transition", "principal_id", principal.UserID, "exception_id", exceptionID, "verb", verb)
	exception, err := apply(r.Context(), principal, exceptionID)
	if err != nil {
		logger.ErrorContext(r.Context(), "exception transition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.invalidateRosters()
	logger.With("status", exception.Status).InfoContext(r.Context(), "exception transitioned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, exceptionResponse{Exception: toExceptionDTO(exception)})
}

func (h *ExceptionHandler) Get(w http.ResponseWriter, r *http.Request, exceptionID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	exception, err := h.service.GetException(r.Context(), principal, exceptionID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, exceptionResponse{Exception: toExceptionDTO(exception)})
}

// List supports ?user_id=, ?status=, ?from=, and ?to= query filters.
func (h *ExceptionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	filter := persistence.ExceptionFilter{
		UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
		Status: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	from, err := parseWireDatePtr(r.URL.Query().Get("from"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	to, err := parseWireDatePtr(r.URL.Query().Get("to"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	filter.From = from
	filter.To = to

	exceptions, err := h.service.ListExceptions(r.Context(), principal, filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]exceptionDTO, 0, len(exceptions))
	for _, exception := range exceptions {
		out = append(out, toExceptionDTO(exception))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listExceptionsResponse{Exceptions: out})
}

type exceptionRequest struct {
	UserID           string `json:"user_id"`
	TargetDate       string `json:"target_date"`
	Type             string `json:"type"`
	Priority         string `json:"priority"`
	RequiresApproval bool   `json:"requires_approval"`

	NewShiftID        *string `json:"new_shift_id"`
	SwapWithUserID    *string `json:"swap_with_user_id"`
	ReplacementUserID *string `json:"replacement_user_id"`
	ReducedStart      *string `json:"reduced_start"`
	ReducedEnd        *string `json:"reduced_end"`
	Reason            *string `json:"reason"`
}

func (r exceptionRequest) toInput() (application.ExceptionInput, error) {
	targetDate, err := parseWireDate(r.TargetDate)
	if err != nil {
		return application.ExceptionInput{}, err
	}
	return application.ExceptionInput{
		UserID:            strings.TrimSpace(r.UserID),
		TargetDate:        targetDate,
		Type:              r.Type,
		Priority:          r.Priority,
		RequiresApproval:  r.RequiresApproval,
		NewShiftID:        r.NewShiftID,
		SwapWithUserID:    r.SwapWithUserID,
		ReplacementUserID: r.ReplacementUserID,
		ReducedStart:      r.ReducedStart,
		ReducedEnd:        r.ReducedEnd,
		Reason:            r.Reason,
	}, nil
}

type exceptionResponse struct {
	Exception exceptionDTO  `json:"exception"`
	Conflicts []conflictDTO `json:"conflicts,omitempty"`
}

type listExceptionsResponse struct {
	Exceptions []exceptionDTO `json:"exceptions"`
}

type exceptionDTO struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	TargetDate       string `json:"target_date"`
	Type             string `json:"type"`
	Status           string `json:"status"`
	Priority         string `json:"priority"`
	RequiresApproval bool   `json:"requires_approval"`

	NewShiftID        *string `json:"new_shift_id,omitempty"`
	SwapWithUserID    *string `json:"swap_with_user_id,omitempty"`
	ReplacementUserID *string `json:"replacement_user_id,omitempty"`
	ReducedStart      *string `json:"reduced_start,omitempty"`
	ReducedEnd        *string `json:"reduced_end,omitempty"`
	Reason            *string `json:"reason,omitempty"`

	Active     bool    `json:"active"`
	ApprovedBy *string `json:"approved_by,omitempty"`
	ApprovedAt *string `json:"approved_at,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type conflictDTO struct {
	Date         string   `json:"date"`
	ExceptionIDs []string `json:"exception_ids"`
	Reason       string   `json:"reason"`
}

func toExceptionDTO(exception application.Exception) exceptionDTO {
	var approvedAt *string
	if exception.ApprovedAt != nil {
		formatted := exception.ApprovedAt.UTC().Format(time.RFC3339Nano)
		approvedAt = &formatted
	}
	return exceptionDTO{
		ID:                exception.ID,
		UserID:            exception.UserID,
		TargetDate:        formatWireDate(exception.TargetDate),
		Type:              exception.Type,
		Status:            exception.Status,
		Priority:          exception.Priority,
		RequiresApproval:  exception.RequiresApproval,
		NewShiftID:        exception.NewShiftID,
		SwapWithUserID:    exception.SwapWithUserID,
		ReplacementUserID: exception.ReplacementUserID,
		ReducedStart:      exception.ReducedStart,
		ReducedEnd:        exception.ReducedEnd,
		Reason:            exception.Reason,
		Active:            exception.Active,
		ApprovedBy:        exception.ApprovedBy,
		ApprovedAt:        approvedAt,
		CreatedAt:         exception.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:         exception.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toConflictDTOs(conflicts []application.ExceptionConflict) []conflictDTO {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]conflictDTO, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, conflictDTO{
			Date:         formatWireDate(conflict.Date),
			ExceptionIDs: conflict.ExceptionIDs,
			Reason:       conflict.Reason,
		})
	}
	return out
}
