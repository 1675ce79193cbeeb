package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/application"
)

type shiftService interface {
	CreateShift(ctx context.Context, principal application.Principal, input application.ShiftInput) (application.Shift, error)
	UpdateShift(ctx context.Context, principal application.Principal, shiftID string, input application.ShiftInput) (application.Shift, error)
	GetShift(ctx context.Context, shiftID string) (application.Shift, error)
	ListShifts(ctx context.Context) ([]application.Shift, error)
	DeleteShift(ctx context.Context, principal application.Principal, shiftID string) error
}

// ShiftHandler serves the shift type catalog.
type ShiftHandler struct {
	service   shiftService
	responder responder
	logger    *slog.Logger
}

func NewShiftHandler(service shiftService, logger *slog.Logger) *ShiftHandler {
	base := defaultLogger(logger)
	return &ShiftHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ShiftHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ShiftHandler", operation, attrs...)
}

func (h *ShiftHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req shiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	shift, err := h.service.CreateShift(r.Context(), principal, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "shift creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("shift_id", shift.ID).InfoContext(r.Context(), "shift created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, shiftResponse{Shift: toShiftDTO(shift)})
}

func (h *ShiftHandler) Update(w http.ResponseWriter, r *http.Request, shiftID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req shiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	shift, err := h.service.UpdateShift(r.Context(), principal, shiftID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, shiftResponse{Shift: toShiftDTO(shift)})
}

func (h *ShiftHandler) Get(w http.ResponseWriter, r *http.Request, shiftID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	shift, err := h.service.GetShift(r.Context(), shiftID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, shiftResponse{Shift: toShiftDTO(shift)})
}

func (h *ShiftHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	shifts, err := h.service.ListShifts(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listShiftsResponse{Shifts: toShiftDTOs(shifts)})
}

func (h *ShiftHandler) Delete(w http.ResponseWriter, r *http.Request, shiftID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "shift_id", shiftID)
	if err := h.service.DeleteShift(r.Context(), principal, shiftID); err != nil {
		logger.ErrorContext(r.Context(), "shift delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "shift deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type shiftRequest struct {
	Name     string `json:"name"`
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

func (r shiftRequest) toInput() application.ShiftInput {
	return application.ShiftInput{
		Name:     strings.TrimSpace(r.Name),
		StartsAt: strings.TrimSpace(r.StartsAt),
		EndsAt:   strings.TrimSpace(r.EndsAt),
	}
}

type shiftResponse struct {
	Shift shiftDTO `json:"shift"`
}

type listShiftsResponse struct {
	Shifts []shiftDTO `json:"shifts"`
}

type shiftDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartsAt  string `json:"starts_at"`
	EndsAt    string `json:"ends_at"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toShiftDTO(shift application.Shift) shiftDTO {
	return shiftDTO{
		ID:        shift.ID,
		Name:      shift.Name,
		StartsAt:  shift.StartsAt,
		EndsAt:    shift.EndsAt,
		CreatedAt: shift.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: shift.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toShiftDTOs(shifts []application.Shift) []shiftDTO {
	if len(shifts) == 0 {
		return nil
	}
	out := make([]shiftDTO, 0, len(shifts))
	for _, shift := range shifts {
		out = append(out, toShiftDTO(shift))
	}
	return out
}
