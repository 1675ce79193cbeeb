package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/calvuzs3/qdue-server/internal/application"
)

type scheduleService interface {
	UserScheduleRange(ctx context.Context, principal application.Principal, userID string, from, to time.Time) (application.UserScheduleResult, error)
	TeamRoster(ctx context.Context, teamID string, date time.Time) (application.TeamRosterResult, error)
}

// ScheduleHandler serves composed schedules: per-user ranges and
// single-date team rosters.
type ScheduleHandler struct {
	service   scheduleService
	responder responder
	logger    *slog.Logger
}

func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	base := defaultLogger(logger)
	return &ScheduleHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ScheduleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ScheduleHandler", operation, attrs...)
}

// UserSchedule composes the schedule for one user over ?from=&to=.
func (h *ScheduleHandler) UserSchedule(w http.ResponseWriter, r *http.Request, userID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	from, err := parseDateQuery(r, "from")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "UserSchedule", "principal_id", principal.UserID, "user_id", userID)
	result, err := h.service.UserScheduleRange(r.Context(), principal, userID, from, to)
	if err != nil {
		logger.ErrorContext(r.Context(), "schedule composition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	days := make([]scheduleDayDTO, 0, len(result.Days))
	for _, day := range result.Days {
		days = append(days, toScheduleDayDTO(day))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userScheduleResponse{
		UserID:      userID,
		From:        formatWireDate(from),
		To:          formatWireDate(to),
		Days:        days,
		Diagnostics: toDiagnosticDTOs(result.Diagnostics),
	})
}

// TeamRoster composes the single-date roster for one team via ?date=.
func (h *ScheduleHandler) TeamRoster(w http.ResponseWriter, r *http.Request, teamID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	date, err := parseDateQuery(r, "date")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "TeamRoster", "team_id", teamID, "date", formatWireDate(date))
	result, err := h.service.TeamRoster(r.Context(), teamID, date)
	if err != nil {
		logger.ErrorContext(r.Context(), "roster composition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	shifts := make([]rosterShiftDTO, 0, len(result.Shifts))
	for _, shift := range result.Shifts {
		shifts = append(shifts, rosterShiftDTO{ShiftID: shift.ShiftID, UserIDs: shift.UserIDs})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, teamRosterResponse{
		TeamID:      result.TeamID,
		Date:        formatWireDate(result.Date),
		Shifts:      shifts,
		RestUserIDs: result.RestUserIDs,
		Diagnostics: toDiagnosticDTOs(result.Diagnostics),
	})
}

type scheduleDayDTO struct {
	Date   string `json:"date"`
	UserID string `json:"user_id"`

	AssignmentID string `json:"assignment_id,omitempty"`
	TeamID       string `json:"team_id,omitempty"`
	PatternID    string `json:"pattern_id,omitempty"`

	Working bool   `json:"working"`
	ShiftID string `json:"shift_id,omitempty"`

	Reduced      bool   `json:"reduced,omitempty"`
	ReducedStart string `json:"reduced_start,omitempty"`
	ReducedEnd   string `json:"reduced_end,omitempty"`

	Closed      bool   `json:"closed,omitempty"`
	ClosureName string `json:"closure_name,omitempty"`

	AppliedExceptionIDs []string `json:"applied_exception_ids,omitempty"`
}

func toScheduleDayDTO(day application.ScheduleDay) scheduleDayDTO {
	return scheduleDayDTO{
		Date:                formatWireDate(day.Date),
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

type diagnosticDTO struct {
	Date   string `json:"date"`
	UserID string `json:"user_id,omitempty"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func toDiagnosticDTOs(diagnostics []application.ScheduleDiagnostic) []diagnosticDTO {
	if len(diagnostics) == 0 {
		return nil
	}
	out := make([]diagnosticDTO, 0, len(diagnostics))
	for _, diagnostic := range diagnostics {
		out = append(out, diagnosticDTO{
			Date:   formatWireDate(diagnostic.Date),
			UserID: diagnostic.UserID,
			Kind:   diagnostic.Kind,
			Detail: diagnostic.Detail,
		})
	}
	return out
}

type userScheduleResponse struct {
	UserID      string           `json:"user_id"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	Days        []scheduleDayDTO `json:"days"`
	Diagnostics []diagnosticDTO  `json:"diagnostics,omitempty"`
}

type rosterShiftDTO struct {
	ShiftID string   `json:"shift_id"`
	UserIDs []string `json:"user_ids"`
}

type teamRosterResponse struct {
	TeamID      string           `json:"team_id"`
	Date        string           `json:"date"`
	Shifts      []rosterShiftDTO `json:"shifts"`
	RestUserIDs []string         `json:"rest_user_ids,omitempty"`
	Diagnostics []diagnosticDTO  `json:"diagnostics,omitempty"`
}
