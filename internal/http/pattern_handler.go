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

type patternService interface {
	CreatePattern(ctx context.Context, principal application.Principal, input application.PatternInput) (application.Pattern, error)
	UpdatePattern(ctx context.Context, principal application.Principal, patternID string, input application.PatternInput) (application.Pattern, error)
	GetPattern(ctx context.Context, patternID string) (application.Pattern, error)
	ListPatterns(ctx context.Context) ([]application.Pattern, error)
	DeletePattern(ctx context.Context, principal application.Principal, patternID string) error
	PreviewPattern(ctx context.Context, patternID string, from, to time.Time) ([]application.ScheduleDay, error)
}

// PatternHandler serves the recurrence pattern catalog.
type PatternHandler struct {
	service   patternService
	rosters   rosterInvalidator
	responder responder
	logger    *slog.Logger
}

func NewPatternHandler(service patternService, rosters rosterInvalidator, logger *slog.Logger) *PatternHandler {
	base := defaultLogger(logger)
	return &PatternHandler{service: service, rosters: rosters, responder: newResponder(base), logger: base}
}

func (h *PatternHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PatternHandler", operation, attrs...)
}

func (h *PatternHandler) invalidateRosters() {
	if h != nil && h.rosters != nil {
		h.rosters.InvalidateRosters()
	}
}

func (h *PatternHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req patternRequest
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
	pattern, err := h.service.CreatePattern(r.Context(), principal, input)
	if err != nil {
		logger.ErrorContext(r.Context(), "pattern creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.invalidateRosters()
	logger.With("pattern_id", pattern.ID).InfoContext(r.Context(), "pattern created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, patternResponse{Pattern: toPatternDTO(pattern)})
}

func (h *PatternHandler) Update(w http.ResponseWriter, r *http.Request, patternID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req patternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	pattern, err := h.service.UpdatePattern(r.Context(), principal, patternID, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.invalidateRosters()
	h.responder.writeJSON(r.Context(), w, http.StatusOK, patternResponse{Pattern: toPatternDTO(pattern)})
}

func (h *PatternHandler) Get(w http.ResponseWriter, r *http.Request, patternID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	pattern, err := h.service.GetPattern(r.Context(), patternID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, patternResponse{Pattern: toPatternDTO(pattern)})
}

func (h *PatternHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	patterns, err := h.service.ListPatterns(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]patternDTO, 0, len(patterns))
	for _, pattern := range patterns {
		out = append(out, toPatternDTO(pattern))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listPatternsResponse{Patterns: out})
}

func (h *PatternHandler) Delete(w http.ResponseWriter, r *http.Request, patternID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "pattern_id", patternID)
	if err := h.service.DeletePattern(r.Context(), principal, patternID); err != nil {
		logger.ErrorContext(r.Context(), "pattern delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.invalidateRosters()
	logger.InfoContext(r.Context(), "pattern deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Preview evaluates the pattern over ?from=&to= without touching
// assignments or exceptions.
func (h *PatternHandler) Preview(w http.ResponseWriter, r *http.Request, patternID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

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

	days, err := h.service.PreviewPattern(r.Context(), patternID, from, to)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]previewDayDTO, 0, len(days))
	for _, day := range days {
		out = append(out, previewDayDTO{
			Date:    formatWireDate(day.Date),
			Working: day.Working,
			ShiftID: day.ShiftID,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, previewResponse{PatternID: patternID, Days: out})
}

type patternDayPayload struct {
	DayNumber int    `json:"day_number"`
	ShiftID   string `json:"shift_id"`
}

type patternRequest struct {
	Name      string `json:"name"`
	Frequency string `json:"frequency"`
	Interval  int    `json:"interval"`
	StartDate string `json:"start_date"`

	EndKind  string  `json:"end_kind"`
	EndCount *int    `json:"end_count"`
	EndUntil *string `json:"end_until"`

	ShiftID    *string `json:"shift_id"`
	DaysOfWeek []int   `json:"days_of_week"`
	WeekStart  int     `json:"week_start"`
	ByMonthDay *int    `json:"by_month_day"`
	ByMonth    *int    `json:"by_month"`

	CycleLength int                 `json:"cycle_length"`
	Days        []patternDayPayload `json:"days"`

	Active bool `json:"active"`
}

func (r patternRequest) toInput() (application.PatternInput, error) {
	startDate, err := parseWireDate(r.StartDate)
	if err != nil {
		return application.PatternInput{}, err
	}

	var endUntil *time.Time
	if r.EndUntil != nil {
		endUntil, err = parseWireDatePtr(*r.EndUntil)
		if err != nil {
			return application.PatternInput{}, err
		}
	}

	daysOfWeek := make([]time.Weekday, 0, len(r.DaysOfWeek))
	for _, day := range r.DaysOfWeek {
		daysOfWeek = append(daysOfWeek, time.Weekday(day))
	}

	days := make([]application.PatternDayInput, 0, len(r.Days))
	for _, day := range r.Days {
		days = append(days, application.PatternDayInput{DayNumber: day.DayNumber, ShiftID: day.ShiftID})
	}

	return application.PatternInput{
		Name:        strings.TrimSpace(r.Name),
		Frequency:   r.Frequency,
		Interval:    r.Interval,
		StartDate:   startDate,
		EndKind:     r.EndKind,
		EndCount:    r.EndCount,
		EndUntil:    endUntil,
		ShiftID:     r.ShiftID,
		DaysOfWeek:  daysOfWeek,
		WeekStart:   time.Weekday(r.WeekStart),
		ByMonthDay:  r.ByMonthDay,
		ByMonth:     r.ByMonth,
		CycleLength: r.CycleLength,
		Days:        days,
		Active:      r.Active,
	}, nil
}

type patternResponse struct {
	Pattern patternDTO `json:"pattern"`
}

type listPatternsResponse struct {
	Patterns []patternDTO `json:"patterns"`
}

type patternDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Frequency string `json:"frequency"`
	Interval  int    `json:"interval"`
	StartDate string `json:"start_date"`

	EndKind  string  `json:"end_kind"`
	EndCount *int    `json:"end_count,omitempty"`
	EndUntil *string `json:"end_until,omitempty"`

	ShiftID    *string `json:"shift_id,omitempty"`
	DaysOfWeek []int   `json:"days_of_week,omitempty"`
	WeekStart  int     `json:"week_start"`
	ByMonthDay *int    `json:"by_month_day,omitempty"`
	ByMonth    *int    `json:"by_month,omitempty"`

	CycleLength int                 `json:"cycle_length"`
	Days        []patternDayPayload `json:"days,omitempty"`

	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toPatternDTO(pattern application.Pattern) patternDTO {
	daysOfWeek := make([]int, 0, len(pattern.DaysOfWeek))
	for _, day := range pattern.DaysOfWeek {
		daysOfWeek = append(daysOfWeek, int(day))
	}
	days := make([]patternDayPayload, 0, len(pattern.Days))
	for _, day := range pattern.Days {
		days = append(days, patternDayPayload{DayNumber: day.DayNumber, ShiftID: day.ShiftID})
	}
	return patternDTO{
		ID:          pattern.ID,
		Name:        pattern.Name,
		Frequency:   pattern.Frequency,
		Interval:    pattern.Interval,
		StartDate:   formatWireDate(pattern.StartDate),
		EndKind:     pattern.EndKind,
		EndCount:    pattern.EndCount,
		EndUntil:    formatWireDatePtr(pattern.EndUntil),
		ShiftID:     pattern.ShiftID,
		DaysOfWeek:  daysOfWeek,
		WeekStart:   int(pattern.WeekStart),
		ByMonthDay:  pattern.ByMonthDay,
		ByMonth:     pattern.ByMonth,
		CycleLength: pattern.CycleLength,
		Days:        days,
		Active:      pattern.Active,
		CreatedAt:   pattern.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   pattern.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type previewDayDTO struct {
	Date    string `json:"date"`
	Working bool   `json:"working"`
	ShiftID string `json:"shift_id,omitempty"`
}

type previewResponse struct {
	PatternID string          `json:"pattern_id"`
	Days      []previewDayDTO `json:"days"`
}
