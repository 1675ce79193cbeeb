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

type teamService interface {
	CreateTeam(ctx context.Context, principal application.Principal, input application.TeamInput) (application.Team, error)
	UpdateTeam(ctx context.Context, principal application.Principal, teamID string, input application.TeamInput) (application.Team, error)
	GetTeam(ctx context.Context, teamID string) (application.Team, error)
	ListTeams(ctx context.Context) ([]application.Team, error)
	ListHalfTeams(ctx context.Context, parentID string) ([]application.Team, error)
	DeleteTeam(ctx context.Context, principal application.Principal, teamID string) error
}

// TeamHandler serves the team and half-team catalog.
type TeamHandler struct {
	service   teamService
	responder responder
	logger    *slog.Logger
}

func NewTeamHandler(service teamService, logger *slog.Logger) *TeamHandler {
	base := defaultLogger(logger)
	return &TeamHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *TeamHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TeamHandler", operation, attrs...)
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req teamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	team, err := h.service.CreateTeam(r.Context(), principal, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "team creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("team_id", team.ID).InfoContext(r.Context(), "team created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, teamResponse{Team: toTeamDTO(team)})
}

func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request, teamID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req teamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "team_id", teamID)
	team, err := h.service.UpdateTeam(r.Context(), principal, teamID, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "team update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, teamResponse{Team: toTeamDTO(team)})
}

func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request, teamID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	team, err := h.service.GetTeam(r.Context(), teamID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, teamResponse{Team: toTeamDTO(team)})
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	teams, err := h.service.ListTeams(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listTeamsResponse{Teams: toTeamDTOs(teams)})
}

func (h *TeamHandler) ListHalfTeams(w http.ResponseWriter, r *http.Request, parentID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	teams, err := h.service.ListHalfTeams(r.Context(), parentID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listTeamsResponse{Teams: toTeamDTOs(teams)})
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request, teamID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "team_id", teamID)
	if err := h.service.DeleteTeam(r.Context(), principal, teamID); err != nil {
		logger.ErrorContext(r.Context(), "team delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "team deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type teamRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

func (r teamRequest) toInput() application.TeamInput {
	input := application.TeamInput{Name: strings.TrimSpace(r.Name)}
	if r.ParentID != nil && strings.TrimSpace(*r.ParentID) != "" {
		parentID := strings.TrimSpace(*r.ParentID)
		input.ParentID = &parentID
	}
	return input
}

type teamResponse struct {
	Team teamDTO `json:"team"`
}

type listTeamsResponse struct {
	Teams []teamDTO `json:"teams"`
}

type teamDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	ParentID  *string `json:"parent_id,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func toTeamDTO(team application.Team) teamDTO {
	return teamDTO{
		ID:        team.ID,
		Name:      team.Name,
		ParentID:  team.ParentID,
		CreatedAt: team.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: team.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toTeamDTOs(teams []application.Team) []teamDTO {
	if len(teams) == 0 {
		return nil
	}
	out := make([]teamDTO, 0, len(teams))
	for _, team := range teams {
		out = append(out, toTeamDTO(team))
	}
	return out
}
