package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// TeamService orchestrates validation, authorization, and persistence for
// teams and half-teams.
type TeamService struct {
	teams       persistence.TeamRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTeamService wires dependencies for the team service.
func NewTeamService(teams persistence.TeamRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TeamService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TeamService{teams: teams, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// CreateTeam persists a new team for administrators. A parent reference
// turns the record into a half-team.
func (s *TeamService) CreateTeam(ctx context.Context, principal Principal, input TeamInput) (Team, error) {
	if s == nil {
		return Team{}, fmt.Errorf("TeamService is nil")
	}
	if !principal.IsAdmin {
		return Team{}, ErrUnauthorized
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		return Team{}, vErr
	}

	if input.ParentID != nil {
		parent, err := s.teams.GetTeam(ctx, *input.ParentID)
		if err != nil {
			return Team{}, mapPersistenceError(err)
		}
		// Half-teams nest one level deep only.
		if parent.ParentID != nil {
			vErr := &ValidationError{}
			vErr.add("parent_id", "parent must be a top-level team")
			return Team{}, vErr
		}
	}

	model := persistence.Team{
		ID:       s.idGenerator(),
		Name:     input.Name,
		ParentID: input.ParentID,
	}
	if err := s.teams.CreateTeam(ctx, model); err != nil {
		return Team{}, mapPersistenceError(err)
	}

	stored, err := s.teams.GetTeam(ctx, model.ID)
	if err != nil {
		return Team{}, mapPersistenceError(err)
	}

	serviceLogger(ctx, s.logger, "TeamService", "CreateTeam").InfoContext(ctx, "team created", "team_id", stored.ID)
	return toTeam(stored), nil
}

// UpdateTeam renames or re-parents an existing team for administrators.
func (s *TeamService) UpdateTeam(ctx context.Context, principal Principal, teamID string, input TeamInput) (Team, error) {
	if s == nil {
		return Team{}, fmt.Errorf("TeamService is nil")
	}
	if !principal.IsAdmin {
		return Team{}, ErrUnauthorized
	}

	existing, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		return Team{}, mapPersistenceError(err)
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		return Team{}, vErr
	}

	existing.Name = input.Name
	existing.ParentID = input.ParentID
	if err := s.teams.UpdateTeam(ctx, existing); err != nil {
		return Team{}, mapPersistenceError(err)
	}

	stored, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		return Team{}, mapPersistenceError(err)
	}
	return toTeam(stored), nil
}

// GetTeam returns one team for any authenticated principal.
func (s *TeamService) GetTeam(ctx context.Context, teamID string) (Team, error) {
	if s == nil {
		return Team{}, fmt.Errorf("TeamService is nil")
	}
	stored, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		return Team{}, mapPersistenceError(err)
	}
	return toTeam(stored), nil
}

// ListTeams returns all teams for any authenticated principal.
func (s *TeamService) ListTeams(ctx context.Context) ([]Team, error) {
	if s == nil {
		return nil, fmt.Errorf("TeamService is nil")
	}
	models, err := s.teams.ListTeams(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	teams := make([]Team, 0, len(models))
	for _, model := range models {
		teams = append(teams, toTeam(model))
	}
	return teams, nil
}

// ListHalfTeams returns the half-teams under a parent team.
func (s *TeamService) ListHalfTeams(ctx context.Context, parentID string) ([]Team, error) {
	if s == nil {
		return nil, fmt.Errorf("TeamService is nil")
	}
	models, err := s.teams.ListChildTeams(ctx, parentID)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	teams := make([]Team, 0, len(models))
	for _, model := range models {
		teams = append(teams, toTeam(model))
	}
	return teams, nil
}

// DeleteTeam removes a team for administrators.
func (s *TeamService) DeleteTeam(ctx context.Context, principal Principal, teamID string) error {
	if s == nil {
		return fmt.Errorf("TeamService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if err := s.teams.DeleteTeam(ctx, teamID); err != nil {
		return mapPersistenceError(err)
	}
	serviceLogger(ctx, s.logger, "TeamService", "DeleteTeam").InfoContext(ctx, "team deleted", "team_id", teamID)
	return nil
}

func toTeam(model persistence.Team) Team {
	return Team{
		ID:        model.ID,
		Name:      model.Name,
		ParentID:  model.ParentID,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
