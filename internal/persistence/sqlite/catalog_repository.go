package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// TeamRepository implements persistence.TeamRepository using SQLite.
type TeamRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewTeamRepository creates a new SQLite team repository.
func NewTeamRepository(pool *ConnectionPool) *TeamRepository {
	return &TeamRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const teamColumns = "id, name, parent_id, created_at, updated_at"

// CreateTeam inserts a new team or half-team.
func (r *TeamRepository) CreateTeam(ctx context.Context, team persistence.Team) error {
	if team.ID == "" || team.Name == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now

	_, err := r.helper.Exec(ctx, `
		INSERT INTO teams (`+teamColumns+`)
		VALUES (?, ?, ?, ?, ?)
	`,
		team.ID,
		team.Name,
		nullString(team.ParentID),
		team.CreatedAt.Format(time.RFC3339),
		team.UpdatedAt.Format(time.RFC3339),
	)
	return r.mapper.MapError(err)
}

// UpdateTeam updates an existing team.
func (r *TeamRepository) UpdateTeam(ctx context.Context, team persistence.Team) error {
	if team.ID == "" || team.Name == "" {
		return persistence.ErrConstraintViolation
	}

	team.UpdatedAt = time.Now().UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE teams SET name = ?, parent_id = ?, updated_at = ? WHERE id = ?
	`,
		team.Name,
		nullString(team.ParentID),
		team.UpdatedAt.Format(time.RFC3339),
		team.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

// GetTeam retrieves a team by ID.
func (r *TeamRepository) GetTeam(ctx context.Context, id string) (persistence.Team, error) {
	if id == "" {
		return persistence.Team{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+teamColumns+" FROM teams WHERE id = ?", id)
	return r.scanTeam(row)
}

// ListTeams returns all teams ordered by name then ID.
func (r *TeamRepository) ListTeams(ctx context.Context) ([]persistence.Team, error) {
	return r.listTeams(ctx, "SELECT "+teamColumns+" FROM teams ORDER BY name ASC, id ASC")
}

// ListChildTeams returns the half-teams of a parent team.
func (r *TeamRepository) ListChildTeams(ctx context.Context, parentID string) ([]persistence.Team, error) {
	if parentID == "" {
		return []persistence.Team{}, nil
	}
	return r.listTeams(ctx, "SELECT "+teamColumns+" FROM teams WHERE parent_id = ? ORDER BY name ASC, id ASC", parentID)
}

func (r *TeamRepository) listTeams(ctx context.Context, query string, args ...interface{}) ([]persistence.Team, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var teams []persistence.Team
	for rows.Next() {
		team, err := r.scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return teams, nil
}

// DeleteTeam removes a team by ID. Teams referenced by assignments or with
// child half-teams cannot be removed.
func (r *TeamRepository) DeleteTeam(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var referenceCount int
		err := r.helper.QueryRowTx(tx, `
			SELECT (SELECT COUNT(*) FROM assignments WHERE team_id = ?)
			     + (SELECT COUNT(*) FROM teams WHERE parent_id = ?)
		`, id, id).Scan(&referenceCount)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if referenceCount > 0 {
			return persistence.ErrForeignKeyViolation
		}

		result, err := r.helper.ExecTx(tx, "DELETE FROM teams WHERE id = ?", id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireRowsAffected(result)
	})
}

func (r *TeamRepository) scanTeam(row rowScanner) (persistence.Team, error) {
	var team persistence.Team
	var parentID sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(&team.ID, &team.Name, &parentID, &createdAtStr, &updatedAtStr)
	if err != nil {
		return persistence.Team{}, r.mapper.MapError(err)
	}

	team.ParentID = stringPtr(parentID)
	if team.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Team{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if team.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Team{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return team, nil
}

// ShiftRepository implements persistence.ShiftRepository using SQLite.
type ShiftRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewShiftRepository creates a new SQLite shift repository.
func NewShiftRepository(pool *ConnectionPool) *ShiftRepository {
	return &ShiftRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const shiftColumns = "id, name, starts_at, ends_at, created_at, updated_at"

// CreateShift inserts a new shift catalog entry.
func (r *ShiftRepository) CreateShift(ctx context.Context, shift persistence.Shift) error {
	if shift.ID == "" || shift.Name == "" {
		return persistence.ErrConstraintViolation
	}
	if !validClockTime(shift.StartsAt) || !validClockTime(shift.EndsAt) {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	shift.CreatedAt = now
	shift.UpdatedAt = now

	_, err := r.helper.Exec(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		shift.ID,
		shift.Name,
		shift.StartsAt,
		shift.EndsAt,
		shift.CreatedAt.Format(time.RFC3339),
		shift.UpdatedAt.Format(time.RFC3339),
	)
	return r.mapper.MapError(err)
}

// UpdateShift updates an existing shift catalog entry.
func (r *ShiftRepository) UpdateShift(ctx context.Context, shift persistence.Shift) error {
	if shift.ID == "" || shift.Name == "" {
		return persistence.ErrConstraintViolation
	}
	if !validClockTime(shift.StartsAt) || !validClockTime(shift.EndsAt) {
		return persistence.ErrConstraintViolation
	}

	shift.UpdatedAt = time.Now().UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE shifts SET name = ?, starts_at = ?, ends_at = ?, updated_at = ? WHERE id = ?
	`,
		shift.Name,
		shift.StartsAt,
		shift.EndsAt,
		shift.UpdatedAt.Format(time.RFC3339),
		shift.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

// GetShift retrieves a shift by ID.
func (r *ShiftRepository) GetShift(ctx context.Context, id string) (persistence.Shift, error) {
	if id == "" {
		return persistence.Shift{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+shiftColumns+" FROM shifts WHERE id = ?", id)
	return r.scanShift(row)
}

// ListShifts returns all shifts ordered by starting time then ID.
func (r *ShiftRepository) ListShifts(ctx context.Context) ([]persistence.Shift, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+shiftColumns+" FROM shifts ORDER BY starts_at ASC, id ASC")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var shifts []persistence.Shift
	for rows.Next() {
		shift, err := r.scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return shifts, nil
}

// DeleteShift removes a shift by ID. Shifts referenced by patterns cannot
// be removed.
func (r *ShiftRepository) DeleteShift(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var referenceCount int
		err := r.helper.QueryRowTx(tx, `
			SELECT (SELECT COUNT(*) FROM patterns WHERE shift_id = ?)
			     + (SELECT COUNT(*) FROM pattern_days WHERE shift_id = ?)
		`, id, id).Scan(&referenceCount)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if referenceCount > 0 {
			return persistence.ErrForeignKeyViolation
		}

		result, err := r.helper.ExecTx(tx, "DELETE FROM shifts WHERE id = ?", id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireRowsAffected(result)
	})
}

func (r *ShiftRepository) scanShift(row rowScanner) (persistence.Shift, error) {
	var shift persistence.Shift
	var createdAtStr, updatedAtStr string

	err := row.Scan(&shift.ID, &shift.Name, &shift.StartsAt, &shift.EndsAt, &createdAtStr, &updatedAtStr)
	if err != nil {
		return persistence.Shift{}, r.mapper.MapError(err)
	}

	if shift.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Shift{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if shift.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Shift{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return shift, nil
}

// validClockTime accepts wall-clock times in "15:04" form.
func validClockTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

// requireRowsAffected converts a zero-row update or delete into ErrNotFound.
func requireRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
