package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// AssignmentRepository implements persistence.AssignmentRepository using SQLite.
type AssignmentRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAssignmentRepository creates a new SQLite assignment repository.
func NewAssignmentRepository(pool *ConnectionPool) *AssignmentRepository {
	return &AssignmentRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const assignmentColumns = "id, user_id, team_id, pattern_id, start_date, end_date, priority, status, active, created_at, updated_at"

// CreateAssignment inserts a new assignment.
func (r *AssignmentRepository) CreateAssignment(ctx context.Context, a persistence.Assignment) error {
	if a.ID == "" || a.UserID == "" || a.TeamID == "" || a.PatternID == "" {
		return persistence.ErrConstraintViolation
	}
	if a.EndDate != nil && a.EndDate.Before(a.StartDate) {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := r.helper.Exec(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.UserID,
		a.TeamID,
		a.PatternID,
		formatDate(a.StartDate),
		nullDate(a.EndDate),
		a.Priority,
		a.Status,
		a.Active,
		a.CreatedAt.Format(time.RFC3339),
		a.UpdatedAt.Format(time.RFC3339),
	)
	return r.mapper.MapError(err)
}

// UpdateAssignment updates an existing assignment.
func (r *AssignmentRepository) UpdateAssignment(ctx context.Context, a persistence.Assignment) error {
	if a.ID == "" || a.UserID == "" || a.TeamID == "" || a.PatternID == "" {
		return persistence.ErrConstraintViolation
	}
	if a.EndDate != nil && a.EndDate.Before(a.StartDate) {
		return persistence.ErrConstraintViolation
	}

	a.UpdatedAt = time.Now().UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE assignments
		SET user_id = ?, team_id = ?, pattern_id = ?, start_date = ?, end_date = ?,
		    priority = ?, status = ?, active = ?, updated_at = ?
		WHERE id = ?
	`,
		a.UserID,
		a.TeamID,
		a.PatternID,
		formatDate(a.StartDate),
		nullDate(a.EndDate),
		a.Priority,
		a.Status,
		a.Active,
		a.UpdatedAt.Format(time.RFC3339),
		a.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

// GetAssignment retrieves an assignment by ID.
func (r *AssignmentRepository) GetAssignment(ctx context.Context, id string) (persistence.Assignment, error) {
	if id == "" {
		return persistence.Assignment{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id)
	return r.scanAssignment(row)
}

// ListAssignments returns assignments matching the filter, ordered by start
// date then ID.
func (r *AssignmentRepository) ListAssignments(ctx context.Context, filter persistence.AssignmentFilter) ([]persistence.Assignment, error) {
	query := "SELECT " + assignmentColumns + " FROM assignments WHERE 1=1"
	var args []interface{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.TeamID != "" {
		query += " AND team_id = ?"
		args = append(args, filter.TeamID)
	}
	if filter.CoversDate != nil {
		query += " AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)"
		date := formatDate(*filter.CoversDate)
		args = append(args, date, date)
	}
	query += " ORDER BY start_date ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var assignments []persistence.Assignment
	for rows.Next() {
		a, err := r.scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return assignments, nil
}

// DeleteAssignment removes an assignment by ID.
func (r *AssignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM assignments WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

func (r *AssignmentRepository) scanAssignment(row rowScanner) (persistence.Assignment, error) {
	var a persistence.Assignment
	var startDateStr, createdAtStr, updatedAtStr string
	var endDate sql.NullString

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.TeamID,
		&a.PatternID,
		&startDateStr,
		&endDate,
		&a.Priority,
		&a.Status,
		&a.Active,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Assignment{}, r.mapper.MapError(err)
	}

	if a.StartDate, err = parseDate(startDateStr); err != nil {
		return persistence.Assignment{}, fmt.Errorf("failed to parse start_date: %w", err)
	}
	if endDate.Valid {
		if a.EndDate, err = parseDatePtr(endDate.String); err != nil {
			return persistence.Assignment{}, fmt.Errorf("failed to parse end_date: %w", err)
		}
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Assignment{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Assignment{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return a, nil
}
