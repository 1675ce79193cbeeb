package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// ExceptionRepository implements persistence.ExceptionRepository using SQLite.
type ExceptionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewExceptionRepository creates a new SQLite exception repository.
func NewExceptionRepository(pool *ConnectionPool) *ExceptionRepository {
	return &ExceptionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const exceptionColumns = `id, user_id, target_date, type, status, priority, requires_approval,
	new_shift_id, swap_with_user_id, replacement_user_id, reduced_start, reduced_end, reason,
	active, approved_by, approved_at, created_at, updated_at`

// CreateException inserts a new exception.
func (r *ExceptionRepository) CreateException(ctx context.Context, e persistence.Exception) error {
	if e.ID == "" || e.UserID == "" || e.Type == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := r.helper.Exec(ctx, `
		INSERT INTO exceptions (`+exceptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.UserID,
		formatDate(e.TargetDate),
		e.Type,
		e.Status,
		e.Priority,
		e.RequiresApproval,
		nullString(e.NewShiftID),
		nullString(e.SwapWithUserID),
		nullString(e.ReplacementUserID),
		nullString(e.ReducedStart),
		nullString(e.ReducedEnd),
		nullString(e.Reason),
		e.Active,
		nullString(e.ApprovedBy),
		nullTimestamp(e.ApprovedAt),
		e.CreatedAt.Format(time.RFC3339),
		e.UpdatedAt.Format(time.RFC3339),
	)
	return r.mapper.MapError(err)
}

// UpdateException updates an existing exception.
func (r *ExceptionRepository) UpdateException(ctx context.Context, e persistence.Exception) error {
	if e.ID == "" || e.UserID == "" || e.Type == "" {
		return persistence.ErrConstraintViolation
	}

	e.UpdatedAt = time.Now().UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE exceptions
		SET user_id = ?, target_date = ?, type = ?, status = ?, priority = ?, requires_approval = ?,
		    new_shift_id = ?, swap_with_user_id = ?, replacement_user_id = ?,
		    reduced_start = ?, reduced_end = ?, reason = ?, active = ?,
		    approved_by = ?, approved_at = ?, updated_at = ?
		WHERE id = ?
	`,
		e.UserID,
		formatDate(e.TargetDate),
		e.Type,
		e.Status,
		e.Priority,
		e.RequiresApproval,
		nullString(e.NewShiftID),
		nullString(e.SwapWithUserID),
		nullString(e.ReplacementUserID),
		nullString(e.ReducedStart),
		nullString(e.ReducedEnd),
		nullString(e.Reason),
		e.Active,
		nullString(e.ApprovedBy),
		nullTimestamp(e.ApprovedAt),
		e.UpdatedAt.Format(time.RFC3339),
		e.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

// GetException retrieves an exception by ID.
func (r *ExceptionRepository) GetException(ctx context.Context, id string) (persistence.Exception, error) {
	if id == "" {
		return persistence.Exception{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+exceptionColumns+" FROM exceptions WHERE id = ?", id)
	return r.scanException(row)
}

// ListExceptions returns exceptions matching the filter, ordered by target
// date then ID.
func (r *ExceptionRepository) ListExceptions(ctx context.Context, filter persistence.ExceptionFilter) ([]persistence.Exception, error) {
	query := "SELECT " + exceptionColumns + " FROM exceptions WHERE 1=1"
	var args []interface{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		query += " AND target_date >= ?"
		args = append(args, formatDate(*filter.From))
	}
	if filter.To != nil {
		query += " AND target_date <= ?"
		args = append(args, formatDate(*filter.To))
	}
	query += " ORDER BY target_date ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var exceptions []persistence.Exception
	for rows.Next() {
		e, err := r.scanException(rows)
		if err != nil {
			return nil, err
		}
		exceptions = append(exceptions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return exceptions, nil
}

// DeleteException removes an exception by ID.
func (r *ExceptionRepository) DeleteException(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM exceptions WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

func (r *ExceptionRepository) scanException(row rowScanner) (persistence.Exception, error) {
	var e persistence.Exception
	var targetDateStr, createdAtStr, updatedAtStr string
	var newShiftID, swapWithUserID, replacementUserID sql.NullString
	var reducedStart, reducedEnd, reason, approvedBy, approvedAt sql.NullString

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&targetDateStr,
		&e.Type,
		&e.Status,
		&e.Priority,
		&e.RequiresApproval,
		&newShiftID,
		&swapWithUserID,
		&replacementUserID,
		&reducedStart,
		&reducedEnd,
		&reason,
		&e.Active,
		&approvedBy,
		&approvedAt,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Exception{}, r.mapper.MapError(err)
	}

	e.NewShiftID = stringPtr(newShiftID)
	e.SwapWithUserID = stringPtr(swapWithUserID)
	e.ReplacementUserID = stringPtr(replacementUserID)
	e.ReducedStart = stringPtr(reducedStart)
	e.ReducedEnd = stringPtr(reducedEnd)
	e.Reason = stringPtr(reason)
	e.ApprovedBy = stringPtr(approvedBy)

	if e.TargetDate, err = parseDate(targetDateStr); err != nil {
		return persistence.Exception{}, fmt.Errorf("failed to parse target_date: %w", err)
	}
	if approvedAt.Valid {
		if e.ApprovedAt, err = parseTimePtr(approvedAt.String); err != nil {
			return persistence.Exception{}, fmt.Errorf("failed to parse approved_at: %w", err)
		}
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Exception{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Exception{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return e, nil
}

// nullTimestamp wraps an optional RFC3339 timestamp column value.
func nullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
