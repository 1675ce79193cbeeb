package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const userColumns = "id, email, display_name, password_hash, is_admin, disabled, created_at, updated_at"

// CreateUser inserts a new user.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.helper.Exec(ctx, query,
		user.ID,
		normalizeEmail(user.Email),
		user.DisplayName,
		user.PasswordHash,
		user.IsAdmin,
		user.Disabled,
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
	)
	return r.mapper.MapError(err)
}

// UpdateUser updates an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = ?, display_name = ?, password_hash = ?, is_admin = ?, disabled = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.helper.Exec(ctx, query,
		normalizeEmail(user.Email),
		user.DisplayName,
		user.PasswordHash,
		user.IsAdmin,
		user.Disabled,
		user.UpdatedAt.Format(time.RFC3339),
		user.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return r.scanUser(row)
}

// GetUserByEmail retrieves a user by normalized email address.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	if email == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", normalizeEmail(email))
	return r.scanUser(row)
}

// ListUsers returns all users ordered by creation timestamp then ID.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return users, nil
}

// DeleteUser removes a user by ID. Users with assignments or exceptions on
// record cannot be removed.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var referenceCount int
		err := r.helper.QueryRowTx(tx, `
			SELECT (SELECT COUNT(*) FROM assignments WHERE user_id = ?)
			     + (SELECT COUNT(*) FROM exceptions WHERE user_id = ?)
		`, id, id).Scan(&referenceCount)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if referenceCount > 0 {
			return persistence.ErrForeignKeyViolation
		}

		if _, err := r.helper.ExecTx(tx, "DELETE FROM sessions WHERE user_id = ?", id); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(tx, "DELETE FROM users WHERE id = ?", id)
		if err != nil {
			return r.mapper.MapError(err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}

		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *UserRepository) scanUser(row rowScanner) (persistence.User, error) {
	var user persistence.User
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.Disabled,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}

	if user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return user, nil
}

// normalizeEmail normalizes email addresses for consistent storage and lookup.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
