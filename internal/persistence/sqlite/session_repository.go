package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const sessionColumns = "id, user_id, token, fingerprint, expires_at, revoked_at, created_at, updated_at"

// CreateSession stores a new session token for a user.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.UserID == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	session.Token = strings.TrimSpace(session.Token)
	if session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.ExpiresAt = session.ExpiresAt.UTC()

	_, err := r.helper.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID,
		session.UserID,
		session.Token,
		session.Fingerprint,
		session.ExpiresAt.Format(time.RFC3339),
		nullTimestamp(session.RevokedAt),
		session.CreatedAt.Format(time.RFC3339),
		session.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	return session, nil
}

// GetSession retrieves a session by its token value.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE token = ?", token)
	return r.scanSession(row)
}

// UpdateSession rewrites the mutable fields of a session, identified by its
// id so token rotation works.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.Token = strings.TrimSpace(session.Token)
	if session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	session.UpdatedAt = time.Now().UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE sessions SET token = ?, fingerprint = ?, expires_at = ?, updated_at = ? WHERE id = ?
	`,
		session.Token,
		session.Fingerprint,
		session.ExpiresAt.Format(time.RFC3339),
		session.UpdatedAt.Format(time.RFC3339),
		session.ID,
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	if err := requireRowsAffected(result); err != nil {
		return persistence.Session{}, err
	}

	return r.GetSession(ctx, session.Token)
}

// RevokeSession marks a session as revoked and returns its updated state.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	revokedAt = revokedAt.UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE token = ? AND revoked_at IS NULL
	`,
		revokedAt.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		token,
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	if err := requireRowsAffected(result); err != nil {
		return persistence.Session{}, err
	}

	return r.GetSession(ctx, token)
}

// DeleteExpiredSessions removes sessions that expired before the reference
// time, along with any revoked sessions.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.helper.Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < ? OR revoked_at IS NOT NULL
	`, reference.UTC().Format(time.RFC3339))
	return r.mapper.MapError(err)
}

func (r *SessionRepository) scanSession(row rowScanner) (persistence.Session, error) {
	var session persistence.Session
	var expiresAtStr, createdAtStr, updatedAtStr string
	var revokedAt sql.NullString

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.Fingerprint,
		&expiresAtStr,
		&revokedAt,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	if revokedAt.Valid {
		if session.RevokedAt, err = parseTimePtr(revokedAt.String); err != nil {
			return persistence.Session{}, fmt.Errorf("failed to parse revoked_at: %w", err)
		}
	}
	if session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return session, nil
}
