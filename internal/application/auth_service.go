package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// TokenGenerator produces an opaque session token.
type TokenGenerator func() (string, error)

// AuthService authenticates users and manages their sessions.
type AuthService struct {
	users       persistence.UserRepository
	sessions    persistence.SessionRepository
	token       TokenGenerator
	idGenerator func() string
	sessionTTL  time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

const defaultSessionTTL = 24 * time.Hour

// NewAuthService wires dependencies for the auth service.
func NewAuthService(
	users persistence.UserRepository,
	sessions persistence.SessionRepository,
	token TokenGenerator,
	idGenerator func() string,
	sessionTTL time.Duration,
	now func() time.Time,
	logger *slog.Logger,
) *AuthService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:       users,
		sessions:    sessions,
		token:       token,
		idGenerator: idGenerator,
		sessionTTL:  sessionTTL,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate verifies credentials and issues a session. Unknown emails and
// wrong passwords produce the same error so callers cannot probe accounts.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (AuthenticateResult, error) {
	if s == nil {
		return AuthenticateResult{}, fmt.Errorf("AuthService is nil")
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			logger.InfoContext(ctx, "authentication failed", "error_kind", ErrorKind(ErrInvalidCredentials))
			return AuthenticateResult{}, ErrInvalidCredentials
		}
		return AuthenticateResult{}, mapPersistenceError(err)
	}

	if err := VerifyPassword(user.PasswordHash, params.Password); err != nil {
		logger.InfoContext(ctx, "authentication failed", "error_kind", ErrorKind(ErrInvalidCredentials))
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	if user.Disabled {
		logger.InfoContext(ctx, "authentication refused", "error_kind", ErrorKind(ErrAccountDisabled))
		return AuthenticateResult{}, ErrAccountDisabled
	}

	token, err := s.token()
	if err != nil {
		return AuthenticateResult{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := persistence.Session{
		ID:          s.idGenerator(),
		UserID:      user.ID,
		Token:       token,
		Fingerprint: params.Fingerprint,
		ExpiresAt:   s.now().UTC().Add(s.sessionTTL),
	}
	stored, err := s.sessions.CreateSession(ctx, session)
	if err != nil {
		return AuthenticateResult{}, mapPersistenceError(err)
	}

	logger.InfoContext(ctx, "session issued", "user_id", user.ID, "session_id", stored.ID)
	return AuthenticateResult{User: toUser(user), Session: toSession(stored)}, nil
}

// ValidateSession resolves a session token into the authenticated principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("AuthService is nil")
	}

	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, mapPersistenceError(err)
	}
	if session.RevokedAt != nil {
		return Principal{}, ErrSessionRevoked
	}
	if !s.now().UTC().Before(session.ExpiresAt) {
		return Principal{}, ErrSessionExpired
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		return Principal{}, mapPersistenceError(err)
	}
	if user.Disabled {
		return Principal{}, ErrAccountDisabled
	}

	return Principal{UserID: user.ID, IsAdmin: user.IsAdmin}, nil
}

// RefreshSession rotates a live session's token and extends its validity
// window by the configured TTL. Unknown tokens look the same as bad
// credentials so callers cannot probe for live sessions.
func (s *AuthService) RefreshSession(ctx context.Context, token string) (Session, error) {
	if s == nil {
		return Session{}, fmt.Errorf("AuthService is nil")
	}

	session, err := s.sessions.GetSession(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, mapPersistenceError(err)
	}

	now := s.now().UTC()
	if session.RevokedAt != nil {
		return Session{}, ErrSessionRevoked
	}
	if !now.Before(session.ExpiresAt) {
		return Session{}, ErrSessionExpired
	}

	newToken, err := s.token()
	if err != nil {
		return Session{}, fmt.Errorf("failed to generate session token: %w", err)
	}
	session.Token = newToken
	session.ExpiresAt = now.Add(s.sessionTTL)

	stored, err := s.sessions.UpdateSession(ctx, session)
	if err != nil {
		return Session{}, mapPersistenceError(err)
	}

	s.loggerWith(ctx, "RefreshSession").InfoContext(ctx, "session refreshed", "session_id", stored.ID, "user_id", stored.UserID)
	return toSession(stored), nil
}

// RevokeSession ends a session. Revoking an unknown or already revoked
// session reports ErrNotFound.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	session, err := s.sessions.RevokeSession(ctx, token, s.now().UTC())
	if err != nil {
		return mapPersistenceError(err)
	}
	s.loggerWith(ctx, "RevokeSession").InfoContext(ctx, "session revoked", "session_id", session.ID)
	return nil
}

// PurgeExpiredSessions removes expired and revoked session rows. Intended
// for a periodic maintenance loop.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if err := s.sessions.DeleteExpiredSessions(ctx, s.now().UTC()); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func toSession(model persistence.Session) Session {
	return Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   model.RevokedAt,
	}
}
