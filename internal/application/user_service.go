package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher func(password string) (string, error)

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users       persistence.UserRepository
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users persistence.UserRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = func(password string) (string, error) {
			return HashPassword(password, DefaultArgon2idParams)
		}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:       users,
		hash:        hash,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input and persists a new user for administrators.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !params.Principal.IsAdmin {
		return User{}, ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "CreateUser", "email", strings.ToLower(strings.TrimSpace(params.Input.Email)))

	normalized := normalizeUserInput(params.Input)
	vErr := validateUserInput(normalized, true)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	passwordHash, err := s.hash(normalized.Password)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	model := persistence.User{
		ID:           s.idGenerator(),
		Email:        normalized.Email,
		DisplayName:  normalized.DisplayName,
		PasswordHash: passwordHash,
		IsAdmin:      normalized.IsAdmin,
		Disabled:     normalized.Disabled,
	}

	if err := s.users.CreateUser(ctx, model); err != nil {
		err = mapPersistenceError(err)
		logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
		return User{}, err
	}

	stored, err := s.users.GetUser(ctx, model.ID)
	if err != nil {
		return User{}, mapPersistenceError(err)
	}

	logger.InfoContext(ctx, "user created", "user_id", stored.ID)
	return toUser(stored), nil
}

// UpdateUser validates input and updates an existing user for administrators.
// An empty password keeps the stored hash.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !params.Principal.IsAdmin {
		return User{}, ErrUnauthorized
	}

	existing, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return User{}, mapPersistenceError(err)
	}

	normalized := normalizeUserInput(params.Input)
	vErr := validateUserInput(normalized, normalized.Password != "")
	if vErr.HasErrors() {
		return User{}, vErr
	}

	updated := existing
	updated.Email = normalized.Email
	updated.DisplayName = normalized.DisplayName
	updated.IsAdmin = normalized.IsAdmin
	updated.Disabled = normalized.Disabled
	if normalized.Password != "" {
		if updated.PasswordHash, err = s.hash(normalized.Password); err != nil {
			return User{}, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	if err := s.users.UpdateUser(ctx, updated); err != nil {
		return User{}, mapPersistenceError(err)
	}

	stored, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return User{}, mapPersistenceError(err)
	}

	s.loggerWith(ctx, "UpdateUser").InfoContext(ctx, "user updated", "user_id", stored.ID)
	return toUser(stored), nil
}

// GetUser returns one user. Non-admin principals may only read themselves.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin && principal.UserID != userID {
		return User{}, ErrUnauthorized
	}

	stored, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapPersistenceError(err)
	}
	return toUser(stored), nil
}

// ListUsers returns all users for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	models, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}

	users := make([]User, 0, len(models))
	for _, model := range models {
		users = append(users, toUser(model))
	}
	return users, nil
}

// DeleteUser removes a user when requested by an administrator.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		err = mapPersistenceError(err)
		s.loggerWith(ctx, "DeleteUser").ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.loggerWith(ctx, "DeleteUser").InfoContext(ctx, "user deleted", "user_id", userID)
	return nil
}

func toUser(model persistence.User) User {
	return User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		IsAdmin:     model.IsAdmin,
		Disabled:    model.Disabled,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Password:    input.Password,
		IsAdmin:     input.IsAdmin,
		Disabled:    input.Disabled,
	}
}

func validateUserInput(input UserInput, passwordRequired bool) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}

	if passwordRequired {
		if len(input.Password) < 8 {
			vErr.add("password", "password must be at least 8 characters")
		}
	}

	return vErr
}
