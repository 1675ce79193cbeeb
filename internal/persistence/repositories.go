package persistence

import "context"
import "time"

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// TeamRepository exposes CRUD operations for teams and half-teams.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team Team) error
	UpdateTeam(ctx context.Context, team Team) error
	GetTeam(ctx context.Context, id string) (Team, error)
	ListTeams(ctx context.Context) ([]Team, error)
	ListChildTeams(ctx context.Context, parentID string) ([]Team, error)
	DeleteTeam(ctx context.Context, id string) error
}

// ShiftRepository exposes CRUD operations for the shift type catalog.
type ShiftRepository interface {
	CreateShift(ctx context.Context, shift Shift) error
	UpdateShift(ctx context.Context, shift Shift) error
	GetShift(ctx context.Context, id string) (Shift, error)
	ListShifts(ctx context.Context) ([]Shift, error)
	DeleteShift(ctx context.Context, id string) error
}

// PatternRepository stores recurrence patterns with their cycle day rows.
type PatternRepository interface {
	CreatePattern(ctx context.Context, pattern Pattern) error
	UpdatePattern(ctx context.Context, pattern Pattern) error
	GetPattern(ctx context.Context, id string) (Pattern, error)
	ListPatterns(ctx context.Context) ([]Pattern, error)
	DeletePattern(ctx context.Context, id string) error
}

// AssignmentFilter narrows assignment queries. Zero-value fields are
// ignored; CoversDate keeps only assignments whose validity window
// contains the date.
type AssignmentFilter struct {
	UserID     string
	TeamID     string
	CoversDate *time.Time
}

// AssignmentRepository stores user-team-pattern assignments.
type AssignmentRepository interface {
	CreateAssignment(ctx context.Context, a Assignment) error
	UpdateAssignment(ctx context.Context, a Assignment) error
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error
}

// ExceptionFilter narrows exception queries. Zero-value fields are
// ignored; From/To bound the target date inclusively.
type ExceptionFilter struct {
	UserID string
	Status string
	From   *time.Time
	To     *time.Time
}

// ExceptionRepository stores schedule exceptions.
type ExceptionRepository interface {
	CreateException(ctx context.Context, e Exception) error
	UpdateException(ctx context.Context, e Exception) error
	GetException(ctx context.Context, id string) (Exception, error)
	ListExceptions(ctx context.Context, filter ExceptionFilter) ([]Exception, error)
	DeleteException(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
