package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
	Disabled    bool
}

// User represents an employee account exposed by the application services.
// The password hash never leaves the service layer.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user. An empty
// Password leaves the stored hash unchanged.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// TeamInput captures caller provided team attributes.
type TeamInput struct {
	Name     string
	ParentID *string
}

// Team represents a rotation team or half-team.
type Team struct {
	ID        string
	Name      string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShiftInput captures caller provided shift catalog attributes.
type ShiftInput struct {
	Name     string
	StartsAt string
	EndsAt   string
}

// Shift represents a shift type catalog entry.
type Shift struct {
	ID        string
	Name      string
	StartsAt  string
	EndsAt    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PatternDayInput is one cycle slot of a pattern input. An empty ShiftID
// marks the slot as rest.
type PatternDayInput struct {
	DayNumber int
	ShiftID   string
}

// PatternInput captures caller provided recurrence pattern attributes.
type PatternInput struct {
	Name      string
	Frequency string
	Interval  int
	StartDate time.Time

	EndKind  string
	EndCount *int
	EndUntil *time.Time

	ShiftID    *string
	DaysOfWeek []time.Weekday
	WeekStart  time.Weekday
	ByMonthDay *int
	ByMonth    *int

	CycleLength int
	Days        []PatternDayInput

	Active bool
}

// Pattern represents a recurrence pattern exposed by the application services.
type Pattern struct {
	ID        string
	Name      string
	Frequency string
	Interval  int
	StartDate time.Time

	EndKind  string
	EndCount *int
	EndUntil *time.Time

	ShiftID    *string
	DaysOfWeek []time.Weekday
	WeekStart  time.Weekday
	ByMonthDay *int
	ByMonth    *int

	CycleLength int
	Days        []PatternDayInput

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AssignmentInput captures caller provided assignment attributes.
type AssignmentInput struct {
	UserID    string
	TeamID    string
	PatternID string
	StartDate time.Time
	EndDate   *time.Time
	Priority  string
}

// Assignment binds a user to a team and pattern over a validity window.
type Assignment struct {
	ID        string
	UserID    string
	TeamID    string
	PatternID string
	StartDate time.Time
	EndDate   *time.Time
	Priority  string
	Status    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExceptionInput captures caller provided exception attributes.
type ExceptionInput struct {
	UserID           string
	TargetDate       time.Time
	Type             string
	Priority         string
	RequiresApproval bool

	NewShiftID        *string
	SwapWithUserID    *string
	ReplacementUserID *string
	ReducedStart      *string
	ReducedEnd        *string
	Reason            *string
}

// Exception represents a per-date schedule deviation with its workflow state.
type Exception struct {
	ID               string
	UserID           string
	TargetDate       time.Time
	Type             string
	Status           string
	Priority         string
	RequiresApproval bool

	NewShiftID        *string
	SwapWithUserID    *string
	ReplacementUserID *string
	ReducedStart      *string
	ReducedEnd        *string
	Reason            *string

	Active     bool
	ApprovedBy *string
	ApprovedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ScheduleDay is the composed schedule outcome for one user on one date.
type ScheduleDay struct {
	Date   time.Time
	UserID string

	AssignmentID string
	TeamID       string
	PatternID    string

	Working bool
	ShiftID string

	Reduced      bool
	ReducedStart string
	ReducedEnd   string

	Closed      bool
	ClosureName string

	AppliedExceptionIDs []string
}

// ScheduleDiagnostic is a non-fatal problem surfaced by composition.
type ScheduleDiagnostic struct {
	Date   time.Time
	UserID string
	Kind   string
	Detail string
}

// UserScheduleResult is the composed schedule over an inclusive date range.
type UserScheduleResult struct {
	Days        []ScheduleDay
	Diagnostics []ScheduleDiagnostic
}

// RosterShift groups the users working one shift on a roster date.
type RosterShift struct {
	ShiftID string
	UserIDs []string
}

// TeamRosterResult is the full-team single-date view.
type TeamRosterResult struct {
	TeamID      string
	Date        time.Time
	Shifts      []RosterShift
	RestUserIDs []string
	Diagnostics []ScheduleDiagnostic
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
