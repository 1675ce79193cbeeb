package persistence

import "time"

// User represents an employee account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Team represents a rotation team or, when ParentID is set, a half-team
// belonging to a parent team.
type Team struct {
	ID        string
	Name      string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Shift represents a shift type catalog entry. StartsAt and EndsAt are
// wall-clock times in "15:04" form; a shift with EndsAt before StartsAt
// crosses midnight.
type Shift struct {
	ID        string
	Name      string
	StartsAt  string
	EndsAt    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PatternDay is one slot of a cycle-based pattern. An empty ShiftID marks
// the slot as rest.
type PatternDay struct {
	DayNumber int
	ShiftID   string
}

// Pattern represents a recurrence pattern. Calendar frequencies use the
// Interval/DaysOfWeek/ByMonthDay/ByMonth columns; cycle frequencies use
// CycleLength with the Days child rows.
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
	Days        []PatternDay

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assignment binds a user to a team and pattern over a validity window.
// A nil EndDate means the assignment is open-ended.
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

// Exception represents a per-date deviation from the pattern-derived
// schedule, with its approval workflow state.
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

// Session represents an authentication session persisted for a user.
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
