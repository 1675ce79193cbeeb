package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/rotation"
)

// In-memory repository fakes for service tests. They honor the persistence
// sentinel errors so the services' error mapping is exercised for real.

type fakeUserRepository struct {
	mu    sync.Mutex
	users map[string]persistence.User
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: make(map[string]persistence.User)}
}

func (r *fakeUserRepository) CreateUser(_ context.Context, user persistence.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return persistence.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepository) UpdateUser(_ context.Context, user persistence.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepository) GetUser(_ context.Context, id string) (persistence.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepository) GetUserByEmail(_ context.Context, email string) (persistence.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (r *fakeUserRepository) ListUsers(_ context.Context) ([]persistence.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]persistence.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (r *fakeUserRepository) DeleteUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeTeamRepository struct {
	mu    sync.Mutex
	teams map[string]persistence.Team
}

func newFakeTeamRepository() *fakeTeamRepository {
	return &fakeTeamRepository{teams: make(map[string]persistence.Team)}
}

func (r *fakeTeamRepository) CreateTeam(_ context.Context, team persistence.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[team.ID]; ok {
		return persistence.ErrDuplicate
	}
	r.teams[team.ID] = team
	return nil
}

func (r *fakeTeamRepository) UpdateTeam(_ context.Context, team persistence.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[team.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.teams[team.ID] = team
	return nil
}

func (r *fakeTeamRepository) GetTeam(_ context.Context, id string) (persistence.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	team, ok := r.teams[id]
	if !ok {
		return persistence.Team{}, persistence.ErrNotFound
	}
	return team, nil
}

func (r *fakeTeamRepository) ListTeams(_ context.Context) ([]persistence.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	teams := make([]persistence.Team, 0, len(r.teams))
	for _, team := range r.teams {
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

func (r *fakeTeamRepository) ListChildTeams(_ context.Context, parentID string) ([]persistence.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	teams := make([]persistence.Team, 0)
	for _, team := range r.teams {
		if team.ParentID != nil && *team.ParentID == parentID {
			teams = append(teams, team)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

func (r *fakeTeamRepository) DeleteTeam(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.teams, id)
	return nil
}

type fakeShiftRepository struct {
	mu     sync.Mutex
	shifts map[string]persistence.Shift
}

func newFakeShiftRepository() *fakeShiftRepository {
	return &fakeShiftRepository{shifts: make(map[string]persistence.Shift)}
}

func (r *fakeShiftRepository) CreateShift(_ context.Context, shift persistence.Shift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shifts[shift.ID]; ok {
		return persistence.ErrDuplicate
	}
	r.shifts[shift.ID] = shift
	return nil
}

func (r *fakeShiftRepository) UpdateShift(_ context.Context, shift persistence.Shift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shifts[shift.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.shifts[shift.ID] = shift
	return nil
}

func (r *fakeShiftRepository) GetShift(_ context.Context, id string) (persistence.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shift, ok := r.shifts[id]
	if !ok {
		return persistence.Shift{}, persistence.ErrNotFound
	}
	return shift, nil
}

func (r *fakeShiftRepository) ListShifts(_ context.Context) ([]persistence.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shifts := make([]persistence.Shift, 0, len(r.shifts))
	for _, shift := range r.shifts {
		shifts = append(shifts, shift)
	}
	sort.Slice(shifts, func(i, j int) bool { return shifts[i].ID < shifts[j].ID })
	return shifts, nil
}

func (r *fakeShiftRepository) DeleteShift(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shifts[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.shifts, id)
	return nil
}

type fakePatternRepository struct {
	mu       sync.Mutex
	patterns map[string]persistence.Pattern
}

func newFakePatternRepository() *fakePatternRepository {
	return &fakePatternRepository{patterns: make(map[string]persistence.Pattern)}
}

func (r *fakePatternRepository) CreatePattern(_ context.Context, pattern persistence.Pattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patterns[pattern.ID]; ok {
		return persistence.ErrDuplicate
	}
	r.patterns[pattern.ID] = pattern
	return nil
}

func (r *fakePatternRepository) UpdatePattern(_ context.Context, pattern persistence.Pattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patterns[pattern.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.patterns[pattern.ID] = pattern
	return nil
}

func (r *fakePatternRepository) GetPattern(_ context.Context, id string) (persistence.Pattern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pattern, ok := r.patterns[id]
	if !ok {
		return persistence.Pattern{}, persistence.ErrNotFound
	}
	return pattern, nil
}

func (r *fakePatternRepository) ListPatterns(_ context.Context) ([]persistence.Pattern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	patterns := make([]persistence.Pattern, 0, len(r.patterns))
	for _, pattern := range r.patterns {
		patterns = append(patterns, pattern)
	}
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].ID < patterns[j].ID })
	return patterns, nil
}

func (r *fakePatternRepository) DeletePattern(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patterns[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.patterns, id)
	return nil
}

type fakeAssignmentRepository struct {
	mu          sync.Mutex
	assignments map[string]persistence.Assignment
}

func newFakeAssignmentRepository() *fakeAssignmentRepository {
	return &fakeAssignmentRepository{assignments: make(map[string]persistence.Assignment)}
}

func (r *fakeAssignmentRepository) CreateAssignment(_ context.Context, a persistence.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[a.ID]; ok {
		return persistence.ErrDuplicate
	}
	r.assignments[a.ID] = a
	return nil
}

func (r *fakeAssignmentRepository) UpdateAssignment(_ context.Context, a persistence.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[a.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.assignments[a.ID] = a
	return nil
}

func (r *fakeAssignmentRepository) GetAssignment(_ context.Context, id string) (persistence.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return persistence.Assignment{}, persistence.ErrNotFound
	}
	return a, nil
}

func (r *fakeAssignmentRepository) ListAssignments(_ context.Context, filter persistence.AssignmentFilter) ([]persistence.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignments := make([]persistence.Assignment, 0)
	for _, a := range r.assignments {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if filter.TeamID != "" && a.TeamID != filter.TeamID {
			continue
		}
		if filter.CoversDate != nil {
			date := rotation.Normalize(*filter.CoversDate)
			if date.Before(rotation.Normalize(a.StartDate)) {
				continue
			}
			if a.EndDate != nil && date.After(rotation.Normalize(*a.EndDate)) {
				continue
			}
		}
		assignments = append(assignments, a)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}

func (r *fakeAssignmentRepository) DeleteAssignment(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.assignments, id)
	return nil
}

type fakeExceptionRepository struct {
	mu         sync.Mutex
	exceptions map[string]persistence.Exception
}

func newFakeExceptionRepository() *fakeExceptionRepository {
	return &fakeExceptionRepository{exceptions: make(map[string]persistence.Exception)}
}

func (r *fakeExceptionRepository) CreateException(_ context.Context, e persistence.Exception) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exceptions[e.ID]; ok {
		return persistence.ErrDuplicate
	}
	r.exceptions[e.ID] = e
	return nil
}

func (r *fakeExceptionRepository) UpdateException(_ context.Context, e persistence.Exception) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exceptions[e.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.exceptions[e.ID] = e
	return nil
}

func (r *fakeExceptionRepository) GetException(_ context.Context, id string) (persistence.Exception, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exceptions[id]
	if !ok {
		return persistence.Exception{}, persistence.ErrNotFound
	}
	return e, nil
}

func (r *fakeExceptionRepository) ListExceptions(_ context.Context, filter persistence.ExceptionFilter) ([]persistence.Exception, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exceptions := make([]persistence.Exception, 0)
	for _, e := range r.exceptions {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		target := rotation.Normalize(e.TargetDate)
		if filter.From != nil && target.Before(rotation.Normalize(*filter.From)) {
			continue
		}
		if filter.To != nil && target.After(rotation.Normalize(*filter.To)) {
			continue
		}
		exceptions = append(exceptions, e)
	}
	sort.Slice(exceptions, func(i, j int) bool { return exceptions[i].ID < exceptions[j].ID })
	return exceptions, nil
}

func (r *fakeExceptionRepository) DeleteException(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exceptions[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.exceptions, id)
	return nil
}

type fakeSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]persistence.Session
}

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{sessions: make(map[string]persistence.Session)}
}

func (r *fakeSessionRepository) CreateSession(_ context.Context, session persistence.Session) (persistence.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.Token]; ok {
		return persistence.Session{}, persistence.ErrDuplicate
	}
	r.sessions[session.Token] = session
	return session, nil
}

func (r *fakeSessionRepository) GetSession(_ context.Context, token string) (persistence.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (r *fakeSessionRepository) UpdateSession(_ context.Context, session persistence.Session) (persistence.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, stored := range r.sessions {
		if stored.ID == session.ID {
			delete(r.sessions, token)
			r.sessions[session.Token] = session
			return session, nil
		}
	}
	return persistence.Session{}, persistence.ErrNotFound
}

func (r *fakeSessionRepository) RevokeSession(_ context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[token]
	if !ok || session.RevokedAt != nil {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	r.sessions[token] = session
	return session, nil
}

func (r *fakeSessionRepository) DeleteExpiredSessions(_ context.Context, reference time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, session := range r.sessions {
		if session.ExpiresAt.Before(reference) || session.RevokedAt != nil {
			delete(r.sessions, token)
		}
	}
	return nil
}

// Seed helpers shared by the service tests.

func mustUser(id, email string) persistence.User {
	return persistence.User{ID: id, Email: email, DisplayName: "User " + id, PasswordHash: "hash:placeholder"}
}

func mustTeam(id, name string) persistence.Team {
	return persistence.Team{ID: id, Name: name}
}

// mustCyclePattern builds an active rotation cycle alternating between
// morning work and rest, two days each.
func mustCyclePattern(id string, cycleLength int) persistence.Pattern {
	days := make([]persistence.PatternDay, cycleLength)
	for i := 0; i < cycleLength; i++ {
		shift := ""
		if i < cycleLength/2 {
			shift = "shift-morning"
		}
		days[i] = persistence.PatternDay{DayNumber: i + 1, ShiftID: shift}
	}
	return persistence.Pattern{
		ID:          id,
		Name:        "Cycle " + id,
		Frequency:   "ROTATION_CYCLE",
		Interval:    1,
		StartDate:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		EndKind:     "NEVER",
		CycleLength: cycleLength,
		Days:        days,
		Active:      true,
	}
}

func assignmentFilterAll() persistence.AssignmentFilter {
	return persistence.AssignmentFilter{}
}

// sequentialIDs returns a deterministic id generator for tests.
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// fixedClock returns a clock pinned to the given instant.
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// plaintextHasher stores passwords recognizable to tests without the cost of
// a real key derivation.
func plaintextHasher(password string) (string, error) {
	return "hash:" + password, nil
}
