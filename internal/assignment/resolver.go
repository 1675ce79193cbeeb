// Package assignment selects the single governing assignment for a user on a
// date from possibly overlapping candidates. Selection is pure: the resolver
// never touches storage and never mutates its inputs.
package assignment

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/rotation"
)

// Priority orders competing assignments. Higher wins.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityOverride
)

var priorityNames = map[Priority]string{
	PriorityLow:      "LOW",
	PriorityNormal:   "NORMAL",
	PriorityHigh:     "HIGH",
	PriorityOverride: "OVERRIDE",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// ParsePriority maps a stored priority label onto a Priority.
func ParsePriority(value string) (Priority, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for priority, name := range priorityNames {
		if name == normalized {
			return priority, nil
		}
	}
	return PriorityNormal, fmt.Errorf("assignment: unknown priority %q", value)
}

// Status tracks the lifecycle of an assignment record.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPending   Status = "PENDING"
	StatusExpired   Status = "EXPIRED"
	StatusSuspended Status = "SUSPENDED"
	StatusCancelled Status = "CANCELLED"
)

// Assignment binds a user to a team and a recurrence pattern for a validity
// window. EndDate nil means open ended. Records are soft deleted (Active
// false) so historical schedules stay recomputable.
type Assignment struct {
	ID        string
	UserID    string
	TeamID    string
	PatternID string
	StartDate time.Time
	EndDate   *time.Time
	Priority  Priority
	Status    Status
	Active    bool
}

// Covers reports whether the assignment can govern the given date: the
// administrative kill switch is on, the record is not cancelled, and the
// date falls inside the validity window.
func (a Assignment) Covers(date time.Time) bool {
	if !a.Active || a.Status == StatusCancelled {
		return false
	}
	date = rotation.Normalize(date)
	if date.Before(rotation.Normalize(a.StartDate)) {
		return false
	}
	if a.EndDate != nil && date.After(rotation.Normalize(*a.EndDate)) {
		return false
	}
	return true
}

// Resolution is the outcome of governing-assignment selection for one date.
// Ambiguous flags a tie on both priority and start date; the id tie-break
// still yields a deterministic winner, but the tie signals a data-entry
// problem upstream and is surfaced as a diagnostic.
type Resolution struct {
	Assignment  Assignment
	Found       bool
	Ambiguous   bool
	ContenderID string
}

// ResolveGoverning picks the assignment governing the user on the date:
// highest priority wins, ties broken by latest start date, then by smallest
// id.
func ResolveGoverning(userID string, date time.Time, candidates []Assignment) Resolution {
	matched := make([]Assignment, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.UserID != userID {
			continue
		}
		if candidate.Covers(date) {
			matched = append(matched, candidate)
		}
	}
	if len(matched) == 0 {
		return Resolution{}
	}

	sort.Slice(matched, func(i, j int) bool { return governs(matched[i], matched[j]) })

	resolution := Resolution{Assignment: matched[0], Found: true}
	if len(matched) > 1 {
		runnerUp := matched[1]
		if runnerUp.Priority == matched[0].Priority &&
			rotation.Normalize(runnerUp.StartDate).Equal(rotation.Normalize(matched[0].StartDate)) {
			resolution.Ambiguous = true
			resolution.ContenderID = runnerUp.ID
		}
	}
	return resolution
}

func governs(a, b Assignment) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	aStart, bStart := rotation.Normalize(a.StartDate), rotation.Normalize(b.StartDate)
	if !aStart.Equal(bStart) {
		return aStart.After(bStart)
	}
	return a.ID < b.ID
}

// ResolveRange applies the single-date rule independently to every date of
// the inclusive range. Gaps are legal and appear as absent entries: no
// governing assignment composes to an implicit rest day.
func ResolveRange(userID string, start, end time.Time, candidates []Assignment) map[time.Time]Resolution {
	start = rotation.Normalize(start)
	end = rotation.Normalize(end)

	resolved := make(map[time.Time]Resolution)
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		if resolution := ResolveGoverning(userID, date, candidates); resolution.Found {
			resolved[date] = resolution
		}
	}
	return resolved
}

// Window is a validity window with an optional open end.
type Window struct {
	Start time.Time
	End   *time.Time
}

func (w Window) intersects(other Window) bool {
	if other.End != nil && rotation.Normalize(*other.End).Before(rotation.Normalize(w.Start)) {
		return false
	}
	if w.End != nil && rotation.Normalize(*w.End).Before(rotation.Normalize(other.Start)) {
		return false
	}
	return true
}

// FindOverlaps returns the assignments for the user whose validity window
// intersects the given window, excluding the record being edited. Callers
// use this before creating an assignment; overlap is reported, not enforced.
func FindOverlaps(userID string, window Window, excludeID string, candidates []Assignment) []Assignment {
	overlaps := make([]Assignment, 0)
	for _, candidate := range candidates {
		if candidate.UserID != userID || candidate.ID == excludeID {
			continue
		}
		if !candidate.Active || candidate.Status == StatusCancelled {
			continue
		}
		if window.intersects(Window{Start: candidate.StartDate, End: candidate.EndDate}) {
			overlaps = append(overlaps, candidate)
		}
	}
	sort.Slice(overlaps, func(i, j int) bool { return overlaps[i].ID < overlaps[j].ID })
	return overlaps
}
