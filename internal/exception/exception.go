// Package exception models date-scoped schedule overrides (absences, shift
// changes, time reductions) and the approval workflow that makes them
// effective.
package exception

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/rotation"
)

// Type is a namespaced exception type, e.g. ABSENCE_VACATION, CHANGE_SWAP,
// REDUCTION_HOURS. The namespace prefix determines how the exception
// composes with the base schedule.
type Type string

// Class groups exception types by their effect on the base schedule.
type Class string

const (
	// ClassAbsence forces the day to rest.
	ClassAbsence Class = "ABSENCE"
	// ClassChange replaces the shift reference.
	ClassChange Class = "CHANGE"
	// ClassReduction narrows the worked time window without changing the
	// shift identity.
	ClassReduction Class = "REDUCTION"
	// ClassUnknown marks an unrecognized namespace.
	ClassUnknown Class = "UNKNOWN"
)

// Class returns the composition class encoded in the type's namespace.
func (t Type) Class() Class {
	switch {
	case strings.HasPrefix(string(t), "ABSENCE_"):
		return ClassAbsence
	case strings.HasPrefix(string(t), "CHANGE_"):
		return ClassChange
	case strings.HasPrefix(string(t), "REDUCTION_"):
		return ClassReduction
	default:
		return ClassUnknown
	}
}

// Common exception types. The set is open: any type carrying a known
// namespace prefix composes.
const (
	TypeAbsenceVacation Type = "ABSENCE_VACATION"
	TypeAbsenceSick     Type = "ABSENCE_SICK"
	TypeAbsencePermit   Type = "ABSENCE_PERMIT"
	TypeChangeShift     Type = "CHANGE_SHIFT"
	TypeChangeSwap      Type = "CHANGE_SWAP"
	TypeChangeCover     Type = "CHANGE_COVER"
	TypeReductionHours  Type = "REDUCTION_HOURS"
)

// Status is the approval state of an exception.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no further approval transition is allowed.
// Deactivation is an administrative hide, not a state change, and remains
// available from terminal states.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Priority orders competing exceptions targeting the same date.
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
	return PriorityNormal, fmt.Errorf("exception: unknown priority %q", value)
}

// Exception is a single date-scoped override request. Records are soft
// deleted (Active false) so historical schedules stay recomputable.
type Exception struct {
	ID               string
	UserID           string
	TargetDate       time.Time
	Type             Type
	Status           Status
	RequiresApproval bool
	Priority         Priority

	// NewShiftID is the replacement shift for CHANGE_* exceptions.
	NewShiftID string
	// SwapWithUserID and ReplacementUserID identify the counterpart of a
	// swap or cover arrangement; informational for composition.
	SwapWithUserID    string
	ReplacementUserID string

	// ReducedStart and ReducedEnd carry the modified time-of-day window
	// ("15:04") for REDUCTION_* exceptions.
	ReducedStart string
	ReducedEnd   string

	Active     bool
	ApprovedBy string
	ApprovedAt *time.Time
}

// Effective reports whether the exception qualifies to override the base
// schedule: it is active and either approved or a draft that needs no
// approval.
func (e Exception) Effective() bool {
	if !e.Active {
		return false
	}
	if e.Status == StatusApproved {
		return true
	}
	return e.Status == StatusDraft && !e.RequiresApproval
}

// EffectiveOn reports whether the exception is effective for the given date.
func (e Exception) EffectiveOn(date time.Time) bool {
	return e.Effective() && rotation.Normalize(e.TargetDate).Equal(rotation.Normalize(date))
}

var (
	// ErrTerminalState is returned for transitions out of APPROVED or
	// REJECTED.
	ErrTerminalState = errors.New("exception: no transition allowed out of a terminal state")
	// ErrInvalidTransition is returned when the requested transition does
	// not apply to the current state.
	ErrInvalidTransition = errors.New("exception: invalid state transition")
)

// Submit moves a draft into the pending queue. Drafts that need no approval
// are already effective and cannot be submitted.
func Submit(e Exception) (Exception, error) {
	if e.Status.Terminal() {
		return e, ErrTerminalState
	}
	if e.Status != StatusDraft {
		return e, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, e.Status)
	}
	if !e.RequiresApproval {
		return e, fmt.Errorf("%w: submit without approval requirement", ErrInvalidTransition)
	}
	e.Status = StatusPending
	return e, nil
}

// Approve finalizes a pending exception, recording the approver and the
// approval instant.
func Approve(e Exception, approverID string, at time.Time) (Exception, error) {
	if e.Status.Terminal() {
		return e, ErrTerminalState
	}
	if e.Status != StatusPending {
		return e, fmt.Errorf("%w: approve from %s", ErrInvalidTransition, e.Status)
	}
	e.Status = StatusApproved
	e.ApprovedBy = approverID
	approvedAt := at
	e.ApprovedAt = &approvedAt
	return e, nil
}

// Reject finalizes a pending exception as refused.
func Reject(e Exception, approverID string, at time.Time) (Exception, error) {
	if e.Status.Terminal() {
		return e, ErrTerminalState
	}
	if e.Status != StatusPending {
		return e, fmt.Errorf("%w: reject from %s", ErrInvalidTransition, e.Status)
	}
	e.Status = StatusRejected
	e.ApprovedBy = approverID
	rejectedAt := at
	e.ApprovedAt = &rejectedAt
	return e, nil
}

// Deactivate hides the exception administratively. Allowed from any state,
// terminal ones included.
func Deactivate(e Exception) Exception {
	e.Active = false
	return e
}
