package rotation

import (
	"fmt"
	"strings"
	"time"
)

// Frequency identifies how a recurrence pattern repeats.
type Frequency string

const (
	FrequencyDaily         Frequency = "DAILY"
	FrequencyWeekly        Frequency = "WEEKLY"
	FrequencyMonthly       Frequency = "MONTHLY"
	FrequencyYearly        Frequency = "YEARLY"
	FrequencyRotationCycle Frequency = "ROTATION_CYCLE"
	FrequencyCustom        Frequency = "CUSTOM"
)

// ParseFrequency maps a stored frequency label onto a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	switch f := Frequency(strings.ToUpper(strings.TrimSpace(value))); f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly, FrequencyRotationCycle, FrequencyCustom:
		return f, nil
	default:
		return "", fmt.Errorf("rotation: unknown frequency %q", value)
	}
}

func (f Frequency) cycleBased() bool {
	return f == FrequencyRotationCycle || f == FrequencyCustom
}

// EndKind identifies how a pattern stops producing occurrences.
type EndKind string

const (
	// EndNever keeps the pattern open ended.
	EndNever EndKind = "NEVER"
	// EndCount stops the pattern after a fixed number of occurrences
	// (full cycles for cycle-based patterns).
	EndCount EndKind = "COUNT"
	// EndUntil stops the pattern after a final calendar date, inclusive.
	EndUntil EndKind = "UNTIL"
)

// EndCondition bounds the lifetime of a pattern.
type EndCondition struct {
	Kind  EndKind
	Count int
	Until time.Time
}

// PatternDay is one position of a cycle-based pattern. An empty ShiftID
// marks a rest day.
type PatternDay struct {
	DayNumber int
	ShiftID   string
}

// Rest reports whether the position is a rest day.
func (d PatternDay) Rest() bool { return d.ShiftID == "" }

// Pattern is a recurrence definition. It is immutable once referenced by an
// active assignment; deactivation flips Active without touching the fields,
// so historical schedules stay recomputable.
type Pattern struct {
	ID        string
	Frequency Frequency
	Interval  int
	StartDate time.Time
	End       EndCondition

	// ShiftID is the shift emitted on matching days for the calendar
	// frequencies (daily/weekly/monthly/yearly).
	ShiftID string

	// Weekly fields.
	DaysOfWeek []time.Weekday
	WeekStart  time.Weekday

	// Monthly/yearly fields. Zero values default to the start date's
	// day-of-month and month.
	ByMonthDay int
	ByMonth    time.Month

	// Cycle fields (ROTATION_CYCLE and CUSTOM).
	CycleLength int
	Days        []PatternDay

	Active bool
}

// ValidationError reports why a pattern definition was rejected. Invalid
// patterns are refused at creation time and never stored.
type ValidationError struct {
	PatternID string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.PatternID == "" {
		return "rotation: invalid pattern: " + e.Reason
	}
	return fmt.Sprintf("rotation: invalid pattern %s: %s", e.PatternID, e.Reason)
}

func invalid(id, format string, args ...any) error {
	return &ValidationError{PatternID: id, Reason: fmt.Sprintf(format, args...)}
}

// ValidatePattern checks the structural invariants of a pattern definition.
func ValidatePattern(p Pattern) error {
	if _, err := ParseFrequency(string(p.Frequency)); err != nil {
		return invalid(p.ID, "unknown frequency %q", string(p.Frequency))
	}
	if p.StartDate.IsZero() {
		return invalid(p.ID, "start date is required")
	}
	// A zero interval means unset and evaluates as 1.
	if p.Interval < 0 {
		return invalid(p.ID, "interval must not be negative")
	}

	switch p.End.Kind {
	case "", EndNever:
	case EndCount:
		if p.End.Count <= 0 {
			return invalid(p.ID, "end count must be positive")
		}
	case EndUntil:
		if p.End.Until.IsZero() {
			return invalid(p.ID, "end date is required for UNTIL")
		}
		if Normalize(p.End.Until).Before(Normalize(p.StartDate)) {
			return invalid(p.ID, "end date precedes start date")
		}
	default:
		return invalid(p.ID, "unknown end condition %q", string(p.End.Kind))
	}

	switch {
	case p.Frequency == FrequencyWeekly:
		if len(p.DaysOfWeek) == 0 {
			return invalid(p.ID, "weekly pattern requires at least one weekday")
		}
		seen := make(map[time.Weekday]struct{}, len(p.DaysOfWeek))
		for _, day := range p.DaysOfWeek {
			if day < time.Sunday || day > time.Saturday {
				return invalid(p.ID, "weekday %d out of range", int(day))
			}
			if _, ok := seen[day]; ok {
				return invalid(p.ID, "duplicate weekday %s", day)
			}
			seen[day] = struct{}{}
		}
	case p.Frequency.cycleBased():
		if err := validateCycleDays(p); err != nil {
			return err
		}
	}

	return nil
}

func validateCycleDays(p Pattern) error {
	if len(p.Days) == 0 {
		return invalid(p.ID, "pattern has no days")
	}
	if p.CycleLength <= 0 {
		return invalid(p.ID, "cycle length must be positive")
	}
	if p.CycleLength != len(p.Days) {
		return invalid(p.ID, "cycle length %d does not match %d pattern days", p.CycleLength, len(p.Days))
	}

	seen := make(map[int]struct{}, len(p.Days))
	for _, day := range p.Days {
		if day.DayNumber < 1 || day.DayNumber > p.CycleLength {
			return invalid(p.ID, "day number %d outside 1..%d", day.DayNumber, p.CycleLength)
		}
		if _, ok := seen[day.DayNumber]; ok {
			return invalid(p.ID, "duplicate day number %d", day.DayNumber)
		}
		seen[day.DayNumber] = struct{}{}
	}
	for n := 1; n <= p.CycleLength; n++ {
		if _, ok := seen[n]; !ok {
			return invalid(p.ID, "day numbers are not sequential: missing %d", n)
		}
	}
	return nil
}

// NewCustomPattern assembles and validates a CUSTOM pattern from an ordered
// list of shift-or-rest days. Day numbers are assigned from the list order.
func NewCustomPattern(id string, start time.Time, shiftIDs []string) (Pattern, error) {
	days := make([]PatternDay, len(shiftIDs))
	for i, shiftID := range shiftIDs {
		days[i] = PatternDay{DayNumber: i + 1, ShiftID: shiftID}
	}
	p := Pattern{
		ID:          id,
		Frequency:   FrequencyCustom,
		Interval:    1,
		StartDate:   Normalize(start),
		End:         EndCondition{Kind: EndNever},
		CycleLength: len(days),
		Days:        days,
		Active:      true,
	}
	if err := ValidatePattern(p); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// DaySequence re-extracts the ordered shift-or-rest list from a cycle-based
// pattern, the inverse of NewCustomPattern.
func (p Pattern) DaySequence() []string {
	if !p.Frequency.cycleBased() {
		return nil
	}
	out := make([]string, p.CycleLength)
	for _, day := range p.Days {
		if day.DayNumber >= 1 && day.DayNumber <= p.CycleLength {
			out[day.DayNumber-1] = day.ShiftID
		}
	}
	return out
}
