package rotation

import "time"

// Outcome is the result of evaluating a pattern for a single date: either a
// rest day or work on a referenced shift.
type Outcome struct {
	Working bool
	ShiftID string
}

// Rest returns the rest-day outcome.
func Rest() Outcome { return Outcome{} }

// Work returns a working outcome for the given shift.
func Work(shiftID string) Outcome { return Outcome{Working: true, ShiftID: shiftID} }

// Evaluate resolves the outcome of a pattern on a calendar date. It is a pure
// function of its inputs: no clock reads, no mutation. Dates outside the
// pattern's scope (before the start date or past the end condition) resolve
// to Rest by policy, not as an error.
func Evaluate(p Pattern, date time.Time) Outcome {
	date = Normalize(date)
	start := Normalize(p.StartDate)

	offset := DaysBetween(start, date)
	if offset < 0 {
		return Rest()
	}
	if p.End.Kind == EndUntil && date.After(Normalize(p.End.Until)) {
		return Rest()
	}

	interval := p.Interval
	if interval < 1 {
		interval = 1
	}

	if p.Frequency.cycleBased() {
		return evaluateCycle(p, offset)
	}

	if !matchesCalendar(p, start, date, interval) {
		return Rest()
	}
	if p.End.Kind == EndCount && occurrenceIndex(p, start, date, interval) >= p.End.Count {
		return Rest()
	}
	return Work(p.ShiftID)
}

func evaluateCycle(p Pattern, offset int) Outcome {
	if p.CycleLength <= 0 || len(p.Days) == 0 {
		return Rest()
	}
	// COUNT bounds the number of full cycles for cycle-based patterns.
	if p.End.Kind == EndCount && offset >= p.End.Count*p.CycleLength {
		return Rest()
	}

	position := floorMod(offset, p.CycleLength)
	for _, day := range p.Days {
		if day.DayNumber == position+1 {
			if day.Rest() {
				return Rest()
			}
			return Work(day.ShiftID)
		}
	}
	return Rest()
}

// matchesCalendar reports whether a daily/weekly/monthly/yearly pattern has
// an occurrence on the given date, ignoring the end condition.
func matchesCalendar(p Pattern, start, date time.Time, interval int) bool {
	switch p.Frequency {
	case FrequencyDaily:
		return DaysBetween(start, date)%interval == 0

	case FrequencyWeekly:
		if !weekdaySelected(p.DaysOfWeek, date.Weekday()) {
			return false
		}
		weeks := floorDiv(DaysBetween(startOfWeek(start, p.WeekStart), date), 7)
		return weeks%interval == 0

	case FrequencyMonthly:
		wantDay := p.ByMonthDay
		if wantDay == 0 {
			wantDay = start.Day()
		}
		if date.Day() != wantDay {
			return false
		}
		months := (date.Year()-start.Year())*12 + int(date.Month()) - int(start.Month())
		return months >= 0 && months%interval == 0

	case FrequencyYearly:
		wantMonth := p.ByMonth
		if wantMonth == 0 {
			wantMonth = start.Month()
		}
		wantDay := p.ByMonthDay
		if wantDay == 0 {
			wantDay = start.Day()
		}
		if date.Month() != wantMonth || date.Day() != wantDay {
			return false
		}
		years := date.Year() - start.Year()
		return years >= 0 && years%interval == 0
	}
	return false
}

func weekdaySelected(days []time.Weekday, day time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// occurrenceIndex counts the occurrences strictly before date. Daily patterns
// have a closed form; the remaining calendar frequencies walk the span, which
// is bounded by the requested date range in practice.
func occurrenceIndex(p Pattern, start, date time.Time, interval int) int {
	if p.Frequency == FrequencyDaily {
		return DaysBetween(start, date) / interval
	}

	index := 0
	for d := start; d.Before(date); d = d.AddDate(0, 0, 1) {
		if matchesCalendar(p, start, d, interval) {
			index++
			if p.End.Kind == EndCount && index >= p.End.Count {
				break
			}
		}
	}
	return index
}
