package rotation

import "time"

// Schedule dates are day granular. Every date handled by this package is a
// time.Time normalized to midnight UTC so that day arithmetic is exact and
// free of zone or DST drift.

// Date constructs a normalized calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Normalize strips the time-of-day and zone from t, keeping its calendar date.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of calendar days from one date to
// another. Both arguments are normalized before subtraction.
func DaysBetween(from, to time.Time) int {
	return int(Normalize(to).Sub(Normalize(from)) / (24 * time.Hour))
}

// floorMod returns a mod n with the sign of n, so dates before a
// multiple-of-cycle boundary still land on a valid cycle position.
func floorMod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

func floorDiv(a, n int) int {
	q := a / n
	if (a%n != 0) && ((a < 0) != (n < 0)) {
		q--
	}
	return q
}

// startOfWeek returns the most recent weekStart on or before the given date.
func startOfWeek(date time.Time, weekStart time.Weekday) time.Time {
	date = Normalize(date)
	offset := floorMod(int(date.Weekday())-int(weekStart), 7)
	return date.AddDate(0, 0, -offset)
}
