package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// PatternRepository implements persistence.PatternRepository using SQLite.
// Cycle day slots live in the pattern_days child table and are rewritten
// wholesale on every update.
type PatternRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewPatternRepository creates a new SQLite pattern repository.
func NewPatternRepository(pool *ConnectionPool) *PatternRepository {
	return &PatternRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const patternColumns = `id, name, frequency, interval_value, start_date, end_kind, end_count, end_until,
	shift_id, days_of_week, week_start, by_month_day, by_month, cycle_length, active, created_at, updated_at`

// CreatePattern inserts a new pattern with its cycle day rows.
func (r *PatternRepository) CreatePattern(ctx context.Context, pattern persistence.Pattern) error {
	if pattern.ID == "" || pattern.Frequency == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	pattern.CreatedAt = now
	pattern.UpdatedAt = now

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := r.helper.ExecTx(tx, `
			INSERT INTO patterns (`+patternColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.patternArgs(pattern)...)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return r.writeDays(tx, pattern)
	})
}

// UpdatePattern updates an existing pattern and rewrites its cycle day rows.
func (r *PatternRepository) UpdatePattern(ctx context.Context, pattern persistence.Pattern) error {
	if pattern.ID == "" || pattern.Frequency == "" {
		return persistence.ErrConstraintViolation
	}

	pattern.UpdatedAt = time.Now().UTC()

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(tx, `
			UPDATE patterns
			SET name = ?, frequency = ?, interval_value = ?, start_date = ?, end_kind = ?,
			    end_count = ?, end_until = ?, shift_id = ?, days_of_week = ?, week_start = ?,
			    by_month_day = ?, by_month = ?, cycle_length = ?, active = ?, updated_at = ?
			WHERE id = ?
		`,
			pattern.Name,
			pattern.Frequency,
			pattern.Interval,
			formatDate(pattern.StartDate),
			pattern.EndKind,
			nullInt(pattern.EndCount),
			nullDate(pattern.EndUntil),
			nullString(pattern.ShiftID),
			encodeWeekdays(pattern.DaysOfWeek),
			int(pattern.WeekStart),
			nullInt(pattern.ByMonthDay),
			nullInt(pattern.ByMonth),
			pattern.CycleLength,
			pattern.Active,
			pattern.UpdatedAt.Format(time.RFC3339),
			pattern.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireRowsAffected(result); err != nil {
			return err
		}

		if _, err := r.helper.ExecTx(tx, "DELETE FROM pattern_days WHERE pattern_id = ?", pattern.ID); err != nil {
			return r.mapper.MapError(err)
		}
		return r.writeDays(tx, pattern)
	})
}

// GetPattern retrieves a pattern with its cycle day rows.
func (r *PatternRepository) GetPattern(ctx context.Context, id string) (persistence.Pattern, error) {
	if id == "" {
		return persistence.Pattern{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+patternColumns+" FROM patterns WHERE id = ?", id)
	pattern, err := r.scanPattern(row)
	if err != nil {
		return persistence.Pattern{}, err
	}

	if pattern.Days, err = r.loadDays(ctx, pattern.ID); err != nil {
		return persistence.Pattern{}, err
	}
	return pattern, nil
}

// ListPatterns returns all patterns with their cycle day rows, ordered by
// name then ID.
func (r *PatternRepository) ListPatterns(ctx context.Context) ([]persistence.Pattern, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+patternColumns+" FROM patterns ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var patterns []persistence.Pattern
	for rows.Next() {
		pattern, err := r.scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	for i := range patterns {
		if patterns[i].Days, err = r.loadDays(ctx, patterns[i].ID); err != nil {
			return nil, err
		}
	}
	return patterns, nil
}

// DeletePattern removes a pattern and its cycle day rows. Patterns
// referenced by assignments cannot be removed.
func (r *PatternRepository) DeletePattern(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var assignmentCount int
		err := r.helper.QueryRowTx(tx, "SELECT COUNT(*) FROM assignments WHERE pattern_id = ?", id).Scan(&assignmentCount)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if assignmentCount > 0 {
			return persistence.ErrForeignKeyViolation
		}

		if _, err := r.helper.ExecTx(tx, "DELETE FROM pattern_days WHERE pattern_id = ?", id); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(tx, "DELETE FROM patterns WHERE id = ?", id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireRowsAffected(result)
	})
}

func (r *PatternRepository) patternArgs(pattern persistence.Pattern) []interface{} {
	return []interface{}{
		pattern.ID,
		pattern.Name,
		pattern.Frequency,
		pattern.Interval,
		formatDate(pattern.StartDate),
		pattern.EndKind,
		nullInt(pattern.EndCount),
		nullDate(pattern.EndUntil),
		nullString(pattern.ShiftID),
		encodeWeekdays(pattern.DaysOfWeek),
		int(pattern.WeekStart),
		nullInt(pattern.ByMonthDay),
		nullInt(pattern.ByMonth),
		pattern.CycleLength,
		pattern.Active,
		pattern.CreatedAt.Format(time.RFC3339),
		pattern.UpdatedAt.Format(time.RFC3339),
	}
}

func (r *PatternRepository) writeDays(tx *sql.Tx, pattern persistence.Pattern) error {
	for _, day := range pattern.Days {
		_, err := r.helper.ExecTx(tx, `
			INSERT INTO pattern_days (pattern_id, day_number, shift_id)
			VALUES (?, ?, ?)
		`, pattern.ID, day.DayNumber, day.ShiftID)
		if err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *PatternRepository) loadDays(ctx context.Context, patternID string) ([]persistence.PatternDay, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT day_number, shift_id FROM pattern_days
		WHERE pattern_id = ?
		ORDER BY day_number ASC
	`, patternID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var days []persistence.PatternDay
	for rows.Next() {
		var day persistence.PatternDay
		if err := rows.Scan(&day.DayNumber, &day.ShiftID); err != nil {
			return nil, r.mapper.MapError(err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return days, nil
}

func (r *PatternRepository) scanPattern(row rowScanner) (persistence.Pattern, error) {
	var pattern persistence.Pattern
	var startDateStr, createdAtStr, updatedAtStr string
	var endCount, byMonthDay, byMonth sql.NullInt64
	var endUntil, shiftID sql.NullString
	var weekdayMask int64
	var weekStart int

	err := row.Scan(
		&pattern.ID,
		&pattern.Name,
		&pattern.Frequency,
		&pattern.Interval,
		&startDateStr,
		&pattern.EndKind,
		&endCount,
		&endUntil,
		&shiftID,
		&weekdayMask,
		&weekStart,
		&byMonthDay,
		&byMonth,
		&pattern.CycleLength,
		&pattern.Active,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Pattern{}, r.mapper.MapError(err)
	}

	pattern.EndCount = intPtr(endCount)
	pattern.ByMonthDay = intPtr(byMonthDay)
	pattern.ByMonth = intPtr(byMonth)
	pattern.ShiftID = stringPtr(shiftID)
	pattern.DaysOfWeek = decodeWeekdays(weekdayMask)
	pattern.WeekStart = time.Weekday(weekStart)

	if pattern.StartDate, err = parseDate(startDateStr); err != nil {
		return persistence.Pattern{}, fmt.Errorf("failed to parse start_date: %w", err)
	}
	if endUntil.Valid {
		if pattern.EndUntil, err = parseDatePtr(endUntil.String); err != nil {
			return persistence.Pattern{}, fmt.Errorf("failed to parse end_until: %w", err)
		}
	}
	if pattern.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Pattern{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if pattern.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Pattern{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return pattern, nil
}

// nullDate wraps an optional civil date column value.
func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

// encodeWeekdays encodes weekdays as a bitmask for storage.
func encodeWeekdays(weekdays []time.Weekday) int64 {
	var mask int64
	for _, day := range weekdays {
		if day >= time.Sunday && day <= time.Saturday {
			mask |= 1 << uint(day)
		}
	}
	return mask
}

// decodeWeekdays decodes weekdays from a bitmask.
func decodeWeekdays(mask int64) []time.Weekday {
	var weekdays []time.Weekday
	for day := time.Sunday; day <= time.Saturday; day++ {
		if mask&(1<<uint(day)) != 0 {
			weekdays = append(weekdays, day)
		}
	}
	return weekdays
}
