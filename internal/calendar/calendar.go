// Package calendar loads versioned plant-closure reference data. Closures are
// full date ranges, so a span crossing a month boundary is a single record
// rather than per-month slices, and the data is passed into schedule
// composition as an explicit input instead of living in a compiled-in table.
package calendar

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calvuzs3/qdue-server/internal/rotation"
)

// Closure is an inclusive range of dates on which the plant is closed.
type Closure struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Contains reports whether the closure covers the given calendar date.
func (c Closure) Contains(date time.Time) bool {
	date = rotation.Normalize(date)
	return !date.Before(rotation.Normalize(c.Start)) && !date.After(rotation.Normalize(c.End))
}

// Calendar is a versioned set of closures.
type Calendar struct {
	Version  string
	Closures []Closure
}

// ClosedOn returns the first closure covering the date, if any.
func (c *Calendar) ClosedOn(date time.Time) (Closure, bool) {
	if c == nil {
		return Closure{}, false
	}
	for _, closure := range c.Closures {
		if closure.Contains(date) {
			return closure, true
		}
	}
	return Closure{}, false
}

type calendarDoc struct {
	Version  string       `yaml:"version"`
	Closures []closureDoc `yaml:"closures"`
}

type closureDoc struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Parse decodes a closure calendar from its YAML representation. Dates use
// the ISO form 2006-01-02.
func Parse(data []byte) (*Calendar, error) {
	var doc calendarDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("calendar: decode: %w", err)
	}

	cal := &Calendar{Version: doc.Version, Closures: make([]Closure, 0, len(doc.Closures))}
	for i, entry := range doc.Closures {
		start, err := parseDate(entry.Start)
		if err != nil {
			return nil, fmt.Errorf("calendar: closure %d: invalid start: %w", i, err)
		}
		end := start
		if entry.End != "" {
			if end, err = parseDate(entry.End); err != nil {
				return nil, fmt.Errorf("calendar: closure %d: invalid end: %w", i, err)
			}
		}
		if end.Before(start) {
			return nil, fmt.Errorf("calendar: closure %d (%s): end precedes start", i, entry.Name)
		}
		cal.Closures = append(cal.Closures, Closure{Name: entry.Name, Start: start, End: end})
	}

	return cal, nil
}

// Load reads and parses a closure calendar file.
func Load(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("calendar: read %s: %w", path, err)
	}
	return Parse(data)
}

func parseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return rotation.Normalize(t), nil
}
