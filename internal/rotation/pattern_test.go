package rotation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidatePattern_CycleDayNumbers(t *testing.T) {
	t.Parallel()

	start := Date(2024, time.January, 1)

	t.Run("rejects gaps in day numbers", func(t *testing.T) {
		t.Parallel()
		p := Pattern{
			ID:          "p-gap",
			Frequency:   FrequencyCustom,
			StartDate:   start,
			CycleLength: 3,
			Days: []PatternDay{
				{DayNumber: 1, ShiftID: "m"},
				{DayNumber: 3, ShiftID: "n"},
				{DayNumber: 4},
			},
		}

		err := ValidatePattern(p)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if !strings.Contains(vErr.Reason, "1..3") && !strings.Contains(vErr.Reason, "sequential") {
			t.Fatalf("expected non-sequential numbering reason, got %q", vErr.Reason)
		}
	})

	t.Run("rejects an empty day list", func(t *testing.T) {
		t.Parallel()
		p := Pattern{
			ID:          "p-empty",
			Frequency:   FrequencyCustom,
			StartDate:   start,
			CycleLength: 0,
		}

		err := ValidatePattern(p)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if !strings.Contains(vErr.Reason, "no days") {
			t.Fatalf("expected emptiness reason, got %q", vErr.Reason)
		}
	})

	t.Run("rejects cycle length mismatch", func(t *testing.T) {
		t.Parallel()
		p := Pattern{
			ID:          "p-mismatch",
			Frequency:   FrequencyRotationCycle,
			StartDate:   start,
			CycleLength: 4,
			Days: []PatternDay{
				{DayNumber: 1, ShiftID: "m"},
				{DayNumber: 2, ShiftID: "n"},
			},
		}

		var vErr *ValidationError
		if err := ValidatePattern(p); !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("rejects duplicate day numbers", func(t *testing.T) {
		t.Parallel()
		p := Pattern{
			ID:          "p-dup",
			Frequency:   FrequencyCustom,
			StartDate:   start,
			CycleLength: 2,
			Days: []PatternDay{
				{DayNumber: 1, ShiftID: "m"},
				{DayNumber: 1, ShiftID: "n"},
			},
		}

		var vErr *ValidationError
		if err := ValidatePattern(p); !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestValidatePattern_Weekly(t *testing.T) {
	t.Parallel()

	p := Pattern{
		ID:        "p-weekly",
		Frequency: FrequencyWeekly,
		StartDate: Date(2024, time.January, 1),
	}

	var vErr *ValidationError
	if err := ValidatePattern(p); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for missing weekdays, got %v", err)
	}

	p.DaysOfWeek = []time.Weekday{time.Monday}
	if err := ValidatePattern(p); err != nil {
		t.Fatalf("expected valid weekly pattern, got %v", err)
	}
}

func TestValidatePattern_Interval(t *testing.T) {
	t.Parallel()

	p := Pattern{
		ID:        "p-interval",
		Frequency: FrequencyDaily,
		StartDate: Date(2024, time.January, 1),
		ShiftID:   "m",
		Interval:  -1,
	}

	var vErr *ValidationError
	if err := ValidatePattern(p); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for negative interval, got %v", err)
	}
	if !strings.Contains(vErr.Reason, "negative") {
		t.Fatalf("expected negativity reason, got %q", vErr.Reason)
	}

	// Zero means unset and evaluates exactly like 1.
	p.Interval = 0
	if err := ValidatePattern(p); err != nil {
		t.Fatalf("expected zero interval to validate, got %v", err)
	}
	unset := Evaluate(p, p.StartDate.AddDate(0, 0, 5))
	p.Interval = 1
	explicit := Evaluate(p, p.StartDate.AddDate(0, 0, 5))
	if unset != explicit {
		t.Fatalf("zero interval evaluated %+v, explicit 1 evaluated %+v", unset, explicit)
	}
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	if f, err := ParseFrequency("rotation_cycle"); err != nil || f != FrequencyRotationCycle {
		t.Fatalf("ParseFrequency(rotation_cycle) = %v, %v", f, err)
	}
	if _, err := ParseFrequency("fortnightly"); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}

func TestBootstrapQuattroDue_Coverage(t *testing.T) {
	t.Parallel()

	start := Date(2024, time.January, 1)
	patterns := BootstrapQuattroDue(start, "morning", "afternoon", "night", nil)
	if len(patterns) != 9 {
		t.Fatalf("expected 9 half-team patterns, got %d", len(patterns))
	}

	for _, p := range patterns {
		if err := ValidatePattern(p); err != nil {
			t.Fatalf("bootstrap pattern %s invalid: %v", p.ID, err)
		}
	}

	// Every date must have each shift covered by exactly two half-teams.
	for offset := 0; offset < 2*QuattroDueCycleLength; offset++ {
		date := start.AddDate(0, 0, offset)
		counts := make(map[string]int)
		resting := 0
		for _, p := range patterns {
			outcome := Evaluate(p, date)
			if !outcome.Working {
				resting++
				continue
			}
			counts[outcome.ShiftID]++
		}
		for _, shift := range []string{"morning", "afternoon", "night"} {
			if counts[shift] != 2 {
				t.Fatalf("day %d: shift %s covered by %d half-teams, want 2", offset, shift, counts[shift])
			}
		}
		if resting != 3 {
			t.Fatalf("day %d: %d half-teams resting, want 3", offset, resting)
		}
	}
}

func TestBootstrapQuattroDue_FourOnTwoOff(t *testing.T) {
	t.Parallel()

	patterns := BootstrapQuattroDue(Date(2024, time.January, 1), "m", "a", "n", func(halfTeam string) string {
		return "qd-" + halfTeam
	})

	if patterns[0].ID != "qd-A" {
		t.Fatalf("expected caller-provided pattern id, got %s", patterns[0].ID)
	}

	// Each half-team cycles through runs of 4 work days and 2 rest days.
	// Runs are measured on the circular sequence since offsets wrap blocks
	// around the cycle boundary.
	for _, p := range patterns {
		seq := p.DaySequence()
		n := len(seq)
		for i := 0; i < n; i++ {
			prev := seq[(i+n-1)%n]
			if (seq[i] == "") == (prev == "") {
				continue // not a run start
			}
			length := 0
			for j := i; (seq[j%n] == "") == (seq[i] == ""); j++ {
				length++
			}
			if seq[i] == "" && length != 2 {
				t.Fatalf("pattern %s: rest run of %d days in %v", p.ID, length, seq)
			}
			if seq[i] != "" && length != 4 {
				t.Fatalf("pattern %s: work run of %d days in %v", p.ID, length, seq)
			}
		}
	}
}
