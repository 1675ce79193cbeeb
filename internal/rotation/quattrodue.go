package rotation

import "time"

// The continuous "quattro-due" rotation: nine half-teams cycling through
// four work days and two rest days per shift block, offset from each other
// by two days. On any date each of the three shifts is covered by exactly
// two half-teams and three half-teams rest, so coverage never lapses.

// QuattroDueCycleLength is the length of the shared rotation cycle:
// three shift blocks of four work days plus two rest days each.
const QuattroDueCycleLength = 18

// QuattroDueOffset is the phase shift, in days, between consecutive
// half-teams.
const QuattroDueOffset = 2

var quattroDueHalfTeams = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I"}

// QuattroDueHalfTeams returns the fixed half-team labels of the rotation in
// rotation order.
func QuattroDueHalfTeams() []string {
	out := make([]string, len(quattroDueHalfTeams))
	copy(out, quattroDueHalfTeams)
	return out
}

// quattroDueBase is the shared 18-day sequence each half-team walks through,
// phase shifted. Shift order follows the forward-rotating convention:
// morning block, afternoon block, night block.
func quattroDueBase(morning, afternoon, night string) []string {
	seq := make([]string, 0, QuattroDueCycleLength)
	for _, shift := range []string{morning, afternoon, night} {
		seq = append(seq, shift, shift, shift, shift, "", "")
	}
	return seq
}

// BootstrapQuattroDue builds the nine half-team rotation patterns sharing a
// single start date. Pattern IDs are derived from the half-team labels via
// patternID, letting callers namespace them. The returned patterns are
// ROTATION_CYCLE, open ended and active.
func BootstrapQuattroDue(start time.Time, morning, afternoon, night string, patternID func(halfTeam string) string) []Pattern {
	if patternID == nil {
		patternID = func(halfTeam string) string { return "rotation-" + halfTeam }
	}

	base := quattroDueBase(morning, afternoon, night)
	patterns := make([]Pattern, 0, len(quattroDueHalfTeams))

	for i, halfTeam := range quattroDueHalfTeams {
		days := make([]PatternDay, QuattroDueCycleLength)
		for j := 0; j < QuattroDueCycleLength; j++ {
			days[j] = PatternDay{
				DayNumber: j + 1,
				ShiftID:   base[floorMod(j+i*QuattroDueOffset, QuattroDueCycleLength)],
			}
		}
		patterns = append(patterns, Pattern{
			ID:          patternID(halfTeam),
			Frequency:   FrequencyRotationCycle,
			Interval:    1,
			StartDate:   Normalize(start),
			End:         EndCondition{Kind: EndNever},
			CycleLength: QuattroDueCycleLength,
			Days:        days,
			Active:      true,
		})
	}

	return patterns
}
