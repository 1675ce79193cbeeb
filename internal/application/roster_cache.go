package application

import (
	"fmt"
	"sync"
	"time"
)

// rosterCache memoizes composed team rosters for a short window. Roster
// composition touches every assignment covering the date, and coordinators
// tend to reload the same day repeatedly.
type rosterCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]rosterCacheEntry
}

type rosterCacheEntry struct {
	roster    TeamRosterResult
	expiresAt time.Time
}

const defaultRosterCacheTTL = 30 * time.Second

func newRosterCache(ttl time.Duration, now func() time.Time) *rosterCache {
	if ttl <= 0 {
		ttl = defaultRosterCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &rosterCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]rosterCacheEntry),
	}
}

func rosterCacheKey(teamID string, date time.Time) string {
	return fmt.Sprintf("%s|%s", teamID, date.Format("2006-01-02"))
}

// get returns a copy of the cached roster so callers cannot mutate the
// cached slices.
func (c *rosterCache) get(key string) (TeamRosterResult, bool) {
	if c == nil {
		return TeamRosterResult{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return TeamRosterResult{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return TeamRosterResult{}, false
	}
	return cloneRoster(entry.roster), true
}

func (c *rosterCache) set(key string, roster TeamRosterResult) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = rosterCacheEntry{
		roster:    cloneRoster(roster),
		expiresAt: c.now().Add(c.ttl),
	}
}

// invalidate drops every cached roster. Any write to assignments,
// exceptions, or patterns can change any roster, so the cache is cleared
// wholesale rather than tracking fine-grained dependencies.
func (c *rosterCache) invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]rosterCacheEntry)
}

func cloneRoster(roster TeamRosterResult) TeamRosterResult {
	cloned := roster
	cloned.Shifts = make([]RosterShift, len(roster.Shifts))
	for i, shift := range roster.Shifts {
		cloned.Shifts[i] = RosterShift{
			ShiftID: shift.ShiftID,
			UserIDs: append([]string(nil), shift.UserIDs...),
		}
	}
	cloned.RestUserIDs = append([]string(nil), roster.RestUserIDs...)
	cloned.Diagnostics = append([]ScheduleDiagnostic(nil), roster.Diagnostics...)
	return cloned
}
