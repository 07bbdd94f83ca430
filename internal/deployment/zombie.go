package deployment

import (
	"sync"
	"time"
)

// ZombieRegistry records artifacts that failed to deploy, keyed by
// canonical source location with the modification timestamp observed at
// failure time. A recorded artifact is not retried until its timestamp
// changes, so a broken archive does not burn a build attempt every poll
// cycle while still letting an operator re-enable retry by touching or
// replacing the file.
type ZombieRegistry struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewZombieRegistry creates an empty zombie registry.
func NewZombieRegistry() *ZombieRegistry {
	return &ZombieRegistry{entries: make(map[string]time.Time)}
}

// IsZombie reports whether the location failed before and is unchanged
// since: true iff an entry exists and its stored timestamp equals
// current.
func (z *ZombieRegistry) IsZombie(location string, current time.Time) bool {
	z.mu.RLock()
	defer z.mu.RUnlock()
	stored, ok := z.entries[location]
	return ok && stored.Equal(current)
}

// RecordFailure remembers the location with the timestamp observed at
// failure time, replacing any previous entry.
func (z *ZombieRegistry) RecordFailure(location string, lastModified time.Time) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.entries[location] = lastModified
}

// Clear removes the entry for a location. Called the moment a retry of
// that location succeeds.
func (z *ZombieRegistry) Clear(location string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.entries, location)
}

// Snapshot returns a copy of the zombie map for diagnostics.
func (z *ZombieRegistry) Snapshot() map[string]time.Time {
	z.mu.RLock()
	defer z.mu.RUnlock()
	out := make(map[string]time.Time, len(z.entries))
	for location, ts := range z.entries {
		out[location] = ts
	}
	return out
}
