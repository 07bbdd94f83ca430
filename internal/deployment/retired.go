package deployment

import (
	"sync"
	"time"
)

// retiredSet remembers artifacts whose application was undeployed while
// the artifact stayed on disk (anchor deletion, explicit undeploy). The
// poll loop must not resurrect the application from the leftovers, so a
// retired location is skipped until its timestamp changes, which is the
// operator's signal to deploy it again.
type retiredSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newRetiredSet() *retiredSet {
	return &retiredSet{entries: make(map[string]time.Time)}
}

func (r *retiredSet) retire(location string, lastModified time.Time) {
	if location == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[location] = lastModified
}

func (r *retiredSet) isRetired(location string, current time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.entries[location]
	return ok && stored.Equal(current)
}

func (r *retiredSet) clear(location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, location)
}
