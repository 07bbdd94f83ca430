package deployment

import (
	"errors"
	"sync"
)

// ErrDuplicateApp is returned when a second application tries to
// register under a live name.
var ErrDuplicateApp = errors.New("application name already registered")

// Registry is the single source of truth for what is currently running:
// a mapping from application name to its live Application, iterated in
// registration order so pinned startup ordering stays observable.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Application
	order  []string
}

// NewRegistry creates an empty application registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Application)}
}

// Add registers an application. At most one live entry per name may
// exist at any time.
func (r *Registry) Add(app *Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[app.Name]; ok {
		return ErrDuplicateApp
	}
	r.byName[app.Name] = app
	r.order = append(r.order, app.Name)
	return nil
}

// Get returns the application registered under name.
func (r *Registry) Get(name string) (*Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.byName[name]
	return app, ok
}

// List returns all registered applications in registration order.
func (r *Registry) List() []*Application {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Application, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Remove deletes the entry for name, if present.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Size returns the number of registered applications.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
