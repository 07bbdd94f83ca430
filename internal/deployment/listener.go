package deployment

import "sync"

// Listener observes deployment lifecycle transitions. Notifications are
// delivered synchronously from the acting goroutine; implementations
// must not block indefinitely.
type Listener interface {
	OnDeploymentStart(appName string)
	OnDeploymentSuccess(appName string)
	OnDeploymentFailure(appName string, cause error)
	OnUndeploymentStart(appName string)
	OnUndeploymentSuccess(appName string)
	OnContextCreated(appName string, handle any)
	OnContextInitialised(appName string, handle any)
	OnContextConfigured(appName string, handle any)
}

// NopListener implements Listener with no-ops so observers can embed it
// and override only what they care about.
type NopListener struct{}

func (NopListener) OnDeploymentStart(string)          {}
func (NopListener) OnDeploymentSuccess(string)        {}
func (NopListener) OnDeploymentFailure(string, error) {}
func (NopListener) OnUndeploymentStart(string)        {}
func (NopListener) OnUndeploymentSuccess(string)      {}
func (NopListener) OnContextCreated(string, any)      {}
func (NopListener) OnContextInitialised(string, any)  {}
func (NopListener) OnContextConfigured(string, any)   {}

// Bus fans notifications out to subscribers in registration order. It
// implements Listener itself, so components needing a sink take the bus.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewBus creates an empty listener bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe appends a listener. Delivery order follows subscription
// order.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *Bus) snapshot() []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Listener, len(b.listeners))
	copy(out, b.listeners)
	return out
}

func (b *Bus) OnDeploymentStart(appName string) {
	for _, l := range b.snapshot() {
		l.OnDeploymentStart(appName)
	}
}

func (b *Bus) OnDeploymentSuccess(appName string) {
	for _, l := range b.snapshot() {
		l.OnDeploymentSuccess(appName)
	}
}

func (b *Bus) OnDeploymentFailure(appName string, cause error) {
	for _, l := range b.snapshot() {
		l.OnDeploymentFailure(appName, cause)
	}
}

func (b *Bus) OnUndeploymentStart(appName string) {
	for _, l := range b.snapshot() {
		l.OnUndeploymentStart(appName)
	}
}

func (b *Bus) OnUndeploymentSuccess(appName string) {
	for _, l := range b.snapshot() {
		l.OnUndeploymentSuccess(appName)
	}
}

func (b *Bus) OnContextCreated(appName string, handle any) {
	for _, l := range b.snapshot() {
		l.OnContextCreated(appName, handle)
	}
}

func (b *Bus) OnContextInitialised(appName string, handle any) {
	for _, l := range b.snapshot() {
		l.OnContextInitialised(appName, handle)
	}
}

func (b *Bus) OnContextConfigured(appName string, handle any) {
	for _, l := range b.snapshot() {
		l.OnContextConfigured(appName, handle)
	}
}
