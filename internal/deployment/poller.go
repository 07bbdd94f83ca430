package deployment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/deckhand/deckhand/internal/artifact"
)

// DefaultPollInterval is how often the apps directory is reconciled
// when no interval is configured.
const DefaultPollInterval = 5 * time.Second

// Poller periodically diffs the apps directory against the application
// and zombie registries and issues deploy, redeploy, and undeploy
// actions. Every action in a cycle runs sequentially on the poller's
// goroutine; the shared mutex serializes cycles against explicit
// operator calls on the service.
type Poller struct {
	store    *artifact.Store
	registry *Registry
	zombies  *ZombieRegistry
	deployer *Deployer
	logger   *slog.Logger
	interval time.Duration

	mu *sync.Mutex
}

// NewPoller creates a poller sharing the service's registries and lock.
func NewPoller(store *artifact.Store, registry *Registry, zombies *ZombieRegistry, deployer *Deployer, logger *slog.Logger, interval time.Duration, mu *sync.Mutex) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		store:    store,
		registry: registry,
		zombies:  zombies,
		deployer: deployer,
		logger:   logger,
		interval: interval,
		mu:       mu,
	}
}

// Run executes reconciliation cycles until the context is cancelled. An
// in-flight cycle is never interrupted; cancellation takes effect before
// the next scheduled run.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return
		case <-ticker.C:
			p.ReconcileOnce()
		}
	}
}

// ReconcileOnce runs a single reconciliation cycle in directory-listing
// order.
func (p *Poller) ReconcileOnce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconcile(nil)
}

// ReconcileOrdered runs a single cycle deploying the pinned application
// names strictly first, in the given order, before the remainder of the
// directory. Used for the initial scan at startup.
func (p *Poller) ReconcileOrdered(pinned []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconcile(pinned)
}

// reconcile is the cycle body. Callers hold the mutex.
func (p *Poller) reconcile(pinned []string) {
	packaged, err := p.store.ListPackaged()
	if err != nil {
		p.logger.Error("Failed to enumerate packaged artifacts", "error", err)
		return
	}
	exploded, err := p.store.ListExploded()
	if err != nil {
		p.logger.Error("Failed to enumerate exploded artifacts", "error", err)
		return
	}

	pinned = dedupeNames(pinned)
	sortPinnedFirst(packaged, pinned)
	sortPinnedFirst(exploded, pinned)

	// Packaged artifacts first: on a name collision with an exploded
	// directory the archive wins and is exploded over it.
	for _, art := range packaged {
		p.reconcilePackaged(art)
	}
	for _, art := range exploded {
		p.reconcileExploded(art)
	}

	// Orphan cleanup: registered applications whose backing artifact
	// disappeared from disk. A packaged app's exploded directory is a
	// derived work product and goes with the archive.
	for _, app := range p.registry.List() {
		if !artifact.Exists(app.Location) {
			p.deployer.Undeploy(app)
			if app.Kind == artifact.Packaged {
				p.deployer.RemoveExplodedDir(app)
			}
		}
	}
}

func (p *Poller) reconcilePackaged(art artifact.Artifact) {
	name := art.Name()

	if app, ok := p.registry.Get(name); ok {
		if app.Location == art.Location && art.Timestamp.After(app.ArtifactMtime) {
			// The archive itself changed under a live application.
			p.redeploy(app, art)
		}
		return
	}

	if p.zombies.IsZombie(art.Location, art.Timestamp) {
		return
	}
	if p.deployer.retired.isRetired(art.Location, art.Timestamp) {
		return
	}
	if err := p.deployer.Deploy(art); err != nil {
		p.logger.Error("Scheduled deployment failed", "app", name, "error", err)
	}
}

func (p *Poller) reconcileExploded(art artifact.Artifact) {
	name := art.Name()

	app, ok := p.registry.Get(name)
	if !ok {
		if p.zombies.IsZombie(art.Location, art.Timestamp) {
			return
		}
		if p.deployer.retired.isRetired(art.Location, art.Timestamp) {
			return
		}
		if err := p.deployer.Deploy(art); err != nil {
			p.logger.Error("Scheduled deployment failed", "app", name, "error", err)
		}
		return
	}

	// Descriptor changed under a live application.
	if art.Timestamp.After(app.DescriptorMtime) {
		p.redeploy(app, art)
		return
	}

	// Anchor deleted by an operator while the directory is intact.
	if !p.store.AnchorExists(name) {
		p.deployer.Undeploy(app)
	}
}

// redeploy is a strictly sequential undeploy-then-deploy of the same
// name; observers never see two live instances of one application.
func (p *Poller) redeploy(app *Application, art artifact.Artifact) {
	p.logger.Info("Redeploying application", "app", app.Name, "location", art.Location)
	p.deployer.Undeploy(app)
	if err := p.deployer.Deploy(art); err != nil {
		p.logger.Error("Redeployment failed", "app", app.Name, "error", err)
	}
}

// sortPinnedFirst stably reorders artifacts so that pinned names come
// first, in pinned order, with the remainder keeping listing order.
func sortPinnedFirst(artifacts []artifact.Artifact, pinned []string) {
	if len(pinned) == 0 {
		return
	}
	rank := make(map[string]int, len(pinned))
	for i, name := range pinned {
		rank[name] = i
	}
	position := func(a artifact.Artifact) int {
		if r, ok := rank[a.Name()]; ok {
			return r
		}
		return len(pinned)
	}
	// Insertion sort keeps the reorder stable for unpinned entries.
	for i := 1; i < len(artifacts); i++ {
		for j := i; j > 0 && position(artifacts[j]) < position(artifacts[j-1]); j-- {
			artifacts[j], artifacts[j-1] = artifacts[j-1], artifacts[j]
		}
	}
}

func dedupeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := names[:0:0]
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
