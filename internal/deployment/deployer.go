package deployment

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/deckhand/deckhand/internal/artifact"
)

// Deployer drives a single artifact through build/start and a single
// application through stop/dispose. All deploy-path failures are caught
// here, converted into a listener notification plus a zombie entry, and
// returned as *DeploymentError for callers that care.
type Deployer struct {
	store    *artifact.Store
	registry *Registry
	zombies  *ZombieRegistry
	retired  *retiredSet
	builder  Builder
	bus      *Bus
	logger   *slog.Logger
}

// NewDeployer creates a deployer over the shared registries.
func NewDeployer(store *artifact.Store, registry *Registry, zombies *ZombieRegistry, builder Builder, bus *Bus, logger *slog.Logger) *Deployer {
	return &Deployer{
		store:    store,
		registry: registry,
		zombies:  zombies,
		retired:  newRetiredSet(),
		builder:  builder,
		bus:      bus,
		logger:   logger,
	}
}

// Deploy brings the artifact to a running, registered application.
//
// An already-registered application built from the same artifact with a
// timestamp that is not newer short-circuits as a no-op, which is what
// collapses repeated references in a pinned startup list into one
// deployment. A registered application from a different artifact is a
// name conflict and is rejected until the first one is undeployed.
func (d *Deployer) Deploy(art artifact.Artifact) error {
	name := art.Name()

	if existing, ok := d.registry.Get(name); ok {
		if existing.Location == art.Location && !art.Timestamp.After(existing.ArtifactMtime) {
			return nil
		}
		// A different artifact resolving to a live name is rejected until
		// the first one is undeployed. Recorded as a zombie so the poll
		// loop does not re-attempt it every cycle.
		err := &DeploymentError{Kind: KindDuplicateName, App: name}
		d.zombies.RecordFailure(art.Location, art.Timestamp)
		d.bus.OnDeploymentFailure(name, err)
		d.logger.Error("Deployment failed", "app", name, "kind", string(KindDuplicateName), "location", art.Location, "error", err)
		return err
	}

	d.bus.OnDeploymentStart(name)

	dir := art.Location
	if art.Kind == artifact.Packaged {
		dir = d.store.ExplodedDir(name)
		if err := d.store.Explode(art.Location, dir); err != nil {
			kind := KindBuildFailure
			if errors.Is(err, artifact.ErrCorruptArchive) {
				kind = KindCorruptArchive
			}
			return d.fail(name, art, dir, kind, err)
		}
	}

	instance, err := d.builder.Build(name, dir, d.bus)
	if err != nil {
		return d.fail(name, art, dir, KindBuildFailure, err)
	}

	if err := instance.Start(); err != nil {
		// Best-effort cleanup of the half-started instance.
		if derr := instance.Dispose(); derr != nil {
			d.logger.Error("Failed to dispose application after start failure", "app", name, "error", derr)
		}
		return d.fail(name, art, dir, KindStartFailure, err)
	}

	descriptorMtime, _ := d.store.DescriptorMtime(dir)
	app := &Application{
		Name:            name,
		Kind:            art.Kind,
		Location:        art.Location,
		Dir:             dir,
		ArtifactMtime:   art.Timestamp,
		DescriptorMtime: descriptorMtime,
		DeployedAt:      time.Now(),
		State:           StateDeployed,
		instance:        instance,
	}
	if err := d.registry.Add(app); err != nil {
		d.teardown(app)
		return d.fail(name, art, dir, KindDuplicateName, err)
	}

	d.zombies.Clear(art.Location)
	d.zombies.Clear(dir)
	d.retired.clear(art.Location)
	d.retired.clear(dir)
	if err := d.store.WriteAnchor(name); err != nil {
		d.logger.Error("Failed to write anchor file", "app", name, "error", err)
	}
	d.bus.OnDeploymentSuccess(name)
	d.logger.Info("Application deployed", "app", name, "kind", string(art.Kind), "location", art.Location)
	return nil
}

// Undeploy stops and disposes the application and removes it from the
// registry and the apps directory bookkeeping. Stop and dispose failures
// are logged, never propagated: cleanup always completes, the anchor and
// registry entry are always removed, and the undeployment-success
// notification always fires.
func (d *Deployer) Undeploy(app *Application) {
	name := app.Name
	d.bus.OnUndeploymentStart(name)
	app.State = StateUndeploying

	// Whatever stays on disk after this undeploy must not be picked up
	// as a fresh deployment next cycle; a changed timestamp re-enables
	// it.
	d.retired.retire(app.Location, app.ArtifactMtime)
	if app.Dir != app.Location {
		d.retired.retire(app.Dir, app.DescriptorMtime)
	}

	d.teardown(app)

	if err := d.store.RemoveAnchor(name); err != nil {
		d.logger.Error("Failed to remove anchor file", "app", name, "error", err)
	}
	d.registry.Remove(name)
	app.State = StateDestroyed

	d.bus.OnUndeploymentSuccess(name)
	d.logger.Info("Application undeployed", "app", name)
}

// teardown releases the instance: stop is attempted, dispose is
// attempted regardless of whether stop failed.
func (d *Deployer) teardown(app *Application) {
	instance := app.instance
	app.instance = nil
	if instance == nil {
		return
	}
	if err := instance.Stop(); err != nil {
		d.logger.Error("Failed to stop application", "app", app.Name, "error", err)
	}
	if err := instance.Dispose(); err != nil {
		d.logger.Error("Failed to dispose application", "app", app.Name, "error", err)
	}
}

// RemoveExplodedDir deletes the exploded working directory of an
// undeployed packaged application. Best effort.
func (d *Deployer) RemoveExplodedDir(app *Application) {
	if app.Dir == "" || app.Dir == app.Location {
		return
	}
	if err := os.RemoveAll(app.Dir); err != nil {
		d.logger.Error("Failed to remove exploded directory", "app", app.Name, "dir", app.Dir, "error", err)
	}
}

// explodedTimestamp mirrors the timestamp the directory listing will
// report for dir: descriptor mtime where one exists, else the directory
// mtime.
func explodedTimestamp(store *artifact.Store, dir string) (time.Time, bool) {
	if ts, ok := store.DescriptorMtime(dir); ok {
		return ts, true
	}
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (d *Deployer) fail(name string, art artifact.Artifact, dir string, kind ErrorKind, cause error) error {
	err := &DeploymentError{Kind: kind, App: name, Cause: cause}
	d.zombies.RecordFailure(art.Location, art.Timestamp)
	if dir != art.Location {
		// The directory left by a failed packaged deployment would
		// otherwise be picked up as a fresh exploded artifact next cycle.
		if ts, ok := explodedTimestamp(d.store, dir); ok {
			d.zombies.RecordFailure(dir, ts)
		}
	}
	d.bus.OnDeploymentFailure(name, err)
	d.logger.Error("Deployment failed", "app", name, "kind", string(kind), "location", art.Location, "error", cause)
	return err
}
