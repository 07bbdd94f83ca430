package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/deckhand/deckhand/internal/artifact"
)

// Config controls the orchestration service.
type Config struct {
	// PollInterval is how often the apps directory is reconciled.
	PollInterval time.Duration

	// StartupApps pins deployment order for the initial scan, in the
	// "3:1:2" colon-separated form. Duplicates collapse to a single
	// deployment.
	StartupApps []string
}

// ParseStartupOrder splits a colon-separated startup list ("a:b:c")
// into names, dropping empties.
func ParseStartupOrder(value string) []string {
	var names []string
	for _, part := range strings.Split(value, ":") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// Service is the operator-facing facade. It owns the poll goroutine and
// the registries; explicit Deploy/Undeploy calls are serialized against
// the poll loop so a manual deploy cannot race a scheduled redeploy of
// the same name.
type Service struct {
	store    *artifact.Store
	registry *Registry
	zombies  *ZombieRegistry
	bus      *Bus
	deployer *Deployer
	poller   *Poller
	logger   *slog.Logger
	cfg      Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewService wires the deployment core over an apps directory and a
// builder collaborator.
func NewService(store *artifact.Store, builder Builder, logger *slog.Logger, cfg Config) *Service {
	s := &Service{
		store:    store,
		registry: NewRegistry(),
		zombies:  NewZombieRegistry(),
		bus:      NewBus(),
		logger:   logger,
		cfg:      cfg,
	}
	s.deployer = NewDeployer(store, s.registry, s.zombies, builder, s.bus, logger)
	s.poller = NewPoller(store, s.registry, s.zombies, s.deployer, logger, cfg.PollInterval, &s.mu)
	return s
}

// AddListener subscribes a deployment listener. Notifications arrive
// synchronously from the acting goroutine.
func (s *Service) AddListener(l Listener) {
	s.bus.Subscribe(l)
}

// Start runs the initial scan (honoring pinned startup order) and then
// launches the poll loop. The only fatal condition is an unreadable
// apps directory.
func (s *Service) Start() error {
	if _, err := os.ReadDir(s.store.Root()); err != nil {
		return fmt.Errorf("apps directory unreadable: %w", err)
	}

	s.poller.ReconcileOrdered(s.cfg.StartupApps)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.started = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.poller.Run(ctx)
	}()

	s.logger.Info("Deployment service started", "apps_dir", s.store.Root(), "interval", s.poller.interval.String())
	return nil
}

// Stop cancels the poll loop, waits for any in-flight cycle, and then
// undeploys every still-registered application in reverse registration
// order. Individual stop/dispose failures are logged; one stuck
// application never blocks shutdown of the rest.
func (s *Service) Stop() {
	if s.started {
		s.cancel()
		s.wg.Wait()
		s.started = false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	apps := s.registry.List()
	for i := len(apps) - 1; i >= 0; i-- {
		s.deployer.Undeploy(apps[i])
	}
	s.logger.Info("Deployment service stopped")
}

// Deploy synchronously deploys the artifact at location, outside the
// poll cycle. An archive path outside the apps directory is first
// placed into it with the temp-name-then-rename convention. A location
// already deployed and unchanged is a no-op; a changed one redeploys.
func (s *Service) Deploy(location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	art, err := s.resolveArtifact(location)
	if err != nil {
		return err
	}

	if app, ok := s.registry.Get(art.Name()); ok {
		if app.Location == art.Location && art.Timestamp.After(app.ArtifactMtime) {
			s.deployer.Undeploy(app)
		}
	}
	return s.deployer.Deploy(art)
}

// Undeploy synchronously undeploys the named application.
func (s *Service) Undeploy(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAppNotFound, name)
	}
	s.deployer.Undeploy(app)
	return nil
}

// Applications lists registered applications in registration order.
func (s *Service) Applications() []*Application {
	return s.registry.List()
}

// FindApplication returns the application registered under name.
func (s *Service) FindApplication(name string) (*Application, bool) {
	return s.registry.Get(name)
}

// Zombies returns the zombie map (location to last-modified) for
// diagnostics.
func (s *Service) Zombies() map[string]time.Time {
	return s.zombies.Snapshot()
}

// resolveArtifact classifies an operator-supplied location as a
// packaged or exploded artifact inside the apps directory.
func (s *Service) resolveArtifact(location string) (artifact.Artifact, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("resolve artifact location: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("stat artifact: %w", err)
	}

	if info.IsDir() {
		if filepath.Dir(abs) != s.store.Root() {
			return artifact.Artifact{}, fmt.Errorf("exploded artifact %s is outside the apps directory", abs)
		}
		ts, ok := s.store.DescriptorMtime(abs)
		if !ok {
			ts = info.ModTime()
		}
		return artifact.Artifact{Location: abs, Kind: artifact.Exploded, Timestamp: ts}, nil
	}

	if !strings.HasSuffix(abs, artifact.PackagedSuffix) {
		return artifact.Artifact{}, fmt.Errorf("artifact %s is not a %s archive", abs, artifact.PackagedSuffix)
	}

	if filepath.Dir(abs) != s.store.Root() {
		placed, err := s.store.PlaceArchive(abs, filepath.Base(abs))
		if err != nil {
			return artifact.Artifact{}, err
		}
		abs = placed
		if info, err = os.Stat(abs); err != nil {
			return artifact.Artifact{}, fmt.Errorf("stat placed artifact: %w", err)
		}
	}
	return artifact.Artifact{Location: abs, Kind: artifact.Packaged, Timestamp: info.ModTime()}, nil
}
