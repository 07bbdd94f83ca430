// Package builder is the reference application builder: it turns an
// exploded application directory with an app.toml descriptor into a
// runnable instance. The deployment core depends only on the Builder and
// Instance interfaces, so alternative builders can replace this one.
package builder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/deckhand/deckhand/internal/artifact"
	"github.com/deckhand/deckhand/internal/deployment"
)

// Descriptor is the parsed app.toml.
type Descriptor struct {
	Name       string            `toml:"name"`
	Properties map[string]string `toml:"properties"`
}

// AppContext is the handle reported through the sub-stage
// notifications.
type AppContext struct {
	AppName    string
	Dir        string
	Properties map[string]string
}

// Builder builds instances from descriptors.
type Builder struct {
	logger *slog.Logger
}

// New creates a descriptor-based builder.
func New(logger *slog.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build parses the descriptor, assembles the application context, and
// reports the created/initialised/configured sub-stages through the
// notifier as the context passes through them.
func (b *Builder) Build(appName, explodedDir string, notifier deployment.ContextNotifier) (deployment.Instance, error) {
	var desc Descriptor
	meta, err := toml.DecodeFile(artifact.DescriptorPath(explodedDir), &desc)
	if err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		b.logger.Warn("Descriptor has unknown keys", "app", appName, "keys", fmt.Sprint(undecoded))
	}
	if desc.Name != "" && desc.Name != appName {
		return nil, fmt.Errorf("descriptor names %q but artifact resolves to %q", desc.Name, appName)
	}

	appCtx := &AppContext{
		AppName:    appName,
		Dir:        explodedDir,
		Properties: desc.Properties,
	}
	notifier.OnContextCreated(appName, appCtx)
	notifier.OnContextInitialised(appName, appCtx)
	notifier.OnContextConfigured(appName, appCtx)

	return &instance{name: appName, ctx: appCtx, logger: b.logger}, nil
}

type instance struct {
	name   string
	ctx    *AppContext
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	disposed bool
}

func (i *instance) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.disposed {
		return errors.New("instance is disposed")
	}
	if i.running {
		return errors.New("instance already started")
	}
	i.running = true
	i.logger.Info("Application instance started", "app", i.name)
	return nil
}

func (i *instance) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.running {
		return errors.New("instance is not running")
	}
	i.running = false
	i.logger.Info("Application instance stopped", "app", i.name)
	return nil
}

// Dispose releases the instance. Idempotent.
func (i *instance) Dispose() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.running = false
	i.disposed = true
	return nil
}
