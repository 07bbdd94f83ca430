package deployment

import (
	"archive/zip"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deckhand/deckhand/internal/artifact"
	"github.com/stretchr/testify/require"
)

// fakeInstance is a controllable application instance.
type fakeInstance struct {
	name       string
	startErr   error
	stopErr    error
	disposeErr error

	mu       sync.Mutex
	started  bool
	stopped  bool
	disposed bool
}

func (i *fakeInstance) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.startErr != nil {
		return i.startErr
	}
	i.started = true
	return nil
}

func (i *fakeInstance) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopped = true
	return i.stopErr
}

func (i *fakeInstance) Dispose() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.disposed = true
	return i.disposeErr
}

// fakeBuilder mimics the builder collaborator: it requires a descriptor,
// rejects ones marked broken, and reports the context sub-stages.
type fakeBuilder struct {
	mu         sync.Mutex
	builds     map[string]int
	startErr   map[string]error
	stopErr    map[string]error
	disposeErr map[string]error
	instances  map[string]*fakeInstance
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{
		builds:     make(map[string]int),
		startErr:   make(map[string]error),
		stopErr:    make(map[string]error),
		disposeErr: make(map[string]error),
		instances:  make(map[string]*fakeInstance),
	}
}

func (b *fakeBuilder) Build(appName, explodedDir string, notifier ContextNotifier) (Instance, error) {
	b.mu.Lock()
	b.builds[appName]++
	b.mu.Unlock()

	data, err := os.ReadFile(artifact.DescriptorPath(explodedDir))
	if err != nil {
		return nil, fmt.Errorf("missing descriptor: %w", err)
	}
	if strings.Contains(string(data), "broken = true") {
		return nil, errors.New("invalid descriptor")
	}

	notifier.OnContextCreated(appName, explodedDir)
	notifier.OnContextInitialised(appName, explodedDir)
	notifier.OnContextConfigured(appName, explodedDir)

	inst := &fakeInstance{
		name:       appName,
		startErr:   b.startErr[appName],
		stopErr:    b.stopErr[appName],
		disposeErr: b.disposeErr[appName],
	}
	b.mu.Lock()
	b.instances[appName] = inst
	b.mu.Unlock()
	return inst, nil
}

func (b *fakeBuilder) buildCount(appName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds[appName]
}

// recordingListener captures notifications for assertions.
type recordingListener struct {
	NopListener
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingListener) OnDeploymentStart(name string)   { l.add("deploy_start:" + name) }
func (l *recordingListener) OnDeploymentSuccess(name string) { l.add("deploy_success:" + name) }
func (l *recordingListener) OnDeploymentFailure(name string, cause error) {
	l.add("deploy_failure:" + name)
}
func (l *recordingListener) OnUndeploymentStart(name string)     { l.add("undeploy_start:" + name) }
func (l *recordingListener) OnUndeploymentSuccess(name string)   { l.add("undeploy_success:" + name) }
func (l *recordingListener) OnContextCreated(name string, _ any) { l.add("context_created:" + name) }
func (l *recordingListener) OnContextInitialised(name string, _ any) {
	l.add("context_initialised:" + name)
}
func (l *recordingListener) OnContextConfigured(name string, _ any) {
	l.add("context_configured:" + name)
}

func (l *recordingListener) count(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e == event {
			n++
		}
	}
	return n
}

func (l *recordingListener) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *recordingListener) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// testHarness bundles a service over a temp apps directory.
type testHarness struct {
	service  *Service
	store    *artifact.Store
	builder  *fakeBuilder
	listener *recordingListener
	appsDir  string
}

func newHarness(t *testing.T, startupApps ...string) *testHarness {
	t.Helper()
	appsDir := t.TempDir()
	store, err := artifact.NewStore(appsDir)
	require.NoError(t, err)

	b := newFakeBuilder()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	service := NewService(store, b, logger, Config{
		PollInterval: time.Hour, // cycles are driven manually in tests
		StartupApps:  startupApps,
	})
	listener := &recordingListener{}
	service.AddListener(listener)

	return &testHarness{
		service:  service,
		store:    store,
		builder:  b,
		listener: listener,
		appsDir:  appsDir,
	}
}

// cycle runs one reconciliation pass.
func (h *testHarness) cycle() {
	h.service.poller.ReconcileOnce()
}

// initialScan runs the startup pass with the configured pinned order.
func (h *testHarness) initialScan() {
	h.service.poller.ReconcileOrdered(h.service.cfg.StartupApps)
}

// addExplodedApp creates an exploded application directory with a
// descriptor.
func (h *testHarness) addExplodedApp(t *testing.T, name, descriptor string) string {
	t.Helper()
	dir := filepath.Join(h.appsDir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(artifact.DescriptorPath(dir), []byte(descriptor), 0o644))
	return dir
}

// addAppArchive writes a valid application archive under targetName,
// using the atomic temp-then-rename convention.
func (h *testHarness) addAppArchive(t *testing.T, targetName, descriptor string) string {
	t.Helper()
	target := filepath.Join(h.appsDir, targetName)
	tmp := target + ".part"
	writeArchive(t, tmp, map[string]string{artifact.DescriptorName: descriptor})
	require.NoError(t, os.Rename(tmp, target))
	return target
}

// addBrokenArchive writes a file that is not a valid zip container.
func (h *testHarness) addBrokenArchive(t *testing.T, targetName string) string {
	t.Helper()
	target := filepath.Join(h.appsDir, targetName)
	require.NoError(t, os.WriteFile(target, []byte("this is not a zip"), 0o644))
	return target
}

func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

// touchFuture advances a file's mtime past any previously observed
// timestamp.
func touchFuture(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	future := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(path, future, future))
}

// appNames lists the registry's iteration order.
func appNames(apps []*Application) []string {
	names := make([]string, 0, len(apps))
	for _, app := range apps {
		names = append(names, app.Name)
	}
	return names
}

// dirExists reports whether path is an existing directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
