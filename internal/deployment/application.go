// Package deployment is the hot-deployment core: it reconciles the apps
// directory against an in-memory registry of live application instances,
// deploying, redeploying, and undeploying as the directory changes.
package deployment

import (
	"time"

	"github.com/deckhand/deckhand/internal/artifact"
)

// State is an application's lifecycle state.
type State string

const (
	StateDeploying   State = "deploying"
	StateDeployed    State = "deployed"
	StateUndeploying State = "undeploying"
	StateDestroyed   State = "destroyed"
)

// Instance is a built application as seen by the deployment core. The
// builder collaborator produces it; the core only drives its lifecycle.
type Instance interface {
	Start() error
	Stop() error
	Dispose() error
}

// ContextNotifier receives the builder's sub-stage reports as an
// application context comes up. The core passes these through without
// interpreting them.
type ContextNotifier interface {
	OnContextCreated(appName string, handle any)
	OnContextInitialised(appName string, handle any)
	OnContextConfigured(appName string, handle any)
}

// Builder constructs an application instance from an exploded
// directory's descriptor. It is the external collaborator boundary.
type Builder interface {
	Build(appName, explodedDir string, notifier ContextNotifier) (Instance, error)
}

// Application is one registered application. The registry exclusively
// owns the instance while the application is deployed; the deployer
// takes it over during undeploy and releases it after dispose.
type Application struct {
	Name string
	Kind artifact.Kind

	// Location is the canonical source artifact path (archive file for
	// packaged apps, the app directory for exploded ones).
	Location string

	// Dir is the exploded directory the instance was built from.
	Dir string

	// ArtifactMtime is the mtime of the artifact's defining file at
	// deploy time; DescriptorMtime is the descriptor mtime the instance
	// was built from. Both drive redeploy detection.
	ArtifactMtime   time.Time
	DescriptorMtime time.Time

	DeployedAt time.Time
	State      State

	instance Instance
}
