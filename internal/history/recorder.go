package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/deckhand/deckhand/internal/api"
	"github.com/deckhand/deckhand/internal/deployment"
	"github.com/google/uuid"
)

// Event types recorded by the Recorder.
const (
	EventDeployStart       = "deploy_start"
	EventDeploySuccess     = "deploy_success"
	EventDeployFailure     = "deploy_failure"
	EventUndeployStart     = "undeploy_start"
	EventUndeploySuccess   = "undeploy_success"
	EventContextCreated    = "context_created"
	EventContextInitialise = "context_initialised"
	EventContextConfigured = "context_configured"
)

// Recorder is a deployment listener that journals every notification.
// Writes are best-effort; a journal failure never disturbs the
// deployment path.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

func (r *Recorder) record(appName, eventType, detail string) {
	event := &api.Event{
		ID:         uuid.NewString(),
		AppName:    appName,
		Type:       eventType,
		Detail:     detail,
		OccurredAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.RecordEvent(ctx, event); err != nil {
		r.logger.Warn("Failed to record deployment event", "app", appName, "type", eventType, "error", err)
	}
}

func (r *Recorder) OnDeploymentStart(appName string) {
	r.record(appName, EventDeployStart, "")
}

func (r *Recorder) OnDeploymentSuccess(appName string) {
	r.record(appName, EventDeploySuccess, "")
}

func (r *Recorder) OnDeploymentFailure(appName string, cause error) {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	r.record(appName, EventDeployFailure, detail)
}

func (r *Recorder) OnUndeploymentStart(appName string) {
	r.record(appName, EventUndeployStart, "")
}

func (r *Recorder) OnUndeploymentSuccess(appName string) {
	r.record(appName, EventUndeploySuccess, "")
}

func (r *Recorder) OnContextCreated(appName string, _ any) {
	r.record(appName, EventContextCreated, "")
}

func (r *Recorder) OnContextInitialised(appName string, _ any) {
	r.record(appName, EventContextInitialise, "")
}

func (r *Recorder) OnContextConfigured(appName string, _ any) {
	r.record(appName, EventContextConfigured, "")
}

// Recorder implements deployment.Listener.
var _ deployment.Listener = (*Recorder)(nil)
