// Package history journals deployment lifecycle events for diagnostics.
// The in-memory registries remain the source of runtime truth; the
// journal only records what happened and when.
package history

import (
	"context"

	"github.com/deckhand/deckhand/internal/api"
)

// Store defines the interface for event persistence.
type Store interface {
	RecordEvent(ctx context.Context, event *api.Event) error
	ListEvents(ctx context.Context, appName string, limit int) ([]*api.Event, error)
	Close()
}
