package ports

import (
	"context"

	"github.com/aretw0/covidash/pkg/domain"
)

// SelectionStore persists the inputs of a session. The graph itself is never
// persisted: reopening a session rebuilds it from fresh data and the stored
// selection.
type SelectionStore interface {
	// Save persists the selection for a given session ID.
	Save(ctx context.Context, sessionID string, sel domain.Selection) error

	// Load retrieves the selection for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (domain.Selection, error)

	// Delete removes the selection for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of every stored session.
	List(ctx context.Context) ([]string, error)
}
