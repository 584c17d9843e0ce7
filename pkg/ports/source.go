package ports

import (
	"context"

	"github.com/aretw0/covidash/pkg/domain"
)

// DataSource fetches the raw tables consumed by the graph. It is called once
// when a session opens and again only on an explicit refresh.
type DataSource interface {
	// Series returns the long-format case/death rows.
	Series(ctx context.Context) ([]domain.Row, error)

	// Population returns one row per state.
	Population(ctx context.Context) ([]domain.PopulationRow, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is used by the interactive mode to refresh the session when a local file changes.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying data changes.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
