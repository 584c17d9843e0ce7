package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/aretw0/covidash"
)

// startWatcher refreshes the open sessions whenever a local table changes.
// The dashboard redraws itself; this only announces it.
func startWatcher(ctx context.Context, eng *covidash.Engine, out io.Writer, logger *slog.Logger) {
	refreshed, err := eng.Watch(ctx)
	if err != nil {
		logger.Warn("Watch disabled", "err", err)
		printSystemMessage(out, "Watch disabled: %v.", err)
		return
	}
	printSystemMessage(out, "Watching local tables for changes.")

	go func() {
		for id := range refreshed {
			logger.Info("Change detected, session refreshed", "session_id", id)
			printSystemMessage(out, "Data changed, session '%s' refreshed.", id)
		}
	}()
}
