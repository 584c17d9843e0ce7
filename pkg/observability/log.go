package observability

import (
	"log/slog"

	"github.com/aretw0/covidash/pkg/reactive"
)

// LogHooks logs graph activity at debug level, failed evaluations
// included: one bad input fails a whole chain, and the sink failure that
// matters is already reported at warn level by the session's
// ErrorReporter.
func LogHooks(logger *slog.Logger) reactive.Hooks {
	return reactive.Hooks{
		OnEvaluate: func(e *reactive.EvalEvent) {
			if e.Err != nil {
				logger.Debug("Evaluation failed", "graph", e.Graph, "node", e.Node, "kind", e.Kind, "err", e.Err)
				return
			}
			logger.Debug("Node evaluated", "graph", e.Graph, "node", e.Node, "epoch", e.Epoch, "duration", e.Duration)
		},
		OnInvalidate: func(e *reactive.InvalidateEvent) {
			logger.Debug("Inputs changed", "graph", e.Graph, "sources", e.Sources, "marked", e.Marked)
		},
		OnFlush: func(e *reactive.FlushEvent) {
			logger.Debug("Flushed", "graph", e.Graph, "sinks", e.Sinks, "failed", e.Failed, "duration", e.Duration)
		},
	}
}
