package reactive

import "time"

// EvalEvent describes one evaluation of a derived value or sink.
type EvalEvent struct {
	Graph    string
	Node     string
	Kind     Kind
	Epoch    uint64
	Deps     int
	Duration time.Duration
	Err      error
}

// InvalidateEvent describes the mark phase of one committed batch.
type InvalidateEvent struct {
	Graph   string
	Sources []string
	Marked  int
}

// FlushEvent describes one pass of the scheduler over the sinks.
type FlushEvent struct {
	Graph    string
	Sinks    int
	Failed   int
	Duration time.Duration
}

// Hooks are observability callbacks. They run synchronously on the
// goroutine driving the graph and must not write to it.
type Hooks struct {
	OnEvaluate   func(*EvalEvent)
	OnInvalidate func(*InvalidateEvent)
	OnFlush      func(*FlushEvent)
}

// ComposeHooks returns hooks that call every non-nil callback of each set,
// in order.
func ComposeHooks(sets ...Hooks) Hooks {
	var evals []func(*EvalEvent)
	var invs []func(*InvalidateEvent)
	var flushes []func(*FlushEvent)
	for _, h := range sets {
		if h.OnEvaluate != nil {
			evals = append(evals, h.OnEvaluate)
		}
		if h.OnInvalidate != nil {
			invs = append(invs, h.OnInvalidate)
		}
		if h.OnFlush != nil {
			flushes = append(flushes, h.OnFlush)
		}
	}

	var out Hooks
	if len(evals) > 0 {
		out.OnEvaluate = func(e *EvalEvent) {
			for _, fn := range evals {
				fn(e)
			}
		}
	}
	if len(invs) > 0 {
		out.OnInvalidate = func(e *InvalidateEvent) {
			for _, fn := range invs {
				fn(e)
			}
		}
	}
	if len(flushes) > 0 {
		out.OnFlush = func(e *FlushEvent) {
			for _, fn := range flushes {
				fn(e)
			}
		}
	}
	return out
}
