package reactive

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEvaluation is matched by every *EvaluationError.
	ErrEvaluation = errors.New("evaluation failed")

	// ErrCycle is matched by every *CycleError.
	ErrCycle = errors.New("dependency cycle")

	// ErrStaleRead is matched by every *StaleReadViolation.
	ErrStaleRead = errors.New("write during evaluation")

	// ErrDisposed is returned by any operation on a graph after Dispose.
	ErrDisposed = errors.New("graph disposed")
)

// EvaluationError reports a failed evaluation function (or sink effect).
// The node keeps its previous cached value and stays dirty.
type EvaluationError struct {
	Node   string
	Effect bool // true when the sink effect failed, not the computation
	Err    error
}

func (e *EvaluationError) Error() string {
	phase := "evaluate"
	if e.Effect {
		phase = "effect"
	}
	return fmt.Sprintf("%s %q: %v", phase, e.Node, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *EvaluationError) Unwrap() []error {
	return []error{ErrEvaluation, e.Err}
}

// CycleError is returned when an evaluation reads a node that is already
// evaluating further down the same stack. It always indicates a wiring bug.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCycle.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// StaleReadViolation rejects a source write (or batch, or flush) attempted
// while a node is evaluating or sinks are flushing. The graph is left unchanged.
type StaleReadViolation struct {
	Target string // the source being written, or "batch"/"flush"
	Active string // the node evaluating (or sink flushing) at that moment
}

func (e *StaleReadViolation) Error() string {
	return fmt.Sprintf("%s: %q rejected while %q is active", ErrStaleRead, e.Target, e.Active)
}

func (e *StaleReadViolation) Unwrap() error { return ErrStaleRead }
