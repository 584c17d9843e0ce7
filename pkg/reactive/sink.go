package reactive

import "time"

// Sink is a terminal node flushed eagerly by the scheduler. Its function
// reads the graph like a derived value does; the result is handed to the
// effect (a renderer) instead of being cached.
type Sink[T any] struct {
	node
	fn     func() (T, error)
	effect func(T) error
}

// NewSink registers a sink. It starts dirty, so the next Flush runs it.
func NewSink[T any](g *Graph, name string, fn func() (T, error), effect func(T) error) *Sink[T] {
	s := &Sink[T]{fn: fn, effect: effect}
	g.register(&s.node, name, KindSink)
	g.sinks = append(g.sinks, s)
	return s
}

func (s *Sink[T]) base() *node { return &s.node }

// flush evaluates and runs the effect. The sink only turns clean when both
// succeed; any failure leaves it dirty so the next flush retries.
func (s *Sink[T]) flush() error {
	g := s.graph
	start := time.Now()

	var v T
	deps, err := g.run(&s.node, func() error {
		var err error
		v, err = s.fn()
		return err
	})
	if err != nil {
		err = &EvaluationError{Node: s.name, Err: err}
		g.observe(&s.node, len(deps), time.Since(start), err)
		return err
	}
	s.rewire(deps)

	if s.effect != nil {
		err = func() error {
			g.flushing = &s.node
			defer func() { g.flushing = nil }()
			return s.effect(v)
		}()
		if err != nil {
			err = &EvaluationError{Node: s.name, Effect: true, Err: err}
			g.observe(&s.node, len(deps), time.Since(start), err)
			return err
		}
	}

	s.settle()
	g.observe(&s.node, len(deps), time.Since(start), nil)
	return nil
}
