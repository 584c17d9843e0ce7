package reactive

// Source is a mutable leaf. Its value changes only through Write, which is
// the single origin of invalidation in the graph.
type Source[T any] struct {
	node
	value T
}

// NewSource registers a source holding initial.
func NewSource[T any](g *Graph, name string, initial T) *Source[T] {
	s := &Source[T]{value: initial}
	g.register(&s.node, name, KindSource)
	return s
}

// Read returns the committed value. When called from an evaluation function
// it records the caller as a dependent of this source.
func (s *Source[T]) Read() T {
	s.graph.track(&s.node)
	return s.value
}

// Peek returns the committed value without recording a dependency.
func (s *Source[T]) Peek() T {
	return s.value
}

// Write replaces the value unconditionally: writing an identical value still
// counts as a change and re-renders dependent sinks. Inside Batch the write
// is staged until commit; outside it forms a batch of its own and flushes
// before returning (the returned error then carries any sink failure).
//
// Writing while a node evaluates or sinks flush returns *StaleReadViolation
// and leaves the graph untouched.
func (s *Source[T]) Write(v T) error {
	g := s.graph
	if err := g.checkWritable(s.name); err != nil {
		return err
	}
	if g.batch == 0 {
		return g.Batch(func() error { return s.Write(v) })
	}
	g.stage(&s.node, func() { s.value = v })
	return nil
}
