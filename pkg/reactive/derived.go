package reactive

// Derived is a lazily evaluated, memoized value computed from the nodes its
// function reads. Dependencies are discovered on every evaluation and the
// recorded set is rebuilt from scratch each time, so conditional reads add
// and drop edges on their own.
type Derived[T any] struct {
	node
	fn     func() (T, error)
	value  T
	cached bool
}

// NewDerived registers a derived value. fn must be deterministic and must
// not write to the graph; it is first run on the first Read.
func NewDerived[T any](g *Graph, name string, fn func() (T, error)) *Derived[T] {
	d := &Derived[T]{fn: fn}
	g.register(&d.node, name, KindDerived)
	return d
}

// Read returns the value, recomputing it first if it is dirty. A clean node
// answers from its cache. When called from another evaluation the caller
// records this node as a dependency.
//
// A failed evaluation returns *EvaluationError and leaves the node dirty
// with its previous cache intact, so the next Read retries.
func (d *Derived[T]) Read() (T, error) {
	var zero T
	g := d.graph
	if g.disposed {
		return zero, ErrDisposed
	}
	if d.evaluating {
		return zero, g.cycle(&d.node)
	}

	var err error
	if d.dirty {
		err = g.evaluate(&d.node, d.compute)
	}
	g.track(&d.node)
	if err != nil {
		return zero, err
	}
	return d.value, nil
}

// Peek returns the cached value without evaluating or tracking. ok is false
// if the node never evaluated successfully.
func (d *Derived[T]) Peek() (value T, ok bool) {
	return d.value, d.cached
}

func (d *Derived[T]) compute() error {
	v, err := d.fn()
	if err != nil {
		return err
	}
	d.value = v
	d.cached = true
	return nil
}
