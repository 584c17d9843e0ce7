package reactive

// Kind classifies a node in the graph.
type Kind string

const (
	KindSource  Kind = "source"
	KindDerived Kind = "derived"
	KindSink    Kind = "sink"
)

// NodeID identifies a node inside its graph. IDs are assigned in
// registration order and never reused.
type NodeID uint64

// dependency is one recorded read: the node read and the epoch observed.
type dependency struct {
	node  *node
	epoch uint64
}

// node is the bookkeeping shared by Source, Derived and Sink.
type node struct {
	id    NodeID
	name  string
	kind  Kind
	graph *Graph

	epoch uint64
	dirty bool

	// deps reflects exactly the reads of the latest successful evaluation.
	deps []dependency
	// dependents is the reverse index walked by invalidation.
	dependents map[*node]struct{}

	evaluating bool
}

// ID returns the node identifier.
func (n *node) ID() NodeID { return n.id }

// Name returns the name the node was registered with.
func (n *node) Name() string { return n.name }

// Kind returns whether the node is a source, derived value or sink.
func (n *node) Kind() Kind { return n.kind }

// Epoch returns the node version. It grows on every write (sources) or
// successful evaluation (derived values and sinks).
func (n *node) Epoch() uint64 { return n.epoch }

// Dirty reports whether the node must be recomputed before its value can be
// trusted. Sources are never dirty.
func (n *node) Dirty() bool { return n.dirty }

// rewire atomically replaces the recorded dependency set and keeps the
// reverse indices of old and new dependencies in sync.
func (n *node) rewire(deps []dependency) {
	for _, d := range n.deps {
		delete(d.node.dependents, n)
	}
	for _, d := range deps {
		d.node.dependents[n] = struct{}{}
	}
	n.deps = deps
}

// settle bumps the epoch after a successful evaluation. The node only turns
// clean when every dependency it read is clean too: a dependency that failed
// and stayed dirty would otherwise stop future invalidations from reaching it.
func (n *node) settle() {
	n.epoch++
	n.dirty = false
	for _, d := range n.deps {
		if d.node.dirty {
			n.dirty = true
			return
		}
	}
}
