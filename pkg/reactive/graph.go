package reactive

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ErrorReporter receives every sink failure of a flush. It is the
// session-level error channel; the failure is also returned by Flush.
type ErrorReporter func(sink string, err error)

// flusher is implemented by every Sink regardless of its value type.
type flusher interface {
	base() *node
	flush() error
}

// frame collects the reads of one running evaluation.
type frame struct {
	owner *node
	deps  []dependency
	index map[*node]int
	// err poisons the frame: a cycle through its owner fails the attempt
	// even if fn recovers from the read error.
	err error
}

// staged is a source write waiting for its batch to commit.
type staged struct {
	node  *node
	apply func()
}

// Graph owns every node of one session and schedules their evaluation.
//
// A Graph is single-threaded: all writes, reads and flushes must come from
// one goroutine at a time. Sessions never share a Graph.
type Graph struct {
	name     string
	logger   *slog.Logger
	hooks    Hooks
	reporter ErrorReporter

	nextID NodeID
	nodes  []*node
	byName map[string]*node
	sinks  []flusher

	stack    []*frame
	batch    int
	pending  []staged
	flushing *node
	inFlush  bool
	disposed bool
}

// Option configures a Graph.
type Option func(*Graph)

// WithName labels the graph in logs and hook events (e.g. the session ID).
func WithName(name string) Option {
	return func(g *Graph) {
		g.name = name
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks Hooks) Option {
	return func(g *Graph) {
		g.hooks = hooks
	}
}

// WithErrorReporter sets the callback receiving sink failures.
func WithErrorReporter(r ErrorReporter) Option {
	return func(g *Graph) {
		g.reporter = r
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		byName: make(map[string]*node),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if g.name != "" {
		g.logger = g.logger.With("graph", g.name)
	}
	if g.reporter == nil {
		g.reporter = func(sink string, err error) {
			g.logger.Warn("Sink failed", "sink", sink, "err", err)
		}
	}
	return g
}

// Name returns the graph label.
func (g *Graph) Name() string { return g.name }

// register assigns an ID and indexes the node. Names are unique per graph;
// a duplicate is a wiring bug and panics.
func (g *Graph) register(n *node, name string, kind Kind) {
	if _, exists := g.byName[name]; exists {
		panic(fmt.Sprintf("reactive: node %q already registered", name))
	}
	g.nextID++
	n.id = g.nextID
	n.name = name
	n.kind = kind
	n.graph = g
	n.dependents = make(map[*node]struct{})
	// Derived values and sinks start dirty: they have never been evaluated.
	n.dirty = kind != KindSource
	g.nodes = append(g.nodes, n)
	g.byName[name] = n
}

// track records n as a dependency of the evaluation on top of the stack.
func (g *Graph) track(n *node) {
	if len(g.stack) == 0 {
		return
	}
	f := g.stack[len(g.stack)-1]
	if i, ok := f.index[n]; ok {
		f.deps[i].epoch = n.epoch
		return
	}
	f.index[n] = len(f.deps)
	f.deps = append(f.deps, dependency{node: n, epoch: n.epoch})
}

// active returns the name of whatever currently forbids writes, if anything.
func (g *Graph) active() (string, bool) {
	if len(g.stack) > 0 {
		return g.stack[len(g.stack)-1].owner.name, true
	}
	if g.flushing != nil {
		return g.flushing.name, true
	}
	if g.inFlush {
		return "flush", true
	}
	return "", false
}

// cycle builds the error for a read of n while n is evaluating and poisons
// every frame on the cycle, so none of them can settle.
func (g *Graph) cycle(n *node) error {
	path := make([]string, 0, len(g.stack)+1)
	var onCycle []*frame
	for i := len(g.stack) - 1; i >= 0; i-- {
		if g.stack[i].owner == n {
			onCycle = g.stack[i:]
			break
		}
	}
	for _, f := range onCycle {
		path = append(path, f.owner.name)
	}
	path = append(path, n.name)
	err := &CycleError{Path: path}
	for _, f := range onCycle {
		if f.err == nil {
			f.err = err
		}
	}
	g.logger.Error("Dependency cycle", "path", path)
	return err
}

// run executes fn with n on top of the evaluation stack and returns the
// reads it performed. The stack is popped even if fn panics.
func (g *Graph) run(n *node, fn func() error) ([]dependency, error) {
	f := &frame{owner: n, index: make(map[*node]int)}
	n.evaluating = true
	g.stack = append(g.stack, f)
	defer func() {
		g.stack = g.stack[:len(g.stack)-1]
		n.evaluating = false
	}()
	err := fn()
	if err == nil {
		err = f.err
	}
	return f.deps, err
}

// evaluate runs fn for a derived value and settles the node on success.
// On failure the previous dependency set, epoch and cache are retained.
func (g *Graph) evaluate(n *node, fn func() error) error {
	start := time.Now()
	deps, err := g.run(n, fn)
	if err != nil {
		err = &EvaluationError{Node: n.name, Err: err}
		g.observe(n, len(deps), time.Since(start), err)
		return err
	}
	n.rewire(deps)
	n.settle()
	g.observe(n, len(deps), time.Since(start), nil)
	return nil
}

func (g *Graph) observe(n *node, deps int, d time.Duration, err error) {
	if err != nil {
		g.logger.Debug("Evaluation failed", "node", n.name, "kind", n.kind, "err", err)
	} else {
		g.logger.Debug("Evaluated", "node", n.name, "kind", n.kind, "epoch", n.epoch, "deps", deps, "duration", d)
	}
	if g.hooks.OnEvaluate != nil {
		g.hooks.OnEvaluate(&EvalEvent{
			Graph:    g.name,
			Node:     n.name,
			Kind:     n.kind,
			Epoch:    n.epoch,
			Deps:     deps,
			Duration: d,
			Err:      err,
		})
	}
}

// checkWritable guards the "writes only outside evaluation" precondition.
func (g *Graph) checkWritable(target string) error {
	if g.disposed {
		return ErrDisposed
	}
	if who, busy := g.active(); busy {
		return &StaleReadViolation{Target: target, Active: who}
	}
	return nil
}

// stage queues a source write for the open batch.
func (g *Graph) stage(n *node, apply func()) {
	g.pending = append(g.pending, staged{node: n, apply: apply})
}

// Batch runs fn as one transaction. Source writes inside fn are staged:
// reads keep returning committed values until fn returns. If fn fails the
// staged writes are discarded and nothing is invalidated. Otherwise all
// writes are applied together, invalidation is propagated for the whole
// batch and the dirty sinks are flushed, so no sink ever observes a subset
// of the batch.
//
// Nested calls join the outermost batch.
func (g *Graph) Batch(fn func() error) error {
	if err := g.checkWritable("batch"); err != nil {
		return err
	}
	if g.batch > 0 {
		return fn()
	}
	if err := g.collect(fn); err != nil {
		return err
	}
	g.commit()
	return g.Flush()
}

func (g *Graph) collect(fn func() error) error {
	ok := false
	g.batch++
	defer func() {
		g.batch--
		if !ok {
			g.pending = nil
		}
	}()
	if err := fn(); err != nil {
		return err
	}
	ok = true
	return nil
}

// commit applies the staged writes and runs the mark phase.
func (g *Graph) commit() {
	pending := g.pending
	g.pending = nil
	if len(pending) == 0 {
		return
	}

	sources := make([]string, 0, len(pending))
	for _, w := range pending {
		w.apply()
		w.node.epoch++
		sources = append(sources, w.node.name)
	}

	marked := 0
	for _, w := range pending {
		marked += g.invalidate(w.node)
	}

	g.logger.Debug("Batch committed", "writes", len(pending), "marked", marked)
	if g.hooks.OnInvalidate != nil {
		g.hooks.OnInvalidate(&InvalidateEvent{Graph: g.name, Sources: sources, Marked: marked})
	}
}

// invalidate marks every node reachable from src through current edges.
// A node already dirty is not walked again, so each node is visited once
// per batch regardless of fan-in and the whole pass is O(edges).
func (g *Graph) invalidate(src *node) int {
	marked := 0
	stack := make([]*node, 0, len(src.dependents))
	for d := range src.dependents {
		stack = append(stack, d)
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.dirty {
			continue
		}
		n.dirty = true
		marked++
		for d := range n.dependents {
			stack = append(stack, d)
		}
	}
	return marked
}

// Flush runs every dirty sink in registration order. Derived values shared
// by several sinks are recomputed at most once thanks to memoization. Sink
// failures are reported one by one and returned joined; a failing sink never
// prevents the others from running and stays dirty for the next flush.
func (g *Graph) Flush() error {
	if err := g.checkWritable("flush"); err != nil {
		return err
	}
	g.inFlush = true
	defer func() { g.inFlush = false }()

	start := time.Now()
	var errs []error
	ran := 0
	for _, s := range g.sinks {
		if !s.base().dirty {
			continue
		}
		ran++
		if err := s.flush(); err != nil {
			g.reporter(s.base().name, err)
			errs = append(errs, err)
		}
	}

	if g.hooks.OnFlush != nil {
		g.hooks.OnFlush(&FlushEvent{
			Graph:    g.name,
			Sinks:    ran,
			Failed:   len(errs),
			Duration: time.Since(start),
		})
	}
	return errors.Join(errs...)
}

// Dispose tears the graph down at session end. Every later write, read of a
// derived value or flush returns ErrDisposed.
func (g *Graph) Dispose() {
	if g.disposed {
		return
	}
	g.disposed = true
	for _, n := range g.nodes {
		n.deps = nil
		n.dependents = make(map[*node]struct{})
	}
	g.sinks = nil
	g.pending = nil
	g.logger.Debug("Graph disposed", "nodes", len(g.nodes))
}

// Disposed reports whether Dispose was called.
func (g *Graph) Disposed() bool { return g.disposed }
