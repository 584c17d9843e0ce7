package covidash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/covidash/internal/logging"
	"github.com/aretw0/covidash/pkg/adapters/memory"
	"github.com/aretw0/covidash/pkg/dashboard"
	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/observability"
	"github.com/aretw0/covidash/pkg/persistence/middleware"
	"github.com/aretw0/covidash/pkg/ports"
	"github.com/aretw0/covidash/pkg/reactive"
	"github.com/aretw0/covidash/pkg/session"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RendererFactory returns the renderers of one session, on top of the
// canvas every session draws on.
type RendererFactory func(sessionID string) ports.Renderers

// Engine is the high-level entry point for the covidash library.
// It fetches the data, owns one reactive dashboard per session and keeps
// the session selections persisted.
// Safe for concurrent use; calls on one session are serialized.
type Engine struct {
	source    ports.DataSource
	manager   *session.Manager
	store     ports.SelectionStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	renderers RendererFactory
	hooks     reactive.Hooks
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	canvases map[string]*memory.Canvas
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStore persists selections somewhere else than in memory.
func WithStore(store ports.SelectionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes sessions across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL bounds how long a distributed session lock outlives a
// crashed replica.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithRenderers adds per-session renderers, e.g. a terminal.
func WithRenderers(f RendererFactory) Option {
	return func(e *Engine) {
		e.renderers = f
	}
}

// WithHooks registers graph observability hooks on every session.
func WithHooks(hooks reactive.Hooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMetrics records every session into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New initializes an Engine reading its tables from source.
func New(source ports.DataSource, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("a data source is required")
	}
	e := &Engine{
		source:   source,
		canvases: make(map[string]*memory.Canvas),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	mws := []middleware.Middleware{middleware.NewLoggingMiddleware(e.logger)}
	if e.metrics != nil {
		mws = append(mws, middleware.NewMetricsMiddleware(e.metrics.StoreDuration))
	}
	e.store = middleware.Chain(e.store, mws...)

	mgrOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		mgrOpts = append(mgrOpts, session.WithLocker(e.locker))
	}
	if e.lockTTL > 0 {
		mgrOpts = append(mgrOpts, session.WithLockTTL(e.lockTTL))
	}
	if e.metrics != nil {
		mgrOpts = append(mgrOpts, session.WithGauge(e.metrics.Sessions))
	}
	e.manager = session.NewManager(e.store, mgrOpts...)
	return e, nil
}

// fetch materializes both tables concurrently.
func (e *Engine) fetch(ctx context.Context) (domain.Dataset, error) {
	var ds domain.Dataset
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := e.source.Series(ctx)
		if err != nil {
			return fmt.Errorf("fetch series: %w", err)
		}
		ds.Rows = rows
		return nil
	})
	g.Go(func() error {
		pop, err := e.source.Population(ctx)
		if err != nil {
			return fmt.Errorf("fetch population: %w", err)
		}
		ds.Population = pop
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Dataset{}, err
	}
	return ds, nil
}

func (e *Engine) dashboardOptions(sessionID string) []dashboard.Option {
	logger := e.logger.With("session_id", sessionID)
	hooks := []reactive.Hooks{observability.LogHooks(logger), e.hooks}
	if e.metrics != nil {
		hooks = append(hooks, e.metrics.Hooks())
	}
	return []dashboard.Option{
		dashboard.WithLogger(logger),
		dashboard.WithHooks(reactive.ComposeHooks(hooks...)),
		dashboard.WithErrorReporter(func(sink string, err error) {
			logger.Warn("Render failed", "sink", sink, "err", err)
			if e.metrics != nil {
				e.metrics.ReportSinkFailure(sink, err)
			}
		}),
	}
}

// Start opens a session and renders it once. An empty sessionID gets a
// fresh one; a known one restores its stored selection. Starting an open
// session is a no-op. It returns the session ID.
func (e *Engine) Start(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if slices.Contains(e.manager.Active(), sessionID) {
		return sessionID, nil
	}

	ds, err := e.fetch(ctx)
	if err != nil {
		return "", err
	}

	canvas := memory.NewCanvas()
	r := ports.All(canvas)
	if e.renderers != nil {
		r = ports.Join(r, e.renderers(sessionID))
	}
	_, created, err := e.manager.Open(ctx, sessionID, ds, r, e.dashboardOptions(sessionID)...)
	if err != nil {
		return "", err
	}
	// A concurrent Start may have won the race; its canvas is the wired one.
	if created {
		e.mu.Lock()
		e.canvases[sessionID] = canvas
		e.mu.Unlock()
	}
	return sessionID, nil
}

// Apply patches the inputs of a session in one batch and reports what
// changed. Invalid patches are rejected with domain.ErrInvalidInput.
func (e *Engine) Apply(ctx context.Context, sessionID string, p domain.InputPatch) (*domain.SelectionDiff, error) {
	return e.manager.Apply(ctx, sessionID, p)
}

// Selection returns the committed inputs of a session.
func (e *Engine) Selection(ctx context.Context, sessionID string) (domain.Selection, error) {
	var sel domain.Selection
	err := e.manager.WithSession(ctx, sessionID, func(_ context.Context, d *dashboard.Dashboard) error {
		sel = d.Selection()
		return nil
	})
	return sel, err
}

// View computes every artifact of the current selection.
func (e *Engine) View(ctx context.Context, sessionID string) (domain.View, error) {
	var v domain.View
	err := e.manager.WithSession(ctx, sessionID, func(_ context.Context, d *dashboard.Dashboard) error {
		var err error
		v, err = d.View()
		return err
	})
	return v, err
}

// Choices returns the states and date bounds a session's inputs can take.
// It answers even when the current selection cannot be evaluated.
func (e *Engine) Choices(ctx context.Context, sessionID string) (domain.Choices, error) {
	var c domain.Choices
	err := e.manager.WithSession(ctx, sessionID, func(_ context.Context, d *dashboard.Dashboard) error {
		var err error
		c, err = d.Choices()
		return err
	})
	return c, err
}

// Artifacts returns what the renderers of a session last drew.
func (e *Engine) Artifacts(ctx context.Context, sessionID string) (memory.Artifacts, error) {
	e.mu.Lock()
	canvas, ok := e.canvases[sessionID]
	e.mu.Unlock()
	if !ok {
		return memory.Artifacts{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return canvas.Snapshot(), nil
}

// Refresh refetches both tables and reloads them into the session in one
// batch. The inputs are kept.
func (e *Engine) Refresh(ctx context.Context, sessionID string) error {
	ds, err := e.fetch(ctx)
	if err != nil {
		return err
	}
	return e.manager.WithSession(ctx, sessionID, func(_ context.Context, d *dashboard.Dashboard) error {
		return d.Reload(ds)
	})
}

// Render flushes the dirty sinks of a session, e.g. to retry a failed
// renderer.
func (e *Engine) Render(ctx context.Context, sessionID string) error {
	return e.manager.WithSession(ctx, sessionID, func(_ context.Context, d *dashboard.Dashboard) error {
		return d.Render()
	})
}

// Inspect returns the dependency graph of a session for visualization or
// introspection tools.
func (e *Engine) Inspect(ctx context.Context, sessionID string) ([]reactive.NodeInfo, error) {
	var nodes []reactive.NodeInfo
	err := e.manager.WithSession(ctx, sessionID, func(_ context.Context, d *dashboard.Dashboard) error {
		nodes = d.Nodes()
		return nil
	})
	return nodes, err
}

// Close ends a session. Its selection stays stored for the next Start.
func (e *Engine) Close(ctx context.Context, sessionID string) error {
	if err := e.manager.Close(ctx, sessionID); err != nil {
		return err
	}
	e.forget(sessionID)
	return nil
}

// Delete ends a session and forgets its selection.
func (e *Engine) Delete(ctx context.Context, sessionID string) error {
	if err := e.manager.Delete(ctx, sessionID); err != nil {
		return err
	}
	e.forget(sessionID)
	return nil
}

func (e *Engine) forget(sessionID string) {
	e.mu.Lock()
	delete(e.canvases, sessionID)
	e.mu.Unlock()
}

// Sessions lists every stored session, open or not.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.manager.List(ctx)
}

// Active lists the open sessions.
func (e *Engine) Active() []string {
	return e.manager.Active()
}

// Shutdown closes every open session.
func (e *Engine) Shutdown(ctx context.Context) error {
	ids := e.manager.Active()
	err := e.manager.CloseAll(ctx)
	for _, id := range ids {
		e.forget(id)
	}
	return err
}

// Watch refreshes every open session whenever the data source reports a
// change, and emits the ID of each refreshed session. The channel closes
// when ctx is done. It fails if the source cannot be watched.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	w, ok := e.source.(ports.Watchable)
	if !ok {
		return nil, fmt.Errorf("current data source does not support watching")
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		for range changes {
			for _, id := range e.manager.Active() {
				err := e.Refresh(ctx, id)
				if err != nil && !errors.Is(err, reactive.ErrEvaluation) {
					e.logger.Warn("Refresh failed", "session_id", id, "err", err)
					continue
				}
				select {
				case out <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Metrics returns the collectors given with WithMetrics, or nil.
func (e *Engine) Metrics() *observability.Metrics {
	return e.metrics
}
