package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/covidash/internal/logging"
	"github.com/aretw0/covidash/pkg/dashboard"
	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultLockTTL bounds how long a distributed session lock survives a
// crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the open dashboards, one per session, and serializes access
// to each of them. It uses reference counting to garbage collect unused
// locks.
type Manager struct {
	store ports.SelectionStore

	mu       sync.Mutex            // Global lock for the maps
	locks    map[string]*lockEntry // Map of active locks
	sessions map[string]*dashboard.Dashboard

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	gauge   prometheus.Gauge
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithGauge tracks the number of open sessions.
func WithGauge(g prometheus.Gauge) Option {
	return func(m *Manager) {
		m.gauge = g
	}
}

// NewManager creates a Session Manager persisting selections into store.
func NewManager(store ports.SelectionStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*dashboard.Dashboard),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

func (m *Manager) lookup(sessionID string) (*dashboard.Dashboard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.sessions[sessionID]
	return d, ok
}

func (m *Manager) put(sessionID string, d *dashboard.Dashboard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d == nil {
		delete(m.sessions, sessionID)
	} else {
		m.sessions[sessionID] = d
	}
	if m.gauge != nil {
		m.gauge.Set(float64(len(m.sessions)))
	}
}

// Open builds the dashboard of sessionID over ds and renders it once. A
// stored selection is restored; one that no longer fits the data (e.g. a
// state that vanished) falls back to the default selection.
//
// Opening an already open session returns the live dashboard untouched,
// wired to the renderers of whoever created it; created reports whether
// this call built it with r.
func (m *Manager) Open(ctx context.Context, sessionID string, ds domain.Dataset, r ports.Renderers, opts ...dashboard.Option) (d *dashboard.Dashboard, created bool, err error) {
	err = m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if live, ok := m.lookup(sessionID); ok {
			d = live
			return nil
		}

		opts = append([]dashboard.Option{dashboard.WithName(sessionID)}, opts...)
		stored, err := m.store.Load(ctx, sessionID)
		switch {
		case err == nil:
			d, err = dashboard.New(ds, r, append(opts, dashboard.WithSelection(stored))...)
			if errors.Is(err, domain.ErrInvalidInput) {
				m.logger.Warn("Stored selection no longer valid, using defaults",
					"session_id", sessionID, "err", err)
				d, err = dashboard.New(ds, r, opts...)
			}
		case errors.Is(err, domain.ErrSessionNotFound):
			d, err = dashboard.New(ds, r, opts...)
		default:
			return fmt.Errorf("failed to load selection: %w", err)
		}
		if err != nil {
			return err
		}

		if err := m.store.Save(ctx, sessionID, d.Selection()); err != nil {
			d.Close()
			return fmt.Errorf("failed to save selection: %w", err)
		}
		m.put(sessionID, d)
		created = true
		m.logger.Info("Session opened", "session_id", sessionID, "selection", d.Selection())

		if err := d.Render(); err != nil {
			m.logger.Warn("Initial render failed", "session_id", sessionID, "err", err)
		}
		return nil
	})
	return d, created, err
}

// Apply patches the inputs of an open session, persists the new selection
// and reports which inputs changed. A render failure is returned alongside
// the diff: the inputs are committed either way.
func (m *Manager) Apply(ctx context.Context, sessionID string, p domain.InputPatch) (*domain.SelectionDiff, error) {
	var diff *domain.SelectionDiff
	err := m.WithSession(ctx, sessionID, func(ctx context.Context, d *dashboard.Dashboard) error {
		before := d.Selection()
		applyErr := d.Apply(p)
		after := d.Selection()
		diff = domain.Diff(sessionID, &before, after)
		if diff.IsEmpty() {
			return applyErr
		}
		if err := m.store.Save(ctx, sessionID, after); err != nil {
			return errors.Join(applyErr, fmt.Errorf("failed to save selection: %w", err))
		}
		return applyErr
	})
	return diff, err
}

// WithSession runs fn on the open dashboard of sessionID while holding its
// lock. It returns domain.ErrSessionNotFound for sessions that are not open.
func (m *Manager) WithSession(ctx context.Context, sessionID string, fn func(context.Context, *dashboard.Dashboard) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		d, ok := m.lookup(sessionID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return fn(ctx, d)
	})
}

// Close disposes the dashboard of sessionID. The stored selection survives,
// so the next Open restores it.
func (m *Manager) Close(ctx context.Context, sessionID string) error {
	return m.WithSession(ctx, sessionID, func(ctx context.Context, d *dashboard.Dashboard) error {
		d.Close()
		m.put(sessionID, nil)
		m.logger.Info("Session closed", "session_id", sessionID)
		return nil
	})
}

// Delete closes the session if it is open and forgets its selection.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if d, ok := m.lookup(sessionID); ok {
			d.Close()
			m.put(sessionID, nil)
		}
		return m.store.Delete(ctx, sessionID)
	})
}

// CloseAll disposes every open dashboard.
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, id := range m.Active() {
		if err := m.Close(ctx, id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Active lists the IDs of the open sessions, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.sessions))
}

// List returns every stored session, open or not.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying selection store.
func (m *Manager) Store() ports.SelectionStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
