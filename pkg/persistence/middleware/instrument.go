package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

type metricsMiddleware struct {
	next     ports.SelectionStore
	duration *prometheus.HistogramVec
}

// NewMetricsMiddleware records the duration of every store call into
// duration, labeled by op and outcome. A missing session is a "miss", not
// an error.
func NewMetricsMiddleware(duration *prometheus.HistogramVec) Middleware {
	return func(next ports.SelectionStore) ports.SelectionStore {
		return &metricsMiddleware{next: next, duration: duration}
	}
}

func (m *metricsMiddleware) observe(op string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		outcome = "miss"
	case err != nil:
		outcome = "error"
	}
	m.duration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

func (m *metricsMiddleware) Save(ctx context.Context, sessionID string, sel domain.Selection) error {
	start := time.Now()
	err := m.next.Save(ctx, sessionID, sel)
	m.observe("save", start, err)
	return err
}

func (m *metricsMiddleware) Load(ctx context.Context, sessionID string) (domain.Selection, error) {
	start := time.Now()
	sel, err := m.next.Load(ctx, sessionID)
	m.observe("load", start, err)
	return sel, err
}

func (m *metricsMiddleware) Delete(ctx context.Context, sessionID string) error {
	start := time.Now()
	err := m.next.Delete(ctx, sessionID)
	m.observe("delete", start, err)
	return err
}

func (m *metricsMiddleware) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	ids, err := m.next.List(ctx)
	m.observe("list", start, err)
	return ids, err
}

type loggingMiddleware struct {
	next   ports.SelectionStore
	logger *slog.Logger
}

// NewLoggingMiddleware logs every write at debug level and every failure
// at warn level.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.SelectionStore) ports.SelectionStore {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) Save(ctx context.Context, sessionID string, sel domain.Selection) error {
	err := m.next.Save(ctx, sessionID, sel)
	if err != nil {
		m.logger.Warn("Selection save failed", "session_id", sessionID, "err", err)
		return err
	}
	m.logger.Debug("Selection saved", "session_id", sessionID, "selection", sel)
	return nil
}

func (m *loggingMiddleware) Load(ctx context.Context, sessionID string) (domain.Selection, error) {
	sel, err := m.next.Load(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		m.logger.Warn("Selection load failed", "session_id", sessionID, "err", err)
	}
	return sel, err
}

func (m *loggingMiddleware) Delete(ctx context.Context, sessionID string) error {
	err := m.next.Delete(ctx, sessionID)
	if err != nil {
		m.logger.Warn("Selection delete failed", "session_id", sessionID, "err", err)
		return err
	}
	m.logger.Debug("Selection deleted", "session_id", sessionID)
	return nil
}

func (m *loggingMiddleware) List(ctx context.Context) ([]string, error) {
	ids, err := m.next.List(ctx)
	if err != nil {
		m.logger.Warn("Selection list failed", "err", err)
	}
	return ids, err
}
