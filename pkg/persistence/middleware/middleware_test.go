package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/aretw0/covidash/pkg/adapters/memory"
	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/persistence/middleware"
	"github.com/aretw0/covidash/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVec() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_store_seconds"}, []string{"op", "outcome"})
}

func TestChain_Contract(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := middleware.Chain(memory.NewStore(),
		middleware.NewLoggingMiddleware(logger),
		middleware.NewMetricsMiddleware(newVec()),
	)
	ports.RunSelectionStoreContract(t, store)
	assert.Contains(t, buf.String(), "Selection saved")
}

func TestMetricsMiddleware(t *testing.T) {
	vec := newVec()
	store := middleware.NewMetricsMiddleware(vec)(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s", domain.Selection{Metric: domain.MetricCases}))
	_, err := store.Load(ctx, "s")
	require.NoError(t, err)
	_, err = store.Load(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// save/ok, load/ok and load/miss
	assert.Equal(t, 3, testutil.CollectAndCount(vec))
}

func TestChain_Order(t *testing.T) {
	var calls []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.SelectionStore) ports.SelectionStore {
			calls = append(calls, name)
			return next
		}
	}
	middleware.Chain(memory.NewStore(), tag("outer"), tag("inner"))
	assert.Equal(t, []string{"inner", "outer"}, calls, "the last middleware wraps the store first")
}
