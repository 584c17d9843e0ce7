package tests

import (
	"context"
	"testing"

	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/ports"
)

// DataSourceContractTest is a reusable test suite that verifies if an adapter
// complies with ports.DataSource. want is the dataset the adapter was set up
// to serve.
func DataSourceContractTest(t *testing.T, src ports.DataSource, want domain.Dataset) {
	t.Helper()
	ctx := context.Background()

	// 1. Series is served completely, with day-granular dates
	t.Run("Series", func(t *testing.T) {
		rows, err := src.Series(ctx)
		if err != nil {
			t.Fatalf("unexpected error fetching series: %v", err)
		}
		if len(rows) != len(want.Rows) {
			t.Fatalf("series length mismatch: got %d, want %d", len(rows), len(want.Rows))
		}
		index := make(map[domain.Row]bool, len(rows))
		for _, r := range rows {
			if !r.Date.Equal(domain.Day(r.Date)) {
				t.Errorf("row %+v carries a time of day", r)
			}
			if !r.Metric.Valid() {
				t.Errorf("row %+v has an unknown metric", r)
			}
			r.Date = domain.Day(r.Date)
			index[r] = true
		}
		for _, r := range want.Rows {
			r.Date = domain.Day(r.Date)
			if !index[r] {
				t.Errorf("missing row %+v", r)
			}
		}
	})

	// 2. Population is served completely
	t.Run("Population", func(t *testing.T) {
		rows, err := src.Population(ctx)
		if err != nil {
			t.Fatalf("unexpected error fetching population: %v", err)
		}
		got := domain.PopulationIndex(rows)
		for state, p := range domain.PopulationIndex(want.Population) {
			if got[state] != p {
				t.Errorf("population of %s: got %v, want %v", state, got[state], p)
			}
		}
	})

	// 3. A canceled context is honored
	t.Run("Canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := src.Series(cctx); err == nil {
			t.Error("expected error for canceled context, got nil")
		}
	})
}
