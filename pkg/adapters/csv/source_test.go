package csv_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/covidash/pkg/adapters/csv"
	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/ports"
	"github.com/aretw0/covidash/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.DataSource = (*csv.Source)(nil)
	_ ports.Watchable  = (*csv.Source)(nil)
)

func expected(t *testing.T) domain.Dataset {
	t.Helper()
	rows, err := csv.ParseSeries(strings.NewReader(seriesCSV))
	require.NoError(t, err)
	pop, err := csv.ParsePopulation(strings.NewReader(populationCSV))
	require.NoError(t, err)
	return domain.Dataset{Rows: rows, Population: pop}
}

func serve(t *testing.T, hits *atomic.Int32, gate <-chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/us-states.csv":
			hits.Add(1)
			if gate != nil {
				<-gate
			}
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte(seriesCSV))
		case "/population.csv":
			_, _ = w.Write([]byte(populationCSV))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteSource_Contract(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, &hits, nil)
	src := csv.New(
		csv.Locate(srv.URL+"/us-states.csv", srv.Client()),
		csv.Locate(srv.URL+"/population.csv", srv.Client()),
	)
	tests.DataSourceContractTest(t, src, expected(t))
}

func TestRemoteSource_NotFound(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, &hits, nil)
	src := csv.New(csv.Remote{URL: srv.URL + "/missing.csv"}, csv.File("unused"))

	_, err := src.Series(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestRemoteSource_SharesConcurrentFetches(t *testing.T) {
	var hits atomic.Int32
	gate := make(chan struct{})
	srv := serve(t, &hits, gate)
	src := csv.New(csv.Remote{URL: srv.URL + "/us-states.csv", Client: srv.Client()}, csv.File("unused"))

	var wg sync.WaitGroup
	results := make([][]domain.Row, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rows, err := src.Series(context.Background())
			assert.NoError(t, err)
			results[i] = rows
		}(i)
		if i == 0 {
			require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
		}
	}
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	require.Len(t, results[0], 8)
	require.Len(t, results[1], 8)
	results[0][0].N = -1
	assert.Equal(t, 1.0, results[1][0].N, "callers get independent slices")
}

func TestRemoteSource_CancelledCallerLeavesFetchRunning(t *testing.T) {
	var hits atomic.Int32
	gate := make(chan struct{})
	srv := serve(t, &hits, gate)
	src := csv.New(csv.Remote{URL: srv.URL + "/us-states.csv", Client: srv.Client()}, csv.File("unused"))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := src.Series(first)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan []domain.Row, 1)
	go func() {
		rows, err := src.Series(context.Background())
		assert.NoError(t, err)
		second <- rows
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(gate)
	assert.Len(t, <-second, 8)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRemoteSource_FetchTimeout(t *testing.T) {
	var hits atomic.Int32
	gate := make(chan struct{})
	srv := serve(t, &hits, gate)
	t.Cleanup(func() { close(gate) })
	src := csv.New(
		csv.Remote{URL: srv.URL + "/us-states.csv", Client: srv.Client()},
		csv.File("unused"),
		csv.WithFetchTimeout(50*time.Millisecond),
	)

	_, err := src.Series(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func writeTables(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	series := filepath.Join(dir, "us-states.csv")
	pop := filepath.Join(dir, "population.csv")
	require.NoError(t, os.WriteFile(series, []byte(seriesCSV), 0o644))
	require.NoError(t, os.WriteFile(pop, []byte(populationCSV), 0o644))
	return series, pop
}

func TestFileSource_Contract(t *testing.T) {
	series, pop := writeTables(t)
	src := csv.New(csv.Locate(series, nil), csv.Locate(pop, nil))
	tests.DataSourceContractTest(t, src, expected(t))
}

func TestFileSource_Watch(t *testing.T) {
	series, pop := writeTables(t)
	src := csv.New(csv.File(series), csv.File(pop))

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := src.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(series, []byte(seriesCSV+"2020-01-25,Illinois,17,2,0\n"), 0o644))
	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change notification")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "channel closes with the context")
}

func TestRemoteSource_NotWatchable(t *testing.T) {
	src := csv.New(csv.Remote{URL: "http://example.invalid/a.csv"}, csv.Remote{URL: "http://example.invalid/b.csv"})
	_, err := src.Watch(context.Background())
	assert.ErrorIs(t, err, csv.ErrNotWatchable)
}
