package csv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/aretw0/covidash/pkg/domain"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds one shared fetch of a table.
const DefaultFetchTimeout = time.Minute

// Source implements ports.DataSource over two CSV tables. Concurrent
// fetches of the same table (several sessions opening at once) share a
// single request.
type Source struct {
	series     Location
	population Location
	logger     *slog.Logger
	timeout    time.Duration
	group      singleflight.Group
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Source) {
		s.timeout = d
	}
}

// New creates a source reading the series and population tables from the
// given locations.
func New(series, population Location, opts ...Option) *Source {
	s := &Source{
		series:     series,
		population: population,
		logger:     slog.New(slog.DiscardHandler),
		timeout:    DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Series fetches and parses the series table.
func (s *Source) Series(ctx context.Context) ([]domain.Row, error) {
	rows, err := fetch(ctx, s, "series", s.series, ParseSeries)
	return slices.Clone(rows), err
}

// Population fetches and parses the population table.
func (s *Source) Population(ctx context.Context) ([]domain.PopulationRow, error) {
	rows, err := fetch(ctx, s, "population", s.population, ParsePopulation)
	return slices.Clone(rows), err
}

func fetch[T any](ctx context.Context, s *Source, table string, loc Location, parse func(io.Reader) ([]T, error)) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The fetch outlives any single caller: a cancelled caller leaves, the
	// others still get the table.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(table+":"+loc.String(), func() (any, error) {
		ctx, cancel := context.WithTimeout(shared, s.timeout)
		defer cancel()
		start := time.Now()
		body, err := loc.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", table, err)
		}
		defer body.Close()
		rows, err := parse(body)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", table, err)
		}
		s.logger.Debug("Table fetched", "table", table, "location", loc.String(), "rows", len(rows), "duration", time.Since(start))
		return rows, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("Table fetch shared", "table", table)
		}
		return res.Val.([]T), nil
	}
}
