package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/covidash/pkg/domain"
)

// Source implements ports.DataSource over a fixed dataset. Replace swaps the
// dataset, which makes it handy for exercising refreshes.
type Source struct {
	mu      sync.RWMutex
	ds      domain.Dataset
	fetches int
}

// NewSource creates a source serving ds.
func NewSource(ds domain.Dataset) *Source {
	return &Source{ds: ds}
}

// Series returns a copy of the rows.
func (s *Source) Series(ctx context.Context) ([]domain.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return slices.Clone(s.ds.Rows), nil
}

// Population returns a copy of the population table.
func (s *Source) Population(ctx context.Context) ([]domain.PopulationRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ds.Population), nil
}

// Replace swaps the served dataset.
func (s *Source) Replace(ds domain.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
}

// Fetches counts Series calls.
func (s *Source) Fetches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetches
}
