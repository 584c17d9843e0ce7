package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidInput is returned when a selection or patch is rejected before
// reaching the graph (unknown metric, inverted range, unknown state).
var ErrInvalidInput = errors.New("invalid input")

// ErrNoData is returned when a filter leaves no rows to aggregate.
var ErrNoData = errors.New("no data")

// ErrMissingPopulation is returned when population adjustment is requested
// for a state that has no population entry.
var ErrMissingPopulation = errors.New("missing population")
