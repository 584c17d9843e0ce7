// Package testutils holds the fixtures shared by the covidash tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/covidash/pkg/domain"
	"github.com/stretchr/testify/require"
)

// SeriesCSV is the series of Dataset in the NYT file layout.
const SeriesCSV = `date,state,fips,cases,deaths
2020-01-21,A,01,10,1
2020-01-21,B,02,5,0
2020-01-23,A,01,50,3
2020-01-23,B,02,5,2
`

// PopulationCSV is the population table of Dataset.
const PopulationCSV = `state,population
A,1000
B,500
`

// Day returns 2020-01-d.
func Day(d int) time.Time {
	return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC)
}

// Dataset is a two state, two day fixture. Over its whole extent the
// summary is {A: 40, B: 0} for cases and {A: 2, B: 2} for deaths.
func Dataset() domain.Dataset {
	return domain.Dataset{
		Rows: []domain.Row{
			{State: "A", Date: Day(21), Metric: domain.MetricCases, N: 10},
			{State: "A", Date: Day(23), Metric: domain.MetricCases, N: 50},
			{State: "B", Date: Day(21), Metric: domain.MetricCases, N: 5},
			{State: "B", Date: Day(23), Metric: domain.MetricCases, N: 5},
			{State: "A", Date: Day(21), Metric: domain.MetricDeaths, N: 1},
			{State: "A", Date: Day(23), Metric: domain.MetricDeaths, N: 3},
			{State: "B", Date: Day(21), Metric: domain.MetricDeaths, N: 0},
			{State: "B", Date: Day(23), Metric: domain.MetricDeaths, N: 2},
		},
		Population: []domain.PopulationRow{
			{State: "A", Population: 1000},
			{State: "B", Population: 500},
		},
	}
}

// WriteTables writes SeriesCSV and PopulationCSV into a temporary
// directory and returns their paths. It fails the test immediately on error.
func WriteTables(t *testing.T) (series, population string) {
	t.Helper()

	dir := t.TempDir()
	series = filepath.Join(dir, "series.csv")
	population = filepath.Join(dir, "population.csv")
	require.NoError(t, os.WriteFile(series, []byte(SeriesCSV), 0644), "Failed to write series")
	require.NoError(t, os.WriteFile(population, []byte(PopulationCSV), 0644), "Failed to write population")
	return series, population
}
