package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the day-granularity layout used on every wire format.
const DateLayout = "2006-01-02"

// Metric selects which series column is shown.
type Metric string

const (
	MetricCases  Metric = "cases"
	MetricDeaths Metric = "deaths"
)

// Metrics lists the supported metrics in display order.
var Metrics = []Metric{MetricCases, MetricDeaths}

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	return m == MetricCases || m == MetricDeaths
}

// ParseMetric accepts a metric name case-insensitively.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidInput, s)
	}
	return m, nil
}

// Row is one observation of the long-format series. Values are cumulative.
type Row struct {
	State  string    `json:"state"`
	Date   time.Time `json:"date"`
	Metric Metric    `json:"metric"`
	N      float64   `json:"n"`
}

// PopulationRow holds the population of one state.
type PopulationRow struct {
	State      string  `json:"state"`
	Population float64 `json:"population"`
}

// Dataset is everything fetched for a session: the series and the
// population table.
type Dataset struct {
	Rows       []Row
	Population []PopulationRow
}

// PopulationIndex maps state to population.
func PopulationIndex(rows []PopulationRow) map[string]float64 {
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.State] = r.Population
	}
	return out
}

// States returns the distinct states of rows, sorted.
func States(rows []Row) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.State] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Extent returns the smallest range covering every row.
func Extent(rows []Row) (DateRange, error) {
	if len(rows) == 0 {
		return DateRange{}, ErrNoData
	}
	r := DateRange{Start: Day(rows[0].Date), End: Day(rows[0].Date)}
	for _, row := range rows[1:] {
		d := Day(row.Date)
		if d.Before(r.Start) {
			r.Start = d
		}
		if d.After(r.End) {
			r.End = d
		}
	}
	return r, nil
}

// SortRows orders rows by date, then state, then metric.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.State != b.State {
			return a.State < b.State
		}
		return a.Metric < b.Metric
	})
}
