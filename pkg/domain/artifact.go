package domain

import (
	"sort"
	"time"
)

// Summary maps state to its aggregate over the selected range.
type Summary map[string]float64

// States returns the keys of s, sorted.
func (s Summary) States() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Choropleth colors states by their aggregate.
type Choropleth struct {
	Metric   Metric             `json:"metric"`
	Adjusted bool               `json:"adjusted"`
	Values   map[string]float64 `json:"values"`
}

// TableRow is one line of the summary table.
type TableRow struct {
	State string  `json:"state"`
	Value float64 `json:"value"`
}

// Table lists the aggregates, largest first.
type Table struct {
	Metric   Metric     `json:"metric"`
	Adjusted bool       `json:"adjusted"`
	Rows     []TableRow `json:"rows"`
}

// NewTable builds a table from s sorted by value descending, then state.
func NewTable(metric Metric, adjusted bool, s Summary) Table {
	rows := make([]TableRow, 0, len(s))
	for state, v := range s {
		rows = append(rows, TableRow{State: state, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].State < rows[j].State
	})
	return Table{Metric: metric, Adjusted: adjusted, Rows: rows}
}

// TrendPoint is one (date, state, value) sample of the chart.
type TrendPoint struct {
	Date  time.Time `json:"date"`
	State string    `json:"state"`
	Value float64   `json:"value"`
}

// TrendSeries is the ordered multi-series line chart input.
type TrendSeries struct {
	Metric   Metric       `json:"metric"`
	Adjusted bool         `json:"adjusted"`
	State    string       `json:"state"`
	Points   []TrendPoint `json:"points"`
}

// ByState splits the points into one ordered series per state.
func (t TrendSeries) ByState() map[string][]TrendPoint {
	out := make(map[string][]TrendPoint)
	for _, p := range t.Points {
		out[p.State] = append(out[p.State], p)
	}
	return out
}

// View bundles the selection with every artifact it currently produces.
type View struct {
	Selection Selection   `json:"selection"`
	Map       Choropleth  `json:"map"`
	Table     Table       `json:"table"`
	Trend     TrendSeries `json:"trend"`
}

// Choices lists what the inputs can be set to with the loaded data: the
// states of the state selector and the date bounds of the range slider.
// It does not depend on the current selection.
type Choices struct {
	States []string  `json:"states"`
	Extent DateRange `json:"extent"`
}
