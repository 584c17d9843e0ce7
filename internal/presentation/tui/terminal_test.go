package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.RendererSet = (*Terminal)(nil)

func points(state string, values ...float64) []domain.TrendPoint {
	start := time.Date(2020, 1, 21, 0, 0, 0, 0, time.UTC)
	out := make([]domain.TrendPoint, len(values))
	for i, v := range values {
		out[i] = domain.TrendPoint{Date: start.AddDate(0, 0, i), State: state, Value: v}
	}
	return out
}

func TestTerminal_RenderMap(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, WithWidth(40))
	require.NoError(t, term.RenderMap(domain.Choropleth{
		Metric: domain.MetricCases,
		Values: map[string]float64{"Ohio": 40, "Iowa": 0, "Utah": 20},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Map: cases", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Iowa "))
	assert.Equal(t, 0, strings.Count(lines[1], "█"))
	assert.Equal(t, 20, strings.Count(lines[2], "█"), "peak fills the bar")
	assert.True(t, strings.HasSuffix(lines[2], " 40"))
	assert.Equal(t, 10, strings.Count(lines[3], "█"))
	assert.NotContains(t, buf.String(), "\x1b[", "no color outside a terminal")
}

func TestTerminal_RenderTable(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	tbl := domain.NewTable(domain.MetricDeaths, true, domain.Summary{"A": 0.2, "B": 0.4})
	require.NoError(t, term.RenderTable(tbl))

	want := "| # | State | deaths (% of population) |\n" +
		"|---:|---|---:|\n" +
		"| 1 | B | 0.4000% |\n" +
		"| 2 | A | 0.2000% |\n"
	assert.Equal(t, want, buf.String())
}

func TestTerminal_RenderChart(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, WithWidth(60))
	s := domain.TrendSeries{
		Metric: domain.MetricCases,
		State:  domain.ShowAll,
		Points: append(points("B", 5, 5, 5), points("A", 10, 30, 50)...),
	}
	require.NoError(t, term.RenderChart(s))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Trend: cases, Show all", lines[0])
	assert.Equal(t, "A ▁▄█ 10..50", lines[1])
	assert.Equal(t, "B ▁▁▁ 5..5", lines[2])

	buf.Reset()
	require.NoError(t, term.RenderChart(domain.TrendSeries{Metric: domain.MetricCases, State: "A"}))
	assert.Contains(t, buf.String(), "(no data)")
}

func TestSparkline_Buckets(t *testing.T) {
	pts := points("A", 1, 2, 3, 4, 5, 6, 7, 8)
	got := Sparkline(pts, 4)
	assert.Equal(t, 4, len([]rune(got)))
	assert.Equal(t, "▁▃▅█", got)
	assert.Empty(t, Sparkline(nil, 4))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "\\___\\___/")
}
