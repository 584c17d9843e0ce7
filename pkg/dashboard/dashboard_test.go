package dashboard_test

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/covidash/pkg/dashboard"
	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/ports"
	"github.com/aretw0/covidash/pkg/reactive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type canvas struct {
	maps   []domain.Choropleth
	tables []domain.Table
	charts []domain.TrendSeries
	fail   error
}

func (c *canvas) RenderMap(m domain.Choropleth) error {
	if c.fail != nil {
		return c.fail
	}
	c.maps = append(c.maps, m)
	return nil
}

func (c *canvas) RenderTable(t domain.Table) error {
	c.tables = append(c.tables, t)
	return nil
}

func (c *canvas) RenderChart(s domain.TrendSeries) error {
	c.charts = append(c.charts, s)
	return nil
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func fixture(t *testing.T) domain.Dataset {
	return domain.Dataset{
		Rows: []domain.Row{
			{State: "A", Date: day(t, "2020-01-23"), Metric: domain.MetricCases, N: 50},
			{State: "A", Date: day(t, "2020-01-21"), Metric: domain.MetricCases, N: 10},
			{State: "B", Date: day(t, "2020-01-21"), Metric: domain.MetricCases, N: 5},
			{State: "B", Date: day(t, "2020-01-23"), Metric: domain.MetricCases, N: 5},
			{State: "A", Date: day(t, "2020-01-21"), Metric: domain.MetricDeaths, N: 1},
			{State: "A", Date: day(t, "2020-01-23"), Metric: domain.MetricDeaths, N: 3},
			{State: "B", Date: day(t, "2020-01-21"), Metric: domain.MetricDeaths, N: 0},
			{State: "B", Date: day(t, "2020-01-23"), Metric: domain.MetricDeaths, N: 2},
		},
		Population: []domain.PopulationRow{
			{State: "A", Population: 1000},
			{State: "B", Population: 500},
		},
	}
}

func scenario(t *testing.T, ds domain.Dataset, opts ...dashboard.Option) (*dashboard.Dashboard, *canvas) {
	t.Helper()
	c := &canvas{}
	sel := domain.Selection{
		Metric: domain.MetricCases,
		Range:  domain.DateRange{Start: day(t, "2020-01-21"), End: day(t, "2020-03-01")},
		State:  domain.ShowAll,
	}
	opts = append([]dashboard.Option{dashboard.WithSelection(sel)}, opts...)
	d, err := dashboard.New(ds, ports.All(c), opts...)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	require.NoError(t, d.Render())
	return d, c
}

func epoch(t *testing.T, d *dashboard.Dashboard, name string) uint64 {
	t.Helper()
	info, ok := d.Graph().Lookup(name)
	require.True(t, ok, "node %s", name)
	return info.Epoch
}

func TestDashboard_EndToEnd(t *testing.T) {
	d, c := scenario(t, fixture(t))

	summary, err := d.Summary()
	require.NoError(t, err)
	assert.Equal(t, domain.Summary{"A": 40, "B": 0}, summary)
	require.Len(t, c.maps, 1)
	assert.Equal(t, map[string]float64{"A": 40, "B": 0}, c.maps[0].Values)
	assert.False(t, c.maps[0].Adjusted)

	rawEpoch := epoch(t, d, dashboard.NodeRaw)
	filteredEpoch := epoch(t, d, dashboard.NodeFiltered)

	require.NoError(t, d.SetPopulationAdjust(true))

	summary, err = d.Summary()
	require.NoError(t, err)
	assert.InDelta(t, 4.0, summary["A"], 1e-9)
	assert.InDelta(t, 0.0, summary["B"], 1e-9)
	require.Len(t, c.maps, 2)
	assert.True(t, c.maps[1].Adjusted)
	assert.InDelta(t, 4.0, c.maps[1].Values["A"], 1e-9)

	assert.Equal(t, rawEpoch, epoch(t, d, dashboard.NodeRaw), "raw data must not be refetched")
	assert.Equal(t, filteredEpoch, epoch(t, d, dashboard.NodeFiltered), "filtering does not depend on the adjustment")
	require.NoError(t, d.Graph().Verify())
}

func TestDashboard_DefaultSelection(t *testing.T) {
	d, err := dashboard.New(fixture(t), ports.Renderers{})
	require.NoError(t, err)
	defer d.Close()

	sel := d.Selection()
	assert.Equal(t, domain.MetricCases, sel.Metric)
	assert.Equal(t, day(t, "2020-01-21"), sel.Range.Start)
	assert.Equal(t, day(t, "2020-01-23"), sel.Range.End)
	assert.False(t, sel.PopulationAdjust)
	assert.Equal(t, domain.ShowAll, sel.State)

	// Renderer-less sinks still evaluate.
	require.NoError(t, d.Render())
	ext, err := d.Extent()
	require.NoError(t, err)
	assert.Equal(t, sel.Range, ext)
	states, err := d.States()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, states)
}

func TestDashboard_PopulationEdgeFollowsToggle(t *testing.T) {
	d, _ := scenario(t, fixture(t))

	info, _ := d.Graph().Lookup(dashboard.NodePopulation)
	assert.Empty(t, info.Dependents)

	require.NoError(t, d.SetPopulationAdjust(true))
	info, _ = d.Graph().Lookup(dashboard.NodePopulation)
	assert.Equal(t, []string{dashboard.NodeAdjusted}, info.Dependents)

	require.NoError(t, d.SetPopulationAdjust(false))
	info, _ = d.Graph().Lookup(dashboard.NodePopulation)
	assert.Empty(t, info.Dependents)
}

func TestDashboard_StateOnlyRerendersChart(t *testing.T) {
	d, c := scenario(t, fixture(t))
	require.Len(t, c.charts, 1)
	assert.Len(t, c.charts[0].Points, 4)

	require.NoError(t, d.SetState("A"))

	assert.Len(t, c.maps, 1, "map does not read the state selection")
	assert.Len(t, c.tables, 1, "table does not read the state selection")
	require.Len(t, c.charts, 2)
	chart := c.charts[1]
	assert.Equal(t, "A", chart.State)
	require.Len(t, chart.Points, 2)
	assert.Equal(t, day(t, "2020-01-21"), chart.Points[0].Date)
	assert.Equal(t, 10.0, chart.Points[0].Value)
	assert.Equal(t, 50.0, chart.Points[1].Value)
}

func TestDashboard_ApplyIsOneBatch(t *testing.T) {
	d, c := scenario(t, fixture(t))

	metric := domain.MetricDeaths
	adjust := true
	require.NoError(t, d.Apply(domain.InputPatch{Metric: &metric, PopulationAdjust: &adjust}))

	require.Len(t, c.maps, 2, "two inputs, one render")
	m := c.maps[1]
	assert.Equal(t, domain.MetricDeaths, m.Metric)
	assert.True(t, m.Adjusted)
	assert.InDelta(t, 0.2, m.Values["A"], 1e-9)
	assert.InDelta(t, 0.4, m.Values["B"], 1e-9)

	require.Len(t, c.tables, 2)
	assert.Equal(t, "B", c.tables[1].Rows[0].State)

	require.NoError(t, d.Apply(domain.InputPatch{}))
	assert.Len(t, c.maps, 2, "empty patch renders nothing")
}

func TestDashboard_InvalidInputLeavesGraphUntouched(t *testing.T) {
	d, c := scenario(t, fixture(t))
	before := d.Selection()

	err := d.SetMetric("recovered")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = d.SetState("Atlantis")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = d.SetDateRange(domain.DateRange{Start: day(t, "2020-02-01"), End: day(t, "2020-01-01")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Equal(t, before, d.Selection())
	assert.Len(t, c.maps, 1)
	assert.Equal(t, uint64(0), epoch(t, d, dashboard.NodeMetric))
}

func TestDashboard_RenderFailuresKeepInputs(t *testing.T) {
	ds := fixture(t)
	ds.Population = ds.Population[:1]
	var reported []string
	d, c := scenario(t, ds, dashboard.WithErrorReporter(func(sink string, err error) {
		reported = append(reported, sink)
	}))

	err := d.SetPopulationAdjust(true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingPopulation)
	assert.ErrorIs(t, err, reactive.ErrEvaluation)
	assert.True(t, d.Selection().PopulationAdjust, "inputs are committed before rendering")
	assert.ElementsMatch(t, []string{dashboard.NodeMap, dashboard.NodeTable, dashboard.NodeChart}, reported)

	cached, ok := d.Graph().Lookup(dashboard.NodeSummarized)
	require.True(t, ok)
	assert.True(t, cached.Dirty)

	require.NoError(t, d.Reload(fixture(t)))
	require.Len(t, c.maps, 2)
	assert.InDelta(t, 4.0, c.maps[1].Values["A"], 1e-9)
}

func TestDashboard_RendererFailureRetried(t *testing.T) {
	d, c := scenario(t, fixture(t))
	c.fail = errors.New("canvas detached")

	err := d.SetPopulationAdjust(true)
	require.Error(t, err)
	var evalErr *reactive.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, dashboard.NodeMap, evalErr.Node)
	assert.True(t, evalErr.Effect)
	assert.Len(t, c.tables, 2, "other sinks still render")

	c.fail = nil
	require.NoError(t, d.Render())
	require.Len(t, c.maps, 2)
	assert.True(t, c.maps[1].Adjusted)
}

func TestDashboard_NoData(t *testing.T) {
	d, _ := scenario(t, fixture(t))

	err := d.SetDateRange(domain.DateRange{Start: day(t, "2021-01-01"), End: day(t, "2021-02-01")})
	assert.ErrorIs(t, err, domain.ErrNoData)

	_, err = d.Summary()
	assert.ErrorIs(t, err, domain.ErrNoData)

	_, err = dashboard.New(domain.Dataset{}, ports.Renderers{})
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestDashboard_ChoicesSurviveBadSelection(t *testing.T) {
	d, _ := scenario(t, fixture(t))

	err := d.SetDateRange(domain.DateRange{Start: day(t, "2020-01-22"), End: day(t, "2020-01-22")})
	require.ErrorIs(t, err, domain.ErrNoData)
	_, err = d.View()
	require.ErrorIs(t, err, domain.ErrNoData)

	c, err := d.Choices()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, c.States)
	assert.Equal(t, domain.DateRange{Start: day(t, "2020-01-21"), End: day(t, "2020-01-23")}, c.Extent)
	info, _ := d.Graph().Lookup(dashboard.NodeExtent)
	assert.Equal(t, []string{dashboard.NodeRaw}, info.Dependencies)
}

func TestDashboard_View(t *testing.T) {
	d, _ := scenario(t, fixture(t))
	require.NoError(t, d.SetState("B"))

	v, err := d.View()
	require.NoError(t, err)
	assert.Equal(t, "B", v.Selection.State)
	assert.Equal(t, map[string]float64{"A": 40, "B": 0}, v.Map.Values)
	require.Len(t, v.Table.Rows, 2)
	assert.Equal(t, "A", v.Table.Rows[0].State)
	assert.Len(t, v.Trend.Points, 2)
}

func TestDashboard_RestoreValidatesSelection(t *testing.T) {
	sel := domain.DefaultSelection(domain.DateRange{Start: day(t, "2020-01-21"), End: day(t, "2020-01-23")})
	sel.State = "Atlantis"
	_, err := dashboard.New(fixture(t), ports.Renderers{}, dashboard.WithSelection(sel))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDashboard_Close(t *testing.T) {
	d, err := dashboard.New(fixture(t), ports.Renderers{})
	require.NoError(t, err)
	d.Close()

	assert.ErrorIs(t, d.SetMetric(domain.MetricDeaths), reactive.ErrDisposed)
	assert.ErrorIs(t, d.Render(), reactive.ErrDisposed)
}
