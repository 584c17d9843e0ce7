package dashboard

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/ports"
	"github.com/aretw0/covidash/pkg/reactive"
)

// Node names of the session graph.
const (
	NodeMetric           = "metric"
	NodeDateRange        = "date_range"
	NodePopulationAdjust = "population_adjust"
	NodeStateSelect      = "state_select"
	NodeRaw              = "covid_raw"
	NodePopulation       = "population"

	NodeFiltered   = "covid_filtered"
	NodeAdjusted   = "covid_adjusted"
	NodeSummarized = "covid_summarized"
	NodeTrend      = "covid_trend"
	NodeStates     = "covid_states"
	NodeExtent     = "covid_extent"

	NodeMap   = "map"
	NodeTable = "table"
	NodeChart = "chart"
)

// Dashboard is one session's reactive graph plus its typed handles.
// It is not safe for concurrent use; see pkg/session.
type Dashboard struct {
	graph  *reactive.Graph
	logger *slog.Logger

	metric     *reactive.Source[domain.Metric]
	dateRange  *reactive.Source[domain.DateRange]
	adjust     *reactive.Source[bool]
	state      *reactive.Source[string]
	raw        *reactive.Source[[]domain.Row]
	population *reactive.Source[map[string]float64]

	filtered   *reactive.Derived[[]domain.Row]
	adjusted   *reactive.Derived[[]domain.Row]
	summarized *reactive.Derived[domain.Summary]
	trend      *reactive.Derived[[]domain.TrendPoint]
	states     *reactive.Derived[[]string]
	extent     *reactive.Derived[domain.DateRange]
}

// Option configures a Dashboard.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	hooks     reactive.Hooks
	reporter  reactive.ErrorReporter
	name      string
	selection *domain.Selection
}

// WithLogger sets the structured logger (shared with the graph).
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHooks registers graph observability hooks.
func WithHooks(hooks reactive.Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithErrorReporter receives sink failures.
func WithErrorReporter(r reactive.ErrorReporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

// WithName labels the graph, usually with the session ID.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithSelection starts the dashboard from a stored selection instead of the
// default one. The selection is validated against the dataset.
func WithSelection(sel domain.Selection) Option {
	return func(o *options) {
		o.selection = &sel
	}
}

// New wires the session graph over ds. Nothing is evaluated until the first
// Render.
func New(ds domain.Dataset, r ports.Renderers, opts ...Option) (*Dashboard, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	extent, err := domain.Extent(ds.Rows)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	sel := domain.DefaultSelection(extent)
	if o.selection != nil {
		sel = *o.selection
	}

	graphOpts := []reactive.Option{
		reactive.WithName(o.name),
		reactive.WithLogger(o.logger),
		reactive.WithHooks(o.hooks),
	}
	if o.reporter != nil {
		graphOpts = append(graphOpts, reactive.WithErrorReporter(o.reporter))
	}
	g := reactive.New(graphOpts...)

	d := &Dashboard{graph: g, logger: o.logger}
	d.metric = reactive.NewSource(g, NodeMetric, sel.Metric)
	d.dateRange = reactive.NewSource(g, NodeDateRange, sel.Range)
	d.adjust = reactive.NewSource(g, NodePopulationAdjust, sel.PopulationAdjust)
	d.state = reactive.NewSource(g, NodeStateSelect, sel.State)
	d.raw = reactive.NewSource(g, NodeRaw, sortedRows(ds.Rows))
	d.population = reactive.NewSource(g, NodePopulation, domain.PopulationIndex(ds.Population))

	d.filtered = reactive.NewDerived(g, NodeFiltered, d.computeFiltered)
	d.adjusted = reactive.NewDerived(g, NodeAdjusted, d.computeAdjusted)
	d.summarized = reactive.NewDerived(g, NodeSummarized, d.computeSummary)
	d.trend = reactive.NewDerived(g, NodeTrend, d.computeTrend)
	d.states = reactive.NewDerived(g, NodeStates, func() ([]string, error) {
		return domain.States(d.raw.Read()), nil
	})
	d.extent = reactive.NewDerived(g, NodeExtent, func() (domain.DateRange, error) {
		return domain.Extent(d.raw.Read())
	})

	reactive.NewSink(g, NodeMap, d.choropleth, effect(r.Map, ports.MapRenderer.RenderMap))
	reactive.NewSink(g, NodeTable, d.table, effect(r.Table, ports.TableRenderer.RenderTable))
	reactive.NewSink(g, NodeChart, d.series, effect(r.Chart, ports.ChartRenderer.RenderChart))

	if o.selection != nil {
		if err := d.validate(sel); err != nil {
			g.Dispose()
			return nil, err
		}
	}
	return d, nil
}

// effect adapts a renderer method to a sink effect; a nil renderer yields a
// nil effect.
func effect[R comparable, T any](r R, render func(R, T) error) func(T) error {
	var zero R
	if r == zero {
		return nil
	}
	return func(v T) error {
		return render(r, v)
	}
}

func sortedRows(rows []domain.Row) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, r := range rows {
		r.Date = domain.Day(r.Date)
		out[i] = r
	}
	domain.SortRows(out)
	return out
}

// Graph exposes the underlying graph for introspection.
func (d *Dashboard) Graph() *reactive.Graph { return d.graph }

// Nodes returns the introspection snapshot of the graph.
func (d *Dashboard) Nodes() []reactive.NodeInfo { return d.graph.Nodes() }

// Selection returns the committed inputs.
func (d *Dashboard) Selection() domain.Selection {
	return domain.Selection{
		Metric:           d.metric.Peek(),
		Range:            d.dateRange.Peek(),
		PopulationAdjust: d.adjust.Peek(),
		State:            d.state.Peek(),
	}
}

// SetMetric switches the shown metric.
func (d *Dashboard) SetMetric(m domain.Metric) error {
	return d.Apply(domain.InputPatch{Metric: &m})
}

// SetDateRange narrows or widens the aggregated range.
func (d *Dashboard) SetDateRange(r domain.DateRange) error {
	return d.Apply(domain.InputPatch{Start: &r.Start, End: &r.End})
}

// SetPopulationAdjust toggles per-capita values.
func (d *Dashboard) SetPopulationAdjust(on bool) error {
	return d.Apply(domain.InputPatch{PopulationAdjust: &on})
}

// SetState restricts the trend to one state, or to every state with
// domain.ShowAll.
func (d *Dashboard) SetState(state string) error {
	return d.Apply(domain.InputPatch{State: &state})
}

// Apply writes every field of p in one batch, so renderers see the patch as
// a whole. The patch is validated first and rejected with
// domain.ErrInvalidInput without touching the graph.
//
// Once validated the inputs are committed even if rendering fails; in that
// case the returned error wraps reactive.ErrEvaluation.
func (d *Dashboard) Apply(p domain.InputPatch) error {
	if d.graph.Disposed() {
		return reactive.ErrDisposed
	}
	if p.Empty() {
		return nil
	}
	next := p.ApplyTo(d.Selection())
	if err := d.validate(next); err != nil {
		return err
	}

	d.logger.Debug("Applying inputs", "graph", d.graph.Name(), "selection", next)
	return d.graph.Batch(func() error {
		if p.Metric != nil {
			if err := d.metric.Write(next.Metric); err != nil {
				return err
			}
		}
		if p.Start != nil || p.End != nil {
			if err := d.dateRange.Write(next.Range); err != nil {
				return err
			}
		}
		if p.PopulationAdjust != nil {
			if err := d.adjust.Write(next.PopulationAdjust); err != nil {
				return err
			}
		}
		if p.State != nil {
			if err := d.state.Write(next.State); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reload replaces the raw tables in one batch, e.g. after a refresh.
func (d *Dashboard) Reload(ds domain.Dataset) error {
	if len(ds.Rows) == 0 {
		return fmt.Errorf("reload: %w", domain.ErrNoData)
	}
	rows := sortedRows(ds.Rows)
	pop := domain.PopulationIndex(ds.Population)
	return d.graph.Batch(func() error {
		if err := d.raw.Write(rows); err != nil {
			return err
		}
		return d.population.Write(pop)
	})
}

// Render flushes every dirty sink.
func (d *Dashboard) Render() error {
	return d.graph.Flush()
}

// Summary returns the per-state aggregate of the current selection.
func (d *Dashboard) Summary() (domain.Summary, error) {
	return d.summarized.Read()
}

// Trend returns the chart points of the current selection.
func (d *Dashboard) Trend() ([]domain.TrendPoint, error) {
	return d.trend.Read()
}

// States lists the states present in the data.
func (d *Dashboard) States() ([]string, error) {
	return d.states.Read()
}

// Extent returns the range covered by the data.
func (d *Dashboard) Extent() (domain.DateRange, error) {
	return d.extent.Read()
}

// Choices returns the states and date bounds of the loaded data. Unlike
// View it never fails because of the current selection.
func (d *Dashboard) Choices() (domain.Choices, error) {
	states, err := d.States()
	if err != nil {
		return domain.Choices{}, err
	}
	extent, err := d.Extent()
	if err != nil {
		return domain.Choices{}, err
	}
	return domain.Choices{States: slices.Clone(states), Extent: extent}, nil
}

// View computes every artifact of the current selection without going
// through the renderers.
func (d *Dashboard) View() (domain.View, error) {
	v := domain.View{Selection: d.Selection()}
	var err error
	if v.Map, err = d.choropleth(); err != nil {
		return v, err
	}
	if v.Table, err = d.table(); err != nil {
		return v, err
	}
	if v.Trend, err = d.series(); err != nil {
		return v, err
	}
	return v, nil
}

// Close disposes the graph.
func (d *Dashboard) Close() {
	d.graph.Dispose()
}

func (d *Dashboard) validate(sel domain.Selection) error {
	if !sel.Metric.Valid() {
		return fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidInput, sel.Metric)
	}
	if err := sel.Range.Validate(); err != nil {
		return err
	}
	if sel.State == "" {
		return fmt.Errorf("%w: empty state selection", domain.ErrInvalidInput)
	}
	if sel.State == domain.ShowAll {
		return nil
	}
	states, err := d.states.Read()
	if err != nil {
		return err
	}
	if !slices.Contains(states, sel.State) {
		return fmt.Errorf("%w: unknown state %q", domain.ErrInvalidInput, sel.State)
	}
	return nil
}

func (d *Dashboard) computeFiltered() ([]domain.Row, error) {
	metric := d.metric.Read()
	rng := d.dateRange.Read()
	var out []domain.Row
	for _, r := range d.raw.Read() {
		if r.Metric == metric && rng.Contains(r.Date) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no %s in %s", domain.ErrNoData, metric, rng)
	}
	return out, nil
}

// computeAdjusted reads the population table only while the adjustment is
// on, so population writes never invalidate the unadjusted branch.
func (d *Dashboard) computeAdjusted() ([]domain.Row, error) {
	rows, err := d.filtered.Read()
	if err != nil {
		return nil, err
	}
	if !d.adjust.Read() {
		return rows, nil
	}
	pop := d.population.Read()
	out := make([]domain.Row, len(rows))
	for i, r := range rows {
		p, ok := pop[r.State]
		if !ok || p <= 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingPopulation, r.State)
		}
		r.N = r.N * 100 / p
		out[i] = r
	}
	return out, nil
}

// computeSummary aggregates each state as its last value minus its first
// value inside the range; the series are cumulative.
func (d *Dashboard) computeSummary() (domain.Summary, error) {
	rows, err := d.adjusted.Read()
	if err != nil {
		return nil, err
	}
	first := make(map[string]float64)
	last := make(map[string]float64)
	for _, r := range rows {
		if _, seen := first[r.State]; !seen {
			first[r.State] = r.N
		}
		last[r.State] = r.N
	}
	out := make(domain.Summary, len(last))
	for state, v := range last {
		out[state] = v - first[state]
	}
	return out, nil
}

func (d *Dashboard) computeTrend() ([]domain.TrendPoint, error) {
	rows, err := d.adjusted.Read()
	if err != nil {
		return nil, err
	}
	state := d.state.Read()
	points := make([]domain.TrendPoint, 0, len(rows))
	for _, r := range rows {
		if state != domain.ShowAll && r.State != state {
			continue
		}
		points = append(points, domain.TrendPoint{Date: r.Date, State: r.State, Value: r.N})
	}
	return points, nil
}

func (d *Dashboard) choropleth() (domain.Choropleth, error) {
	s, err := d.summarized.Read()
	if err != nil {
		return domain.Choropleth{}, err
	}
	return domain.Choropleth{
		Metric:   d.metric.Read(),
		Adjusted: d.adjust.Read(),
		Values:   maps.Clone(s),
	}, nil
}

func (d *Dashboard) table() (domain.Table, error) {
	s, err := d.summarized.Read()
	if err != nil {
		return domain.Table{}, err
	}
	return domain.NewTable(d.metric.Read(), d.adjust.Read(), s), nil
}

func (d *Dashboard) series() (domain.TrendSeries, error) {
	points, err := d.trend.Read()
	if err != nil {
		return domain.TrendSeries{}, err
	}
	return domain.TrendSeries{
		Metric:   d.metric.Read(),
		Adjusted: d.adjust.Read(),
		State:    d.state.Read(),
		Points:   slices.Clone(points),
	}, nil
}
