package ports

import "github.com/aretw0/covidash/pkg/domain"

// MapRenderer draws the choropleth.
type MapRenderer interface {
	RenderMap(m domain.Choropleth) error
}

// TableRenderer draws the summary table.
type TableRenderer interface {
	RenderTable(t domain.Table) error
}

// ChartRenderer draws the multi-series trend chart.
type ChartRenderer interface {
	RenderChart(s domain.TrendSeries) error
}

// Renderers bundles the effects of the dashboard sinks. A nil renderer
// turns its sink into a pure consumer: it still evaluates, it just draws
// nothing.
type Renderers struct {
	Map   MapRenderer
	Table TableRenderer
	Chart ChartRenderer
}

// RendererSet is implemented by adapters that can draw every artifact.
type RendererSet interface {
	MapRenderer
	TableRenderer
	ChartRenderer
}

// All uses r for every artifact.
func All(r RendererSet) Renderers {
	return Renderers{Map: r, Table: r, Chart: r}
}

// Join fans every artifact out to each bundle in order. The first failure
// stops the fan-out for that artifact.
func Join(sets ...Renderers) Renderers {
	var j joined
	for _, s := range sets {
		if s.Map != nil {
			j.maps = append(j.maps, s.Map)
		}
		if s.Table != nil {
			j.tables = append(j.tables, s.Table)
		}
		if s.Chart != nil {
			j.charts = append(j.charts, s.Chart)
		}
	}
	out := Renderers{}
	if len(j.maps) > 0 {
		out.Map = j
	}
	if len(j.tables) > 0 {
		out.Table = j
	}
	if len(j.charts) > 0 {
		out.Chart = j
	}
	return out
}

type joined struct {
	maps   []MapRenderer
	tables []TableRenderer
	charts []ChartRenderer
}

func (j joined) RenderMap(m domain.Choropleth) error {
	for _, r := range j.maps {
		if err := r.RenderMap(m); err != nil {
			return err
		}
	}
	return nil
}

func (j joined) RenderTable(t domain.Table) error {
	for _, r := range j.tables {
		if err := r.RenderTable(t); err != nil {
			return err
		}
	}
	return nil
}

func (j joined) RenderChart(s domain.TrendSeries) error {
	for _, r := range j.charts {
		if err := r.RenderChart(s); err != nil {
			return err
		}
	}
	return nil
}
