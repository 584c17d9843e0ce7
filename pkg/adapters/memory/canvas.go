package memory

import (
	"sync"

	"github.com/aretw0/covidash/pkg/domain"
)

// Canvas is a renderer that keeps the latest artifact of each kind. HTTP and
// MCP sessions draw on a Canvas and serve what it holds.
// Safe for concurrent use.
type Canvas struct {
	mu     sync.RWMutex
	m      *domain.Choropleth
	t      *domain.Table
	s      *domain.TrendSeries
	frames int
}

// NewCanvas creates an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{}
}

func (c *Canvas) RenderMap(m domain.Choropleth) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = &m
	c.frames++
	return nil
}

func (c *Canvas) RenderTable(t domain.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = &t
	c.frames++
	return nil
}

func (c *Canvas) RenderChart(s domain.TrendSeries) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s = &s
	c.frames++
	return nil
}

// Artifacts is what a canvas currently shows. Missing artifacts are nil.
type Artifacts struct {
	Map    *domain.Choropleth  `json:"map,omitempty"`
	Table  *domain.Table       `json:"table,omitempty"`
	Chart  *domain.TrendSeries `json:"chart,omitempty"`
	Frames int                 `json:"frames"`
}

// Snapshot returns the latest artifacts.
func (c *Canvas) Snapshot() Artifacts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Artifacts{Map: c.m, Table: c.t, Chart: c.s, Frames: c.frames}
}
