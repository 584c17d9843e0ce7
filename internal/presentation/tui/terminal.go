package tui

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/covidash/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	minBar       = 10
)

// gradient colors the choropleth from low to high.
var gradient = []string{"#fff7bc", "#fec44f", "#fe9929", "#d95f0e", "#993404"}

var sparks = []rune("▁▂▃▄▅▆▇█")

// Terminal draws the dashboard artifacts as text: the choropleth as colored
// bars, the table as markdown and the trend as one sparkline per state.
// Color and markdown styling are only used when the output is a terminal.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	profile  termenv.Profile
	markdown func(string) (string, error)
	width    int
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithWidth overrides the detected terminal width.
func WithWidth(w int) TerminalOption {
	return func(t *Terminal) {
		t.width = w
	}
}

// WithProfile overrides the detected color profile.
func WithProfile(p termenv.Profile) TerminalOption {
	return func(t *Terminal) {
		t.profile = p
	}
}

// WithWriter sends the output to w instead of the writer passed to
// NewTerminal, which then only decides the color profile and width.
func WithWriter(w io.Writer) TerminalOption {
	return func(t *Terminal) {
		t.out = w
	}
}

// NewTerminal creates a Terminal writing to w.
func NewTerminal(w io.Writer, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		out:      w,
		profile:  termenv.Ascii,
		markdown: plain,
		width:    defaultWidth,
	}
	if IsTerminal(w) {
		t.profile = termenv.NewOutput(w).Profile
		t.markdown = NewRenderer()
		if f, ok := w.(*os.File); ok {
			if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
				t.width = cols
			}
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (t *Terminal) RenderMap(m domain.Choropleth) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	states := domain.Summary(m.Values).States()
	pad := labelWidth(states)
	bar := max(t.width-pad-16, minBar)

	peak := 0.0
	for _, v := range m.Values {
		peak = math.Max(peak, v)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Map: %s\n", Title(m.Metric, m.Adjusted))
	for _, s := range states {
		v := m.Values[s]
		frac := 0.0
		if peak > 0 && v > 0 {
			frac = v / peak
		}
		n := int(math.Round(frac * float64(bar)))
		color := gradient[min(int(frac*float64(len(gradient))), len(gradient)-1)]
		cells := termenv.String(strings.Repeat("█", n)).Foreground(t.profile.Color(color))
		fmt.Fprintf(&sb, "%-*s %s%s %s\n", pad, s, cells, strings.Repeat(" ", bar-n), FormatValue(v, m.Adjusted))
	}
	_, err := io.WriteString(t.out, sb.String())
	return err
}

func (t *Terminal) RenderTable(tbl domain.Table) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	out, err := t.markdown(MarkdownTable(tbl))
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, err = io.WriteString(t.out, out)
	return err
}

func (t *Terminal) RenderChart(s domain.TrendSeries) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	series := s.ByState()
	states := make([]string, 0, len(series))
	for state := range series {
		states = append(states, state)
	}
	sort.Strings(states)
	pad := labelWidth(states)
	cols := max(t.width-pad-32, minBar)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Trend: %s, %s\n", Title(s.Metric, s.Adjusted), s.State)
	if len(states) == 0 {
		sb.WriteString("(no data)\n")
	}
	for _, state := range states {
		points := series[state]
		first, last := points[0], points[len(points)-1]
		fmt.Fprintf(&sb, "%-*s %s %s..%s\n", pad, state, Sparkline(points, cols),
			FormatValue(first.Value, s.Adjusted), FormatValue(last.Value, s.Adjusted))
	}
	_, err := io.WriteString(t.out, sb.String())
	return err
}

// Sparkline draws values in at most width cells; each cell shows the last
// point of its bucket.
func Sparkline(points []domain.TrendPoint, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}
	cells := min(width, len(points))
	values := make([]float64, cells)
	for i := range values {
		idx := (i+1)*len(points)/cells - 1
		values[i] = points[idx].Value
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	var sb strings.Builder
	for _, v := range values {
		level := 0
		if hi > lo {
			level = int((v - lo) / (hi - lo) * float64(len(sparks)-1))
		}
		sb.WriteRune(sparks[level])
	}
	return sb.String()
}

// MarkdownTable renders the summary table as markdown.
func MarkdownTable(tbl domain.Table) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "| # | State | %s |\n", Title(tbl.Metric, tbl.Adjusted))
	sb.WriteString("|---:|---|---:|\n")
	for i, r := range tbl.Rows {
		fmt.Fprintf(&sb, "| %d | %s | %s |\n", i+1, r.State, FormatValue(r.Value, tbl.Adjusted))
	}
	return sb.String()
}

// Title names a metric, marking per-capita values.
func Title(m domain.Metric, adjusted bool) string {
	if adjusted {
		return fmt.Sprintf("%s (%% of population)", m)
	}
	return string(m)
}

// FormatValue prints counts as integers and percentages with four decimals.
func FormatValue(v float64, adjusted bool) string {
	if adjusted {
		return fmt.Sprintf("%.4f%%", v)
	}
	return fmt.Sprintf("%.0f", v)
}

func labelWidth(labels []string) int {
	w := 0
	for _, l := range labels {
		w = max(w, len(l))
	}
	return w
}
