package domain

import (
	"fmt"
	"time"
)

// ShowAll is the state selection that keeps every state in the trend.
const ShowAll = "Show all"

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidInput, s)
	}
	return t, nil
}

// DateRange is an inclusive range of days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether the day of t lies inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(r.Start)) && !d.After(Day(r.End))
}

// Validate rejects empty and inverted ranges.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: date range needs both ends", ErrInvalidInput)
	}
	if Day(r.End).Before(Day(r.Start)) {
		return fmt.Errorf("%w: range ends (%s) before it starts (%s)",
			ErrInvalidInput, r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return nil
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// Selection holds the four dashboard inputs.
type Selection struct {
	Metric           Metric    `json:"metric"`
	Range            DateRange `json:"range"`
	PopulationAdjust bool      `json:"population_adjust"`
	State            string    `json:"state"`
}

// DefaultSelection shows cumulative cases for every state over the whole
// extent, without adjustment.
func DefaultSelection(extent DateRange) Selection {
	return Selection{
		Metric: MetricCases,
		Range:  extent,
		State:  ShowAll,
	}
}

// InputPatch is a partial Selection. Nil fields are left untouched.
type InputPatch struct {
	Metric           *Metric    `json:"metric,omitempty" mapstructure:"metric"`
	Start            *time.Time `json:"start,omitempty" mapstructure:"start"`
	End              *time.Time `json:"end,omitempty" mapstructure:"end"`
	PopulationAdjust *bool      `json:"population_adjust,omitempty" mapstructure:"population_adjust"`
	State            *string    `json:"state,omitempty" mapstructure:"state"`
}

// Empty reports whether the patch changes nothing.
func (p InputPatch) Empty() bool {
	return p.Metric == nil && p.Start == nil && p.End == nil &&
		p.PopulationAdjust == nil && p.State == nil
}

// ApplyTo returns sel with the patch fields applied.
func (p InputPatch) ApplyTo(sel Selection) Selection {
	if p.Metric != nil {
		sel.Metric = *p.Metric
	}
	if p.Start != nil {
		sel.Range.Start = Day(*p.Start)
	}
	if p.End != nil {
		sel.Range.End = Day(*p.End)
	}
	if p.PopulationAdjust != nil {
		sel.PopulationAdjust = *p.PopulationAdjust
	}
	if p.State != nil {
		sel.State = *p.State
	}
	return sel
}
