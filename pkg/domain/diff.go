package domain

// SelectionDiff represents the inputs that changed between two selections.
// It is designed to be serialized to JSON for partial updates on the client.
type SelectionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	Metric           *Metric    `json:"metric,omitempty"`
	Range            *DateRange `json:"range,omitempty"`
	PopulationAdjust *bool      `json:"population_adjust,omitempty"`
	State            *string    `json:"state,omitempty"`
}

// Diff calculates the difference between oldSel and newSel.
// If oldSel is nil, every field of newSel is reported (initial load).
func Diff(sessionID string, oldSel *Selection, newSel Selection) *SelectionDiff {
	diff := &SelectionDiff{SessionID: sessionID}

	if oldSel == nil || oldSel.Metric != newSel.Metric {
		diff.Metric = &newSel.Metric
	}
	if oldSel == nil || !sameRange(oldSel.Range, newSel.Range) {
		diff.Range = &newSel.Range
	}
	if oldSel == nil || oldSel.PopulationAdjust != newSel.PopulationAdjust {
		diff.PopulationAdjust = &newSel.PopulationAdjust
	}
	if oldSel == nil || oldSel.State != newSel.State {
		diff.State = &newSel.State
	}
	return diff
}

func sameRange(a, b DateRange) bool {
	return Day(a.Start).Equal(Day(b.Start)) && Day(a.End).Equal(Day(b.End))
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SelectionDiff) IsEmpty() bool {
	return d.Metric == nil &&
		d.Range == nil &&
		d.PopulationAdjust == nil &&
		d.State == nil
}
