/*
Package dashboard wires the COVID-19 dashboard onto the reactive engine.

Each session owns one Dashboard. Its graph looks like this:

	metric ─────────┐
	date_range ─────┼─> covid_filtered ─> covid_adjusted ─┬─> covid_summarized ─┬─> map
	covid_raw ──────┘                        ^            │                     └─> table
	population_adjust ───────────────────────┤            └─> covid_trend ───────> chart
	population ·····(only while adjusting)···┘                    ^
	state_select ──────────────────────────────────────────────────┘

covid_states and covid_extent hang off covid_raw and back input validation
and the default selection.

Changing the state selection only re-renders the chart: the map and the
table never read it.
*/
package dashboard
