/*
Package domain contains the data model of the dashboard.

It is kept pure and free of I/O: the types here describe what flows through
the reactive graph (raw series rows, the user's selection) and what comes
out of it (render artifacts for the map, the table and the chart).

# Key Entities

  - Row: one observation of the long-format series (state, date, metric, n).
  - PopulationRow: the population of one state, used for per-capita views.
  - Selection: the four dashboard inputs (metric, date range, population
    adjustment, state).
  - InputPatch: a partial Selection sent by a host after a widget changed.
  - Choropleth, Table, TrendSeries: the artifacts handed to renderers.
*/
package domain
