/*
Package ports defines the driven ports (interfaces) of the dashboard.

These interfaces decouple the reactive core from the outside world: where the
series comes from, how artifacts get drawn and where session selections are
persisted.

# Key Interfaces

  - DataSource: fetches the case/death series and the population table.
  - MapRenderer, TableRenderer, ChartRenderer: the effects of the three sinks.
  - SelectionStore: persists the inputs of a session so it can be reopened.
  - DistributedLocker: serializes access to one session across replicas.
*/
package ports
