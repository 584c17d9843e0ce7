/*
Package covidash is an interactive COVID-19 dashboard built on a small
reactive engine.

A user filters a time series of cumulative cases and deaths by metric, date
range, population adjustment and state, and sees the result as a map, a
table and a trend chart. Each session owns one reactive graph: the inputs
are Sources, the filtered/adjusted/summarized tables are memoized Derived
values and the three artifacts are Sinks. Changing an input recomputes
exactly what depends on it, once, and redraws only the affected artifacts.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/covidash"
		"github.com/aretw0/covidash/pkg/adapters/csv"
		"github.com/aretw0/covidash/pkg/domain"
	)

	func main() {
		src := csv.New(
			csv.Locate(csv.DefaultSeriesURL, nil),
			csv.File("population.csv"),
		)
		eng, err := covidash.New(src)
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		id, err := eng.Start(ctx, "")
		if err != nil {
			log.Fatal(err)
		}

		adjust := true
		if _, err := eng.Apply(ctx, id, domain.InputPatch{PopulationAdjust: &adjust}); err != nil {
			log.Fatal(err)
		}
		view, _ := eng.View(ctx, id)
		fmt.Println(view.Table.Rows[0])
	}

# Architecture

The reactive core lives in pkg/reactive and knows nothing about COVID data.
pkg/dashboard wires the session graph, pkg/session serializes access to it
and persists the inputs, and the adapters under pkg/adapters provide data
sources (csv, memory), selection stores (memory, file, redis) and the HTTP
and MCP surfaces.
*/
package covidash
