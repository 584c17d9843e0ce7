/*
Package reactive implements the push-pull computation graph behind every
dashboard session.

A graph holds three kinds of nodes:

  - Source: a mutable leaf written by the host (an input widget changed).
  - Derived: a memoized value whose function reads other nodes. It is only
    recomputed when pulled after being marked dirty.
  - Sink: a terminal node flushed eagerly after every batch; its value is
    handed to an effect such as a renderer.

# Dependency tracking

Dependencies are never declared. While a Derived or Sink function runs, its
frame sits on top of the graph's evaluation stack and every Read on another
node is recorded there together with the epoch observed. When the function
returns successfully the recorded set replaces the previous one wholesale,
so a branch that stops reading a node also stops being invalidated by it.

	g := reactive.New()
	adjust := reactive.NewSource(g, "adjust", false)
	pop := reactive.NewSource(g, "population", 1000.0)
	cases := reactive.NewSource(g, "cases", 40.0)

	value := reactive.NewDerived(g, "value", func() (float64, error) {
		n := cases.Read()
		if adjust.Read() {
			return n * 100 / pop.Read(), nil
		}
		return n, nil
	})

	reactive.NewSink(g, "render", value.Read, func(v float64) error {
		fmt.Println(v)
		return nil
	})

	_ = g.Flush()          // prints 40
	_ = adjust.Write(true) // prints 4

# Batching

Writes performed inside Batch are staged and applied together when the
batch commits; invalidation then walks the current edges once and the dirty
sinks are flushed. A sink therefore sees either every write of a batch or
none of them.

# Errors

A failing evaluation returns *EvaluationError, keeps the previous cache and
leaves the node dirty for the next pull. Reading a node that is already on
the evaluation stack returns *CycleError. Writing while a node evaluates or
a sink renders returns *StaleReadViolation.

# Concurrency

A Graph is deliberately single-threaded and holds no locks. Callers that
share a session between goroutines must serialize access (see pkg/session).
*/
package reactive
