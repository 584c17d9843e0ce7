package reactive_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/covidash/pkg/reactive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerived_Memoization(t *testing.T) {
	g := reactive.New()
	s := reactive.NewSource(g, "s", 3)
	runs := 0
	d := reactive.NewDerived(g, "d", func() (int, error) {
		runs++
		return s.Read() * 2, nil
	})

	v, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, 6, v)

	v, err = d.Read()
	require.NoError(t, err)
	assert.Equal(t, 6, v)
	assert.Equal(t, 1, runs, "second read must be a cache hit")

	require.NoError(t, s.Write(4))
	v, err = d.Read()
	require.NoError(t, err)
	assert.Equal(t, 8, v)
	assert.Equal(t, 2, runs)
}

func TestGraph_DiamondRunsEachNodeOnce(t *testing.T) {
	g := reactive.New()
	s := reactive.NewSource(g, "s", 1)

	var aRuns, bRuns, cRuns int
	a := reactive.NewDerived(g, "a", func() (int, error) {
		aRuns++
		return s.Read() * 2, nil
	})
	b := reactive.NewDerived(g, "b", func() (int, error) {
		bRuns++
		return s.Read() + 1, nil
	})

	var seen []int
	reactive.NewSink(g, "c", func() (int, error) {
		cRuns++
		av, err := a.Read()
		if err != nil {
			return 0, err
		}
		bv, err := b.Read()
		if err != nil {
			return 0, err
		}
		return av + bv, nil
	}, func(v int) error {
		seen = append(seen, v)
		return nil
	})

	require.NoError(t, g.Flush())
	assert.Equal(t, []int{1, 1, 1}, []int{aRuns, bRuns, cRuns})

	require.NoError(t, s.Write(5))
	assert.Equal(t, []int{2, 2, 2}, []int{aRuns, bRuns, cRuns})
	assert.Equal(t, []int{4, 16}, seen)
	require.NoError(t, g.Verify())
}

func TestGraph_SharedDerivedAcrossSinks(t *testing.T) {
	g := reactive.New()
	s := reactive.NewSource(g, "s", 2)
	runs := 0
	sq := reactive.NewDerived(g, "square", func() (int, error) {
		runs++
		v := s.Read()
		return v * v, nil
	})
	var left, right []int
	reactive.NewSink(g, "left", sq.Read, func(v int) error {
		left = append(left, v)
		return nil
	})
	reactive.NewSink(g, "right", sq.Read, func(v int) error {
		right = append(right, v)
		return nil
	})

	require.NoError(t, g.Flush())
	require.NoError(t, s.Write(3))

	assert.Equal(t, 2, runs)
	assert.Equal(t, []int{4, 9}, left)
	assert.Equal(t, []int{4, 9}, right)
}

func TestGraph_GlitchFreedom(t *testing.T) {
	g := reactive.New()
	x := reactive.NewSource(g, "x", 1)
	y := reactive.NewSource(g, "y", 10)
	runs := 0
	sum := reactive.NewDerived(g, "sum", func() (int, error) {
		runs++
		return x.Read() + y.Read(), nil
	})
	var observed []int
	reactive.NewSink(g, "view", sum.Read, func(v int) error {
		observed = append(observed, v)
		return nil
	})
	require.NoError(t, g.Flush())

	err := g.Batch(func() error {
		if err := x.Write(2); err != nil {
			return err
		}
		// Staged writes stay invisible until the batch commits.
		assert.Equal(t, 1, x.Read())
		v, err := sum.Read()
		require.NoError(t, err)
		assert.Equal(t, 11, v)
		return y.Write(20)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{11, 22}, observed, "old-x/new-y or new-x/old-y must never be rendered")
	assert.Equal(t, 2, runs)
}

func TestGraph_DynamicDependencies(t *testing.T) {
	g := reactive.New()
	toggle := reactive.NewSource(g, "toggle", true)
	p := reactive.NewSource(g, "p", 100.0)
	n := reactive.NewSource(g, "n", 10.0)

	runs := 0
	d := reactive.NewDerived(g, "d", func() (float64, error) {
		runs++
		v := n.Read()
		if toggle.Read() {
			return v * 100 / p.Read(), nil
		}
		return v, nil
	})
	reactive.NewSink(g, "out", d.Read, nil)

	require.NoError(t, g.Flush())
	info, _ := g.Lookup("p")
	assert.Equal(t, []string{"d"}, info.Dependents)

	require.NoError(t, toggle.Write(false))
	assert.Equal(t, 2, runs)
	info, _ = g.Lookup("p")
	assert.Empty(t, info.Dependents, "abandoned branch must drop its edge")
	info, _ = g.Lookup("d")
	assert.Equal(t, []string{"n", "toggle"}, info.Dependencies)

	require.NoError(t, p.Write(200))
	assert.Equal(t, 2, runs, "write to an unread source must not recompute")
	assert.False(t, d.Dirty())

	require.NoError(t, toggle.Write(true))
	assert.Equal(t, 3, runs)
	v, err := d.Read()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, v, 1e-9)
	info, _ = g.Lookup("p")
	assert.Equal(t, []string{"d"}, info.Dependents)
	require.NoError(t, g.Verify())
}

func TestDerived_ErrorRetainsCache(t *testing.T) {
	errBoom := errors.New("boom")
	g := reactive.New()
	s := reactive.NewSource(g, "s", 1)
	fail := false
	d := reactive.NewDerived(g, "d", func() (int, error) {
		v := s.Read()
		if fail {
			return 0, errBoom
		}
		return v * 10, nil
	})

	v, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, uint64(1), d.Epoch())

	fail = true
	require.NoError(t, s.Write(2))
	_, err = d.Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, reactive.ErrEvaluation)
	var evalErr *reactive.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "d", evalErr.Node)

	cached, ok := d.Peek()
	assert.True(t, ok)
	assert.Equal(t, 10, cached, "cache must hold the pre-error value")
	assert.True(t, d.Dirty())
	assert.Equal(t, uint64(1), d.Epoch())

	fail = false
	v, err = d.Read()
	require.NoError(t, err)
	assert.Equal(t, 20, v)
	assert.False(t, d.Dirty())
	assert.Equal(t, uint64(2), d.Epoch())
}

func TestDerived_SwallowedFailureKeepsReaderDirty(t *testing.T) {
	g := reactive.New()
	s := reactive.NewSource(g, "s", 0)
	inner := reactive.NewDerived(g, "inner", func() (int, error) {
		v := s.Read()
		if v == 0 {
			return 0, errors.New("zero")
		}
		return v, nil
	})
	outer := reactive.NewDerived(g, "outer", func() (int, error) {
		v, err := inner.Read()
		if err != nil {
			return -1, nil
		}
		return v, nil
	})

	v, err := outer.Read()
	require.NoError(t, err)
	assert.Equal(t, -1, v)
	assert.True(t, outer.Dirty(), "reader of a failed node cannot be trusted")

	require.NoError(t, s.Write(7))
	v, err = outer.Read()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.False(t, outer.Dirty())
	require.NoError(t, g.Verify())
}

func TestSink_FailureRetriesOnNextFlush(t *testing.T) {
	var reported []string
	g := reactive.New(reactive.WithErrorReporter(func(sink string, err error) {
		reported = append(reported, sink)
	}))
	s := reactive.NewSource(g, "s", "a")

	failures := 1
	var renders, others []string
	view := reactive.NewSink(g, "view", func() (string, error) {
		return s.Read(), nil
	}, func(v string) error {
		if failures > 0 {
			failures--
			return errors.New("renderer down")
		}
		renders = append(renders, v)
		return nil
	})
	reactive.NewSink(g, "other", func() (string, error) {
		return s.Read(), nil
	}, func(v string) error {
		others = append(others, v)
		return nil
	})

	err := g.Flush()
	require.Error(t, err)
	var evalErr *reactive.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.True(t, evalErr.Effect)
	assert.Equal(t, "view", evalErr.Node)
	assert.True(t, view.Dirty())
	assert.Equal(t, []string{"view"}, reported)
	assert.Equal(t, []string{"a"}, others, "a failing sink must not block the others")

	require.NoError(t, g.Flush())
	assert.Equal(t, []string{"a"}, renders)
	assert.False(t, view.Dirty())
	assert.Equal(t, []string{"a"}, others, "clean sinks are not flushed again")
}

func TestSource_WriteAlwaysPropagates(t *testing.T) {
	g := reactive.New()
	s := reactive.NewSource(g, "s", 1)
	renders := 0
	reactive.NewSink(g, "view", func() (int, error) {
		return s.Read(), nil
	}, func(int) error {
		renders++
		return nil
	})
	require.NoError(t, g.Flush())

	require.NoError(t, s.Write(1))
	assert.Equal(t, 2, renders, "identical value still re-renders")
	assert.Equal(t, uint64(1), s.Epoch())
}

func TestGraph_CycleDetected(t *testing.T) {
	g := reactive.New()
	var a *reactive.Derived[int]
	b := reactive.NewDerived(g, "b", func() (int, error) {
		return a.Read()
	})
	a = reactive.NewDerived(g, "a", func() (int, error) {
		return b.Read()
	})

	_, err := a.Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, reactive.ErrCycle)
	var cycleErr *reactive.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b", "a"}, cycleErr.Path)

	assert.True(t, a.Dirty())
	assert.True(t, b.Dirty())
	require.NoError(t, g.Verify())
}

func TestGraph_SwallowedCycleStillFails(t *testing.T) {
	var logs bytes.Buffer
	g := reactive.New(reactive.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	var a *reactive.Derived[int]
	b := reactive.NewDerived(g, "b", func() (int, error) {
		if _, err := a.Read(); err != nil {
			return 0, nil
		}
		return 1, nil
	})
	a = reactive.NewDerived(g, "a", func() (int, error) {
		v, err := b.Read()
		if err != nil {
			return -1, nil
		}
		return v + 1, nil
	})

	_, err := a.Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, reactive.ErrCycle)
	_, cached := a.Peek()
	assert.False(t, cached, "a fallback value must not be cached")

	assert.True(t, a.Dirty())
	assert.True(t, b.Dirty())
	info, ok := g.Lookup("b")
	require.True(t, ok)
	assert.Empty(t, info.Dependencies)
	require.NoError(t, g.Verify())
	assert.Contains(t, logs.String(), "level=ERROR msg=\"Dependency cycle\"")

	_, err = b.Read()
	assert.ErrorIs(t, err, reactive.ErrCycle, "retries keep failing")
}

func TestSource_WriteDuringEvaluationRejected(t *testing.T) {
	g := reactive.New()
	a := reactive.NewSource(g, "a", 1)
	b := reactive.NewSource(g, "b", 0)
	d := reactive.NewDerived(g, "d", func() (int, error) {
		if err := b.Write(5); err != nil {
			return 0, err
		}
		return a.Read(), nil
	})

	_, err := d.Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, reactive.ErrStaleRead)
	var violation *reactive.StaleReadViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "b", violation.Target)
	assert.Equal(t, "d", violation.Active)
	assert.Equal(t, 0, b.Peek())
	assert.Equal(t, uint64(0), b.Epoch())
}

func TestSink_WriteFromEffectRejected(t *testing.T) {
	g := reactive.New()
	a := reactive.NewSource(g, "a", 1)
	b := reactive.NewSource(g, "b", 0)
	reactive.NewSink(g, "view", func() (int, error) {
		return a.Read(), nil
	}, func(v int) error {
		return b.Write(v)
	})

	err := g.Flush()
	require.Error(t, err)
	var violation *reactive.StaleReadViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "view", violation.Active)
	assert.Equal(t, 0, b.Peek())
}

func TestGraph_BatchFailureDiscardsWrites(t *testing.T) {
	g := reactive.New()
	s := reactive.NewSource(g, "s", 1)
	renders := 0
	reactive.NewSink(g, "view", func() (int, error) {
		return s.Read(), nil
	}, func(int) error {
		renders++
		return nil
	})
	require.NoError(t, g.Flush())

	err := g.Batch(func() error {
		_ = s.Write(9)
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Equal(t, 1, s.Peek())
	assert.Equal(t, uint64(0), s.Epoch())
	assert.Equal(t, 1, renders)

	// Nested batches join the outer one.
	err = g.Batch(func() error {
		return g.Batch(func() error {
			return s.Write(2)
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Peek())
	assert.Equal(t, 2, renders)
}

func TestGraph_Hooks(t *testing.T) {
	var evals, marked, flushes int
	counting := reactive.Hooks{
		OnEvaluate: func(e *reactive.EvalEvent) {
			evals++
		},
		OnInvalidate: func(e *reactive.InvalidateEvent) {
			marked += e.Marked
		},
	}
	flushing := reactive.Hooks{
		OnFlush: func(e *reactive.FlushEvent) {
			flushes++
		},
	}
	g := reactive.New(reactive.WithHooks(reactive.ComposeHooks(counting, flushing)))
	s := reactive.NewSource(g, "s", 1)
	a := reactive.NewDerived(g, "a", func() (int, error) { return s.Read(), nil })
	b := reactive.NewDerived(g, "b", func() (int, error) { return s.Read(), nil })
	reactive.NewSink(g, "c", func() (int, error) {
		av, _ := a.Read()
		bv, _ := b.Read()
		return av + bv, nil
	}, nil)

	require.NoError(t, g.Flush())
	assert.Equal(t, 3, evals)

	require.NoError(t, s.Write(2))
	assert.Equal(t, 3, marked, "c is reachable twice but marked once")
	assert.Equal(t, 6, evals)
	assert.Equal(t, 2, flushes)
}

func TestGraph_Dispose(t *testing.T) {
	g := reactive.New()
	s := reactive.NewSource(g, "s", 1)
	d := reactive.NewDerived(g, "d", func() (int, error) { return s.Read(), nil })
	_, err := d.Read()
	require.NoError(t, err)

	g.Dispose()
	assert.True(t, g.Disposed())
	assert.ErrorIs(t, s.Write(2), reactive.ErrDisposed)
	_, err = d.Read()
	assert.ErrorIs(t, err, reactive.ErrDisposed)
	assert.ErrorIs(t, g.Flush(), reactive.ErrDisposed)
}

func TestGraph_DuplicateNamePanics(t *testing.T) {
	g := reactive.New()
	reactive.NewSource(g, "s", 1)
	assert.Panics(t, func() {
		reactive.NewSource(g, "s", 2)
	})
}

func TestGraph_Nodes(t *testing.T) {
	g := reactive.New(reactive.WithName("session-1"))
	s := reactive.NewSource(g, "s", 1)
	d := reactive.NewDerived(g, "d", func() (int, error) { return s.Read(), nil })
	reactive.NewSink(g, "view", d.Read, nil)

	nodes := g.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, reactive.KindSource, nodes[0].Kind)
	assert.True(t, nodes[1].Dirty)
	assert.True(t, nodes[2].Dirty)

	require.NoError(t, g.Flush())
	nodes = g.Nodes()
	assert.False(t, nodes[1].Dirty)
	assert.Equal(t, []string{"s"}, nodes[1].Dependencies)
	assert.Equal(t, []string{"view"}, nodes[1].Dependents)
	assert.Equal(t, "session-1", g.Name())
}
