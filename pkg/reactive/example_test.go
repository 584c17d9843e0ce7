package reactive_test

import (
	"fmt"

	"github.com/aretw0/covidash/pkg/reactive"
)

func Example() {
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

	_ = g.Flush()
	_ = adjust.Write(true)
	// Output:
	// 40
	// 4
}

func ExampleGraph_Batch() {
	g := reactive.New()
	x := reactive.NewSource(g, "x", 1)
	y := reactive.NewSource(g, "y", 10)
	reactive.NewSink(g, "sum", func() (int, error) {
		return x.Read() + y.Read(), nil
	}, func(v int) error {
		fmt.Println("sum", v)
		return nil
	})
	_ = g.Flush()

	_ = g.Batch(func() error {
		if err := x.Write(2); err != nil {
			return err
		}
		return y.Write(20)
	})
	// Output:
	// sum 11
	// sum 22
}
