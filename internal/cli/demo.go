package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/calvinalkan/lurch/pkg/lurch"
	flag "github.com/spf13/pflag"
)

// DemoCmd returns the demo command.
func DemoCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("demo", flag.ContinueOnError),
		Usage: "demo",
		Short: "Walk through eviction, access order, compare-update and concurrency",
		Long: "Run four short scenarios against fresh tables and print what happens:\n" +
			"insertion order with a limit, access order, compare-and-update, and\n" +
			"concurrent inserts from several goroutines.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			for _, run := range []func(*IO) error{
				demoInsertionLimit,
				demoAccessOrder,
				demoCompareUpdate,
				demoConcurrentInsert,
			} {
				err := run(o)
				if err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func demoInsertionLimit(o *IO) error {
	o.Println("== insertion order, limit 3")

	t, err := lurch.New(lurch.Options[string, int]{Ordering: lurch.Insertion, Limit: 3})
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	for i, k := range []string{"A", "B", "C", "D"} {
		err = t.Set(k, i)
		if err != nil {
			return err
		}
	}

	o.Printf("contents: %s\n", orderedKeys(t))

	e, _, err := t.Peek()
	if err != nil {
		return err
	}

	o.Printf("peek: %s\n", e.Key)
	o.Println()

	return nil
}

func demoAccessOrder(o *IO) error {
	o.Println("== access order")

	t, err := lurch.New(lurch.Options[string, int]{Ordering: lurch.Access})
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	for i, k := range []string{"A", "B", "C"} {
		err = t.Set(k, i)
		if err != nil {
			return err
		}
	}

	o.Printf("before get: %s\n", orderedKeys(t))

	_, _, err = t.Get("A")
	if err != nil {
		return err
	}

	o.Printf("after get A: %s\n", orderedKeys(t))
	o.Println()

	return nil
}

func demoCompareUpdate(o *IO) error {
	o.Println("== compare and update")

	t, err := lurch.New(lurch.Options[string, string]{})
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	err = t.Set("k", "one")
	if err != nil {
		return err
	}

	for _, try := range []struct{ value, expected string }{
		{"two", "zero"},
		{"two", "one"},
	} {
		ok, err := t.TryUpdateCompare("k", try.value, try.expected)
		if err != nil {
			return err
		}

		v, _, err := t.Get("k")
		if err != nil {
			return err
		}

		o.Printf("update to %q expecting %q: %t (value %q)\n", try.value, try.expected, ok, v)
	}

	o.Println()

	return nil
}

func demoConcurrentInsert(o *IO) error {
	const (
		workers = 8
		keys    = 10_000
	)

	o.Printf("== %d goroutines inserting %d keys\n", workers, keys)

	t, err := lurch.New(lurch.Options[int, int]{})
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	var (
		wg   sync.WaitGroup
		errs = make([]error, workers)
	)

	for w := range workers {
		wg.Go(func() {
			for k := w; k < keys; k += workers {
				if err := t.Set(k, k); err != nil {
					errs[w] = err

					return
				}
			}
		})
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	missing := 0

	for k := range keys {
		ok, err := t.Contains(k)
		if err != nil {
			return err
		}

		if !ok {
			missing++
		}
	}

	o.Printf("len: %d\n", t.Len())
	o.Printf("missing: %d\n", missing)

	if missing > 0 || t.Len() != keys {
		return fmt.Errorf("concurrent insert lost entries: len %d, missing %d", t.Len(), missing)
	}

	return nil
}

func orderedKeys[V any](t *lurch.Table[string, V]) string {
	var keys []string
	for k := range t.Ordered() {
		keys = append(keys, k)
	}

	return "[" + strings.Join(keys, " ") + "]"
}
