package cli

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/bytedance/gopkg/lang/fastrand"
	"github.com/calvinalkan/lurch/internal/config"
	flag "github.com/spf13/pflag"
)

// opsBatch is how many ops a worker runs between counter updates.
const opsBatch = 256

// BenchCmd returns the bench command.
func BenchCmd(cfg *config.Config) *Command {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.IntP("workers", "w", runtime.GOMAXPROCS(0), "Concurrent workers")
	fs.IntP("ops", "n", 100_000, "Operations per worker")
	fs.IntP("keys", "k", 10_000, "Distinct keys")
	fs.Int("reads", 80, "Percentage of operations that are reads")
	fs.Duration("interval", 250*time.Millisecond, "Reporting interval")

	return &Command{
		Flags: fs,
		Usage: "bench [flags]",
		Short: "Run a concurrent get/set benchmark",
		Long: "Run workers doing a random mix of Get and Set against a table built from\n" +
			"the effective configuration. Throughput is reported per interval together\n" +
			"with an exponentially weighted moving average.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			workers, _ := fs.GetInt("workers")
			ops, _ := fs.GetInt("ops")
			keys, _ := fs.GetInt("keys")
			reads, _ := fs.GetInt("reads")
			interval, _ := fs.GetDuration("interval")

			return execBench(ctx, o, cfg, benchParams{
				workers:  workers,
				ops:      ops,
				keys:     keys,
				reads:    reads,
				interval: interval,
			})
		},
	}
}

type benchParams struct {
	workers  int
	ops      int
	keys     int
	reads    int
	interval time.Duration
}

func (p benchParams) validate() error {
	switch {
	case p.workers < 1:
		return errors.New("--workers must be >= 1")
	case p.ops < 0:
		return errors.New("--ops must be >= 0")
	case p.keys < 1:
		return errors.New("--keys must be >= 1")
	case p.reads < 0 || p.reads > 100:
		return errors.New("--reads must be between 0 and 100")
	case p.interval <= 0:
		return errors.New("--interval must be positive")
	}

	return nil
}

func execBench(ctx context.Context, o *IO, cfg *config.Config, p benchParams) error {
	err := p.validate()
	if err != nil {
		return err
	}

	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	keys := make([]string, p.keys)
	for i := range keys {
		keys[i] = "key-" + strconv.Itoa(i)
	}

	var (
		done     atomic.Int64
		firstErr error
		errOnce  sync.Once
		wg       sync.WaitGroup
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()

	for range p.workers {
		wg.Go(func() {
			table := sess.table

			err := benchWorker(ctx, p.ops, &done, func(i int) error {
				k := keys[fastrand.Intn(len(keys))]

				if fastrand.Intn(100) < p.reads {
					_, _, err := table.Get(k)

					return err
				}

				return table.Set(k, strconv.Itoa(i))
			})
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				cancel()
			}
		})
	}

	finished := make(chan struct{})

	go func() {
		wg.Wait()
		close(finished)
	}()

	avg := ewma.NewMovingAverage()
	ticker := time.NewTicker(p.interval)

	defer ticker.Stop()

	var last int64

	lastAt := start

	for running := true; running; {
		select {
		case <-finished:
			running = false
		case now := <-ticker.C:
			cur := done.Load()
			rate := float64(cur-last) / now.Sub(lastAt).Seconds()
			avg.Add(rate)

			o.Printf("t=%-8s ops=%-10d ops/s=%-12.0f ewma=%.0f\n",
				now.Sub(start).Round(time.Millisecond), cur, rate, avg.Value())

			last, lastAt = cur, now
		}
	}

	if firstErr != nil {
		return fmt.Errorf("bench: %w", firstErr)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("bench: %w", ctx.Err())
	}

	elapsed := time.Since(start)
	total := int64(p.workers) * int64(p.ops)

	o.Printf("workers=%d\n", p.workers)
	o.Printf("total_ops=%d\n", total)
	o.Printf("elapsed=%s\n", elapsed.Round(time.Microsecond))
	o.Printf("ops_per_sec=%.0f\n", float64(total)/elapsed.Seconds())
	o.Printf("ewma_ops_per_sec=%.0f\n", avg.Value())
	o.Printf("len=%d\n", sess.table.Len())

	return nil
}

// benchWorker runs op up to ops times, stopping at the first error or when
// ctx is done. Completed ops are added to done in batches of opsBatch, and
// the remainder once the loop ends.
func benchWorker(ctx context.Context, ops int, done *atomic.Int64, op func(i int) error) error {
	n := 0

	defer func() { done.Add(int64(n % opsBatch)) }()

	for ; n < ops && ctx.Err() == nil; n++ {
		err := op(n)
		if err != nil {
			return err
		}

		if (n+1)%opsBatch == 0 {
			done.Add(opsBatch)
		}
	}

	return nil
}
