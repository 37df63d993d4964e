package testutil

import (
	"cmp"
	"fmt"
	"slices"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/calvinalkan/lurch/pkg/lurch"
	"github.com/calvinalkan/lurch/pkg/lurch/model"
)

// RunConfig configures a behavior test run.
type RunConfig struct {
	// Ordering and Limit are the options both sides are created with.
	Ordering lurch.Ordering
	Limit    int

	// MaxOps is the maximum number of operations to execute.
	MaxOps int

	// CompareStateEveryN runs full state comparison every N operations.
	// Set to 0 to only check at the end.
	CompareStateEveryN int

	// Check, when set, validates the real table's internal structure at
	// every state comparison.
	Check func(*Table) error
}

// DefaultRunConfig returns a balanced configuration for behavior tests.
func DefaultRunConfig(ordering lurch.Ordering) RunConfig {
	return RunConfig{
		Ordering:           ordering,
		MaxOps:             300,
		CompareStateEveryN: 10,
	}
}

// Harness holds one real table and one model driven in lockstep.
type Harness struct {
	TB    testing.TB
	Table *Table
	Model *Model
	check func(*Table) error
}

// NewHarness creates both sides with the same options. A small slab and
// hash size keep chains and slot reuse busy.
func NewHarness(tb testing.TB, cfg RunConfig) *Harness {
	tb.Helper()

	tbl, err := lurch.New(lurch.Options[string, int]{
		Ordering: cfg.Ordering,
		Limit:    cfg.Limit,
		HashSize: 7,
		SlabSize: 8,
	})
	if err != nil {
		tb.Fatalf("lurch.New: %v", err)
	}

	tb.Cleanup(func() { _ = tbl.Close() })

	m, err := model.New[string, int](cfg.Ordering, cfg.Limit)
	if err != nil {
		tb.Fatalf("model.New: %v", err)
	}

	return &Harness{TB: tb, Table: tbl, Model: m, check: cfg.Check}
}

// RunBehavior executes a deterministic stream of operations and compares
// every result and, periodically, the full state.
func RunBehavior(tb testing.TB, cfg RunConfig, gen *OpGenerator) {
	tb.Helper()

	if cfg.MaxOps <= 0 {
		tb.Fatalf("RunBehavior requires MaxOps > 0")
	}

	h := NewHarness(tb, cfg)
	history := make([]string, 0, cfg.MaxOps)

	for opIndex := 1; opIndex <= cfg.MaxOps && gen.HasMore(); opIndex++ {
		op := gen.NextOp()
		history = append(history, op.String())

		realRes := op.ApplyReal(h.Table)
		modelRes := op.ApplyModel(h.Model)

		if diff := gocmp.Diff(modelRes, realRes, gocmp.Comparer(sameError)); diff != "" {
			tb.Fatalf("result mismatch for %s (-model +real):\n%s\n%s", op, diff, FormatOps(history))
		}

		if cfg.CompareStateEveryN > 0 && opIndex%cfg.CompareStateEveryN == 0 {
			err := h.CompareState()
			if err != nil {
				tb.Fatalf("%v\n%s", err, FormatOps(history))
			}
		}
	}

	err := h.CompareState()
	if err != nil {
		tb.Fatalf("%v\n%s", err, FormatOps(history))
	}
}

func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a == b || a.Error() == b.Error()
}

// CompareState compares length, entries and (for ordered tables) entry
// order between the real table and the model.
func (h *Harness) CompareState() error {
	want := h.Model.Entries()

	var got []lurch.Entry[string, int]
	for k, v := range h.Table.Ordered() {
		got = append(got, lurch.Entry[string, int]{Key: k, Value: v})
	}

	if h.Table.Ordering() == lurch.None {
		byKey := func(a, b lurch.Entry[string, int]) int { return cmp.Compare(a.Key, b.Key) }
		slices.SortFunc(want, byKey)
		slices.SortFunc(got, byKey)
	}

	if h.Table.Len() != h.Model.Len() {
		return fmt.Errorf("len: model %d, real %d", h.Model.Len(), h.Table.Len())
	}

	if diff := gocmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		return fmt.Errorf("entries mismatch (-model +real):\n%s", diff)
	}

	if h.check != nil {
		err := h.check(h.Table)
		if err != nil {
			return fmt.Errorf("structure: %w", err)
		}
	}

	return nil
}
