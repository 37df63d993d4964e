// Package testutil runs generated operation sequences against a real
// lurch.Table and the reference model and reports the first divergence.
package testutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/lurch/pkg/lurch"
	"github.com/calvinalkan/lurch/pkg/lurch/model"
)

// Table and Model are the concrete types the harness drives.
type (
	Table = lurch.Table[string, int]
	Model = model.TableModel[string, int]
)

// Result is the observable outcome of one op. Err is reduced to the
// lurch sentinel it wraps so wrapped messages do not cause false
// mismatches.
type Result struct {
	OK    bool
	Key   string
	Value int
	Err   error
}

var sentinels = []error{
	lurch.ErrInvalidInput,
	lurch.ErrInvalidLimit,
	lurch.ErrClosed,
	lurch.ErrNotFound,
	lurch.ErrKeyExists,
	lurch.ErrUnordered,
	lurch.ErrFull,
}

func sentinel(err error) error {
	if err == nil {
		return nil
	}

	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s
		}
	}

	return err
}

func (r Result) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "ok=%t", r.OK)

	if r.Key != "" {
		fmt.Fprintf(&b, " key=%s", r.Key)
	}

	fmt.Fprintf(&b, " value=%d", r.Value)

	if r.Err != nil {
		fmt.Fprintf(&b, " err=%v", r.Err)
	}

	return b.String()
}

// Op is one generated operation.
type Op interface {
	fmt.Stringer
	ApplyReal(t *Table) Result
	ApplyModel(m *Model) Result
}

func increment(_ string, cur int) int { return cur + 1 }

type OpGet struct{ Key string }

func (o OpGet) String() string { return "get " + o.Key }

func (o OpGet) ApplyReal(t *Table) Result {
	v, ok, err := t.Get(o.Key)

	return Result{OK: ok, Value: v, Err: sentinel(err)}
}

func (o OpGet) ApplyModel(m *Model) Result {
	v, ok, err := m.Get(o.Key)

	return Result{OK: ok, Value: v, Err: err}
}

type OpSet struct {
	Key   string
	Value int
}

func (o OpSet) String() string { return fmt.Sprintf("set %s=%d", o.Key, o.Value) }

func (o OpSet) ApplyReal(t *Table) Result {
	err := t.Set(o.Key, o.Value)

	return Result{OK: err == nil, Err: sentinel(err)}
}

func (o OpSet) ApplyModel(m *Model) Result {
	err := m.Set(o.Key, o.Value)

	return Result{OK: err == nil, Err: err}
}

type OpTryAdd struct {
	Key   string
	Value int
}

func (o OpTryAdd) String() string { return fmt.Sprintf("try-add %s=%d", o.Key, o.Value) }

func (o OpTryAdd) ApplyReal(t *Table) Result {
	ok, err := t.TryAdd(o.Key, o.Value)

	return Result{OK: ok, Err: sentinel(err)}
}

func (o OpTryAdd) ApplyModel(m *Model) Result {
	ok, err := m.TryAdd(o.Key, o.Value)

	return Result{OK: ok, Err: err}
}

type OpGetOrAdd struct {
	Key   string
	Value int
}

func (o OpGetOrAdd) String() string { return fmt.Sprintf("get-or-add %s=%d", o.Key, o.Value) }

func (o OpGetOrAdd) ApplyReal(t *Table) Result {
	v, err := t.GetOrAdd(o.Key, o.Value)

	return Result{OK: err == nil, Value: v, Err: sentinel(err)}
}

func (o OpGetOrAdd) ApplyModel(m *Model) Result {
	v, err := m.GetOrAdd(o.Key, o.Value)

	return Result{OK: err == nil, Value: v, Err: err}
}

type OpAddOrIncrement struct {
	Key   string
	Value int
}

func (o OpAddOrIncrement) String() string { return fmt.Sprintf("add-or-inc %s=%d", o.Key, o.Value) }

func (o OpAddOrIncrement) ApplyReal(t *Table) Result {
	v, err := t.AddOrUpdate(o.Key, o.Value, increment)

	return Result{OK: err == nil, Value: v, Err: sentinel(err)}
}

func (o OpAddOrIncrement) ApplyModel(m *Model) Result {
	v, err := m.AddOrUpdate(o.Key, o.Value, increment)

	return Result{OK: err == nil, Value: v, Err: err}
}

type OpTryUpdate struct {
	Key   string
	Value int
}

func (o OpTryUpdate) String() string { return fmt.Sprintf("try-update %s=%d", o.Key, o.Value) }

func (o OpTryUpdate) ApplyReal(t *Table) Result {
	ok, err := t.TryUpdate(o.Key, o.Value)

	return Result{OK: ok, Err: sentinel(err)}
}

func (o OpTryUpdate) ApplyModel(m *Model) Result {
	ok, err := m.TryUpdate(o.Key, o.Value)

	return Result{OK: ok, Err: err}
}

type OpTryUpdateCompare struct {
	Key      string
	Value    int
	Expected int
}

func (o OpTryUpdateCompare) String() string {
	return fmt.Sprintf("try-update-cmp %s=%d if %d", o.Key, o.Value, o.Expected)
}

func (o OpTryUpdateCompare) ApplyReal(t *Table) Result {
	ok, err := t.TryUpdateCompare(o.Key, o.Value, o.Expected)

	return Result{OK: ok, Err: sentinel(err)}
}

func (o OpTryUpdateCompare) ApplyModel(m *Model) Result {
	ok, err := m.TryUpdateCompare(o.Key, o.Value, o.Expected)

	return Result{OK: ok, Err: err}
}

type OpTryRemove struct{ Key string }

func (o OpTryRemove) String() string { return "try-remove " + o.Key }

func (o OpTryRemove) ApplyReal(t *Table) Result {
	v, ok, err := t.TryRemove(o.Key)

	return Result{OK: ok, Value: v, Err: sentinel(err)}
}

func (o OpTryRemove) ApplyModel(m *Model) Result {
	v, ok, err := m.TryRemove(o.Key)

	return Result{OK: ok, Value: v, Err: err}
}

type OpTryRemoveValue struct {
	Key      string
	Expected int
}

func (o OpTryRemoveValue) String() string {
	return fmt.Sprintf("try-remove-value %s if %d", o.Key, o.Expected)
}

func (o OpTryRemoveValue) ApplyReal(t *Table) Result {
	ok, err := t.TryRemoveValue(o.Key, o.Expected)

	return Result{OK: ok, Err: sentinel(err)}
}

func (o OpTryRemoveValue) ApplyModel(m *Model) Result {
	ok, err := m.TryRemoveValue(o.Key, o.Expected)

	return Result{OK: ok, Err: err}
}

type OpPeek struct{}

func (OpPeek) String() string { return "peek" }

func (OpPeek) ApplyReal(t *Table) Result {
	e, ok, err := t.Peek()

	return Result{OK: ok, Key: e.Key, Value: e.Value, Err: sentinel(err)}
}

func (OpPeek) ApplyModel(m *Model) Result {
	e, ok, err := m.Peek()

	return Result{OK: ok, Key: e.Key, Value: e.Value, Err: err}
}

type OpTryDequeue struct{}

func (OpTryDequeue) String() string { return "try-dequeue" }

func (OpTryDequeue) ApplyReal(t *Table) Result {
	e, ok, err := t.TryDequeue()

	return Result{OK: ok, Key: e.Key, Value: e.Value, Err: sentinel(err)}
}

func (OpTryDequeue) ApplyModel(m *Model) Result {
	e, ok, err := m.TryDequeue()

	return Result{OK: ok, Key: e.Key, Value: e.Value, Err: err}
}

type OpSetLimit struct{ Limit int }

func (o OpSetLimit) String() string { return fmt.Sprintf("set-limit %d", o.Limit) }

func (o OpSetLimit) ApplyReal(t *Table) Result {
	err := t.SetLimit(o.Limit)

	return Result{OK: err == nil, Err: sentinel(err)}
}

func (o OpSetLimit) ApplyModel(m *Model) Result {
	err := m.SetLimit(o.Limit)

	return Result{OK: err == nil, Err: err}
}

type OpClear struct{}

func (OpClear) String() string { return "clear" }

func (OpClear) ApplyReal(t *Table) Result {
	err := t.Clear()

	return Result{OK: err == nil, Err: sentinel(err)}
}

func (OpClear) ApplyModel(m *Model) Result {
	err := m.Clear()

	return Result{OK: err == nil, Err: err}
}

// FormatOps renders an op history for failure messages.
func FormatOps(history []string) string {
	var b strings.Builder

	b.WriteString("ops:\n")

	for i, op := range history {
		fmt.Fprintf(&b, "  %3d: %s\n", i+1, op)
	}

	return b.String()
}
