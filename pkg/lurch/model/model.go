// Package model provides a deliberately simple, single-threaded state model
// of lurch's publicly observable behavior.
//
// The model is intentionally easy to audit: a map for lookups plus a slice
// holding keys oldest first. Every operation is O(n) in the worst case and
// nothing is concurrent. Property tests run the same operations against the
// model and a real table and compare the results.
package model

import (
	"slices"

	"github.com/calvinalkan/lurch/pkg/lurch"
)

// TableModel mirrors a [lurch.Table] with comparable values.
type TableModel[K comparable, V comparable] struct {
	Ordering lurch.Ordering
	Limit    int
	IsClosed bool

	values map[K]V
	order  []K // oldest first; unused with lurch.None
}

// New validates options the same way lurch.New does and returns an empty
// model.
func New[K comparable, V comparable](ordering lurch.Ordering, limit int) (*TableModel[K, V], error) {
	if ordering < lurch.None || ordering > lurch.Access || limit < 0 {
		return nil, lurch.ErrInvalidInput
	}

	if limit > 0 && ordering == lurch.None {
		return nil, lurch.ErrInvalidLimit
	}

	return &TableModel[K, V]{
		Ordering: ordering,
		Limit:    limit,
		values:   map[K]V{},
	}, nil
}

// Len returns the number of entries.
func (m *TableModel[K, V]) Len() int {
	return len(m.values)
}

// Entries returns all entries oldest first. With lurch.None the order is
// unspecified; callers sort.
func (m *TableModel[K, V]) Entries() []lurch.Entry[K, V] {
	out := make([]lurch.Entry[K, V], 0, len(m.values))

	if m.Ordering == lurch.None {
		for k, v := range m.values {
			out = append(out, lurch.Entry[K, V]{Key: k, Value: v})
		}

		return out
	}

	for _, k := range m.order {
		out = append(out, lurch.Entry[K, V]{Key: k, Value: m.values[k]})
	}

	return out
}

func (m *TableModel[K, V]) touch(k K) {
	i := slices.Index(m.order, k)
	if i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}

	m.order = append(m.order, k)
}

func (m *TableModel[K, V]) drop(k K) {
	delete(m.values, k)

	if i := slices.Index(m.order, k); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
}

func (m *TableModel[K, V]) insert(k K, v V) {
	m.values[k] = v

	if m.Ordering != lurch.None {
		m.order = append(m.order, k)
	}

	if m.Limit > 0 && len(m.values) > m.Limit {
		m.drop(m.order[0])
	}
}

func (m *TableModel[K, V]) update(k K, v V) {
	m.values[k] = v

	if m.Ordering >= lurch.Modified {
		m.touch(k)
	}
}

// Get mirrors [lurch.Table.Get].
func (m *TableModel[K, V]) Get(k K) (V, bool, error) {
	if m.IsClosed {
		var zero V

		return zero, false, lurch.ErrClosed
	}

	v, ok := m.values[k]
	if ok && m.Ordering == lurch.Access {
		m.touch(k)
	}

	return v, ok, nil
}

// Set mirrors [lurch.Table.Set].
func (m *TableModel[K, V]) Set(k K, v V) error {
	if m.IsClosed {
		return lurch.ErrClosed
	}

	if _, ok := m.values[k]; ok {
		m.update(k, v)
	} else {
		m.insert(k, v)
	}

	return nil
}

// TryAdd mirrors [lurch.Table.TryAdd].
func (m *TableModel[K, V]) TryAdd(k K, v V) (bool, error) {
	if m.IsClosed {
		return false, lurch.ErrClosed
	}

	if _, ok := m.values[k]; ok {
		return false, nil
	}

	m.insert(k, v)

	return true, nil
}

// GetOrAdd mirrors [lurch.Table.GetOrAdd].
func (m *TableModel[K, V]) GetOrAdd(k K, v V) (V, error) {
	if m.IsClosed {
		var zero V

		return zero, lurch.ErrClosed
	}

	if cur, ok := m.values[k]; ok {
		return cur, nil
	}

	m.insert(k, v)

	return v, nil
}

// AddOrUpdate mirrors [lurch.Table.AddOrUpdate].
func (m *TableModel[K, V]) AddOrUpdate(k K, v V, update func(K, V) V) (V, error) {
	if m.IsClosed {
		var zero V

		return zero, lurch.ErrClosed
	}

	if cur, ok := m.values[k]; ok {
		nv := update(k, cur)
		m.update(k, nv)

		return nv, nil
	}

	m.insert(k, v)

	return v, nil
}

// TryUpdate mirrors [lurch.Table.TryUpdate].
func (m *TableModel[K, V]) TryUpdate(k K, v V) (bool, error) {
	if m.IsClosed {
		return false, lurch.ErrClosed
	}

	if _, ok := m.values[k]; !ok {
		return false, nil
	}

	m.update(k, v)

	return true, nil
}

// TryUpdateCompare mirrors [lurch.Table.TryUpdateCompare].
func (m *TableModel[K, V]) TryUpdateCompare(k K, v, expected V) (bool, error) {
	if m.IsClosed {
		return false, lurch.ErrClosed
	}

	if cur, ok := m.values[k]; !ok || cur != expected {
		return false, nil
	}

	m.update(k, v)

	return true, nil
}

// TryRemove mirrors [lurch.Table.TryRemove].
func (m *TableModel[K, V]) TryRemove(k K) (V, bool, error) {
	if m.IsClosed {
		var zero V

		return zero, false, lurch.ErrClosed
	}

	v, ok := m.values[k]
	if ok {
		m.drop(k)
	}

	return v, ok, nil
}

// TryRemoveValue mirrors [lurch.Table.TryRemoveValue].
func (m *TableModel[K, V]) TryRemoveValue(k K, expected V) (bool, error) {
	if m.IsClosed {
		return false, lurch.ErrClosed
	}

	if cur, ok := m.values[k]; !ok || cur != expected {
		return false, nil
	}

	m.drop(k)

	return true, nil
}

// Peek mirrors [lurch.Table.Peek].
func (m *TableModel[K, V]) Peek() (lurch.Entry[K, V], bool, error) {
	var none lurch.Entry[K, V]

	if m.Ordering == lurch.None {
		return none, false, lurch.ErrUnordered
	}

	if m.IsClosed {
		return none, false, lurch.ErrClosed
	}

	if len(m.order) == 0 {
		return none, false, nil
	}

	k := m.order[0]

	return lurch.Entry[K, V]{Key: k, Value: m.values[k]}, true, nil
}

// TryDequeue mirrors [lurch.Table.TryDequeue].
func (m *TableModel[K, V]) TryDequeue() (lurch.Entry[K, V], bool, error) {
	e, ok, err := m.Peek()
	if ok {
		m.drop(e.Key)
	}

	return e, ok, err
}

// SetLimit mirrors [lurch.Table.SetLimit].
func (m *TableModel[K, V]) SetLimit(limit int) error {
	if m.IsClosed {
		return lurch.ErrClosed
	}

	if limit < 0 {
		return lurch.ErrInvalidInput
	}

	if limit > 0 && m.Ordering == lurch.None {
		return lurch.ErrInvalidLimit
	}

	m.Limit = limit

	for limit > 0 && len(m.order) > limit {
		m.drop(m.order[0])
	}

	return nil
}

// Clear mirrors [lurch.Table.Clear].
func (m *TableModel[K, V]) Clear() error {
	if m.IsClosed {
		return lurch.ErrClosed
	}

	clear(m.values)
	m.order = m.order[:0]

	return nil
}

// Close mirrors [lurch.Table.Close].
func (m *TableModel[K, V]) Close() error {
	if m.IsClosed {
		return lurch.ErrClosed
	}

	m.IsClosed = true
	clear(m.values)
	m.order = nil

	return nil
}
