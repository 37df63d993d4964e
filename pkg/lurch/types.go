package lurch

import (
	"fmt"
	"hash/maphash"
	"reflect"
	"strings"
)

// Ordering selects which events move an entry to the newest end of the
// ordering list. The oldest entry is what [Table.Peek] and
// [Table.TryDequeue] see, and what a [Table.Limit] evicts.
type Ordering int

const (
	// None keeps no ordering list. Peek, Dequeue and Limit are unavailable.
	None Ordering = iota

	// Insertion orders entries by when they were added (FIFO).
	Insertion

	// Modified also moves an entry to the newest end when its value is
	// updated.
	Modified

	// Access also moves an entry to the newest end when it is read with
	// [Table.Get] (LRU).
	Access
)

var orderingNames = [...]string{
	None:      "none",
	Insertion: "insertion",
	Modified:  "modified",
	Access:    "access",
}

func (o Ordering) String() string {
	if o < None || o > Access {
		return fmt.Sprintf("Ordering(%d)", int(o))
	}

	return orderingNames[o]
}

// ParseOrdering parses the case-insensitive name of an ordering as printed
// by [Ordering.String]. The empty string parses as [None].
func ParseOrdering(s string) (Ordering, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return None, nil
	}

	for o, n := range orderingNames {
		if n == name {
			return Ordering(o), nil
		}
	}

	return None, fmt.Errorf("unknown ordering %q: %w", s, ErrInvalidInput)
}

// Comparer is the key equality strategy of a table.
//
// Hash must be consistent with Equal: keys that are equal must hash to the
// same value. Both are called while a bucket lock is held.
type Comparer[K comparable] interface {
	Hash(key K) uint64
	Equal(a, b K) bool
}

// mapHasher is the default [Comparer]: the runtime's hash for comparable
// types under a per-table seed, and ==.
type mapHasher[K comparable] struct {
	seed maphash.Seed
}

func (h mapHasher[K]) Hash(key K) uint64 { return maphash.Comparable(h.seed, key) }

func (mapHasher[K]) Equal(a, b K) bool { return a == b }

// Observer receives table events.
//
// Observers are called synchronously while the lock of the entry's bucket
// is held. They must not call back into the same table: any operation on a
// key in the same lock group deadlocks. Long-running observers stall every
// writer that maps to the same lock.
type Observer[K comparable, V any] interface {
	ItemAdded(key K, value V)
	ItemUpdated(key K, oldValue, newValue V)
	ItemRemoved(key K, value V)
}

// ObserverFuncs adapts optional functions to an [Observer]. Nil fields are
// skipped.
type ObserverFuncs[K comparable, V any] struct {
	Added   func(key K, value V)
	Updated func(key K, oldValue, newValue V)
	Removed func(key K, value V)
}

func (o ObserverFuncs[K, V]) ItemAdded(key K, value V) {
	if o.Added != nil {
		o.Added(key, value)
	}
}

func (o ObserverFuncs[K, V]) ItemUpdated(key K, oldValue, newValue V) {
	if o.Updated != nil {
		o.Updated(key, oldValue, newValue)
	}
}

func (o ObserverFuncs[K, V]) ItemRemoved(key K, value V) {
	if o.Removed != nil {
		o.Removed(key, value)
	}
}

// CreateOrUpdater decides what [Table.Apply] does with a key.
//
// Exactly one of the two methods is called, under the bucket lock:
// CreateValue when the key is absent, UpdateValue with the current value
// when it is present. Returning false leaves the table unchanged.
type CreateOrUpdater[K comparable, V any] interface {
	CreateValue(key K) (V, bool)
	UpdateValue(key K, current V) (V, bool)
}

// Remover decides whether [Table.ApplyRemove] removes a present key. It is
// called under the bucket lock with the current value.
type Remover[K comparable, V any] interface {
	RemoveValue(key K, current V) bool
}

// Result reports what [Table.Apply] did.
type Result int

const (
	// NotFound means the key was absent and no entry was created.
	NotFound Result = iota
	// Inserted means a new entry was created.
	Inserted
	// Updated means the existing value was replaced.
	Updated
	// Exists means the key was present and left unchanged.
	Exists
)

func (r Result) String() string {
	switch r {
	case NotFound:
		return "not-found"
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Exists:
		return "exists"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Entry is a key/value pair returned by Peek and Dequeue.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Stats is a point-in-time snapshot of table internals. Fields are read
// without locks and may be mutually inconsistent under concurrent writes.
type Stats struct {
	Len        int
	Limit      int
	Ordering   Ordering
	SlotsUsed  int // slots ever issued, excluding the sentinel
	SlotsFree  int // issued slots currently on the free lists
	Slabs      int
	SlabSize   int
	Buckets    int
	Locks      int
	FreeShards int
}

// Options configure [New].
type Options[K comparable, V any] struct {
	// Capacity is the expected number of entries. It only drives the
	// defaults of the tuning fields below; the table grows past it.
	Capacity int

	Ordering Ordering

	// Limit caps the number of entries. After an insert pushes the count
	// above it, one oldest entry is evicted. 0 means unlimited. A positive
	// limit requires an Ordering other than None.
	Limit int

	// Comparer overrides key hashing and equality. Defaults to the runtime
	// hash of K with a per-table random seed, and ==.
	Comparer Comparer[K]

	// ValueEqual compares values for TryUpdateCompare and TryRemoveValue.
	// Defaults to == when V is a comparable type, reflect.DeepEqual
	// otherwise.
	ValueEqual func(a, b V) bool

	// HashSize is the number of buckets, rounded up to a prime.
	// 0 derives it from Capacity.
	HashSize int

	// SlabSize is the number of slots per arena slab, rounded up to a
	// power of two. 0 derives it from Capacity.
	SlabSize int

	// LockCount is the number of bucket locks, rounded up to a prime and
	// capped at the bucket count. 0 derives it from Capacity.
	LockCount int

	// Observers are notified of every add, update and remove. See
	// [Observer] for the locking rules they run under.
	Observers []Observer[K, V]

	// Logf, when set, receives lifecycle messages (slab growth, close).
	Logf func(format string, args ...any)
}

func defaultValueEqual[V any]() func(a, b V) bool {
	t := reflect.TypeFor[V]()
	if t.Comparable() && t.Kind() != reflect.Interface {
		return func(a, b V) bool { return any(a) == any(b) }
	}

	return func(a, b V) bool { return reflect.DeepEqual(a, b) }
}
