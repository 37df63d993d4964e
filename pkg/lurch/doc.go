// Package lurch provides a concurrent hash map that can keep its entries
// in insertion, modification or access order and evict the oldest entry
// once a size limit is exceeded.
//
// A [Table] is usable as a plain concurrent map, a FIFO queue keyed for
// random access, or a bounded LRU cache, depending on [Ordering] and
// [Options.Limit].
//
// # Basic Usage
//
//	t, err := lurch.New(lurch.Options[string, int]{
//	    Capacity: 10_000,
//	    Ordering: lurch.Access,
//	    Limit:    10_000,
//	})
//	if err != nil {
//	    // ErrInvalidInput or ErrInvalidLimit
//	}
//	defer t.Close()
//
//	_ = t.Set("a", 1)
//	v, ok, err := t.Get("a") // moves "a" to the newest end
//
//	oldest, ok, err := t.TryDequeue()
//
// # Concurrency
//
// Keys hash to buckets, and buckets share a fixed pool of mutexes. Every
// operation on a key holds exactly one of those mutexes, so operations on
// keys in different lock groups run in parallel. The ordering list that
// spans all entries is lock-free: entries in different lock groups are
// linked and unlinked concurrently with atomic compare-and-swap.
//
// Callbacks (Observers, GetOrAddFunc factories, update functions,
// predicates, custom verbs) run while holding a bucket mutex. They must not
// call back into the same table.
//
// # Eviction
//
// With a positive limit every insert that pushes the count above it
// removes one oldest entry afterwards. Concurrent inserts may overshoot
// the limit briefly; the count converges once writers pause. Lowering the
// limit with SetLimit dequeues oldest entries until the count fits.
//
// # Error Handling
//
// Operations return sentinel errors to be matched with [errors.Is].
// Internal corruption is never returned: the table panics with a
// [*CorruptionError] that wraps [ErrCorrupt].
package lurch
