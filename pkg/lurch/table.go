package lurch

import (
	"fmt"
	"hash/maphash"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// bucketLock guards every bucket b with b % len(locks) == its index.
type bucketLock struct {
	sync.Mutex
	_ cpu.CacheLinePad
}

// Table is a concurrent hash map with an optional ordering of its entries
// and an optional size limit enforced by evicting the oldest entry.
//
// All methods are safe for concurrent use. A Table must be created with
// [New] and should be closed with [Table.Close] when no longer needed.
type Table[K comparable, V any] struct {
	arena *arena[K, V]

	// buckets[b] is the first slot of bucket b's chain, 0 if empty.
	// Read and written only under the bucket's lock.
	buckets  []uint32
	nbuckets uint32
	locks    []bucketLock

	comparer  Comparer[K]
	valueEq   func(a, b V) bool
	ordering  Ordering
	observers []Observer[K, V]
	logf      func(format string, args ...any)

	count  atomic.Int64
	limit  atomic.Int64
	closed atomic.Bool

	closeMu sync.Mutex
}

// New creates a table.
//
// Returns [ErrInvalidInput] for negative sizes or limits and
// [ErrInvalidLimit] for a positive limit with [None] ordering.
func New[K comparable, V any](opts Options[K, V]) (*Table[K, V], error) {
	if opts.Ordering < None || opts.Ordering > Access {
		return nil, fmt.Errorf("ordering %d: %w", int(opts.Ordering), ErrInvalidInput)
	}

	err := checkLimit(opts.Ordering, opts.Limit)
	if err != nil {
		return nil, err
	}

	g, err := resolveGeometry(opts.Capacity, opts.HashSize, opts.SlabSize, opts.LockCount)
	if err != nil {
		return nil, err
	}

	for i, o := range opts.Observers {
		if o == nil {
			return nil, fmt.Errorf("observer %d is nil: %w", i, ErrInvalidInput)
		}
	}

	t := &Table[K, V]{
		arena:     newArena[K, V](g.slabSize, maxSlots/g.slabSize, opts.Logf),
		buckets:   make([]uint32, g.buckets),
		nbuckets:  uint32(g.buckets),
		locks:     make([]bucketLock, g.locks),
		comparer:  opts.Comparer,
		valueEq:   opts.ValueEqual,
		ordering:  opts.Ordering,
		observers: append([]Observer[K, V](nil), opts.Observers...),
		logf:      opts.Logf,
	}

	if t.comparer == nil {
		t.comparer = mapHasher[K]{seed: maphash.MakeSeed()}
	}

	if t.valueEq == nil {
		t.valueEq = defaultValueEqual[V]()
	}

	t.limit.Store(int64(opts.Limit))

	return t, nil
}

func checkLimit(o Ordering, limit int) error {
	if limit < 0 {
		return fmt.Errorf("limit %d: %w", limit, ErrInvalidInput)
	}

	if limit > 0 && o == None {
		return fmt.Errorf("limit %d with ordering %s: %w", limit, o, ErrInvalidLimit)
	}

	return nil
}

// Len returns the number of entries. Under concurrent writes the value is
// a snapshot that may already be stale.
func (t *Table[K, V]) Len() int {
	return int(t.count.Load())
}

// Ordering returns the ordering the table was created with.
func (t *Table[K, V]) Ordering() Ordering {
	return t.ordering
}

// Limit returns the current size limit, 0 for unlimited.
func (t *Table[K, V]) Limit() int {
	return int(t.limit.Load())
}

// SetLimit replaces the size limit. Lowering it below the current count
// dequeues oldest entries until the count fits, firing ItemRemoved for each.
func (t *Table[K, V]) SetLimit(limit int) error {
	if t.closed.Load() {
		return ErrClosed
	}

	err := checkLimit(t.ordering, limit)
	if err != nil {
		return err
	}

	t.limit.Store(int64(limit))

	for limit > 0 && t.count.Load() > int64(limit) {
		_, ok, err := t.dequeue(nil)
		if err != nil {
			return err
		}

		if !ok {
			break
		}
	}

	return nil
}

// Stats returns a snapshot of the table's internals.
func (t *Table[K, V]) Stats() (Stats, error) {
	if t.closed.Load() {
		return Stats{}, ErrClosed
	}

	used := int64(t.arena.used.Load()) - 1
	live := t.arena.live.Load()

	return Stats{
		Len:        t.Len(),
		Limit:      t.Limit(),
		Ordering:   t.ordering,
		SlotsUsed:  int(used),
		SlotsFree:  int(max(used-live, 0)),
		Slabs:      t.arena.slabs(),
		SlabSize:   t.arena.slabSize(),
		Buckets:    int(t.nbuckets),
		Locks:      len(t.locks),
		FreeShards: freeShards,
	}, nil
}

// Close releases the table's storage. It waits for in-flight operations
// by taking every bucket lock; operations started afterwards return
// [ErrClosed]. Closing twice returns [ErrClosed].
func (t *Table[K, V]) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()

	if t.closed.Load() {
		return ErrClosed
	}

	for i := range t.locks {
		t.locks[i].Lock()
	}

	t.closed.Store(true)

	n := t.count.Swap(0)
	t.buckets = nil
	t.arena.release()

	for i := range t.locks {
		t.locks[i].Unlock()
	}

	if t.logf != nil {
		t.logf("lurch: closed table with %d entries", n)
	}

	return nil
}

// hashOf folds the key hash to a non-negative int32; -1 is reserved for
// free slots.
func (t *Table[K, V]) hashOf(key K) int32 {
	h := t.comparer.Hash(key)

	return int32(uint32(h^h>>32) & math.MaxInt32)
}

func (t *Table[K, V]) bucketOf(hash int32) uint32 {
	return uint32(hash) % t.nbuckets
}

// lockBucket locks the bucket for hash. It fails with ErrClosed if the
// table was closed before the lock was acquired.
func (t *Table[K, V]) lockBucket(hash int32) (uint32, *bucketLock, error) {
	if t.closed.Load() {
		return 0, nil, ErrClosed
	}

	b := t.bucketOf(hash)
	l := &t.locks[b%uint32(len(t.locks))]
	l.Lock()

	if t.closed.Load() {
		l.Unlock()

		return 0, nil, ErrClosed
	}

	return b, l, nil
}

// find walks bucket b's chain. It returns the matching slot and its chain
// predecessor (0 when it is the chain head). Caller holds the bucket lock.
func (t *Table[K, V]) find(b uint32, hash int32, key K) (idx, prev uint32) {
	for idx = t.buckets[b]; idx != 0; {
		e := t.arena.at(idx)
		if e.hash.Load() == hash && t.comparer.Equal(e.key, key) {
			return idx, prev
		}

		prev, idx = idx, e.chain.Load()
	}

	return 0, 0
}

// apply is the single insert primitive.
func (t *Table[K, V]) apply(key K, verb CreateOrUpdater[K, V]) (Result, error) {
	res, err := t.applyLocked(key, verb)
	if err == nil && res == Inserted {
		t.evictOverLimit()
	}

	return res, err
}

func (t *Table[K, V]) applyLocked(key K, verb CreateOrUpdater[K, V]) (Result, error) {
	hash := t.hashOf(key)

	b, l, err := t.lockBucket(hash)
	if err != nil {
		return NotFound, err
	}
	defer l.Unlock()

	if idx, _ := t.find(b, hash, key); idx != 0 {
		e := t.arena.at(idx)
		old := e.value

		value, ok := verb.UpdateValue(key, old)
		if !ok {
			return Exists, nil
		}

		e.value = value

		if t.ordering >= Modified {
			t.arena.relink(idx)
		}

		for _, o := range t.observers {
			o.ItemUpdated(key, old, value)
		}

		return Updated, nil
	}

	value, ok := verb.CreateValue(key)
	if !ok {
		return NotFound, nil
	}

	idx, err := t.arena.alloc()
	if err != nil {
		return NotFound, err
	}

	e := t.arena.at(idx)
	e.key = key
	e.value = value
	e.chain.Store(t.buckets[b])
	e.hash.Store(hash)
	t.buckets[b] = idx

	if t.ordering != None {
		t.arena.linkHead(idx)
	}

	t.count.Add(1)

	for _, o := range t.observers {
		o.ItemAdded(key, value)
	}

	return Inserted, nil
}

// evictOverLimit removes one oldest entry if the count exceeds the limit.
// It is best effort: under concurrent inserts the count may overshoot the
// limit transiently.
func (t *Table[K, V]) evictOverLimit() {
	limit := t.limit.Load()
	if limit <= 0 || t.count.Load() <= limit {
		return
	}

	_, _, _ = t.dequeue(nil)
}

// applyRemove is the single remove primitive. verb may be nil for an
// unconditional remove.
func (t *Table[K, V]) applyRemove(key K, verb Remover[K, V]) (V, bool, error) {
	var zero V

	hash := t.hashOf(key)

	b, l, err := t.lockBucket(hash)
	if err != nil {
		return zero, false, err
	}
	defer l.Unlock()

	idx, prev := t.find(b, hash, key)
	if idx == 0 {
		return zero, false, nil
	}

	e := t.arena.at(idx)
	if verb != nil && !verb.RemoveValue(key, e.value) {
		return zero, false, nil
	}

	value := e.value
	t.detach(b, prev, idx)

	return value, true, nil
}

// detach removes idx from bucket b's chain (prev is its predecessor, 0
// for the head) and from the ordering list, frees the slot and notifies
// observers. Caller holds the bucket lock.
func (t *Table[K, V]) detach(b, prev, idx uint32) {
	e := t.arena.at(idx)
	key, value := e.key, e.value

	next := e.chain.Load()
	if prev == 0 {
		t.buckets[b] = next
	} else {
		t.arena.at(prev).chain.Store(next)
	}

	if t.ordering != None {
		t.arena.unlink(idx)
	}

	t.arena.free(idx)
	t.count.Add(-1)

	for _, o := range t.observers {
		o.ItemRemoved(key, value)
	}
}
