package lurch

import (
	"context"
	"runtime"
)

// Peek returns the oldest entry without removing it.
//
// The oldest index is read without locks and then revalidated under its
// bucket lock. Revalidation checks that the slot is still the oldest and
// still carries the same key hash; it does not compare keys. A slot freed
// and reissued to a different key with the same hash in between is only
// accepted if it is again the oldest entry, in which case it is the correct
// answer anyway.
func (t *Table[K, V]) Peek() (Entry[K, V], bool, error) {
	return t.oldestEntry(nil, false)
}

// TryDequeue removes and returns the oldest entry. It returns false when
// the table is empty.
func (t *Table[K, V]) TryDequeue() (Entry[K, V], bool, error) {
	return t.dequeue(nil)
}

// TryDequeueFunc removes the oldest entry only if pred accepts it. When
// pred rejects it, the entry is returned with false. pred runs under the
// entry's bucket lock.
func (t *Table[K, V]) TryDequeueFunc(pred func(key K, value V) bool) (Entry[K, V], bool, error) {
	return t.dequeue(pred)
}

// Dequeue removes and returns the oldest entry, spinning with
// runtime.Gosched until one is available. It never sleeps or parks: use
// [Table.DequeueContext] to bound the wait.
func (t *Table[K, V]) Dequeue() (Entry[K, V], error) {
	return t.DequeueContext(context.Background())
}

// DequeueContext is Dequeue that gives up with ctx.Err() once ctx is done.
func (t *Table[K, V]) DequeueContext(ctx context.Context) (Entry[K, V], error) {
	for {
		e, ok, err := t.dequeue(nil)
		if err != nil || ok {
			return e, err
		}

		select {
		case <-ctx.Done():
			return e, ctx.Err()
		default:
		}

		runtime.Gosched()
	}
}

func (t *Table[K, V]) dequeue(pred func(key K, value V) bool) (Entry[K, V], bool, error) {
	if pred == nil {
		pred = acceptAll[K, V]
	}

	return t.oldestEntry(pred, true)
}

func acceptAll[K comparable, V any](K, V) bool { return true }

// oldestEntry is the shared optimistic loop behind Peek and dequeue. With
// remove false it only reads; with remove true it detaches the entry when
// pred accepts it.
func (t *Table[K, V]) oldestEntry(pred func(key K, value V) bool, remove bool) (Entry[K, V], bool, error) {
	var none Entry[K, V]

	if t.ordering == None {
		return none, false, ErrUnordered
	}

	for spins := 0; ; spins++ {
		if t.closed.Load() {
			return none, false, ErrClosed
		}

		idx := t.arena.oldest()
		if idx == 0 {
			if t.closed.Load() {
				return none, false, ErrClosed
			}

			return none, false, nil
		}

		e, ok := t.arena.tryAt(idx)
		if !ok {
			return none, false, ErrClosed
		}

		hash := e.hash.Load()
		if hash < 0 {
			// Freed between the two reads.
			backoff(spins)

			continue
		}

		entry, settled, done, err := t.takeOldest(idx, hash, pred, remove)
		if settled {
			return entry, done, err
		}

		backoff(spins)
	}
}

// takeOldest revalidates idx under its bucket lock. settled is false when
// the list moved on and the caller should retry.
func (t *Table[K, V]) takeOldest(idx uint32, hash int32, pred func(K, V) bool, remove bool) (entry Entry[K, V], settled, done bool, err error) {
	b, l, err := t.lockBucket(hash)
	if err != nil {
		return entry, true, false, err
	}
	defer l.Unlock()

	e := t.arena.at(idx)
	if t.arena.oldest() != idx || e.hash.Load() != hash {
		return entry, false, false, nil
	}

	entry = Entry[K, V]{Key: e.key, Value: e.value}

	if !remove {
		return entry, true, true, nil
	}

	var prev uint32

	cur := t.buckets[b]
	for cur != idx {
		if cur == 0 {
			panic(corruptf("oldest slot %d missing from bucket %d chain", idx, b))
		}

		prev, cur = cur, t.arena.at(cur).chain.Load()
	}

	if !pred(entry.Key, entry.Value) {
		return entry, true, false, nil
	}

	t.detach(b, prev, idx)

	return entry, true, true, nil
}
