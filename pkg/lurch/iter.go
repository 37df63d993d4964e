package lurch

import "iter"

// All yields every entry in bucket order.
//
// Each bucket is copied under its lock and yielded after the lock is
// released, so the loop body may call back into the table. Entries added or
// removed during iteration may or may not be seen. Iteration stops early if
// the table is closed.
func (t *Table[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		var batch []Entry[K, V]

		for b := range t.nbuckets {
			var ok bool

			batch, ok = t.copyBucket(b, batch[:0])
			if !ok {
				return
			}

			for _, e := range batch {
				if !yield(e.Key, e.Value) {
					return
				}
			}
		}
	}
}

// Keys yields every key in bucket order. See [Table.All].
func (t *Table[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range t.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values yields every value in bucket order. See [Table.All].
func (t *Table[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range t.All() {
			if !yield(v) {
				return
			}
		}
	}
}

func (t *Table[K, V]) copyBucket(b uint32, dst []Entry[K, V]) ([]Entry[K, V], bool) {
	if t.closed.Load() {
		return dst, false
	}

	l := &t.locks[b%uint32(len(t.locks))]
	l.Lock()
	defer l.Unlock()

	if t.closed.Load() {
		return dst, false
	}

	for idx := t.buckets[b]; idx != 0; {
		e := t.arena.at(idx)
		dst = append(dst, Entry[K, V]{Key: e.key, Value: e.value})
		idx = e.chain.Load()
	}

	return dst, true
}

// Ordered yields entries oldest to newest. For a table with [None]
// ordering it is the same as [Table.All].
//
// Each step is validated under the entry's bucket lock. If the entry being
// visited is removed or moved concurrently the walk stops early rather than
// follow a stale link, so under concurrent writes Ordered may miss entries.
// Without concurrent writes it yields every entry exactly once.
func (t *Table[K, V]) Ordered() iter.Seq2[K, V] {
	if t.ordering == None {
		return t.All()
	}

	return func(yield func(K, V) bool) {
		idx := t.arena.oldest()

		// A list can never hold more entries than slots were issued; the
		// bound stops a walk that concurrent relinking turned into a loop.
		for steps := int64(t.arena.used.Load()); idx != 0 && steps > 0; steps-- {
			e, next, ok := t.visit(idx)
			if !ok {
				return
			}

			if !yield(e.Key, e.Value) {
				return
			}

			idx = next
		}
	}
}

// visit reads idx and its newer neighbor under idx's bucket lock.
func (t *Table[K, V]) visit(idx uint32) (Entry[K, V], uint32, bool) {
	var none Entry[K, V]

	s, ok := t.arena.tryAt(idx)
	if !ok {
		return none, 0, false
	}

	hash := s.hash.Load()
	if hash < 0 {
		return none, 0, false
	}

	_, l, err := t.lockBucket(hash)
	if err != nil {
		return none, 0, false
	}
	defer l.Unlock()

	e := t.arena.at(idx)
	if e.hash.Load() != hash {
		return none, 0, false
	}

	next := e.prev.load()
	if next.state() == linkMarked {
		// Being linked or unlinked right now.
		return none, 0, false
	}

	return Entry[K, V]{Key: e.key, Value: e.value}, next.index(), true
}
