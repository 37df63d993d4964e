package lurch

import "fmt"

// Get returns the value for key. With [Access] ordering a hit moves the
// entry to the newest end.
func (t *Table[K, V]) Get(key K) (V, bool, error) {
	var zero V

	hash := t.hashOf(key)

	b, l, err := t.lockBucket(hash)
	if err != nil {
		return zero, false, err
	}
	defer l.Unlock()

	idx, _ := t.find(b, hash, key)
	if idx == 0 {
		return zero, false, nil
	}

	if t.ordering == Access {
		t.arena.relink(idx)
	}

	return t.arena.at(idx).value, true, nil
}

// Lookup is Get that reports absence as [ErrNotFound].
func (t *Table[K, V]) Lookup(key K) (V, error) {
	v, ok, err := t.Get(key)
	if err != nil {
		return v, err
	}

	if !ok {
		return v, fmt.Errorf("key %v: %w", key, ErrNotFound)
	}

	return v, nil
}

// Contains reports whether key is present. Unlike Get it never reorders.
func (t *Table[K, V]) Contains(key K) (bool, error) {
	hash := t.hashOf(key)

	b, l, err := t.lockBucket(hash)
	if err != nil {
		return false, err
	}
	defer l.Unlock()

	idx, _ := t.find(b, hash, key)

	return idx != 0, nil
}

// Set stores value under key, replacing any existing value.
func (t *Table[K, V]) Set(key K, value V) error {
	_, err := t.apply(key, setVerb[K, V]{value: value})

	return err
}

// Add stores value under key. Returns [ErrKeyExists] if key is present.
func (t *Table[K, V]) Add(key K, value V) error {
	res, err := t.apply(key, addVerb[K, V]{value: value})
	if err != nil {
		return err
	}

	if res != Inserted {
		return fmt.Errorf("key %v: %w", key, ErrKeyExists)
	}

	return nil
}

// TryAdd stores value under key if absent and reports whether it did.
func (t *Table[K, V]) TryAdd(key K, value V) (bool, error) {
	res, err := t.apply(key, addVerb[K, V]{value: value})

	return res == Inserted, err
}

// TryAddFunc is TryAdd with the value produced by fn. fn runs under the
// bucket lock and only when key is absent.
func (t *Table[K, V]) TryAddFunc(key K, fn func(key K) V) (bool, error) {
	if fn == nil {
		return false, fmt.Errorf("nil add func: %w", ErrInvalidInput)
	}

	res, err := t.apply(key, addVerb[K, V]{fn: fn})

	return res == Inserted, err
}

// GetOrAdd returns the value under key, storing value first if absent.
func (t *Table[K, V]) GetOrAdd(key K, value V) (V, error) {
	verb := &getOrAddVerb[K, V]{value: value}

	_, err := t.apply(key, verb)

	return verb.out, err
}

// GetOrAddFunc is GetOrAdd with the value produced by fn. fn runs under the
// bucket lock, so among concurrent callers for the same absent key it runs
// exactly once.
func (t *Table[K, V]) GetOrAddFunc(key K, fn func(key K) V) (V, error) {
	if fn == nil {
		var zero V

		return zero, fmt.Errorf("nil add func: %w", ErrInvalidInput)
	}

	verb := &getOrAddVerb[K, V]{fn: fn}

	_, err := t.apply(key, verb)

	return verb.out, err
}

// AddOrUpdate stores value if key is absent, otherwise replaces the
// current value with update(key, current). It returns the stored value.
func (t *Table[K, V]) AddOrUpdate(key K, value V, update func(key K, current V) V) (V, error) {
	if update == nil {
		var zero V

		return zero, fmt.Errorf("nil update func: %w", ErrInvalidInput)
	}

	verb := &addOrUpdateVerb[K, V]{value: value, update: update}

	_, err := t.apply(key, verb)

	return verb.out, err
}

// AddOrUpdateFunc is AddOrUpdate with the added value produced by add.
func (t *Table[K, V]) AddOrUpdateFunc(key K, add func(key K) V, update func(key K, current V) V) (V, error) {
	if add == nil || update == nil {
		var zero V

		return zero, fmt.Errorf("nil add or update func: %w", ErrInvalidInput)
	}

	verb := &addOrUpdateVerb[K, V]{addFn: add, update: update}

	_, err := t.apply(key, verb)

	return verb.out, err
}

// TryUpdate replaces the value of a present key.
func (t *Table[K, V]) TryUpdate(key K, value V) (bool, error) {
	res, err := t.apply(key, updateVerb[K, V]{value: value})

	return res == Updated, err
}

// TryUpdateCompare replaces the value of a present key only if the current
// value equals expected under [Options.ValueEqual].
func (t *Table[K, V]) TryUpdateCompare(key K, value, expected V) (bool, error) {
	res, err := t.apply(key, updateVerb[K, V]{
		value:    value,
		compare:  true,
		expected: expected,
		equal:    t.valueEq,
	})

	return res == Updated, err
}

// TryUpdateFunc replaces the value of a present key with fn(key, current).
func (t *Table[K, V]) TryUpdateFunc(key K, fn func(key K, current V) V) (bool, error) {
	if fn == nil {
		return false, fmt.Errorf("nil update func: %w", ErrInvalidInput)
	}

	res, err := t.apply(key, updateVerb[K, V]{fn: fn})

	return res == Updated, err
}

// Apply runs a caller-defined [CreateOrUpdater] against key. Inserts count
// toward the limit like every other insert.
func (t *Table[K, V]) Apply(key K, verb CreateOrUpdater[K, V]) (Result, error) {
	if verb == nil {
		return NotFound, fmt.Errorf("nil verb: %w", ErrInvalidInput)
	}

	return t.apply(key, verb)
}

// TryRemove removes key and returns the value it held.
func (t *Table[K, V]) TryRemove(key K) (V, bool, error) {
	return t.applyRemove(key, nil)
}

// TryRemoveValue removes key only if its value equals expected.
func (t *Table[K, V]) TryRemoveValue(key K, expected V) (bool, error) {
	_, ok, err := t.applyRemove(key, removeVerb[K, V]{
		compare:  true,
		expected: expected,
		equal:    t.valueEq,
	})

	return ok, err
}

// TryRemoveFunc removes key only if pred accepts its current value. pred
// runs under the bucket lock.
func (t *Table[K, V]) TryRemoveFunc(key K, pred func(key K, current V) bool) (V, bool, error) {
	if pred == nil {
		var zero V

		return zero, false, fmt.Errorf("nil predicate: %w", ErrInvalidInput)
	}

	return t.applyRemove(key, removeVerb[K, V]{pred: pred})
}

// ApplyRemove runs a caller-defined [Remover] against key.
func (t *Table[K, V]) ApplyRemove(key K, verb Remover[K, V]) (V, bool, error) {
	if verb == nil {
		var zero V

		return zero, false, fmt.Errorf("nil verb: %w", ErrInvalidInput)
	}

	return t.applyRemove(key, verb)
}

// Delete removes key and reports whether it was present.
func (t *Table[K, V]) Delete(key K) (bool, error) {
	_, ok, err := t.applyRemove(key, nil)

	return ok, err
}

// Clear removes every entry, notifying observers of each removal. It holds
// one lock at a time, so entries inserted concurrently into an already
// cleared lock group survive.
func (t *Table[K, V]) Clear() error {
	for i := range t.locks {
		err := t.clearGroup(i)
		if err != nil {
			return err
		}
	}

	return nil
}

func (t *Table[K, V]) clearGroup(i int) error {
	if t.closed.Load() {
		return ErrClosed
	}

	l := &t.locks[i]
	l.Lock()
	defer l.Unlock()

	if t.closed.Load() {
		return ErrClosed
	}

	for b := uint32(i); b < t.nbuckets; b += uint32(len(t.locks)) {
		for idx := t.buckets[b]; idx != 0; idx = t.buckets[b] {
			t.detach(b, 0, idx)
		}
	}

	return nil
}
