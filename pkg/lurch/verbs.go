package lurch

// Every public write method is a thin wrapper that builds one of the verbs
// below and runs it through Table.apply or Table.applyRemove. Verbs are
// invoked under the bucket lock; the ones with an out field record the value
// the caller should see.

// setVerb creates or replaces.
type setVerb[K comparable, V any] struct {
	value V
}

func (v setVerb[K, V]) CreateValue(K) (V, bool) { return v.value, true }

func (v setVerb[K, V]) UpdateValue(K, V) (V, bool) { return v.value, true }

// addVerb creates only. fn, when set, produces the value.
type addVerb[K comparable, V any] struct {
	value V
	fn    func(key K) V
}

func (v addVerb[K, V]) CreateValue(key K) (V, bool) {
	if v.fn != nil {
		return v.fn(key), true
	}

	return v.value, true
}

func (addVerb[K, V]) UpdateValue(_ K, current V) (V, bool) { return current, false }

// getOrAddVerb creates if absent and reports the value in the table
// afterwards.
type getOrAddVerb[K comparable, V any] struct {
	value V
	fn    func(key K) V
	out   V
}

func (v *getOrAddVerb[K, V]) CreateValue(key K) (V, bool) {
	if v.fn != nil {
		v.out = v.fn(key)
	} else {
		v.out = v.value
	}

	return v.out, true
}

func (v *getOrAddVerb[K, V]) UpdateValue(_ K, current V) (V, bool) {
	v.out = current

	return current, false
}

// addOrUpdateVerb creates from value/addFn or replaces with update(current).
type addOrUpdateVerb[K comparable, V any] struct {
	value  V
	addFn  func(key K) V
	update func(key K, current V) V
	out    V
}

func (v *addOrUpdateVerb[K, V]) CreateValue(key K) (V, bool) {
	if v.addFn != nil {
		v.out = v.addFn(key)
	} else {
		v.out = v.value
	}

	return v.out, true
}

func (v *addOrUpdateVerb[K, V]) UpdateValue(key K, current V) (V, bool) {
	v.out = v.update(key, current)

	return v.out, true
}

// updateVerb replaces an existing value only. With compare set, only when
// the current value equals expected; with fn set, with fn's result.
type updateVerb[K comparable, V any] struct {
	value    V
	fn       func(key K, current V) V
	compare  bool
	expected V
	equal    func(a, b V) bool
}

func (updateVerb[K, V]) CreateValue(K) (V, bool) {
	var zero V

	return zero, false
}

func (v updateVerb[K, V]) UpdateValue(key K, current V) (V, bool) {
	if v.compare && !v.equal(current, v.expected) {
		return current, false
	}

	if v.fn != nil {
		return v.fn(key, current), true
	}

	return v.value, true
}

// removeVerb removes unconditionally, when the current value equals
// expected, or when pred accepts the pair.
type removeVerb[K comparable, V any] struct {
	compare  bool
	expected V
	equal    func(a, b V) bool
	pred     func(key K, current V) bool
}

func (v removeVerb[K, V]) RemoveValue(key K, current V) bool {
	if v.compare && !v.equal(current, v.expected) {
		return false
	}

	if v.pred != nil {
		return v.pred(key, current)
	}

	return true
}
