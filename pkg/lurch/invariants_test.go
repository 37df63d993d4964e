package lurch

import "fmt"

// checkInvariants validates the table's structure while holding every
// bucket lock. It must only be called while no operation is in flight on
// another goroutine's ordering-list links; tests call it after joining
// their workers.
func (t *Table[K, V]) checkInvariants() error {
	if t.closed.Load() {
		return ErrClosed
	}

	for i := range t.locks {
		t.locks[i].Lock()
	}

	defer func() {
		for i := range t.locks {
			t.locks[i].Unlock()
		}
	}()

	live := make(map[uint32]bool)

	for b := range t.nbuckets {
		for idx := t.buckets[b]; idx != 0; idx = t.arena.at(idx).chain.Load() {
			if live[idx] {
				return fmt.Errorf("slot %d appears twice in bucket chains", idx)
			}

			live[idx] = true

			h := t.arena.at(idx).hash.Load()
			if h < 0 {
				return fmt.Errorf("slot %d in bucket %d is free", idx, b)
			}

			if t.bucketOf(h) != b {
				return fmt.Errorf("slot %d with hash %d is in bucket %d", idx, h, b)
			}
		}
	}

	if n := int(t.count.Load()); n != len(live) {
		return fmt.Errorf("count %d but %d live slots", n, len(live))
	}

	if got := t.arena.live.Load(); got != int64(len(live)) {
		return fmt.Errorf("arena live %d but %d chained slots", got, len(live))
	}

	if t.ordering == None {
		return nil
	}

	seen := make(map[uint32]bool, len(live))

	cur := uint32(0)
	for {
		e := t.arena.at(cur)
		next := e.next.load()

		if next.state() != linkLive {
			return fmt.Errorf("slot %d next is %s", cur, next)
		}

		older := next.index()
		if older == 0 {
			if t.arena.at(0).prev.load() != liveLink(cur) {
				return fmt.Errorf("sentinel prev is %s, want live(%d)", t.arena.at(0).prev.load(), cur)
			}

			break
		}

		if back := t.arena.at(older).prev.load(); back != liveLink(cur) {
			return fmt.Errorf("slot %d prev is %s, want live(%d)", older, back, cur)
		}

		if !live[older] {
			return fmt.Errorf("listed slot %d is not in any bucket", older)
		}

		if seen[older] {
			return fmt.Errorf("slot %d listed twice", older)
		}

		seen[older] = true
		cur = older
	}

	if len(seen) != len(live) {
		return fmt.Errorf("list holds %d slots, buckets hold %d", len(seen), len(live))
	}

	return nil
}
