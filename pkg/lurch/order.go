package lurch

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// linkState tags a list link.
type linkState uint8

const (
	// linkLive is a settled link that neighbors may swing with CAS.
	linkLive linkState = iota
	// linkMarked is a link its owner has claimed while unlinking (or, for
	// next, while linking). Neighbors wait until the owner releases it.
	linkMarked
)

// link is one direction of an ordering-list edge: the neighbor index plus a
// state tag, packed into a uint64 so it can be swapped atomically.
type link uint64

const markedBit = link(1) << 63

func liveLink(idx uint32) link { return link(idx) }

func markedLink(idx uint32) link { return link(idx) | markedBit }

func (l link) index() uint32 { return uint32(l) }

func (l link) state() linkState {
	if l&markedBit != 0 {
		return linkMarked
	}

	return linkLive
}

func (l link) String() string {
	if l.state() == linkMarked {
		return fmt.Sprintf("marked(%d)", l.index())
	}

	return fmt.Sprintf("live(%d)", l.index())
}

type atomicLink struct {
	v atomic.Uint64
}

func (a *atomicLink) load() link { return link(a.v.Load()) }

func (a *atomicLink) store(l link) { a.v.Store(uint64(l)) }

func (a *atomicLink) swap(l link) link { return link(a.v.Swap(uint64(l))) }

func (a *atomicLink) cas(old, nw link) bool {
	return a.v.CompareAndSwap(uint64(old), uint64(nw))
}

// The ordering list is a doubly-linked list threaded through the arena with
// the sentinel at index 0. Walking prev from the sentinel visits entries
// oldest to newest; walking next visits them newest to oldest.
//
// Every entry is linked and unlinked under its bucket lock, so there is at
// most one structural operation per entry at a time. Different entries are
// linked and unlinked concurrently, coordinated only through CAS on links:
//
//   - linking pushes at the newest end with one Swap on sentinel.next,
//     then waits for the old newest entry's prev to settle and points it
//     at the new entry;
//   - unlinking first marks its own prev and next so no neighbor can
//     retarget them, then swings its newer neighbor's next and finally its
//     older neighbor's prev. If the first swing fails it releases both marks
//     and retries, letting the neighbor that raced it finish.
//
// The sentinel's own links are never marked.

// linkHead links idx as the newest entry.
func (a *arena[K, V]) linkHead(idx uint32) {
	e := a.at(idx)

	e.prev.store(liveLink(0))
	e.next.store(markedLink(0))

	old := a.at(0).next.swap(liveLink(idx))
	if old.state() != linkLive {
		panic(corruptf("sentinel next is %s", old))
	}

	older := a.at(old.index())

	// The old newest entry's prev is live(0) unless its own newer neighbor
	// is still finishing an unlink, or it is mid-unlink itself. Both settle.
	for spins := 0; !older.prev.cas(liveLink(0), liveLink(idx)); spins++ {
		backoff(spins)
	}

	e.next.store(liveLink(old.index()))
}

// unlink removes idx from the list. The removed entry keeps its marked
// links until it is freed or linked again.
func (a *arena[K, V]) unlink(idx uint32) {
	if idx == 0 {
		panic(corruptf("unlink of sentinel"))
	}

	e := a.at(idx)

	for attempt := 0; ; attempt++ {
		newer := claim(&e.prev, idx, "prev")
		older := claim(&e.next, idx, "next")

		if a.at(newer).next.cas(liveLink(idx), liveLink(older)) {
			o := a.at(older)
			for spins := 0; !o.prev.cas(liveLink(idx), liveLink(newer)); spins++ {
				backoff(spins)
			}

			return
		}

		e.next.store(liveLink(older))
		e.prev.store(liveLink(newer))

		backoff(attempt)
	}
}

// claim marks one of idx's own links and returns the neighbor it pointed
// at. Only idx's owner marks its links, so finding one already marked means
// a second structural operation on idx is in flight.
func claim(l *atomicLink, idx uint32, which string) uint32 {
	for {
		cur := l.load()
		if cur.state() == linkMarked {
			panic(corruptf("slot %d %s already claimed (%s)", idx, which, cur))
		}

		if l.cas(cur, markedLink(cur.index())) {
			return cur.index()
		}
	}
}

// relink moves idx to the newest end.
func (a *arena[K, V]) relink(idx uint32) {
	if a.at(0).next.load() == liveLink(idx) {
		return
	}

	a.unlink(idx)
	a.linkHead(idx)
}

// oldest returns the oldest linked index, 0 when the list is empty or the
// arena is released. Safe without locks.
func (a *arena[K, V]) oldest() uint32 {
	s, ok := a.tryAt(0)
	if !ok {
		return 0
	}

	return s.prev.load().index()
}

func backoff(n int) {
	if n < 4 {
		return
	}

	runtime.Gosched()
}
