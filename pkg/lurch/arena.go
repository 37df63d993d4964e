package lurch

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// entry is one slot of the arena.
//
// key and value are only read or written while holding the lock of the
// bucket the slot hashes to. The other fields are atomics because the free
// lists, the ordering list and Peek touch them without that lock.
type entry[K comparable, V any] struct {
	// hash is the masked key hash, or -1 while the slot is free.
	hash atomic.Int32

	// chain is the next slot in the bucket chain while live, or the next
	// slot in the free-list shard while free. 0 terminates both.
	chain atomic.Uint32

	// prev points toward newer entries and next toward older ones. On the
	// sentinel, next is the newest entry and prev the oldest.
	prev atomicLink
	next atomicLink

	key   K
	value V
}

// slabDir is the append-only slab directory. A published directory is never
// mutated; growth publishes a copy with one more slab. Slabs themselves are
// never moved, so *entry pointers stay valid for the table's lifetime.
type slabDir[K comparable, V any] [][]entry[K, V]

// freeShard is a Treiber stack of freed slots. top packs a version tag in
// the high 32 bits and the top index in the low 32 bits; every push and pop
// bumps the tag so a stale pop cannot succeed after an ABA sequence.
type freeShard struct {
	top atomic.Uint64
	_   cpu.CacheLinePad
}

func packTop(tag, idx uint32) uint64 { return uint64(tag)<<32 | uint64(idx) }

func unpackTop(v uint64) (tag, idx uint32) { return uint32(v >> 32), uint32(v) }

// arena allocates fixed-layout entries addressed by uint32 index.
//
// Index 0 is reserved for the ordering-list sentinel and doubles as the nil
// index in bucket and free chains.
type arena[K comparable, V any] struct {
	dir      atomic.Pointer[slabDir[K, V]]
	shift    uint
	mask     uint32
	maxSlabs int

	_ cpu.CacheLinePad

	// used is the next never-issued index.
	used atomic.Uint32

	_ cpu.CacheLinePad

	// live counts issued slots that are not free, sentinel excluded.
	live atomic.Int64

	_ cpu.CacheLinePad

	pushSeq atomic.Uint32
	popSeq  atomic.Uint32

	shards [freeShards]freeShard

	growMu sync.Mutex
	logf   func(format string, args ...any)
}

func newArena[K comparable, V any](slabSize, maxSlabs int, logf func(string, ...any)) *arena[K, V] {
	a := &arena[K, V]{
		shift:    uint(log2(slabSize)),
		mask:     uint32(slabSize - 1),
		maxSlabs: max(maxSlabs, 1),
		logf:     logf,
	}

	dir := slabDir[K, V]{make([]entry[K, V], slabSize)}
	a.dir.Store(&dir)
	a.used.Store(1)

	s := &dir[0][0]
	s.hash.Store(-1)
	s.prev.store(liveLink(0))
	s.next.store(liveLink(0))

	return a
}

func log2(n int) int {
	k := 0
	for n > 1 {
		n >>= 1
		k++
	}

	return k
}

func (a *arena[K, V]) slabSize() int { return int(a.mask) + 1 }

// at returns the slot for idx. The caller must know idx was issued and the
// arena is open, which holds for any index reached through a bucket chain
// or the ordering list while holding a bucket lock.
func (a *arena[K, V]) at(idx uint32) *entry[K, V] {
	d := *a.dir.Load()

	return &d[idx>>a.shift][idx&a.mask]
}

// tryAt is at for lock-free readers that may race with release.
func (a *arena[K, V]) tryAt(idx uint32) (*entry[K, V], bool) {
	p := a.dir.Load()
	if p == nil {
		return nil, false
	}

	d := *p

	s := int(idx >> a.shift)
	if s >= len(d) {
		return nil, false
	}

	return &d[s][idx&a.mask], true
}

// alloc issues a slot. Freed slots are reused before new ones are carved
// from the current slab; a new slab is appended only when both run dry.
// The returned slot has stale chain, link and hash fields.
func (a *arena[K, V]) alloc() (uint32, error) {
	for {
		d := a.dir.Load()
		if d == nil {
			return 0, ErrClosed
		}

		allocated := uint32(len(*d)) << a.shift

		for {
			used := a.used.Load()
			freed := int64(used) - 1 - a.live.Load()

			if freed > 0 {
				if idx, ok := a.pop(); ok {
					a.live.Add(1)

					return idx, nil
				}
			}

			if used < allocated {
				if a.used.CompareAndSwap(used, used+1) {
					a.live.Add(1)

					return used, nil
				}

				continue
			}

			// Plenty of slots are freed but every shard came up empty:
			// the frees are still in flight. Wait for them instead of growing.
			if freed <= overAlloc {
				break
			}

			runtime.Gosched()
		}

		err := a.grow(d)
		if err != nil {
			return 0, err
		}
	}
}

// pop tries every shard once, starting at the round-robin cursor.
func (a *arena[K, V]) pop() (uint32, bool) {
	start := a.popSeq.Add(1)

	for i := range uint32(freeShards) {
		shard := &a.shards[(start+i)%freeShards]

		for {
			top := shard.top.Load()

			tag, idx := unpackTop(top)
			if idx == 0 {
				break
			}

			next := a.at(idx).chain.Load()
			if shard.top.CompareAndSwap(top, packTop(tag+1, next)) {
				if h := a.at(idx).hash.Load(); h >= 0 {
					panic(corruptf("free list slot %d is live (hash %d)", idx, h))
				}

				return idx, true
			}
		}
	}

	return 0, false
}

// free zeroes the slot and pushes it onto a free-list shard. The caller
// must hold the lock of the bucket the slot was in and have unlinked it
// from both the bucket chain and the ordering list.
func (a *arena[K, V]) free(idx uint32) {
	e := a.at(idx)

	if e.hash.Swap(-1) < 0 {
		panic(corruptf("slot %d freed twice", idx))
	}

	var (
		zk K
		zv V
	)

	e.key, e.value = zk, zv

	shard := &a.shards[a.pushSeq.Add(1)%freeShards]

	for {
		top := shard.top.Load()
		tag, head := unpackTop(top)

		e.chain.Store(head)

		if shard.top.CompareAndSwap(top, packTop(tag+1, idx)) {
			break
		}
	}

	a.live.Add(-1)
}

// grow appends a slab unless another goroutine already replaced seen.
func (a *arena[K, V]) grow(seen *slabDir[K, V]) error {
	a.growMu.Lock()
	defer a.growMu.Unlock()

	cur := a.dir.Load()
	if cur == nil {
		return ErrClosed
	}

	if cur != seen {
		return nil
	}

	n := len(*cur)
	if n >= a.maxSlabs {
		return ErrFull
	}

	next := make(slabDir[K, V], n+1)
	copy(next, *cur)
	next[n] = make([]entry[K, V], a.slabSize())

	a.dir.Store(&next)

	if a.logf != nil {
		a.logf("lurch: arena grew to %d slabs (%d slots)", n+1, (n+1)*a.slabSize())
	}

	return nil
}

// release drops the slab directory. Callers must exclude every other user
// of the arena first (Close holds all bucket locks).
func (a *arena[K, V]) release() {
	a.growMu.Lock()
	defer a.growMu.Unlock()

	a.dir.Store(nil)
}

func (a *arena[K, V]) slabs() int {
	d := a.dir.Load()
	if d == nil {
		return 0
	}

	return len(*d)
}
