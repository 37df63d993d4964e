package lurch

import (
	"fmt"
	"math"
	"math/bits"
)

// Hardcoded implementation limits and sizing defaults.
//
// Slot indexes are uint32 and slot 0 is the list sentinel, so the arena can
// never issue more than maxSlots entries. The remaining constants only shape
// defaults; explicit tuning options override them.
const (
	maxSlots = math.MaxInt32

	// Floors for the sizes derived from Options.Capacity.
	minHashSize  = 127
	minLockCount = 7
	minSlabSize  = 128

	// Ceilings for explicit tuning values.
	maxHashSize = 1 << 30
	maxSlabSize = 1 << 20

	// Number of free-list shards. Frees spread over the shards, allocations
	// sweep them round-robin.
	freeShards = 32

	// Freed slots the allocator tolerates before preferring to wait for a
	// free-list pop over growing a new slab.
	overAlloc = 128
)

// geometry is the resolved sizing of a table.
type geometry struct {
	buckets  int
	locks    int
	slabSize int
}

func resolveGeometry(capacity, hashSize, slabSize, lockCount int) (geometry, error) {
	if capacity < 0 || hashSize < 0 || slabSize < 0 || lockCount < 0 {
		return geometry{}, fmt.Errorf("capacity and tuning values must be >= 0: %w", ErrInvalidInput)
	}

	if hashSize > maxHashSize {
		return geometry{}, fmt.Errorf("hash size %d exceeds %d: %w", hashSize, maxHashSize, ErrInvalidInput)
	}

	if slabSize > maxSlabSize {
		return geometry{}, fmt.Errorf("slab size %d exceeds %d: %w", slabSize, maxSlabSize, ErrInvalidInput)
	}

	var g geometry

	if hashSize == 0 {
		hashSize = max(minHashSize, capacity/2)
	}

	g.buckets = nextPrime(min(hashSize, maxHashSize))

	if slabSize == 0 {
		slabSize = max(minSlabSize, capacity/16)
	}

	g.slabSize = nextPow2(min(slabSize, maxSlabSize))

	if lockCount == 0 {
		lockCount = max(minLockCount, capacity/256)
	}

	g.locks = min(nextPrime(lockCount), g.buckets)

	return g, nil
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}

	return 1 << bits.Len(uint(n-1))
}

// nextPrime returns the smallest prime >= n.
func nextPrime(n int) int {
	if n <= 2 {
		return 2
	}

	if n%2 == 0 {
		n++
	}

	for !isPrime(n) {
		n += 2
	}

	return n
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}

	if n%2 == 0 {
		return n == 2
	}

	for d := 3; d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}

	return true
}
