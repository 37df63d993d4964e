package lurch

// Export internal functions for testing.
// This file is only compiled during tests.

// CheckInvariantsForTesting validates bucket chains, counters and the
// ordering list. Call only while no other goroutine uses the table.
func CheckInvariantsForTesting[K comparable, V any](t *Table[K, V]) error {
	return t.checkInvariants()
}

// OldestSlotForTesting returns the arena index of the oldest entry.
func OldestSlotForTesting[K comparable, V any](t *Table[K, V]) uint32 {
	return t.arena.oldest()
}
