package lurch

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by lurch operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, lurch.ErrKeyExists) {
//	    // someone else won the race
//	}
var (
	// ErrInvalidInput indicates invalid options or arguments were provided.
	//
	// Common causes: negative capacity or tuning values, a negative limit,
	// a nil update function.
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("lurch: invalid input")

	// ErrInvalidLimit indicates a positive limit was requested on a table
	// created with [None] ordering. Without an ordering there is no oldest
	// entry to evict.
	//
	// This is a programming error.
	ErrInvalidLimit = errors.New("lurch: limit requires ordering")

	// ErrClosed indicates the [Table] has already been closed.
	//
	// Every operation after [Table.Close] returns this error, including a
	// second Close.
	ErrClosed = errors.New("lurch: closed")

	// ErrNotFound indicates the key is not present. Returned by
	// [Table.Lookup] only; the Try* methods report absence with a bool.
	ErrNotFound = errors.New("lurch: not found")

	// ErrKeyExists indicates [Table.Add] found the key already present.
	ErrKeyExists = errors.New("lurch: key exists")

	// ErrUnordered indicates an ordered operation (Peek, Dequeue) was
	// attempted on a table created with [None] ordering.
	//
	// Recovery: create the table with an ordering.
	ErrUnordered = errors.New("lurch: unordered")

	// ErrFull indicates the arena reached its hard slot limit and no freed
	// slot could be reused.
	//
	// Recovery: remove entries, or set a [Table.SetLimit] so the table
	// evicts instead of growing.
	ErrFull = errors.New("lurch: full")

	// ErrCorrupt indicates an internal structural invariant was violated.
	//
	// It is never returned. It is carried by the [*CorruptionError] value
	// the table panics with, so recovered panics can be matched with
	// errors.Is. A table that panicked with it must not be used again.
	ErrCorrupt = errors.New("lurch: corrupt")
)

// CorruptionError is the panic value raised when the table detects that its
// internal linkage is broken, for example an entry missing from the bucket
// chain it hashes to, or a list link already claimed when it should be free.
//
// The failure is not recoverable: the table state is undefined afterwards.
type CorruptionError struct {
	Detail string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCorrupt, e.Detail)
}

// Unwrap lets errors.Is(err, ErrCorrupt) match.
func (e *CorruptionError) Unwrap() error {
	return ErrCorrupt
}

func corruptf(format string, args ...any) *CorruptionError {
	return &CorruptionError{Detail: fmt.Sprintf(format, args...)}
}
