package store

import "context"

// Storage is the contract any storage backend must honor: volatile (L1),
// durable (L2), or a composition of both.
//
// Every operation may block (the spec permits a truly synchronous or a
// truly asynchronous backend); implementations accept a context.Context so
// a host can cancel or time out a slow backend call. Implementations must
// be safe for concurrent use.
type Storage interface {
	// Get returns the entry stored under key. ok is false (err is nil) on
	// a clean miss; err is non-nil only for a genuine backend failure.
	Get(ctx context.Context, key string) (entry Entry, ok bool, err error)
	// Put stores entry under key. It returns false, ErrTooLarge if the
	// entry alone exceeds the configured byte bound; otherwise it performs
	// best-effort eviction to make room and returns true.
	Put(ctx context.Context, key string, entry Entry) (stored bool, err error)
	// Remove deletes the entry stored under key, if any. It returns
	// whether an entry was actually removed.
	Remove(ctx context.Context, key string) (removed bool, err error)
	// Contains reports whether key is present, without promoting it
	// (unlike Get on a tiered store).
	Contains(ctx context.Context, key string) (bool, error)
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// ClearWhere removes every entry for which predicate returns true.
	// Implementations should check ctx between entries for cancellation.
	ClearWhere(ctx context.Context, predicate func(Entry) bool) error
	// Keys returns every key currently stored.
	Keys(ctx context.Context) ([]string, error)
	// Size returns the number of entries currently stored.
	Size(ctx context.Context) (int, error)
	// SizeInBytes returns the approximate storage footprint in bytes.
	SizeInBytes(ctx context.Context) (int64, error)
	// Close releases any resources (file handles, connections) held by
	// the backend.
	Close() error
}
