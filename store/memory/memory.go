// Package memory implements the volatile (L1) storage tier: an in-process
// map with bounded entry count and byte footprint, evicted under a
// pluggable strategy.
//
// Grounded in the always-cache teacher's MemCache (core/cache-provider.go),
// generalized from an unbounded map to one with capacity accounting,
// companion bookkeeping (last-access time, access count, insertion order),
// and pluggable eviction, per the spec's §4.8.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kallax-dev/httpcache/freshness"
	"github.com/kallax-dev/httpcache/store"
)

// companion holds the per-entry bookkeeping used by eviction policies.
// Kept separate from store.Entry because it is pure storage metadata, not
// part of the logical cache entry.
type companion struct {
	size           int
	lastAccess     time.Time
	accessCount    int64
	insertionOrder uint64
}

// Config controls the volatile tier's capacity bounds and eviction policy.
type Config struct {
	MaxEntries int
	MaxBytes   int64
	Strategy   store.EvictionStrategy
	// CacheType informs the ttl eviction strategy's freshness computation
	// (shared caches honor s-maxage).
	CacheType freshness.CacheType
}

// Store is the in-memory L1 tier. The zero value is not usable; construct
// with New.
type Store struct {
	mu sync.RWMutex

	cfg Config

	entries    map[string]store.Entry
	companions map[string]*companion
	nextOrder  uint64
}

// New constructs a volatile tier with the given configuration, applying
// the documented defaults (§6) for zero-valued fields.
func New(cfg Config) *Store {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.Strategy == "" {
		cfg.Strategy = store.EvictionLRU
	}
	return &Store{
		cfg:        cfg,
		entries:    make(map[string]store.Entry),
		companions: make(map[string]*companion),
	}
}

// Get takes the full write lock rather than a read lock because a hit
// mutates the entry's access companion (lastAccess, accessCount), which
// the eviction strategies read; it is a write as far as s.mu is concerned
// even though callers see it as a read.
func (s *Store) Get(_ context.Context, key string) (store.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return store.Entry{}, false, nil
	}
	c := s.companions[key]
	c.lastAccess = time.Now()
	c.accessCount++
	return e.Clone(), true, nil
}

func (s *Store) Contains(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok, nil
}

func (s *Store) Put(_ context.Context, key string, entry store.Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(key, entry)
}

// putLocked assumes s.mu is already held for writing. It never re-enters
// a public (locking) method.
func (s *Store) putLocked(key string, entry store.Entry) (bool, error) {
	newSize := int64(entry.Size())
	if newSize > s.cfg.MaxBytes {
		return false, fmt.Errorf("memory store put %q: %w", key, store.ErrTooLarge)
	}

	currentBytes := s.currentBytesLocked()
	if old, exists := s.companions[key]; exists {
		currentBytes -= int64(old.size)
		delete(s.entries, key)
		delete(s.companions, key)
	}

	for (len(s.entries) >= s.cfg.MaxEntries || currentBytes+newSize > s.cfg.MaxBytes) && len(s.entries) > 0 {
		victim := s.selectVictimLocked()
		if victim == "" {
			break
		}
		currentBytes -= int64(s.companions[victim].size)
		delete(s.entries, victim)
		delete(s.companions, victim)
	}

	s.entries[key] = entry
	s.nextOrder++
	s.companions[key] = &companion{
		size:           int(newSize),
		lastAccess:     time.Now(),
		accessCount:    0,
		insertionOrder: s.nextOrder,
	}
	return true, nil
}

func (s *Store) currentBytesLocked() int64 {
	var total int64
	for _, c := range s.companions {
		total += int64(c.size)
	}
	return total
}

// selectVictimLocked picks the key to evict per the configured strategy,
// breaking ties by insertion order (earliest first). Assumes s.mu held.
func (s *Store) selectVictimLocked() string {
	switch s.cfg.Strategy {
	case store.EvictionLFU:
		return s.selectLFULocked()
	case store.EvictionFIFO:
		return s.selectFIFOLocked()
	case store.EvictionTTL:
		return s.selectTTLLocked()
	default:
		return s.selectLRULocked()
	}
}

func (s *Store) selectLRULocked() string {
	var victim string
	var oldest time.Time
	var oldestOrder uint64
	first := true
	for key, c := range s.companions {
		if first || c.lastAccess.Before(oldest) ||
			(c.lastAccess.Equal(oldest) && c.insertionOrder < oldestOrder) {
			victim, oldest, oldestOrder, first = key, c.lastAccess, c.insertionOrder, false
		}
	}
	return victim
}

func (s *Store) selectLFULocked() string {
	var victim string
	var minCount int64
	var oldest time.Time
	var oldestOrder uint64
	first := true
	for key, c := range s.companions {
		if first || c.accessCount < minCount ||
			(c.accessCount == minCount && c.lastAccess.Before(oldest)) ||
			(c.accessCount == minCount && c.lastAccess.Equal(oldest) && c.insertionOrder < oldestOrder) {
			victim, minCount, oldest, oldestOrder, first = key, c.accessCount, c.lastAccess, c.insertionOrder, false
		}
	}
	return victim
}

func (s *Store) selectFIFOLocked() string {
	var victim string
	var oldestOrder uint64
	first := true
	for key, c := range s.companions {
		if first || c.insertionOrder < oldestOrder {
			victim, oldestOrder, first = key, c.insertionOrder, false
		}
	}
	return victim
}

// selectTTLLocked prefers evicting the entry with the least remaining
// freshness lifetime (soonest to expire, or already most-expired first).
// Entries whose Cache-Control cannot be parsed into a computable freshness
// lifetime fall back to LRU ordering among themselves, per §4.14.
func (s *Store) selectTTLLocked() string {
	now := time.Now()
	var victim string
	var minRemaining time.Duration
	var fallbackOldest time.Time
	var fallbackOrder uint64
	haveCandidate := false
	haveFallback := false

	for key, c := range s.companions {
		e := s.entries[key]
		cc := e.CacheControl()
		lifetime, ok := freshness.FreshnessLifetime(cc, e.Header, s.cfg.CacheType, freshness.HeuristicOptions{}, e.ResponseTime)
		if !ok {
			if !haveFallback || c.lastAccess.Before(fallbackOldest) ||
				(c.lastAccess.Equal(fallbackOldest) && c.insertionOrder < fallbackOrder) {
				fallbackOldest, fallbackOrder, haveFallback = c.lastAccess, c.insertionOrder, true
				if !haveCandidate {
					victim = key
				}
			}
			continue
		}
		age := freshness.CurrentAge(e.Header, e.RequestTime, e.ResponseTime, now)
		remaining := lifetime - age
		if !haveCandidate || remaining < minRemaining {
			victim, minRemaining, haveCandidate = key, remaining, true
		}
	}
	if haveCandidate {
		return victim
	}
	return s.selectLRULocked()
}

func (s *Store) Remove(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false, nil
	}
	delete(s.entries, key)
	delete(s.companions, key)
	return true, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]store.Entry)
	s.companions = make(map[string]*companion)
	return nil
}

func (s *Store) ClearWhere(ctx context.Context, predicate func(store.Entry) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if predicate(e) {
			delete(s.entries, key)
			delete(s.companions, key)
		}
	}
	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *Store) Size(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Store) SizeInBytes(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentBytesLocked(), nil
}

func (s *Store) Close() error {
	return nil
}
