// Package tiered composes a volatile L1 tier with a durable L2 tier into
// a single store.Storage, per spec §4.10: reads prefer L1 and promote an
// L2 hit into L1; writes go to both tiers, succeeding if either does.
//
// Grounded in the always-cache teacher's AlwaysCache facade (core/cache.go),
// which layers an in-memory lookup in front of its CacheProvider before
// falling through to the origin; this package generalizes that shape into
// an explicit two-tier store.Storage rather than a single-provider
// fallthrough.
package tiered

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/kallax-dev/httpcache/store"
)

// Store composes a volatile and a durable store.Storage into one.
type Store struct {
	l1 store.Storage
	l2 store.Storage
}

// New returns a tiered store.Storage reading L1-then-L2 and writing both.
func New(l1, l2 store.Storage) *Store {
	return &Store{l1: l1, l2: l2}
}

func (s *Store) Get(ctx context.Context, key string) (store.Entry, bool, error) {
	if e, ok, err := s.l1.Get(ctx, key); err != nil {
		return store.Entry{}, false, err
	} else if ok {
		return e, true, nil
	}

	e, ok, err := s.l2.Get(ctx, key)
	if err != nil {
		return store.Entry{}, false, err
	}
	if !ok {
		return store.Entry{}, false, nil
	}

	if _, promoteErr := s.l1.Put(ctx, key, e); promoteErr != nil {
		log.Debug().Err(promoteErr).Str("key", key).Msg("could not promote L2 hit into L1")
	}
	return e, true, nil
}

func (s *Store) Put(ctx context.Context, key string, e store.Entry) (bool, error) {
	l1ok, l1err := s.l1.Put(ctx, key, e)
	if l1err != nil {
		log.Debug().Err(l1err).Str("key", key).Msg("L1 put failed")
	}
	l2ok, l2err := s.l2.Put(ctx, key, e)
	if l2err != nil {
		return l1ok, l2err
	}
	return l1ok || l2ok, nil
}

func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	l1ok, l1err := s.l1.Remove(ctx, key)
	if l1err != nil {
		return false, l1err
	}
	l2ok, l2err := s.l2.Remove(ctx, key)
	if l2err != nil {
		return false, l2err
	}
	return l1ok || l2ok, nil
}

func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	if ok, err := s.l1.Contains(ctx, key); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	return s.l2.Contains(ctx, key)
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.l1.Clear(ctx); err != nil {
		return err
	}
	return s.l2.Clear(ctx)
}

func (s *Store) ClearWhere(ctx context.Context, predicate func(store.Entry) bool) error {
	if err := s.l1.ClearWhere(ctx, predicate); err != nil {
		return err
	}
	return s.l2.ClearWhere(ctx, predicate)
}

// Keys returns the union of both tiers' keys.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	l1Keys, err := s.l1.Keys(ctx)
	if err != nil {
		return nil, err
	}
	l2Keys, err := s.l2.Keys(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(l1Keys)+len(l2Keys))
	union := make([]string, 0, len(l1Keys)+len(l2Keys))
	for _, k := range l1Keys {
		if !seen[k] {
			seen[k] = true
			union = append(union, k)
		}
	}
	for _, k := range l2Keys {
		if !seen[k] {
			seen[k] = true
			union = append(union, k)
		}
	}
	return union, nil
}

// Size returns L2's entry count, authoritative per spec §4.10.
func (s *Store) Size(ctx context.Context) (int, error) {
	return s.l2.Size(ctx)
}

// SizeInBytes returns L2's byte footprint, authoritative per spec §4.10.
func (s *Store) SizeInBytes(ctx context.Context) (int64, error) {
	return s.l2.SizeInBytes(ctx)
}

func (s *Store) Close() error {
	l1err := s.l1.Close()
	l2err := s.l2.Close()
	if l1err != nil {
		return l1err
	}
	return l2err
}
