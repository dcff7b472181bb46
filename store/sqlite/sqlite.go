// Package sqlite implements the durable (L2) storage tier on top of a
// single SQLite table, using the CGo-free glebarez/go-sqlite driver.
//
// Grounded in the always-cache teacher's SQLiteCache (core/cache-provider.go),
// generalized from its single key/expires/bytes table to the full entry
// schema in spec §4.9 (method, uri, status, headers, body, vary, access
// bookkeeping), with encoding/gob replacing the teacher's reliance on a
// single opaque []byte blob so that header and Vary maps round-trip
// byte-exactly.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"sync"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rs/zerolog/log"

	"github.com/kallax-dev/httpcache/header"
	"github.com/kallax-dev/httpcache/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key           TEXT PRIMARY KEY,
	method        TEXT NOT NULL,
	uri           TEXT NOT NULL,
	status_code   INTEGER NOT NULL,
	headers       BLOB NOT NULL,
	body          BLOB NOT NULL,
	request_time  INTEGER NOT NULL,
	response_time INTEGER NOT NULL,
	vary_headers  BLOB,
	is_incomplete INTEGER NOT NULL DEFAULT 0,
	content_range TEXT NOT NULL DEFAULT '',
	is_invalid    INTEGER NOT NULL DEFAULT 0,
	size          INTEGER NOT NULL,
	access_time   INTEGER NOT NULL,
	access_count  INTEGER NOT NULL DEFAULT 0,
	created_time  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_access_time  ON cache_entries (access_time);
CREATE INDEX IF NOT EXISTS idx_cache_entries_access_count ON cache_entries (access_count);
CREATE INDEX IF NOT EXISTS idx_cache_entries_created_time ON cache_entries (created_time);
`

// headerPayload is the gob-serializable form of header.Map, round-tripping
// names and values byte-exactly including original casing.
type headerPayload struct {
	Values   map[string]string
	Original map[string]string
}

func encodeHeader(h header.Map) ([]byte, error) {
	payload := headerPayload{Values: map[string]string{}, Original: map[string]string{}}
	h.ForEach(func(name, value string) {
		payload.Original[name] = name
		payload.Values[name] = value
	})
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHeader(data []byte) (header.Map, error) {
	h := header.New()
	if len(data) == 0 {
		return h, nil
	}
	var payload headerPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return header.Map{}, err
	}
	for name, value := range payload.Values {
		h = h.Set(name, value)
	}
	return h, nil
}

func encodeVary(vary map[string]string) ([]byte, error) {
	if vary == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vary); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVary(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var vary map[string]string
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vary); err != nil {
		return nil, err
	}
	return vary, nil
}

// Config controls the durable tier's capacity bounds and eviction policy,
// mirroring the volatile tier's store/memory.Config so both tiers honor
// the same capacity contract (spec §4.7/§4.8/§4.9).
type Config struct {
	MaxEntries int
	MaxBytes   int64
	Strategy   store.EvictionStrategy
}

// evictColumn maps an EvictionStrategy onto the index column EvictOldest
// orders by. TTL has no cheap SQL expression of remaining freshness
// lifetime, so it falls back to access_time (LRU) the way the volatile
// tier falls back to LRU when freshness cannot be computed.
func evictColumn(strategy store.EvictionStrategy) string {
	switch strategy {
	case store.EvictionLFU:
		return "access_count"
	case store.EvictionFIFO:
		return "created_time"
	default:
		return "access_time"
	}
}

// Store is the durable L2 tier.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	cfg Config
}

// Open opens (creating if necessary) a SQLite-backed durable tier at the
// given DSN, e.g. "./httpcache.db" or ":memory:", bounded by cfg.
func Open(dsn string, cfg Config) (*Store, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 50 * 1024 * 1024
	}
	if cfg.Strategy == "" {
		cfg.Strategy = store.EvictionLRU
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store open %q: %w", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store migrate: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("could not enable WAL journal mode")
	}
	return &Store{db: db, cfg: cfg}, nil
}

func (s *Store) Get(ctx context.Context, key string) (store.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT method, uri, status_code, headers, body, request_time, response_time,
		       vary_headers, is_incomplete, content_range, is_invalid
		FROM cache_entries WHERE key = ?`, key)

	var e store.Entry
	var headerBlob, varyBlob []byte
	var requestTime, responseTime int64
	var isIncomplete, isInvalid int

	err := row.Scan(&e.Method, &e.URI, &e.StatusCode, &headerBlob, &e.Body, &requestTime, &responseTime,
		&varyBlob, &isIncomplete, &e.ContentRange, &isInvalid)
	if err == sql.ErrNoRows {
		return store.Entry{}, false, nil
	}
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("sqlite store get %q: %w", key, err)
	}

	e.Header, err = decodeHeader(headerBlob)
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("sqlite store get %q: decode headers: %w", key, err)
	}
	e.VaryHeaders, err = decodeVary(varyBlob)
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("sqlite store get %q: decode vary: %w", key, err)
	}
	e.RequestTime = fromUnixNano(requestTime)
	e.ResponseTime = fromUnixNano(responseTime)
	e.IsIncomplete = isIncomplete != 0
	e.IsInvalid = isInvalid != 0

	s.touch(ctx, key)
	return e, true, nil
}

// touch updates access bookkeeping best-effort; a failure here must not
// fail the read it accompanies.
func (s *Store) touch(ctx context.Context, key string) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET access_time = ?, access_count = access_count + 1 WHERE key = ?`,
		nowUnixNano(), key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("could not update access bookkeeping")
	}
}

func (s *Store) Put(ctx context.Context, key string, e store.Entry) (bool, error) {
	size := int64(e.Size())
	if size > s.cfg.MaxBytes {
		return false, fmt.Errorf("sqlite store put %q: %w", key, store.ErrTooLarge)
	}

	headerBlob, err := encodeHeader(e.Header)
	if err != nil {
		return false, fmt.Errorf("sqlite store put %q: encode headers: %w", key, err)
	}
	varyBlob, err := encodeVary(e.VaryHeaders)
	if err != nil {
		return false, fmt.Errorf("sqlite store put %q: encode vary: %w", key, err)
	}
	body := e.Body
	if body == nil {
		body = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.makeRoomLocked(ctx, key, size); err != nil {
		return false, fmt.Errorf("sqlite store put %q: %w", key, err)
	}

	now := nowUnixNano()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries
			(key, method, uri, status_code, headers, body, request_time, response_time,
			 vary_headers, is_incomplete, content_range, is_invalid, size, access_time, access_count, created_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(key) DO UPDATE SET
			method=excluded.method, uri=excluded.uri, status_code=excluded.status_code,
			headers=excluded.headers, body=excluded.body, request_time=excluded.request_time,
			response_time=excluded.response_time, vary_headers=excluded.vary_headers,
			is_incomplete=excluded.is_incomplete, content_range=excluded.content_range,
			is_invalid=excluded.is_invalid, size=excluded.size, access_time=excluded.access_time`,
		key, e.Method, e.URI, e.StatusCode, headerBlob, body,
		e.RequestTime.UnixNano(), e.ResponseTime.UnixNano(), varyBlob,
		boolToInt(e.IsIncomplete), e.ContentRange, boolToInt(e.IsInvalid), size, now, now)
	if err != nil {
		return false, fmt.Errorf("sqlite store put %q: %w", key, err)
	}
	return true, nil
}

// makeRoomLocked deletes any existing row under key (a Put to an
// existing key replaces rather than adds, so its old size must not count
// twice), then evicts via EvictOldest, oldest-first per s.cfg.Strategy,
// until an entry of newSize would fit within s.cfg.MaxEntries and
// s.cfg.MaxBytes. Assumes s.mu is held.
func (s *Store) makeRoomLocked(ctx context.Context, key string, newSize int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove existing entry: %w", err)
	}

	column := evictColumn(s.cfg.Strategy)
	for {
		count, err := s.Size(ctx)
		if err != nil {
			return err
		}
		bytes, err := s.SizeInBytes(ctx)
		if err != nil {
			return err
		}
		if count+1 <= s.cfg.MaxEntries && bytes+newSize <= s.cfg.MaxBytes {
			return nil
		}
		evicted, err := s.EvictOldest(ctx, column)
		if err != nil {
			return err
		}
		if !evicted {
			return nil
		}
	}
}

func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("sqlite store remove %q: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite store remove %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM cache_entries WHERE key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite store contains %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("sqlite store clear: %w", err)
	}
	return nil
}

func (s *Store) ClearWhere(ctx context.Context, predicate func(store.Entry) bool) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM cache_entries`)
	if err != nil {
		return fmt.Errorf("sqlite store clearWhere: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite store clearWhere: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, ok, err := s.Get(ctx, key)
		if err != nil {
			return err
		}
		if ok && predicate(e) {
			if _, err := s.Remove(ctx, key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("sqlite store keys: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Store) Size(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite store size: %w", err)
	}
	return n, nil
}

func (s *Store) SizeInBytes(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT SUM(size) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite store sizeInBytes: %w", err)
	}
	return n.Int64, nil
}

// EvictOldest removes the single row ordered earliest by the given index
// column ("access_time", "access_count", or "created_time"), per spec
// §4.9's eviction-query contract. It reports whether a row was evicted.
func (s *Store) EvictOldest(ctx context.Context, orderBy string) (bool, error) {
	switch orderBy {
	case "access_time", "access_count", "created_time":
	default:
		return false, fmt.Errorf("sqlite store evictOldest: unsupported order column %q", orderBy)
	}
	var key string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT key FROM cache_entries ORDER BY %s ASC LIMIT 1`, orderBy)).Scan(&key)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite store evictOldest: %w", err)
	}
	return s.Remove(ctx, key)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
