package cache

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/ohler55/ojg/oj"
)

// Store is an associative store from composed key strings to entries.
//
// Implementations must be safe for concurrent use: get, put and purge
// are atomic, and callers never coordinate access themselves. Keys
// iterates a snapshot of the live key set; keys inserted concurrently
// during an iteration are not guaranteed to be visited.
type Store interface {
	// Get returns the entry for the key, if present. Expiry is the
	// Manager's concern; stores only enforce their own hard bounds.
	Get(key string) (Entry, bool)
	// Put stores the entry, replacing any previous entry for the key.
	Put(key string, entry Entry) error
	// Purge removes the entry for the key, if present.
	Purge(key string)
	// Keys calls cb for each live key.
	Keys(cb func(string))
	// Len returns the number of live entries.
	Len() int
	// Clear removes all entries.
	Clear()
}

// DefaultMaxEntries bounds the memory store when no size is configured.
const DefaultMaxEntries = 10_000

// MemoryStore is the default in-process store: a bounded LRU with a
// hard upper-bound TTL that is independent of per-entry expiry. The
// hard cap is a safety net against unbounded growth, not the freshness
// policy; freshness is the per-entry ExpiresAt checked by the Manager.
type MemoryStore struct {
	lru *expirable.LRU[string, Entry]
}

// NewMemoryStore creates a memory store holding at most maxEntries
// entries, each dropped hardTTL after its write regardless of its own
// expiry. Non-positive maxEntries selects DefaultMaxEntries; a zero
// hardTTL disables the hard cap.
func NewMemoryStore(maxEntries int, hardTTL time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, Entry](maxEntries, nil, hardTTL),
	}
}

func (m *MemoryStore) Get(key string) (Entry, bool) {
	return m.lru.Get(key)
}

func (m *MemoryStore) Put(key string, entry Entry) error {
	m.lru.Add(key, entry)
	return nil
}

func (m *MemoryStore) Purge(key string) {
	m.lru.Remove(key)
}

func (m *MemoryStore) Keys(cb func(string)) {
	for _, key := range m.lru.Keys() {
		cb(key)
	}
}

func (m *MemoryStore) Len() int {
	return m.lru.Len()
}

func (m *MemoryStore) Clear() {
	m.lru.Purge()
}

// SQLiteStore persists entries across restarts. Documents are stored as
// their canonical JSON serialization and parsed back on read.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex sync.Mutex
}

// NewSQLiteStore opens (and if needed initializes) the database file.
// Use "file::memory:?cache=shared" for an in-memory database.
func NewSQLiteStore(filename string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS entries (key TEXT PRIMARY KEY, document BLOB, etag TEXT, last_modified INTEGER, cached_at INTEGER, expires_at INTEGER)",
		"CREATE INDEX IF NOT EXISTS expires_idx ON entries (expires_at)",
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(key string) (Entry, bool) {
	var document []byte
	var etag string
	var lastModified, cachedAt, expiresAt int64
	err := s.db.QueryRow(
		"SELECT document, etag, last_modified, cached_at, expires_at FROM entries WHERE key = ?", key).
		Scan(&document, &etag, &lastModified, &cachedAt, &expiresAt)
	if err != nil {
		return Entry{}, false
	}
	doc, err := oj.Parse(document)
	if err != nil {
		return Entry{}, false
	}
	entry := Entry{
		Document: doc,
		ETag:     etag,
		CachedAt: time.Unix(cachedAt, 0),
	}
	if lastModified != 0 {
		entry.LastModified = time.Unix(lastModified, 0)
	}
	if expiresAt != 0 {
		entry.ExpiresAt = time.Unix(expiresAt, 0)
	}
	return entry, true
}

func (s *SQLiteStore) Put(key string, entry Entry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	var lastModified, expiresAt int64
	if !entry.LastModified.IsZero() {
		lastModified = entry.LastModified.Unix()
	}
	if !entry.ExpiresAt.IsZero() {
		expiresAt = entry.ExpiresAt.Unix()
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO entries (key, document, etag, last_modified, cached_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)",
		key, []byte(oj.JSON(entry.Document)), entry.ETag, lastModified, entry.CachedAt.Unix(), expiresAt)
	return err
}

func (s *SQLiteStore) Purge(key string) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	s.db.Exec("DELETE FROM entries WHERE key = ?", key)
}

func (s *SQLiteStore) Keys(cb func(string)) {
	rows, err := s.db.Query("SELECT key FROM entries")
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return
		}
		cb(key)
	}
}

func (s *SQLiteStore) Len() int {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		return 0
	}
	return count
}

func (s *SQLiteStore) Clear() {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	s.db.Exec("DELETE FROM entries")
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
