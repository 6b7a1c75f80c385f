package cache

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Manager stores full response documents keyed by request identity.
//
// Responsibilities: TTL-based expiry, ETag generation and validation,
// and eviction by key or by path pattern. The underlying Store handles
// its own synchronization, so a Manager is safe for concurrent use.
type Manager struct {
	store         Store
	defaultTTL    time.Duration
	collectionTTL time.Duration
	conditional   bool
	log           zerolog.Logger
}

// ManagerConfig configures a cache Manager.
type ManagerConfig struct {
	// Store holds the entries. A bounded MemoryStore is created when nil.
	Store Store
	// DefaultTTL applies when an endpoint gives no override.
	// Zero means DefaultTTL (60s).
	DefaultTTL time.Duration
	// CollectionTTL applies to collection endpoints with no override.
	// Zero means DefaultCollectionTTL (10s).
	CollectionTTL time.Duration
	// DisableConditional turns off ETag / Last-Modified generation.
	DisableConditional bool
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

const (
	// DefaultTTL is the per-entry lifetime when nothing else applies.
	DefaultTTL = 60 * time.Second
	// DefaultCollectionTTL is the per-entry lifetime for collections.
	DefaultCollectionTTL = 10 * time.Second
)

// NewManager creates a cache manager. With a nil Store it uses a
// MemoryStore bounded to DefaultMaxEntries, with a hard TTL cap of
// twice the default TTL as a safety net against unbounded growth.
func NewManager(config ManagerConfig) *Manager {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultTTL
	}
	if config.CollectionTTL <= 0 {
		config.CollectionTTL = DefaultCollectionTTL
	}
	if config.Store == nil {
		config.Store = NewMemoryStore(DefaultMaxEntries, 2*config.DefaultTTL)
	}
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	return &Manager{
		store:         config.Store,
		defaultTTL:    config.DefaultTTL,
		collectionTTL: config.CollectionTTL,
		conditional:   !config.DisableConditional,
		log:           logger,
	}
}

// Get returns the entry for the key. Expired entries are treated as
// absent and proactively purged.
func (m *Manager) Get(key Key) (Entry, bool) {
	entry, ok := m.store.Get(key.String())
	if !ok {
		return Entry{}, false
	}
	if entry.Expired(time.Now()) {
		m.store.Purge(key.String())
		m.log.Debug().Str("key", key.String()).Msg("Cache entry expired")
		return Entry{}, false
	}
	m.log.Debug().Str("key", key.String()).Msg("Cache hit")
	return entry, true
}

// PutOptions carries the endpoint metadata relevant to storage.
type PutOptions struct {
	// TTL overrides the configured defaults when positive.
	TTL time.Duration
	// Collection selects the collection default TTL.
	Collection bool
}

// Put stores the full document under the key. The effective TTL is the
// override if positive, otherwise the collection or plain default.
// When conditional validators are enabled, an ETag (hex MD5 of the
// canonical serialization) and a Last-Modified timestamp are generated.
func (m *Manager) Put(key Key, document any, opts PutOptions) Entry {
	now := time.Now()
	entry := Entry{
		Document:  document,
		CachedAt:  now,
		ExpiresAt: now.Add(m.effectiveTTL(opts)),
	}
	if m.conditional {
		entry.ETag = GenerateETag(document)
		// HTTP dates have second granularity
		entry.LastModified = now.Truncate(time.Second)
	}
	if err := m.store.Put(key.String(), entry); err != nil {
		m.log.Error().Err(err).Str("key", key.String()).Msg("Could not write to cache")
		return entry
	}
	m.log.Debug().
		Str("key", key.String()).
		Time("expiry", entry.ExpiresAt).
		Msg("Cache write")
	return entry
}

func (m *Manager) effectiveTTL(opts PutOptions) time.Duration {
	if opts.TTL > 0 {
		return opts.TTL
	}
	if opts.Collection {
		return m.collectionTTL
	}
	return m.defaultTTL
}

// ValidateETag reports whether the client-supplied validator matches
// the stored entry's ETag. The client tag is accepted with or without
// surrounding quotes and with or without a leading weak-validator
// marker; any other value is rejected.
func (m *Manager) ValidateETag(key Key, clientETag string) bool {
	if !m.conditional || clientETag == "" {
		return false
	}
	entry, ok := m.Get(key)
	if !ok || entry.ETag == "" {
		return false
	}
	normalized := NormalizeETag(clientETag)
	return normalized != "" && normalized == entry.ETag
}

// ValidateLastModified reports whether the stored entry has not been
// modified after the client-supplied timestamp.
func (m *Manager) ValidateLastModified(key Key, clientTime time.Time) bool {
	if !m.conditional || clientTime.IsZero() {
		return false
	}
	entry, ok := m.Get(key)
	if !ok || entry.LastModified.IsZero() {
		return false
	}
	return !clientTime.Before(entry.LastModified)
}

// Evict removes the entry for the key, if present.
func (m *Manager) Evict(key Key) {
	m.store.Purge(key.String())
	m.log.Debug().Str("key", key.String()).Msg("Evicted cache entry")
}

// EvictByPathPattern removes entries whose path matches the template.
//
// A template with {placeholder} segments matches each placeholder
// against one path segment and sweeps every stored key, regardless of
// method or user suffix. A template without placeholders evicts only
// the exact normalized path, for GET and HEAD.
//
// The sweep iterates the live key set at call time; keys inserted
// concurrently are not guaranteed to be included.
func (m *Manager) EvictByPathPattern(template string) error {
	if !hasPlaceholders(template) {
		path := NormalizePath(template)
		for _, method := range []string{"GET", "HEAD"} {
			m.Evict(NewKey(method, path, "", ""))
		}
		return nil
	}

	pattern, err := compilePathPattern(template)
	if err != nil {
		return err
	}

	matched := make([]string, 0)
	m.store.Keys(func(key string) {
		if pattern.MatchString(PathFromKey(key)) {
			matched = append(matched, key)
		}
	})
	for _, key := range matched {
		m.store.Purge(key)
		m.log.Debug().Str("pattern", template).Str("key", key).Msg("Evicted by pattern")
	}
	return nil
}

// EvictAll removes every entry.
func (m *Manager) EvictAll() {
	m.store.Clear()
	m.log.Debug().Msg("Evicted all cache entries")
}

// Len returns the number of live entries.
func (m *Manager) Len() int {
	return m.store.Len()
}

// GenerateETag returns the strong validator for a document: the hex MD5
// of its canonical (key-sorted) JSON serialization.
func GenerateETag(document any) string {
	canonical := oj.JSON(document, &ojg.Options{Sort: true})
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// NormalizeETag strips an optional weak-validator marker and optional
// surrounding quotes from a client-supplied tag. Returns "" for blank
// input.
func NormalizeETag(etag string) string {
	normalized := strings.TrimSpace(etag)
	if strings.HasPrefix(normalized, "W/") {
		normalized = strings.TrimSpace(normalized[2:])
	}
	if len(normalized) >= 2 && strings.HasPrefix(normalized, `"`) && strings.HasSuffix(normalized, `"`) {
		normalized = normalized[1 : len(normalized)-1]
	}
	return normalized
}
