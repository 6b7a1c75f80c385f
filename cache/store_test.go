package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreBasics(t *testing.T) {
	store := NewMemoryStore(0, 0)
	entry := Entry{Document: map[string]any{"id": int64(1)}, CachedAt: time.Now()}

	if err := store.Put("GET:/users/1", entry); err != nil {
		t.Fatal(err)
	}
	got, ok := store.Get("GET:/users/1")
	if !ok {
		t.Fatal("entry should be present after put")
	}
	if got.Document.(map[string]any)["id"] != int64(1) {
		t.Fatalf("document is %v", got.Document)
	}

	store.Purge("GET:/users/1")
	if _, ok := store.Get("GET:/users/1"); ok {
		t.Fatal("entry should be gone after purge")
	}
}

func TestMemoryStoreBoundedSize(t *testing.T) {
	store := NewMemoryStore(3, 0)
	for i := 0; i < 10; i++ {
		store.Put(fmt.Sprintf("GET:/users/%d", i), Entry{CachedAt: time.Now()})
	}
	if store.Len() > 3 {
		t.Fatalf("store holds %d entries, bound is 3", store.Len())
	}
}

func TestMemoryStoreHardTTL(t *testing.T) {
	store := NewMemoryStore(10, 30*time.Millisecond)
	// entry with no per-entry expiry still falls to the hard cap
	store.Put("GET:/users/1", Entry{CachedAt: time.Now()})
	time.Sleep(60 * time.Millisecond)
	if _, ok := store.Get("GET:/users/1"); ok {
		t.Fatal("hard TTL cap should have dropped the entry")
	}
}

func TestMemoryStoreKeysAndClear(t *testing.T) {
	store := NewMemoryStore(0, 0)
	for i := 0; i < 3; i++ {
		store.Put(fmt.Sprintf("GET:/users/%d", i), Entry{CachedAt: time.Now()})
	}
	seen := 0
	store.Keys(func(string) { seen++ })
	if seen != 3 {
		t.Fatalf("saw %d keys", seen)
	}
	store.Clear()
	if store.Len() != 0 {
		t.Fatalf("store holds %d entries after clear", store.Len())
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(1000, 0)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("GET:/users/%d-%d", g, i)
				store.Put(key, Entry{CachedAt: time.Now()})
				// put then get on the same key must observe the write
				if _, ok := store.Get(key); !ok {
					t.Errorf("just-written key %s not visible", key)
					return
				}
				store.Purge(key)
			}
		}(g)
	}
	wg.Wait()
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore("file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	now := time.Now().Truncate(time.Second)
	entry := Entry{
		Document:     map[string]any{"id": int64(1), "tags": []any{"a", "b"}},
		ETag:         "abc123",
		LastModified: now,
		CachedAt:     now,
		ExpiresAt:    now.Add(time.Minute),
	}
	if err := store.Put("GET:/users/1", entry); err != nil {
		t.Fatal(err)
	}

	got, ok := store.Get("GET:/users/1")
	if !ok {
		t.Fatal("entry should be present")
	}
	doc := got.Document.(map[string]any)
	if doc["id"] != int64(1) {
		t.Fatalf("document is %v", doc)
	}
	if got.ETag != "abc123" {
		t.Fatalf("etag is %q", got.ETag)
	}
	if !got.ExpiresAt.Equal(entry.ExpiresAt) {
		t.Fatalf("expiry is %v, want %v", got.ExpiresAt, entry.ExpiresAt)
	}

	if store.Len() != 1 {
		t.Fatalf("store holds %d entries", store.Len())
	}
	store.Clear()
	if store.Len() != 0 {
		t.Fatal("clear should remove all entries")
	}
}
