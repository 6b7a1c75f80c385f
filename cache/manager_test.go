package cache

import (
	"fmt"
	"testing"
	"time"
)

func newTestManager(opts ...func(*ManagerConfig)) *Manager {
	config := ManagerConfig{Store: NewMemoryStore(0, 0)}
	for _, opt := range opts {
		opt(&config)
	}
	return NewManager(config)
}

func TestManagerPutGet(t *testing.T) {
	m := newTestManager()
	key := NewKey("GET", "/users/1", "", "")
	doc := map[string]any{"id": int64(1), "name": "x"}

	m.Put(key, doc, PutOptions{})

	entry, ok := m.Get(key)
	if !ok {
		t.Fatal("entry should be retrievable immediately")
	}
	if entry.Document.(map[string]any)["name"] != "x" {
		t.Fatalf("document is %v", entry.Document)
	}
	if entry.ETag == "" || entry.LastModified.IsZero() {
		t.Fatal("conditional validators should be generated by default")
	}
}

func TestManagerTTLExpiry(t *testing.T) {
	m := newTestManager()
	key := NewKey("GET", "/users/1", "", "")

	m.Put(key, map[string]any{"id": int64(1)}, PutOptions{TTL: 30 * time.Millisecond})

	if _, ok := m.Get(key); !ok {
		t.Fatal("entry should be retrievable before expiry")
	}
	time.Sleep(50 * time.Millisecond)
	if _, ok := m.Get(key); ok {
		t.Fatal("expired entry should be absent")
	}
	// the expired entry must also have been purged from the store
	if m.Len() != 0 {
		t.Fatalf("store still holds %d entries", m.Len())
	}
}

func TestManagerReplaceOnRewrite(t *testing.T) {
	m := newTestManager()
	key := NewKey("GET", "/users/1", "", "")

	m.Put(key, map[string]any{"v": int64(1)}, PutOptions{})
	m.Put(key, map[string]any{"v": int64(2)}, PutOptions{})

	entry, ok := m.Get(key)
	if !ok || entry.Document.(map[string]any)["v"] != int64(2) {
		t.Fatalf("re-write should replace, got %v", entry.Document)
	}
	if m.Len() != 1 {
		t.Fatalf("store holds %d entries", m.Len())
	}
}

func TestManagerDisableConditional(t *testing.T) {
	m := newTestManager(func(c *ManagerConfig) { c.DisableConditional = true })
	key := NewKey("GET", "/users/1", "", "")

	entry := m.Put(key, map[string]any{"id": int64(1)}, PutOptions{})
	if entry.HasValidators() {
		t.Fatal("validators should not be generated when disabled")
	}
	if m.ValidateETag(key, `"whatever"`) {
		t.Fatal("validation should fail when disabled")
	}
}

func TestManagerValidateETag(t *testing.T) {
	m := newTestManager()
	key := NewKey("GET", "/users/1", "", "")
	entry := m.Put(key, map[string]any{"id": int64(1)}, PutOptions{})

	accepted := []string{
		entry.ETag,
		fmt.Sprintf("%q", entry.ETag),
		"W/" + fmt.Sprintf("%q", entry.ETag),
		"W/" + entry.ETag,
		"  " + entry.ETag + "  ",
	}
	for _, tag := range accepted {
		if !m.ValidateETag(key, tag) {
			t.Fatalf("tag %q should validate", tag)
		}
	}
	for _, tag := range []string{"", "other", `"other"`, "W/"} {
		if m.ValidateETag(key, tag) {
			t.Fatalf("tag %q should not validate", tag)
		}
	}
}

func TestManagerETagDeterministic(t *testing.T) {
	a := GenerateETag(map[string]any{"b": int64(2), "a": int64(1)})
	b := GenerateETag(map[string]any{"a": int64(1), "b": int64(2)})
	if a != b {
		t.Fatal("etag must not depend on map iteration order")
	}
	if a == GenerateETag(map[string]any{"a": int64(1), "b": int64(3)}) {
		t.Fatal("different documents should produce different etags")
	}
}

func TestManagerValidateLastModified(t *testing.T) {
	m := newTestManager()
	key := NewKey("GET", "/users/1", "", "")
	entry := m.Put(key, map[string]any{"id": int64(1)}, PutOptions{})

	if !m.ValidateLastModified(key, entry.LastModified) {
		t.Fatal("exact timestamp should validate")
	}
	if !m.ValidateLastModified(key, entry.LastModified.Add(time.Hour)) {
		t.Fatal("later timestamp should validate")
	}
	if m.ValidateLastModified(key, entry.LastModified.Add(-time.Hour)) {
		t.Fatal("earlier timestamp should not validate")
	}
	if m.ValidateLastModified(key, time.Time{}) {
		t.Fatal("zero timestamp should not validate")
	}
}

func TestManagerCollectionTTL(t *testing.T) {
	m := newTestManager(func(c *ManagerConfig) {
		c.DefaultTTL = time.Hour
		c.CollectionTTL = 30 * time.Millisecond
	})
	single := NewKey("GET", "/users/1", "", "")
	list := NewKey("GET", "/users", "", "")

	m.Put(single, map[string]any{"id": int64(1)}, PutOptions{})
	m.Put(list, []any{}, PutOptions{Collection: true})

	time.Sleep(50 * time.Millisecond)
	if _, ok := m.Get(single); !ok {
		t.Fatal("single entry should still be fresh")
	}
	if _, ok := m.Get(list); ok {
		t.Fatal("collection entry should have expired")
	}
}

func TestManagerEvictExact(t *testing.T) {
	m := newTestManager()
	one := NewKey("GET", "/users/1", "", "")
	two := NewKey("GET", "/users/2", "", "")
	m.Put(one, map[string]any{}, PutOptions{})
	m.Put(two, map[string]any{}, PutOptions{})

	if err := m.EvictByPathPattern("/users/1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(one); ok {
		t.Fatal("exact entry should be evicted")
	}
	if _, ok := m.Get(two); !ok {
		t.Fatal("other entries must survive an exact eviction")
	}
}

func TestManagerEvictExactCoversHead(t *testing.T) {
	m := newTestManager()
	head := NewKey("HEAD", "/users/1", "", "")
	post := NewKey("POST", "/users/1", "", "")
	m.Put(head, map[string]any{}, PutOptions{})
	m.Put(post, map[string]any{}, PutOptions{})

	if err := m.EvictByPathPattern("/users/1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(head); ok {
		t.Fatal("HEAD entry should be evicted")
	}
	if _, ok := m.Get(post); !ok {
		t.Fatal("exact eviction only covers GET and HEAD")
	}
}

func TestManagerEvictByPattern(t *testing.T) {
	m := newTestManager()
	keys := []Key{
		NewKey("GET", "/users/1", "", ""),
		NewKey("GET", "/users/2", "fields=a", ""),
		NewKey("GET", "/users/1/orders", "", ""),
		NewKey("GET", "/teams/1", "", ""),
	}
	for _, key := range keys {
		m.Put(key, map[string]any{}, PutOptions{})
	}

	if err := m.EvictByPathPattern("/users/{id}"); err != nil {
		t.Fatal(err)
	}

	if _, ok := m.Get(keys[0]); ok {
		t.Fatal("/users/1 should be evicted")
	}
	if _, ok := m.Get(keys[1]); ok {
		t.Fatal("/users/2 should be evicted regardless of query")
	}
	if _, ok := m.Get(keys[2]); !ok {
		t.Fatal("placeholder must not match across segments")
	}
	if _, ok := m.Get(keys[3]); !ok {
		t.Fatal("unrelated paths must survive")
	}
}

func TestManagerEvictByPatternUnsanitizableName(t *testing.T) {
	m := newTestManager()
	key := NewKey("GET", "/users/1", "", "")
	m.Put(key, map[string]any{}, PutOptions{})

	// the placeholder name degrades to an unnamed capture, never an error
	if err := m.EvictByPathPattern("/users/{%%}"); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(key); ok {
		t.Fatal("entry should be evicted")
	}
}

func TestManagerEvictAll(t *testing.T) {
	m := newTestManager()
	for i := 0; i < 5; i++ {
		m.Put(NewKey("GET", fmt.Sprintf("/users/%d", i), "", ""), map[string]any{}, PutOptions{})
	}
	m.EvictAll()
	if m.Len() != 0 {
		t.Fatalf("store still holds %d entries", m.Len())
	}
}
