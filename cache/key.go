package cache

import (
	"sort"
	"strings"
)

// Key is the normalized identity of one cacheable request.
//
// String form: METHOD:/normalized/path?sorted&query&params[@user]
// (the brackets denote the optional per-user suffix). Two requests that
// differ only in query parameter order or method case produce the same
// key. Equality and map hashing use the composed string only, so Key is
// usable directly as a map key.
type Key struct {
	method string
	path   string
	query  string
	user   string
	key    string
}

// NewKey builds a normalized key from the raw request parts. The user
// identity is empty for shared entries.
func NewKey(method, path, rawQuery, user string) Key {
	k := Key{
		method: strings.ToUpper(method),
		path:   NormalizePath(path),
		query:  normalizeQuery(rawQuery),
		user:   user,
	}
	k.key = k.build()
	return k
}

// NormalizePath trims the path, ensures a leading slash and strips a
// trailing slash (the root path stays "/").
func NormalizePath(path string) string {
	normalized := strings.TrimSpace(path)
	if normalized == "" {
		return "/"
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if len(normalized) > 1 && strings.HasSuffix(normalized, "/") {
		normalized = normalized[:len(normalized)-1]
	}
	return normalized
}

// normalizeQuery splits the raw query on '&', drops blank tokens, sorts
// the rest lexicographically and rejoins them.
func normalizeQuery(rawQuery string) string {
	if strings.TrimSpace(rawQuery) == "" {
		return ""
	}
	tokens := make([]string, 0, 4)
	for _, token := range strings.Split(rawQuery, "&") {
		if strings.TrimSpace(token) == "" {
			continue
		}
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, "&")
}

func (k Key) build() string {
	var sb strings.Builder
	sb.WriteString(k.method)
	sb.WriteByte(':')
	sb.WriteString(k.path)
	if k.query != "" {
		sb.WriteByte('?')
		sb.WriteString(k.query)
	}
	if k.user != "" {
		sb.WriteByte('@')
		sb.WriteString(k.user)
	}
	return sb.String()
}

func (k Key) Method() string { return k.method }
func (k Key) Path() string   { return k.path }

// String returns the composed key.
func (k Key) String() string { return k.key }

// PathFromKey extracts the normalized path part of a composed key
// string, dropping the method prefix, query and user suffix.
func PathFromKey(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		key = key[i+1:]
	}
	if i := strings.IndexByte(key, '?'); i > 0 {
		return key[:i]
	}
	if i := strings.IndexByte(key, '@'); i > 0 {
		return key[:i]
	}
	return key
}
