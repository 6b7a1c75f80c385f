// Package prism is an HTTP middleware that lets clients select, via a
// compact header directive, exactly which fields of a JSON response
// they want. A response cache stores the full document so repeated
// requests with different field selections never recompute the
// underlying data.
package prism

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ohler55/ojg/oj"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prism-cache/prism/cache"
	"github.com/prism-cache/prism/core"
)

const (
	// DefaultHeaderName carries the projection directive.
	DefaultHeaderName = "X-Response-Fields"
	// DefaultUserHeader carries the user identity for per-user entries.
	DefaultUserHeader = "X-User-Id"
)

// Config configures a Prism instance.
type Config struct {
	// Manager is the response cache. Built from the fields below if nil.
	Manager *cache.Manager
	// Store for the built-in manager. A bounded memory store if nil.
	Store cache.Store
	// DefaultTTL and CollectionTTL for the built-in manager.
	DefaultTTL    time.Duration
	CollectionTTL time.Duration
	// DisableCache turns response caching off; projection still works
	// against fresh handler output on every request.
	DisableCache bool
	// DisableConditional turns off ETag / Last-Modified handling.
	DisableConditional bool
	// HeaderName for the directive. DefaultHeaderName if empty.
	HeaderName string
	// UserHeader for per-user identity. DefaultUserHeader if empty.
	UserHeader string
	// MaxDepth for projection traversal. core.DefaultMaxDepth if zero.
	MaxDepth int
	// DisableCycleDetection turns off visited-path tracking.
	DisableCycleDetection bool
	// DisableTraceIDs omits trace identifiers from logs and payloads.
	DisableTraceIDs bool
	// ArrayThreshold is the array size at which projection switches to
	// the compiled instruction list. core.DefaultArrayThreshold if zero.
	ArrayThreshold int
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Prism is one explicitly-owned middleware instance. Create it with
// New, keep a reference for eviction, and wire its Projected and
// Invalidate middlewares into the router at registration time.
type Prism struct {
	manager        *cache.Manager
	projector      *core.Projector
	headerName     string
	userHeader     string
	maxDepth       int
	cycleDetection bool
	traceIDs       bool
	cacheEnabled   bool
	log            zerolog.Logger
}

// New creates a Prism instance.
func New(config Config) *Prism {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	manager := config.Manager
	if manager == nil {
		manager = cache.NewManager(cache.ManagerConfig{
			Store:              config.Store,
			DefaultTTL:         config.DefaultTTL,
			CollectionTTL:      config.CollectionTTL,
			DisableConditional: config.DisableConditional,
			Logger:             &logger,
		})
	}
	headerName := config.HeaderName
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	userHeader := config.UserHeader
	if userHeader == "" {
		userHeader = DefaultUserHeader
	}
	return &Prism{
		manager:        manager,
		projector:      core.NewProjector(config.ArrayThreshold),
		headerName:     headerName,
		userHeader:     userHeader,
		maxDepth:       config.MaxDepth,
		cycleDetection: !config.DisableCycleDetection,
		traceIDs:       !config.DisableTraceIDs,
		cacheEnabled:   !config.DisableCache,
		log:            logger,
	}
}

// Manager returns the response cache for direct eviction calls from
// write-path handlers.
func (p *Prism) Manager() *cache.Manager {
	return p.manager
}

// Endpoint is the per-route metadata supplied at registration time.
type Endpoint struct {
	// TTL overrides the configured default when positive.
	TTL time.Duration
	// Collection marks the response as a collection, selecting the
	// collection default TTL.
	Collection bool
	// PerUser isolates cache entries by user identity. Requests
	// without an identity are rejected, never served from a shared
	// entry.
	PerUser bool
	// AllowedFields restricts which fields clients may request, in
	// directive syntax. Empty means all fields are projectable.
	AllowedFields []string
}

// Projected wraps a read handler with the projection pipeline:
// resolve document (cache or fresh) -> validate allow-list -> project
// -> serialize. The allow-list validator is built once here and shared
// read-only across requests.
//
// An invalid allow-list spec is a registration-time programming error
// and panics.
func (p *Prism) Projected(ep Endpoint) func(http.Handler) http.Handler {
	validator, err := core.NewValidator(ep.AllowedFields...)
	if err != nil {
		panic("prism: invalid allow-list spec: " + err.Error())
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p.serve(w, r, ep, validator, next)
		})
	}
}

func (p *Prism) serve(w http.ResponseWriter, r *http.Request, ep Endpoint, validator *core.Validator, next http.Handler) {
	traceID := ""
	if p.traceIDs {
		traceID = core.NewTraceID()
	}

	user := ""
	if ep.PerUser {
		user = r.Header.Get(p.userHeader)
		if user == "" {
			// fail closed: a shared entry would leak data across users
			p.log.Warn().
				Str("path", r.URL.Path).
				Str("header", p.userHeader).
				Msg("User identity required but not found")
			http.Error(w, "user identity required", http.StatusUnauthorized)
			return
		}
	}

	key := cache.NewKey(r.Method, r.URL.Path, r.URL.RawQuery, user)
	cacheable := p.cacheEnabled && (r.Method == http.MethodGet || r.Method == http.MethodHead)

	if cacheable {
		if entry, ok := p.manager.Get(key); ok {
			if p.notModified(r, key) {
				setValidatorHeaders(w.Header(), entry)
				w.WriteHeader(http.StatusNotModified)
				return
			}
			p.log.Trace().Str("key", key.String()).Str("traceId", traceID).Msg("Serving from cache")
			p.sendProjected(w, r, validator, entry.Document, entry, http.StatusOK, traceID)
			return
		}
	}

	rs := newResponseSaver()
	next.ServeHTTP(rs, r)

	// backend errors and non-JSON responses pass through untouched;
	// the engine only ever processes documents that represent success
	if rs.StatusCode() < 200 || rs.StatusCode() >= 300 ||
		!p.projector.Supports(rs.Header().Get("Content-Type")) {
		rs.replay(w)
		return
	}

	doc, err := oj.Parse(rs.Body())
	if err != nil {
		p.log.Warn().Err(err).Str("key", key.String()).Msg("Could not parse response body")
		rs.replay(w)
		return
	}

	var entry cache.Entry
	if cacheable {
		entry = p.manager.Put(key, doc, cache.PutOptions{TTL: ep.TTL, Collection: ep.Collection})
	}

	// keep the handler's headers; Content-Type is reset on serialization
	copyHeader(w.Header(), rs.Header())
	p.sendProjected(w, r, validator, doc, entry, rs.StatusCode(), traceID)
}

func (p *Prism) sendProjected(w http.ResponseWriter, r *http.Request, validator *core.Validator, doc any, entry cache.Entry, status int, traceID string) {
	result := doc

	if directive := r.Header.Get(p.headerName); strings.TrimSpace(directive) != "" {
		tree, err := core.Parse(directive)
		if err != nil {
			p.fail(w, err, traceID)
			return
		}
		if validator != nil {
			if err := validator.Validate(tree); err != nil {
				p.fail(w, err, traceID)
				return
			}
		}
		ctx := core.NewContext(core.ContextConfig{
			MaxDepth:       p.maxDepth,
			CycleDetection: p.cycleDetection,
			TraceID:        traceID,
		})
		result, err = p.projector.Project(doc, tree, ctx)
		if err != nil {
			p.fail(w, err, traceID)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	setValidatorHeaders(w.Header(), entry)
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		w.Write([]byte(oj.JSON(result)))
	}
}

func (p *Prism) fail(w http.ResponseWriter, err error, traceID string) {
	var perr core.ProjectionError
	if !errors.As(err, &perr) {
		// not part of the projection taxonomy; nothing to translate
		p.log.Error().Err(err).Str("traceId", traceID).Msg("Unexpected projection failure")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	p.log.Warn().
		Str("code", perr.Code()).
		Str("path", perr.Path()).
		Str("traceId", traceID).
		Msg("Projection failed")
	writeProjectionError(w, perr, traceID)
}

// notModified reports whether the request's conditional validators
// match the stored entry. If-None-Match takes precedence over
// If-Modified-Since.
func (p *Prism) notModified(r *http.Request, key cache.Key) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		return p.manager.ValidateETag(key, inm)
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil {
			return p.manager.ValidateLastModified(key, t)
		}
	}
	return false
}

func setValidatorHeaders(h http.Header, entry cache.Entry) {
	if entry.ETag != "" {
		h.Set("ETag", `"`+entry.ETag+`"`)
	}
	if !entry.LastModified.IsZero() {
		h.Set("Last-Modified", entry.LastModified.UTC().Format(http.TimeFormat))
	}
}

var placeholderPattern = regexp.MustCompile(`\{([^}]*)}`)

// Invalidate wraps a write handler so that, after the handler completes
// successfully (2xx), the given path templates are resolved against the
// route's URL parameters and the matching cache entries evicted. This
// is the explicit replacement for interception-style eviction: ordinary
// middleware composition at registration time.
//
//	r.With(p.Invalidate("/users/{id}", "/users")).Put("/users/{id}", updateUser)
//
// Placeholders with no matching URL parameter stay in the template and
// evict by pattern instead.
func (p *Prism) Invalidate(templates ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sr := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(sr, r)
			if sr.StatusCode() < 200 || sr.StatusCode() >= 300 {
				return
			}
			for _, template := range templates {
				resolved := resolveURLParams(template, r)
				if err := p.manager.EvictByPathPattern(resolved); err != nil {
					p.log.Error().Err(err).Str("pattern", resolved).Msg("Could not evict by pattern")
				}
			}
		})
	}
}

// resolveURLParams substitutes {name} placeholders with the values of
// the route's URL parameters, where available.
func resolveURLParams(template string, r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		if value := rctx.URLParam(name); value != "" {
			return value
		}
		return m
	})
}
