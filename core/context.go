package core

import (
	"strings"

	"github.com/google/uuid"
)

// Context is the per-request traversal guard. It tracks the current
// descent path and depth, and optionally the set of visited paths for
// cycle detection.
//
// A Context must not be shared across concurrent projections; create a
// fresh one per top-level Project call. Paths are materialized lazily
// from the stack, so the hot path never concatenates strings.
type Context struct {
	traceID        string
	maxDepth       int
	cycleDetection bool

	pathStack    []string
	visitedPaths map[string]struct{}
}

// ContextConfig configures a traversal Context.
type ContextConfig struct {
	// MaxDepth is the maximum nesting depth. Zero means DefaultMaxDepth.
	MaxDepth int
	// CycleDetection tracks visited paths and fails on revisits.
	CycleDetection bool
	// TraceID is attached to error payloads. Leave empty for none,
	// or use NewTraceID for a generated one.
	TraceID string
}

// DefaultMaxDepth is the maximum nesting depth used when none is configured.
const DefaultMaxDepth = 5

// NewContext creates a fresh traversal context.
func NewContext(cfg ContextConfig) *Context {
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	ctx := &Context{
		traceID:        cfg.TraceID,
		maxDepth:       maxDepth,
		cycleDetection: cfg.CycleDetection,
	}
	if cfg.CycleDetection {
		ctx.visitedPaths = make(map[string]struct{})
	}
	return ctx
}

// NewTraceID returns a short identifier for correlating one projection's
// log lines and error payload.
func NewTraceID() string {
	return uuid.NewString()[:8]
}

// TraceID returns the identifier given at construction, possibly empty.
func (c *Context) TraceID() string {
	return c.traceID
}

// Depth returns the current descent depth.
func (c *Context) Depth() int {
	return len(c.pathStack)
}

// Path materializes the current descent path as a dotted string.
func (c *Context) Path() string {
	return strings.Join(c.pathStack, ".")
}

// Descend pushes a field onto the path stack. Depth and cycle
// constraints are checked before any state mutation, so a failed
// Descend leaves the context exactly as it was.
//
// A blank field name is a programming error and panics.
func (c *Context) Descend(name string) error {
	if strings.TrimSpace(name) == "" {
		panic("core: field name must not be blank")
	}

	newDepth := len(c.pathStack) + 1
	if newDepth > c.maxDepth {
		return &DepthExceededError{
			FieldPath: c.BuildPath(name),
			MaxDepth:  c.maxDepth,
			Depth:     newDepth,
		}
	}

	if c.cycleDetection {
		prospective := c.BuildPath(name)
		if _, seen := c.visitedPaths[prospective]; seen {
			return &CycleDetectedError{FieldPath: prospective}
		}
		c.visitedPaths[prospective] = struct{}{}
	}

	c.pathStack = append(c.pathStack, name)
	return nil
}

// Ascend pops the top of the path stack. Calling Ascend on an empty
// stack is a no-op; every Descend must still be matched by exactly one
// Ascend for the context state to stay meaningful.
func (c *Context) Ascend() {
	if len(c.pathStack) == 0 {
		return
	}
	if c.cycleDetection {
		delete(c.visitedPaths, c.Path())
	}
	c.pathStack = c.pathStack[:len(c.pathStack)-1]
}

// BuildPath returns what the full path would be if name were appended,
// without mutating state. Used to report the path of a field that
// turned out to be missing.
//
// A blank field name is a programming error and panics.
func (c *Context) BuildPath(name string) string {
	if strings.TrimSpace(name) == "" {
		panic("core: field name must not be blank")
	}
	if len(c.pathStack) == 0 {
		return name
	}
	return c.Path() + "." + name
}

// MustBeBalanced panics unless every Descend has been matched by an
// Ascend. Intended for tests and debug assertions after a projection.
func (c *Context) MustBeBalanced() {
	if len(c.pathStack) != 0 {
		panic("core: unbalanced Descend/Ascend, path stack is " + c.Path())
	}
}
