package core

import (
	"errors"
	"testing"
)

func TestContextDescendAscend(t *testing.T) {
	ctx := NewContext(ContextConfig{MaxDepth: 3})

	if ctx.Depth() != 0 || ctx.Path() != "" {
		t.Fatalf("fresh context has depth %d path %q", ctx.Depth(), ctx.Path())
	}

	if err := ctx.Descend("profile"); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Descend("settings"); err != nil {
		t.Fatal(err)
	}
	if ctx.Depth() != 2 || ctx.Path() != "profile.settings" {
		t.Fatalf("depth %d path %q", ctx.Depth(), ctx.Path())
	}

	ctx.Ascend()
	if ctx.Depth() != 1 || ctx.Path() != "profile" {
		t.Fatalf("after ascend: depth %d path %q", ctx.Depth(), ctx.Path())
	}
	ctx.Ascend()
	ctx.MustBeBalanced()
}

func TestContextAscendOnEmptyStackIsNoop(t *testing.T) {
	ctx := NewContext(ContextConfig{})
	ctx.Ascend()
	if ctx.Depth() != 0 {
		t.Fatalf("depth is %d", ctx.Depth())
	}
}

func TestContextDepthExceeded(t *testing.T) {
	ctx := NewContext(ContextConfig{MaxDepth: 2})
	if err := ctx.Descend("a"); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Descend("b"); err != nil {
		t.Fatal(err)
	}

	err := ctx.Descend("c")
	var depthErr *DepthExceededError
	if !errors.As(err, &depthErr) {
		t.Fatalf("got %T, want *DepthExceededError", err)
	}
	if depthErr.FieldPath != "a.b.c" || depthErr.MaxDepth != 2 || depthErr.Depth != 3 {
		t.Fatalf("error is %+v", depthErr)
	}

	// the failed descend must not have mutated state
	if ctx.Depth() != 2 || ctx.Path() != "a.b" {
		t.Fatalf("depth %d path %q after failed descend", ctx.Depth(), ctx.Path())
	}

	// ascend still returns to the prior depth
	ctx.Ascend()
	if ctx.Depth() != 1 || ctx.Path() != "a" {
		t.Fatalf("depth %d path %q after ascend", ctx.Depth(), ctx.Path())
	}
}

func TestContextCycleDetection(t *testing.T) {
	ctx := NewContext(ContextConfig{MaxDepth: 10, CycleDetection: true})
	if err := ctx.Descend("node"); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Descend("child"); err != nil {
		t.Fatal(err)
	}
	// node.child.child is a distinct path, not a cycle
	if err := ctx.Descend("child"); err == nil {
		ctx.Ascend()
	} else {
		t.Fatalf("distinct path flagged as cycle: %v", err)
	}

	// leaving and re-entering the same path is fine
	ctx.Ascend()
	if err := ctx.Descend("child"); err != nil {
		t.Fatalf("revisit after ascend flagged as cycle: %v", err)
	}
}

func TestContextCycleDetected(t *testing.T) {
	ctx := NewContext(ContextConfig{MaxDepth: 10, CycleDetection: true})

	// simulate a traversal that arrives at the exact same path twice
	// without ascending in between
	if err := ctx.Descend("a"); err != nil {
		t.Fatal(err)
	}
	ctx.pathStack = ctx.pathStack[:0]
	err := ctx.Descend("a")

	var cycleErr *CycleDetectedError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("got %T, want *CycleDetectedError", err)
	}
	if cycleErr.FieldPath != "a" {
		t.Fatalf("cycle path is %q", cycleErr.FieldPath)
	}
}

func TestContextBuildPathDoesNotMutate(t *testing.T) {
	ctx := NewContext(ContextConfig{})
	if got := ctx.BuildPath("id"); got != "id" {
		t.Fatalf("BuildPath at root is %q", got)
	}
	if err := ctx.Descend("profile"); err != nil {
		t.Fatal(err)
	}
	if got := ctx.BuildPath("bio"); got != "profile.bio" {
		t.Fatalf("BuildPath is %q", got)
	}
	if ctx.Depth() != 1 {
		t.Fatalf("BuildPath mutated depth to %d", ctx.Depth())
	}
}

func TestContextBlankNamePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Descend with blank name should panic")
		}
	}()
	NewContext(ContextConfig{}).Descend(" ")
}
