package core

import "strings"

// Tree is a whitelist of fields to keep from a document.
//
// Structure for the directive "id,name,profile(avatar,bio)":
//
//	ROOT
//	 |- id (leaf)
//	 |- name (leaf)
//	 |- profile
//	     |- avatar (leaf)
//	     |- bio (leaf)
//
// A Tree is immutable after construction and safe for concurrent reads.
// The empty tree doubles as the leaf marker: a child with no children of
// its own means "copy the whole value".
type Tree struct {
	children map[string]*Tree
	// names holds the child names in insertion order so that output and
	// error reporting are deterministic.
	names        []string
	instructions []Instruction
}

// Instruction is a pre-computed projection step for a single field.
// The instruction list is built once per tree so that projecting many
// documents (e.g. all elements of an array) does not probe the child
// map for every field of every element.
type Instruction struct {
	Name   string
	Child  *Tree
	IsLeaf bool
}

var emptyTree = &Tree{}

// EmptyTree returns the distinguished empty tree, meaning "no
// projection requested".
func EmptyTree() *Tree {
	return emptyTree
}

// IsEmpty reports whether the tree selects no fields.
func (t *Tree) IsEmpty() bool {
	return len(t.names) == 0
}

// HasChild reports whether the given field is selected at this level.
func (t *Tree) HasChild(name string) bool {
	_, ok := t.children[name]
	return ok
}

// Child returns the subtree for the given field, or nil.
func (t *Tree) Child(name string) *Tree {
	return t.children[name]
}

// ChildNames returns the selected field names in insertion order.
// The returned slice must not be modified.
func (t *Tree) ChildNames() []string {
	return t.names
}

// Len returns the number of fields selected at this level.
func (t *Tree) Len() int {
	return len(t.names)
}

// Instructions returns the pre-compiled projection steps for this level.
// The returned slice must not be modified.
func (t *Tree) Instructions() []Instruction {
	return t.instructions
}

// String serializes the tree back to directive form, e.g.
// "id,name,profile(avatar,bio)". Parsing the result yields a tree
// structurally equal to the receiver.
func (t *Tree) String() string {
	var sb strings.Builder
	t.writeTo(&sb)
	return sb.String()
}

func (t *Tree) writeTo(sb *strings.Builder) {
	for i, name := range t.names {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(name)
		if child := t.children[name]; !child.IsEmpty() {
			sb.WriteByte('(')
			child.writeTo(sb)
			sb.WriteByte(')')
		}
	}
}

// Equal reports structural equality of two trees.
// Child order is not significant for equality.
func (t *Tree) Equal(other *Tree) bool {
	if t.Len() != other.Len() {
		return false
	}
	for name, child := range t.children {
		otherChild, ok := other.children[name]
		if !ok || !child.Equal(otherChild) {
			return false
		}
	}
	return true
}

// TreeBuilder accumulates (name, subtree) pairs. Adding a duplicate
// name overwrites the previous entry, so a directive that mentions the
// same field twice keeps the last mention.
type TreeBuilder struct {
	children map[string]*Tree
	names    []string
}

func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{children: make(map[string]*Tree)}
}

// AddLeaf selects a field with no further nesting.
// Panics on a blank name: that is a programming error, not client input.
func (b *TreeBuilder) AddLeaf(name string) *TreeBuilder {
	return b.AddChild(name, emptyTree)
}

// AddChild selects a field with the given subtree.
// Panics on a blank name or nil subtree.
func (b *TreeBuilder) AddChild(name string, subtree *Tree) *TreeBuilder {
	if strings.TrimSpace(name) == "" {
		panic("core: field name must not be blank")
	}
	if subtree == nil {
		panic("core: subtree must not be nil")
	}
	if _, exists := b.children[name]; !exists {
		b.names = append(b.names, name)
	}
	b.children[name] = subtree
	return b
}

// HasChild reports whether the builder already holds the given field.
func (b *TreeBuilder) HasChild(name string) bool {
	_, ok := b.children[name]
	return ok
}

// Child returns the subtree added for the given field, or nil.
func (b *TreeBuilder) Child(name string) *Tree {
	return b.children[name]
}

// Build constructs the immutable tree, compiling the instruction list.
// The builder must not be reused afterwards.
func (b *TreeBuilder) Build() *Tree {
	if len(b.names) == 0 {
		return emptyTree
	}
	t := &Tree{
		children: b.children,
		names:    b.names,
	}
	t.instructions = make([]Instruction, 0, len(b.names))
	for _, name := range b.names {
		child := b.children[name]
		t.instructions = append(t.instructions, Instruction{
			Name:   name,
			Child:  child,
			IsLeaf: child.IsEmpty(),
		})
	}
	return t
}
