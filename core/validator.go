package core

// Validator checks requested projection trees against an allow-list of
// permitted fields. It is built once per endpoint definition and shared
// read-only across requests.
type Validator struct {
	allowed *Tree
}

// NewValidator builds a validator from one or more field-spec strings,
// each in directive syntax. Specs referencing the same field are merged
// by recursive union: nested children from both sides are permitted,
// and a bare leaf united with a subtree keeps the subtree.
//
// Returns nil (no validation) when no specs are given.
func NewValidator(fieldSpecs ...string) (*Validator, error) {
	if len(fieldSpecs) == 0 {
		return nil, nil
	}

	builder := NewTreeBuilder()
	for _, spec := range fieldSpecs {
		parsed, err := Parse(spec)
		if err != nil {
			return nil, err
		}
		mergeInto(builder, parsed)
	}

	return &Validator{allowed: builder.Build()}, nil
}

// AllowedFields returns the merged permitted tree.
func (v *Validator) AllowedFields() *Tree {
	return v.allowed
}

// Validate walks the requested tree and returns a *FieldNotAllowedError
// for the first field (in the tree's own order) that is either absent
// from the allow-list or requests descent past a leaf permission.
//
// A leaf permission grants the full value: requesting that field as a
// leaf is always allowed, even when the underlying document value is an
// object. Only descending further is rejected.
func (v *Validator) Validate(requested *Tree) error {
	if requested == nil {
		panic("core: requested tree must not be nil")
	}
	return validateTree(requested, v.allowed, "")
}

func validateTree(requested, allowed *Tree, currentPath string) error {
	for _, name := range requested.ChildNames() {
		fieldPath := name
		if currentPath != "" {
			fieldPath = currentPath + "." + name
		}

		if !allowed.HasChild(name) {
			return &FieldNotAllowedError{FieldPath: fieldPath}
		}

		requestedChild := requested.Child(name)
		allowedChild := allowed.Child(name)

		if !requestedChild.IsEmpty() {
			if allowedChild.IsEmpty() {
				return &FieldNotAllowedError{FieldPath: fieldPath}
			}
			if err := validateTree(requestedChild, allowedChild, fieldPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func mergeInto(target *TreeBuilder, source *Tree) {
	for _, name := range source.ChildNames() {
		child := source.Child(name)
		existing := target.Child(name)

		switch {
		case existing == nil || existing.IsEmpty():
			if child.IsEmpty() && existing != nil {
				// leaf already permitted, nothing to widen
				continue
			}
			target.AddChild(name, rebuild(child))
		case child.IsEmpty():
			// leaf united with an existing subtree keeps the subtree
		default:
			merged := NewTreeBuilder()
			mergeInto(merged, existing)
			mergeInto(merged, child)
			target.AddChild(name, merged.Build())
		}
	}
}

// rebuild deep-copies a tree through a builder so merged trees never
// alias subtrees that a later merge step would need to widen.
func rebuild(source *Tree) *Tree {
	if source.IsEmpty() {
		return emptyTree
	}
	b := NewTreeBuilder()
	mergeInto(b, source)
	return b.Build()
}
