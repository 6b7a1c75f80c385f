package core

import "strings"

const jsonContentType = "application/json"

// Projector filters JSON-like documents against a field-selection tree.
// Documents are the shapes produced by parsing JSON into any:
// map[string]any, []any, and scalars.
//
// Projection is strict: every requested field must exist in the
// document or the whole operation fails. There is no partial result.
type Projector struct {
	// arrayThreshold is the array size at which projection switches to
	// the tree's pre-compiled instruction list.
	arrayThreshold int
}

// DefaultArrayThreshold is the array size at which the projector
// switches to the pre-compiled instruction list.
const DefaultArrayThreshold = 32

// NewProjector creates a projector. A non-positive arrayThreshold
// selects DefaultArrayThreshold.
func NewProjector(arrayThreshold int) *Projector {
	if arrayThreshold <= 0 {
		arrayThreshold = DefaultArrayThreshold
	}
	return &Projector{arrayThreshold: arrayThreshold}
}

// Supports reports whether the projector can handle a declared content
// type. An empty media type is never supported.
func (p *Projector) Supports(mediaType string) bool {
	if mediaType == "" {
		return false
	}
	return strings.Contains(mediaType, jsonContentType)
}

// Project filters doc against tree. A nil document or empty tree is
// returned unchanged; a no-op projection is always legal.
//
// The context guards the traversal. On error the context's path stack
// is left balanced, so callers may inspect it in their error handling.
func (p *Projector) Project(doc any, tree *Tree, ctx *Context) (any, error) {
	if tree == nil {
		panic("core: projection tree must not be nil")
	}
	if ctx == nil {
		panic("core: context must not be nil")
	}
	if doc == nil || tree.IsEmpty() {
		return doc, nil
	}
	return p.projectValue(doc, tree, ctx)
}

func (p *Projector) projectValue(value any, tree *Tree, ctx *Context) (any, error) {
	switch v := value.(type) {
	case []any:
		return p.projectArray(v, tree, ctx)
	case map[string]any:
		return p.projectObject(v, tree, ctx)
	default:
		// scalars (and nil) pass through unchanged
		return value, nil
	}
}

func (p *Projector) projectArray(array []any, tree *Tree, ctx *Context) (any, error) {
	result := make([]any, 0, len(array))

	if len(array) >= p.arrayThreshold {
		// Iterate elements directly against the compiled instructions.
		// Results must be identical to the per-element tree walk below.
		instructions := tree.Instructions()
		for _, element := range array {
			obj, ok := element.(map[string]any)
			if !ok {
				projected, err := p.projectValue(element, tree, ctx)
				if err != nil {
					return nil, err
				}
				result = append(result, projected)
				continue
			}
			projected, err := p.projectCompiled(obj, instructions, ctx)
			if err != nil {
				return nil, err
			}
			result = append(result, projected)
		}
		return result, nil
	}

	for _, element := range array {
		projected, err := p.projectValue(element, tree, ctx)
		if err != nil {
			return nil, err
		}
		result = append(result, projected)
	}
	return result, nil
}

func (p *Projector) projectObject(object map[string]any, tree *Tree, ctx *Context) (any, error) {
	result := make(map[string]any, tree.Len())

	for _, name := range tree.ChildNames() {
		value, present := object[name]
		if !present {
			return nil, &MissingFieldError{FieldPath: ctx.BuildPath(name)}
		}

		child := tree.Child(name)
		if child.IsEmpty() {
			// leaf: copy verbatim, nulls and empty containers included
			result[name] = value
			continue
		}

		projected, err := p.descendInto(value, name, child, ctx)
		if err != nil {
			return nil, err
		}
		result[name] = projected
	}

	return result, nil
}

func (p *Projector) projectCompiled(object map[string]any, instructions []Instruction, ctx *Context) (any, error) {
	result := make(map[string]any, len(instructions))

	for _, ins := range instructions {
		value, present := object[ins.Name]
		if !present {
			return nil, &MissingFieldError{FieldPath: ctx.BuildPath(ins.Name)}
		}

		if ins.IsLeaf {
			result[ins.Name] = value
			continue
		}

		projected, err := p.descendInto(value, ins.Name, ins.Child, ctx)
		if err != nil {
			return nil, err
		}
		result[ins.Name] = projected
	}

	return result, nil
}

// descendInto projects value against child under the field's path
// segment. Ascend runs on every exit path so the stack stays balanced
// for callers that inspect context state after an error.
func (p *Projector) descendInto(value any, name string, child *Tree, ctx *Context) (any, error) {
	if err := ctx.Descend(name); err != nil {
		return nil, err
	}
	defer ctx.Ascend()
	return p.projectValue(value, child, ctx)
}
