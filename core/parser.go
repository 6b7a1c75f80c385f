package core

import "fmt"

// Parse turns a projection directive into a Tree.
//
// Grammar:
//
//	projection := field (',' field)*
//	field      := name | name '(' projection ')'
//	name       := [A-Za-z_][A-Za-z0-9_]*
//
// Whitespace is insignificant everywhere except inside names. A blank
// directive parses to the empty tree. The parser is strict: any syntax
// violation returns a *SyntaxError whose Position is the 0-based offset
// into the original input. No semantic validation happens here.
func Parse(directive string) (*Tree, error) {
	p := &parser{input: directive}
	p.skipWhitespace()
	if p.position >= len(p.input) {
		return emptyTree, nil
	}
	tree, err := p.parseProjection()
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	return tree, nil
}

// parser is a recursive descent parser with one character of lookahead.
// Positions index the original input directly, so offsets in errors are
// correct even when the directive starts with whitespace.
type parser struct {
	input    string
	position int
}

func (p *parser) parseProjection() (*Tree, error) {
	builder := NewTreeBuilder()
	if err := p.parseField(builder); err != nil {
		return nil, err
	}
	for p.peek() == ',' {
		if err := p.consume(','); err != nil {
			return nil, err
		}
		p.skipWhitespace()
		if err := p.parseField(builder); err != nil {
			return nil, err
		}
	}
	return builder.Build(), nil
}

func (p *parser) parseField(builder *TreeBuilder) error {
	name, err := p.parseName()
	if err != nil {
		return err
	}
	p.skipWhitespace()

	if p.peek() == '(' {
		if err := p.consume('('); err != nil {
			return err
		}
		p.skipWhitespace()
		subtree, err := p.parseProjection()
		if err != nil {
			return err
		}
		p.skipWhitespace()
		if err := p.consume(')'); err != nil {
			return err
		}
		builder.AddChild(name, subtree)
	} else {
		builder.AddLeaf(name)
	}

	p.skipWhitespace()
	return nil
}

func (p *parser) parseName() (string, error) {
	start := p.position

	if p.position >= len(p.input) {
		return "", p.errorf("expected field name")
	}

	first := p.input[p.position]
	if !isNameStart(first) {
		return "", p.errorf("invalid field name start character: '%c'", first)
	}

	p.position++
	for p.position < len(p.input) && isNameContinue(p.input[p.position]) {
		p.position++
	}

	return p.input[start:p.position], nil
}

func isNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isNameContinue(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// peek returns the next non-whitespace character, or 0 at end of input.
func (p *parser) peek() byte {
	p.skipWhitespace()
	if p.position >= len(p.input) {
		return 0
	}
	return p.input[p.position]
}

func (p *parser) consume(expected byte) error {
	p.skipWhitespace()
	if p.position >= len(p.input) {
		return p.errorf("expected '%c' but reached end of input", expected)
	}
	if actual := p.input[p.position]; actual != expected {
		return p.errorf("expected '%c' but found '%c'", expected, actual)
	}
	p.position++
	return nil
}

func (p *parser) skipWhitespace() {
	for p.position < len(p.input) && isWhitespace(p.input[p.position]) {
		p.position++
	}
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (p *parser) expectEnd() error {
	p.skipWhitespace()
	if p.position < len(p.input) {
		return p.errorf("unexpected character '%c' after valid projection", p.input[p.position])
	}
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{
		Input:    p.input,
		Position: p.position,
		Reason:   fmt.Sprintf(format, args...),
	}
}
