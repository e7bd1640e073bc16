// Copyright 2025 Kaiteki Lab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package template implements the small rendering DSL used by response
// templates: placeholders, conditionals, loops, and format functions.
// Template text is parsed once into a node tree; rendering evaluates the
// tree against a map-shaped context. Evaluation failures never abort a
// render: a failed conditional renders its else-branch, a failed value
// renders empty.
package template

import (
	"errors"
	"fmt"
	"strings"
)

// Parse errors.
var (
	ErrUnclosedTag   = errors.New("unclosed tag")
	ErrUnbalanced    = errors.New("unbalanced block tags")
	ErrMalformedTag  = errors.New("malformed tag")
	ErrEmptyTemplate = errors.New("empty template")
)

// Template is a parsed template tree, reusable across renders.
type Template struct {
	nodes []node
}

// Parse compiles template text into a reusable Template.
func Parse(content string) (*Template, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyTemplate
	}
	p := &parser{input: content}
	nodes, err := p.parseNodes("")
	if err != nil {
		return nil, err
	}
	return &Template{nodes: nodes}, nil
}

// Render evaluates the template against data. The well-known keys are
// "query", "processed_query", "language", "params" (a map backing
// {param.KEY}), and "context" (the response-context tree).
func (t *Template) Render(data map[string]any) string {
	var b strings.Builder
	s := &state{data: data}
	for _, n := range t.nodes {
		n.render(&b, s)
	}
	return b.String()
}

// node is one element of the parsed tree.
type node interface {
	render(b *strings.Builder, s *state)
}

// state carries render-time data: the context map and the loop-binding
// stack.
type state struct {
	data  map[string]any
	loops []loopBinding
}

type loopBinding struct {
	name  string
	value any
	index int // 1-based
}

// lookup resolves a variable expression: loop bindings first, then special
// time values, then a path into the data map.
func (s *state) lookup(expr string) (any, bool) {
	// Innermost loop binding wins.
	for i := len(s.loops) - 1; i >= 0; i-- {
		binding := s.loops[i]
		if expr == binding.name {
			return binding.value, true
		}
		if expr == "index" {
			return binding.index, true
		}
		if rest, ok := strings.CutPrefix(expr, binding.name+"."); ok {
			m, isMap := binding.value.(map[string]any)
			if !isMap {
				return nil, false
			}
			return resolvePath(m, rest)
		}
	}

	if value, ok := timeValue(expr); ok {
		return value, true
	}

	if rest, ok := strings.CutPrefix(expr, "param."); ok {
		params, _ := s.data["params"].(map[string]any)
		if params == nil {
			return nil, false
		}
		return resolvePath(params, rest)
	}

	return resolvePath(s.data, expr)
}

// textNode is literal template text.
type textNode string

func (n textNode) render(b *strings.Builder, _ *state) {
	b.WriteString(string(n))
}

// varNode substitutes a placeholder or path value.
type varNode struct {
	expr string
}

func (n *varNode) render(b *strings.Builder, s *state) {
	value, ok := s.lookup(n.expr)
	if !ok {
		return
	}
	b.WriteString(stringify(value))
}

// condKind enumerates the conditional forms.
type condKind int

const (
	condTruthy condKind = iota
	condExists
	condEmpty
	condCompare
)

// compareOp enumerates comparison operators.
type compareOp int

const (
	opEq compareOp = iota
	opNe
	opGt
	opLt
)

// condition is a parsed conditional expression.
type condition struct {
	kind    condKind
	path    string
	op      compareOp
	operand string
}

// eval evaluates the condition; any failure yields false.
func (c *condition) eval(s *state) bool {
	switch c.kind {
	case condExists:
		value, ok := s.lookup(c.path)
		return ok && truthy(value)
	case condEmpty:
		value, ok := s.lookup(c.path)
		return !ok || !truthy(value)
	case condCompare:
		value, ok := s.lookup(c.path)
		if !ok {
			return false
		}
		switch c.op {
		case opEq:
			return stringify(value) == c.operand
		case opNe:
			return stringify(value) != c.operand
		case opGt, opLt:
			left, lok := asNumber(value)
			right, rok := asNumber(c.operand)
			if !lok || !rok {
				return false
			}
			if c.op == opGt {
				return left > right
			}
			return left < right
		}
		return false
	default:
		value, ok := s.lookup(c.path)
		return ok && truthy(value)
	}
}

// condNode renders its then-branch when the condition holds, else-branch
// otherwise.
type condNode struct {
	cond condition
	then []node
	els  []node
}

func (n *condNode) render(b *strings.Builder, s *state) {
	branch := n.els
	if n.cond.eval(s) {
		branch = n.then
	}
	for _, child := range branch {
		child.render(b, s)
	}
}

// loopNode iterates an array value, binding each element to the loop
// variable. A non-array or missing path renders nothing.
type loopNode struct {
	varName string
	path    string
	body    []node
}

func (n *loopNode) render(b *strings.Builder, s *state) {
	value, ok := s.lookup(n.path)
	if !ok {
		return
	}
	arr, ok := value.([]any)
	if !ok {
		return
	}

	for i, item := range arr {
		s.loops = append(s.loops, loopBinding{name: n.varName, value: item, index: i + 1})
		for _, child := range n.body {
			child.render(b, s)
		}
		s.loops = s.loops[:len(s.loops)-1]
	}
}

// parser builds the node tree from template text.
type parser struct {
	input string
	pos   int
}

// parseNodes consumes nodes until the matching close tag of the enclosing
// block ("endif"/"endfor"/"else"), or end of input at the top level.
func (p *parser) parseNodes(enclosing string) ([]node, error) {
	var nodes []node

	for p.pos < len(p.input) {
		open := strings.IndexByte(p.input[p.pos:], '{')
		if open < 0 {
			nodes = append(nodes, textNode(p.input[p.pos:]))
			p.pos = len(p.input)
			break
		}
		if open > 0 {
			nodes = append(nodes, textNode(p.input[p.pos:p.pos+open]))
			p.pos += open
		}

		close := strings.IndexByte(p.input[p.pos:], '}')
		if close < 0 {
			return nil, fmt.Errorf("%w at offset %d", ErrUnclosedTag, p.pos)
		}
		tag := strings.TrimSpace(p.input[p.pos+1 : p.pos+close])
		p.pos += close + 1

		switch {
		case tag == "endif", tag == "endfor", tag == "else":
			if enclosing == "" {
				return nil, fmt.Errorf("%w: unexpected {%s}", ErrUnbalanced, tag)
			}
			// Hand control back to the block parser.
			p.pos -= close + 1
			return nodes, nil

		case strings.HasPrefix(tag, "if "):
			n, err := p.parseConditional(tag)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)

		case strings.HasPrefix(tag, "for "):
			n, err := p.parseLoop(tag)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)

		case strings.HasPrefix(tag, "format:"):
			n, err := parseFormat(tag)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)

		case tag == "":
			return nil, fmt.Errorf("%w: empty tag", ErrMalformedTag)

		default:
			nodes = append(nodes, &varNode{expr: tag})
		}
	}

	if enclosing != "" {
		return nil, fmt.Errorf("%w: missing {%s}", ErrUnbalanced, enclosing)
	}
	return nodes, nil
}

// consumeTag reads the next tag, which must be one of the expected names.
func (p *parser) consumeTag(expected ...string) (string, error) {
	if p.pos >= len(p.input) || p.input[p.pos] != '{' {
		return "", fmt.Errorf("%w: missing {%s}", ErrUnbalanced, strings.Join(expected, "} or {"))
	}
	close := strings.IndexByte(p.input[p.pos:], '}')
	if close < 0 {
		return "", fmt.Errorf("%w at offset %d", ErrUnclosedTag, p.pos)
	}
	tag := strings.TrimSpace(p.input[p.pos+1 : p.pos+close])
	for _, want := range expected {
		if tag == want {
			p.pos += close + 1
			return tag, nil
		}
	}
	return "", fmt.Errorf("%w: expected {%s}, found {%s}", ErrUnbalanced, strings.Join(expected, "} or {"), tag)
}

// parseConditional parses "{if COND}...{else}...{endif}".
func (p *parser) parseConditional(tag string) (node, error) {
	cond, err := parseCondition(strings.TrimSpace(strings.TrimPrefix(tag, "if ")))
	if err != nil {
		return nil, err
	}

	then, err := p.parseNodes("endif")
	if err != nil {
		return nil, err
	}

	next, err := p.consumeTag("else", "endif")
	if err != nil {
		return nil, err
	}

	var els []node
	if next == "else" {
		els, err = p.parseNodes("endif")
		if err != nil {
			return nil, err
		}
		if _, err := p.consumeTag("endif"); err != nil {
			return nil, err
		}
	}

	return &condNode{cond: cond, then: then, els: els}, nil
}

// parseLoop parses "{for VAR in PATH}...{endfor}".
func (p *parser) parseLoop(tag string) (node, error) {
	spec := strings.TrimSpace(strings.TrimPrefix(tag, "for "))
	parts := strings.SplitN(spec, " in ", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: {for %s}", ErrMalformedTag, spec)
	}
	varName := strings.TrimSpace(parts[0])
	path := strings.TrimSpace(parts[1])
	if varName == "" || path == "" {
		return nil, fmt.Errorf("%w: {for %s}", ErrMalformedTag, spec)
	}

	body, err := p.parseNodes("endfor")
	if err != nil {
		return nil, err
	}
	if _, err := p.consumeTag("endfor"); err != nil {
		return nil, err
	}

	return &loopNode{varName: varName, path: path, body: body}, nil
}

// parseCondition compiles a conditional expression into its closed form.
func parseCondition(expr string) (condition, error) {
	if expr == "" {
		return condition{}, fmt.Errorf("%w: empty condition", ErrMalformedTag)
	}

	if rest, ok := strings.CutPrefix(expr, "exists "); ok {
		return condition{kind: condExists, path: strings.TrimSpace(rest)}, nil
	}
	if rest, ok := strings.CutPrefix(expr, "empty "); ok {
		return condition{kind: condEmpty, path: strings.TrimSpace(rest)}, nil
	}

	for _, candidate := range []struct {
		token string
		op    compareOp
	}{
		{"==", opEq},
		{"!=", opNe},
		{">", opGt},
		{"<", opLt},
	} {
		if idx := strings.Index(expr, candidate.token); idx > 0 {
			path := strings.TrimSpace(expr[:idx])
			operand := strings.TrimSpace(expr[idx+len(candidate.token):])
			operand = strings.Trim(operand, `"'`)
			return condition{kind: condCompare, path: path, op: candidate.op, operand: operand}, nil
		}
	}

	return condition{kind: condTruthy, path: expr}, nil
}
