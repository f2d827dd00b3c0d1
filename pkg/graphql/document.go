// Package graphql builds GraphQL documents from a small tree of nodes and
// renders them to source text.
//
// A tree is made of three node kinds:
//
//	Field      a bare field name
//	Selection  name { children }
//	Call       name(arguments) { children }
//
// Rendering is deterministic and never touches the network; field names are
// passed through verbatim.
package graphql

import (
	"fmt"
	"strings"

	"github.com/saturnines/butterflymx-go/pkg/errors"
)

// DefaultIndent is the number of spaces per nesting level.
const DefaultIndent = 2

// Node is one element of a document tree. The set of implementations is
// closed: Field, *Selection and *Call.
type Node interface {
	node()
}

// Field is a leaf selection.
type Field string

// Selection renders as `name { children }`.
type Selection struct {
	Name     string
	Children []Node
}

// Call renders as `name(args) { children }`. Parentheses are omitted when
// there are no arguments and the braces when there are no children.
type Call struct {
	Name     string
	Args     Args
	Children []Node
}

// invalidNode records a child that could not be converted at construction
// time. It fails when rendered.
type invalidNode struct {
	value any
}

func (Field) node()       {}
func (*Selection) node()  {}
func (*Call) node()       {}
func (invalidNode) node() {}

// Select creates a named selection set. Each child may be a string, a Node,
// or a slice of those; slices are flattened one level so that a single child
// and a one-element slice build the same tree.
func Select(name string, children ...any) *Selection {
	return &Selection{Name: name, Children: toNodes(children)}
}

// Query creates the top-level `query` selection.
func Query(children ...any) *Selection {
	return Select("query", children...)
}

// Mutation creates the top-level `mutation` selection.
func Mutation(children ...any) *Selection {
	return Select("mutation", children...)
}

// NewCall creates a field call with arguments. args may be nil.
func NewCall(name string, args Args, children ...any) *Call {
	return &Call{Name: name, Args: args, Children: toNodes(children)}
}

func toNodes(children []any) []Node {
	nodes := make([]Node, 0, len(children))
	for _, c := range children {
		switch v := c.(type) {
		case []any:
			nodes = append(nodes, toNodes(v)...)
		case []string:
			for _, s := range v {
				nodes = append(nodes, Field(s))
			}
		case []Node:
			nodes = append(nodes, v...)
		default:
			nodes = append(nodes, toNode(v))
		}
	}
	return nodes
}

func toNode(c any) Node {
	switch v := c.(type) {
	case string:
		return Field(v)
	case Field:
		return v
	case *Selection:
		if v != nil {
			return v
		}
	case *Call:
		if v != nil {
			return v
		}
	}
	return invalidNode{value: c}
}

type renderConfig struct {
	indent int
	depth  int
}

// RenderOption tweaks Render.
type RenderOption func(*renderConfig)

// WithIndent sets the number of spaces per nesting level.
func WithIndent(width int) RenderOption {
	return func(c *renderConfig) {
		c.indent = width
	}
}

// WithDepth sets the depth the node is rendered at. The default is 1.
func WithDepth(depth int) RenderOption {
	return func(c *renderConfig) {
		c.depth = depth
	}
}

// Render turns a node into GraphQL source text.
func Render(n Node, opts ...RenderOption) (string, error) {
	cfg := renderConfig{indent: DefaultIndent, depth: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.indent < 0 || cfg.depth < 1 {
		return "", errors.WrapError(
			fmt.Errorf("indent %d, depth %d", cfg.indent, cfg.depth),
			errors.ErrValueEncoding,
			"invalid render options",
		)
	}

	r := renderer{indent: cfg.indent}
	var b strings.Builder
	if err := r.node(&b, n, cfg.depth); err != nil {
		return "", err
	}
	return b.String(), nil
}

// MustRender is like Render but panics on error. It is meant for trees built
// from literals.
func MustRender(n Node, opts ...RenderOption) string {
	s, err := Render(n, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// String renders the selection with default options.
func (s *Selection) String() string {
	out, err := Render(s)
	if err != nil {
		return fmt.Sprintf("!error(%v)", err)
	}
	return out
}

// String renders the call with default options.
func (c *Call) String() string {
	out, err := Render(c)
	if err != nil {
		return fmt.Sprintf("!error(%v)", err)
	}
	return out
}

type renderer struct {
	indent int
}

func (r renderer) pad(depth int) string {
	if depth <= 0 {
		return ""
	}
	return strings.Repeat(" ", depth*r.indent)
}

func (r renderer) node(b *strings.Builder, n Node, depth int) error {
	switch v := n.(type) {
	case Field:
		b.WriteString(string(v))
		return nil
	case *Selection:
		b.WriteString(v.Name)
		return r.block(b, v.Children, depth)
	case *Call:
		b.WriteString(v.Name)
		if len(v.Args) > 0 {
			b.WriteByte('(')
			if err := r.rootArgs(b, v.Args, depth); err != nil {
				return errors.WrapError(err, errors.ErrValueEncoding, fmt.Sprintf("arguments of %q", v.Name))
			}
			b.WriteByte(')')
		}
		if len(v.Children) == 0 {
			return nil
		}
		return r.block(b, v.Children, depth)
	case invalidNode:
		return errors.WrapError(
			fmt.Errorf("unsupported child of type %T", v.value),
			errors.ErrValueEncoding,
			"render selection",
		)
	default:
		return errors.WrapError(
			fmt.Errorf("unsupported node of type %T", n),
			errors.ErrValueEncoding,
			"render selection",
		)
	}
}

// block writes ` {`, the children one level deeper, and the closing brace
// aligned with the owner's line.
func (r renderer) block(b *strings.Builder, children []Node, depth int) error {
	b.WriteString(" {\n")
	prefix := r.pad(depth)
	for i, child := range children {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(prefix)
		if err := r.node(b, child, depth+1); err != nil {
			return err
		}
	}
	b.WriteByte('\n')
	b.WriteString(r.pad(depth - 1))
	b.WriteByte('}')
	return nil
}
