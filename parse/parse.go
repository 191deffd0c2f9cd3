package parse

import (
	"fmt"
	"unicode/utf8"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"

	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/result"
)

type parseOpts struct {
	maxDepth int
}

type ParseOption func(*parseOpts)

// MaxDepth limits the nesting of containers. Zero means no limit.
func MaxDepth(n int) ParseOption {
	return func(o *parseOpts) { o.maxDepth = n }
}

// Parse parses the first document of d. An empty input yields a tree whose
// top is the empty scalar.
func Parse(d []byte, opts ...ParseOption) (*ir.Tree, error) {
	docs, err := ParseAll(d, opts...)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		t := ir.New()
		if err := t.SetTop(t.NewScalar("")); err != nil {
			return nil, err
		}
		return t, nil
	}
	return docs[0], nil
}

// ParseString is Parse for strings.
func ParseString(s string, opts ...ParseOption) (*ir.Tree, error) {
	return Parse([]byte(s), opts...)
}

// ParseAll parses every non-empty document of d.
func ParseAll(d []byte, opts ...ParseOption) ([]*ir.Tree, error) {
	o := &parseOpts{}
	for _, opt := range opts {
		opt(o)
	}
	if !utf8.Valid(d) {
		return nil, result.New(result.YAMLParsingFailed, "invalid UTF-8")
	}
	f, err := parser.ParseBytes(d, 0, parser.AllowDuplicateMapKey())
	if err != nil {
		return nil, result.Wrap(result.YAMLParsingFailed, err)
	}
	var res []*ir.Tree
	for _, doc := range f.Docs {
		if doc == nil || doc.Body == nil {
			continue
		}
		b := &builder{t: ir.New(), opts: o}
		id, err := b.node(doc.Body, 0)
		if err != nil {
			return nil, err
		}
		if err := b.t.SetTop(id); err != nil {
			return nil, err
		}
		res = append(res, b.t)
	}
	return res, nil
}

type builder struct {
	t    *ir.Tree
	opts *parseOpts
}

func (b *builder) node(n ast.Node, depth int) (ir.ID, error) {
	switch x := n.(type) {
	case *ast.TagNode:
		return b.node(x.Value, depth)
	case *ast.AnchorNode, *ast.AliasNode, *ast.MergeKeyNode:
		return ir.Nil, invalidToken(n)
	case *ast.MappingNode:
		return b.mapping(x, depth)
	case *ast.MappingValueNode:
		return b.mapping(x, depth)
	case *ast.SequenceNode:
		return b.sequence(x, depth)
	case *ast.NullNode:
		return b.t.NewScalar(""), nil
	case *ast.StringNode:
		return b.t.NewScalar(x.Value), nil
	case *ast.LiteralNode:
		return b.t.NewScalar(x.Value.Value), nil
	case ast.ScalarNode:
		return b.t.NewScalar(x.GetToken().Value), nil
	}
	return ir.Nil, invalidToken(n)
}

func (b *builder) enter(n ast.Node, depth int) error {
	if b.opts.maxDepth > 0 && depth >= b.opts.maxDepth {
		return result.Errorf(result.YAMLParsingFailed, "%s: nesting deeper than %d", pos(n), b.opts.maxDepth)
	}
	return nil
}

func (b *builder) mapping(n ast.MapNode, depth int) (ir.ID, error) {
	if err := b.enter(n.(ast.Node), depth); err != nil {
		return ir.Nil, err
	}
	id := b.t.NewMapping()
	it := n.MapRange()
	for it.Next() {
		k, err := key(it.Key())
		if err != nil {
			return ir.Nil, err
		}
		v, err := b.node(it.Value(), depth+1)
		if err != nil {
			return ir.Nil, err
		}
		// last duplicate wins
		if old := b.t.Child(id, k); old != ir.Nil {
			b.t.Delete(old)
		}
		if err := b.t.SetChild(id, k, v); err != nil {
			return ir.Nil, err
		}
	}
	return id, nil
}

func (b *builder) sequence(n *ast.SequenceNode, depth int) (ir.ID, error) {
	if err := b.enter(n, depth); err != nil {
		return ir.Nil, err
	}
	id := b.t.NewSequence()
	for _, elt := range n.Values {
		v, err := b.node(elt, depth+1)
		if err != nil {
			return ir.Nil, err
		}
		if err := b.t.Append(id, v); err != nil {
			return ir.Nil, err
		}
	}
	return id, nil
}

func key(k ast.Node) (string, error) {
	switch x := k.(type) {
	case *ast.MappingKeyNode:
		return key(x.Value)
	case *ast.TagNode:
		return key(x.Value)
	case *ast.NullNode:
		return "", nil
	case *ast.StringNode:
		return x.Value, nil
	case *ast.MergeKeyNode, *ast.AnchorNode, *ast.AliasNode:
		return "", invalidToken(k)
	case ast.ScalarNode:
		return x.GetToken().Value, nil
	}
	return "", invalidToken(k)
}

func invalidToken(n ast.Node) error {
	return result.Errorf(result.InvalidToken, "%s: unsupported %s", pos(n), n.Type())
}

func pos(n ast.Node) string {
	if n == nil {
		return "?"
	}
	tk := n.GetToken()
	if tk == nil || tk.Position == nil {
		return "?"
	}
	return fmt.Sprintf("%d:%d", tk.Position.Line, tk.Position.Column)
}
