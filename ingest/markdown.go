package ingest

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// markdownNodes splits a markdown document into one content node per
// heading-delimited section. Text before the first heading becomes an
// untitled leading node.
func markdownNodes(src string) []Node {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil
	}

	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(src))

	var nodes []Node
	current := Node{}
	var buf strings.Builder

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" || current.Title != "" {
			current.Text = text
			if current.Text == "" {
				current.Text = current.Title
			}
			nodes = append(nodes, current)
		}
		current = Node{}
		buf.Reset()
	}

	for _, child := range doc.GetChildren() {
		if heading, ok := child.(*ast.Heading); ok {
			flush()
			current.Title = blockText(heading)
			continue
		}
		if text := blockText(child); text != "" {
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(text)
		}
	}
	flush()

	return nodes
}

// blockText flattens a markdown AST subtree into plain text.
func blockText(node ast.Node) string {
	var parts []string
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if leaf := n.AsLeaf(); leaf != nil && len(leaf.Literal) > 0 {
			parts = append(parts, string(leaf.Literal))
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(strings.Join(parts, " "))
}
