package chat

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var chunkMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// flattenMarkdown strips markdown structure from guideline chunk text,
// leaving whitespace-normalized plain text for reply composition.
func flattenMarkdown(src string) string {
	source := []byte(src)
	doc := chunkMarkdown.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			sb.WriteByte(' ')
		case *ast.AutoLink:
			sb.Write(t.URL(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}
