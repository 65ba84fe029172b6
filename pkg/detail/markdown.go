package detail

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// resolveFunc maps a relative reference inside documentation to an absolute URL.
type resolveFunc func(ref string) string

// linkResolver rewrites relative image and link destinations so that
// documentation renders outside the artifact's file store.
type linkResolver struct {
	resolve resolveFunc
}

func (r *linkResolver) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Image:
			node.Destination = r.rewrite(node.Destination)
		case *ast.Link:
			node.Destination = r.rewrite(node.Destination)
		}
		return ast.WalkContinue, nil
	})
}

func (r *linkResolver) rewrite(dest []byte) []byte {
	ref := string(dest)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return dest
	}
	if u, err := url.Parse(ref); err != nil || u.Scheme != "" || strings.HasPrefix(ref, "//") {
		return dest
	}
	return []byte(r.resolve(ref))
}

// renderMarkdown converts GitHub flavoured markdown to HTML. Raw HTML in
// the source is omitted.
func renderMarkdown(src []byte, resolve resolveFunc) (string, error) {
	opts := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithXHTML()),
	}
	if resolve != nil {
		opts = append(opts, goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(&linkResolver{resolve: resolve}, 100)),
		))
	}

	var buf bytes.Buffer
	if err := goldmark.New(opts...).Convert(src, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
