// Package extract converts declared input formats into the plain text the
// retrieval core operates on. Format handling is a collaborator boundary:
// anything this package cannot decode fails the whole ingestion up front.
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	appErr "github.com/seekwell/seekwell/internal/pkg/errors"
)

// Text normalizes raw content of the declared type into plain text.
// Supported types: "", "txt", "text", "plain" (passthrough) and
// "md", "markdown" (structure stripped via the markdown AST).
func Text(raw string, contentType string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", fmt.Errorf("%w: content is not valid utf-8", appErr.ErrExtraction)
	}
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "", "txt", "text", "plain":
		return raw, nil
	case "md", "markdown":
		return markdownText(raw), nil
	default:
		return "", fmt.Errorf("%w: unsupported content type %q", appErr.ErrExtraction, contentType)
	}
}

// markdownText walks the markdown AST and keeps the visible text, one block
// per paragraph. Code blocks are kept verbatim so they stay searchable.
func markdownText(markdown string) string {
	md := goldmark.New()
	source := []byte(markdown)
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			var sb strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				sb.Write(line.Value(source))
			}
			if code := strings.TrimSpace(sb.String()); code != "" {
				blocks = append(blocks, code)
			}
		default:
			if txt := blockText(node, source); txt != "" {
				blocks = append(blocks, txt)
			}
		}
	}
	return strings.Join(blocks, "\n\n")
}

func blockText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			if node.(*ast.Text).HardLineBreak() || node.(*ast.Text).SoftLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
