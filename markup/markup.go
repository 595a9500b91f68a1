// Package markup finds the image links of chapter markdown and rewrites their
// destinations in place. Everything else is copied byte for byte.
package markup

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/foomo/mdbook-confluence/service/vo"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// ImageRewriter is called for every image link in document order. Returning
// false keeps the destination unchanged.
type ImageRewriter func(ctx context.Context, destination, title string) (string, bool)

var md = goldmark.New(
	goldmark.WithParser(newParser()),
	goldmark.WithExtensions(
		extension.Table,
		extension.Strikethrough,
		extension.TaskList,
		extension.Footnote,
	),
)

// newParser is goldmark's default parser with the link parser replaced by
// one that records where images close.
func newParser() parser.Parser {
	inlines := parser.DefaultInlineParsers()
	for i, v := range inlines {
		if v.Value == parser.NewLinkParser() {
			inlines[i] = util.Prioritized(&imageParser{InlineParser: parser.NewLinkParser()}, v.Priority)
		}
	}
	return parser.NewParser(
		parser.WithBlockParsers(parser.DefaultBlockParsers()...),
		parser.WithInlineParsers(inlines...),
		parser.WithParagraphTransformers(parser.DefaultParagraphTransformers()...),
		parser.WithHeadingAttribute(),
	)
}

// edit replaces source[start:end] with value.
type edit struct {
	start, end int
	value      string
}

// Rewrite runs rewrite over the image links of source and returns source
// with the rewritten destinations spliced in.
func Rewrite(ctx context.Context, source []byte, rewrite ImageRewriter) (vo.Markdown, error) {
	pc := parser.NewContext()
	doc := md.Parser().Parse(text.NewReader(source), parser.WithContext(pc))
	closings := imageClosings(pc)

	var edits []edit
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if err := ctx.Err(); err != nil {
			return ast.WalkStop, err
		}
		img, ok := n.(*ast.Image)
		if !ok || rewrite == nil {
			return ast.WalkContinue, nil
		}
		dest, ok := rewrite(ctx, unescape(img.Destination), unescape(img.Title))
		if !ok {
			return ast.WalkContinue, nil
		}
		closing, found := closings[img]
		if !found {
			return ast.WalkStop, fmt.Errorf("no source position for image %q", img.Destination)
		}
		e, err := destinationEdit(source, closing, img, dest)
		if err != nil {
			return ast.WalkStop, err
		}
		edits = append(edits, e)
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk markdown: %w", err)
	}
	return vo.Markdown(apply(source, edits)), nil
}

// destinationEdit locates the destination of img, whose label closes at
// source[closing], and returns the edit that points it at dest. Reference
// images become inline images so their definition stays untouched for
// other users.
func destinationEdit(source []byte, closing int, img *ast.Image, dest string) (edit, error) {
	next := closing + 1
	if next < len(source) && source[next] == '(' {
		if len(img.Destination) == 0 {
			return edit{start: next + 1, end: next + 1, value: formatDestination(dest, false)}, nil
		}
		at := bytes.Index(source[next:], img.Destination)
		if at < 0 {
			return edit{}, fmt.Errorf("destination %q not found in source", img.Destination)
		}
		start := next + at
		angled := start > 0 && source[start-1] == '<'
		return edit{start: start, end: start + len(img.Destination), value: formatDestination(dest, angled)}, nil
	}

	// full ![alt][ref], collapsed ![alt][] or shortcut ![alt]
	end := next
	if next < len(source) && source[next] == '[' {
		end = closingBracket(source, next+1)
		if end < 0 {
			return edit{}, fmt.Errorf("unterminated reference label after %q", img.Destination)
		}
		end++
	}
	return edit{
		start: closing,
		end:   end,
		value: "](" + formatDestination(dest, false) + formatTitle(img.Title) + ")",
	}, nil
}

func closingBracket(source []byte, from int) int {
	for i := from; i < len(source); i++ {
		switch source[i] {
		case '\\':
			i++
		case ']':
			return i
		}
	}
	return -1
}

func apply(source []byte, edits []edit) []byte {
	if len(edits) == 0 {
		return slices.Clone(source)
	}
	slices.SortFunc(edits, func(a, b edit) int { return a.start - b.start })
	var buf bytes.Buffer
	buf.Grow(len(source))
	last := 0
	for _, e := range edits {
		buf.Write(source[last:e.start])
		buf.WriteString(e.value)
		last = e.end
	}
	buf.Write(source[last:])
	return buf.Bytes()
}

func formatDestination(dest string, angled bool) string {
	if angled || strings.ContainsAny(dest, " \t\n()<>") {
		escaped := strings.NewReplacer("<", `\<`, ">", `\>`).Replace(dest)
		if angled {
			return escaped
		}
		return "<" + escaped + ">"
	}
	return dest
}

func formatTitle(title []byte) string {
	if len(title) == 0 {
		return ""
	}
	return ` "` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(unescape(title)) + `"`
}

// unescape resolves backslash escapes and character references the way a
// renderer would before handing the value to a rewriter.
func unescape(v []byte) string {
	return string(util.UnescapePunctuations(util.ResolveNumericReferences(util.ResolveEntityNames(v))))
}
