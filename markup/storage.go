package markup

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/foomo/mdbook-confluence/service/vo"
	"golang.org/x/net/html"
)

var (
	markdownMacro = regexp.MustCompile(`(?s)<ac:structured-macro ac:name="markdown"[^>]*>\s*<ac:plain-text-body>(.*?)</ac:plain-text-body>\s*</ac:structured-macro>`)
	cdataSection  = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
)

func newConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
			strikethrough.NewStrikethroughPlugin(),
		),
	)
}

// StorageToMarkdown turns Confluence storage format into markdown. Bodies of
// markdown macros are returned verbatim, the XHTML around them is converted.
func StorageToMarkdown(ctx context.Context, storage string) (vo.Markdown, error) {
	var parts []string
	last := 0
	for _, m := range markdownMacro.FindAllStringSubmatchIndex(storage, -1) {
		converted, err := convertXHTML(ctx, storage[last:m[0]])
		if err != nil {
			return "", err
		}
		parts = append(parts, converted, macroBody(storage[m[2]:m[3]]))
		last = m[1]
	}
	converted, err := convertXHTML(ctx, storage[last:])
	if err != nil {
		return "", err
	}
	parts = append(parts, converted)

	nonEmpty := parts[:0]
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			nonEmpty = append(nonEmpty, strings.Trim(part, "\n"))
		}
	}
	return vo.Markdown(strings.Join(nonEmpty, "\n\n")), nil
}

// macroBody joins the CDATA sections a "]]>" was split across.
func macroBody(body string) string {
	var b strings.Builder
	for _, m := range cdataSection.FindAllStringSubmatch(body, -1) {
		b.WriteString(m[1])
	}
	return b.String()
}

func convertXHTML(ctx context.Context, fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("failed to parse storage format: %w", err)
	}
	body, err := findNodeByTag(root, "body")
	if err != nil {
		return "", err
	}
	markdown, err := newConverter().ConvertNode(body, converter.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to convert storage format to markdown: %w", err)
	}
	return string(markdown), nil
}
