package service

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/foomo/mdbook-confluence/book"
	"github.com/foomo/mdbook-confluence/confluence"
	"github.com/foomo/mdbook-confluence/markup"
	"github.com/foomo/mdbook-confluence/service/vo"
	"github.com/rivo/uniseg"
	"go.uber.org/zap"
)

// schemeLink matches links that point somewhere other than the book.
var schemeLink = regexp.MustCompile(`^[a-z][a-z0-9+.-]*:`)

// unsupportedChar replaces characters older servers cannot store.
const unsupportedChar = "⸮"

const markdownMacro = `<ac:structured-macro ac:name="markdown" ac:schema-version="1" ac:macro-id="249327eb-2c99-42ca-a7a7-487e1c0c7e04">` +
	`<ac:plain-text-body>%s</ac:plain-text-body>` +
	`</ac:structured-macro>`

// createPageContent builds the update for stub from the chapter markdown.
// Local images are uploaded to the page one after the other and their links
// rewritten to the attachment url.
func (s *service) createPageContent(ctx context.Context, chapter *book.Chapter, stub *confluence.Page, parent vo.ParentPage, srcRoot string) (confluence.UpdatePage, error) {
	dir := filepath.Join(srcRoot, chapter.Dir())

	markdown, err := markup.Rewrite(ctx, []byte(chapter.Content), func(ctx context.Context, destination, title string) (string, bool) {
		if schemeLink.MatchString(destination) {
			return "", false
		}
		return s.uploadImage(ctx, stub.ID, dir, destination, title)
	})
	if err != nil {
		return confluence.UpdatePage{}, fmt.Errorf("failed to rewrite markdown: %w", err)
	}

	id, version, parentID := stub.ID, stub.Version, parent.ID
	return confluence.UpdatePage{
		ID:       &id,
		Space:    parent.Space,
		Title:    s.settings.ChapterTitle(chapter.Name),
		Content:  s.toPageContent(markdown),
		Version:  &version,
		ParentID: &parentID,
	}, nil
}

func (s *service) toPageContent(markdown vo.Markdown) string {
	return fmt.Sprintf(markdownMacro, s.toCDATA(string(markdown)))
}

// toCDATA wraps str in a CDATA section. A literal "]]>" is split across two
// sections.
func (s *service) toCDATA(str string) string {
	if !s.version.SupportsExtendedText() {
		str = s.downgrade(str)
	}
	return "<![CDATA[" + strings.ReplaceAll(str, "]]>", "]]]]><![CDATA[>") + "]]>"
}

// downgrade replaces every grapheme cluster of 4 or more bytes.
func (s *service) downgrade(str string) string {
	var b strings.Builder
	b.Grow(len(str))
	gr := uniseg.NewGraphemes(str)
	for gr.Next() {
		cluster := gr.Str()
		if len(cluster) >= 4 {
			s.logger.Warn("removed unsupported character", zap.String("char", cluster))
			b.WriteString(unsupportedChar)
			continue
		}
		b.WriteString(cluster)
	}
	return b.String()
}
